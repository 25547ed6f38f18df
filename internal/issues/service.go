package issues

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Service handles issue business logic
type Service struct {
	repo     RepositoryInterface
	eventBus *eventbus.Bus
}

// NewService creates a new issue service
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// SetEventBus sets the NATS event bus for publishing issue events.
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "issue-service", data)
		if err != nil {
			logger.Warn("failed to create issue event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish issue event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

// Report opens an issue on a delivery. Either party may report at any point
// in the lifecycle; one unresolved issue per reporter per delivery.
func (s *Service) Report(ctx context.Context, deliveryID, reporterID uuid.UUID, req *validation.ReportIssueRequest) (*DeliveryIssue, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	parties, err := s.repo.GetDeliveryParties(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	var role string
	switch {
	case reporterID == parties.SenderID:
		role = "sender"
	case parties.CourierID != nil && reporterID == *parties.CourierID:
		role = "courier"
	default:
		return nil, common.NewForbiddenError("you are not a party to this delivery")
	}

	open, err := s.repo.HasOpenIssue(ctx, deliveryID, reporterID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, common.NewConflictError("you already have an open issue for this delivery")
	}

	issue := &DeliveryIssue{
		ID:           uuid.New(),
		DeliveryID:   deliveryID,
		ReporterID:   reporterID,
		ReporterRole: role,
		IssueNumber:  newIssueNumber(),
		IssueType:    req.IssueType,
		Description:  req.Description,
		Status:       StatusOpen,
	}

	if err := s.repo.Insert(ctx, issue); err != nil {
		return nil, err
	}

	s.publishEvent(eventbus.SubjectDeliveryIssueReported, "delivery.issue_reported", &eventbus.DeliveryIssueReportedData{
		IssueID:    issue.ID,
		DeliveryID: deliveryID,
		ReporterID: reporterID,
		IssueType:  issue.IssueType,
		ReportedAt: issue.CreatedAt,
	})

	return issue, nil
}

// newIssueNumber builds a human-readable issue reference. The alphabet drops
// lookalike characters.
func newIssueNumber() string {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ref := make([]byte, 8)
	for i := range ref {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		ref[i] = chars[n.Int64()]
	}
	return fmt.Sprintf("ISS-%s", string(ref))
}
