package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

func TestRuleForAcceptsLegalCourierMoves(t *testing.T) {
	moves := []struct {
		from, to string
	}{
		{StatusCourierAssigned, StatusEnRouteToPickup},
		{StatusEnRouteToPickup, StatusAtPickup},
		{StatusApproachingPickup, StatusAtPickup},
		{StatusAtPickup, StatusPickedUp},
		{StatusPickedUp, StatusInTransit},
		{StatusInTransit, StatusAtDropoff},
		{StatusApproachingDropoff, StatusAtDropoff},
		{StatusAtDropoff, StatusDelivered},
	}

	for _, m := range moves {
		t.Run(m.from+"_to_"+m.to, func(t *testing.T) {
			_, err := ruleFor(m.from, m.to, ActorCourier)
			assert.NoError(t, err)
		})
	}
}

func TestRuleForAcceptsSystemMoves(t *testing.T) {
	moves := []struct {
		from, to string
	}{
		{StatusPending, StatusSearchingCourier},
		{StatusSearchingCourier, StatusCourierAssigned},
		{StatusEnRouteToPickup, StatusApproachingPickup},
		{StatusInTransit, StatusApproachingDropoff},
	}

	for _, m := range moves {
		t.Run(m.from+"_to_"+m.to, func(t *testing.T) {
			_, err := ruleFor(m.from, m.to, ActorSystem)
			assert.NoError(t, err)
		})
	}
}

func TestRuleForRejectsWrongActor(t *testing.T) {
	// The courier may not cancel, the sender may not drive the route.
	_, err := ruleFor(StatusCourierAssigned, StatusCancelled, ActorCourier)
	requireInvalidTransition(t, err)

	_, err = ruleFor(StatusCourierAssigned, StatusEnRouteToPickup, ActorSender)
	requireInvalidTransition(t, err)

	_, err = ruleFor(StatusInTransit, StatusApproachingDropoff, ActorCourier)
	requireInvalidTransition(t, err)
}

func TestRuleForRejectsTerminalStates(t *testing.T) {
	for _, status := range []string{StatusDelivered, StatusCancelled, StatusFailed, StatusReturned} {
		t.Run(status, func(t *testing.T) {
			_, err := ruleFor(status, StatusInTransit, ActorCourier)
			requireInvalidTransition(t, err)
			assert.Contains(t, err.Error(), "no further transitions")
		})
	}
}

func TestRuleForRejectsSkippedStates(t *testing.T) {
	_, err := ruleFor(StatusPending, StatusDelivered, ActorCourier)
	requireInvalidTransition(t, err)

	_, err = ruleFor(StatusCourierAssigned, StatusPickedUp, ActorCourier)
	requireInvalidTransition(t, err)

	// Approaching dropoff fires from in_transit only.
	_, err = ruleFor(StatusAtDropoff, StatusApproachingDropoff, ActorSystem)
	requireInvalidTransition(t, err)
}

func TestRuleForReasonAndProofFlags(t *testing.T) {
	rule, err := ruleFor(StatusAtDropoff, StatusDelivered, ActorCourier)
	require.NoError(t, err)
	assert.True(t, rule.proofGated)
	assert.False(t, rule.reasonNeeded)

	for _, from := range []string{StatusAtPickup, StatusPickedUp, StatusInTransit, StatusApproachingDropoff, StatusAtDropoff} {
		rule, err := ruleFor(from, StatusFailed, ActorCourier)
		require.NoError(t, err, from)
		assert.True(t, rule.reasonNeeded, from)
	}

	for _, from := range []string{StatusPickedUp, StatusInTransit, StatusApproachingDropoff, StatusAtDropoff} {
		rule, err := ruleFor(from, StatusReturned, ActorCourier)
		require.NoError(t, err, from)
		assert.True(t, rule.reasonNeeded, from)
	}

	// A package that was never picked up cannot be "returned".
	_, err = ruleFor(StatusAtPickup, StatusReturned, ActorCourier)
	requireInvalidTransition(t, err)
}

func TestCancellable(t *testing.T) {
	for _, status := range []string{
		StatusPending, StatusSearchingCourier, StatusCourierAssigned,
		StatusEnRouteToPickup, StatusApproachingPickup, StatusAtPickup,
	} {
		assert.True(t, cancellable(status), status)
	}

	for _, status := range []string{
		StatusPickedUp, StatusInTransit, StatusApproachingDropoff, StatusAtDropoff,
		StatusDelivered, StatusCancelled, StatusFailed, StatusReturned,
	} {
		assert.False(t, cancellable(status), status)
	}
}

func TestRefundFor(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		authorized float64
		refund     float64
		fee        float64
	}{
		{"full refund before search", StatusPending, 17.00, 17.00, 0},
		{"full refund during search", StatusSearchingCourier, 17.00, 17.00, 0},
		{"percentage fee when it undercuts the cap", StatusCourierAssigned, 20.00, 17.00, 3.00},
		{"capped fee on a large order", StatusEnRouteToPickup, 100.00, 95.00, 5.00},
		{"no refund once the courier arrives", StatusApproachingPickup, 17.00, 0, 17.00},
		{"no refund at the door", StatusAtPickup, 17.00, 0, 17.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refund, fee := refundFor(tt.status, tt.authorized)
			assert.Equal(t, tt.refund, refund)
			assert.Equal(t, tt.fee, fee)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusDelivered))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusFailed))
	assert.True(t, IsTerminal(StatusReturned))
	assert.False(t, IsTerminal(StatusInTransit))
	assert.False(t, IsTerminal(StatusPending))
}

func requireInvalidTransition(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeInvalidTransition, appErr.ErrorCode)
}
