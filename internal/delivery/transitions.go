package delivery

import (
	"fmt"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Transition actors. System covers payment-driven and proximity-driven moves.
const (
	ActorSender  = "sender"
	ActorCourier = "courier"
	ActorSystem  = "system"
)

type transitionRule struct {
	actor         string
	reasonNeeded  bool
	proofGated    bool
	refundGoverns bool
}

// legalTransitions is the full state machine. Anything absent here fails
// with InvalidTransition.
var legalTransitions = map[string]map[string]transitionRule{
	StatusPending: {
		StatusSearchingCourier: {actor: ActorSystem},
		StatusCancelled:        {actor: ActorSender, refundGoverns: true},
	},
	StatusSearchingCourier: {
		StatusCourierAssigned: {actor: ActorSystem},
		StatusCancelled:       {actor: ActorSender, refundGoverns: true},
	},
	StatusCourierAssigned: {
		StatusEnRouteToPickup: {actor: ActorCourier},
		StatusCancelled:       {actor: ActorSender, refundGoverns: true},
	},
	StatusEnRouteToPickup: {
		StatusApproachingPickup: {actor: ActorSystem},
		StatusAtPickup:          {actor: ActorCourier},
		StatusCancelled:         {actor: ActorSender, refundGoverns: true},
	},
	StatusApproachingPickup: {
		StatusAtPickup:  {actor: ActorCourier},
		StatusCancelled: {actor: ActorSender, refundGoverns: true},
	},
	StatusAtPickup: {
		StatusPickedUp:  {actor: ActorCourier},
		StatusFailed:    {actor: ActorCourier, reasonNeeded: true},
		StatusCancelled: {actor: ActorSender, refundGoverns: true},
	},
	StatusPickedUp: {
		StatusInTransit: {actor: ActorCourier},
		StatusFailed:    {actor: ActorCourier, reasonNeeded: true},
		StatusReturned:  {actor: ActorCourier, reasonNeeded: true},
	},
	StatusInTransit: {
		StatusApproachingDropoff: {actor: ActorSystem},
		StatusAtDropoff:          {actor: ActorCourier},
		StatusFailed:             {actor: ActorCourier, reasonNeeded: true},
		StatusReturned:           {actor: ActorCourier, reasonNeeded: true},
	},
	StatusApproachingDropoff: {
		StatusAtDropoff: {actor: ActorCourier},
		StatusFailed:    {actor: ActorCourier, reasonNeeded: true},
		StatusReturned:  {actor: ActorCourier, reasonNeeded: true},
	},
	StatusAtDropoff: {
		StatusDelivered: {actor: ActorCourier, proofGated: true},
		StatusFailed:    {actor: ActorCourier, reasonNeeded: true},
		StatusReturned:  {actor: ActorCourier, reasonNeeded: true},
	},
}

// ruleFor returns the transition rule for from→to, or an InvalidTransition
// error naming the current state.
func ruleFor(from, to, actor string) (transitionRule, error) {
	targets, ok := legalTransitions[from]
	if !ok {
		return transitionRule{}, common.NewInvalidTransitionError(
			fmt.Sprintf("delivery is %s and accepts no further transitions", from))
	}
	rule, ok := targets[to]
	if !ok {
		return transitionRule{}, common.NewInvalidTransitionError(
			fmt.Sprintf("cannot move a %s delivery to %s", from, to))
	}
	if rule.actor != actor {
		return transitionRule{}, common.NewInvalidTransitionError(
			fmt.Sprintf("%s may not move a %s delivery to %s", actor, from, to))
	}
	return rule, nil
}

// cancellableStatuses is the set of states a sender may cancel from, derived
// from the transition table.
func cancellable(status string) bool {
	targets, ok := legalTransitions[status]
	if !ok {
		return false
	}
	_, ok = targets[StatusCancelled]
	return ok
}

// refundFor computes the cancellation refund from the status at transition
// time. Pre-assignment cancellations refund everything; cancellations while
// the courier is heading to pickup keep a fee of min($5, 15%); once the
// courier is at the door the authorization is retained in full.
func refundFor(status string, authorized float64) (refund, fee float64) {
	switch status {
	case StatusPending, StatusSearchingCourier:
		return authorized, 0
	case StatusCourierAssigned, StatusEnRouteToPickup:
		fee = 5.0
		if pct := round2(authorized * 0.15); pct < fee {
			fee = pct
		}
		return round2(authorized - fee), fee
	default:
		return 0, authorized
	}
}
