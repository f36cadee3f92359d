package rewardaccount

import (
	"fmt"

	"rewardvault/pkg/errutil"
)

type Event string

const (
	EventAssign     Event = "assign"
	EventUnassign   Event = "unassign"
	EventDeactivate Event = "deactivate"
	EventReactivate Event = "reactivate"
	EventExpire     Event = "expire"
)

type transition struct {
	from []Status
	to   Status
}

var transitions = map[Event]transition{
	EventAssign:     {from: []Status{StatusAvailable}, to: StatusAssigned},
	EventUnassign:   {from: []Status{StatusAssigned}, to: StatusAvailable},
	EventDeactivate: {from: []Status{StatusAvailable, StatusExpired, StatusDeactivated}, to: StatusDeactivated},
	EventReactivate: {from: []Status{StatusDeactivated, StatusExpired}, to: StatusAvailable},
	EventExpire:     {from: []Status{StatusAvailable}, to: StatusExpired},
}

// Sources lists the states ev may start from. The store uses it as the WHERE
// guard of the conditional update.
func Sources(ev Event) []Status {
	return transitions[ev].from
}

// Target returns the state ev leads to.
func Target(ev Event) Status {
	return transitions[ev].to
}

// Next validates ev against the current state.
func Next(current Status, ev Event) (Status, error) {
	t, ok := transitions[ev]
	if !ok {
		return current, errutil.BadRequest(fmt.Sprintf("unknown event %q", ev), nil)
	}
	for _, s := range t.from {
		if s == current {
			return t.to, nil
		}
	}
	return current, conflict(current, ev)
}

func conflict(current Status, ev Event) error {
	msg := fmt.Sprintf("cannot %s reward account in status %s", ev, current)
	if ev == EventAssign {
		msg = "reward account is not available"
	}
	return errutil.Conflict(msg, nil,
		errutil.WithDetails(
			errutil.Detail{Field: "current_status", Message: string(current)},
			errutil.Detail{Field: "requested_status", Message: string(Target(ev))},
		),
	)
}
