package rewardaccount

import (
	"errors"
	"testing"

	"rewardvault/pkg/errutil"

	"github.com/stretchr/testify/require"
)

func TestNextAllowed(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
	}{
		{StatusAvailable, EventAssign, StatusAssigned},
		{StatusAssigned, EventUnassign, StatusAvailable},
		{StatusAvailable, EventDeactivate, StatusDeactivated},
		{StatusExpired, EventDeactivate, StatusDeactivated},
		{StatusDeactivated, EventDeactivate, StatusDeactivated},
		{StatusDeactivated, EventReactivate, StatusAvailable},
		{StatusExpired, EventReactivate, StatusAvailable},
		{StatusAvailable, EventExpire, StatusExpired},
	}

	for _, tc := range cases {
		got, err := Next(tc.from, tc.ev)
		require.NoError(t, err, "%s on %s", tc.ev, tc.from)
		require.Equal(t, tc.to, got)
	}
}

func TestNextClosure(t *testing.T) {
	allowed := map[Status]map[Event]bool{}
	for ev, tr := range transitions {
		for _, s := range tr.from {
			if allowed[s] == nil {
				allowed[s] = map[Event]bool{}
			}
			allowed[s][ev] = true
		}
	}

	events := []Event{EventAssign, EventUnassign, EventDeactivate, EventReactivate, EventExpire}
	for _, s := range Statuses {
		for _, ev := range events {
			if allowed[s][ev] {
				continue
			}

			got, err := Next(s, ev)
			require.Error(t, err, "%s on %s", ev, s)
			require.Equal(t, s, got)
			require.True(t, errutil.Is(err, errutil.StatusConflict))

			var be errutil.BaseError
			require.True(t, errors.As(err, &be))
			cur, ok := be.Detail("current_status")
			require.True(t, ok)
			require.Equal(t, string(s), cur)
			req, ok := be.Detail("requested_status")
			require.True(t, ok)
			require.Equal(t, string(Target(ev)), req)
		}
	}
}

func TestAssignConflictMessage(t *testing.T) {
	_, err := Next(StatusAssigned, EventAssign)
	require.ErrorContains(t, err, "not available")
}
