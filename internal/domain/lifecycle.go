package domain

import "time"

// transitions lists the statuses reachable from each status. Statuses only
// move forward along the pipeline or into the reject branch.
var transitions = map[ServiceStatus][]ServiceStatus{
	StatusCreated:         {StatusInProgress},
	StatusInProgress:      {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusRejected},
}

// CanTransition reports whether a service may move from one status to another.
func CanTransition(from, to ServiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DefaultDeliveryMonths is the delivery window applied when none is given.
const DefaultDeliveryMonths = 3

// AddMonthsClamped adds n calendar months to t. When the day of month does
// not exist in the target month it is clamped to the last day, so
// 2025-01-31 plus 3 months is 2025-04-30 rather than 2025-05-01.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
