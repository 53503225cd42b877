package domain

// Status is the lifecycle state of a scheduled entity (meeting, event, break).
// Transitions are forward-only: the engine flips status in one direction and
// never back.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusUpcoming   Status = "upcoming"
	StatusToday      Status = "today"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// statusRank orders statuses along the lifecycle. Cancelled is terminal and
// reachable from any non-terminal state, so it ranks highest.
var statusRank = map[Status]int{
	StatusScheduled:  0,
	StatusUpcoming:   0,
	StatusToday:      1,
	StatusInProgress: 2,
	StatusCompleted:  3,
	StatusCancelled:  4,
}

// Rank returns the position of s in the forward lifecycle order.
// Unknown statuses rank below every known one.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// Backward transitions (e.g. in-progress -> scheduled) are forbidden.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.Rank() > s.Rank()
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
