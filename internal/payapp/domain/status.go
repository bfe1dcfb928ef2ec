package domain

// Status is the billing state of a pay application. It only moves forward.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusCertified Status = "certified"
	StatusPaid      Status = "paid"
)

var nextStatus = map[Status]Status{
	StatusDraft:     StatusSubmitted,
	StatusSubmitted: StatusCertified,
	StatusCertified: StatusPaid,
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusCertified, StatusPaid:
		return true
	}
	return false
}

// Next returns the only status s may advance to; paid has none.
func (s Status) Next() (Status, bool) {
	next, ok := nextStatus[s]
	return next, ok
}

// CanTransitionTo reports whether target is the immediate successor of s.
func (s Status) CanTransitionTo(target Status) bool {
	next, ok := s.Next()
	return ok && next == target
}

// Editable reports whether line items and header fields may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// Billed reports whether the period's figures are final and feed later periods.
func (s Status) Billed() bool {
	return s == StatusCertified || s == StatusPaid
}
