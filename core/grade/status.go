package grade

// Status is the approval outcome derived from a final average.
type Status string

const (
	StatusInProgress Status = "cursando"  // not enough data to decide
	StatusApproved   Status = "aprovado"  // final average >= passing grade
	StatusFailed     Status = "reprovado" // final average < passing grade
)

var Statuses = []Status{StatusInProgress, StatusApproved, StatusFailed}

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusApproved, StatusFailed:
		return true
	}
	return false
}

// EvaluateStatus classifies avg against the passing threshold.
// The boundary is inclusive: an average equal to threshold is approved.
func EvaluateStatus(avg *float64, threshold float64) Status {
	switch {
	case avg == nil:
		return StatusInProgress
	case *avg >= threshold:
		return StatusApproved
	default:
		return StatusFailed
	}
}
