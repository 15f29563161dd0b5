package orchestrator

// Operation names one engine call.
type Operation string

const (
	OperationAdd    Operation = "add"
	OperationRemove Operation = "remove"
	OperationCheck  Operation = "check"
)

// Status is the result of an operation in one profile.
type Status string

const (
	StatusSuccess             Status = "Success"
	StatusSkipped             Status = "Skipped"
	StatusStructurallyInvalid Status = "StructurallyInvalid"
	StatusWriteFailed         Status = "WriteFailed"
)

// Failed reports whether s counts against the overall result.
func (s Status) Failed() bool {
	return s == StatusStructurallyInvalid || s == StatusWriteFailed
}

// Overall is the status of a whole call across profiles.
type Overall string

const (
	OverallSuccess        Overall = "Success"
	OverallPartialSuccess Overall = "PartialSuccess"
	OverallFailed         Overall = "Failed"
)

// Outcome is what happened in one profile.
type Outcome struct {
	ProfileID string `json:"profile_id"`
	Status    Status `json:"status"`
	Detail    string `json:"detail,omitempty"`

	// ArtworkErr is set when staging or unstaging artwork failed. It
	// never changes Status.
	ArtworkErr string `json:"artwork_error,omitempty"`

	// Present is set by Check when the entry exists in this profile.
	Present bool `json:"present,omitempty"`
}

// AggregateResult reduces every profile outcome of one call.
type AggregateResult struct {
	Operation Operation `json:"operation"`
	Title     string    `json:"title"`
	Status    Overall   `json:"status"`
	Present   bool      `json:"present"`
	Outcomes  []Outcome `json:"outcomes"`
	Problems  []string  `json:"problems,omitempty"`
}

// Changed reports whether any profile file was rewritten.
func (r AggregateResult) Changed() bool {
	if r.Operation == OperationCheck {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Status == StatusSuccess && o.Detail != detailAlreadyPresent {
			return true
		}
	}
	return false
}

// aggregate computes the overall status and collects problems. Skipped
// counts as reaching the desired state.
func aggregate(op Operation, title string, outcomes []Outcome) AggregateResult {
	r := AggregateResult{
		Operation: op,
		Title:     title,
		Outcomes:  outcomes,
	}

	var failures, reached int
	for _, o := range outcomes {
		if o.Status.Failed() {
			failures++
			r.Problems = append(r.Problems, o.ProfileID+": "+o.Detail)
		} else {
			reached++
		}
		if o.ArtworkErr != "" {
			r.Problems = append(r.Problems, o.ProfileID+": artwork: "+o.ArtworkErr)
		}
		if o.Present {
			r.Present = true
		}
	}

	switch {
	case failures == 0:
		r.Status = OverallSuccess
	case reached > 0:
		r.Status = OverallPartialSuccess
	default:
		r.Status = OverallFailed
	}
	return r
}
