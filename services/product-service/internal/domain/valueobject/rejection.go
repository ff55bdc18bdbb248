package valueobject

import "errors"

// RejectionReason is the reason code carried by a rejected posting batch.
type RejectionReason string

const (
	ReasonWrongDenomination RejectionReason = "WRONG_DENOMINATION"
	ReasonInsufficientFunds RejectionReason = "INSUFFICIENT_FUNDS"
	ReasonAgainstTNC        RejectionReason = "AGAINST_TNC"
)

// Rejection is returned by pre-posting checks to refuse a batch.
type Rejection struct {
	Reason  RejectionReason
	Message string
}

// Reject builds a Rejection.
func Reject(reason RejectionReason, message string) Rejection {
	return Rejection{Reason: reason, Message: message}
}

func (r Rejection) Error() string { return r.Message }

// AsRejection extracts a Rejection from err's chain.
func AsRejection(err error) (Rejection, bool) {
	var r Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return Rejection{}, false
}
