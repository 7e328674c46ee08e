package types

import (
	"errors"
	"fmt"
)

// Rejection reason codes surfaced to clients. Every rejected operation
// carries exactly one of these so a caller can distinguish "fix your input"
// from "retry as-is".
const (
	CodeInvalidAmount     = "invalid_amount"
	CodeNotBiddable       = "not_biddable"
	CodeAuctionEnded      = "auction_ended"
	CodeSelfBid           = "self_bid"
	CodeBidTooLow         = "bid_too_low"
	CodeInvalidTransition = "invalid_transition"
	CodeTransientConflict = "transient_conflict"
	CodeNotFound          = "not_found"
)

// Rejection is a terminal, user-facing refusal of an operation. It is an
// error so it flows through normal error returns, but handlers map it to a
// 4xx response rather than a 500.
type Rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// Retryable reports whether the caller may resubmit the identical request.
// Only lock/serialization conflicts qualify; every other rejection requires
// corrected input.
func (r *Rejection) Retryable() bool {
	return r.Code == CodeTransientConflict
}

// NewRejection builds a Rejection with a formatted message.
func NewRejection(code, format string, args ...interface{}) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a *Rejection if one is in its chain.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
