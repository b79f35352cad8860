// Package types defines the core domain models for the payment recorder:
// the 128-bit Amount, the immutable PaymentRecord stored in a sender's
// history, and the PaymentRecorded notification emitted per record call.
package types

import (
	"payrecorder.mini/prm/internal/identity"
)

// Version is the current version of prm
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// PaymentRecord is a single claimed payment as stored under its sender.
// Records are never mutated after construction.
type PaymentRecord struct {
	Recipient identity.AccountID `json:"recipient"`
	Amount    Amount             `json:"amount"`
	Timestamp uint64             `json:"timestamp"` // host time, ms since epoch
}

// Equal reports whether two records carry the same values.
func (r PaymentRecord) Equal(o PaymentRecord) bool {
	return r.Recipient == o.Recipient && r.Amount.Equal(o.Amount) && r.Timestamp == o.Timestamp
}

// PaymentRecorded is the notification payload emitted after a record is
// durably appended to the sender's history.
type PaymentRecorded struct {
	Sender    identity.AccountID `json:"sender"`
	Recipient identity.AccountID `json:"recipient"`
	Amount    Amount             `json:"amount"`
	Timestamp uint64             `json:"timestamp"`
}

// Record returns the history entry this event describes.
func (e PaymentRecorded) Record() PaymentRecord {
	return PaymentRecord{Recipient: e.Recipient, Amount: e.Amount, Timestamp: e.Timestamp}
}
