// Package ledger records claimed payments keyed by the authenticated caller.
// A Ledger maps each sender identity to an append-only, call-ordered history
// of PaymentRecords. The caller and time of a call are supplied explicitly
// through a CallContext by the host that authenticated the call; the ledger
// itself never validates that a payment happened.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/types"
)

// ErrHistoryFull is returned by Record when the sender reached the
// configured history cap.
var ErrHistoryFull = errors.New("payment history is full")

// Store persists histories. Load must return an empty slice for identities
// that were never written. Append must add rec after every existing record
// of id atomically and return the new history length.
type Store interface {
	Load(ctx context.Context, id identity.AccountID) ([]types.PaymentRecord, error)
	Append(ctx context.Context, id identity.AccountID, rec types.PaymentRecord) (int, error)
}

// Notifier receives one event per successful Record call, in call order.
type Notifier interface {
	Notify(ev types.PaymentRecorded)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(types.PaymentRecorded)

func (f NotifierFunc) Notify(ev types.PaymentRecorded) { f(ev) }

// CallContext carries what the host knows about the in-progress call.
type CallContext struct {
	Caller    identity.AccountID
	Timestamp uint64
}

// Ledger implements the record/history operations over a Store.
type Ledger struct {
	store      Store
	notifier   Notifier
	maxHistory int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxHistory caps the number of records a single sender may hold.
// Zero means unbounded.
func WithMaxHistory(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxHistory = n
		}
	}
}

// New creates a Ledger. A nil notifier discards events.
func New(store Store, notifier Notifier, opts ...Option) *Ledger {
	if notifier == nil {
		notifier = NotifierFunc(func(types.PaymentRecorded) {})
	}
	l := &Ledger{store: store, notifier: notifier}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends a payment claimed by call.Caller and emits the matching
// PaymentRecorded event once the append is durable.
func (l *Ledger) Record(ctx context.Context, call CallContext, recipient identity.AccountID, amount types.Amount) (types.PaymentRecorded, error) {
	sender := call.Caller
	rec := types.PaymentRecord{
		Recipient: recipient,
		Amount:    amount,
		Timestamp: call.Timestamp,
	}

	if l.maxHistory > 0 {
		history, err := l.store.Load(ctx, sender)
		if err != nil {
			return types.PaymentRecorded{}, fmt.Errorf("load history of %s: %w", sender, err)
		}
		if len(history) >= l.maxHistory {
			return types.PaymentRecorded{}, fmt.Errorf("%w: %s holds %d records", ErrHistoryFull, sender, len(history))
		}
	}

	if _, err := l.store.Append(ctx, sender, rec); err != nil {
		return types.PaymentRecorded{}, fmt.Errorf("append record for %s: %w", sender, err)
	}

	ev := types.PaymentRecorded{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: call.Timestamp,
	}
	l.notifier.Notify(ev)
	return ev, nil
}

// HistoryOf returns every record sent by id in call order. The result is
// never nil.
func (l *Ledger) HistoryOf(ctx context.Context, id identity.AccountID) ([]types.PaymentRecord, error) {
	history, err := l.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history of %s: %w", id, err)
	}
	if history == nil {
		history = []types.PaymentRecord{}
	}
	return history, nil
}

// MyHistory is HistoryOf for the caller of the current call.
func (l *Ledger) MyHistory(ctx context.Context, call CallContext) ([]types.PaymentRecord, error) {
	return l.HistoryOf(ctx, call.Caller)
}
