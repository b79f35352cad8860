// Package host is the execution environment in front of the ledger. It
// decodes signed transactions, authenticates the caller from the signature,
// stamps each call with a non-decreasing host time and executes calls one
// at a time and at most once. Reads of arbitrary histories go through Query
// and need no signature.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/ledger"
	"payrecorder.mini/prm/internal/types"
)

const (
	CodeTypeOK            uint32 = 0
	CodeTypeEncodingError uint32 = 1
	CodeTypeAuthError     uint32 = 2
	CodeTypeInvalidTx     uint32 = 3
	CodeTypeDuplicate     uint32 = 4
	CodeTypeRateLimited   uint32 = 5
	CodeTypeInternal      uint32 = 6
)

// Response is the outcome of a host call. Data holds the JSON result.
type Response struct {
	Code uint32          `json:"code"`
	Log  string          `json:"log,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the call succeeded.
func (r Response) OK() bool {
	return r.Code == CodeTypeOK
}

// Journal remembers executed transaction IDs per sender.
type Journal interface {
	IsApplied(ctx context.Context, sender identity.AccountID, txID string) (bool, error)
	MarkApplied(ctx context.Context, sender identity.AccountID, txID string, appliedAt uint64) (bool, error)
}

// Application dispatches authenticated calls to the ledger.
type Application struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	journal  Journal
	clock    func() time.Time
	lastTime uint64
	limiter  *callerLimiter
}

// Option configures an Application.
type Option func(*Application)

// WithClock overrides the host clock.
func WithClock(clock func() time.Time) Option {
	return func(app *Application) {
		app.clock = clock
	}
}

// WithRateLimit allows each caller perSecond calls with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(app *Application) {
		app.limiter = newCallerLimiter(perSecond, burst)
	}
}

// NewApplication creates a host around l. A nil journal keeps executed IDs
// in memory only.
func NewApplication(l *ledger.Ledger, journal Journal, opts ...Option) *Application {
	if journal == nil {
		journal = NewMemoryJournal()
	}
	app := &Application{
		ledger:  l,
		journal: journal,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// now returns the call timestamp in ms, never smaller than the previous one.
// Caller must hold app.mu.
func (app *Application) now() uint64 {
	ms := app.clock().UnixMilli()
	ts := uint64(0)
	if ms > 0 {
		ts = uint64(ms)
	}
	if ts < app.lastTime {
		ts = app.lastTime
	}
	app.lastTime = ts
	return ts
}

type decodedTx struct {
	signer identity.AccountID
	tx     *types.Transaction
}

func decode(raw []byte) (*decodedTx, *Response) {
	var signedTx types.SignedTransaction
	if err := json.Unmarshal(raw, &signedTx); err != nil {
		return nil, &Response{Code: CodeTypeEncodingError, Log: "failed to decode signed tx"}
	}
	if !signedTx.Canonical() {
		return nil, &Response{Code: CodeTypeEncodingError, Log: "transaction is not canonical JSON"}
	}

	if !signedTx.Verify() {
		return nil, &Response{Code: CodeTypeAuthError, Log: "invalid signature"}
	}

	signer, err := signedTx.Signer()
	if err != nil {
		return nil, &Response{Code: CodeTypeAuthError, Log: err.Error()}
	}

	tx, err := signedTx.GetTransaction()
	if err != nil {
		return nil, &Response{Code: CodeTypeEncodingError, Log: "failed to decode inner tx"}
	}

	switch tx.Type {
	case types.TxRecordPayment:
		if tx.ID == "" {
			return nil, &Response{Code: CodeTypeInvalidTx, Log: "transaction id is required"}
		}
		if _, err := tx.RecordPayload(); err != nil {
			return nil, &Response{Code: CodeTypeEncodingError, Log: "failed to decode RecordPayment payload"}
		}
	case types.TxMyHistory:
	default:
		return nil, &Response{Code: CodeTypeInvalidTx, Log: "unknown transaction type"}
	}

	return &decodedTx{signer: signer, tx: tx}, nil
}

// CheckTx validates a transaction without executing it.
func (app *Application) CheckTx(ctx context.Context, raw []byte) Response {
	d, resp := decode(raw)
	if resp != nil {
		return *resp
	}

	if d.tx.Type == types.TxRecordPayment {
		applied, err := app.journal.IsApplied(ctx, d.signer, d.tx.ID)
		if err != nil {
			return Response{Code: CodeTypeInternal, Log: err.Error()}
		}
		if applied {
			return Response{Code: CodeTypeDuplicate, Log: "transaction already applied"}
		}
	}

	return Response{Code: CodeTypeOK}
}

// DeliverTx authenticates and executes one call.
func (app *Application) DeliverTx(ctx context.Context, raw []byte) Response {
	d, resp := decode(raw)
	if resp != nil {
		return *resp
	}

	if !app.limiter.allow(d.signer) {
		return Response{Code: CodeTypeRateLimited, Log: "too many calls from " + d.signer.String()}
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	call := ledger.CallContext{Caller: d.signer, Timestamp: app.now()}

	switch d.tx.Type {
	case types.TxRecordPayment:
		return app.deliverRecord(ctx, call, d.tx)
	case types.TxMyHistory:
		history, err := app.ledger.MyHistory(ctx, call)
		if err != nil {
			return Response{Code: CodeTypeInternal, Log: err.Error()}
		}
		return jsonResponse(history)
	}
	return Response{Code: CodeTypeInvalidTx, Log: "unknown transaction type"}
}

func (app *Application) deliverRecord(ctx context.Context, call ledger.CallContext, tx *types.Transaction) Response {
	applied, err := app.journal.IsApplied(ctx, call.Caller, tx.ID)
	if err != nil {
		return Response{Code: CodeTypeInternal, Log: err.Error()}
	}
	if applied {
		return Response{Code: CodeTypeDuplicate, Log: "transaction already applied"}
	}

	payload, err := tx.RecordPayload()
	if err != nil {
		return Response{Code: CodeTypeEncodingError, Log: "failed to decode RecordPayment payload"}
	}

	ev, err := app.ledger.Record(ctx, call, payload.Recipient, payload.Amount)
	if err != nil {
		if errors.Is(err, ledger.ErrHistoryFull) {
			return Response{Code: CodeTypeInvalidTx, Log: err.Error()}
		}
		return Response{Code: CodeTypeInternal, Log: err.Error()}
	}

	if _, err := app.journal.MarkApplied(ctx, call.Caller, tx.ID, call.Timestamp); err != nil {
		// The record is durable; only replay protection for this ID is lost.
		log.Printf("WARN: journal transaction %s: %v", tx.ID, err)
	}

	log.Printf("INFO: Recorded payment %s -> %s amount=%s ts=%d", ev.Sender, ev.Recipient, ev.Amount, ev.Timestamp)
	return jsonResponse(ev)
}

// Query serves unauthenticated reads. Supported path: history/<account>.
func (app *Application) Query(ctx context.Context, path string) Response {
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] != "history" {
		return Response{Code: CodeTypeInvalidTx, Log: fmt.Sprintf("unknown query path %q", path)}
	}

	id, err := identity.ParseAccountID(parts[1])
	if err != nil {
		return Response{Code: CodeTypeEncodingError, Log: err.Error()}
	}

	history, err := app.ledger.HistoryOf(ctx, id)
	if err != nil {
		return Response{Code: CodeTypeInternal, Log: err.Error()}
	}
	return jsonResponse(history)
}

func jsonResponse(v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{Code: CodeTypeInternal, Log: "failed to encode result"}
	}
	return Response{Code: CodeTypeOK, Data: data}
}
