package types

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"payrecorder.mini/prm/internal/identity"
)

// TransactionType names the ledger call a transaction invokes.
type TransactionType string

const (
	TxRecordPayment TransactionType = "record_payment"
	TxMyHistory     TransactionType = "my_history"
)

// Transaction is the unsigned body of a caller's request. ID makes every
// call unique so the host can execute it at most once.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"` // client clock, informational only
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RecordPaymentPayload is the argument list of a record_payment call.
type RecordPaymentPayload struct {
	Recipient identity.AccountID `json:"recipient"`
	Amount    Amount             `json:"amount"`
}

// SignedTransaction wraps the encoded transaction with the caller's
// public key and signature. The public key is the caller identity.
type SignedTransaction struct {
	Tx        []byte `json:"tx"`
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// NewRecordPayment builds a record_payment transaction with a fresh ID.
func NewRecordPayment(recipient identity.AccountID, amount Amount) (*Transaction, error) {
	payload, err := json.Marshal(RecordPaymentPayload{Recipient: recipient, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("encode record payload: %w", err)
	}
	return &Transaction{
		ID:        uuid.NewString(),
		Type:      TxRecordPayment,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}, nil
}

// NewMyHistoryQuery builds a signed-read transaction for the caller's own
// history.
func NewMyHistoryQuery() *Transaction {
	return &Transaction{
		ID:        uuid.NewString(),
		Type:      TxMyHistory,
		Timestamp: time.Now().UTC(),
	}
}

// Sign encodes the transaction as RFC 8785 canonical JSON and signs it
// with kp.
func (tx *Transaction) Sign(kp *identity.Keypair) (*SignedTransaction, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	body, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize transaction: %w", err)
	}
	return &SignedTransaction{
		Tx:        body,
		PublicKey: kp.PublicKey(),
		Signature: kp.Sign(body),
	}, nil
}

// RecordPayload decodes the payload of a record_payment transaction.
func (tx *Transaction) RecordPayload() (RecordPaymentPayload, error) {
	var p RecordPaymentPayload
	if tx.Type != TxRecordPayment {
		return p, fmt.Errorf("transaction type %q has no record payload", tx.Type)
	}
	if err := json.Unmarshal(tx.Payload, &p); err != nil {
		return p, fmt.Errorf("decode record payload: %w", err)
	}
	return p, nil
}

// Canonical reports whether Tx is already in canonical JSON form, so that
// one call has exactly one signed encoding.
func (s *SignedTransaction) Canonical() bool {
	c, err := jcs.Transform(s.Tx)
	return err == nil && bytes.Equal(c, s.Tx)
}

// Verify checks the signature against the embedded public key.
func (s *SignedTransaction) Verify() bool {
	if len(s.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(s.PublicKey, s.Tx, s.Signature)
}

// Signer returns the account that produced the signature. Callers must
// Verify first.
func (s *SignedTransaction) Signer() (identity.AccountID, error) {
	return identity.AccountFromPublicKey(s.PublicKey)
}

// GetTransaction decodes the inner transaction.
func (s *SignedTransaction) GetTransaction() (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(s.Tx, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}
