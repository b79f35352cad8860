package api

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"payrecorder.mini/prm/internal/events"
	"payrecorder.mini/prm/internal/host"
	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/ledger"
	"payrecorder.mini/prm/internal/logger"
	"payrecorder.mini/prm/internal/store"
	"payrecorder.mini/prm/internal/types"
)

type testEnv struct {
	svc    *Service
	store  *store.Store
	broker *events.Broker
}

// setupTest wires a service over a temporary SQLite ledger.
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	broker := events.NewBroker(10)
	app := host.NewApplication(ledger.New(st, broker), st)
	svc := NewService(app, st, broker, logger.New(100).Quiet(), 3)
	return &testEnv{svc: svc, store: st, broker: broker}
}

func newKeypair(t *testing.T) *identity.Keypair {
	t.Helper()
	kp, err := identity.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func signed(t *testing.T, tx *types.Transaction, kp *identity.Keypair) []byte {
	t.Helper()
	stx, err := tx.Sign(kp)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, err := json.Marshal(stx)
	if err != nil {
		t.Fatalf("marshal signed tx: %v", err)
	}
	return raw
}

func recordTx(t *testing.T, from *identity.Keypair, to identity.AccountID, amount uint64) []byte {
	t.Helper()
	tx, err := types.NewRecordPayment(to, types.NewAmount(amount))
	if err != nil {
		t.Fatalf("NewRecordPayment: %v", err)
	}
	return signed(t, tx, from)
}
