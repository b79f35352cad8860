package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"payrecorder.mini/prm/internal/api"
	"payrecorder.mini/prm/internal/events"
	"payrecorder.mini/prm/internal/host"
	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/ledger"
	"payrecorder.mini/prm/internal/logger"
	"payrecorder.mini/prm/internal/types"
)

func newServer(t *testing.T) string {
	t.Helper()
	broker := events.NewBroker(10)
	app := host.NewApplication(ledger.New(ledger.NewState(), broker), nil)
	svc := api.NewService(app, nil, broker, logger.New(10).Quiet(), 0)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tx", svc.HandleSubmitTx)
	mux.HandleFunc("/api/tx/check", svc.HandleCheckTx)
	mux.HandleFunc("/api/history", svc.HandleHistory)
	mux.HandleFunc("/api/history/me", svc.HandleMyHistory)
	mux.HandleFunc("/api/version", svc.HandleVersion)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts.URL
}

func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(args, &out); err != nil {
		t.Fatalf("prmctl %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestKeygenAndWhoami(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "keys", "alice.key")

	out := runOK(t, "keygen", "-key", keyPath)
	if !strings.Contains(out, "Key generated") {
		t.Fatalf("unexpected keygen output %q", out)
	}
	if err := run([]string{"keygen", "-key", keyPath}, &bytes.Buffer{}); err == nil {
		t.Fatalf("keygen must refuse to overwrite without -force")
	}

	kp, err := identity.LoadOrCreateKeypair(keyPath)
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	out = runOK(t, "whoami", "-key", keyPath)
	if !strings.Contains(out, kp.Account().String()) || !strings.Contains(out, kp.Account().SS58(identity.DefaultSS58Prefix)) {
		t.Fatalf("whoami output %q missing account forms", out)
	}
}

func TestRecordHistoryMe(t *testing.T) {
	server := newServer(t)
	dir := t.TempDir()
	aliceKey, bobKey := filepath.Join(dir, "alice.key"), filepath.Join(dir, "bob.key")
	runOK(t, "keygen", "-key", aliceKey)
	runOK(t, "keygen", "-key", bobKey)
	alice, _ := identity.LoadOrCreateKeypair(aliceKey)
	bob, _ := identity.LoadOrCreateKeypair(bobKey)

	runOK(t, "record", "-server", server, "-key", aliceKey, "-dot", bob.Account().SS58(identity.DefaultSS58Prefix), "1.5")
	runOK(t, "record", "-server", server, "-key", aliceKey, "-check", bob.Account().String(), "7")
	runOK(t, "record", "-server", server, "-key", aliceKey, bob.Account().String(), "7")

	out := runOK(t, "history", "-server", server, "-json", alice.Account().String())
	var history []types.PaymentRecord
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("decode history: %v (%s)", err, out)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records (check must not record), got %d", len(history))
	}
	if history[0].Amount.String() != "15000000000" || history[1].Amount.String() != "7" {
		t.Fatalf("unexpected amounts %s, %s", history[0].Amount, history[1].Amount)
	}

	out = runOK(t, "me", "-server", server, "-key", aliceKey)
	if !strings.Contains(out, "1.5") || !strings.Contains(out, bob.Account().SS58(identity.DefaultSS58Prefix)) {
		t.Fatalf("unexpected me table %q", out)
	}

	out = runOK(t, "me", "-server", server, "-key", bobKey)
	if !strings.Contains(out, "No payments recorded.") {
		t.Fatalf("bob should have no history, got %q", out)
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "k.key")
	runOK(t, "keygen", "-key", keyPath)

	cases := [][]string{
		{"record", "-key", keyPath, "zzz", "1"},
		{"record", "-key", keyPath, strings.Repeat("00", 32), "-1"},
		{"record", "-key", keyPath, strings.Repeat("00", 32)},
		{"bogus"},
		{},
	}
	for _, args := range cases {
		if err := run(args, &bytes.Buffer{}); err == nil {
			t.Errorf("prmctl %v: expected error", args)
		}
	}
}

func TestVersion(t *testing.T) {
	server := newServer(t)
	out := runOK(t, "version", "-server", server)
	if !strings.Contains(out, "client: "+types.Version) || !strings.Contains(out, "server: "+types.Version) {
		t.Fatalf("unexpected version output %q", out)
	}
}
