package web

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"payrecorder.mini/prm/internal/api"
	"payrecorder.mini/prm/internal/docs"
	"payrecorder.mini/prm/internal/events"
	"payrecorder.mini/prm/internal/host"
	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/ledger"
	"payrecorder.mini/prm/internal/logger"
	"payrecorder.mini/prm/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	docsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(docsDir, "overview.adoc"), []byte("= Overview\n\nHello.\n"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	l := logger.New(50).Quiet()
	broker := events.NewBroker(10)
	app := host.NewApplication(ledger.New(ledger.NewState(), broker), nil)
	svc := api.NewService(app, nil, broker, l, 0)

	s, err := NewServer(0, svc, broker, docs.NewService(docsDir), l)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func submit(t *testing.T, ts *httptest.Server, from *identity.Keypair, to identity.AccountID, amount uint64) {
	t.Helper()
	tx, err := types.NewRecordPayment(to, types.NewAmount(amount))
	if err != nil {
		t.Fatalf("NewRecordPayment: %v", err)
	}
	stx, err := tx.Sign(from)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, _ := json.Marshal(stx)
	resp, err := http.Post(ts.URL+"/api/tx", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("submit status = %d body=%s", resp.StatusCode, body)
	}
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/health", http.StatusOK, `"ok"`},
		{"/api/version", http.StatusOK, types.Version},
		{"/api/history?account=" + strings.Repeat("00", 32), http.StatusOK, "[]"},
		{"/api/backups", http.StatusNotImplemented, "sqlite"},
		{"/docs/", http.StatusOK, "overview.adoc"},
		{"/docs/overview.adoc", http.StatusOK, "Hello."},
		{"/", http.StatusOK, "No payments recorded yet."},
		{"/nope", http.StatusNotFound, ""},
		{"/api/tx", http.StatusMethodNotAllowed, ""},
	}
	for _, c := range cases {
		resp, err := http.Get(ts.URL + c.path)
		if err != nil {
			t.Fatalf("GET %s: %v", c.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != c.status {
			t.Errorf("GET %s: status = %d, want %d", c.path, resp.StatusCode, c.status)
		}
		if !strings.Contains(string(body), c.want) {
			t.Errorf("GET %s: body %q does not contain %q", c.path, body, c.want)
		}
	}
}

func TestStatusPageListsPayments(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := identity.GenerateKeypair()
	bob, _ := identity.GenerateKeypair()
	submit(t, ts, alice, bob.Account(), 42)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), alice.Account().String()) {
		t.Fatalf("status page does not list alice's payment")
	}
	if resp.Header.Get("Cache-Control") == "" {
		t.Errorf("missing cache headers")
	}
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := identity.GenerateKeypair()
	bob, _ := identity.GenerateKeypair()

	resp, err := http.Get(ts.URL + "/api/events/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitFor := func(prefix string) string {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed waiting for %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	// subscribed once the greeting arrives
	waitFor(": connected")
	submit(t, ts, alice, bob.Account(), 9)

	waitFor("event: payment")
	data := strings.TrimPrefix(waitFor("data: "), "data: ")
	var ev events.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Payment.Sender != alice.Account() || ev.Payment.Amount.String() != "9" {
		t.Fatalf("unexpected event %+v", ev.Payment)
	}
}
