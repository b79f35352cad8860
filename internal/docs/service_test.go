package docs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDoc(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestGetDocRendersAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "guide.adoc", "= Guide\n\n== Recording\n\nHello ledger.\n")
	svc := NewService(dir)

	html, err := svc.GetDoc(context.Background(), "guide.adoc")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if !strings.Contains(html, "Hello ledger.") {
		t.Fatalf("rendered html missing paragraph: %s", html)
	}

	// cached copy survives the file going away until Invalidate
	os.Remove(filepath.Join(dir, "guide.adoc"))
	if _, err := svc.GetDoc(context.Background(), "guide.adoc"); err != nil {
		t.Fatalf("cached GetDoc: %v", err)
	}
	svc.Invalidate()
	if _, err := svc.GetDoc(context.Background(), "guide.adoc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after Invalidate err = %v, want ErrNotFound", err)
	}
}

func TestGetDocRejectsTraversal(t *testing.T) {
	svc := NewService(t.TempDir())
	for _, name := range []string{"../secret.adoc", "sub/x.adoc", "notes.txt"} {
		if _, err := svc.GetDoc(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetDoc(%q) err = %v, want ErrNotFound", name, err)
		}
	}
}

func TestServeHTTPIndexAndMissing(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "b.adoc", "= B\n")
	writeDoc(t, dir, "a.adoc", "= A\n")
	writeDoc(t, dir, "ignored.txt", "x")
	svc := NewService(dir)

	docs, err := svc.ListDocs()
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	if len(docs) != 2 || docs[0] != "a.adoc" || docs[1] != "b.adoc" {
		t.Fatalf("ListDocs = %v", docs)
	}

	w := httptest.NewRecorder()
	svc.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `href="/docs/a.adoc"`) {
		t.Fatalf("index: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	svc.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/missing.adoc", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing doc status = %d", w.Code)
	}
}
