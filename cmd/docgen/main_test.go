package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"payrecorder.mini/prm/internal/docs"
)

const annotated = `package api

// @Title: Get Things
// @Route: GET /api/things?kind=...
// @Description: Lists things
// @Response: Array of things
func (s *Service) HandleThings() {}

// @Title: Missing route
// @Description: ignored
// @Response: nothing

// @Title: Add Thing
// @Route: POST /api/add
// @Description: Adds a thing
// @Response: {"status": "ok"}
func (s *Service) HandleAdd() {}
`

func TestParseEndpoints(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "things.go"), []byte(annotated), 0o644); err != nil {
		t.Fatal(err)
	}
	// test files are not part of the API surface
	if err := os.WriteFile(filepath.Join(dir, "things_test.go"), []byte(annotated), 0o644); err != nil {
		t.Fatal(err)
	}

	endpoints, err := parseEndpoints(dir)
	if err != nil {
		t.Fatalf("parseEndpoints: %v", err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d: %+v", len(endpoints), endpoints)
	}
	add, things := endpoints[0], endpoints[1]
	if add.Method != "POST" || add.Path != "/api/add" || add.Params != "" {
		t.Errorf("unexpected add endpoint %+v", add)
	}
	if things.Method != "GET" || things.Path != "/api/things" || things.Params != "kind=..." {
		t.Errorf("unexpected things endpoint %+v", things)
	}
}

func TestGeneratedDocRenders(t *testing.T) {
	endpoints, err := parseEndpoints(filepath.Join("..", "..", "internal", "api"))
	if err != nil {
		t.Fatalf("parseEndpoints: %v", err)
	}
	routes := map[string]bool{}
	for _, ep := range endpoints {
		routes[ep.Method+" "+ep.Path] = true
	}
	for _, want := range []string{"POST /api/tx", "GET /api/history", "POST /api/history/me"} {
		if !routes[want] {
			t.Errorf("missing endpoint %s in %v", want, routes)
		}
	}

	var buf bytes.Buffer
	if err := writeAsciiDoc(&buf, endpoints); err != nil {
		t.Fatalf("writeAsciiDoc: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "api.adoc"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	html, err := docs.NewService(dir).GetDoc(context.Background(), "api.adoc")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Submit Transaction") {
		t.Errorf("rendered doc missing endpoint section")
	}
}
