// Command docgen builds docs/api.adoc from the @Title/@Route annotations on
// the HTTP handlers in internal/api.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

type Endpoint struct {
	Title       string
	Route       string
	Method      string
	Path        string
	Params      string
	Description string
	Response    string
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir := flag.String("api", "internal/api", "Directory with annotated handlers")
	out := flag.String("out", "docs/api.adoc", "AsciiDoc file to write")
	flag.Parse()

	endpoints, err := parseEndpoints(*apiDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := writeAsciiDoc(f, endpoints); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", *out, len(endpoints))
}

// parseEndpoints collects annotation blocks from non-test Go files in dir.
// A block ends at its @Response line.
func parseEndpoints(dir string) ([]Endpoint, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		found, err := parseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, found...)
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].Path < endpoints[j].Path
	})
	return endpoints, nil
}

func parseFile(path string) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var endpoints []Endpoint
	var current Endpoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				splitRoute(&current)
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

// splitRoute fills Method, Path and Params from "GET /path?query".
func splitRoute(ep *Endpoint) {
	method, rest, found := strings.Cut(ep.Route, " ")
	if !found {
		method, rest = "GET", ep.Route
	}
	ep.Method = method
	ep.Path, ep.Params, _ = strings.Cut(rest, "?")
}

var adocTmpl = template.Must(template.New("api").Parse(`= prm HTTP API
:toc:

Generated by cmd/docgen from the handler annotations in internal/api.
Do not edit by hand.

[cols="1,3,4"]
|===
|Method |Path |Summary
{{range .}}
|{{.Method}} |` + "`{{.Path}}`" + ` |{{.Title}}
{{- end}}
|===
{{range .}}
== {{.Title}}

` + "`{{.Method}} {{.Path}}`" + `

{{.Description}}
{{if .Params}}
Query: ` + "`{{.Params}}`" + `
{{end}}
Response: ` + "`{{.Response}}`" + `
{{end}}`))

func writeAsciiDoc(w io.Writer, endpoints []Endpoint) error {
	return adocTmpl.Execute(w, endpoints)
}
