// Command docgen writes the AsciiDoc API reference from the @Title, @Route,
// @Description and @Response annotations on the HTTP handlers.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

type options struct {
	APIDir string `long:"apidir" default:"internal/api" description:"Directory of the annotated handler sources"`
	Out    string `long:"out" default:"docs/api.adoc" description:"AsciiDoc file to write"`
}

// Endpoint is one annotated handler.
type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

// Method returns the HTTP method of the route.
func (e Endpoint) Method() string {
	method, _, _ := strings.Cut(e.Route, " ")
	return method
}

// Path returns the route path without method or query.
func (e Endpoint) Path() string {
	_, rest, _ := strings.Cut(e.Route, " ")
	path, _, _ := strings.Cut(rest, "?")
	return path
}

// Params returns the query parameters of the route.
func (e Endpoint) Params() string {
	_, query, _ := strings.Cut(e.Route, "?")
	return query
}

var (
	reTitle = regexp.MustCompile(`^// @Title: (.*)`)
	reRoute = regexp.MustCompile(`^// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`^// @Description: (.*)`)
	reResp  = regexp.MustCompile(`^// @Response: (.*)`)
)

// parseEndpoints scans r for annotation blocks. A block ends at its
// @Response line.
func parseEndpoints(r io.Reader) ([]Endpoint, error) {
	var endpoints []Endpoint
	var current Endpoint

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

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
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

// collect parses every non-test Go file in dir and orders the endpoints by
// path.
func collect(dir string) ([]Endpoint, error) {
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
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		eps, err := parseEndpoints(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		endpoints = append(endpoints, eps...)
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].Path() < endpoints[j].Path()
	})
	return endpoints, nil
}

// writeAsciiDoc renders the reference page.
func writeAsciiDoc(w io.Writer, endpoints []Endpoint) error {
	b := bufio.NewWriter(w)
	fmt.Fprintln(b, "= API Reference")
	fmt.Fprintln(b, ":toc: left")
	fmt.Fprintln(b)
	fmt.Fprintln(b, "Generated from the handler annotations in internal/api. Do not edit.")

	for _, ep := range endpoints {
		fmt.Fprintln(b)
		fmt.Fprintf(b, "== %s\n\n", ep.Title)
		fmt.Fprintf(b, "`%s %s`\n\n", ep.Method(), ep.Path())
		if ep.Description != "" {
			fmt.Fprintf(b, "%s\n\n", ep.Description)
		}
		if params := ep.Params(); params != "" {
			fmt.Fprintln(b, "Query parameters::")
			for _, p := range strings.Split(params, "&") {
				fmt.Fprintf(b, "* `%s`\n", p)
			}
			fmt.Fprintln(b)
		}
		fmt.Fprintln(b, "Response::")
		fmt.Fprintln(b, "+")
		fmt.Fprintln(b, "----")
		fmt.Fprintln(b, ep.Response)
		fmt.Fprintln(b, "----")
	}
	return b.Flush()
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	endpoints, err := collect(opts.APIDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Out), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(opts.Out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	if err := writeAsciiDoc(f, endpoints); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "docgen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", opts.Out, len(endpoints))
}
