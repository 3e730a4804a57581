// Package main implements genconfig, which writes config.default.toml from
// config.ExampleConfig() annotated with config.ConfigDocs.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/proxyd/internal/config"
)

// outPath is relative to internal/config, where go generate runs.
const outPath = "../../config.default.toml"

func main() {
	out, err := render(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Println("wrote config.default.toml")
}

// render encodes cfg as TOML and interleaves the comments from docs. Keys the
// encoder omitted (omitempty zero values) are appended to their section as
// commented-out entries so every documented option is visible.
func render(cfg *config.Config, docs map[string]config.FieldDoc) (string, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	g := &generator{docs: docs, emitted: map[string]bool{}}
	g.out = append(g.out,
		"# ///////////////////////////////////////////////",
		"# proxyd Configuration",
		"# ///////////////////////////////////////////////",
		"",
	)

	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[["):
			g.section(strings.Trim(trimmed, "[] "), trimmed)
		case strings.HasPrefix(trimmed, "#") || !strings.Contains(trimmed, "="):
			g.out = append(g.out, trimmed)
		default:
			g.field(trimmed)
		}
	}
	g.injectOmitted()

	return strings.TrimRight(strings.Join(g.out, "\n"), "\n") + "\n", nil
}

// ///////////////////////////////////////////////
// Generator
// ///////////////////////////////////////////////

type generator struct {
	docs    map[string]config.FieldDoc
	out     []string
	path    []string // current section, split on dots
	emitted map[string]bool
}

func (g *generator) section(name, header string) {
	g.injectOmitted()
	g.path = parseSectionPath(name)

	g.out = append(g.out, "", fmt.Sprintf("# ///// %s /////", sectionName(name)), "")
	if doc, ok := g.docs[name]; ok {
		g.comment(doc.Comment)
	}
	g.out = append(g.out, header)
}

func (g *generator) field(line string) {
	key := strings.TrimSpace(strings.SplitN(line, "=", 2)[0])
	full := g.key(key)
	g.emitted[full] = true

	doc, ok := g.docs[full]
	g.comment(doc.Comment)
	g.out = append(g.out, line)
	if ok {
		for _, alt := range doc.Alternatives {
			g.out = append(g.out, "# "+alt)
		}
	}
}

func (g *generator) key(k string) string {
	if len(g.path) == 0 {
		return k
	}
	return strings.Join(g.path, ".") + "." + k
}

func (g *generator) comment(text string) {
	if text == "" {
		return
	}
	for _, cl := range strings.Split(text, "\n") {
		g.out = append(g.out, "# "+cl)
	}
}

// injectOmitted writes documented keys of the current section that the
// encoder did not emit, sorted for stable output.
func (g *generator) injectOmitted() {
	if len(g.path) == 0 {
		return
	}
	prefix := strings.Join(g.path, ".") + "."

	var omitted []string
	for p := range g.docs {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(rest, ".") || g.emitted[p] {
			continue
		}
		omitted = append(omitted, p)
	}
	slices.Sort(omitted)

	for _, p := range omitted {
		doc := g.docs[p]
		g.out = append(g.out, "")
		g.comment(doc.Comment)
		for _, alt := range doc.Alternatives {
			g.out = append(g.out, "# "+alt)
		}
		g.emitted[p] = true
	}
}

// parseSectionPath splits a dotted section header into its segments.
func parseSectionPath(section string) []string {
	return strings.Split(section, ".")
}

// sectionName returns the last dotted segment of section, capitalized.
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
