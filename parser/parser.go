// Package parser adapts the tree-sitter bash grammar to the analyzer.
// Parsing never fails: malformed input degrades to a best-effort tree
// plus parse diagnostics, and downstream analysis continues on the
// partial tree.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
)

// Diagnostic describes one region the grammar could not parse.
// Line and Column are 1-based.
type Diagnostic struct {
	Message string
	Line    uint32
	Column  uint32
}

// Result is the outcome of a parse: a tree (possibly containing error
// nodes), the source it was parsed from, and any parse diagnostics.
// A Result with diagnostics is still usable; callers that care branch
// on HasErrors explicitly.
type Result struct {
	Tree        *sitter.Tree
	Source      []byte
	Diagnostics []Diagnostic
}

// Root returns the root node of the tree, or nil when parsing produced
// no tree at all.
func (r *Result) Root() *sitter.Node {
	if r == nil || r.Tree == nil {
		return nil
	}
	return r.Tree.RootNode()
}

// HasErrors reports whether the parse produced any diagnostics.
func (r *Result) HasErrors() bool {
	return r != nil && len(r.Diagnostics) > 0
}

// ShellParser parses shell source with the tree-sitter bash grammar.
// Parser instances are pooled so concurrent callers do not contend on
// a single grammar cursor.
type ShellParser struct {
	pool sync.Pool
}

// New creates a shell parser backed by a pool of tree-sitter parsers.
func New() *ShellParser {
	return &ShellParser{
		pool: sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(bash.GetLanguage())
				return p
			},
		},
	}
}

// Parse parses content into a Result. It never returns an error:
// unparseable regions become ERROR/MISSING nodes reported as
// diagnostics, and in the unlikely event tree-sitter itself fails the
// Result carries a nil tree and a single diagnostic.
func (p *ShellParser) Parse(content []byte) *Result {
	tsp := p.pool.Get().(*sitter.Parser)
	defer func() {
		tsp.Reset()
		p.pool.Put(tsp)
	}()

	tree, err := tsp.ParseCtx(context.Background(), nil, content)
	if err != nil {
		slog.Debug("tree-sitter parse failed", "error", err)
		return &Result{
			Source:      content,
			Diagnostics: []Diagnostic{{Message: fmt.Sprintf("parse failed: %v", err), Line: 1, Column: 1}},
		}
	}

	res := &Result{Tree: tree, Source: content}
	res.Diagnostics = collectDiagnostics(tree.RootNode())
	return res
}

// collectDiagnostics walks the tree and records every ERROR and
// MISSING node as a diagnostic.
func collectDiagnostics(root *sitter.Node) []Diagnostic {
	if root == nil || !root.HasError() {
		return nil
	}

	var diags []Diagnostic
	Walk(root, func(n *sitter.Node) bool {
		// Subtrees without errors cannot contain ERROR nodes.
		if !n.HasError() {
			return false
		}
		switch {
		case n.Type() == "ERROR":
			diags = append(diags, Diagnostic{
				Message: "syntax error",
				Line:    n.StartPoint().Row + 1,
				Column:  n.StartPoint().Column + 1,
			})
		case n.IsMissing():
			diags = append(diags, Diagnostic{
				Message: fmt.Sprintf("missing %s", n.Type()),
				Line:    n.StartPoint().Row + 1,
				Column:  n.StartPoint().Column + 1,
			})
		}
		return true
	})
	return diags
}
