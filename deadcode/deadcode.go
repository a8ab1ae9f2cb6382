// Package deadcode finds code that can never run or is never used:
// statements after unconditional exits, functions nobody calls,
// variables nobody reads, and commented-out code.
package deadcode

import (
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// ErrNilContent is returned when Find is called without content.
var ErrNilContent = errors.New("deadcode: content is required")

// Options holds the tunables for commented-out-code detection.
type Options struct {
	// MinCommentRun is the minimum number of consecutive comment lines
	// before a run is considered for the CommentedCode rule.
	MinCommentRun int
	// CodeLikeRatio is the fraction of lines in a run that must look
	// like code for the run to be flagged.
	CodeLikeRatio float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MinCommentRun: 4,
		CodeLikeRatio: 0.5,
	}
}

// Detector runs the dead-code analyses. It is stateless apart from its
// options and safe for concurrent use.
type Detector struct {
	opts Options
	p    *parser.ShellParser
}

// New creates a detector with the given options. Zero-valued fields
// fall back to the defaults.
func New(opts Options) *Detector {
	def := DefaultOptions()
	if opts.MinCommentRun <= 0 {
		opts.MinCommentRun = def.MinCommentRun
	}
	if opts.CodeLikeRatio <= 0 {
		opts.CodeLikeRatio = def.CodeLikeRatio
	}
	return &Detector{opts: opts, p: parser.New()}
}

var defaultDetector = New(DefaultOptions())

// Find parses content and returns dead-code findings using the default
// options. Malformed input yields best-effort (possibly empty)
// results, never an error; only nil content is an error.
func Find(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultDetector.Find(content, filePath)
}

// Find parses content and returns dead-code findings.
func (d *Detector) Find(content []byte, filePath string) ([]issue.Issue, error) {
	if content == nil {
		return nil, ErrNilContent
	}
	return d.FindInResult(d.p.Parse(content), filePath), nil
}

// FindInResult runs the analyses over an existing parse result.
func (d *Detector) FindInResult(res *parser.Result, filePath string) []issue.Issue {
	root := res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue
	issues = append(issues, findUnreachable(root, res.Source, filePath)...)
	issues = append(issues, findUnusedFunctions(root, res.Source, filePath)...)
	issues = append(issues, findUnusedVariables(root, res.Source, filePath)...)
	issues = append(issues, d.findCommentedCode(root, res.Source, filePath)...)
	return issues
}

// blockTypes are the grammar nodes whose named children execute as a
// statement sequence.
var blockTypes = map[string]bool{
	"program":            true,
	"compound_statement": true,
	"do_group":           true,
	"subshell":           true,
	"if_statement":       true,
	"elif_clause":        true,
	"else_clause":        true,
	"case_item":          true,
}

// exitCommands unconditionally leave the current block.
var exitCommands = map[string]bool{
	"return":   true,
	"exit":     true,
	"break":    true,
	"continue": true,
}

// clauseTypes are alternative branches hanging off an if_statement;
// they are not sequential statements and an exit in the then-branch
// does not make them unreachable.
var clauseTypes = map[string]bool{
	"elif_clause": true,
	"else_clause": true,
}

// findUnreachable flags statements lexically after an unconditional
// exit at the same block depth. Exits nested inside a conditional do
// not taint statements after the enclosing conditional.
func findUnreachable(root *sitter.Node, source []byte, filePath string) []issue.Issue {
	var issues []issue.Issue

	parser.Walk(root, func(n *sitter.Node) bool {
		if !blockTypes[n.Type()] {
			return true
		}

		exitName := ""
		var exitLine uint32
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			t := child.Type()
			if t == "comment" || clauseTypes[t] {
				continue
			}
			if exitName != "" {
				line, col := parser.PointOf(child)
				issues = append(issues, issue.Issue{
					Rule:        "UnreachableCode",
					Severity:    issue.SeverityMedium,
					Description: fmt.Sprintf("statement can never execute: %q on line %d exits this block", exitName, exitLine),
					Location:    &issue.Location{File: filePath, Line: line, Column: col},
				})
				continue
			}
			stmt := parser.Unwrap(child)
			if name := parser.CommandName(stmt, source); exitCommands[name] {
				exitName = name
				exitLine, _ = parser.PointOf(child)
			}
		}
		return true
	})
	return issues
}

// findUnusedFunctions flags user-defined functions never referenced by
// name outside their own definition.
func findUnusedFunctions(root *sitter.Node, source []byte, filePath string) []issue.Issue {
	type def struct {
		node       *sitter.Node
		start, end uint32
	}
	defs := make(map[string]def)

	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() == "function_definition" {
			if name := parser.FunctionName(n, source); name != "" {
				if _, ok := defs[name]; !ok {
					defs[name] = def{node: n, start: n.StartByte(), end: n.EndByte()}
				}
			}
		}
		return true
	})
	if len(defs) == 0 {
		return nil
	}

	used := make(map[string]bool)
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "word" {
			return true
		}
		name := n.Content(source)
		d, ok := defs[name]
		if !ok || used[name] {
			return true
		}
		// References inside the function's own definition (its header
		// and recursive calls) do not count as use.
		if n.StartByte() >= d.start && n.EndByte() <= d.end {
			return true
		}
		used[name] = true
		return true
	})

	var issues []issue.Issue
	for name, d := range defs {
		if used[name] {
			continue
		}
		line, col := parser.PointOf(d.node)
		issues = append(issues, issue.Issue{
			Rule:        "UnusedFunction",
			Severity:    issue.SeverityMedium,
			Description: fmt.Sprintf("function %q is defined but never called", name),
			Location:    &issue.Location{File: filePath, Line: line, Column: col},
		})
	}
	return issues
}

// shellManagedVars are read by the shell itself; assigning them is a
// side effect, not a definition for def-use purposes.
var shellManagedVars = map[string]bool{
	"IFS": true, "PATH": true, "HOME": true,
	"PS1": true, "PS2": true, "PS4": true,
	"LANG": true, "LC_ALL": true,
	"HISTFILE": true, "HISTSIZE": true,
}

type varDef struct {
	node  *sitter.Node
	scope *sitter.Node // enclosing function_definition, nil at script level
}

// findUnusedVariables flags variables assigned but never read in their
// scope. Shell variables are global unless declared local, so uses of
// a script-level variable count from anywhere in the unit; uses of a
// function-level definition count only within that function.
func findUnusedVariables(root *sitter.Node, source []byte, filePath string) []issue.Issue {
	defs := make(map[string][]varDef)
	uses := make(map[string][]*sitter.Node)

	parser.WalkNamed(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "variable_assignment":
			// A `VAR=x cmd` prefix scopes the value to cmd's
			// environment; the command is the reader. Assignments under
			// a declaration_command were already recorded there.
			if p := n.Parent(); p != nil && (p.Type() == "command" || p.Type() == "declaration_command") {
				return true
			}
			recordAssignment(n, source, defs)
		case "declaration_command":
			keyword := ""
			if n.ChildCount() > 0 {
				keyword = n.Child(0).Content(source)
			}
			// Exported and readonly names are part of the script's
			// external contract; their assignments are not definitions.
			if keyword != "export" && keyword != "readonly" {
				for i := 0; i < int(n.NamedChildCount()); i++ {
					if c := n.NamedChild(i); c.Type() == "variable_assignment" {
						recordAssignment(c, source, defs)
					}
				}
			}
			// Keep walking: expansions inside the assignment values are
			// reads of other variables.
		case "variable_name":
			// A variable_name outside an assignment position is a read:
			// $x, ${x}, arithmetic, etc.
			if p := n.Parent(); p != nil {
				switch p.Type() {
				case "variable_assignment", "declaration_command", "for_statement":
					return true
				}
			}
			name := n.Content(source)
			uses[name] = append(uses[name], n)
		}
		return true
	})

	var issues []issue.Issue
	reported := make(map[string]bool)
	for name, defList := range defs {
		if shellManagedVars[name] {
			continue
		}
		for _, d := range defList {
			if isRead(d, uses[name]) {
				// One read anywhere in scope clears every definition of
				// the name in that scope.
				continue
			}
			key := name
			if d.scope != nil {
				key = parser.FunctionName(d.scope, source) + "/" + name
			}
			if reported[key] {
				continue
			}
			reported[key] = true
			line, col := parser.PointOf(d.node)
			issues = append(issues, issue.Issue{
				Rule:        "UnusedVariable",
				Severity:    issue.SeverityLow,
				Description: fmt.Sprintf("variable %q is assigned but never read", name),
				Location:    &issue.Location{File: filePath, Line: line, Column: col},
			})
		}
	}
	return issues
}

// recordAssignment registers a variable_assignment node as a definition.
func recordAssignment(n *sitter.Node, source []byte, defs map[string][]varDef) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(source)
	if name == "" {
		return
	}
	defs[name] = append(defs[name], varDef{node: n, scope: parser.EnclosingFunction(n)})
}

// isRead reports whether any use is visible from the definition's
// scope: same function for function-level definitions, anywhere in the
// unit for script-level ones.
func isRead(d varDef, uses []*sitter.Node) bool {
	for _, u := range uses {
		if d.scope == nil {
			return true
		}
		if u.StartByte() >= d.scope.StartByte() && u.EndByte() <= d.scope.EndByte() {
			return true
		}
	}
	return false
}
