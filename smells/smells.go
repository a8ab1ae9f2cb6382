// Package smells reports structural code smells and cognitive
// complexity for shell scripts: overlong functions, too many
// positional parameters, deep control nesting, and nesting-weighted
// complexity scores.
package smells

import (
	"errors"
	"fmt"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// ErrNilContent is returned when a detector entry point is called
// without content. Empty content is valid and yields empty results.
var ErrNilContent = errors.New("smells: content is required")

// Options holds every smell and complexity threshold.
type Options struct {
	// MaxBodyLines flags functions whose body spans more source lines.
	MaxBodyLines int
	// MaxParameters flags functions referencing a higher positional
	// parameter. Shell functions have no declared parameter list, so
	// the highest $N referenced is the function's parameter count.
	MaxParameters int
	// MaxNestingDepth flags control structures nested deeper.
	MaxNestingDepth int
	// ComplexityThreshold flags scopes whose cognitive score is higher.
	ComplexityThreshold int
	// BaseIncrement is added for every decision point.
	BaseIncrement int
	// NestingIncrement is additionally added per level of nesting at
	// the decision point.
	NestingIncrement int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxBodyLines:        50,
		MaxParameters:       7,
		MaxNestingDepth:     4,
		ComplexityThreshold: 15,
		BaseIncrement:       1,
		NestingIncrement:    1,
	}
}

// Detector runs the smell and complexity analyses.
type Detector struct {
	opts Options
	p    *parser.ShellParser
}

// New creates a detector; zero-valued options fall back to defaults.
func New(opts Options) *Detector {
	def := DefaultOptions()
	if opts.MaxBodyLines <= 0 {
		opts.MaxBodyLines = def.MaxBodyLines
	}
	if opts.MaxParameters <= 0 {
		opts.MaxParameters = def.MaxParameters
	}
	if opts.MaxNestingDepth <= 0 {
		opts.MaxNestingDepth = def.MaxNestingDepth
	}
	if opts.ComplexityThreshold <= 0 {
		opts.ComplexityThreshold = def.ComplexityThreshold
	}
	if opts.BaseIncrement <= 0 {
		opts.BaseIncrement = def.BaseIncrement
	}
	if opts.NestingIncrement <= 0 {
		opts.NestingIncrement = def.NestingIncrement
	}
	return &Detector{opts: opts, p: parser.New()}
}

var defaultDetector = New(DefaultOptions())

// Find parses content and returns smell findings with default options.
func Find(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultDetector.Find(content, filePath)
}

// ScoreComplexity parses content and returns per-scope cognitive
// complexity with default options.
func ScoreComplexity(content []byte, filePath string) ([]issue.ComplexityResult, error) {
	return defaultDetector.ScoreComplexity(content, filePath)
}

// Find parses content and returns smell findings.
func (d *Detector) Find(content []byte, filePath string) ([]issue.Issue, error) {
	if content == nil {
		return nil, ErrNilContent
	}
	return d.FindInResult(d.p.Parse(content), filePath), nil
}

// FindInResult runs the smell analyses over an existing parse result.
func (d *Detector) FindInResult(res *parser.Result, filePath string) []issue.Issue {
	root := res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue
	issues = append(issues, d.findLongMethods(root, res.Source, filePath)...)
	issues = append(issues, d.findTooManyParameters(root, res.Source, filePath)...)
	issues = append(issues, d.findDeepNesting(root, res.Source, filePath)...)
	for _, sc := range d.scoreScopes(res) {
		if sc.score > d.opts.ComplexityThreshold {
			line, col := uint32(1), uint32(1)
			if sc.node != nil {
				line, col = parser.PointOf(sc.node)
			}
			issues = append(issues, issue.Issue{
				Rule:     "HighComplexity",
				Severity: issue.SeverityMedium,
				Description: fmt.Sprintf("%s has cognitive complexity %d (threshold %d); split it up",
					sc.name, sc.score, d.opts.ComplexityThreshold),
				Location: &issue.Location{File: filePath, Line: line, Column: col},
			})
		}
	}
	return issues
}

// findLongMethods flags functions whose body spans too many lines.
func (d *Detector) findLongMethods(root *sitter.Node, source []byte, filePath string) []issue.Issue {
	var issues []issue.Issue
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		body := n.ChildByFieldName("body")
		if body == nil {
			return true
		}
		lines := int(body.EndPoint().Row-body.StartPoint().Row) + 1
		if lines > d.opts.MaxBodyLines {
			name := parser.FunctionName(n, source)
			line, col := parser.PointOf(n)
			issues = append(issues, issue.Issue{
				Rule:     "LongMethod",
				Severity: issue.SeverityMedium,
				Description: fmt.Sprintf("function %q is %d lines long (max %d)",
					name, lines, d.opts.MaxBodyLines),
				Location: &issue.Location{File: filePath, Line: line, Column: col},
			})
		}
		return true
	})
	return issues
}

// findTooManyParameters flags functions whose highest referenced
// positional parameter exceeds the threshold.
func (d *Detector) findTooManyParameters(root *sitter.Node, source []byte, filePath string) []issue.Issue {
	var issues []issue.Issue
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		count := positionalParameterCount(n, source)
		if count > d.opts.MaxParameters {
			name := parser.FunctionName(n, source)
			line, col := parser.PointOf(n)
			issues = append(issues, issue.Issue{
				Rule:     "TooManyParameters",
				Severity: issue.SeverityMedium,
				Description: fmt.Sprintf("function %q takes %d positional parameters (max %d)",
					name, count, d.opts.MaxParameters),
				Location: &issue.Location{File: filePath, Line: line, Column: col},
			})
		}
		return true
	})
	return issues
}

// positionalParameterCount returns the highest positional parameter
// ($1..$N, ${N}) referenced inside fn.
func positionalParameterCount(fn *sitter.Node, source []byte) int {
	max := 0
	parser.WalkNamed(fn, func(n *sitter.Node) bool {
		if n.Type() != "variable_name" {
			return true
		}
		if idx, err := strconv.Atoi(n.Content(source)); err == nil && idx > max {
			max = idx
		}
		return true
	})
	return max
}

// controlTypes nest for the purposes of the DeepNesting rule and the
// cognitive-complexity nesting penalty.
var controlTypes = map[string]bool{
	"if_statement":          true,
	"while_statement":       true,
	"for_statement":         true,
	"c_style_for_statement": true,
	"case_statement":        true,
}

// findDeepNesting flags the first control structure per scope whose
// nesting depth exceeds the threshold. The walk keeps its own stack;
// arbitrarily deep input cannot overflow the call stack.
func (d *Detector) findDeepNesting(root *sitter.Node, source []byte, filePath string) []issue.Issue {
	var issues []issue.Issue
	reported := make(map[string]bool)

	type frame struct {
		node  *sitter.Node
		depth int
	}
	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		depth := f.depth
		if controlTypes[f.node.Type()] {
			depth++
			if depth > d.opts.MaxNestingDepth {
				scope := "<script>"
				if fn := parser.EnclosingFunction(f.node); fn != nil {
					scope = parser.FunctionName(fn, source)
				}
				if !reported[scope] {
					reported[scope] = true
					line, col := parser.PointOf(f.node)
					issues = append(issues, issue.Issue{
						Rule:     "DeepNesting",
						Severity: issue.SeverityMedium,
						Description: fmt.Sprintf("control structures in %s nest %d deep (max %d)",
							scope, depth, d.opts.MaxNestingDepth),
						Location: &issue.Location{File: filePath, Line: line, Column: col},
					})
				}
				// Deeper nodes in this subtree would only repeat the
				// finding.
				continue
			}
		}
		for i := int(f.node.ChildCount()) - 1; i >= 0; i-- {
			if c := f.node.Child(i); c != nil {
				stack = append(stack, frame{c, depth})
			}
		}
	}
	return issues
}
