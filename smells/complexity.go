package smells

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// ScriptScope names the pseudo-scope for top-level statements outside
// any function.
const ScriptScope = "<script>"

// ScoreComplexity parses content and returns the cognitive complexity
// of every function plus the top-level script scope.
func (d *Detector) ScoreComplexity(content []byte, filePath string) ([]issue.ComplexityResult, error) {
	if content == nil {
		return nil, ErrNilContent
	}
	return d.ScoreInResult(d.p.Parse(content)), nil
}

// ScoreInResult computes cognitive complexity over an existing parse
// result.
func (d *Detector) ScoreInResult(res *parser.Result) []issue.ComplexityResult {
	scopes := d.scoreScopes(res)
	results := make([]issue.ComplexityResult, 0, len(scopes))
	for _, sc := range scopes {
		results = append(results, issue.ComplexityResult{
			Scope:   sc.name,
			Score:   sc.score,
			Factors: sc.factors,
		})
	}
	return results
}

type scopeScore struct {
	name    string
	node    *sitter.Node
	score   int
	factors map[string]int
}

// scoreScopes walks every function body and the top-level statements,
// scoring each as its own scope.
func (d *Detector) scoreScopes(res *parser.Result) []scopeScore {
	root := res.Root()
	if root == nil {
		return nil
	}
	source := res.Source

	var scopes []scopeScore
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		name := parser.FunctionName(n, source)
		if name == "" {
			name = ScriptScope
		}
		body := n.ChildByFieldName("body")
		score, factors := d.scoreBody(body, source)
		scopes = append(scopes, scopeScore{name: name, node: n, score: score, factors: factors})
		// Nested function definitions are scored as their own scope by
		// this same walk.
		return true
	})

	score, factors := d.scoreBody(root, source)
	scopes = append(scopes, scopeScore{name: ScriptScope, node: root, score: score, factors: factors})
	return scopes
}

// scoreBody accumulates the nesting-weighted cognitive score of one
// scope. Each branching construct adds BaseIncrement plus
// NestingIncrement per level of control nesting at its position, so a
// chain of sequential branches scores far lower than the same number
// nested inside each other. Boolean short-circuits, negations, extra
// case arms, elif/else clauses and trap handlers add a flat
// BaseIncrement. Traversal is iterative.
func (d *Detector) scoreBody(body *sitter.Node, source []byte) (int, map[string]int) {
	factors := map[string]int{}
	if body == nil {
		return 0, factors
	}
	base := d.opts.BaseIncrement
	nest := d.opts.NestingIncrement

	score := 0
	add := func(kind string, amount int) {
		score += amount
		factors[kind] += amount
	}

	type frame struct {
		node  *sitter.Node
		depth int
	}
	stack := []frame{{body, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, depth := f.node, f.depth

		// Inner functions are separate scopes.
		if n != body && n.Type() == "function_definition" {
			continue
		}

		childDepth := depth
		switch n.Type() {
		case "if_statement", "while_statement", "for_statement", "c_style_for_statement":
			kind := "loops"
			if n.Type() == "if_statement" {
				kind = "branches"
			}
			add(kind, base)
			if depth > 0 {
				add("nesting", depth*nest)
			}
			childDepth = depth + 1
		case "case_statement":
			add("switches", base)
			if depth > 0 {
				add("nesting", depth*nest)
			}
			arms := 0
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if n.NamedChild(i).Type() == "case_item" {
					arms++
				}
			}
			if arms > 1 {
				add("switches", (arms-1)*base)
			}
			childDepth = depth + 1
		case "elif_clause", "else_clause":
			add("branches", base)
		case "list":
			// `a && b` / `a || b` short-circuits are decision points.
			add("boolean-ops", base)
		case "negated_command":
			add("boolean-ops", base)
		case "command":
			if parser.CommandName(n, source) == "trap" {
				add("handlers", base)
			}
		}

		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, frame{c, childDepth})
			}
		}
	}
	return score, factors
}
