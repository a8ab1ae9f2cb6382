package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Walk visits root and its descendants in pre-order using an explicit
// stack, so pathologically deep input cannot overflow the call stack.
// fn returning false prunes the node's subtree.
func Walk(root *sitter.Node, fn func(*sitter.Node) bool) {
	if root == nil {
		return
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		// Push children in reverse so they pop left-to-right.
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
}

// WalkNamed is Walk restricted to named nodes (skipping punctuation
// and keyword tokens).
func WalkNamed(root *sitter.Node, fn func(*sitter.Node) bool) {
	Walk(root, func(n *sitter.Node) bool {
		if !n.IsNamed() {
			return true
		}
		return fn(n)
	})
}

// CommandName returns the name of a command node ("command" in the
// bash grammar), or "" when the node is not a command or has a
// non-literal name.
func CommandName(n *sitter.Node, source []byte) string {
	if n == nil || n.Type() != "command" {
		return ""
	}
	name := n.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return name.Content(source)
}

// Unwrap peels redirected_statement wrappers, returning the underlying
// statement (`foo > log` parses as a redirected_statement around the
// command).
func Unwrap(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "redirected_statement" {
		body := n.ChildByFieldName("body")
		if body == nil {
			return n
		}
		n = body
	}
	return n
}

// FunctionName returns the declared name of a function_definition
// node, or "".
func FunctionName(n *sitter.Node, source []byte) string {
	if n == nil || n.Type() != "function_definition" {
		return ""
	}
	name := n.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return name.Content(source)
}

// EnclosingFunction walks up from n to the nearest function_definition
// ancestor, or nil when n is at script level.
func EnclosingFunction(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "function_definition" {
			return p
		}
	}
	return nil
}

// PointOf converts a node's start point to a 1-based line/column pair.
func PointOf(n *sitter.Node) (line, col uint32) {
	return n.StartPoint().Row + 1, n.StartPoint().Column + 1
}
