package parser

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidScript(t *testing.T) {
	p := New()
	res := p.Parse([]byte("echo hello\nls -la\n"))

	require.NotNil(t, res)
	require.NotNil(t, res.Root())
	assert.Equal(t, "program", res.Root().Type())
	assert.False(t, res.HasErrors())
	assert.Empty(t, res.Diagnostics)
}

func TestParse_EmptyInput(t *testing.T) {
	p := New()
	res := p.Parse([]byte{})

	require.NotNil(t, res)
	require.NotNil(t, res.Root())
	assert.False(t, res.HasErrors())
}

func TestParse_MalformedInput(t *testing.T) {
	p := New()
	res := p.Parse([]byte("if [ ; then ((\ncase\n"))

	require.NotNil(t, res, "malformed input still yields a usable result")
	require.NotNil(t, res.Root())
	assert.True(t, res.HasErrors())
	assert.NotEmpty(t, res.Diagnostics)
	for _, d := range res.Diagnostics {
		assert.NotEmpty(t, d.Message)
		assert.GreaterOrEqual(t, d.Line, uint32(1), "diagnostic lines are 1-based")
	}
}

func TestParse_ReusesParsers(t *testing.T) {
	p := New()

	// Sequential parses through the pool must stay independent.
	first := p.Parse([]byte("echo one\n"))
	second := p.Parse([]byte("echo two\n"))

	assert.Equal(t, "echo one\n", string(first.Source))
	assert.Equal(t, "echo two\n", string(second.Source))
	assert.Equal(t, uint32(1), first.Root().ChildCount())
}

func TestWalk_VisitsAllNodes(t *testing.T) {
	p := New()
	res := p.Parse([]byte("foo() {\n  echo hi\n}\nfoo\n"))

	var types []string
	Walk(res.Root(), func(n *sitter.Node) bool {
		types = append(types, n.Type())
		return true
	})

	assert.Contains(t, types, "function_definition")
	assert.Contains(t, types, "command")
}

func TestWalk_PrunesSubtree(t *testing.T) {
	p := New()
	res := p.Parse([]byte("foo() {\n  echo inside\n}\n"))

	var sawBody bool
	Walk(res.Root(), func(n *sitter.Node) bool {
		if n.Type() == "command" {
			sawBody = true
		}
		return n.Type() != "function_definition"
	})

	assert.False(t, sawBody, "returning false must skip the node's subtree")
}

func TestCommandName(t *testing.T) {
	src := []byte("tar -czf out.tgz data\n")
	p := New()
	res := p.Parse(src)

	var name string
	WalkNamed(res.Root(), func(n *sitter.Node) bool {
		if n.Type() == "command" {
			name = CommandName(n, src)
		}
		return true
	})
	assert.Equal(t, "tar", name)
}

func TestFunctionName(t *testing.T) {
	src := []byte("function deploy {\n  echo go\n}\n")
	p := New()
	res := p.Parse(src)

	var name string
	WalkNamed(res.Root(), func(n *sitter.Node) bool {
		if n.Type() == "function_definition" {
			name = FunctionName(n, src)
		}
		return true
	})
	assert.Equal(t, "deploy", name)
}

func TestEnclosingFunction(t *testing.T) {
	src := []byte("outer() {\n  rm -rf /tmp/x\n}\nrm -rf /tmp/y\n")
	p := New()
	res := p.Parse(src)

	var inFunc, atTop int
	WalkNamed(res.Root(), func(n *sitter.Node) bool {
		if n.Type() == "command" {
			if EnclosingFunction(n) != nil {
				inFunc++
			} else {
				atTop++
			}
		}
		return true
	})
	assert.Equal(t, 1, inFunc)
	assert.Equal(t, 1, atTop)
}

func TestPointOf(t *testing.T) {
	src := []byte("echo a\necho b\n")
	p := New()
	res := p.Parse(src)

	second := res.Root().NamedChild(1)
	require.NotNil(t, second)
	line, col := PointOf(second)
	assert.Equal(t, uint32(2), line)
	assert.Equal(t, uint32(1), col)
}
