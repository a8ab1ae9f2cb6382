package deadcode

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

type commentLine struct {
	line uint32 // 1-based
	col  uint32
	text string // comment body without the leading '#'
}

// findCommentedCode flags contiguous runs of comment lines that look
// like disabled code rather than prose.
func (d *Detector) findCommentedCode(root *sitter.Node, source []byte, filePath string) []issue.Issue {
	var comments []commentLine
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "comment" {
			return true
		}
		text := n.Content(source)
		if IsDocComment(text) {
			return true
		}
		line, col := parser.PointOf(n)
		comments = append(comments, commentLine{
			line: line,
			col:  col,
			text: strings.TrimPrefix(text, "#"),
		})
		return true
	})

	var issues []issue.Issue
	flush := func(run []commentLine) {
		if len(run) < d.opts.MinCommentRun {
			return
		}
		codeLike := 0
		for _, c := range run {
			if LooksLikeCode(c.text) {
				codeLike++
			}
		}
		if float64(codeLike)/float64(len(run)) < d.opts.CodeLikeRatio {
			return
		}
		issues = append(issues, issue.Issue{
			Rule:     "CommentedCode",
			Severity: issue.SeverityLow,
			Description: fmt.Sprintf("%d consecutive comment lines appear to be commented-out code; delete it, version control remembers",
				len(run)),
			Location: &issue.Location{File: filePath, Line: run[0].line, Column: run[0].col},
		})
	}

	var run []commentLine
	for _, c := range comments {
		if len(run) > 0 && c.line != run[len(run)-1].line+1 {
			flush(run)
			run = run[:0]
		}
		run = append(run, c)
	}
	flush(run)
	return issues
}

// IsDocComment reports whether a comment is structured documentation
// rather than a candidate for commented-out code: shebangs, shdoc-style
// `##` blocks, and shellcheck directives.
func IsDocComment(text string) bool {
	return strings.HasPrefix(text, "#!") ||
		strings.HasPrefix(text, "##") ||
		strings.HasPrefix(text, "# shellcheck")
}

// keywordPrefixes open shell control flow; a commented line starting
// with one strongly suggests disabled code. keywordExact are the bare
// closers, matched whole so prose like "done with setup" stays prose.
var (
	keywordPrefixes = []string{
		"if ", "elif ", "for ", "while ", "until ", "case ",
		"function ", "local ", "exit ", "return ",
	}
	keywordExact = map[string]bool{
		"fi": true, "then": true, "else": true, "do": true,
		"done": true, "esac": true, "return": true,
	}
)

// LooksLikeCode scores a single comment body with shell-shaped
// heuristics: control-flow keywords, assignment, expansion, pipes and
// braces. It is deliberately cheap and line-local.
func LooksLikeCode(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}

	if keywordExact[t] {
		return true
	}
	for _, kw := range keywordPrefixes {
		if strings.HasPrefix(t, kw) {
			return true
		}
	}
	if strings.ContainsAny(t, "{}") {
		return true
	}
	for _, sig := range []string{"$(", "${", "&&", "||", ";;", " | "} {
		if strings.Contains(t, sig) {
			return true
		}
	}
	if strings.HasSuffix(t, ";") || strings.HasSuffix(t, " do") || strings.HasSuffix(t, " then") {
		return true
	}
	// name=value with no surrounding spaces reads as an assignment,
	// not prose.
	if i := strings.IndexByte(t, '='); i > 0 {
		if !strings.ContainsAny(t[:i], " \t") && i+1 < len(t) && t[i+1] != ' ' {
			return true
		}
	}
	return false
}
