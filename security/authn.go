package security

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// cliCredentialFlags carry a credential directly on a command line,
// where it is visible in the process table and shell history.
var cliCredentialFlags = []*regexp.Regexp{
	regexp.MustCompile(`\bsshpass\s+-p\s*\S`),
	regexp.MustCompile(`\bmysql\b.*\s-p\S`),
	regexp.MustCompile(`\bcurl\b.*\s(-u|--user)\s+\S+:\S+`),
}

// authFailures flags hardcoded credential comparisons, plaintext
// credential prompts, and credentials passed on command lines.
func (s *Suite) authFailures(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue

	// [ "$PASSWORD" = "literal" ] style comparisons.
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "binary_expression" {
			return true
		}
		text := n.Content(sc.src)
		if !strings.Contains(text, "=") {
			return true
		}
		var credSide, literalSide bool
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if varName := expandedName(c, sc.src); varName != "" && credentialName.MatchString(varName) {
				credSide = true
			} else if isLiteralValue(c, sc.src) {
				literalSide = true
			}
		}
		if credSide && literalSide {
			issues = append(issues, issue.Issue{
				Rule:        "HardcodedCredentialComparison",
				Category:    CategoryAuth,
				Severity:    issue.SeverityHigh,
				Description: "credential compared against a hardcoded literal; verify against a credential store instead",
				Location:    locate(n, sc.file),
			})
		}
		return true
	})

	for _, cmd := range collectCommands(root, sc.src) {
		if cmd.name == "read" {
			issues = append(issues, readFinding(cmd, sc)...)
		}
		// Single-bracket tests parse as a command named "[".
		if cmd.name == "[" || cmd.name == "test" {
			issues = append(issues, bracketComparisonFinding(cmd, sc)...)
		}
		for _, re := range cliCredentialFlags {
			if re.MatchString(cmd.text) {
				issues = append(issues, issue.Issue{
					Rule:        "CredentialOnCommandLine",
					Category:    CategoryAuth,
					Severity:    issue.SeverityHigh,
					Description: fmt.Sprintf("%s receives a credential on its command line; use a credential file or prompt", cmd.name),
					Location:    locate(cmd.node, sc.file),
				})
				break
			}
		}
	}
	return issues
}

// bracketComparisonFinding flags `[ "$PASS" = "literal" ]` shapes.
func bracketComparisonFinding(cmd command, sc *script) []issue.Issue {
	if !strings.Contains(cmd.text, "=") {
		return nil
	}
	var credSide, literalSide bool
	for i := 0; i < int(cmd.node.NamedChildCount()); i++ {
		arg := cmd.node.NamedChild(i)
		if varName := expandedName(arg, sc.src); varName != "" {
			if credentialName.MatchString(varName) {
				credSide = true
			}
			continue
		}
		if (arg.Type() == "string" || arg.Type() == "raw_string") && isLiteralValue(arg, sc.src) {
			literalSide = true
		}
	}
	if credSide && literalSide {
		return []issue.Issue{{
			Rule:        "HardcodedCredentialComparison",
			Category:    CategoryAuth,
			Severity:    issue.SeverityHigh,
			Description: "credential compared against a hardcoded literal; verify against a credential store instead",
			Location:    locate(cmd.node, sc.file),
		}}
	}
	return nil
}

// readFinding flags `read PASSWORD` without -s: the credential echoes
// to the terminal.
func readFinding(cmd command, sc *script) []issue.Issue {
	if strings.Contains(cmd.text, "-s") {
		return nil
	}
	for i := 0; i < int(cmd.node.NamedChildCount()); i++ {
		arg := cmd.node.NamedChild(i)
		if arg.Type() != "word" {
			continue
		}
		name := arg.Content(sc.src)
		if credentialName.MatchString(name) {
			return []issue.Issue{{
				Rule:        "PlaintextCredentialRead",
				Category:    CategoryAuth,
				Severity:    issue.SeverityMedium,
				Description: fmt.Sprintf("read into %q without -s echoes the credential; use read -s", name),
				Location:    locate(cmd.node, sc.file),
			}}
		}
	}
	return nil
}

// expandedName returns the variable name when n is a $var or ${var}
// expansion (possibly inside a string), or "".
func expandedName(n *sitter.Node, src []byte) string {
	name := ""
	parser.WalkNamed(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "simple_expansion", "expansion":
			for i := 0; i < int(c.NamedChildCount()); i++ {
				if v := c.NamedChild(i); v.Type() == "variable_name" {
					name = v.Content(src)
					return false
				}
			}
		}
		return name == ""
	})
	return name
}
