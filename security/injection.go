package security

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
)

var (
	sqlKeyword = regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|create)\b`)
	sqlClients = map[string]bool{"mysql": true, "psql": true, "sqlite3": true}
	// ldapFilter matches the parenthesized attribute=value filter shape.
	ldapFilter = regexp.MustCompile(`\([&|!]?\s*\w+=`)
)

// injection flags dynamic command evaluation, concatenated SQL, LDAP
// filter construction and path construction from unsanitized input.
func (s *Suite) injection(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue
	for _, cmd := range collectCommands(root, sc.src) {
		switch cmd.name {
		case "eval":
			issues = append(issues, evalFinding(cmd, sc)...)
		case "sh", "bash", "zsh":
			if strings.Contains(cmd.text, "-c") && hasUnsanitizedExpansion(cmd.node, sc.src) {
				issues = append(issues, issue.Issue{
					Rule:        "DynamicCommandExecution",
					Category:    CategoryInjection,
					Severity:    issue.SeverityCritical,
					Description: fmt.Sprintf("%s -c executes a string built from unsanitized input", cmd.name),
					Location:    locate(cmd.node, sc.file),
				})
			}
		case "ldapsearch":
			if ldapFilter.MatchString(cmd.text) && hasUnsanitizedExpansion(cmd.node, sc.src) {
				issues = append(issues, issue.Issue{
					Rule:        "LDAPFilterInjection",
					Category:    CategoryInjection,
					Severity:    issue.SeverityHigh,
					Description: "LDAP filter is built from unsanitized input",
					Location:    locate(cmd.node, sc.file),
				})
			}
		}

		if sqlClients[cmd.name] {
			issues = append(issues, sqlFinding(cmd, sc)...)
		}
	}
	issues = append(issues, injectionPaths(root, sc)...)
	return issues
}

// evalFinding classifies an eval call: interpolated input is Critical,
// a purely literal eval is still worth a Low note.
func evalFinding(cmd command, sc *script) []issue.Issue {
	if hasUnsanitizedExpansion(cmd.node, sc.src) {
		return []issue.Issue{{
			Rule:        "EvalInjection",
			Category:    CategoryInjection,
			Severity:    issue.SeverityCritical,
			Description: "eval executes a string built from unsanitized input",
			Location:    locate(cmd.node, sc.file),
		}}
	}
	if hasExpansion(cmd.node) {
		// Sanitized input still reaches eval; keep it visible.
		return []issue.Issue{{
			Rule:        "DynamicEvaluation",
			Category:    CategoryInjection,
			Severity:    issue.SeverityMedium,
			Description: "eval executes dynamically constructed input",
			Location:    locate(cmd.node, sc.file),
		}}
	}
	return []issue.Issue{{
		Rule:        "DynamicEvaluation",
		Category:    CategoryInjection,
		Severity:    issue.SeverityLow,
		Description: "eval of a literal; prefer direct invocation",
		Location:    locate(cmd.node, sc.file),
	}}
}

// sqlFinding flags SQL statements concatenated from expansions. A
// parameterized invocation (psql -v name=value feeding a prepared
// script) interpolates nothing into the statement text and is not
// flagged Critical.
func sqlFinding(cmd command, sc *script) []issue.Issue {
	var issues []issue.Issue
	for i := 0; i < int(cmd.node.NamedChildCount()); i++ {
		arg := cmd.node.NamedChild(i)
		if arg.Type() != "string" && arg.Type() != "raw_string" {
			continue
		}
		text := arg.Content(sc.src)
		if !sqlKeyword.MatchString(text) {
			continue
		}
		if hasExpansion(arg) && !sanitizedExpansion(arg, sc.src) {
			issues = append(issues, issue.Issue{
				Rule:        "SQLStringConcatenation",
				Category:    CategoryInjection,
				Severity:    issue.SeverityCritical,
				Description: fmt.Sprintf("SQL passed to %s is concatenated from unsanitized input; bind parameters instead", cmd.name),
				Location:    locate(arg, sc.file),
			})
		}
	}
	return issues
}

// hasUnsanitizedExpansion reports whether the subtree interpolates
// input without a visible sanitation step.
func hasUnsanitizedExpansion(n *sitter.Node, src []byte) bool {
	return hasExpansion(n) && !sanitizedExpansion(n, src)
}

// pathCommands take filesystem paths; handing them a path
// concatenated from unsanitized input enables traversal.
var pathCommands = map[string]bool{"cat": true, "rm": true, "cp": true, "mv": true, "tee": true, "source": true}

// injectionPaths flags path construction from unsanitized expansions
// into file commands.
func injectionPaths(root *sitter.Node, sc *script) []issue.Issue {
	var issues []issue.Issue
	for _, cmd := range collectCommands(root, sc.src) {
		if !pathCommands[cmd.name] {
			continue
		}
		for i := 0; i < int(cmd.node.NamedChildCount()); i++ {
			arg := cmd.node.NamedChild(i)
			if arg.Type() != "concatenation" && arg.Type() != "string" {
				continue
			}
			text := arg.Content(sc.src)
			if strings.Contains(text, "/") && hasUnsanitizedExpansion(arg, sc.src) {
				issues = append(issues, issue.Issue{
					Rule:        "PathConstruction",
					Category:    CategoryInjection,
					Severity:    issue.SeverityMedium,
					Description: fmt.Sprintf("%s path is built from unsanitized input; validate or sanitize it", cmd.name),
					Location:    locate(arg, sc.file),
				})
				break
			}
		}
	}
	return issues
}
