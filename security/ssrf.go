package security

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// metadataEndpoints are cloud instance-metadata and link-local
// addresses; a request to one from script input is a classic SSRF
// pivot.
var metadataEndpoints = []string{
	"169.254.169.254",
	"metadata.google.internal",
	"metadata.azure.com",
	"100.100.100.200",
	"[fd00:ec2::254]",
}

// httpClients issue network requests.
var httpClients = map[string]bool{"curl": true, "wget": true}

// ssrf flags requests whose target comes from unvalidated input,
// requests to internal metadata endpoints, and local-file URI schemes
// in network client calls.
func (s *Suite) ssrf(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	// A regex match counts as validation for the tested variable only;
	// other request targets in the same script stay unvalidated.
	validated := validatedVariables(root, sc)

	var issues []issue.Issue
	for _, cmd := range collectCommands(root, sc.src) {
		if !httpClients[cmd.name] {
			continue
		}

		for _, ep := range metadataEndpoints {
			if strings.Contains(cmd.text, ep) {
				issues = append(issues, issue.Issue{
					Rule:        "InternalAddressRequest",
					Category:    CategorySSRF,
					Severity:    issue.SeverityHigh,
					Description: fmt.Sprintf("%s targets internal metadata endpoint %s", cmd.name, ep),
					Location:    locate(cmd.node, sc.file),
				})
				break
			}
		}

		if strings.Contains(cmd.text, "file://") {
			issues = append(issues, issue.Issue{
				Rule:        "FileSchemeRequest",
				Category:    CategorySSRF,
				Severity:    issue.SeverityMedium,
				Description: fmt.Sprintf("%s uses a file:// URI; local file access through a network client", cmd.name),
				Location:    locate(cmd.node, sc.file),
			})
		}

		if name, fromInput := requestTargetVariable(cmd, sc); fromInput && !validated[name] {
			issues = append(issues, issue.Issue{
				Rule:        "UnvalidatedRequestTarget",
				Category:    CategorySSRF,
				Severity:    issue.SeverityMedium,
				Description: fmt.Sprintf("%s request URL comes from unvalidated input", cmd.name),
				Location:    locate(cmd.node, sc.file),
			})
		}
	}
	return issues
}

// requestTargetVariable returns the variable the client's URL argument
// expands, and whether the target comes from an expansion at all. An
// unextractable name with fromInput true is still unvalidated input.
func requestTargetVariable(cmd command, sc *script) (name string, fromInput bool) {
	for i := 0; i < int(cmd.node.NamedChildCount()); i++ {
		arg := cmd.node.NamedChild(i)
		switch arg.Type() {
		case "simple_expansion", "expansion":
			return expandedName(arg, sc.src), true
		case "string", "concatenation":
			text := arg.Content(sc.src)
			if strings.HasPrefix(strings.Trim(text, `"'`), "$") || strings.Contains(text, "://$") {
				return expandedName(arg, sc.src), true
			}
			if hasExpansion(arg) && strings.Contains(text, "://") {
				return expandedName(arg, sc.src), true
			}
		}
	}
	return "", false
}

// validatedVariables collects every variable name tested with a =~
// regex match ([[ "$url" =~ pattern ]]) anywhere in the unit.
func validatedVariables(root *sitter.Node, sc *script) map[string]bool {
	vars := map[string]bool{}
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "binary_expression" || !strings.Contains(n.Content(sc.src), "=~") {
			return true
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if name := expandedName(n.NamedChild(i), sc.src); name != "" {
				vars[name] = true
			}
		}
		return true
	})
	return vars
}
