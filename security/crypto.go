package security

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// weakDigests and weakCiphers are primitives with known practical
// attacks.
var (
	weakDigests = map[string]bool{"md5sum": true, "md5": true, "sha1sum": true, "shasum": true}
	weakCipher  = regexp.MustCompile(`\b(-des3?\b|-rc4\b|-bf\b|des-ecb|rc4)`)
)

// insecureTransportFlags disable or downgrade transport security.
var insecureTransportFlags = []string{
	"--tlsv1.0", "--tlsv1.1", "--tlsv1 ", "--sslv2", "--sslv3", "-ssl3",
	"--insecure", " -k ", " -k\n",
}

// cryptoFailures flags hardcoded secret-shaped literals, weak
// hash/cipher primitives, and insecure transport settings.
func (s *Suite) cryptoFailures(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue

	// Hardcoded secret-shaped assignments: credential-named variable
	// set to a literal value.
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "variable_assignment" {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		valueNode := n.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			return true
		}
		name := nameNode.Content(sc.src)
		if !credentialName.MatchString(name) {
			return true
		}
		if !isLiteralValue(valueNode, sc.src) {
			return true
		}
		issues = append(issues, issue.Issue{
			Rule:     "HardcodedSecret",
			Category: CategoryCrypto,
			Severity: issue.SeverityHigh,
			Description: fmt.Sprintf("variable %q is assigned a hardcoded secret; read it from the environment or a secret store",
				name),
			Location: locate(n, sc.file),
		})
		return true
	})

	for _, cmd := range collectCommands(root, sc.src) {
		if weakDigests[cmd.name] {
			issues = append(issues, issue.Issue{
				Rule:        "WeakHashAlgorithm",
				Category:    CategoryCrypto,
				Severity:    issue.SeverityMedium,
				Description: fmt.Sprintf("%q is cryptographically broken; use sha256sum or stronger", cmd.name),
				Location:    locate(cmd.node, sc.file),
			})
		}
		if cmd.name == "openssl" {
			if weakDigests[opensslSubcommand(cmd.text)] || weakCipher.MatchString(cmd.text) {
				issues = append(issues, issue.Issue{
					Rule:        "WeakCipher",
					Category:    CategoryCrypto,
					Severity:    issue.SeverityHigh,
					Description: "openssl invocation uses a weak digest or cipher",
					Location:    locate(cmd.node, sc.file),
				})
			}
		}
		if cmd.name == "curl" || cmd.name == "wget" {
			padded := " " + cmd.text + "\n"
			for _, flag := range insecureTransportFlags {
				if strings.Contains(padded, flag) {
					issues = append(issues, issue.Issue{
						Rule:        "InsecureTransport",
						Category:    CategoryCrypto,
						Severity:    issue.SeverityHigh,
						Description: fmt.Sprintf("%s disables or downgrades transport security (%s)", cmd.name, strings.TrimSpace(flag)),
						Location:    locate(cmd.node, sc.file),
					})
					break
				}
			}
		}
	}
	return issues
}

// isLiteralValue reports whether an assignment value is a plain
// literal: a word or string with no expansion inside.
func isLiteralValue(n *sitter.Node, src []byte) bool {
	switch n.Type() {
	case "word", "raw_string", "number":
		return n.Content(src) != ""
	case "string":
		return !hasExpansion(n)
	default:
		return false
	}
}

// opensslSubcommand extracts the first argument of an openssl call.
func opensslSubcommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
