package security

import (
	"strings"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// credentialStores are files and commands that expose stored
// credentials when read or exported.
var credentialStores = []string{
	"/etc/shadow",
	"/etc/gshadow",
	".aws/credentials",
	".docker/config.json",
	".netrc",
	"id_rsa",
}

// attackPatterns matches recognizable attack techniques and tags each
// finding with its MITRE ATT&CK technique identifier.
func (s *Suite) attackPatterns(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue
	cmds := collectCommands(root, sc.src)

	for _, cmd := range cmds {
		text := cmd.text
		// A reverse shell's /dev/tcp target lives in the redirect, not
		// in the command node itself.
		if p := cmd.node.Parent(); p != nil && p.Type() == "redirected_statement" {
			text = p.Content(sc.src)
		}

		// Encoded-command execution: base64/xxd decoded into a shell.
		if (cmd.name == "base64" || cmd.name == "xxd") && pipesIntoShell(cmd, sc) {
			issues = append(issues, issue.Issue{
				Rule:        "ObfuscatedExecution",
				Category:    TechniqueObfuscation,
				Severity:    issue.SeverityHigh,
				Description: "encoded payload is decoded and executed; obfuscated execution",
				Location:    locate(cmd.node, sc.file),
			})
		}

		// Reverse shell over /dev/tcp.
		if strings.Contains(text, "/dev/tcp/") && (cmd.name == "bash" || cmd.name == "sh" || cmd.name == "exec") {
			issues = append(issues, issue.Issue{
				Rule:        "ReverseShellPattern",
				Category:    TechniqueUnixShell,
				Severity:    issue.SeverityCritical,
				Description: "interactive shell bound to /dev/tcp; reverse-shell pattern",
				Location:    locate(cmd.node, sc.file),
			})
		}

		// Shell history clearing.
		if (cmd.name == "history" && strings.Contains(text, "-c")) ||
			(cmd.name == "unset" && strings.Contains(text, "HISTFILE")) ||
			(cmd.name == "shred" && strings.Contains(text, "history")) {
			issues = append(issues, issue.Issue{
				Rule:        "HistoryClearing",
				Category:    TechniqueClearHistory,
				Severity:    issue.SeverityMedium,
				Description: "shell history is cleared or disabled; indicator removal",
				Location:    locate(cmd.node, sc.file),
			})
		}

		// Credential-store access or export.
		for _, store := range credentialStores {
			if strings.Contains(text, store) {
				issues = append(issues, issue.Issue{
					Rule:        "CredentialHarvesting",
					Category:    TechniqueUnsecuredCreds,
					Severity:    issue.SeverityHigh,
					Description: "script reads a credential store (" + store + ")",
					Location:    locate(cmd.node, sc.file),
				})
				break
			}
		}

		// Environment exfiltration: env/printenv piped into a network
		// client.
		if (cmd.name == "env" || cmd.name == "printenv") && pipesInto(cmd, sc, httpClients) {
			issues = append(issues, issue.Issue{
				Rule:        "CredentialExport",
				Category:    TechniqueUnsecuredCreds,
				Severity:    issue.SeverityHigh,
				Description: "process environment is sent to the network",
				Location:    locate(cmd.node, sc.file),
			})
		}
	}
	return issues
}

// pipesIntoShell reports whether cmd's pipeline later feeds a shell
// interpreter.
func pipesIntoShell(cmd command, sc *script) bool {
	return pipesInto(cmd, sc, shellInterpreters)
}

// pipesInto reports whether a later stage of cmd's pipeline is one of
// the given commands.
func pipesInto(cmd command, sc *script, targets map[string]bool) bool {
	p := cmd.node.Parent()
	for p != nil && p.Type() == "redirected_statement" {
		p = p.Parent()
	}
	if p == nil || p.Type() != "pipeline" {
		return false
	}
	seen := false
	for i := 0; i < int(p.NamedChildCount()); i++ {
		stage := parser.Unwrap(p.NamedChild(i))
		if stage.Type() != "command" {
			continue
		}
		name := parser.CommandName(stage, sc.src)
		if stage.Equal(cmd.node) {
			seen = true
			continue
		}
		if seen && targets[name] {
			return true
		}
	}
	return false
}
