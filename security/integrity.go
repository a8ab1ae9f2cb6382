package security

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// verificationBypassFlags disable package or transfer verification.
var verificationBypassFlags = []string{
	"--nosignature",
	"--no-check-certificate",
	"--allow-unauthenticated",
	"--allow-untrusted",
	"--trusted-host",
	"http.sslVerify=false",
	"--no-gpg-checks",
	"--nogpgcheck",
}

// verifierCommands indicate the script checks what it downloaded.
var verifierCommands = map[string]bool{
	"sha256sum": true, "sha512sum": true, "b2sum": true,
	"gpg": true, "gpgv": true, "cosign": true, "minisign": true,
}

// shellInterpreters execute whatever is piped into them.
var shellInterpreters = map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true}

// integrityFailures flags verification bypasses, decode-then-execute
// chains, piping downloads into a shell, and executing a downloaded
// file that was never verified.
func (s *Suite) integrityFailures(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue
	cmds := collectCommands(root, sc.src)

	hasVerifier := false
	for _, cmd := range cmds {
		if verifierCommands[cmd.name] {
			hasVerifier = true
		}
		for _, flag := range verificationBypassFlags {
			if strings.Contains(cmd.text, flag) {
				issues = append(issues, issue.Issue{
					Rule:        "VerificationDisabled",
					Category:    CategoryIntegrity,
					Severity:    issue.SeverityHigh,
					Description: fmt.Sprintf("%s disables integrity verification (%s)", cmd.name, flag),
					Location:    locate(cmd.node, sc.file),
				})
				break
			}
		}
	}

	issues = append(issues, pipelineFindings(root, sc)...)
	issues = append(issues, downloadExecFindings(cmds, hasVerifier, sc)...)
	return issues
}

// pipelineFindings inspects pipelines for download-to-shell and
// decode-to-shell shapes.
func pipelineFindings(root *sitter.Node, sc *script) []issue.Issue {
	var issues []issue.Issue
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "pipeline" {
			return true
		}
		var names []string
		var stages []*sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			stage := parser.Unwrap(n.NamedChild(i))
			if stage.Type() == "command" {
				names = append(names, parser.CommandName(stage, sc.src))
				stages = append(stages, stage)
			}
		}
		for i, name := range names {
			if !shellInterpreters[name] {
				continue
			}
			for j := 0; j < i; j++ {
				switch names[j] {
				case "curl", "wget":
					issues = append(issues, issue.Issue{
						Rule:        "RemotePipeToShell",
						Category:    CategoryIntegrity,
						Severity:    issue.SeverityCritical,
						Description: "remote content is piped straight into a shell with no verification",
						Location:    locate(stages[j], sc.file),
					})
				case "base64", "openssl":
					issues = append(issues, issue.Issue{
						Rule:        "DecodeThenExecute",
						Category:    CategoryIntegrity,
						Severity:    issue.SeverityHigh,
						Description: "decoded data is executed as code",
						Location:    locate(stages[j], sc.file),
					})
				}
			}
		}
		return true
	})
	return issues
}

// downloadExecFindings flags scripts that download to a file and later
// execute it without any verification step in between.
func downloadExecFindings(cmds []command, hasVerifier bool, sc *script) []issue.Issue {
	if hasVerifier {
		return nil
	}

	downloaded := map[string]*sitter.Node{}
	for _, cmd := range cmds {
		if cmd.name != "curl" && cmd.name != "wget" {
			continue
		}
		if target := downloadTarget(cmd); target != "" {
			downloaded[target] = cmd.node
		}
	}
	if len(downloaded) == 0 {
		return nil
	}

	var issues []issue.Issue
	for _, cmd := range cmds {
		// Execution is the downloaded file showing up in command
		// position: ./installer.sh, or `sh installer.sh`.
		name := strings.TrimPrefix(cmd.name, "./")
		if _, ok := downloaded[name]; !ok {
			if !shellInterpreters[cmd.name] {
				continue
			}
			name = ""
			for f := range downloaded {
				if strings.Contains(cmd.text, f) {
					name = f
					break
				}
			}
			if name == "" {
				continue
			}
		}
		issues = append(issues, issue.Issue{
			Rule:        "UnverifiedDownloadExecution",
			Category:    CategoryIntegrity,
			Severity:    issue.SeverityHigh,
			Description: fmt.Sprintf("downloaded file %q is executed without checksum or signature verification", name),
			Location:    locate(cmd.node, sc.file),
		})
	}
	return issues
}

// downloadTarget extracts the output filename of a curl -o / wget -O
// invocation.
func downloadTarget(cmd command) string {
	fields := strings.Fields(cmd.text)
	for i, f := range fields {
		if (f == "-o" || f == "-O" || f == "--output") && i+1 < len(fields) {
			return strings.TrimPrefix(fields[i+1], "./")
		}
	}
	return ""
}
