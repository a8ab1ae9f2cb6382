package security

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// privilegedCommands mutate users, services, firewalls or ownership
// and should only run after an authorization check.
var privilegedCommands = map[string]bool{
	"useradd": true, "userdel": true, "usermod": true,
	"groupadd": true, "groupdel": true, "gpasswd": true,
	"chown": true, "chgrp": true,
	"mount": true, "umount": true,
	"systemctl": true, "service": true,
	"iptables": true, "nft": true, "ufw": true,
	"visudo": true, "setcap": true,
}

// authCheckMarkers show up in authorization guards: EUID/UID tests,
// `id -u`, `whoami`.
var authCheckMarkers = []string{"EUID", "UID", "id -u", "whoami"}

// accessControl flags privileged operations inside a function with no
// prior authorization check in that same function, and world-writable
// permission grants anywhere.
func (s *Suite) accessControl(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	var issues []issue.Issue

	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		fnName := parser.FunctionName(n, sc.src)
		for _, cmd := range collectCommands(n, sc.src) {
			if privilegedCommands[cmd.name] && !guardedBefore(cmd, n, sc.src) {
				issues = append(issues, issue.Issue{
					Rule:     "UnauthorizedPrivilegedOperation",
					Category: CategoryAccessControl,
					Severity: issue.SeverityMedium,
					Description: fmt.Sprintf("function %q runs %q without a prior authorization check",
						fnName, cmd.name),
					Location: locate(cmd.node, sc.file),
				})
			}
		}
		return true
	})

	for _, cmd := range collectCommands(root, sc.src) {
		if cmd.name != "chmod" {
			continue
		}
		if strings.Contains(cmd.text, "777") || strings.Contains(cmd.text, "a+rwx") {
			issues = append(issues, issue.Issue{
				Rule:        "WorldWritablePermissions",
				Category:    CategoryAccessControl,
				Severity:    issue.SeverityHigh,
				Description: "chmod grants world-writable permissions; restrict the mode",
				Location:    locate(cmd.node, sc.file),
			})
		}
	}
	return issues
}

// guardedBefore reports whether an authorization-check pattern appears
// in the function's text before cmd: an EUID/UID test, `id -u`, or
// `whoami`.
func guardedBefore(cmd command, fn *sitter.Node, src []byte) bool {
	prefix := fn.Content(src)
	if off := cmd.node.StartByte() - fn.StartByte(); int(off) < len(prefix) {
		prefix = prefix[:off]
	}
	for _, marker := range authCheckMarkers {
		if strings.Contains(prefix, marker) {
			return true
		}
	}
	return false
}
