package security

import (
	"fmt"

	"github.com/arch-stack/shellaudit/issue"
)

// auditedCommands are security-relevant state changes that deserve an
// audit trail.
var auditedCommands = map[string]bool{
	"useradd": true, "userdel": true, "usermod": true,
	"passwd": true, "chpasswd": true,
	"visudo": true, "iptables": true, "nft": true,
	"setenforce": true, "auditctl": true,
}

// auditSinks count as audit logging when they appear anywhere in the
// unit.
var auditSinks = map[string]bool{"logger": true, "auditctl": true, "systemd-cat": true}

// logSinks write human-readable output where a secret must never land.
var logSinks = map[string]bool{"echo": true, "printf": true}

// loggingFailures flags security-relevant changes with no audit call
// in the unit, and credentials written to a human-readable sink.
func (s *Suite) loggingFailures(sc *script) []issue.Issue {
	root := sc.res.Root()
	if root == nil {
		return nil
	}

	cmds := collectCommands(root, sc.src)

	hasAuditSink := false
	for _, cmd := range cmds {
		if auditSinks[cmd.name] {
			hasAuditSink = true
			break
		}
	}

	var issues []issue.Issue
	for _, cmd := range cmds {
		if auditedCommands[cmd.name] && !hasAuditSink {
			issues = append(issues, issue.Issue{
				Rule:        "MissingAuditLog",
				Category:    CategoryLogging,
				Severity:    issue.SeverityLow,
				Description: fmt.Sprintf("%q changes security state but the script never writes an audit log entry", cmd.name),
				Location:    locate(cmd.node, sc.file),
			})
		}

		if logSinks[cmd.name] {
			if varName := expandedName(cmd.node, sc.src); varName != "" && credentialName.MatchString(varName) {
				issues = append(issues, issue.Issue{
					Rule:        "SecretInLogOutput",
					Category:    CategoryLogging,
					Severity:    issue.SeverityHigh,
					Description: fmt.Sprintf("%s writes %q to output; secrets must not reach logs or the console", cmd.name, varName),
					Location:    locate(cmd.node, sc.file),
				})
			}
		}
	}
	return issues
}
