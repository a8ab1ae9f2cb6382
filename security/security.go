// Package security is a battery of independent heuristic detectors
// for shell scripts, grouped by taxonomy: OWASP 2021 categories plus
// MITRE ATT&CK technique matching and secret-literal scanning.
//
// Every sub-detector is a pure function of (content, filePath). The
// combined battery isolates each sub-detector: one faulting check
// contributes an empty result instead of aborting the run.
package security

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
)

// ErrNilContent is returned when a check is called without content.
var ErrNilContent = errors.New("security: content is required")

// OWASP 2021 category codes attached to findings.
const (
	CategoryAccessControl = "A01:2021"
	CategoryCrypto        = "A02:2021"
	CategoryInjection     = "A03:2021"
	CategoryAuth          = "A07:2021"
	CategoryIntegrity     = "A08:2021"
	CategoryLogging       = "A09:2021"
	CategorySSRF          = "A10:2021"
)

// MITRE ATT&CK technique identifiers attached to attack-pattern findings.
const (
	TechniqueObfuscation    = "T1027"
	TechniqueUnixShell      = "T1059.004"
	TechniqueClearHistory   = "T1070.003"
	TechniqueUnsecuredCreds = "T1552"
)

// Suite bundles the sub-detectors. It is stateless and safe for
// concurrent use.
type Suite struct {
	p *parser.ShellParser
}

// NewSuite creates a security detector suite.
func NewSuite() *Suite {
	return &Suite{p: parser.New()}
}

var defaultSuite = NewSuite()

// script is one parsed unit handed to the tree-level checks.
type script struct {
	res  *parser.Result
	src  []byte
	file string
}

// check is the shared tree-level sub-detector signature.
type check struct {
	name string
	run  func(*script) []issue.Issue
}

// battery lists every sub-detector in the suite.
func (s *Suite) battery() []check {
	return []check{
		{"access-control", s.accessControl},
		{"crypto", s.cryptoFailures},
		{"injection", s.injection},
		{"auth", s.authFailures},
		{"integrity", s.integrityFailures},
		{"logging", s.loggingFailures},
		{"ssrf", s.ssrf},
		{"attack-patterns", s.attackPatterns},
		{"secrets", s.secrets},
	}
}

// RunAllChecks runs the full battery and unions all findings. Result
// order is unspecified; treat the list as a set.
func RunAllChecks(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.RunAllChecks(content, filePath)
}

// RunAllChecks runs the full battery over a single parse of content.
func (s *Suite) RunAllChecks(content []byte, filePath string) ([]issue.Issue, error) {
	if content == nil {
		return nil, ErrNilContent
	}
	return s.RunAllInResult(s.p.Parse(content), filePath), nil
}

// RunAllInResult runs the full battery over an existing parse result,
// reusing its tree and source bytes instead of reparsing.
func (s *Suite) RunAllInResult(res *parser.Result, filePath string) []issue.Issue {
	sc := &script{res: res, src: res.Source, file: filePath}

	var issues []issue.Issue
	for _, c := range s.battery() {
		issues = append(issues, runIsolated(c, sc)...)
	}
	return issues
}

// runIsolated shields the battery from a faulting sub-detector: a
// panic is logged and contributes nothing.
func runIsolated(c check, sc *script) (found []issue.Issue) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("security sub-detector failed",
				"check", c.name,
				"file", sc.file,
				"panic", r)
			found = nil
		}
	}()
	return c.run(sc)
}

// runOne validates and parses for a single externally invoked check.
func (s *Suite) runOne(content []byte, filePath string, fn func(*script) []issue.Issue) ([]issue.Issue, error) {
	if content == nil {
		return nil, ErrNilContent
	}
	return fn(&script{res: s.p.Parse(content), src: content, file: filePath}), nil
}

// CheckAccessControl reports privileged operations performed without a
// prior authorization check.
func CheckAccessControl(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckAccessControl(content, filePath)
}

// CheckAccessControl reports access-control gaps.
func (s *Suite) CheckAccessControl(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.accessControl)
}

// CheckCryptoFailures reports weak primitives, insecure transport and
// hardcoded secret-shaped literals.
func CheckCryptoFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckCryptoFailures(content, filePath)
}

// CheckCryptoFailures reports cryptographic failures.
func (s *Suite) CheckCryptoFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.cryptoFailures)
}

// CheckInjection reports command, SQL, LDAP and path injection.
func CheckInjection(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckInjection(content, filePath)
}

// CheckInjection reports injection findings.
func (s *Suite) CheckInjection(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.injection)
}

// CheckAuthFailures reports authentication weaknesses.
func CheckAuthFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckAuthFailures(content, filePath)
}

// CheckAuthFailures reports authentication weaknesses.
func (s *Suite) CheckAuthFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.authFailures)
}

// CheckIntegrityFailures reports verification bypasses and untrusted
// code execution.
func CheckIntegrityFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckIntegrityFailures(content, filePath)
}

// CheckIntegrityFailures reports integrity failures.
func (s *Suite) CheckIntegrityFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.integrityFailures)
}

// CheckLoggingFailures reports missing audit logging and secrets
// leaking into logs.
func CheckLoggingFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckLoggingFailures(content, filePath)
}

// CheckLoggingFailures reports logging failures.
func (s *Suite) CheckLoggingFailures(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.loggingFailures)
}

// CheckSSRF reports server-side request forgery shapes.
func CheckSSRF(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckSSRF(content, filePath)
}

// CheckSSRF reports request-forgery findings.
func (s *Suite) CheckSSRF(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.ssrf)
}

// CheckAttackPatterns reports recognizable attack techniques, tagged
// with their MITRE technique identifier.
func CheckAttackPatterns(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.CheckAttackPatterns(content, filePath)
}

// CheckAttackPatterns reports attack-technique matches.
func (s *Suite) CheckAttackPatterns(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.attackPatterns)
}

// ScanSecrets reports secret literals recognized by format.
func ScanSecrets(content []byte, filePath string) ([]issue.Issue, error) {
	return defaultSuite.ScanSecrets(content, filePath)
}

// ScanSecrets reports secret-literal findings.
func (s *Suite) ScanSecrets(content []byte, filePath string) ([]issue.Issue, error) {
	return s.runOne(content, filePath, s.secrets)
}

// ---- shared tree helpers ----

// command is a flattened view of one command node.
type command struct {
	node *sitter.Node
	name string
	text string
}

// collectCommands flattens every command node in the script, in
// document order.
func collectCommands(root *sitter.Node, src []byte) []command {
	var cmds []command
	parser.WalkNamed(root, func(n *sitter.Node) bool {
		if n.Type() != "command" {
			return true
		}
		cmds = append(cmds, command{
			node: n,
			name: parser.CommandName(n, src),
			text: n.Content(src),
		})
		return true
	})
	return cmds
}

// hasExpansion reports whether the subtree interpolates any variable
// or command substitution.
func hasExpansion(n *sitter.Node) bool {
	found := false
	parser.WalkNamed(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "simple_expansion", "expansion", "command_substitution":
			found = true
			return false
		}
		return !found
	})
	return found
}

// sanitizedExpansion reports whether every expansion in the subtree
// applies a substitution or trim operation (${x//…}, ${x##…}), which
// the heuristics accept as input sanitation.
func sanitizedExpansion(n *sitter.Node, src []byte) bool {
	sanitized := true
	any := false
	parser.WalkNamed(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "simple_expansion", "command_substitution":
			any = true
			sanitized = false
		case "expansion":
			any = true
			text := c.Content(src)
			if !strings.ContainsAny(text, "/#%") {
				sanitized = false
			}
			return false
		}
		return true
	})
	return any && sanitized
}

// credentialName matches variable names that conventionally hold
// credentials.
var credentialName = regexp.MustCompile(`(?i)^(.*[_-])?(password|passwd|pwd|secret|token|api_?key|credential|private_?key|auth)s?$`)

// locate builds a finding location for a node.
func locate(n *sitter.Node, file string) *issue.Location {
	line, col := parser.PointOf(n)
	return &issue.Location{File: file, Line: line, Column: col}
}
