// Package engine orchestrates the detector suite against the AST
// cache: one parse per distinct content, every selected detector run
// over the shared tree, findings unioned.
package engine

import (
	"errors"
	"log/slog"

	"github.com/h2non/filetype"

	"github.com/arch-stack/shellaudit/astcache"
	"github.com/arch-stack/shellaudit/deadcode"
	"github.com/arch-stack/shellaudit/issue"
	"github.com/arch-stack/shellaudit/parser"
	"github.com/arch-stack/shellaudit/security"
	"github.com/arch-stack/shellaudit/smells"
)

// ErrNilContent is returned when an engine entry point is called
// without content.
var ErrNilContent = errors.New("engine: content is required")

// Kind selects a detector group.
type Kind int

const (
	KindDeadCode Kind = iota
	KindSmells
	KindSecurity
)

// Engine wires the parser, the AST cache and the detectors together.
// It is safe for concurrent use; the cache is its only shared mutable
// state.
type Engine struct {
	cfg      Config
	cache    *astcache.Cache
	deadcode *deadcode.Detector
	smells   *smells.Detector
	security *security.Suite
	log      *slog.Logger
}

// New creates an engine from cfg. Zero-valued thresholds fall back to
// the defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = def.MaxCacheSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		cfg:   cfg,
		cache: astcache.New(parser.New(), cfg.MaxCacheSize),
		deadcode: deadcode.New(deadcode.Options{
			MinCommentRun: cfg.MinCommentRun,
			CodeLikeRatio: cfg.CodeLikeRatio,
		}),
		smells: smells.New(smells.Options{
			MaxBodyLines:        cfg.MaxBodyLines,
			MaxParameters:       cfg.MaxParameters,
			MaxNestingDepth:     cfg.MaxNestingDepth,
			ComplexityThreshold: cfg.ComplexityThreshold,
			BaseIncrement:       cfg.BaseIncrement,
			NestingIncrement:    cfg.NestingIncrement,
		}),
		security: security.NewSuite(),
		log:      log,
	}
}

// Analyze runs every detector group over content and unions the
// findings. Malformed input yields best-effort results; only nil
// content is an error.
func (e *Engine) Analyze(content []byte, filePath string) ([]issue.Issue, error) {
	return e.AnalyzeWith(content, filePath, KindDeadCode, KindSmells, KindSecurity)
}

// AnalyzeWith runs the selected detector groups over a single cached
// parse of content. Finding order is unspecified.
func (e *Engine) AnalyzeWith(content []byte, filePath string, kinds ...Kind) ([]issue.Issue, error) {
	if content == nil {
		return nil, ErrNilContent
	}
	if isBinaryContent(content) {
		e.log.Debug("skipping binary content", "file", filePath, "size", len(content))
		return nil, nil
	}

	res, err := e.cache.GetOrParse(content, filePath)
	if err != nil {
		return nil, err
	}
	if res.HasErrors() {
		e.log.Debug("analyzing despite parse diagnostics",
			"file", filePath,
			"diagnostics", len(res.Diagnostics))
	}

	var issues []issue.Issue
	for _, k := range kinds {
		switch k {
		case KindDeadCode:
			issues = append(issues, e.deadcode.FindInResult(res, filePath)...)
		case KindSmells:
			issues = append(issues, e.smells.FindInResult(res, filePath)...)
		case KindSecurity:
			issues = append(issues, e.security.RunAllInResult(res, filePath)...)
		}
	}
	return issues, nil
}

// DeadCode runs only the dead-code detector through the cache.
func (e *Engine) DeadCode(content []byte, filePath string) ([]issue.Issue, error) {
	return e.AnalyzeWith(content, filePath, KindDeadCode)
}

// CodeSmells runs only the smell detector through the cache.
func (e *Engine) CodeSmells(content []byte, filePath string) ([]issue.Issue, error) {
	return e.AnalyzeWith(content, filePath, KindSmells)
}

// SecurityChecks runs only the security battery.
func (e *Engine) SecurityChecks(content []byte, filePath string) ([]issue.Issue, error) {
	return e.AnalyzeWith(content, filePath, KindSecurity)
}

// Complexity scores cognitive complexity per scope through the cache.
func (e *Engine) Complexity(content []byte, filePath string) ([]issue.ComplexityResult, error) {
	if content == nil {
		return nil, ErrNilContent
	}
	res, err := e.cache.GetOrParse(content, filePath)
	if err != nil {
		return nil, err
	}
	return e.smells.ScoreInResult(res), nil
}

// CacheStats returns a snapshot of the AST cache counters.
func (e *Engine) CacheStats() astcache.Stats {
	return e.cache.Stats()
}

// ClearCache empties the AST cache and resets its statistics.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// isBinaryContent checks the magic bytes; known binary types are not
// analyzable shell source.
func isBinaryContent(content []byte) bool {
	head := content
	if len(head) > 262 {
		head = head[:262]
	}
	kind, _ := filetype.Match(head)
	return kind != filetype.Unknown
}
