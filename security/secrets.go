package security

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/arch-stack/shellaudit/issue"
)

// maxSecretScanSize bounds the content handed to the secret scanner.
const maxSecretScanSize = 1_000_000

var (
	secretDetectorOnce sync.Once
	secretDetector     *detect.Detector
	secretDetectorErr  error
)

// loadSecretDetector builds a gitleaks detector from its embedded
// default ruleset (structured token shapes: cloud keys, bearer tokens,
// connection strings).
func loadSecretDetector() (*detect.Detector, error) {
	secretDetectorOnce.Do(func() {
		v := viper.New()
		v.SetConfigType("toml")
		if err := v.ReadConfig(strings.NewReader(config.DefaultConfig)); err != nil {
			secretDetectorErr = fmt.Errorf("reading default secret rules: %w", err)
			return
		}
		var vc config.ViperConfig
		if err := v.Unmarshal(&vc); err != nil {
			secretDetectorErr = fmt.Errorf("unmarshaling secret rules: %w", err)
			return
		}
		cfg, err := vc.Translate()
		if err != nil {
			secretDetectorErr = fmt.Errorf("translating secret rules: %w", err)
			return
		}
		secretDetector = detect.NewDetector(cfg)
		slog.Debug("secret scanner initialized", "rules", len(cfg.Rules))
	})
	return secretDetector, secretDetectorErr
}

// secrets scans the raw content for secret literals recognized by
// format and converts each match to an Issue.
func (s *Suite) secrets(sc *script) []issue.Issue {
	if len(sc.src) > maxSecretScanSize {
		slog.Warn("content too large for secret scan, skipping",
			"file", sc.file,
			"size", len(sc.src))
		return nil
	}

	detector, err := loadSecretDetector()
	if err != nil {
		slog.Error("secret scanner unavailable", "error", err)
		return nil
	}

	fragment := detect.Fragment{
		Raw:      string(sc.src),
		FilePath: sc.file,
	}

	findings := detector.Detect(fragment)
	issues := make([]issue.Issue, 0, len(findings))
	for _, f := range findings {
		issues = append(issues, issue.Issue{
			Rule:        "Secret/" + f.RuleID,
			Category:    CategoryCrypto,
			Severity:    issue.SeverityHigh,
			Description: fmt.Sprintf("%s (entropy %.1f)", f.Description, f.Entropy),
			Location: &issue.Location{
				File:   sc.file,
				Line:   uint32(f.StartLine + 1),
				Column: uint32(max(1, f.StartColumn)),
			},
		})
	}
	return issues
}
