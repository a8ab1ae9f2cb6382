package engine

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arch-stack/shellaudit/issue"
)

var mixedScript = []byte(`helper() {
  echo "$1 $2 $3 $4 $5 $6 $7 $8"
}
PASSWORD="hunter2"
echo done
`)

func rulesOf(issues []issue.Issue) map[string]int {
	counts := make(map[string]int)
	for _, is := range issues {
		counts[is.Rule]++
	}
	return counts
}

func TestAnalyze_UnionsAllGroups(t *testing.T) {
	e := New(DefaultConfig())

	issues, err := e.Analyze(mixedScript, "mixed.sh")
	require.NoError(t, err)

	counts := rulesOf(issues)
	assert.NotZero(t, counts["UnusedFunction"], "dead-code group missing")
	assert.NotZero(t, counts["TooManyParameters"], "smell group missing")
	assert.NotZero(t, counts["HardcodedSecret"], "security group missing")
}

func TestAnalyzeWith_SelectsGroups(t *testing.T) {
	e := New(DefaultConfig())

	issues, err := e.AnalyzeWith(mixedScript, "mixed.sh", KindSmells)
	require.NoError(t, err)

	counts := rulesOf(issues)
	assert.NotZero(t, counts["TooManyParameters"])
	assert.Zero(t, counts["UnusedFunction"])
	assert.Zero(t, counts["HardcodedSecret"])
}

func TestAnalyze_NilContent(t *testing.T) {
	e := New(DefaultConfig())

	_, err := e.Analyze(nil, "x.sh")
	assert.ErrorIs(t, err, ErrNilContent)
}

func TestAnalyze_BinaryContentSkipped(t *testing.T) {
	e := New(DefaultConfig())

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	issues, err := e.Analyze(png, "image.png")
	assert.NoError(t, err)
	assert.Nil(t, issues)

	assert.Equal(t, 0, e.CacheStats().Size, "binary content must not enter the cache")
}

func TestAnalyze_MalformedContentBestEffort(t *testing.T) {
	e := New(DefaultConfig())

	_, err := e.Analyze([]byte("if [ ; then ((\n"), "broken.sh")
	assert.NoError(t, err)
}

func TestEngine_CacheBehaviour(t *testing.T) {
	e := New(DefaultConfig())
	content := []byte("echo cached\n")

	_, err := e.CodeSmells(content, "a.sh")
	require.NoError(t, err)
	_, err = e.DeadCode(content, "a.sh")
	require.NoError(t, err)

	stats := e.CacheStats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, "50%", stats.HitRate())

	e.ClearCache()
	stats = e.CacheStats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, "0%", stats.HitRate())
}

func TestEngine_Complexity(t *testing.T) {
	e := New(DefaultConfig())

	src := []byte(`busy() {
  if [ -n "$1" ]; then
    for f in a b c; do
      if [ -n "$f" ]; then
        echo "$f"
      fi
    done
  fi
}
busy x
`)
	results, err := e.Complexity(src, "a.sh")
	require.NoError(t, err)

	var found bool
	for _, r := range results {
		if r.Scope == "busy" {
			found = true
			assert.Greater(t, r.Score, 0)
		}
	}
	assert.True(t, found)

	_, err = e.Complexity(nil, "a.sh")
	assert.ErrorIs(t, err, ErrNilContent)
}

func TestNew_ZeroConfigFallsBack(t *testing.T) {
	e := New(Config{})

	issues, err := e.Analyze([]byte("echo hello\n"), "a.sh")
	assert.NoError(t, err)
	assert.Empty(t, rulesOf(issues)["HighComplexity"])
	assert.Equal(t, DefaultConfig().MaxCacheSize, e.CacheStats().MaxSize)
}

func TestEngine_SecurityOnly(t *testing.T) {
	e := New(DefaultConfig())

	issues, err := e.SecurityChecks([]byte("eval \"$input\"\n"), "a.sh")
	require.NoError(t, err)
	assert.NotZero(t, rulesOf(issues)["EvalInjection"])
}

func TestEngine_SecurityRunsOnCachedParse(t *testing.T) {
	e := New(DefaultConfig())
	content := []byte("eval \"$input\"\n")

	first, err := e.SecurityChecks(content, "a.sh")
	require.NoError(t, err)
	second, err := e.SecurityChecks(content, "a.sh")
	require.NoError(t, err)

	// The second run is served from the cache and must see the same
	// tree the first run populated.
	assert.Equal(t, rulesOf(first), rulesOf(second))
	stats := e.CacheStats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestNew_CustomLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := New(Config{Logger: log})
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	_, err := e.Analyze(png, "image.png")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "skipping binary content")
}
