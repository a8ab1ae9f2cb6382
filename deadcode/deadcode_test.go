package deadcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arch-stack/shellaudit/issue"
)

func rulesOf(issues []issue.Issue) map[string]int {
	counts := make(map[string]int)
	for _, is := range issues {
		counts[is.Rule]++
	}
	return counts
}

func TestFind_NilContent(t *testing.T) {
	_, err := Find(nil, "x.sh")
	assert.ErrorIs(t, err, ErrNilContent)
}

func TestFind_MalformedInput(t *testing.T) {
	issues, err := Find([]byte("if [ ; then ((\n"), "broken.sh")
	assert.NoError(t, err, "malformed input is best-effort, not an error")
	assert.NotNil(t, rulesOf(issues))
}

func TestUnreachable_AfterReturn(t *testing.T) {
	src := []byte(`foo() {
  echo hi
  return 1
  echo unreachable
}
foo
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)

	assert.Equal(t, 1, rulesOf(issues)["UnreachableCode"])
	for _, is := range issues {
		if is.Rule == "UnreachableCode" {
			assert.Equal(t, uint32(4), is.Location.Line)
			assert.Equal(t, "a.sh", is.Location.File)
		}
	}
}

func TestUnreachable_ExitInsideBranchDoesNotTaint(t *testing.T) {
	src := []byte(`check() {
  if [ -z "$1" ]; then
    return 1
  fi
  echo "still reachable"
}
check ok
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["UnreachableCode"])
}

func TestUnreachable_ElseClauseNotAfterThenExit(t *testing.T) {
	src := []byte(`pick() {
  if [ -n "$1" ]; then
    return 0
  else
    echo fallback
  fi
}
pick x
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["UnreachableCode"])
}

func TestUnreachable_AfterExitAtTopLevel(t *testing.T) {
	src := []byte("echo start\nexit 0\necho never\n")
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Equal(t, 1, rulesOf(issues)["UnreachableCode"])
}

func TestUnusedFunctions(t *testing.T) {
	src := []byte(`used() {
  echo used
}
unused_helper() {
  echo nobody calls me
}
used
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)

	var names []string
	for _, is := range issues {
		if is.Rule == "UnusedFunction" {
			names = append(names, is.Description)
		}
	}
	require.Len(t, names, 1)
	assert.Contains(t, names[0], "unused_helper")
}

func TestUnusedFunctions_IndirectMentionCounts(t *testing.T) {
	// A name appearing anywhere outside its own definition counts as a
	// use, trap and callback registrations included.
	src := []byte(`cleanup() {
  rm -f /tmp/lock
}
trap cleanup EXIT
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["UnusedFunction"])
}

func TestUnusedVariables(t *testing.T) {
	src := []byte(`count=1
name="world"
echo "hello $name"
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)

	var unused []string
	for _, is := range issues {
		if is.Rule == "UnusedVariable" {
			unused = append(unused, is.Description)
		}
	}
	require.Len(t, unused, 1)
	assert.Contains(t, unused[0], "count")
}

func TestUnusedVariables_FunctionScope(t *testing.T) {
	src := []byte(`work() {
  local kept="a"
  local dropped="b"
  echo "$kept"
}
work
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)

	counts := rulesOf(issues)
	assert.Equal(t, 1, counts["UnusedVariable"])
}

func TestUnusedVariables_ReadInsideLocalValue(t *testing.T) {
	// A read inside a `local` assignment value is still a read.
	src := []byte(`setup() {
  local target="$dir/out"
  echo "$target"
}
dir="/tmp/data"
setup
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["UnusedVariable"])
}

func TestUnusedVariables_ReadInsideExportValue(t *testing.T) {
	src := []byte(`prefix="/opt/tool"
export PATH="$prefix/bin:$PATH"
echo ok
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["UnusedVariable"])
}

func TestUnusedVariables_ShellManagedExcluded(t *testing.T) {
	src := []byte("IFS=$'\\n'\nPATH=/usr/local/bin:$PATH\necho done\n")
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["UnusedVariable"])
}

func TestCommentedCode_Flagged(t *testing.T) {
	src := []byte(`echo live
# if [ -f /tmp/x ]; then
#   rm -f /tmp/x
#   echo "cleaned"
# fi
echo more
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Equal(t, 1, rulesOf(issues)["CommentedCode"])
}

func TestCommentedCode_ProseNotFlagged(t *testing.T) {
	src := []byte(`# This script rotates the nightly backups.
# It keeps seven days of history and prunes
# anything older than that from the archive
# directory before starting a new cycle.
echo rotate
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["CommentedCode"])
}

func TestCommentedCode_DocCommentsExcluded(t *testing.T) {
	src := []byte(`#!/usr/bin/env bash
## module: backup
## exports: run_backup()
## requires: tar, gzip
## see also: restore.sh
echo ok
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["CommentedCode"])
}

func TestCommentedCode_ShortRunBelowThreshold(t *testing.T) {
	src := []byte(`# rm -rf /tmp/x
# echo "gone"
echo live
`)
	issues, err := Find(src, "a.sh")
	require.NoError(t, err)
	assert.Zero(t, rulesOf(issues)["CommentedCode"])
}

func TestCommentedCode_CustomOptions(t *testing.T) {
	d := New(Options{MinCommentRun: 2, CodeLikeRatio: 0.5})
	src := []byte(`# for f in *.log; do
# done
echo live
`)
	issues, err := d.Find(src, "a.sh")
	require.NoError(t, err)
	assert.Equal(t, 1, rulesOf(issues)["CommentedCode"])
}

func TestIsDocComment(t *testing.T) {
	assert.True(t, IsDocComment("#!/usr/bin/env bash"))
	assert.True(t, IsDocComment("## section header"))
	assert.True(t, IsDocComment("# shellcheck disable=SC2086"))
	assert.False(t, IsDocComment("# rm -rf /tmp"))
}

func TestLooksLikeCode(t *testing.T) {
	assert.True(t, LooksLikeCode(`if [ -f "$1" ]; then`))
	assert.True(t, LooksLikeCode("fi"))
	assert.True(t, LooksLikeCode("count=0"))
	assert.True(t, LooksLikeCode(`echo "$(date)"`))
	assert.False(t, LooksLikeCode("this used to be flaky on mondays"))
	assert.False(t, LooksLikeCode("documentation lives in the wiki"))
}
