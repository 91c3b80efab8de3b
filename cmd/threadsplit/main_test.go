package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo", "--log-level", "error")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Initial vec: [1 2 3 4 5]", lines[0])
	assert.Equal(t, "Result vec: [2 4 6 8 10]", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Initial vec: [1 2 3 4 5 6 7 8 9 10 11 12 13 1 2"))
	assert.True(t, strings.HasPrefix(lines[3], "Result vec: [2 4 6 8 10 12 14 16 18 20 22 24 26 2 4"))
}

func TestSizeWithInput(t *testing.T) {
	out, err := execute(t, "size", "--input", "3,1,2", "--size-threshold", "0", "--executor", "conc")
	require.NoError(t, err)
	assert.Equal(t, "Initial vec: [3 1 2]\nResult vec: [6 2 4]\n", out)
}

func TestTimeWithZeroBudget(t *testing.T) {
	out, err := execute(t, "time", "--input", "1,2,3,4,5,6,7", "--time-budget-micros", "0", "--executor", "pool")
	require.NoError(t, err)
	assert.Equal(t, "Initial vec: [1 2 3 4 5 6 7]\nResult vec: [2 4 6 8 10 12 14]\n", out)
}

func TestRunUsesConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "threadsplit.yaml")
	require.NoError(t, os.WriteFile(file, []byte("strategy: time\ninput: [5, 6]\nlog_level: error\n"), 0o600))

	out, err := execute(t, "run", "--config", file)
	require.NoError(t, err)
	assert.Equal(t, "Initial vec: [5 6]\nResult vec: [10 12]\n", out)
}

func TestInvalidSetting(t *testing.T) {
	_, err := execute(t, "size", "--chunk-size", "0")
	assert.Error(t, err)

	_, err = execute(t, "run", "--strategy", "count")
	assert.Error(t, err)
}

func TestTooManyChunks(t *testing.T) {
	_, err := execute(t, "size", "--input", "1,2,3,4,5,6,7,8,9,10,11,12", "--max-chunks", "2")
	assert.Error(t, err)
}
