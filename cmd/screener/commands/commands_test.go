package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		strategyFile = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestTaxonomyCheck_Default(t *testing.T) {
	out, err := execute(t, "taxonomy", "check")
	require.NoError(t, err)

	assert.Contains(t, out, "Strategy Check")
	assert.Contains(t, out, "VOLATILITY_EXPANSION")
	assert.Contains(t, out, "LOW_LIQUIDITY")
	assert.Contains(t, out, "(cap 90)")
	assert.Contains(t, out, "Strategy is valid")
}

func TestTaxonomyCheck_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("meta:\n  strategy_id: x\n  unknown_field: 1\n"), 0o644))

	_, err := execute(t, "taxonomy", "check", "--strategy", path)
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	today, err := parseDate("")
	require.NoError(t, err)
	assert.Zero(t, today.Hour())

	_, err = parseDate("15/03/2024")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"AAA", "BBB"}, splitList(" AAA, ,BBB,"))
	assert.Nil(t, splitList(""))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []string{"A", "B"}, []int{3, 0}, [][]string{{"x", "y"}})
	assert.Equal(t, "A    B\n"+"─────\n"+"x    y\n", buf.String())
}
