package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{tradesHeader}, readCSV(t, tradesPath))
	assert.Equal(t, [][]string{{"date", "equity", "cash", "drawdown", "turnover"}}, readCSV(t, equityPath))
}

func TestCSVJournalWriteRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, WriteRun(j, testRun("r1")))
	require.NoError(t, j.Close())

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 4)
	assert.Equal(t, []string{"2024-01-02", "1000.000000", "1.000000", "0.000000", "999.000000"}, equity[1])
	assert.Equal(t, []string{"2024-01-03", "990.000000", "1.000000", "0.010000", "0.000000"}, equity[2])
	assert.Equal(t, "2024-01-04", equity[3][0])

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 3)
	assert.Equal(t, []string{"r1", "2024-01-02", "AAA", "buy", "6.000000", "100.000000", "600.000000", "0.600000", "contribution"}, trades[1])
}

func TestCSVJournalEquityOnly(t *testing.T) {
	t.Parallel()

	equityPath := filepath.Join(t.TempDir(), "equity.csv")
	j, err := NewCSV("", equityPath)
	require.NoError(t, err)
	require.NoError(t, WriteRun(j, testRun("r1")))
	require.NoError(t, j.Close())

	assert.Len(t, readCSV(t, equityPath), 4)
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSV("", filepath.Join(t.TempDir(), "missing", "equity.csv"))
	assert.Error(t, err)
}
