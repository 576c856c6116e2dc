package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestRunOrg(t *testing.T) {
	t.Parallel()

	btr := NewBacktestRun(testRun("01HZX3V5S7Q0ABCDEFGHJKMNPQ"))
	btr.Created = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	btr.Notes = []string{"bought the dip"}

	out, err := btr.Org()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "* BACKTEST: core 2024-01-02..2024-01-04 (01HZX3V5S7Q0)\n"))
	assert.Contains(t, out, ":PROPERTIES:")
	assert.Contains(t, out, ":SCHEDULE:    monthly 1000.00 on day 1")
	assert.Contains(t, out, ":CAGR_PCT:    12.00")
	assert.Contains(t, out, ":MAX_DD_PCT:  1.00")
	assert.Contains(t, out, ":TRADES:      2")
	assert.Contains(t, out, ":CREATED:     [2024-03-15 Fri 10:30]")
	assert.Contains(t, out, "** Equity Curve")
	assert.Contains(t, out, "| 2024-01-02 | 1000.00 | 1.00 | 0.00 |")
	assert.Contains(t, out, "** Observations\n- bought the dip")

	props := strings.Index(out, ":PROPERTIES:")
	end := strings.Index(out, ":END:")
	summary := strings.Index(out, "** Performance Summary")
	assert.Less(t, props, end)
	assert.Less(t, end, summary)
}

func TestBacktestRunOrgWithoutCurveOrSchedule(t *testing.T) {
	t.Parallel()

	btr := NewBacktestRun(testRun("r"))
	btr.Equity = nil
	btr.Schedule = ""

	out, err := btr.Org()
	require.NoError(t, err)
	assert.Contains(t, out, ":SCHEDULE:    (none)")
	assert.NotContains(t, out, "** Equity Curve")
	assert.NotContains(t, out, "** Observations")
}

func TestWriteBacktestOrg(t *testing.T) {
	t.Parallel()

	btr := NewBacktestRun(testRun("r"))
	btr.OrgPath = filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, btr.WriteBacktestOrg())

	data, err := os.ReadFile(btr.OrgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":RUN_ID:      r")
}
