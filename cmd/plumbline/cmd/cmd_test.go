package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Commands share package-level flag variables, so these tests run
// sequentially and always pass --config.

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "plumbline version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plumbline.yaml")

	out, _, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, _, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Journal: sqlite")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, bad, "journal:\n  type: mongo\n")
	_, _, err = execute(t, "config", "validate", "-f", bad)
	assert.Error(t, err)
}

func TestPolicyInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	_, _, err := execute(t, "policy", "init", "-o", path)
	require.NoError(t, err)

	out, _, err := execute(t, "--config", filepath.Join(dir, "none.yaml"), "policy", "validate", path)
	assert.Error(t, err, "an explicit --config must exist")
	assert.Empty(t, out)

	cfgPath := filepath.Join(dir, "plumbline.yaml")
	writeFile(t, cfgPath, "policy: {file: "+path+"}\ndata: {prices: p.csv}\njournal: {type: sqlite, db_path: j.db}\n")
	out, _, err = execute(t, "--config", cfgPath, "policy", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Policy valid")
	assert.Contains(t, out, "VWCE")
	assert.Contains(t, out, "72.00%")
}

func TestPolicyWarningsAreLogged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writeFile(t, path, `
base_currency: EUR
buckets:
  core: {AAA: 0.5, BBB: 0.4}
constraints: {min_trade_value: 10}
drift_thresholds: {soft: 0.02, hard: 0.05}
costs: {commission_rate: 0.001, fx_spread_bps: 20}
`)
	cfgPath := filepath.Join(dir, "plumbline.yaml")
	writeFile(t, cfgPath, "policy: {file: "+path+"}\ndata: {prices: p.csv}\njournal: {type: sqlite, db_path: j.db}\n")

	_, logs, err := execute(t, "--config", cfgPath, "--log-level", "warn", "policy", "validate")
	require.NoError(t, err)
	assert.Contains(t, logs, "W-NORMALIZED-BUCKET")
}

func TestWorkflow(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	writeFile(t, policyPath, `
base_currency: EUR
buckets:
  core: {AAA: 0.6, BBB: 0.4}
constraints: {min_trade_value: 10}
drift_thresholds: {soft: 0.02, hard: 0.05}
costs: {commission_rate: 0.001, fx_spread_bps: 20}
contribution_defaults: {amount: 500, currency: EUR, day_of_month: 1}
`)
	pricesPath := filepath.Join(dir, "prices.csv")
	writeFile(t, pricesPath, `date,ticker,currency,close
2024-01-02,AAA,EUR,10
2024-01-02,BBB,EUR,20
2024-01-03,AAA,EUR,10.5
2024-01-03,BBB,EUR,20
2024-01-04,AAA,EUR,11
2024-01-04,BBB,EUR,19.5
2024-01-05,AAA,EUR,11
2024-01-05,BBB,EUR,20
`)
	holdingsPath := filepath.Join(dir, "holdings.csv")
	writeFile(t, holdingsPath, "ticker,qty,currency,asset_type\nAAA,10,EUR,etf\nBBB,20,EUR,etf\n")
	cfgPath := filepath.Join(dir, "plumbline.yaml")
	writeFile(t, cfgPath, `
policy: {file: `+policyPath+`}
data: {prices: `+pricesPath+`}
backtest: {from: 2024-01-01, to: 2024-01-05, universe: core}
journal: {type: sqlite, db_path: `+filepath.Join(dir, "journal.db")+`, org_dir: `+dir+`}
log: {level: error}
`)

	out, _, err := execute(t, "--config", cfgPath, "holdings", "import", holdingsPath, "--as-of", "2024-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored snapshot")

	out, _, err = execute(t, "--config", cfgPath, "holdings", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-02")

	out, _, err = execute(t, "--config", cfgPath, "drift")
	require.NoError(t, err)
	assert.Contains(t, out, "+40.00%")
	assert.Contains(t, out, "hard")

	out, _, err = execute(t, "--config", cfgPath, "propose", "--amount", "1000", "--save", "--json")
	require.NoError(t, err)
	var plan struct {
		InputsHash  string `json:"inputs_hash"`
		Allocations []struct {
			Ticker     string  `json:"ticker"`
			AmountBase float64 `json:"amount_base"`
		} `json:"allocations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "AAA", plan.Allocations[0].Ticker)
	assert.InDelta(t, 1000, plan.Allocations[0].AmountBase, 1e-9)

	out, _, err = execute(t, "--config", cfgPath, "journal", "proposal", plan.InputsHash)
	require.NoError(t, err)
	assert.Contains(t, out, plan.InputsHash)

	out, _, err = execute(t, "--config", cfgPath, "backtest")
	require.NoError(t, err)
	assert.Contains(t, out, "Calendar days: 3")
	assert.Contains(t, out, "Contributed:   500.00")

	out, _, err = execute(t, "--config", cfgPath, "journal", "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-01..2024-01-05")

	orgs, err := filepath.Glob(filepath.Join(dir, "backtest-*.org"))
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}
