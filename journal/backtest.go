package journal

import (
	"bytes"
	"os"
	"text/template"
	"time"

	"github.com/rustyeddy/plumbline/backtest"
	"github.com/rustyeddy/plumbline/market"
)

// BacktestRun mirrors the backtest_runs table.
type BacktestRun struct {
	RunID      string
	Created    time.Time
	PolicyHash string
	Universe   string
	Schedule   string
	CurveHash  string

	Start market.Date
	End   market.Date

	Summary backtest.Summary
	Trades  int

	// Equity is only filled by ExportBacktestOrg and NewBacktestRun.
	Equity []backtest.EquityPoint

	OrgPath string
	Notes   []string
}

// NewBacktestRun builds the stored view of a finished run.
func NewBacktestRun(run *backtest.Run) BacktestRun {
	return BacktestRun{
		RunID:      run.ID,
		PolicyHash: run.PolicyHash,
		Universe:   string(run.Universe),
		Schedule:   run.Schedule,
		CurveHash:  run.CurveHash,
		Start:      run.Range.From,
		End:        run.Range.To,
		Summary:    run.Summary,
		Trades:     len(run.Trades),
		Equity:     run.Points,
	}
}

var backtestOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"short": func(s string) string {
		if len(s) <= 12 {
			return s
		}
		return s[:12]
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// Org renders the run as an Org-mode entry.
func (v BacktestRun) Org() (string, error) {
	buf := new(bytes.Buffer)
	if err := backtestOrg.Execute(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteBacktestOrg renders the run to v.OrgPath.
func (v BacktestRun) WriteBacktestOrg() error {
	s, err := v.Org()
	if err != nil {
		return err
	}
	return os.WriteFile(v.OrgPath, []byte(s), 0644)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Universe}} {{.Start}}..{{.End}} ({{short .RunID}})
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:POLICY:      {{.PolicyHash}}
:UNIVERSE:    {{.Universe}}
:SCHEDULE:    {{if .Schedule}}{{.Schedule}}{{else}}(none){{end}}
:START_DATE:  {{.Start}}
:END_DATE:    {{.End}}
:DAYS:        {{.Summary.Days}}
:START_EQ:    {{printf "%.2f" .Summary.StartEquity}}
:END_EQ:      {{printf "%.2f" .Summary.EndEquity}}
:CONTRIBUTED: {{printf "%.2f" .Summary.TotalContributed}}
:CAGR_PCT:    {{printf "%.2f" (mul100 .Summary.CAGR)}}
:VOL_PCT:     {{printf "%.2f" (mul100 .Summary.Volatility)}}
:MAX_DD_PCT:  {{printf "%.2f" (mul100 .Summary.MaxDrawdown)}}
:TWR_PCT:     {{printf "%.2f" (mul100 .Summary.TWR)}}
:TURNOVER:    {{printf "%.2f" .Summary.TotalTurnover}}
:COSTS:       {{printf "%.2f" .Summary.TotalCost}}
:TRADES:      {{.Trades}}
:CURVE:       {{.CurveHash}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- End equity:       *{{printf "%.2f" .Summary.EndEquity}}*
- Contributed:      *{{printf "%.2f" .Summary.TotalContributed}}*
- CAGR:             *{{printf "%.2f" (mul100 .Summary.CAGR)}}%*
- Volatility:       *{{printf "%.2f" (mul100 .Summary.Volatility)}}%*
- Max Drawdown:     *{{printf "%.2f" (mul100 .Summary.MaxDrawdown)}}%*
- Time-weighted:    *{{printf "%.2f" (mul100 .Summary.TWR)}}%*
{{- if .Equity }}

** Equity Curve
| Date | Equity | Cash | Drawdown % |
|------+--------+------+------------|
{{- range .Equity }}
| {{.Date}} | {{printf "%.2f" .Equity}} | {{printf "%.2f" .Cash}} | {{printf "%.2f" (mul100 .Drawdown)}} |
{{- end }}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
