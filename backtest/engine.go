// Package backtest replays a policy over historical prices one trading day
// at a time.
package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/plumbline/allocator"
	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/pkg/id"
	"github.com/rustyeddy/plumbline/policy"
	"github.com/rustyeddy/plumbline/portfolio"
	"github.com/rustyeddy/plumbline/risk"
)

// Side of a simulated trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Trade is one simulated fill at the day's close.
type Trade struct {
	Date       market.Date `json:"date"`
	Ticker     string      `json:"ticker"`
	Side       Side        `json:"side"`
	Quantity   float64     `json:"quantity"`
	Price      float64     `json:"price"`
	AmountBase float64     `json:"amount_base"`
	Cost       float64     `json:"cost"`
	Reason     string      `json:"reason"`
}

// EquityPoint is the state of the portfolio at the end of a trading day.
type EquityPoint struct {
	Date     market.Date `json:"date"`
	Equity   float64     `json:"equity"`
	Cash     float64     `json:"cash"`
	Drawdown float64     `json:"drawdown"`
	Turnover float64     `json:"turnover"`
}

// PriceData is the price input of a backtest. *market.PriceSeries
// satisfies it.
type PriceData interface {
	market.PriceSource
	Dates(r market.Range) []market.Date
	Fingerprint(r market.Range) string
}

// FXData is the rate input of a backtest. *market.FXSeries satisfies it.
type FXData interface {
	market.RateSource
	Fingerprint(r market.Range) string
}

// Config is everything a run depends on besides market data.
type Config struct {
	Policy   *policy.Policy
	Range    market.Range
	Universe policy.Universe
	// Schedule may be nil for a run without contributions.
	Schedule      Schedule
	Holdings      portfolio.Snapshot
	Cash          float64
	MinTradeValue *float64
}

// State is carried from one trading day to the next.
type State struct {
	Date            market.Date
	Cash            float64
	Holdings        portfolio.Snapshot
	CumulativeCosts float64
	PeakEquity      float64
}

// Run is the immutable result of Engine.Run.
type Run struct {
	ID         string          `json:"id"`
	PolicyHash string          `json:"policy_hash"`
	Range      market.Range    `json:"date_range"`
	Universe   policy.Universe `json:"universe"`
	Schedule   string          `json:"contribution_schedule"`
	Points     []EquityPoint   `json:"points"`
	Trades     []Trade         `json:"trades"`
	Summary    Summary         `json:"summary_metrics"`
	CurveHash  string          `json:"curve_hash"`
	Final      State           `json:"-"`
}

// Engine is a single-threaded day-by-day simulator. An Engine holds no
// state between calls to Run.
type Engine struct {
	cfg    Config
	prices PriceData
	fx     FXData
	log    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; runs are silent by default.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine checks cfg and binds it to the market data.
func NewEngine(cfg Config, prices PriceData, fx FXData, opts ...Option) (*Engine, error) {
	if cfg.Policy == nil {
		return nil, fmt.Errorf("backtest: Policy is required")
	}
	if prices == nil || fx == nil {
		return nil, fmt.Errorf("backtest: price and fx data are required")
	}
	if err := cfg.Range.Validate(); err != nil {
		return nil, errs.Validation("backtest range: %v", err)
	}
	if cfg.Cash < 0 {
		return nil, errs.Validation("initial cash must be >= 0, got %v", cfg.Cash)
	}
	if cfg.Universe == "" {
		cfg.Universe = cfg.Policy.ContributionDefaults.Universe
	}
	e := &Engine{cfg: cfg, prices: prices, fx: fx, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Identity digests the policy, range, schedule, starting state and the
// fingerprints of the data inside the range. Equal identities always
// produce equal runs.
func (e *Engine) Identity() string {
	c := e.cfg
	d := id.NewDigest("backtest").
		Str("policy_hash", c.Policy.Hash()).
		Str("range", c.Range.String()).
		Str("universe", string(c.Universe))
	if c.Schedule == nil {
		d.Str("schedule", "none")
	} else {
		c.Schedule.Hash(d)
	}
	d.Str("prices", e.prices.Fingerprint(c.Range)).
		Str("fx", e.fx.Fingerprint(c.Range)).
		Float("cash", c.Cash)
	for _, t := range c.Holdings.Tickers() {
		p, _ := c.Holdings.Position(t)
		d.Str("holding", t).Float("quantity", p.Quantity).Str("currency", p.Currency)
	}
	if c.MinTradeValue != nil {
		d.Float("min_trade_value", *c.MinTradeValue)
	}
	return d.Sum()
}

// Run simulates every trading date of the range. Each day it invests any
// contribution, rebalances a hard breach when selling is allowed, then
// marks the portfolio to market. A missing price or rate aborts the run.
func (e *Engine) Run(ctx context.Context) (*Run, error) {
	c := e.cfg
	calendar := e.prices.Dates(c.Range)
	if len(calendar) == 0 {
		return nil, errs.Validation("no trading dates in %s", c.Range)
	}
	var schedule map[market.Date][]Contribution
	if c.Schedule != nil {
		var err error
		if schedule, err = c.Schedule.Resolve(c.Range, calendar); err != nil {
			return nil, err
		}
	}

	run := &Run{
		ID:         e.Identity(),
		PolicyHash: c.Policy.Hash(),
		Range:      c.Range,
		Universe:   c.Universe,
		Points:     make([]EquityPoint, 0, len(calendar)),
	}
	if c.Schedule != nil {
		run.Schedule = c.Schedule.String()
	}
	log := e.log.With().Str("run", run.ID[:12]).Logger()

	s := &sim{Engine: e, log: log, state: State{Cash: c.Cash, Holdings: c.Holdings}, costs: risk.CostModel(c.Policy.Costs)}
	flows := make([]float64, 0, len(calendar))
	for _, day := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.state.Date = day
		s.traded = 0

		flow := 0.0
		for _, in := range schedule[day] {
			base, err := s.toBase(in.Amount, in.Currency)
			if err != nil {
				return nil, err
			}
			flow += base
		}
		if flow > 0 {
			s.state.Cash += flow
			log.Debug().Str("date", day.String()).Float64("amount", flow).Msg("contribution")
			if err := s.invest(s.state.Cash/s.reserve(), "contribution"); err != nil {
				return nil, err
			}
		}

		if !c.Policy.Constraints.NoSell {
			if err := s.rebalance(); err != nil {
				return nil, err
			}
		}

		val, err := portfolio.Value(s.state.Holdings, e.prices, e.fx, c.Policy.BaseCurrency, day)
		if err != nil {
			return nil, err
		}
		equity := s.state.Cash + val.Total
		if equity > s.state.PeakEquity {
			s.state.PeakEquity = equity
		}
		pt := EquityPoint{Date: day, Equity: equity, Cash: s.state.Cash}
		if s.state.PeakEquity > 0 && equity < s.state.PeakEquity {
			pt.Drawdown = 1 - equity/s.state.PeakEquity
		}
		if equity > 0 {
			pt.Turnover = s.traded / equity
		}
		run.Points = append(run.Points, pt)
		flows = append(flows, flow)
	}

	run.Trades = s.trades
	run.Final = s.state
	run.Summary = Summarize(run.Points, flows, s.state.CumulativeCosts)
	run.CurveHash = CurveHash(run.Points)

	log.Info().
		Int("days", len(run.Points)).
		Int("trades", len(run.Trades)).
		Float64("end_equity", run.Summary.EndEquity).
		Float64("cagr", run.Summary.CAGR).
		Str("curve_hash", run.CurveHash).
		Msg("backtest complete")
	return run, nil
}

// sim is the mutable side of one Run.
type sim struct {
	*Engine
	log    zerolog.Logger
	state  State
	costs  risk.CostModel
	traded float64
	trades []Trade
}

// reserve scales cash down so the worst-case trading cost still fits.
func (s *sim) reserve() float64 { return 1 + s.costs.MaxRate() }

func (s *sim) base() string { return s.cfg.Policy.BaseCurrency }

func (s *sim) toBase(amount float64, currency string) (float64, error) {
	ccy := market.NormalizeCurrency(currency)
	if ccy == "" {
		ccy = s.base()
	}
	rate, err := s.fx.Rate(ccy, s.base(), s.state.Date)
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

func (s *sim) currency(ticker string) string {
	if p, ok := s.state.Holdings.Position(ticker); ok && p.Currency != "" {
		return p.Currency
	}
	if ccy, ok := s.prices.Currency(ticker); ok && ccy != "" {
		return ccy
	}
	return s.base()
}

func (s *sim) drift() (risk.Report, error) {
	return risk.Compute(s.cfg.Policy, s.state.Holdings, s.prices, s.fx, s.state.Date, s.cfg.Universe)
}

// invest allocates amount of base cash across the underweight tickers and
// fills the buys.
func (s *sim) invest(amount float64, reason string) error {
	if amount <= 0 {
		return nil
	}
	report, err := s.drift()
	if err != nil {
		return err
	}
	plan, err := allocator.Allocate(allocator.Request{
		Amount:        amount,
		Currency:      s.base(),
		Universe:      s.cfg.Universe,
		MinTradeValue: s.cfg.MinTradeValue,
	}, s.cfg.Policy, report, s.fx)
	if err != nil {
		return err
	}

	fills := make([]portfolio.Trade, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		ccy := s.currency(a.Ticker)
		px, err := portfolio.PriceInBase(a.Ticker, ccy, s.prices, s.fx, s.base(), s.state.Date)
		if err != nil {
			return err
		}
		qty := a.AmountBase / px
		cost := s.costs.Cost(a.AmountBase, s.base(), ccy)
		s.fill(Trade{Ticker: a.Ticker, Side: Buy, Quantity: qty, Price: px, AmountBase: a.AmountBase, Cost: cost, Reason: reason})
		fills = append(fills, portfolio.Trade{Ticker: a.Ticker, Quantity: qty, Currency: ccy})
	}
	if len(fills) == 0 {
		return nil
	}
	s.state.Holdings, err = s.state.Holdings.Apply(s.state.Date, fills)
	return err
}

// rebalance sells every ticker overweight by more than the soft threshold
// back to target+soft when some ticker is in hard breach, then reinvests
// the net proceeds through the allocator.
func (s *sim) rebalance() error {
	report, err := s.drift()
	if err != nil {
		return err
	}
	if !report.HasHardBreach() {
		return nil
	}
	soft := s.cfg.Policy.DriftThresholds.Soft
	var fills []portfolio.Trade
	proceeds := 0.0
	for _, en := range report.Entries {
		if en.Drift >= -soft {
			continue
		}
		excess := en.MarketValue - (en.TargetWeight+soft)*report.TotalValue
		if excess <= allocator.Epsilon {
			continue
		}
		ccy := s.currency(en.Ticker)
		px, err := portfolio.PriceInBase(en.Ticker, ccy, s.prices, s.fx, s.base(), s.state.Date)
		if err != nil {
			return err
		}
		qty := min(excess/px, s.state.Holdings.Quantity(en.Ticker))
		amount := qty * px
		cost := s.costs.Cost(amount, s.base(), ccy)
		s.fill(Trade{Ticker: en.Ticker, Side: Sell, Quantity: qty, Price: px, AmountBase: amount, Cost: cost, Reason: "rebalance"})
		fills = append(fills, portfolio.Trade{Ticker: en.Ticker, Quantity: -qty, Currency: ccy})
		proceeds += amount - cost
	}
	if len(fills) == 0 {
		return nil
	}
	if s.state.Holdings, err = s.state.Holdings.Apply(s.state.Date, fills); err != nil {
		return err
	}
	s.log.Debug().Str("date", s.state.Date.String()).Int("sells", len(fills)).Float64("proceeds", proceeds).Msg("rebalance")
	return s.invest(proceeds/s.reserve(), "rebalance")
}

// fill books t against cash. Buys pay amount plus cost, sells receive
// amount less cost.
func (s *sim) fill(t Trade) {
	t.Date = s.state.Date
	switch t.Side {
	case Buy:
		s.state.Cash -= t.AmountBase + t.Cost
	case Sell:
		s.state.Cash += t.AmountBase - t.Cost
	}
	s.state.CumulativeCosts += t.Cost
	s.traded += t.AmountBase
	s.trades = append(s.trades, t)
}
