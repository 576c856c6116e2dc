// Package allocator splits a cash contribution across the underweight
// tickers of a drift report.
package allocator

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/pkg/id"
	"github.com/rustyeddy/plumbline/policy"
	"github.com/rustyeddy/plumbline/risk"
)

// Epsilon is the tolerance used for money and weight comparisons.
const Epsilon = 1e-9

// Constraint codes reported in BuyPlan.ConstraintsApplied.
const (
	CodeMaxPositionWeight = "MAX_POSITION_WEIGHT"
	CodeMinTradeValue     = "MIN_TRADE_VALUE"
	CodeNotUnderweight    = "NOT_UNDERWEIGHT"
)

// Request is a contribution to allocate. Currency defaults to the policy's
// contribution currency, Universe to the report's. MinTradeValue, when set,
// overrides the policy minimum.
type Request struct {
	Amount        float64
	Currency      string
	Universe      policy.Universe
	MinTradeValue *float64
}

// Allocation is one proposed buy.
type Allocation struct {
	Ticker                     string  `json:"ticker"`
	AmountBase                 float64 `json:"amount_base"`
	AmountContributionCurrency float64 `json:"amount_contribution_currency"`
	PreWeight                  float64 `json:"pre_weight"`
	TargetWeight               float64 `json:"target_weight"`
	PostWeight                 float64 `json:"post_weight"`
	Rationale                  string  `json:"rationale"`
}

// ConstraintApplied records why a ticker was capped or left out.
type ConstraintApplied struct {
	Ticker string `json:"ticker"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
}

// BuyPlan is the outcome of Allocate. Allocations are in drift order, most
// underweight first. The amounts satisfy
// sum(AmountBase) + UnallocatedCash == ContributionBase.
type BuyPlan struct {
	AsOf                 market.Date         `json:"as_of"`
	BaseCurrency         string              `json:"base_currency"`
	Universe             policy.Universe     `json:"universe"`
	ContributionAmount   float64             `json:"contribution_amount"`
	ContributionCurrency string              `json:"contribution_currency"`
	FXRate               float64             `json:"fx_rate"`
	ContributionBase     float64             `json:"contribution_base"`
	MinTradeValue        float64             `json:"min_trade_value"`
	Allocations          []Allocation        `json:"allocations"`
	UnallocatedCash      float64             `json:"unallocated_cash"`
	ConstraintsApplied   []ConstraintApplied `json:"constraints_applied,omitempty"`
	Notes                []string            `json:"notes,omitempty"`
	PolicyHash           string              `json:"policy_hash"`
	InputsHash           string              `json:"inputs_hash"`
}

// Allocated is the total placed, in base currency.
func (b BuyPlan) Allocated() float64 {
	sum := 0.0
	for _, a := range b.Allocations {
		sum += a.AmountBase
	}
	return sum
}

// Hash digests the whole plan, outputs included.
func (b BuyPlan) Hash() string {
	d := id.NewDigest("buyplan").
		Str("inputs_hash", b.InputsHash).
		Float("unallocated_cash", b.UnallocatedCash)
	for _, a := range b.Allocations {
		d.Str("alloc", a.Ticker).
			Float("amount_base", a.AmountBase).
			Float("amount_contribution_currency", a.AmountContributionCurrency).
			Float("post_weight", a.PostWeight)
	}
	for _, c := range b.ConstraintsApplied {
		d.Str("constraint", c.Ticker+" "+c.Code)
	}
	return d.Sum()
}

type candidate struct {
	risk.Entry
	amount float64
}

// Allocate runs the proportional-to-drift waterfall. Each pass hands the
// remaining cash to the active tickers in proportion to their drift. A
// ticker whose share would lift it past its weight cap is fixed at the
// cap-reaching amount; then any ticker whose share is under the minimum
// trade value is dropped. Either way it leaves the active set and the next
// pass redistributes what is left, so the loop ends within n+1 passes.
func Allocate(req Request, p *policy.Policy, report risk.Report, fx market.RateSource) (BuyPlan, error) {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount < 0 {
		return BuyPlan{}, errs.Validation("contribution amount must be a non-negative number, got %v", req.Amount)
	}
	u := req.Universe
	if u == "" {
		u = report.Universe
	}
	if u != report.Universe {
		return BuyPlan{}, errs.Validation("universe %s does not match the drift report (%s)", u, report.Universe)
	}
	minTrade := p.Constraints.MinTradeValue
	if req.MinTradeValue != nil {
		if *req.MinTradeValue < 0 {
			return BuyPlan{}, errs.Validation("min_trade_value override must be >= 0, got %v", *req.MinTradeValue)
		}
		minTrade = *req.MinTradeValue
	}
	ccy := market.NormalizeCurrency(req.Currency)
	if ccy == "" {
		ccy = p.ContributionDefaults.Currency
	}

	rate, err := fx.Rate(ccy, p.BaseCurrency, report.AsOf)
	if err != nil {
		return BuyPlan{}, err
	}
	c := req.Amount * rate

	plan := BuyPlan{
		AsOf:                 report.AsOf,
		BaseCurrency:         p.BaseCurrency,
		Universe:             u,
		ContributionAmount:   req.Amount,
		ContributionCurrency: ccy,
		FXRate:               rate,
		ContributionBase:     c,
		MinTradeValue:        minTrade,
		PolicyHash:           p.Hash(),
	}
	plan.InputsHash = inputsHash(plan, report)

	var active []candidate
	for _, e := range report.Entries {
		if !u.Includes(e.Bucket) {
			continue
		}
		if e.Drift <= Epsilon {
			plan.constrain(e.Ticker, CodeNotUnderweight, fmt.Sprintf("drift %s is not positive", pct(e.Drift)))
			continue
		}
		active = append(active, candidate{Entry: e})
	}
	slices.SortFunc(active, byDrift)

	if len(active) == 0 {
		plan.UnallocatedCash = c
		plan.Notes = append(plan.Notes, "no underweight tickers in universe "+string(u)+"; contribution left unallocated")
		return plan, nil
	}
	if c <= 0 {
		plan.Notes = append(plan.Notes, "nothing to allocate")
		return plan, nil
	}

	post := report.TotalValue + c
	var fixed []candidate
	fixedSum := 0.0
	n := len(active)
	for pass := 0; pass <= n && len(active) > 0; pass++ {
		remaining := c - fixedSum
		sumDrift := 0.0
		for _, a := range active {
			sumDrift += a.Drift
		}
		next := active[:0:0]
		changed := false
		for _, a := range active {
			a.amount = remaining * a.Drift / sumDrift
			capped := false
			if w, ok := p.Constraints.Cap(a.Ticker); ok {
				room := math.Max(0, w*post-a.MarketValue)
				if a.amount > room+Epsilon {
					a.amount = room
					capped = true
				}
			}
			switch {
			case a.amount < minTrade || (capped && a.amount <= Epsilon):
				changed = true
				if capped {
					plan.constrain(a.Ticker, CodeMaxPositionWeight, fmt.Sprintf("capped share %s is below the minimum trade %s", money(a.amount), money(minTrade)))
				} else {
					plan.constrain(a.Ticker, CodeMinTradeValue, fmt.Sprintf("share %s is below the minimum trade %s", money(a.amount), money(minTrade)))
				}
			case capped:
				changed = true
				w, _ := p.Constraints.Cap(a.Ticker)
				plan.constrain(a.Ticker, CodeMaxPositionWeight, fmt.Sprintf("capped at %s post-trade weight", pct(w)))
				fixed = append(fixed, a)
				fixedSum += a.amount
			default:
				next = append(next, a)
			}
		}
		if !changed {
			// the last ticker takes the rounding residue so the pass sums to remaining
			placed := 0.0
			for i := range next[:len(next)-1] {
				placed += next[i].amount
			}
			next[len(next)-1].amount = remaining - placed
			fixed = append(fixed, next...)
			break
		}
		active = next
	}

	slices.SortFunc(fixed, byDrift)
	allocated := 0.0
	for _, a := range fixed {
		if a.amount <= Epsilon {
			continue
		}
		allocated += a.amount
		plan.Allocations = append(plan.Allocations, Allocation{
			Ticker:                     a.Ticker,
			AmountBase:                 a.amount,
			AmountContributionCurrency: a.amount / rate,
			PreWeight:                  a.CurrentWeight,
			TargetWeight:               a.TargetWeight,
			PostWeight:                 (a.MarketValue + a.amount) / post,
			Rationale:                  rationale(a, p),
		})
	}
	plan.UnallocatedCash = c - allocated
	if math.Abs(plan.UnallocatedCash) < Epsilon {
		plan.UnallocatedCash = 0
	}
	if plan.UnallocatedCash > 0 {
		plan.Notes = append(plan.Notes, fmt.Sprintf("%s could not be placed within the constraints", money(plan.UnallocatedCash)))
	}
	return plan, nil
}

// byDrift orders most underweight first, ties by ticker.
func byDrift(a, b candidate) int {
	switch {
	case a.Drift > b.Drift:
		return -1
	case a.Drift < b.Drift:
		return 1
	}
	return strings.Compare(a.Ticker, b.Ticker)
}

func (b *BuyPlan) constrain(ticker, code, msg string) {
	b.ConstraintsApplied = append(b.ConstraintsApplied, ConstraintApplied{Ticker: ticker, Code: code, Msg: msg})
}

func rationale(a candidate, p *policy.Policy) string {
	s := fmt.Sprintf("underweight by %s (current %s, target %s)", pct(a.Drift), pct(a.CurrentWeight), pct(a.TargetWeight))
	if w, ok := p.Constraints.Cap(a.Ticker); ok {
		s += fmt.Sprintf(", cap %s", pct(w))
	}
	return s
}

func inputsHash(b BuyPlan, r risk.Report) string {
	d := id.NewDigest("proposal").
		Str("policy_hash", b.PolicyHash).
		Str("as_of", b.AsOf.String()).
		Str("universe", string(b.Universe)).
		Float("amount", b.ContributionAmount).
		Str("currency", b.ContributionCurrency).
		Float("fx_rate", b.FXRate).
		Float("min_trade_value", b.MinTradeValue).
		Float("total_value", r.TotalValue)
	for _, e := range r.Entries {
		d.Str("entry", e.Ticker).
			Float("market_value", e.MarketValue).
			Float("target_weight", e.TargetWeight)
	}
	for _, x := range r.OutOfPolicy {
		d.Str("exposure", x.Ticker).Float("market_value", x.MarketValue)
	}
	return d.Sum()
}

func pct(v float64) string   { return fmt.Sprintf("%.2f%%", 100*v) }
func money(v float64) string { return fmt.Sprintf("%.2f", v) }
