package policy

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
)

// WeightTolerance is how far a weight table may stray from 1.0 before it
// is rescaled with a warning.
const WeightTolerance = 1e-6

// Document is the raw policy as written by a user.
type Document struct {
	BaseCurrency         string                        `json:"base_currency" yaml:"base_currency"`
	Buckets              map[string]map[string]float64 `json:"buckets" yaml:"buckets"`
	BucketWeights        map[string]float64            `json:"bucket_weights,omitempty" yaml:"bucket_weights,omitempty"`
	Constraints          ConstraintsDoc                `json:"constraints" yaml:"constraints"`
	DriftThresholds      ThresholdsDoc                 `json:"drift_thresholds" yaml:"drift_thresholds"`
	Costs                CostsDoc                      `json:"costs" yaml:"costs"`
	ContributionDefaults ContributionDoc               `json:"contribution_defaults" yaml:"contribution_defaults"`
}

type ConstraintsDoc struct {
	MinTradeValue      float64            `json:"min_trade_value" yaml:"min_trade_value"`
	MaxPositionWeight  *float64           `json:"max_position_weight,omitempty" yaml:"max_position_weight,omitempty"`
	MaxPositionWeights map[string]float64 `json:"max_position_weights,omitempty" yaml:"max_position_weights,omitempty"`
	NoSell             bool               `json:"no_sell" yaml:"no_sell"`
}

type ThresholdsDoc struct {
	Soft float64 `json:"soft" yaml:"soft"`
	Hard float64 `json:"hard" yaml:"hard"`
}

type CostsDoc struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	FXSpreadBps    float64 `json:"fx_spread_bps" yaml:"fx_spread_bps"`
}

type ContributionDoc struct {
	Amount     float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Currency   string  `json:"currency,omitempty" yaml:"currency,omitempty"`
	Universe   string  `json:"universe,omitempty" yaml:"universe,omitempty"`
	DayOfMonth int     `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`
}

// Validate checks doc and returns the normalized Policy. Weight tables
// that miss 1.0 are rescaled and reported as warnings. Structural problems
// are *errs.PolicyError, out-of-range values *errs.ValidationError.
func Validate(doc Document) (*Policy, []Warning, error) {
	var warnings []Warning

	base := market.NormalizeCurrency(doc.BaseCurrency)
	if base == "" {
		return nil, nil, errs.Policy("base_currency is required")
	}
	if !market.IsCurrency(base) {
		return nil, nil, errs.Policy("base_currency %q is not a recognized ISO 4217 code", doc.BaseCurrency)
	}

	p := &Policy{
		BaseCurrency:  base,
		Buckets:       make(map[Bucket]map[string]float64),
		BucketWeights: make(map[Bucket]float64),
	}

	owner := make(map[string]Bucket)
	for _, name := range sortedKeys(doc.Buckets) {
		b := Bucket(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(Buckets, b) {
			return nil, nil, errs.Policy("unknown bucket %q (want core or satellite)", name)
		}
		if _, dup := p.Buckets[b]; dup {
			return nil, nil, errs.Policy("bucket %q declared twice", b)
		}
		weights, w, err := normalizeWeights(fmt.Sprintf("bucket '%s'", b), doc.Buckets[name], WarnNormalizedBucket)
		if err != nil {
			return nil, nil, err
		}
		for t := range weights {
			if prev, ok := owner[t]; ok {
				return nil, nil, errs.Policy("ticker %s is in both %s and %s buckets", t, prev, b)
			}
			owner[t] = b
		}
		if w != nil {
			warnings = append(warnings, *w)
		}
		p.Buckets[b] = weights
	}
	if len(p.Buckets[Core]) == 0 {
		return nil, nil, errs.Policy("core bucket is required and must list at least one ticker")
	}

	bw, w, err := bucketWeights(doc.BucketWeights, p.Buckets)
	if err != nil {
		return nil, nil, err
	}
	if w != nil {
		warnings = append(warnings, *w)
	}
	p.BucketWeights = bw

	if p.Constraints, err = constraints(doc.Constraints, owner); err != nil {
		return nil, nil, err
	}

	th := doc.DriftThresholds
	if !(th.Soft > 0 && th.Hard <= 1) {
		return nil, nil, errs.Validation("drift_thresholds must satisfy 0 < soft <= hard <= 1, got soft=%v hard=%v", th.Soft, th.Hard)
	}
	if th.Hard < th.Soft {
		return nil, nil, errs.Policy("drift_thresholds.hard (%v) is below soft (%v)", th.Hard, th.Soft)
	}
	p.DriftThresholds = Thresholds{Soft: th.Soft, Hard: th.Hard}

	if !(doc.Costs.CommissionRate >= 0 && doc.Costs.CommissionRate < 1) {
		return nil, nil, errs.Validation("costs.commission_rate must be in [0, 1), got %v", doc.Costs.CommissionRate)
	}
	if !(doc.Costs.FXSpreadBps >= 0 && doc.Costs.FXSpreadBps < 10000) {
		return nil, nil, errs.Validation("costs.fx_spread_bps must be in [0, 10000), got %v", doc.Costs.FXSpreadBps)
	}
	p.Costs = Costs{CommissionRate: doc.Costs.CommissionRate, FXSpreadBps: doc.Costs.FXSpreadBps}

	if p.ContributionDefaults, err = contributionDefaults(doc.ContributionDefaults, base); err != nil {
		return nil, nil, err
	}

	return p, warnings, nil
}

func normalizeWeights(label string, raw map[string]float64, code string) (map[string]float64, *Warning, error) {
	out := make(map[string]float64, len(raw))
	sum := 0.0
	for _, k := range sortedKeys(raw) {
		t := strings.ToUpper(strings.TrimSpace(k))
		w := raw[k]
		if t == "" {
			return nil, nil, errs.Policy("%s has an empty ticker", label)
		}
		if _, dup := out[t]; dup {
			return nil, nil, errs.Policy("%s lists %s twice", label, t)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, nil, errs.Validation("%s weight for %s must be a non-negative number, got %v", label, t, w)
		}
		out[t] = w
		sum += w
	}
	if len(out) == 0 {
		return out, nil, nil
	}
	if sum <= 0 {
		return nil, nil, errs.Validation("%s weights sum to 0 and cannot be normalized", label)
	}
	if math.Abs(sum-1) <= WeightTolerance {
		return out, nil, nil
	}
	for t, w := range out {
		out[t] = w / sum
	}
	return out, &Warning{
		Code:    code,
		Message: fmt.Sprintf("%s weights summed to %.6g; normalized", label, sum),
	}, nil
}

func bucketWeights(raw map[string]float64, buckets map[Bucket]map[string]float64) (map[Bucket]float64, *Warning, error) {
	_, hasSatellite := buckets[Satellite]
	if len(raw) == 0 {
		if hasSatellite {
			return nil, nil, errs.Policy("bucket_weights are required when a satellite bucket is declared")
		}
		return map[Bucket]float64{Core: 1}, nil, nil
	}
	for name := range raw {
		b := Bucket(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(Buckets, b) {
			return nil, nil, errs.Policy("bucket_weights names unknown bucket %q", name)
		}
		if _, ok := buckets[b]; !ok {
			return nil, nil, errs.Policy("bucket_weights gives a share to undeclared bucket %q", b)
		}
	}
	// keys come back upper-cased
	norm, w, err := normalizeWeights("bucket_weights", raw, WarnNormalizedBucketWeights)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[Bucket]float64, len(norm))
	for name, v := range norm {
		out[Bucket(strings.ToLower(name))] = v
	}
	for b := range buckets {
		if _, ok := out[b]; !ok {
			return nil, nil, errs.Policy("bucket_weights has no share for declared bucket %q", b)
		}
	}
	return out, w, nil
}

func constraints(doc ConstraintsDoc, owner map[string]Bucket) (Constraints, error) {
	c := Constraints{MinTradeValue: doc.MinTradeValue, NoSell: doc.NoSell}
	if !(doc.MinTradeValue >= 0) || math.IsInf(doc.MinTradeValue, 1) {
		return c, errs.Validation("constraints.min_trade_value must be a finite number >= 0, got %v", doc.MinTradeValue)
	}
	if doc.MaxPositionWeight != nil {
		w := *doc.MaxPositionWeight
		if !(w > 0 && w <= 1) {
			return c, errs.Validation("constraints.max_position_weight must be in (0, 1], got %v", w)
		}
		c.MaxPositionWeight = w
	}
	if len(doc.MaxPositionWeights) > 0 {
		c.MaxPositionWeights = make(map[string]float64, len(doc.MaxPositionWeights))
		for _, k := range sortedKeys(doc.MaxPositionWeights) {
			t := strings.ToUpper(strings.TrimSpace(k))
			w := doc.MaxPositionWeights[k]
			if _, ok := owner[t]; !ok {
				return c, errs.Policy("constraints.max_position_weights names %s which is in no bucket", t)
			}
			if !(w > 0 && w <= 1) {
				return c, errs.Validation("constraints.max_position_weights[%s] must be in (0, 1], got %v", t, w)
			}
			c.MaxPositionWeights[t] = w
		}
	}
	return c, nil
}

func contributionDefaults(doc ContributionDoc, base string) (ContributionDefaults, error) {
	d := ContributionDefaults{Amount: doc.Amount, Currency: base, DayOfMonth: doc.DayOfMonth}
	if !(doc.Amount >= 0) || math.IsInf(doc.Amount, 1) {
		return d, errs.Validation("contribution_defaults.amount must be a finite number >= 0, got %v", doc.Amount)
	}
	if doc.Currency != "" {
		d.Currency = market.NormalizeCurrency(doc.Currency)
		if !market.IsCurrency(d.Currency) {
			return d, errs.Validation("contribution_defaults.currency %q is not a recognized ISO 4217 code", doc.Currency)
		}
	}
	u, err := ParseUniverse(doc.Universe)
	if err != nil {
		return d, errs.Validation("contribution_defaults.universe: %v", err)
	}
	d.Universe = u
	if d.DayOfMonth == 0 {
		d.DayOfMonth = 1
	}
	if d.DayOfMonth < 1 || d.DayOfMonth > 28 {
		return d, errs.Validation("contribution_defaults.day_of_month must be in 1..28, got %v", doc.DayOfMonth)
	}
	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
