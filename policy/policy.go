// Package policy turns a loosely typed policy document into a validated,
// normalized Policy.
package policy

import (
	"fmt"
	"slices"
	"strings"
)

// Bucket names a group of tickers sharing a target-weight table.
type Bucket string

const (
	Core      Bucket = "core"
	Satellite Bucket = "satellite"
)

// Buckets lists the known buckets in canonical order.
var Buckets = []Bucket{Core, Satellite}

// Universe is the set of buckets an operation considers.
type Universe string

const (
	CoreOnly      Universe = "core"
	CoreSatellite Universe = "core+satellite"
)

// ParseUniverse accepts "core", "core+satellite" (or "all"). There is no
// satellite-only universe.
func ParseUniverse(s string) (Universe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "core":
		return CoreOnly, nil
	case "core+satellite", "all":
		return CoreSatellite, nil
	case "satellite":
		return "", fmt.Errorf("unknown universe %q: satellite is always combined with core, use core+satellite", s)
	default:
		return "", fmt.Errorf("unknown universe %q (want core or core+satellite)", s)
	}
}

// Includes reports whether bucket b is part of the universe.
func (u Universe) Includes(b Bucket) bool {
	return b == Core || (b == Satellite && u == CoreSatellite)
}

// Constraints are the hard limits a contribution must respect.
type Constraints struct {
	MinTradeValue float64
	// MaxPositionWeight is the global cap; 0 means uncapped.
	MaxPositionWeight  float64
	MaxPositionWeights map[string]float64
	NoSell             bool
}

// Cap returns the max post-trade weight of ticker, the per-ticker
// override winning over the global cap.
func (c Constraints) Cap(ticker string) (float64, bool) {
	if w, ok := c.MaxPositionWeights[ticker]; ok {
		return w, true
	}
	if c.MaxPositionWeight > 0 {
		return c.MaxPositionWeight, true
	}
	return 0, false
}

// Thresholds are the drift severity bands, Hard >= Soft.
type Thresholds struct {
	Soft float64
	Hard float64
}

// Costs parameterize the trade cost model.
type Costs struct {
	CommissionRate float64
	FXSpreadBps    float64
}

// ContributionDefaults are used when a caller gives no explicit values.
type ContributionDefaults struct {
	Amount     float64
	Currency   string
	Universe   Universe
	DayOfMonth int
}

// Policy is a validated target policy. Weights inside each bucket sum to 1.
type Policy struct {
	BaseCurrency         string
	Buckets              map[Bucket]map[string]float64
	BucketWeights        map[Bucket]float64
	Constraints          Constraints
	DriftThresholds      Thresholds
	Costs                Costs
	ContributionDefaults ContributionDefaults
}

// BucketOf returns the bucket holding ticker.
func (p *Policy) BucketOf(ticker string) (Bucket, bool) {
	for _, b := range Buckets {
		if _, ok := p.Buckets[b][ticker]; ok {
			return b, true
		}
	}
	return "", false
}

// Target returns the weight of ticker relative to the whole portfolio in
// universe u: bucket share times in-bucket weight. Buckets outside u
// contribute zero; the remaining targets are not renormalized.
func (p *Policy) Target(ticker string, u Universe) float64 {
	b, ok := p.BucketOf(ticker)
	if !ok || !u.Includes(b) {
		return 0
	}
	return p.BucketWeights[b] * p.Buckets[b][ticker]
}

// Tickers returns the tickers of universe u, ascending.
func (p *Policy) Tickers(u Universe) []string {
	var out []string
	for _, b := range Buckets {
		if !u.Includes(b) {
			continue
		}
		for t := range p.Buckets[b] {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// Warning is a non-fatal finding of Validate.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WarnNormalizedBucket        = "W-NORMALIZED-BUCKET"
	WarnNormalizedBucketWeights = "W-NORMALIZED-BUCKET-WEIGHTS"
)

func (w Warning) String() string { return w.Code + ": " + w.Message }
