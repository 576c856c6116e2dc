package policy

import "github.com/rustyeddy/plumbline/pkg/id"

// Hash returns a digest of the normalized policy content. Two policies
// that validate to the same values share the hash whatever the key order
// of their source documents.
func (p *Policy) Hash() string {
	d := id.NewDigest("policy").Str("base_currency", p.BaseCurrency)
	for _, b := range Buckets {
		weights, ok := p.Buckets[b]
		if !ok {
			continue
		}
		d.Float("bucket_weight."+string(b), p.BucketWeights[b])
		for _, t := range sortedKeys(weights) {
			d.Float("bucket."+string(b)+"."+t, weights[t])
		}
	}
	c := p.Constraints
	d.Float("min_trade_value", c.MinTradeValue).
		Float("max_position_weight", c.MaxPositionWeight).
		Bool("no_sell", c.NoSell)
	caps := sortedKeys(c.MaxPositionWeights)
	for _, t := range caps {
		d.Float("max_position_weights."+t, c.MaxPositionWeights[t])
	}
	d.Float("drift.soft", p.DriftThresholds.Soft).
		Float("drift.hard", p.DriftThresholds.Hard).
		Float("costs.commission_rate", p.Costs.CommissionRate).
		Float("costs.fx_spread_bps", p.Costs.FXSpreadBps)
	cd := p.ContributionDefaults
	d.Float("contribution.amount", cd.Amount).
		Str("contribution.currency", cd.Currency).
		Str("contribution.universe", string(cd.Universe)).
		Int("contribution.day_of_month", int64(cd.DayOfMonth))
	return d.Sum()
}
