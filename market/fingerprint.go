package market

import "github.com/rustyeddy/plumbline/pkg/id"

// Fingerprint digests every close inside r, so two series that agree on r
// share a fingerprint.
func (s *PriceSeries) Fingerprint(r Range) string {
	d := id.NewDigest("prices")
	for _, t := range s.Tickers() {
		d.Str("ticker", t).Str("currency", s.currency[t])
		for _, p := range s.Points(t) {
			if r.Contains(p.Date) {
				d.Str("date", p.Date.String()).Float("close", p.Value)
			}
		}
	}
	return d.Sum()
}

// Fingerprint digests every rate inside r.
func (s *FXSeries) Fingerprint(r Range) string {
	d := id.NewDigest("fx")
	for _, pair := range s.Pairs() {
		d.Str("pair", pair)
		for _, p := range s.Points(pair) {
			if r.Contains(p.Date) {
				d.Str("date", p.Date.String()).Float("rate", p.Value)
			}
		}
	}
	return d.Sum()
}
