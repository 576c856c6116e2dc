package policy

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func validDoc() Document {
	return Document{
		BaseCurrency:    "EUR",
		Buckets:         map[string]map[string]float64{"core": {"AAA": 0.6, "BBB": 0.4}},
		Constraints:     ConstraintsDoc{MinTradeValue: 10},
		DriftThresholds: ThresholdsDoc{Soft: 0.02, Hard: 0.05},
		Costs:           CostsDoc{CommissionRate: 0.001, FXSpreadBps: 20},
	}
}

func TestValidateDefaults(t *testing.T) {
	t.Parallel()

	p, warnings, err := Validate(validDoc())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "EUR", p.BaseCurrency)
	assert.Equal(t, map[Bucket]float64{Core: 1}, p.BucketWeights)
	assert.Equal(t, CoreOnly, p.ContributionDefaults.Universe)
	assert.Equal(t, "EUR", p.ContributionDefaults.Currency)
	assert.Equal(t, 1, p.ContributionDefaults.DayOfMonth)
	assert.Equal(t, []string{"AAA", "BBB"}, p.Tickers(CoreOnly))
}

func TestValidateNormalizesWithWarning(t *testing.T) {
	t.Parallel()

	doc := validDoc()
	doc.Buckets["core"] = map[string]float64{"AAA": 0.5, "BBB": 0.4}

	p, warnings, err := Validate(doc)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnNormalizedBucket, warnings[0].Code)
	assert.Equal(t, "bucket 'core' weights summed to 0.9; normalized", warnings[0].Message)
	assert.InDelta(t, 0.5556, p.Buckets[Core]["AAA"], 1e-4)
	assert.InDelta(t, 0.4444, p.Buckets[Core]["BBB"], 1e-4)
	assert.InDelta(t, 1.0, p.Buckets[Core]["AAA"]+p.Buckets[Core]["BBB"], 1e-12)
}

func TestValidateWithinToleranceIsSilent(t *testing.T) {
	t.Parallel()

	doc := validDoc()
	doc.Buckets["core"] = map[string]float64{"AAA": 0.6000004, "BBB": 0.4}
	_, warnings, err := Validate(doc)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateSatellite(t *testing.T) {
	t.Parallel()

	doc := validDoc()
	doc.Buckets["satellite"] = map[string]float64{"SSS": 1}
	doc.BucketWeights = map[string]float64{"core": 0.8, "Satellite": 0.2}
	doc.Constraints.MaxPositionWeights = map[string]float64{"sss": 0.15}

	p, warnings, err := Validate(doc)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.InDelta(t, 0.48, p.Target("AAA", CoreOnly), 1e-12, "core target is not renormalized")
	assert.InDelta(t, 0.0, p.Target("SSS", CoreOnly), 1e-12)
	assert.InDelta(t, 0.2, p.Target("SSS", CoreSatellite), 1e-12)
	assert.InDelta(t, 0.0, p.Target("ZZZ", CoreSatellite), 1e-12)
	assert.Equal(t, []string{"AAA", "BBB", "SSS"}, p.Tickers(CoreSatellite))

	b, ok := p.BucketOf("SSS")
	require.True(t, ok)
	assert.Equal(t, Satellite, b)

	capW, ok := p.Constraints.Cap("SSS")
	require.True(t, ok)
	assert.Equal(t, 0.15, capW)
	_, ok = p.Constraints.Cap("AAA")
	assert.False(t, ok)
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Document)
		policy  bool
		message string
	}{
		{"missing base currency", func(d *Document) { d.BaseCurrency = "" }, true, "base_currency is required"},
		{"unknown base currency", func(d *Document) { d.BaseCurrency = "EURO" }, true, "not a recognized"},
		{"unknown bucket", func(d *Document) { d.Buckets["growth"] = map[string]float64{"X": 1} }, true, "unknown bucket"},
		{"no core", func(d *Document) { d.Buckets = map[string]map[string]float64{"satellite": {"X": 1}} }, true, "core bucket is required"},
		{"ticker in two buckets", func(d *Document) {
			d.Buckets["satellite"] = map[string]float64{"aaa": 1}
			d.BucketWeights = map[string]float64{"core": 0.9, "satellite": 0.1}
		}, true, "in both"},
		{"satellite without bucket weights", func(d *Document) { d.Buckets["satellite"] = map[string]float64{"S": 1} }, true, "bucket_weights are required"},
		{"inverted thresholds", func(d *Document) { d.DriftThresholds = ThresholdsDoc{Soft: 0.05, Hard: 0.02} }, true, "below soft"},
		{"negative weight", func(d *Document) { d.Buckets["core"]["BBB"] = -0.1 }, false, "non-negative"},
		{"zero weights", func(d *Document) { d.Buckets["core"] = map[string]float64{"AAA": 0, "BBB": 0} }, false, "cannot be normalized"},
		{"negative min trade", func(d *Document) { d.Constraints.MinTradeValue = -1 }, false, "min_trade_value"},
		{"zero cap", func(d *Document) { d.Constraints.MaxPositionWeight = ptr(0) }, false, "max_position_weight"},
		{"cap above one", func(d *Document) { d.Constraints.MaxPositionWeight = ptr(1.5) }, false, "max_position_weight"},
		{"cap for unknown ticker", func(d *Document) { d.Constraints.MaxPositionWeights = map[string]float64{"ZZZ": 0.5} }, true, "in no bucket"},
		{"zero soft", func(d *Document) { d.DriftThresholds.Soft = 0 }, false, "0 < soft"},
		{"negative commission", func(d *Document) { d.Costs.CommissionRate = -0.1 }, false, "commission_rate"},
		{"bad contribution universe", func(d *Document) { d.ContributionDefaults.Universe = "bonds" }, false, "universe"},
		{"satellite-only universe", func(d *Document) { d.ContributionDefaults.Universe = "satellite" }, false, "use core+satellite"},
		{"nan soft", func(d *Document) { d.DriftThresholds.Soft = math.NaN() }, false, "0 < soft"},
		{"nan hard", func(d *Document) { d.DriftThresholds.Hard = math.NaN() }, false, "0 < soft"},
		{"nan commission", func(d *Document) { d.Costs.CommissionRate = math.NaN() }, false, "commission_rate"},
		{"nan fx spread", func(d *Document) { d.Costs.FXSpreadBps = math.NaN() }, false, "fx_spread_bps"},
		{"nan min trade", func(d *Document) { d.Constraints.MinTradeValue = math.NaN() }, false, "min_trade_value"},
		{"infinite min trade", func(d *Document) { d.Constraints.MinTradeValue = math.Inf(1) }, false, "min_trade_value"},
		{"nan cap", func(d *Document) { d.Constraints.MaxPositionWeight = ptr(math.NaN()) }, false, "max_position_weight"},
		{"nan ticker cap", func(d *Document) { d.Constraints.MaxPositionWeights = map[string]float64{"AAA": math.NaN()} }, false, "max_position_weights[AAA]"},
		{"nan contribution amount", func(d *Document) { d.ContributionDefaults.Amount = math.NaN() }, false, "contribution_defaults.amount"},
		{"infinite contribution amount", func(d *Document) { d.ContributionDefaults.Amount = math.Inf(1) }, false, "contribution_defaults.amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := validDoc()
			doc.Buckets = map[string]map[string]float64{"core": {"AAA": 0.6, "BBB": 0.4}}
			tt.mutate(&doc)

			p, _, err := Validate(doc)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.message)

			var pe *errs.PolicyError
			var ve *errs.ValidationError
			if tt.policy {
				assert.True(t, errors.As(err, &pe), "want PolicyError, got %T", err)
			} else {
				assert.True(t, errors.As(err, &ve), "want ValidationError, got %T", err)
			}
		})
	}
}

func TestParseUniverse(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Universe{"": CoreOnly, "core": CoreOnly, "CORE+SATELLITE": CoreSatellite, "all": CoreSatellite} {
		got, err := ParseUniverse(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"bonds", "satellite", " Satellite "} {
		_, err := ParseUniverse(in)
		assert.Error(t, err, in)
	}
}

func TestHashIgnoresKeyOrderAndCase(t *testing.T) {
	t.Parallel()

	a := validDoc()
	b := validDoc()
	b.BaseCurrency = "eur"
	b.Buckets = map[string]map[string]float64{"Core": {"bbb": 0.4, "aaa": 0.6}}

	pa, _, err := Validate(a)
	require.NoError(t, err)
	pb, _, err := Validate(b)
	require.NoError(t, err)
	assert.Equal(t, pa.Hash(), pb.Hash())

	c := validDoc()
	c.Constraints.NoSell = true
	pc, _, err := Validate(c)
	require.NoError(t, err)
	assert.NotEqual(t, pa.Hash(), pc.Hash())
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	for _, ext := range []string{".yaml", ".json"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(tmpDir, "policy"+ext)
			doc := Example()
			require.NoError(t, doc.SaveToFile(path))

			p, warnings, err := LoadFile(path)
			require.NoError(t, err)
			assert.Empty(t, warnings)

			want, _, err := Validate(Example())
			require.NoError(t, err)
			assert.Equal(t, want.Hash(), p.Hash())
			assert.True(t, p.Constraints.NoSell)
		})
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(`
base_currency: USD
buckets:
  core: {AAA: 0.7, BBB: 0.3}
constraints:
  min_trade_value: 25
  max_position_weight: 0.5
drift_thresholds: {soft: 0.03, hard: 0.08}
costs: {commission_rate: 0.0005, fx_spread_bps: 10}
`))
	require.NoError(t, err)
	p, _, err := Validate(doc)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Constraints.MaxPositionWeight)
	assert.Equal(t, 25.0, p.Constraints.MinTradeValue)
	assert.Equal(t, Thresholds{Soft: 0.03, Hard: 0.08}, p.DriftThresholds)

	_, err = Decode([]byte("buckets: [unclosed"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := LoadFile("/nonexistent/policy.yaml")
	assert.Error(t, err)
}

func TestDecodeRejectsNaN(t *testing.T) {
	t.Parallel()

	for _, field := range []string{
		"drift_thresholds: {soft: .nan, hard: 0.05}",
		"drift_thresholds: {soft: 0.02, hard: 0.05}\nconstraints: {max_position_weight: .nan}",
		"drift_thresholds: {soft: 0.02, hard: 0.05}\ncosts: {commission_rate: .nan}",
	} {
		doc, err := Decode([]byte("base_currency: EUR\nbuckets:\n  core: {AAA: 1}\n" + field + "\n"))
		require.NoError(t, err, field)
		_, _, err = Validate(doc)
		var ve *errs.ValidationError
		assert.True(t, errors.As(err, &ve), "%s: got %v", field, err)
	}
}
