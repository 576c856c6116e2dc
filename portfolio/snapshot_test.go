package portfolio

import (
	"errors"
	"testing"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = market.NewDate(2024, 1, 2)

func mustSnapshot(t *testing.T, ps ...Position) Snapshot {
	t.Helper()
	s, err := NewSnapshot(day, ps)
	require.NoError(t, err)
	return s
}

func TestNewSnapshotValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []Position
	}{
		{"empty ticker", []Position{{Quantity: 1}}},
		{"duplicate", []Position{{Ticker: "AAA", Quantity: 1}, {Ticker: "AAA", Quantity: 2}}},
		{"negative", []Position{{Ticker: "AAA", Quantity: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSnapshot(day, tt.in)
			var ve *errs.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	t.Parallel()

	in := []Position{{Ticker: "BBB", Quantity: 2, Currency: "usd"}, {Ticker: "AAA", Quantity: 1, Currency: "EUR"}}
	s := mustSnapshot(t, in...)
	in[0].Quantity = 99

	assert.Equal(t, 2.0, s.Quantity("BBB"))
	assert.Equal(t, "USD", s.Positions()[0].Currency)

	got := s.Positions()
	got[0].Quantity = 42
	assert.Equal(t, 2.0, s.Quantity("BBB"))
	assert.Equal(t, []string{"AAA", "BBB"}, s.Tickers())
}

func TestSnapshotApply(t *testing.T) {
	t.Parallel()

	s := mustSnapshot(t, Position{Ticker: "AAA", Quantity: 10, Currency: "EUR"})
	next, err := s.Apply(day.AddDays(1), []Trade{
		{Ticker: "AAA", Quantity: -4},
		{Ticker: "CCC", Quantity: 3, Currency: "usd"},
	})
	require.NoError(t, err)

	assert.Equal(t, 10.0, s.Quantity("AAA"), "original untouched")
	assert.Equal(t, 6.0, next.Quantity("AAA"))
	assert.Equal(t, 3.0, next.Quantity("CCC"))
	assert.Equal(t, day.AddDays(1), next.AsOf())
	p, ok := next.Position("CCC")
	require.True(t, ok)
	assert.Equal(t, "USD", p.Currency)

	_, err = s.Apply(day, []Trade{{Ticker: "AAA", Quantity: -11}})
	assert.Error(t, err)
	_, err = s.Apply(day, []Trade{{Ticker: "ZZZ", Quantity: -1}})
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	t.Parallel()

	prices := market.NewPriceSeries()
	require.NoError(t, prices.Add("AAA", "EUR", day, 10))
	require.NoError(t, prices.Add("BBB", "USD", day, 50))
	fx := market.NewFXSeries()
	require.NoError(t, fx.Add("EUR", "USD", day, 1.25))

	s := mustSnapshot(t,
		Position{Ticker: "AAA", Quantity: 8, Currency: "EUR"},
		Position{Ticker: "BBB", Quantity: 2, Currency: "USD"},
		Position{Ticker: "ZZZ", Quantity: 0, Currency: "USD"},
	)

	v, err := Value(s, prices, fx, "EUR", day)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, v.Value("AAA"), 1e-9)
	assert.InDelta(t, 80.0, v.Value("BBB"), 1e-9)
	assert.InDelta(t, 160.0, v.Total, 1e-9)
	assert.Equal(t, []string{"AAA", "BBB", "ZZZ"}, v.Tickers())

	_, err = Value(s, prices, fx, "GBP", day)
	var dm *errs.DataMissingError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, "EUR/GBP", dm.Key)

	_, err = Value(s, prices, fx, "EUR", day.AddDays(1))
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, "AAA", dm.Key)
}
