package market

import (
	"strings"

	"github.com/Rhymond/go-money"
)

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsCurrency reports whether code is a three letter ISO 4217 code known
// to the currency table.
func IsCurrency(code string) bool {
	if len(code) != 3 || code != NormalizeCurrency(code) {
		return false
	}
	return money.GetCurrency(code) != nil
}

// Pair returns the canonical "FROM/TO" name of a currency pair.
func Pair(from, to string) string { return from + "/" + to }

// SplitPair splits "EUR/USD" (or "EUR_USD") into its two currencies.
func SplitPair(pair string) (from, to string, ok bool) {
	pair = strings.ReplaceAll(NormalizeCurrency(pair), "_", "/")
	from, to, ok = strings.Cut(pair, "/")
	if !ok || len(from) != 3 || len(to) != 3 {
		return "", "", false
	}
	return from, to, true
}

// FormatAmount renders an amount with the currency's symbol and fraction
// digits, e.g. "€1,234.50".
func FormatAmount(amount float64, currency string) string {
	return money.NewFromFloat(amount, currency).Display()
}
