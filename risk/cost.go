package risk

import "github.com/rustyeddy/plumbline/policy"

// TradeCost is the commission plus, when the currencies differ, the FX
// spread charged on a trade of amountBase.
func TradeCost(amountBase float64, from, to string, commissionRate, fxSpreadBps float64) float64 {
	amount := amountBase
	if amount < 0 {
		amount = -amount
	}
	cost := amount * commissionRate
	if from != to {
		cost += amount * fxSpreadBps / 10000
	}
	return cost
}

// CostModel binds the cost parameters of a policy.
type CostModel policy.Costs

// Cost applies TradeCost with the rates of m.
func (m CostModel) Cost(amountBase float64, from, to string) float64 {
	return TradeCost(amountBase, from, to, m.CommissionRate, m.FXSpreadBps)
}

// MaxRate is the largest cost per unit traded, the rate of a cross
// currency trade.
func (m CostModel) MaxRate() float64 { return m.CommissionRate + m.FXSpreadBps/10000 }
