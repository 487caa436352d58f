// Package greeks extracts at-the-money option Greeks from a chain snapshot
// and aggregates per-position Greeks to the portfolio level.
package greeks

import (
	"math"
	"time"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
	"github.com/dgnsrekt/tradepilot-indicators/internal/signal"
)

// ATMResult holds the Greeks of the call and put struck closest to spot.
// ATM contracts carry the highest gamma and are the best single-strike
// proxy for how the whole chain reacts to the underlying.
type ATMResult struct {
	Symbol           string        `json:"symbol"`
	Timestamp        time.Time     `json:"timestamp"`
	CurrentPrice     *float64      `json:"current_price"`
	ATMStrike        *float64      `json:"atm_strike"`
	CallGreeks       *chain.Greeks `json:"call_greeks"`
	PutGreeks        *chain.Greeks `json:"put_greeks"`
	CallIV           *float64      `json:"call_implied_volatility"`
	PutIV            *float64      `json:"put_implied_volatility"`
}

// Position is one option holding in a portfolio; negative quantity is short.
type Position struct {
	Symbol   string     `json:"symbol"`
	Strike   float64    `json:"strike"`
	Side     chain.Side `json:"type"`
	Quantity int        `json:"quantity"`
}

// PositionGreeks is the quantity-scaled exposure of one position.
type PositionGreeks struct {
	Position
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// PortfolioResult aggregates exposure across positions, with regime labels.
type PortfolioResult struct {
	Timestamp   time.Time        `json:"timestamp"`
	Totals      chain.Greeks     `json:"portfolio_greeks"`
	DeltaRegime string           `json:"delta_regime"`
	GammaRegime string           `json:"gamma_regime"`
	ThetaRegime string           `json:"theta_regime"`
	Positions   []PositionGreeks `json:"positions"`
}

// UnavailableATM returns the all-null ATM result.
func UnavailableATM(symbol string) ATMResult {
	return ATMResult{Symbol: symbol, Timestamp: time.Now().UTC()}
}

// ATM finds the call and put struck closest to spot and reports their Greeks.
// Contracts without Greeks are ignored; if either side has none, the result
// is all-null rather than half-populated.
func ATM(oc *chain.OptionChain, spot float64) ATMResult {
	if oc.Empty() || spot <= 0 {
		return UnavailableATM(symbolOf(oc))
	}

	calls, puts := oc.Partition()
	atmCall := closestWithGreeks(calls, spot)
	atmPut := closestWithGreeks(puts, spot)
	if atmCall == nil || atmPut == nil {
		return UnavailableATM(oc.Symbol)
	}

	r := ATMResult{
		Symbol:       oc.Symbol,
		Timestamp:    oc.FetchedAt,
		CurrentPrice: ptr(round(spot, 2)),
		ATMStrike:    &atmCall.Strike,
		CallGreeks:   atmCall.Greeks,
		PutGreeks:    atmPut.Greeks,
		CallIV:       atmCall.ImpliedVolatility,
		PutIV:        atmPut.ImpliedVolatility,
	}
	return r
}

// Portfolio scales each position's Greeks by quantity and sums them.
// Delta and gamma are share-equivalent (×100 per contract); theta, vega and
// rho are per-contract dollar sensitivities. Positions whose contract cannot
// be resolved in the supplied chain are skipped.
func Portfolio(positions []Position, lookup func(symbol string, strike float64, side chain.Side) *chain.Contract) PortfolioResult {
	r := PortfolioResult{Timestamp: time.Now().UTC()}

	for _, pos := range positions {
		c := lookup(pos.Symbol, pos.Strike, pos.Side)
		if c == nil || c.Greeks == nil {
			continue
		}

		qty := float64(pos.Quantity)
		pg := PositionGreeks{
			Position: pos,
			Delta:    round(c.Greeks.Delta*qty*chain.ContractMultiplier, 2),
			Gamma:    round(c.Greeks.Gamma*qty*chain.ContractMultiplier, 4),
			Theta:    round(c.Greeks.Theta*qty, 2),
			Vega:     round(c.Greeks.Vega*qty, 2),
			Rho:      round(c.Greeks.Rho*qty, 2),
		}

		r.Totals.Delta += pg.Delta
		r.Totals.Gamma += pg.Gamma
		r.Totals.Theta += pg.Theta
		r.Totals.Vega += pg.Vega
		r.Totals.Rho += pg.Rho
		r.Positions = append(r.Positions, pg)
	}

	r.Totals.Delta = round(r.Totals.Delta, 2)
	r.Totals.Gamma = round(r.Totals.Gamma, 4)
	r.Totals.Theta = round(r.Totals.Theta, 2)
	r.Totals.Vega = round(r.Totals.Vega, 2)
	r.Totals.Rho = round(r.Totals.Rho, 2)

	r.DeltaRegime = signal.DeltaRegimeTable.Classify(r.Totals.Delta)
	r.GammaRegime = signal.GammaRegimeTable.Classify(r.Totals.Gamma)
	r.ThetaRegime = signal.ThetaRegimeTable.Classify(r.Totals.Theta)

	return r
}

// ChainLookup builds a Portfolio lookup function over a set of fetched
// chains keyed by symbol.
func ChainLookup(chains map[string]*chain.OptionChain) func(string, float64, chain.Side) *chain.Contract {
	return func(symbol string, strike float64, side chain.Side) *chain.Contract {
		oc, ok := chains[symbol]
		if !ok || oc.Empty() {
			return nil
		}
		for i := range oc.Contracts {
			c := &oc.Contracts[i]
			if c.Strike == strike && c.Side == side {
				return c
			}
		}
		return nil
	}
}

func closestWithGreeks(contracts []chain.Contract, spot float64) *chain.Contract {
	var best *chain.Contract
	bestDist := math.Inf(1)
	for i := range contracts {
		c := &contracts[i]
		if c.Greeks == nil {
			continue
		}
		if d := math.Abs(c.Strike - spot); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func symbolOf(oc *chain.OptionChain) string {
	if oc == nil {
		return ""
	}
	return oc.Symbol
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func ptr[T any](v T) *T { return &v }
