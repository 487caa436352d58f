package chain

import (
	"sort"
	"time"
)

// Side identifies the option contract type.
type Side string

const (
	Call Side = "call"
	Put  Side = "put"
)

// ContractMultiplier is the share count per standard equity option contract.
const ContractMultiplier = 100

// Greeks holds the option price sensitivities reported by the data provider.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Contract is a single option contract from a chain snapshot.
// Immutable once fetched; all derived values are computed by the
// indicator packages, never stored back on the contract.
type Contract struct {
	Ticker            string    `json:"ticker"`
	Side              Side      `json:"side"`
	Strike            float64   `json:"strike"`
	Expiration        time.Time `json:"expiration"`
	Volume            int64     `json:"volume"`
	OpenInterest      int64     `json:"open_interest"`
	Price             float64   `json:"price"`
	Greeks            *Greeks   `json:"greeks,omitempty"`
	ImpliedVolatility *float64  `json:"implied_volatility,omitempty"`
}

// Premium returns the dollars committed to this contract's traded volume.
func (c Contract) Premium() float64 {
	return float64(c.Volume) * c.Price * ContractMultiplier
}

// Unusual reports whether traded volume is large relative to open interest,
// which flags new positions being opened rather than existing ones turning over.
func (c Contract) Unusual() bool {
	return c.OpenInterest > 0 && float64(c.Volume) > float64(c.OpenInterest)*0.5
}

// OptionChain is one point-in-time snapshot of all contracts for a symbol.
type OptionChain struct {
	Symbol    string     `json:"symbol"`
	Spot      float64    `json:"spot"`
	FetchedAt time.Time  `json:"fetched_at"`
	Contracts []Contract `json:"contracts"`
}

// Empty reports whether the snapshot carries no contracts.
func (oc *OptionChain) Empty() bool {
	return oc == nil || len(oc.Contracts) == 0
}

// Partition splits the chain into calls and puts, preserving order.
func (oc *OptionChain) Partition() (calls, puts []Contract) {
	for _, c := range oc.Contracts {
		switch c.Side {
		case Call:
			calls = append(calls, c)
		case Put:
			puts = append(puts, c)
		}
	}
	return calls, puts
}

// Filter returns a copy of the chain keeping only contracts with at least
// minOI open interest and, when maxExpiry is non-zero, expiring on or before it.
func (oc *OptionChain) Filter(minOI int64, maxExpiry time.Time) *OptionChain {
	filtered := &OptionChain{
		Symbol:    oc.Symbol,
		Spot:      oc.Spot,
		FetchedAt: oc.FetchedAt,
	}
	for _, c := range oc.Contracts {
		if c.OpenInterest < minOI {
			continue
		}
		if !maxExpiry.IsZero() && c.Expiration.After(maxExpiry) {
			continue
		}
		filtered.Contracts = append(filtered.Contracts, c)
	}
	return filtered
}

// Strikes returns the sorted set of distinct strike prices in the chain.
func (oc *OptionChain) Strikes() []float64 {
	seen := make(map[float64]bool)
	var strikes []float64
	for _, c := range oc.Contracts {
		if !seen[c.Strike] {
			seen[c.Strike] = true
			strikes = append(strikes, c.Strike)
		}
	}
	sort.Float64s(strikes)
	return strikes
}
