// Package gex computes dealer gamma exposure per strike and reduces it to a
// market regime, gamma walls, and a zero-gamma level.
//
// Call GEX = OI × gamma × 100 × spot / 1M; put GEX is the same, negated.
// Positive net GEX means dealers are long gamma and hedge against moves;
// negative net GEX means their hedging amplifies moves.
package gex

import (
	"math"
	"sort"
	"time"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
)

// Regime labels for net gamma exposure, in millions of dollars per point.
const (
	RegimePositive = "Positive Gamma"
	RegimeNegative = "Negative Gamma"
	RegimeNeutral  = "Neutral Gamma"

	DealerLongGamma  = "Long Gamma (Stabilizing)"
	DealerShortGamma = "Short Gamma (Volatility Amplifier)"
	DealerBalanced   = "Balanced"
)

// regimeThreshold is the net GEX magnitude (in $M) separating a directional
// gamma regime from neutral.
const regimeThreshold = 1000.0

// Level is the gamma exposure at one strike/expiration pair.
type Level struct {
	Strike     float64   `json:"strike"`
	Expiration time.Time `json:"expiration"`
	CallOI     int64     `json:"call_oi"`
	PutOI      int64     `json:"put_oi"`
	CallGamma  float64   `json:"call_gamma"`
	PutGamma   float64   `json:"put_gamma"`
	CallGEX    float64   `json:"call_gex"`
	PutGEX     float64   `json:"put_gex"`
	NetGEX     float64   `json:"net_gex"`
}

// Profile is the complete gamma exposure analysis for one symbol.
type Profile struct {
	Symbol            string    `json:"symbol"`
	Timestamp         time.Time `json:"timestamp"`
	CurrentPrice      *float64  `json:"current_price"`
	TotalCallGEX      *float64  `json:"total_call_gex"`
	TotalPutGEX       *float64  `json:"total_put_gex"`
	NetGEX            *float64  `json:"net_gex"`
	Regime            *string   `json:"regime"`
	DealerPositioning *string   `json:"dealer_positioning"`
	ZeroGammaLevel    *float64  `json:"zero_gamma_level"`
	LargestCallWall   *float64  `json:"largest_call_wall"`
	LargestPutWall    *float64  `json:"largest_put_wall"`
	ResistanceLevels  []float64 `json:"resistance_levels"`
	SupportLevels     []float64 `json:"support_levels"`
	Levels            []Level   `json:"levels,omitempty"`
	StrikesAnalyzed   int       `json:"strikes_analyzed"`
}

// wallCount is how many call/put walls are reported as resistance/support.
const wallCount = 3

// Unavailable returns the all-null profile for a symbol without usable data.
func Unavailable(symbol string) Profile {
	return Profile{Symbol: symbol, Timestamp: time.Now().UTC()}
}

// Analyze builds the GEX profile from one snapshot. minOI drops levels where
// neither side carries that much open interest. Contracts without Greeks
// contribute no gamma and are effectively skipped.
func Analyze(oc *chain.OptionChain, spot float64, minOI int64) Profile {
	if oc.Empty() || spot <= 0 {
		return Unavailable(symbolOf(oc))
	}

	levels := buildLevels(oc, spot, minOI)
	if len(levels) == 0 {
		return Unavailable(oc.Symbol)
	}

	p := Profile{
		Symbol:          oc.Symbol,
		Timestamp:       oc.FetchedAt,
		CurrentPrice:    ptr(round(spot, 2)),
		StrikesAnalyzed: len(levels),
	}

	var totalCall, totalPut float64
	for _, l := range levels {
		totalCall += l.CallGEX
		totalPut += l.PutGEX
	}
	net := totalCall + totalPut
	p.TotalCallGEX = ptr(round(totalCall, 2))
	p.TotalPutGEX = ptr(round(totalPut, 2))
	p.NetGEX = ptr(round(net, 2))

	regime, positioning := classifyRegime(net)
	p.Regime = &regime
	p.DealerPositioning = &positioning

	p.ResistanceLevels, p.LargestCallWall = callWalls(levels)
	p.SupportLevels, p.LargestPutWall = putWalls(levels)
	p.ZeroGammaLevel = ptr(round(zeroGammaLevel(levels, spot), 2))

	// Report levels ordered by exposure magnitude, largest first.
	sort.Slice(levels, func(i, j int) bool {
		return math.Abs(levels[i].NetGEX) > math.Abs(levels[j].NetGEX)
	})
	p.Levels = levels

	return p
}

// buildLevels groups contracts by (strike, expiration) and computes the
// signed exposure per group.
func buildLevels(oc *chain.OptionChain, spot float64, minOI int64) []Level {
	type key struct {
		strike     float64
		expiration time.Time
	}
	groups := make(map[key]*Level)

	for _, c := range oc.Contracts {
		if c.Greeks == nil {
			continue
		}
		k := key{c.Strike, c.Expiration}
		l, ok := groups[k]
		if !ok {
			l = &Level{Strike: c.Strike, Expiration: c.Expiration}
			groups[k] = l
		}
		switch c.Side {
		case chain.Call:
			l.CallOI += c.OpenInterest
			l.CallGamma = c.Greeks.Gamma
		case chain.Put:
			l.PutOI += c.OpenInterest
			l.PutGamma = c.Greeks.Gamma
		}
	}

	levels := make([]Level, 0, len(groups))
	for _, l := range groups {
		if l.CallOI < minOI && l.PutOI < minOI {
			continue
		}
		l.CallGEX = gexValue(l.CallOI, l.CallGamma, spot)
		l.PutGEX = -gexValue(l.PutOI, l.PutGamma, spot)
		l.NetGEX = l.CallGEX + l.PutGEX
		levels = append(levels, *l)
	}
	return levels
}

// gexValue converts open interest and gamma to dollar exposure in millions.
func gexValue(oi int64, gamma, spot float64) float64 {
	return float64(oi) * gamma * chain.ContractMultiplier * spot / 1_000_000
}

func classifyRegime(net float64) (regime, positioning string) {
	switch {
	case net > regimeThreshold:
		return RegimePositive, DealerLongGamma
	case net < -regimeThreshold:
		return RegimeNegative, DealerShortGamma
	default:
		return RegimeNeutral, DealerBalanced
	}
}

// callWalls returns the top strikes by call GEX (resistance), plus the largest.
func callWalls(levels []Level) ([]float64, *float64) {
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CallGEX > sorted[j].CallGEX })
	return topStrikes(sorted)
}

// putWalls returns the top strikes by put GEX magnitude (support), plus the largest.
func putWalls(levels []Level) ([]float64, *float64) {
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].PutGEX) > math.Abs(sorted[j].PutGEX)
	})
	return topStrikes(sorted)
}

func topStrikes(sorted []Level) ([]float64, *float64) {
	if len(sorted) == 0 {
		return nil, nil
	}
	n := wallCount
	if len(sorted) < n {
		n = len(sorted)
	}
	strikes := make([]float64, 0, n)
	for _, l := range sorted[:n] {
		strikes = append(strikes, l.Strike)
	}
	wall := sorted[0].Strike
	return strikes, &wall
}

// zeroGammaLevel scans cumulative net GEX by ascending strike and snaps to
// the strike nearest the sign change. Interpolation would report a level
// between strikes, but snapping keeps the level tradeable; with no crossing
// the spot price is returned.
func zeroGammaLevel(levels []Level, spot float64) float64 {
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Strike < sorted[j].Strike })

	cumulative := make([]float64, len(sorted))
	sum := 0.0
	for i, l := range sorted {
		sum += l.NetGEX
		cumulative[i] = sum
	}

	for i := 0; i < len(cumulative)-1; i++ {
		if cumulative[i]*cumulative[i+1] < 0 {
			if math.Abs(cumulative[i]) <= math.Abs(cumulative[i+1]) {
				return sorted[i].Strike
			}
			return sorted[i+1].Strike
		}
	}
	return spot
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
