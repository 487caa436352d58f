// Package maxpain finds the strike where the most aggregate option value
// expires worthless, and reads the distance from spot as a reversion bias.
package maxpain

import (
	"math"
	"time"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
)

// Bias labels for price position relative to the max-pain strike.
const (
	BiasBullish = "BULLISH"
	BiasBearish = "BEARISH"
	BiasNeutral = "NEUTRAL"

	SignalCalls = "CALLS"
	SignalPuts  = "PUTS"
	SignalWait  = "WAIT"
)

// StrikePain is the pain breakdown at one candidate settlement price.
// Values are in dollars (open interest × intrinsic × contract multiplier).
type StrikePain struct {
	Strike    float64 `json:"strike"`
	CallPain  float64 `json:"call_pain"`
	PutPain   float64 `json:"put_pain"`
	TotalPain float64 `json:"total_pain"`
}

// Result is the max-pain analysis for one symbol and expiration.
type Result struct {
	Symbol             string       `json:"symbol"`
	Timestamp          time.Time    `json:"timestamp"`
	Expiration         *time.Time   `json:"expiration"`
	CurrentPrice       *float64     `json:"current_price"`
	MaxPainStrike      *float64     `json:"max_pain_strike"`
	DistanceToMaxPain  *float64     `json:"distance_to_max_pain"`
	DistancePct        *float64     `json:"distance_pct"`
	MaxPainValue       *float64     `json:"max_pain_value"`
	Bias               *string      `json:"bias"`
	Signal             *string      `json:"signal"`
	TotalCallOI        *int64       `json:"total_call_oi"`
	TotalPutOI         *int64       `json:"total_put_oi"`
	PutCallOIRatio     *float64     `json:"put_call_oi_ratio"`
	StrikesAnalyzed    int          `json:"strikes_analyzed"`
	PainByStrike       []StrikePain `json:"pain_by_strike,omitempty"`
}

// Unavailable returns the all-null result for a symbol without usable data.
func Unavailable(symbol string) Result {
	return Result{Symbol: symbol, Timestamp: time.Now().UTC()}
}

// Analyze computes the max-pain strike for the chain at the given spot price.
// The chain is expected to be pre-filtered to a single expiration; when it
// spans several, pain is summed across all of them.
func Analyze(oc *chain.OptionChain, currentPrice float64) Result {
	if oc.Empty() {
		return Unavailable(symbolOf(oc))
	}

	calls, puts := oc.Partition()
	strikes := oc.Strikes()
	if len(strikes) == 0 {
		return Unavailable(oc.Symbol)
	}

	painByStrike := make([]StrikePain, 0, len(strikes))
	var maxStrike float64
	var maxValue float64
	// Strikes are scanned ascending with a strictly-greater comparison, so
	// the lowest strike wins among equal maxima.
	for i, s := range strikes {
		p := painAt(s, calls, puts)
		painByStrike = append(painByStrike, p)
		if i == 0 || p.TotalPain > maxValue {
			maxValue = p.TotalPain
			maxStrike = s
		}
	}

	r := Result{
		Symbol:          oc.Symbol,
		Timestamp:       oc.FetchedAt,
		StrikesAnalyzed: len(strikes),
		PainByStrike:    painByStrike,
	}

	price := round(currentPrice, 2)
	distance := round(currentPrice-maxStrike, 2)
	r.CurrentPrice = &price
	r.MaxPainStrike = &maxStrike
	r.DistanceToMaxPain = &distance
	r.MaxPainValue = ptr(round(maxValue, 2))
	if currentPrice != 0 {
		r.DistancePct = ptr(round(distance/currentPrice*100, 2))
	}

	bias, sig := classifyBias(distance)
	r.Bias = &bias
	r.Signal = &sig

	if exp := firstExpiration(oc); !exp.IsZero() {
		r.Expiration = &exp
	}

	var callOI, putOI int64
	for _, c := range calls {
		callOI += c.OpenInterest
	}
	for _, p := range puts {
		putOI += p.OpenInterest
	}
	r.TotalCallOI = &callOI
	r.TotalPutOI = &putOI
	if callOI > 0 {
		r.PutCallOIRatio = ptr(round(float64(putOI)/float64(callOI), 2))
	}

	return r
}

// painAt sums the intrinsic value that would be paid out to option holders
// if the underlying settled at strike s. Calls struck below s and puts
// struck above s are in the money.
func painAt(s float64, calls, puts []chain.Contract) StrikePain {
	p := StrikePain{Strike: s}
	for _, c := range calls {
		if c.Strike < s {
			p.CallPain += (s - c.Strike) * float64(c.OpenInterest) * chain.ContractMultiplier
		}
	}
	for _, c := range puts {
		if c.Strike > s {
			p.PutPain += (c.Strike - s) * float64(c.OpenInterest) * chain.ContractMultiplier
		}
	}
	p.TotalPain = p.CallPain + p.PutPain
	return p
}

// classifyBias reads price position against the max-pain strike: price above
// max pain is expected to get pulled down, below pulled up.
func classifyBias(distance float64) (bias, sig string) {
	switch {
	case distance > 0:
		return BiasBearish, SignalPuts
	case distance < 0:
		return BiasBullish, SignalCalls
	default:
		return BiasNeutral, SignalWait
	}
}

func firstExpiration(oc *chain.OptionChain) time.Time {
	var earliest time.Time
	for _, c := range oc.Contracts {
		if earliest.IsZero() || c.Expiration.Before(earliest) {
			earliest = c.Expiration
		}
	}
	return earliest
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
