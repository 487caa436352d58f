// Package flow implements the options-flow indicator family: put/call
// ratio, premium flow, and unusual-activity detection, folded into one
// composite read of a single chain snapshot.
package flow

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
	"github.com/dgnsrekt/tradepilot-indicators/internal/signal"
)

// AggregateTotals holds the per-side sums derived from one snapshot.
// Recomputed on every call; never cached inside the indicator itself.
type AggregateTotals struct {
	CallVolume       int64
	PutVolume        int64
	CallPremium      float64
	PutPremium       float64
	CallOpenInterest int64
	PutOpenInterest  int64
	UnusualCalls     int
	UnusualPuts      int
}

// UnusualContract is one flagged contract, reported for the activity detail.
type UnusualContract struct {
	Side          chain.Side `json:"type"`
	Strike        float64    `json:"strike"`
	Volume        int64      `json:"volume"`
	OpenInterest  int64      `json:"oi"`
	VolumeOIRatio float64    `json:"volume_oi_ratio"`
}

// Result is the complete flow analysis for one symbol. Every metric is a
// pointer so unavailable data serializes as explicit JSON null.
type Result struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	PutCallRatio *float64 `json:"put_call_ratio"`
	PutVolume    *int64   `json:"put_volume"`
	CallVolume   *int64   `json:"call_volume"`
	PCRSignal    *string  `json:"pcr_signal"`

	CallPremium    *float64 `json:"call_premium"`
	PutPremium     *float64 `json:"put_premium"`
	CallPremiumPct *float64 `json:"call_premium_pct"`
	PutPremiumPct  *float64 `json:"put_premium_pct"`
	PremiumRatio   *float64 `json:"premium_ratio"`
	PremiumSignal  *string  `json:"premium_signal"`

	UnusualCallContracts   *int              `json:"unusual_call_contracts"`
	UnusualPutContracts    *int              `json:"unusual_put_contracts"`
	UnusualActivityFound   bool              `json:"unusual_activity_detected"`
	UnusualSignal          *string           `json:"unusual_signal"`
	TopUnusualCalls        []UnusualContract `json:"top_unusual_calls,omitempty"`
	TopUnusualPuts         []UnusualContract `json:"top_unusual_puts,omitempty"`
	OverallSignal          *string           `json:"overall_signal"`
	SignalStrength         *string           `json:"signal_strength"`
	Interpretation         string            `json:"interpretation"`
}

// topUnusualLimit caps the flagged-contract detail per side.
const topUnusualLimit = 5

// minContracts is the floor below which a chain is considered insufficient.
const minContracts = 1

// Aggregate folds one snapshot into per-side totals.
func Aggregate(oc *chain.OptionChain) AggregateTotals {
	var t AggregateTotals
	for _, c := range oc.Contracts {
		switch c.Side {
		case chain.Call:
			t.CallVolume += c.Volume
			t.CallPremium += c.Premium()
			t.CallOpenInterest += c.OpenInterest
			if c.Unusual() {
				t.UnusualCalls++
			}
		case chain.Put:
			t.PutVolume += c.Volume
			t.PutPremium += c.Premium()
			t.PutOpenInterest += c.OpenInterest
			if c.Unusual() {
				t.UnusualPuts++
			}
		}
	}
	return t
}

// Analyze runs the three flow pipelines over one snapshot and resolves the
// composite signal. A nil or empty chain yields the all-null result.
func Analyze(oc *chain.OptionChain) Result {
	if oc.Empty() || len(oc.Contracts) < minContracts {
		return Unavailable(symbolOf(oc))
	}

	totals := Aggregate(oc)
	r := Result{
		Symbol:    oc.Symbol,
		Timestamp: oc.FetchedAt,
	}

	applyPCR(&r, totals)
	applyPremium(&r, totals)
	applyUnusual(&r, oc, totals)

	direction, strength := signal.Combine(
		signal.DirectionOf(r.PCRSignal),
		signal.DirectionOf(r.PremiumSignal),
		signal.DirectionOf(r.UnusualSignal),
	)
	dir := string(direction)
	str := string(strength)
	r.OverallSignal = &dir
	r.SignalStrength = &str
	r.Interpretation = interpret(direction, r)

	return r
}

// Unavailable returns the all-null result used whenever a chain cannot be
// fetched or survives filtering with too few contracts.
func Unavailable(symbol string) Result {
	return Result{
		Symbol:         symbol,
		Timestamp:      time.Now().UTC(),
		Interpretation: "Options flow data not available",
	}
}

func applyPCR(r *Result, t AggregateTotals) {
	r.CallVolume = ptr(t.CallVolume)
	r.PutVolume = ptr(t.PutVolume)

	// A zero call volume means no ratio, not +Inf. The raw volumes stay.
	if t.CallVolume == 0 {
		return
	}

	pcr := round(float64(t.PutVolume)/float64(t.CallVolume), 3)
	r.PutCallRatio = &pcr
	r.PCRSignal = signal.PCRTable.ClassifyPtr(&pcr)
}

func applyPremium(r *Result, t AggregateTotals) {
	total := t.CallPremium + t.PutPremium
	if total == 0 {
		return
	}

	callPremium := round(t.CallPremium, 2)
	putPremium := round(t.PutPremium, 2)
	callPct := round(t.CallPremium/total*100, 2)
	putPct := round(t.PutPremium/total*100, 2)

	r.CallPremium = &callPremium
	r.PutPremium = &putPremium
	r.CallPremiumPct = &callPct
	r.PutPremiumPct = &putPct

	if t.PutPremium > 0 {
		ratio := round(t.CallPremium/t.PutPremium, 3)
		r.PremiumRatio = &ratio
	}

	r.PremiumSignal = signal.PremiumTable.ClassifyPtr(&callPct)
}

func applyUnusual(r *Result, oc *chain.OptionChain, t AggregateTotals) {
	r.UnusualCallContracts = ptr(t.UnusualCalls)
	r.UnusualPutContracts = ptr(t.UnusualPuts)
	r.UnusualActivityFound = t.UnusualCalls > 0 || t.UnusualPuts > 0

	label := signal.ClassifyUnusual(t.UnusualCalls, t.UnusualPuts)
	r.UnusualSignal = &label

	r.TopUnusualCalls, r.TopUnusualPuts = topUnusual(oc)
}

// topUnusual collects the flagged contracts per side, largest volume first.
func topUnusual(oc *chain.OptionChain) (calls, puts []UnusualContract) {
	for _, c := range oc.Contracts {
		if !c.Unusual() {
			continue
		}
		uc := UnusualContract{
			Side:          c.Side,
			Strike:        c.Strike,
			Volume:        c.Volume,
			OpenInterest:  c.OpenInterest,
			VolumeOIRatio: round(float64(c.Volume)/float64(c.OpenInterest), 2),
		}
		if c.Side == chain.Call {
			calls = append(calls, uc)
		} else {
			puts = append(puts, uc)
		}
	}

	byVolume := func(list []UnusualContract) {
		sort.Slice(list, func(i, j int) bool { return list[i].Volume > list[j].Volume })
	}
	byVolume(calls)
	byVolume(puts)

	if len(calls) > topUnusualLimit {
		calls = calls[:topUnusualLimit]
	}
	if len(puts) > topUnusualLimit {
		puts = puts[:topUnusualLimit]
	}
	return calls, puts
}

func interpret(direction signal.Direction, r Result) string {
	parts := []string{}
	switch direction {
	case signal.Bullish:
		parts = append(parts, "Bullish options flow detected")
	case signal.Bearish:
		parts = append(parts, "Bearish options flow detected")
	default:
		parts = append(parts, "Neutral options flow")
	}

	if r.CallPremiumPct != nil && *r.CallPremiumPct > 60 {
		parts = append(parts, fmt.Sprintf("%.0f%% of premium in calls", *r.CallPremiumPct))
	} else if r.PutPremiumPct != nil && *r.PutPremiumPct > 60 {
		parts = append(parts, fmt.Sprintf("%.0f%% of premium in puts", *r.PutPremiumPct))
	}

	if r.UnusualSignal != nil {
		switch *r.UnusualSignal {
		case signal.UnusualBullishSweep:
			parts = append(parts, "Unusual call buying detected")
		case signal.UnusualBearishSweep:
			parts = append(parts, "Unusual put buying detected")
		}
	}

	return strings.Join(parts, " - ")
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
