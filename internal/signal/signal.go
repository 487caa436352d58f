// Package signal maps aggregated indicator metrics to discrete labels
// using ordered threshold tables. Each indicator owns one table; bands
// are evaluated top to bottom so boundary semantics live in the table
// itself instead of scattered conditionals.
package signal

// Direction is the coarse market direction a signal resolves to when
// combining independent indicators.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// Strength qualifies how much agreement backs a composite direction.
type Strength string

const (
	Strong   Strength = "STRONG"
	Moderate Strength = "MODERATE"
	Weak     Strength = "WEAK"
)

// Band is one row of a classification table: the metric matches when it is
// strictly greater than Bound, or greater-or-equal when Inclusive is set.
type Band struct {
	Bound     float64
	Inclusive bool
	Label     string
}

// Table is an ordered classification table. Bands are checked in order and
// Floor is the label for metrics below every band.
type Table struct {
	Bands []Band
	Floor string
}

// Classify returns the label for metric per the table's band order.
func (t Table) Classify(metric float64) string {
	for _, b := range t.Bands {
		if metric > b.Bound || (b.Inclusive && metric == b.Bound) {
			return b.Label
		}
	}
	return t.Floor
}

// ClassifyPtr propagates unavailability: a nil metric yields a nil label.
func (t Table) ClassifyPtr(metric *float64) *string {
	if metric == nil {
		return nil
	}
	label := t.Classify(*metric)
	return &label
}

// Put/Call ratio labels. The PCR is read as a contrarian gauge: extreme put
// buying marks a fear bottom, extreme call buying a greed top.
const (
	PCRExtremeFearBuy   = "EXTREME_FEAR_BUY"
	PCRBearishCaution   = "BEARISH_CAUTION"
	PCRNeutral          = "NEUTRAL"
	PCRBullishCaution   = "BULLISH_CAUTION"
	PCRExtremeGreedSell = "EXTREME_GREED_SELL"
)

// PCRTable classifies put volume / call volume. Exactly 1.5 stays in the
// bearish-caution band; only strictly greater readings are extreme fear.
var PCRTable = Table{
	Bands: []Band{
		{Bound: 1.5, Label: PCRExtremeFearBuy},
		{Bound: 1.0, Inclusive: true, Label: PCRBearishCaution},
		{Bound: 0.7, Inclusive: true, Label: PCRNeutral},
		{Bound: 0.5, Inclusive: true, Label: PCRBullishCaution},
	},
	Floor: PCRExtremeGreedSell,
}

// Premium flow labels, read as follow-the-money.
const (
	PremiumStrongBullish = "STRONG_BULLISH"
	PremiumBullish       = "BULLISH"
	PremiumNeutral       = "NEUTRAL"
	PremiumBearish       = "BEARISH"
	PremiumStrongBearish = "STRONG_BEARISH"
)

// PremiumTable classifies the call share of total premium, in percent.
var PremiumTable = Table{
	Bands: []Band{
		{Bound: 70, Label: PremiumStrongBullish},
		{Bound: 60, Inclusive: true, Label: PremiumBullish},
		{Bound: 40, Inclusive: true, Label: PremiumNeutral},
		{Bound: 30, Inclusive: true, Label: PremiumBearish},
	},
	Floor: PremiumStrongBearish,
}

// Unusual-activity labels.
const (
	UnusualBullishSweep = "BULLISH_SWEEP"
	UnusualBearishSweep = "BEARISH_SWEEP"
	UnusualHighActivity = "HIGH_ACTIVITY"
	UnusualNormal       = "NORMAL"
)

const (
	// sweepFactor: one side must out-count the other by this factor to call a sweep.
	sweepFactor = 2
	// highActivityCount: combined unusual contracts above this is notable even without a skew.
	highActivityCount = 5
)

// ClassifyUnusual maps per-side unusual contract counts to a sweep label.
// This is rule-based rather than a range table because it compares two counts.
func ClassifyUnusual(unusualCalls, unusualPuts int) string {
	switch {
	case unusualCalls > unusualPuts*sweepFactor:
		return UnusualBullishSweep
	case unusualPuts > unusualCalls*sweepFactor:
		return UnusualBearishSweep
	case unusualCalls+unusualPuts > highActivityCount:
		return UnusualHighActivity
	default:
		return UnusualNormal
	}
}

// Portfolio Greek regime labels.
const (
	DeltaLongBiased  = "LONG_BIASED"
	DeltaShortBiased = "SHORT_BIASED"
	DeltaNeutral     = "DELTA_NEUTRAL"

	GammaPositive = "POSITIVE_GAMMA"
	GammaNegative = "NEGATIVE_GAMMA"
	GammaNeutral  = "GAMMA_NEUTRAL"

	ThetaPositive = "POSITIVE_THETA"
	ThetaNegative = "NEGATIVE_THETA"
	ThetaNeutral  = "THETA_NEUTRAL"
)

// DeltaRegimeTable classifies aggregate portfolio delta in share-equivalents.
var DeltaRegimeTable = Table{
	Bands: []Band{
		{Bound: 100, Label: DeltaLongBiased},
		{Bound: -100, Inclusive: true, Label: DeltaNeutral},
	},
	Floor: DeltaShortBiased,
}

// GammaRegimeTable classifies aggregate portfolio gamma.
var GammaRegimeTable = Table{
	Bands: []Band{
		{Bound: 0.5, Label: GammaPositive},
		{Bound: -0.5, Inclusive: true, Label: GammaNeutral},
	},
	Floor: GammaNegative,
}

// ThetaRegimeTable classifies aggregate portfolio theta, dollars per day.
var ThetaRegimeTable = Table{
	Bands: []Band{
		{Bound: 50, Label: ThetaPositive},
		{Bound: -50, Inclusive: true, Label: ThetaNeutral},
	},
	Floor: ThetaNegative,
}

// DirectionOf maps an individual indicator label to a coarse direction for
// composite voting. Unknown or nil labels vote neutral.
func DirectionOf(label *string) Direction {
	if label == nil {
		return Neutral
	}
	switch *label {
	case PCRExtremeFearBuy, PCRBullishCaution, PremiumStrongBullish, PremiumBullish, UnusualBullishSweep:
		return Bullish
	case PCRBearishCaution, PCRExtremeGreedSell, PremiumStrongBearish, PremiumBearish, UnusualBearishSweep:
		return Bearish
	default:
		return Neutral
	}
}

// Combine resolves the three directional sub-signals into one overall
// direction by majority vote: full agreement is STRONG, two of three is
// MODERATE, everything else (including one-each splits) is NEUTRAL/WEAK.
func Combine(votes ...Direction) (Direction, Strength) {
	var bullish, bearish int
	for _, v := range votes {
		switch v {
		case Bullish:
			bullish++
		case Bearish:
			bearish++
		}
	}

	n := len(votes)
	switch {
	case n > 0 && bullish == n:
		return Bullish, Strong
	case n > 0 && bearish == n:
		return Bearish, Strong
	case bullish >= 2 && bullish > bearish:
		return Bullish, Moderate
	case bearish >= 2 && bearish > bullish:
		return Bearish, Moderate
	default:
		return Neutral, Weak
	}
}
