package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/tradepilot-indicators/internal/flow"
	"github.com/dgnsrekt/tradepilot-indicators/internal/scan"
)

// FormatSignalMessage creates an alert body for one flow result.
func FormatSignalMessage(result flow.Result) string {
	var sb strings.Builder

	if result.OverallSignal != nil {
		sb.WriteString(fmt.Sprintf("Signal: %s", *result.OverallSignal))
		if result.SignalStrength != nil {
			sb.WriteString(fmt.Sprintf(" (%s)", *result.SignalStrength))
		}
		sb.WriteString("\n")
	}
	if result.PutCallRatio != nil {
		sb.WriteString(fmt.Sprintf("Put/Call Ratio: %.2f\n", *result.PutCallRatio))
	}
	if result.CallPremiumPct != nil {
		sb.WriteString(fmt.Sprintf("Call Premium: %.1f%%\n", *result.CallPremiumPct))
	}
	if result.Interpretation != "" {
		sb.WriteString(result.Interpretation)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FormatScanMessage creates a watchlist scan summary body.
func FormatScanMessage(result *scan.BatchResult, duration time.Duration) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Symbols: %d\n", result.Total))
	sb.WriteString(fmt.Sprintf("Analyzed: %d\n", result.Analyzed))
	sb.WriteString(fmt.Sprintf("Strong Signals: %d\n", result.Strong))
	sb.WriteString(fmt.Sprintf("Unavailable: %d\n", result.Unavailable))
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	if len(result.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		limit := 3
		if len(result.Errors) < limit {
			limit = len(result.Errors)
		}
		for i := 0; i < limit; i++ {
			sb.WriteString(fmt.Sprintf("- %s\n", result.Errors[i]))
		}
		if len(result.Errors) > 3 {
			sb.WriteString(fmt.Sprintf("... and %d more errors", len(result.Errors)-3))
		}
	}

	return sb.String()
}
