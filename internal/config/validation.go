package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation for symbols and analysis parameters. Malformed input is
// the one error class that fails fast instead of degrading to a null result,
// so it is checked before any fetch is attempted.

// symbolPattern matches US equity/index tickers: 1-6 capital letters.
var symbolPattern = regexp.MustCompile(`^[A-Z]{1,6}$`)

// datePattern matches YYYY-MM-DD expiration dates.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const (
	MaxExpiryDaysLimit = 365
)

// ValidationErrors collects all validation errors so a misconfigured
// watchlist reports every bad entry at once.
type ValidationErrors struct {
	InvalidSymbols []string
	InvalidParams  []string
}

// HasErrors returns true if any validation errors exist.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidSymbols) > 0 || len(e.InvalidParams) > 0
}

// Error formats all validation errors into a clear message.
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")

	if len(e.InvalidSymbols) > 0 {
		sb.WriteString("\nInvalid symbols:\n")
		for _, s := range e.InvalidSymbols {
			sb.WriteString(fmt.Sprintf("  - %q\n", s))
		}
		sb.WriteString("\nSymbols must be 1-6 capital letters (e.g. SPY, AAPL)\n")
	}

	if len(e.InvalidParams) > 0 {
		sb.WriteString("\nInvalid parameters:\n")
		for _, p := range e.InvalidParams {
			sb.WriteString(fmt.Sprintf("  - %s\n", p))
		}
	}

	return sb.String()
}

// ValidateSymbol checks one ticker symbol.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q: must be 1-6 capital letters", symbol)
	}
	return nil
}

// NormalizeSymbol upper-cases and trims a user-supplied symbol before
// validation.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateExpirationDate checks an explicit expiration filter.
func ValidateExpirationDate(date string) error {
	if date == "" {
		return nil
	}
	if !datePattern.MatchString(date) {
		return fmt.Errorf("invalid expiration_date %q: must be YYYY-MM-DD", date)
	}
	return nil
}

// ValidateParams checks the analysis parameter ranges.
func ValidateParams(maxExpiryDays int, minOpenInterest int64) error {
	errs := &ValidationErrors{}

	if maxExpiryDays < 0 || maxExpiryDays > MaxExpiryDaysLimit {
		errs.InvalidParams = append(errs.InvalidParams,
			fmt.Sprintf("max_expiry_days %d out of range [0, %d]", maxExpiryDays, MaxExpiryDaysLimit))
	}
	if minOpenInterest < 0 {
		errs.InvalidParams = append(errs.InvalidParams,
			fmt.Sprintf("min_open_interest %d must be >= 0", minOpenInterest))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateWatchlist checks every configured symbol, collecting all failures.
func ValidateWatchlist(symbols []string) error {
	errs := &ValidationErrors{}

	for _, s := range symbols {
		if !symbolPattern.MatchString(s) {
			errs.InvalidSymbols = append(errs.InvalidSymbols, s)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
