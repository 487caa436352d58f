// Package scan runs the flow composite across a watchlist with a fixed
// worker pool, one symbol per job.
package scan

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/analyzer"
	"github.com/dgnsrekt/tradepilot-indicators/internal/flow"
)

type Manager struct {
	service *analyzer.Service
	workers int
	logger  *zap.Logger
}

// SymbolResult pairs one symbol with its flow analysis.
type SymbolResult struct {
	Symbol string
	Result flow.Result
	Error  error
}

type BatchResult struct {
	Total       int
	Analyzed    int
	Strong      int
	Unavailable int
	Errors      []string
	Results     []SymbolResult
}

func NewManager(service *analyzer.Service, workers int, logger *zap.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		service: service,
		workers: workers,
		logger:  logger,
	}
}

// Execute analyzes every symbol and collects per-symbol results in input
// order. Unavailable data counts separately from analysis successes.
func (m *Manager) Execute(ctx context.Context, symbols []string) (*BatchResult, error) {
	result := &BatchResult{Total: len(symbols)}

	if len(symbols) == 0 {
		return result, nil
	}

	jobs := make(chan string, len(symbols))
	results := make(chan SymbolResult, len(symbols))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			m.worker(ctx, workerID, jobs, results)
		}(i)
	}

	// Send jobs
	go func() {
		for _, symbol := range symbols {
			select {
			case <-ctx.Done():
				return
			case jobs <- symbol:
			}
		}
		close(jobs)
	}()

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(results)
	}()

	bySymbol := make(map[string]SymbolResult, len(symbols))
	for r := range results {
		bySymbol[r.Symbol] = r
		switch {
		case r.Error != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Symbol, r.Error))
		case r.Result.OverallSignal == nil:
			result.Unavailable++
		default:
			result.Analyzed++
			if r.Result.SignalStrength != nil && *r.Result.SignalStrength == "STRONG" {
				result.Strong++
			}
		}
	}

	for _, symbol := range symbols {
		if r, ok := bySymbol[symbol]; ok {
			result.Results = append(result.Results, r)
		}
	}

	return result, nil
}

func (m *Manager) worker(ctx context.Context, id int, jobs <-chan string, results chan<- SymbolResult) {
	for symbol := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.logger.Info("analyzing", zap.String("symbol", symbol), zap.Int("worker", id))
		r := SymbolResult{
			Symbol: symbol,
			Result: m.service.Flow(ctx, symbol),
		}

		select {
		case <-ctx.Done():
			return
		case results <- r:
		}
	}
}
