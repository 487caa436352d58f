package analyzer

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
	"github.com/dgnsrekt/tradepilot-indicators/internal/expiry"
	"github.com/dgnsrekt/tradepilot-indicators/internal/greeks"
	"github.com/dgnsrekt/tradepilot-indicators/internal/polygon"
)

type fakeMarket struct {
	chain      *chain.OptionChain
	chainErr   error
	prevClose  float64
	prevErr    error
	chainCalls int
	closeCalls int
}

func (f *fakeMarket) GetOptionChain(_ context.Context, _ string, _ polygon.ChainParams) (*chain.OptionChain, error) {
	f.chainCalls++
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return f.chain, nil
}

func (f *fakeMarket) GetPreviousClose(_ context.Context, _ string) (float64, error) {
	f.closeCalls++
	if f.prevErr != nil {
		return 0, f.prevErr
	}
	return f.prevClose, nil
}

func newTestService(market *fakeMarket) *Service {
	return NewService(market, expiry.NewCalendar("America/New_York"), Options{
		MaxExpiryDays:   14,
		MinOpenInterest: 100,
		ContractLimit:   250,
	}, zap.NewNop())
}

func snapshot() *chain.OptionChain {
	expiration := time.Now().AddDate(0, 0, 3)
	return &chain.OptionChain{
		Symbol:    "SPY",
		Spot:      100,
		FetchedAt: time.Now(),
		Contracts: []chain.Contract{
			{Side: chain.Call, Strike: 100, Expiration: expiration,
				Volume: 1000, OpenInterest: 2000, Price: 2.50,
				Greeks: &chain.Greeks{Delta: 0.5, Gamma: 0.04}},
			{Side: chain.Put, Strike: 100, Expiration: expiration,
				Volume: 800, OpenInterest: 1500, Price: 2.20,
				Greeks: &chain.Greeks{Delta: -0.5, Gamma: 0.04}},
		},
	}
}

func TestFlow_FetchErrorDegradesToNulls(t *testing.T) {
	market := &fakeMarket{chainErr: polygon.ErrRateLimited}
	svc := newTestService(market)

	result := svc.Flow(context.Background(), "SPY")
	if result.Symbol != "SPY" {
		t.Errorf("symbol = %s, want SPY", result.Symbol)
	}
	if result.PutCallRatio != nil || result.OverallSignal != nil {
		t.Error("fetch failure should yield an all-null result")
	}
}

func TestFlow_Success(t *testing.T) {
	market := &fakeMarket{chain: snapshot()}
	svc := newTestService(market)

	result := svc.Flow(context.Background(), "SPY")
	if result.PutCallRatio == nil {
		t.Fatal("put/call ratio is nil, want a value")
	}
	if *result.PutCallRatio != 0.8 {
		t.Errorf("put/call ratio = %v, want 0.8", *result.PutCallRatio)
	}
}

func TestFlow_ThinChainKeptUnfiltered(t *testing.T) {
	// Every contract is below the open-interest floor; rather than return an
	// all-null result for a real but thin chain, the unfiltered snapshot is
	// analyzed.
	oc := snapshot()
	for i := range oc.Contracts {
		oc.Contracts[i].OpenInterest = 10
	}
	svc := newTestService(&fakeMarket{chain: oc})

	result := svc.Flow(context.Background(), "SPY")
	if result.PutCallRatio == nil {
		t.Error("thin chain produced a null result, want analysis of the unfiltered snapshot")
	}
}

func TestGEX_PriceOverrideSkipsCloseFetch(t *testing.T) {
	market := &fakeMarket{chain: snapshot()}
	svc := newTestService(market)

	price := 101.5
	profile := svc.GEX(context.Background(), "SPY", GEXParams{CurrentPrice: &price})
	if profile.Regime == nil {
		t.Fatal("regime is nil, want a value")
	}
	if market.closeCalls != 0 {
		t.Errorf("previous close fetched %d times, want 0", market.closeCalls)
	}
	if *profile.CurrentPrice != 101.5 {
		t.Errorf("current price = %v, want 101.5", *profile.CurrentPrice)
	}
}

func TestGEX_SpotFetchFailure(t *testing.T) {
	market := &fakeMarket{prevErr: polygon.ErrSymbolNotFound}
	svc := newTestService(market)

	profile := svc.GEX(context.Background(), "SPY", GEXParams{})
	if profile.Regime != nil {
		t.Error("spot failure should yield an all-null profile")
	}
	if market.chainCalls != 0 {
		t.Errorf("chain fetched %d times after spot failure, want 0", market.chainCalls)
	}
}

func TestMaxPain_DefaultsToNearestExpiration(t *testing.T) {
	market := &fakeMarket{chain: snapshot(), prevClose: 100}
	svc := newTestService(market)

	result := svc.MaxPain(context.Background(), "SPY", MaxPainParams{})
	if result.MaxPainStrike == nil {
		t.Fatal("max pain strike is nil, want a value")
	}
	if result.Expiration == nil {
		t.Error("expiration is nil, want the chain's earliest expiration")
	}
}

func TestPortfolioGreeks_FetchesEachSymbolOnce(t *testing.T) {
	market := &fakeMarket{chain: snapshot()}
	svc := newTestService(market)

	positions := []greeks.Position{
		{Symbol: "SPY", Strike: 100, Side: chain.Call, Quantity: 1},
		{Symbol: "SPY", Strike: 100, Side: chain.Put, Quantity: 2},
	}
	result := svc.PortfolioGreeks(context.Background(), positions)
	if market.chainCalls != 1 {
		t.Errorf("chain fetched %d times, want 1", market.chainCalls)
	}
	if len(result.Positions) != 2 {
		t.Errorf("resolved %d positions, want 2", len(result.Positions))
	}
}
