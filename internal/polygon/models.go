package polygon

import (
	"time"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
)

// Wire types for the Polygon-style REST API. Only the fields the indicator
// pipelines consume are decoded.

type chainSnapshotResponse struct {
	Results []contractSnapshot `json:"results"`
	NextURL string             `json:"next_url"`
	Status  string             `json:"status"`
}

type contractSnapshot struct {
	Details           contractDetails `json:"details"`
	Day               *dayStats       `json:"day"`
	OpenInterest      int64           `json:"open_interest"`
	Greeks            *wireGreeks     `json:"greeks"`
	ImpliedVolatility *float64        `json:"implied_volatility"`
}

type contractDetails struct {
	Ticker         string  `json:"ticker"`
	ContractType   string  `json:"contract_type"`
	StrikePrice    float64 `json:"strike_price"`
	ExpirationDate string  `json:"expiration_date"`
}

type dayStats struct {
	Volume int64   `json:"volume"`
	Close  float64 `json:"close"`
}

type wireGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

type prevCloseResponse struct {
	Results []struct {
		Close float64 `json:"c"`
	} `json:"results"`
}

const expirationLayout = "2006-01-02"

// toContract converts one wire snapshot to the domain contract.
// Contracts with an unknown type or unparsable expiration are dropped.
func (cs contractSnapshot) toContract() (chain.Contract, bool) {
	var side chain.Side
	switch cs.Details.ContractType {
	case "call":
		side = chain.Call
	case "put":
		side = chain.Put
	default:
		return chain.Contract{}, false
	}

	expiration, err := time.Parse(expirationLayout, cs.Details.ExpirationDate)
	if err != nil {
		return chain.Contract{}, false
	}

	c := chain.Contract{
		Ticker:            cs.Details.Ticker,
		Side:              side,
		Strike:            cs.Details.StrikePrice,
		Expiration:        expiration,
		OpenInterest:      cs.OpenInterest,
		ImpliedVolatility: cs.ImpliedVolatility,
	}
	if cs.Day != nil {
		c.Volume = cs.Day.Volume
		c.Price = cs.Day.Close
	}
	if cs.Greeks != nil {
		c.Greeks = &chain.Greeks{
			Delta: cs.Greeks.Delta,
			Gamma: cs.Greeks.Gamma,
			Theta: cs.Greeks.Theta,
			Vega:  cs.Greeks.Vega,
			Rho:   cs.Greeks.Rho,
		}
	}
	return c, true
}
