package metric

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// DefaultCoinGeckoHost is the public CoinGecko API root.
const DefaultCoinGeckoHost = "https://api.coingecko.com/api/v3"

// EthPriceProvider reports the spot ETH price in USD from CoinGecko.
type EthPriceProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewEthPriceProvider creates an EthPriceProvider against the given CoinGecko
// API root.
func NewEthPriceProvider(baseURL string) *EthPriceProvider {
	return &EthPriceProvider{baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *EthPriceProvider) Name() string { return "eth_price" }

// FetchValue returns the current ETH/USD price.
func (p *EthPriceProvider) FetchValue(ctx context.Context) (float64, error) {
	var out map[string]map[string]float64
	url := p.baseURL + "/simple/price?ids=ethereum&vs_currencies=usd"
	if err := getJSON(ctx, p.httpClient, url, &out); err != nil {
		return 0, fmt.Errorf("metric/eth_price: %w", err)
	}

	price, ok := out["ethereum"]["usd"]
	if !ok {
		return 0, fmt.Errorf("metric/eth_price: %w: missing ethereum.usd in response", domain.ErrNoValue)
	}
	return price, nil
}

// StablecoinPegProvider reports the USDT price in USD from CoinGecko. Markets
// set thresholds like 0.98 or 1.02 against it to detect depegs.
type StablecoinPegProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewStablecoinPegProvider creates a StablecoinPegProvider.
func NewStablecoinPegProvider(baseURL string) *StablecoinPegProvider {
	return &StablecoinPegProvider{baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *StablecoinPegProvider) Name() string { return "stablecoin_peg" }

// FetchValue returns the current USDT/USD price.
func (p *StablecoinPegProvider) FetchValue(ctx context.Context) (float64, error) {
	var out map[string]map[string]float64
	url := p.baseURL + "/simple/price?ids=tether&vs_currencies=usd"
	if err := getJSON(ctx, p.httpClient, url, &out); err != nil {
		return 0, fmt.Errorf("metric/stablecoin_peg: %w", err)
	}

	price, ok := out["tether"]["usd"]
	if !ok {
		return 0, fmt.Errorf("metric/stablecoin_peg: %w: missing tether.usd in response", domain.ErrNoValue)
	}
	return price, nil
}

// BTCDominanceProvider reports 1 when BTC holds the #1 market-cap rank and 0
// otherwise, for markets like "will BTC remain the top crypto by market cap".
type BTCDominanceProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewBTCDominanceProvider creates a BTCDominanceProvider.
func NewBTCDominanceProvider(baseURL string) *BTCDominanceProvider {
	return &BTCDominanceProvider{baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *BTCDominanceProvider) Name() string { return "btc_dominance" }

// FetchValue returns 1 if bitcoin's market_cap_rank is 1, else 0.
func (p *BTCDominanceProvider) FetchValue(ctx context.Context) (float64, error) {
	var out []struct {
		MarketCapRank int `json:"market_cap_rank"`
	}
	url := p.baseURL + "/coins/markets?vs_currency=usd&ids=bitcoin&order=market_cap_desc"
	if err := getJSON(ctx, p.httpClient, url, &out); err != nil {
		return 0, fmt.Errorf("metric/btc_dominance: %w", err)
	}

	if len(out) == 0 {
		return 0, fmt.Errorf("metric/btc_dominance: %w: empty markets response", domain.ErrNoValue)
	}
	if out[0].MarketCapRank == 1 {
		return 1, nil
	}
	return 0, nil
}
