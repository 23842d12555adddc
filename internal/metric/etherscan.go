package metric

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// DefaultEtherscanHost is the public Etherscan API root.
const DefaultEtherscanHost = "https://api.etherscan.io/api"

// etherscanEnvelope is the common Etherscan response wrapper. Result is left
// raw because its shape varies per module/action.
type etherscanEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GasPriceProvider reports the Etherscan gas oracle's proposed ("average")
// gas price in gwei.
type GasPriceProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGasPriceProvider creates a GasPriceProvider. apiKey may be empty; the
// provider then degrades to "no value this attempt" instead of failing the
// process.
func NewGasPriceProvider(baseURL, apiKey string) *GasPriceProvider {
	return &GasPriceProvider{baseURL: baseURL, apiKey: apiKey, httpClient: newHTTPClient()}
}

func (p *GasPriceProvider) Name() string { return "eth_gas_price" }

// FetchValue returns the current proposed gas price in gwei.
func (p *GasPriceProvider) FetchValue(ctx context.Context) (float64, error) {
	if p.apiKey == "" {
		return 0, fmt.Errorf("metric/eth_gas_price: %w: etherscan api key not configured", domain.ErrNoValue)
	}

	var out struct {
		etherscanEnvelope
		Result struct {
			ProposeGasPrice string `json:"ProposeGasPrice"`
		} `json:"result"`
	}
	u := fmt.Sprintf("%s?module=gastracker&action=gasoracle&apikey=%s", p.baseURL, url.QueryEscape(p.apiKey))
	if err := getJSON(ctx, p.httpClient, u, &out); err != nil {
		return 0, fmt.Errorf("metric/eth_gas_price: %w", err)
	}

	if out.Status != "1" {
		return 0, fmt.Errorf("metric/eth_gas_price: %w: etherscan: %s", domain.ErrNoValue, out.Message)
	}

	gwei, err := strconv.ParseFloat(out.Result.ProposeGasPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("metric/eth_gas_price: parse %q: %w", out.Result.ProposeGasPrice, err)
	}
	return gwei, nil
}
