package metric

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// DefaultBeaconchainHost is the public beaconcha.in API root.
const DefaultBeaconchainHost = "https://beaconcha.in/api/v1"

// EthStakingRateProvider reports the percentage of the total ETH supply that
// is staked on the beacon chain. Unit: percent (0-100).
//
// The value combines two sources: total supply from Etherscan and the staked
// balance from beaconcha.in's ethstore endpoint, with the validator
// statistics endpoint as a fallback when ethstore is unavailable.
type EthStakingRateProvider struct {
	etherscanURL string
	beaconURL    string
	apiKey       string
	httpClient   *http.Client
}

// NewEthStakingRateProvider creates an EthStakingRateProvider.
func NewEthStakingRateProvider(etherscanURL, beaconURL, apiKey string) *EthStakingRateProvider {
	return &EthStakingRateProvider{
		etherscanURL: etherscanURL,
		beaconURL:    beaconURL,
		apiKey:       apiKey,
		httpClient:   newHTTPClient(),
	}
}

func (p *EthStakingRateProvider) Name() string { return "eth_staking_rate" }

// FetchValue returns staked/supply as a percentage.
func (p *EthStakingRateProvider) FetchValue(ctx context.Context) (float64, error) {
	if p.apiKey == "" {
		return 0, fmt.Errorf("metric/eth_staking_rate: %w: etherscan api key not configured", domain.ErrNoValue)
	}

	supply, err := p.totalSupply(ctx)
	if err != nil {
		return 0, err
	}
	if supply <= 0 {
		return 0, fmt.Errorf("metric/eth_staking_rate: %w: non-positive supply %f", domain.ErrNoValue, supply)
	}

	staked, err := p.totalStaked(ctx)
	if err != nil {
		return 0, err
	}

	return staked / supply * 100, nil
}

// totalSupply fetches the total ETH supply in ether from Etherscan (reported
// in wei).
func (p *EthStakingRateProvider) totalSupply(ctx context.Context) (float64, error) {
	var out struct {
		etherscanEnvelope
		Result string `json:"result"`
	}
	u := fmt.Sprintf("%s?module=stats&action=ethsupply&apikey=%s", p.etherscanURL, url.QueryEscape(p.apiKey))
	if err := getJSON(ctx, p.httpClient, u, &out); err != nil {
		return 0, fmt.Errorf("metric/eth_staking_rate: supply: %w", err)
	}
	if out.Status != "1" {
		return 0, fmt.Errorf("metric/eth_staking_rate: %w: etherscan: %s", domain.ErrNoValue, out.Message)
	}

	wei, err := strconv.ParseFloat(out.Result, 64)
	if err != nil {
		return 0, fmt.Errorf("metric/eth_staking_rate: parse supply %q: %w", out.Result, err)
	}
	return wei / 1e18, nil
}

// totalStaked fetches the staked ETH balance in ether. Primary source is the
// ethstore endpoint (gwei); fallback is active validator count * 32.
func (p *EthStakingRateProvider) totalStaked(ctx context.Context) (float64, error) {
	var store struct {
		Status string `json:"status"`
		Data   struct {
			TotalBalance string `json:"total_balance"`
		} `json:"data"`
	}
	err := getJSON(ctx, p.httpClient, p.beaconURL+"/ethstore/latest", &store)
	if err == nil && store.Status == "OK" {
		gwei, perr := strconv.ParseFloat(store.Data.TotalBalance, 64)
		if perr == nil {
			return gwei / 1e9, nil
		}
	}

	var stats struct {
		Status string `json:"status"`
		Data   []struct {
			ActiveValidatorsTotal float64 `json:"active_validators_total"`
		} `json:"data"`
	}
	if err := getJSON(ctx, p.httpClient, p.beaconURL+"/validator/statistics", &stats); err != nil {
		return 0, fmt.Errorf("metric/eth_staking_rate: staked: %w", err)
	}
	if stats.Status != "OK" || len(stats.Data) == 0 {
		return 0, fmt.Errorf("metric/eth_staking_rate: %w: beaconcha.in status %s", domain.ErrNoValue, stats.Status)
	}
	return stats.Data[0].ActiveValidatorsTotal * 32, nil
}
