package metric

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// DefaultFearGreedHost is the alternative.me Fear & Greed API root.
const DefaultFearGreedHost = "https://api.alternative.me"

// FearGreedProvider reports the Crypto Fear & Greed Index, 0 (extreme fear)
// to 100 (extreme greed).
type FearGreedProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewFearGreedProvider creates a FearGreedProvider.
func NewFearGreedProvider(baseURL string) *FearGreedProvider {
	return &FearGreedProvider{baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *FearGreedProvider) Name() string { return "fear_greed" }

// FetchValue returns the latest index value.
func (p *FearGreedProvider) FetchValue(ctx context.Context) (float64, error) {
	var out struct {
		Data []struct {
			Value string `json:"value"`
		} `json:"data"`
		Metadata struct {
			Error *string `json:"error"`
		} `json:"metadata"`
	}
	if err := getJSON(ctx, p.httpClient, p.baseURL+"/fng/", &out); err != nil {
		return 0, fmt.Errorf("metric/fear_greed: %w", err)
	}

	if out.Metadata.Error != nil && *out.Metadata.Error != "" {
		return 0, fmt.Errorf("metric/fear_greed: %w: %s", domain.ErrNoValue, *out.Metadata.Error)
	}
	if len(out.Data) == 0 {
		return 0, fmt.Errorf("metric/fear_greed: %w: empty data", domain.ErrNoValue)
	}

	v, err := strconv.ParseFloat(out.Data[0].Value, 64)
	if err != nil {
		return 0, fmt.Errorf("metric/fear_greed: parse %q: %w", out.Data[0].Value, err)
	}
	return v, nil
}
