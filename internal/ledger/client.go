package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// ClientConfig holds the endpoints and identity for the ledger gateway.
type ClientConfig struct {
	// NodeURL is the Aleo node REST root used for mapping reads, e.g.
	// "https://api.explorer.provable.com/v1/testnet".
	NodeURL string
	// ExecutorURL is the delegated execution service that authorizes,
	// proves, and broadcasts transitions on the oracle's behalf.
	ExecutorURL string
	// ProgramID is the deployed prediction program, e.g. "prediction.aleo".
	ProgramID string
	// PrivateKey is the oracle signing credential. It is the single identity
	// authorized to lock and resolve pools; the program enforces that on
	// chain, the gateway only carries it.
	PrivateKey string
	// PriorityFee in microcredits attached to every transition.
	PriorityFee uint64
}

// Client implements domain.LedgerGateway against an Aleo node plus a
// delegated execution endpoint.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// New creates a ledger Client. The HTTP timeout bounds every individual
// mapping read and submission so a hung node never stalls a scheduler tick
// past its per-operation budget.
func New(cfg ClientConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// executeRequest is the payload the executor endpoint accepts.
type executeRequest struct {
	ProgramID   string   `json:"program_id"`
	Function    string   `json:"function_name"`
	Inputs      []string `json:"inputs"`
	PrivateKey  string   `json:"private_key"`
	PriorityFee uint64   `json:"priority_fee"`
}

// executeResponse is the executor's acknowledgment.
type executeResponse struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error,omitempty"`
}

// SubmitTransition submits one program function call under the oracle
// identity and returns the transaction id the executor acknowledged with.
// Acknowledgment of submission is the only guarantee; finality is not
// observed here.
func (c *Client) SubmitTransition(ctx context.Context, function string, inputs []string) (string, error) {
	reqBody, err := json.Marshal(executeRequest{
		ProgramID:   c.cfg.ProgramID,
		Function:    function,
		Inputs:      inputs,
		PrivateKey:  c.cfg.PrivateKey,
		PriorityFee: c.cfg.PriorityFee,
	})
	if err != nil {
		return "", &domain.SubmissionError{Kind: domain.SubmissionRejected, Function: function, Err: err}
	}

	endpoint := strings.TrimSuffix(c.cfg.ExecutorURL, "/") + "/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", &domain.SubmissionError{Kind: domain.SubmissionRejected, Function: function, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.SubmissionError{Kind: domain.SubmissionNetwork, Function: function, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.SubmissionError{Kind: domain.SubmissionNetwork, Function: function, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &domain.SubmissionError{
			Kind:     domain.SubmissionUnauthorized,
			Function: function,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, body),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", &domain.SubmissionError{
			Kind:     domain.SubmissionRejected,
			Function: function,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, body),
		}
	}

	var out executeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &domain.SubmissionError{Kind: domain.SubmissionRejected, Function: function, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error != "" {
		return "", &domain.SubmissionError{Kind: domain.SubmissionRejected, Function: function, Err: fmt.Errorf("%s", out.Error)}
	}
	if out.TransactionID == "" {
		return "", &domain.SubmissionError{Kind: domain.SubmissionRejected, Function: function, Err: fmt.Errorf("executor returned no transaction id")}
	}

	return out.TransactionID, nil
}

// ReadMapping reads one key of a public mapping from the node REST API. A
// JSON null body means the key is not yet present, which is reported via the
// boolean, not an error.
func (c *Client) ReadMapping(ctx context.Context, mapping, key string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/program/%s/mapping/%s/%s",
		strings.TrimSuffix(c.cfg.NodeURL, "/"),
		url.PathEscape(c.cfg.ProgramID),
		url.PathEscape(mapping),
		url.PathEscape(key),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("ledger: read mapping %s: %w", mapping, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("ledger: read mapping %s: %w", mapping, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", false, fmt.Errorf("ledger: read mapping %s: status %d: %s", mapping, resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("ledger: read mapping %s: %w", mapping, err)
	}

	// The node returns the value as a JSON string, or null for absent keys.
	var raw *string
	if err := json.Unmarshal(body, &raw); err != nil {
		// Some nodes return the struct text unquoted.
		text := strings.TrimSpace(string(body))
		if text == "" || text == "null" {
			return "", false, nil
		}
		return text, true, nil
	}
	if raw == nil || *raw == "" {
		return "", false, nil
	}
	return *raw, true, nil
}

// Compile-time interface check.
var _ domain.LedgerGateway = (*Client)(nil)
