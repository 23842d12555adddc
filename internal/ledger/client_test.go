package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

func newTestClient(nodeURL, executorURL string) *Client {
	return New(ClientConfig{
		NodeURL:     nodeURL,
		ExecutorURL: executorURL,
		ProgramID:   "prediction.aleo",
		PrivateKey:  "APrivateKey1test",
		PriorityFee: 100_000,
	})
}

func TestSubmitTransition(t *testing.T) {
	var gotReq executeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(executeResponse{TransactionID: "at1xyz"})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	txID, err := c.SubmitTransition(context.Background(), "lock_pool", []string{EncodeField("m1")})
	if err != nil {
		t.Fatalf("SubmitTransition: %v", err)
	}
	if txID != "at1xyz" {
		t.Errorf("txID = %q", txID)
	}
	if gotReq.Function != "lock_pool" || gotReq.ProgramID != "prediction.aleo" {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Inputs) != 1 {
		t.Errorf("inputs = %v", gotReq.Inputs)
	}
}

func TestSubmitTransitionClassifiesFailures(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantKind domain.SubmissionKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, domain.SubmissionUnauthorized},
		{"rejected", http.StatusUnprocessableEntity, `{"error":"pool not open"}`, domain.SubmissionRejected},
		{"executor error field", http.StatusOK, `{"error":"simulation failed"}`, domain.SubmissionRejected},
		{"empty tx id", http.StatusOK, `{}`, domain.SubmissionRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newTestClient("", srv.URL)
			_, err := c.SubmitTransition(context.Background(), "resolve_pool", nil)
			var subErr *domain.SubmissionError
			if !errors.As(err, &subErr) {
				t.Fatalf("expected SubmissionError, got %v", err)
			}
			if subErr.Kind != tc.wantKind {
				t.Errorf("kind = %s, want %s", subErr.Kind, tc.wantKind)
			}
		})
	}
}

func TestSubmitTransitionNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // force connection refused

	c := newTestClient("", srv.URL)
	_, err := c.SubmitTransition(context.Background(), "lock_pool", nil)
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Kind != domain.SubmissionNetwork {
		t.Errorf("kind = %s, want %s", subErr.Kind, domain.SubmissionNetwork)
	}
}

func TestReadMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/program/prediction.aleo/mapping/pools/123field"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		json.NewEncoder(w).Encode("{ total_staked: 10u64, option_a_stakes: 6u64, option_b_stakes: 4u64 }")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	raw, ok, err := c.ReadMapping(context.Background(), "pools", "123field")
	if err != nil {
		t.Fatalf("ReadMapping: %v", err)
	}
	if !ok {
		t.Fatal("expected value present")
	}
	stats, err := ParsePoolStats(raw)
	if err != nil {
		t.Fatalf("ParsePoolStats: %v", err)
	}
	if stats.TotalStaked != 10 {
		t.Errorf("TotalStaked = %d", stats.TotalStaked)
	}
}

func TestReadMappingAbsent(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"404", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"json null", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("null"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := newTestClient(srv.URL, "")
			_, ok, err := c.ReadMapping(context.Background(), "pools", "123field")
			if err != nil {
				t.Fatalf("ReadMapping: %v", err)
			}
			if ok {
				t.Error("expected absent value")
			}
		})
	}
}
