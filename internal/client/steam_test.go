package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"steamsale/notifier/internal/config"
	"steamsale/notifier/internal/retry"
)

func newTestSteamClient(baseURL string) SteamClient {
	return NewSteamClient(config.SteamConfig{
		BaseURL:              baseURL,
		Timeout:              5 * time.Second,
		MaxAttempts:          4,
		RetryDelay:           time.Millisecond,
		MaxRequestsPerSecond: 0,
	}, nil)
}

func TestSteamClient_FetchProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/appdetails/" || r.URL.Query().Get("appids") != "570" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"570":{"success":true,"data":{"type":"game","name":"Game","steam_appid":570,
			"price_overview":{"currency":"USD","initial":1199,"final":899,"discount_percent":25,
			"initial_formatted":"$11.99","final_formatted":"$8.99"}}}}`))
	}))
	defer server.Close()

	snapshot, err := newTestSteamClient(server.URL).FetchProduct(context.Background(), 570)
	if err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}

	if !snapshot.Usable() {
		t.Fatalf("snapshot should be usable: %+v", snapshot)
	}
	if *snapshot.Name != "Game" || *snapshot.DiscountPercent != 25 || *snapshot.FinalPriceFormatted != "$8.99" {
		t.Errorf("unexpected snapshot: %s %d %s", *snapshot.Name, *snapshot.DiscountPercent, *snapshot.FinalPriceFormatted)
	}
}

func TestDecodeAppDetails_MissingFields(t *testing.T) {
	tests := []struct {
		label string
		body  string
	}{
		{"unsuccessful", `{"570":{"success":false}}`},
		{"other app", `{"10":{"success":true,"data":{"name":"Other"}}}`},
		{"array data", `{"570":{"success":true,"data":[]}}`},
		{"free game", `{"570":{"success":true,"data":{"name":"Game","is_free":true}}}`},
		{"no discount", `{"570":{"success":true,"data":{"name":"Game","price_overview":{"final_formatted":"$8.99"}}}}`},
	}

	for _, tt := range tests {
		snapshot, err := decodeAppDetails([]byte(tt.body), 570)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.label, err)
			continue
		}
		if snapshot.Usable() {
			t.Errorf("%s: snapshot should not be usable", tt.label)
		}
		if snapshot.AppID != 570 {
			t.Errorf("%s: AppID = %d", tt.label, snapshot.AppID)
		}
	}
}

func TestDecodeAppDetails_ZeroDiscountIsPresent(t *testing.T) {
	body := `{"570":{"success":true,"data":{"name":"Game","price_overview":{"discount_percent":0,"final_formatted":"$8.99"}}}}`

	snapshot, err := decodeAppDetails([]byte(body), 570)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snapshot.Usable() || *snapshot.DiscountPercent != 0 {
		t.Errorf("zero discount should be usable: %+v", snapshot)
	}
}

func TestSteamClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"570":{"success":true,"data":{"name":"Game","price_overview":{"discount_percent":10,"final_formatted":"$1.00"}}}}`))
	}))
	defer server.Close()

	snapshot, err := newTestSteamClient(server.URL).FetchProduct(context.Background(), 570)
	if err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if *snapshot.DiscountPercent != 10 {
		t.Errorf("DiscountPercent = %d", *snapshot.DiscountPercent)
	}
}

func TestSteamClient_GivesUpAfterFourAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestSteamClient(server.URL).FetchProduct(context.Background(), 570)
	if !errors.Is(err, retry.ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want 4", calls.Load())
	}
}

func TestSteamClient_AbortsOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestSteamClient(server.URL).FetchProduct(context.Background(), 570)
	if !errors.Is(err, retry.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}

	var httpErr *retry.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected HTTPError 403 in chain, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
