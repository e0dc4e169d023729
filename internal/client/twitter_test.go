package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"steamsale/notifier/internal/config"
)

func newTestTwitterClient(baseURL string) TwitterClient {
	return NewTwitterClient(config.TwitterConfig{
		ConsumerKey:       "ck",
		ConsumerSecret:    "cs",
		AccessToken:       "at",
		AccessTokenSecret: "ats",
		BaseURL:           baseURL,
		Timeout:           5 * time.Second,
	})
}

func TestTwitterClient_LatestPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/statuses/user_timeline.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("user_id") != "42" || q.Get("count") != "1" || q.Get("include_rts") != "false" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Errorf("request is not OAuth signed")
		}
		w.Write([]byte(`[{"id_str":"1","full_text":"Tom &amp; Jerry is 20% off on Steam for $8.99 USD"}]`))
	}))
	defer server.Close()

	text, ok, err := newTestTwitterClient(server.URL).LatestPost(context.Background(), "42")
	if err != nil {
		t.Fatalf("LatestPost: %v", err)
	}
	if !ok {
		t.Fatal("expected a post")
	}
	if text != "Tom & Jerry is 20% off on Steam for $8.99 USD" {
		t.Errorf("text = %q", text)
	}
}

func TestTwitterClient_LatestPost_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, ok, err := newTestTwitterClient(server.URL).LatestPost(context.Background(), "42")
	if err != nil {
		t.Fatalf("LatestPost: %v", err)
	}
	if ok {
		t.Error("expected no post")
	}
}

func TestTwitterClient_Post(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/statuses/update.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		got = r.PostForm.Get("status")
		w.Write([]byte(`{"id_str":"2"}`))
	}))
	defer server.Close()

	status := "Game is 20% off on Steam for $8.99 USD"
	if err := newTestTwitterClient(server.URL).Post(context.Background(), status); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got != status {
		t.Errorf("posted %q, want %q", got, status)
	}
}

func TestTwitterClient_Post_DuplicateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"code":187,"message":"Status is a duplicate."}]}`))
	}))
	defer server.Close()

	err := newTestTwitterClient(server.URL).Post(context.Background(), "hello")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 187 || apiErr.Message != "Status is a duplicate." || apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestTwitterClient_UndecodableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	_, _, err := newTestTwitterClient(server.URL).LatestPost(context.Background(), "42")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 0 || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tom &amp; Jerry is 50% off on Steam for $4.99 USD", "Tom & Jerry is 50% off on Steam for $4.99 USD"},
		{"&lt;Untitled&gt; is NOT currently on sale on Steam - Regular price: $9.99 USD", "<Untitled> is NOT currently on sale on Steam - Regular price: $9.99 USD"},
		{"Dota 2 is 0% off on Steam for $0.00 USD", "Dota 2 is 0% off on Steam for $0.00 USD"},
		{"A &amp;amp; B", "A &amp; B"},
	}

	for _, tt := range tests {
		got, err := decodeEntities(tt.in)
		if err != nil {
			t.Fatalf("decodeEntities(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("decodeEntities(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
