package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"steamsale/notifier/internal/config"
	"steamsale/notifier/internal/domain"
	"steamsale/notifier/internal/metrics"
	"steamsale/notifier/internal/proxy"
	"steamsale/notifier/internal/retry"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

type SteamClient interface {
	FetchProduct(ctx context.Context, appID int) (*domain.ProductSnapshot, error)
}

type steamClient struct {
	rl            ratelimit.Limiter
	baseURL       string
	httpClient    *resty.Client
	policy        retry.Policy
	proxySupplier proxy.ProxySupplier
}

// appDetails is one entry of the appdetails response, keyed by app id
type appDetails struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type appData struct {
	Name          *string `json:"name"`
	PriceOverview *struct {
		DiscountPercent *int    `json:"discount_percent"`
		FinalFormatted  *string `json:"final_formatted"`
	} `json:"price_overview"`
}

func NewSteamClient(cfg config.SteamConfig, proxySupplier proxy.ProxySupplier) SteamClient {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &steamClient{
		rl:         rl,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryDelay,
		},
		proxySupplier: proxySupplier,
	}
}

// FetchProduct loads the app details, retrying transport and server failures
func (c *steamClient) FetchProduct(ctx context.Context, appID int) (*domain.ProductSnapshot, error) {
	url := fmt.Sprintf("%s/api/appdetails/?appids=%d", c.baseURL, appID)

	body, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		body, err := c.fetchJSON(ctx, url)
		if err != nil && retry.Classify(err) == retry.Retry {
			c.rotateProxy()
		}
		return body, err
	}, logRetryEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch app details for %d: %w", appID, err)
	}

	snapshot, err := decodeAppDetails(body, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to decode app details for %d: %w", appID, err)
	}

	log.Debugf("Successfully fetched app details for %d", appID)
	return snapshot, nil
}

func (c *steamClient) fetchJSON(ctx context.Context, url string) ([]byte, error) {
	c.rl.Take()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(url)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	body := []byte(resp.String())

	if resp.IsError() {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       body,
			Header:     resp.Header(),
		}
	}

	return body, nil
}

func (c *steamClient) rotateProxy() {
	if c.proxySupplier == nil || c.proxySupplier.Len() < 2 {
		return
	}

	newProxy := c.proxySupplier.Get()
	log.Infof("🔄 Switching to new proxy: %s", newProxy)
	c.httpClient.SetProxy(newProxy)
}

func logRetryEvent(event retry.Event, attempt int, failure *retry.Failure) {
	metrics.RetryEventsTotal.WithLabelValues("steam", string(event)).Inc()

	entry := log.WithFields(log.Fields{
		"status_code": failure.StatusCode,
		"status_text": failure.StatusText,
	})
	if event == retry.EventAbort {
		entry.Errorf("🚫 %s from Steam with error %s on retry %d", event, failure.Message, attempt)
		return
	}
	entry.Warnf("🔄 %s from Steam with error %s on retry %d", event, failure.Message, attempt)
}

// decodeAppDetails turns the response body into a snapshot. Fields the
// storefront left out stay nil so the caller can tell "absent" from zero.
func decodeAppDetails(body []byte, appID int) (*domain.ProductSnapshot, error) {
	var resp map[string]appDetails
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	snapshot := &domain.ProductSnapshot{AppID: appID}

	details, ok := resp[strconv.Itoa(appID)]
	if !ok || !details.Success {
		return snapshot, nil
	}

	// Steam sends "data": [] for some apps instead of omitting it
	raw := bytes.TrimSpace(details.Data)
	if len(raw) == 0 || raw[0] != '{' {
		return snapshot, nil
	}

	var data appData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	snapshot.Name = data.Name
	if data.PriceOverview != nil {
		snapshot.DiscountPercent = data.PriceOverview.DiscountPercent
		snapshot.FinalPriceFormatted = data.PriceOverview.FinalFormatted
	}

	return snapshot, nil
}
