package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"steamsale/notifier/internal/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/dghubble/oauth1"
	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

type TwitterClient interface {
	// LatestPost returns the text of the most recent non-retweet post of the
	// account. ok is false when the account has no such post.
	LatestPost(ctx context.Context, userID string) (text string, ok bool, err error)
	Post(ctx context.Context, status string) error
}

// APIError is an error reply from the Twitter API
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twitter API error %d (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("twitter API error (HTTP %d): %s", e.StatusCode, e.Message)
}

type twitterClient struct {
	baseURL    string
	httpClient *resty.Client
}

type tweet struct {
	FullText string `json:"full_text"`
	Text     string `json:"text"`
}

type errorReply struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// NewTwitterClient builds a client that signs every request with the
// account's OAuth 1.0a user credentials
func NewTwitterClient(cfg config.TwitterConfig) TwitterClient {
	oauthConfig := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)

	client := resty.NewWithClient(oauthConfig.Client(oauth1.NoContext, token)).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &twitterClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
	}
}

func (c *twitterClient) LatestPost(ctx context.Context, userID string) (string, bool, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user_id":     userID,
			"count":       "1",
			"include_rts": "false",
			"tweet_mode":  "extended",
		}).
		Get(c.baseURL + "/statuses/user_timeline.json")
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch user timeline: %w", err)
	}

	if resp.IsError() {
		return "", false, decodeAPIError(resp)
	}

	var timeline []tweet
	if err := json.Unmarshal([]byte(resp.String()), &timeline); err != nil {
		return "", false, fmt.Errorf("failed to decode user timeline: %w", err)
	}

	if len(timeline) == 0 {
		log.Debugf("No posts found for user %s", userID)
		return "", false, nil
	}

	text := timeline[0].FullText
	if text == "" {
		text = timeline[0].Text
	}

	decoded, err := decodeEntities(text)
	if err != nil {
		return "", false, fmt.Errorf("failed to decode post text: %w", err)
	}

	return decoded, true, nil
}

func (c *twitterClient) Post(ctx context.Context, status string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"status": status,
		}).
		Post(c.baseURL + "/statuses/update.json")
	if err != nil {
		return fmt.Errorf("failed to post status: %w", err)
	}

	if resp.IsError() {
		return decodeAPIError(resp)
	}

	return nil
}

func decodeAPIError(resp *resty.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Message:    resp.Status(),
	}

	var reply errorReply
	if err := json.Unmarshal([]byte(resp.String()), &reply); err == nil && len(reply.Errors) > 0 {
		apiErr.Code = reply.Errors[0].Code
		apiErr.Message = reply.Errors[0].Message
	}

	return apiErr
}

// decodeEntities undoes the HTML escaping Twitter applies to post text
// (&amp;, &lt;, &gt;) so it can be compared with a composed status.
// The HTML parser also drops leading whitespace and NUL bytes and turns
// \r\n into \n. Composed statuses contain none of these.
func decodeEntities(text string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}
