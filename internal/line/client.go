package line

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// DefaultAPIBase is the Messaging API endpoint root.
const DefaultAPIBase = "https://api.line.me"

// MaxTextLength is the platform limit on a text message, in characters.
const MaxTextLength = 5000

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line API error (%d): %s", e.Status, e.Body)
}

// Client sends replies through the Messaging API.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewClient creates a client authenticated with the channel access token.
// An empty baseURL selects DefaultAPIBase.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// MaxLength reports the longest text Reply sends unchanged.
func (c *Client) MaxLength() int { return MaxTextLength }

// Reply answers an event with a single text message.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	// The SDK keeps the context on the API value, so one is built per call.
	api, err := messaging_api.NewMessagingApiAPI(c.token,
		messaging_api.WithEndpoint(c.baseURL),
		messaging_api.WithHTTPClient(c.client),
	)
	if err != nil {
		return fmt.Errorf("failed to create messaging client: %w", err)
	}

	resp, _, err := api.WithContext(ctx).ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: Truncate(text, MaxTextLength)},
		},
	})
	if resp != nil && resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if err != nil {
		return fmt.Errorf("reply request failed: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return nil
}

// Truncate cuts s to at most n characters (runes).
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
