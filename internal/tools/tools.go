// Package tools implements the agent's fixed tool set: web search, PubMed,
// arXiv and a calculator.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/linegpt/internal/agent"
	"github.com/soyeahso/linegpt/internal/version"
)

// Config selects and authenticates the tools.
type Config struct {
	SearchProvider string // "serper" | "brave"
	SerperAPIKey   string
	BraveAPIKey    string
	NCBIAPIKey     string
	MaxResults     int
	Timeout        time.Duration
}

// Build returns the tools in the order they are offered to the model:
// web_search, pubmed, arxiv, calculator.
func Build(cfg Config) (*agent.ToolRegistry, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: cfg.Timeout}

	var search agent.Tool
	switch cfg.SearchProvider {
	case "", "serper":
		search = NewSerperSearch(cfg.SerperAPIKey, cfg.MaxResults, client)
	case "brave":
		search = NewBraveSearch(cfg.BraveAPIKey, cfg.MaxResults, client)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}

	reg := agent.NewToolRegistry()
	for _, t := range []agent.Tool{
		search,
		NewPubMed(cfg.NCBIAPIKey, cfg.MaxResults, client),
		NewArxiv(cfg.MaxResults, client),
		NewCalculator(),
	} {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// queryArgs is the input of every search-style tool.
type queryArgs struct {
	Query string `json:"query"`
}

const querySchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Search query"}
	},
	"required": ["query"]
}`

func parseQuery(input string) (string, error) {
	var args queryArgs
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if args.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	return args.Query, nil
}

// fetch performs req and returns the body of a 200 response.
func fetch(client *http.Client, req *http.Request, service string) ([]byte, error) {
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s error (status %d): %s", service, resp.StatusCode, truncateBody(body))
	}
	return body, nil
}

func newGet(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func truncateBody(b []byte) string {
	if len(b) > 512 {
		return string(b[:512]) + "..."
	}
	return string(b)
}
