package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const webSearchDescription = "Search the web. Useful for current events and facts you do not know. Input is a search query."

// SerperSearch searches Google through the Serper API.
type SerperSearch struct {
	apiKey  string
	baseURL string
	limit   int
	client  *http.Client
}

// NewSerperSearch creates a web_search tool backed by Serper.
func NewSerperSearch(apiKey string, limit int, client *http.Client) *SerperSearch {
	return &SerperSearch{apiKey: apiKey, baseURL: "https://google.serper.dev/search", limit: limit, client: client}
}

func (s *SerperSearch) Name() string        { return "web_search" }
func (s *SerperSearch) Description() string { return webSearchDescription }
func (s *SerperSearch) InputSchema() string { return querySchema }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Title   string `json:"title"`
	} `json:"answerBox"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *SerperSearch) Execute(ctx context.Context, input string) (string, error) {
	query, err := parseQuery(input)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(serperRequest{Q: query, Num: s.limit})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	body, err := fetch(s.client, req, "Serper")
	if err != nil {
		return "", err
	}

	var result serperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var sb strings.Builder
	if ab := result.AnswerBox; ab != nil {
		switch {
		case ab.Answer != "":
			fmt.Fprintf(&sb, "Answer: %s\n\n", ab.Answer)
		case ab.Snippet != "":
			fmt.Fprintf(&sb, "Answer: %s\n\n", cleanSnippet(ab.Snippet))
		}
	}
	if kg := result.KnowledgeGraph; kg != nil && kg.Description != "" {
		fmt.Fprintf(&sb, "%s: %s\n\n", kg.Title, cleanSnippet(kg.Description))
	}
	for i, r := range result.Organic {
		if i >= s.limit {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.Link, cleanSnippet(r.Snippet))
	}

	if sb.Len() == 0 {
		return "No good search result found.", nil
	}
	return strings.TrimSpace(sb.String()), nil
}

// BraveSearch searches the web through the Brave Search API.
type BraveSearch struct {
	apiKey  string
	baseURL string
	limit   int
	client  *http.Client
}

// NewBraveSearch creates a web_search tool backed by Brave.
func NewBraveSearch(apiKey string, limit int, client *http.Client) *BraveSearch {
	return &BraveSearch{apiKey: apiKey, baseURL: "https://api.search.brave.com/res/v1/web/search", limit: limit, client: client}
}

func (b *BraveSearch) Name() string        { return "web_search" }
func (b *BraveSearch) Description() string { return webSearchDescription }
func (b *BraveSearch) InputSchema() string { return querySchema }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *BraveSearch) Execute(ctx context.Context, input string) (string, error) {
	query, err := parseQuery(input)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", b.limit))
	u.RawQuery = q.Encode()

	req, err := newGet(ctx, u.String())
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	body, err := fetch(b.client, req, "Brave")
	if err != nil {
		return "", err
	}

	var result braveResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Web.Results) == 0 {
		return "No good search result found.", nil
	}

	var sb strings.Builder
	for i, r := range result.Web.Results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n\n", i+1, cleanSnippet(r.Title), r.URL, cleanSnippet(r.Description))
	}
	return strings.TrimSpace(sb.String()), nil
}

// cleanSnippet turns the HTML fragments search APIs return into markdown.
func cleanSnippet(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}
