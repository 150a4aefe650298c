package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxSummaryChars bounds each abstract in the tool output.
const maxSummaryChars = 1500

// Arxiv searches preprints through the arXiv Atom API.
type Arxiv struct {
	baseURL string
	limit   int
	client  *http.Client
}

// NewArxiv creates the arxiv tool.
func NewArxiv(limit int, client *http.Client) *Arxiv {
	return &Arxiv{baseURL: "https://export.arxiv.org/api/query", limit: limit, client: client}
}

func (a *Arxiv) Name() string { return "arxiv" }
func (a *Arxiv) Description() string {
	return "Search arXiv for scientific papers in physics, mathematics, computer science and related fields. Input is a search query."
}
func (a *Arxiv) InputSchema() string { return querySchema }

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

func (a *Arxiv) Execute(ctx context.Context, input string) (string, error) {
	query, err := parseQuery(input)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"search_query": {"all:" + query},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(a.limit)},
	}
	req, err := newGet(ctx, a.baseURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	body, err := fetch(a.client, req, "arXiv")
	if err != nil {
		return "", err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", fmt.Errorf("parse feed: %w", err)
	}
	if len(feed.Entries) == 0 {
		return "No good arXiv result was found.", nil
	}

	var sb strings.Builder
	for _, e := range feed.Entries {
		authors := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			authors = append(authors, au.Name)
		}
		published := e.Published
		if len(published) >= 10 {
			published = published[:10]
		}
		summary := collapseSpace(e.Summary)
		if r := []rune(summary); len(r) > maxSummaryChars {
			summary = string(r[:maxSummaryChars]) + "..."
		}
		fmt.Fprintf(&sb, "Published: %s\nTitle: %s\nAuthors: %s\nURL: %s\nSummary: %s\n\n",
			published, collapseSpace(e.Title), strings.Join(authors, ", "), strings.TrimSpace(e.ID), summary)
	}
	return strings.TrimSpace(sb.String()), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
