package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PubMed searches biomedical literature through NCBI E-utilities.
type PubMed struct {
	apiKey  string
	baseURL string
	limit   int
	client  *http.Client
}

// NewPubMed creates the pubmed tool. apiKey is optional and raises the
// NCBI rate limit.
func NewPubMed(apiKey string, limit int, client *http.Client) *PubMed {
	return &PubMed{apiKey: apiKey, baseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", limit: limit, client: client}
}

func (p *PubMed) Name() string { return "pubmed" }
func (p *PubMed) Description() string {
	return "Search PubMed for biomedical and life-science articles. Input is a search query."
}
func (p *PubMed) InputSchema() string { return querySchema }

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryArticle struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
	Source  string `json:"fulljournalname"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

func (p *PubMed) endpoint(path string, params url.Values) string {
	params.Set("db", "pubmed")
	params.Set("retmode", "json")
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	return p.baseURL + "/" + path + "?" + params.Encode()
}

func (p *PubMed) Execute(ctx context.Context, input string) (string, error) {
	query, err := parseQuery(input)
	if err != nil {
		return "", err
	}

	req, err := newGet(ctx, p.endpoint("esearch.fcgi", url.Values{
		"term":   {query},
		"retmax": {strconv.Itoa(p.limit)},
		"sort":   {"relevance"},
	}))
	if err != nil {
		return "", err
	}
	body, err := fetch(p.client, req, "PubMed")
	if err != nil {
		return "", err
	}

	var search esearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return "", fmt.Errorf("parse esearch: %w", err)
	}
	ids := search.Result.IDList
	if len(ids) == 0 {
		return "No good PubMed result was found.", nil
	}

	req, err = newGet(ctx, p.endpoint("esummary.fcgi", url.Values{"id": {strings.Join(ids, ",")}}))
	if err != nil {
		return "", err
	}
	body, err = fetch(p.client, req, "PubMed")
	if err != nil {
		return "", err
	}

	// esummary keys each article by its uid next to a "uids" list.
	var summary struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &summary); err != nil {
		return "", fmt.Errorf("parse esummary: %w", err)
	}

	var sb strings.Builder
	for _, id := range ids {
		raw, ok := summary.Result[id]
		if !ok {
			continue
		}
		var a esummaryArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		authors := make([]string, 0, len(a.Authors))
		for _, au := range a.Authors {
			authors = append(authors, au.Name)
		}
		fmt.Fprintf(&sb, "Published: %s\nTitle: %s\nJournal: %s\nAuthors: %s\nURL: https://pubmed.ncbi.nlm.nih.gov/%s/\n\n",
			a.PubDate, a.Title, a.Source, strings.Join(authors, ", "), id)
	}
	if sb.Len() == 0 {
		return "No good PubMed result was found.", nil
	}
	return strings.TrimSpace(sb.String()), nil
}
