package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

// --- Build ---

func TestBuildDefaultOrder(t *testing.T) {
	reg, err := Build(Config{SerperAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, []string{"web_search", "pubmed", "arxiv", "calculator"}, reg.Names())

	search, ok := reg.Get("web_search")
	require.True(t, ok)
	assert.IsType(t, &SerperSearch{}, search)
}

func TestBuildBrave(t *testing.T) {
	reg, err := Build(Config{SearchProvider: "brave", BraveAPIKey: "k"})
	require.NoError(t, err)
	search, ok := reg.Get("web_search")
	require.True(t, ok)
	assert.IsType(t, &BraveSearch{}, search)
}

func TestBuildUnknownProvider(t *testing.T) {
	_, err := Build(Config{SearchProvider: "bing"})
	assert.Error(t, err)
}

func TestSchemasAreJSON(t *testing.T) {
	reg, err := Build(Config{})
	require.NoError(t, err)
	for _, spec := range reg.Specs() {
		assert.True(t, json.Valid([]byte(spec.InputSchema)), spec.Name)
		assert.NotEmpty(t, spec.Description, spec.Name)
	}
}

func TestParseQuery(t *testing.T) {
	q, err := parseQuery(`{"query":"golang"}`)
	require.NoError(t, err)
	assert.Equal(t, "golang", q)

	_, err = parseQuery(`{}`)
	assert.Error(t, err)
	_, err = parseQuery(`not json`)
	assert.Error(t, err)
}

// --- Serper ---

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "serper-key", r.Header.Get("X-API-KEY"))

		body, _ := io.ReadAll(r.Body)
		var req serperRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "東京 天気", req.Q)

		_, _ = w.Write([]byte(`{
			"answerBox": {"answer": "晴れ"},
			"organic": [
				{"title": "天気予報", "link": "https://example.com/a", "snippet": "<b>東京</b>は晴れ"},
				{"title": "Second", "link": "https://example.com/b", "snippet": "plain"},
				{"title": "Third", "link": "https://example.com/c", "snippet": "x"},
				{"title": "Fourth", "link": "https://example.com/d", "snippet": "y"}
			]
		}`))
	}))
	defer srv.Close()

	s := NewSerperSearch("serper-key", 3, testClient())
	s.baseURL = srv.URL

	out, err := s.Execute(context.Background(), `{"query":"東京 天気"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Answer: 晴れ")
	assert.Contains(t, out, "**東京**は晴れ")
	assert.Contains(t, out, "https://example.com/c")
	assert.NotContains(t, out, "Fourth")
}

func TestSerperSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organic": []}`))
	}))
	defer srv.Close()

	s := NewSerperSearch("k", 3, testClient())
	s.baseURL = srv.URL
	out, err := s.Execute(context.Background(), `{"query":"zzz"}`)
	require.NoError(t, err)
	assert.Equal(t, "No good search result found.", out)
}

func TestSerperSearchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSerperSearch("bad", 3, testClient())
	s.baseURL = srv.URL
	_, err := s.Execute(context.Background(), `{"query":"x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

// --- Brave ---

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "golang testing", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"Go Testing","url":"https://go.dev/testing","description":"How to <strong>test</strong> in Go"}
		]}}`))
	}))
	defer srv.Close()

	b := NewBraveSearch("brave-key", 3, testClient())
	b.baseURL = srv.URL

	out, err := b.Execute(context.Background(), `{"query":"golang testing"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Go Testing")
	assert.Contains(t, out, "https://go.dev/testing")
	assert.Contains(t, out, "How to **test** in Go")
}

func TestBraveSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := NewBraveSearch("k", 3, testClient())
	b.baseURL = srv.URL
	out, err := b.Execute(context.Background(), `{"query":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "No good search result found.", out)
}

func TestCleanSnippet(t *testing.T) {
	assert.Equal(t, "plain text", cleanSnippet("plain text"))
	assert.Equal(t, "a **b** c", cleanSnippet("a <b>b</b> c"))
}

// --- PubMed ---

func TestPubMed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "ncbi-key", q.Get("api_key"))

		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "aspirin", q.Get("term"))
			_, _ = w.Write([]byte(`{"esearchresult":{"idlist":["111","222"]}}`))
		case "/esummary.fcgi":
			assert.Equal(t, "111,222", q.Get("id"))
			_, _ = w.Write([]byte(`{"result":{
				"uids":["111","222"],
				"111":{"uid":"111","title":"Aspirin and you","pubdate":"2020 Jan","fulljournalname":"J Med","authors":[{"name":"Sato T"},{"name":"Suzuki K"}]},
				"222":{"uid":"222","title":"Second paper","pubdate":"2021","fulljournalname":"Lancet","authors":[]}
			}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewPubMed("ncbi-key", 3, testClient())
	p.baseURL = srv.URL

	out, err := p.Execute(context.Background(), `{"query":"aspirin"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Aspirin and you")
	assert.Contains(t, out, "Authors: Sato T, Suzuki K")
	assert.Contains(t, out, "https://pubmed.ncbi.nlm.nih.gov/222/")
	assert.Less(t, strings.Index(out, "Aspirin and you"), strings.Index(out, "Second paper"))
}

func TestPubMedNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"esearchresult":{"idlist":[]}}`))
	}))
	defer srv.Close()

	p := NewPubMed("", 3, testClient())
	p.baseURL = srv.URL
	out, err := p.Execute(context.Background(), `{"query":"nothing"}`)
	require.NoError(t, err)
	assert.Equal(t, "No good PubMed result was found.", out)
}

// --- arXiv ---

const sampleAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v5</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models
      are based on recurrent networks. </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
</feed>`

func TestArxiv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all:transformer", r.URL.Query().Get("search_query"))
		assert.Equal(t, "3", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleAtom))
	}))
	defer srv.Close()

	a := NewArxiv(3, testClient())
	a.baseURL = srv.URL

	out, err := a.Execute(context.Background(), `{"query":"transformer"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Published: 2017-06-12")
	assert.Contains(t, out, "Title: Attention Is All You Need")
	assert.Contains(t, out, "Authors: Ashish Vaswani, Noam Shazeer")
	assert.Contains(t, out, "Summary: The dominant sequence transduction models are based on recurrent networks.")
}

func TestArxivNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	a := NewArxiv(3, testClient())
	a.baseURL = srv.URL
	out, err := a.Execute(context.Background(), `{"query":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "No good arXiv result was found.", out)
}

// --- Calculator ---

func TestCalculator(t *testing.T) {
	c := NewCalculator()
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2", "Answer: 3"},
		{"(3 + 4) * 2", "Answer: 14"},
		{"7 / 2", "Answer: 3.5"},
		{"2 ** 10", "Answer: 1024"},
		{"sqrt(16)", "Answer: 4"},
		{"pow(2, 0.5) * pow(2, 0.5)", "Answer: 2.0000000000000004"},
		{"floor(pi * 100)", "Answer: 314"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			input, _ := json.Marshal(map[string]string{"expression": tt.expr})
			out, err := c.Execute(context.Background(), string(input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCalculatorErrors(t *testing.T) {
	c := NewCalculator()
	for _, input := range []string{
		`{}`,
		`nope`,
		`{"expression":"1 +"}`,
		`{"expression":"\"text\""}`,
		`{"expression":"sqrt(1, 2)"}`,
	} {
		_, err := c.Execute(context.Background(), input)
		assert.Error(t, err, input)
	}
}
