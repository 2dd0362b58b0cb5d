package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBGEProvider_Rerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)

		var req bgeRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "高血压的症状", req.Query)
		require.Len(t, req.Texts, 3)

		// unsorted on purpose, provider must sort by score
		_ = json.NewEncoder(w).Encode([]bgeRerankEntry{
			{Index: 0, Score: 0.2},
			{Index: 2, Score: 0.9},
			{Index: 1, Score: 0.5},
		})
	}))
	defer server.Close()

	cfg := DefaultBGEConfig()
	cfg.BaseURL = server.URL
	provider := NewBGEProvider(cfg)

	resp, err := provider.Rerank(context.Background(), &RerankRequest{
		Query: "高血压的症状",
		Documents: []Document{
			{ID: "a", Text: "doc-a"},
			{ID: "b", Text: "doc-b"},
			{ID: "c", Text: "doc-c"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, 2, resp.Results[0].Index)
	assert.Equal(t, 0.9, resp.Results[0].RelevanceScore)
	assert.Equal(t, "c", resp.Results[0].Document.ID)
	assert.Equal(t, "bge-rerank", resp.Provider)
}

func TestBGEProvider_TopN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]bgeRerankEntry{
			{Index: 0, Score: 0.9},
			{Index: 1, Score: 0.5},
			{Index: 2, Score: 0.1},
		})
	}))
	defer server.Close()

	cfg := DefaultBGEConfig()
	cfg.BaseURL = server.URL
	provider := NewBGEProvider(cfg)

	results, err := provider.RerankSimple(context.Background(), "q", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBGEProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultBGEConfig()
	cfg.BaseURL = server.URL
	provider := NewBGEProvider(cfg)

	_, err := provider.RerankSimple(context.Background(), "q", []string{"a"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")
}

func TestCohereProvider_Rerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/rerank", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"id":"r1","results":[{"index":1,"relevance_score":0.8},{"index":0,"relevance_score":0.3}]}`))
	}))
	defer server.Close()

	cfg := DefaultCohereConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "test-key"
	provider := NewCohereProvider(cfg)

	resp, err := provider.Rerank(context.Background(), &RerankRequest{
		Query:     "q",
		Documents: []Document{{ID: "a", Text: "doc-a"}, {ID: "b", Text: "doc-b"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].Index)
	assert.Equal(t, "b", resp.Results[0].Document.ID)
}
