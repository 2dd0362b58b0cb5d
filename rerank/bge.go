package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// BGEProvider implements reranking against a TEI-style inference server
// hosting a BGE cross-encoder model.
type BGEProvider struct {
	cfg    BGEConfig
	client *http.Client
}

// NewBGEProvider creates a new BGE cross-encoder provider.
func NewBGEProvider(cfg BGEConfig) *BGEProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8002"
	}
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-reranker-base"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &BGEProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *BGEProvider) Name() string      { return "bge-rerank" }
func (p *BGEProvider) MaxDocuments() int { return 256 }

type bgeRerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

// TEI returns a flat array of {index, score} pairs sorted by score.
type bgeRerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank reranks documents against the cross-encoder server.
func (p *BGEProvider) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	texts := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		texts[i] = d.Text
	}

	body := bgeRerankRequest{
		Query:    req.Query,
		Texts:    texts,
		Truncate: true,
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/rerank",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("bge rerank request build failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bge rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bge rerank error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var entries []bgeRerankEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode bge response: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if req.TopN > 0 && len(entries) > req.TopN {
		entries = entries[:req.TopN]
	}

	results := make([]RerankResult, len(entries))
	for i, e := range entries {
		results[i] = RerankResult{
			Index:          e.Index,
			RelevanceScore: e.Score,
		}
		if e.Index >= 0 && e.Index < len(req.Documents) {
			results[i].Document = req.Documents[e.Index]
		}
	}

	return &RerankResponse{
		Provider:  p.Name(),
		Model:     p.cfg.Model,
		Results:   results,
		CreatedAt: time.Now(),
	}, nil
}

// RerankSimple is a convenience method for simple reranking.
func (p *BGEProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	docs := make([]Document, len(documents))
	for i, d := range documents {
		docs[i] = Document{Text: d}
	}

	resp, err := p.Rerank(ctx, &RerankRequest{
		Query:     query,
		Documents: docs,
		TopN:      topN,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}
