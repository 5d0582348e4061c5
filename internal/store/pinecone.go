package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gwi.com/docchat/internal/logger"
)

type PineconeConfig struct {
	APIKey     string
	APIVersion string
	BaseURL    string
	Timeout    time.Duration

	IndexName string
	// IndexHost skips describe_index when set. A bare host gets https://.
	IndexHost string
	Namespace string
	Dimension int
	Cloud     string
	Region    string

	// ReadyPollInterval is how often a freshly created index is polled.
	ReadyPollInterval time.Duration
	ReadyTimeout      time.Duration
}

// PineconeHTTPError carries the status of a failed Pinecone call.
type PineconeHTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *PineconeHTTPError) Error() string {
	return fmt.Sprintf("pinecone %s http %d: %s", e.Op, e.Status, e.Body)
}

func (e *PineconeHTTPError) HTTPStatusCode() int { return e.Status }

type pineconeIndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type pineconeUpsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

type pineconeQueryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeValues   bool           `json:"includeValues"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata,omitempty"`
	} `json:"matches"`
}

type pineconeDeleteRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

// PineconeIndex is the vector index backed by a Pinecone serverless index.
type PineconeIndex struct {
	log  *logger.Logger
	cfg  PineconeConfig
	http *http.Client
	host string
}

// NewPineconeIndex resolves the index host, creating the index (cosine,
// cfg.Dimension) when it does not exist, and verifies its dimension.
func NewPineconeIndex(ctx context.Context, log *logger.Logger, cfg PineconeConfig) (*PineconeIndex, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing Pinecone API key")
	}
	if strings.TrimSpace(cfg.IndexName) == "" && strings.TrimSpace(cfg.IndexHost) == "" {
		return nil, fmt.Errorf("pinecone index name or host required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("pinecone dimension must be positive")
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = "2025-01"
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.pinecone.io"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ReadyPollInterval <= 0 {
		cfg.ReadyPollInterval = 2 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}

	p := &PineconeIndex{
		log:  log.With("service", "PineconeIndex", "index_name", cfg.IndexName),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		host: strings.TrimSpace(cfg.IndexHost),
	}
	if p.host != "" {
		return p, nil
	}

	desc, err := p.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	p.host = desc.Host
	p.log.Info("pinecone index resolved", "index_host", p.host, "dimension", desc.Dimension)
	return p, nil
}

func (p *PineconeIndex) ensureIndex(ctx context.Context) (*pineconeIndexDescription, error) {
	desc, err := p.describeIndex(ctx)
	var httpErr *PineconeHTTPError
	switch {
	case err == nil:
	case errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound:
		p.log.Info("pinecone index missing, creating", "dimension", p.cfg.Dimension, "cloud", p.cfg.Cloud, "region", p.cfg.Region)
		if err := p.createIndex(ctx); err != nil {
			return nil, err
		}
		desc, err = p.waitReady(ctx)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
	}

	if desc.Dimension != 0 && desc.Dimension != p.cfg.Dimension {
		return nil, fmt.Errorf("pinecone index %s has dimension %d, expected %d", p.cfg.IndexName, desc.Dimension, p.cfg.Dimension)
	}
	if strings.TrimSpace(desc.Host) == "" {
		return nil, fmt.Errorf("pinecone describe_index returned empty host")
	}
	return desc, nil
}

func (p *PineconeIndex) describeIndex(ctx context.Context) (*pineconeIndexDescription, error) {
	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/indexes/" + p.cfg.IndexName
	var out pineconeIndexDescription
	if err := p.doJSON(ctx, "describe_index", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PineconeIndex) createIndex(ctx context.Context) error {
	body := map[string]any{
		"name":      p.cfg.IndexName,
		"dimension": p.cfg.Dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  p.cfg.Cloud,
				"region": p.cfg.Region,
			},
		},
	}
	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/indexes"
	return p.doJSON(ctx, "create_index", http.MethodPost, u, body, nil)
}

func (p *PineconeIndex) waitReady(ctx context.Context) (*pineconeIndexDescription, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(p.cfg.ReadyPollInterval)
	defer ticker.Stop()
	for {
		desc, err := p.describeIndex(ctx)
		if err == nil && desc.Status.Ready && desc.Host != "" {
			return desc, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("pinecone index %s not ready: %w", p.cfg.IndexName, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *PineconeIndex) dataURL(path string) string {
	if strings.Contains(p.host, "://") {
		return strings.TrimRight(p.host, "/") + path
	}
	return "https://" + p.host + path
}

func (p *PineconeIndex) Upsert(ctx context.Context, entry VectorEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("vector id required")
	}
	meta := make(map[string]any, len(entry.Metadata))
	for k, v := range entry.Metadata {
		meta[k] = v
	}
	req := pineconeUpsertRequest{
		Namespace: p.cfg.Namespace,
		Vectors:   []pineconeVector{{ID: entry.ID, Values: entry.Embedding, Metadata: meta}},
	}
	return p.doJSON(ctx, "upsert", http.MethodPost, p.dataURL("/vectors/upsert"), req, nil)
}

func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		topK = 5
	}
	req := pineconeQueryRequest{
		Namespace:       p.cfg.Namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		req.Filter = make(map[string]any, len(filter))
		for k, v := range filter {
			req.Filter[k] = map[string]any{"$eq": v}
		}
	}

	var resp pineconeQueryResponse
	if err := p.doJSON(ctx, "query", http.MethodPost, p.dataURL("/query"), req, &resp); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		out = append(out, Match{ID: m.ID, Score: float32(m.Score), Metadata: stringMetadata(m.Metadata)})
	}
	return out, nil
}

func (p *PineconeIndex) Delete(ctx context.Context, id string) error {
	req := pineconeDeleteRequest{IDs: []string{id}, Namespace: p.cfg.Namespace}
	return p.doJSON(ctx, "delete", http.MethodPost, p.dataURL("/vectors/delete"), req, nil)
}

func (p *PineconeIndex) doJSON(ctx context.Context, op, method, url string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("pinecone %s encode: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return fmt.Errorf("pinecone %s request: %w", op, err)
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	req.Header.Set("X-Pinecone-Api-Version", p.cfg.APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PineconeHTTPError{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pinecone %s decode: %w", op, err)
	}
	return nil
}

func stringMetadata(in map[string]any) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case string:
			out[k] = t
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
