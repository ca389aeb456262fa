package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ragqa/internal/domain"
	"ragqa/internal/logger"
)

var _ domain.Embedder = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "text-embedding-3-small"
	DefaultTimeout     = 30 * time.Second
	DefaultBatchSize   = 32
	DefaultConcurrency = 4
	DefaultMaxRetries  = 5
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv when set.
	APIKey  string
	Model   string
	Timeout time.Duration
	// BatchSize is the number of inputs sent per request.
	BatchSize int
	// Concurrency bounds in-flight batch requests.
	Concurrency int
	// RequestsPerSecond paces requests; zero disables pacing.
	RequestsPerSecond float64
	// Dimensions requests a reduced output size (text-embedding-3-* only).
	Dimensions int
	MaxRetries int
}

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	api         *openai.Client
	model       string
	batchSize   int
	concurrency int
	maxRetries  int
	requestDims int
	limiter     *rate.Limiter

	mu        sync.RWMutex
	dimension int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	apiCfg := openai.DefaultConfig(key)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	c := &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		maxRetries:  cfg.MaxRetries,
		requestDims: cfg.Dimensions,
		dimension:   cfg.Dimensions,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is zero until configured or learned from the first response.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) (domain.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.EmbeddingError{Input: -1, Err: fmt.Errorf("empty text: %w", domain.ErrInvalidArgument)}
	}
	vecs, err := c.request(ctx, []string{text})
	if err != nil {
		return nil, &domain.EmbeddingError{Input: -1, Err: err}
	}
	return vecs[0], nil
}

// EmbedMany sends texts in batches, several batches at a time, and returns one
// vector per input in input order. A failed batch reports each of its inputs.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	errs := make([]error, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			errs[i] = &domain.EmbeddingError{Input: i, Err: fmt.Errorf("empty text: %w", domain.ErrInvalidArgument)}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make([]domain.Vector, len(texts))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.request(ctx, texts[start:end])
			if err != nil {
				for i := start; i < end; i++ {
					errs[i] = &domain.EmbeddingError{Input: i, Err: err}
				}
				return nil
			}
			copy(out[start:end], vecs)
			logger.Debug("embedded inputs %d-%d", start, end-1)
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) request(ctx context.Context, inputs []string) ([]domain.Vector, error) {
	req := openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(c.model),
	}
	if c.requestDims > 0 {
		req.Dimensions = c.requestDims
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				return nil, werr
			}
		}
		resp, err = c.api.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}
		if attempt >= c.maxRetries || !retryable(err) {
			return nil, err
		}
		logger.Warn("embedding request failed (attempt %d): %v", attempt+1, err)
		if serr := sleep(ctx, retryDelay(attempt)); serr != nil {
			return nil, serr
		}
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}
	out := make([]domain.Vector, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) || out[d.Index] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, errors.New("empty embedding")
		}
		out[d.Index] = domain.Vector(d.Embedding)
	}
	for i, v := range out {
		if err := c.checkDimension(len(v)); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}
	return out, nil
}

func (c *Client) checkDimension(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == 0 {
		c.dimension = n
		return nil
	}
	if n != c.dimension {
		return &domain.DimensionMismatchError{Want: c.dimension, Got: n, Position: -1}
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// Transport level failure.
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
