package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyforge/studyforge-backend/internal/logger"
)

// VectorizeResult is what the inference service reports after ingesting
// a document: a handle for later calls plus the discovered chapter count.
type VectorizeResult struct {
	TotalChapters int    `json:"total_chapters"`
	VectorRef     string `json:"vector_ref"`
}

// InferenceClient is the boundary to the external AI service. Every call
// is synchronous with a bounded timeout; callers must treat failures as
// recoverable and never block on it indefinitely.
type InferenceClient interface {
	UploadAndVectorize(ctx context.Context, documentID uuid.UUID, filename string, data []byte) (VectorizeResult, error)
	GenerateQuiz(ctx context.Context, vectorRef string, count int, difficulty string) ([]map[string]any, error)
	Grade(ctx context.Context, vectorRef string, answers map[string]string) (map[string]any, error)
	Ask(ctx context.Context, vectorRef string, question string) (string, error)
	Summarize(ctx context.Context, vectorRef string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (map[string]any, error)
}

type inferenceClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client

	maxRetries       int
	vectorizeTimeout time.Duration
	generateTimeout  time.Duration
	askTimeout       time.Duration
}

func NewInferenceClient(log *logger.Logger) (InferenceClient, error) {
	baseURL := os.Getenv("INFERENCE_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("missing INFERENCE_BASE_URL")
	}
	apiKey := os.Getenv("INFERENCE_API_KEY")

	// One retry by default: a second failure surfaces to the caller as a
	// gateway error with no partial state committed.
	maxRetries := 1
	if v := os.Getenv("INFERENCE_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	vectorizeTimeout := envDuration("INFERENCE_VECTORIZE_TIMEOUT_SECONDS", 10*time.Minute)
	generateTimeout := envDuration("INFERENCE_GENERATE_TIMEOUT_SECONDS", 3*time.Minute)
	askTimeout := envDuration("INFERENCE_ASK_TIMEOUT_SECONDS", 1*time.Minute)

	return &inferenceClient{
		log:              log.With("service", "InferenceClient"),
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		httpClient:       &http.Client{},
		maxRetries:       maxRetries,
		vectorizeTimeout: vectorizeTimeout,
		generateTimeout:  generateTimeout,
		askTimeout:       askTimeout,
	}, nil
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return def
}

type inferenceHTTPError struct {
	StatusCode int
	Body       string
}

func (e *inferenceHTTPError) Error() string {
	return fmt.Sprintf("inference http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *inferenceHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

func (c *inferenceClient) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &inferenceHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *inferenceClient) do(ctx context.Context, path string, timeout time.Duration, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("inference decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !isRetryableErr(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		c.log.Warn("Inference request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

type vectorizeRequest struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

func (c *inferenceClient) UploadAndVectorize(ctx context.Context, documentID uuid.UUID, filename string, data []byte) (VectorizeResult, error) {
	req := vectorizeRequest{
		DocumentID:    documentID.String(),
		Filename:      filename,
		ContentBase64: base64.StdEncoding.EncodeToString(data),
	}
	var resp VectorizeResult
	if err := c.do(ctx, "/v1/vectorize", c.vectorizeTimeout, req, &resp); err != nil {
		return VectorizeResult{}, err
	}
	if resp.VectorRef == "" {
		return VectorizeResult{}, fmt.Errorf("inference returned no vector_ref")
	}
	return resp, nil
}

type generateQuizRequest struct {
	VectorRef  string `json:"vector_ref"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

func (c *inferenceClient) GenerateQuiz(ctx context.Context, vectorRef string, count int, difficulty string) ([]map[string]any, error) {
	req := generateQuizRequest{VectorRef: vectorRef, Count: count, Difficulty: difficulty}
	var resp struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.do(ctx, "/v1/quiz/generate", c.generateTimeout, req, &resp); err != nil {
		return nil, err
	}
	// Keep malformed entries as nil so the caller can count and log the
	// skips instead of aborting the batch.
	out := make([]map[string]any, 0, len(resp.Items))
	for _, rawItem := range resp.Items {
		var obj map[string]any
		if err := json.Unmarshal(rawItem, &obj); err != nil {
			out = append(out, nil)
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

type gradeRequest struct {
	VectorRef string            `json:"vector_ref"`
	Answers   map[string]string `json:"answers"`
}

func (c *inferenceClient) Grade(ctx context.Context, vectorRef string, answers map[string]string) (map[string]any, error) {
	req := gradeRequest{VectorRef: vectorRef, Answers: answers}
	var resp map[string]any
	if err := c.do(ctx, "/v1/grade", c.generateTimeout, req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *inferenceClient) Ask(ctx context.Context, vectorRef string, question string) (string, error) {
	req := map[string]string{"vector_ref": vectorRef, "question": question}
	var resp struct {
		Answer string `json:"answer"`
	}
	if err := c.do(ctx, "/v1/ask", c.askTimeout, req, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

func (c *inferenceClient) Summarize(ctx context.Context, vectorRef string) (string, error) {
	req := map[string]string{"vector_ref": vectorRef}
	var resp struct {
		Summary string `json:"summary"`
	}
	if err := c.do(ctx, "/v1/summarize", c.generateTimeout, req, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

func (c *inferenceClient) CompleteJSON(ctx context.Context, prompt string) (map[string]any, error) {
	req := map[string]string{"prompt": prompt}
	var resp map[string]any
	if err := c.do(ctx, "/v1/complete", c.askTimeout, req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
