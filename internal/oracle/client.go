/**
 * Oracle Client - external vision-language service access.
 *
 * The oracle is optional: it serves as the first language-resolution tier
 * and as the remote text-extraction fallback when the local recognition
 * engine is absent. All endpoints speak JSON with base64-encoded images.
 */

package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/docuflow/ocr-worker/internal/logging"
)

// Config holds oracle connection settings. An empty BaseURL disables the
// client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the vision oracle service. It implements the pipeline's
// Oracle interface.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates an oracle client. Returns nil when no base URL is
// configured, which callers treat as "oracle disabled".
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("OracleClient"),
	}
}

type visionRequest struct {
	Image  string `json:"image"` // Base64 encoded image
	Format string `json:"format"`
}

type detectLanguageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Language   string  `json:"language"` // ISO 639-1 code
		Confidence float64 `json:"confidence"`
	} `json:"data"`
}

type extractTextResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		ModelUsed  string  `json:"modelUsed"`
	} `json:"data"`
}

// DetectLanguage asks the oracle for the document's dominant language.
func (c *Client) DetectLanguage(ctx context.Context, img image.Image) (string, float64, error) {
	req, err := c.encodeRequest(img)
	if err != nil {
		return "", 0, err
	}

	var resp detectLanguageResponse
	if err := c.post(ctx, "/api/vision/detect-language", req, &resp); err != nil {
		return "", 0, err
	}
	if !resp.Success {
		return "", 0, fmt.Errorf("oracle language detection failed: %s", resp.Message)
	}

	c.logger.Debug("Oracle language detection complete",
		"language", resp.Data.Language,
		"confidence", resp.Data.Confidence)
	return resp.Data.Language, resp.Data.Confidence, nil
}

// ExtractText performs remote full-text extraction.
func (c *Client) ExtractText(ctx context.Context, img image.Image) (string, error) {
	req, err := c.encodeRequest(img)
	if err != nil {
		return "", err
	}

	var resp extractTextResponse
	if err := c.post(ctx, "/api/vision/extract-text", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("oracle extraction failed: %s", resp.Message)
	}

	c.logger.Info("Oracle extraction complete",
		"modelUsed", resp.Data.ModelUsed,
		"confidence", resp.Data.Confidence,
		"textLength", len(resp.Data.Text))
	return resp.Data.Text, nil
}

// HealthCheck verifies the oracle service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) encodeRequest(img image.Image) (*visionRequest, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &visionRequest{
		Image:  base64.StdEncoding.EncodeToString(buf.Bytes()),
		Format: "base64",
	}, nil
}

func (c *Client) post(ctx context.Context, path string, req *visionRequest, out interface{}) error {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle returned error status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Source", "ocr-worker")
	req.Header.Set("X-Request-ID", fmt.Sprintf("ocr-%d", time.Now().UnixNano()))
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
