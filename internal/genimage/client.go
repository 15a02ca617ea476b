// Package genimage wraps the Gemini generateContent REST endpoint for
// square greeting-card base images. One call is one attempt; retrying is
// the caller's business.
package genimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/annaleodit/Celebrate-the-world/core/logger"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash-image"
	defaultTimeout = 60 * time.Second

	safetyThreshold = "BLOCK_LOW_AND_ABOVE"
)

var safetyCategories = []string{
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Config holds client settings; zero values fall back to defaults.
type Config struct {
	APIKey         string `yaml:"api_key" envconfig:"GEMINI_API_KEY"`
	Model          string `yaml:"model" envconfig:"GEMINI_MODEL"`
	BaseURL        string `yaml:"base_url" envconfig:"GEMINI_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"GEMINI_TIMEOUT_SECONDS"`
}

// Client issues generateContent requests.
type Client struct {
	cfg     Config
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a client. The HTTP client may be nil; a default with no
// overall timeout is used then, since the per-attempt context bounds the call.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("genimage: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, timeout: timeout, http: httpClient}, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generationConfig struct {
	ResponseModalities []string    `json:"responseModalities"`
	ImageConfig        imageConfig `json:"imageConfig"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate runs a single generation attempt bounded by the configured
// timeout. The first inline-data part wins; text-only parts are logged and
// skipped. All failures come back as *Failure.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		SafetySettings: func() []safetySetting {
			out := make([]safetySetting, len(safetyCategories))
			for i, cat := range safetyCategories {
				out[i] = safetySetting{Category: cat, Threshold: safetyThreshold}
			}
			return out
		}(),
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        imageConfig{AspectRatio: "1:1"},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, failure(KindTransport, fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, failure(KindTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := attemptCtx.Err(); ctxErr != nil {
			return nil, failure(contextKind(ctxErr), ctxErr)
		}
		return nil, failure(KindTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		if ctxErr := attemptCtx.Err(); ctxErr != nil {
			return nil, failure(contextKind(ctxErr), ctxErr)
		}
		return nil, failure(KindTransport, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, failure(KindTransport, fmt.Errorf("provider status %d: %s", resp.StatusCode, logger.SanitizeLimit(string(body), 256)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, failure(KindTransport, fmt.Errorf("decode response: %w", err))
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, failure(KindEmptyResult, errors.New("no content parts"))
	}

	ctxLog := logger.WithLogger(ctx, logger.Gen)
	for _, p := range parsed.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			logger.Debug(ctxLog, "genimage", "generate.success",
				slog.String("model", c.cfg.Model),
				slog.Int("prompt_len", len(prompt)),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)
			return decodeInline(p.InlineData.Data), nil
		}
		if p.Text != "" {
			logger.Warn(ctxLog, "genimage", "generate.text_part",
				slog.String("text", logger.SanitizeLimit(p.Text, 256)),
			)
		}
	}

	return nil, failure(KindEmptyResult, errors.New("no inline image data in parts"))
}

// decodeInline normalizes the provider payload into raw bytes. When base64
// decoding fails the payload is passed through unchanged; the image decoder
// downstream produces a clearer error than we could here.
func decodeInline(data string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return decoded
	}
	return []byte(data)
}
