package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
)

const defaultGeminiModel = "gemini-2.5-flash-image-preview"

// GeminiOptions configures the Gemini provider.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Gemini is the multimodal provider: it accepts a free-form aspect-ratio
// hint and an optional reference image for visual conditioning, which
// makes it the preferred backend whenever a brand logo is available.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGemini constructs the provider. A missing API key is a
// configuration error and fails immediately.
func NewGemini(opts GeminiOptions) (*Gemini, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", domain.ErrConfiguration)
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &Gemini{apiKey: apiKey, baseURL: baseURL, model: model, httpClient: client}, nil
}

// Model returns the configured Gemini model identifier.
func (g *Gemini) Model() string {
	return g.model
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
	AspectRatio      string `json:"aspectRatio,omitempty"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// GenerateImage calls the Gemini generateContent endpoint, passing the
// reference image as inline conditioning data when present.
func (g *Gemini) GenerateImage(ctx context.Context, req Request) (*Artifact, error) {
	parts := []geminiPart{{Text: req.Prompt}}
	if len(req.ReferenceImage) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: http.DetectContentType(req.ReferenceImage),
			Data:     base64.StdEncoding.EncodeToString(req.ReferenceImage),
		}})
	}
	contents := []geminiContent{{Role: "user", Parts: parts}}
	if req.NegativePrompt != "" {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: "Negative prompt: " + req.NegativePrompt}},
		})
	}

	payload := geminiGenerateRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "image/png",
			AspectRatio:      req.AspectRatio,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: read response: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr geminiErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: gemini: %s (http %d)", domain.ErrProviderFailure, apiErr.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: gemini: http %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	var out geminiGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: gemini: decode response: %v", domain.ErrProviderFailure, err)
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("%w: gemini: response contained no candidates", domain.ErrProviderFailure)
	}

	for _, part := range out.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: gemini: decode image data: %v", domain.ErrProviderFailure, err)
		}
		mime := part.InlineData.MimeType
		if mime == "" {
			mime = "image/png"
		}
		return &Artifact{Model: g.model, MIMEType: mime, Data: data}, nil
	}

	return nil, fmt.Errorf("%w: gemini: candidate did not include inline image data", domain.ErrProviderFailure)
}

var _ Generator = (*Gemini)(nil)
