package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

const defaultOpenAIModel = "dall-e-3"

// aspectRatioSizes maps requested ratios to the fixed pixel sizes the
// OpenAI Images API supports.
var aspectRatioSizes = map[string]string{
	domain.AspectSquare:    "1024x1024",
	domain.AspectLandscape: "1792x1024",
	domain.AspectPortrait:  "1024x1792",
}

// OpenAIOptions configures the OpenAI image provider.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAI is the unimodal provider: prompts only, with the aspect ratio
// snapped to the nearest supported size. Reference images are ignored.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAI constructs the provider. A missing API key is a
// configuration error and fails immediately.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", domain.ErrConfiguration)
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &OpenAI{apiKey: apiKey, baseURL: baseURL, model: model, httpClient: client}, nil
}

// Model returns the configured OpenAI model identifier.
func (o *OpenAI) Model() string {
	return o.model
}

func resolveSize(aspectRatio string) string {
	if size, ok := aspectRatioSizes[strings.TrimSpace(aspectRatio)]; ok {
		return size
	}
	return aspectRatioSizes[domain.AspectSquare]
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
	Size           string `json:"size"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateImage calls the OpenAI image generations endpoint. The
// negative prompt is folded into the prompt text since the API has no
// dedicated field for it.
func (o *OpenAI) GenerateImage(ctx context.Context, req Request) (*Artifact, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt = prompt + "\n\nNegative prompt: " + req.NegativePrompt
	}

	payload := openAIImageRequest{
		Model:          o.model,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: "b64_json",
		Size:           resolveSize(req.AspectRatio),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: read response: %v", domain.ErrProviderFailure, err)
	}

	var out openAIImageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: openai: http %d", domain.ErrProviderFailure, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: openai: decode response: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("http %d", resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			detail = fmt.Sprintf("%s (http %d)", out.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: openai: %s", domain.ErrProviderFailure, detail)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: openai: response did not include image data", domain.ErrProviderFailure)
	}

	data, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: decode image data: %v", domain.ErrProviderFailure, err)
	}

	return &Artifact{Model: o.model, MIMEType: "image/png", Data: data}, nil
}

var _ Generator = (*OpenAI)(nil)
