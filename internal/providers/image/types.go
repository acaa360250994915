// Package image hosts the pluggable image-generation providers used by
// the creative pipeline.
package image

import "context"

// Provider names form a closed set.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Request describes a normalized generation request passed to any
// provider. ReferenceImage is only honored by multimodal providers.
type Request struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	ReferenceImage []byte
}

// Artifact is a generated image.
type Artifact struct {
	Model    string
	MIMEType string
	Data     []byte
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	GenerateImage(ctx context.Context, req Request) (*Artifact, error)
	Model() string
}
