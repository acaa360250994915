package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Aspect ratios a brief may request. The 1:1 square render is the master;
// other ratios are derived from it.
const (
	AspectSquare    = "1:1"
	AspectPortrait  = "9:16"
	AspectLandscape = "16:9"
)

// AllowedAspectRatios is the closed set a brief may declare.
var AllowedAspectRatios = map[string]bool{
	AspectSquare:    true,
	AspectPortrait:  true,
	AspectLandscape: true,
}

// BriefStatus enumerates the campaign processing lifecycle.
type BriefStatus string

const (
	BriefStatusPending    BriefStatus = "pending"
	BriefStatusProcessing BriefStatus = "processing"
	BriefStatusCompleted  BriefStatus = "completed"
	BriefStatusFailed     BriefStatus = "failed"
)

// Valid reports whether the status is a member of the lifecycle enum.
func (s BriefStatus) Valid() bool {
	switch s {
	case BriefStatusPending, BriefStatusProcessing, BriefStatusCompleted, BriefStatusFailed:
		return true
	}
	return false
}

var (
	hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	templatePattern = regexp.MustCompile(`^[\w-]+@\d+\.\d+\.\d+$`)
)

// Product is a single item featured in the campaign.
type Product struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImagePath      string `json:"image_path,omitempty"`
}

// Image returns the product's stored image reference.
func (p Product) Image() AssetRef {
	return AssetRef{Path: p.ImagePath}
}

// Brand carries the campaign's visual identity.
type Brand struct {
	PrimaryHex   string `json:"primary_hex"`
	SecondaryHex string `json:"secondary_hex,omitempty"`
	LogoPath     string `json:"logo_path"`
}

// Logo returns the brand's stored logo reference.
func (b Brand) Logo() AssetRef {
	return AssetRef{Path: b.LogoPath}
}

// CampaignBrief is the aggregate root describing one campaign: which
// products to render, for which locales and ratios, under which brand.
type CampaignBrief struct {
	Campaign       string            `json:"campaign"`
	TargetRegion   string            `json:"target_region"`
	TargetAudience string            `json:"target_audience"`
	Locales        []string          `json:"locales"`
	Message        map[string]string `json:"message"`
	CTA            map[string]string `json:"cta"`
	Products       []Product         `json:"products"`
	Brand          Brand             `json:"brand"`
	AspectRatios   []string          `json:"aspect_ratios"`
	Template       string            `json:"template"`
}

// Validate enforces the brief's structural invariants before it is
// accepted into storage or the pipeline.
func (b *CampaignBrief) Validate() error {
	if strings.TrimSpace(b.Campaign) == "" {
		return fmt.Errorf("%w: campaign id is required", ErrValidation)
	}
	if strings.TrimSpace(b.TargetRegion) == "" {
		return fmt.Errorf("%w: target_region is required", ErrValidation)
	}
	if strings.TrimSpace(b.TargetAudience) == "" {
		return fmt.Errorf("%w: target_audience is required", ErrValidation)
	}
	if len(b.Locales) < 1 {
		return fmt.Errorf("%w: at least one locale is required", ErrValidation)
	}
	for _, locale := range b.Locales {
		if _, err := language.Parse(locale); err != nil {
			return fmt.Errorf("%w: invalid locale %q", ErrValidation, locale)
		}
	}
	for _, locale := range b.Locales {
		if _, ok := b.Message[locale]; !ok {
			return fmt.Errorf("%w: missing message translation for locale %q", ErrValidation, locale)
		}
		if _, ok := b.CTA[locale]; !ok {
			return fmt.Errorf("%w: missing cta translation for locale %q", ErrValidation, locale)
		}
	}
	if len(b.Products) < 2 {
		return fmt.Errorf("%w: at least two products are required", ErrValidation)
	}
	seen := make(map[string]bool, len(b.Products))
	for _, product := range b.Products {
		if strings.TrimSpace(product.ID) == "" {
			return fmt.Errorf("%w: product id is required", ErrValidation)
		}
		if seen[product.ID] {
			return fmt.Errorf("%w: duplicate product id %q", ErrValidation, product.ID)
		}
		seen[product.ID] = true
		if strings.TrimSpace(product.Name) == "" {
			return fmt.Errorf("%w: product %s: name is required", ErrValidation, product.ID)
		}
		// A product without a real image must carry a prompt so the
		// pipeline has something to generate from.
		if product.Image().NeedsGeneration() && strings.TrimSpace(product.Prompt) == "" {
			return fmt.Errorf("%w: product %s: prompt is required when no image is uploaded", ErrValidation, product.ID)
		}
	}
	if !hexColorPattern.MatchString(b.Brand.PrimaryHex) {
		return fmt.Errorf("%w: brand primary_hex must be a #RRGGBB color", ErrValidation)
	}
	if b.Brand.SecondaryHex != "" && !hexColorPattern.MatchString(b.Brand.SecondaryHex) {
		return fmt.Errorf("%w: brand secondary_hex must be a #RRGGBB color", ErrValidation)
	}
	if len(b.AspectRatios) < 1 {
		return fmt.Errorf("%w: at least one aspect ratio is required", ErrValidation)
	}
	for _, ratio := range b.AspectRatios {
		if !AllowedAspectRatios[ratio] {
			return fmt.Errorf("%w: invalid aspect ratio %q", ErrValidation, ratio)
		}
	}
	if !templatePattern.MatchString(b.Template) {
		return fmt.Errorf("%w: template must match name@major.minor.patch", ErrValidation)
	}
	return nil
}

// CTAText picks the call-to-action rendered onto generated imagery:
// en-US when present, otherwise the first declared locale with a value.
func (b *CampaignBrief) CTAText() string {
	if text := b.CTA["en-US"]; text != "" {
		return text
	}
	for _, locale := range b.Locales {
		if text := b.CTA[locale]; text != "" {
			return text
		}
	}
	return ""
}

// TotalCreatives is the campaign's target creative count across every
// product, locale, and aspect ratio combination.
func (b *CampaignBrief) TotalCreatives() int {
	return len(b.Products) * len(b.Locales) * len(b.AspectRatios)
}

// BriefMetadata is the side-car record tracking a stored brief's
// processing state. Only the brief service and the orchestrator mutate it.
type BriefMetadata struct {
	CampaignID string      `json:"campaign_id"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Version    string      `json:"version"`
	Status     BriefStatus `json:"status"`
}

// BriefListItem is the summary row returned when enumerating briefs.
type BriefListItem struct {
	CampaignID     string      `json:"campaign_id"`
	TargetRegion   string      `json:"target_region"`
	TargetAudience string      `json:"target_audience"`
	UploadedAt     time.Time   `json:"uploaded_at"`
	Status         BriefStatus `json:"status"`
	ProductCount   int         `json:"product_count"`
	LocaleCount    int         `json:"locale_count"`
}

// AspectLabel converts an aspect ratio into its storage folder segment,
// e.g. "9:16" -> "9-16".
func AspectLabel(ratio string) string {
	return strings.ReplaceAll(ratio, ":", "-")
}
