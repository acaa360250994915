package genlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"server/internal/briefs"
	"server/internal/domain"
	"server/internal/storage"
)

// Status values carried by generation events.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Event names for the audit trail.
const (
	EventCampaignStarted   = "campaign_generation_started"
	EventCampaignCompleted = "campaign_generation_completed"
	EventInitiated         = "generation_initiated"
	EventCompleted         = "generation_completed"
	EventFailed            = "generation_failed"
)

// ProductRef identifies a product inside a log entry.
type ProductRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Prompt         string `json:"prompt,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImagePath      string `json:"image_path,omitempty"`
	HasPrompt      *bool  `json:"has_prompt,omitempty"`
}

// AssetSnapshot captures campaign completeness at a point in time.
type AssetSnapshot struct {
	IsComplete                bool    `json:"is_complete"`
	TotalProducts             int     `json:"total_products"`
	ProductsWithAssets        int     `json:"products_with_assets,omitempty"`
	ProductsNeedingGeneration int     `json:"products_needing_generation,omitempty"`
	CompletionPercentage      float64 `json:"completion_percentage,omitempty"`
	ProductsGeneratedThisRun  int     `json:"products_generated_this_run,omitempty"`
	ProductsStillPending      int     `json:"products_still_pending,omitempty"`
}

// Entry is one immutable audit record. Entries are written once and never
// rewritten or deleted by the pipeline.
type Entry struct {
	Event      string `json:"event"`
	CampaignID string `json:"campaign_id"`
	Timestamp  string `json:"timestamp"`
	Status     Status `json:"status,omitempty"`

	AssetStatus      *AssetSnapshot `json:"asset_status,omitempty"`
	FinalAssetStatus *AssetSnapshot `json:"final_asset_status,omitempty"`

	Product          *ProductRef  `json:"product,omitempty"`
	ProductsNeeding  []ProductRef `json:"products_needing_generation,omitempty"`
	ProductsWith     []ProductRef `json:"products_with_assets,omitempty"`
	ProductsPending  []ProductRef `json:"products_still_needing_generation,omitempty"`
	TargetCreatives  int          `json:"target_creatives,omitempty"`
	Locales          []string     `json:"locales,omitempty"`
	AspectRatios     []string     `json:"aspect_ratios,omitempty"`
	GenerationConfig *Config      `json:"generation_config,omitempty"`
	Result           *Result      `json:"result,omitempty"`
	Error            string       `json:"error,omitempty"`
	DurationSeconds  float64      `json:"duration_seconds,omitempty"`
	Summary          *Summary     `json:"summary,omitempty"`
}

// Config records the provider configuration used for a generation call.
type Config struct {
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	Size        string `json:"size"`
}

// Result records where a generated image landed.
type Result struct {
	ImagePath   string `json:"image_path"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	Size        string `json:"size"`
}

// Summary is the human-readable wrap-up on the completion entry.
type Summary struct {
	AllAssetsAvailable bool   `json:"all_assets_available"`
	ReadyForRendering  bool   `json:"ready_for_rendering"`
	Message            string `json:"message"`
}

// Service writes one JSON document per pipeline event into the campaign's
// logs folder.
type Service struct {
	store storage.Store
	now   func() time.Time
}

// NewService constructs the audit log service.
func NewService(store storage.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// TimestampSlug converts a timestamp into a filesystem-safe slug by
// truncating to whole seconds and stripping punctuation,
// e.g. 2026-01-30T14:30:45Z -> "20260130-143045".
func TimestampSlug(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}

func (s *Service) write(ctx context.Context, campaignID, prefix string, entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("genlog: marshal entry: %w", err)
	}
	slug := TimestampSlug(s.now().UTC())
	path := fmt.Sprintf("%s/logs/%s-%s.json", briefs.CampaignFolder(campaignID), prefix, slug)
	_, err = s.store.UploadBytes(ctx, path, data)
	return err
}

// CampaignStart records the pipeline entry event with a completeness
// snapshot of every product.
func (s *Service) CampaignStart(ctx context.Context, campaignID string, brief *domain.CampaignBrief) (*Entry, error) {
	var needing, with []ProductRef
	for _, product := range brief.Products {
		if product.Image().NeedsGeneration() {
			has := product.Prompt != ""
			needing = append(needing, ProductRef{ID: product.ID, Name: product.Name, HasPrompt: &has})
		} else {
			with = append(with, ProductRef{ID: product.ID, Name: product.Name, ImagePath: product.ImagePath})
		}
	}

	total := len(brief.Products)
	snapshot := &AssetSnapshot{
		IsComplete:                len(needing) == 0,
		TotalProducts:             total,
		ProductsWithAssets:        len(with),
		ProductsNeedingGeneration: len(needing),
	}
	if total > 0 {
		snapshot.CompletionPercentage = round1(float64(len(with)) / float64(total) * 100)
	}

	entry := &Entry{
		Event:           EventCampaignStarted,
		CampaignID:      campaignID,
		Timestamp:       s.now().UTC().Format(time.RFC3339),
		AssetStatus:     snapshot,
		ProductsNeeding: needing,
		ProductsWith:    with,
		TargetCreatives: brief.TotalCreatives(),
		Locales:         brief.Locales,
		AspectRatios:    brief.AspectRatios,
	}
	if err := s.write(ctx, campaignID, "generation-start", entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GenerationInitiated records that a provider call is about to start for
// one product.
func (s *Service) GenerationInitiated(ctx context.Context, campaignID string, product domain.Product, model string) error {
	entry := &Entry{
		Event:      EventInitiated,
		CampaignID: campaignID,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
		Status:     StatusInitiated,
		Product: &ProductRef{
			ID:             product.ID,
			Name:           product.Name,
			Prompt:         product.Prompt,
			NegativePrompt: product.NegativePrompt,
		},
		GenerationConfig: &Config{Model: model, AspectRatio: domain.AspectSquare, Size: "1024x1024"},
	}
	return s.write(ctx, campaignID, product.ID+"-initiated", entry)
}

// GenerationCompleted records a successful provider call with its
// duration and the stored image path.
func (s *Service) GenerationCompleted(ctx context.Context, campaignID string, product domain.Product, model, imagePath string, duration time.Duration) error {
	entry := &Entry{
		Event:      EventCompleted,
		CampaignID: campaignID,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
		Status:     StatusCompleted,
		Product:    &ProductRef{ID: product.ID, Name: product.Name},
		Result: &Result{
			ImagePath:   imagePath,
			Model:       model,
			AspectRatio: domain.AspectSquare,
			Size:        "1024x1024",
		},
		DurationSeconds: round2(duration.Seconds()),
	}
	return s.write(ctx, campaignID, product.ID+"-completed", entry)
}

// GenerationFailed records a failed provider call before the error is
// propagated.
func (s *Service) GenerationFailed(ctx context.Context, campaignID string, product domain.Product, genErr error) error {
	entry := &Entry{
		Event:      EventFailed,
		CampaignID: campaignID,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
		Status:     StatusFailed,
		Product:    &ProductRef{ID: product.ID, Name: product.Name},
		Error:      genErr.Error(),
	}
	return s.write(ctx, campaignID, product.ID+"-failed", entry)
}

// CampaignComplete records the final completeness snapshot and a
// human-readable summary.
func (s *Service) CampaignComplete(ctx context.Context, campaignID string, brief *domain.CampaignBrief, productsGenerated int, totalDuration time.Duration) (*Entry, error) {
	var pending []ProductRef
	for _, product := range brief.Products {
		if product.Image().NeedsGeneration() {
			pending = append(pending, ProductRef{ID: product.ID, Name: product.Name})
		}
	}
	isComplete := len(pending) == 0

	message := "All campaign assets are available. Ready for template rendering."
	if !isComplete {
		message = fmt.Sprintf("%d product(s) still need assets generated.", len(pending))
	}

	entry := &Entry{
		Event:      EventCampaignCompleted,
		CampaignID: campaignID,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
		FinalAssetStatus: &AssetSnapshot{
			IsComplete:               isComplete,
			TotalProducts:            len(brief.Products),
			ProductsGeneratedThisRun: productsGenerated,
			ProductsStillPending:     len(pending),
		},
		ProductsPending: pending,
		Summary: &Summary{
			AllAssetsAvailable: isComplete,
			ReadyForRendering:  isComplete,
			Message:            message,
		},
		DurationSeconds: round2(totalDuration.Seconds()),
	}
	if err := s.write(ctx, campaignID, "generation-complete", entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
