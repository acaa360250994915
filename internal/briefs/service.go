package briefs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/storage"
)

const (
	briefsRoot    = "briefs"
	formatVersion = "1.0.0"
)

// Service manages campaign briefs persisted in the blob store. The store
// is treated as a document database: one folder per campaign holding the
// brief document, a metadata side-car, uploaded assets, and logs.
type Service struct {
	store storage.Store
}

// NewService constructs a brief service on top of the given blob store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// UploadResult reports where a brief and its metadata were stored.
type UploadResult struct {
	CampaignID   string    `json:"campaign_id"`
	BriefPath    string    `json:"brief_path"`
	MetadataPath string    `json:"metadata_path"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Status       string    `json:"status"`
}

// CampaignFolder returns the storage folder for a campaign id.
func CampaignFolder(campaignID string) string {
	return briefsRoot + "/" + campaignID
}

// BriefPath returns the storage key of a campaign's brief document.
func BriefPath(campaignID string) string {
	return CampaignFolder(campaignID) + "/brief.json"
}

// MetadataPath returns the storage key of a campaign's metadata document.
func MetadataPath(campaignID string) string {
	return CampaignFolder(campaignID) + "/metadata.json"
}

// Upload stores a validated brief, any provided product images, and an
// optional brand logo. Image paths inside the brief are rewritten to the
// stored locations before the document is persisted. Metadata is written
// fresh with status pending.
func (s *Service) Upload(ctx context.Context, brief *domain.CampaignBrief, productImages map[string][]byte, logo []byte, logoFilename string) (*UploadResult, error) {
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	campaignFolder := CampaignFolder(brief.Campaign)
	assetsFolder := campaignFolder + "/assets"

	if err := s.store.EnsureFolder(ctx, campaignFolder); err != nil {
		return nil, err
	}
	if err := s.store.EnsureFolder(ctx, assetsFolder); err != nil {
		return nil, err
	}

	for i := range brief.Products {
		product := &brief.Products[i]
		data, ok := productImages[product.ID]
		if !ok || len(data) == 0 {
			continue
		}
		imagePath := fmt.Sprintf("%s/%s.%s", assetsFolder, product.ID, SniffExtension(data))
		if _, err := s.store.UploadImage(ctx, imagePath, data); err != nil {
			return nil, err
		}
		product.ImagePath = imagePath
	}

	if len(logo) > 0 {
		name := SanitizeFilename(logoFilename)
		if name == "" {
			name = "logo." + SniffExtension(logo)
		}
		logoPath := assetsFolder + "/" + name
		if _, err := s.store.UploadImage(ctx, logoPath, logo); err != nil {
			return nil, err
		}
		brief.Brand.LogoPath = logoPath
	}

	briefPath := BriefPath(brief.Campaign)
	if err := s.writeJSON(ctx, briefPath, brief); err != nil {
		return nil, err
	}

	metadata := domain.BriefMetadata{
		CampaignID: brief.Campaign,
		UploadedAt: time.Now().UTC(),
		Version:    formatVersion,
		Status:     domain.BriefStatusPending,
	}
	metadataPath := MetadataPath(brief.Campaign)
	if err := s.writeJSON(ctx, metadataPath, metadata); err != nil {
		return nil, err
	}

	return &UploadResult{
		CampaignID:   brief.Campaign,
		BriefPath:    briefPath,
		MetadataPath: metadataPath,
		UploadedAt:   metadata.UploadedAt,
		Status:       string(metadata.Status),
	}, nil
}

// Get retrieves a campaign brief. A missing or malformed document yields
// (nil, nil); only infrastructure failures surface as errors.
func (s *Service) Get(ctx context.Context, campaignID string) (*domain.CampaignBrief, error) {
	data, err := s.store.DownloadBytes(ctx, BriefPath(campaignID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var brief domain.CampaignBrief
	if err := json.Unmarshal(data, &brief); err != nil {
		return nil, nil
	}
	return &brief, nil
}

// GetMetadata retrieves a campaign's metadata side-car, nil when absent.
func (s *Service) GetMetadata(ctx context.Context, campaignID string) (*domain.BriefMetadata, error) {
	data, err := s.store.DownloadBytes(ctx, MetadataPath(campaignID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var metadata domain.BriefMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, nil
	}
	return &metadata, nil
}

// Rewrite persists the full brief document, replacing the stored copy.
// The pipeline calls this after mutating product image paths.
func (s *Service) Rewrite(ctx context.Context, brief *domain.CampaignBrief) error {
	return s.writeJSON(ctx, BriefPath(brief.Campaign), brief)
}

// List enumerates stored briefs, most recently uploaded first. Campaigns
// missing either document are skipped.
func (s *Service) List(ctx context.Context) ([]domain.BriefListItem, error) {
	paths, err := s.store.ListPaths(ctx, briefsRoot)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.BriefListItem{}, nil
		}
		return nil, err
	}

	items := make([]domain.BriefListItem, 0, len(paths))
	for _, p := range paths {
		campaignID := path.Base(p)
		brief, err := s.Get(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		metadata, err := s.GetMetadata(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if brief == nil || metadata == nil {
			continue
		}
		items = append(items, domain.BriefListItem{
			CampaignID:     campaignID,
			TargetRegion:   brief.TargetRegion,
			TargetAudience: brief.TargetAudience,
			UploadedAt:     metadata.UploadedAt,
			Status:         metadata.Status,
			ProductCount:   len(brief.Products),
			LocaleCount:    len(brief.Locales),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].UploadedAt.After(items[j].UploadedAt)
	})
	return items, nil
}

// Delete removes a campaign's entire subtree. Deleting an absent campaign
// succeeds.
func (s *Service) Delete(ctx context.Context, campaignID string) error {
	return s.store.DeletePath(ctx, CampaignFolder(campaignID))
}

// UpdateStatus performs a read-modify-write of the metadata document.
// Returns (nil, nil) when the campaign has no metadata.
func (s *Service) UpdateStatus(ctx context.Context, campaignID string, status domain.BriefStatus) (*domain.BriefMetadata, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}
	metadata, err := s.GetMetadata(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		return nil, nil
	}
	metadata.Status = status
	if err := s.writeJSON(ctx, MetadataPath(campaignID), metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func (s *Service) writeJSON(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("briefs: marshal %s: %w", path, err)
	}
	_, err = s.store.UploadBytes(ctx, path, data)
	return err
}

// SniffExtension infers an image file extension from magic bytes,
// defaulting to jpg when the signature is unknown.
func SniffExtension(data []byte) string {
	switch {
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xD8}):
		return "jpg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	default:
		return "jpg"
	}
}

// SanitizeFilename makes a filename safe for use as a storage key segment.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	return name
}
