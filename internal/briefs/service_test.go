package briefs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/storage"
)

var (
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	pngBytes  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	webpBytes = append([]byte("RIFF"), append([]byte{0x20, 0x00, 0x00, 0x00}, []byte("WEBPVP8 ")...)...)
)

func testBrief(campaign string) *domain.CampaignBrief {
	return &domain.CampaignBrief{
		Campaign:       campaign,
		TargetRegion:   "US",
		TargetAudience: "commuters",
		Locales:        []string{"en-US"},
		Message:        map[string]string{"en-US": "Ride further"},
		CTA:            map[string]string{"en-US": "Order Today"},
		Products: []domain.Product{
			{ID: "bottle", Name: "Water Bottle", Prompt: "insulated bottle on a trail", ImagePath: "placeholder"},
			{ID: "helmet", Name: "Helmet", Prompt: "matte black bike helmet", ImagePath: "placeholder"},
		},
		Brand:        domain.Brand{PrimaryHex: "#1A73E8", LogoPath: "pending-generation"},
		AspectRatios: []string{"1:1"},
		Template:     "bottom-cta@1.3.0",
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	return NewService(store)
}

func TestSniffExtension(t *testing.T) {
	require.Equal(t, "jpg", SniffExtension(jpegBytes))
	require.Equal(t, "png", SniffExtension(pngBytes))
	require.Equal(t, "webp", SniffExtension(webpBytes))
	require.Equal(t, "jpg", SniffExtension([]byte("not an image")))
	require.Equal(t, "jpg", SniffExtension(nil))
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "acme-logo.png", SanitizeFilename("acme logo.png"))
	require.Equal(t, "a-b-c.png", SanitizeFilename("a/b\\c.png"))
}

func TestUploadAndGetRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Upload(ctx, testBrief("city-ride"), map[string][]byte{"bottle": pngBytes}, jpegBytes, "acme logo.jpg")
	require.NoError(t, err)
	require.Equal(t, "city-ride", result.CampaignID)
	require.Equal(t, "briefs/city-ride/brief.json", result.BriefPath)
	require.Equal(t, string(domain.BriefStatusPending), result.Status)

	stored, err := svc.Get(ctx, "city-ride")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "briefs/city-ride/assets/bottle.png", stored.Products[0].ImagePath)
	require.True(t, stored.Products[0].Image().IsReal())
	// helmet had no upload and keeps its sentinel
	require.True(t, stored.Products[1].Image().NeedsGeneration())
	require.Equal(t, "briefs/city-ride/assets/acme-logo.jpg", stored.Brand.LogoPath)

	metadata, err := svc.GetMetadata(ctx, "city-ride")
	require.NoError(t, err)
	require.NotNil(t, metadata)
	require.Equal(t, domain.BriefStatusPending, metadata.Status)
	require.Equal(t, "1.0.0", metadata.Version)
}

func TestUploadRejectsInvalidBrief(t *testing.T) {
	svc := newTestService(t)
	brief := testBrief("bad")
	brief.Products = brief.Products[:1]

	_, err := svc.Upload(context.Background(), brief, nil, nil, "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetMissingBriefIsNil(t *testing.T) {
	svc := newTestService(t)

	brief, err := svc.Get(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, brief)
}

func TestUpdateStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, testBrief("city-ride"), nil, nil, "")
	require.NoError(t, err)

	metadata, err := svc.UpdateStatus(ctx, "city-ride", domain.BriefStatusProcessing)
	require.NoError(t, err)
	require.NotNil(t, metadata)
	require.Equal(t, domain.BriefStatusProcessing, metadata.Status)

	reloaded, err := svc.GetMetadata(ctx, "city-ride")
	require.NoError(t, err)
	require.Equal(t, domain.BriefStatusProcessing, reloaded.Status)
}

func TestUpdateStatusMissingCampaign(t *testing.T) {
	svc := newTestService(t)

	metadata, err := svc.UpdateStatus(context.Background(), "ghost", domain.BriefStatusProcessing)
	require.NoError(t, err)
	require.Nil(t, metadata)
}

func TestListSortsByUploadTimeDescending(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, testBrief("first"), nil, nil, "")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = svc.Upload(ctx, testBrief("second"), nil, nil, "")
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "second", items[0].CampaignID)
	require.Equal(t, "first", items[1].CampaignID)
}

func TestListEmptyRoot(t *testing.T) {
	svc := newTestService(t)

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, testBrief("city-ride"), nil, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "city-ride"))
	require.NoError(t, svc.Delete(ctx, "city-ride"))

	brief, err := svc.Get(ctx, "city-ride")
	require.NoError(t, err)
	require.Nil(t, brief)
}
