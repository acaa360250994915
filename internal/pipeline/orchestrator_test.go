package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/briefs"
	"server/internal/domain"
	"server/internal/genlog"
	genimage "server/internal/providers/image"
	"server/internal/storage"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []genimage.Request
	data  []byte
	err   error
}

func (f *fakeGenerator) GenerateImage(_ context.Context, req genimage.Request) (*genimage.Artifact, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &genimage.Artifact{Model: "fake-model", MIMEType: "image/png", Data: f.data}, nil
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGenerator) call(i int) genimage.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func solidPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testBrief() *domain.CampaignBrief {
	return &domain.CampaignBrief{
		Campaign:       "summer-launch",
		TargetRegion:   "EU",
		TargetAudience: "young professionals",
		Locales:        []string{"en-US"},
		Message:        map[string]string{"en-US": "Fresh looks for summer"},
		CTA:            map[string]string{"en-US": "Shop Now"},
		Products: []domain.Product{
			{ID: "tote-bag", Name: "Tote Bag", Prompt: "a canvas tote bag on a beach towel", ImagePath: "placeholder"},
			{ID: "mug", Name: "Enamel Mug", Prompt: "an enamel camping mug", ImagePath: "placeholder"},
		},
		Brand:        domain.Brand{PrimaryHex: "#FF8800", LogoPath: "placeholder"},
		AspectRatios: []string{domain.AspectSquare, domain.AspectLandscape},
		Template:     "carousel@1.2.0",
	}
}

type testEnv struct {
	orch      *Orchestrator
	briefs    *briefs.Service
	store     storage.Store
	requested []string
}

func newTestEnv(t *testing.T, fake *fakeGenerator) *testEnv {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "")
	require.NoError(t, err)

	env := &testEnv{briefs: briefs.NewService(store), store: store}
	env.orch = &Orchestrator{
		briefs:          env.briefs,
		logs:            genlog.NewService(store),
		store:           store,
		defaultProvider: genimage.ProviderGemini,
		providerTimeout: 5 * time.Second,
		newGenerator: func(name string) (genimage.Generator, error) {
			env.requested = append(env.requested, name)
			return fake, nil
		},
		log: zerolog.Nop(),
		now: time.Now,
	}
	return env
}

func (e *testEnv) logEvents(t *testing.T, campaignID string) []string {
	t.Helper()
	paths, err := e.store.ListPaths(context.Background(), briefs.CampaignFolder(campaignID)+"/logs")
	require.NoError(t, err)
	return paths
}

func countMatching(paths []string, substr string) int {
	n := 0
	for _, p := range paths {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

func TestGenerateCampaignHappyPath(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGenerator{data: []byte("rendered-image")}
	env := newTestEnv(t, fake)

	brief := testBrief()
	jpegBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	_, err := env.briefs.Upload(ctx, brief, map[string][]byte{"mug": jpegBytes}, nil, "")
	require.NoError(t, err)

	report, err := env.orch.GenerateCampaign(ctx, "summer-launch")
	require.NoError(t, err)

	assert.Equal(t, "summer-launch", report.CampaignID)
	assert.Equal(t, domain.BriefStatusCompleted, report.Status)
	assert.Equal(t, 1, report.ProductsProcessed)
	assert.Equal(t, 1, report.ProductsGenerated)
	assert.Equal(t, 4, report.TotalCreatives)
	assert.True(t, report.AssetStatus.IsComplete)
	assert.Zero(t, report.AssetStatus.ProductsStillPending)

	meta, err := env.briefs.GetMetadata(ctx, "summer-launch")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, domain.BriefStatusCompleted, meta.Status)

	stored, err := env.briefs.Get(ctx, "summer-launch")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "briefs/summer-launch/products/tote-bag/1-1/tote-bag.png", stored.Products[0].ImagePath)
	assert.False(t, stored.Products[0].Image().NeedsGeneration())

	square, err := env.store.DownloadBytes(ctx, "briefs/summer-launch/products/tote-bag/1-1/tote-bag.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("rendered-image"), square)

	// One square render plus a landscape variant per product, the
	// uploaded mug included.
	require.Equal(t, 3, fake.callCount())
	first := fake.call(0)
	assert.Contains(t, first.Prompt, "a canvas tote bag on a beach towel")
	assert.Contains(t, first.Prompt, "#FF8800")
	assert.Contains(t, first.Prompt, "call-to-action text 'Shop Now'")
	assert.Equal(t, domain.AspectSquare, first.AspectRatio)
	assert.Empty(t, first.ReferenceImage)

	variantPrompts := make(map[string]bool)
	for i := 1; i < fake.callCount(); i++ {
		v := fake.call(i)
		assert.Equal(t, domain.AspectLandscape, v.AspectRatio)
		variantPrompts[v.Prompt] = true
	}
	assert.True(t, variantPrompts[first.Prompt], "tote variant reuses the square prompt")

	_, err = env.store.DownloadBytes(ctx, "briefs/summer-launch/products/tote-bag/16-9/tote-bag.png")
	require.NoError(t, err)
	_, err = env.store.DownloadBytes(ctx, "briefs/summer-launch/products/mug/16-9/mug.png")
	require.NoError(t, err)

	events := env.logEvents(t, "summer-launch")
	assert.Equal(t, 1, countMatching(events, "generation-start"))
	assert.Equal(t, 1, countMatching(events, "tote-bag-initiated"))
	assert.Equal(t, 1, countMatching(events, "tote-bag-completed"))
	assert.Equal(t, 1, countMatching(events, "generation-complete-"))
	assert.Zero(t, countMatching(events, "failed"))
	assert.Zero(t, countMatching(events, "mug-"))
}

func TestGenerateCampaignIdempotent(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGenerator{data: []byte("rendered-image")}
	env := newTestEnv(t, fake)

	_, err := env.briefs.Upload(ctx, testBrief(), map[string][]byte{"mug": {0xFF, 0xD8, 0xFF}}, nil, "")
	require.NoError(t, err)

	_, err = env.orch.GenerateCampaign(ctx, "summer-launch")
	require.NoError(t, err)
	firstRunCalls := fake.callCount()

	report, err := env.orch.GenerateCampaign(ctx, "summer-launch")
	require.NoError(t, err)

	assert.Zero(t, report.ProductsProcessed)
	assert.Zero(t, report.ProductsGenerated)
	assert.True(t, report.AssetStatus.IsComplete)
	assert.Equal(t, firstRunCalls, fake.callCount(), "second run must not regenerate real images")
}

func TestGenerateCampaignProviderFailure(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGenerator{err: fmt.Errorf("%w: quota exceeded", domain.ErrProviderFailure)}
	env := newTestEnv(t, fake)

	_, err := env.briefs.Upload(ctx, testBrief(), nil, nil, "")
	require.NoError(t, err)

	_, err = env.orch.GenerateCampaign(ctx, "summer-launch")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPipelineFailure))
	assert.True(t, errors.Is(err, domain.ErrProviderFailure))

	meta, merr := env.briefs.GetMetadata(ctx, "summer-launch")
	require.NoError(t, merr)
	require.NotNil(t, meta)
	assert.Equal(t, domain.BriefStatusFailed, meta.Status)

	events := env.logEvents(t, "summer-launch")
	assert.Equal(t, 1, countMatching(events, "tote-bag-failed"))
	assert.Zero(t, countMatching(events, "completed"))
}

func TestGenerateCampaignMissingBrief(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{data: []byte("x")})

	_, err := env.orch.GenerateCampaign(context.Background(), "no-such-campaign")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrPipelineFailure), "lookup miss is not a pipeline failure")
}

func TestGenerateCampaignConfigurationError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &fakeGenerator{data: []byte("x")})
	env.orch.newGenerator = func(string) (genimage.Generator, error) {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", domain.ErrConfiguration)
	}

	_, err := env.briefs.Upload(ctx, testBrief(), nil, nil, "")
	require.NoError(t, err)

	_, err = env.orch.GenerateCampaign(ctx, "summer-launch")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	meta, merr := env.briefs.GetMetadata(ctx, "summer-launch")
	require.NoError(t, merr)
	require.NotNil(t, meta)
	assert.Equal(t, domain.BriefStatusFailed, meta.Status)
}

func TestGenerateCampaignWithLogoForcesMultimodal(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGenerator{data: solidPNG(t, color.RGBA{R: 200, G: 30, B: 30, A: 255}, 256, 256)}
	env := newTestEnv(t, fake)
	env.orch.defaultProvider = genimage.ProviderOpenAI

	logoBytes := solidPNG(t, color.RGBA{R: 20, G: 40, B: 200, A: 255}, 64, 64)
	brief := testBrief()
	_, err := env.briefs.Upload(ctx, brief, map[string][]byte{"mug": {0xFF, 0xD8, 0xFF}}, logoBytes, "logo.png")
	require.NoError(t, err)

	report, err := env.orch.GenerateCampaign(ctx, "summer-launch")
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProductsGenerated)

	// Logo presence overrides the configured openai default.
	require.NotEmpty(t, env.requested)
	assert.Equal(t, genimage.ProviderGemini, env.requested[0])

	first := fake.call(0)
	assert.Equal(t, logoBytes, first.ReferenceImage)
	assert.Contains(t, first.Prompt, "visual reference")

	// Composited output stays a decodable PNG with the render's dimensions.
	data, err := env.store.DownloadBytes(ctx, "briefs/summer-launch/products/tote-bag/1-1/tote-bag.png")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())
}

func TestGenerateCampaignSquareOnlySkipsVariants(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGenerator{data: []byte("rendered-image")}
	env := newTestEnv(t, fake)

	brief := testBrief()
	brief.AspectRatios = []string{domain.AspectSquare}
	_, err := env.briefs.Upload(ctx, brief, map[string][]byte{"mug": {0xFF, 0xD8, 0xFF}}, nil, "")
	require.NoError(t, err)

	_, err = env.orch.GenerateCampaign(ctx, "summer-launch")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount())
}

func TestGenerateCampaignVariantsForUploadedImages(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGenerator{data: []byte("rendered-image")}
	env := newTestEnv(t, fake)

	// Both products arrive with real images, so no square renders run,
	// but landscape variants are still produced for promptable products.
	brief := testBrief()
	brief.Products[1].Prompt = ""
	jpegBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	_, err := env.briefs.Upload(ctx, brief, map[string][]byte{"tote-bag": jpegBytes, "mug": jpegBytes}, nil, "")
	require.NoError(t, err)

	report, err := env.orch.GenerateCampaign(ctx, "summer-launch")
	require.NoError(t, err)
	assert.Zero(t, report.ProductsGenerated)
	assert.Equal(t, domain.BriefStatusCompleted, report.Status)

	require.Equal(t, 1, fake.callCount())
	call := fake.call(0)
	assert.Equal(t, domain.AspectLandscape, call.AspectRatio)
	assert.Contains(t, call.Prompt, "a canvas tote bag on a beach towel")
	assert.Contains(t, call.Prompt, "#FF8800")

	_, err = env.store.DownloadBytes(ctx, "briefs/summer-launch/products/tote-bag/16-9/tote-bag.png")
	require.NoError(t, err)
	_, err = env.store.DownloadBytes(ctx, "briefs/summer-launch/products/mug/16-9/mug.png")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "promptless product gets no variant")

	// A second run finds the variant in place and makes no calls.
	_, err = env.orch.GenerateCampaign(ctx, "summer-launch")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount())
}

func TestDispatcherProcessesSubmittedCampaigns(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGenerator{data: []byte("rendered-image")}
	env := newTestEnv(t, fake)

	_, err := env.briefs.Upload(ctx, testBrief(), map[string][]byte{"mug": {0xFF, 0xD8, 0xFF}}, nil, "")
	require.NoError(t, err)

	d := NewDispatcher(env.orch, 2, 8, zerolog.Nop())
	require.True(t, d.Submit("summer-launch"))
	d.Close()

	meta, err := env.briefs.GetMetadata(ctx, "summer-launch")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, domain.BriefStatusCompleted, meta.Status)
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	fake := &fakeGenerator{data: []byte("x")}
	env := newTestEnv(t, fake)

	d := &Dispatcher{orchestrator: env.orch, queue: make(chan string, 1), log: zerolog.Nop()}
	require.True(t, d.Submit("a"))
	assert.False(t, d.Submit("b"))
}

func TestDispatcherSubmitAfterClose(t *testing.T) {
	fake := &fakeGenerator{data: []byte("x")}
	env := newTestEnv(t, fake)

	d := NewDispatcher(env.orch, 1, 1, zerolog.Nop())
	d.Close()
	d.Close()

	assert.False(t, d.Submit("summer-launch"))
}
