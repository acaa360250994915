package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"server/internal/briefs"
	"server/internal/domain"
	"server/internal/genlog"
	"server/internal/imaging"
	"server/internal/infra"
	"server/internal/logo"
	genimage "server/internal/providers/image"
	"server/internal/storage"
)

const variantConcurrency = 4

// GeneratorFactory builds a named provider. Injected so tests can swap in
// a fake without touching the network.
type GeneratorFactory func(name string) (genimage.Generator, error)

// Orchestrator drives a campaign through the generation state machine:
// pending -> processing -> completed, or failed on any required-step error.
type Orchestrator struct {
	briefs          *briefs.Service
	logs            *genlog.Service
	store           storage.Store
	defaultProvider string
	providerTimeout time.Duration
	newGenerator    GeneratorFactory
	log             zerolog.Logger
	now             func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithGeneratorFactory overrides how providers are constructed, letting
// callers substitute fakes or instrumented generators.
func WithGeneratorFactory(f GeneratorFactory) Option {
	return func(o *Orchestrator) { o.newGenerator = f }
}

// NewOrchestrator wires the pipeline against real providers built from
// configuration.
func NewOrchestrator(briefSvc *briefs.Service, logSvc *genlog.Service, store storage.Store, cfg *infra.Config, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		briefs:          briefSvc,
		logs:            logSvc,
		store:           store,
		defaultProvider: cfg.GenAIProvider,
		providerTimeout: cfg.ProviderTimeout,
		newGenerator: func(name string) (genimage.Generator, error) {
			return genimage.NewGenerator(name, cfg)
		},
		log: logger.With().Str("component", "pipeline").Logger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProductImagePath is the deterministic storage key for a generated
// creative: briefs/{id}/products/{productId}/{aspectLabel}/{productId}.png.
func ProductImagePath(campaignID, productID, aspectRatio string) string {
	return fmt.Sprintf("%s/products/%s/%s/%s.png",
		briefs.CampaignFolder(campaignID), productID, domain.AspectLabel(aspectRatio), productID)
}

type renderedProduct struct {
	product        domain.Product
	prompt         string
	negativePrompt string
}

// GenerateCampaign runs the full pipeline for one campaign. An unknown
// campaign id surfaces as a plain not-found error; any error on a
// required step after that flips the stored status to failed and is
// returned wrapped as a pipeline failure with the original cause
// preserved.
func (o *Orchestrator) GenerateCampaign(ctx context.Context, campaignID string) (*domain.GenerationReport, error) {
	start := o.now()

	if _, err := o.briefs.UpdateStatus(ctx, campaignID, domain.BriefStatusProcessing); err != nil {
		return nil, o.fail(ctx, campaignID, err)
	}

	brief, err := o.briefs.Get(ctx, campaignID)
	if err != nil {
		return nil, o.fail(ctx, campaignID, err)
	}
	if brief == nil {
		// A lookup miss is not a pipeline failure.
		return nil, fmt.Errorf("%w: no brief stored for campaign %s", domain.ErrNotFound, campaignID)
	}

	report, err := o.run(ctx, campaignID, brief, start)
	if err != nil {
		return nil, o.fail(ctx, campaignID, err)
	}
	return report, nil
}

func (o *Orchestrator) fail(ctx context.Context, campaignID string, cause error) error {
	if _, err := o.briefs.UpdateStatus(ctx, campaignID, domain.BriefStatusFailed); err != nil {
		o.log.Warn().Err(err).Str("campaign_id", campaignID).Msg("could not mark campaign failed")
	}
	return fmt.Errorf("%w: campaign %s: %w", domain.ErrPipelineFailure, campaignID, cause)
}

func (o *Orchestrator) run(ctx context.Context, campaignID string, brief *domain.CampaignBrief, start time.Time) (*domain.GenerationReport, error) {
	if _, err := o.logs.CampaignStart(ctx, campaignID, brief); err != nil {
		o.log.Warn().Err(err).Str("campaign_id", campaignID).Msg("could not write campaign start log")
	}

	logoData, analysis := o.loadLogo(ctx, campaignID, brief)
	hasLogo := len(logoData) > 0

	providerName := genimage.Choose(o.defaultProvider, hasLogo)
	gen, err := o.newGenerator(providerName)
	if err != nil {
		return nil, err
	}
	o.log.Info().
		Str("campaign_id", campaignID).
		Str("provider", providerName).
		Bool("has_logo", hasLogo).
		Msg("starting campaign generation")

	productsProcessed := 0
	var generated []renderedProduct
	for i := range brief.Products {
		p := &brief.Products[i]
		if !p.Image().NeedsGeneration() {
			continue
		}
		productsProcessed++

		rendered, err := o.generateProduct(ctx, campaignID, brief, p, gen, logoData, analysis)
		if err != nil {
			return nil, err
		}
		generated = append(generated, rendered)
	}

	o.generateVariants(ctx, campaignID, brief, generated, analysis, hasLogo)

	if err := o.briefs.Rewrite(ctx, brief); err != nil {
		return nil, err
	}

	final, err := o.briefs.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if final == nil {
		return nil, fmt.Errorf("%w: brief for campaign %s disappeared during processing", domain.ErrNotFound, campaignID)
	}

	duration := o.now().Sub(start)
	if _, err := o.logs.CampaignComplete(ctx, campaignID, final, len(generated), duration); err != nil {
		o.log.Warn().Err(err).Str("campaign_id", campaignID).Msg("could not write campaign completion log")
	}

	if _, err := o.briefs.UpdateStatus(ctx, campaignID, domain.BriefStatusCompleted); err != nil {
		return nil, err
	}

	pending := 0
	for _, p := range final.Products {
		if p.Image().NeedsGeneration() {
			pending++
		}
	}

	return &domain.GenerationReport{
		CampaignID:        campaignID,
		Status:            domain.BriefStatusCompleted,
		ProductsProcessed: productsProcessed,
		ProductsGenerated: len(generated),
		TotalCreatives:    final.TotalCreatives(),
		GeneratedAt:       o.now().UTC(),
		DurationSeconds:   duration.Seconds(),
		AssetStatus: domain.AssetStatus{
			IsComplete:               pending == 0,
			TotalProducts:            len(final.Products),
			ProductsGeneratedThisRun: len(generated),
			ProductsStillPending:     pending,
		},
	}, nil
}

// loadLogo downloads and analyzes the brand logo. Both steps are
// best-effort: a missing or undecodable logo degrades the run to
// prompt-only generation instead of failing it.
func (o *Orchestrator) loadLogo(ctx context.Context, campaignID string, brief *domain.CampaignBrief) ([]byte, *logo.Analysis) {
	if !brief.Brand.Logo().IsReal() {
		return nil, nil
	}

	data, err := o.store.DownloadBytes(ctx, brief.Brand.LogoPath)
	if err != nil {
		o.log.Warn().Err(err).
			Str("campaign_id", campaignID).
			Str("logo_path", brief.Brand.LogoPath).
			Msg("could not download brand logo, continuing without it")
		return nil, nil
	}

	analysis, err := logo.Analyze(data)
	if err != nil {
		o.log.Warn().Err(err).
			Str("campaign_id", campaignID).
			Msg("could not analyze brand logo, using it as reference only")
		return data, nil
	}
	return data, analysis
}

func (o *Orchestrator) generateProduct(ctx context.Context, campaignID string, brief *domain.CampaignBrief, p *domain.Product, gen genimage.Generator, logoData []byte, analysis *logo.Analysis) (renderedProduct, error) {
	prompt := buildPrompt(brief, *p, analysis, len(logoData) > 0)

	if err := o.logs.GenerationInitiated(ctx, campaignID, *p, gen.Model()); err != nil {
		o.log.Warn().Err(err).Str("product_id", p.ID).Msg("could not write initiated log")
	}

	began := o.now()
	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	artifact, err := gen.GenerateImage(callCtx, genimage.Request{
		Prompt:         prompt,
		NegativePrompt: p.NegativePrompt,
		AspectRatio:    domain.AspectSquare,
		ReferenceImage: logoData,
	})
	cancel()
	if err != nil {
		o.recordFailure(ctx, campaignID, *p, err)
		return renderedProduct{}, fmt.Errorf("generate image for product %s: %w", p.ID, err)
	}

	data := artifact.Data
	if len(logoData) > 0 {
		composited, cerr := imaging.OverlayLogo(data, logoData, imaging.PositionBottomRight, imaging.DefaultLogoScale, imaging.DefaultPadding)
		if cerr != nil {
			o.log.Warn().Err(cerr).Str("product_id", p.ID).Msg("logo overlay failed, keeping raw render")
		} else {
			data = composited
		}
	}

	imagePath := ProductImagePath(campaignID, p.ID, domain.AspectSquare)
	if _, err := o.store.UploadImage(ctx, imagePath, data); err != nil {
		o.recordFailure(ctx, campaignID, *p, err)
		return renderedProduct{}, fmt.Errorf("store image for product %s: %w", p.ID, err)
	}
	p.ImagePath = imagePath

	if err := o.logs.GenerationCompleted(ctx, campaignID, *p, gen.Model(), imagePath, o.now().Sub(began)); err != nil {
		o.log.Warn().Err(err).Str("product_id", p.ID).Msg("could not write completed log")
	}

	return renderedProduct{product: *p, prompt: prompt, negativePrompt: p.NegativePrompt}, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, campaignID string, p domain.Product, cause error) {
	if err := o.logs.GenerationFailed(ctx, campaignID, p, cause); err != nil {
		o.log.Warn().Err(err).Str("product_id", p.ID).Msg("could not write failure log")
	}
}

type variantJob struct {
	product        domain.Product
	prompt         string
	negativePrompt string
	ratio          string
}

// generateVariants fans out size-adjusted renders for every non-square
// aspect ratio. Freshly generated products always get new variants;
// products with pre-existing images get a variant only for ratios that
// are still missing in storage, so a completed campaign re-run stays
// free of provider calls. The whole phase is best-effort: failures are
// logged and never abort the pipeline.
func (o *Orchestrator) generateVariants(ctx context.Context, campaignID string, brief *domain.CampaignBrief, generated []renderedProduct, analysis *logo.Analysis, hasLogo bool) {
	var extra []string
	for _, ratio := range brief.AspectRatios {
		if ratio != domain.AspectSquare {
			extra = append(extra, ratio)
		}
	}
	if len(extra) == 0 {
		return
	}

	fresh := make(map[string]renderedProduct, len(generated))
	for _, rp := range generated {
		fresh[rp.product.ID] = rp
	}

	var jobs []variantJob
	for _, p := range brief.Products {
		if p.Image().NeedsGeneration() {
			continue
		}
		rp, renderedNow := fresh[p.ID]
		prompt := rp.prompt
		negative := rp.negativePrompt
		if !renderedNow {
			if strings.TrimSpace(p.Prompt) == "" {
				continue
			}
			prompt = buildPrompt(brief, p, analysis, hasLogo)
			negative = p.NegativePrompt
		}
		for _, ratio := range extra {
			if !renderedNow && o.variantExists(ctx, campaignID, p.ID, ratio) {
				continue
			}
			jobs = append(jobs, variantJob{product: p, prompt: prompt, negativePrompt: negative, ratio: ratio})
		}
	}
	if len(jobs) == 0 {
		return
	}

	uni, err := o.newGenerator(genimage.ProviderOpenAI)
	if err != nil {
		o.log.Warn().Err(err).
			Str("campaign_id", campaignID).
			Msg("variant provider unavailable, skipping aspect ratio variants")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(variantConcurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, o.providerTimeout)
			defer cancel()

			artifact, err := uni.GenerateImage(callCtx, genimage.Request{
				Prompt:         job.prompt,
				NegativePrompt: job.negativePrompt,
				AspectRatio:    job.ratio,
			})
			if err != nil {
				o.log.Warn().Err(err).
					Str("product_id", job.product.ID).
					Str("aspect_ratio", job.ratio).
					Msg("variant generation failed")
				return nil
			}
			variantPath := ProductImagePath(campaignID, job.product.ID, job.ratio)
			if _, err := o.store.UploadImage(gctx, variantPath, artifact.Data); err != nil {
				o.log.Warn().Err(err).
					Str("product_id", job.product.ID).
					Str("aspect_ratio", job.ratio).
					Msg("variant upload failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) variantExists(ctx context.Context, campaignID, productID, ratio string) bool {
	folder := fmt.Sprintf("%s/products/%s/%s",
		briefs.CampaignFolder(campaignID), productID, domain.AspectLabel(ratio))
	children, err := o.store.ListPaths(ctx, folder)
	return err == nil && len(children) > 0
}

// buildPrompt assembles the provider prompt from the product's base
// prompt, the brand primary color, logo-derived styling, and the
// campaign's call to action.
func buildPrompt(brief *domain.CampaignBrief, p domain.Product, analysis *logo.Analysis, hasReference bool) string {
	base := strings.TrimSpace(p.Prompt)
	if brief.Brand.PrimaryHex != "" {
		base += fmt.Sprintf(" Use the brand primary color %s as a key accent.", brief.Brand.PrimaryHex)
	}

	prompt := base
	if analysis != nil {
		prompt = logo.EnhancePrompt(base, analysis, hasReference)
	}

	if cta := brief.CTAText(); cta != "" {
		prompt += fmt.Sprintf(" Include the call-to-action text '%s' prominently displayed in bold, modern typography at the bottom of the image with high contrast against the background for readability.", cta)
	}
	return prompt
}
