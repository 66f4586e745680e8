package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pricepilot/basket-scraper/internal/basket"
	"github.com/pricepilot/basket-scraper/internal/browser"
	"github.com/pricepilot/basket-scraper/internal/images"
	"github.com/pricepilot/basket-scraper/internal/models"
	"github.com/pricepilot/basket-scraper/internal/progress"
	"github.com/pricepilot/basket-scraper/internal/ratelimit"
	"github.com/pricepilot/basket-scraper/internal/retry"
	"github.com/pricepilot/basket-scraper/internal/selectors"
)

// SessionProvider hands out fresh browser sessions. *browser.Browser is the
// production implementation; tests supply fakes.
type SessionProvider interface {
	NewSession() (browser.Session, error)
}

// Params describes one scrape run.
type Params struct {
	SearchType         selectors.SearchType
	MaxStorefronts     int
	MaxProductsPerItem int
	Items              models.SearchRequest
	OutputPath         string
	TaskID             string
}

// Orchestrator owns the lifecycle of a scrape run: session acquisition and
// guaranteed release, storefront discovery, per-storefront per-item product
// search, image resolution, optimization, persistence, and progress
// milestones. A run is sequential because it shares a single browser
// session; only image fetches fan out.
type Orchestrator struct {
	sessions        SessionProvider
	cfg             *selectors.Config
	fetcher         *images.Fetcher
	reporter        *progress.Reporter
	pacer           ratelimit.RateLimiter
	maxAlternatives int
	logger          *slog.Logger
}

type OrchestratorOptions struct {
	// MaxAlternatives caps the ranked fallback candidates kept per item.
	MaxAlternatives int
	// Pacer spaces consecutive item searches within a storefront. Nil
	// disables pacing (tests).
	Pacer ratelimit.RateLimiter
}

func NewOrchestrator(sessions SessionProvider, cfg *selectors.Config, fetcher *images.Fetcher, reporter *progress.Reporter, opts OrchestratorOptions, logger *slog.Logger) *Orchestrator {
	if opts.MaxAlternatives <= 0 {
		opts.MaxAlternatives = 2
	}
	return &Orchestrator{
		sessions:        sessions,
		cfg:             cfg,
		fetcher:         fetcher,
		reporter:        reporter,
		pacer:           opts.Pacer,
		maxAlternatives: opts.MaxAlternatives,
		logger:          logger.With("component", "orchestrator"),
	}
}

// Run executes one scrape run to completion or failure. Transient failures
// of the whole pipeline are retried under the same policy as individual
// navigation steps; on final failure the progress channel reports the error
// and the error propagates to the caller.
func (o *Orchestrator) Run(ctx context.Context, params Params) (*models.Result, error) {
	if err := params.Items.Validate(); err != nil {
		return nil, err
	}
	if params.MaxStorefronts <= 0 || params.MaxProductsPerItem <= 0 {
		return nil, fmt.Errorf("storefront and product limits must be positive")
	}

	policy := retry.Default(browser.IsTransient)
	policy.OnRetry = func(attempt int, err error) {
		o.logger.Info("scrape attempt failed, retrying", "attempt", attempt, "error", err)
	}

	var result *models.Result
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = o.runOnce(ctx, params)
		return err
	})
	if err != nil {
		o.logger.Error("scrape run failed", "task_id", params.TaskID, "error", err)
		o.reporter.Set(ctx, params.TaskID, 0, "Erro: "+err.Error())
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) runOnce(ctx context.Context, params Params) (*models.Result, error) {
	o.logger.Info("cleaning image directory before the run")
	if err := o.fetcher.ResetDir(); err != nil {
		return nil, fmt.Errorf("failed to reset image directory: %w", err)
	}
	o.reporter.Set(ctx, params.TaskID, 5, "Configurando ambiente...")

	session, err := o.sessions.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser session: %w", err)
	}
	// Session release must never fail the run, whatever exit path we take.
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Error("failed to release browser session", "error", err)
		} else {
			o.logger.Info("browser session released")
		}
	}()

	nav := NewNavigator(session, o.cfg, o.logger)

	if err := nav.ValidateSelectors(ctx, params.SearchType); err != nil {
		return nil, err
	}
	if err := nav.AcquireLocation(ctx, params.SearchType); err != nil {
		return nil, err
	}

	// Progress budget: 10-50% for storefront cards, 50-90% for the
	// storefront x item searches, the tail for optimization and persistence.
	progressBase := 10.0
	storefronts, err := nav.DiscoverStorefronts(ctx, params.MaxStorefronts,
		func(total int) {
			o.reporter.Set(ctx, params.TaskID, 10, fmt.Sprintf("Carregados %d mercados...", total))
		},
		func(i, total int, name string) {
			progressBase += 40.0 / float64(total)
			o.reporter.Set(ctx, params.TaskID, min(progressBase, 50),
				fmt.Sprintf("Processando mercado %d de %d...", i, total))
		})
	if err != nil {
		return nil, err
	}

	if len(storefronts) == 0 {
		o.logger.Warn("no storefronts found")
	}

	o.resolveStorefrontImages(ctx, storefronts)

	perItemSlice := 40.0 / float64(max(len(storefronts)*len(params.Items), 1))
	progressBase = 50

	for j, sf := range storefronts {
		sf.Products = make(map[string][]models.Product, len(params.Items))

		for k, item := range params.Items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			sf.Products[item.Name] = []models.Product{}
			if sf.URL == "" {
				continue
			}

			o.logger.Info("searching item in storefront", "item", item.Name, "storefront", sf.Name)
			found, err := nav.SearchProducts(ctx, sf.Name, sf.URL, item.Name, params.MaxProductsPerItem)
			if err != nil {
				// A broken storefront degrades the dataset; it does not
				// fail the run or its siblings.
				o.logger.Error("product search failed",
					"item", item.Name, "storefront", sf.Name, "error", err)
			} else {
				o.resolveProductImages(ctx, sf.Name, found)
				sf.Products[item.Name] = found
			}

			progressBase += perItemSlice
			o.reporter.Set(ctx, params.TaskID, min(progressBase, 90),
				fmt.Sprintf("Processando item %d de %d no mercado %d de %d...",
					k+1, len(params.Items), j+1, len(storefronts)))

			if o.pacer != nil {
				if err := o.pacer.Wait(ctx); err != nil {
					return nil, err
				}
			}
		}
		if sf.URL == "" {
			o.logger.Warn("storefront has no URL, skipping product search", "storefront", sf.Name)
		}
	}

	o.reporter.Set(ctx, params.TaskID, 95, "Calculando melhor compra...")
	result := basket.Optimize(storefronts, params.Items, o.maxAlternatives, o.logger)

	if err := o.persist(result, params.OutputPath); err != nil {
		return nil, err
	}
	o.logger.Info("result persisted", "path", params.OutputPath)

	o.reporter.Set(ctx, params.TaskID, 100, "Scraping concluído!")
	return result, nil
}

func (o *Orchestrator) resolveStorefrontImages(ctx context.Context, storefronts []*models.Storefront) {
	reqs := make([]images.Request, len(storefronts))
	for i, sf := range storefronts {
		reqs[i] = images.Request{Ref: sf.ImageURL, BaseName: sf.Name}
	}
	o.fetcher.ResolveAll(ctx, reqs)
	for i, sf := range storefronts {
		sf.LocalImagePath = reqs[i].LocalPath
	}
}

func (o *Orchestrator) resolveProductImages(ctx context.Context, storefrontName string, products []models.Product) {
	reqs := make([]images.Request, len(products))
	for i, p := range products {
		reqs[i] = images.Request{
			Ref:      p.ImageURL,
			BaseName: fmt.Sprintf("produto_%s_%s", storefrontName, p.Name),
		}
	}
	o.fetcher.ResolveAll(ctx, reqs)
	for i := range products {
		products[i].LocalImagePath = reqs[i].LocalPath
	}
}

func (o *Orchestrator) persist(result *models.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}
