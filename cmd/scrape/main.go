// Command scrape runs one scrape from the terminal, without the HTTP
// server: same pipeline, results printed on stdout and persisted to the
// usual output file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pricepilot/basket-scraper/internal/browser"
	"github.com/pricepilot/basket-scraper/internal/config"
	"github.com/pricepilot/basket-scraper/internal/images"
	"github.com/pricepilot/basket-scraper/internal/models"
	"github.com/pricepilot/basket-scraper/internal/progress"
	"github.com/pricepilot/basket-scraper/internal/ratelimit"
	"github.com/pricepilot/basket-scraper/internal/scraper"
	"github.com/pricepilot/basket-scraper/internal/selectors"
)

func main() {
	var (
		searchType  = flag.String("tipo-busca", "M", "M para mercados, F para farmácias")
		items       = flag.String("itens", "", "lista de compras no formato 'coca-cola:2,queijo:1'")
		maxStores   = flag.Int("max-mercados", 0, "limite de mercados (0 usa a configuração)")
		maxProducts = flag.Int("max-produtos", 0, "limite de produtos por item (0 usa a configuração)")
		output      = flag.String("output", "", "arquivo de saída (vazio usa a configuração)")
		imagesDir   = flag.String("imagens-dir", "", "pasta das imagens baixadas (vazio usa a configuração)")
		selPath     = flag.String("selectors", "", "arquivo YAML de seletores (vazio usa a configuração)")
		headless    = flag.Bool("headless", true, "executa o navegador sem interface")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger, *searchType, *items, *maxStores, *maxProducts, *output, *imagesDir, *selPath, *headless); err != nil {
		logger.Error("scrape failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, searchType, items string, maxStores, maxProducts int, output, imagesDir, selPath string, headless bool) error {
	request, err := parseItems(items)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if maxStores <= 0 {
		maxStores = cfg.Scraper.MaxStorefronts
	}
	if maxProducts <= 0 {
		maxProducts = cfg.Scraper.MaxProductsPerItem
	}
	if output == "" {
		output = cfg.Scraper.OutputPath
	}
	if imagesDir == "" {
		imagesDir = cfg.Images.Dir
	}
	if selPath == "" {
		selPath = cfg.Selectors.Path
	}

	selCfg, err := selectors.Load(selPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := browser.DefaultOptions()
	opts.Headless = headless
	b, err := browser.New(opts)
	if err != nil {
		return err
	}
	defer b.Close()

	fetcher := images.NewFetcher(images.Options{
		Dir:       imagesDir,
		WebPrefix: cfg.Images.WebPrefix,
		Workers:   cfg.Images.Workers,
		Timeout:   cfg.Images.Timeout,
	}, logger)

	// CLI runs have no external observers; an empty task id turns progress
	// reporting into a no-op.
	reporter := progress.NewReporter(progress.NewMemoryStore())

	orch := scraper.NewOrchestrator(b, selCfg, fetcher, reporter, scraper.OrchestratorOptions{
		MaxAlternatives: cfg.Scraper.MaxAlternatives,
		Pacer:           ratelimit.NewSimpleRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax),
	}, logger)

	result, err := orch.Run(ctx, scraper.Params{
		SearchType:         selectors.SearchType(searchType),
		MaxStorefronts:     maxStores,
		MaxProductsPerItem: maxProducts,
		Items:              request,
		OutputPath:         output,
	})
	if err != nil {
		return err
	}

	printSummary(result, output)
	return nil
}

// parseItems turns "coca-cola:2,queijo:1" into a shopping list. A missing
// quantity means one unit.
func parseItems(raw string) (models.SearchRequest, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("a flag -itens é obrigatória, ex: -itens 'coca-cola:2,queijo:1'")
	}

	var request models.SearchRequest
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name := entry
		quantity := 1
		if idx := strings.LastIndex(entry, ":"); idx >= 0 {
			name = strings.TrimSpace(entry[:idx])
			q, err := strconv.Atoi(strings.TrimSpace(entry[idx+1:]))
			if err != nil {
				return nil, fmt.Errorf("quantidade inválida em %q", entry)
			}
			quantity = q
		}
		request = append(request, models.Item{Name: name, Quantity: quantity})
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}
	return request, nil
}

func printSummary(result *models.Result, output string) {
	fmt.Println()
	fmt.Println("=== Melhor compra ===")
	fmt.Printf("Mercado: %s\n", result.BestPurchase.Storefront)
	fmt.Printf("Custo total: %s\n", result.BestPurchase.TotalCost)
	for _, pick := range result.BestPurchase.ChosenPicks {
		fmt.Printf("  %dx %s (%s)\n", pick.Quantity, pick.Product.Name, pick.Product.Price)
	}
	fmt.Println()
	fmt.Printf("Mercados avaliados: %d\n", len(result.Storefronts))
	fmt.Printf("Resultado completo: %s\n", output)
}
