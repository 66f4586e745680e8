// Package api exposes the scrape pipeline over HTTP: a synchronous scrape
// endpoint, a live progress stream, and the locally mirrored images.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pricepilot/basket-scraper/internal/models"
	"github.com/pricepilot/basket-scraper/internal/progress"
	"github.com/pricepilot/basket-scraper/internal/scraper"
	"github.com/pricepilot/basket-scraper/internal/selectors"
)

// Runner executes one scrape run. *scraper.Orchestrator is the production
// implementation; tests supply fakes.
type Runner interface {
	Run(ctx context.Context, params scraper.Params) (*models.Result, error)
}

// Options carries the request-independent parts of a run: configured limits
// that requests may lower but not raise, and where results land.
type Options struct {
	MaxStorefronts     int
	MaxProductsPerItem int
	OutputPath         string

	// StreamInterval is the pause between progress events. Zero means one
	// second.
	StreamInterval time.Duration
}

type Handlers struct {
	runner   Runner
	reporter *progress.Reporter
	opts     Options
	logger   *slog.Logger
}

func NewHandlers(runner Runner, reporter *progress.Reporter, opts Options, logger *slog.Logger) *Handlers {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}
	return &Handlers{
		runner:   runner,
		reporter: reporter,
		opts:     opts,
		logger:   logger.With("component", "api"),
	}
}

// ScrapeRequest is the body of POST /scrape. Field names follow the JSON
// contract of the frontend this service feeds. Supplying a task id lets the
// caller subscribe to the progress stream before the run starts; an absent
// one is generated.
type ScrapeRequest struct {
	SearchType  string       `json:"type_search"`
	Products    []ScrapeItem `json:"produtos"`
	MaxProducts int          `json:"max_produtos"`
	TaskID      string       `json:"task_id"`
}

type ScrapeItem struct {
	Name     string `json:"produto"`
	Quantity int    `json:"quantidade"`
}

func (r ScrapeRequest) items() models.SearchRequest {
	items := make(models.SearchRequest, len(r.Products))
	for i, p := range r.Products {
		items[i] = models.Item{Name: p.Name, Quantity: p.Quantity}
	}
	return items
}

type ScrapeResponse struct {
	Status       string               `json:"status"`
	BestPurchase models.BestPurchase  `json:"melhor_compra"`
	Storefronts  []*models.Storefront `json:"mercados"`
	OutputFile   string               `json:"output_file"`
	TaskID       string               `json:"task_id"`
}

// Scrape runs one scrape to completion and responds with the persisted
// result. The run is synchronous; observers follow it live through the
// progress stream using the task id assigned here.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	searchType := selectors.SearchType(req.SearchType)
	if searchType != selectors.SearchMarkets && searchType != selectors.SearchPharmacies {
		h.respondError(w, http.StatusBadRequest, "type_search deve ser 'M' ou 'F'")
		return
	}
	items := req.items()
	if err := items.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.New().String()
	}
	h.reporter.Set(r.Context(), taskID, 0, "Iniciando scraping...")

	params := scraper.Params{
		SearchType:         searchType,
		MaxStorefronts:     h.opts.MaxStorefronts,
		MaxProductsPerItem: capLimit(req.MaxProducts, h.opts.MaxProductsPerItem),
		Items:              items,
		OutputPath:         h.opts.OutputPath,
		TaskID:             taskID,
	}

	h.logger.Info("scrape requested",
		"task_id", taskID,
		"search_type", searchType,
		"items", len(items),
	)

	result, err := h.runner.Run(r.Context(), params)
	if err != nil {
		h.logger.Error("scrape failed", "task_id", taskID, "error", err)
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Erro durante o scraping: %v", err))
		return
	}

	// The persisted file is the durable contract; a response without it on
	// disk would promise a download that cannot be served.
	if _, err := os.Stat(h.opts.OutputPath); err != nil {
		h.respondError(w, http.StatusNotFound, "Arquivo de resultados não encontrado")
		return
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{
		Status:       "sucesso",
		BestPurchase: result.BestPurchase,
		Storefronts:  result.Storefronts,
		OutputFile:   h.opts.OutputPath,
		TaskID:       taskID,
	})
}

// capLimit clamps a requested limit to the configured ceiling; zero or
// negative requests mean "use the default".
func capLimit(requested, configured int) int {
	if requested <= 0 || requested > configured {
		return configured
	}
	return requested
}

// StreamProgress serves GET /progresso/{taskID} as server-sent events: one
// JSON state per tick until the task reaches a terminal state or the client
// goes away. Unknown task ids stream the waiting state, so subscribing
// before the run starts is safe.
func (h *Handlers) StreamProgress(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		h.respondError(w, http.StatusBadRequest, "task id é obrigatório")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "streaming não suportado")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.opts.StreamInterval)
	defer ticker.Stop()

	for {
		state := h.reporter.Get(r.Context(), taskID)
		data, err := json.Marshal(state)
		if err != nil {
			h.logger.Error("failed to encode progress state", "task_id", taskID, "error", err)
			return
		}
		// Named events so clients listening via addEventListener("progresso")
		// receive them.
		fmt.Fprintf(w, "event: progresso\ndata: %s\n\n", data)
		flusher.Flush()

		if isTerminal(state) {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func isTerminal(state progress.State) bool {
	return state.Percent >= 100 || strings.HasPrefix(state.Message, "Erro:")
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
