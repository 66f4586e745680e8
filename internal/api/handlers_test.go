package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepilot/basket-scraper/internal/models"
	"github.com/pricepilot/basket-scraper/internal/progress"
	"github.com/pricepilot/basket-scraper/internal/scraper"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner mimics a successful orchestrator run: it records the params it
// was handed, writes the output file, and returns a canned result.
type fakeRunner struct {
	params      scraper.Params
	result      *models.Result
	err         error
	writeOutput bool
}

func (f *fakeRunner) Run(ctx context.Context, params scraper.Params) (*models.Result, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	if f.writeOutput {
		data, _ := json.Marshal(f.result)
		if err := os.WriteFile(params.OutputPath, data, 0o644); err != nil {
			return nil, err
		}
	}
	return f.result, nil
}

func sampleResult() *models.Result {
	return &models.Result{
		BestPurchase: models.BestPurchase{
			Storefront: "Mercado Um",
			TotalCost:  "R$ 8.00",
		},
		Storefronts: []*models.Storefront{
			{ID: 1, Name: "Mercado Um", TotalCost: "R$ 8.00"},
			{ID: 2, Name: "Mercado Dois", TotalCost: "N/A"},
		},
	}
}

type fixture struct {
	handlers *Handlers
	runner   *fakeRunner
	store    *progress.MemoryStore
	output   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	runner := &fakeRunner{result: sampleResult(), writeOutput: true}
	store := progress.NewMemoryStore()
	output := filepath.Join(t.TempDir(), "resultado.json")
	handlers := NewHandlers(runner, progress.NewReporter(store), Options{
		MaxStorefronts:     5,
		MaxProductsPerItem: 5,
		OutputPath:         output,
		StreamInterval:     time.Millisecond,
	}, testLogger())
	return &fixture{handlers: handlers, runner: runner, store: store, output: output}
}

func scrapeBody(t *testing.T, req ScrapeRequest) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func validRequest() ScrapeRequest {
	return ScrapeRequest{
		SearchType: "M",
		Products:   []ScrapeItem{{Name: "Coca-Cola", Quantity: 2}},
	}
}

func TestScrape(t *testing.T) {
	t.Run("successful run", func(t *testing.T) {
		fx := newFixture(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, validRequest()))

		fx.handlers.Scrape(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ScrapeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "sucesso", resp.Status)
		assert.Equal(t, "Mercado Um", resp.BestPurchase.Storefront)
		assert.Len(t, resp.Storefronts, 2)
		assert.Equal(t, fx.output, resp.OutputFile)
		assert.NotEmpty(t, resp.TaskID)

		// The run was handed the defaults, the converted shopping list, and
		// a fresh task id.
		assert.Equal(t, 5, fx.runner.params.MaxStorefronts)
		assert.Equal(t, 5, fx.runner.params.MaxProductsPerItem)
		assert.Equal(t, models.SearchRequest{{Name: "Coca-Cola", Quantity: 2}}, fx.runner.params.Items)
		assert.Equal(t, resp.TaskID, fx.runner.params.TaskID)
	})

	t.Run("client-chosen task id is honored", func(t *testing.T) {
		fx := newFixture(t)
		body := validRequest()
		body.TaskID = "minha-task"
		rec := httptest.NewRecorder()

		fx.handlers.Scrape(rec, httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ScrapeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "minha-task", resp.TaskID)
		assert.Equal(t, "minha-task", fx.runner.params.TaskID)

		// Progress was initialized under that id before the run.
		state, err := fx.store.Get(context.Background(), "minha-task")
		require.NoError(t, err)
		assert.Equal(t, "Iniciando scraping...", state.Message)
	})

	t.Run("portuguese field names on the wire", func(t *testing.T) {
		fx := newFixture(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, validRequest()))

		fx.handlers.Scrape(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `"melhor_compra"`)
		assert.Contains(t, body, `"mercados"`)
		assert.Contains(t, body, `"custo_total"`)
	})

	t.Run("requested product limit is capped at the configured ceiling", func(t *testing.T) {
		fx := newFixture(t)
		body := validRequest()
		body.MaxProducts = 3
		rec := httptest.NewRecorder()

		fx.handlers.Scrape(rec, httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, fx.runner.params.MaxProductsPerItem)

		body.MaxProducts = 50
		rec = httptest.NewRecorder()
		fx.handlers.Scrape(rec, httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, body)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, fx.runner.params.MaxProductsPerItem)
	})

	t.Run("malformed body", func(t *testing.T) {
		fx := newFixture(t)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader("{nope"))

		fx.handlers.Scrape(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown search type", func(t *testing.T) {
		fx := newFixture(t)
		body := validRequest()
		body.SearchType = "X"
		rec := httptest.NewRecorder()

		fx.handlers.Scrape(rec, httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid shopping list", func(t *testing.T) {
		fx := newFixture(t)
		body := validRequest()
		body.Products = []ScrapeItem{{Name: "", Quantity: 1}}
		rec := httptest.NewRecorder()

		fx.handlers.Scrape(rec, httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("run failure", func(t *testing.T) {
		fx := newFixture(t)
		fx.runner.err = errors.New("browser exploded")
		rec := httptest.NewRecorder()

		fx.handlers.Scrape(rec, httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, validRequest())))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Erro durante o scraping")
	})

	t.Run("missing output file", func(t *testing.T) {
		fx := newFixture(t)
		fx.runner.writeOutput = false
		rec := httptest.NewRecorder()

		fx.handlers.Scrape(rec, httptest.NewRequest(http.MethodPost, "/scrape", scrapeBody(t, validRequest())))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Arquivo de resultados não encontrado")
	})
}

func TestCapLimit(t *testing.T) {
	assert.Equal(t, 5, capLimit(0, 5))
	assert.Equal(t, 5, capLimit(-1, 5))
	assert.Equal(t, 3, capLimit(3, 5))
	assert.Equal(t, 5, capLimit(50, 5))
}

func TestStreamProgress(t *testing.T) {
	streamEvents := func(t *testing.T, fx *fixture, taskID string) []progress.State {
		t.Helper()
		router := NewRouter(fx.handlers, t.TempDir(), "/imagens_ifood")
		srv := httptest.NewServer(router)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/progresso/" + taskID)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		var states []progress.State
		var eventName string
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				eventName = name
				continue
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			// Every data frame carries the named event.
			assert.Equal(t, "progresso", eventName)
			var state progress.State
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &state))
			states = append(states, state)
		}
		return states
	}

	t.Run("completed task closes after its terminal event", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.store.Set(context.Background(), "done-task",
			progress.State{Percent: 100, Message: "Scraping concluído!"}))

		states := streamEvents(t, fx, "done-task")
		require.NotEmpty(t, states)
		last := states[len(states)-1]
		assert.Equal(t, 100.0, last.Percent)
		assert.Equal(t, "Scraping concluído!", last.Message)
	})

	t.Run("failed task closes after the error event", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.store.Set(context.Background(), "failed-task",
			progress.State{Percent: 0, Message: "Erro: sessão perdida"}))

		states := streamEvents(t, fx, "failed-task")
		require.NotEmpty(t, states)
		assert.Equal(t, "Erro: sessão perdida", states[len(states)-1].Message)
	})

	t.Run("unknown task streams the waiting state", func(t *testing.T) {
		fx := newFixture(t)

		// Flip the task to terminal shortly after subscribing so the
		// stream ends and the waiting states can be inspected.
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = fx.store.Set(context.Background(), "late-task",
				progress.State{Percent: 100, Message: "Scraping concluído!"})
		}()

		states := streamEvents(t, fx, "late-task")
		require.NotEmpty(t, states)
		assert.Equal(t, "Aguardando...", states[0].Message)
		assert.Equal(t, 100.0, states[len(states)-1].Percent)
	})
}

func TestRouterServesImages(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Mercado Um.png"), []byte("img"), 0o644))

	srv := httptest.NewServer(NewRouter(fx.handlers, dir, "/imagens_ifood"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/imagens_ifood/Mercado%20Um.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "img", string(body))
}

func TestHealth(t *testing.T) {
	fx := newFixture(t)
	rec := httptest.NewRecorder()

	fx.handlers.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
