package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporterDefaultForUnknownTask(t *testing.T) {
	r := NewReporter(NewMemoryStore())

	state := r.Get(context.Background(), "unknown-id")
	assert.Equal(t, 0.0, state.Percent)
	assert.Equal(t, "Aguardando...", state.Message)
}

func TestReporterOverwrites(t *testing.T) {
	ctx := context.Background()
	r := NewReporter(NewMemoryStore())

	r.Set(ctx, "task-1", 10, "Carregados 5 mercados...")
	r.Set(ctx, "task-1", 100, "Scraping concluído!")

	state := r.Get(ctx, "task-1")
	assert.Equal(t, 100.0, state.Percent)
	assert.Equal(t, "Scraping concluído!", state.Message)
}

func TestReporterKeepsTerminalState(t *testing.T) {
	ctx := context.Background()
	r := NewReporter(NewMemoryStore())

	r.Set(ctx, "task-1", 0, "Erro: timeout")

	// A late observer still sees the failure.
	state := r.Get(ctx, "task-1")
	assert.Equal(t, "Erro: timeout", state.Message)
}

func TestReporterIgnoresEmptyTaskID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewReporter(store)

	r.Set(ctx, "", 50, "halfway")
	assert.Empty(t, store.tasks)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewReporter(store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		id := fmt.Sprintf("task-%d", i)
		go func() {
			defer wg.Done()
			for p := 0; p <= 100; p += 10 {
				r.Set(ctx, id, float64(p), "working")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				r.Get(ctx, id)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		state := r.Get(ctx, fmt.Sprintf("task-%d", i))
		assert.Equal(t, 100.0, state.Percent)
	}
}
