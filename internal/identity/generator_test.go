package identity

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_ContainsModelVersion(t *testing.T) {
	g := NewGenerator()

	id := g.NewID("fraud-v2.1")
	assert.True(t, strings.HasPrefix(id, "fraud-v2.1-"), "id should start with model version: %s", id)
}

func TestNewID_SanitizesVersion(t *testing.T) {
	g := NewGenerator()

	tests := []struct {
		name    string
		version string
		prefix  string
	}{
		{"slashes replaced", "models/fraud v1", "models-fraud-v1-"},
		{"empty version", "", "unversioned-"},
		{"dots preserved", "v1.2.3", "v1.2.3-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := g.NewID(tt.version)
			assert.True(t, strings.HasPrefix(id, tt.prefix), "got %s", id)
		})
	}
}

func TestNewID_UniqueUnderConcurrency(t *testing.T) {
	g := NewGenerator()

	const goroutines = 50
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[string]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := g.NewID("v1")
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perGoroutine, "concurrent calls produced colliding ids")
}
