package loadout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

func TestClientFetchesAndCaches(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		require.Equal(t, "/titansets/set-1", r.URL.Path)
		json.NewEncoder(w).Encode([]models.TitanLoadout{
			{TitanID: "pyrelord", Element: models.ElementEmber, MaxHP: 100, Attack: 10, Defense: 5, Speed: 5},
			{TitanID: "ashguard", Element: models.ElementEmber, MaxHP: 120, Attack: 6, Defense: 10, Speed: 3},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Minute)
	ctx := context.Background()

	loadouts, err := c.GetTitanSet(ctx, "set-1")
	require.NoError(t, err)
	assert.Len(t, loadouts, 2)

	titan, err := c.GetTitan(ctx, "set-1", "ashguard")
	require.NoError(t, err)
	assert.Equal(t, 120, titan.MaxHP)

	assert.Equal(t, 1, hits, "second lookup served from cache")
}

func TestClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Minute)

	_, err := c.GetTitanSet(context.Background(), "ghost-set")
	assert.ErrorIs(t, err, ErrLoadoutNotFound)
}

func TestClientUnknownTitanInSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.TitanLoadout{{TitanID: "pyrelord"}})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Minute)

	_, err := c.GetTitan(context.Background(), "set-1", "ghost")
	assert.ErrorIs(t, err, ErrLoadoutNotFound)
}

func TestStaticProvider(t *testing.T) {
	s := &Static{Sets: map[string][]models.TitanLoadout{
		"set-1": {{TitanID: "pyrelord"}},
	}}
	ctx := context.Background()

	titan, err := s.GetTitan(ctx, "set-1", "pyrelord")
	require.NoError(t, err)
	assert.Equal(t, "pyrelord", titan.TitanID)

	_, err = s.GetTitan(ctx, "set-1", "ghost")
	assert.ErrorIs(t, err, ErrLoadoutNotFound)
	_, err = s.GetTitanSet(ctx, "ghost-set")
	assert.ErrorIs(t, err, ErrLoadoutNotFound)
}
