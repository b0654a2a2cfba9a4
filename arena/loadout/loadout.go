// arena/loadout/loadout.go
package loadout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TitanForge/ARENA-SERVICES/shared/api"
	"github.com/TitanForge/ARENA-SERVICES/shared/models"
)

// ErrLoadoutNotFound is returned when the collection service has no such
// titan set, or the set does not contain the requested titan.
var ErrLoadoutNotFound = errors.New("titan loadout not found")

// Provider resolves a player's titan set into concrete combat loadouts.
type Provider interface {
	// GetTitanSet returns every titan loadout in the given set.
	GetTitanSet(ctx context.Context, titanSetID string) ([]models.TitanLoadout, error)
	// GetTitan returns one titan from the given set.
	GetTitan(ctx context.Context, titanSetID, titanID string) (*models.TitanLoadout, error)
}

// Client fetches loadouts from the collection service over HTTP and keeps a
// small TTL cache so repeated lookups during one match stay local. Loadouts
// are frozen at match start, so a short TTL is safe.
type Client struct {
	apiClient *api.Client
	cacheTTL  time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	loadouts  []models.TitanLoadout
	expiresAt time.Time
}

// NewClient creates a loadout Client for the collection service base URL.
func NewClient(baseURL string, cacheTTL time.Duration) *Client {
	return &Client{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient()),
		cacheTTL:  cacheTTL,
		cache:     make(map[string]cacheEntry),
	}
}

// GetTitanSet returns the cached set if fresh, otherwise fetches it.
func (c *Client) GetTitanSet(ctx context.Context, titanSetID string) ([]models.TitanLoadout, error) {
	c.mu.RLock()
	entry, ok := c.cache[titanSetID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.loadouts, nil
	}

	var loadouts []models.TitanLoadout
	path := fmt.Sprintf("/titansets/%s", titanSetID)
	if err := c.apiClient.Get(ctx, path, &loadouts); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("titan set %s: %w", titanSetID, ErrLoadoutNotFound)
		}
		return nil, fmt.Errorf("failed to fetch titan set %s: %w", titanSetID, err)
	}

	c.mu.Lock()
	c.cache[titanSetID] = cacheEntry{loadouts: loadouts, expiresAt: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()

	return loadouts, nil
}

// GetTitan returns one titan from the set, or ErrLoadoutNotFound.
func (c *Client) GetTitan(ctx context.Context, titanSetID, titanID string) (*models.TitanLoadout, error) {
	loadouts, err := c.GetTitanSet(ctx, titanSetID)
	if err != nil {
		return nil, err
	}
	for i := range loadouts {
		if loadouts[i].TitanID == titanID {
			return &loadouts[i], nil
		}
	}
	return nil, fmt.Errorf("titan %s in set %s: %w", titanID, titanSetID, ErrLoadoutNotFound)
}

// Static serves loadouts from a fixed in-memory table. Used in tests and
// local development without a collection service.
type Static struct {
	Sets map[string][]models.TitanLoadout
}

func (s *Static) GetTitanSet(ctx context.Context, titanSetID string) ([]models.TitanLoadout, error) {
	loadouts, ok := s.Sets[titanSetID]
	if !ok {
		return nil, fmt.Errorf("titan set %s: %w", titanSetID, ErrLoadoutNotFound)
	}
	return loadouts, nil
}

func (s *Static) GetTitan(ctx context.Context, titanSetID, titanID string) (*models.TitanLoadout, error) {
	loadouts, err := s.GetTitanSet(ctx, titanSetID)
	if err != nil {
		return nil, err
	}
	for i := range loadouts {
		if loadouts[i].TitanID == titanID {
			return &loadouts[i], nil
		}
	}
	return nil, fmt.Errorf("titan %s in set %s: %w", titanID, titanSetID, ErrLoadoutNotFound)
}
