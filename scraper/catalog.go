package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/talisman-ep/autoria-monitoring-bot/config"
	"github.com/talisman-ep/autoria-monitoring-bot/httputil"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// catalog memoizes the slow-changing marketplace taxonomies. Brands and
// regions are refreshed once their age exceeds the TTL; a brand's model
// list is fetched once and kept for the process lifetime. A failed
// refresh returns nothing and leaves the cached data and its timestamp
// untouched, so the next call retries.
type catalog struct {
	cfg     config.MarketplaceConfig
	clients *httputil.Clients
	ttl     time.Duration
	now     func() time.Time

	mu          sync.Mutex
	brands      []models.RefItem
	brandsAt    time.Time
	states      []models.RefItem
	statesAt    time.Time
	modelsCache map[int64][]models.RefItem
}

func newCatalog(cfg config.MarketplaceConfig, clients *httputil.Clients) *catalog {
	return &catalog{
		cfg:         cfg,
		clients:     clients,
		ttl:         time.Duration(cfg.CacheTTLSec) * time.Second,
		now:         time.Now,
		modelsCache: make(map[int64][]models.RefItem),
	}
}

func (c *catalog) Brands(ctx context.Context) []models.RefItem {
	c.mu.Lock()
	if len(c.brands) > 0 && c.now().Sub(c.brandsAt) < c.ttl {
		defer c.mu.Unlock()
		return c.brands
	}
	c.mu.Unlock()

	items := c.fetchRefItems(ctx, c.cfg.BrandsURL)
	if len(items) == 0 {
		return nil
	}

	c.mu.Lock()
	c.brands = items
	c.brandsAt = c.now()
	c.mu.Unlock()
	log.Printf("Brands cache updated: %d items", len(items))
	return items
}

func (c *catalog) States(ctx context.Context) []models.RefItem {
	c.mu.Lock()
	if len(c.states) > 0 && c.now().Sub(c.statesAt) < c.ttl {
		defer c.mu.Unlock()
		return c.states
	}
	c.mu.Unlock()

	// langId=4 selects Ukrainian names.
	items := c.fetchRefItems(ctx, c.cfg.StatesURL+"?langId=4")
	if len(items) == 0 {
		return nil
	}

	c.mu.Lock()
	c.states = items
	c.statesAt = c.now()
	c.mu.Unlock()
	log.Printf("States cache updated: %d items", len(items))
	return items
}

func (c *catalog) Models(ctx context.Context, brandID int64) []models.RefItem {
	c.mu.Lock()
	if cached, ok := c.modelsCache[brandID]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	items := c.fetchRefItems(ctx, fmt.Sprintf(c.cfg.ModelsURL, brandID))
	if len(items) == 0 {
		return nil
	}

	c.mu.Lock()
	c.modelsCache[brandID] = items
	c.mu.Unlock()
	return items
}

// refEntry accepts the two shapes the taxonomy endpoints ship: the id
// arrives under "value" on some endpoints and "id" on others.
type refEntry struct {
	Name  string      `json:"name"`
	Value json.Number `json:"value"`
	ID    json.Number `json:"id"`
}

// fetchRefItems loads one taxonomy endpoint and normalizes its entries
// to {id, name}. Any failure yields nil.
func (c *catalog) fetchRefItems(ctx context.Context, rawURL string) []models.RefItem {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil
	}
	httputil.SetCommonHeaders(req)

	resp, err := c.clients.API.Do(req)
	if err != nil {
		log.Printf("Error fetching %s: %v", rawURL, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Failed to fetch %s: status %d", rawURL, resp.StatusCode)
		return nil
	}

	var entries []refEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		log.Printf("Error decoding %s: %v", rawURL, err)
		return nil
	}

	var items []models.RefItem
	for _, e := range entries {
		id, err := e.Value.Int64()
		if err != nil {
			id, err = e.ID.Int64()
		}
		if err != nil || e.Name == "" {
			continue
		}
		items = append(items, models.RefItem{ID: id, Name: e.Name})
	}
	return items
}
