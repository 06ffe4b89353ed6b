// Package scraper extracts car listings from auto.ria.com. The site
// has no documented search API, so the client loads the HTML search
// page and mines the application state its front-end embeds in the
// markup, then fills gaps via the per-car detail endpoint.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/talisman-ep/autoria-monitoring-bot/config"
	"github.com/talisman-ep/autoria-monitoring-bot/httputil"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

type Client struct {
	cfg     config.MarketplaceConfig
	clients *httputil.Clients
	catalog *catalog
}

func NewClient(cfg config.MarketplaceConfig, clients *httputil.Clients) *Client {
	return &Client{
		cfg:     cfg,
		clients: clients,
		catalog: newCatalog(cfg, clients),
	}
}

// Search runs one marketplace query for the subscription's filters and
// returns normalized, enriched cars. Transport and format failures are
// logged and yield an empty slice; the caller never sees an error page
// as anything other than "nothing found".
func (c *Client) Search(ctx context.Context, search models.Search) ([]models.Car, error) {
	reqURL := c.cfg.SearchURL + "?" + buildSearchQuery(search, c.cfg.PageSize).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	httputil.SetHTMLHeaders(req)

	resp, err := c.clients.Scraping.Do(req)
	if err != nil {
		log.Printf("Search request failed: %v", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Search page returned status %d", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Search read failed: %v", err)
		return nil, nil
	}

	cars := extractCars(body, c.cfg.BaseURL)
	if len(cars) == 0 {
		// Happens when AutoRia changes layout or rate-limits the IP.
		log.Printf("Search returned 0 cars: %s", reqURL)
		return nil, nil
	}

	return c.enrichMissingDetails(ctx, cars), nil
}

// buildSearchQuery composes the search parameters. Brand is always
// present; every optional filter is omitted when its value is the
// 0 "any" sentinel.
func buildSearchQuery(s models.Search, pageSize int) url.Values {
	params := url.Values{}
	params.Set("indexName", "auto,order_auto,newauto_search")
	params.Set("categories.main.id", "1")
	params.Set("brand.id[0]", strconv.FormatInt(s.BrandID, 10))
	params.Set("page", "0")
	params.Set("size", strconv.Itoa(pageSize))

	if s.ModelID > 0 {
		params.Set("model.id[0]", strconv.FormatInt(s.ModelID, 10))
	}
	if s.YearFrom > 0 {
		params.Set("year[0].gte", strconv.Itoa(s.YearFrom))
	}
	if s.YearTo > 0 {
		params.Set("year[0].lte", strconv.Itoa(s.YearTo))
	}
	if s.PriceFrom > 0 {
		params.Set("price.USD.gte", strconv.Itoa(s.PriceFrom))
	}
	if s.PriceTo > 0 {
		params.Set("price.USD.lte", strconv.Itoa(s.PriceTo))
	}
	if s.RegionID > 0 {
		params.Set("state[0]", strconv.FormatInt(s.RegionID, 10))
	}
	if s.GearboxID > 0 {
		params.Set("gearbox.id[0]", strconv.FormatInt(s.GearboxID, 10))
	}
	if s.FuelID > 0 {
		params.Set("fuel.id[0]", strconv.FormatInt(s.FuelID, 10))
	}

	return params
}

// GetBrands returns the cached brand taxonomy, refreshing it when stale.
func (c *Client) GetBrands(ctx context.Context) []models.RefItem {
	return c.catalog.Brands(ctx)
}

// GetStates returns the cached region taxonomy, refreshing it when stale.
func (c *Client) GetStates(ctx context.Context) []models.RefItem {
	return c.catalog.States(ctx)
}

// GetModels returns the models of one brand, cached per brand id.
func (c *Client) GetModels(ctx context.Context, brandID int64) []models.RefItem {
	return c.catalog.Models(ctx, brandID)
}

func (c *Client) detailURL(carID int64) string {
	return fmt.Sprintf(c.cfg.FinalPageURL, carID)
}
