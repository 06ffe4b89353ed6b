package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talisman-ep/autoria-monitoring-bot/httputil"
	"github.com/talisman-ep/autoria-monitoring-bot/jsontree"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// Placeholder shown for fields the marketplace never disclosed, so the
// delivery message has no empty slots.
const unknownField = "—"

var locationKeys = map[string]bool{
	"city":             true,
	"cityName":         true,
	"locationCityName": true,
	"regionName":       true,
	"stateName":        true,
	"location":         true,
	"locationName":     true,
}

var imageURLRe = regexp.MustCompile(`(?i)^https?://.+\.(jpg|jpeg|png|webp)(\?.*)?$`)

// enrichMissingDetails fills fields the search page omitted via the
// per-car detail endpoint. Result length and order match the input.
// Cars that are already complete skip the network entirely, and a
// failed or timed-out fetch leaves its car unchanged — enrichment
// never invents an error.
func (c *Client) enrichMissingDetails(ctx context.Context, cars []models.Car) []models.Car {
	out := make([]models.Car, len(cars))
	copy(out, cars)

	sem := make(chan struct{}, c.cfg.DetailsConcurrency)
	var wg sync.WaitGroup

	for i := range out {
		if out[i].Complete() {
			continue
		}

		wg.Add(1)
		go func(car *models.Car) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			details := c.fetchCarDetails(ctx, car.ID, car.URL)
			if details == nil {
				return
			}
			applyDetails(car, details)
		}(&out[i])
	}
	wg.Wait()

	// Anything still unknown becomes the display placeholder.
	for i := range out {
		if out[i].Location == "" {
			out[i].Location = unknownField
		}
		if out[i].Gearbox == "" {
			out[i].Gearbox = unknownField
		}
		if out[i].Fuel == "" {
			out[i].Fuel = unknownField
		}
	}
	return out
}

type carDetails struct {
	Title     string
	MileageTh int
	Fuel      string
	Gearbox   string
	Location  string
	ImageURL  string
}

// applyDetails fills only fields the extractor left blank; a value the
// search page already provided is never overwritten.
func applyDetails(car *models.Car, d *carDetails) {
	if car.Title == "" && d.Title != "" {
		car.Title = d.Title
	}
	if car.ImageURL == "" && d.ImageURL != "" {
		car.ImageURL = d.ImageURL
	}
	if car.Mileage == 0 && d.MileageTh != 0 {
		car.Mileage = d.MileageTh
	}
	if car.Location == "" && d.Location != "" {
		car.Location = d.Location
	}
	if car.Gearbox == "" && d.Gearbox != "" {
		car.Gearbox = d.Gearbox
	}
	if car.Fuel == "" && d.Fuel != "" {
		car.Fuel = d.Fuel
	}
}

// fetchCarDetails loads the "final page" payload for one car and mines
// its schema.org block (ldJSON) plus a few best-effort lookups. Any
// failure returns nil.
func (c *Client) fetchCarDetails(ctx context.Context, carID int64, carURL string) *carDetails {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.DetailsTimeoutSec)*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("langId", "4")
	params.Set("device", "desktop-web")
	params.Set("ssr", "0")
	params.Set("routePath", routePath(carURL, carID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.detailURL(carID)+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	httputil.SetCommonHeaders(req)
	req.Header.Set("Referer", carURL)

	resp, err := c.clients.Scraping.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var data interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil
	}

	details := &carDetails{
		Location: jsontree.FindStringByKeys(data, locationKeys),
		ImageURL: findImageURL(data),
	}

	ld, _ := jsontree.FindKey(data, "ldJSON")
	if ldObj, ok := ld.(map[string]interface{}); ok {
		details.Title = strings.TrimSpace(asString(ldObj["name"]))
		details.Fuel = asString(ldObj["fuelType"])
		details.Gearbox = asString(ldObj["vehicleTransmission"])

		if details.Fuel == "" {
			if engine, ok := ldObj["vehicleEngine"].(map[string]interface{}); ok {
				details.Fuel = asString(engine["fuelType"])
			}
		}
		if odo, ok := ldObj["mileageFromOdometer"].(map[string]interface{}); ok {
			if v, ok := odo["value"].(float64); ok {
				// Odometer value is in km; the canonical unit is thousands.
				details.MileageTh = int(v) / 1000
			}
		}
	}

	return details
}

// findImageURL pattern-matches any string in the payload that looks
// like an image URL on a marketplace or CDN host.
func findImageURL(data interface{}) string {
	return jsontree.FindString(data, func(s string) bool {
		s = strings.TrimSpace(s)
		if !imageURLRe.MatchString(s) {
			return false
		}
		return strings.Contains(s, "ria") || strings.Contains(s, "cdn")
	})
}

func routePath(carURL string, carID int64) string {
	if u, err := url.Parse(carURL); err == nil && u.Path != "" {
		return u.Path
	}
	return "/uk/auto_" + strconv.FormatInt(carID, 10) + ".html"
}
