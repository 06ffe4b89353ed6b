package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/talisman-ep/autoria-monitoring-bot/httputil"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

func TestApplyDetails_FillsOnlyBlanks(t *testing.T) {
	car := models.Car{
		ID:       1,
		Title:    "Audi A4 2015",
		Mileage:  140,
		Location: "",
		Gearbox:  "Автомат",
	}
	applyDetails(&car, &carDetails{
		Title:     "Audi A4 2.0 TDI 2015",
		MileageTh: 150,
		Location:  "Харків",
		Gearbox:   "Механіка",
		Fuel:      "Дизель",
	})

	if car.Title != "Audi A4 2015" {
		t.Fatalf("title must not be overwritten, got %q", car.Title)
	}
	if car.Mileage != 140 {
		t.Fatalf("mileage must not be overwritten, got %d", car.Mileage)
	}
	if car.Gearbox != "Автомат" {
		t.Fatalf("gearbox must not be overwritten, got %q", car.Gearbox)
	}
	if car.Location != "Харків" {
		t.Fatalf("blank location must be filled, got %q", car.Location)
	}
	if car.Fuel != "Дизель" {
		t.Fatalf("blank fuel must be filled, got %q", car.Fuel)
	}
}

func TestEnrichMissingDetails_SkipsCompleteAndPlaceholders(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), httputil.NewClients(""))

	complete := models.Car{
		ID: 1, Title: "Full", Mileage: 50,
		Location: "Київ", Gearbox: "Автомат", Fuel: "Газ/Бензин",
	}
	sparse := models.Car{ID: 2, Title: "Sparse", Mileage: 10}

	out := client.enrichMissingDetails(context.Background(), []models.Car{complete, sparse})

	if n := atomic.LoadInt64(&hits); n != 1 {
		t.Fatalf("expected 1 detail fetch, got %d", n)
	}
	if out[0] != complete {
		t.Fatalf("complete car must pass through untouched: %+v", out[0])
	}
	// The failed fetch leaves the car as-is; display fields get the
	// placeholder so the notification has no empty slots.
	if out[1].Location != "—" || out[1].Gearbox != "—" || out[1].Fuel != "—" {
		t.Fatalf("expected placeholders, got %+v", out[1])
	}
	if out[1].Mileage != 10 {
		t.Fatalf("mileage must survive a failed fetch, got %d", out[1].Mileage)
	}
}

func TestRoutePath(t *testing.T) {
	if got := routePath("https://auto.ria.com/uk/auto_vw_golf_222.html", 222); got != "/uk/auto_vw_golf_222.html" {
		t.Fatalf("unexpected route path %q", got)
	}
	if got := routePath("", 222); got != "/uk/auto_222.html" {
		t.Fatalf("unexpected fallback route path %q", got)
	}
}

func TestFindImageURL(t *testing.T) {
	data := map[string]interface{}{
		"misc": []interface{}{
			"https://example.com/not-an-image.html",
			"https://other.host/photo.jpg",
			map[string]interface{}{
				"main": "https://cdn3.riastatic.com/photosnew/auto/photo/bmw_x5__444f.webp",
			},
		},
	}
	got := findImageURL(data)
	if got != "https://cdn3.riastatic.com/photosnew/auto/photo/bmw_x5__444f.webp" {
		t.Fatalf("unexpected image URL %q", got)
	}
}
