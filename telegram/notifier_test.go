package telegram

import (
	"strings"
	"testing"

	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

func TestBuildCaption(t *testing.T) {
	car := models.Car{
		ID:       111,
		Title:    "Toyota Camry 2018",
		PriceUSD: 18500,
		URL:      "https://auto.ria.com/uk/auto_toyota_camry_111.html",
		Mileage:  120,
		Location: "Київ",
		Gearbox:  "Автомат",
		Fuel:     "Бензин",
	}

	got := BuildCaption(car)
	want := "🚗 <b>Toyota Camry 2018</b>\n" +
		"💰 <b>18500 $</b>\n\n" +
		"📏 120 тис. км\n" +
		"📍 Київ\n" +
		"⚙️ Автомат | ⛽ Бензин\n\n" +
		"🔗 <a href='https://auto.ria.com/uk/auto_toyota_camry_111.html'>Відкрити оголошення</a>"
	if got != want {
		t.Fatalf("caption mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildCaption_EscapesHTML(t *testing.T) {
	car := models.Car{
		Title:    "Mercedes <AMG> & Co",
		PriceUSD: 50000,
		Location: "—",
		Gearbox:  "—",
		Fuel:     "—",
	}

	got := BuildCaption(car)
	if !strings.Contains(got, "Mercedes &lt;AMG&gt; &amp; Co") {
		t.Fatalf("title must be HTML-escaped, got %q", got)
	}
	if strings.Contains(got, "<AMG>") {
		t.Fatalf("raw markup leaked into the caption: %q", got)
	}
}
