package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/talisman-ep/autoria-monitoring-bot/jsontree"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// AutoRia has shipped two front-end stacks; the current one embeds its
// state as window.__PINIA__ and the legacy one as window.__NUXT__.
// Markers are tried in that priority order.
var stateMarkers = []*regexp.Regexp{
	regexp.MustCompile(`window\.__PINIA__\s*=\s*`),
	regexp.MustCompile(`window\.__NUXT__\s*=\s*`),
}

var digitsRe = regexp.MustCompile(`\d+`)

// extractCars mines the embedded application state of a search results
// page and returns the listings it advertises. A page without a known
// marker, or with a state blob that fails to parse, yields nil: that
// is the normal outcome for an error page or a redesigned layout, not
// a fault.
func extractCars(page []byte, baseURL string) []models.Car {
	state := findStateBlob(page)
	if state == nil {
		log.Println("Could not find PINIA or NUXT state in page")
		return nil
	}

	classify := func(obj map[string]interface{}) bool {
		if _, ok := obj["id"]; !ok {
			return false
		}
		price, ok := obj["price"]
		if !ok || !mentionsUSD(price) {
			return false
		}
		_, hasInfo := obj["basicInfo"]
		_, hasTitle := obj["title"]
		return hasInfo || hasTitle
	}

	var cars []models.Car
	index := make(map[int64]int)
	for _, obj := range jsontree.Collect(state, classify) {
		car, ok := carFromObject(obj, baseURL)
		if !ok {
			continue
		}
		// Dedup by id: first occurrence keeps its slot, last value wins.
		if at, seen := index[car.ID]; seen {
			cars[at] = car
			continue
		}
		index[car.ID] = len(cars)
		cars = append(cars, car)
	}
	return cars
}

// findStateBlob locates the first marker and decodes the JSON object
// literal that follows it. Script bodies are tried first; when the
// document does not parse as HTML the raw bytes are scanned the same
// way. json.Decoder stops at the end of the first complete value, so
// the trailing ";" or markup never needs to be matched exactly.
func findStateBlob(page []byte) interface{} {
	haystacks := scriptBodies(page)
	haystacks = append(haystacks, string(page))

	for _, marker := range stateMarkers {
		for _, hay := range haystacks {
			loc := marker.FindStringIndex(hay)
			if loc == nil {
				continue
			}
			rest := hay[loc[1]:]
			if !strings.HasPrefix(strings.TrimLeft(rest, " \t\n"), "{") {
				continue
			}

			var state interface{}
			dec := json.NewDecoder(strings.NewReader(rest))
			if err := dec.Decode(&state); err != nil {
				log.Printf("Failed to decode embedded state: %v", err)
				continue
			}
			if _, ok := state.(map[string]interface{}); ok {
				return state
			}
		}
	}
	return nil
}

func scriptBodies(page []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var bodies []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); strings.Contains(text, "window.__") {
			bodies = append(bodies, text)
		}
	})
	return bodies
}

// mentionsUSD reports whether a price value or any of its sub-structure
// carries a US-dollar amount.
func mentionsUSD(price interface{}) bool {
	switch v := price.(type) {
	case map[string]interface{}:
		if _, ok := v["USD"]; ok {
			return true
		}
		for _, child := range v {
			if mentionsUSD(child) {
				return true
			}
		}
	case []interface{}:
		for _, child := range v {
			if mentionsUSD(child) {
				return true
			}
		}
	case string:
		return strings.Contains(v, "USD")
	}
	return false
}

// carFromObject normalizes one candidate object. Candidates without a
// usable id or with a zero/absent USD price are discarded.
func carFromObject(obj map[string]interface{}, baseURL string) (models.Car, bool) {
	id := asInt64(obj["id"])
	if id == 0 {
		return models.Car{}, false
	}

	price := extractPrice(obj["price"])
	if price == 0 {
		return models.Car{}, false
	}

	car := models.Car{
		ID:       id,
		Title:    extractTitle(obj["title"]),
		PriceUSD: price,
		URL:      extractLink(obj, id, baseURL),
		ImageURL: extractImage(obj),
	}

	if infos, ok := obj["basicInfo"].([]interface{}); ok {
		fillBasicInfo(&car, infos)
	}

	return car, true
}

func extractPrice(v interface{}) int {
	switch p := v.(type) {
	case map[string]interface{}:
		return int(asInt64(p["USD"]))
	case float64:
		return int(p)
	}
	return 0
}

func extractTitle(v interface{}) string {
	switch t := v.(type) {
	case map[string]interface{}:
		if s, ok := t["content"].(string); ok && s != "" {
			return s
		}
		if s, ok := t["name"].(string); ok && s != "" {
			return s
		}
	case string:
		if t != "" {
			return t
		}
	}
	return "Auto"
}

func extractLink(obj map[string]interface{}, id int64, baseURL string) string {
	link, _ := obj["link"].(string)
	if link == "" {
		return fmt.Sprintf("%s/uk/auto_%d.html", baseURL, id)
	}
	if !strings.HasPrefix(link, "http") {
		return baseURL + link
	}
	return link
}

// extractImage takes the first entry of the photo list, which the two
// layouts ship either as plain URL strings or as objects.
func extractImage(obj map[string]interface{}) string {
	photos, ok := obj["photos"].([]interface{})
	if !ok || len(photos) == 0 {
		if pd, ok := obj["photoData"].(map[string]interface{}); ok {
			photos, _ = pd["seo"].([]interface{})
		}
	}
	if len(photos) == 0 {
		return ""
	}

	switch first := photos[0].(type) {
	case string:
		return first
	case map[string]interface{}:
		if src, ok := first["src"].(string); ok && src != "" {
			return src
		}
		if formats, ok := first["formats"].(map[string]interface{}); ok {
			if mid, ok := formats["middle"].(string); ok {
				return mid
			}
		}
	}
	return ""
}

// fillBasicInfo reads the label/icon pairs under a listing card. Icons
// identify the field; the mileage row is also recognized by its
// "тис. км" unit when the icon is missing.
func fillBasicInfo(car *models.Car, infos []interface{}) {
	for _, raw := range infos {
		info, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		txt := strings.TrimSpace(asString(info["content"]))
		icon := ""
		if ic, ok := info["icon"].(map[string]interface{}); ok {
			icon = asString(ic["data"])
		}

		switch {
		case strings.Contains(icon, "speedometer") || strings.Contains(txt, "тис. км"):
			if m := digitsRe.FindString(strings.ReplaceAll(txt, " ", "")); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					car.Mileage = n
				}
			}
		case strings.Contains(icon, "location"):
			car.Location = txt
		case strings.Contains(icon, "automat") || strings.Contains(icon, "transmission"):
			car.Gearbox = txt
		case strings.Contains(icon, "fuel"):
			car.Fuel = txt
		}
	}
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	return 0
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
