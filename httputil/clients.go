package httputil

import (
	"net/http"
	"net/url"
	"time"
)

// Browser-like headers keep AutoRia from serving the bot-detection page.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

type Clients struct {
	Scraping *http.Client // search pages and per-car detail endpoint
	API      *http.Client // taxonomy endpoints (brands, models, states)
}

func NewClients(proxyURL string) *Clients {
	transport := http.DefaultTransport
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   25 * time.Second,
			Transport: transport,
		},
		API: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}
}

// SetCommonHeaders applies the headers every marketplace request carries.
func SetCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,en-US;q=0.8,en;q=0.7")
}

// SetHTMLHeaders makes the request look like a browser page load.
func SetHTMLHeaders(req *http.Request) {
	SetCommonHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
