package impl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bakkerme/dealwatch/internal/sources/marketplace"
)

const searchPage = `<!doctype html>
<html><body>
<ul class="srp-results">
  <li class="s-item">
    <a class="s-item__link" href="https://www.ebay.com/itm/111"><h3 class="s-item__title"> North Face Thermoball Jacket </h3></a>
    <span class="s-item__price">$25.00</span>
  </li>
  <li class="s-item">
    <a class="s-item__link" href="https://www.ebay.com/itm/222"><h3 class="s-item__title">Thermoball Vest</h3></a>
    <span class="s-item__price">$20.00 to $35.00</span>
    <span class="s-item__price">$99.00</span>
  </li>
  <li class="s-item">
    <h3 class="s-item__title">Shop on eBay</h3>
  </li>
</ul>
</body></html>`

func TestFetcherParsesSearchPage(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(searchPage))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "default-agent")
	items, err := fetcher.Fetch(context.Background(), server.URL, marketplace.FetchOptions{UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if gotUA != "test-agent" {
		t.Fatalf("expected option user agent to win, got %q", gotUA)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 raw items, got %d", len(items))
	}
	first := items[0]
	if first.Title != "North Face Thermoball Jacket" || first.Link != "https://www.ebay.com/itm/111" || first.PriceText != "$25.00" {
		t.Fatalf("unexpected first item %#v", first)
	}
	if items[1].PriceText != "$20.00 to $35.00" {
		t.Fatalf("expected first price node only, got %q", items[1].PriceText)
	}
	if items[2].Link != "" || items[2].PriceText != "" {
		t.Fatalf("expected empty link and price for placeholder item, got %#v", items[2])
	}
}

func TestFetcherFailsOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "")
	if _, err := fetcher.Fetch(context.Background(), server.URL, marketplace.FetchOptions{}); err == nil {
		t.Fatalf("expected error for 403 response")
	}
}

func TestFetcherCustomSelectors(t *testing.T) {
	page := `<div class="card"><a class="t" href="/a">Thermoball hoodie</a><b>$ 1,250.50</b></div>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "")
	items, err := fetcher.Fetch(context.Background(), server.URL, marketplace.FetchOptions{
		Selectors: marketplace.Selectors{Item: "div.card", Title: "a.t", Link: "a.t", Price: "b"},
	})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(items) != 1 || items[0].Link != "/a" || items[0].Title != "Thermoball hoodie" {
		t.Fatalf("unexpected items %#v", items)
	}
	price, ok := marketplace.ParsePrice(items[0].PriceText)
	if !ok || price.String() != "1250.5" {
		t.Fatalf("unexpected price %s ok=%v", price, ok)
	}
}
