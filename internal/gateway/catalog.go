package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CatalogItem is the catalog's view of a sellable item
type CatalogItem struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// Catalog is consumed at order-creation time only; availability is not
// re-checked mid-lifecycle.
type Catalog interface {
	CheckAvailability(ctx context.Context, itemID uint, quantity int) (bool, error)
	GetItem(ctx context.Context, itemID uint) (*CatalogItem, error)
}

// HTTPCatalog talks to the catalog service over HTTP
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCatalog creates a catalog client for the given base URL
func NewHTTPCatalog(baseURL string, timeout time.Duration) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckAvailability reports whether the item has at least quantity in stock
func (c *HTTPCatalog) CheckAvailability(ctx context.Context, itemID uint, quantity int) (bool, error) {
	url := fmt.Sprintf("%s/items/%d/stock", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var stockData map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&stockData); err != nil {
		return false, err
	}

	return stockData["stock"] >= quantity, nil
}

// GetItem fetches the item's current catalog entry
func (c *HTTPCatalog) GetItem(ctx context.Context, itemID uint) (*CatalogItem, error) {
	url := fmt.Sprintf("%s/items/%d", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var item CatalogItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}
