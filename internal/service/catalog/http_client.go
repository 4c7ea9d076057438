package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

const defaultClientTimeout = 5 * time.Second

// HTTPClient — клиент сервиса каталога поверх его HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient создаёт клиент каталога с таймаутом по умолчанию.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultClientTimeout},
	}
}

type validateProductsRequest struct {
	IDs []string `json:"ids"`
}

type productPayload struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ValidateProducts запрашивает у каталога актуальные данные по товарам.
// Каталог возвращает только найденные товары, проверка полноты
// остаётся на вызывающей стороне.
func (c *HTTPClient) ValidateProducts(ids []string) ([]domain.ProductSnapshot, error) {
	body, err := json.Marshal(validateProductsRequest{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("marshal validate products request: %w", err)
	}

	resp, err := c.client.Post(c.baseURL+"/v1/products/validate", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: call product catalog: %v", domain.ErrCatalogValidation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: product catalog returned status %d", domain.ErrCatalogValidation, resp.StatusCode)
	}

	var payload []productPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode product catalog response: %v", domain.ErrCatalogValidation, err)
	}

	snapshots := make([]domain.ProductSnapshot, 0, len(payload))
	for _, p := range payload {
		snapshots = append(snapshots, domain.ProductSnapshot{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.Price,
		})
	}

	return snapshots, nil
}

var _ domain.ProductCatalog = (*HTTPClient)(nil)
