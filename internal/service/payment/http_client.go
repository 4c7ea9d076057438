package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

const defaultClientTimeout = 10 * time.Second

// HTTPClient — клиент платёжного сервиса поверх его HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient создаёт клиент платёжного сервиса с таймаутом по умолчанию.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultClientTimeout},
	}
}

type sessionItemPayload struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
}

type createSessionRequest struct {
	OrderID  string               `json:"order_id"`
	Currency string               `json:"currency"`
	Items    []sessionItemPayload `json:"items"`
}

type createSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession создаёт платёжную сессию на стороне платёжного сервиса.
func (c *HTTPClient) CreateSession(orderID, currency string, items []domain.PaymentItem) (domain.PaymentSession, error) {
	req := createSessionRequest{
		OrderID:  orderID,
		Currency: currency,
		Items:    make([]sessionItemPayload, 0, len(items)),
	}
	for _, item := range items {
		req.Items = append(req.Items, sessionItemPayload{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("marshal create session request: %w", err)
	}

	resp, err := c.client.Post(c.baseURL+"/v1/payment-sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("%w: call payment service: %v", domain.ErrPaymentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.PaymentSession{}, fmt.Errorf("%w: payment service returned status %d", domain.ErrPaymentUnavailable, resp.StatusCode)
	}

	var payload createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.PaymentSession{}, fmt.Errorf("%w: decode payment service response: %v", domain.ErrPaymentUnavailable, err)
	}

	return domain.PaymentSession{ID: payload.ID, URL: payload.URL}, nil
}

var _ domain.PaymentGateway = (*HTTPClient)(nil)
