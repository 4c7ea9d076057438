package httpsvc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/orders"
)

type CreateOrderRequest struct {
	Items []CreateOrderItemDTO `json:"items"`
}

type CreateOrderItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	TotalItems  int32               `json:"total_items"`
	Items       []OrderItemResponse `json:"items,omitempty"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int32           `json:"quantity"`
}

type ListMetaResponse struct {
	TotalOrders int64 `json:"total_orders"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
}

type ListOrdersResponse struct {
	Data []OrderResponse  `json:"data"`
	Meta ListMetaResponse `json:"meta"`
}

type PaymentSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderToResponse(order domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:          order.ID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		TotalItems:  order.TotalItems,
		CreatedAt:   order.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, line := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}
	return resp
}

func mapPageToResponse(page orders.Page) ListOrdersResponse {
	resp := ListOrdersResponse{
		Data: make([]OrderResponse, 0, len(page.Data)),
		Meta: ListMetaResponse{
			TotalOrders: page.Meta.TotalOrders,
			CurrentPage: page.Meta.CurrentPage,
			LastPage:    page.Meta.LastPage,
		},
	}
	for _, order := range page.Data {
		resp.Data = append(resp.Data, mapOrderToResponse(order))
	}
	return resp
}
