package httpsvc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

// NewRouter собирает HTTP роутер сервиса заказов.
// idempotencyRepo может быть nil, тогда дедупликация запросов отключена.
func NewRouter(handler *Handler, idempotencyRepo domain.IdempotencyRepository) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/v1/orders", func(r chi.Router) {
		r.With(IdempotencyMiddleware(idempotencyRepo, nil)).Post("/", handler.CreateOrder)
		r.Get("/", handler.ListOrders)
		r.Get("/{id}", handler.GetOrder)
		r.Patch("/{id}/status", handler.ChangeStatus)
		r.With(IdempotencyMiddleware(idempotencyRepo, nil)).Post("/{id}/payment-session", handler.CreatePaymentSession)
	})

	return r
}
