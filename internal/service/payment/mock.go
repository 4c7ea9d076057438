package payment

import "github.com/vladislavdragonenkov/orders-ms/internal/domain"

// MockService — конфигурируемая заглушка PaymentGateway для тестов
// и для локального запуска без платёжного сервиса.
type MockService struct {
	Session    domain.PaymentSession
	SessionErr error

	CreateCalls int
	LastOrderID string
	LastItems   []domain.PaymentItem
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		Session: domain.PaymentSession{
			ID:  "mock-session",
			URL: "https://payments.example/session/mock-session",
		},
	}
}

// CreateSession возвращает заранее настроенный результат и считает вызовы.
func (m *MockService) CreateSession(orderID, currency string, items []domain.PaymentItem) (domain.PaymentSession, error) {
	m.CreateCalls++
	m.LastOrderID = orderID
	m.LastItems = append([]domain.PaymentItem(nil), items...)

	if m.SessionErr != nil {
		return domain.PaymentSession{}, m.SessionErr
	}
	return m.Session, nil
}

var _ domain.PaymentGateway = (*MockService)(nil)
