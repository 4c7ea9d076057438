package catalog

import "github.com/vladislavdragonenkov/orders-ms/internal/domain"

// MockService — конфигурируемая заглушка ProductCatalog для тестов
// и для локального запуска без сервиса каталога.
type MockService struct {
	Snapshots   []domain.ProductSnapshot
	ValidateErr error

	ValidateCalls int
	LastIDs       []string
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

// ValidateProducts возвращает заранее настроенные снапшоты и считает вызовы.
// Если снапшоты не заданы, подтверждает все запрошенные товары с нулевой ценой.
func (m *MockService) ValidateProducts(ids []string) ([]domain.ProductSnapshot, error) {
	m.ValidateCalls++
	m.LastIDs = append([]string(nil), ids...)

	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}
	if m.Snapshots != nil {
		return m.Snapshots, nil
	}

	snapshots := make([]domain.ProductSnapshot, 0, len(ids))
	for _, id := range ids {
		snapshots = append(snapshots, domain.ProductSnapshot{ID: id, Name: "product " + id})
	}
	return snapshots, nil
}

var _ domain.ProductCatalog = (*MockService)(nil)
