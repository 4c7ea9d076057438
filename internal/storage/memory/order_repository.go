package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

// orderStore — in-memory реализация OrderRepository для тестов и
// локальной разработки. Заказы отдаются копиями, позиции внутрь
// хранилища не мутируются.
type orderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository() domain.OrderRepository {
	return &orderStore{
		orders: make(map[string]domain.Order),
	}
}

func (s *orderStore) Create(order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return errors.New("order id already exists")
	}
	s.orders[order.ID] = copyOrder(order)

	return nil
}

func (s *orderStore) Get(id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	return copyOrder(order), nil
}

func (s *orderStore) Count(status *domain.OrderStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.matching(status))), nil
}

// List отдаёт страницу заказов без позиций, новые первыми; при равном
// CreatedAt порядок фиксируется по убыванию ID.
func (s *orderStore) List(status *domain.OrderStatus, offset, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := s.matching(status)
	for i := range page {
		page[i].Items = nil
	}

	sort.Slice(page, func(i, j int) bool {
		if !page[i].CreatedAt.Equal(page[j].CreatedAt) {
			return page[i].CreatedAt.After(page[j].CreatedAt)
		}
		return page[i].ID > page[j].ID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(page) {
		return []domain.Order{}, nil
	}
	page = page[offset:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}

	return page, nil
}

// UpdateStatus меняет статус по принципу compare-and-swap: заказ с
// другим текущим статусом даёт ErrOrderStatusConflict.
func (s *orderStore) UpdateStatus(id string, from, to domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.Status != from {
		return domain.Order{}, domain.ErrOrderStatusConflict
	}

	current.Status = to
	current.UpdatedAt = nowUTC()
	s.orders[id] = current

	return copyOrder(current), nil
}

// matching собирает заказы с подходящим статусом. Вызывается под блокировкой.
func (s *orderStore) matching(status *domain.OrderStatus) []domain.Order {
	result := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if status != nil && order.Status != *status {
			continue
		}
		result = append(result, order)
	}
	return result
}

func copyOrder(order domain.Order) domain.Order {
	if order.Items == nil {
		return order
	}
	items := make([]domain.OrderLine, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}

var _ domain.OrderRepository = (*orderStore)(nil)
