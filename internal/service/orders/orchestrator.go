package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
	"github.com/vladislavdragonenkov/orders-ms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders-ms/internal/metrics"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// PageMeta описывает пагинацию списка заказов.
type PageMeta struct {
	TotalOrders int64
	CurrentPage int
	LastPage    int
}

// Page — одна страница заказов вместе с метаданными пагинации.
type Page struct {
	Data []domain.Order
	Meta PageMeta
}

// ListQuery — параметры выборки списка заказов.
type ListQuery struct {
	Status *domain.OrderStatus
	Page   int
	Limit  int
}

// Orchestrator реализует сценарии работы с заказами.
type Orchestrator interface {
	// Create валидирует позиции через каталог и создаёт заказ
	// с зафиксированными ценами.
	Create(items []domain.NewOrderLine) (domain.Order, error)
	// Get возвращает заказ, обогащённый актуальными именами товаров.
	Get(id string) (domain.Order, error)
	// List возвращает страницу заказов без позиций.
	List(query ListQuery) (Page, error)
	// ChangeStatus переводит заказ в новый статус с проверкой политики переходов.
	ChangeStatus(id string, status domain.OrderStatus) (domain.Order, error)
	// CreatePaymentSession создаёт платёжную сессию по позициям заказа.
	CreatePaymentSession(orderID string) (domain.PaymentSession, error)
}

// Config — настройки оркестратора заказов.
type Config struct {
	// Currency — валюта платёжных сессий.
	Currency string
	// Policy ограничивает переходы статусов; nil разрешает любой переход
	// в отличный от текущего статус.
	Policy domain.TransitionPolicy
}

type orchestrator struct {
	repo     domain.OrderRepository
	catalog  domain.ProductCatalog
	payments domain.PaymentGateway
	policy   domain.TransitionPolicy
	currency string
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	producer *kafka.Producer
}

// NewOrchestrator создаёт оркестратор заказов.
func NewOrchestrator(
	repo domain.OrderRepository,
	catalog domain.ProductCatalog,
	payments domain.PaymentGateway,
	cfg Config,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &orchestrator{
		repo:     repo,
		catalog:  catalog,
		payments: payments,
		policy:   cfg.Policy,
		currency: normalizeCurrency(cfg.Currency),
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
	}
}

// NewOrchestratorWithKafka создаёт оркестратор с Kafka producer для публикации событий.
func NewOrchestratorWithKafka(
	repo domain.OrderRepository,
	catalog domain.ProductCatalog,
	payments domain.PaymentGateway,
	cfg Config,
	producer *kafka.Producer,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &orchestrator{
		repo:     repo,
		catalog:  catalog,
		payments: payments,
		policy:   cfg.Policy,
		currency: normalizeCurrency(cfg.Currency),
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
		producer: producer,
	}
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	repo domain.OrderRepository,
	catalog domain.ProductCatalog,
	payments domain.PaymentGateway,
	cfg Config,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &orchestrator{
		repo:     repo,
		catalog:  catalog,
		payments: payments,
		policy:   cfg.Policy,
		currency: normalizeCurrency(cfg.Currency),
		logger:   logger,
	}
}

func normalizeCurrency(currency string) string {
	if currency == "" {
		return "usd"
	}
	return currency
}

func (o *orchestrator) Create(items []domain.NewOrderLine) (domain.Order, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordOrderInFlightStarted()
		defer o.metrics.RecordOrderInFlightFinished()
		defer func() {
			o.metrics.RecordCreateDuration(time.Since(start))
		}()
	}

	order, err := o.create(items)
	if o.metrics != nil {
		if err != nil {
			o.metrics.RecordOrderCreateFailed()
		} else {
			o.metrics.RecordOrderCreated()
		}
	}
	return order, err
}

func (o *orchestrator) create(items []domain.NewOrderLine) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
	}

	ids := distinctProductIDs(items)

	catalogStart := time.Now()
	snapshots, err := o.catalog.ValidateProducts(ids)
	if o.metrics != nil {
		o.metrics.RecordCatalogCallDuration(time.Since(catalogStart))
	}
	if err != nil {
		o.logger.WithError(err).Error("product validation failed")
		if errors.Is(err, domain.ErrCatalogValidation) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrCatalogValidation, err)
	}

	index := domain.IndexSnapshots(snapshots)
	// Каталог опускает неизвестные товары: неполный ответ означает,
	// что хотя бы один запрошенный товар не существует.
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			o.logger.WithField("product_id", id).Warn("product missing in catalog response")
			return domain.Order{}, fmt.Errorf("%w: some products were not found", domain.ErrCatalogValidation)
		}
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:        uuid.NewString(),
		Status:    domain.OrderStatusPending,
		Items:     make([]domain.OrderLine, 0, len(items)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	total := decimal.Zero
	var totalItems int32
	for _, item := range items {
		snapshot, ok := index[item.ProductID]
		if !ok {
			return domain.Order{}, domain.ErrProductNotFound
		}
		line := domain.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     snapshot.Price,
		}
		total = total.Add(line.Subtotal())
		totalItems += item.Quantity
		order.Items = append(order.Items, line)
	}
	order.TotalAmount = total
	order.TotalItems = totalItems

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	if err := o.repo.Create(order); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		return domain.Order{}, err
	}

	o.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount.String(),
		"total_items":  order.TotalItems,
	}).Info("order created")

	o.publishEvent(kafka.EventTypeOrderCreated, order.ID, string(order.Status), map[string]interface{}{
		"total_amount": order.TotalAmount.String(),
		"total_items":  order.TotalItems,
	})

	enrichOrder(&order, index)
	return order, nil
}

func (o *orchestrator) Get(id string) (domain.Order, error) {
	order, err := o.repo.Get(id)
	if err != nil {
		return domain.Order{}, err
	}

	if err := o.enrichFromCatalog(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (o *orchestrator) List(query ListQuery) (Page, error) {
	page := query.Page
	if page < 1 {
		page = defaultPage
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	total, err := o.repo.Count(query.Status)
	if err != nil {
		return Page{}, err
	}

	orders, err := o.repo.List(query.Status, (page-1)*limit, limit)
	if err != nil {
		return Page{}, err
	}

	lastPage := int((total + int64(limit) - 1) / int64(limit))

	return Page{
		Data: orders,
		Meta: PageMeta{
			TotalOrders: total,
			CurrentPage: page,
			LastPage:    lastPage,
		},
	}, nil
}

func (o *orchestrator) ChangeStatus(id string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrStatusInvalid
	}

	order, err := o.repo.Get(id)
	if err != nil {
		return domain.Order{}, err
	}

	if order.Status == status {
		return domain.Order{}, domain.ErrStatusUnchanged
	}
	if !o.policy.Allows(order.Status, status) {
		o.logger.WithFields(log.Fields{
			"order_id": id,
			"from":     order.Status,
			"to":       status,
		}).Warn("status transition rejected by policy")
		return domain.Order{}, domain.ErrTransitionNotAllowed
	}

	updated, err := o.repo.UpdateStatus(id, order.Status, status)
	if err != nil {
		return domain.Order{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordStatusChange(string(status))
	}

	o.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     order.Status,
		"to":       status,
	}).Info("order status changed")

	o.publishEvent(kafka.EventTypeOrderStatusChanged, id, string(status), map[string]interface{}{
		"previous_status": string(order.Status),
	})

	return updated, nil
}

func (o *orchestrator) CreatePaymentSession(orderID string) (domain.PaymentSession, error) {
	order, err := o.Get(orderID)
	if err != nil {
		return domain.PaymentSession{}, err
	}

	items := make([]domain.PaymentItem, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, domain.PaymentItem{
			Name:     line.Name,
			Price:    line.Price,
			Quantity: line.Quantity,
		})
	}

	session, err := o.payments.CreateSession(order.ID, o.currency, items)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("payment session creation failed")
		if errors.Is(err, domain.ErrPaymentUnavailable) {
			return domain.PaymentSession{}, err
		}
		return domain.PaymentSession{}, fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
	}

	if o.metrics != nil {
		o.metrics.RecordPaymentSession()
	}

	o.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"session_id": session.ID,
	}).Info("payment session created")

	o.publishEvent(kafka.EventTypePaymentSessionCreated, order.ID, string(order.Status), map[string]interface{}{
		"session_id": session.ID,
	})

	return session, nil
}

// enrichFromCatalog подтягивает актуальные имена товаров для позиций заказа.
// Цены позиций остаются историческими и каталогом не перезаписываются.
func (o *orchestrator) enrichFromCatalog(order *domain.Order) error {
	if len(order.Items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(order.Items))
	seen := make(map[string]struct{}, len(order.Items))
	for _, line := range order.Items {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	snapshots, err := o.catalog.ValidateProducts(ids)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordEnrichmentFailure()
		}
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to enrich order from catalog")
		if errors.Is(err, domain.ErrCatalogValidation) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrCatalogValidation, err)
	}

	enrichOrder(order, domain.IndexSnapshots(snapshots))
	return nil
}

func enrichOrder(order *domain.Order, index map[string]domain.ProductSnapshot) {
	for i := range order.Items {
		if snapshot, ok := index[order.Items[i].ProductID]; ok {
			order.Items[i].Name = snapshot.Name
		}
	}
}

// publishEvent публикует событие в Kafka; nil producer делает публикацию no-op.
func (o *orchestrator) publishEvent(eventType kafka.EventType, orderID, status string, metadata map[string]interface{}) {
	if o.producer == nil {
		return
	}
	event := kafka.NewOrderEvent(eventType, orderID, status, metadata)
	if err := o.producer.PublishEvent(kafka.TopicOrderEvents, orderID, event); err != nil {
		// Доставка событий best-effort: сбой брокера не откатывает операцию.
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id":   orderID,
			"event_type": eventType,
		}).Error("failed to publish order event")
	}
}

func distinctProductIDs(items []domain.NewOrderLine) []string {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

var _ Orchestrator = (*orchestrator)(nil)
