package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

// defaultRecordTTL используется, когда вызывающий не задал срок жизни записи.
const defaultRecordTTL = 24 * time.Hour

// idempotencyStore хранит записи идемпотентности в памяти. TTL
// вычищается снаружи, воркером через DeleteExpired.
type idempotencyStore struct {
	mu      sync.RWMutex
	records map[string]domain.IdempotencyRecord
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &idempotencyStore{
		records: make(map[string]domain.IdempotencyRecord),
	}
}

func (s *idempotencyStore) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := nowUTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultRecordTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok {
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.records[key] = record

	return detach(record), nil
}

func (s *idempotencyStore) Get(key string) (domain.IdempotencyRecord, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}

	return detach(record), nil
}

func (s *idempotencyStore) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return s.complete(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (s *idempotencyStore) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return s.complete(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (s *idempotencyStore) complete(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}

	record.Status = status
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.HTTPStatus = httpStatus
	record.UpdatedAt = nowUTC()
	s.records[key] = record

	return nil
}

// DeleteExpired удаляет записи с истёкшим TTL, не больше limit за вызов.
func (s *idempotencyStore) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = nowUTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, record := range s.records {
		if !record.Expired(before) {
			continue
		}
		delete(s.records, key)
		if removed++; limit > 0 && removed >= limit {
			break
		}
	}

	return removed, nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	return key, nil
}

// detach отвязывает срез тела ответа от хранимой записи.
func detach(record domain.IdempotencyRecord) domain.IdempotencyRecord {
	if record.ResponseBody != nil {
		record.ResponseBody = append([]byte(nil), record.ResponseBody...)
	}
	return record
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

var _ domain.IdempotencyRepository = (*idempotencyStore)(nil)
