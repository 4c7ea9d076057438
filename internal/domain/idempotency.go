package domain

import "time"

// IdempotencyStatus — этап обработки запроса с заголовком Idempotency-Key.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — запрос принят, ответа ещё нет.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — запрос завершился успешно, ответ сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка завершилась ошибкой, ответ тоже сохранён.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Completed сообщает, что обработка закончена и сохранённый ответ
// можно отдавать на повторный запрос с тем же ключом.
func (s IdempotencyStatus) Completed() bool {
	return s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// IdempotencyRecord — сохранённый результат POST /v1/orders для одного
// Idempotency-Key. RequestHash защищает от переиспользования ключа
// с другим телом запроса.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired сообщает, что срок жизни записи истёк к моменту now
// и её можно удалять.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}
