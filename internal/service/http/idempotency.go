package httpsvc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// responseRecorder перехватывает ответ handler-а для сохранения в idempotency-хранилище.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// IdempotencyMiddleware делает повторные запросы с тем же Idempotency-Key
// безопасными: завершённый ответ проигрывается из хранилища, конкурентный
// дубликат получает 409. Запросы без заголовка проходят без изменений.
func IdempotencyMiddleware(repo domain.IdempotencyRepository, logger *log.Entry) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.New().WithField("component", "idempotency")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" || repo == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashRequest(r.Method, r.URL.Path, body)

			_, err = repo.CreateProcessing(key, requestHash, time.Now().UTC().Add(idempotencyTTL))
			switch {
			case err == nil:
				// Первый запрос с этим ключом.
			case domain.IsIdempotencyConflict(err):
				replayOrConflict(w, repo, key, requestHash, err, logger)
				return
			default:
				logger.WithError(err).Warn("idempotency store unavailable, processing without dedup")
				next.ServeHTTP(w, r)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			result := recorder.body.Bytes()
			if recorder.status >= 200 && recorder.status < 300 {
				err = repo.MarkDone(key, result, recorder.status)
			} else {
				err = repo.MarkFailed(key, result, recorder.status)
			}
			if err != nil {
				logger.WithError(err).WithField("idempotency_key", key).Warn("failed to record idempotency result")
			}
		})
	}
}

func replayOrConflict(w http.ResponseWriter, repo domain.IdempotencyRepository, key, requestHash string, createErr error, logger *log.Entry) {
	record, err := repo.Get(key)
	if err != nil {
		logger.WithError(err).WithField("idempotency_key", key).Warn("failed to load idempotency record")
		writeError(w, http.StatusConflict, "idempotency_conflict", createErr.Error())
		return
	}

	if record.RequestHash != requestHash {
		writeError(w, http.StatusUnprocessableEntity, "idempotency_key_reused",
			"idempotency key was already used with a different request")
		return
	}

	if !record.Status.Completed() {
		writeError(w, http.StatusConflict, "request_in_progress",
			"a request with this idempotency key is still being processed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotency-Replayed", "true")
	w.WriteHeader(record.HTTPStatus)
	_, _ = w.Write(record.ResponseBody)
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{0})
	sum.Write([]byte(path))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
