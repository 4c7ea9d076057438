// Package health отдаёт liveness/readiness-пробы и сводный отчёт
// о состоянии зависимостей сервиса.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status — состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — тело ответа полного health-отчёта.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент.
type Checker interface {
	Check() Check
}

type funcChecker struct {
	name string
	fn   func() error
}

// CheckerFunc оборачивает функцию в Checker с замером длительности.
func CheckerFunc(name string, fn func() error) Checker {
	return &funcChecker{name: name, fn: fn}
}

func (c *funcChecker) Check() Check {
	started := time.Now()
	err := c.fn()

	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// Handler держит зарегистрированные проверки и отвечает на пробы.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	version   string
	startedAt time.Time
}

// NewHandler создаёт handler без проверок; они добавляются через RegisterChecker.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   version,
		startedAt: time.Now(),
	}
}

// RegisterChecker добавляет или заменяет проверку компонента.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// evaluate прогоняет снимок проверок вне блокировки: медленный
// checker не должен задерживать регистрацию других.
func (h *Handler) evaluate() (Status, map[string]Check) {
	h.mu.RLock()
	snapshot := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		snapshot[name] = checker
	}
	h.mu.RUnlock()

	overall := StatusHealthy
	checks := make(map[string]Check, len(snapshot))
	for name, checker := range snapshot {
		result := checker.Check()
		checks[name] = result
		if result.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		}
	}
	return overall, checks
}

// ServeHTTP отдаёт полный отчёт; 503 при любой неуспешной проверке.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	overall, checks := h.evaluate()

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        overall,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// ReadinessHandler — readiness probe поверх тех же проверок.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if overall, _ := h.evaluate(); overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
