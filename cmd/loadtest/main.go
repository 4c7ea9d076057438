// Нагрузочный драйвер HTTP API сервиса заказов. Гоняет сценарии
// create / create-status / create-pay и печатает сводку задержек,
// опционально сохраняя JSON-отчет.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	idempotencyHeader = "Idempotency-Key"

	// statusTransport помечает вызовы, не получившие HTTP-ответа.
	statusTransport = 0

	seriesScenario = "scenario"
)

type loadMode string

const (
	modeCreate       loadMode = "create"
	modeCreateStatus loadMode = "create-status"
	modeCreatePay    loadMode = "create-pay"
)

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreateStatus:
		return modeCreateStatus, nil
	case modeCreatePay:
		return modeCreatePay, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	productID   string
	qty         int32
	outputPath  string
}

func parseConfig() (config, error) {
	var (
		cfg           config
		modeValue     string
		timeoutValue  string
		durationValue string
		qtyValue      int
	)

	flag.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "orders service base URL")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-status | create-pay")
	flag.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for create-status mode (0..100)")
	flag.StringVar(&cfg.productID, "product", "prod-load", "order line product id")
	flag.IntVar(&qtyValue, "qty", 1, "order line quantity")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	var err error
	if cfg.timeout, err = time.ParseDuration(strings.TrimSpace(timeoutValue)); err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	if cfg.duration, err = time.ParseDuration(strings.TrimSpace(durationValue)); err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	if cfg.mode, err = parseMode(modeValue); err != nil {
		return cfg, err
	}

	// Явный -total ограничивает и duration-режим.
	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	cfg.qty = int32(qtyValue)
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch {
	case c.baseURL == "":
		return errors.New("addr is required")
	case c.duration < 0:
		return errors.New("duration must be >= 0")
	case c.duration == 0 && c.total <= 0:
		return errors.New("total must be > 0 when duration is not set")
	case c.duration > 0 && c.totalSet && c.total <= 0:
		return errors.New("total must be > 0 when explicitly set with duration")
	case c.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case c.timeout <= 0:
		return errors.New("timeout must be > 0")
	case c.qty <= 0:
		return errors.New("qty must be > 0")
	case c.cancelRate < 0 || c.cancelRate > 100:
		return errors.New("cancel-rate must be between 0 and 100")
	case strings.TrimSpace(c.productID) == "":
		return errors.New("product is required")
	}
	return nil
}

// statusError несет HTTP-статус неуспешного вызова, чтобы сценарий
// мог отнести провал к конкретному коду, а не к транспортной ошибке.
type statusError struct {
	call   string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.call, e.status)
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return statusTransport
}

// apiClient оборачивает HTTP-вызовы сервиса заказов и передает
// замер каждого вызова в track.
type apiClient struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
	track   func(call string, status int, elapsed time.Duration)
}

func (a *apiClient) do(call, method, path string, payload any, idempotencyKey string) (int, []byte, error) {
	started := time.Now()
	status := statusTransport
	defer func() {
		a.track(call, status, time.Since(started))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s request: %w", call, err)
		}
		body = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	status = resp.StatusCode
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return status, nil, fmt.Errorf("read %s response: %w", call, err)
	}
	return status, raw, nil
}

func (a *apiClient) createOrder(cfg config, key string) (string, error) {
	payload := map[string]any{
		"items": []map[string]any{
			{"product_id": cfg.productID, "quantity": cfg.qty},
		},
	}

	status, raw, err := a.do("CreateOrder", http.MethodPost, "/v1/orders", payload, key)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", &statusError{call: "CreateOrder", status: status}
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("create response returned empty order id")
	}
	return created.ID, nil
}

func (a *apiClient) changeStatus(orderID, target string) error {
	status, _, err := a.do("ChangeStatus", http.MethodPatch, "/v1/orders/"+orderID+"/status", map[string]any{"status": target}, "")
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &statusError{call: "ChangeStatus", status: status}
	}
	return nil
}

func (a *apiClient) createPaymentSession(orderID, key string) error {
	status, _, err := a.do("CreatePaymentSession", http.MethodPost, "/v1/orders/"+orderID+"/payment-session", nil, key)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &statusError{call: "CreatePaymentSession", status: status}
	}
	return nil
}

type quantiles struct {
	MinMs float64 `json:"min_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
	MaxMs float64 `json:"max_ms"`
}

type callReport struct {
	Total     int64            `json:"total"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	ByCode    map[string]int64 `json:"by_code"`
	Latency   quantiles        `json:"latency"`
}

type runReport struct {
	StartedAt          time.Time             `json:"started_at"`
	ElapsedSeconds     float64               `json:"elapsed_seconds"`
	ScenariosPerSecond float64               `json:"scenarios_per_second"`
	Scenario           callReport            `json:"scenario"`
	Calls              map[string]callReport `json:"calls"`
}

type series struct {
	success int64
	failed  int64
	byCode  map[string]int64
	samples []float64
}

func (s *series) summarize() callReport {
	byCode := make(map[string]int64, len(s.byCode))
	for code, n := range s.byCode {
		byCode[code] = n
	}
	total := s.success + s.failed
	return callReport{
		Total:     total,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: errorRate(s.failed, total),
		ByCode:    byCode,
		Latency:   quantilesOf(s.samples),
	}
}

// recorder копит замеры по именам вызовов; сценарий целиком
// учитывается под именем seriesScenario.
type recorder struct {
	mu     sync.Mutex
	series map[string]*series
}

func newRecorder() *recorder {
	return &recorder{series: make(map[string]*series)}
}

func (r *recorder) observe(call string, status int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.series[call]
	if s == nil {
		s = &series{byCode: make(map[string]int64)}
		r.series[call] = s
	}

	if status >= 200 && status < 300 {
		s.success++
	} else {
		s.failed++
	}
	s.byCode[codeKey(status)]++
	s.samples = append(s.samples, float64(elapsed.Microseconds())/1000.0)
}

func (r *recorder) callSummary(call string) (callReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.series[call]
	if !ok {
		return callReport{}, false
	}
	return s.summarize(), true
}

func (r *recorder) report(startedAt time.Time, elapsed time.Duration) runReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := runReport{
		StartedAt:      startedAt.UTC(),
		ElapsedSeconds: elapsed.Seconds(),
		Calls:          make(map[string]callReport, len(r.series)),
	}
	for call, s := range r.series {
		if call == seriesScenario {
			out.Scenario = s.summarize()
			continue
		}
		out.Calls[call] = s.summarize()
	}
	if elapsed > 0 {
		out.ScenariosPerSecond = float64(out.Scenario.Total) / elapsed.Seconds()
	}
	return out
}

func codeKey(status int) string {
	if status == statusTransport {
		return "transport"
	}
	return strconv.Itoa(status)
}

func errorRate(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

func quantilesOf(samples []float64) quantiles {
	if len(samples) == 0 {
		return quantiles{}
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return quantiles{
		MinMs: sorted[0],
		AvgMs: sum / float64(len(sorted)),
		P50Ms: nearestRank(sorted, 50),
		P95Ms: nearestRank(sorted, 95),
		P99Ms: nearestRank(sorted, 99),
		MaxMs: sorted[len(sorted)-1],
	}
}

// nearestRank берет перцентиль методом ближайшего ранга.
func nearestRank(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		fail("invalid config: %v", err)
	}

	result := execute(cfg)

	printSummary(result, cfg)
	if cfg.outputPath != "" {
		if err := saveReport(cfg.outputPath, result); err != nil {
			fail("write report: %v", err)
		}
	}

	if result.Scenario.Failed > 0 {
		os.Exit(1)
	}
}

func execute(cfg config) runReport {
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency,
		},
	}

	rec := newRecorder()
	api := &apiClient{
		http:    client,
		baseURL: cfg.baseURL,
		timeout: cfg.timeout,
		track:   rec.observe,
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	wg.Add(cfg.concurrency)
	for w := 0; w < cfg.concurrency; w++ {
		go func() {
			defer wg.Done()
			for index := range jobs {
				started := time.Now()
				err := runScenario(api, cfg, index, runID)
				rec.observe(seriesScenario, statusOf(err), time.Since(started))
			}
		}()
	}

	feedJobs(jobs, cfg)
	wg.Wait()

	return rec.report(startedAt, time.Since(startedAt))
}

func feedJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	limit := cfg.total
	if cfg.duration > 0 && !cfg.totalSet {
		limit = -1
	}

	for i := 0; limit < 0 || i < limit; i++ {
		select {
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func runScenario(api *apiClient, cfg config, index int, runID string) error {
	createKey := fmt.Sprintf("lt-create-%s-%d", runID, index)
	orderID, err := api.createOrder(cfg, createKey)
	if err != nil {
		return err
	}

	switch cfg.mode {
	case modeCreate:
		return nil
	case modeCreateStatus:
		target := "IN_PROGRESS"
		if shouldCancel(index, cfg.cancelRate) {
			target = "CANCELLED"
		}
		return api.changeStatus(orderID, target)
	case modeCreatePay:
		payKey := fmt.Sprintf("lt-pay-%s-%d", runID, index)
		return api.createPaymentSession(orderID, payKey)
	default:
		return fmt.Errorf("unsupported mode: %s", cfg.mode)
	}
}

func shouldCancel(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}

func saveReport(path string, result runReport) error {
	clean := filepath.Clean(path)
	if clean == "." || clean == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(clean, raw, 0o600)
}

func printSummary(result runReport, cfg config) {
	fmt.Printf("load test finished: mode=%s target=%s\n", cfg.mode, targetLabel(cfg))
	fmt.Printf("scenarios: total=%d success=%d failed=%d error_rate=%.4f\n",
		result.Scenario.Total,
		result.Scenario.Success,
		result.Scenario.Failed,
		result.Scenario.ErrorRate,
	)
	fmt.Printf("elapsed=%.2fs rate=%.2f/s\n", result.ElapsedSeconds, result.ScenariosPerSecond)
	fmt.Printf("scenario latency ms: p50=%.2f p95=%.2f p99=%.2f min=%.2f avg=%.2f max=%.2f\n",
		result.Scenario.Latency.P50Ms,
		result.Scenario.Latency.P95Ms,
		result.Scenario.Latency.P99Ms,
		result.Scenario.Latency.MinMs,
		result.Scenario.Latency.AvgMs,
		result.Scenario.Latency.MaxMs,
	)

	names := make([]string, 0, len(result.Calls))
	for name := range result.Calls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		call := result.Calls[name]
		fmt.Printf("  %s: total=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, call.Total, call.Failed, call.ErrorRate, call.Latency.P95Ms)
	}
}

func targetLabel(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count=%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration=%s,max-total=%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration=%s", cfg.duration)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
