package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики кредитного портфеля
	LoansDisbursed      int64
	AmountDisbursed     float64
	RepaymentsRecorded  int64
	AmountCollected     float64
	RepaymentsReversed  int64
	StatusChanges       map[string]int64 // "ACTIVE->OVERDUE" -> количество
	LastLoanOperation   time.Time
	SchedulerRuns       int64
	LastSchedulerRun    time.Time
	NotificationsFailed int64

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// NewMetrics создает пустой набор метрик
func NewMetrics() *Metrics {
	return &Metrics{
		StatusChanges: make(map[string]int64),
		ErrorTypes:    make(map[string]int64),
	}
}

// RecordRequest записывает метрики запроса
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if failed {
		m.FailedRequests++
	}
}

// RecordDisbursement учитывает выдачу кредита
func (m *Metrics) RecordDisbursement(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoansDisbursed++
	m.AmountDisbursed += amount
	m.LastLoanOperation = time.Now()
}

// RecordRepayment учитывает проведенный платеж
func (m *Metrics) RecordRepayment(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RepaymentsRecorded++
	m.AmountCollected += amount
	m.LastLoanOperation = time.Now()
}

// RecordReversal учитывает сторнирование платежа
func (m *Metrics) RecordReversal(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RepaymentsReversed++
	m.AmountCollected -= amount
	m.LastLoanOperation = time.Now()
}

// RecordStatusChange учитывает смену статуса кредита
func (m *Metrics) RecordStatusChange(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StatusChanges[from+"->"+to]++
	m.LastLoanOperation = time.Now()
}

// RecordSchedulerRun учитывает прогон планировщика статусов
func (m *Metrics) RecordSchedulerRun() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SchedulerRuns++
	m.LastSchedulerRun = time.Now()
}

// RecordNotificationFailure учитывает неотправленное письмо
func (m *Metrics) RecordNotificationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.NotificationsFailed++
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}

	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statusChanges := make(map[string]int64, len(m.StatusChanges))
	for k, v := range m.StatusChanges {
		statusChanges[k] = v
	}
	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_requests":       m.TotalRequests,
		"failed_requests":      m.FailedRequests,
		"average_latency_ms":   m.AverageLatency.Milliseconds(),
		"loans_disbursed":      m.LoansDisbursed,
		"amount_disbursed":     m.AmountDisbursed,
		"repayments_recorded":  m.RepaymentsRecorded,
		"repayments_reversed":  m.RepaymentsReversed,
		"amount_collected":     m.AmountCollected,
		"status_changes":       statusChanges,
		"scheduler_runs":       m.SchedulerRuns,
		"last_scheduler_run":   m.LastSchedulerRun,
		"notifications_failed": m.NotificationsFailed,
		"error_count":          m.ErrorCount,
		"last_error_time":      m.LastErrorTime,
		"error_types":          errorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.LoansDisbursed = 0
	m.AmountDisbursed = 0
	m.RepaymentsRecorded = 0
	m.AmountCollected = 0
	m.RepaymentsReversed = 0
	m.StatusChanges = make(map[string]int64)
	m.SchedulerRuns = 0
	m.NotificationsFailed = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
