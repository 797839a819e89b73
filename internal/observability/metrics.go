package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests and delivery
// pipeline outcomes.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	deliveredCount int64
	failedCount    int64
	retryCount     int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordDelivery tracks one simulated delivery resolution.
func (m *Metrics) RecordDelivery(delivered bool, retried bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if delivered {
		m.deliveredCount++
	} else {
		m.failedCount++
	}
	if retried {
		m.retryCount++
	}
}

// DeliverySnapshot returns delivered/failed/retried totals.
func (m *Metrics) DeliverySnapshot() (delivered, failed, retried int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveredCount, m.failedCount, m.retryCount
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
