package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	attempts      map[string]int64
	selections    map[string]int64
	retries       map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	healthStatus  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalAttempts int64                  `json:"total_attempts"`
	TotalRetries  int64                  `json:"total_retries"`
	Uptime        time.Duration          `json:"uptime"`
	Nodes         map[string]NodeMetrics `json:"nodes"`
}

type NodeMetrics struct {
	Attempts    int64         `json:"attempts"`
	Selections  int64         `json:"selections"`
	Retries     int64         `json:"retries"`
	Healthy     bool          `json:"healthy"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		attempts:      make(map[string]int64),
		selections:    make(map[string]int64),
		retries:       make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordSelection(node string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[node]++
}

func (m *Metrics) RecordRetry(node string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.retries[node]++
}

// RecordAttempt stores the latency and status of one attempt. Only the most
// recent samples per node are kept for percentiles.
func (m *Metrics) RecordAttempt(node string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.attempts[node]++

	m.responseTimes[node] = append(m.responseTimes[node], duration)
	if len(m.responseTimes[node]) > maxSamples {
		m.responseTimes[node] = m.responseTimes[node][1:]
	}

	if m.statusCodes[node] == nil {
		m.statusCodes[node] = make(map[int]int64)
	}
	m.statusCodes[node][statusCode]++
}

func (m *Metrics) UpdateHealthStatus(node string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[node] = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime: time.Since(m.startTime),
		Nodes:  make(map[string]NodeMetrics),
	}

	allNodes := make(map[string]bool)
	for node := range m.attempts {
		allNodes[node] = true
	}
	for node := range m.selections {
		allNodes[node] = true
	}
	for node := range m.retries {
		allNodes[node] = true
	}
	for node := range m.healthStatus {
		allNodes[node] = true
	}

	for node := range allNodes {
		snap.TotalAttempts += m.attempts[node]
		snap.TotalRetries += m.retries[node]

		nm := NodeMetrics{
			Attempts:    m.attempts[node],
			Selections:  m.selections[node],
			Retries:     m.retries[node],
			Healthy:     m.healthStatus[node],
			StatusCodes: copyCodes(m.statusCodes[node]),
		}

		durations := m.responseTimes[node]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			nm.AvgResponse = average(sorted)
			nm.P50Response = percentile(sorted, 0.50)
			nm.P95Response = percentile(sorted, 0.95)
			nm.P99Response = percentile(sorted, 0.99)
		}

		snap.Nodes[node] = nm
	}

	return snap
}

func copyCodes(codes map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(codes))
	for code, n := range codes {
		out[code] = n
	}
	return out
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
