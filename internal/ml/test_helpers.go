package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    int
	fallbackUse int
	latencies   int
	modelAge    float64
	scores      []float64
	careers     map[string]int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLFallbackUseInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackUse++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLLatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, v)
}

func (m *MockMetrics) CareerPredictionInc(career string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.careers == nil {
		m.careers = make(map[string]int)
	}
	m.careers[career]++
}

// Counts returns predictions, failures and fallback uses recorded so far.
func (m *MockMetrics) Counts() (predictions, failures, fallbackUse int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures, m.fallbackUse
}

// CareerCount returns how often career was predicted.
func (m *MockMetrics) CareerCount(career string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.careers[career]
}
