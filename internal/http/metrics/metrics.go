package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"talentflow/internal/common"
)

// Collector keeps process-local counters exposed in Prometheus text format.
type Collector struct {
	requests uint64
	errors   uint64

	mu          sync.Mutex
	errorCodes  map[common.Code]uint64
	transitions map[string]uint64
}

func NewCollector() *Collector {
	return &Collector{errorCodes: make(map[common.Code]uint64), transitions: make(map[string]uint64)}
}

func (c *Collector) IncRequests() {
	atomic.AddUint64(&c.requests, 1)
}

func (c *Collector) IncErrors() {
	atomic.AddUint64(&c.errors, 1)
}

func (c *Collector) IncErrorCode(code common.Code) {
	c.mu.Lock()
	c.errorCodes[code]++
	c.mu.Unlock()
}

// ObserveTransition counts pipeline transition outcomes.
func (c *Collector) ObserveTransition(outcome string) {
	c.mu.Lock()
	c.transitions[outcome]++
	c.mu.Unlock()
}

func (c *Collector) Snapshot() (uint64, uint64) {
	return atomic.LoadUint64(&c.requests), atomic.LoadUint64(&c.errors)
}

func (c *Collector) Transitions() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make(map[string]uint64, len(c.transitions))
	for outcome, count := range c.transitions {
		items[outcome] = count
	}
	return items
}

func (c *Collector) errorCodeCounts() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make(map[string]uint64, len(c.errorCodes))
	for code, count := range c.errorCodes {
		items[string(code)] = count
	}
	return items
}

type Handler struct {
	collector *Collector
}

func NewHandler(collector *Collector) *Handler {
	return &Handler{collector: collector}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	var requests, errors uint64
	var transitions, codes map[string]uint64
	if h.collector != nil {
		requests, errors = h.collector.Snapshot()
		transitions = h.collector.Transitions()
		codes = h.collector.errorCodeCounts()
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = fmt.Fprintf(w, "# HELP talentflow_requests_total Total number of HTTP requests.\n")
	_, _ = fmt.Fprintf(w, "# TYPE talentflow_requests_total counter\n")
	_, _ = fmt.Fprintf(w, "talentflow_requests_total %d\n", requests)
	_, _ = fmt.Fprintf(w, "# HELP talentflow_errors_total Total number of 5xx HTTP responses.\n")
	_, _ = fmt.Fprintf(w, "# TYPE talentflow_errors_total counter\n")
	_, _ = fmt.Fprintf(w, "talentflow_errors_total %d\n", errors)
	writeLabeled(w, "talentflow_error_responses_total", "Error responses by error code.", "code", codes)
	writeLabeled(w, "talentflow_transitions_total", "Pipeline transitions by outcome.", "outcome", transitions)
}

func writeLabeled(w http.ResponseWriter, name, help, label string, values map[string]uint64) {
	_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_, _ = fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}
