package observability

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

type histogram struct {
	buckets []float64
	counts  []uint64
	count   uint64
	sum     float64
}

func newHistogram(buckets []float64) *histogram {
	copyBuckets := make([]float64, len(buckets))
	copy(copyBuckets, buckets)
	return &histogram{
		buckets: copyBuckets,
		counts:  make([]uint64, len(copyBuckets)),
	}
}

func (h *histogram) observe(value float64) {
	if h == nil {
		return
	}
	if value < 0 {
		value = 0
	}
	for idx, bucket := range h.buckets {
		if value <= bucket {
			h.counts[idx]++
			break
		}
	}
	h.count++
	h.sum += value
}

type httpRequestKey struct {
	route  string
	method string
	status string
}

type httpDurationKey struct {
	route  string
	method string
}

type synthesisKey struct {
	trigger string
	status  string
}

// APIMetrics tracks request handling plus backstory synthesis outcomes and
// LLM call latency, rendered in Prometheus text format.
type APIMetrics struct {
	mu            sync.RWMutex
	httpRequests  map[httpRequestKey]uint64
	httpDurations map[httpDurationKey]*histogram
	syntheses     map[synthesisKey]uint64
	llmDurations  map[string]*histogram
	rateLimited   map[string]uint64
}

func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{
		httpRequests:  map[httpRequestKey]uint64{},
		httpDurations: map[httpDurationKey]*histogram{},
		syntheses:     map[synthesisKey]uint64{},
		llmDurations:  map[string]*histogram{},
		rateLimited:   map[string]uint64{},
	}
}

func (m *APIMetrics) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := httpRequestKey{
		route:  normalizeMetricValue(route, "unknown"),
		method: normalizeMetricValue(strings.ToUpper(strings.TrimSpace(method)), "UNKNOWN"),
		status: strconv.Itoa(status),
	}
	durationKey := httpDurationKey{route: key.route, method: key.method}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.httpRequests[key]++
	h, exists := m.httpDurations[durationKey]
	if !exists {
		h = newHistogram(defaultDurationBuckets)
		m.httpDurations[durationKey] = h
	}
	h.observe(duration.Seconds())
}

// ObserveSynthesis counts one backstory synthesis by trigger (regenerate,
// merge, job) and status (ok, failed, fallback).
func (m *APIMetrics) ObserveSynthesis(trigger, status string) {
	if m == nil {
		return
	}
	key := synthesisKey{
		trigger: normalizeMetricValue(trigger, "unknown"),
		status:  normalizeMetricValue(status, "unknown"),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syntheses[key]++
}

// ObserveLLMCall records latency of one provider call by kind (text, image).
func (m *APIMetrics) ObserveLLMCall(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	cleanKind := normalizeMetricValue(kind, "unknown")
	m.mu.Lock()
	defer m.mu.Unlock()
	h, exists := m.llmDurations[cleanKind]
	if !exists {
		h = newHistogram(defaultDurationBuckets)
		m.llmDurations[cleanKind] = h
	}
	h.observe(duration.Seconds())
}

func (m *APIMetrics) IncRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited[normalizeMetricValue(endpoint, "unknown")]++
}

func (m *APIMetrics) Render() string {
	if m == nil {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var sb strings.Builder

	sb.WriteString("# HELP http_requests_total Total HTTP requests handled by API.\n")
	sb.WriteString("# TYPE http_requests_total counter\n")
	requestKeys := make([]httpRequestKey, 0, len(m.httpRequests))
	for key := range m.httpRequests {
		requestKeys = append(requestKeys, key)
	}
	sort.Slice(requestKeys, func(i, j int) bool {
		if requestKeys[i].route != requestKeys[j].route {
			return requestKeys[i].route < requestKeys[j].route
		}
		if requestKeys[i].method != requestKeys[j].method {
			return requestKeys[i].method < requestKeys[j].method
		}
		return requestKeys[i].status < requestKeys[j].status
	})
	for _, key := range requestKeys {
		writeCounter(&sb, "http_requests_total", map[string]string{
			"route":  key.route,
			"method": key.method,
			"status": key.status,
		}, m.httpRequests[key])
	}

	sb.WriteString("# HELP http_request_duration_seconds HTTP request latency in seconds.\n")
	sb.WriteString("# TYPE http_request_duration_seconds histogram\n")
	durationKeys := make([]httpDurationKey, 0, len(m.httpDurations))
	for key := range m.httpDurations {
		durationKeys = append(durationKeys, key)
	}
	sort.Slice(durationKeys, func(i, j int) bool {
		if durationKeys[i].route != durationKeys[j].route {
			return durationKeys[i].route < durationKeys[j].route
		}
		return durationKeys[i].method < durationKeys[j].method
	})
	for _, key := range durationKeys {
		renderHistogramSeries(&sb, "http_request_duration_seconds", map[string]string{
			"route":  key.route,
			"method": key.method,
		}, m.httpDurations[key])
	}

	sb.WriteString("# HELP backstory_syntheses_total Backstory syntheses by trigger and status.\n")
	sb.WriteString("# TYPE backstory_syntheses_total counter\n")
	synthKeys := make([]synthesisKey, 0, len(m.syntheses))
	for key := range m.syntheses {
		synthKeys = append(synthKeys, key)
	}
	sort.Slice(synthKeys, func(i, j int) bool {
		if synthKeys[i].trigger != synthKeys[j].trigger {
			return synthKeys[i].trigger < synthKeys[j].trigger
		}
		return synthKeys[i].status < synthKeys[j].status
	})
	for _, key := range synthKeys {
		writeCounter(&sb, "backstory_syntheses_total", map[string]string{
			"trigger": key.trigger,
			"status":  key.status,
		}, m.syntheses[key])
	}

	sb.WriteString("# HELP llm_call_duration_seconds Provider call latency in seconds.\n")
	sb.WriteString("# TYPE llm_call_duration_seconds histogram\n")
	kinds := make([]string, 0, len(m.llmDurations))
	for kind := range m.llmDurations {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		renderHistogramSeries(&sb, "llm_call_duration_seconds", map[string]string{"kind": kind}, m.llmDurations[kind])
	}

	sb.WriteString("# HELP rate_limit_events_total Rate-limit rejections by endpoint.\n")
	sb.WriteString("# TYPE rate_limit_events_total counter\n")
	endpoints := make([]string, 0, len(m.rateLimited))
	for endpoint := range m.rateLimited {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)
	for _, endpoint := range endpoints {
		writeCounter(&sb, "rate_limit_events_total", map[string]string{"endpoint": endpoint}, m.rateLimited[endpoint])
	}

	return sb.String()
}

type jobKey struct {
	jobType string
	status  string
}

// WorkerMetrics tracks job queue processing.
type WorkerMetrics struct {
	mu            sync.RWMutex
	jobsProcessed map[jobKey]uint64
	jobDurations  map[string]*histogram
	jobRetries    map[string]uint64
}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		jobsProcessed: map[jobKey]uint64{},
		jobDurations:  map[string]*histogram{},
		jobRetries:    map[string]uint64{},
	}
}

func (m *WorkerMetrics) ObserveJobProcessed(jobType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	cleanType := normalizeMetricValue(jobType, "unknown")
	cleanStatus := normalizeMetricValue(status, "unknown")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsProcessed[jobKey{jobType: cleanType, status: cleanStatus}]++
	h, exists := m.jobDurations[cleanType]
	if !exists {
		h = newHistogram(defaultDurationBuckets)
		m.jobDurations[cleanType] = h
	}
	h.observe(duration.Seconds())
}

func (m *WorkerMetrics) IncrementJobRetry(jobType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobRetries[normalizeMetricValue(jobType, "unknown")]++
}

func (m *WorkerMetrics) Render() string {
	if m == nil {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var sb strings.Builder

	sb.WriteString("# HELP jobs_processed_total Total processed jobs by type and status.\n")
	sb.WriteString("# TYPE jobs_processed_total counter\n")
	processedKeys := make([]jobKey, 0, len(m.jobsProcessed))
	for key := range m.jobsProcessed {
		processedKeys = append(processedKeys, key)
	}
	sort.Slice(processedKeys, func(i, j int) bool {
		if processedKeys[i].jobType != processedKeys[j].jobType {
			return processedKeys[i].jobType < processedKeys[j].jobType
		}
		return processedKeys[i].status < processedKeys[j].status
	})
	for _, key := range processedKeys {
		writeCounter(&sb, "jobs_processed_total", map[string]string{
			"type":   key.jobType,
			"status": key.status,
		}, m.jobsProcessed[key])
	}

	sb.WriteString("# HELP job_duration_seconds Job processing latency in seconds.\n")
	sb.WriteString("# TYPE job_duration_seconds histogram\n")
	jobTypes := make([]string, 0, len(m.jobDurations))
	for jobType := range m.jobDurations {
		jobTypes = append(jobTypes, jobType)
	}
	sort.Strings(jobTypes)
	for _, jobType := range jobTypes {
		renderHistogramSeries(&sb, "job_duration_seconds", map[string]string{"type": jobType}, m.jobDurations[jobType])
	}

	sb.WriteString("# HELP job_retries_total Total retries scheduled by job type.\n")
	sb.WriteString("# TYPE job_retries_total counter\n")
	retryTypes := make([]string, 0, len(m.jobRetries))
	for jobType := range m.jobRetries {
		retryTypes = append(retryTypes, jobType)
	}
	sort.Strings(retryTypes)
	for _, jobType := range retryTypes {
		writeCounter(&sb, "job_retries_total", map[string]string{"type": jobType}, m.jobRetries[jobType])
	}

	return sb.String()
}

func writeCounter(sb *strings.Builder, name string, labels map[string]string, value uint64) {
	sb.WriteString(name)
	sb.WriteString(formatLabels(labels))
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatUint(value, 10))
	sb.WriteString("\n")
}

func renderHistogramSeries(sb *strings.Builder, metricName string, labels map[string]string, h *histogram) {
	if sb == nil || h == nil {
		return
	}

	cumulative := uint64(0)
	for idx, bucket := range h.buckets {
		cumulative += h.counts[idx]
		withLE := cloneLabels(labels)
		withLE["le"] = strconv.FormatFloat(bucket, 'g', -1, 64)
		sb.WriteString(metricName)
		sb.WriteString("_bucket")
		sb.WriteString(formatLabels(withLE))
		sb.WriteString(" ")
		sb.WriteString(strconv.FormatUint(cumulative, 10))
		sb.WriteString("\n")
	}

	withInf := cloneLabels(labels)
	withInf["le"] = "+Inf"
	sb.WriteString(metricName)
	sb.WriteString("_bucket")
	sb.WriteString(formatLabels(withInf))
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatUint(h.count, 10))
	sb.WriteString("\n")

	sb.WriteString(metricName)
	sb.WriteString("_sum")
	sb.WriteString(formatLabels(labels))
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatFloat(h.sum, 'g', -1, 64))
	sb.WriteString("\n")

	sb.WriteString(metricName)
	sb.WriteString("_count")
	sb.WriteString(formatLabels(labels))
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatUint(h.count, 10))
	sb.WriteString("\n")
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+`="`+escapeLabelValue(labels[key])+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func cloneLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for key, value := range labels {
		out[key] = value
	}
	return out
}

func escapeLabelValue(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
	return replacer.Replace(value)
}

func normalizeMetricValue(value, fallback string) string {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return fallback
	}
	return clean
}
