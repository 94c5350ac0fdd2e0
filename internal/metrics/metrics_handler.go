package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"stockflow/logger"
)

// Metric is one event passed to EmitMetric.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

// Key names the series the event belongs to: component and metric name,
// followed by the stage and reason labels when present.
func (m Metric) Key() string {
	parts := []string{m.Component, m.Name}
	for _, label := range []string{"stage", "reason"} {
		if v, ok := m.Fields[label].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ".")
}

// Float64 returns the value as a float when it is numeric.
func (m Metric) Float64() (float64, bool) {
	return toFloat64(m.Value)
}

// Handler receives every metric event emitted while it is subscribed.
type Handler func(Metric)

type subscribers struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]Handler
}

var subs = &subscribers{byID: make(map[uint64]Handler)}

// Subscribe adds h to the event fan-out and returns a function that removes
// it again. A nil handler is ignored.
func Subscribe(h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}

	subs.mu.Lock()
	subs.nextID++
	id := subs.nextID
	subs.byID[id] = h
	subs.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			subs.mu.Lock()
			delete(subs.byID, id)
			subs.mu.Unlock()
		})
	}
}

// ReportTotals subscribes a handler that adds every numeric event to the
// run report kept by the logger package.
func ReportTotals() (unsubscribe func()) {
	return Subscribe(func(m Metric) {
		if v, ok := m.Float64(); ok {
			logger.RecordMetric(m.Key(), v)
		}
	})
}

func (s *subscribers) dispatch(m Metric) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, s.byID[id])
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(m)
	}
}

// recordMetric logs the event and hands it to the subscribers. Events
// without a name are dropped.
func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	m := Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    make(logger.Fields, len(fields)),
	}
	logFields := make(logger.Fields, len(fields)+3)
	for k, v := range fields {
		m.Fields[k] = v
		logFields[k] = v
	}
	logFields["metric"] = name
	logFields["metric_type"] = metricType
	logFields["value"] = value
	log.WithComponent(component).WithFields(logFields).Info("metric")

	subs.dispatch(m)
	return m, true
}
