package cached

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"go-keiba-collector/internal/store"
)

const (
	metricLookups     = "keiba_cache_lookups_total"
	metricFetches     = "keiba_source_fetches_total"
	metricFetchErrors = "keiba_source_fetch_errors_total"
)

type metrics struct {
	reg         *prometheus.Registry
	lookups     *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		reg: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricLookups,
			Help: "Cache lookups by cache and result (hit|miss).",
		}, []string{"cache", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricFetches,
			Help: "Successful data source fetches by cache.",
		}, []string{"cache"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricFetchErrors,
			Help: "Failed data source fetches by cache.",
		}, []string{"cache"}),
	}
	reg.MustRegister(m.lookups, m.fetches, m.fetchErrors)
	return m
}

func (m *metrics) lookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(cache, result).Inc()
}

func (m *metrics) fetch(cache string)      { m.fetches.WithLabelValues(cache).Inc() }
func (m *metrics) fetchError(cache string) { m.fetchErrors.WithLabelValues(cache).Inc() }

// CacheSummary 为单个缓存本次运行的计数。
type CacheSummary struct {
	Cache   string
	Hits    int
	Misses  int
	Fetches int
	Errors  int
}

func (s CacheSummary) String() string {
	return fmt.Sprintf("%s 命中=%d 未命中=%d 抓取=%d 失败=%d", s.Cache, s.Hits, s.Misses, s.Fetches, s.Errors)
}

// Summary 从 Registry 汇总各缓存计数，按固定缓存顺序返回。
func (a *Access) Summary() ([]CacheSummary, error) {
	mfs, err := a.m.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	byCache := make(map[string]*CacheSummary, len(store.Caches))
	for _, c := range store.Caches {
		byCache[c] = &CacheSummary{Cache: c}
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			cs, ok := byCache[labelValue(m, "cache")]
			if !ok {
				continue
			}
			v := int(m.GetCounter().GetValue())
			switch mf.GetName() {
			case metricLookups:
				if labelValue(m, "result") == "hit" {
					cs.Hits += v
				} else {
					cs.Misses += v
				}
			case metricFetches:
				cs.Fetches += v
			case metricFetchErrors:
				cs.Errors += v
			}
		}
	}
	out := make([]CacheSummary, 0, len(store.Caches))
	for _, c := range store.Caches {
		out = append(out, *byCache[c])
	}
	return out, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
