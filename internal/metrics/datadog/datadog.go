// Package datadog implements a buffered Datadog backend for
// internal/metrics.
//
// Observations are buffered in memory under a mutex, flushed on a ticker
// while a long load runs, and flushed one final time on Close. Short
// one-shot loads therefore still produce a usable tail point, and long
// runs produce a time series instead of a single spike at exit.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"pulsedash/internal/metrics"
)

// Options configures the backend.
type Options struct {
	// JobName becomes tag "job:<name>". Defaults to "pulsedash".
	JobName string
	// Tags are extra Datadog tags (e.g. "env:prod").
	Tags []string
	// FlushEvery controls the submit interval; <= 0 means 60s.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the sliver of the Datadog SDK the backend needs,
// so tests can submit into a fake instead of real HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	sub metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[string]float64   // metric|sorted-tags -> value
	samples  map[string][]float64 // metric|sorted-tags -> samples
}

// New constructs the backend and starts its flush loop. Credentials come
// from DD_API_KEY etc. in the environment, via the SDK's default context.
func New(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "pulsedash"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := append([]string{envTag(), "job:" + job}, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	tickerFn := opts.newTicker
	if tickerFn == nil {
		tickerFn = time.NewTicker
	}
	sub := opts.submitter
	if sub == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		sub = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		sub:        sub,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  tickerFn,
		counters:   map[string]float64{},
		samples:    map[string][]float64{},
	}
	go b.loop()
	return b, nil
}

// ParseTagsCSV splits a comma-separated "k:v,k:v" env value into tags,
// dropping empties.
func ParseTagsCSV(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func envTag() string {
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k := seriesKey(name, labels)
	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	k := seriesKey(name, labels)
	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

// Close stops the flush loop and performs a final Flush. Call once.
func (b *Backend) Close(ctx context.Context) error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// Flush submits buffered observations and resets the buffers. Buffers
// reset even when submission fails; delivery is best effort.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counters, samples := b.counters, b.samples
	b.counters = map[string]float64{}
	b.samples = map[string][]float64{}
	b.mu.Unlock()

	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	series := buildSeries(counters, samples, b.baseTags, b.now().Unix())
	_, _, err := b.sub.SubmitMetrics(b.ctx, datadogV2.MetricPayload{Series: series})
	return err
}

// buildSeries is pure: it converts a buffer snapshot into Datadog series
// at a fixed timestamp, which keeps naming/tagging unit-testable.
func buildSeries(counters map[string]float64, samples map[string][]float64, baseTags []string, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counters)+len(samples))

	point := func(v float64) []datadogV2.MetricPoint {
		return []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(v)}}
	}

	for k, v := range counters {
		name, tags := splitSeriesKey(k)
		series = append(series, datadogV2.MetricSeries{
			Metric: name,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: point(v),
			Tags:   append(append([]string{}, baseTags...), tags...),
		})
	}

	for k, ss := range samples {
		if len(ss) == 0 {
			continue
		}
		name, tags := splitSeriesKey(k)
		var sum, max float64
		for _, s := range ss {
			sum += s
			if s > max {
				max = s
			}
		}
		allTags := append(append([]string{}, baseTags...), tags...)
		series = append(series,
			datadogV2.MetricSeries{
				Metric: name + ".avg",
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(sum / float64(len(ss))),
				Tags:   allTags,
			},
			datadogV2.MetricSeries{
				Metric: name + ".max",
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(max),
				Tags:   allTags,
			})
	}

	return series
}

// seriesKey folds a metric name and its labels into one map key with a
// deterministic tag order.
func seriesKey(name string, labels metrics.Labels) string {
	if len(labels) == 0 {
		return name
	}
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		tags = append(tags, k+":"+v)
	}
	sort.Strings(tags)
	return name + "|" + strings.Join(tags, "|")
}

func splitSeriesKey(k string) (string, []string) {
	parts := strings.Split(k, "|")
	return parts[0], parts[1:]
}

var _ metrics.Backend = (*Backend)(nil)
