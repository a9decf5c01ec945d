package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector bundles the catalog's Prometheus metrics: catalog RPCs, engine
// calls, kernel reloads and registry contents.
type Collector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	EngineCalls     *prometheus.CounterVec
	EngineDurations *prometheus.HistogramVec

	KernelReloads *prometheus.CounterVec
	KernelFiles   prometheus.Gauge

	RegistryObjects *prometheus.GaugeVec
}

// NewCollector registers the catalog metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total number of handled catalog RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"})); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "method"})); err != nil {
		return nil, err
	}
	if c.EngineCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ephemeris_engine_calls_total",
		Help: "Ephemeris engine calls, labeled by operation and result (ok or the diagnostic code).",
	}, []string{"op", "result"})); err != nil {
		return nil, err
	}
	if c.EngineDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ephemeris_engine_call_duration_seconds",
		Help:    "Ephemeris engine call latency in seconds.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"op"})); err != nil {
		return nil, err
	}
	if c.KernelReloads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_reloads_total",
		Help: "Kernel pool reloads, labeled by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if c.KernelFiles, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kernel_files_loaded",
		Help: "Number of kernel files currently furnished.",
	})); err != nil {
		return nil, err
	}
	if c.RegistryObjects, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "registry_objects",
		Help: "Objects tracked by the session registry, labeled by kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveEngineCall records one engine call. result is "ok" or the
// diagnostic code of the failure.
func (c *Collector) ObserveEngineCall(op, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.EngineCalls.WithLabelValues(op, result).Inc()
	c.EngineDurations.WithLabelValues(op).Observe(d.Seconds())
}

// RecordReload counts a kernel reload and, on success, the number of files
// now loaded.
func (c *Collector) RecordReload(files int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.KernelReloads.WithLabelValues("error").Inc()
		return
	}
	c.KernelReloads.WithLabelValues("ok").Inc()
	c.KernelFiles.Set(float64(files))
}

// SetKernelFiles sets the loaded kernel file gauge.
func (c *Collector) SetKernelFiles(n int) {
	if c == nil {
		return
	}
	c.KernelFiles.Set(float64(n))
}

// SetRegistryCounts updates the registry gauges from per-kind counts.
// Kinds missing from counts are reset to zero.
func (c *Collector) SetRegistryCounts(counts map[string]int) {
	if c == nil {
		return
	}
	c.RegistryObjects.Reset()
	for kind, n := range counts {
		c.RegistryObjects.WithLabelValues(kind).Set(float64(n))
	}
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %T already registered with incompatible type", c)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
