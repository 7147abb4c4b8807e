package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/kilianp07/evreco/api"
	"github.com/kilianp07/evreco/app/plugins"
	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/discovery"
	coremetrics "github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/model"
	coremon "github.com/kilianp07/evreco/core/monitoring"
	"github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/core/recommend"
	"github.com/kilianp07/evreco/core/records"
	"github.com/kilianp07/evreco/infra/cache"
	"github.com/kilianp07/evreco/infra/logger"
	"github.com/kilianp07/evreco/infra/metrics"
	"github.com/kilianp07/evreco/infra/monitoring"
	"github.com/kilianp07/evreco/internal/eventbus"
	"github.com/kilianp07/evreco/jobs/prefetch"
)

// Service wires discovery, the recommendation engine and the HTTP API.
type Service struct {
	Engine  *recommend.Engine
	Source  *discovery.CachedSource
	Model   prediction.ModelClient
	Records records.Store

	cfg      *config.Config
	bus      *eventbus.Bus
	sink     coremetrics.MetricsSink
	stations *cache.TTLStore[[]model.RawStation]
	limits   *cache.TTLStore[*rate.Limiter]
	server   *http.Server
	prefetch *prefetch.Job
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := records.Open(cfg.Records)
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}
	client, err := plugins.NewModelClient(cfg.Prediction, plugins.Env{MQTT: cfg.MQTT, Logger: logger.New("prediction")})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("prediction transport: %w", err)
	}
	src, err := plugins.NewSource(cfg.Discovery)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("discovery: %w", err)
	}

	bus := eventbus.New()
	stations := cache.NewTTLStore[[]model.RawStation](cfg.Cache)
	cached := discovery.NewCachedSource(src, stations, cfg.Cache.TTL(), logger.New("discovery"))
	cached.SetEventBus(bus)

	engine := recommend.NewEngineFromConfig(cfg.Recommend, client, logger.New("recommend"))
	engine.SetEventBus(bus)
	engine.SetRecordStore(store)

	svc := &Service{
		Engine:   engine,
		Source:   cached,
		Model:    client,
		Records:  store,
		cfg:      cfg,
		bus:      bus,
		sink:     sink,
		stations: stations,
		log:      logg,
	}

	deps := api.Deps{
		Source:      cached,
		Engine:      engine,
		Metrics:     promhttp.Handler(),
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger.New("api"),
	}
	if sr, ok := client.(prediction.StatusReporter); ok {
		deps.Model = sr
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		svc.limits = cache.NewTTLStore[*rate.Limiter](cache.Config{TTLSeconds: 600})
		lim := api.NewRateLimiter(svc.limits, cfg.Server.RateLimitPerMinute, cfg.Server.RateBurst)
		if err := lim.TrustProxies(cfg.Server.TrustedProxies); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("server: %w", err)
		}
		deps.Limiter = lim
	}
	svc.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewHandler(deps),
		ReadTimeout:       cfg.Server.ReadTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
	}

	if cfg.Prefetch.Enabled && len(cfg.Prefetch.Hotspots) > 0 {
		job, err := prefetch.New(cfg.Prefetch, cached, logger.New("prefetch"))
		if err != nil {
			_ = svc.Close()
			return nil, err
		}
		svc.prefetch = job
	}
	return svc, nil
}

// Handler returns the HTTP handler of the API.
func (s *Service) Handler() http.Handler { return s.server.Handler }

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("collector"))
	if addr := s.cfg.Metrics.PromAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.prefetch != nil {
		s.prefetch.Start(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.prefetch != nil {
		s.prefetch.Stop()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.stations != nil {
		s.stations.Stop()
	}
	if s.limits != nil {
		s.limits.Stop()
	}
	for _, c := range []any{s.Model, s.sink} {
		if closer, ok := c.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	if s.Records != nil {
		errs = append(errs, s.Records.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
