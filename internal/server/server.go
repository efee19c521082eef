package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/researchly/marketscout/config"
	"github.com/researchly/marketscout/internal/archive"
	"github.com/researchly/marketscout/internal/cache"
	"github.com/researchly/marketscout/internal/qa"
	"github.com/researchly/marketscout/internal/research"
	"github.com/researchly/marketscout/internal/store"
	"github.com/researchly/marketscout/internal/worker"
	"github.com/researchly/marketscout/provider"
	"github.com/researchly/marketscout/tools/web_fetch"
	"github.com/researchly/marketscout/tools/web_search"
)

// Run wires every component and serves the API until the listener stops.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging.
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(registry)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	ctx := context.Background()

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	searcher, err := web_search.NewWebSearcher(
		web_search.Provider(cfg.Search.Provider), cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.Timeout)
	if err != nil {
		return err
	}
	fetcher, err := web_fetch.NewWebFetcher(
		web_fetch.FetcherType(cfg.Fetch.Provider), cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
	if err != nil {
		return err
	}

	resultCache, err := cache.NewFromConfig(cfg.Cache)
	if err != nil {
		return err
	}
	resultCache.OnHit = metrics.CacheHits.Inc
	resultCache.OnMiss = metrics.CacheMisses.Inc

	var arch research.Archiver
	if cfg.Archive.Enabled {
		if cfg.Archive.URL == "" {
			return fmt.Errorf("archive enabled but archive.url not configured")
		}
		if err := Migrate("file://migrations", cfg.Archive.URL, "up", 0); err != nil {
			return fmt.Errorf("archive migrations: %w", err)
		}
		a, err := archive.New(ctx, cfg.Archive.URL, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		arch = a
	}

	jobStore := store.New()
	engine := research.NewEngine(jobStore, resultCache, searcher, fetcher, llm, arch, nil, research.Options{
		SearchTimeout: cfg.Search.Timeout,
		FetchTimeout:  cfg.Fetch.Timeout,
		LLMTimeout:    cfg.LLM.Timeout,
		MaxResults:    cfg.Search.MaxResults,
	})
	engine.OnCompleted = metrics.JobCompleted
	engine.OnFailed = metrics.JobFailed

	pool := worker.NewPool(cfg.Worker.PoolSize, engine, nil)
	limiter := qa.NewLimiter(jobStore, llm, cfg.LLM.Timeout, nil)

	e.GET("/healthz", func(c echo.Context) error {
		status := "ok"
		if !llm.Healthy(c.Request().Context()) {
			status = "degraded"
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status": status,
			"model":  cfg.LLM.Model,
		})
	})

	api := e.Group("/api")
	jh := &JobsHandler{Store: jobStore, Pool: pool, Limiter: limiter, Metrics: metrics}
	jh.Register(api)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
