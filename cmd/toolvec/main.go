package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/breaker"
	"github.com/kailas-cloud/toolvec/internal/cache"
	"github.com/kailas-cloud/toolvec/internal/config"
	dbRedis "github.com/kailas-cloud/toolvec/internal/db/redis"
	"github.com/kailas-cloud/toolvec/internal/domain"
	logpkg "github.com/kailas-cloud/toolvec/internal/logger"
	"github.com/kailas-cloud/toolvec/internal/metrics"
	vectorrepo "github.com/kailas-cloud/toolvec/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/toolvec/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/toolvec/internal/transport/openai"
	"github.com/kailas-cloud/toolvec/internal/usecase/dedup"
	searchuc "github.com/kailas-cloud/toolvec/internal/usecase/search"
	"github.com/kailas-cloud/toolvec/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting toolvec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Strings("vector_types", cfg.Search.VectorTypes),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register search metrics explicitly (no init())
	metrics.Register()

	// Vector indexes must exist before the first search
	if err := vectorrepo.EnsureIndexes(ctx, store, cfg.Search.VectorTypes, cfg.Embedding.Dimensions); err != nil {
		logger.Fatal("Failed to ensure vector indexes", zap.Error(err))
	}
	logger.Info("Vector indexes ready", zap.Strings("types", cfg.Search.VectorTypes))

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		User:       cfg.Embedding.User,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	embCache := cache.NewEmbeddingCache(cache.EmbeddingConfig{
		Capacity:          cfg.Cache.Embedding.Capacity,
		BaseTTL:           time.Duration(cfg.Cache.Embedding.BaseTTLSec) * time.Second,
		MinTTL:            time.Duration(cfg.Cache.Embedding.MinTTLSec) * time.Second,
		MaxTTL:            time.Duration(cfg.Cache.Embedding.MaxTTLSec) * time.Second,
		Policy:            cache.Policy(cfg.Cache.Embedding.Policy),
		Compression:       cfg.Cache.Embedding.Compression,
		CompressMinSize:   cfg.Cache.Embedding.CompressionMinSize,
		SemanticFallback:  cfg.Cache.Embedding.SemanticFallback,
		SemanticThreshold: cfg.Cache.Embedding.SemanticThreshold,
		CleanupInterval:   time.Duration(cfg.Cache.Embedding.CleanupIntervalSec) * time.Second,
	}, logger)
	defer embCache.Close()

	resCache := cache.NewResultCache(cache.ResultConfig{
		Capacity: cfg.Cache.Result.Capacity,
		TTL:      time.Duration(cfg.Cache.Result.TTLSec) * time.Second,
	})

	// RRF sums rank contributions, so duplicate groups keep score mass
	// only when merged scores add up. Raw-score strategies keep max.
	scoreMerge := dedup.ScoreMerge(cfg.Dedup.ScoreMerge)
	if scoreMerge == "" && domain.Strategy(cfg.Search.Strategy) != domain.StrategyWeighted {
		scoreMerge = dedup.MergeSum
	}
	deduper := dedup.New(dedup.Config{
		ContentThreshold: cfg.Dedup.ContentThreshold,
		FuzzyThreshold:   cfg.Dedup.FuzzyThreshold,
		ScoreMerge:       scoreMerge,
	}, logger)

	repo := vectorrepo.New(store)

	searchSvc := searchuc.New(searchuc.Config{
		VectorTypes:        cfg.Search.VectorTypes,
		Strategy:           domain.Strategy(cfg.Search.Strategy),
		RRFK:               cfg.Search.RRFK,
		TypeWeights:        cfg.Search.TypeWeights,
		PerTypeTimeout:     time.Duration(cfg.Search.PerTypeTimeoutMs) * time.Millisecond,
		MaxPerVector:       cfg.Search.MaxPerVector,
		DiversityThreshold: cfg.Search.DiversityThreshold,
		Breaker: breaker.Config{
			Threshold:    cfg.Breakers.Vector.Threshold,
			ResetTimeout: time.Duration(cfg.Breakers.Vector.ResetSec) * time.Second,
		},
		EmbedBreaker: breaker.Config{
			Threshold:    cfg.Breakers.Embedding.Threshold,
			ResetTimeout: time.Duration(cfg.Breakers.Embedding.ResetSec) * time.Second,
		},
	}, embedder, repo, deduper, embCache, resCache, logger)

	server := chiTransport.NewServer(searchSvc, embCache, resCache, store, embedder, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
