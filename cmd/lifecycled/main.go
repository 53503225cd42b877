package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shoreagents/lifecycle-engine/internal/api"
	"github.com/shoreagents/lifecycle-engine/internal/breaks"
	"github.com/shoreagents/lifecycle-engine/internal/breaktimer"
	"github.com/shoreagents/lifecycle-engine/internal/cache"
	"github.com/shoreagents/lifecycle-engine/internal/config"
	"github.com/shoreagents/lifecycle-engine/internal/events"
	"github.com/shoreagents/lifecycle-engine/internal/meetings"
	"github.com/shoreagents/lifecycle-engine/internal/metrics"
	"github.com/shoreagents/lifecycle-engine/internal/notify"
	"github.com/shoreagents/lifecycle-engine/internal/store/postgres"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`lifecycled - agent dashboard lifecycle and notification engine

Usage:
  lifecycled <command>

Commands:
  serve      Start the lifecycle schedulers and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL                   PostgreSQL connection string (required)
  REDIS_ADDR                     Redis address for cache invalidation (optional)
  HTTP_ADDR                      HTTP server address (default: ":8080")
  SCHEDULERS                     Schedulers to run: "all" or comma list of
                                 meetings,events,breaks (default: "all")

  MEETING_START_INTERVAL         Meeting start-check cadence (default: "500ms")
  MEETING_REMINDER_INTERVAL      Meeting reminder cadence (default: "60s")
  MEETING_NOTIFICATION_INTERVAL  Meeting notification cadence (default: "2s")
  EVENT_CHECK_INTERVAL           Event check cadence (default: "5s")
  EVENT_TIMEZONE                 Canonical event timezone (default: "Asia/Manila")
  BREAK_CHECK_INTERVAL           Break reminder cadence (default: "30s")
  BREAK_DURATION                 Full break duration (default: "15m")

  DB_OP_TIMEOUT                  Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS              Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS              Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME           Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME          Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT          Graceful HTTP shutdown timeout (default: "10s")
  CACHE_INVALIDATE_CONCURRENCY   Parallel deletions per invalidation pass (default: "8")
  CACHE_BREAKER_THRESHOLD        Failed passes before skipping cache (default: "5", 0 disables)
  CACHE_BREAKER_COOLDOWN         Breaker open window (default: "2m")

  METRICS_ENABLED                Enable Prometheus metrics (default: "false")
  METRICS_PATH                   Metrics endpoint path (default: "/metrics")
  METRICS_PORT                   Metrics server port (default: "9090")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	location, err := time.LoadLocation(cfg.EventTimezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load timezone %s: %v\n", cfg.EventTimezone, err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("lifecycled: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db, cfg.DBOpTimeout)

	// Initialize metrics sink (optional)
	var metricsSink metrics.Sink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("lifecycled: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("lifecycled: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("lifecycled: metrics server error: %v", err)
			}
		}()
	} else {
		metricsSink = metrics.NewNoopSink()
		log.Println("lifecycled: METRICS_ENABLED not set; metrics disabled")
	}

	// Wire the cache if Redis is configured. Failure to reach Redis degrades
	// into skipped invalidation; it never fails the schedulers.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("lifecycled: cache invalidation enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("lifecycled: REDIS_ADDR not set; cache invalidation disabled")
	}

	breaker := cache.NewBreaker(cfg.CacheBreakerThreshold, cfg.CacheBreakerCooldown)
	invalidator := cache.NewInvalidator(redisClient, cfg.CacheInvalidateConcurrency).
		WithBreaker(breaker).
		WithMetrics(metricsSink)

	deduper := notify.NewDeduper(store).WithMetrics(metricsSink)

	// Break session projection store. Without Redis the sessions live in
	// process memory and do not survive a restart.
	reconciler := breaktimer.NewReconciler(cfg.BreakDuration)
	var sessionStore breaktimer.SessionStore
	if redisClient != nil {
		sessionStore = breaktimer.NewRedisSessionStore(redisClient)
	} else {
		sessionStore = breaktimer.NewMemorySessionStore()
		log.Println("lifecycled: REDIS_ADDR not set; break sessions held in memory only")
	}
	breakController := breaktimer.NewController(sessionStore, reconciler)

	// Start the selected schedulers, each with its own context so shutdown
	// can be ordered.
	type runningScheduler struct {
		name   string
		cancel context.CancelFunc
		wg     *sync.WaitGroup
	}
	var running []runningScheduler

	start := func(name string, run func(ctx context.Context)) {
		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
		running = append(running, runningScheduler{name: name, cancel: cancel, wg: wg})
	}

	if cfg.RunsScheduler(config.SchedulerMeetings) {
		sched := meetings.New(
			meetings.Config{
				StartInterval:        cfg.MeetingStartInterval,
				ReminderInterval:     cfg.MeetingReminderInterval,
				NotificationInterval: cfg.MeetingNotificationInterval,
			},
			store,
			invalidator,
		).WithMetrics(metricsSink)
		start("meetings", sched.Run)
	}

	if cfg.RunsScheduler(config.SchedulerEvents) {
		sched := events.New(
			events.Config{
				CheckInterval: cfg.EventCheckInterval,
				Location:      location,
			},
			store,
			deduper,
		).WithMetrics(metricsSink)
		start("events", sched.Run)
	}

	if cfg.RunsScheduler(config.SchedulerBreaks) {
		sched := breaks.New(
			breaks.Config{CheckInterval: cfg.BreakCheckInterval},
			store,
		).WithMetrics(metricsSink)
		start("breaks", sched.Run)
	}

	if len(running) == 0 {
		fmt.Fprintln(os.Stderr, "no schedulers selected")
		return exitInvalidConfig
	}

	// Start HTTP server with the API handler
	apiHandler := api.NewHandler(breakController).WithHealthChecker(db)
	if redisClient != nil {
		apiHandler = apiHandler.WithCacheChecker(redisClient)
	}
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("lifecycled: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("lifecycled: http server error: %v", err)
		}
	}()

	log.Printf("lifecycled: started (schedulers=%v, http=%s, tz=%s)",
		cfg.Schedulers, cfg.HTTPAddr, cfg.EventTimezone)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("lifecycled: received signal %v, shutting down", received)

	// Phase 1: Stop schedulers. Each poller lets an in-flight transition
	// finish before returning, so nothing is aborted mid-commit.
	for _, rs := range running {
		log.Printf("lifecycled: stopping %s scheduler...", rs.name)
		rs.cancel()
		rs.wg.Wait()
		log.Printf("lifecycled: %s scheduler stopped", rs.name)
	}

	// Phase 2: Stop HTTP server with graceful shutdown
	log.Println("lifecycled: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("lifecycled: http server shutdown error: %v", err)
	}
	log.Println("lifecycled: http server stopped")

	// Phase 3: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("lifecycled: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("lifecycled: metrics server shutdown error: %v", err)
		}
		log.Println("lifecycled: metrics server stopped")
	}

	// Phase 4: Close the cache connection exactly once
	if redisClient != nil {
		log.Println("lifecycled: closing cache connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("lifecycled: cache close error: %v", err)
		}
	}

	log.Println("lifecycled: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("lifecycled version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
