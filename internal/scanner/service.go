// Package scanner wires the fetch scheduler, indicator computation, alert
// evaluation, and notification delivery into one long-running service.
package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"market-scannerv1/config"
	"market-scannerv1/internal/alert"
	"market-scannerv1/internal/api"
	"market-scannerv1/internal/marketdata"
	"market-scannerv1/internal/metrics"
	"market-scannerv1/internal/model"
	"market-scannerv1/internal/notification"
	"market-scannerv1/internal/queue"
	"market-scannerv1/internal/scheduler"
	redisstore "market-scannerv1/internal/store/redis"
	sqlitestore "market-scannerv1/internal/store/sqlite"
)

const dispatchInterval = time.Second

// Service is the top-level orchestrator. It owns the scan loop, the alert
// pipeline, the notification dispatcher, and state persistence.
type Service struct {
	cfg    *config.Config
	params Params

	symbols    []string
	timeframes []string

	candles  marketdata.CandleSource
	oi       marketdata.OpenInterestSource
	sched    *scheduler.Scheduler
	state    *alert.DedupState
	eval     *alert.Evaluator
	notifyQ  *queue.Queue
	localLog *queue.Log
	notifier notification.Notifier
	batcher  *DisplayBatcher

	redis    *redisstore.Store
	buffered *redisstore.BufferedStore
	sqlite   *sqlitestore.Store
	prom     *metrics.Metrics
	health   *metrics.HealthStatus

	sqliteCh chan model.Notification
}

// New builds the service from config: connects Redis and SQLite, picks the
// candle provider, restores dedup state.
func New(cfg *config.Config) (*Service, error) {
	params := ParamsFromConfig(cfg)
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("scanner params: %w", err)
	}

	svc := &Service{
		cfg:        cfg,
		params:     params,
		symbols:    cfg.ParseSymbols(),
		timeframes: cfg.ParseTimeframes(),
		state:      alert.NewDedupState(),
		prom:       metrics.NewMetrics(),
		health:     metrics.NewHealthStatus(),
		sqliteCh:   make(chan model.Notification, 256),
	}
	if len(svc.symbols) == 0 || len(svc.timeframes) == 0 {
		return nil, fmt.Errorf("scanner: empty symbol or timeframe universe")
	}

	svc.sched = scheduler.New(scheduler.Config{
		ChunkSize:  cfg.ChunkSize,
		ChunkDelay: time.Duration(cfg.ChunkDelayMs) * time.Millisecond,
	})

	// Bybit serves open interest regardless of the candle provider.
	bybit := marketdata.NewBybit(cfg.BybitBaseURL)
	svc.oi = bybit
	switch cfg.Provider {
	case "bybit":
		svc.candles = bybit
	case "mexc":
		svc.candles = marketdata.NewMEXC(cfg.MEXCBaseURL)
	default:
		return nil, fmt.Errorf("scanner: unknown candle provider %q", cfg.Provider)
	}

	conditions := alert.DefaultConditions()
	conditions.RSIOverbought = cfg.RSIOverbought
	conditions.RSIOversold = cfg.RSIOversold
	conditions.OISurgePct = cfg.OISurgePct
	svc.eval = alert.NewEvaluator(conditions, svc.state)

	svc.notifyQ = queue.New(svc.timeframes)
	svc.localLog = queue.NewLog(cfg.NotificationCap)
	svc.notifier = buildNotifier(cfg)

	var err error
	svc.redis, err = redisstore.New(redisstore.Config{
		Addr:            cfg.RedisAddr,
		Password:        cfg.RedisPassword,
		DB:              cfg.RedisDB,
		NotificationCap: int64(cfg.NotificationCap),
	})
	if err != nil {
		return nil, err
	}

	os.MkdirAll("data", 0o755)
	svc.sqlite, err = sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[scanner] WARNING: sqlite init failed: %v (continuing without history)", err)
		svc.sqlite = nil
	}

	svc.health.SetSymbolCount(len(svc.symbols))
	return svc, nil
}

// buildNotifier assembles the sink stack from config. With no external
// sink configured, alerts go to the process log.
func buildNotifier(cfg *config.Config) notification.Notifier {
	var sinks notification.Multi
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notification.NewDiscordNotifier(cfg.DiscordWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(sinks) == 0 {
		return notification.NewLogNotifier()
	}
	return sinks
}

// Run starts all loops and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	log.Println("[scanner] starting market scanner...")

	svc.restoreDedupState(ctx)
	svc.wireCircuitBreaker(ctx)
	svc.batcher = NewDisplayBatcher(svc.redis)

	if svc.sqlite != nil {
		go svc.sqlite.Run(ctx, svc.sqliteCh)
	}
	go svc.scanLoop(ctx)
	go svc.dispatchLoop(ctx)
	go svc.persistLoop(ctx)
	if svc.cfg.WSEnabled {
		go svc.tickerLoop(ctx)
	}

	promSrv := metrics.NewServer(svc.cfg.MetricsAddr, svc.health)
	promSrv.Start()
	svc.health.StartLivenessChecker(ctx, svc.redis.Client(), sqliteDB(svc.sqlite), 15*time.Second)

	apiSrv := &http.Server{
		Addr:    svc.cfg.APIAddr,
		Handler: api.NewRouter(api.Deps{History: historyBackend{svc}, Clearer: clearBackend{svc}}),
	}
	go func() {
		log.Printf("[scanner] api listening on %s", svc.cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[scanner] api server: %v", err)
		}
	}()

	log.Printf("[scanner] scanning %d symbols × %d timeframes every %ds (chunk=%d, delay=%dms)",
		len(svc.symbols), len(svc.timeframes), svc.cfg.RefreshIntervalS, svc.cfg.ChunkSize, svc.cfg.ChunkDelayMs)

	<-ctx.Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	apiSrv.Shutdown(shutCtx)
	promSrv.Stop(shutCtx)
	svc.shutdown(shutCtx)
	return nil
}

// restoreDedupState loads the dedup blob from Redis, falling back to the
// newest SQLite snapshot. A corrupt blob degrades to an empty state.
func (svc *Service) restoreDedupState(ctx context.Context) {
	blob, err := svc.redis.LoadDedupState(ctx)
	if err != nil {
		log.Printf("[scanner] redis dedup load: %v", err)
	}
	if blob == nil && svc.sqlite != nil {
		blob, err = svc.sqlite.LatestDedupSnapshot()
		if err != nil {
			log.Printf("[scanner] sqlite dedup load: %v", err)
		}
	}
	if blob == nil {
		log.Println("[scanner] no dedup state found, starting clean")
		return
	}
	if err := svc.state.Load(blob); err != nil {
		log.Printf("[scanner] WARNING: dedup state corrupt, starting clean: %v", err)
		return
	}
	log.Printf("[scanner] restored dedup state (%d keys)", svc.state.Len())
}

func (svc *Service) wireCircuitBreaker(ctx context.Context) {
	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		log.Printf("[scanner] redis circuit breaker: %s → %s", from, to)
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
	}
	svc.buffered = redisstore.NewBufferedStore(ctx, svc.redis, cb, 1000)
	svc.buffered.OnBuffer = svc.prom.RedisBufferedWrites.Inc
}

// scanLoop runs one full scan immediately, then on the refresh interval.
func (svc *Service) scanLoop(ctx context.Context) {
	svc.scanOnce(ctx)
	ticker := time.NewTicker(time.Duration(svc.cfg.RefreshIntervalS) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.scanOnce(ctx)
		}
	}
}

// scanOnce walks every timeframe's symbol universe through the scheduler,
// evaluates alerts sequentially over the results, and persists snapshots.
func (svc *Service) scanOnce(ctx context.Context) {
	start := time.Now()
	total := len(svc.symbols) * len(svc.timeframes)
	done := 0

	for _, tf := range svc.timeframes {
		if ctx.Err() != nil {
			return
		}
		snaps := svc.sched.Run(ctx, svc.symbols, svc.fetchFunc(tf), func(chunkDone, chunkTotal int, partial []*model.SymbolSnapshot) {
			svc.batcher.PublishProgress(ctx, done+chunkDone, total)
		})
		done += len(snaps)

		// Alert evaluation is sequential: the dedup map is shared and the
		// volume is trivial next to the fetch cost.
		for _, snap := range snaps {
			for _, n := range svc.eval.Evaluate(snap) {
				svc.prom.AlertsFired.WithLabelValues(string(n.Type)).Inc()
				svc.notifyQ.Enqueue(n)
				svc.persistNotification(n)
			}
			if err := svc.buffered.SaveSnapshot(snap); err != nil {
				log.Printf("[scanner] snapshot save %s: %v", snap.Key(), err)
			}
			svc.prom.SymbolsScanned.Inc()
		}
		svc.prom.QueueDepth.Set(float64(svc.notifyQ.Pending()))
	}

	svc.prom.ScansTotal.Inc()
	svc.prom.ScanDuration.Observe(time.Since(start).Seconds())
	svc.health.SetLastScanTime(time.Now())
	log.Printf("[scanner] scan complete: %d/%d pairs in %v", done, total, time.Since(start).Round(time.Millisecond))
}

// fetchFunc builds the per-symbol closure the scheduler runs: fetch
// candles, compute indicators, attach OI change where available.
func (svc *Service) fetchFunc(tf string) scheduler.FetchFunc {
	return func(ctx context.Context, symbol string) (*model.SymbolSnapshot, error) {
		candles, err := svc.candles.FetchCandles(ctx, symbol, tf, svc.cfg.CandleLimit)
		if err != nil {
			svc.prom.FetchFailures.WithLabelValues(svc.cfg.Provider).Inc()
			return nil, err
		}

		computeStart := time.Now()
		snap := ComputeSnapshot(symbol, tf, candles, svc.params)
		svc.prom.IndicatorComputeDur.Observe(time.Since(computeStart).Seconds())

		// OI is optional: short history or a failed fetch only omits the
		// field, the snapshot still stands.
		if points, err := svc.oi.FetchOpenInterestHistory(ctx, symbol, "1h", 50); err == nil {
			snap.OIChangePct = OIChangePct(points, time.Now())
		}
		return snap, nil
	}
}

// dispatchLoop drains the notification queue through the single active
// slot, one delivery per tick.
func (svc *Service) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, ok := svc.notifyQ.DequeueNext()
			if !ok {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := svc.notifier.Send(sendCtx, n); err != nil {
				svc.prom.NotifyFailures.WithLabelValues("primary").Inc()
				log.Printf("[scanner] notify %s: %v", n.ID, err)
			}
			cancel()
			svc.localLog.Append(n)
			svc.notifyQ.Release()
			svc.prom.QueueDepth.Set(float64(svc.notifyQ.Pending()))
		}
	}
}

// persistNotification pushes one alert to Redis (capped log + display
// pubsub) and queues it for the SQLite history writer.
func (svc *Service) persistNotification(n model.Notification) {
	if err := svc.buffered.AppendNotification(n); err != nil {
		log.Printf("[scanner] persist notification %s: %v", n.ID, err)
	}
	if svc.sqlite != nil {
		select {
		case svc.sqliteCh <- n:
		default:
			log.Printf("[scanner] sqlite channel full, dropping history write %s", n.ID)
		}
	}
}

// persistLoop checkpoints the dedup state on an interval.
func (svc *Service) persistLoop(ctx context.Context) {
	interval := time.Duration(svc.cfg.StateSaveIntervalS) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.saveDedupState()
		}
	}
}

func (svc *Service) saveDedupState() {
	blob, err := svc.state.JSON()
	if err != nil {
		log.Printf("[scanner] dedup serialize: %v", err)
		return
	}
	if err := svc.buffered.SaveDedupState(blob); err != nil {
		log.Printf("[scanner] dedup save to redis: %v", err)
	}
	if svc.sqlite != nil {
		if err := svc.sqlite.SaveDedupSnapshot(blob); err != nil {
			log.Printf("[scanner] dedup snapshot to sqlite: %v", err)
		}
	}
}

// tickerLoop feeds live prices from the websocket stream into the display
// batcher.
func (svc *Service) tickerLoop(ctx context.Context) {
	stream := marketdata.NewTickerStream(svc.cfg.WSURL, svc.symbols)
	stream.OnReconnect = func() {
		svc.prom.WSReconnects.Inc()
		svc.health.SetWSConnected(false)
	}
	tickers := make(chan marketdata.Ticker, 256)

	go func() {
		svc.health.SetWSConnected(true)
		stream.Start(ctx, tickers)
	}()
	svc.batcher.Run(ctx, tickers)
}

// shutdown saves the final dedup state and closes connections.
func (svc *Service) shutdown(ctx context.Context) {
	log.Println("[scanner] shutdown signal received, saving final state...")
	svc.saveDedupState()
	if svc.sqlite != nil {
		svc.sqlite.Close()
	}
	svc.redis.Close()
	log.Println("[scanner] shutdown complete.")
}

// historyBackend serves the API's read path: SQLite when available,
// otherwise the Redis capped log.
type historyBackend struct{ svc *Service }

func (h historyBackend) History(ctx context.Context, symbol string, limit int) ([]model.Notification, error) {
	if h.svc.sqlite != nil {
		return h.svc.sqlite.History(ctx, symbol, limit)
	}
	items, err := h.svc.redis.RecentNotifications(ctx, int64(limit))
	if err != nil || symbol == "" {
		return items, err
	}
	out := items[:0]
	for _, n := range items {
		if n.Symbol == symbol {
			out = append(out, n)
		}
	}
	return out, nil
}

func (h historyBackend) MarkRead(ctx context.Context, id string) error {
	h.svc.localLog.MarkRead(id)
	if h.svc.sqlite == nil {
		return nil
	}
	return h.svc.sqlite.MarkRead(ctx, id)
}

// clearBackend wipes the notification log everywhere it lives, plus the
// dedup state so cleared alerts can fire again.
type clearBackend struct{ svc *Service }

func (c clearBackend) ClearAll(ctx context.Context) error {
	c.svc.state.Clear()
	c.svc.localLog.Clear()
	if err := c.svc.redis.ClearNotifications(ctx); err != nil {
		return err
	}
	c.svc.saveDedupState()
	return nil
}

func sqliteDB(s *sqlitestore.Store) *sql.DB {
	if s == nil {
		return nil
	}
	return s.DB()
}
