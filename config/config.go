package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Universe
	Symbols    string // comma-separated, e.g. "BTCUSDT,ETHUSDT"
	Timeframes string // comma-separated, e.g. "15m,1h,4h,1d"

	// Fetch pacing
	ChunkSize        int
	ChunkDelayMs     int
	CandleLimit      int
	RefreshIntervalS int

	// Provider selection: "mexc" or "bybit". Base URLs are overridable for
	// mirrors and tests.
	Provider     string
	MEXCBaseURL  string
	BybitBaseURL string

	// Live ticker stream (display path)
	WSEnabled bool
	WSURL     string

	// Indicator parameters
	RSILength           int
	StochRSILength      int
	StochLength         int
	StochKSmooth        int
	StochDSmooth        int
	TrailDataLength     int
	TrailDistLength     int
	TrailHeikinAshi     bool
	SupertrendPeriod    int
	SupertrendMult      float64
	ChannelDist         int
	ChannelThresholdPct float64
	ChannelEntryMode    string
	ChannelSLBufferPct  float64
	ProfileResolution   int
	PivotLookback       int

	// Alert thresholds
	RSIOverbought float64
	RSIOversold   float64
	OISurgePct    float64

	// Infrastructure
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	SQLitePath         string
	MetricsAddr        string
	APIAddr            string
	NotificationCap    int
	StateSaveIntervalS int

	// Alert sinks (empty disables the sink)
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Symbols:    getEnv("SCAN_SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT,BNBUSDT,XRPUSDT"),
		Timeframes: getEnv("SCAN_TIMEFRAMES", "15m,1h,4h,1d"),

		ChunkSize:        getEnvInt("FETCH_CHUNK_SIZE", 5),
		ChunkDelayMs:     getEnvInt("FETCH_CHUNK_DELAY_MS", 800),
		CandleLimit:      getEnvInt("FETCH_CANDLE_LIMIT", 500),
		RefreshIntervalS: getEnvInt("REFRESH_INTERVAL_S", 120),

		Provider:     getEnv("CANDLE_PROVIDER", "mexc"),
		MEXCBaseURL:  getEnv("MEXC_BASE_URL", ""),
		BybitBaseURL: getEnv("BYBIT_BASE_URL", ""),

		WSEnabled: getEnvBool("WS_ENABLED", true),
		WSURL:     getEnv("WS_URL", ""),

		RSILength:           getEnvInt("RSI_LENGTH", 14),
		StochRSILength:      getEnvInt("STOCH_RSI_LENGTH", 14),
		StochLength:         getEnvInt("STOCH_LENGTH", 14),
		StochKSmooth:        getEnvInt("STOCH_K_SMOOTH", 3),
		StochDSmooth:        getEnvInt("STOCH_D_SMOOTH", 3),
		TrailDataLength:     getEnvInt("TRAIL_DATA_LENGTH", 2),
		TrailDistLength:     getEnvInt("TRAIL_DIST_LENGTH", 20),
		TrailHeikinAshi:     getEnvBool("TRAIL_HEIKIN_ASHI", false),
		SupertrendPeriod:    getEnvInt("SUPERTREND_PERIOD", 10),
		SupertrendMult:      getEnvFloat("SUPERTREND_MULT", 1.0),
		ChannelDist:         getEnvInt("CHANNEL_DIST", 30),
		ChannelThresholdPct: getEnvFloat("CHANNEL_THRESHOLD_PCT", 1.0),
		ChannelEntryMode:    getEnv("CHANNEL_ENTRY_MODE", "plain"),
		ChannelSLBufferPct:  getEnvFloat("CHANNEL_SL_BUFFER_PCT", 2.0),
		ProfileResolution:   getEnvInt("PROFILE_RESOLUTION", 100),
		PivotLookback:       getEnvInt("PIVOT_LOOKBACK", 10),

		RSIOverbought: getEnvFloat("RSI_OVERBOUGHT", 70),
		RSIOversold:   getEnvFloat("RSI_OVERSOLD", 30),
		OISurgePct:    getEnvFloat("OI_SURGE_PCT", 5),

		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		SQLitePath:         getEnv("SQLITE_PATH", "data/scanner.db"),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
		APIAddr:            getEnv("API_ADDR", ":8080"),
		NotificationCap:    getEnvInt("NOTIFICATION_CAP", 500),
		StateSaveIntervalS: getEnvInt("STATE_SAVE_INTERVAL_S", 60),

		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// ParseSymbols splits the symbol universe, dropping empty entries.
func (c *Config) ParseSymbols() []string {
	return splitList(c.Symbols)
}

// ParseTimeframes splits the timeframe list in configured order.
func (c *Config) ParseTimeframes() []string {
	return splitList(c.Timeframes)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
