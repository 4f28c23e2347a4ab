package config

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Defaults keep extraction gentle on YouTube: two parallel fetchers unless
// the caller asks for more, capped at twice the CPU count.
const (
	DefaultWorkers = 2

	ExtractionQueueCapacity = 100
	ModelingQueueCapacity   = 100

	// HTTP rate limiting
	RequestsPerSecond = 100
	BurstSize         = 200

	// Client-side pacing of yt-dlp invocations.
	FetchesPerSecond = 2

	JobSnapshotTTL = 24 * time.Hour
)

type Config struct {
	Host string
	Port int

	DataDir     string
	DatabaseURL string
	RedisAddr   string

	YTDLPPath   string
	CookiesFile string

	DefaultWorkers int
	MaxWorkers     int
}

func Load() Config {
	cfg := Config{
		Host:           envStr("HOST", "127.0.0.1"),
		Port:           envInt("PORT", 4242),
		DataDir:        envStr("DATA_DIR", "data"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		YTDLPPath:      envStr("YTDLP_PATH", "yt-dlp"),
		CookiesFile:    envStr("COOKIES_FILE", "cookies.txt"),
		DefaultWorkers: envInt("EXTRACTION_WORKERS", DefaultWorkers),
		MaxWorkers:     MaxWorkers(),
	}
	if cfg.DefaultWorkers < 1 {
		cfg.DefaultWorkers = DefaultWorkers
	}
	return cfg
}

// MaxWorkers allows up to 2x CPU count for per-video fetch parallelism.
func MaxWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 4
	}
	return n * 2
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
