package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Quote providers (base URLs are overridable for tests and proxies)
	StockQuoteURL  string
	CryptoQuoteURL string

	// Remote sync
	SyncTimeout time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		StockQuoteURL:  getEnv("QUOTES_STOCK_URL", "https://query1.finance.yahoo.com/v7/finance/quote"),
		CryptoQuoteURL: getEnv("QUOTES_CRYPTO_URL", "https://api.coingecko.com/api/v3"),
	}

	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	syncStr := getEnv("SYNC_TIMEOUT", "10s")
	syncDur, err := time.ParseDuration(syncStr)
	if err != nil {
		log.Printf("Warning: invalid SYNC_TIMEOUT value '%s', falling back to 10s\n", syncStr)
		syncDur = 10 * time.Second
	}
	config.SyncTimeout = syncDur

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
