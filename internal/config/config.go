package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Europe/Kyiv on hosts without a zoneinfo database

	"github.com/joho/godotenv"
)

type Config struct {
	Env                 string
	RequestsBotToken    string
	MaintenanceBotToken string
	DBPath              string
	GazetteerPath       string
	AliasesPath         string
	DistrictsPath       string
	HTTPAddr            string
	CORSOrigins         []string
	Location            *time.Location
	GeocoderURL         string
	GeocoderTimeout     time.Duration
	OCRURL              string
	OCRTimeout          time.Duration
	SessionTTL          time.Duration
	DigestAt            string // HH:MM local time
	SendRate            float64
}

// Load reads the environment, optionally seeded from a .env file, and
// checks what the service needs to run.
func Load() (*Config, error) {
	cfg, err := LoadOffline()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOffline reads the environment without requiring bot tokens. The
// maintenance commands use it.
func LoadOffline() (*Config, error) {
	_ = godotenv.Load()

	tzName := getEnv("TIMEZONE", "Europe/Kyiv")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "production"),
		RequestsBotToken:    getEnv("REQUESTS_BOT_TOKEN", ""),
		MaintenanceBotToken: getEnv("MAINTENANCE_BOT_TOKEN", ""),
		DBPath:              getEnv("DB_PATH", "./data/fieldbot.db"),
		GazetteerPath:       getEnv("GAZETTEER_PATH", "./data/addresses.json"),
		AliasesPath:         getEnv("ALIASES_PATH", ""),
		DistrictsPath:       getEnv("DISTRICTS_PATH", "./data/districts.yaml"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "*")),
		Location:            loc,
		GeocoderURL:         getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/reverse"),
		GeocoderTimeout:     mustDuration(getEnv("GEOCODER_TIMEOUT", "10s"), 10*time.Second),
		OCRURL:              getEnv("OCR_URL", ""),
		OCRTimeout:          mustDuration(getEnv("OCR_TIMEOUT", "30s"), 30*time.Second),
		SessionTTL:          mustDuration(getEnv("SESSION_TTL", "6h"), 6*time.Hour),
		DigestAt:            getEnv("DIGEST_AT", "08:30"),
		SendRate:            mustFloat(getEnv("SEND_RATE", "25"), 25),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RequestsBotToken == "" && c.MaintenanceBotToken == "" {
		return fmt.Errorf("at least one of REQUESTS_BOT_TOKEN, MAINTENANCE_BOT_TOKEN is required")
	}
	if c.MaintenanceBotToken != "" && c.OCRURL == "" {
		return fmt.Errorf("OCR_URL is required when MAINTENANCE_BOT_TOKEN is set")
	}
	if _, _, err := ParseClock(c.DigestAt); err != nil {
		return fmt.Errorf("invalid DIGEST_AT: %w", err)
	}
	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
