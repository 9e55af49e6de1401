package utils

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"encrypted_match/models"
	"encrypted_match/mxe"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port                  string
	AWSRegion             string
	SessionStore          string
	MatchSessionsTable    string
	ReceiptsBucket        string
	MXESecret             []byte
	ParticipantKey        []byte
	EngineWorkers         int
	EngineQueueSize       int
	FinalizePolicy        string
	StaleComputationAfter time.Duration
	MonitorInterval       time.Duration
	AllowedOrigins        []string
}

// LoadConfig reads Config with getenv (os.Getenv in production).
func LoadConfig(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:               get("PORT", "8080"),
		AWSRegion:          get("AWS_REGION", "us-east-1"),
		SessionStore:       get("SESSION_STORE", StoreDynamoDB),
		MatchSessionsTable: get("MATCH_SESSIONS_TABLE", models.MatchSessionsTable),
		ReceiptsBucket:     get("RECEIPTS_BUCKET", ""),
		FinalizePolicy:     get("FINALIZE_POLICY", models.FinalizeWhenDecided),
	}

	switch cfg.SessionStore {
	case StoreDynamoDB, StoreMemory:
	default:
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreDynamoDB, StoreMemory, cfg.SessionStore)
	}
	switch cfg.FinalizePolicy {
	case models.FinalizeWhenDecided, models.FinalizeAlways:
	default:
		return nil, fmt.Errorf("FINALIZE_POLICY must be %q or %q, got %q", models.FinalizeWhenDecided, models.FinalizeAlways, cfg.FinalizePolicy)
	}

	var err error
	if cfg.MXESecret, err = hexKey(get("MXE_SECRET", ""), "MXE_SECRET", mxe.KeySize); err != nil {
		return nil, err
	}
	if len(cfg.MXESecret) != mxe.KeySize {
		return nil, fmt.Errorf("MXE_SECRET must be exactly %d bytes", mxe.KeySize)
	}
	if cfg.ParticipantKey, err = hexKey(get("PARTICIPANT_KEY", ""), "PARTICIPANT_KEY", 16); err != nil {
		return nil, err
	}
	if cfg.EngineWorkers, err = positiveInt(get("ENGINE_WORKERS", "4"), "ENGINE_WORKERS"); err != nil {
		return nil, err
	}
	if cfg.EngineQueueSize, err = positiveInt(get("ENGINE_QUEUE_SIZE", "256"), "ENGINE_QUEUE_SIZE"); err != nil {
		return nil, err
	}
	if cfg.StaleComputationAfter, err = positiveDuration(get("STALE_COMPUTATION_AFTER", "2m"), "STALE_COMPUTATION_AFTER"); err != nil {
		return nil, err
	}
	if cfg.MonitorInterval, err = positiveDuration(get("MONITOR_INTERVAL", "1m"), "MONITOR_INTERVAL"); err != nil {
		return nil, err
	}

	origins := get("ALLOWED_ORIGINS", "")
	if origins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS not set, allowing all origins")
		origins = "*"
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg, nil
}

func hexKey(v, name string, minLen int) ([]byte, error) {
	if v == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	key, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be hex encoded: %w", name, err)
	}
	if len(key) < minLen {
		return nil, fmt.Errorf("%s must be at least %d bytes", name, minLen)
	}
	return key, nil
}

func positiveInt(v, name string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, v)
	}
	return n, nil
}

func positiveDuration(v, name string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", name, v)
	}
	return d, nil
}
