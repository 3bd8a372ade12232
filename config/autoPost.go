package config

import (
	"os"
	"strconv"
	"strings"
)

// TrustConfig carries the auto-post tunables. Defaults match production
// behavior; each value can be overridden via env for staged rollouts.
//
// - AUTO_POST_TRUST_THRESHOLD: posted documents required before a vendor
//   becomes eligible (per-vendor override lives on the vendor profile).
// - AUTO_POST_CONFIDENCE_MIN: minimum parse confidence for auto-posting.
// - ANOMALY_HISTORY_DAYS / ANOMALY_HISTORY_LIMIT: trailing window used as
//   the anomaly baseline.
type TrustConfig struct {
	DefaultTrustThreshold int
	ConfidenceMin         float64
	HistoryDays           int
	HistoryLimit          int
}

func GetTrustConfig() TrustConfig {
	return TrustConfig{
		DefaultTrustThreshold: intFromEnv("AUTO_POST_TRUST_THRESHOLD", 5),
		ConfidenceMin:         floatFromEnv("AUTO_POST_CONFIDENCE_MIN", 0.85),
		HistoryDays:           intFromEnv("ANOMALY_HISTORY_DAYS", 30),
		HistoryLimit:          intFromEnv("ANOMALY_HISTORY_LIMIT", 200),
	}
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
