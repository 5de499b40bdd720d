package app

import (
	"os"
	"strconv"
	"time"

	"github.com/lukasbauer/xftts/internal/tts"
)

type Config struct {
	HTTPAddr string

	// Error monitoring
	SentryDSN   string
	Environment string

	// xfyun synthesis settings. Credentials are read per request, not here.
	XFEndpoint string
	XFVoice    string
	XFSpeed    int // 0-100
	XFVolume   int // 0-100
	XFPitch    int // 0-100
	TTSTimeout time.Duration

	// Vendor rate limit in sessions per second, 0 disables it.
	TTSRateLimit float64
	TTSRateBurst int
}

func LoadConfigFromEnv() Config {
	timeout, err := time.ParseDuration(getenv("TTS_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		timeout = tts.DefaultTimeout
	}

	return Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		SentryDSN:   getenv("SENTRY_DSN", ""),
		Environment: getenv("ENVIRONMENT", "development"),

		XFEndpoint: getenv("XF_ENDPOINT", tts.DefaultEndpoint),
		XFVoice:    getenv("XF_VOICE", tts.DefaultVoice),
		XFSpeed:    getenvIntClamped("XF_SPEED", tts.DefaultLevel, 0, 100),
		XFVolume:   getenvIntClamped("XF_VOLUME", tts.DefaultLevel, 0, 100),
		XFPitch:    getenvIntClamped("XF_PITCH", tts.DefaultLevel, 0, 100),
		TTSTimeout: timeout,

		TTSRateLimit: getenvFloatClamped("TTS_RATE_LIMIT", 0, 0, 1000),
		TTSRateBurst: getenvIntClamped("TTS_RATE_BURST", 1, 1, 1000),
	}
}

// Business returns the synthesis parameters with the configured voice and levels.
func (c Config) Business() tts.Business {
	b := tts.DefaultBusiness()
	b.Vcn = c.XFVoice
	b.Speed = c.XFSpeed
	b.Volume = c.XFVolume
	b.Pitch = c.XFPitch
	return b
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped parses an int env var, falling back to def when unset or invalid.
func getenvIntClamped(k string, def, min, max int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func getenvFloatClamped(k string, def, min, max float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
