package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Client defines the interface for text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns the complete audio.
	// Audio is buffered in full; partial results are never returned.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

var (
	// ErrTimeout is returned when the vendor does not finish within the session timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrNoAudio is returned when the vendor reports success without sending audio.
	ErrNoAudio = errors.New("no audio data received")
	// ErrUnexpectedClose is returned when the vendor closes the connection before the final frame.
	ErrUnexpectedClose = errors.New("connection closed before synthesis finished")
)

// VendorError is a non-zero status code reported by xfyun.
type VendorError struct {
	Code    int
	Message string
	SID     string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("xfyun error: %s (code: %d)", e.Message, e.Code)
}

// Environment variable names holding the xfyun credentials.
const (
	EnvAppID     = "XF_APPID"
	EnvAPIKey    = "XF_API_KEY"
	EnvAPISecret = "XF_API_SECRET"
)

// Credentials identify the xfyun application.
type Credentials struct {
	AppID     string
	APIKey    string
	APISecret string
}

// CredentialsFromEnv reads the credentials from the process environment.
// It is called once per request so rotated secrets are picked up without a restart.
func CredentialsFromEnv() Credentials {
	return Credentials{
		AppID:     os.Getenv(EnvAppID),
		APIKey:    os.Getenv(EnvAPIKey),
		APISecret: os.Getenv(EnvAPISecret),
	}
}

// Complete reports whether all three values are set.
func (c Credentials) Complete() bool {
	return len(c.Missing()) == 0
}

// Missing returns the env var names of the absent values. Never the values themselves.
func (c Credentials) Missing() []string {
	var missing []string
	if c.AppID == "" {
		missing = append(missing, EnvAppID)
	}
	if c.APIKey == "" {
		missing = append(missing, EnvAPIKey)
	}
	if c.APISecret == "" {
		missing = append(missing, EnvAPISecret)
	}
	return missing
}
