package tts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultEndpoint is the xfyun streaming TTS websocket endpoint.
const DefaultEndpoint = "wss://tts-api.xfyun.cn/v2/tts"

// SignedTarget is a connection URL authorized for a single session.
type SignedTarget struct {
	URL           string
	Authorization string // base64 authorization descriptor
	Date          string // HTTP-date used in the signature
	Host          string
}

// Sign builds the authorized connection URL for endpoint. The result depends
// only on its inputs, so the same credentials and time always yield the same URL.
func Sign(endpoint string, creds Credentials, now time.Time) (SignedTarget, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return SignedTarget{}, fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Host == "" {
		return SignedTarget{}, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}

	date := now.UTC().Format(http.TimeFormat)
	requestLine := "GET " + u.EscapedPath() + " HTTP/1.1"
	sig := signature(u.Host, date, requestLine, creds.APISecret)

	descriptor := fmt.Sprintf(`api_key="%s", algorithm="hmac-sha256", headers="host date request-line", signature="%s"`,
		creds.APIKey, sig)
	authorization := base64.StdEncoding.EncodeToString([]byte(descriptor))

	q := url.Values{}
	q.Set("authorization", authorization)
	q.Set("date", date)
	q.Set("host", u.Host)
	u.RawQuery = q.Encode()

	return SignedTarget{
		URL:           u.String(),
		Authorization: authorization,
		Date:          date,
		Host:          u.Host,
	}, nil
}

// signature returns base64(HMAC-SHA256(secret, "host: ...\ndate: ...\n<request line>")).
func signature(host, date, requestLine, secret string) string {
	canonical := "host: " + host + "\ndate: " + date + "\n" + requestLine
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
