// Package webhook signs and delivers calendar notifications to user-configured URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SignatureHeader carries hex(sha256(body + secret)).
const SignatureHeader = "X-Webhook-Signature"

// Signature is the digest a receiver recomputes from the raw body and the shared secret.
func Signature(body []byte, secret string) string {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// Encode serializes content the way it goes on the wire.
func Encode(content any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(content); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Dispatcher POSTs webhook payloads. Delivery is fire-and-forget: failures are
// logged, never returned and never retried.
type Dispatcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

func NewDispatcher(timeout time.Duration, userAgent string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

func (d *Dispatcher) Send(ctx context.Context, url string, content any, secret string) {
	body, err := Encode(content)
	if err != nil {
		d.logger.Error("webhook payload encoding failed", zap.String("url", url), zap.Error(err))
		return
	}
	if err := d.post(ctx, url, body, secret); err != nil {
		d.logger.Warn("webhook delivery failed", zap.String("url", url), zap.Error(err))
		return
	}
	d.logger.Debug("webhook delivered", zap.String("url", url), zap.Int("bytes", len(body)))
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte, secret string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if secret != "" {
		req.Header.Set(SignatureHeader, Signature(body, secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("receiver returned status %d", resp.StatusCode)
	}
	return nil
}
