package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
)

const maxTokenResponse = 1 << 20

// Exchanger talks to a platform token endpoint with client credentials.
type Exchanger struct {
	client    *http.Client
	userAgent string
	shape     ResponseShape
	logger    *zap.Logger
}

func NewExchanger(client *http.Client, userAgent string, shape ResponseShape, logger *zap.Logger) *Exchanger {
	return &Exchanger{client: client, userAgent: userAgent, shape: shape, logger: logger}
}

// Exchange posts params to endpointURL (form body for POST, query string for GET)
// and extracts the tokens with the configured response shape. Only a
// User-Agent header is sent.
func (e *Exchanger) Exchange(ctx context.Context, endpointURL string, params url.Values, method string) (*models.TokenSet, error) {
	var (
		req *http.Request
		err error
	)
	switch strings.ToUpper(method) {
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case http.MethodGet:
		target := endpointURL
		if len(params) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	default:
		return nil, fmt.Errorf("%w: %s", chaterr.ErrBadHTTPMethod, method)
	}
	if err != nil {
		return nil, chaterr.NewTransport(err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, chaterr.NewTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, chaterr.NewTransport(err)
	}
	if resp.StatusCode >= 400 {
		e.logger.Warn("token endpoint refused exchange",
			zap.String("grant_type", params.Get("grant_type")),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", chaterr.ErrOAuthTokenRefused, resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var decoded map[string]any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed token response", chaterr.ErrOAuthTokenRefused)
	}
	tok, err := e.shape.Extract(decoded)
	if err != nil {
		e.logger.Warn("token response carried no access token", zap.String("grant_type", params.Get("grant_type")))
		return nil, err
	}
	return tok, nil
}
