package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"
)

// ResponseShape extracts a TokenSet from a decoded token endpoint response.
// The shape is fixed per platform when the exchanger is built.
type ResponseShape interface {
	Extract(body map[string]any) (*models.TokenSet, error)
}

// FlatShape reads the standard RFC 6749 layout with fields at the top level.
type FlatShape struct{}

func (FlatShape) Extract(body map[string]any) (*models.TokenSet, error) {
	return tokenFields(body)
}

// NestedShape reads the token fields from an object under Key
// (Slack puts user tokens under "authed_user").
type NestedShape struct {
	Key string
}

func (s NestedShape) Extract(body map[string]any) (*models.TokenSet, error) {
	nested, ok := body[s.Key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: response has no %q object", chaterr.ErrOAuthTokenRefused, s.Key)
	}
	return tokenFields(nested)
}

func tokenFields(m map[string]any) (*models.TokenSet, error) {
	tok := &models.TokenSet{
		AccessToken:  stringField(m["access_token"]),
		RefreshToken: stringField(m["refresh_token"]),
		RemoteUserID: stringField(m["id"]),
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no access token", chaterr.ErrOAuthTokenRefused)
	}
	if n, ok := int64Field(m["expires_in"]); ok && n > 0 {
		tok.ExpiresIn = n
	}
	return tok, nil
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}

// int64Field accepts a JSON number or a numeric string.
func int64Field(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
