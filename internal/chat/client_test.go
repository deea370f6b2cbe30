package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	calls int32
}

func (s *staticTokens) AccessToken(context.Context, string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.token, nil
}

func baseURL(u string) BaseURLFunc {
	return func(context.Context) (string, error) { return u, nil }
}

// countingTransport records round trips and delegates to next.
type countingTransport struct {
	calls int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.next.RoundTrip(r)
}

func TestEncodeQuery(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"empty", nil, ""},
		{"scalars only", map[string]any{"b": 2, "a": "x y"}, "a=x+y&b=2"},
		{
			"arrays first",
			map[string]any{"limit": 10, "types": []string{"a", "b"}},
			"types[]=a&types[]=b&limit=10",
		},
		{
			"arrays sorted by key and escaped",
			map[string]any{"z": []int64{1}, "ids": []string{"a&b", "c"}, "q": true},
			"ids[]=a%26b&ids[]=c&z[]=1&q=true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeQuery(tt.params))
		})
	}
}

func TestDo_BadMethodMakesNoCalls(t *testing.T) {
	tokens := &staticTokens{token: "tok"}
	transport := &countingTransport{next: http.DefaultTransport}
	c := NewClient(tokens, baseURL("http://127.0.0.1:1/"), WithHTTPClient(&http.Client{Transport: transport}))

	for _, m := range []string{"PATCH", "HEAD", "", "CONNECT"} {
		_, err := c.Do(context.Background(), Request{UserID: "alice", Method: m, Endpoint: "x"})
		assert.ErrorIs(t, err, chaterr.ErrBadHTTPMethod)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&transport.calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&tokens.calls))
}

func TestDo_GetSendsAuthAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "chatshare-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "/api/channels", r.URL.Path)
		assert.Equal(t, "ids[]=1&ids[]=2&page=0", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "tok"}
	c := NewClient(tokens, baseURL(srv.URL+"/api/"), WithUserAgent("chatshare-test"))
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSON(context.Background(), Request{
		UserID:   "alice",
		Method:   "get",
		Endpoint: "channels",
		Params:   map[string]any{"ids": []int{1, 2}, "page": 0},
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.calls))
}

func TestDo_BodyModes(t *testing.T) {
	var gotQuery, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotQuery, gotType, gotBody = r.URL.RawQuery, r.Header.Get("Content-Type"), string(b)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := NewClient(&staticTokens{token: "tok"}, baseURL(srv.URL+"/"))
	ctx := context.Background()

	_, err := c.Do(ctx, Request{
		UserID: "alice", Method: http.MethodPost, Endpoint: "files",
		Params: map[string]any{"channel_id": "C1", "filename": "a b.txt"},
		Body:   strings.NewReader("raw-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "channel_id=C1&filename=a+b.txt", gotQuery)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, "raw-bytes", gotBody)

	_, err = c.Do(ctx, Request{
		UserID: "alice", Method: http.MethodPut, Endpoint: "posts",
		JSON: map[string]string{"message": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", gotType)
	assert.JSONEq(t, `{"message":"hi"}`, gotBody)

	_, err = c.Do(ctx, Request{
		UserID: "alice", Method: http.MethodDelete, Endpoint: "x",
		Params: map[string]any{"a": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, "a=1", gotBody)
}

func TestDo_ErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	ctx := context.Background()

	c := NewClient(&staticTokens{token: "tok"}, baseURL(srv.URL+"/"))
	_, err := c.Do(ctx, Request{UserID: "alice", Method: http.MethodGet, Endpoint: "x"})
	assert.ErrorIs(t, err, chaterr.ErrBadCredentials)

	c = NewClient(&staticTokens{token: "tok"}, baseURL("http://127.0.0.1:1/"))
	_, err = c.Do(ctx, Request{UserID: "alice", Method: http.MethodGet, Endpoint: "x"})
	assert.ErrorIs(t, err, chaterr.ErrTransport)
	assert.NotEmpty(t, chaterr.Message(err))

	transport := &countingTransport{next: http.DefaultTransport}
	c = NewClient(&staticTokens{}, baseURL(srv.URL+"/"), WithHTTPClient(&http.Client{Transport: transport}))
	_, err = c.Do(ctx, Request{UserID: "alice", Method: http.MethodGet, Endpoint: "x"})
	assert.ErrorIs(t, err, chaterr.ErrBadCredentials)
	assert.Equal(t, int32(0), atomic.LoadInt32(&transport.calls))
}
