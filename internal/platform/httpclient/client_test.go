package httpclient

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get_sends_headers_and_cookies(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Options{
		UserAgent: "test-agent",
		Cookies:   "cf_clearance=abc; sessionid=xyz",
		Headers:   map[string]string{"Referer": "https://site.example.com/alice/"},
	})
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "test-agent", got.Get("User-Agent"))
	assert.Equal(t, "cf_clearance=abc; sessionid=xyz", got.Get("Cookie"))
	assert.Equal(t, "XMLHttpRequest", got.Get("X-Requested-With"))
	assert.Equal(t, "https://site.example.com/alice/", got.Get("Referer"))
}

func TestClient_Get_rejects_oversized_body(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/big" {
			w.Write([]byte("0123456789X"))
			return
		}
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	c := New(Options{MaxBodySize: 10})

	body, err := c.Get(context.Background(), srv.URL+"/exact")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(body))

	body, err = c.Get(context.Background(), srv.URL+"/big")
	require.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Nil(t, body)
}

func TestClient_Get_default_user_agent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
	}))
	defer srv.Close()

	_, err := New(Options{}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, ua)
}

func TestClient_Get_status_classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not_found", http.StatusNotFound, ErrNotFound},
		{"forbidden", http.StatusForbidden, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(Options{}).Get(context.Background(), srv.URL)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClient_Get_other_status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Options{}).Get(context.Background(), srv.URL)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestClient_Get_detects_interstitials(t *testing.T) {
	pages := map[string]error{
		"<html><title>Just a moment...</title></html>": ErrBlocked,
		"<html><h1>Verify your age</h1></html>":        ErrAgeVerification,
	}
	for page, want := range pages {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(page))
		}))
		_, err := New(Options{}).Get(context.Background(), srv.URL)
		assert.True(t, errors.Is(err, want), "page %q: got %v", page, err)
		srv.Close()
	}
}

func TestClient_Get_decompresses_gzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "gzip" {
			t.Errorf("expected transport to negotiate gzip, got %q", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte("#EXTM3U\n"))
		zw.Close()
	}))
	defer srv.Close()

	body, err := New(Options{}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(body))
}

func TestClient_Get_transport_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Options{}).Get(context.Background(), url)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
