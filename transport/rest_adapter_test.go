package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

type stubDoer struct {
	lastRequest *http.Request
	response    *http.Response
	err         error
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.lastRequest = req
	if d.err != nil {
		return nil, d.err
	}
	if d.response == nil {
		d.response = &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{}`)),
		}
	}
	return d.response, nil
}

func TestRESTAdapter_MergesHeadersAndQuery(t *testing.T) {
	doer := &stubDoer{}
	adapter := NewRESTAdapter(doer)
	adapter.DefaultHeaders = map[string]string{
		"Authorization": "Bearer token",
		"Accept":        "application/json",
	}

	res, err := adapter.Do(context.Background(), core.TransportRequest{
		URL: "https://api.us.nylas.com/v3/grants/g1/messages",
		Headers: map[string]string{
			"Accept": "application/vnd+json",
		},
		Query: map[string]string{"limit": "5"},
	})
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if doer.lastRequest.Method != http.MethodGet {
		t.Fatalf("expected default GET method, got %s", doer.lastRequest.Method)
	}
	if got := doer.lastRequest.Header.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("expected default header applied, got %q", got)
	}
	if got := doer.lastRequest.Header.Get("Accept"); got != "application/vnd+json" {
		t.Fatalf("expected request header to override default, got %q", got)
	}
	if got := doer.lastRequest.URL.Query().Get("limit"); got != "5" {
		t.Fatalf("expected query merged, got %q", got)
	}
}

func TestRESTAdapter_WrapsClientFailures(t *testing.T) {
	adapter := NewRESTAdapter(&stubDoer{err: errors.New("connection refused")})
	_, err := adapter.Do(context.Background(), core.TransportRequest{
		Method: http.MethodPost,
		URL:    "https://api.linear.app/graphql",
	})
	if err == nil {
		t.Fatalf("expected transport failure to surface")
	}
	if !strings.Contains(err.Error(), "execute http request") {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestRESTAdapter_EnforcesResponseBodyLimit(t *testing.T) {
	doer := &stubDoer{
		response: &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 64))),
		},
	}
	adapter := NewRESTAdapter(doer)
	adapter.MaxResponseBodyBytes = 16

	_, err := adapter.Do(context.Background(), core.TransportRequest{
		URL: "https://api.replicate.com/v1/predictions",
	})
	if err == nil {
		t.Fatalf("expected body limit violation")
	}
	if !strings.Contains(err.Error(), "exceeds limit") {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestRESTAdapter_RequiresURL(t *testing.T) {
	adapter := NewRESTAdapter(&stubDoer{})
	if _, err := adapter.Do(context.Background(), core.TransportRequest{}); err == nil {
		t.Fatalf("expected missing url to fail")
	}
}
