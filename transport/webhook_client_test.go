package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestWebhookClient_PostsBodyAndHeaders(t *testing.T) {
	var gotBody, gotHeader, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotHeader = r.Header.Get("X-Community-Event")
		gotMethod = r.Method
		w.Header().Add("X-Reply", "a")
		w.Header().Add("X-Reply", "b")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewWebhookClient(server.Client())
	res, err := client.Do(context.Background(), core.TransportRequest{
		URL:     server.URL + "/hook",
		Headers: map[string]string{"X-Community-Event": "user.created"},
		Body:    []byte(`{"id":"evt"}`),
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected default POST, got %s", gotMethod)
	}
	if gotBody != `{"id":"evt"}` || gotHeader != "user.created" {
		t.Fatalf("unexpected request body=%q header=%q", gotBody, gotHeader)
	}
	if res.StatusCode != http.StatusAccepted || string(res.Body) != `{"ok":true}` {
		t.Fatalf("unexpected response %+v", res)
	}
	if res.Headers["X-Reply"] != "a,b" {
		t.Fatalf("expected flattened headers, got %q", res.Headers["X-Reply"])
	}
}

func TestWebhookClient_TruncatesOversizedResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	client := NewWebhookClient(server.Client())
	res, err := client.Do(context.Background(), core.TransportRequest{URL: server.URL, MaxBodyLen: 4})
	if err != nil {
		t.Fatalf("expected oversized body to be truncated, got %v", err)
	}
	if res.StatusCode != http.StatusOK || string(res.Body) != "1234" || !res.Truncated {
		t.Fatalf("unexpected response %+v", res)
	}

	res, err = NewWebhookClient(server.Client(), WithResponseBodyLimit(16)).Do(context.Background(), core.TransportRequest{URL: server.URL})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if string(res.Body) != "12345" || res.Truncated {
		t.Fatalf("expected full body under the client limit, got %+v", res)
	}
}

func TestWebhookClient_DefaultHeadersYieldToRequestHeaders(t *testing.T) {
	var agent, source string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		source = r.Header.Get("X-Community-Source")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.Client(),
		WithDefaultHeader("user-agent", "community/test"),
		WithDefaultHeader("x-community-source", "guild"),
	)
	if _, err := client.Do(context.Background(), core.TransportRequest{
		URL:     server.URL,
		Headers: map[string]string{"User-Agent": "community-webhooks/1"},
	}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if agent != "community-webhooks/1" {
		t.Fatalf("expected request header to win, got %q", agent)
	}
	if source != "guild" {
		t.Fatalf("expected default header, got %q", source)
	}
}

func TestWebhookClient_TimeoutIsExternal(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	_, err := NewWebhookClient(server.Client()).Do(context.Background(), core.TransportRequest{
		URL:     server.URL,
		Timeout: 20 * time.Millisecond,
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external error, got %v", err)
	}
	if rich.TextCode != core.ErrorDeliveryFailed || rich.Code != http.StatusBadGateway {
		t.Fatalf("unexpected error envelope %+v", rich)
	}
	if rich.Metadata["timeout"] != true {
		t.Fatalf("expected timeout metadata, got %#v", rich.Metadata)
	}
}

func TestWebhookClient_InvalidURLIsBadInput(t *testing.T) {
	client := NewWebhookClient(nil)
	for _, raw := range []string{"", "ftp://example.com", "/relative", "http://%zz"} {
		_, err := client.Do(context.Background(), core.TransportRequest{URL: raw})
		if !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
			t.Fatalf("%q: expected bad input, got %v", raw, err)
		}
	}
}

func TestWebhookClient_UnreachableIsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewWebhookClient(nil).Do(context.Background(), core.TransportRequest{URL: url, Timeout: time.Second})
	if !goerrors.IsCategory(err, goerrors.CategoryExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}
