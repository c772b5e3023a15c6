package nylas

import (
	"context"
	"net/http"
	"sort"
	"testing"

	"github.com/singularitybridge/sb-api-services-v2-sub008/actions"
	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

type fakeTransport struct {
	lastRequest core.TransportRequest
	response    core.TransportResponse
	err         error
}

func (f *fakeTransport) Kind() string { return "fake" }

func (f *fakeTransport) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	f.lastRequest = req
	if f.err != nil {
		return core.TransportResponse{}, f.err
	}
	return f.response, nil
}

func TestProviderRegisterActions(t *testing.T) {
	registry := actions.NewRegistry()
	provider := NewProvider(&fakeTransport{}, "key-1")

	if err := provider.RegisterActions(registry); err != nil {
		t.Fatalf("RegisterActions returned error: %v", err)
	}

	names := registry.Names()
	sort.Strings(names)
	want := []string{
		ActionListContacts,
		ActionListEvents,
		ActionGetGrant,
		ActionListMessages,
	}
	sort.Strings(want)
	if len(names) != len(want) {
		t.Fatalf("expected %d actions, got %d: %v", len(want), len(names), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("action %d: expected %q, got %q", i, want[i], names[i])
		}
	}
}

func TestProviderListMessages(t *testing.T) {
	transport := &fakeTransport{
		response: core.TransportResponse{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"data": [{"id": "m1"}], "next_cursor": "abc"}`),
		},
	}
	registry := actions.NewRegistry()
	provider := NewProvider(transport, "key-1")
	if err := provider.RegisterActions(registry); err != nil {
		t.Fatalf("RegisterActions returned error: %v", err)
	}

	executor, ok := registry.Resolve(ActionListMessages)
	if !ok {
		t.Fatal("expected messages executor")
	}
	data, err := executor.Execute(context.Background(), actions.Request{
		Action:  ActionListMessages,
		GrantID: "g1",
		Parameters: map[string]any{
			"limit": 5,
		},
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if data["next_cursor"] != "abc" {
		t.Errorf("expected decoded cursor, got %v", data["next_cursor"])
	}

	req := transport.lastRequest
	if req.URL != "https://api.us.nylas.com/v3/grants/g1/messages" {
		t.Errorf("unexpected url %q", req.URL)
	}
	if req.Headers["Authorization"] != "Bearer key-1" {
		t.Errorf("expected bearer header, got %q", req.Headers["Authorization"])
	}
	if req.Query["limit"] != "5" {
		t.Errorf("expected limit query, got %q", req.Query["limit"])
	}
}

func TestProviderRequiresGrant(t *testing.T) {
	registry := actions.NewRegistry()
	provider := NewProvider(&fakeTransport{}, "key-1")
	if err := provider.RegisterActions(registry); err != nil {
		t.Fatalf("RegisterActions returned error: %v", err)
	}

	executor, _ := registry.Resolve(ActionListEvents)
	if _, err := executor.Execute(context.Background(), actions.Request{Action: ActionListEvents}); err == nil {
		t.Fatal("expected error for missing grant id")
	}
}

func TestProviderAPIFailure(t *testing.T) {
	transport := &fakeTransport{
		response: core.TransportResponse{StatusCode: http.StatusServiceUnavailable},
	}
	registry := actions.NewRegistry()
	provider := NewProvider(transport, "key-1")
	if err := provider.RegisterActions(registry); err != nil {
		t.Fatalf("RegisterActions returned error: %v", err)
	}

	executor, _ := registry.Resolve(ActionGetGrant)
	if _, err := executor.Execute(context.Background(), actions.Request{GrantID: "g1"}); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

func TestProviderMissingAPIKey(t *testing.T) {
	provider := NewProvider(&fakeTransport{}, "  ")
	if _, err := provider.call(context.Background(), "/v3/grants/g1", nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
