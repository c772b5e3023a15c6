package nylas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/singularitybridge/sb-api-services-v2-sub008/actions"
	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

const defaultBaseURL = "https://api.us.nylas.com"

const defaultRequestTimeout = 30 * time.Second

const (
	ActionListMessages = "nylas.messages.list"
	ActionListEvents   = "nylas.events.list"
	ActionListContacts = "nylas.contacts.list"
	ActionGetGrant     = "nylas.grants.get"
)

// Provider wraps the Nylas v3 API behind action executors. Each action is a
// direct mapping onto one vendor endpoint; the runner normalizes outcomes.
type Provider struct {
	Transport core.TransportAdapter
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
}

func NewProvider(adapter core.TransportAdapter, apiKey string) *Provider {
	return &Provider{
		Transport: adapter,
		BaseURL:   defaultBaseURL,
		APIKey:    strings.TrimSpace(apiKey),
		Timeout:   defaultRequestTimeout,
	}
}

// RegisterActions binds every Nylas action onto the registry.
func (p *Provider) RegisterActions(registry *actions.Registry) error {
	if p == nil || registry == nil {
		return providerInternal("providers/nylas: provider and registry are required")
	}
	bindings := map[string]string{
		ActionListMessages: "/v3/grants/%s/messages",
		ActionListEvents:   "/v3/grants/%s/events",
		ActionListContacts: "/v3/grants/%s/contacts",
		ActionGetGrant:     "/v3/grants/%s",
	}
	for name, pathTemplate := range bindings {
		executor := actions.ExecutorFunc{
			ActionName: name,
			Run:        p.grantScopedCall(pathTemplate),
		}
		if err := registry.Register(executor); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) grantScopedCall(pathTemplate string) func(context.Context, actions.Request) (map[string]any, error) {
	return func(ctx context.Context, req actions.Request) (map[string]any, error) {
		grantID := strings.TrimSpace(req.GrantID)
		if grantID == "" {
			return nil, goerrors.New(
				"providers/nylas: grant id is required",
				goerrors.CategoryBadInput,
			).WithCode(http.StatusBadRequest).WithTextCode(core.ServiceErrorBadInput)
		}
		return p.call(ctx, fmt.Sprintf(pathTemplate, grantID), req.Parameters)
	}
}

func (p *Provider) call(ctx context.Context, path string, parameters map[string]any) (map[string]any, error) {
	if p == nil || p.Transport == nil {
		return nil, providerInternal("providers/nylas: transport adapter is required")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, goerrors.New(
			"providers/nylas: api key is required",
			goerrors.CategoryAuth,
		).WithCode(http.StatusUnauthorized).WithTextCode(core.ServiceErrorInvalidSignature)
	}

	query := map[string]string{}
	for key, value := range parameters {
		if strings.TrimSpace(key) == "" {
			continue
		}
		query[key] = strings.TrimSpace(fmt.Sprint(value))
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	res, err := p.Transport.Do(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    p.baseURL() + path,
		Headers: map[string]string{
			"Authorization": "Bearer " + p.APIKey,
			"Accept":        "application/json",
		},
		Query:   query,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, goerrors.New(
			fmt.Sprintf("providers/nylas: api returned status %d", res.StatusCode),
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorOperationFailed).
			WithMetadata(map[string]any{"status_code": res.StatusCode})
	}

	var decoded map[string]any
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &decoded); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "providers/nylas: decode api response").
				WithCode(http.StatusBadGateway).
				WithTextCode(core.ServiceErrorOperationFailed)
		}
	}
	return decoded, nil
}

func (p *Provider) baseURL() string {
	base := strings.TrimSpace(p.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	return strings.TrimSuffix(base, "/")
}

func providerInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal)
}
