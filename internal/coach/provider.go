package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/plugin"
)

// Provider generates coaching text for one request.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrUnsupported is returned by providers that have no text for a code.
var ErrUnsupported = errors.New("provider does not support error code")

// generatorReply is the JSON reply shared by remote generators and plugins.
type generatorReply struct {
	Success  bool   `json:"success"`
	Feedback string `json:"feedback"`
	Error    string `json:"error,omitempty"`
}

// HTTPProvider asks a remote text generator for coaching lines.
type HTTPProvider struct {
	URL    string
	Client *http.Client
}

// NewHTTPProvider creates a provider posting to url with the given timeout.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return "remote" }

// Generate implements Provider.
func (p *HTTPProvider) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(map[string]string{
		"sign":       req.Sign,
		"error_code": req.ErrorCode,
		"user_id":    req.UserID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var reply generatorReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if !reply.Success {
		return "", fmt.Errorf("generator failed: %s", reply.Error)
	}
	return reply.Feedback, nil
}

// PluginProvider runs a local coaching plugin.
type PluginProvider struct {
	manager  *plugin.Manager
	executor *plugin.Executor
	name     string
}

// NewPluginProvider creates a provider running the plugin called name.
func NewPluginProvider(manager *plugin.Manager, executor *plugin.Executor, name string) *PluginProvider {
	return &PluginProvider{manager: manager, executor: executor, name: name}
}

// Name implements Provider.
func (p *PluginProvider) Name() string { return "plugin:" + p.name }

// Generate implements Provider.
func (p *PluginProvider) Generate(ctx context.Context, req Request) (string, error) {
	plug, err := p.manager.Get(p.name)
	if err != nil {
		return "", fmt.Errorf("plugin %s: %w", p.name, err)
	}
	if !plug.Supports(req.ErrorCode) {
		return "", fmt.Errorf("plugin %s: %w: %s", p.name, ErrUnsupported, req.ErrorCode)
	}

	resp, err := p.executor.Execute(ctx, plug, &plugin.Request{
		Sign:      req.Sign,
		ErrorCode: req.ErrorCode,
		UserID:    req.UserID,
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("plugin %s failed: %s", p.name, resp.Error)
	}
	return resp.Feedback, nil
}
