package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pinworld/internal/config"
)

const (
	githubAccept    = "application/vnd.github.v3+json"
	githubUserAgent = "PinWorld-Relay"
)

// GitHub writes files through the repository contents API.
type GitHub struct {
	cfg    config.GitHubConfig
	client *http.Client
}

// NewGitHub builds a backend for the configured repository. A nil client gets
// a traced default bounded by cfg.Timeout.
func NewGitHub(cfg config.GitHubConfig, client *http.Client) *GitHub {
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &GitHub{cfg: cfg, client: client}
}

func (g *GitHub) Name() string { return config.BackendGitHub }

func (g *GitHub) Configured() bool { return g.cfg.Token != "" }

type githubPutBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
}

func (g *GitHub) Put(ctx context.Context, path, content string, opt PutOptions) (Response, error) {
	if !g.Configured() {
		return Response{}, ErrNotConfigured
	}

	payload, err := json.Marshal(githubPutBody{
		Message: opt.Message,
		Content: content,
		Branch:  g.cfg.Branch,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode github request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", strings.TrimRight(g.cfg.APIURL, "/"), g.cfg.Repo, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Authorization", "token "+g.cfg.Token)
	req.Header.Set("Accept", githubAccept)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", githubUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read github response: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	return Response{StatusCode: resp.StatusCode, ContentType: ct, Body: body}, nil
}
