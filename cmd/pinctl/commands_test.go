package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pinworld/internal/config"
	"pinworld/internal/model"
	"pinworld/internal/repository/memory"
	"pinworld/internal/session"
)

func useMemory(t *testing.T) *memory.Collection {
	t.Helper()
	coll := memory.NewCollection()
	orig := openBackend
	openBackend = func(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*backend, error) {
		return &backend{pins: coll, changes: coll, close: func() {}}, nil
	}
	t.Cleanup(func() { openBackend = orig })
	return coll
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{Pins: config.PinsConfig{Backend: config.PinsMemory}}
}

func TestRun_AddUpdateDelete(t *testing.T) {
	coll := useMemory(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"add", "-data", `{"title":"Pier","id":"ignored"}`}, &out, testConfig(), zap.NewNop()))
	id := strings.TrimSpace(out.String())
	require.NotEmpty(t, id)
	assert.NotEqual(t, "ignored", id)

	require.NoError(t, run(ctx, []string{"update", "-id", id, "-data", `{"title":"Pier 39"}`}, &out, testConfig(), zap.NewNop()))
	pins, _ := coll.List(ctx)
	require.Len(t, pins, 1)
	assert.Equal(t, "Pier 39", pins[0].Fields["title"])
	assert.NotEmpty(t, pins[0].UpdatedAt)

	require.NoError(t, run(ctx, []string{"delete", "-id", id}, &out, testConfig(), zap.NewNop()))
	pins, _ = coll.List(ctx)
	assert.Empty(t, pins)
}

func TestRun_Watch(t *testing.T) {
	coll := useMemory(t)
	_, err := coll.Insert(context.Background(), model.Fields{"title": "x"}, "2024-01-01T00:00:00.000Z")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"watch"}, &out, testConfig(), zap.NewNop()))

	line, _, _ := strings.Cut(out.String(), "\n")
	var pins []model.Pin
	require.NoError(t, json.Unmarshal([]byte(line), &pins))
	require.Len(t, pins, 1)
	assert.Equal(t, "x", pins[0].Fields["title"])
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(context.Background(), nil, &out, testConfig(), zap.NewNop()), errUsage)
	assert.Contains(t, out.String(), "usage: pinctl")

	useMemory(t)
	err := run(context.Background(), []string{"frobnicate"}, &out, testConfig(), zap.NewNop())
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_BadData(t *testing.T) {
	useMemory(t)
	var out bytes.Buffer
	err := run(context.Background(), []string{"add", "-data", `[1,2]`}, &out, testConfig(), zap.NewNop())
	assert.ErrorContains(t, err, "-data must be a JSON object")
}

func TestRun_LoginNeedsPostgres(t *testing.T) {
	useMemory(t)
	var out bytes.Buffer
	err := run(context.Background(), []string{"login", "-email", "a@b.c", "-password", "pw"}, &out, testConfig(), zap.NewNop())
	assert.ErrorContains(t, err, "needs PINS_BACKEND=postgres")
}

func TestRun_Whoami(t *testing.T) {
	cfg := testConfig()
	cfg.Session = config.SessionConfig{Secret: "0123456789abcdef0123", TTL: time.Hour}

	ts, err := session.NewTokenService(cfg.Session.Secret, cfg.Session.TTL)
	require.NoError(t, err)
	token, err := ts.Issue(&model.Identity{UserID: "u1", Email: "ann@example.com"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"whoami", "-token", token}, &out, cfg, zap.NewNop()))
	var id model.Identity
	require.NoError(t, json.Unmarshal(out.Bytes(), &id))
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "ann@example.com", id.Email)

	err = run(context.Background(), []string{"whoami", "-token", "bogus"}, &out, cfg, zap.NewNop())
	assert.ErrorIs(t, err, session.ErrInvalidToken)

	err = run(context.Background(), []string{"whoami", "-token", token}, &out, testConfig(), zap.NewNop())
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestRun_Upload(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.UploadRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]string{"path": req.Path}})
	}))
	defer relay.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(file, []byte("jpeg"), 0o600))

	cfg := testConfig()
	cfg.Upload = config.UploadConfig{
		RelayURL:  relay.URL,
		ImagePath: "uploads/images",
		Timeout:   5 * time.Second,
		Repo:      "acme/site",
		Branch:    "main",
		RawURL:    "https://raw.githubusercontent.com",
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"upload", file}, &out, cfg, zap.NewNop()))
	assert.Regexp(t, `^https://raw\.githubusercontent\.com/acme/site/main/uploads/images/\d+-[0-9a-z]{6}\.jpg\n$`, out.String())

	err := run(context.Background(), []string{"upload"}, &out, cfg, zap.NewNop())
	assert.True(t, errors.Is(err, errUsage))
}
