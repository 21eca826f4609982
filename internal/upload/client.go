// Package upload sends local image files to the relay and turns each stored
// file into its public raw-content URL.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"pinworld/internal/apperror"
	"pinworld/internal/config"
	"pinworld/internal/model"
)

// TimeoutMessage is what UploadError reports after a timed-out upload.
const TimeoutMessage = "upload timed out, check your network"

// File is one local file to upload.
type File struct {
	Name    string
	Content io.Reader
}

// Client uploads through the relay. The zero value is not usable; call New.
type Client struct {
	cfg  config.UploadConfig
	http *http.Client
	log  *zap.Logger
	now  func() time.Time
	rand io.Reader

	mu      sync.Mutex
	active  int
	lastErr string
}

// New returns a client for the relay in cfg. A nil httpClient gets a traced
// default; the per-upload bound comes from cfg.Timeout either way.
func New(cfg config.UploadConfig, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.Named("upload"),
		now:  time.Now,
	}
}

// Uploading reports whether an upload is in flight.
func (c *Client) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active > 0
}

// UploadError is the message of the last failed upload, empty after a success.
func (c *Client) UploadError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) begin() {
	c.mu.Lock()
	c.active++
	c.lastErr = ""
	c.mu.Unlock()
}

func (c *Client) end(err error) {
	c.mu.Lock()
	c.active--
	if err != nil {
		if errors.Is(err, apperror.ErrTimeout) {
			c.lastErr = TimeoutMessage
		} else {
			c.lastErr = err.Error()
		}
	}
	c.mu.Unlock()
}

// UploadImage stores f under the configured image path with a generated name
// and returns its public URL. The whole call, file read included, is bounded
// by the configured timeout.
func (c *Client) UploadImage(ctx context.Context, f File) (url string, err error) {
	c.begin()
	defer func() { c.end(err) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url, err = c.upload(ctx, f)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.log.Error("upload_timeout", zap.String("file", f.Name), zap.Duration("timeout", c.cfg.Timeout))
		return "", fmt.Errorf("%s: %w", f.Name, apperror.ErrTimeout)
	}
	if err != nil {
		c.log.Error("upload_failed", zap.String("file", f.Name), zap.Error(err))
		return "", err
	}
	return url, nil
}

// UploadImages uploads files one at a time, in order. On the first failure it
// returns the URLs gathered so far together with the error; later files are
// not attempted.
func (c *Client) UploadImages(ctx context.Context, files []File) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := c.UploadImage(ctx, f)
		if err != nil {
			return urls, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (c *Client) upload(ctx context.Context, f File) (string, error) {
	if f.Content == nil {
		return "", apperror.Validation("content", "file content is required")
	}
	name, err := FileName(f.Name, c.now(), c.rand)
	if err != nil {
		return "", err
	}

	raw, err := readAll(ctx, f.Content)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}

	path := strings.Trim(c.cfg.ImagePath, "/") + "/" + name
	payload, err := json.Marshal(model.UploadRequest{
		Path:    path,
		Content: base64.StdEncoding.EncodeToString(raw),
		Message: fmt.Sprintf("upload %s via PinWorld", name),
	})
	if err != nil {
		return "", fmt.Errorf("encode upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.cfg.RelayURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
	}

	c.log.Info("upload_start", zap.String("path", path), zap.Int("bytes", len(raw)))
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read relay response: %w", err)
	}

	var result model.UploadResult
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := result.Message
		if msg == "" {
			msg = result.Error
		}
		if msg == "" {
			msg = "upload failed"
		}
		return "", &apperror.UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	stored := path
	if result.Content.Path != "" {
		stored = result.Content.Path
	}
	c.log.Info("upload_success", zap.String("path", stored))
	return c.publicURL(stored), nil
}

func (c *Client) publicURL(path string) string {
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(c.cfg.RawURL, "/"), c.cfg.Repo, c.cfg.Branch, path)
}

// readAll reads r but gives up when ctx ends.
func readAll(ctx context.Context, r io.Reader) ([]byte, error) {
	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(r)
		ch <- result{b, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.b, res.err
	}
}
