// Package storage contains the content host backends the relay forwards
// uploads to. A backend receives an already-validated, repo-relative path and
// base64 content and answers with a GitHub-shaped response the relay passes
// through verbatim.
package storage

import (
	"context"
	"errors"
)

// PutOptions define optional parameters for an upload.
type PutOptions struct {
	Message string
}

// Response is the content host answer as it should reach the browser.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ContentHost is a remote file host reachable with a server-side credential.
type ContentHost interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Configured reports whether the credential needed to reach the host is present.
	Configured() bool
	// Put creates the file at path. A non-nil error means the host could not be
	// reached; host rejections are returned as a Response with their status.
	Put(ctx context.Context, path, content string, opt PutOptions) (Response, error)
}

// ErrNotConfigured is returned by Put when the backend has no credential.
var ErrNotConfigured = errors.New("content host credential is not configured")
