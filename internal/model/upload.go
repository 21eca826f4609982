package model

import (
	"strings"

	"pinworld/internal/apperror"
)

// UploadRequest is the relay request body. It exists only for one relay call.
type UploadRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message,omitempty"`
}

// UploadResult is the part of the content host response the upload client reads.
type UploadResult struct {
	Content struct {
		Name        string `json:"name"`
		Path        string `json:"path"`
		SHA         string `json:"sha"`
		DownloadURL string `json:"download_url"`
	} `json:"content"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Normalize strips a data-URI prefix from Content and checks the required
// fields. Path must be repo-relative.
func (r *UploadRequest) Normalize() error {
	r.Path = strings.TrimSpace(r.Path)
	r.Content = StripDataURIPrefix(strings.TrimSpace(r.Content))

	if r.Path == "" || r.Content == "" {
		return apperror.Validation("path", "missing path or content")
	}
	if strings.HasPrefix(r.Path, "/") {
		return apperror.Validation("path", "path must be relative to the repository root")
	}
	for _, seg := range strings.Split(r.Path, "/") {
		if seg == ".." || seg == "" {
			return apperror.Validation("path", "path contains an invalid segment")
		}
	}
	return nil
}

// StripDataURIPrefix turns "data:image/png;base64,AAAA" into "AAAA".
// Raw base64 is returned unchanged.
func StripDataURIPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}
