// Package bucket uploads the final Markdown of a document to an object
// storage pre-authenticated URL.
package bucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader puts a Markdown file into object storage.
type Uploader interface {
	Upload(ctx context.Context, path, pdfName string) (string, error)
}

// HTTPUploader PUTs files below a base URL, typically an OCI Object Storage
// pre-authenticated request ending in "/o/".
type HTTPUploader struct {
	baseURL string
	suffix  string
	client  *http.Client
}

// NewHTTPUploader creates an uploader. suffix tags the object name.
func NewHTTPUploader(baseURL, suffix string, timeout time.Duration) *HTTPUploader {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if suffix == "" {
		suffix = "docling"
	}
	return &HTTPUploader{
		baseURL: baseURL,
		suffix:  suffix,
		client:  &http.Client{Timeout: timeout},
	}
}

// ObjectURL is where the Markdown of pdfName is stored:
// <base>/<pdf_name>/<pdf_name>-<suffix>.md
func (u *HTTPUploader) ObjectURL(pdfName string) string {
	base := u.baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return fmt.Sprintf("%s%s/%s-%s.md", base, pdfName, pdfName, u.suffix)
}

// Upload sends path as the multipart field "file" and returns the object
// URL.
func (u *HTTPUploader) Upload(ctx context.Context, path, pdfName string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	url := u.ObjectURL(pdfName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", pdfName, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload %s: status %d", pdfName, resp.StatusCode)
	}
	return url, nil
}

var _ Uploader = (*HTTPUploader)(nil)
