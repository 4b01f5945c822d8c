package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
)

// Converter turns one single-page PDF into Markdown.
type Converter interface {
	Convert(ctx context.Context, pagePath string) (string, error)
	Name() string
}

// DoclingConverter posts pages to a docling-serve instance with full-page
// OCR forced.
type DoclingConverter struct {
	baseURL  string
	language string
	client   *http.Client
}

// NewDoclingConverter creates a converter for the docling-serve API at baseURL.
func NewDoclingConverter(baseURL, language string, timeout time.Duration) *DoclingConverter {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if language == "" {
		language = "por"
	}
	return &DoclingConverter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *DoclingConverter) Name() string { return "docling" }

// Check reports whether docling-serve answers its health endpoint.
func (c *DoclingConverter) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("docling unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("docling health returned %d", resp.StatusCode)
	}
	return nil
}

type doclingResponse struct {
	Document struct {
		MDContent string `json:"md_content"`
	} `json:"document"`
	Status string `json:"status"`
	Errors []any  `json:"errors"`
}

func (c *DoclingConverter) Convert(ctx context.Context, pagePath string) (string, error) {
	const op = "document.DoclingConverter"

	body, contentType, err := c.form(pagePath)
	if err != nil {
		return "", errs.E(errs.ConversionError, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/convert/file", body)
	if err != nil {
		return "", errs.E(errs.ConversionError, op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errs.E(errs.ConversionError, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.E(errs.ConversionError, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.Ef(errs.ConversionError, op,
			fmt.Sprintf("%s: status %d: %s", filepath.Base(pagePath), resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var out doclingResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errs.E(errs.ConversionError, op, fmt.Errorf("decode response: %w", err))
	}
	if out.Status != "" && out.Status != "success" && out.Status != "partial_success" {
		return "", errs.Ef(errs.ConversionError, op,
			fmt.Sprintf("%s: conversion status %q: %v", filepath.Base(pagePath), out.Status, out.Errors))
	}
	return out.Document.MDContent, nil
}

func (c *DoclingConverter) form(pagePath string) (io.Reader, string, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", filepath.Base(pagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"to_formats", "md"},
		{"do_ocr", "true"},
		{"force_ocr", "true"},
		{"ocr_engine", "tesseract_cli"},
		{"ocr_lang", c.language},
		{"do_table_structure", "true"},
		{"image_export_mode", "placeholder"},
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// TesseractConverter rasterizes a page with pdftoppm and runs tesseract on
// the image. The recognized text is returned as plain Markdown paragraphs.
type TesseractConverter struct {
	Language string
	DPI      int
	// Pdftoppm and Tesseract override the binary names.
	Pdftoppm  string
	Tesseract string
}

func NewTesseractConverter(language string, dpi int) *TesseractConverter {
	if language == "" {
		language = "por"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &TesseractConverter{Language: language, DPI: dpi, Pdftoppm: "pdftoppm", Tesseract: "tesseract"}
}

func (c *TesseractConverter) Name() string { return "tesseract" }

// Check reports whether both binaries are on PATH.
func (c *TesseractConverter) Check(context.Context) error {
	for _, bin := range []string{c.Pdftoppm, c.Tesseract} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

func (c *TesseractConverter) Convert(ctx context.Context, pagePath string) (string, error) {
	const op = "document.TesseractConverter"

	tmp, err := os.MkdirTemp("", "ingestor-ocr-*")
	if err != nil {
		return "", errs.E(errs.ConversionError, op, err)
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	render := exec.CommandContext(ctx, c.Pdftoppm, "-r", strconv.Itoa(c.DPI), "-png", "-singlefile", pagePath, prefix)
	if out, err := render.CombinedOutput(); err != nil {
		return "", errs.E(errs.ConversionError, op, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out))))
	}

	var stdout, stderr bytes.Buffer
	ocr := exec.CommandContext(ctx, c.Tesseract, prefix+".png", "stdout", "-l", c.Language)
	ocr.Stdout = &stdout
	ocr.Stderr = &stderr
	if err := ocr.Run(); err != nil {
		return "", errs.E(errs.ConversionError, op, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return textToMarkdown(stdout.String()), nil
}

// textToMarkdown joins wrapped OCR lines into paragraphs separated by blank
// lines.
func textToMarkdown(text string) string {
	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\f", ""))
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return strings.Join(paragraphs, "\n\n")
}

var (
	_ Converter = (*DoclingConverter)(nil)
	_ Converter = (*TesseractConverter)(nil)
)
