package api

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JoaoPedroMBiofy/ingestor/internal/chunk"
	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
)

var pdfMagic = []byte("%PDF-")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// IngestResponse is the body of a successful POST /ingest/pdf.
type IngestResponse struct {
	Message         string         `json:"message"`
	Filename        string         `json:"filename"`
	MarkdownFile    string         `json:"markdown_file"`
	EmbeddingResult *ingest.Result `json:"embedding_result"`
}

func (s *Server) handleHealthcheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleIngestPDF handles POST /ingest/pdf.
// Form fields:
//   - file (required): the PDF
//   - collection, strategy, mode (optional): override the defaults
func (s *Server) handleIngestPDF(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "multipart field 'file' is required"})
	}

	name := uploadName(fh.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "Only PDF files are accepted"})
	}
	if ok, err := hasPDFMagic(fh); err != nil || !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "Uploaded file is not a PDF"})
	}

	dir, err := os.MkdirTemp(s.config.UploadDir, "upload-*")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Detail: "Error in pipeline: " + err.Error()})
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := c.SaveFile(fh, path); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Detail: "Error in pipeline: " + err.Error()})
	}

	if s.sem != nil {
		timer := time.NewTimer(s.config.QueueTimeout)
		select {
		case s.sem <- struct{}{}:
			timer.Stop()
			defer func() { <-s.sem }()
		case <-timer.C:
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Detail: "no free worker after " + s.config.QueueTimeout.String()})
		}
	}

	res, err := s.ingester.Ingest(c.UserContext(), ingest.Request{
		PDFPath:    path,
		SourceName: name,
		Collection: c.FormValue("collection"),
		Strategy:   chunk.Strategy(c.FormValue("strategy")),
		Mode:       ingest.Mode(c.FormValue("mode")),
	})
	if err != nil {
		status, detail := errorStatus(err)
		s.logger.Error("ingest request failed", "filename", name, "status", status, "error", err)
		return c.Status(status).JSON(ErrorResponse{Detail: detail})
	}

	return c.JSON(IngestResponse{
		Message:         "Pipeline completed successfully",
		Filename:        name,
		MarkdownFile:    markdownName(name),
		EmbeddingResult: res,
	})
}

// errorStatus maps a pipeline error to an HTTP status and detail message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrNoPages),
		errors.Is(err, errs.ErrExtraction),
		errors.Is(err, errs.ErrConversion),
		errors.Is(err, fs.ErrNotExist):
		return fiber.StatusNotFound, "File not found during processing: " + err.Error()
	default:
		return fiber.StatusInternalServerError, "Error in pipeline: " + err.Error()
	}
}

// markdownName is the lower-cased upload name with a .md extension.
func markdownName(name string) string {
	lower := strings.ToLower(name)
	return strings.TrimSuffix(lower, filepath.Ext(lower)) + ".md"
}

func uploadName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.pdf"
	}
	return name
}

func hasPDFMagic(fh *multipart.FileHeader) (bool, error) {
	f, err := fh.Open()
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false, nil
	}
	return bytes.Equal(head, pdfMagic), nil
}
