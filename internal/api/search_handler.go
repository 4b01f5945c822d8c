package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	TopK       int    `json:"top_k"`
}

// SearchResponse lists the closest chunks, best first.
type SearchResponse struct {
	Collection string         `json:"collection"`
	Results    []SearchResult `json:"results"`
}

type SearchResult struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Content  string            `json:"page_content"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid search request: " + err.Error()})
	}
	if strings.TrimSpace(req.Collection) == "" || strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "collection and query are required"})
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	hits, err := s.config.Search(c.UserContext(), req.Collection, req.Query, req.TopK)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, vector.ErrCollectionNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(ErrorResponse{Detail: err.Error()})
	}

	out := SearchResponse{Collection: req.Collection, Results: make([]SearchResult, 0, len(hits))}
	for _, h := range hits {
		out.Results = append(out.Results, SearchResult{ID: h.ID, Score: h.Score, Content: h.Content, Metadata: h.Metadata})
	}
	return c.JSON(out)
}
