package server

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/candidate"
	"github.com/rankworks/cv-ranker/internal/matching"
)

// minCVTextLength mirrors the input rule of the analyze endpoint: shorter CV
// texts carry too little signal to extract a profile from.
const minCVTextLength = 50

// CompareRequest is the request body for POST /api/compare.
type CompareRequest struct {
	JobText    string              `json:"jobText"`
	Candidates []candidate.Profile `json:"candidates" validate:"dive"`
}

// AnalyzeCVRequest is the request body for POST /api/analyze-cv.
type AnalyzeCVRequest struct {
	CVText string `json:"cvText"`
}

// ErrorResponse is the error body shared by all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleCompare(c echo.Context) error {
	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid compare request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	if err := s.validate.Struct(&req); err != nil {
		s.logger.Warn("compare request failed validation", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "candidate profiles are malformed"})
	}

	results, err := s.ranker.Rank(c.Request().Context(), req.JobText, req.Candidates)
	if err != nil {
		var inputErr *matching.InputError
		if errors.As(err, &inputErr) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: inputErr.Reason})
		}

		s.logger.Error("comparison failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "an unexpected error occurred during comparison",
		})
	}

	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleAnalyzeCV(c echo.Context) error {
	if s.extractor == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "CV analysis is not configured"})
	}

	var req AnalyzeCVRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid analyze request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	if utf8.RuneCountInString(req.CVText) < minCVTextLength {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "CV text is too short or missing"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.extractTimeout)
	defer cancel()

	profile, err := s.extractor.Extract(ctx, req.CVText)
	if err != nil {
		s.logger.Error("cv analysis failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "an unexpected error occurred during CV analysis",
		})
	}

	s.logger.Info("analyzed cv", zap.String("candidate", profile.Name))

	return c.JSON(http.StatusOK, profile)
}
