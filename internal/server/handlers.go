package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aleister1102/webmirror/internal/archiver"
	"github.com/aleister1102/webmirror/internal/errorwrapper"
	"github.com/aleister1102/webmirror/internal/filter"
	"github.com/aleister1102/webmirror/internal/pipeline"
	"github.com/aleister1102/webmirror/internal/rewriter"
	"github.com/aleister1102/webmirror/internal/urlhandler"
)

// MirrorRequest is the POST /api/mirror body. The URL may omit its
// scheme; https is assumed. Domain lists are comma-separated and must
// pair up one to one.
type MirrorRequest struct {
	URL                  string `json:"url" validate:"required"`
	OriginalDomain       string `json:"originalDomain"`
	ReplacementDomain    string `json:"replacementDomain"`
	RemoveTracking       bool   `json:"removeTracking"`
	RemoveCustomTracking bool   `json:"removeCustomTracking"`
	RemoveRedirects      bool   `json:"removeRedirects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMirror(w http.ResponseWriter, r *http.Request) {
	var req MirrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			s.writeError(w, http.StatusBadRequest, "invalid field "+verrs[0].Field())
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	pageURL, err := urlhandler.NormalizeURL(req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid url: "+err.Error())
		return
	}

	rules, err := rewriter.ParseRules(req.OriginalDomain, req.ReplacementDomain)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bundleDir, err := os.MkdirTemp(s.workDir, "mirror-*")
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create working directory")
		s.writeError(w, http.StatusInternalServerError, "failed to prepare working directory")
		return
	}
	defer func() {
		if err := os.RemoveAll(bundleDir); err != nil {
			s.logger.Warn().Err(err).Str("dir", bundleDir).Msg("Failed to clean working directory")
		}
	}()

	result, err := s.pipeline.Run(r.Context(), pipeline.Request{
		URL:   pageURL,
		Rules: rules,
		Flags: filter.Flags{
			RemoveTracking:       req.RemoveTracking,
			RemoveCustomTracking: req.RemoveCustomTracking,
			RemoveRedirects:      req.RemoveRedirects,
		},
	}, bundleDir)
	if err != nil {
		s.writeMirrorError(w, pageURL, err)
		return
	}

	archiveName := archiver.ArchiveName(time.Now())
	zipPath := filepath.Join(s.workDir, archiveName)
	if err := s.archiver.CreateZip(result.OutputDir, zipPath); err != nil {
		s.logger.Error().Err(err).Msg("Failed to archive bundle")
		s.writeError(w, http.StatusInternalServerError, "failed to package mirror")
		return
	}
	defer func() {
		if err := os.Remove(zipPath); err != nil {
			s.logger.Warn().Err(err).Str("zip", zipPath).Msg("Failed to remove archive")
		}
	}()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archiveName+`"`)
	http.ServeFile(w, r, zipPath)
}

// writeMirrorError maps pipeline failures to status codes: client
// mistakes are 400, upstream failures are 502.
func (s *Server) writeMirrorError(w http.ResponseWriter, url string, err error) {
	s.logger.Error().Err(err).Str("url", url).Msg("Mirror job failed")

	var verr *errorwrapper.ValidationError
	if errors.As(err, &verr) {
		s.writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	var nerr *errorwrapper.NetworkError
	var herr *errorwrapper.HTTPError
	switch {
	case errors.As(err, &nerr),
		errors.As(err, &herr),
		errors.Is(err, errorwrapper.ErrNotHTML),
		errors.Is(err, errorwrapper.ErrTimeout):
		s.writeError(w, http.StatusBadGateway, "failed to mirror "+url+": "+err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"service":  "webmirror",
		"endpoint": "POST /api/mirror",
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}
