package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/library"
	"github.com/puzzlepages/shelf/internal/libraryurl"
	"github.com/puzzlepages/shelf/internal/manifest"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/internal/storage"
)

// handleLibraryPage serves the canonical "/library/{id}/{slug}/" page data and
// 301-redirects every other resolvable shape (legacy hyphen, legacy slug,
// stale slug, missing slash) to it.
func (s *Server) handleLibraryPage(w http.ResponseWriter, r *http.Request) {
	route, ok := libraryurl.ParseRoute(r.URL.Path)
	if !ok {
		s.respondError(w, http.StatusNotFound, "library not found")
		return
	}
	identity := route.LibraryID
	if identity == "" {
		identity = route.Slug
		if id, ok := manifest.ResolveLegacySlug(s.manifest, route.Slug); ok {
			identity = id
		}
	}
	rec, err := s.libraries.Find(r.Context(), identity)
	if err != nil {
		s.respondLookupError(w, err, identity)
		return
	}
	canonical, err := libraryurl.URL(libraryurl.Ref{LibraryID: rec.LibraryID, Slug: rec.Slug})
	if err != nil {
		s.logger.Error("library without usable id", zap.String("identity", identity), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Path != canonical {
		s.logger.Debug("redirecting library route",
			zap.String("from", r.URL.Path),
			zap.String("to", canonical),
			zap.Stringer("shape", route.Shape))
		http.Redirect(w, r, canonical, http.StatusMovedPermanently)
		return
	}
	s.respondJSON(w, http.StatusOK, rec.Detail())
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.libraries.ListLibraries(r.Context()))
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	identity, err := url.PathUnescape(chi.URLParam(r, "identity"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid identity")
		return
	}
	detail, err := s.libraries.GetLibrary(r.Context(), identity)
	if err != nil {
		s.respondLookupError(w, err, identity)
		return
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := models.SearchQuery{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		query.Limit = n
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.libraries.Search(r.Context(), &query)
	if errors.Is(err, library.ErrSearchUnavailable) {
		s.respondError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// handleLegacyImage answers the retired dynamic image endpoint with 410 Gone
// and the static path the image is now published at.
func (s *Server) handleLegacyImage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	file := chi.URLParam(r, "*")
	location := strings.TrimSuffix(s.config.Public.ImagePrefix, "/") + "/" + slug + "/" + file
	s.respondJSON(w, http.StatusGone, map[string]string{
		"error":    "dynamic image endpoint removed; images are served statically",
		"location": location,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":       s.config.Mode,
		"started_at": s.startedAt,
	}
	if s.cache != nil {
		cacheInfo := map[string]any{"primed": s.cache.Primed()}
		if snap := s.cache.Current(); snap != nil {
			cacheInfo["generation"] = snap.Generation
			cacheInfo["libraries"] = snap.Len()
			cacheInfo["primed_at"] = snap.PrimedAt
		}
		resp["cache"] = cacheInfo
	}
	if s.storage != nil {
		docCount, err := s.storage.CountDocuments(r.Context())
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["documents"] = docCount
	}
	paths := append(storage.DatabaseFiles(s.config.Storage.DatabasePath), s.config.Public.Dir)
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error, identity string) {
	if errors.Is(err, library.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "library not found")
		return
	}
	s.logger.Error("library lookup failed", zap.String("identity", identity), zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
