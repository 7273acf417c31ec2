package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ecoindex/internal/auth"
	"ecoindex/internal/core"
	"ecoindex/internal/export"
	"ecoindex/internal/filter"
	"ecoindex/internal/records"
)

// maxFilterBytes bounds a filter request body.
const maxFilterBytes = 64 << 10

type downloadResponse struct {
	DownloadID int64 `json:"download_id"`
}

func (h *Handler) recordRoutes(svc *records.Service) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(authenticate(h.cfg.Users, h.logger))
		r.Use(requireRole(auth.RoleUser, h.logger))
		r.Get("/", h.handleListRecords(svc))
		r.Post("/", h.handleCreateDownload(svc))
		r.Get("/download/{id}", h.handleDownload(svc))
	}
}

func (h *Handler) handleListRecords(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListAll(r.Context())
		if err != nil {
			writeErr(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) handleCreateDownload(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f filter.Filter
		body := http.MaxBytesReader(w, r.Body, maxFilterBytes)
		if err := json.NewDecoder(body).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			writeErr(w, r, h.logger, core.NewValidationError("body", "invalid filter payload: %v", err))
			return
		}
		id, err := svc.CreateDownload(r.Context(), f)
		if err != nil {
			writeErr(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, downloadResponse{DownloadID: id})
	}
}

func (h *Handler) handleDownload(svc *records.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeErr(w, r, h.logger, core.NewValidationError("id", "download id must be an integer"))
			return
		}
		art, rc, err := svc.OpenDownload(r.Context(), id)
		if err != nil {
			writeErr(w, r, h.logger, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename)
		if art.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(art.Size, 10))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, rc); err != nil {
			h.logger.WarnContext(r.Context(), "download stream interrupted",
				"request_id", requestID(r.Context()), "domain", svc.Domain(), "id", id, "err", err)
		}
	}
}
