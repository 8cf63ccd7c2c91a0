// Package rest exposes the enquiry service over HTTP. It is a thin adapter:
// it authenticates the bearer token, decodes submissions and maps service
// errors to status codes.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/logging"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/attachments"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/authz"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/services"
)

// Service defines the enquiry operations exposed over HTTP.
type Service interface {
	New(ctx context.Context, actor authz.Actor) (*services.Result, error)
	Create(ctx context.Context, actor authz.Actor, sub services.Submission) (*services.Result, error)
	Show(ctx context.Context, actor authz.Actor, id string) (*services.Result, error)
	Edit(ctx context.Context, actor authz.Actor, id string) (*services.Result, error)
	Update(ctx context.Context, actor authz.Actor, id string, sub services.Submission) (*services.Result, error)
	PrimaryPhoto(ctx context.Context, actor authz.Actor, id string) (attachments.Blob, error)
	Audio(ctx context.Context, actor authz.Actor, id string) (attachments.Blob, error)
}

type Handler struct {
	service       Service
	logger        logging.Logger
	jwtSecret     []byte
	maxUploadSize int64
	maxPhotos     int
}

// formOverhead is the body allowance for non-file parts and multipart framing.
const formOverhead = 1 << 20

// NewHandler builds the HTTP adapter. maxUploadSize is the per-file limit
// and maxPhotos the photo count per submission; together they bound the
// request body. Zero for either disables the bound.
func NewHandler(s Service, l logging.Logger, secretKey string, maxUploadSize int64, maxPhotos int) *Handler {
	return &Handler{
		service:       s,
		logger:        l.With("module", "http"),
		jwtSecret:     []byte(secretKey),
		maxUploadSize: maxUploadSize,
		maxPhotos:     maxPhotos,
	}
}

// Register mounts the enquiry routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/enquiries", func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(h.recoverer)
		r.Use(h.requestLogger)
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(h.requireActor)

		r.Get("/new", h.handleNew)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleShow)
		r.Get("/{id}/edit", h.handleEdit)
		r.Put("/{id}", h.handleUpdate)
		r.Patch("/{id}", h.handleUpdate)
		r.Get("/{id}/photo", h.handlePhoto)
		r.Get("/{id}/audio", h.handleAudio)
	})
}

type viewResponse struct {
	Enquiry      *models.Enquiry      `json:"enquiry"`
	FormSections []models.FormSection `json:"form_sections"`
}

type errorResponse struct {
	Error        string               `json:"error"`
	Fields       map[string]string    `json:"fields,omitempty"`
	Enquiry      *models.Enquiry      `json:"enquiry,omitempty"`
	FormSections []models.FormSection `json:"form_sections,omitempty"`
}

func actor(r *http.Request) authz.Actor {
	a, _ := authz.ActorFrom(r.Context())
	return a
}

func (h *Handler) handleNew(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.New(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Enquiry: res.Enquiry, FormSections: res.Sections})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.submission(w, r)
	if !ok {
		return
	}

	res, err := h.service.Create(r.Context(), actor(r), sub)
	if err != nil {
		h.writeError(w, r, err, res)
		return
	}

	w.Header().Set("Location", "/enquiries/"+res.Enquiry.ID)
	writeJSON(w, http.StatusCreated, viewResponse{Enquiry: res.Enquiry, FormSections: res.Sections})
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Show(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Enquiry: res.Enquiry, FormSections: res.Sections})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Edit(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Enquiry: res.Enquiry, FormSections: res.Sections})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.submission(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	res, err := h.service.Update(r.Context(), actor(r), id, sub)
	if err != nil {
		h.writeError(w, r, err, res)
		return
	}

	w.Header().Set("Location", "/enquiries/"+id)
	writeJSON(w, http.StatusOK, viewResponse{Enquiry: res.Enquiry, FormSections: res.Sections})
}

func (h *Handler) handlePhoto(w http.ResponseWriter, r *http.Request) {
	blob, err := h.service.PrimaryPhoto(r.Context(), actor(r), chi.URLParam(r, "id"))
	h.writeBlob(w, r, blob, err)
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	blob, err := h.service.Audio(r.Context(), actor(r), chi.URLParam(r, "id"))
	h.writeBlob(w, r, blob, err)
}

func (h *Handler) writeBlob(w http.ResponseWriter, r *http.Request, blob attachments.Blob, err error) {
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	ct := blob.ContentType
	if ct == "" {
		ct = http.DetectContentType(blob.Data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

func (h *Handler) submission(w http.ResponseWriter, r *http.Request) (services.Submission, bool) {
	if limit := h.bodyLimit(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	sub, err := parseSubmission(r, 32<<20)
	if err != nil {
		h.logger.Warn(r.Context(), "invalid enquiry submission", "request_id", middleware.GetReqID(r.Context()), "error", err)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return sub, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return sub, false
	}
	return sub, true
}

// bodyLimit allows maxPhotos photos plus one audio file, each at
// maxUploadSize, and formOverhead for everything else.
func (h *Handler) bodyLimit() int64 {
	if h.maxUploadSize <= 0 || h.maxPhotos <= 0 {
		return 0
	}
	return int64(h.maxPhotos+1)*h.maxUploadSize + formOverhead
}

// writeError maps service errors to statuses. res, when set, is the
// attempted enquiry to re-present.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, res *services.Result) {
	ctx := r.Context()
	body := errorResponse{}
	if res != nil {
		body.Enquiry = res.Enquiry
		body.FormSections = res.Sections
	}

	var verr *common.ValidationError
	switch {
	case errors.Is(err, common.ErrorForbidden):
		body = errorResponse{Error: "forbidden"}
		writeJSON(w, http.StatusForbidden, body)
	case errors.Is(err, common.ErrorNotFound):
		body = errorResponse{Error: "not found"}
		writeJSON(w, http.StatusNotFound, body)
	case errors.As(err, &verr):
		body.Error = common.ErrorValidation.Error()
		body.Fields = verr.Fields
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, common.ErrorPersist):
		h.logger.Error(ctx, "enquiry not saved", "request_id", middleware.GetReqID(ctx), "error", err)
		body.Error = "enquiry could not be saved"
		writeJSON(w, http.StatusInternalServerError, body)
	case errors.Is(err, common.ErrorAttachmentStore):
		h.logger.Error(ctx, "attachment store failure", "request_id", middleware.GetReqID(ctx), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "attachments could not be stored"})
	default:
		h.logger.Error(ctx, "request failed", "request_id", middleware.GetReqID(ctx), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
