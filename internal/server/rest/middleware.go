package rest

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/auth"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/authz"
)

// requireActor resolves the bearer token into an authz.Actor on the request
// context. Requests without a valid token get 401.
func (h *Handler) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get(common.AuthorizationHeaderName), common.BearerPrefix)
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing token"})
			return
		}

		a, err := auth.ParseToken(token, h.jwtSecret)
		if err != nil {
			h.logger.Warn(r.Context(), "unauthorized access - invalid token",
				"request_id", middleware.GetReqID(r.Context()), "error", err)
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msg})
			return
		}

		next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), a)))
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				h.logger.Error(r.Context(), "panic recovered",
					"request_id", middleware.GetReqID(r.Context()), "panic", p)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
