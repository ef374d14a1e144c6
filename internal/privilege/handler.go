package privilege

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/platform/httpx"
)

// Handler serves the privilege catalog to the admin UI.
type Handler struct {
	logger *slog.Logger
	guard  func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. The guard middleware decides who may
// read the catalog; the handler itself only renders it.
func NewHandler(logger *slog.Logger, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, guard: guard}
}

// MountRoutes registers the catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard)
		r.Get("/", h.collect)
	})
}

func (h *Handler) collect(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("collecting system privileges")
	httpx.JSON(w, http.StatusOK, GroupSystemPrivileges())
}
