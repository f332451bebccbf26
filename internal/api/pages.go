package api

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"cafeteria/internal/models"
	"cafeteria/internal/service"
)

// GET /?page=caisse|closed
func (h *Handler) Home(c *gin.Context) {
	switch c.Query("page") {
	case "caisse":
		h.CashierPage(c)
	case "closed":
		h.serveFile(c, "closed.html", "text/html; charset=utf-8")
	default:
		h.serveFile(c, "index.html", "text/html; charset=utf-8")
	}
}

// CashierPage sends the console, or redirects to the closed notice once the
// till of the requested day is closed.
func (h *Handler) CashierPage(c *gin.Context) {
	date, err := h.dateOrToday(c.Query("date"))
	if err != nil {
		c.String(http.StatusBadRequest, userMessage(err))
		return
	}
	closed, err := h.deps.Till.IsClosed(c.Request.Context(), date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", models.DateKey(date)).Msg("failed to read till state")
		c.String(http.StatusInternalServerError, userMessage(err))
		return
	}
	if closed {
		c.Redirect(http.StatusFound, service.ClosedRedirect)
		return
	}
	h.serveFile(c, "caisse.html", "text/html; charset=utf-8")
}

func (h *Handler) page(name string) gin.HandlerFunc {
	return h.asset(name, "text/html; charset=utf-8")
}

func (h *Handler) asset(name, contentType string) gin.HandlerFunc {
	return func(c *gin.Context) { h.serveFile(c, name, contentType) }
}

func (h *Handler) serveFile(c *gin.Context, name, contentType string) {
	data, err := fs.ReadFile(h.pages, name)
	if err != nil {
		c.String(http.StatusNotFound, "not found")
		return
	}
	c.Data(http.StatusOK, contentType, data)
}
