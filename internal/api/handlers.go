package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cafeteria/internal/models"
	"cafeteria/internal/report"
	"cafeteria/internal/service"
)

type reserveRequest struct {
	Name    string `json:"name"`
	DateStr string `json:"dateStr"`
}

type checkoutRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Beverage  bool   `json:"beverage"`
	Chocolate bool   `json:"chocolate"`
	Method    string `json:"method"`
	DateIso   string `json:"dateIso"`
}

type qtyRequest struct {
	Qty     int    `json:"qty"`
	DateIso string `json:"dateIso"`
}

type closeRequest struct {
	DateIso string `json:"dateIso"`
}

type dayDTO struct {
	Date     string `json:"date"`
	Jour     string `json:"jour"`
	Menu     string `json:"menu"`
	Open     bool   `json:"open"`
	Disabled bool   `json:"disabled"`
}

type initialResponse struct {
	Days         []dayDTO            `json:"days"`
	Reservations map[string][]string `json:"reservations"`
}

var productKinds = map[string]models.TillKind{
	"sandwich":  models.KindSandwich,
	"beverage":  models.KindBeverage,
	"chocolate": models.KindChocolate,
}

func toHTTPStatus(err error) int {
	code, ok := service.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case service.CodeInvalidArgument:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeDayClosed, service.CodeCapacityReached, service.CodeTillClosed, service.CodeMenuLimitReached:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// userMessage hides storage errors behind a generic message.
func userMessage(err error) string {
	var e *service.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Erreur interne, réessayez plus tard."
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := toHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": userMessage(err)})
}

func (h *Handler) failText(c *gin.Context, err error) {
	status := toHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.String(status, userMessage(err))
}

// dateOrToday parses s in the configured zone; an empty value means today.
func (h *Handler) dateOrToday(s string) (time.Time, error) {
	if s == "" {
		return h.deps.Rules.Today(), nil
	}
	t, err := models.ParseDate(s, h.deps.Rules.Location)
	if err != nil {
		return time.Time{}, &service.Error{Code: service.CodeInvalidArgument, Message: fmt.Sprintf("Date invalide : %s.", s)}
	}
	return t, nil
}

// GET /api/initial
func (h *Handler) Initial(c *gin.Context) {
	ctx := c.Request.Context()
	days, err := h.deps.Catalog.UpcomingDays(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	byDay, err := h.deps.Reservations.ReservationsByDay(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := initialResponse{Days: make([]dayDTO, 0, len(days)), Reservations: byDay}
	for _, d := range days {
		out.Days = append(out.Days, dayDTO{
			Date:     models.DisplayDate(d.Date),
			Jour:     d.WeekdayLabel,
			Menu:     d.Menu,
			Open:     d.IsOpen,
			Disabled: d.IsDisabled,
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/reservations?date=
func (h *Handler) ListReservations(c *gin.Context) {
	date, err := h.dateOrToday(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	names, err := h.deps.Reservations.ListReservations(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": models.DateKey(date), "names": names})
}

// POST /api/reserve
func (h *Handler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Requête invalide.")
		return
	}
	date, err := models.ParseDate(req.DateStr, h.deps.Rules.Location)
	if err != nil {
		c.String(http.StatusBadRequest, "Date invalide : %s.", req.DateStr)
		return
	}
	if err := h.deps.Reservations.Reserve(c.Request.Context(), req.Name, date); err != nil {
		h.failText(c, err)
		return
	}
	c.String(http.StatusOK, "Merci %s, réservation confirmée pour le %s !", req.Name, req.DateStr)
}

// POST /api/unreserve
func (h *Handler) Unreserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Requête invalide.")
		return
	}
	date, err := models.ParseDate(req.DateStr, h.deps.Rules.Location)
	if err != nil {
		c.String(http.StatusBadRequest, "Date invalide : %s.", req.DateStr)
		return
	}
	if err := h.deps.Reservations.Unreserve(c.Request.Context(), req.Name, date); err != nil {
		h.failText(c, err)
		return
	}
	c.String(http.StatusOK, "Vous êtes désinscrit pour le %s.", req.DateStr)
}

// POST /api/send-list
func (h *Handler) SendList(c *gin.Context) {
	res, err := h.deps.DailyClose.SendListAndClose(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"date":     models.DateKey(res.Date),
		"names":    res.Names,
		"dayFound": res.DayFound,
	})
}

// GET /api/caisse?date=
func (h *Handler) Queue(c *gin.Context) {
	date, err := h.dateOrToday(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.deps.Till.QueueView(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide."})
		return
	}
	date, err := h.dateOrToday(req.DateIso)
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.deps.Till.Checkout(c.Request.Context(), service.CheckoutRequest{
		Name:      req.Name,
		Role:      models.ParseRole(req.Type),
		Beverage:  req.Beverage,
		Chocolate: req.Chocolate,
		Method:    models.ParsePaymentMethod(req.Method),
		Date:      date,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/add/:kind
func (h *Handler) AddProduct(c *gin.Context) {
	kind, ok := productKinds[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Produit inconnu."})
		return
	}
	var req qtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide."})
		return
	}
	date, err := h.dateOrToday(req.DateIso)
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.deps.Till.AddProduct(c.Request.Context(), kind, req.Qty, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/close
func (h *Handler) CloseTill(c *gin.Context) {
	var req closeRequest
	// An empty body closes today.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide."})
			return
		}
	}
	date, err := h.dateOrToday(req.DateIso)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.deps.Till.CloseTill(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "redirect": res.Redirect, "alreadyClosed": res.AlreadyClosed})
}

// GET /api/caisse/export?date=
func (h *Handler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	date, err := h.dateOrToday(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.deps.Till.Entries(ctx, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	stats := service.BuildTillStats(entries)
	rep := h.deps.Till.BuildReport(date, stats.Totals)

	var buf bytes.Buffer
	if err := report.WriteTill(&buf, entries, rep); err != nil {
		h.fail(c, fmt.Errorf("write till export: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(rep)))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// POST /admin/import
func (h *Handler) Import(c *gin.Context) {
	days, closeDays, err := formFile(c, "params")
	if err != nil {
		c.String(http.StatusBadRequest, "Fichier Paramètres illisible.")
		return
	}
	defer closeDays()
	resas, closeResas, err := formFile(c, "resas")
	if err != nil {
		c.String(http.StatusBadRequest, "Fichier Réservations illisible.")
		return
	}
	defer closeResas()

	res, err := h.deps.Importer.Import(c.Request.Context(), days, resas)
	if err != nil {
		h.logger.Warn().Err(err).Msg("import failed")
		c.String(http.StatusBadRequest, "Import impossible : %s", err.Error())
		return
	}
	h.logger.Info().Int("days", res.Days).Int("reservations", res.Reservations).Msg("csv import done")
	c.Redirect(http.StatusSeeOther, "/admin")
}

// formFile returns a nil reader when the field was left empty.
func formFile(c *gin.Context, field string) (io.Reader, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	if fh.Size == 0 {
		return nil, func() {}, nil
	}
	var f multipart.File
	if f, err = fh.Open(); err != nil {
		return nil, func() {}, err
	}
	return f, func() { _ = f.Close() }, nil
}
