package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fooforms/fooforms/backend/go-services/internal/form"
	"github.com/fooforms/fooforms/backend/go-services/internal/form/service"
	"github.com/gin-gonic/gin"
)

type routeConfig struct {
	writeGuards []gin.HandlerFunc
	limit       gin.HandlerFunc
}

type RouteOption func(*routeConfig)

// WithWriteGuards puts handlers (typically the auth middleware) in front of
// every write route. Reads stay open.
func WithWriteGuards(h ...gin.HandlerFunc) RouteOption {
	return func(rc *routeConfig) { rc.writeGuards = append(rc.writeGuards, h...) }
}

// WithRateLimit applies limit to every route. On write routes it runs after
// the write guards so that authenticated requests are limited per subject.
func WithRateLimit(limit gin.HandlerFunc) RouteOption {
	return func(rc *routeConfig) { rc.limit = limit }
}

// RegisterFormRoutes mounts the form API on r.
func RegisterFormRoutes(r gin.IRouter, svc service.Service, opts ...RouteOption) {
	var rc routeConfig
	for _, o := range opts {
		o(&rc)
	}
	readChain := []gin.HandlerFunc{}
	writeChain := append([]gin.HandlerFunc{}, rc.writeGuards...)
	if rc.limit != nil {
		readChain = append(readChain, rc.limit)
		writeChain = append(writeChain, rc.limit)
	}

	h := &formHandler{svc: svc}
	g := r.Group("/api/forms")

	rd := g.Group("", readChain...)
	rd.GET("", h.list)
	rd.GET("/:id", h.get)
	rd.GET("/:id/icon", h.icon)

	w := g.Group("", writeChain...)
	w.POST("", h.create)
	w.PATCH("/:id", h.update)
	w.DELETE("/:id", h.delete)
	w.POST("/:id/icon", h.uploadIcon)
}

type formHandler struct {
	svc service.Service
}

func (h *formHandler) list(c *gin.Context) {
	var limit int64
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	list, err := h.svc.List(c.Request.Context(), c.Query("stream"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *formHandler) get(c *gin.Context) {
	f, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *formHandler) create(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := h.svc.Create(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", f.URL)
	c.JSON(http.StatusCreated, f)
}

func (h *formHandler) update(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := h.svc.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *formHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *formHandler) uploadIcon(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	file, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	f, err := h.svc.SetIcon(c.Request.Context(), c.Param("id"), service.Icon{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// icon redirects to a short-lived download URL for the form's icon.
func (h *formHandler) icon(c *gin.Context) {
	u, err := h.svc.IconURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

func writeError(c *gin.Context, err error) {
	var verr *form.ValidationError
	var perr *form.PersistenceError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationError", "errors": verr.Errors})
	case errors.Is(err, service.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, form.ErrNotFound), errors.Is(err, service.ErrNoIcon):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrIconTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoIconStore):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
