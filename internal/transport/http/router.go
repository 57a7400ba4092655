package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"choromap/internal/dataset"
	"choromap/internal/fetch"
	"choromap/internal/figure"
	"choromap/internal/geo"
	"choromap/internal/logger"
	"choromap/internal/service"
	"choromap/internal/store/sqlite"
)

const maxRequestBody = 1 << 20

// SourceLister exposes the configured sources to the API.
type SourceLister interface {
	List() []fetch.Status
	Refresh(ctx context.Context, name string) error
	Geometry(ctx context.Context, name string) (*geo.FeatureCollection, error)
	Table(ctx context.Context, name string) (*dataset.Table, error)
	IDKey(name string) (string, error)
}

// FigureService exposes the figure lifecycle to the API.
type FigureService interface {
	Create(ctx context.Context, raw []byte) (figure.Record, error)
	Get(ctx context.Context, id string) (figure.Record, error)
	HTML(ctx context.Context, id string) ([]byte, error)
	PNG(ctx context.Context, id string) ([]byte, error)
	List(ctx context.Context, q sqlite.ListQuery) ([]figure.Record, int64, error)
}

// Router mounts the source and figure endpoints.
type Router struct {
	Sources SourceLister
	Figures FigureService
}

func NewRouter(sources SourceLister, figures FigureService) *Router {
	return &Router{Sources: sources, Figures: figures}
}

// Register mounts all routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/sources", r.handleSourceList)
	group.POST("/sources/:name/refresh", r.handleSourceRefresh)
	group.GET("/sources/:name/preview", r.handleSourcePreview)
	group.POST("/figures", r.handleFigureCreate)
	group.GET("/figures", r.handleFigureList)
	group.GET("/figures/:id", r.handleFigureGet)
	group.GET("/figures/:id/html", r.handleFigureHTML)
	group.GET("/figures/:id/png", r.handleFigurePNG)
}

func (r *Router) handleSourceList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": r.Sources.List()})
}

func (r *Router) handleSourceRefresh(c *gin.Context) {
	name := c.Param("name")
	if err := r.Sources.Refresh(c.Request.Context(), name); err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "unknown source") {
			status = http.StatusNotFound
		}
		logger.Warnf("[api] source refresh failed ip=%s source=%s err=%v", c.ClientIP(), name, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] source refreshed ip=%s source=%s", c.ClientIP(), name)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleSourcePreview(c *gin.Context) {
	name := c.Param("name")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	ctx := c.Request.Context()

	kind, ok := r.sourceKind(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown source %q", name)})
		return
	}
	if kind == "table" {
		t, err := r.Sources.Table(ctx, name)
		if err != nil {
			logger.Warnf("[api] source preview failed ip=%s source=%s err=%v", c.ClientIP(), name, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		rows := t.Rows()
		if len(rows) > limit {
			rows = rows[:limit]
		}
		preview := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			cells := make(map[string]string, len(row.Cells))
			for col, val := range row.Cells {
				cells[col] = val.Text
			}
			preview = append(preview, cells)
		}
		c.JSON(http.StatusOK, gin.H{
			"name":      name,
			"kind":      "table",
			"columns":   t.Columns,
			"id_column": t.IDColumn,
			"rows":      preview,
			"total":     t.Len(),
		})
		return
	}

	fc, err := r.Sources.Geometry(ctx, name)
	if err != nil {
		logger.Warnf("[api] source preview failed ip=%s source=%s err=%v", c.ClientIP(), name, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	idKey, _ := r.Sources.IDKey(name)
	ids := make([]string, 0, limit)
	for i := range fc.Features {
		if len(ids) >= limit {
			break
		}
		if id, ok := fc.Features[i].Identifier(idKey); ok {
			ids = append(ids, id)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"name":       name,
		"kind":       "geojson",
		"id_key":     idKey,
		"features":   fc.Len(),
		"sample_ids": ids,
	})
}

// sourceKind resolves the configured kind of a source by name.
func (r *Router) sourceKind(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, st := range r.Sources.List() {
		if strings.EqualFold(st.Name, name) {
			return st.Kind, true
		}
	}
	return "", false
}

func (r *Router) handleFigureCreate(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := r.Figures.Create(c.Request.Context(), raw)
	if err != nil {
		status := http.StatusBadRequest
		if rec.Status == figure.StatusFailed {
			// Request was valid but the render failed; record is persisted.
			status = http.StatusUnprocessableEntity
		}
		logger.Warnf("[api] figure create failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(status, gin.H{"error": err.Error(), "figure": maybeRecord(rec)})
		return
	}
	logger.Infof("[api] figure created ip=%s id=%s", c.ClientIP(), rec.ID)
	c.JSON(http.StatusCreated, gin.H{"figure": rec})
}

func maybeRecord(rec figure.Record) interface{} {
	if rec.ID == "" {
		return nil
	}
	return rec
}

func (r *Router) handleFigureList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	if pageSize <= 0 {
		pageSize, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	q := sqlite.ListQuery{
		Status: c.Query("status"),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	records, total, err := r.Figures.List(c.Request.Context(), q)
	if err != nil {
		logger.Errorf("[api] figure list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"figures":     records,
		"total_count": total,
		"page":        page,
		"page_size":   pageSize,
	})
}

func (r *Router) handleFigureGet(c *gin.Context) {
	id := c.Param("id")
	rec, err := r.Figures.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "figure not found"})
			return
		}
		logger.Errorf("[api] figure get failed ip=%s id=%s err=%v", c.ClientIP(), id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"figure": rec})
}

func (r *Router) handleFigureHTML(c *gin.Context) {
	id := c.Param("id")
	html, err := r.Figures.HTML(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "figure not found"})
			return
		}
		logger.Errorf("[api] figure html failed ip=%s id=%s err=%v", c.ClientIP(), id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (r *Router) handleFigurePNG(c *gin.Context) {
	id := c.Param("id")
	png, err := r.Figures.PNG(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "figure not found"})
			return
		}
		logger.Errorf("[api] figure png failed ip=%s id=%s err=%v", c.ClientIP(), id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
