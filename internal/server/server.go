// Package server is the HTTP presentation boundary: a thin gin router
// that parses query params, calls the report service, and renders every
// result as a JSON table of named columns. Rendering beyond that table
// contract lives client-side.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

// ReportService is what the handlers need from the report layer. The
// concrete implementation is report.Service; tests stub it.
type ReportService interface {
	TopStatesByAmount(ctx context.Context, year, quarter, n int) (*tabular.Table, error)
	TopCategoriesByCount(ctx context.Context, year, quarter, n int) (*tabular.Table, error)
	StateYearGrowth(ctx context.Context, fromYear, toYear int) (*tabular.Table, error)
	DistrictQuarterGrowth(ctx context.Context, year, fromQuarter, toQuarter int) (*tabular.Table, error)
	AverageTicketSize(ctx context.Context, year, quarter int) (*tabular.Table, error)
	UserEngagement(ctx context.Context, year, quarter int) (*tabular.Table, error)
	StateCAGR(ctx context.Context, startYear, endYear int) (*tabular.Table, error)
	StateContributionShare(ctx context.Context, year int) (*tabular.Table, error)
	BottomQuartersByVolume(ctx context.Context, n int) (*tabular.Table, error)
}

type Server struct {
	svc ReportService
}

func New(svc ReportService) *Server { return &Server{svc: svc} }

// Handler builds the router. CORS is layered on by the caller.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/reports")
	api.GET("/top-states", s.topStates)
	api.GET("/top-categories", s.topCategories)
	api.GET("/state-growth", s.stateGrowth)
	api.GET("/district-growth", s.districtGrowth)
	api.GET("/avg-ticket-size", s.avgTicketSize)
	api.GET("/user-engagement", s.userEngagement)
	api.GET("/state-cagr", s.stateCAGR)
	api.GET("/state-share", s.stateShare)
	api.GET("/bottom-quarters", s.bottomQuarters)

	return r
}

func (s *Server) topStates(c *gin.Context) {
	year, quarter, ok := periodParams(c)
	if !ok {
		return
	}
	n, ok := intParam(c, "n", 10)
	if !ok {
		return
	}
	t, err := s.svc.TopStatesByAmount(c.Request.Context(), year, quarter, n)
	render(c, t, err)
}

func (s *Server) topCategories(c *gin.Context) {
	year, quarter, ok := periodParams(c)
	if !ok {
		return
	}
	n, ok := intParam(c, "n", 10)
	if !ok {
		return
	}
	t, err := s.svc.TopCategoriesByCount(c.Request.Context(), year, quarter, n)
	render(c, t, err)
}

func (s *Server) stateGrowth(c *gin.Context) {
	from, ok := requiredIntParam(c, "from")
	if !ok {
		return
	}
	to, ok := requiredIntParam(c, "to")
	if !ok {
		return
	}
	t, err := s.svc.StateYearGrowth(c.Request.Context(), from, to)
	render(c, t, err)
}

func (s *Server) districtGrowth(c *gin.Context) {
	year, ok := requiredIntParam(c, "year")
	if !ok {
		return
	}
	from, ok := requiredIntParam(c, "from")
	if !ok {
		return
	}
	to, ok := requiredIntParam(c, "to")
	if !ok {
		return
	}
	t, err := s.svc.DistrictQuarterGrowth(c.Request.Context(), year, from, to)
	render(c, t, err)
}

func (s *Server) avgTicketSize(c *gin.Context) {
	year, quarter, ok := periodParams(c)
	if !ok {
		return
	}
	t, err := s.svc.AverageTicketSize(c.Request.Context(), year, quarter)
	render(c, t, err)
}

func (s *Server) userEngagement(c *gin.Context) {
	year, quarter, ok := periodParams(c)
	if !ok {
		return
	}
	t, err := s.svc.UserEngagement(c.Request.Context(), year, quarter)
	render(c, t, err)
}

func (s *Server) stateCAGR(c *gin.Context) {
	from, ok := requiredIntParam(c, "from")
	if !ok {
		return
	}
	to, ok := requiredIntParam(c, "to")
	if !ok {
		return
	}
	t, err := s.svc.StateCAGR(c.Request.Context(), from, to)
	render(c, t, err)
}

func (s *Server) stateShare(c *gin.Context) {
	year, ok := requiredIntParam(c, "year")
	if !ok {
		return
	}
	t, err := s.svc.StateContributionShare(c.Request.Context(), year)
	render(c, t, err)
}

func (s *Server) bottomQuarters(c *gin.Context) {
	n, ok := intParam(c, "n", 5)
	if !ok {
		return
	}
	t, err := s.svc.BottomQuartersByVolume(c.Request.Context(), n)
	render(c, t, err)
}

// render writes the table contract, or the endpoint-scoped error. A
// failure here never affects other endpoints: nothing is cached and no
// connection is shared.
func render(c *gin.Context, t *tabular.Table, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrAllTargetsFailed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	rows := t.Rows
	if rows == nil {
		rows = [][]any{}
	}
	c.JSON(http.StatusOK, gin.H{"columns": t.Columns, "rows": rows})
}

func periodParams(c *gin.Context) (year, quarter int, ok bool) {
	if year, ok = requiredIntParam(c, "year"); !ok {
		return
	}
	quarter, ok = requiredIntParam(c, "quarter")
	return
}

func requiredIntParam(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query param " + name})
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query param " + name})
		return 0, false
	}
	return v, true
}

func intParam(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query param " + name})
		return 0, false
	}
	return v, true
}
