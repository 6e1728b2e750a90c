package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"goelda/adapters/excel"
	"goelda/adapters/stats/engine"
	"goelda/domain/core"
	"goelda/domain/dilution"
	"goelda/internal"
	"goelda/internal/errors"
	"goelda/internal/report"
	"goelda/ports"

	"github.com/gin-gonic/gin"
)

// Server exposes the analysis engine over JSON HTTP
type Server struct {
	router   *gin.Engine
	defaults dilution.Options
	repo     ports.AnalysisRepository
	logger   *internal.Logger
}

// NewServer creates a server whose runs start from defaults and are stored in repo
func NewServer(defaults dilution.Options, repo ports.AnalysisRepository, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:   gin.New(),
		defaults: defaults,
		repo:     repo,
		logger:   logger.With("api"),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.POST("/analyses", s.handleCreateAnalysis)
	v1.POST("/analyses/upload", s.handleUploadAnalysis)
	v1.GET("/analyses", s.handleListAnalyses)
	v1.GET("/analyses/:id", s.handleGetAnalysis)
}

// Handler returns the router for use with net/http or httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server on the given address
func (s *Server) Run(addr string) error {
	s.logger.Info("listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

// analysisRequest is the body of POST /api/v1/analyses
type analysisRequest struct {
	Observations []dilution.Observation `json:"observations" binding:"required,min=1"`
	Options      *optionsRequest        `json:"options"`
}

// optionsRequest overrides individual server defaults
type optionsRequest struct {
	ConfidenceLevel *float64 `json:"confidence_level" form:"confidence_level" binding:"omitempty,gt=0,lt=1"`
	BiasReduced     *bool    `json:"bias_reduced" form:"bias_reduced"`
	IntervalMethod  *string  `json:"interval_method" form:"interval_method"`
}

func (r *optionsRequest) apply(opts dilution.Options) (dilution.Options, error) {
	if r == nil {
		return opts, nil
	}
	if r.ConfidenceLevel != nil {
		opts.ConfidenceLevel = *r.ConfidenceLevel
	}
	if r.BiasReduced != nil {
		opts.BiasReduced = *r.BiasReduced
	}
	if r.IntervalMethod != nil {
		method, err := dilution.ParseIntervalMethod(*r.IntervalMethod)
		if err != nil {
			return opts, err
		}
		opts.IntervalMethod = method
	}
	return opts, opts.Validate()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCreateAnalysis analyses observations posted as JSON.
func (s *Server) handleCreateAnalysis(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	opts, err := req.Options.apply(s.defaults)
	if err != nil {
		s.writeError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	s.analyze(c, dilution.NewDataset(req.Observations), opts)
}

// handleUploadAnalysis accepts a CSV or XLSX table in the multipart field
// "file"; options come from the remaining form fields.
func (s *Server) handleUploadAnalysis(c *gin.Context) {
	var form optionsRequest
	if err := c.ShouldBind(&form); err != nil {
		s.writeError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	opts, err := form.apply(s.defaults)
	if err != nil {
		s.writeError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, errors.InvalidInput("multipart field \"file\" is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		s.writeError(c, errors.Wrap(err, "failed to open upload"))
		return
	}
	defer file.Close()

	parse := excel.ParseCSV
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		parse = excel.ParseXLSX
	case ".csv", "":
	default:
		s.writeError(c, errors.InvalidInput("unsupported file type: "+header.Filename))
		return
	}
	ds, err := parse(file)
	if err != nil {
		if !core.IsInputError(err) {
			err = errors.WithCode(errors.CodeInvalidInput, err)
		}
		s.writeError(c, err)
		return
	}
	s.analyze(c, ds, opts)
}

// analyze runs the engine, or returns the stored bundle when the same
// observations were already analysed with the same options.
func (s *Server) analyze(c *gin.Context, ds dilution.Dataset, opts dilution.Options) {
	ctx := c.Request.Context()
	if cached, err := s.repo.FindByFingerprint(ctx, ds.Fingerprint(opts)); err == nil {
		c.Header("X-Analysis-Cache", "hit")
		c.JSON(http.StatusOK, cached)
		return
	} else if !core.IsNotFoundError(err) {
		s.writeError(c, err)
		return
	}

	bundle, err := engine.NewEngine(opts, s.logger).Run(ctx, ds)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), bundle); err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Location", "/api/v1/analyses/"+bundle.RunID.String())
	c.JSON(http.StatusCreated, bundle)
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(c, errors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	bundles, err := s.repo.List(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": bundles, "count": len(bundles)})
}

// handleGetAnalysis returns a stored bundle; ?format=markdown|html renders it.
func (s *Server) handleGetAnalysis(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.writeError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	format, err := report.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		s.writeError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	bundle, err := s.repo.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	switch format {
	case report.FormatMarkdown:
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(bundle)))
	case report.FormatHTML:
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(bundle))
	default:
		c.JSON(http.StatusOK, bundle)
	}
}
