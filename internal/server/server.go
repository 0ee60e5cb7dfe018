package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/nfe-processor/internal/model"
	"github.com/rezonia/nfe-processor/internal/processor"
	"github.com/rezonia/nfe-processor/pkg/logger"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
	Logger       *logger.Logger
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *processor.Pipeline
	log      *logger.Logger
}

// NewServer creates a new API server
func NewServer(config *Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	log := config.Logger
	if log == nil {
		log = logger.New(logger.Config{Env: "production", Level: "info"})
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:   config,
		router:   router,
		pipeline: processor.NewPipeline(),
		log:      log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/process", s.handleProcess)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/document", s.handleDocument)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info().Str("address", s.config.Address).Msg("starting API server")
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// requestInput reads the raw XML body plus the purpose and filename
// query parameters shared by every document endpoint.
func (s *Server) requestInput(c *gin.Context) ([]byte, string, model.Purpose, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, "", "", false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, "", "", false
	}

	fileName := c.Query("filename")
	if fileName == "" {
		fileName = "upload.xml"
	}

	purpose := model.PurposeResale
	switch c.Query("purpose") {
	case "", string(model.PurposeResale):
	case string(model.PurposeConsumption):
		purpose = model.PurposeConsumption
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid purpose, expected RESALE or CONSUMPTION"})
		return nil, "", "", false
	}

	return body, fileName, purpose, true
}

func (s *Server) handleProcess(c *gin.Context) {
	body, fileName, purpose, ok := s.requestInput(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result := s.pipeline.Process(ctx, body, fileName, purpose)
	if result.Error != nil {
		s.log.Warn().Str("file", fileName).Err(result.Error).Msg("parse failed")
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "parse failed",
			Details: result.Error.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Invoice:           result.Invoice,
		Skipped:           result.Skipped,
		SkipReason:        result.SkipReason,
		MissingDuplicates: result.MissingDuplicates,
		Findings:          result.Findings,
		Status:            result.Status,
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	body, fileName, purpose, ok := s.requestInput(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	doc := s.pipeline.Document(ctx, body, fileName, purpose)

	c.JSON(http.StatusOK, ValidationResponse{
		Status:   doc.Status,
		Findings: doc.Findings,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	body, fileName, purpose, ok := s.requestInput(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result := s.pipeline.Process(ctx, body, fileName, purpose)
	if result.Error != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "parse failed",
			Details: result.Error.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Invoice:       result.Invoice,
		Calculated:    result.Analysis.Calculated,
		Discrepancies: result.Analysis.Discrepancies,
		Findings:      result.Analysis.Findings,
	})
}

func (s *Server) handleDocument(c *gin.Context) {
	body, fileName, purpose, ok := s.requestInput(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	doc := s.pipeline.Document(ctx, body, fileName, purpose)
	c.JSON(http.StatusOK, doc)
}
