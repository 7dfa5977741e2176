package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/philograph/internal/core"
	"github.com/agenthands/philograph/internal/core/model"
	"github.com/agenthands/philograph/internal/validation"
)

type Server struct {
	Knowledge  *core.KnowledgeService
	Validation *validation.Service
	// Defaults fill fields a request leaves unset.
	Defaults core.ExtractOptions
	Logger   *logrus.Logger
}

func NewServer(knowledge *core.KnowledgeService, validationService *validation.Service, defaults core.ExtractOptions, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		Knowledge:  knowledge,
		Validation: validationService,
		Defaults:   defaults,
		Logger:     logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/extract", s.Extract)
	r.GET("/entities/:id/relationships", s.EntityRelationships)
	r.POST("/network", s.Network)

	r.POST("/validations", s.SubmitValidation)
	r.POST("/validations/:id/annotations", s.SubmitAnnotation)
	r.GET("/validations/pending", s.PendingValidations)
	r.GET("/validations/approved", s.ApprovedValidations)
	r.GET("/validations/stats", s.ValidationStatistics)
	r.GET("/validations/export", s.ExportValidations)
	r.POST("/experts/:id/assignments", s.AssignExpert)

	return r
}

// Run serves the API on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.SetupRouter()}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.WithField("addr", addr).Info("Starting server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Logger.Info("Shutting down server")
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.Logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("Handled request")
	}
}

type ExtractRequest struct {
	Text           string   `json:"text" binding:"required"`
	DocumentID     string   `json:"document_id" binding:"required"`
	ChunkSize      *int     `json:"chunk_size"`
	MinConfidence  *float64 `json:"min_confidence"`
	EnableBatching *bool    `json:"enable_batching"`
	KnownEntities  []string `json:"known_entities"`
}

// Extract always answers 200 with the extraction summary; partial failures are reported inside it.
func (s *Server) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	opts := s.Defaults
	if req.ChunkSize != nil {
		if *req.ChunkSize < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_size must be >= 0"})
			return
		}
		opts.ChunkSize = *req.ChunkSize
	}
	if req.MinConfidence != nil {
		if *req.MinConfidence < 0 || *req.MinConfidence > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_confidence must be within [0,1]"})
			return
		}
		opts.MinConfidence = *req.MinConfidence
	}
	if req.EnableBatching != nil {
		opts.EnableBatching = *req.EnableBatching
	}
	opts.KnownEntities = req.KnownEntities

	result := s.Knowledge.ExtractKnowledgeGraph(c.Request.Context(), req.Text, req.DocumentID, opts)
	c.JSON(http.StatusOK, result.Summary())
}

func (s *Server) EntityRelationships(c *gin.Context) {
	got, err := s.Knowledge.GetEntityRelationships(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

type NetworkRequest struct {
	EntityTypes      []model.EntityType `json:"entity_types"`
	MinRelationships *int               `json:"min_relationships"`
	// MostConnected overrides the service cap; zero lists every retained entity.
	MostConnected *int `json:"most_connected"`
}

func (s *Server) Network(c *gin.Context) {
	var req NetworkRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}
	query := core.NetworkQuery{
		EntityTypes:      req.EntityTypes,
		MinRelationships: 1,
		MostConnected:    s.Knowledge.MostConnected,
	}
	if req.MinRelationships != nil {
		query.MinRelationships = *req.MinRelationships
	}
	if req.MostConnected != nil {
		query.MostConnected = *req.MostConnected
	}

	analysis, err := s.Knowledge.AnalyzeNetwork(c.Request.Context(), query)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

type SubmitValidationRequest struct {
	ItemType   string         `json:"item_type" binding:"required"`
	ItemData   interface{}    `json:"item_data"`
	Confidence float64        `json:"confidence"`
	Priority   model.Priority `json:"priority"`
}

func (s *Server) SubmitValidation(c *gin.Context) {
	var req SubmitValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	item, err := s.Validation.SubmitForValidation(c.Request.Context(), req.ItemType, req.ItemData, req.Confidence, req.Priority)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) SubmitAnnotation(c *gin.Context) {
	var req validation.Annotation
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	item, err := s.Validation.SubmitExpertAnnotation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type AssignRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required"`
}

func (s *Server) AssignExpert(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := s.Validation.AssignExpert(c.Request.Context(), c.Param("id"), req.ItemIDs); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) PendingValidations(c *gin.Context) {
	priority := model.Priority(c.Query("priority"))
	if priority != "" && !priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown priority"})
		return
	}
	items, err := s.Validation.GetPendingValidations(c.Request.Context(), priority, c.Query("item_type"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) ApprovedValidations(c *gin.Context) {
	items, err := s.Validation.GetApprovedItems(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) ValidationStatistics(c *gin.Context) {
	stats, err := s.Validation.GetValidationStatistics(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) ExportValidations(c *gin.Context) {
	export, err := s.Validation.ExportValidationData(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

// fail maps domain errors onto status codes. Unknown errors are logged and hidden behind a 500.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrEntityNotFound), errors.Is(err, validation.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, validation.ErrInvalidAnnotation),
		errors.Is(err, validation.ErrInvalidItem):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.Logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
