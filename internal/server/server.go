package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/safgate/safgate/internal/bridge"
	"github.com/safgate/safgate/internal/config"
	"github.com/safgate/safgate/internal/content"
	"github.com/safgate/safgate/internal/docs"
	"github.com/safgate/safgate/internal/grants"
	"github.com/safgate/safgate/internal/logging"
	"github.com/safgate/safgate/internal/media"
	"github.com/safgate/safgate/internal/monitoring"
	"github.com/safgate/safgate/internal/picker"
	"github.com/safgate/safgate/internal/service"
	"github.com/safgate/safgate/internal/types"
)

// Authority is the resolver authority this gateway answers for.
const Authority = "safgate"

// Server wires the document tree, picker correlator, media catalog and grant
// store behind one HTTP surface.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	engine  *gin.Engine
	httpSrv *http.Server

	tree       *docs.Tree
	grantStore *grants.Store
	catalog    *media.Catalog
	registry   *service.Registry
	metrics    *monitoring.Metrics
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	tree, err := docs.NewTree(cfg.Roots.InternalPath, cfg.Roots.ExternalPath, log)
	if err != nil {
		return nil, fmt.Errorf("document tree: %w", err)
	}

	grantStore, err := grants.Open(cfg.Grants.DBPath)
	if err != nil {
		return nil, fmt.Errorf("grant store: %w", err)
	}

	catalog, err := media.OpenCatalog(cfg.Media.IndexPath, log)
	if err != nil {
		grantStore.Close()
		return nil, fmt.Errorf("media catalog: %w", err)
	}

	resolverRoot := cfg.Roots.ExternalPath
	if resolverRoot == "" {
		resolverRoot = cfg.Roots.InternalPath
	}
	resolver := content.NewLocal(Authority, resolverRoot, grantStore)

	launcher := picker.NewLogLauncher(log)
	correlator := picker.New(launcher, grantStore, log)

	registry := service.NewRegistry(log)
	if err := registry.Register(docs.NewProvider(tree, log)); err != nil {
		grantStore.Close()
		catalog.Close()
		return nil, err
	}
	if err := registry.Register(bridge.NewProvider(tree, correlator, catalog, resolver, log)); err != nil {
		grantStore.Close()
		catalog.Close()
		return nil, err
	}

	metrics := monitoring.NewMetrics()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	// Document ids travel as one escaped path segment; the provider router
	// does the unescaping itself.
	engine.UseRawPath = true
	engine.UnescapePathValues = false
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.Use(metrics.Middleware())

	s := &Server{
		cfg:        cfg,
		log:        log.Named("server"),
		engine:     engine,
		tree:       tree,
		grantStore: grantStore,
		catalog:    catalog,
		registry:   registry,
		metrics:    metrics,
	}
	s.routes()
	return s, nil
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Registry exposes the service registry.
func (s *Server) Registry() *service.Registry {
	return s.registry
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", s.metrics.Handler())
	s.engine.GET("/services", s.handleServices)
	s.engine.POST("/services/execute", s.handleExecute)
	s.engine.GET("/provider/*address", s.handleProvider)
	s.engine.GET("/open", s.handleOpenRead)
	s.engine.PUT("/open", s.handleOpenWrite)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "safgate",
		"stats":   s.registry.Stats(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"media_available": s.catalog.Available(),
	})
}

func (s *Server) handleServices(c *gin.Context) {
	services := s.registry.List()
	c.JSON(http.StatusOK, gin.H{
		"services": services,
		"count":    len(services),
	})
}

type executeRequest struct {
	ToolID  string                 `json:"tool_id" binding:"required"`
	Params  map[string]interface{} `json:"params"`
	Context *types.Context         `json:"context"`
}

func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}

	start := time.Now()
	result, err := s.registry.Execute(c.Request.Context(), req.ToolID, req.Params, req.Context)
	if err != nil {
		s.metrics.RecordToolCall(req.ToolID, false, time.Since(start))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.RecordToolCall(req.ToolID, result.Success, time.Since(start))

	s.log.Debug("tool executed",
		zap.String("tool", req.ToolID),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", time.Since(start)))
	c.JSON(http.StatusOK, result)
}

// handleProvider answers structural queries addressed the provider way:
// roots, root/{id}, document/{id}, document/{id}/children, search.
func (s *Server) handleProvider(c *gin.Context) {
	route, err := docs.MatchURI(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch route.Kind {
	case docs.RouteRoots:
		roots := s.tree.ListRoots()
		c.JSON(http.StatusOK, gin.H{"roots": roots, "count": len(roots)})

	case docs.RouteRoot:
		root, err := s.tree.Root(route.RootID)
		if err != nil {
			s.treeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"root": root})

	case docs.RouteDocument:
		doc, err := s.tree.Describe(route.DocumentID)
		if err != nil {
			s.treeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": doc})

	case docs.RouteChildren:
		children, err := s.tree.ListChildren(route.DocumentID)
		if err != nil {
			s.treeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"parent":   route.DocumentID,
			"children": children,
			"count":    len(children),
		})

	case docs.RouteSearch:
		c.JSON(http.StatusOK, gin.H{"results": []interface{}{}})
	}
}

// handleOpenRead streams a document's contents.
func (s *Server) handleOpenRead(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id query parameter required"})
		return
	}

	f, err := s.tree.Open(docs.DocumentID(id), docs.ModeRead)
	if err != nil {
		s.treeError(c, err)
		return
	}
	defer f.Close()

	doc, err := s.tree.Describe(docs.DocumentID(id))
	if err != nil {
		s.treeError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, doc.Size, doc.MIMEType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", doc.DisplayName),
	})
}

// handleOpenWrite streams the request body into a document.
func (s *Server) handleOpenWrite(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id query parameter required"})
		return
	}

	mode := docs.ModeTruncate
	if m := c.Query("mode"); m != "" {
		parsed, err := docs.ParseMode(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if parsed == docs.ModeRead {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must allow writing"})
			return
		}
		mode = parsed
	}

	f, err := s.tree.Open(docs.DocumentID(id), mode)
	if err != nil {
		s.treeError(c, err)
		return
	}
	defer f.Close()

	n, err := io.Copy(f, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("write failed: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"written": true, "id": id, "size": n})
}

func (s *Server) treeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, docs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, docs.ErrInvalidArgument), errors.Is(err, docs.ErrNotADirectory):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Start runs the HTTP server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Info("listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the backing stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := s.catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.grantStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
