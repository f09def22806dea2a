package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodeflow/internal/domain/addon"
	"github.com/GriffinCanCode/nodeflow/internal/domain/nodes"
	"github.com/GriffinCanCode/nodeflow/internal/domain/script"
	"github.com/GriffinCanCode/nodeflow/internal/domain/session"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodeflow/internal/project"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

const requestTimeout = 10 * time.Second

// Handlers contains all HTTP handlers. Every session access goes through
// the owner so requests never mutate the session concurrently.
type Handlers struct {
	owner       *session.Owner
	store       project.Store
	projectName string
	logger      *logging.Logger
}

// NewHandlers creates a new handler set. projectName is the default store
// key for save and load requests.
func NewHandlers(owner *session.Owner, store project.Store, projectName string, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		owner:       owner,
		store:       store,
		projectName: projectName,
		logger:      logger.Named("http"),
	}
}

// ScriptView is the API representation of a script
type ScriptView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Nodes int    `json:"nodes"`
}

func viewOf(s script.Script) ScriptView {
	return ScriptView{ID: s.ID(), Title: s.Title(), Nodes: len(s.Nodes())}
}

// CreateScriptRequest is the body of POST /scripts
type CreateScriptRequest struct {
	Title       string `json:"title" binding:"required"`
	FlowSize    []int  `json:"flow_size" binding:"omitempty,len=2"`
	DefaultLogs *bool  `json:"default_logs"`
}

// RenameScriptRequest is the body of PATCH /scripts/:title
type RenameScriptRequest struct {
	Title string `json:"title" binding:"required"`
}

// RegisterNodesRequest is the body of POST /nodes
type RegisterNodesRequest struct {
	Identifiers []string `json:"identifiers" binding:"required,min=1"`
}

// ProjectRequest is the body of the project save and load endpoints
type ProjectRequest struct {
	Name string `json:"name"`
}

// Root reports the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "nodeflow",
		"version": Version,
	})
}

// Health reports session statistics
func (h *Handlers) Health(c *gin.Context) {
	var stats session.Stats
	if !h.do(c, func(s *session.Session) error {
		stats = s.Stats()
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"session": stats,
	})
}

// ListScripts lists scripts in session order
func (h *Handlers) ListScripts(c *gin.Context) {
	var views []ScriptView
	if !h.do(c, func(s *session.Session) error {
		for _, sc := range s.Scripts() {
			views = append(views, viewOf(sc))
		}
		return nil
	}) {
		return
	}
	if views == nil {
		views = []ScriptView{}
	}
	c.JSON(http.StatusOK, gin.H{"scripts": views})
}

// CreateScript creates a script
func (h *Handlers) CreateScript(c *gin.Context) {
	var req CreateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := script.DefaultOptions()
	if len(req.FlowSize) == 2 {
		opts.FlowSize = [2]int{req.FlowSize[0], req.FlowSize[1]}
	}
	if req.DefaultLogs != nil {
		opts.CreateDefaultLogs = *req.DefaultLogs
	}

	var view ScriptView
	if !h.do(c, func(s *session.Session) error {
		sc, err := s.CreateScript(req.Title, opts)
		if err != nil {
			return err
		}
		view = viewOf(sc)
		return nil
	}) {
		return
	}
	c.JSON(http.StatusCreated, view)
}

// RenameScript renames the script named in the path
func (h *Handlers) RenameScript(c *gin.Context) {
	var req RenameScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	title := c.Param("title")

	var view ScriptView
	if !h.do(c, func(s *session.Session) error {
		sc, ok := s.Script(title)
		if !ok {
			return &script.NotFoundError{Title: title}
		}
		if err := s.RenameScript(sc, req.Title); err != nil {
			return err
		}
		view = viewOf(sc)
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteScript deletes the script named in the path
func (h *Handlers) DeleteScript(c *gin.Context) {
	title := c.Param("title")
	if !h.do(c, func(s *session.Session) error {
		sc, ok := s.Script(title)
		if !ok {
			return &script.NotFoundError{Title: title}
		}
		return s.DeleteScript(sc)
	}) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ListNodes lists registered node types and the node count
func (h *Handlers) ListNodes(c *gin.Context) {
	var nodeTypes []string
	var nodes int
	if !h.do(c, func(s *session.Session) error {
		nodeTypes = s.NodeTypes()
		nodes = len(s.AllNodes())
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"node_types": nodeTypes,
		"nodes":      nodes,
	})
}

// RegisterNodes registers node types
func (h *Handlers) RegisterNodes(c *gin.Context) {
	var req RegisterNodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var nodeTypes []string
	if !h.do(c, func(s *session.Session) error {
		if err := s.RegisterNodes(req.Identifiers...); err != nil {
			return err
		}
		nodeTypes = s.NodeTypes()
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_types": nodeTypes})
}

// ListAddons lists addon metadata
func (h *Handlers) ListAddons(c *gin.Context) {
	var addons []addon.Descriptor
	if !h.do(c, func(s *session.Session) error {
		addons = s.Addons()
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"addons": addons})
}

// GetProject returns the current project, encoded as ?format= (json by
// default)
func (h *Handlers) GetProject(c *gin.Context) {
	format, err := project.ParseFormat(c.DefaultQuery("format", string(project.FormatJSON)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var p *project.Project
	if !h.do(c, func(s *session.Session) error {
		var err error
		p, err = s.Save()
		return err
	}) {
		return
	}

	data, err := project.Encode(p, format)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType(format), data)
}

// SaveProject writes the session to the store
func (h *Handlers) SaveProject(c *gin.Context) {
	name, ok := h.projectNameFrom(c)
	if !ok {
		return
	}

	var digest string
	if !h.do(c, func(s *session.Session) error {
		var err error
		digest, err = s.SaveAs(c.Request.Context(), h.store, name)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":   name,
		"digest": digest,
	})
}

// LoadProject loads a stored project into the session. Per-script and
// per-addon failures are returned as warnings.
func (h *Handlers) LoadProject(c *gin.Context) {
	name, ok := h.projectNameFrom(c)
	if !ok {
		return
	}

	var report *session.LoadReport
	if !h.do(c, func(s *session.Session) error {
		var err error
		report, err = s.Open(c.Request.Context(), h.store, name)
		return err
	}) {
		return
	}

	warnings := []string{}
	for _, se := range report.ScriptErrors {
		warnings = append(warnings, se.Error())
	}
	if report.Addons != nil {
		for _, f := range report.Addons.Failed {
			warnings = append(warnings, f.Error())
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"name":           name,
		"scripts_loaded": report.ScriptsLoaded,
		"warnings":       warnings,
	})
}

// ListProjects lists stored project names
func (h *Handlers) ListProjects(c *gin.Context) {
	names, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": names})
}

func (h *Handlers) projectNameFrom(c *gin.Context) (string, bool) {
	var req ProjectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return "", false
		}
	}
	if req.Name == "" {
		req.Name = h.projectName
	}
	if err := project.ValidateName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return req.Name, true
}

// do runs fn on the session owner and writes an error response on failure
func (h *Handlers) do(c *gin.Context, fn func(*session.Session) error) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.owner.Do(ctx, fn); err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps domain errors to HTTP status codes
func StatusFor(err error) int {
	var invalid *script.InvalidTitleError
	switch {
	case errors.As(err, &invalid):
		if invalid.Reason == script.ReasonDuplicate {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case errors.Is(err, script.ErrNotFound), errors.Is(err, project.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, project.ErrInvalidName), errors.Is(err, nodes.ErrEmptyIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrMalformedProject), errors.Is(err, project.ErrUnsupportedNull):
		return http.StatusUnprocessableEntity
	case errors.Is(err, addon.ErrRestoreInProgress):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, session.ErrOwnerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func contentType(format project.Format) string {
	switch format {
	case project.FormatYAML:
		return "application/yaml"
	case project.FormatTOML:
		return "application/toml"
	default:
		return "application/json"
	}
}
