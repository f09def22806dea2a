package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nodeflow/internal/addons/variables"
	"github.com/GriffinCanCode/nodeflow/internal/domain/addon"
	"github.com/GriffinCanCode/nodeflow/internal/domain/script"
	"github.com/GriffinCanCode/nodeflow/internal/domain/session"
	"github.com/GriffinCanCode/nodeflow/internal/project"
)

type testAPI struct {
	router  *gin.Engine
	session *session.Session
	store   *project.FileStore
}

func setup(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := session.New(session.WithAddons(variables.New()))
	require.NoError(t, err)
	store, err := project.NewFileStore(t.TempDir(), project.FormatJSON)
	require.NoError(t, err)

	owner := session.NewOwner(s)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = owner.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	h := NewHandlers(owner, store, "default", nil)
	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/scripts", h.ListScripts)
	router.POST("/scripts", h.CreateScript)
	router.PATCH("/scripts/:title", h.RenameScript)
	router.DELETE("/scripts/:title", h.DeleteScript)
	router.GET("/nodes", h.ListNodes)
	router.POST("/nodes", h.RegisterNodes)
	router.GET("/addons", h.ListAddons)
	router.GET("/project", h.GetProject)
	router.POST("/project/save", h.SaveProject)
	router.POST("/project/load", h.LoadProject)
	router.GET("/projects", h.ListProjects)

	return &testAPI{router: router, session: s, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func writeRaw(store *project.FileStore, name, content string) error {
	return os.WriteFile(filepath.Join(store.Dir(), name+project.FormatJSON.Ext()), []byte(content), 0o644)
}

func scriptTitles(s *session.Session) []string {
	var out []string
	for _, sc := range s.Scripts() {
		out = append(out, sc.Title())
	}
	return out
}

func TestScriptLifecycle(t *testing.T) {
	api := setup(t)

	w := api.do(t, http.MethodPost, "/scripts", gin.H{"title": "A"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "A", created["title"])
	assert.NotEmpty(t, created["id"])

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/scripts", gin.H{"title": "B"}).Code)
	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, "/scripts", gin.H{"title": "A"}).Code)
	assert.Equal(t, []string{"A", "B"}, scriptTitles(api.session))

	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/scripts/A", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/scripts/A", nil).Code)

	w = api.do(t, http.MethodPatch, "/scripts/B", gin.H{"title": "A"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", decode(t, w)["title"])

	w = api.do(t, http.MethodGet, "/scripts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	scripts := decode(t, w)["scripts"].([]interface{})
	require.Len(t, scripts, 1)
	assert.Equal(t, "A", scripts[0].(map[string]interface{})["title"])
}

func TestCreateScriptValidation(t *testing.T) {
	api := setup(t)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/scripts", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/scripts", gin.H{"title": "A", "flow_size": []int{1}}).Code)

	w := api.do(t, http.MethodPost, "/scripts", gin.H{"title": "A", "flow_size": []int{640, 480}, "default_logs": false})
	require.Equal(t, http.StatusCreated, w.Code)

	sc, ok := api.session.Script("A")
	require.True(t, ok)
	config, err := sc.Serialize()
	require.NoError(t, err)
	assert.NotContains(t, config, script.KeyLogs)
	assert.Equal(t, []interface{}{640.0, 480.0}, config[script.KeyFlow].(map[string]interface{})[script.KeySize])

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPatch, "/scripts/missing", gin.H{"title": "x"}).Code)
}

func TestNodesAndAddons(t *testing.T) {
	api := setup(t)

	w := api.do(t, http.MethodPost, "/nodes", gin.H{"identifiers": []string{"math.add", "io.print", "math.add"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"math.add", "io.print"}, decode(t, w)["node_types"])

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/nodes", gin.H{"identifiers": []string{""}}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/nodes", gin.H{}).Code)

	w = api.do(t, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode(t, w)["nodes"])

	w = api.do(t, http.MethodGet, "/addons", nil)
	require.Equal(t, http.StatusOK, w.Code)
	addons := decode(t, w)["addons"].([]interface{})
	require.Len(t, addons, 1)
	assert.Equal(t, variables.Name, addons[0].(map[string]interface{})["name"])
}

func TestProjectSaveAndLoad(t *testing.T) {
	api := setup(t)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/scripts", gin.H{"title": "main"}).Code)

	vars, err := api.session.Addon(variables.Name)
	require.NoError(t, err)
	require.NoError(t, vars.(*variables.Variables).Set("threshold", 0.25))

	w := api.do(t, http.MethodPost, "/project/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode(t, w)
	assert.Equal(t, "default", saved["name"])
	assert.Len(t, saved["digest"], 64)

	w = api.do(t, http.MethodPost, "/project/save", gin.H{"name": "backup"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, saved["digest"], decode(t, w)["digest"])

	w = api.do(t, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"backup", "default"}, decode(t, w)["projects"])

	// Loading into a session that still has "main" collides and is reported
	w = api.do(t, http.MethodPost, "/project/load", gin.H{"name": "backup"})
	require.Equal(t, http.StatusOK, w.Code)
	loaded := decode(t, w)
	assert.Equal(t, 0.0, loaded["scripts_loaded"])
	assert.Len(t, loaded["warnings"], 1)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/project/load", gin.H{"name": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/project/save", gin.H{"name": "../x"}).Code)
}

func TestLoadMalformedProject(t *testing.T) {
	api := setup(t)
	require.NoError(t, writeRaw(api.store, "broken", `{"addons":{}}`))

	w := api.do(t, http.MethodPost, "/project/load", gin.H{"name": "broken"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetProjectFormats(t *testing.T) {
	api := setup(t)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/scripts", gin.H{"title": "main"}).Code)

	w := api.do(t, http.MethodGet, "/project", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	body := decode(t, w)
	assert.Len(t, body["scripts"], 1)
	assert.Contains(t, body["addons"], variables.Name)

	w = api.do(t, http.MethodGet, "/project?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/yaml")
	raw, err := project.Decode(w.Body.Bytes(), project.FormatYAML)
	require.NoError(t, err)
	p, err := project.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "main", p.Scripts[0]["title"])

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/project?format=xml", nil).Code)
}

func TestRootAndHealth(t *testing.T) {
	api := setup(t)

	w := api.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Version, decode(t, w)["version"])

	w = api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, api.session.ID(), body["session"].(map[string]interface{})["id"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&script.InvalidTitleError{Reason: script.ReasonDuplicate}, http.StatusConflict},
		{&script.InvalidTitleError{Reason: script.ReasonEmpty}, http.StatusBadRequest},
		{&script.NotFoundError{Title: "x"}, http.StatusNotFound},
		{project.ErrNotFound, http.StatusNotFound},
		{&project.MalformedError{Section: "scripts"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("encode toml project: %w", project.ErrUnsupportedNull), http.StatusUnprocessableEntity},
		{addon.ErrRestoreInProgress, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{session.ErrOwnerStopped, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
