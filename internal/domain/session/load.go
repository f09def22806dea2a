package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodeflow/internal/domain/addon"
	"github.com/GriffinCanCode/nodeflow/internal/project"
)

// MalformedProjectError is returned when a project's top-level structure
// is wrong. The session is left untouched.
type MalformedProjectError = project.MalformedError

// ErrMalformedProject matches every MalformedProjectError
var ErrMalformedProject = project.ErrMalformed

// ScriptError is a script that could not be loaded
type ScriptError struct {
	Index int
	Err   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %d: %v", e.Index, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// LoadReport lists what a load did. Failures here are warnings; the rest
// of the project was still loaded.
type LoadReport struct {
	ScriptsLoaded int
	ScriptErrors  []*ScriptError
	Addons        *addon.RestoreReport
}

// OK reports whether every script and addon loaded cleanly
func (r *LoadReport) OK() bool {
	return r == nil || (len(r.ScriptErrors) == 0 && r.Addons.OK())
}

// Err combines every failure into one error, or nil
func (r *LoadReport) Err() error {
	if r == nil {
		return nil
	}
	var err error
	for _, se := range r.ScriptErrors {
		err = multierr.Append(err, se)
	}
	return multierr.Append(err, r.Addons.Err())
}

// Load reads a decoded project into the session.
//
// The whole payload is shape-checked first; a malformed project returns a
// MalformedProjectError and nothing is registered. Scripts are then loaded
// in persisted order. Only once every script is in place are addon states
// restored, inside the restore window. Individual script and addon
// failures do not stop the load and are returned in the report.
func (s *Session) Load(raw map[string]interface{}) (*LoadReport, error) {
	start := time.Now()

	if s.addons.Restoring() {
		return nil, addon.ErrRestoreInProgress
	}

	p, err := project.Parse(raw)
	if err != nil {
		s.metrics.ProjectLoaded(false, time.Since(start))
		s.logger.Warn("Rejected malformed project", zap.Error(err))
		return nil, err
	}

	report := &LoadReport{}
	for i, config := range p.Scripts {
		sc, err := s.scripts.Load(config)
		if err != nil {
			report.ScriptErrors = append(report.ScriptErrors, &ScriptError{Index: i, Err: err})
			s.logger.Warn("Failed to load script", zap.Int("index", i), zap.Error(err))
			continue
		}
		report.ScriptsLoaded++
		s.logger.Debug("Script loaded", zap.String("script", sc.Title()), zap.String("script_id", sc.ID()))
	}

	restored, err := s.addons.RestoreAll(p.Addons)
	if err != nil {
		s.metrics.ProjectLoaded(false, time.Since(start))
		return report, fmt.Errorf("restore addons: %w", err)
	}
	report.Addons = restored

	for range restored.Restored {
		s.metrics.AddonRestored(true)
	}
	for _, f := range restored.Failed {
		s.metrics.AddonRestored(false)
		s.logger.Warn("Failed to restore addon", zap.String("addon", f.Name), zap.Error(f.Err))
	}

	s.metrics.ProjectLoaded(report.OK(), time.Since(start))
	s.logger.Info("Project loaded",
		zap.Int("scripts", report.ScriptsLoaded),
		zap.Int("script_errors", len(report.ScriptErrors)),
		zap.Int("addons", len(restored.Restored)),
		zap.Int("addon_errors", len(restored.Failed)),
		zap.Duration("took", time.Since(start)))
	return report, nil
}

// LoadJSON decodes JSON project bytes and loads them
func (s *Session) LoadJSON(data []byte) (*LoadReport, error) {
	raw, err := project.Decode(data, project.FormatJSON)
	if err != nil {
		return nil, err
	}
	return s.Load(raw)
}

// Save returns the session as a project: script configs in collection
// order and each addon's state. It is the inverse of Load. Saving is
// refused while addon state is being restored.
func (s *Session) Save() (*project.Project, error) {
	states, err := s.addons.States()
	if err != nil {
		return nil, err
	}
	scripts, err := s.scripts.Serialize()
	if err != nil {
		return nil, err
	}
	s.metrics.ProjectSaved()
	return &project.Project{Scripts: scripts, Addons: states}, nil
}

// SaveAs saves the session into store under name and returns the digest of
// the canonical project
func (s *Session) SaveAs(ctx context.Context, store project.Store, name string) (string, error) {
	p, err := s.Save()
	if err != nil {
		return "", err
	}
	digest, err := project.Digest(p)
	if err != nil {
		return "", err
	}
	if err := store.Save(ctx, name, p); err != nil {
		return "", fmt.Errorf("save project %q: %w", name, err)
	}
	s.logger.Info("Project saved",
		zap.String("project", name),
		zap.String("digest", digest),
		zap.Int("scripts", len(p.Scripts)))
	return digest, nil
}

// Open loads the named project from store into the session
func (s *Session) Open(ctx context.Context, store project.Store, name string) (*LoadReport, error) {
	raw, err := store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open project %q: %w", name, err)
	}
	return s.Load(raw)
}
