package addon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loggerAddon struct {
	Info
	level string
	fail  error
	panic bool
	sets  int
}

func newLogger(name string) *loggerAddon {
	return &loggerAddon{Info: NewInfo(name, "1.0.0", "records log level"), level: "info"}
}

func (l *loggerAddon) GetState() map[string]interface{} {
	return map[string]interface{}{"level": l.level}
}

func (l *loggerAddon) SetState(state map[string]interface{}) error {
	l.sets++
	if l.panic {
		panic("boom")
	}
	if l.fail != nil {
		return l.fail
	}
	if level, ok := state["level"].(string); ok {
		l.level = level
	}
	return nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	logger := newLogger("logger")

	require.NoError(t, r.Register(logger))

	got, err := r.Resolve("logger")
	require.NoError(t, err)
	assert.Same(t, logger, got)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []Descriptor{{Name: "logger", Version: "1.0.0", Description: "records log level"}}, r.Descriptors())
}

func TestRegisterRejectsDuplicateAndEmpty(t *testing.T) {
	r := NewRegistry()
	first := newLogger("logger")
	require.NoError(t, r.Register(first))

	err := r.Register(newLogger("logger"))
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "logger", dup.Name)
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := r.Resolve("logger")
	require.NoError(t, err)
	assert.Same(t, first, got, "rejected registration must not replace the original")

	assert.ErrorIs(t, r.Register(newLogger("")), ErrEmptyName)
	assert.ErrorIs(t, r.Register(nil), ErrEmptyName)
	assert.Equal(t, 1, r.Len())
}

func TestResolveUnknownSuggestsName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newLogger("logger")))
	require.NoError(t, r.Register(newLogger("variables")))

	_, err := r.Resolve("loger")
	var unknown *UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "logger", unknown.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "logger"`)

	_, err = r.Resolve("zzzzzzzzzz")
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Suggestion)
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestAccessBlockedDuringRestore(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newLogger("logger")))

	require.NoError(t, r.BeginRestore())
	assert.True(t, r.Restoring())

	_, err := r.Resolve("logger")
	var blocked *AccessBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.ErrorIs(t, err, ErrAccessBlocked)

	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, ErrAccessBlocked, "blocked window wins over unknown names")

	_, err = r.Snapshot()
	assert.ErrorIs(t, err, ErrRestoreInProgress)

	assert.ErrorIs(t, r.BeginRestore(), ErrRestoreInProgress)

	r.EndRestore()
	assert.False(t, r.Restoring())

	_, err = r.Resolve("logger")
	assert.NoError(t, err)
}

func TestRestoreOutsideWindow(t *testing.T) {
	r := NewRegistry()
	logger := newLogger("logger")
	require.NoError(t, r.Register(logger))

	err := r.Restore("logger", map[string]interface{}{"level": "debug"})
	assert.ErrorIs(t, err, ErrNotRestoring)
	assert.Equal(t, "info", logger.level)
	assert.Zero(t, logger.sets)
}

func TestRestoreToleratesPartialState(t *testing.T) {
	r := NewRegistry()
	logger := newLogger("logger")
	require.NoError(t, r.Register(logger))

	require.NoError(t, r.BeginRestore())
	assert.NoError(t, r.Restore("logger", map[string]interface{}{"future_key": true}))
	assert.NoError(t, r.Restore("logger", nil))
	r.EndRestore()

	assert.Equal(t, "info", logger.level)
	assert.Equal(t, 2, logger.sets)
}

func TestRestoreAllAggregatesFailures(t *testing.T) {
	r := NewRegistry()
	good := newLogger("good")
	failing := newLogger("failing")
	failing.fail = errors.New("corrupt state")
	panicky := newLogger("panicky")
	panicky.panic = true
	for _, a := range []Addon{good, failing, panicky} {
		require.NoError(t, r.Register(a))
	}

	report, err := r.RestoreAll(map[string]map[string]interface{}{
		"good":    {"level": "warn"},
		"failing": {"level": "warn"},
		"panicky": {"level": "warn"},
		"ghost":   {"level": "warn"},
	})
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, []string{"good"}, report.Restored)
	require.Len(t, report.Failed, 3)

	names := []string{report.Failed[0].Name, report.Failed[1].Name, report.Failed[2].Name}
	assert.Equal(t, []string{"failing", "ghost", "panicky"}, names)
	assert.ErrorIs(t, report.Failed[1], ErrUnknown)
	assert.Contains(t, report.Failed[2].Error(), "panic in SetState")

	assert.Equal(t, "warn", good.level)
	assert.False(t, r.Restoring(), "window must close even when addons fail")

	combined := report.Err()
	require.Error(t, combined)
	assert.Contains(t, combined.Error(), "corrupt state")
}

func TestRestoreAllWhileRestoring(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.BeginRestore())

	_, err := r.RestoreAll(nil)
	assert.ErrorIs(t, err, ErrRestoreInProgress)
	assert.True(t, r.Restoring(), "a rejected batch must not close someone else's window")
}

func TestSnapshotOrderAndPurity(t *testing.T) {
	r := NewRegistry()
	b := newLogger("b")
	a := newLogger("a")
	a.level = "debug"
	require.NoError(t, r.Register(b))
	require.NoError(t, r.Register(a))

	entries, err := r.Snapshot()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, "a", entries[1].Name)
	assert.Equal(t, "debug", entries[1].State["level"])

	entries[1].State["level"] = "mutated"
	assert.Equal(t, "debug", a.level)
	assert.Zero(t, a.sets)

	states, err := r.States()
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]interface{}{
		"a": {"level": "debug"},
		"b": {"level": "info"},
	}, states)
}

func TestNilReport(t *testing.T) {
	var report *RestoreReport
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
}
