package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

type fakeOwner struct {
	nodeTypes map[string]bool
}

func (o *fakeOwner) SessionID() string { return "sess_test" }

func (o *fakeOwner) HasNodeType(identifier string) bool { return o.nodeTypes[identifier] }

func newOwner(types ...string) *fakeOwner {
	o := &fakeOwner{nodeTypes: make(map[string]bool)}
	for _, t := range types {
		o.nodeTypes[t] = true
	}
	return o
}

type recorder struct {
	events []types.Event
}

func (r *recorder) Post(e types.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []types.EventKind {
	out := make([]types.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func newTestRegistry() (*Registry, *recorder) {
	rec := &recorder{}
	return NewRegistry(newOwner("math.add", "io.print"), nil, rec), rec
}

func TestCreateRenameDeleteScenario(t *testing.T) {
	r, rec := newTestRegistry()

	a, err := r.Create("A", DefaultOptions())
	require.NoError(t, err)
	b, err := r.Create("B", DefaultOptions())
	require.NoError(t, err)

	_, err = r.Create("A", DefaultOptions())
	require.ErrorIs(t, err, ErrInvalidTitle)
	assert.Equal(t, []string{"A", "B"}, r.Titles())

	require.NoError(t, r.Delete(a))
	assert.Equal(t, []string{"B"}, r.Titles())

	require.NoError(t, r.Rename(b, "A"))
	assert.Equal(t, []string{"A"}, r.Titles())

	assert.Equal(t, []types.EventKind{
		types.EventScriptCreated,
		types.EventScriptCreated,
		types.EventScriptDeleted,
		types.EventScriptRenamed,
	}, rec.kinds())
	assert.Equal(t, "B", rec.events[3].OldTitle)
	assert.Equal(t, "A", rec.events[3].Title)
	assert.Same(t, b, rec.events[3].Script)
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	r, rec := newTestRegistry()

	_, err := r.Create("", DefaultOptions())
	var invalid *InvalidTitleError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, ReasonEmpty, invalid.Reason)
	assert.Zero(t, r.Len())
	assert.Empty(t, rec.events)
}

func TestTitlesAreCaseSensitive(t *testing.T) {
	r, _ := newTestRegistry()

	_, err := r.Create("main", DefaultOptions())
	require.NoError(t, err)
	_, err = r.Create("Main", DefaultOptions())
	require.NoError(t, err)

	assert.False(t, r.ValidTitle("main"))
	assert.True(t, r.ValidTitle("MAIN"))
	assert.False(t, r.ValidTitle(""))
}

func TestRenameRules(t *testing.T) {
	r, rec := newTestRegistry()
	a, _ := r.Create("A", DefaultOptions())
	_, _ = r.Create("B", DefaultOptions())
	rec.events = nil

	err := r.Rename(a, "B")
	require.ErrorIs(t, err, ErrInvalidTitle)
	assert.Equal(t, "A", a.Title())

	require.ErrorIs(t, r.Rename(a, ""), ErrInvalidTitle)
	assert.Empty(t, rec.events)

	require.NoError(t, r.Rename(a, "A"), "renaming to the current title is allowed")
	assert.Len(t, rec.events, 1)
}

func TestUnknownScript(t *testing.T) {
	r, _ := newTestRegistry()
	other, _ := NewRegistry(newOwner(), nil, nil).Create("X", Options{})

	assert.ErrorIs(t, r.Delete(other), ErrNotFound)
	assert.ErrorIs(t, r.Rename(other, "Y"), ErrNotFound)
	assert.ErrorIs(t, r.Delete(nil), ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, r.Delete(other), &nf)
	assert.Equal(t, "X", nf.Title)
}

func TestDeleteTwice(t *testing.T) {
	r, _ := newTestRegistry()
	a, _ := r.Create("A", Options{})

	require.NoError(t, r.Delete(a))
	assert.ErrorIs(t, r.Delete(a), ErrNotFound)
}

func TestSerializeLoadRoundTrip(t *testing.T) {
	r, _ := newTestRegistry()
	first, _ := r.Create("First", Options{FlowSize: [2]int{800, 600}, CreateDefaultLogs: true})
	second, _ := r.Create("Second", Options{})

	_, err := first.(*Document).AddNode("math.add", map[string]interface{}{"inputs": 2.0})
	require.NoError(t, err)
	_, err = second.(*Document).AddNode("io.print", nil)
	require.NoError(t, err)

	configs, err := r.Serialize()
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "First", configs[0][KeyTitle])
	assert.Equal(t, []interface{}{"global", "errors"}, configs[0][KeyLogs])

	fresh, rec := newTestRegistry()
	for _, c := range configs {
		_, err := fresh.Load(c)
		require.NoError(t, err)
	}

	again, err := fresh.Serialize()
	require.NoError(t, err)
	assert.Equal(t, configs, again)
	assert.Equal(t, []string{"First", "Second"}, fresh.Titles())
	assert.Len(t, rec.events, 2)
}

func TestLoadRejectsCollidingTitle(t *testing.T) {
	r, rec := newTestRegistry()
	_, _ = r.Create("A", Options{})
	rec.events = nil

	_, err := r.Load(map[string]interface{}{"title": "A"})
	assert.ErrorIs(t, err, ErrInvalidTitle)
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, rec.events)
}

func TestLoadMissingNodeTypes(t *testing.T) {
	r, _ := newTestRegistry()

	_, err := r.Load(map[string]interface{}{
		"title": "Graph",
		"flow": map[string]interface{}{
			"nodes": []interface{}{
				map[string]interface{}{"identifier": "math.add"},
				map[string]interface{}{"identifier": "gpu.shader"},
				map[string]interface{}{"identifier": "gpu.shader"},
			},
		},
	})

	var missing *MissingNodeTypesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"gpu.shader"}, missing.Identifiers)
	assert.Zero(t, r.Len())
}

func TestLoadMalformedConfigs(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
	}{
		{"missing title", map[string]interface{}{}},
		{"title not string", map[string]interface{}{"title": 3.0}},
		{"flow not object", map[string]interface{}{"title": "x", "flow": "nope"}},
		{"nodes not array", map[string]interface{}{"title": "x", "flow": map[string]interface{}{"nodes": "nope"}}},
		{"node not object", map[string]interface{}{"title": "x", "flow": map[string]interface{}{"nodes": []interface{}{"n"}}}},
		{"node without identifier", map[string]interface{}{"title": "x", "flow": map[string]interface{}{"nodes": []interface{}{map[string]interface{}{}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry()
			_, err := r.Load(tt.config)
			assert.ErrorIs(t, err, ErrMalformedConfig)
			assert.Zero(t, r.Len())
		})
	}
}

func TestUnknownKeysArePreserved(t *testing.T) {
	r, _ := newTestRegistry()
	config := map[string]interface{}{
		"title":   "Keep",
		"theme":   "dark",
		"version": 3.0,
		"flow": map[string]interface{}{
			"zoom":  1.5,
			"nodes": []interface{}{map[string]interface{}{"identifier": "io.print", "pos": []interface{}{1.0, 2.0}}},
		},
	}

	s, err := r.Load(config)
	require.NoError(t, err)

	out, err := s.Serialize()
	require.NoError(t, err)
	assert.Equal(t, config, out)

	out["theme"] = "light"
	again, _ := s.Serialize()
	assert.Equal(t, "dark", again["theme"])
}

func TestAllNodesInScriptOrder(t *testing.T) {
	r, _ := newTestRegistry()
	a, _ := r.Create("A", Options{})
	b, _ := r.Create("B", Options{})

	_, _ = b.(*Document).AddNode("io.print", nil)
	_, _ = a.(*Document).AddNode("math.add", nil)
	_, _ = a.(*Document).AddNode("io.print", nil)

	nodes := r.AllNodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "math.add", nodes[0].Identifier)
	assert.Equal(t, "io.print", nodes[1].Identifier)
	assert.Equal(t, "io.print", nodes[2].Identifier)

	_, err := a.(*Document).AddNode("unregistered", nil)
	assert.ErrorIs(t, err, ErrMissingNodeTypes)
}

func TestFindAndGet(t *testing.T) {
	r, _ := newTestRegistry()
	a, _ := r.Create("A", Options{})

	found, ok := r.Find("A")
	require.True(t, ok)
	assert.Same(t, a, found)

	got, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Find("nope")
	assert.False(t, ok)
}

type failingFactory struct{ DocumentFactory }

func (failingFactory) New(Owner, string, Options) (Script, error) {
	return nil, errors.New("no canvas")
}

func TestFactoryFailureLeavesRegistryUnchanged(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(newOwner(), failingFactory{}, rec)

	_, err := r.Create("A", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no canvas")
	assert.Zero(t, r.Len())
	assert.Empty(t, rec.events)
}

type brokenScript struct{ *Document }

func (brokenScript) Serialize() (map[string]interface{}, error) {
	return nil, errors.New("flow locked")
}

type brokenFactory struct{ DocumentFactory }

func (f brokenFactory) New(o Owner, title string, opts Options) (Script, error) {
	s, err := f.DocumentFactory.New(o, title, opts)
	if err != nil {
		return nil, err
	}
	return brokenScript{s.(*Document)}, nil
}

func TestSerializeReportsScriptFailure(t *testing.T) {
	r := NewRegistry(newOwner(), brokenFactory{}, nil)
	_, err := r.Create("Locked", Options{})
	require.NoError(t, err)

	_, err = r.Serialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Locked"`)
}
