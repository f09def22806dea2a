package project

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProject() *Project {
	return &Project{
		Scripts: []map[string]interface{}{
			{
				"title": "Main",
				"flow": map[string]interface{}{
					"nodes": []interface{}{
						map[string]interface{}{"identifier": "math.add", "value": 1.5},
					},
					"size": []interface{}{float64(800), float64(600)},
				},
			},
			{"title": "Helper"},
		},
		Addons: map[string]map[string]interface{}{
			"logger": {"level": "debug"},
		},
	}
}

func TestParseAcceptsWellFormed(t *testing.T) {
	raw := sampleProject().ToMap()

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, p.Scripts, 2)
	assert.Equal(t, "Main", p.Scripts[0]["title"])
	assert.Equal(t, "Helper", p.Scripts[1]["title"])
	assert.Equal(t, "debug", p.Addons["logger"]["level"])
}

func TestParseCopiesInput(t *testing.T) {
	raw := sampleProject().ToMap()

	p, err := Parse(raw)
	require.NoError(t, err)

	raw[KeyScripts].([]interface{})[0].(map[string]interface{})["title"] = "Changed"
	assert.Equal(t, "Main", p.Scripts[0]["title"])
}

func TestParseMissingAddonsIsEmpty(t *testing.T) {
	p, err := Parse(map[string]interface{}{KeyScripts: []interface{}{}})
	require.NoError(t, err)
	assert.Empty(t, p.Scripts)
	assert.NotNil(t, p.Addons)
	assert.Empty(t, p.Addons)
}

func TestParseNullAddonStateIsEmpty(t *testing.T) {
	p, err := Parse(map[string]interface{}{
		KeyScripts: []interface{}{},
		KeyAddons:  map[string]interface{}{"logger": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, p.Addons["logger"])
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]interface{}
		section string
	}{
		{"nil project", nil, "project"},
		{"missing scripts", map[string]interface{}{KeyAddons: map[string]interface{}{}}, KeyScripts},
		{"scripts not array", map[string]interface{}{KeyScripts: "Main"}, KeyScripts},
		{"script entry not object", map[string]interface{}{KeyScripts: []interface{}{map[string]interface{}{"title": "A"}, 3.0}}, "scripts[1]"},
		{"addons not object", map[string]interface{}{KeyScripts: []interface{}{}, KeyAddons: []interface{}{}}, KeyAddons},
		{"addon state not object", map[string]interface{}{KeyScripts: []interface{}{}, KeyAddons: map[string]interface{}{"logger": "debug"}}, "addons.logger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrMalformed))

			var malformed *MalformedError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.section, malformed.Section)
		})
	}
}

func TestToMapNeverNil(t *testing.T) {
	m := (&Project{}).ToMap()
	assert.Equal(t, []interface{}{}, m[KeyScripts])
	assert.Equal(t, map[string]interface{}{}, m[KeyAddons])
}
