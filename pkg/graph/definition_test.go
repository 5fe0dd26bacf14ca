package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefinitionYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	content := `
start_id: a
activities:
  - id: a
    name: Entry
    kind: start
  - id: b
    name: Done
    kind: render
connections:
  - source_id: a
    target_id: b
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "a", def.StartID)
	require.Len(t, def.Activities, 2)
	assert.Equal(t, "Entry", def.Activities[0].Name)
	require.Len(t, def.Connections, 1)

	_, err = Compile(def)
	assert.NoError(t, err)
}

func TestLoadDefinitionJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	content := `{
  "startId": "a",
  "activities": [
    {"id": "a", "name": "Entry", "kind": "start"},
    {"id": "b", "name": "Done", "kind": "render"}
  ],
  "connections": [
    {"sourceId": "a", "targetId": "b"}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "a", def.StartID)
	assert.Len(t, def.Activities, 2)
}

func TestLoadDefinitionUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	_, err := LoadDefinition(path)
	assert.Error(t, err)
}

func TestLoadDefinitionMissingFile(t *testing.T) {
	_, err := LoadDefinition(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
