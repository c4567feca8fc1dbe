package docs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safgate/safgate/internal/logging"
)

func newTestProvider(t *testing.T) (*Provider, string) {
	t.Helper()
	tree, internal := newTestTree(t)
	return NewProvider(tree, logging.NewNop()), internal
}

func exec(t *testing.T, p *Provider, toolID string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	result, err := p.Execute(context.Background(), toolID, params, nil)
	require.NoError(t, err)
	require.True(t, result.Success, "tool %s failed: %v", toolID, result.Error)
	return result.Data
}

func execFail(t *testing.T, p *Provider, toolID string, params map[string]interface{}) string {
	t.Helper()
	result, err := p.Execute(context.Background(), toolID, params, nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	return *result.Error
}

func TestProviderDefinition(t *testing.T) {
	p, _ := newTestProvider(t)
	def := p.Definition()

	assert.Equal(t, "documents", def.ID)
	require.NotEmpty(t, def.Tools)
	for _, tool := range def.Tools {
		assert.Contains(t, tool.ID, "documents.")
	}
}

func TestProviderRoots(t *testing.T) {
	p, _ := newTestProvider(t)
	data := exec(t, p, "documents.roots", nil)
	assert.Equal(t, 1, data["count"])
}

func TestProviderCreateWriteReadCycle(t *testing.T) {
	p, internal := newTestProvider(t)

	data := exec(t, p, "documents.create", map[string]interface{}{
		"parent_id":    internal,
		"mime_type":    "application/json",
		"display_name": "data.json",
	})
	id := data["id"].(string)
	assert.Equal(t, filepath.Join(internal, "data.json"), id)

	exec(t, p, "documents.write", map[string]interface{}{
		"id":   id,
		"data": `{"ok":true}`,
	})

	read := exec(t, p, "documents.read", map[string]interface{}{"id": id})
	assert.Equal(t, `{"ok":true}`, read["content"])

	desc := exec(t, p, "documents.describe", map[string]interface{}{"id": id})
	doc := desc["document"].(*Document)
	assert.Equal(t, "data.json", doc.DisplayName)
	assert.Equal(t, int64(len(`{"ok":true}`)), doc.Size)
}

func TestProviderChildren(t *testing.T) {
	p, internal := newTestProvider(t)

	exec(t, p, "documents.create", map[string]interface{}{
		"parent_id":    internal,
		"mime_type":    MIMETypeDirectory,
		"display_name": "sub",
	})

	data := exec(t, p, "documents.children", map[string]interface{}{"id": internal})
	assert.Equal(t, 1, data["count"])
}

func TestProviderDeleteAndRename(t *testing.T) {
	p, internal := newTestProvider(t)

	created := exec(t, p, "documents.create", map[string]interface{}{
		"parent_id":    internal,
		"mime_type":    "application/json",
		"display_name": "old.json",
	})
	id := created["id"].(string)

	renamed := exec(t, p, "documents.rename", map[string]interface{}{
		"id":           id,
		"display_name": "new.json",
	})
	newID := renamed["id"].(string)
	assert.Equal(t, filepath.Join(internal, "new.json"), newID)

	exec(t, p, "documents.delete", map[string]interface{}{"id": newID})
	execFail(t, p, "documents.describe", map[string]interface{}{"id": newID})
}

func TestProviderUsage(t *testing.T) {
	p, _ := newTestProvider(t)
	data := exec(t, p, "documents.usage", map[string]interface{}{"root_id": RootIDInternal})
	assert.NotNil(t, data["usage"])
}

func TestProviderSearchIsEmpty(t *testing.T) {
	p, _ := newTestProvider(t)
	data := exec(t, p, "documents.search", map[string]interface{}{"query": "anything"})
	assert.Empty(t, data["results"])
}

func TestProviderMissingParams(t *testing.T) {
	p, _ := newTestProvider(t)

	execFail(t, p, "documents.describe", nil)
	execFail(t, p, "documents.children", nil)
	execFail(t, p, "documents.read", nil)
	execFail(t, p, "documents.write", map[string]interface{}{"id": "/x"})
	execFail(t, p, "documents.create", map[string]interface{}{"parent_id": "/x"})
	execFail(t, p, "documents.rename", map[string]interface{}{"id": "/x"})
}

func TestProviderUnknownTool(t *testing.T) {
	p, _ := newTestProvider(t)
	msg := execFail(t, p, "documents.explode", nil)
	assert.Contains(t, msg, "unknown tool")
}

func TestProviderWriteRejectsReadMode(t *testing.T) {
	p, internal := newTestProvider(t)

	created := exec(t, p, "documents.create", map[string]interface{}{
		"parent_id":    internal,
		"mime_type":    "application/json",
		"display_name": "data.json",
	})

	msg := execFail(t, p, "documents.write", map[string]interface{}{
		"id":   created["id"],
		"data": "x",
		"mode": "r",
	})
	assert.Contains(t, msg, "mode")
}
