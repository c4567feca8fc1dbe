package bridge

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safgate/safgate/internal/content"
	"github.com/safgate/safgate/internal/docs"
	"github.com/safgate/safgate/internal/grants"
	"github.com/safgate/safgate/internal/logging"
	"github.com/safgate/safgate/internal/media"
	"github.com/safgate/safgate/internal/picker"
	"github.com/safgate/safgate/internal/types"
)

// chanLauncher hands dispatched tokens to the test so it can post results
// back through saf.resolve, the way the external selection surface would.
type chanLauncher struct {
	tokens chan uuid.UUID
}

func (l *chanLauncher) Launch(ctx context.Context, token uuid.UUID, code int, intent picker.Intent) error {
	l.tokens <- token
	return nil
}

type memGrants struct {
	mu    sync.Mutex
	taken map[string]grants.Grant
}

func newMemGrants() *memGrants {
	return &memGrants{taken: map[string]grants.Grant{}}
}

func (g *memGrants) Take(uri string, read, write bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.taken[uri] = grants.Grant{URI: uri, Read: read, Write: write, GrantedAt: time.Now()}
	return nil
}

func (g *memGrants) Release(uri string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.taken, uri)
	return nil
}

func (g *memGrants) List() ([]grants.Grant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]grants.Grant, 0, len(g.taken))
	for _, grant := range g.taken {
		out = append(out, grant)
	}
	return out, nil
}

type fixture struct {
	provider *Provider
	tree     *docs.Tree
	launcher *chanLauncher
	internal string
	external string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	internal := filepath.Join(base, "internal")
	external := filepath.Join(base, "external")
	require.NoError(t, os.MkdirAll(external, 0o755))

	log := logging.NewNop()
	tree, err := docs.NewTree(internal, "", log)
	require.NoError(t, err)

	launcher := &chanLauncher{tokens: make(chan uuid.UUID, 4)}
	correlator := picker.New(launcher, newMemGrants(), log)

	catalog, err := media.OpenCatalog("", log)
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	resolver := content.NewLocal("safgate", external, nil)

	return &fixture{
		provider: NewProvider(tree, correlator, catalog, resolver, log),
		tree:     tree,
		launcher: launcher,
		internal: internal,
		external: external,
	}
}

func run(t *testing.T, p *Provider, toolID string, params map[string]interface{}) *types.Result {
	t.Helper()
	result, err := p.Execute(context.Background(), toolID, params, nil)
	require.NoError(t, err)
	return result
}

func ok(t *testing.T, p *Provider, toolID string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	result := run(t, p, toolID, params)
	require.True(t, result.Success, "tool %s failed: %v", toolID, result.Error)
	return result.Data
}

func fail(t *testing.T, p *Provider, toolID string, params map[string]interface{}) string {
	t.Helper()
	result := run(t, p, toolID, params)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	return *result.Error
}

func TestDefinitionCoversAllTools(t *testing.T) {
	f := newFixture(t)
	def := f.provider.Definition()

	assert.Equal(t, "saf", def.ID)
	ids := map[string]bool{}
	for _, tool := range def.Tools {
		ids[tool.ID] = true
	}
	for _, id := range []string{
		"saf.open_document_picker",
		"saf.open_directory_picker",
		"saf.create_document",
		"saf.get_media_files",
		"saf.get_file_info",
		"saf.copy_from_external",
		"saf.copy_to_external",
		"saf.delete_document",
		"saf.is_accessible",
		"saf.list_grants",
		"saf.release_grant",
		"saf.resolve",
	} {
		assert.True(t, ids[id], id)
	}
}

func TestInvalidContentReferenceRejectedEarly(t *testing.T) {
	f := newFixture(t)

	for _, toolID := range []string{
		"saf.get_file_info",
		"saf.delete_document",
		"saf.is_accessible",
		"saf.release_grant",
	} {
		msg := fail(t, f.provider, toolID, map[string]interface{}{"uri": "file:///etc/passwd"})
		assert.Contains(t, msg, "invalid content reference", toolID)
	}

	msg := fail(t, f.provider, "saf.copy_to_external", map[string]interface{}{
		"source_id": "/tmp/x",
		"uri":       "/not/a/ref",
	})
	assert.Contains(t, msg, "invalid content reference")
}

func TestGetMediaFilesRejectsUnsupportedType(t *testing.T) {
	f := newFixture(t)
	msg := fail(t, f.provider, "saf.get_media_files", map[string]interface{}{"media_type": "document"})
	assert.Contains(t, msg, "unsupported media type")
}

func TestGetMediaFilesEmptyCatalog(t *testing.T) {
	f := newFixture(t)
	data := ok(t, f.provider, "saf.get_media_files", map[string]interface{}{"media_type": "image"})
	assert.Equal(t, 0, data["count"])
}

func TestGetFileInfoSniffsUnknownType(t *testing.T) {
	f := newFixture(t)
	// no extension, so the resolver reports no type and the leading bytes decide
	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	require.NoError(t, os.WriteFile(filepath.Join(f.external, "snapshot"), pngHeader, 0o644))

	data := ok(t, f.provider, "saf.get_file_info", map[string]interface{}{
		"uri": "content://safgate/snapshot",
	})
	assert.Equal(t, "snapshot", data["name"])
	assert.Equal(t, int64(len(pngHeader)), data["size"])
	assert.Equal(t, "image/png", data["mime_type"])
}

func TestGetFileInfoMissing(t *testing.T) {
	f := newFixture(t)
	msg := fail(t, f.provider, "saf.get_file_info", map[string]interface{}{
		"uri": "content://safgate/ghost.bin",
	})
	assert.Contains(t, msg, "not found")
}

func TestCopyFromExternal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.external, "incoming.bin"), []byte("payload"), 0o644))

	target := filepath.Join(f.internal, "copied.bin")
	data := ok(t, f.provider, "saf.copy_from_external", map[string]interface{}{
		"uri":       "content://safgate/incoming.bin",
		"target_id": target,
	})
	assert.Equal(t, int64(len("payload")), data["bytes"])

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestCopyFromExternalRejectsTargetOutsideRoots(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.external, "incoming.bin"), []byte("payload"), 0o644))

	msg := fail(t, f.provider, "saf.copy_from_external", map[string]interface{}{
		"uri":       "content://safgate/incoming.bin",
		"target_id": "/etc/hijacked",
	})
	assert.Contains(t, msg, "outside the configured roots")
}

func TestCopyToExternal(t *testing.T) {
	f := newFixture(t)

	sourceID, err := f.tree.Create(f.tree.Identity().IDFor(f.internal), "application/octet-stream", "outgoing.bin")
	require.NoError(t, err)
	w, err := f.tree.Open(sourceID, docs.ModeTruncate)
	require.NoError(t, err)
	_, err = w.WriteString("exported")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data := ok(t, f.provider, "saf.copy_to_external", map[string]interface{}{
		"source_id": string(sourceID),
		"uri":       "content://safgate/exported.bin",
	})
	assert.Equal(t, int64(len("exported")), data["bytes"])

	got, err := os.ReadFile(filepath.Join(f.external, "exported.bin"))
	require.NoError(t, err)
	assert.Equal(t, "exported", string(got))
}

func TestDeleteDocumentAndAccessibility(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.external, "doomed.bin"), []byte("x"), 0o644))
	uri := "content://safgate/doomed.bin"

	data := ok(t, f.provider, "saf.is_accessible", map[string]interface{}{"uri": uri})
	assert.Equal(t, true, data["accessible"])

	ok(t, f.provider, "saf.delete_document", map[string]interface{}{"uri": uri})

	data = ok(t, f.provider, "saf.is_accessible", map[string]interface{}{"uri": uri})
	assert.Equal(t, false, data["accessible"])
}

func TestPickerEndToEnd(t *testing.T) {
	f := newFixture(t)

	type pickOutcome struct {
		result *types.Result
		err    error
	}
	done := make(chan pickOutcome, 1)
	go func() {
		result, err := f.provider.Execute(context.Background(), "saf.open_document_picker",
			map[string]interface{}{"allow_multiple": true}, nil)
		done <- pickOutcome{result: result, err: err}
	}()

	var token uuid.UUID
	select {
	case token = <-f.launcher.tokens:
	case <-time.After(5 * time.Second):
		t.Fatal("picker intent never dispatched")
	}

	resolveData := ok(t, f.provider, "saf.resolve", map[string]interface{}{
		"token": token.String(),
		"uris":  []interface{}{"content://safgate/a.txt", "content://safgate/b.txt"},
	})
	assert.Equal(t, true, resolveData["resolved"])

	outcome := <-done
	require.NoError(t, outcome.err)
	require.True(t, outcome.result.Success)
	assert.Equal(t, []string{"content://safgate/a.txt", "content://safgate/b.txt"},
		outcome.result.Data["uris"])
	assert.Equal(t, 2, outcome.result.Data["count"])

	// the selection left persistent grants behind
	listed := ok(t, f.provider, "saf.list_grants", nil)
	assert.Equal(t, 2, listed["count"])

	ok(t, f.provider, "saf.release_grant", map[string]interface{}{"uri": "content://safgate/a.txt"})
	listed = ok(t, f.provider, "saf.list_grants", nil)
	assert.Equal(t, 1, listed["count"])
}

func TestPickerCancellation(t *testing.T) {
	f := newFixture(t)

	done := make(chan *types.Result, 1)
	go func() {
		result, _ := f.provider.Execute(context.Background(), "saf.open_directory_picker", nil, nil)
		done <- result
	}()

	token := <-f.launcher.tokens
	ok(t, f.provider, "saf.resolve", map[string]interface{}{
		"token":     token.String(),
		"cancelled": true,
	})

	result := <-done
	require.False(t, result.Success)
	assert.Contains(t, *result.Error, "cancelled")
}

func TestPickerContextCancellation(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *types.Result, 1)
	go func() {
		result, _ := f.provider.Execute(ctx, "saf.open_document_picker", map[string]interface{}{}, nil)
		done <- result
	}()

	<-f.launcher.tokens
	cancel()

	result := <-done
	require.False(t, result.Success)
	assert.Contains(t, *result.Error, "context canceled")
}

func TestResolveMalformedToken(t *testing.T) {
	f := newFixture(t)
	msg := fail(t, f.provider, "saf.resolve", map[string]interface{}{"token": "not-a-uuid"})
	assert.Contains(t, msg, "malformed token")
}

func TestResolveStrayToken(t *testing.T) {
	f := newFixture(t)
	data := ok(t, f.provider, "saf.resolve", map[string]interface{}{
		"token": uuid.NewString(),
		"uris":  []interface{}{"content://safgate/a.txt"},
	})
	assert.Equal(t, false, data["resolved"])
}

func TestGetMediaFilesWithIndex(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "media.db")
	db, err := sql.Open("sqlite", indexPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE media (
			id           INTEGER PRIMARY KEY,
			collection   TEXT NOT NULL,
			display_name TEXT NOT NULL,
			size         INTEGER NOT NULL,
			mime_type    TEXT
		)`)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err = db.Exec(
			`INSERT INTO media (id, collection, display_name, size, mime_type) VALUES (?, 'image', ?, 100, 'image/png')`,
			i, "img.png")
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	log := logging.NewNop()
	catalog, err := media.OpenCatalog(indexPath, log)
	require.NoError(t, err)
	defer catalog.Close()

	f := newFixture(t)
	provider := NewProvider(f.tree, picker.New(f.launcher, newMemGrants(), log), catalog, content.NewLocal("safgate", f.external, nil), log)

	data := ok(t, provider, "saf.get_media_files", map[string]interface{}{
		"media_type": "image",
		"limit":      float64(2),
	})
	assert.Equal(t, 2, data["count"])
	files := data["files"].([]media.FileInfo)
	assert.Equal(t, "content://media/external/images/media/1", files[0].URI)
}
