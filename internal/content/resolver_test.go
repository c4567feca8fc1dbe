package content

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGrants struct {
	granted map[string]bool
	fail    bool
}

func (f *fakeGrants) Has(uri string) (bool, error) {
	if f.fail {
		return false, errors.New("store unavailable")
	}
	return f.granted[uri], nil
}

func TestIsContentRef(t *testing.T) {
	assert.True(t, IsContentRef("content://safgate/a.txt"))
	assert.False(t, IsContentRef("content://"))
	assert.False(t, IsContentRef("file:///etc/passwd"))
	assert.False(t, IsContentRef("/plain/path"))
	assert.False(t, IsContentRef(""))
}

func TestLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	local := NewLocal("safgate", dir, nil)
	uri := local.URIFor("docs/a.txt")
	assert.Equal(t, "content://safgate/docs/a.txt", uri)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	w, err := local.Create(uri)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := local.Open(uri)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello", string(data))

	info, err := local.Stat(uri)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", info.Name)
	assert.Equal(t, int64(5), info.Size)

	require.NoError(t, local.Remove(uri))
	_, err = local.Stat(uri)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalRejectsForeignAuthority(t *testing.T) {
	local := NewLocal("safgate", t.TempDir(), nil)
	_, err := local.Open("content://media/external/images/media/1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalBlocksEscape(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(filepath.Dir(dir), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	local := NewLocal("safgate", dir, nil)
	_, err := local.Open("content://safgate/../secret.txt")
	// The traversal collapses inside the root, so the path never reaches
	// the sibling file.
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalEnforcesGrants(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	checker := &fakeGrants{granted: map[string]bool{}}
	local := NewLocal("safgate", dir, checker)

	_, err := local.Open("content://safgate/a.txt")
	assert.True(t, errors.Is(err, ErrDenied))

	checker.granted["content://safgate/a.txt"] = true
	r, err := local.Open("content://safgate/a.txt")
	require.NoError(t, err)
	r.Close()
}

func TestLocalGrantLookupFailureDenies(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	local := NewLocal("safgate", dir, &fakeGrants{fail: true})
	_, err := local.Open("content://safgate/a.txt")
	assert.True(t, errors.Is(err, ErrDenied))
}

func TestLocalRemoveMissing(t *testing.T) {
	local := NewLocal("safgate", t.TempDir(), nil)
	err := local.Remove("content://safgate/ghost.txt")
	assert.True(t, errors.Is(err, ErrNotFound))
}
