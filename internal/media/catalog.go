package media

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/safgate/safgate/internal/logging"
)

// FileInfo is one row of the external media index.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	URI      string `json:"uri"`
}

// Collection base addresses; a row's identifier is the base plus its numeric key.
var collections = map[string]string{
	"image": "content://media/external/images/media",
	"video": "content://media/external/video/media",
	"audio": "content://media/external/audio/media",
}

// IsSupported reports whether mediaType names a known collection.
func IsSupported(mediaType string) bool {
	_, ok := collections[strings.ToLower(mediaType)]
	return ok
}

// Catalog reads the external media index. The index is maintained outside
// this system and is never mutated here.
type Catalog struct {
	db  *sql.DB
	log *logging.Logger
}

// OpenCatalog opens the media index at indexPath. An empty path means the
// scoped-media model is unavailable; the catalog then answers every query
// with an empty result.
func OpenCatalog(indexPath string, log *logging.Logger) (*Catalog, error) {
	c := &Catalog{log: log.Named("media")}
	if indexPath == "" {
		return c, nil
	}

	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return nil, fmt.Errorf("open media index: %w", err)
	}
	c.db = db
	return c, nil
}

// Available reports whether the media index is reachable.
func (c *Catalog) Available() bool {
	return c.db != nil
}

// Query returns the rows of the named collection, one FileInfo per row in
// index order. Unknown media types and an unavailable index both yield an
// empty result, never an error. A positive limit truncates the result.
func (c *Catalog) Query(mediaType string, limit int) []FileInfo {
	key := strings.ToLower(mediaType)
	base, ok := collections[key]
	if !ok || c.db == nil {
		return []FileInfo{}
	}

	query := `SELECT id, display_name, size, mime_type FROM media WHERE collection = ? ORDER BY id`
	args := []interface{}{key}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		c.log.Warn("media index query failed", zap.String("media_type", key), zap.Error(err))
		return []FileInfo{}
	}
	defer rows.Close()

	out := []FileInfo{}
	for rows.Next() {
		var id int64
		var name string
		var size int64
		var mimeType sql.NullString
		if err := rows.Scan(&id, &name, &size, &mimeType); err != nil {
			c.log.Warn("media index row unreadable", zap.Error(err))
			continue
		}
		out = append(out, FileInfo{
			Name:     name,
			Size:     size,
			MIMEType: mimeType.String,
			URI:      base + "/" + strconv.FormatInt(id, 10),
		})
	}
	if err := rows.Err(); err != nil {
		c.log.Warn("media index scan interrupted", zap.Error(err))
	}
	return out
}

// Close closes the backing index handle.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
