package docs

import (
	"context"
	"fmt"
	"io"

	"github.com/safgate/safgate/internal/logging"
	"github.com/safgate/safgate/internal/types"
)

// Provider exposes the document tree as a service tool surface.
type Provider struct {
	tree *Tree
	log  *logging.Logger
}

// NewProvider creates a document tree provider.
func NewProvider(tree *Tree, log *logging.Logger) *Provider {
	return &Provider{tree: tree, log: log.Named("docs-provider")}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "documents",
		Name:        "Document Tree Service",
		Description: "Sandboxed document tree over the configured storage roots",
		Category:    types.CategoryDocuments,
		Capabilities: []string{
			"roots",
			"describe",
			"list",
			"read",
			"write",
			"create",
			"delete",
			"rename",
		},
		Tools: []types.Tool{
			{
				ID:          "documents.roots",
				Name:        "List Roots",
				Description: "List the storage roots with live free-space figures",
				Parameters:  []types.Parameter{},
				Returns:     "array",
			},
			{
				ID:          "documents.describe",
				Name:        "Describe Document",
				Description: "Get the current record for one document",
				Parameters: []types.Parameter{
					{Name: "id", Type: "string", Description: "Document identifier", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "documents.children",
				Name:        "List Children",
				Description: "List the immediate children of a directory document",
				Parameters: []types.Parameter{
					{Name: "id", Type: "string", Description: "Parent document identifier", Required: true},
				},
				Returns: "array",
			},
			{
				ID:          "documents.read",
				Name:        "Read Document",
				Description: "Read a document's contents",
				Parameters: []types.Parameter{
					{Name: "id", Type: "string", Description: "Document identifier", Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "documents.write",
				Name:        "Write Document",
				Description: "Write data to an existing document",
				Parameters: []types.Parameter{
					{Name: "id", Type: "string", Description: "Document identifier", Required: true},
					{Name: "data", Type: "string", Description: "Data to write", Required: true},
					{Name: "mode", Type: "string", Description: "Open mode (w/wt/rw)", Required: false},
				},
				Returns: "boolean",
			},
			{
				ID:          "documents.create",
				Name:        "Create Document",
				Description: "Create a file or directory under a parent directory",
				Parameters: []types.Parameter{
					{Name: "parent_id", Type: "string", Description: "Parent document identifier", Required: true},
					{Name: "mime_type", Type: "string", Description: "MIME type; inode/directory creates a directory", Required: true},
					{Name: "display_name", Type: "string", Description: "Name of the new node", Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "documents.delete",
				Name:        "Delete Document",
				Description: "Delete a file or empty directory",
				Parameters: []types.Parameter{
					{Name: "id", Type: "string", Description: "Document identifier", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "documents.rename",
				Name:        "Rename Document",
				Description: "Rename a document within its parent directory",
				Parameters: []types.Parameter{
					{Name: "id", Type: "string", Description: "Document identifier", Required: true},
					{Name: "display_name", Type: "string", Description: "New display name", Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "documents.usage",
				Name:        "Root Usage",
				Description: "Total bytes and file count under one root",
				Parameters: []types.Parameter{
					{Name: "root_id", Type: "string", Description: "Root identifier", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "documents.search",
				Name:        "Search",
				Description: "Reserved; always returns an empty result set",
				Parameters: []types.Parameter{
					{Name: "query", Type: "string", Description: "Search query", Required: false},
				},
				Returns: "array",
			},
		},
	}
}

// Execute runs a document tree operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, callCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "documents.roots":
		return p.roots()
	case "documents.describe":
		return p.describe(params)
	case "documents.children":
		return p.children(params)
	case "documents.read":
		return p.read(params)
	case "documents.write":
		return p.write(params)
	case "documents.create":
		return p.create(params)
	case "documents.delete":
		return p.delete(params)
	case "documents.rename":
		return p.rename(params)
	case "documents.usage":
		return p.usage(params)
	case "documents.search":
		// Reserved for forward compatibility; a no-op, not an error.
		return types.Ok(map[string]interface{}{"results": []interface{}{}}), nil
	default:
		return types.Fail(fmt.Sprintf("unknown tool: %s", toolID)), nil
	}
}

func (p *Provider) roots() (*types.Result, error) {
	roots := p.tree.ListRoots()
	return types.Ok(map[string]interface{}{
		"roots": roots,
		"count": len(roots),
	}), nil
}

func (p *Provider) describe(params map[string]interface{}) (*types.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return types.Fail("id parameter required"), nil
	}

	doc, err := p.tree.Describe(DocumentID(id))
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{"document": doc}), nil
}

func (p *Provider) children(params map[string]interface{}) (*types.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return types.Fail("id parameter required"), nil
	}

	children, err := p.tree.ListChildren(DocumentID(id))
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{
		"parent":   id,
		"children": children,
		"count":    len(children),
	}), nil
}

func (p *Provider) read(params map[string]interface{}) (*types.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return types.Fail("id parameter required"), nil
	}

	f, err := p.tree.Open(DocumentID(id), ModeRead)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return types.Fail(fmt.Sprintf("read failed: %v", err)), nil
	}
	return types.Ok(map[string]interface{}{
		"id":      id,
		"content": string(data),
		"size":    len(data),
	}), nil
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return types.Fail("id parameter required"), nil
	}
	data, ok := params["data"].(string)
	if !ok {
		return types.Fail("data parameter required"), nil
	}

	mode := ModeTruncate
	if m, ok := params["mode"].(string); ok && m != "" {
		parsed, err := ParseMode(m)
		if err != nil {
			return types.Fail(err.Error()), nil
		}
		if parsed == ModeRead {
			return types.Fail("mode must allow writing"), nil
		}
		mode = parsed
	}

	f, err := p.tree.Open(DocumentID(id), mode)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	defer f.Close()

	n, err := f.WriteString(data)
	if err != nil {
		return types.Fail(fmt.Sprintf("write failed: %v", err)), nil
	}
	return types.Ok(map[string]interface{}{
		"written": true,
		"id":      id,
		"size":    n,
	}), nil
}

func (p *Provider) create(params map[string]interface{}) (*types.Result, error) {
	parentID, ok := params["parent_id"].(string)
	if !ok || parentID == "" {
		return types.Fail("parent_id parameter required"), nil
	}
	mimeType, ok := params["mime_type"].(string)
	if !ok || mimeType == "" {
		return types.Fail("mime_type parameter required"), nil
	}
	displayName, ok := params["display_name"].(string)
	if !ok || displayName == "" {
		return types.Fail("display_name parameter required"), nil
	}

	id, err := p.tree.Create(DocumentID(parentID), mimeType, displayName)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{
		"created": true,
		"id":      string(id),
	}), nil
}

func (p *Provider) delete(params map[string]interface{}) (*types.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return types.Fail("id parameter required"), nil
	}

	if err := p.tree.Delete(DocumentID(id)); err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{"deleted": true, "id": id}), nil
}

func (p *Provider) rename(params map[string]interface{}) (*types.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return types.Fail("id parameter required"), nil
	}
	displayName, ok := params["display_name"].(string)
	if !ok || displayName == "" {
		return types.Fail("display_name parameter required"), nil
	}

	newID, err := p.tree.Rename(DocumentID(id), displayName)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{
		"renamed": true,
		"id":      string(newID),
		"old_id":  id,
	}), nil
}

func (p *Provider) usage(params map[string]interface{}) (*types.Result, error) {
	rootID, ok := params["root_id"].(string)
	if !ok || rootID == "" {
		return types.Fail("root_id parameter required"), nil
	}

	usage, err := p.tree.RootUsage(rootID)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{"usage": usage}), nil
}
