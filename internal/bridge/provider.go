package bridge

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safgate/safgate/internal/content"
	"github.com/safgate/safgate/internal/docs"
	"github.com/safgate/safgate/internal/logging"
	"github.com/safgate/safgate/internal/media"
	"github.com/safgate/safgate/internal/picker"
	"github.com/safgate/safgate/internal/types"
)

// copyBufferSize is the chunk size for transfers across the sandbox boundary.
const copyBufferSize = 8192

// Provider bridges picker, grant, media and cross-boundary copy operations
// into the service tool surface. Everything that touches an externally-chosen
// resource goes through the content resolver; everything inside the sandbox
// goes through the document tree.
type Provider struct {
	tree       *docs.Tree
	correlator *picker.Correlator
	catalog    *media.Catalog
	resolver   content.Resolver
	log        *logging.Logger
}

// NewProvider creates the bridge provider.
func NewProvider(tree *docs.Tree, correlator *picker.Correlator, catalog *media.Catalog, resolver content.Resolver, log *logging.Logger) *Provider {
	return &Provider{
		tree:       tree,
		correlator: correlator,
		catalog:    catalog,
		resolver:   resolver,
		log:        log.Named("bridge"),
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "saf",
		Name:        "Storage Access Bridge",
		Description: "Modal pickers, persistent grants, media catalog and cross-boundary copies",
		Category:    types.CategoryPicker,
		Capabilities: []string{
			"pick",
			"grants",
			"media",
			"copy",
		},
		Tools: []types.Tool{
			{
				ID:          "saf.open_document_picker",
				Name:        "Open Document Picker",
				Description: "Let the user pick one or more documents and grant access to them",
				Parameters: []types.Parameter{
					{Name: "mime_types", Type: "array", Description: "Acceptable MIME types, default */*", Required: false},
					{Name: "allow_multiple", Type: "boolean", Description: "Allow selecting several documents", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "saf.open_directory_picker",
				Name:        "Open Directory Picker",
				Description: "Let the user pick a directory tree and grant access to it",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "saf.create_document",
				Name:        "Create External Document",
				Description: "Let the user place a new document and grant access to it",
				Parameters: []types.Parameter{
					{Name: "file_name", Type: "string", Description: "Suggested name for the new document", Required: true},
					{Name: "mime_type", Type: "string", Description: "MIME type of the new document, default */*", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "saf.get_media_files",
				Name:        "List Media Files",
				Description: "List files from a shared media collection",
				Parameters: []types.Parameter{
					{Name: "media_type", Type: "string", Description: "image, video or audio", Required: true},
					{Name: "limit", Type: "number", Description: "Maximum number of entries", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "saf.get_file_info",
				Name:        "Get File Info",
				Description: "Get name, size and MIME type for an externally-chosen resource",
				Parameters: []types.Parameter{
					{Name: "uri", Type: "string", Description: "Content reference", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "saf.copy_from_external",
				Name:        "Copy From External",
				Description: "Copy an externally-chosen resource into the sandbox",
				Parameters: []types.Parameter{
					{Name: "uri", Type: "string", Description: "Source content reference", Required: true},
					{Name: "target_id", Type: "string", Description: "Destination document identifier", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "saf.copy_to_external",
				Name:        "Copy To External",
				Description: "Copy a sandbox document out to an externally-chosen resource",
				Parameters: []types.Parameter{
					{Name: "source_id", Type: "string", Description: "Source document identifier", Required: true},
					{Name: "uri", Type: "string", Description: "Destination content reference", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "saf.delete_document",
				Name:        "Delete External Document",
				Description: "Delete an externally-chosen resource",
				Parameters: []types.Parameter{
					{Name: "uri", Type: "string", Description: "Content reference", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "saf.is_accessible",
				Name:        "Check Accessibility",
				Description: "Report whether an externally-chosen resource can currently be read",
				Parameters: []types.Parameter{
					{Name: "uri", Type: "string", Description: "Content reference", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "saf.list_grants",
				Name:        "List Grants",
				Description: "List the persistent access grants currently held",
				Parameters:  []types.Parameter{},
				Returns:     "array",
			},
			{
				ID:          "saf.release_grant",
				Name:        "Release Grant",
				Description: "Release the persistent grant for a resource",
				Parameters: []types.Parameter{
					{Name: "uri", Type: "string", Description: "Content reference", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "saf.resolve",
				Name:        "Resolve Picker Result",
				Description: "Post the result of a dispatched picker back to its waiting caller",
				Parameters: []types.Parameter{
					{Name: "token", Type: "string", Description: "Request token from the dispatched intent", Required: true},
					{Name: "cancelled", Type: "boolean", Description: "Whether the picker was dismissed", Required: false},
					{Name: "uris", Type: "array", Description: "Selected content references in selection order", Required: false},
				},
				Returns: "boolean",
			},
		},
	}
}

// Execute runs a bridge operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, callCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "saf.open_document_picker":
		return p.openDocumentPicker(ctx, params)
	case "saf.open_directory_picker":
		return p.openDirectoryPicker(ctx)
	case "saf.create_document":
		return p.createDocument(ctx, params)
	case "saf.get_media_files":
		return p.getMediaFiles(params)
	case "saf.get_file_info":
		return p.getFileInfo(params)
	case "saf.copy_from_external":
		return p.copyFromExternal(params)
	case "saf.copy_to_external":
		return p.copyToExternal(params)
	case "saf.delete_document":
		return p.deleteDocument(params)
	case "saf.is_accessible":
		return p.isAccessible(params)
	case "saf.list_grants":
		return p.listGrants()
	case "saf.release_grant":
		return p.releaseGrant(params)
	case "saf.resolve":
		return p.resolve(params)
	default:
		return types.Fail(fmt.Sprintf("unknown tool: %s", toolID)), nil
	}
}

type pickResult struct {
	uris []string
	err  error
}

// await dispatches a picker operation and blocks until its result is resolved
// or the context ends. The callback writes into a one-slot channel, so a late
// result after a context cancellation never blocks the correlator.
func (p *Provider) await(ctx context.Context, kind picker.Kind, opts picker.DispatchOptions) ([]string, error) {
	ch := make(chan pickResult, 1)
	req, err := p.correlator.Dispatch(ctx, kind, opts, func(uris []string, err error) {
		ch <- pickResult{uris: uris, err: err}
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("awaiting picker result",
		zap.String("token", req.Token.String()),
		zap.Int("request_code", req.Code))

	select {
	case res := <-ch:
		return res.uris, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Provider) openDocumentPicker(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	opts := picker.DispatchOptions{
		MIMETypes:     stringSlice(params["mime_types"]),
		AllowMultiple: boolParam(params, "allow_multiple"),
	}

	uris, err := p.await(ctx, picker.KindOpenDocument, opts)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	if opts.AllowMultiple {
		return types.Ok(map[string]interface{}{"uris": uris, "count": len(uris)}), nil
	}
	return types.Ok(map[string]interface{}{"uri": uris[0]}), nil
}

func (p *Provider) openDirectoryPicker(ctx context.Context) (*types.Result, error) {
	uris, err := p.await(ctx, picker.KindOpenTree, picker.DispatchOptions{})
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{"uri": uris[0]}), nil
}

func (p *Provider) createDocument(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	fileName, ok := params["file_name"].(string)
	if !ok || fileName == "" {
		return types.Fail("file_name parameter required"), nil
	}
	mimeType, _ := params["mime_type"].(string)

	uris, err := p.await(ctx, picker.KindCreateDocument, picker.DispatchOptions{
		FileName: fileName,
		MIMEType: mimeType,
	})
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{"uri": uris[0]}), nil
}

func (p *Provider) getMediaFiles(params map[string]interface{}) (*types.Result, error) {
	mediaType, ok := params["media_type"].(string)
	if !ok || mediaType == "" {
		return types.Fail("media_type parameter required"), nil
	}
	if !media.IsSupported(mediaType) {
		return types.Fail(fmt.Sprintf("unsupported media type: %s", mediaType)), nil
	}

	limit := 0
	if v, ok := params["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	files := p.catalog.Query(mediaType, limit)
	return types.Ok(map[string]interface{}{
		"media_type": mediaType,
		"files":      files,
		"count":      len(files),
	}), nil
}

func (p *Provider) getFileInfo(params map[string]interface{}) (*types.Result, error) {
	uri, res := p.contentRef(params)
	if res != nil {
		return res, nil
	}

	info, err := p.resolver.Stat(uri)
	if err != nil {
		return types.Fail(err.Error()), nil
	}

	mimeType := info.MIMEType
	if mimeType == "" {
		mimeType = p.sniffMIME(uri)
	}

	return types.Ok(map[string]interface{}{
		"name":      info.Name,
		"size":      info.Size,
		"mime_type": mimeType,
		"uri":       uri,
	}), nil
}

// sniffMIME detects a content type from the resource's leading bytes. Used
// only when the resolver reports no type; failures fall back to the generic
// binary type.
func (p *Provider) sniffMIME(uri string) string {
	r, err := p.resolver.Open(uri)
	if err != nil {
		return docs.MIMETypeDefault
	}
	defer r.Close()

	mt, err := mimetype.DetectReader(r)
	if err != nil {
		p.log.Debug("content sniff failed", zap.String("uri", uri), zap.Error(err))
		return docs.MIMETypeDefault
	}
	return mt.String()
}

func (p *Provider) copyFromExternal(params map[string]interface{}) (*types.Result, error) {
	uri, res := p.contentRef(params)
	if res != nil {
		return res, nil
	}
	targetID, ok := params["target_id"].(string)
	if !ok || targetID == "" {
		return types.Fail("target_id parameter required"), nil
	}

	targetPath, err := p.tree.Identity().PathFor(docs.DocumentID(targetID))
	if err != nil {
		return types.Fail(err.Error()), nil
	}

	src, err := p.resolver.Open(uri)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	defer src.Close()

	dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return types.Fail(fmt.Sprintf("open target: %v", err)), nil
	}
	defer dst.Close()

	n, err := io.CopyBuffer(dst, src, make([]byte, copyBufferSize))
	if err != nil {
		return types.Fail(fmt.Sprintf("copy failed: %v", err)), nil
	}

	p.log.Info("copied from external",
		zap.String("uri", uri),
		zap.String("target", targetID),
		zap.Int64("bytes", n))
	return types.Ok(map[string]interface{}{
		"copied":    true,
		"target_id": targetID,
		"bytes":     n,
	}), nil
}

func (p *Provider) copyToExternal(params map[string]interface{}) (*types.Result, error) {
	sourceID, ok := params["source_id"].(string)
	if !ok || sourceID == "" {
		return types.Fail("source_id parameter required"), nil
	}
	uri, ok := params["uri"].(string)
	if !ok || uri == "" {
		return types.Fail("uri parameter required"), nil
	}
	if !content.IsContentRef(uri) {
		return types.Fail(fmt.Sprintf("invalid content reference: %s", uri)), nil
	}

	src, err := p.tree.Open(docs.DocumentID(sourceID), docs.ModeRead)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	defer src.Close()

	dst, err := p.resolver.Create(uri)
	if err != nil {
		return types.Fail(err.Error()), nil
	}
	defer dst.Close()

	n, err := io.CopyBuffer(dst, src, make([]byte, copyBufferSize))
	if err != nil {
		return types.Fail(fmt.Sprintf("copy failed: %v", err)), nil
	}

	p.log.Info("copied to external",
		zap.String("source", sourceID),
		zap.String("uri", uri),
		zap.Int64("bytes", n))
	return types.Ok(map[string]interface{}{
		"copied": true,
		"uri":    uri,
		"bytes":  n,
	}), nil
}

func (p *Provider) deleteDocument(params map[string]interface{}) (*types.Result, error) {
	uri, res := p.contentRef(params)
	if res != nil {
		return res, nil
	}
	if err := p.resolver.Remove(uri); err != nil {
		return types.Fail(err.Error()), nil
	}
	return types.Ok(map[string]interface{}{"deleted": true, "uri": uri}), nil
}

func (p *Provider) isAccessible(params map[string]interface{}) (*types.Result, error) {
	uri, res := p.contentRef(params)
	if res != nil {
		return res, nil
	}
	_, err := p.resolver.Stat(uri)
	return types.Ok(map[string]interface{}{
		"uri":        uri,
		"accessible": err == nil,
	}), nil
}

func (p *Provider) listGrants() (*types.Result, error) {
	list := p.correlator.ListGrants()
	return types.Ok(map[string]interface{}{
		"grants": list,
		"count":  len(list),
	}), nil
}

func (p *Provider) releaseGrant(params map[string]interface{}) (*types.Result, error) {
	uri, res := p.contentRef(params)
	if res != nil {
		return res, nil
	}
	p.correlator.ReleaseGrant(uri)
	return types.Ok(map[string]interface{}{"released": true, "uri": uri}), nil
}

func (p *Provider) resolve(params map[string]interface{}) (*types.Result, error) {
	tokenStr, ok := params["token"].(string)
	if !ok || tokenStr == "" {
		return types.Fail("token parameter required"), nil
	}
	token, err := uuid.Parse(tokenStr)
	if err != nil {
		return types.Fail(fmt.Sprintf("malformed token: %v", err)), nil
	}

	outcome := picker.Outcome{
		Cancelled: boolParam(params, "cancelled"),
		URIs:      stringSlice(params["uris"]),
	}
	matched := p.correlator.Resolve(token, outcome)
	return types.Ok(map[string]interface{}{
		"resolved": matched,
		"token":    tokenStr,
	}), nil
}

// contentRef extracts and validates the uri parameter. Validation happens
// before any external call so a malformed reference never leaves the bridge.
func (p *Provider) contentRef(params map[string]interface{}) (string, *types.Result) {
	uri, ok := params["uri"].(string)
	if !ok || uri == "" {
		return "", types.Fail("uri parameter required")
	}
	if !content.IsContentRef(uri) {
		return "", types.Fail(fmt.Sprintf("invalid content reference: %s", uri))
	}
	return uri, nil
}

func boolParam(params map[string]interface{}, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
