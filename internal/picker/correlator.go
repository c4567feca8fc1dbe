package picker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safgate/safgate/internal/grants"
	"github.com/safgate/safgate/internal/logging"
)

// Callback receives the terminal outcome of one dispatched request. It is
// invoked exactly once per request: with the selected identifiers in
// selection order, or with an error.
type Callback func(uris []string, err error)

// GrantStore is the persistent authorization registry the correlator asks
// to create and release grants against.
type GrantStore interface {
	Take(uri string, read, write bool) error
	Release(uri string) error
	List() ([]grants.Grant, error)
}

// Outcome is the raw result of a modal operation.
type Outcome struct {
	Cancelled bool
	URIs      []string
}

// DispatchOptions carries the per-kind parameters of a picker operation.
type DispatchOptions struct {
	MIMETypes     []string
	AllowMultiple bool
	FileName      string
	MIMEType      string
}

// Request is the handle returned from Dispatch. The token correlates the
// eventual result back to the waiting callback.
type Request struct {
	Token uuid.UUID
	Code  int
}

type pendingRequest struct {
	kind     Kind
	multiple bool
	cb       Callback
}

// Correlator owns the pending picker requests. Each dispatched request gets
// its own token-keyed slot, so a second dispatch never orphans an earlier
// caller; every slot is resolved exactly once.
type Correlator struct {
	launcher Launcher
	grants   GrantStore
	log      *logging.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingRequest
}

// New creates a correlator.
func New(launcher Launcher, store GrantStore, log *logging.Logger) *Correlator {
	return &Correlator{
		launcher: launcher,
		grants:   store,
		log:      log.Named("picker"),
		pending:  make(map[uuid.UUID]*pendingRequest),
	}
}

// Dispatch records a pending request and issues the modal operation. It
// returns immediately; the callback fires later when the result is resolved.
// When the launcher itself fails nothing is left pending and the error is
// returned to the caller directly.
func (c *Correlator) Dispatch(ctx context.Context, kind Kind, opts DispatchOptions, cb Callback) (*Request, error) {
	if cb == nil {
		return nil, fmt.Errorf("%w: callback is required", ErrInvalidArgument)
	}

	intent, err := buildIntent(kind, opts)
	if err != nil {
		return nil, err
	}

	token := uuid.New()
	c.mu.Lock()
	c.pending[token] = &pendingRequest{
		kind:     kind,
		multiple: opts.AllowMultiple,
		cb:       cb,
	}
	c.mu.Unlock()

	if err := c.launcher.Launch(ctx, token, kind.Code(), intent); err != nil {
		c.mu.Lock()
		delete(c.pending, token)
		c.mu.Unlock()
		return nil, fmt.Errorf("launch %s: %w", kind, err)
	}

	return &Request{Token: token, Code: kind.Code()}, nil
}

// Resolve routes a modal result back to the request it belongs to. A result
// with no matching pending request is logged and dropped; it reports whether
// a pending request was completed. The pending slot is cleared before the
// callback runs, so completion happens exactly once no matter what the
// outcome handling does.
func (c *Correlator) Resolve(token uuid.UUID, outcome Outcome) bool {
	c.mu.Lock()
	req, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn("result arrived with no pending request", zap.String("token", token.String()))
		return false
	}

	c.complete(req, outcome)
	return true
}

// PendingCount returns the number of unresolved requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ReleaseGrant drops the persistent grant for uri. Failures are logged and
// swallowed; the grant may already be gone.
func (c *Correlator) ReleaseGrant(uri string) {
	if c.grants == nil {
		return
	}
	if err := c.grants.Release(uri); err != nil {
		c.log.Warn("could not release grant", zap.String("uri", uri), zap.Error(err))
	}
}

// ListGrants returns the current persistent grants. A store failure yields
// an empty listing, not an error.
func (c *Correlator) ListGrants() []grants.Grant {
	if c.grants == nil {
		return nil
	}
	out, err := c.grants.List()
	if err != nil {
		c.log.Warn("could not list grants", zap.Error(err))
		return nil
	}
	return out
}

func (c *Correlator) complete(req *pendingRequest, outcome Outcome) {
	done := false
	finish := func(uris []string, err error) {
		if done {
			return
		}
		done = true
		req.cb(uris, err)
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while handling picker result", zap.Any("panic", r))
			finish(nil, fmt.Errorf("error handling result: %v", r))
		}
	}()

	if outcome.Cancelled {
		finish(nil, fmt.Errorf("%w: picker dismissed", ErrUserCancelled))
		return
	}

	switch req.kind {
	case KindOpenDocument:
		if len(outcome.URIs) == 0 {
			finish(nil, fmt.Errorf("%w: no document selected", ErrNoResult))
			return
		}
		for _, uri := range outcome.URIs {
			c.persistGrant(uri)
		}
		if req.multiple {
			finish(outcome.URIs, nil)
		} else {
			finish(outcome.URIs[:1], nil)
		}

	case KindOpenTree:
		if len(outcome.URIs) == 0 {
			finish(nil, fmt.Errorf("%w: no directory selected", ErrNoResult))
			return
		}
		c.persistGrant(outcome.URIs[0])
		finish(outcome.URIs[:1], nil)

	case KindCreateDocument:
		if len(outcome.URIs) == 0 {
			finish(nil, fmt.Errorf("%w: failed to create document", ErrNoResult))
			return
		}
		c.persistGrant(outcome.URIs[0])
		finish(outcome.URIs[:1], nil)

	default:
		finish(nil, fmt.Errorf("%w: code %d", ErrUnknownRequest, req.kind.Code()))
	}
}

// persistGrant asks for a long-lived read+write grant. Best-effort: a store
// failure does not fail the selection.
func (c *Correlator) persistGrant(uri string) {
	if c.grants == nil {
		return
	}
	if err := c.grants.Take(uri, true, true); err != nil {
		c.log.Warn("could not persist grant", zap.String("uri", uri), zap.Error(err))
	}
}

func buildIntent(kind Kind, opts DispatchOptions) (Intent, error) {
	switch kind {
	case KindOpenDocument:
		mimeTypes := opts.MIMETypes
		if len(mimeTypes) == 0 {
			mimeTypes = []string{"*/*"}
		}
		return Intent{
			Action:        "open-document",
			MIMETypes:     mimeTypes,
			AllowMultiple: opts.AllowMultiple,
		}, nil

	case KindOpenTree:
		return Intent{Action: "open-tree"}, nil

	case KindCreateDocument:
		if opts.FileName == "" {
			return Intent{}, fmt.Errorf("%w: file name is required", ErrInvalidArgument)
		}
		mimeType := opts.MIMEType
		if mimeType == "" {
			mimeType = "*/*"
		}
		return Intent{
			Action:    "create-document",
			MIMETypes: []string{mimeType},
			Title:     opts.FileName,
		}, nil

	default:
		return Intent{}, fmt.Errorf("%w: kind %d", ErrInvalidArgument, kind)
	}
}
