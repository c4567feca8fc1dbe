package picker

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safgate/safgate/internal/logging"
)

// Kind identifies one of the supported modal selection flows.
type Kind int

const (
	KindOpenDocument Kind = iota
	KindOpenTree
	KindCreateDocument
)

// Request codes carried alongside dispatched operations.
const (
	CodeOpenDocument   = 100
	CodeOpenTree       = 101
	CodeCreateDocument = 102
)

// Code returns the wire request code for the kind.
func (k Kind) Code() int {
	switch k {
	case KindOpenTree:
		return CodeOpenTree
	case KindCreateDocument:
		return CodeCreateDocument
	default:
		return CodeOpenDocument
	}
}

func (k Kind) String() string {
	switch k {
	case KindOpenDocument:
		return "open-document"
	case KindOpenTree:
		return "open-tree"
	case KindCreateDocument:
		return "create-document"
	default:
		return "unknown"
	}
}

// Intent describes one modal operation handed to the external selection UI.
type Intent struct {
	Action        string   `json:"action"`
	MIMETypes     []string `json:"mime_types,omitempty"`
	AllowMultiple bool     `json:"allow_multiple,omitempty"`
	Title         string   `json:"title,omitempty"`
}

// Launcher starts a modal selection operation out-of-process. The transport
// is assumed reliable and at-most-once per call; the eventual result comes
// back through Correlator.Resolve carrying the same token.
type Launcher interface {
	Launch(ctx context.Context, token uuid.UUID, code int, intent Intent) error
}

// LogLauncher records dispatched intents without driving a UI. It is the
// integration point for an external selection surface that polls or
// subscribes for pending intents and posts results back.
type LogLauncher struct {
	log *logging.Logger
}

// NewLogLauncher creates a launcher that only logs dispatched intents.
func NewLogLauncher(log *logging.Logger) *LogLauncher {
	return &LogLauncher{log: log.Named("launcher")}
}

// Launch logs the intent and returns immediately.
func (l *LogLauncher) Launch(ctx context.Context, token uuid.UUID, code int, intent Intent) error {
	l.log.Info("picker intent dispatched",
		zap.String("token", token.String()),
		zap.Int("request_code", code),
		zap.String("action", intent.Action),
		zap.Strings("mime_types", intent.MIMETypes),
		zap.Bool("allow_multiple", intent.AllowMultiple),
		zap.String("title", intent.Title))
	return nil
}
