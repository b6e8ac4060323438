package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/boxerr"
	"github.com/xkilldash9x/boxedit/internal/editbox"
)

// EditingPayload accompanies enter and cancel messages.
type EditingPayload struct {
	NodeID string `json:"node_id"`
}

// ExitPayload accompanies a commit.
type ExitPayload struct {
	NodeID  string                `json:"node_id"`
	Percent schemas.PercentBounds `json:"percent"`
	CSS     schemas.PercentCSS    `json:"css"`
}

// DragPayload accompanies each drag update.
type DragPayload struct {
	NodeID string         `json:"node_id"`
	Bounds schemas.Bounds `json:"bounds"`
}

// ErrorPayload reports a recoverable editor error.
type ErrorPayload struct {
	NodeID  string `json:"node_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Publisher posts editor events for one box. Posts are bounded by a timeout
// and late messages are dropped. Drag updates never wait: a subscriber with a
// full buffer misses them.
type Publisher struct {
	bus       *Bus
	nodeID    string
	timeout   time.Duration
	precision int
	logger    *zap.Logger
}

// NewPublisher creates a publisher for the box nodeID. precision is the
// number of decimals used for the CSS strings of commit messages.
func NewPublisher(bus *Bus, nodeID string, timeout time.Duration, precision int, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		bus:       bus,
		nodeID:    nodeID,
		timeout:   timeout,
		precision: precision,
		logger:    logger.Named("events").With(zap.String("node_id", nodeID)),
	}
}

func (p *Publisher) post(t MessageType, payload interface{}) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.bus.Post(ctx, t, payload); err != nil {
		p.logger.Debug("Event dropped.", zap.String("type", string(t)), zap.Error(err))
	}
}

// Hooks returns box hooks that publish to the bus.
func (p *Publisher) Hooks() editbox.Hooks {
	return editbox.Hooks{
		OnEnterEditing: func() {
			p.post(TypeEnterEditing, EditingPayload{NodeID: p.nodeID})
		},
		OnExitEditing: func(pb schemas.PercentBounds) {
			p.post(TypeExitEditing, ExitPayload{NodeID: p.nodeID, Percent: pb, CSS: pb.CSS(p.precision)})
		},
		OnDragUpdate: func(b schemas.Bounds) {
			if err := p.bus.TryPost(TypeDragUpdate, DragPayload{NodeID: p.nodeID, Bounds: b}); err != nil {
				p.logger.Debug("Drag update dropped.", zap.Error(err))
			}
		},
		OnCancel: func() {
			p.post(TypeCancel, EditingPayload{NodeID: p.nodeID})
		},
	}
}

// ErrorHandler publishes errors to the bus and then passes them to next,
// which may be nil.
func (p *Publisher) ErrorHandler(next boxerr.Handler) boxerr.Handler {
	return boxerr.HandlerFunc(func(err error) {
		p.post(TypeError, ErrorPayload{NodeID: p.nodeID, Kind: boxerr.KindOf(err).String(), Message: err.Error()})
		if next != nil {
			next.HandleError(err)
		}
	})
}
