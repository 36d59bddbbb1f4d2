package infra

import (
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// eventLine is one notification on the UI stream.
type eventLine struct {
	Event string       `json:"event"`
	Data  domain.Event `json:"data"`
}

// JSONLineNotifier writes each event as one JSON line for a UI process to
// consume, and mirrors it to the log.
type JSONLineNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

// NewJSONLineNotifier creates a notifier. A nil out logs only.
func NewJSONLineNotifier(out io.Writer, logger *zap.Logger) *JSONLineNotifier {
	return &JSONLineNotifier{out: out, logger: logger}
}

// Notify delivers the event synchronously. Write failures are logged.
func (n *JSONLineNotifier) Notify(event domain.Event) {
	n.logger.Info("event", zap.String("event", event.EventName()), zap.Any("data", event))

	if n.out == nil {
		return
	}

	data, err := json.Marshal(eventLine{Event: event.EventName(), Data: event})
	if err != nil {
		n.logger.Warn("failed to encode event", zap.String("event", event.EventName()), zap.Error(err))
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.out.Write(append(data, '\n')); err != nil {
		n.logger.Warn("failed to write event", zap.String("event", event.EventName()), zap.Error(err))
	}
}

var _ domain.Notifier = (*JSONLineNotifier)(nil)
