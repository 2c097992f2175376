package wshandler

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"

	"github.com/crack2116/fleettrack/internal/notify"
	"github.com/crack2116/fleettrack/internal/tracking"
	"github.com/crack2116/fleettrack/pkg/model"
)

const (
	TypeVehicles      = "vehicles"
	TypeNotifications = "notifications"
	TypeEvent         = "event"
)

type WebMessage struct {
	Typ      string              `json:"type"`
	Vehicles []*model.VehicleDTO `json:"vehicles,omitempty"`
	Feed     *notify.FeedDTO     `json:"feed,omitempty"`
	Event    string              `json:"event,omitempty"`
	Vehicle  *model.VehicleDTO   `json:"vehicle,omitempty"`
	Movement *tracking.Movement  `json:"movement,omitempty"`
}

func VehiclesMessage(vs []*model.Vehicle) *WebMessage {
	return &WebMessage{Typ: TypeVehicles, Vehicles: model.WebList(vs)}
}

type conn interface {
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	SetCloseHandler(h func(code int, text string) error)
	Close() error
}

// JSONWsHandler pushes messages to one websocket client.
// A full send queue drops the message.
type JSONWsHandler struct {
	log    *slog.Logger
	name   string
	ws     conn
	ch     chan *WebMessage
	active atomic.Bool
	onStop func()
}

func NewHandler(log *slog.Logger, name string, ws *websocket.Conn) *JSONWsHandler {
	return newHandler(log, name, ws)
}

func newHandler(log *slog.Logger, name string, ws conn) *JSONWsHandler {
	h := &JSONWsHandler{
		log:  log.With("client", name),
		name: name,
		ws:   ws,
		ch:   make(chan *WebMessage, 16),
	}

	h.active.Store(true)

	return h
}

func (w *JSONWsHandler) Name() string {
	return w.name
}

// OnStop sets a func called once when the connection is gone. Set it before Listen.
func (w *JSONWsHandler) OnStop(fn func()) {
	w.onStop = fn
}

func (w *JSONWsHandler) IsActive() bool {
	return w != nil && w.active.Load()
}

func (w *JSONWsHandler) stop() {
	if w.active.CompareAndSwap(true, false) {
		close(w.ch)
		_ = w.ws.Close()

		if w.onStop != nil {
			w.onStop()
		}
	}
}

func (w *JSONWsHandler) writer() {
	for item := range w.ch {
		if !w.IsActive() {
			return
		}

		if err := w.ws.WriteJSON(item); err != nil {
			w.log.Warn("write error", slog.Any("error", err))
		}
	}
}

func (w *JSONWsHandler) reader() {
	defer w.stop()

	for {
		if _, _, err := w.ws.ReadMessage(); err != nil {
			w.log.Debug("read finished", slog.Any("error", err))
			return
		}
	}
}

func (w *JSONWsHandler) send(msg *WebMessage) (ok bool) {
	if !w.IsActive() {
		return false
	}

	// stop may close the channel between the check and the send
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case w.ch <- msg:
	default:
		w.log.Warn("queue is full, dropping " + msg.Typ)
	}

	return true
}

func (w *JSONWsHandler) SendVehicles(vs []*model.Vehicle) bool {
	return w.send(VehiclesMessage(vs))
}

func (w *JSONWsHandler) SendFeed(f *notify.Feed) bool {
	return w.send(&WebMessage{Typ: TypeNotifications, Feed: f.ToWeb()})
}

func (w *JSONWsHandler) SendEvent(e *tracking.Event) bool {
	return w.send(&WebMessage{Typ: TypeEvent, Event: e.Type, Vehicle: e.Vehicle.ToWeb(), Movement: e.Movement})
}

func (w *JSONWsHandler) closehandler(code int, text string) error {
	w.log.Info(fmt.Sprintf("closed with code %d, msg %s", code, text))
	w.stop()

	return nil
}

// Listen blocks until the client goes away.
func (w *JSONWsHandler) Listen() {
	w.log.Debug("ws start")
	w.ws.SetCloseHandler(w.closehandler)

	go w.writer()
	w.reader()
	w.log.Debug("ws stop")
}
