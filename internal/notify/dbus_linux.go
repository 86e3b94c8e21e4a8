//go:build linux

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest      = "org.freedesktop.Notifications"
	dbusPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	dbusInterface = "org.freedesktop.Notifications"

	// Actions offered on every notification; "default" is a body click.
	actionDefault = "default"
)

// Urgency levels defined by org.freedesktop.Notifications.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// DBusNotifier talks to the freedesktop notification daemon over the
// session bus. It maps tags onto server-side ids so that a repeated tag
// replaces the visible notification, and it reports action clicks.
type DBusNotifier struct {
	app  string
	log  *slog.Logger
	conn *dbus.Conn
	obj  dbus.BusObject

	mu   sync.Mutex
	ids  map[string]uint32 // tag -> server id
	tags map[uint32]string // server id -> tag

	clicks  chan Click
	signals chan *dbus.Signal
	done    chan struct{}
	stop    sync.Once
}

// NewDBusNotifier connects to the session bus and checks that a
// notification server owns the well-known name.
func NewDBusNotifier(app string, log *slog.Logger) (*DBusNotifier, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting session bus: %w", err)
	}

	var hasOwner bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, dbusDest).Store(&hasOwner); err != nil {
		conn.Close()
		return nil, fmt.Errorf("querying %s owner: %w", dbusDest, err)
	}
	if !hasOwner {
		conn.Close()
		return nil, errors.New("no notification server on the session bus")
	}

	n := &DBusNotifier{
		app:     app,
		log:     log.With("comp", "dbus-notify"),
		conn:    conn,
		obj:     conn.Object(dbusDest, dbusPath),
		ids:     make(map[string]uint32),
		tags:    make(map[uint32]string),
		clicks:  make(chan Click, 16),
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusPath),
		dbus.WithMatchInterface(dbusInterface),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to notification signals: %w", err)
	}
	conn.Signal(n.signals)
	go n.dispatch()

	return n, nil
}

func (n *DBusNotifier) Name() string    { return "dbus" }
func (n *DBusNotifier) Available() bool { return n.conn != nil && n.conn.Connected() }

// Clicks delivers action invocations. The channel is closed by Shutdown.
func (n *DBusNotifier) Clicks() <-chan Click { return n.clicks }

// Show calls Notify, reusing the server id for a known tag.
func (n *DBusNotifier) Show(ctx context.Context, note Notification) error {
	n.mu.Lock()
	replaces, replacing := n.ids[note.Tag]
	n.mu.Unlock()
	if note.Tag == "" {
		replaces, replacing = 0, false
	}

	call := n.obj.CallWithContext(ctx, dbusInterface+".Notify", 0,
		n.app,
		replaces,
		"",
		displayTitle(note),
		note.Body,
		[]string{actionDefault, "Open"},
		buildHints(note, replacing),
		expireTimeout(note),
	)
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("dbus Notify: %w", err)
	}

	if note.Tag != "" {
		n.mu.Lock()
		if old, ok := n.ids[note.Tag]; ok && old != id {
			delete(n.tags, old)
		}
		n.ids[note.Tag] = id
		n.tags[id] = note.Tag
		n.mu.Unlock()
	}
	return nil
}

// Close dismisses the notification shown under tag.
func (n *DBusNotifier) Close(ctx context.Context, tag string) error {
	n.mu.Lock()
	id, ok := n.ids[tag]
	n.mu.Unlock()
	if !ok {
		return nil
	}
	if err := n.obj.CallWithContext(ctx, dbusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("dbus CloseNotification: %w", err)
	}
	n.forget(id)
	return nil
}

// Shutdown stops signal dispatch and closes the bus connection.
func (n *DBusNotifier) Shutdown() error {
	var err error
	n.stop.Do(func() {
		n.conn.RemoveSignal(n.signals)
		close(n.done)
		err = n.conn.Close()
	})
	return err
}

func (n *DBusNotifier) forget(id uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if tag, ok := n.tags[id]; ok {
		delete(n.tags, id)
		if n.ids[tag] == id {
			delete(n.ids, tag)
		}
	}
}

func (n *DBusNotifier) dispatch() {
	defer close(n.clicks)
	for {
		select {
		case <-n.done:
			return
		case sig, ok := <-n.signals:
			if !ok {
				return
			}
			n.handleSignal(sig)
		}
	}
}

func (n *DBusNotifier) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case dbusInterface + ".ActionInvoked":
		if len(sig.Body) < 2 {
			return
		}
		id, _ := sig.Body[0].(uint32)
		action, _ := sig.Body[1].(string)
		n.mu.Lock()
		tag, ok := n.tags[id]
		n.mu.Unlock()
		if !ok {
			return
		}
		select {
		case n.clicks <- Click{Tag: tag, Action: action}:
		default:
			n.log.Warn("click dropped, receiver not keeping up", "tag", tag)
		}
	case dbusInterface + ".NotificationClosed":
		if len(sig.Body) < 1 {
			return
		}
		if id, ok := sig.Body[0].(uint32); ok {
			n.forget(id)
		}
	}
}

// buildHints maps notification flags onto desktop notification hints.
func buildHints(note Notification, replacing bool) map[string]dbus.Variant {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyNormal),
	}
	if note.RequireInteraction {
		hints["urgency"] = dbus.MakeVariant(urgencyCritical)
		hints["resident"] = dbus.MakeVariant(true)
	}
	if note.Silent || (replacing && !note.Renotify) {
		hints["suppress-sound"] = dbus.MakeVariant(true)
	}
	if replacing && !note.Renotify {
		// A quiet in-place update; keep it out of the notification history.
		hints["transient"] = dbus.MakeVariant(true)
		hints["urgency"] = dbus.MakeVariant(urgencyLow)
		if note.RequireInteraction {
			hints["urgency"] = dbus.MakeVariant(urgencyCritical)
		}
	}
	return hints
}

// expireTimeout returns 0 (never expire) for notifications that require
// interaction and -1 (server default) otherwise.
func expireTimeout(note Notification) int32 {
	if note.RequireInteraction {
		return 0
	}
	return -1
}
