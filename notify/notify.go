// Package notify sends desktop notifications for tunnel events over the
// freedesktop.org notification D-Bus interface.
package notify

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/wg-manager/common"
)

const (
	busName   = "org.freedesktop.Notifications"
	busPath   = "/org/freedesktop/Notifications"
	busMethod = "org.freedesktop.Notifications.Notify"
)

// NotificationType represents the type of notification.
type NotificationType int

const (
	NotificationInfo NotificationType = iota
	NotificationSuccess
	NotificationWarning
	NotificationError
)

// Urgency levels understood by org.freedesktop.Notifications.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// Notification represents a desktop notification.
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	Icon    string
}

// DBusNotifier implements common.Notifier on the session bus.
// The bus connection is opened on first use.
type DBusNotifier struct {
	appName string

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewDBusNotifier creates a notifier that reports as appName.
func NewDBusNotifier(appName string) *DBusNotifier {
	return &DBusNotifier{appName: appName}
}

// Notify sends an informational notification.
func (n *DBusNotifier) Notify(title, message string) error {
	return n.Show(Notification{Title: title, Message: message, Type: NotificationSuccess})
}

// NotifyWithIcon sends a notification with a custom icon. Error icons are
// sent with critical urgency.
func (n *DBusNotifier) NotifyWithIcon(title, message, icon string) error {
	return n.Show(Notification{Title: title, Message: message, Type: typeForIcon(icon), Icon: icon})
}

// Show sends n and returns the bus error, if any.
func (n *DBusNotifier) Show(note Notification) error {
	conn, err := n.connect()
	if err != nil {
		return err
	}

	hints := hintsFor(note)
	timeout := int32(common.NotificationTimeout.Milliseconds())

	obj := conn.Object(busName, dbus.ObjectPath(busPath))
	call := obj.Call(busMethod, 0,
		n.appName, uint32(0), iconFor(note), note.Title, note.Message,
		[]string{}, hints, timeout)
	if call.Err != nil {
		return fmt.Errorf("send notification: %w", call.Err)
	}
	return nil
}

func (n *DBusNotifier) connect() (*dbus.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil && n.conn.Connected() {
		return n.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	n.conn = conn
	return conn, nil
}

// hintsFor sets the urgency and ties the notification to the desktop entry.
func hintsFor(note Notification) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(urgencyFor(note.Type)),
		"desktop-entry": dbus.MakeVariant(common.AppID),
	}
}

func iconFor(note Notification) string {
	if note.Icon != "" {
		return note.Icon
	}
	switch note.Type {
	case NotificationWarning:
		return "dialog-warning"
	case NotificationError:
		return "dialog-error"
	default:
		return "network-vpn"
	}
}

func urgencyFor(t NotificationType) byte {
	switch t {
	case NotificationError:
		return urgencyCritical
	case NotificationWarning:
		return urgencyNormal
	default:
		return urgencyLow
	}
}

func typeForIcon(icon string) NotificationType {
	switch icon {
	case "dialog-error", "network-vpn-error":
		return NotificationError
	case "dialog-warning":
		return NotificationWarning
	default:
		return NotificationInfo
	}
}
