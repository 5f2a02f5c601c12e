package notify

import (
	"testing"

	"github.com/yllada/wg-manager/common"
)

func TestIconFor(t *testing.T) {
	tests := []struct {
		name string
		note Notification
		want string
	}{
		{"explicit icon wins", Notification{Type: NotificationError, Icon: "custom"}, "custom"},
		{"success", Notification{Type: NotificationSuccess}, "network-vpn"},
		{"info", Notification{Type: NotificationInfo}, "network-vpn"},
		{"warning", Notification{Type: NotificationWarning}, "dialog-warning"},
		{"error", Notification{Type: NotificationError}, "dialog-error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := iconFor(tt.note); got != tt.want {
				t.Errorf("iconFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want byte
	}{
		{NotificationInfo, urgencyLow},
		{NotificationSuccess, urgencyLow},
		{NotificationWarning, urgencyNormal},
		{NotificationError, urgencyCritical},
	}

	for _, tt := range tests {
		if got := urgencyFor(tt.typ); got != tt.want {
			t.Errorf("urgencyFor(%d) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestTypeForIcon(t *testing.T) {
	if got := typeForIcon("dialog-error"); got != NotificationError {
		t.Errorf("typeForIcon(dialog-error) = %v, want NotificationError", got)
	}
	if got := typeForIcon("network-vpn"); got != NotificationInfo {
		t.Errorf("typeForIcon(network-vpn) = %v, want NotificationInfo", got)
	}
}

func TestNewDBusNotifier(t *testing.T) {
	n := NewDBusNotifier("WireGuard Manager")
	if n.appName != "WireGuard Manager" {
		t.Errorf("appName = %q", n.appName)
	}
	if n.conn != nil {
		t.Error("bus connection must be opened lazily")
	}
}

func TestHintsFor(t *testing.T) {
	hints := hintsFor(Notification{Type: NotificationError})

	if got := hints["desktop-entry"].Value(); got != common.AppID {
		t.Errorf("desktop-entry = %v, want %v", got, common.AppID)
	}
	if got := hints["urgency"].Value(); got != urgencyFor(NotificationError) {
		t.Errorf("urgency = %v, want %v", got, urgencyFor(NotificationError))
	}
}
