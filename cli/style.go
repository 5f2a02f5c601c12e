package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/wg-manager/common"
	"github.com/yllada/wg-manager/vpn"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func okMark() string {
	return okStyle.Render("✓")
}

func styleStatus(s common.ConnectionStatus) string {
	if s == common.StatusConnected {
		return okStyle.Render(s.String())
	}
	return mutedStyle.Render(s.String())
}

func styleHealth(h vpn.HealthState) string {
	switch h {
	case vpn.HealthHealthy:
		return okStyle.Render(h.String())
	case vpn.HealthDegraded:
		return warnStyle.Render(h.String())
	case vpn.HealthUnhealthy:
		return errStyle.Render(h.String())
	default:
		return mutedStyle.Render(h.String())
	}
}
