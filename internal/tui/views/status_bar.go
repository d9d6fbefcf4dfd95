package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar is the single-line footer: profile, link state, queue depth,
// and a transient flash message.
type StatusBar struct {
	*tview.TextView
	profile string
	online  bool
	queued  int
	flash   string
}

// NewStatusBar creates the footer bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, online: true}
}

// SetProfile sets the profile name shown on the left.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetOnline updates the link indicator.
func (sb *StatusBar) SetOnline(online bool) {
	sb.online = online
	sb.render()
}

// SetQueued updates the pending-message counter.
func (sb *StatusBar) SetQueued(n int) {
	sb.queued = n
	sb.render()
}

// SetFlash shows a transient message until the next update.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	link := "[green]ONLINE[-]"
	if !sb.online {
		link = "[orangered]OFFLINE[-]"
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.profile, link, time.Now().Format("15:04"))
	if sb.queued > 0 {
		line += fmt.Sprintf(" | [yellow]%d queued[-]", sb.queued)
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [navajowhite]%s[-]", tview.Escape(sanitizeForTerminal(sb.flash)))
	}

	_, _ = fmt.Fprint(sb, line)
}
