package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread shows one conversation's log plus the composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chatID   string
	peerName string
	typing   bool
	onSend   func(text string)
}

// NewMessageThread creates the conversation view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.AccentColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// SetChat points the view at a conversation.
func (mt *MessageThread) SetChat(chatID, peerName string) {
	mt.chatID = chatID
	mt.peerName = peerName
	mt.typing = false
	mt.messages.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(peerName)))
}

// ChatID returns the conversation currently shown, or "".
func (mt *MessageThread) ChatID() string { return mt.chatID }

// SetOnSend registers the composer's submit callback.
func (mt *MessageThread) SetOnSend(fn func(text string)) { mt.onSend = fn }

// SetTyping toggles the peer's simulated typing indicator.
func (mt *MessageThread) SetTyping(typing bool) { mt.typing = typing }

// Update redraws the log, oldest first, with delivery ticks on outgoing
// messages.
func (mt *MessageThread) Update(msgs []chat.Message) {
	mt.messages.Clear()

	for _, m := range msgs {
		sender := mt.peerName
		color := "lightcyan"
		if m.Direction == chat.Outgoing {
			sender = "You"
			color = "palegreen"
		}

		line := fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s[-:-:-] %s\n%s\n\n",
			color, tview.Escape(sanitizeForTerminal(sender)),
			formatTimestamp(m.CreatedAt),
			statusTicks(m),
			tview.Escape(sanitizeForTerminal(m.Text)))
		_, _ = fmt.Fprint(mt.messages, line)
	}

	if mt.typing {
		_, _ = fmt.Fprintf(mt.messages, "[::d]%s is typing…[-:-:-]\n", tview.Escape(sanitizeForTerminal(mt.peerName)))
	}

	mt.messages.ScrollToEnd()
}

// Composer returns the input field for focus management.
func (mt *MessageThread) Composer() *tview.InputField { return mt.composer }

func statusTicks(m chat.Message) string {
	if m.Direction != chat.Outgoing {
		return ""
	}
	switch m.Status {
	case chat.StatusSent:
		return "✓"
	case chat.StatusDelivered:
		return "✓✓"
	case chat.StatusRead:
		return "[deepskyblue]✓✓[-]"
	default:
		return ""
	}
}
