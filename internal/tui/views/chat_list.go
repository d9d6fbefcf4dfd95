package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChatList is the left-hand conversation table.
type ChatList struct {
	*tview.Table
	chats []chat.Chat
}

// NewChatList creates the chat list table.
func NewChatList(theme *ui.Theme) *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	return &ChatList{Table: table}
}

// Update replaces the table contents. The slice arrives already sorted.
func (cl *ChatList) Update(chats []chat.Chat) {
	cl.chats = chats
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, c := range chats {
		row := i + 1
		name := c.PeerName
		if c.Pinned {
			name = "📌 " + name
		}
		if c.Muted {
			name += " 🔇"
		}
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("%s (%d)", name, c.UnreadCount)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+sanitizeForTerminal(name)).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.LastMessagePreview))).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(c.LastActivityAt)).SetMaxWidth(12))
	}
}

// SelectedChat returns the ID of the highlighted chat, or "".
func (cl *ChatList) SelectedChat() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // header row
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return ""
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
