// Package tui is the terminal front end: a chat list, a conversation
// pane, the assistant page, and a status bar, all fed by render
// callbacks from the session.
package tui

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/ports"
	"github.com/parley-chat/parley/internal/respond"
	"github.com/parley-chat/parley/internal/session"
	"github.com/parley-chat/parley/internal/tui/ui"
	"github.com/parley-chat/parley/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageMain      = "main"
	pageAssistant = "assistant"
	pageNewChat   = "newchat"
)

// App is the TUI shell. It implements ports.RenderPort; every callback
// marshals onto the tview event loop via QueueUpdateDraw.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	sess      *session.Session
	link      *ports.SimulatedLink
	theme     *ui.Theme
	chatList  *views.ChatList
	thread    *views.MessageThread
	assistant *views.AssistantView
	statusBar *views.StatusBar
	newChat   *tview.InputField
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp builds the shell and wires its callbacks into the session.
func NewApp(sess *session.Session, link *ports.SimulatedLink, profileName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		sess:      sess,
		link:      link,
		theme:     theme,
		chatList:  views.NewChatList(theme),
		thread:    views.NewMessageThread(theme),
		assistant: views.NewAssistantView(theme),
		statusBar: views.NewStatusBar(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.statusBar.SetOnline(sess.Online())
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.thread.SetOnSend(func(text string) {
		chatID := a.thread.ChatID()
		if chatID == "" {
			return
		}
		if err := a.sess.SendText(chatID, text); err != nil {
			a.statusBar.SetFlash("Send failed: " + err.Error())
		}
	})

	a.assistant.SetOnAsk(func(text string) {
		a.sess.AskAssistant(text)
	})

	a.newChat = tview.NewInputField().
		SetLabel(" New chat with: ").
		SetFieldWidth(32)
	a.newChat.SetBorder(true)
	a.newChat.SetBorderColor(a.theme.FocusColor)
	a.newChat.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			if name := a.newChat.GetText(); name != "" {
				c := a.sess.CreateChat(name)
				a.newChat.SetText("")
				a.pages.SwitchToPage(pageMain)
				a.openChat(c.ID)
				return
			}
		}
		a.pages.SwitchToPage(pageMain)
		a.app.SetFocus(a.chatList)
	})
}

func (a *App) setupLayout() {
	main := tview.NewFlex().
		AddItem(a.chatList, 0, 1, true).
		AddItem(a.thread, 0, 2, false)

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(a.newChat, 3, 0, true).
			AddItem(nil, 0, 1, false), 40, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage(pageMain, main, true, true)
	a.pages.AddPage(pageAssistant, a.assistant, true, false)
	a.pages.AddPage(pageNewChat, modal, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	currentPage, _ := a.pages.GetFrontPage()

	if event.Key() == tcell.KeyEscape {
		switch currentPage {
		case pageAssistant, pageNewChat:
			a.pages.SwitchToPage(pageMain)
			a.app.SetFocus(a.chatList)
			return nil
		default:
			// Leaving the conversation closes it: later incoming
			// messages count as unread again.
			if a.thread.ChatID() != "" {
				a.sess.ClearActive()
				a.thread.SetChat("", "")
				a.thread.Update(nil)
			}
			a.app.SetFocus(a.chatList)
			return nil
		}
	}

	// Text inputs consume their own keys.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}

	if event.Key() != tcell.KeyRune {
		return event
	}

	switch event.Rune() {
	case 'q':
		a.Stop()
	case 'i':
		if a.thread.ChatID() != "" {
			a.app.SetFocus(a.thread.Composer())
		}
	case 'n':
		a.pages.SwitchToPage(pageNewChat)
		a.app.SetFocus(a.newChat)
	case 'a':
		a.pages.SwitchToPage(pageAssistant)
		a.assistant.Update(a.sess.AssistantTail(20))
		a.app.SetFocus(a.assistant.Input())
	case 'o':
		a.link.Toggle()
	case 'p':
		a.withSelectedChat(func(id string) { _ = a.sess.TogglePinned(id) })
	case 'm':
		a.withSelectedChat(func(id string) { _ = a.sess.ToggleMuted(id) })
	case 'd':
		a.withSelectedChat(func(id string) {
			if err := a.sess.DeleteChat(id); err == nil && a.thread.ChatID() == id {
				a.thread.SetChat("", "")
				a.thread.Update(nil)
			}
		})
	case 'v':
		go func() { _ = a.sess.Listen(a.ctx) }()
	default:
		return event
	}
	return nil
}

func (a *App) withSelectedChat(fn func(id string)) {
	if id := a.chatList.SelectedChat(); id != "" {
		fn(id)
	}
}

func (a *App) openChat(chatID string) {
	c, msgs, err := a.sess.SelectChat(chatID)
	if err != nil {
		a.statusBar.SetFlash("Open failed: " + err.Error())
		return
	}
	a.thread.SetChat(c.ID, c.PeerName)
	a.thread.Update(msgs)
	a.chatList.Update(a.sess.ListChats(""))
	a.app.SetFocus(a.thread.Composer())
}

// Run attaches the render port and enters the tview event loop.
func (a *App) Run() error {
	a.sess.AttachRender(a)
	a.chatList.Update(a.sess.ListChats(""))
	a.statusBar.SetQueued(a.sess.QueuedCount())
	return a.app.Run()
}

// Stop tears down the event loop.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// --- ports.RenderPort ---

// ChatListChanged redraws the conversation table.
func (a *App) ChatListChanged(chats []chat.Chat) {
	a.app.QueueUpdateDraw(func() {
		a.chatList.Update(chats)
		a.statusBar.SetQueued(a.sess.QueuedCount())
	})
}

// MessagesChanged redraws the thread when it is the one on screen.
func (a *App) MessagesChanged(chatID string, msgs []chat.Message) {
	a.app.QueueUpdateDraw(func() {
		if a.thread.ChatID() != chatID {
			return
		}
		if n := len(msgs); n > 0 && msgs[n-1].Direction == chat.Incoming {
			a.thread.SetTyping(false)
		}
		a.thread.Update(msgs)
	})
}

// AssistantReplied refreshes the assistant transcript.
func (a *App) AssistantReplied(entries []respond.Entry) {
	a.app.QueueUpdateDraw(func() {
		a.assistant.Update(entries)
	})
}

// TypingStarted shows the peer's typing indicator.
func (a *App) TypingStarted(chatID string) {
	a.app.QueueUpdateDraw(func() {
		if a.thread.ChatID() != chatID {
			return
		}
		a.thread.SetTyping(true)
		if msgs, err := a.sess.Messages(chatID); err == nil {
			a.thread.Update(msgs)
		}
	})
}

// PresenceChanged refreshes the footer clock and indicators.
func (a *App) PresenceChanged(chat.User) {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetOnline(a.sess.Online())
	})
}

// ConnectivityChanged flips the link indicator.
func (a *App) ConnectivityChanged(online bool) {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetOnline(online)
		a.statusBar.SetQueued(a.sess.QueuedCount())
	})
}

// Notice flashes a transient message in the footer.
func (a *App) Notice(text string) {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetFlash(text)
	})
}
