package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/parley-chat/parley/internal/respond"
	"github.com/parley-chat/parley/internal/tui/ui"
	"github.com/rivo/tview"
)

// AssistantView is the built-in assistant page: a transcript plus an
// input field.
type AssistantView struct {
	*tview.Flex
	transcript *tview.TextView
	input      *tview.InputField
	onAsk      func(text string)
}

// NewAssistantView creates the assistant page.
func NewAssistantView(theme *ui.Theme) *AssistantView {
	transcript := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	transcript.SetBorder(true)
	transcript.SetBorderColor(theme.BorderColor)
	transcript.SetBackgroundColor(theme.BgColor)
	transcript.SetTextColor(theme.FgColor)
	transcript.SetTitle(" Assistant ")
	transcript.SetTitleColor(theme.TitleColor)

	input := tview.NewInputField().
		SetLabel(" ask > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.AccentColor)

	av := &AssistantView{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(transcript, 0, 1, false).
			AddItem(input, 3, 0, true),
		transcript: transcript,
		input:      input,
	}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && av.onAsk != nil {
			text := input.GetText()
			if text != "" {
				av.onAsk(text)
				input.SetText("")
			}
		}
	})

	return av
}

// SetOnAsk registers the submit callback.
func (av *AssistantView) SetOnAsk(fn func(text string)) { av.onAsk = fn }

// Update redraws the transcript from memory entries, oldest first.
func (av *AssistantView) Update(entries []respond.Entry) {
	av.transcript.Clear()
	for _, e := range entries {
		speaker := "You"
		color := "palegreen"
		if e.Role == respond.RoleAssistant {
			speaker = "Assistant"
			color = "lightcyan"
		}
		_, _ = fmt.Fprintf(av.transcript, "[%s::b]%s[-:-:-] %s\n\n",
			color, speaker, tview.Escape(sanitizeForTerminal(e.Text)))
	}
	av.transcript.ScrollToEnd()
}

// Input returns the input field for focus management.
func (av *AssistantView) Input() *tview.InputField { return av.input }
