package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/docchat/cli/internal/chat"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/notify"
	"github.com/docchat/cli/internal/scope"
)

type chatUpdateMsg chat.Update

// sendDoneMsg ends a send; text is the message that was submitted.
type sendDoneMsg struct {
	text string
	err  error
}

type scopeChangedMsg struct {
	err error
}

// ChatView handles the chat interface: scope controls, transcript and input.
type ChatView struct {
	session  *chat.Session
	scope    *scope.Machine
	notifier notify.Notifier
	logger   *logger.Logger

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	wrap     int

	// controls is set while the input is blurred and single keys drive the
	// scope selectors
	controls      bool
	versionCursor int
	// sending is set from dispatch until sendDoneMsg, covering the gap
	// before the session marks itself busy
	sending bool

	width  int
	height int
}

// NewChatView creates a new chat view
func NewChatView(deps Deps, notifier notify.Notifier) *ChatView {
	ta := textarea.New()
	ta.Placeholder = "Ask about your documents… (enter: send, alt+enter: newline, esc: scope controls)"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	cv := &ChatView{
		session:  deps.Session,
		scope:    deps.Scope,
		notifier: notifier,
		logger:   deps.Logger.With("view", "chat"),
		input:    ta,
		viewport: viewport.New(80, 10),
		spinner:  sp,
	}
	cv.SetSize(100, 24)
	return cv
}

func (cv *ChatView) Init() tea.Cmd {
	return nil
}

// Focus puts the cursor back in the input when the page is shown.
func (cv *ChatView) Focus() tea.Cmd {
	cv.controls = false
	return cv.input.Focus()
}

func (cv *ChatView) Capturing() bool {
	return !cv.controls
}

func (cv *ChatView) SetSize(width, height int) {
	cv.width, cv.height = width, height
	cv.input.SetWidth(width)
	// scope bar (3 lines) + input (3) + help (1) + spacing
	cv.viewport.Width = width
	cv.viewport.Height = max(height-9, 3)
	if cv.wrap != width-4 {
		cv.wrap = width - 4
		cv.renderer = nil
	}
	cv.refresh()
}

func (cv *ChatView) markdown(text string) string {
	if cv.renderer == nil {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(cv.wrap, 20)))
		if err != nil {
			return text
		}
		cv.renderer = r
	}
	out, err := cv.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (cv *ChatView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case chatUpdateMsg:
		cv.refresh()
		return nil

	case sendDoneMsg:
		cv.sending = false
		cv.refresh()
		if rejected(msg.err) && cv.input.Value() == "" {
			// nothing was sent, give the text back
			cv.input.SetValue(msg.text)
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			cv.notifier.Notify(notify.LevelError, msg.err.Error())
		}
		return nil

	case scopeChangedMsg:
		if msg.err != nil {
			cv.notifier.Notify(notify.LevelError, msg.err.Error())
		}
		cv.versionCursor = 0
		return nil

	case spinner.TickMsg:
		if !cv.session.Busy() {
			return nil
		}
		var cmd tea.Cmd
		cv.spinner, cmd = cv.spinner.Update(msg)
		cv.refresh()
		return cmd

	case tea.KeyMsg:
		if cv.controls {
			return cv.updateControls(msg)
		}
		switch msg.String() {
		case "esc":
			cv.controls = true
			cv.input.Blur()
			return nil
		case "enter":
			return cv.send()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			cv.viewport, cmd = cv.viewport.Update(msg)
			return cmd
		}
		var cmd tea.Cmd
		cv.input, cmd = cv.input.Update(msg)
		return cmd
	}
	return nil
}

// send validates locally so a rejected message stays in the input, then
// streams the answer on a command goroutine.
func (cv *ChatView) send() tea.Cmd {
	text := cv.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cv.sending || cv.session.Busy() {
		cv.notifier.Notify(notify.LevelInfo, chat.ErrBusy.Error())
		return nil
	}
	if _, err := cv.scope.Payload(); err != nil {
		cv.notifier.Notify(notify.LevelError, err.Error())
		return nil
	}

	cv.input.Reset()
	cv.sending = true
	send := func() tea.Msg {
		return sendDoneMsg{text: text, err: cv.session.Send(context.Background(), text)}
	}
	return tea.Batch(send, cv.spinner.Tick)
}

// rejected reports whether Send refused the message before sending it.
func rejected(err error) bool {
	for _, target := range []error{
		chat.ErrEmptyMessage, chat.ErrBusy,
		scope.ErrCategoryRequired, scope.ErrGroupRequired, scope.ErrFileRequired, scope.ErrVersionRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (cv *ChatView) updateControls(msg tea.KeyMsg) tea.Cmd {
	ctx := context.Background()
	switch msg.String() {
	case "i", "enter", "esc":
		return cv.Focus()
	case "s":
		scopes := cv.scope.Scopes()
		next := scopes[(slices.Index(scopes, cv.scope.Filter().Scope)+1)%len(scopes)]
		return func() tea.Msg { return scopeChangedMsg{err: cv.scope.SetScope(ctx, next)} }
	case "p":
		policies := cv.scope.LegalPolicies()
		next := policies[(slices.Index(policies, cv.scope.Filter().Policy)+1)%len(policies)]
		return func() tea.Msg { return scopeChangedMsg{err: cv.scope.SetVersionPolicy(ctx, next)} }
	case "f":
		values := cv.filterValues()
		if len(values) == 0 {
			cv.notifier.Notify(notify.LevelInfo, "Nothing to choose for this scope.")
			return nil
		}
		next := values[(slices.Index(values, cv.scope.Filter().Value)+1)%len(values)]
		return func() tea.Msg { return scopeChangedMsg{err: cv.scope.SelectFilterValue(ctx, next)} }
	case "left", "h":
		if cv.versionCursor > 0 {
			cv.versionCursor--
		}
	case "right", "l":
		if cv.versionCursor < len(cv.scope.Options().Versions)-1 {
			cv.versionCursor++
		}
	case " ", "v":
		versions := cv.scope.Options().Versions
		if cv.versionCursor < len(versions) {
			if err := cv.scope.ToggleVersion(versions[cv.versionCursor]); err != nil {
				cv.notifier.Notify(notify.LevelError, err.Error())
			}
		}
	case "n":
		// Reset notifies through the program, so it must not run inside Update
		return func() tea.Msg {
			cv.session.Reset()
			return nil
		}
	case "pgup", "pgdown", "up", "down", "k", "j":
		var cmd tea.Cmd
		cv.viewport, cmd = cv.viewport.Update(msg)
		return cmd
	}
	return nil
}

// filterValues lists the selectable values of the current scope: category
// names, group ids or file names.
func (cv *ChatView) filterValues() []string {
	opts := cv.scope.Options()
	switch cv.scope.Filter().Scope {
	case scope.Category:
		return opts.Categories
	case scope.Group:
		ids := make([]string, len(opts.Groups))
		for i, g := range opts.Groups {
			ids[i] = strconv.FormatInt(g.GroupID, 10)
		}
		return ids
	case scope.File:
		return opts.FileNames
	}
	return nil
}

// refresh re-renders the transcript from a session snapshot.
func (cv *ChatView) refresh() {
	msgs := cv.session.Transcript()
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if m.Role == chat.RoleUser {
			b.WriteString(userStyle.Render("You") + "\n" + m.Text)
			continue
		}
		b.WriteString(botStyle.Render("Assistant") + "\n")
		switch {
		case m.Pending:
			b.WriteString(cv.spinner.View() + " " + m.Rendered)
		case m.Text == "":
			// error or no-response bubble
			b.WriteString(errorStyle.Render(m.Rendered))
			continue
		default:
			b.WriteString(cv.markdown(m.Text))
			if m.Error != "" {
				b.WriteString("\n" + errorStyle.Render("Error: "+m.Error))
			}
		}
		if len(m.References) > 0 {
			b.WriteString("\n" + refStyle.Render(fmt.Sprintf("References (%d)", len(m.References))))
			for _, ref := range m.References {
				b.WriteString("\n" + refStyle.Render("  • "+cell(refLabel(ref.OriginalFileName, ref.FileVersion, ref.FileCategory), max(cv.width-6, 20))))
			}
		}
		for _, note := range m.Annotations {
			b.WriteString("\n" + noteStyle.Render(note))
		}
	}
	cv.viewport.SetContent(b.String())
	cv.viewport.GotoBottom()
}

func refLabel(name, version, category string) string {
	out := name
	if version != "" {
		out += " v" + version
	}
	if category != "" {
		out += " [" + category + "]"
	}
	return out
}

func (cv *ChatView) scopeBar() string {
	f := cv.scope.Filter()
	opts := cv.scope.Options()

	line1 := labelStyle.Render("Scope") + " " + f.Scope.Label()
	if f.Scope != scope.All {
		value := f.Value
		if f.Scope == scope.Group {
			for _, g := range opts.Groups {
				if strconv.FormatInt(g.GroupID, 10) == f.Value {
					value = g.GroupName
				}
			}
		}
		if value == "" {
			value = helpStyle.Render("(press f to choose)")
		}
		line1 += " · " + value
	}
	line2 := labelStyle.Render("Versions") + " " + f.Policy.Label()
	if f.Policy == scope.Specific {
		var labels []string
		for i, v := range opts.Versions {
			mark := "[ ]"
			if slices.Contains(f.Versions, v) {
				mark = "[x]"
			}
			label := mark + " " + v
			if cv.controls && i == cv.versionCursor {
				label = selectedStyle.Render(label)
			}
			labels = append(labels, label)
		}
		if len(labels) == 0 {
			labels = append(labels, helpStyle.Render("(choose a value first)"))
		}
		line2 += "  " + strings.Join(labels, "  ")
	}
	line3 := labelStyle.Render("Conversation") + " " + helpStyle.Render(cv.session.ConversationID())
	return line1 + "\n" + line2 + "\n" + line3
}

func (cv *ChatView) View() string {
	help := "esc: scope controls   enter: send   pgup/pgdn: scroll"
	if cv.controls {
		help = "s: scope   p: version policy   f: value   ←/→ space: pick version   n: new conversation   i: type"
	}
	return cv.scopeBar() + "\n\n" +
		cv.viewport.View() + "\n" +
		cv.input.View() + "\n" +
		helpStyle.Render(help)
}
