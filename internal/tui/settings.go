package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/docchat/cli/config"
	"github.com/docchat/cli/internal/chat"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/notify"
)

// SettingsView shows the active configuration and edits the system message
// sent with every chat request.
type SettingsView struct {
	cfg      *config.Config
	session  *chat.Session
	notifier notify.Notifier
	logger   *logger.Logger

	input   textinput.Model
	editing bool
	width   int
}

// NewSettingsView creates a new settings view
func NewSettingsView(deps Deps, notifier notify.Notifier) *SettingsView {
	ti := textinput.New()
	ti.Placeholder = "optional instructions for the assistant"
	ti.CharLimit = 2000
	ti.SetValue(deps.Session.SystemMessage())

	return &SettingsView{
		cfg:      deps.Config,
		session:  deps.Session,
		notifier: notifier,
		logger:   deps.Logger.With("view", "settings"),
		input:    ti,
	}
}

func (sv *SettingsView) Init() tea.Cmd {
	return nil
}

func (sv *SettingsView) SetSize(width, height int) {
	sv.width = width
	sv.input.Width = max(width-20, 20)
}

func (sv *SettingsView) Capturing() bool {
	return sv.editing
}

func (sv *SettingsView) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	if !sv.editing {
		switch key.String() {
		case "e", "enter":
			sv.editing = true
			sv.input.SetValue(sv.session.SystemMessage())
			sv.input.CursorEnd()
			return sv.input.Focus()
		case "x":
			sv.apply("")
		}
		return nil
	}

	switch key.String() {
	case "esc":
		sv.editing = false
		sv.input.Blur()
		return nil
	case "enter":
		sv.editing = false
		sv.input.Blur()
		sv.apply(strings.TrimSpace(sv.input.Value()))
		return nil
	}
	var cmd tea.Cmd
	sv.input, cmd = sv.input.Update(msg)
	return cmd
}

// apply updates the live session and persists the value.
func (sv *SettingsView) apply(msg string) {
	sv.session.SetSystemMessage(msg)
	sv.input.SetValue(msg)
	sv.cfg.Chat.SystemMessage = msg
	if err := sv.cfg.Save(); err != nil {
		sv.logger.Error("Failed to save config", "error", err)
		sv.notifier.Notify(notify.LevelError, fmt.Sprintf("Failed to save settings: %v", err))
		return
	}
	sv.notifier.Notify(notify.LevelSuccess, "Settings saved.")
}

func (sv *SettingsView) View() string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Width(16).Render(label) + " " + value + "\n")
	}

	b.WriteString(headerStyle.Render("Server") + "\n")
	row("Base URL", sv.cfg.Server.BaseURL)
	row("Timeout", sv.cfg.Server.Timeout.String())
	b.WriteString("\n" + headerStyle.Render("Chat") + "\n")
	row("Variant", sv.cfg.Chat.Variant)
	if sv.editing {
		row("System message", sv.input.View())
	} else {
		msg := sv.session.SystemMessage()
		if msg == "" {
			msg = helpStyle.Render("(none)")
		}
		row("System message", msg)
	}
	b.WriteString("\n" + headerStyle.Render("Files") + "\n")
	row("Page size", fmt.Sprint(sv.cfg.Files.PageSize))
	row("Categories", strings.Join(sv.cfg.Files.Categories, ", "))
	b.WriteString("\n" + headerStyle.Render("Logging") + "\n")
	row("File", sv.cfg.Logging.File)
	row("Mode", sv.cfg.Logging.Mode)
	row("Config", config.Dir())

	help := "e: edit system message   x: clear system message"
	if sv.editing {
		help = "enter: save   esc: cancel"
	}
	b.WriteString("\n" + helpStyle.Render(help))
	return b.String()
}
