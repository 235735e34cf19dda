package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/docchat/cli/config"
	"github.com/docchat/cli/internal/chat"
	"github.com/docchat/cli/internal/conflict"
	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/documents"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/notify"
	"github.com/docchat/cli/internal/scope"
)

// Deps are the services the TUI drives.
type Deps struct {
	Config    *config.Config
	Docs      *docs.Service
	Scope     *scope.Machine
	Session   *chat.Session
	Inspector *documents.Inspector
	Logger    *logger.Logger
}

type page int

const (
	pageDocuments page = iota
	pageChat
	pageSettings
)

var pageNames = []string{"Documents", "Chat", "Settings"}

// view is one page of the app.
type view interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View() string
	SetSize(width, height int)
	// Capturing reports whether keys should go to a text field instead of
	// the global shortcuts.
	Capturing() bool
}

// confirmRequestMsg asks the user a yes/no question on behalf of a
// command goroutine, which blocks on reply.
type confirmRequestMsg struct {
	prompt string
	reply  chan bool
}

// App is the root bubbletea model.
type App struct {
	program *tea.Program
	notes   *notify.Recorder
	logger  *logger.Logger

	page    page
	views   []view
	confirm *confirmRequestMsg
	width   int
	height  int
}

// NewApp wires the pages together.
func NewApp(deps Deps) *App {
	a := &App{
		notes:  &notify.Recorder{},
		logger: deps.Logger.With("component", "tui"),
	}

	resolver := conflict.NewResolver(
		confirmer{app: a},
		navigator{docs: deps.Docs, app: a},
		deps.Docs.Cache(),
		a.notes,
		deps.Logger,
	)

	// Session callbacks arrive on command goroutines, never inside Update,
	// so a blocking Send is safe here.
	deps.Session.OnUpdate(func(u chat.Update) {
		a.send(chatUpdateMsg(u))
	})

	a.views = []view{
		NewDocumentsView(deps, resolver, a.notes),
		NewChatView(deps, a.notes),
		NewSettingsView(deps, a.notes),
	}
	return a
}

// Run starts the program on the alternate screen and blocks until quit.
func (a *App) Run() error {
	a.program = tea.NewProgram(a, tea.WithAltScreen())
	_, err := a.program.Run()
	return err
}

func (a *App) send(msg tea.Msg) {
	if a.program != nil {
		a.program.Send(msg)
	}
}

func (a *App) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(a.views))
	for _, v := range a.views {
		cmds = append(cmds, v.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		for _, v := range a.views {
			// tabs above, status line below
			v.SetSize(msg.Width, msg.Height-4)
		}
		return a, nil

	case confirmRequestMsg:
		a.confirm = &msg
		return a, nil

	case openDetailMsg:
		a.page = pageDocuments
		return a, a.views[pageDocuments].Update(msg)

	case chatUpdateMsg, sendDoneMsg, scopeChangedMsg:
		return a, a.views[pageChat].Update(msg)

	case tea.KeyMsg:
		if a.confirm != nil {
			return a, a.answerConfirm(msg)
		}
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if !a.views[a.page].Capturing() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case "tab":
				return a, a.switchTo((a.page + 1) % page(len(a.views)))
			case "shift+tab":
				return a, a.switchTo((a.page + page(len(a.views)) - 1) % page(len(a.views)))
			case "1", "2", "3":
				return a, a.switchTo(page(msg.String()[0] - '1'))
			}
		}
		return a, a.views[a.page].Update(msg)
	}

	// everything else (async results, spinner ticks) is broadcast
	cmds := make([]tea.Cmd, 0, len(a.views))
	for _, v := range a.views {
		cmds = append(cmds, v.Update(msg))
	}
	return a, tea.Batch(cmds...)
}

func (a *App) switchTo(p page) tea.Cmd {
	a.page = p
	if f, ok := a.views[p].(interface{ Focus() tea.Cmd }); ok {
		return f.Focus()
	}
	return nil
}

func (a *App) answerConfirm(msg tea.KeyMsg) tea.Cmd {
	var answer bool
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		answer = true
	case "n", "esc":
		answer = false
	default:
		return nil
	}
	a.confirm.reply <- answer
	a.confirm = nil
	return nil
}

func (a *App) View() string {
	tabs := make([]string, len(pageNames))
	for i, name := range pageNames {
		label := string(rune('1'+i)) + " " + name
		if page(i) == a.page {
			tabs[i] = activeTab.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("docchat  "), strings.Join(tabs, ""))

	body := a.views[a.page].View()
	if a.confirm != nil {
		body = modalStyle.Render(a.confirm.prompt + "\n\n" + helpStyle.Render("y: yes   n: no"))
	}

	status := helpStyle.Render("tab: switch page   q: quit")
	if last, ok := a.notes.Last(); ok {
		status = statusStyle(last.Level).Render(last.Message)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", status)
}

// confirmer implements conflict.Confirmer by showing a modal and waiting
// for the answer. It must be called from a command goroutine, never from
// Update.
type confirmer struct {
	app *App
}

func (c confirmer) Confirm(prompt string) bool {
	if c.app.program == nil {
		return false
	}
	reply := make(chan bool, 1)
	c.app.send(confirmRequestMsg{prompt: prompt, reply: reply})
	return <-reply
}

// navigator implements conflict.Navigator by loading the detail view.
type navigator struct {
	docs *docs.Service
	app  *App
}

func (n navigator) OpenFile(ctx context.Context, fileID int64) error {
	rec, versions, err := n.docs.Detail(ctx, fileID)
	if err != nil {
		return err
	}
	n.app.send(openDetailMsg{record: rec, versions: versions})
	return nil
}
