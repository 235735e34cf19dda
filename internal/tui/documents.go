package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/docchat/cli/internal/conflict"
	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/documents"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/notify"
)

type docMode int

const (
	modeList docMode = iota
	modeDetail
	modeForm
)

type pageLoadedMsg struct {
	page docs.Page
	err  error
}

// openDetailMsg shows a file's detail view. It is also sent by the
// duplicate-content navigator.
type openDetailMsg struct {
	record   docs.FileRecord
	versions []docs.FileRecord
	err      error
}

type categoryChangedMsg struct {
	record docs.FileRecord
	err    error
}

type deletedMsg struct {
	fileID int64
	err    error
}

type inspectedMsg struct {
	path       string
	inspection *documents.Inspection
	err        error
}

type formDoneMsg struct {
	record     docs.FileRecord
	resolution *conflict.Resolution
}

// DocumentsView lists files page by page and shows one file's version
// history.
type DocumentsView struct {
	svc        *docs.Service
	inspector  *documents.Inspector
	resolver   *conflict.Resolver
	notifier   notify.Notifier
	categories []string
	logger     *logger.Logger

	mode    docMode
	page    docs.Page
	cursor  int
	loading bool

	detail   docs.FileRecord
	versions []docs.FileRecord
	vcursor  int

	form          *uploadForm
	returnTo      docMode
	confirmDelete bool

	width  int
	height int
}

// NewDocumentsView creates a new documents view
func NewDocumentsView(deps Deps, resolver *conflict.Resolver, notifier notify.Notifier) *DocumentsView {
	return &DocumentsView{
		svc:        deps.Docs,
		inspector:  deps.Inspector,
		resolver:   resolver,
		notifier:   notifier,
		categories: deps.Config.Files.Categories,
		logger:     deps.Logger.With("view", "documents"),
		width:      100,
		height:     20,
	}
}

func (dv *DocumentsView) Init() tea.Cmd {
	return dv.loadPage(0)
}

func (dv *DocumentsView) SetSize(width, height int) {
	dv.width, dv.height = width, height
}

func (dv *DocumentsView) Capturing() bool {
	return dv.mode == modeForm || dv.confirmDelete
}

func (dv *DocumentsView) loadPage(n int) tea.Cmd {
	dv.loading = true
	return func() tea.Msg {
		p, err := dv.svc.ListPage(context.Background(), n)
		return pageLoadedMsg{page: p, err: err}
	}
}

func (dv *DocumentsView) openDetail(fileID int64) tea.Cmd {
	dv.loading = true
	return func() tea.Msg {
		rec, versions, err := dv.svc.Detail(context.Background(), fileID)
		return openDetailMsg{record: rec, versions: versions, err: err}
	}
}

func (dv *DocumentsView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case pageLoadedMsg:
		dv.loading = false
		if msg.err != nil {
			dv.notifier.Notify(notify.LevelError, "Could not load files: "+msg.err.Error())
			return nil
		}
		dv.page = msg.page
		dv.cursor = min(dv.cursor, max(len(msg.page.Content)-1, 0))
		return nil

	case openDetailMsg:
		dv.loading = false
		if msg.err != nil {
			dv.notifier.Notify(notify.LevelError, "Could not open file: "+msg.err.Error())
			return nil
		}
		dv.detail = msg.record
		dv.versions = msg.versions
		dv.vcursor = max(slices.IndexFunc(msg.versions, func(r docs.FileRecord) bool {
			return r.FileID == msg.record.FileID
		}), 0)
		dv.form = nil
		dv.mode = modeDetail
		return nil

	case categoryChangedMsg:
		if msg.err != nil {
			dv.notifier.Notify(notify.LevelError, "Could not change category: "+msg.err.Error())
			return nil
		}
		dv.detail = msg.record
		for i := range dv.versions {
			if dv.versions[i].FileID == msg.record.FileID {
				dv.versions[i] = msg.record
			}
		}
		dv.notifier.Notify(notify.LevelSuccess, "Category changed to "+msg.record.FileCategory+".")
		return nil

	case deletedMsg:
		if msg.err != nil {
			dv.notifier.Notify(notify.LevelError, "Could not delete file: "+msg.err.Error())
			return nil
		}
		dv.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Deleted file #%d.", msg.fileID))
		dv.mode = modeList
		return dv.loadPage(dv.page.Number)

	case inspectedMsg:
		if dv.form != nil && msg.err == nil && msg.path == dv.form.value(fieldPath) {
			dv.form.inspection = msg.inspection
		}
		return nil

	case formDoneMsg:
		return dv.formDone(msg)

	case tea.KeyMsg:
		if dv.confirmDelete {
			return dv.answerDelete(msg)
		}
		switch dv.mode {
		case modeForm:
			return dv.updateForm(msg)
		case modeDetail:
			return dv.updateDetail(msg)
		default:
			return dv.updateList(msg)
		}
	}
	return nil
}

func (dv *DocumentsView) updateList(msg tea.KeyMsg) tea.Cmd {
	rows := dv.page.Content
	switch msg.String() {
	case "up", "k":
		if dv.cursor > 0 {
			dv.cursor--
		}
	case "down", "j":
		if dv.cursor < len(rows)-1 {
			dv.cursor++
		}
	case "right", "n":
		if dv.page.HasNext() {
			dv.cursor = 0
			return dv.loadPage(dv.page.Number + 1)
		}
	case "left", "p":
		if dv.page.HasPrev() {
			dv.cursor = 0
			return dv.loadPage(dv.page.Number - 1)
		}
	case "r":
		return dv.loadPage(dv.page.Number)
	case "a":
		return dv.startForm(formCreate, docs.FileRecord{})
	case "enter":
		if dv.cursor < len(rows) {
			return dv.openDetail(rows[dv.cursor].FileID)
		}
	}
	return nil
}

func (dv *DocumentsView) updateDetail(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "backspace":
		dv.mode = modeList
		return dv.loadPage(dv.page.Number)
	case "up", "k":
		if dv.vcursor > 0 {
			dv.vcursor--
		}
	case "down", "j":
		if dv.vcursor < len(dv.versions)-1 {
			dv.vcursor++
		}
	case "enter":
		if dv.vcursor < len(dv.versions) && dv.versions[dv.vcursor].FileID != dv.detail.FileID {
			return dv.openDetail(dv.versions[dv.vcursor].FileID)
		}
	case "c":
		return dv.cycleCategory()
	case "v":
		return dv.startForm(formVersion, dv.detail)
	case "e":
		return dv.startForm(formEdit, dv.detail)
	case "R":
		return dv.startForm(formReplace, dv.detail)
	case "d":
		dv.confirmDelete = true
	}
	return nil
}

func (dv *DocumentsView) cycleCategory() tea.Cmd {
	if len(dv.categories) == 0 {
		return nil
	}
	i := slices.Index(dv.categories, dv.detail.FileCategory)
	next := dv.categories[(i+1)%len(dv.categories)]
	id := dv.detail.FileID
	return func() tea.Msg {
		rec, err := dv.svc.PatchCategory(context.Background(), id, next)
		return categoryChangedMsg{record: rec, err: err}
	}
}

func (dv *DocumentsView) answerDelete(msg tea.KeyMsg) tea.Cmd {
	dv.confirmDelete = false
	if msg.String() != "y" {
		return nil
	}
	id := dv.detail.FileID
	return func() tea.Msg {
		return deletedMsg{fileID: id, err: dv.svc.Delete(context.Background(), id)}
	}
}

func (dv *DocumentsView) startForm(kind formKind, target docs.FileRecord) tea.Cmd {
	dv.returnTo = dv.mode
	dv.form = newUploadForm(kind, target, dv.categories)
	dv.mode = modeForm
	return nil
}

func (dv *DocumentsView) updateForm(msg tea.KeyMsg) tea.Cmd {
	f := dv.form
	if f.busy {
		return nil
	}
	switch msg.String() {
	case "esc":
		dv.form = nil
		dv.mode = dv.returnTo
		return nil
	case "tab", "down":
		if f.move(1) {
			return dv.inspect(f.value(fieldPath))
		}
		return nil
	case "shift+tab", "up":
		if f.move(-1) {
			return dv.inspect(f.value(fieldPath))
		}
		return nil
	case "ctrl+s":
		return dv.submit()
	case "enter":
		if f.focus == len(f.fields)-1 {
			return dv.submit()
		}
		if f.move(1) {
			return dv.inspect(f.value(fieldPath))
		}
		return nil
	}
	return f.update(msg)
}

func (dv *DocumentsView) inspect(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		in, err := dv.inspector.Inspect(path)
		return inspectedMsg{path: path, inspection: in, err: err}
	}
}

// submit runs the form's intent. Failures go through the resolver, which
// may prompt and navigate before the result comes back.
func (dv *DocumentsView) submit() tea.Cmd {
	f := dv.form
	ctx := context.Background()

	var run func() (docs.FileRecord, error)
	switch f.kind {
	case formCreate:
		form, err := f.createForm()
		if err != nil {
			return dv.reject(err)
		}
		run = func() (docs.FileRecord, error) { return dv.svc.Create(ctx, form) }
	case formVersion:
		form, err := f.versionForm()
		if err != nil {
			return dv.reject(err)
		}
		run = func() (docs.FileRecord, error) { return dv.svc.UploadVersion(ctx, f.target.FileID, form) }
	case formEdit:
		form, err := f.editForm()
		if err != nil {
			return dv.reject(err)
		}
		// the no-op guard answers without a round trip
		if err := form.Diff(f.target); err != nil {
			return dv.reject(err)
		}
		run = func() (docs.FileRecord, error) { return dv.svc.Edit(ctx, f.target, form) }
	case formReplace:
		path := f.value(fieldPath)
		run = func() (docs.FileRecord, error) { return dv.svc.Replace(ctx, f.target.FileID, path) }
	}

	f.busy = true
	return func() tea.Msg {
		rec, err := run()
		if err != nil {
			res := dv.resolver.Resolve(ctx, err)
			return formDoneMsg{resolution: &res}
		}
		return formDoneMsg{record: rec}
	}
}

func (dv *DocumentsView) reject(err error) tea.Cmd {
	dv.resolver.Resolve(context.Background(), err)
	return nil
}

func (dv *DocumentsView) formDone(msg formDoneMsg) tea.Cmd {
	if dv.form == nil {
		// the navigator already replaced the form with a detail view
		return nil
	}
	dv.form.busy = false
	if res := msg.resolution; res != nil {
		if res.DiscardForm {
			dv.form = nil
			if dv.mode == modeForm {
				dv.mode = modeDetail
			}
		}
		return nil
	}

	kind := dv.form.kind
	dv.form = nil
	switch kind {
	case formCreate:
		dv.notifier.Notify(notify.LevelSuccess, "Uploaded "+msg.record.DisplayName()+".")
	case formVersion:
		dv.notifier.Notify(notify.LevelSuccess, "Uploaded version "+msg.record.FileVersion.String()+".")
	default:
		dv.notifier.Notify(notify.LevelSuccess, "Saved "+msg.record.DisplayName()+".")
	}
	return dv.openDetail(msg.record.FileID)
}

func (dv *DocumentsView) View() string {
	switch dv.mode {
	case modeForm:
		return dv.form.View()
	case modeDetail:
		return dv.viewDetail()
	}
	return dv.viewList()
}

func (dv *DocumentsView) columns() (name, group, category int) {
	// id, version and date columns are fixed width
	rest := max(dv.width-8-9-17-6, 30)
	name = rest * 45 / 100
	group = rest * 35 / 100
	category = rest - name - group
	return
}

func (dv *DocumentsView) viewList() string {
	var b strings.Builder
	nameW, groupW, catW := dv.columns()

	header := cell("ID", 8) + cell("Name", nameW) + " " + cell("Group", groupW) + " " + cell("Category", catW) + " " + cell("Version", 9) + cell("Uploaded", 17)
	b.WriteString(headerStyle.Render(header) + "\n")

	if len(dv.page.Content) == 0 {
		if dv.loading {
			b.WriteString(helpStyle.Render("Loading…") + "\n")
		} else {
			b.WriteString(helpStyle.Render("No files yet. Press a to upload one.") + "\n")
		}
	}
	for i, rec := range dv.page.Content {
		row := cell(fmt.Sprintf("%d", rec.FileID), 8) +
			cell(rec.DisplayName(), nameW) + " " +
			cell(rec.GroupName, groupW) + " " +
			cell(rec.FileCategory, catW) + " " +
			cell(rec.FileVersion.String(), 9) +
			cell(rec.UploadedAt.String(), 17)
		if i == dv.cursor {
			row = selectedStyle.Render(row)
		}
		b.WriteString(row + "\n")
	}

	pages := max(dv.page.TotalPages, 1)
	b.WriteString("\n" + helpStyle.Render(fmt.Sprintf("page %d/%d · %d files", dv.page.Number+1, pages, dv.page.TotalElements)))
	b.WriteString("\n" + helpStyle.Render("↑/↓: move   enter: open   ←/→: page   a: new   r: reload"))
	return b.String()
}

func (dv *DocumentsView) viewDetail() string {
	rec := dv.detail
	var b strings.Builder
	b.WriteString(headerStyle.Render(rec.DisplayName()) + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + " " + value + "\n")
	}
	row("File ID", fmt.Sprintf("%d", rec.FileID))
	row("Group", fmt.Sprintf("%s (#%d, %d files)", rec.GroupName, rec.GroupID, rec.FileCount))
	row("Category", rec.FileCategory)
	row("Version", rec.FileVersion.String())
	row("Type", rec.FileExtension)
	row("Uploaded", rec.UploadedAt.String())
	if rec.Edited() {
		row("Updated", rec.UpdatedAt.String())
	}

	b.WriteString("\n" + headerStyle.Render("Versions") + "\n")
	for i, v := range dv.versions {
		line := cell("v"+v.FileVersion.String(), 10) + cell(v.DisplayName(), 40) + " " + v.UploadedAt.String()
		if v.FileID == rec.FileID {
			line += "  (current)"
		}
		if i == dv.vcursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if dv.confirmDelete {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete %s v%s? y/n", rec.DisplayName(), rec.FileVersion)))
	} else {
		b.WriteString(helpStyle.Render("enter: open version   c: next category   v: new version   e: edit   R: replace   d: delete   esc: back"))
	}
	return b.String()
}
