package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/documents"
)

type formKind int

const (
	formCreate formKind = iota
	formVersion
	formEdit
	formReplace
)

func (k formKind) title() string {
	switch k {
	case formVersion:
		return "Upload new version"
	case formEdit:
		return "Edit file"
	case formReplace:
		return "Replace content"
	}
	return "New document"
}

const (
	fieldGroup    = "Group name"
	fieldCategory = "Category"
	fieldVersion  = "Version"
	fieldPath     = "File path"
)

type field struct {
	label string
	input textinput.Model
}

// uploadForm collects the inputs of one mutating intent.
type uploadForm struct {
	kind   formKind
	target docs.FileRecord
	fields []field
	focus  int

	inspection *documents.Inspection
	busy       bool
}

func newUploadForm(kind formKind, target docs.FileRecord, categories []string) *uploadForm {
	f := &uploadForm{kind: kind, target: target}

	add := func(label, value, placeholder string) {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholder
		ti.CharLimit = 512
		ti.SetValue(value)
		if label == fieldCategory {
			ti.ShowSuggestions = true
			ti.SetSuggestions(categories)
		}
		f.fields = append(f.fields, field{label: label, input: ti})
	}

	defaultCategory := ""
	if len(categories) > 0 {
		defaultCategory = categories[0]
	}
	switch kind {
	case formCreate:
		add(fieldGroup, "", "e.g. Installation manual")
		add(fieldCategory, defaultCategory, strings.Join(categories, ", "))
		add(fieldVersion, "1.0.0", "major.minor.patch")
		add(fieldPath, "", "/path/to/file.pdf")
	case formVersion:
		next := target.FileVersion
		next.Minor++
		next.Patch = 0
		add(fieldCategory, target.FileCategory, strings.Join(categories, ", "))
		add(fieldVersion, next.String(), "major.minor.patch")
		add(fieldPath, "", "/path/to/file.pdf")
	case formEdit:
		add(fieldCategory, target.FileCategory, strings.Join(categories, ", "))
		add(fieldVersion, target.FileVersion.String(), "major.minor.patch")
		add(fieldPath, "", "optional: replacement file")
	case formReplace:
		add(fieldPath, "", "/path/to/file.pdf")
	}
	f.fields[0].input.Focus()
	return f
}

func (f *uploadForm) value(label string) string {
	for _, fl := range f.fields {
		if fl.label == label {
			return strings.TrimSpace(fl.input.Value())
		}
	}
	return ""
}

// move shifts focus by delta. It reports whether focus left the path
// field, which is when the file gets inspected.
func (f *uploadForm) move(delta int) (leftPath bool) {
	leftPath = f.fields[f.focus].label == fieldPath
	f.fields[f.focus].input.Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	f.fields[f.focus].input.Focus()
	return leftPath
}

func (f *uploadForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

func (f *uploadForm) version() (docs.Version, error) {
	return docs.ParseVersion(f.value(fieldVersion))
}

func (f *uploadForm) createForm() (docs.CreateForm, error) {
	v, err := f.version()
	if err != nil {
		return docs.CreateForm{}, err
	}
	return docs.CreateForm{
		GroupName: f.value(fieldGroup),
		Category:  f.value(fieldCategory),
		Version:   v,
		Path:      f.value(fieldPath),
	}, nil
}

func (f *uploadForm) versionForm() (docs.VersionForm, error) {
	v, err := f.version()
	if err != nil {
		return docs.VersionForm{}, err
	}
	return docs.VersionForm{
		Category: f.value(fieldCategory),
		Version:  v,
		Path:     f.value(fieldPath),
	}, nil
}

func (f *uploadForm) editForm() (docs.EditForm, error) {
	v, err := f.version()
	if err != nil {
		return docs.EditForm{}, err
	}
	return docs.EditForm{
		Category: f.value(fieldCategory),
		Version:  v,
		Path:     f.value(fieldPath),
	}, nil
}

func (f *uploadForm) View() string {
	var b strings.Builder
	title := f.kind.title()
	if f.kind != formCreate {
		title += fmt.Sprintf(" · %s v%s", f.target.DisplayName(), f.target.FileVersion)
	}
	b.WriteString(headerStyle.Render(title) + "\n\n")

	for i, fl := range f.fields {
		label := labelStyle.Render(fl.label)
		if i == f.focus {
			label = labelStyle.Foreground(selectedStyle.GetForeground()).Render(fl.label)
		}
		b.WriteString(label + " " + fl.input.View() + "\n")
	}

	if in := f.inspection; in != nil {
		b.WriteString("\n" + refStyle.Render(fmt.Sprintf("%s · %s", in.Name, documents.HumanSize(in.Size))))
		if in.Pages > 0 {
			b.WriteString(refStyle.Render(fmt.Sprintf(" · %d pages", in.Pages)))
		}
		b.WriteString("\n" + refStyle.Render("sha256 "+in.SHA256[:16]+"…"))
		if in.Preview != "" {
			b.WriteString("\n" + noteStyle.Render(in.Preview))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if f.busy {
		b.WriteString(infoStyle.Render("Uploading…"))
	} else {
		b.WriteString(helpStyle.Render("tab/shift+tab: move   ctrl+s: submit   esc: cancel"))
	}
	return b.String()
}
