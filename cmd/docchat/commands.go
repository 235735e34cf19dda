package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/docchat/cli/config"
	"github.com/docchat/cli/internal/chat"
	"github.com/docchat/cli/internal/conflict"
	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/documents"
	"github.com/docchat/cli/internal/notify"
	"github.com/docchat/cli/internal/scope"
)

// errReported marks a failure the user has already been told about.
var errReported = errors.New("reported")

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"ls":             {"List files page by page", runList},
	"show":           {"Show a file and its version history", runShow},
	"versions":       {"List every version in a group", runVersions},
	"upload":         {"Upload the first version of a new document", runUpload},
	"upload-version": {"Upload a new version next to an existing file", runUploadVersion},
	"edit":           {"Change a file's category, version or content", runEdit},
	"replace":        {"Replace a file's content, keeping its metadata", runReplace},
	"category":       {"Change a file's category", runCategory},
	"rm":             {"Delete one or more files", runRemove},
	"download":       {"Download a file", runDownload},
	"inspect":        {"Show page count, hash and preview of local files", runInspect},
	"ask":            {"Ask a question about the documents", runAsk},
	"config":         {"Print or save the configuration", runConfig},
}

func newFlags(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: docchat %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return id, nil
}

func console() *notify.Console {
	return notify.NewConsole(os.Stderr)
}

// stdinConfirmer asks on the terminal.
type stdinConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (c stdinConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// printNavigator "opens" a file by printing its detail.
type printNavigator struct {
	e   *env
	out io.Writer
}

func (n printNavigator) OpenFile(ctx context.Context, fileID int64) error {
	rec, versions, err := n.e.docs.Detail(ctx, fileID)
	if err != nil {
		return err
	}
	printDetail(n.out, rec, versions)
	return nil
}

func (e *env) resolver() *conflict.Resolver {
	return conflict.NewResolver(
		stdinConfirmer{in: bufio.NewReader(os.Stdin), out: os.Stderr},
		printNavigator{e: e, out: os.Stdout},
		e.docs.Cache(),
		console(),
		e.logger,
	)
}

// resolve reports a failed mutation. Navigating to the duplicate counts as
// success.
func (e *env) resolve(ctx context.Context, err error) error {
	res := e.resolver().Resolve(ctx, err)
	if res.Outcome == conflict.Navigated {
		return nil
	}
	return errReported
}

func cell(s string, w int) string {
	if runewidth.StringWidth(s) > w {
		s = runewidth.Truncate(s, w, "…")
	}
	return runewidth.FillRight(s, w)
}

func printRow(out io.Writer, rec docs.FileRecord) {
	fmt.Fprintf(out, "%s %s %s %s %s %s\n",
		cell(strconv.FormatInt(rec.FileID, 10), 7),
		cell(rec.DisplayName(), 36),
		cell(rec.GroupName, 24),
		cell(rec.FileCategory, 10),
		cell(rec.FileVersion.String(), 9),
		rec.UploadedAt.String())
}

func printHeader(out io.Writer) {
	fmt.Fprintf(out, "%s %s %s %s %s %s\n",
		cell("ID", 7), cell("NAME", 36), cell("GROUP", 24), cell("CATEGORY", 10), cell("VERSION", 9), "UPLOADED")
}

func printDetail(out io.Writer, rec docs.FileRecord, versions []docs.FileRecord) {
	fmt.Fprintf(out, "%s\n", rec.DisplayName())
	fmt.Fprintf(out, "  File ID:   %d\n", rec.FileID)
	fmt.Fprintf(out, "  Group:     %s (#%d)\n", rec.GroupName, rec.GroupID)
	fmt.Fprintf(out, "  Category:  %s\n", rec.FileCategory)
	fmt.Fprintf(out, "  Version:   %s\n", rec.FileVersion)
	fmt.Fprintf(out, "  Type:      %s\n", rec.FileExtension)
	fmt.Fprintf(out, "  Uploaded:  %s\n", rec.UploadedAt)
	if rec.Edited() {
		fmt.Fprintf(out, "  Updated:   %s\n", rec.UpdatedAt)
	}
	if len(versions) > 0 {
		fmt.Fprintf(out, "\nVersions (%d):\n", len(versions))
		for _, v := range versions {
			mark := " "
			if v.FileID == rec.FileID {
				mark = "*"
			}
			fmt.Fprintf(out, " %s v%s  #%d  %s  %s\n", mark, cell(v.FileVersion.String(), 9), v.FileID, cell(v.DisplayName(), 36), v.UploadedAt)
		}
	}
}

func runList(ctx context.Context, e *env, args []string) error {
	fs := newFlags("ls", "")
	page := fs.Int("page", 1, "Page number, starting at 1")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := e.docs.ListPage(ctx, *page-1)
	if err != nil {
		return err
	}
	printHeader(os.Stdout)
	for _, rec := range p.Content {
		printRow(os.Stdout, rec)
	}
	fmt.Printf("\npage %d/%d · %d files\n", p.Number+1, max(p.TotalPages, 1), p.TotalElements)
	return nil
}

func runShow(ctx context.Context, e *env, args []string) error {
	fs := newFlags("show", "<file-id>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errReported
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}
	return printNavigator{e: e, out: os.Stdout}.OpenFile(ctx, id)
}

func runVersions(ctx context.Context, e *env, args []string) error {
	fs := newFlags("versions", "<group-id>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errReported
	}
	groupID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid group id %q", fs.Arg(0))
	}

	versions, err := e.docs.GroupVersions(ctx, groupID)
	if err != nil {
		return err
	}
	printHeader(os.Stdout)
	for _, rec := range versions {
		printRow(os.Stdout, rec)
	}
	return nil
}

func versionFlag(fs *flag.FlagSet, def string) *string {
	return fs.String("version", def, "Version as major.minor.patch")
}

func runUpload(ctx context.Context, e *env, args []string) error {
	fs := newFlags("upload", "<path>")
	group := fs.String("group", "", "Group (document) name")
	category := fs.String("category", e.cfg.Files.Categories[0], "Category")
	version := versionFlag(fs, "1.0.0")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errReported
	}
	v, err := docs.ParseVersion(*version)
	if err != nil {
		return err
	}

	rec, err := e.docs.Create(ctx, docs.CreateForm{GroupName: *group, Category: *category, Version: v, Path: fs.Arg(0)})
	if err != nil {
		return e.resolve(ctx, err)
	}
	console().Notify(notify.LevelSuccess, fmt.Sprintf("Uploaded %s as file #%d.", rec.DisplayName(), rec.FileID))
	return nil
}

func runUploadVersion(ctx context.Context, e *env, args []string) error {
	fs := newFlags("upload-version", "<file-id> <path>")
	category := fs.String("category", "", "Category (defaults to the file's)")
	version := versionFlag(fs, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errReported
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}
	loaded, err := e.docs.Get(ctx, id)
	if err != nil {
		return err
	}

	form := docs.VersionForm{Category: loaded.FileCategory, Path: fs.Arg(1)}
	if *category != "" {
		form.Category = *category
	}
	if *version == "" {
		form.Version = loaded.FileVersion
		form.Version.Minor++
		form.Version.Patch = 0
	} else if form.Version, err = docs.ParseVersion(*version); err != nil {
		return err
	}

	rec, err := e.docs.UploadVersion(ctx, id, form)
	if err != nil {
		return e.resolve(ctx, err)
	}
	console().Notify(notify.LevelSuccess, fmt.Sprintf("Uploaded version %s as file #%d.", rec.FileVersion, rec.FileID))
	return nil
}

func runEdit(ctx context.Context, e *env, args []string) error {
	fs := newFlags("edit", "<file-id>")
	category := fs.String("category", "", "New category")
	version := versionFlag(fs, "")
	file := fs.String("file", "", "Replacement content")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errReported
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}
	loaded, err := e.docs.Get(ctx, id)
	if err != nil {
		return err
	}

	form := docs.EditForm{Category: loaded.FileCategory, Version: loaded.FileVersion, Path: *file}
	if *category != "" {
		form.Category = *category
	}
	if *version != "" {
		if form.Version, err = docs.ParseVersion(*version); err != nil {
			return err
		}
	}

	rec, err := e.docs.Edit(ctx, loaded, form)
	if err != nil {
		return e.resolve(ctx, err)
	}
	console().Notify(notify.LevelSuccess, fmt.Sprintf("Saved %s (v%s, %s).", rec.DisplayName(), rec.FileVersion, rec.FileCategory))
	return nil
}

func runReplace(ctx context.Context, e *env, args []string) error {
	fs := newFlags("replace", "<file-id> <path>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errReported
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	rec, err := e.docs.Replace(ctx, id, fs.Arg(1))
	if err != nil {
		return e.resolve(ctx, err)
	}
	console().Notify(notify.LevelSuccess, "Replaced content of "+rec.DisplayName()+".")
	return nil
}

func runCategory(ctx context.Context, e *env, args []string) error {
	fs := newFlags("category", "<file-id> <category>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errReported
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	rec, err := e.docs.PatchCategory(ctx, id, fs.Arg(1))
	if err != nil {
		return err
	}
	console().Notify(notify.LevelSuccess, fmt.Sprintf("Category of #%d changed to %s.", rec.FileID, rec.FileCategory))
	return nil
}

func runRemove(ctx context.Context, e *env, args []string) error {
	fs := newFlags("rm", "<file-id>...")
	yes := fs.Bool("y", false, "Do not ask for confirmation")
	parallel := fs.Int("parallel", 4, "Concurrent deletes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errReported
	}
	ids := make([]int64, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	confirm := stdinConfirmer{in: bufio.NewReader(os.Stdin), out: os.Stderr}
	if !*yes && !confirm.Confirm(fmt.Sprintf("Delete %d file(s)?", len(ids))) {
		return nil
	}

	out := console()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for _, id := range ids {
		g.Go(func() error {
			if err := e.docs.Delete(ctx, id); err != nil {
				out.Notify(notify.LevelError, fmt.Sprintf("#%d: %v", id, err))
				return err
			}
			out.Notify(notify.LevelSuccess, fmt.Sprintf("Deleted #%d.", id))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errReported
	}
	return nil
}

func runDownload(ctx context.Context, e *env, args []string) error {
	fs := newFlags("download", "<file-id>")
	output := fs.String("o", "", "Output path (defaults to the original file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errReported
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	dest := *output
	if dest == "" {
		rec, err := e.docs.Get(ctx, id)
		if err != nil {
			return err
		}
		dest = filepath.Base(rec.DisplayName())
	}
	n, err := e.docs.Download(ctx, id, dest)
	if err != nil {
		return err
	}
	console().Notify(notify.LevelSuccess, fmt.Sprintf("Saved %s (%s).", dest, documents.HumanSize(n)))
	return nil
}

func runInspect(ctx context.Context, e *env, args []string) error {
	fs := newFlags("inspect", "<path>...")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errReported
	}

	failed := false
	for _, path := range fs.Args() {
		in, err := e.inspector.Inspect(path)
		if err != nil {
			console().Notify(notify.LevelError, err.Error())
			failed = true
			continue
		}
		fmt.Printf("%s\n  Size:    %s\n  SHA-256: %s\n", in.Path, documents.HumanSize(in.Size), in.SHA256)
		if in.Pages > 0 {
			fmt.Printf("  Pages:   %d\n", in.Pages)
		}
		if in.Preview != "" {
			fmt.Printf("  Preview: %s\n", in.Preview)
		}
	}
	if failed {
		return errReported
	}
	return nil
}

func runAsk(ctx context.Context, e *env, args []string) error {
	fs := newFlags("ask", "<question>")
	scopeName := fs.String("scope", "ALL", "ALL, CATEGORY, GROUP (current) or FILE (legacy)")
	policyName := fs.String("policy", "", "LATEST, ALL_VERSIONS or SPECIFIC (defaults to the first legal one)")
	value := fs.String("value", "", "Category name, group id or file name")
	versions := fs.String("versions", "", "Comma separated version labels for SPECIFIC")
	system := fs.String("system", e.cfg.Chat.SystemMessage, "System message")
	markdown := fs.Bool("md", false, "Render the finished answer as Markdown")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.Join(fs.Args(), " ")

	machine := scope.New(e.variant, e.client, e.logger)
	if err := configureScope(ctx, machine, *scopeName, *policyName, *value, *versions); err != nil {
		return err
	}

	session := chat.NewSession(e.client, machine, *system, e.logger)
	printed := 0
	if !*markdown {
		session.OnUpdate(func(chat.Update) {
			msgs := session.Transcript()
			if len(msgs) == 0 {
				return
			}
			text := msgs[len(msgs)-1].Text
			if len(text) > printed {
				fmt.Print(text[printed:])
				printed = len(text)
			}
		})
	}

	sendErr := session.Send(ctx, question)
	msgs := session.Transcript()
	if len(msgs) < 2 {
		// rejected before anything was sent
		return sendErr
	}
	answer := msgs[len(msgs)-1]
	switch {
	case *markdown && answer.Text != "":
		rendered, err := glamour.Render(answer.Text, "auto")
		if err != nil {
			rendered = answer.Text
		}
		fmt.Print(rendered)
		fmt.Print(strings.TrimPrefix(answer.Rendered, answer.Text))
		fmt.Println()
	case printed == 0:
		fmt.Println(answer.Rendered)
	default:
		fmt.Println(strings.TrimPrefix(answer.Rendered, answer.Text))
	}
	if sendErr != nil && !errors.Is(sendErr, context.Canceled) {
		return sendErr
	}
	if answer.Error != "" || answer.Text == "" {
		return errReported
	}
	return nil
}

// configureScope drives the machine the way the chat controls would.
func configureScope(ctx context.Context, m *scope.Machine, scopeName, policyName, value, versions string) error {
	s, err := scope.ParseScope(scopeName)
	if err != nil {
		return err
	}
	if err := m.SetScope(ctx, s); err != nil {
		return err
	}
	if value != "" {
		if err := m.SelectFilterValue(ctx, value); err != nil {
			return err
		}
	}
	if policyName != "" {
		p, err := scope.ParsePolicy(policyName)
		if err != nil {
			return err
		}
		if err := m.SetVersionPolicy(ctx, p); err != nil {
			return err
		}
	}
	if versions != "" {
		for _, label := range strings.Split(versions, ",") {
			if err := m.ToggleVersion(strings.TrimSpace(label)); err != nil {
				return err
			}
		}
	}
	_, err = m.Payload()
	return err
}

func runConfig(_ context.Context, e *env, args []string) error {
	fs := newFlags("config", "")
	save := fs.Bool("save", false, "Write the effective configuration to "+filepath.Join(config.Dir(), "config.yaml"))
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *save {
		if err := e.cfg.Save(); err != nil {
			return err
		}
		console().Notify(notify.LevelSuccess, "Configuration saved.")
		return nil
	}
	data, err := yaml.Marshal(e.cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
