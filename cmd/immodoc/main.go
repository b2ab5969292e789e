package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/immodoc/immodoc/pkg/api"
	"github.com/immodoc/immodoc/pkg/app"
	"github.com/immodoc/immodoc/pkg/config"
	"github.com/immodoc/immodoc/pkg/logging"
	"github.com/immodoc/immodoc/pkg/session"
	"github.com/immodoc/immodoc/pkg/term"
	"github.com/immodoc/immodoc/pkg/timeline"
	"github.com/immodoc/immodoc/pkg/toast"
	"github.com/immodoc/immodoc/pkg/transport"
	"github.com/immodoc/immodoc/pkg/upload"
	"github.com/immodoc/immodoc/pkg/watch"
)

// Version information - set via ldflags during build
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

var (
	configPath string
	verbose    bool
)

const usage = `immodoc - document intelligence client

Usage:
  immodoc [flags] <command> [args]

Commands:
  health              probe the backend
  docs                list indexed documents
  delete <id>         remove a document
  upload <file>...    upload PDF files
  watch [dir]         upload PDFs dropped into a directory
  ask <question>      ask a question against the corpus
  history             show the local chat history
  clear-chat          wipe local and server chat history
  extract -text|-file extract timeline entries from raw text
  timeline            show the extracted timeline
  set-url <url>       persist a new API base URL
  version             print version information

Flags:
  -config <path>      config file (default ~/.immodoc/config.yaml)
  -v                  verbose logging
`

func main() {
	flag.StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	out := term.New()
	command := flag.Arg(0)
	args := flag.Args()[1:]

	if command == "version" {
		out.Println("immodoc %s (%s)", version, commit)
		return
	}

	env, err := newEnvironment(out)
	if err != nil {
		out.Error("%s", err)
		os.Exit(1)
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.run(ctx, command, args); err != nil {
		if err != errUsage {
			out.Error("%s", transport.UserMessage(err))
		}
		os.Exit(1)
	}
}

var errUsage = fmt.Errorf("usage error")

// environment wires config, storage, transport and the orchestrator for
// one CLI invocation.
type environment struct {
	cfg    *config.Config
	out    *term.Writer
	store  *session.Store
	logger *logging.Logger
	tc     *transport.Client
	api    *api.Client
	app    *app.App
}

func newEnvironment(out *term.Writer) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.LogDir(), ulid.Make().String())
	if err != nil {
		return nil, err
	}
	if verbose {
		logger.SetMinLevel(logging.LevelDebug)
	}

	store, err := session.Open(cfg.SessionDBPath())
	if err != nil {
		logger.Close()
		return nil, err
	}

	tc := transport.NewClient(transport.Options{
		BaseURL:            store.BaseURL(cfg.BaseURL),
		Auth:               transport.NewAuthState(cfg.APIToken),
		NetworkLogDir:      cfg.LogDir(),
		NetworkLogsEnabled: cfg.NetworkLogs,
	})

	apiClient := api.New(tc, cfg.PropertyID)
	toasts := toast.NewManager()

	env := &environment{
		cfg:    cfg,
		out:    out,
		store:  store,
		logger: logger,
		tc:     tc,
		api:    apiClient,
		app:    app.New(apiClient, store, toasts, logger),
	}
	toasts.SetOnChange(env.renderToasts)
	return env, nil
}

func (e *environment) close() {
	e.tc.Close()
	e.store.Close()
	e.logger.Close()
}

// renderToasts prints newly shown toasts. The CLI has no persistent
// surface, so each toast prints once at its severity.
func (e *environment) renderToasts(active []*toast.Toast) {
	if len(active) == 0 {
		return
	}
	latest := active[len(active)-1]
	line := latest.Title
	if latest.Details != "" {
		line += ": " + latest.Details
	}
	switch latest.Level {
	case toast.LevelSuccess:
		e.out.Success("✓ %s", line)
	case toast.LevelWarning:
		e.out.Warning("! %s", line)
	default:
		e.out.Error("✗ %s", line)
	}
}

func (e *environment) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "health":
		return e.cmdHealth(ctx)
	case "docs":
		return e.cmdDocs(ctx)
	case "delete":
		return e.cmdDelete(ctx, args)
	case "upload":
		return e.cmdUpload(ctx, args)
	case "watch":
		return e.cmdWatch(ctx, args)
	case "ask":
		return e.cmdAsk(ctx, args)
	case "history":
		return e.cmdHistory(ctx)
	case "clear-chat":
		return e.app.ClearChat(ctx)
	case "extract":
		return e.cmdExtract(ctx, args)
	case "timeline":
		return e.cmdTimeline(ctx, args)
	case "set-url":
		return e.cmdSetURL(args)
	default:
		e.out.Error("unknown command %q", command)
		flag.Usage()
		return errUsage
	}
}

func (e *environment) cmdHealth(ctx context.Context) error {
	if err := e.app.HealthCheck(ctx); err != nil {
		return err
	}
	e.out.Success("Backend reachable at %s", e.tc.BaseURL())
	return nil
}

func (e *environment) cmdDocs(ctx context.Context) error {
	if err := e.app.RefreshDocuments(ctx); err != nil {
		return err
	}
	docs := e.app.Documents()
	if len(docs) == 0 {
		e.out.Dim("No documents indexed yet.")
		return nil
	}
	e.out.Header(fmt.Sprintf("Documents (%d)", len(docs)))
	for _, doc := range docs {
		line := fmt.Sprintf("  %3d  %s", doc.DocumentID, doc.Filename)
		if doc.QualityScore != nil {
			line += fmt.Sprintf("  (quality %.0f%%)", *doc.QualityScore*100)
		}
		e.out.Println("%s", line)
	}
	if status, err := e.api.CorpusStatus(ctx); err == nil {
		e.out.Dim("%d documents, %d chunks indexed", status.DocumentsInDB, status.ChunksInDB)
	}
	return nil
}

func (e *environment) cmdDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		e.out.Error("usage: immodoc delete <document-id>")
		return errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		e.out.Error("invalid document id %q", args[0])
		return errUsage
	}
	return e.app.DeleteDocument(ctx, id)
}

func (e *environment) cmdUpload(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		e.out.Error("usage: immodoc upload <file.pdf>...")
		return errUsage
	}

	var files []upload.File
	for _, path := range paths {
		f, err := upload.FromPath(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	e.app.SelectFiles(files)

	result, err := e.app.Upload(ctx, e.renderProgress)
	if result != nil {
		e.out.Println("")
		for _, line := range result.Ledger() {
			if strings.HasPrefix(line, "OK") {
				e.out.Success("%s", line)
			} else {
				e.out.Error("%s", line)
			}
		}
	}
	return err
}

func (e *environment) renderProgress(p upload.Progress) {
	e.out.Print("\r%-40s %5.1f%%", p.Filename, p.OverallPercent)
}

func (e *environment) cmdWatch(ctx context.Context, args []string) error {
	dir := e.cfg.Watch.Dir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		e.out.Error("no watch directory given (argument, watch.dir or IMMODOC_WATCH_DIR)")
		return errUsage
	}

	watcher, err := watch.New(dir, e.logger)
	if err != nil {
		return err
	}
	go func() {
		for f := range watcher.Files() {
			e.app.SelectFiles([]upload.File{f})
			if _, err := e.app.Upload(ctx, nil); err != nil {
				e.out.Error("upload of %s failed: %s", f.Name, transport.UserMessage(err))
			}
		}
	}()

	e.out.Println("Watching %s for PDFs. Press Ctrl-C to stop.", dir)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (e *environment) cmdAsk(ctx context.Context, args []string) error {
	if len(args) == 0 {
		e.out.Error("usage: immodoc ask <question>")
		return errUsage
	}
	e.app.Startup(ctx)
	if e.app.BackendDown() {
		return fmt.Errorf("backend unavailable")
	}

	answer, err := e.app.Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	e.out.Println("\n%s", answer.Text)
	for _, src := range answer.Sources {
		name := e.app.FilenameFor(src.DocumentID)
		if name == "" {
			name = fmt.Sprintf("document %d", src.DocumentID)
		}
		e.out.Dim("  source: %s [%s]", name, src.Key())
	}
	return nil
}

func (e *environment) cmdHistory(ctx context.Context) error {
	messages := e.app.ChatMessages()
	if len(messages) == 0 {
		// History loads on startup; a fresh environment reads the store directly
		messages = e.store.ChatHistory()
	}
	if len(messages) == 0 {
		// Fresh machine: fall back to the server-persisted turns
		remote, err := e.api.ChatHistory(ctx)
		if err != nil {
			return err
		}
		for _, msg := range remote {
			messages = append(messages, session.ChatMessage{
				DBID:    msg.ID,
				Role:    msg.Role,
				Text:    msg.Text,
				Sources: msg.Sources,
			})
		}
	}
	if len(messages) == 0 {
		e.out.Dim("No chat history.")
		return nil
	}
	for _, msg := range messages {
		prefix := "you"
		if msg.Role == "assistant" {
			prefix = "immodoc"
		}
		e.out.Println("%s %s", e.out.Bold(prefix+":"), msg.Text)
	}
	return nil
}

func (e *environment) cmdExtract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	text := fs.String("text", "", "raw text to extract from")
	file := fs.String("file", "", "text file to extract from")
	fromDocs := fs.Bool("docs", false, "extract from all indexed documents")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	switch {
	case *fromDocs:
		if err := e.app.ExtractFromDocuments(ctx, nil); err != nil {
			return err
		}
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		if err := e.app.ExtractTimeline(ctx, string(data)); err != nil {
			return err
		}
	case *text != "":
		if err := e.app.ExtractTimeline(ctx, *text); err != nil {
			return err
		}
	default:
		e.out.Error("usage: immodoc extract -text <text> | -file <path> | -docs")
		return errUsage
	}
	return e.printTimeline()
}

func (e *environment) cmdTimeline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	category := fs.String("category", "", "filter by category (meeting, payment, deadline, info)")
	query := fs.String("q", "", "filter by text")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	e.app.SetTimelineFilters(timeline.Filter{
		Category: timeline.Category(strings.ToLower(*category)),
		Text:     *query,
	})
	return e.printTimeline()
}

func (e *environment) printTimeline() error {
	view := e.app.Timeline()
	if view.Total == 0 {
		e.out.Dim("No timeline entries. Run extract first.")
		return nil
	}
	e.out.Header(fmt.Sprintf("Timeline (%d of %d entries)", view.Shown, view.Total))
	for _, group := range view.Groups {
		label := group.DateISO
		if label == timeline.UnknownDateBucket {
			label = "no date"
		} else if parsed, err := time.Parse("2006-01-02", label); err == nil {
			label = parsed.Format("Mon, 02 Jan 2006")
		}
		e.out.Println("\n%s", e.out.Bold(label))
		for _, item := range group.Items {
			line := "  "
			if item.Time24h != "" {
				line += item.Time24h + "  "
			}
			line += item.Title
			if item.AmountEUR != nil {
				line += fmt.Sprintf("  %.2f EUR", *item.AmountEUR)
			}
			e.out.Println("%s", line)
			if item.Description != "" {
				e.out.Dim("       %s", item.Description)
			}
		}
	}
	return nil
}

func (e *environment) cmdSetURL(args []string) error {
	if len(args) != 1 {
		e.out.Error("usage: immodoc set-url <base-url>")
		return errUsage
	}
	if err := e.store.SetBaseURL(args[0]); err != nil {
		return err
	}
	e.tc.SetBaseURL(args[0])
	e.out.Success("API base URL set to %s", e.tc.BaseURL())
	return nil
}
