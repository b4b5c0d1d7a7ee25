package punch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/davecgh/go-spew/spew"
	"github.com/gen2brain/beeep"
	"github.com/kballard/go-shellquote"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/punchclock/punch/engine"
	"github.com/punchclock/punch/internal/config"
	"github.com/punchclock/punch/internal/models"
	"github.com/punchclock/punch/internal/timeutil"
	"github.com/punchclock/punch/jira"
	"github.com/punchclock/punch/keyring"
	"github.com/punchclock/punch/menu"
	"github.com/punchclock/punch/store"
)

const envNoColor = "NO_COLOR"

// commentLimiter debounces the comment-edit intent at the user-input
// boundary so a double-triggered post opens the flow once.
var commentLimiter = rate.NewLimiter(rate.Every(1*time.Second), 1)

// firstNonEmptyString returns its first non-empty argument, or "" if all
// arguments are empty.
func firstNonEmptyString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}

	return ""
}

func beforeAction(ctx *cli.Context) error {
	if ctx.Bool("no-color") || os.Getenv(envNoColor) != "" {
		disableStyling()
	}

	config.InitializePaths()

	initLogger()

	return nil
}

func loadConfig() (*config.Config, error) {
	return config.New(config.WithViperConfig(config.ConfigFilePath()))
}

func openStore() (*store.Client, error) {
	return store.NewClient(config.DBFilePath())
}

// newGateway wires the gateway to the file-backed keyring and routes its
// session events to the terminal.
func newGateway(cfg *config.Config) (*jira.Gateway, error) {
	ks, err := keyring.NewFileStore(config.CredsFilePath())
	if err != nil {
		return nil, err
	}

	gw := jira.NewGateway(jira.GatewayConfig{
		Keyring: ks,
		Service: config.ServiceName,
		Timeout: cfg.Settings.RequestTimeout,
		Logger:  slog.Default(),
		Events: func(ev jira.Event) {
			if ev == jira.EventSessionInvalid {
				pterm.Warning.Println(
					"Session is not valid. Run 'punch login' to sign in.",
				)
			}
		},
	})

	return gw, nil
}

func findTimer(db *store.Client, id string) (*models.Timer, error) {
	timers, err := db.Timers()
	if err != nil {
		return nil, err
	}

	for _, t := range timers {
		if t.ID == id {
			return t, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", store.ErrTimerNotFound, id)
}

func printTimers(timers []*models.Timer) {
	now := time.Now()

	rows := [][]string{
		{"ID", "ELAPSED", "TICKET", "SUMMARY", "STATE"},
	}

	for _, t := range timers {
		state := "running"
		if t.Paused {
			state = "paused"
		}

		seconds := timeutil.ElapsedSeconds(
			t.StartTime,
			t.PreviouslyElapsed,
			t.Paused,
			now,
		)

		rows = append(rows, []string{
			t.ID,
			timeutil.Stopwatch(seconds),
			t.Key,
			t.Summary,
			state,
		})
	}

	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// notifier returns the desktop notification hook, or nil when disabled.
func notifier(cfg *config.Config) func(title, msg string) {
	if !cfg.Settings.Notify {
		return nil
	}

	return func(title, msg string) {
		err := beeep.Notify(title, msg, "")
		if err != nil {
			slog.Error("unable to display notification", "error", err)
		}
	}
}

// runPostCmd executes the configured post-hook command.
func runPostCmd(postCmd string) error {
	if postCmd == "" {
		return nil
	}

	cmdSlice, err := shellquote.Split(postCmd)
	if err != nil {
		return fmt.Errorf("unable to parse settings.cmd option: %w", err)
	}

	if len(cmdSlice) == 0 {
		return nil
	}

	cmd := exec.Command(cmdSlice[0], cmdSlice[1:]...)

	return cmd.Run()
}

// loginAction handles the login command: prompt for credentials, derive the
// session token, probe the remote service, and persist on success.
func loginAction(ctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	host := firstNonEmptyString(ctx.String("host"), cfg.Jira.Host)

	var (
		username string
		password string
	)

	fields := []huh.Field{
		huh.NewInput().
			Title("Username").
			Value(&username),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password),
	}

	if host == "" {
		fields = append([]huh.Field{
			huh.NewInput().
				Title("Issue tracker host").
				Placeholder("mycompany.atlassian.net").
				Value(&host),
		}, fields...)
	}

	form := huh.NewForm(huh.NewGroup(fields...))

	if err := form.Run(); err != nil {
		return err
	}

	if host == "" {
		return errHostRequired
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	if err := gw.Login(ctx.Context, username, password, host); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	pterm.Success.Printfln("Logged in to %s as %s", host, username)

	return nil
}

// addAction starts a new timer for a ticket, fetching the ticket summary
// from the remote service when a session is available.
func addAction(ctx *cli.Context) error {
	key := ctx.Args().First()
	if key == "" {
		return errTicketKeyRequired
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	summary := ctx.String("summary")

	if summary == "" {
		gw, err := newGateway(cfg)
		if err == nil && gw.RestoreSession(ctx.Context) == nil {
			summary, err = gw.IssueSummary(ctx.Context, key)
			if err != nil {
				slog.Warn("fetching ticket summary failed",
					"key", key,
					"error", err,
				)
			}
		}
	}

	t, err := db.Add(key, summary)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Started timer %s for %s", t.ID, t.Key)

	return nil
}

func listAction(ctx *cli.Context) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	timers, err := db.Timers()
	if err != nil {
		return err
	}

	if len(timers) == 0 {
		pterm.Info.Println("No timers. Start one with 'punch add <TICKET-KEY>'")
		return nil
	}

	printTimers(timers)

	return nil
}

func startAction(ctx *cli.Context) error {
	return setPausedAction(ctx, false)
}

func pauseAction(ctx *cli.Context) error {
	return setPausedAction(ctx, true)
}

func setPausedAction(ctx *cli.Context, paused bool) error {
	id := ctx.Args().First()
	if id == "" {
		return errTimerIDRequired
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	timer, err := findTimer(db, id)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{Store: db, Logger: slog.Default()})

	if paused {
		eng.Pause(id, true)
		pterm.Success.Printfln("Paused timer %s (%s)", id, timer.Key)
	} else {
		eng.Start(id)
		pterm.Success.Printfln("Resumed timer %s (%s)", id, timer.Key)
	}

	return nil
}

// editAction replaces a timer's elapsed time with a manually entered
// duration.
func editAction(ctx *cli.Context) error {
	id := ctx.Args().Get(0)
	if id == "" {
		return errTimerIDRequired
	}

	durationText := ctx.Args().Get(1)
	if durationText == "" {
		return errDurationRequired
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := findTimer(db, id); err != nil {
		return err
	}

	eng := engine.New(engine.Config{Store: db, Logger: slog.Default()})

	eng.BeginEditTime(id)

	if err := eng.CommitEditTime(id, durationText); err != nil {
		if errors.Is(err, engine.ErrInvalidDuration) {
			pterm.Warning.Printfln(
				"%q is not a valid duration; edit abandoned",
				durationText,
			)

			return nil
		}

		return err
	}

	pterm.Success.Printfln("Set timer %s to %s", id, durationText)

	return nil
}

// postAction submits a timer's elapsed time as a work log, with the
// comment flow in between unless disabled.
func postAction(ctx *cli.Context) error {
	if !commentLimiter.Allow() {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	if err := gw.RestoreSession(ctx.Context); err != nil {
		return fmt.Errorf("not logged in: %w", err)
	}

	id := ctx.Args().First()
	if id == "" {
		return errTimerIDRequired
	}

	timer, err := findTimer(db, id)
	if err != nil {
		return err
	}

	commentEnabled := cfg.Settings.CommentBlock && !ctx.Bool("no-comment")

	eng := engine.New(engine.Config{
		Store:        db,
		Gateway:      gw,
		CommentBlock: commentEnabled,
		Notify:       notifier(cfg),
		Logger:       slog.Default(),
	})

	// mirror the duration actually submitted, one-minute floor included
	humanTime := timeutil.Human(timeutil.WorklogSeconds(
		timeutil.ElapsedSeconds(
			timer.StartTime,
			timer.PreviouslyElapsed,
			timer.Paused,
			time.Now(),
		),
	))

	if err := eng.BeginEditComment(ctx.Context, timer); err != nil {
		return err
	}

	if eng.EditingCommentID() == timer.ID {
		comment := ctx.String("comment")

		if comment == "" {
			prompt := fmt.Sprintf(
				"What were you working on for %s?",
				eng.PostingHumanTime(),
			)

			form := huh.NewForm(huh.NewGroup(
				huh.NewText().Title(prompt).Value(&comment),
			))

			if err := form.Run(); err != nil {
				// user backed out; the timer resumes running
				eng.CancelEditComment(timer.ID)
				return nil
			}
		}

		if err := eng.CommitComment(ctx.Context, timer, comment); err != nil {
			return err
		}
	}

	pterm.Success.Printfln("Posted %s to %s", humanTime, timer.Key)

	if err := runPostCmd(cfg.Settings.PostCmd); err != nil {
		slog.Error("post command failed", "error", err)
	}

	return nil
}

func deleteAction(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return errTimerIDRequired
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(engine.Config{Store: db, Logger: slog.Default()})

	if err := eng.Delete(id); err != nil {
		return err
	}

	pterm.Success.Printfln("Deleted timer %s", id)

	return nil
}

// runAction runs the tracker in the foreground: the engine tick publishes
// the menubar summary, and store changes re-render the timer table.
func runAction(ctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	// best-effort silent restore; posting requires it, display does not
	_ = gw.RestoreSession(ctx.Context)

	var lastTitle string

	eng := engine.New(engine.Config{
		Store:             db,
		Gateway:           gw,
		CommentBlock:      cfg.Settings.CommentBlock,
		MenubarHideTiming: cfg.Menubar.HideTiming,
		MenubarHideKey:    cfg.Menubar.HideKey,
		Notify:            notifier(cfg),
		Logger:            slog.Default(),
		Publish: func(snap engine.Snapshot) {
			if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
				slog.Debug(spew.Sdump(snap))
			}

			if snap.MenubarTitle != lastTitle {
				lastTitle = snap.MenubarTitle
				pterm.Printfln("%s", pterm.Bold.Sprint(snap.MenubarTitle))
			}
		},
	})

	changes := db.Subscribe()

	go func() {
		for range changes {
			timers, err := db.Timers()
			if err != nil {
				slog.Error("reading timer list failed", "error", err)
				continue
			}

			printTimers(timers)
		}
	}()

	eng.Run()

	pterm.Info.Println("Tracking timers. Press Ctrl-C to quit.")

	sigCtx, cancel := signal.NotifyContext(
		ctx.Context,
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	<-sigCtx.Done()

	eng.Stop()

	return db.Close()
}

// menuAction prints the action menu the view layer would render for a
// timer, including the remotely fetched status transitions.
func menuAction(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return errTimerIDRequired
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	timer, err := findTimer(db, id)
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	if err := gw.RestoreSession(ctx.Context); err != nil {
		return fmt.Errorf("not logged in: %w", err)
	}

	var spinner *pterm.SpinnerPrinter

	builder := menu.NewBuilder(gw, slog.Default(), func(loading bool) {
		if loading {
			spinner, _ = pterm.DefaultSpinner.Start("Loading transitions...")
		} else if spinner != nil {
			_ = spinner.Stop()
		}
	})

	seconds := timeutil.ElapsedSeconds(
		timer.StartTime,
		timer.PreviouslyElapsed,
		timer.Paused,
		time.Now(),
	)

	items := builder.Build(ctx.Context, timer, seconds, false)

	printMenu(items, 0)

	return nil
}

func printMenu(items []menu.Item, depth int) {
	indent := strings.Repeat("  ", depth)

	for _, item := range items {
		label := item.Label
		if !item.Enabled {
			label += " (disabled)"
		}

		pterm.Printfln("%s- %s", indent, label)

		if len(item.Submenu) > 0 {
			printMenu(item.Submenu, depth+1)
		}
	}
}

// transitionAction moves a timer's ticket to a new status. Without a
// transition id it lists the transitions currently allowed for the ticket.
func transitionAction(ctx *cli.Context) error {
	id := ctx.Args().Get(0)
	if id == "" {
		return errTimerIDRequired
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	timer, err := findTimer(db, id)
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	if err := gw.RestoreSession(ctx.Context); err != nil {
		return fmt.Errorf("not logged in: %w", err)
	}

	transitionID := ctx.Args().Get(1)

	if transitionID == "" {
		transitions, err := gw.Transitions(ctx.Context, timer.Key)
		if err != nil {
			return err
		}

		if len(transitions) == 0 {
			pterm.Info.Printfln("No transitions available for %s", timer.Key)
			return nil
		}

		rows := [][]string{{"ID", "STATUS"}}

		for _, tr := range transitions {
			rows = append(rows, []string{tr.ID, tr.Name})
		}

		_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

		return nil
	}

	if err := gw.DoTransition(ctx.Context, timer.Key, transitionID); err != nil {
		return err
	}

	pterm.Success.Printfln("Moved %s to its new status", timer.Key)

	return nil
}

func whoamiAction(ctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	if err := gw.RestoreSession(ctx.Context); err != nil {
		return fmt.Errorf("not logged in: %w", err)
	}

	user, err := gw.Myself(ctx.Context)
	if err != nil {
		return err
	}

	pterm.Printfln("%s (%s)", user.DisplayName, firstNonEmptyString(
		user.EmailAddress,
		user.Name,
	))

	return nil
}

// editConfigAction opens the config file in the user's editor.
func editConfigAction(_ *cli.Context) error {
	editor := firstNonEmptyString(
		os.Getenv("VISUAL"),
		os.Getenv("EDITOR"),
		"nano",
	)

	cmd := exec.Command(editor, config.ConfigFilePath())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
