package edit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/drawpad/internal/buildinfo"
	"github.com/tphakala/drawpad/internal/canvas"
	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/drawpad"
	"github.com/tphakala/drawpad/internal/logger"
	"github.com/tphakala/drawpad/internal/notify"
	"github.com/tphakala/drawpad/internal/storeclient"
)

// ctrlS is what a terminal in raw-ish mode delivers for Ctrl+S
const ctrlS = "\x13"

// Command creates a new cobra.Command that edits a stored drawing through a
// local working file, autosaving changes back to the store.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var workPath string

	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Edit a drawing through a local working file with autosave",
		Long: `Download the drawing to a working file and watch it. Changes are saved
back after the debounce delay. Type "s" (or press Ctrl+S) and Enter to save
immediately, "q" to save pending changes and quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workPath == "" {
				workPath = filepath.Base(args[0])
			}
			return run(cmd.Context(), settings, info, args[0], workPath, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&workPath, "work", "w", "", "Working file (default: drawing name in the current directory)")
	cmd.Flags().Duration("debounce", conf.DefaultDebounceDelay, "Autosave delay after the last change")
	cmd.Flags().StringSlice("notify", nil, "Shoutrrr URL to alert when a save fails (repeatable)")
	if err := viper.BindPFlag("client.debouncedelay", cmd.Flags().Lookup("debounce")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("client.notifyurls", cmd.Flags().Lookup("notify")); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context, path, workPath string, in io.Reader, out io.Writer) error {
	log := logger.Global().Module("edit")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := storeclient.FromSettings(&settings.Client, "drawpad/"+info.GetVersion())
	if err != nil {
		return err
	}

	var notifier *notify.Notifier
	if len(settings.Client.NotifyURLs) > 0 {
		notifier, err = notify.FromURLs(settings.Client.NotifyURLs, settings.Client.Timeout)
		if err != nil {
			return err
		}
		// Deferred before the coordinator's Close so queued alerts flush last
		defer notifier.Close()
	}

	coord := drawpad.New(client,
		drawpad.WithDebounce(settings.Client.DebounceDelay),
		drawpad.WithSavedDisplay(settings.Client.SavedDisplay))
	defer func() { _ = coord.Close() }()

	coord.OnStatus(func(s drawpad.Status) {
		if s.Error != "" {
			_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", s.State, s.Path, s.Error)
			return
		}
		_, _ = fmt.Fprintf(out, "[%s] %s\n", s.State, s.Path)
	})
	if notifier != nil {
		coord.OnStatus(notifier.Listener())
	}

	doc, err := coord.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	fc, err := canvas.NewFile(workPath)
	if err != nil {
		return err
	}
	defer func() { _ = fc.Close() }()

	if err := fc.Init(doc); err != nil {
		return err
	}
	coord.Attach(fc)
	if err := fc.Watch(ctx, coord.OnCanvasChange); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Editing %s in %s\n", path, fc.Path())

	commands := readCommands(in)
	for {
		select {
		case <-ctx.Done():
			return finish(context.WithoutCancel(ctx), coord, log)
		case line, ok := <-commands:
			if !ok {
				return finish(ctx, coord, log)
			}
			switch strings.TrimSpace(line) {
			case "q", "quit":
				return finish(ctx, coord, log)
			default:
				if ev := keyEvent(line); ev != nil {
					coord.HandleKey(ev)
				}
			}
		}
	}
}

// keyEvent maps an input line to the key event it stands for, or nil
func keyEvent(line string) *drawpad.KeyEvent {
	switch strings.TrimSpace(line) {
	case "s", "save", ctrlS:
		return &drawpad.KeyEvent{Key: "s", Ctrl: true}
	default:
		return nil
	}
}

// readCommands delivers input lines until EOF. The reader goroutine ends
// with the process when stdin never closes.
func readCommands(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

// finish waits for a running save and writes unsaved changes before exiting
func finish(ctx context.Context, coord *drawpad.Coordinator, log logger.Logger) error {
	if st := coord.Status().State; st == drawpad.StateDirty || st == drawpad.StateSaving {
		log.Info("Saving pending changes before exit", logger.String("path", coord.Path()))
	}
	return coord.Flush(ctx)
}
