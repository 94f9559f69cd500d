package ls

import (
	"fmt"
	"io"
	"strings"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/cobra"

	"github.com/tphakala/drawpad/internal/buildinfo"
	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/drawpad"
	"github.com/tphakala/drawpad/internal/storeclient"
)

const timeLayout = "2006-01-02 15:04"

// Command creates a new cobra.Command that lists a store directory.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List drawings and folders in a store directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}

			client, err := storeclient.FromSettings(&settings.Client, "drawpad/"+info.GetVersion())
			if err != nil {
				return err
			}
			entries, err := client.List(cmd.Context(), dir, filter)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), dir, entries)
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show names containing this text (case-insensitive)")
	return cmd
}

// render prints a breadcrumb header followed by one line per entry
func render(w io.Writer, dir string, entries []drawing.DirectoryEntry) error {
	crumbs := drawpad.Breadcrumbs(dir)
	labels := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		labels = append(labels, c.Label)
	}
	if _, err := fmt.Fprintln(w, strings.Join(labels, " / ")); err != nil {
		return err
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "(empty)")
		return err
	}

	for _, e := range entries {
		size, name := bytes.Format(e.Size), e.Name
		if e.IsDir {
			size, name = "-", name+"/"
		}
		if _, err := fmt.Fprintf(w, "%-8s  %s  %s\n", size, e.MTime.Local().Format(timeLayout), name); err != nil {
			return err
		}
	}
	return nil
}
