package create

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/drawpad/internal/buildinfo"
	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/drawpad"
	"github.com/tphakala/drawpad/internal/storeclient"
)

// Command creates a new cobra.Command that creates an empty drawing.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var templatePath string

	cmd := &cobra.Command{
		Use:   "new <dir> <name>",
		Short: "Create a new drawing without overwriting an existing one",
		Long:  "Create <dir>/<name>, appending .excalidraw when the name lacks it. Fails if the drawing already exists.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var template *drawing.Document
			if templatePath != "" {
				data, err := os.ReadFile(templatePath)
				if err != nil {
					return fmt.Errorf("failed to read template: %w", err)
				}
				if template, err = drawing.Decode(data); err != nil {
					return fmt.Errorf("invalid template %s: %w", templatePath, err)
				}
			}

			client, err := storeclient.FromSettings(&settings.Client, "drawpad/"+info.GetVersion())
			if err != nil {
				return err
			}

			path := drawpad.DrawingPath(args[0], args[1])
			if err := client.Create(cmd.Context(), path, template); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Local drawing file used as the initial content")
	return cmd
}
