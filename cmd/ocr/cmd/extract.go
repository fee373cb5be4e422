package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newTextCommand(o *rootOptions) *cobra.Command {
	var opts []string

	cmd := &cobra.Command{
		Use:   "text IMAGE",
		Short: "Print the plain text of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := o.extractor()
			if err != nil {
				return err
			}

			text, err := ex.ExtractPlainText(cmd.Context(), args[0], o.engineOptions(opts))
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&opts, "option", "o", nil, `engine flag with its value, e.g. "-l eng" (repeatable)`)
	return cmd
}

func newLayoutCommand(o *rootOptions) *cobra.Command {
	var (
		opts   []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "layout IMAGE",
		Short: "Rebuild the lines and words of an image",
		Long: `Runs the engine in TSV mode and groups its word boxes into lines and words.
--format json prints [{"line":y,"text":[{"text","x","y","w","h","l"}]}];
--format text prints one line per row with words separated by a space.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("unsupported format %q (use json or text)", format)
			}

			ex, err := o.extractor()
			if err != nil {
				return err
			}

			page, err := ex.ExtractStructuredText(cmd.Context(), args[0], o.engineOptions(opts))
			if err != nil {
				return err
			}

			if format == "text" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), page.Text())
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		},
	}

	cmd.Flags().StringArrayVarP(&opts, "option", "o", nil, `engine flag with its value, e.g. "-l eng" (repeatable)`)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or text")
	return cmd
}
