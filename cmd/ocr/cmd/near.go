package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/ocr-worker/internal/storage"
)

func newNearCommand(o *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "near PAGE_ID X Y",
		Short: "List the stored words closest to a point on a page",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := parseCoord("X", args[1])
			if err != nil {
				return err
			}
			y, err := parseCoord("Y", args[2])
			if err != nil {
				return err
			}

			index, err := storage.NewQdrantClient(o.cfg.QdrantURL, o.cfg.QdrantCollection)
			if err != nil {
				return err
			}
			defer index.Close()

			hits, err := index.NearestWords(cmd.Context(), args[0], x, y, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DISTANCE\tLINE\tX\tY\tW\tH\tTEXT")
			for _, h := range hits {
				fmt.Fprintf(tw, "%.1f\t%d\t%d\t%d\t%d\t%d\t%s\n",
					h.Distance, h.Line, h.Word.X, h.Word.Y, h.Word.W, h.Word.H, h.Word.Text)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of words")
	return cmd
}

func parseCoord(name, s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return float32(f), nil
}
