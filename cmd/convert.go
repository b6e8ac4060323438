package cmd

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/boxedit/api/schemas"
	"github.com/xkilldash9x/boxedit/internal/editbox"
)

type conversion struct {
	Percent schemas.PercentBounds `json:"percent"`
	CSS     schemas.PercentCSS    `json:"css"`
}

func newConvertCmd(a *app) *cobra.Command {
	var parent, rect string
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Print the percentage styles a commit would write for a rect",
		Example: `  boxedit convert --parent 0,0,1000,500 --rect 400,200,200,100
  # {"percent": {...}, "css": {"left": "50.0%", "top": "50.0%", "width": "20.0%", "height": "20.0%"}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseRect(parent)
			if err != nil {
				return fmt.Errorf("--parent: %w", err)
			}
			r, err := parseRect(rect)
			if err != nil {
				return fmt.Errorf("--rect: %w", err)
			}
			pb, err := editbox.ToPercent(r, p)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(conversion{Percent: pb, CSS: pb.CSS(a.cfg.Editor().PercentPrecision)}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	convertCmd.Flags().StringVar(&parent, "parent", "", "parent rect as left,top,width,height")
	convertCmd.Flags().StringVar(&rect, "rect", "", "element rect as left,top,width,height")
	_ = convertCmd.MarkFlagRequired("parent")
	_ = convertCmd.MarkFlagRequired("rect")
	return convertCmd
}

// parseRect reads "left,top,width,height".
func parseRect(s string) (schemas.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return schemas.Rect{}, fmt.Errorf("want left,top,width,height, got %q", s)
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return schemas.Rect{}, fmt.Errorf("invalid number %q", part)
		}
		v[i] = f
	}
	return schemas.Rect{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}, nil
}
