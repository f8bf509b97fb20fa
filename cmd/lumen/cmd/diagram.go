package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/lumen/internal/core/db"
	"github.com/solatis/lumen/internal/diagram"
	"github.com/solatis/lumen/internal/profile"
	"github.com/solatis/lumen/internal/types"
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [profile-name]",
	Short: "Render the condition trees of a profile with graphviz",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		output, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")
		elementID, _ := cmd.Flags().GetString("element")

		format, err := diagram.ParseFormat(formatName)
		if err != nil {
			return err
		}

		var doc *profile.Document
		switch {
		case file != "" && len(args) == 0:
			if doc, err = readProfileFile(file); err != nil {
				return err
			}
		case file == "" && len(args) == 1:
			ctx := cmd.Context()
			database, queries, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()
			if doc, err = db.NewProfileStore(queries).Get(ctx, args[0]); err != nil {
				return err
			}
		default:
			return fmt.Errorf("give either a stored profile name or --file")
		}

		model := diagram.FromProfile(doc, nil)
		if elementID != "" {
			el, ok := doc.Element(types.ElementID(elementID))
			if !ok {
				return fmt.Errorf("%w: %s", types.ErrElementNotFound, elementID)
			}
			if el.Condition.Condition == nil {
				return fmt.Errorf("element %s has no condition tree", elementID)
			}
			model = diagram.FromTree(el.Name, *el.Condition.Condition)
		}

		data, err := diagram.Render(cmd.Context(), model, format)
		if err != nil {
			return err
		}
		if output == "" || output == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return os.WriteFile(output, data, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(diagramCmd)
	diagramCmd.Flags().String("file", "", "render a profile file instead of a stored profile")
	diagramCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	diagramCmd.Flags().String("format", "svg", "output format (png, svg, dot)")
	diagramCmd.Flags().String("element", "", "render only this element's static condition tree")
}
