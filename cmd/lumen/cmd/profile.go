package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/lumen/internal/core/db"
	"github.com/solatis/lumen/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage stored profiles",
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate a JSON or YAML profile file and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readProfileFile(args[0])
		if err != nil {
			return err
		}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			doc.Name = name
		}

		ctx := cmd.Context()
		database, queries, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewProfileStore(queries).Save(ctx, doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported profile %q (%d elements)\n", doc.Name, len(doc.Elements))
		return nil
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Write a stored profile as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")

		format := profile.FormatFromPath(output)
		if formatName != "" {
			var err error
			if format, err = profile.ParseFormat(formatName); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		database, queries, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		doc, err := db.NewProfileStore(queries).Get(ctx, args[0])
		if err != nil {
			return err
		}
		data, err := profile.Encode(doc, format)
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

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, queries, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		profiles, err := db.NewProfileStore(queries).List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tELEMENTS\tUPDATED")
		for _, p := range profiles {
			fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, p.ElementCount, p.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, queries, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewProfileStore(queries).Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted profile %q\n", args[0])
		return nil
	},
}

var profileValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a profile file without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readProfileFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q is valid (%d elements)\n", doc.Name, len(doc.Elements))
		return nil
	},
}

// readProfileFile decodes a profile file, picking the format by extension.
func readProfileFile(path string) (*profile.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := profile.Decode(data, profile.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileImportCmd, profileExportCmd, profileListCmd, profileDeleteCmd, profileValidateCmd)

	profileImportCmd.Flags().String("name", "", "store under this name instead of the document's")
	profileExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	profileExportCmd.Flags().String("format", "", "output format (json, yaml), default from the output extension")
}
