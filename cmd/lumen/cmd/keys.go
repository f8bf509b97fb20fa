package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/lumen/internal/core/auth"
	"github.com/solatis/lumen/internal/core/config"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage plugin API keys",
}

// newKeyAuthenticator opens the database and wraps it with the HMAC secrets
// from the environment. The caller closes the returned database.
func newKeyAuthenticator(cmd *cobra.Command) (*auth.Authenticator, func(), error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil, fmt.Errorf("no HMAC secrets configured (set LUMEN_HMAC_SECRET environment variable)")
	}
	database, queries, err := openDatabase(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if err := requireMigrated(cmd.Context(), database); err != nil {
		database.Close()
		return nil, nil, err
	}
	return auth.NewAuthenticator(secrets, queries), func() { database.Close() }, nil
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a plugin key for an extension",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		extension, _ := cmd.Flags().GetString("extension")
		name, _ := cmd.Flags().GetString("name")
		secretID, _ := cmd.Flags().GetString("secret-id")

		authenticator, closeDB, err := newKeyAuthenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		if secretID == "" {
			ids := authenticator.SecretIDs()
			if len(ids) > 1 {
				return fmt.Errorf("several HMAC secrets configured, choose one with --secret-id")
			}
			secretID = ids[0]
		}

		key, info, err := authenticator.Issue(cmd.Context(), extension, name, secretID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "key id:    %s\n", info.ID)
		fmt.Fprintf(out, "extension: %s\n", info.ExtensionID)
		fmt.Fprintf(out, "plugin key (shown once): %s\n", key)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plugin keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, closeDB, err := newKeyAuthenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		keys, err := authenticator.Keys(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEXTENSION\tNAME\tLAST USED\tSTATE")
		for _, k := range keys {
			lastUsed := "never"
			if k.LastUsedAt.Valid {
				lastUsed = k.LastUsedAt.Time.Format("2006-01-02 15:04")
			}
			state := "active"
			if k.Revoked() {
				state = "revoked"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.ExtensionID, k.Name, lastUsed, state)
		}
		return w.Flush()
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke a plugin key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, closeDB, err := newKeyAuthenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := authenticator.Revoke(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)

	keysCreateCmd.Flags().String("extension", "", "extension id the key publishes as")
	keysCreateCmd.Flags().String("name", "", "label for the key")
	keysCreateCmd.Flags().String("secret-id", "", "HMAC secret to sign with (required when several are configured)")
	_ = keysCreateCmd.MarkFlagRequired("extension")
}
