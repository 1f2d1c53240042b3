package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/lms-api/internal/dto"
)

var migrateCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"up-to":     true,
	"down":      true,
	"down-to":   true,
	"redo":      true,
	"reset":     true,
	"status":    true,
	"version":   true,
}

// runtime holds the operations commands run against. connect populates the
// rest lazily so --help works without a database.
type runtime struct {
	connect func(ctx context.Context) error
	migrate func(ctx context.Context, command string, args ...string) error
	merge   func(ctx context.Context, oldID, newID string) (*dto.MergeResult, error)
	remove  func(ctx context.Context, id string) (*dto.DeleteResult, error)
	token   func(ctx context.Context, id string) (string, time.Time, error)
	out     io.Writer
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "lmsctl",
		Short:         "Administrative tasks for the LMS API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if rt.connect == nil {
				return nil
			}
			return rt.connect(cmd.Context())
		},
	}
	root.SetOut(rt.out)
	root.AddCommand(newMigrateCmd(rt), newMergeUsersCmd(rt), newDeleteUserCmd(rt), newIssueTokenCmd(rt))
	return root
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run database migrations (up, down, status, up-to VERSION, ...)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("migrate requires a command")
			}
			if !migrateCommands[args[0]] {
				return fmt.Errorf("unknown migrate command %q", args[0])
			}
			if (args[0] == "up-to" || args[0] == "down-to") && len(args) < 2 {
				return fmt.Errorf("%s requires a VERSION", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.migrate(cmd.Context(), args[0], args[1:]...)
		},
	}
}

func newMergeUsersCmd(rt *runtime) *cobra.Command {
	var oldID, newID string
	cmd := &cobra.Command{
		Use:   "merge-users",
		Short: "Fold an old account into a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rt.merge(cmd.Context(), oldID, newID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&oldID, "old", "", "id of the account to remove")
	cmd.Flags().StringVar(&newID, "new", "", "id of the account that survives")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func newDeleteUserCmd(rt *runtime) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete a user and everything that depends on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rt.remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// newIssueTokenCmd signs a session token for an existing user, for local
// development against a running API.
func newIssueTokenCmd(rt *runtime) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, expires, err := rt.token(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"token":     token,
				"expiresAt": expires.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&id, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
