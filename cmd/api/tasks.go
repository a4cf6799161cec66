package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				pool := rt.pg.PoolHandle()
				if pool == nil {
					return errors.New("POSTGRES_DSN is required to run migrations")
				}
				return persistence.RunMigrations(ctx, pool, rt.cfg.Postgres.MigrationsDir, rt.logger)
			})
		},
	}
}

func newNormalizeStatusesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-statuses",
		Short: "Rewrite legacy ticket statuses to canonical values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				report, err := rt.maintenance.NormalizeStatuses(ctx)
				if err != nil {
					return err
				}
				for _, u := range report.Unresolved {
					rt.logger.Warn("unresolved status",
						zap.Int64("ticket_id", u.TicketID),
						zap.String("field", string(u.Field)),
						zap.String("value", u.Value))
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newBackfillCodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-codes",
		Short: "Assign codes to customers that have none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				assigned, err := rt.maintenance.BackfillCustomerCodes(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"assigned": assigned})
			})
		},
	}
}

func newImportCustomersCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import-customers",
		Short: "Merge customers from a JSON export",
		Long:  `Reads either a JSON array of customers or an object with a "customers" array and merges them by email, phone or name.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			req, err := decodeCustomerExport(raw)
			if err != nil {
				return err
			}
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				stats, err := rt.customers.Sync(ctx, req.Inputs())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the JSON export")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCreateUserCommand() *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an operator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				user, err := rt.auth.CreateUser(ctx, username, password, role)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewUserResponse(user))
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "initial password")
	cmd.Flags().StringVar(&role, "role", domain.RoleUser, "user or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func withRuntime(cmd *cobra.Command, migrate bool, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, migrate)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

func decodeCustomerExport(raw []byte) (dto.CustomerSyncRequest, error) {
	var req dto.CustomerSyncRequest
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Customers); err != nil {
			return req, fmt.Errorf("decode customers: %w", err)
		}
		return req, nil
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, fmt.Errorf("decode customers: %w", err)
	}
	return req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
