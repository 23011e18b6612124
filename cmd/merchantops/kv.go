package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/config"
)

const adminCommandTimeout = 30 * time.Second

var kvCmd = &cobra.Command{
	Use:         "kv",
	Short:       "Inspect and switch merchant storage schemes.",
	Annotations: structuredLog(),
}

var kvEnableCmd = &cobra.Command{
	Use:   "enable <merchant_id>",
	Short: "Move a merchant to the KV-first storage scheme.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin("", func(ctx context.Context, svc *admin.Service) error {
			resp, err := svc.ToggleKV(ctx, args[0], true)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		})
	},
}

var kvDisableCmd = &cobra.Command{
	Use:   "disable <merchant_id>",
	Short: "Move a merchant back to the Postgres-only storage scheme.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin("", func(ctx context.Context, svc *admin.Service) error {
			resp, err := svc.ToggleKV(ctx, args[0], false)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		})
	},
}

var kvStatusCmd = &cobra.Command{
	Use:   "status <merchant_id>",
	Short: "Show whether a merchant uses the KV-first storage scheme.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdmin("", func(ctx context.Context, svc *admin.Service) error {
			resp, err := svc.KVStatus(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		})
	},
}

var (
	kvAllEnable  bool
	kvAllDisable bool
)

var kvAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Switch the storage scheme of every merchant.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enable, err := kvAllTarget(kvAllEnable, kvAllDisable)
		if err != nil {
			return err
		}
		return withAdmin(lockScopeKVAll, func(ctx context.Context, svc *admin.Service) error {
			resp, err := svc.ToggleKVForAll(ctx, enable)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		})
	},
}

func init() {
	kvAllCmd.Flags().BoolVar(&kvAllEnable, "enable", false, "enable KV for every merchant")
	kvAllCmd.Flags().BoolVar(&kvAllDisable, "disable", false, "disable KV for every merchant")
	kvCmd.AddCommand(kvEnableCmd, kvDisableCmd, kvStatusCmd, kvAllCmd)
}

func kvAllTarget(enable, disable bool) (bool, error) {
	switch {
	case enable && disable:
		return false, errors.New("--enable and --disable are mutually exclusive")
	case !enable && !disable:
		return false, errors.New("one of --enable or --disable is required")
	default:
		return enable, nil
	}
}

// withAdmin runs fn against an admin service backed by the configured
// database. A non-empty lockScope makes the run exclusive across processes.
func withAdmin(lockScope string, fn func(ctx context.Context, svc *admin.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), adminCommandTimeout)
	defer cancel()

	rt, err := openRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, err := rt.adminService()
	if err != nil {
		return err
	}
	if lockScope == "" {
		return fn(ctx, svc)
	}
	return rt.exclusive(ctx, lockScope, func(ctx context.Context) error {
		return fn(ctx, svc)
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
