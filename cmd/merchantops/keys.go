package main

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/config"
	"github.com/merchantops/merchantops/internal/keymanager"
)

const keyTransferTimeout = 10 * time.Minute

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage master and merchant data keys.",
}

var keysGenerateMasterKeyCmd = &cobra.Command{
	Use:   "generate-master-key",
	Short: "Print a new random master key for MASTER_ENC_KEY.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keymanager.GenerateKey()
		if err != nil {
			return err
		}
		cmd.Println(hex.EncodeToString(key))
		return nil
	},
}

var (
	keysTransferFrom string
	keysTransferTo   string
)

var keysTransferCmd = &cobra.Command{
	Use:         "transfer",
	Short:       "Re-wrap every merchant data key from one master key to another.",
	Args:        cobra.NoArgs,
	Annotations: structuredLog(),
	RunE: func(cmd *cobra.Command, args []string) error {
		from := strings.ToLower(strings.TrimSpace(keysTransferFrom))
		to := strings.ToLower(strings.TrimSpace(keysTransferTo))
		if from == "" || to == "" {
			return errors.New("--from and --to are required")
		}
		if from == to {
			return errors.New("--from and --to must differ")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), keyTransferTimeout)
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
		return rt.exclusive(ctx, lockScopeKeyTransfer, func(ctx context.Context) error {
			return runKeyTransfer(ctx, svc, from, to)
		})
	},
}

func init() {
	keysTransferCmd.Flags().StringVar(&keysTransferFrom, "from", keymanager.WrapperLocal, "wrapper currently holding the keys")
	keysTransferCmd.Flags().StringVar(&keysTransferTo, "to", keymanager.WrapperVault, "wrapper to move the keys to")
	keysCmd.AddCommand(keysGenerateMasterKeyCmd, keysTransferCmd)
}

func runKeyTransfer(ctx context.Context, svc *admin.Service, from, to string) error {
	start := time.Now()
	moved, err := svc.TransferKeyStores(ctx, from, to)
	if err != nil {
		return err
	}
	slog.Info("key transfer finished", "from", from, "to", to, "moved", moved, "duration", time.Since(start).String())
	return nil
}
