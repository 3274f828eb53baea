package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appstock "github.com/Zhima-Mochi/stock-ledger/internal/application/stock"
	"github.com/spf13/cobra"
)

func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <product-id> <quantity>",
		Short: "Set the stock counter of a product, overwriting any current value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "quantity must be an integer", err)
			}
			stack, _, closeFn, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := stack.Stock.InitStock(cmd.Context(), args[0], qty); err != nil {
				return WrapExitError(ExitCommandError, "init stock", err)
			}
			return rootOpts.formatter(cmd).Success(map[string]any{"product_id": args[0], "stock": qty})
		},
	}
}

func NewCurrentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current <product-id>",
		Short: "Show the current stock of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, _, closeFn, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, found, err := stack.Stock.CurrentStock(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read stock", err)
			}
			out := rootOpts.formatter(cmd)
			if !found {
				return out.Rejected("PRODUCT_NOT_FOUND", fmt.Sprintf("stock is not configured for %s", args[0]))
			}
			return out.Success(map[string]any{"product_id": args[0], "stock": n})
		},
	}
}

type deductOptions struct {
	*RootOptions
	Amount  int64
	UserID  string
	OrderID string
	Scene   string
	Remark  string
	TTL     time.Duration
}

func NewDeductCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &deductOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deduct <product-id>",
		Short: "Deduct stock and write a pending record",
		Long: `Deduct stock and write a pending record.

The record is archived before the command exits.

Example:
  stockctl deduct sku-1 --amount 2 --user u-42 --order o-7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, _, closeFn, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := stack.Deduct.Execute(cmd.Context(), appstock.DeductCommand{
				ProductID: args[0],
				Amount:    opts.Amount,
				UserID:    opts.UserID,
				OrderID:   opts.OrderID,
				Scene:     opts.Scene,
				Remark:    opts.Remark,
				RecordTTL: opts.TTL,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "deduct", err)
			}
			out := opts.formatter(cmd)
			if !res.Succeeded() {
				return out.Rejected(strings.ToUpper(res.Result.String()), res.Result.Err().Error())
			}
			data := map[string]any{"record_id": res.RecordID, "result": res.Result.String()}
			if res.RemainingStock != nil {
				data["remaining_stock"] = *res.RemainingStock
			}
			return out.Success(data)
		},
	}

	cmd.Flags().Int64VarP(&opts.Amount, "amount", "n", 1, "units to deduct")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "business scene")
	cmd.Flags().StringVar(&opts.Remark, "remark", "", "free-form remark")
	cmd.Flags().DurationVar(&opts.TTL, "record-ttl", 0, "record lifetime in the fast store (server default when zero)")

	return cmd
}

func NewOfflineCommand(rootOpts *RootOptions) *cobra.Command {
	var expireOnly bool

	cmd := &cobra.Command{
		Use:   "offline <product-id>",
		Short: "Archive every live record of a product and shorten their lifetime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, _, closeFn, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if expireOnly {
				n, err := stack.Stock.SetExpiryOnOffline(cmd.Context(), args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "set expiry", err)
				}
				return rootOpts.formatter(cmd).Success(map[string]any{"expired": n})
			}

			res, err := stack.Pipeline.ProcessOffline(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "process offline", err)
			}
			return rootOpts.formatter(cmd).Success(map[string]any{"persisted": res.Persisted, "expired": res.Expired})
		},
	}

	cmd.Flags().BoolVar(&expireOnly, "expire-only", false, "only shorten record lifetimes, skip archiving")
	return cmd
}

func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete reconciled records older than the retention window from the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, cfg, closeFn, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if retention <= 0 {
				retention = cfg.Scheduler.PurgeRetention
			}
			cutoff := time.Now().Add(-retention).UTC()
			n, err := stack.Pipeline.PurgeReconciledBefore(cmd.Context(), cutoff)
			if err != nil {
				return WrapExitError(ExitCommandError, "purge", err)
			}
			return rootOpts.formatter(cmd).Success(map[string]any{
				"purged": n,
				"cutoff": cutoff.Format(time.RFC3339),
			})
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", 0, "age threshold (PURGE_RETENTION_DAYS when zero)")
	return cmd
}
