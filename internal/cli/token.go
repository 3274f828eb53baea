package cli

import (
	"strings"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
	"github.com/spf13/cobra"
)

type tokenOptions struct {
	*RootOptions
	Scene  string
	UserID string
	BizID  string
}

func (o *tokenOptions) key() token.Key {
	return token.Key{Scene: o.Scene, UserID: o.UserID, BizID: o.BizID}
}

// NewTokenCommand groups the submit-token subcommands.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and check submit tokens",
	}
	cmd.PersistentFlags().StringVar(&opts.Scene, "scene", "", "token scene")
	cmd.PersistentFlags().StringVar(&opts.UserID, "user", "", "user id")
	cmd.PersistentFlags().StringVar(&opts.BizID, "biz", "", "optional business id")
	_ = cmd.MarkPersistentFlagRequired("scene")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(newTokenGenerateCommand(opts))
	cmd.AddCommand(newTokenValidateCommand(opts))
	return cmd
}

func newTokenGenerateCommand(opts *tokenOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Issue a token, replacing any live one for the same key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, _, closeFn, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			issued, err := stack.Guard.Generate(cmd.Context(), opts.key())
			if err != nil {
				return WrapExitError(ExitCommandError, "generate token", err)
			}
			return opts.formatter(cmd).Success(map[string]any{
				"token":          issued.Token,
				"expire_seconds": int64(issued.TTL.Seconds()),
			})
		},
	}
}

func newTokenValidateCommand(opts *tokenOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <token>",
		Short: "Check a token and consume it on a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, _, closeFn, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := stack.Guard.ValidateAndConsume(cmd.Context(), opts.key(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "validate token", err)
			}
			out := opts.formatter(cmd)
			if res != token.Valid {
				return out.Rejected(strings.ToUpper(res.String()), res.Err().Error())
			}
			return out.Success(map[string]any{"result": res.String()})
		},
	}
}
