package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Cache == nil {
			zap.L().Info("no cache source configured, nothing to sweep")
			return nil
		}

		n, err := env.Cache.Sweep(ctx)
		if err != nil {
			return eris.Wrap(err, "cache sweep")
		}
		zap.L().Info("cache sweep complete", zap.Int("removed", n))
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <fingerprint>",
	Short: "Delete one cached result set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Cache == nil {
			return eris.New("no cache source configured")
		}
		if err := env.Cache.Invalidate(ctx, args[0]); err != nil {
			return eris.Wrap(err, "cache invalidate")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheSweepCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
