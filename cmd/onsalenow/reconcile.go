package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [seller-uid]",
	Short: "Propagate seller block status onto their products",
	Long:  "Re-run the block propagation for one seller, or for every seller with --all. Safe to repeat.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().Bool("all", false, "Reconcile every seller")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) == 1) {
		return fmt.Errorf("pass exactly one of a seller uid or --all")
	}
	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if all {
		results, err := a.Deps.Sellers.ReconcileAll(ctx)
		_ = enc.Encode(results)
		return err
	}
	res, err := a.Deps.Sellers.Reconcile(ctx, args[0])
	_ = enc.Encode(res)
	return err
}
