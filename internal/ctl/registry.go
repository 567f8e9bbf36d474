package ctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/filerelay/internal/common"
	"github.com/dmitrijs2005/filerelay/internal/links"
)

func newLookupCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <token>",
		Short: "Show the registry entry behind a callback token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := o.openRegistry()
			if err != nil {
				return err
			}
			defer reg.Close()

			e, err := reg.Lookup(args[0])
			if errors.Is(err, common.ErrCallbackExpiredOrMissing) {
				return fmt.Errorf("token %s is expired or unknown", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:      %s\n", e.ObjectKey)
			fmt.Fprintf(out, "owner:    %s\n", e.OwnerID)
			fmt.Fprintf(out, "name:     %s\n", e.OriginalName)
			fmt.Fprintf(out, "created:  %s\n", e.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "accessed: %s (%d times)\n", e.LastAccessedAt.Format(time.RFC3339), e.AccessCount)
			return nil
		},
	}
}

func newSweepCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired callback tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening sweeps expired entries and writes the result back
			reg, err := o.openRegistry()
			if err != nil {
				return err
			}
			defer reg.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "registry swept, %d entries remaining\n", reg.Len())
			return nil
		},
	}
}

func newPresignCmd(o *options) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "presign <key>",
		Short: "Mint a download link (and player link) for an object key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = o.cfg.PresignTTL
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := newObjectStore(ctx, o.cfg)
			if err != nil {
				return err
			}
			minter := links.NewMinter(store, o.cfg.PlayerBaseURL)

			u, err := minter.Presign(ctx, args[0], ttl)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, u)
			if p, ok := minter.PlayerURL(args[0], u); ok {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "link lifetime (defaults to the configured presign ttl)")
	return cmd
}
