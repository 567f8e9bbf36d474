package ctl

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/filerelay/internal/filex"
	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/progress"
	"github.com/dmitrijs2005/filerelay/internal/transfer"
)

func newUploadCmd(o *options) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a local file and print its links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := o.cfg.Validate(); err != nil {
				return err
			}
			if owner == "" {
				owner = strconv.FormatInt(o.cfg.AdminID, 10)
			}

			src, err := transfer.NewFileSource(args[0])
			if err != nil {
				return err
			}

			if _, err := filex.EnsureDir(o.cfg.DataDir); err != nil {
				return err
			}
			if o.cfg.DownloadDir, err = filex.EnsureDir(o.cfg.DownloadDir); err != nil {
				return err
			}

			store, err := newObjectStore(ctx, o.cfg)
			if err != nil {
				return err
			}
			reg, err := o.openRegistry()
			if err != nil {
				return err
			}
			defer reg.Close()

			minter := links.NewMinter(store, o.cfg.PlayerBaseURL)
			p := transfer.New(store, minter, reg, o.log, transfer.OptionsFromConfig(o.cfg))

			sink := progress.Discard
			if !o.quiet && isTerminal(cmd.ErrOrStderr()) {
				ts := progress.NewTerminalSink(cmd.ErrOrStderr())
				defer ts.Close()
				sink = ts
			}

			res, err := p.Run(ctx, src, owner, sink)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "key:      %s\n", res.ObjectKey)
			fmt.Fprintf(out, "size:     %s\n", progress.HumanBytes(res.Size))
			fmt.Fprintf(out, "type:     %s\n", res.ContentType)
			if res.PresignedURL != "" {
				fmt.Fprintf(out, "download: %s\n", res.PresignedURL)
			}
			if res.PlayerURL != "" {
				fmt.Fprintf(out, "player:   %s\n", res.PlayerURL)
			}
			if res.Token != "" {
				fmt.Fprintf(out, "token:    %s\n", res.Token)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id for the object key (defaults to the admin id)")
	return cmd
}
