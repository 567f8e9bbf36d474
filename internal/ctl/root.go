// Package ctl implements relayctl, the operator CLI: it uploads local files
// through the same pipeline the bot uses and inspects the callback registry.
package ctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/filerelay/internal/config"
	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/logging"
	"github.com/dmitrijs2005/filerelay/internal/registry"
	"github.com/dmitrijs2005/filerelay/internal/storage"
	"github.com/dmitrijs2005/filerelay/internal/transfer"
)

// objectStore is the bucket surface the CLI uses.
type objectStore interface {
	transfer.ObjectStore
	links.Presigner
}

var newObjectStore = func(ctx context.Context, cfg *config.Config) (objectStore, error) {
	return storage.NewS3Store(ctx, cfg)
}

// isTerminal reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type options struct {
	configPath string
	quiet      bool
	verbose    bool

	cfg *config.Config
	log logging.Logger
}

// NewRootCmd builds the relayctl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "relayctl",
		Short: "Operate a filerelay deployment",
		Long: `relayctl uploads local files into the relay bucket and manages the
callback registry that backs the bot's inline buttons.

Settings come from the same environment variables and JSON file as the bot.

Examples:
  relayctl upload ./movie.mp4
  relayctl lookup Xy12aBc9QweR
  relayctl presign user_42/1700000000_ab12cd34_movie.mp4
  relayctl -c config.json sweep`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(o.configPath)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			o.cfg = cfg

			level := "warn"
			if o.verbose {
				level = "debug"
			}
			o.log = logging.New(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "path to a JSON config file")
	root.PersistentFlags().BoolVarP(&o.quiet, "quiet", "q", false, "suppress progress output")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newUploadCmd(o),
		newLookupCmd(o),
		newSweepCmd(o),
		newPresignCmd(o),
	)
	return root
}

func (o *options) openRegistry() (*registry.Registry, error) {
	return registry.Open(o.cfg.RegistryPath(), registry.Options{
		TTL:        o.cfg.RegistryTTL,
		MaxEntries: o.cfg.RegistryMaxEntries,
		FlushEvery: o.cfg.RegistryFlushEvery,
		Logger:     o.log,
	})
}
