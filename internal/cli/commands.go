package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/kvsync/internal/version"
	"github.com/arthur-debert/kvsync/pkg/codec"
	"github.com/arthur-debert/kvsync/pkg/config"
	"github.com/arthur-debert/kvsync/pkg/errors"
	"github.com/arthur-debert/kvsync/pkg/host/filestore"
	"github.com/arthur-debert/kvsync/pkg/logging"
	"github.com/arthur-debert/kvsync/pkg/storage"
	"github.com/arthur-debert/kvsync/pkg/ui"
)

// options holds the global flags.
type options struct {
	verbosity  int
	quiet      bool
	configFile string
	dir        string
	prefix     string
	format     string

	cfg *config.Config
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

// Execute runs kvsync with args and returns the process exit code. A failed
// command is rendered to stderr in the configured output format.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &options{}
	rootCmd := newRootCmd(opts)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	r, rerr := ui.NewRenderer(opts.errorFormat(), stderr)
	if rerr != nil {
		r, _ = ui.NewRenderer(ui.FormatText, stderr)
	}
	if rerr := r.RenderError(err); rerr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kvsync",
		Short: "Watch and edit a shared key-value store",
		Long: `kvsync works on a directory-backed key-value store shared between
processes. Values are stored as JSON. Changes made by one process are
announced to every other process watching the same directory, the way
browser tabs see each other's storage changes.`,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	pf.StringVar(&opts.configFile, "config", "", "Config file (TOML or YAML)")
	pf.StringVar(&opts.dir, "dir", "", "Store directory")
	pf.StringVar(&opts.prefix, "prefix", "", "Only work on keys starting with this prefix")
	pf.StringVar(&opts.format, "format", "", "Output format: auto, term, text, json or yaml")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not confirm set, rm and clear")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGetCmd(opts))
	rootCmd.AddCommand(newSetCmd(opts))
	rootCmd.AddCommand(newRmCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newClearCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// load resolves the configuration and sets up logging.
func (o *options) load(cmd *cobra.Command) error {
	overrides := map[string]interface{}{}
	flags := cmd.Flags()
	if flags.Changed("dir") {
		overrides["store.dir"] = o.dir
	}
	if flags.Changed("prefix") {
		overrides["storage.prefix"] = o.prefix
	}
	if flags.Changed("format") {
		overrides["output.format"] = o.format
	}
	if flags.Changed("verbose") {
		overrides["log.verbosity"] = o.verbosity
	}

	cfg, err := config.Load(config.LoadOptions{File: o.configFile, Overrides: overrides})
	if err != nil {
		return err
	}
	o.cfg = cfg

	logging.SetupLogger(cfg.Log.Verbosity)
	logging.LogCommand(cmd.Name(), cmd.Flags().Args())
	return nil
}

// errorFormat picks the format for a failure. The configuration may not
// have loaded, so the --format flag and then the defaults are used.
func (o *options) errorFormat() ui.Format {
	name := config.Default().Output.Format
	switch {
	case o.cfg != nil:
		name = o.cfg.Output.Format
	case o.format != "":
		name = o.format
	}
	format, err := ui.ParseFormat(name)
	if err != nil {
		return ui.FormatText
	}
	return format
}

func (o *options) renderer(cmd *cobra.Command) (ui.Renderer, error) {
	format, err := ui.ParseFormat(o.cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	return ui.NewRenderer(format, cmd.OutOrStdout())
}

// session is an opened store with a watcher and a Sync over both.
type session struct {
	store   *filestore.Store
	watcher *filestore.Watcher
	sync    *storage.Sync
	log     zerolog.Logger
}

func (o *options) open() (*session, error) {
	store, err := filestore.Open(o.cfg.Store.Dir)
	if err != nil {
		return nil, err
	}
	watcher, err := filestore.NewWatcher(store)
	if err != nil {
		return nil, err
	}
	s := storage.New(filestore.Environment(store, watcher), storage.WithPrefix(o.cfg.Storage.Prefix))

	logger := logging.WithFields(map[string]interface{}{
		"dir":    store.Dir(),
		"prefix": s.Prefix(),
	})
	logger.Debug().Msg("Session opened")
	return &session{store: store, watcher: watcher, sync: s, log: logger}, nil
}

func (s *session) Close() {
	s.sync.Destroy()
	if err := s.watcher.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close watcher")
	}
}

// notFound reports a missing item, or a missing path inside one.
func (s *session) notFound(item, path string) error {
	var err *errors.Error
	if path == "" {
		err = errors.Newf(errors.ErrNotFound, "item %q not found", item)
	} else {
		err = errors.Newf(errors.ErrNotFound, "path %q not found in item %q", path, item).
			WithDetail("path", path)
	}
	err = err.WithDetail("item", item)
	if prefix := s.sync.Prefix(); prefix != "" {
		err = err.WithDetail("prefix", prefix)
	}
	return err
}

func (s *session) exists(item string) bool {
	_, ok := s.store.GetItem(s.sync.Prefix() + item)
	return ok
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including commit hash and build date`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kvsync version %s\n", version.Version)
			if version.Commit != "" {
				fmt.Fprintf(out, "Commit: %s\n", version.Commit)
			}
			if version.Date != "" {
				fmt.Fprintf(out, "Built:  %s\n", version.Date)
			}
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "get ITEM",
		Short: "Print the value of an item",
		Args:  cobra.ExactArgs(1),
		Example: `  # Print a value
  kvsync get message

  # Print one field of a JSON document
  kvsync get settings --path theme.name`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			item := args[0]
			if !s.exists(item) {
				return s.notFound(item, "")
			}

			value := s.sync.Get(item)
			if path != "" {
				var found bool
				if value, found = s.sync.LookupPath(item, path); !found {
					return s.notFound(item, path)
				}
			}
			return r.RenderItem(ui.Item{Key: item, Value: value})
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Read the value at this path inside a JSON document")
	return cmd
}

func newSetCmd(opts *options) *cobra.Command {
	var (
		path     string
		asString bool
	)

	cmd := &cobra.Command{
		Use:   "set ITEM VALUE",
		Short: "Store a value",
		Long: `Set stores VALUE under ITEM. VALUE is parsed as JSON when possible and
stored as a plain string otherwise; --string always stores a string.`,
		Args: cobra.ExactArgs(2),
		Example: `  kvsync set message "Hello, World!"
  kvsync set total 42
  kvsync set settings dark --path theme.name`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			item := args[0]
			var value any = args[1]
			if !asString {
				value = codec.DecodeString(args[1]).Value
			}

			if path != "" {
				err = s.sync.SetPath(item, path, value)
			} else {
				err = s.sync.Set(item, value)
			}
			if err != nil {
				return err
			}
			if opts.quiet {
				return nil
			}
			return r.RenderMessage(fmt.Sprintf("Set %s", item))
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Set the value at this path inside a JSON document")
	cmd.Flags().BoolVar(&asString, "string", false, "Store VALUE as a string without parsing it")
	return cmd
}

func newRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ITEM",
		Aliases: []string{"remove"},
		Short:   "Remove an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.sync.Remove(args[0]); err != nil {
				return err
			}
			if opts.quiet {
				return nil
			}
			return r.RenderMessage(fmt.Sprintf("Removed %s", args[0]))
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items and their values",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			keys := s.sync.Keys()
			items := make([]ui.Item, 0, len(keys))
			for _, k := range keys {
				items = append(items, ui.Item{Key: k, Value: s.sync.Get(k)})
			}
			return r.RenderItems(items)
		},
	}
}

func newClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every item",
		Long: `Clear removes every item. With a prefix only the items under that
prefix are removed, one by one; without one the whole store is cleared
and watchers see a single cleared event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd)
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			msg := "Cleared the store"
			if prefix := s.sync.Prefix(); prefix == "" {
				if err := s.store.Clear(); err != nil {
					return err
				}
			} else {
				keys := s.sync.Keys()
				for _, k := range keys {
					if err := s.sync.Remove(k); err != nil {
						return err
					}
				}
				msg = fmt.Sprintf("Removed %d items under %s", len(keys), prefix)
			}
			if opts.quiet {
				return nil
			}
			return r.RenderMessage(msg)
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if defaults {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GenerateConfigContent())
				return err
			}
			out, err := config.Generate(opts.cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&defaults, "defaults", false, "Print a commented default config file instead")
	return cmd
}
