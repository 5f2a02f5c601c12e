package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yllada/wg-manager/common"
)

// BuildInfo is injected at link time.
type BuildInfo struct {
	Version string
	Time    string
	Commit  string
}

// Runner builds the command tree and owns the App for one invocation.
type Runner struct {
	info       BuildInfo
	configPath string
	verbose    bool

	setup func(configPath string, out io.Writer) (*App, error)
	app   *App
	in    io.Reader
}

// NewRunner creates a Runner that wires a real App on first use.
func NewRunner(info BuildInfo) *Runner {
	return &Runner{info: info, setup: Setup, in: os.Stdin}
}

// Close releases the App if one was created.
func (r *Runner) Close() error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

func (r *Runner) cli(cmd *cobra.Command) (*CLI, error) {
	if r.app == nil {
		app, err := r.setup(r.configPath, cmd.OutOrStdout())
		if err != nil {
			return nil, err
		}
		r.app = app
	}
	return r.app.CLI, nil
}

// Command returns the root command.
func (r *Runner) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "wg-manager",
		Short:         "Manage WireGuard tunnels",
		Long:          common.AppName + " registers WireGuard configuration files and brings their tunnels up and down.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := common.LevelInfo
			if r.verbose {
				level = common.LevelDebug
			}
			return common.InitLogger(common.LogConfig{Level: level})
		},
	}
	root.PersistentFlags().StringVar(&r.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/"+common.ConfigDirName+"/"+common.ConfigFileName+")")
	root.PersistentFlags().BoolVarP(&r.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		r.listCommand(),
		r.addCommand(),
		r.removeCommand(),
		r.connectCommand(),
		r.disconnectCommand(),
		r.showCommand(),
		r.statusCommand(),
		r.keyCommand(),
		r.historyCommand(),
		r.versionCommand(),
	)
	return root
}

func (r *Runner) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered tunnels",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			return c.ListTunnels()
		},
	}
}

func (r *Runner) addCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <config-file>",
		Short: "Register a WireGuard configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			return c.AddTunnel(args[0], name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tunnel name (default: file name without extension)")
	return cmd
}

func (r *Runner) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Unregister a tunnel, bringing it down first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := operationContext(cmd)
			defer cancel()
			return c.RemoveTunnel(ctx, args[0])
		},
	}
}

func (r *Runner) connectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "connect <name>",
		Aliases: []string{"up"},
		Short:   "Bring a tunnel up",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := operationContext(cmd)
			defer cancel()
			return c.Connect(ctx, args[0])
		},
	}
}

func (r *Runner) disconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disconnect <name>",
		Aliases: []string{"down"},
		Short:   "Bring a tunnel down",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := operationContext(cmd)
			defer cancel()
			return c.Disconnect(ctx, args[0])
		},
	}
}

func (r *Runner) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a tunnel's configuration without secrets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			return c.Show(args[0])
		},
	}
}

func (r *Runner) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [name]",
		Short: "Show connection status and handshake health",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return c.Status(name)
		},
	}
}

func (r *Runner) keyCommand() *cobra.Command {
	key := &cobra.Command{
		Use:   "key",
		Short: "Manage stored private keys",
	}

	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Store the private key for a tunnel (read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			secret, err := readSecret(r.in, cmd.ErrOrStderr(), "Private key: ")
			if err != nil {
				return err
			}
			return c.SetKey(args[0], secret)
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete the stored private key for a tunnel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			return c.DeleteKey(args[0])
		},
	}

	key.AddCommand(set, del)
	return key
}

func (r *Runner) historyCommand() *cobra.Command {
	var (
		tunnel string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.cli(cmd)
			if err != nil {
				return err
			}
			return c.History(cmd.Context(), tunnel, limit)
		},
	}
	cmd.Flags().StringVarP(&tunnel, "tunnel", "t", "", "only show events for this tunnel")
	cmd.Flags().IntVarP(&limit, "count", "n", 20, "number of events to show")
	return cmd
}

func (r *Runner) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s v%s\n", common.AppName, r.info.Version)
			if r.info.Time != "" && r.info.Time != "unknown" {
				fmt.Fprintf(out, "  Build:  %s\n", r.info.Time)
				fmt.Fprintf(out, "  Commit: %s\n", r.info.Commit)
			}
			return nil
		},
	}
}

func operationContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, common.OperationTimeout)
}

// readSecret reads one line without echo when in is a terminal.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no key provided on stdin")
	}
	return line, nil
}
