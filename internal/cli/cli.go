package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/mdlscene/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix prefixes the environment variables that override flags, e.g.
// MDLSCENE_LOG_LEVEL.
const envPrefix = "MDLSCENE"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// Execute runs the command line in args. Command results are written to
// outW, logs and help for failed invocations to errW. Invalid invocations
// return an ExitError with code 2.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCmd(outW, errW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) && strings.HasPrefix(err.Error(), "unknown command") {
		return usageError(err)
	}
	return err
}

// NewRootCmd builds the command tree.
func NewRootCmd(outW, errW io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var configFile string
	root := &cobra.Command{
		Use:   "mdlscene",
		Short: "Scene database for compiled material definitions",
		Long: `mdlscene loads compiled material modules into a scene database,
describes their definitions, instantiates materials and reconciles
instances with modules that changed on disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML config file (env: MDLSCENE_CONFIG)")
	flags.StringSlice("module-path", nil, "Module file or directory loaded before the command runs; repeatable")
	flags.String("snapshot", "", "Scene snapshot restored at start and updated after changes")
	flags.Bool("load-resources", false, "Load resources referenced by definitions")
	flags.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.StringP("output", "o", "yaml", "Output format. Options: 'yaml' or 'json'.")
	bindFlags(v, flags)

	// newApp resolves the configuration from flags, environment and config
	// file, in that order of precedence, and builds the App.
	newApp := func(cmd *cobra.Command) (*app.App, error) {
		if configFile == "" {
			configFile = v.GetString("config")
		}
		cfg, err := loadConfig(v, configFile)
		if err != nil {
			return nil, err
		}
		return app.NewApp(cmd.Context(), outW, errW, cfg)
	}

	root.AddCommand(
		newInspectCmd(newApp),
		newInstantiateCmd(newApp),
		newReloadCmd(newApp),
	)
	return root
}

// bindFlags binds every flag to the viper key of the same name with
// dashes replaced by underscores.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if key == "module_path" {
			key = "module_paths"
		}
		_ = v.BindPFlag(key, f)
	})
}

// loadConfig reads the optional config file and validates the merged
// configuration.
func loadConfig(v *viper.Viper, configFile string) (*app.Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var cfg app.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	valid, err := app.NewConfig(cfg)
	if err != nil {
		return nil, usageError(err)
	}
	return valid, nil
}

type appFactory func(cmd *cobra.Command) (*app.App, error)

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func newInspectCmd(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <module>",
		Short: "Describe the definitions of a compiled module",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.Inspect(cmd.Context(), args[0])
		},
	}
}

func newInstantiateCmd(newApp appFactory) *cobra.Command {
	var (
		name    string
		rawArgs []string
	)
	cmd := &cobra.Command{
		Use:   "instantiate <module> <material>",
		Short: "Create an instance of a material definition",
		Example: `  mdlscene instantiate example.mdlc.hcl M --arg 'c=[1, 0, 0]' --arg f=0.5
  mdlscene instantiate example.mdlc.hcl M --name mi::red --snapshot scene.bin`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseArguments(rawArgs)
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.Instantiate(cmd.Context(), args[0], args[1], name, parsed)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Store the instance in the scene under this name")
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "Argument as name=expression; repeatable")
	return cmd
}

// parseArguments splits name=expression pairs.
func parseArguments(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, usageError(fmt.Errorf("invalid --arg %q: want name=expression", kv))
		}
		if _, dup := out[name]; dup {
			return nil, usageError(fmt.Errorf("argument %q given more than once", name))
		}
		out[name] = value
	}
	return out, nil
}

func newReloadCmd(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "reload <module>",
		Short: "Reload a changed module and report which instances became invalid",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.Reload(cmd.Context(), args[0])
		},
	}
}
