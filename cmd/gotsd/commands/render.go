package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gotsd/internal"
	"gotsd/internal/config"
	"gotsd/internal/errs"
	"gotsd/internal/generation"
	"gotsd/internal/logger"
)

// Flag names mapped to the config keys they override.
var renderFlagKeys = map[string]string{
	"indent":        config.KeyIndentation,
	"camel-case":    config.KeyCamelCase,
	"special-types": config.KeySpecialTypes,
	"filter":        config.KeyNameFilter,
	"strict":        config.KeyStrict,
	"output":        config.KeyOutput,
	"go-package":    config.KeyGoPackage,
	"go-output":     config.KeyGoOutput,
	"log-json":      config.KeyLogJSON,
}

// AddRenderFlags registers the rendering flags on flags.
func AddRenderFlags(flags *pflag.FlagSet) {
	defaults := config.Default()
	flags.String("indent", "space4", "Indentation per level: tab, space2, space4 or a literal string")
	flags.Bool("camel-case", defaults.CamelCaseMemberNames, "Lower-case the first letter of member names")
	flags.Bool("special-types", false, "Prepend the WinRT helper declarations (IPromise)")
	flags.String("filter", "", "Only emit top-level types whose full name matches this .NET regular expression")
	flags.Bool("strict", false, "Fail on the first unresolved type instead of substituting 'any'")
	flags.StringP("output", "o", "", "Write declarations to this file instead of stdout")
	flags.String("go-package", defaults.GoPackage, "Package name of the generated Go embedding file")
	flags.String("go-output", "", "Also write a Go file embedding the declarations")
}

// loadConfig reads the config file, environment and the flags of cmd that
// were set explicitly.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (config.Config, error) {
	configPath := internal.Must(cmd.Flags().GetString("config"))
	v, err := config.NewViper(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := bindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, flagKeys map[string]string) error {
	for flagName, key := range flagKeys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errs.Wrapf(err, "failed to bind --%s", flagName)
		}
	}
	return nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) (*zap.SugaredLogger, error) {
	verbosity := internal.Must(cmd.Flags().GetCount("verbose"))
	log, err := logger.New(verbosity, cfg.LogJSON)
	if err != nil {
		return nil, errs.Wrap(err, "failed to initialize logger")
	}
	return log, nil
}

// Render is the root command: it renders every input file as one declaration
// document.
func Render(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	cfg, err := loadConfig(cmd, renderFlagKeys)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	var out io.Writer = cmd.OutOrStdout()
	if cfg.Output != "" {
		file, err := os.Create(cfg.Output)
		if err != nil {
			return errs.Wrapf(err, "failed to create %s", cfg.Output)
		}
		defer file.Close()
		out = file
	}

	sink := generation.SubstituteSink(log)
	if cfg.Strict {
		sink = generation.AbortSink(log)
	}
	recorder := &generation.RecordingSink{Next: sink}

	result, err := generation.FromAssemblies(args, cfg, out, generation.WithLogger(log), generation.WithErrorSink(recorder))
	if len(recorder.Names) > 0 {
		log.Warnw("Unresolved type references", logger.FieldCount, len(recorder.Names))
	}
	if err != nil {
		return err
	}
	log.Infow("Rendered declarations", logger.FieldNamespace, len(result.Namespaces), logger.FieldPath, cfg.Output)

	if cfg.GoOutput == "" {
		return nil
	}
	generator := generation.NewGenerator(cfg.GoPackage, cfg.GoOutput)
	generator.RegisterResult(result)
	if err := generator.Generate(); err != nil {
		return err
	}
	log.Infow("Wrote Go embedding", logger.FieldPath, cfg.GoOutput)
	return nil
}
