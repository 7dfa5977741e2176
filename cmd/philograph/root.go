package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agenthands/philograph/internal/config"
	"github.com/agenthands/philograph/internal/logging"
)

// cliState is shared by the subcommands of one invocation.
type cliState struct {
	configPath string
	viper      *viper.Viper
	cfg        *config.Config
	logger     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	st := &cliState{viper: config.NewViper()}

	root := &cobra.Command{
		Use:   "philograph",
		Short: "Extract and validate philosophical knowledge graphs",
		Long: `philograph extracts entities and relationships from philosophical prose,
persists them to a knowledge graph and routes uncertain facts through
expert consensus review.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&st.configPath, "config", "config/config.toml", "path to the TOML configuration file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("tagger", true, "use the statistical entity tagger")
	flags.Bool("llm", false, "use LLM-assisted relationship extraction")
	_ = st.viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = st.viper.BindPFlag("extraction.use_tagger", flags.Lookup("tagger"))
	_ = st.viper.BindPFlag("extraction.use_llm", flags.Lookup("llm"))

	root.AddCommand(newExtractCmd(st), newServeCmd(st), newValidationsCmd(st))
	return root
}

// load reads the config file (a missing default file is not an error), applies env and flag overrides and builds
// the logger.
func (st *cliState) load(cmd *cobra.Command) error {
	cfg, err := config.Load(st.configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		return err
	}
	if err := config.ApplyOverrides(cfg, st.viper); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	st.cfg = cfg
	st.logger = logger
	return nil
}
