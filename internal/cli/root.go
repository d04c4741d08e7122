// Package cli provides command-line interface implementation for keycrypt.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"keycrypt/internal/app"
	"keycrypt/internal/config"
	"keycrypt/internal/crypto"
	"keycrypt/internal/keystore"
	"keycrypt/internal/logging"
)

// rootCmd hands the raw argument vector to the dispatcher. Flag parsing is
// disabled because commands are single-dash words such as -encryptPassword.
var rootCmd = &cobra.Command{
	Use:   "keycrypt [-createKeyStore [<dir>] | -encryptPassword <password> | -decryptPassword <ENC(value)>]",
	Short: "Manage a local keystore and encrypt passwords for configuration files",
	Long: `keycrypt keeps an age identity in a local keystore and uses it to encrypt
plaintext passwords. Encrypted values are printed as ENC(...) so they can be
stored in configuration files.`,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE:               runRoot,
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(os.Getenv(config.EnvConfigFile))
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)

	keystores := keystore.NewFileFactory(cfg.KeystoreRoot, cfg.KeystoreFile, keystore.WithLogger(logger))
	dispatcher := app.New(keystores, crypto.NewKeystoreProvider(keystores),
		app.WithOutput(cmd.OutOrStdout()),
		app.WithInput(cmd.InOrStdin(), cmd.ErrOrStderr()),
	)

	logger.Debug().Strs("args", redactArgs(args)).Msg("dispatching")
	return dispatcher.Execute(args)
}

// redactArgs hides everything after the command word; it may be a password.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if i == 0 {
			out[i] = a
			continue
		}
		out[i] = "[REDACTED]"
	}
	return out
}
