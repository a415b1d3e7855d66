// Root command for the epiclink CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/epiclink/internal/paths"
	"github.com/mesh-intelligence/epiclink/pkg/epiclink"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool

	// Card context flags: the card a command acts on and where it renders.
	flagCard   string
	flagBoard  string
	flagMember string
	flagOrg    string
)

// cfg holds the viper configuration loaded by PersistentPreRunE.
var cfg *config

var rootCmd = &cobra.Command{
	Use:     "epiclink",
	Short:   "epiclink links cards into EPIC/task hierarchies",
	Version: epiclink.Version,
	Long: `epiclink maintains bidirectional EPIC <-> task relations between cards:
the EPIC card tracks its tasks through a "Tasks" checklist, each task card
points back through an "EPIC" attachment. Cross-board relations synchronize
through a queue drained on every reconcile.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		cfg, err = loadConfig(configDir)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory for the sqlite store (default: $(CWD)/"+paths.DefaultDataDirName+")")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagCard, "card", "", "ID of the card the command acts on")
	rootCmd.PersistentFlags().StringVar(&flagBoard, "board", "", "ID of the board the card renders on")
	rootCmd.PersistentFlags().StringVar(&flagMember, "member", "", "acting member ID")
	rootCmd.PersistentFlags().StringVar(&flagOrg, "org", "", "organization (workspace) ID")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(epicCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(badgeCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(showCmd)
}

// resolveDataDir returns the data directory following the precedence:
// --data-dir flag > config.yaml data_dir > EPICLINK_DATA_DIR env > default.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, cfg.DataDir)
}

// resolveConfigDir returns the configuration directory following the
// precedence: --config-dir flag > EPICLINK_CONFIG_DIR env > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
