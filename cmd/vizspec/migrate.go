package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DaveSmith227/vizspec/internal/migrate"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

var (
	migrateTarget string
	migrateDryRun bool
	migrateBackup bool
	migrateCheck  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <tokens.json>",
	Short: "Migrate a token document between schema versions",
	Long: `Migrate a token document to another schema version.

Migrations run step by step along the built-in rule chain; downgrades
traverse reversible steps backwards. A failing step aborts without
touching the file. Completed migrations are appended to
.vizspec/changelog.yaml.

Examples:
  vizspec migrate tokens.json
  vizspec migrate tokens.json --to 1.1.0
  vizspec migrate tokens.json --dry-run
  vizspec migrate tokens.json --check
  vizspec migrate tokens.json --backup`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTarget, "to", models.CurrentSchemaVersion, "Target schema version")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Show the migration plan without writing")
	migrateCmd.Flags().BoolVar(&migrateBackup, "backup", false, "Write a backup of the original file first")
	migrateCmd.Flags().BoolVar(&migrateCheck, "check", false, "Only check whether a migration path exists")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path := args[0]
	m := migrate.New()

	if migrateCheck {
		res, err := m.MigrateFile(path, migrateTarget, migrate.Options{DryRun: true})
		if err != nil {
			return err
		}
		if len(res.Steps) == 0 {
			fmt.Printf("%s %s is already at %s\n", color.GreenString("✓"), path, migrateTarget)
			return nil
		}
		fmt.Printf("%s migration path %s -> %s exists (%d step(s))\n",
			color.GreenString("✓"), res.From, res.To, len(res.Steps))
		return nil
	}

	changelog := filepath.Join(".vizspec", "changelog.yaml")
	res, err := m.MigrateFile(path, migrateTarget, migrate.Options{
		DryRun:        migrateDryRun,
		Backup:        migrateBackup,
		ChangelogPath: changelog,
	})
	if err != nil {
		return err
	}

	if len(res.Steps) == 0 {
		fmt.Printf("%s already at %s, nothing to do\n", color.GreenString("✓"), res.To)
		return nil
	}
	if migrateDryRun {
		fmt.Printf("would migrate %s -> %s:\n", res.From, res.To)
		for _, step := range res.Steps {
			fmt.Printf("  %s\n", step)
		}
		return nil
	}

	fmt.Printf("%s migrated %s: %s -> %s\n", color.GreenString("✓"), path, res.From, res.To)
	if res.BackupPath != "" {
		fmt.Printf("backup: %s\n", res.BackupPath)
	}
	return nil
}
