package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DaveSmith227/vizspec/internal/version"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vizspec version %s (token schema %s)\n", version.Get(), models.CurrentSchemaVersion)
	},
}
