package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("workflow-engine %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
