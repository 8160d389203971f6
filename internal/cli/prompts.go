package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/fixloop/internal/prompt"
)

var promptsDir string

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage suggestion prompt templates",
}

var promptsInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Write the built-in prompt templates to ~/.fixloop/templates",
	Long: `Write the built-in prompt templates so they can be edited. Existing files
are left untouched. Installed templates take precedence over the built-ins.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := promptsDir
		if dir == "" {
			dir = prompt.TemplateDir()
		}
		written, err := prompt.InstallBuiltinTemplates(dir)
		for _, name := range written {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", filepath.Join(dir, name))
		}
		if err != nil {
			return err
		}
		if len(written) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "templates already installed in %s\n", dir)
		}
		return nil
	},
}

func init() {
	promptsInstallCmd.Flags().StringVar(&promptsDir, "dir", "", "install into this directory instead")
	promptsCmd.AddCommand(promptsInstallCmd)
}
