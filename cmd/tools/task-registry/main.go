// cmd/tools/task-registry/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"offer-crew/pkg/registry"
)

const defaultRegistryPath = "configs/task-registry.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "task-registry",
		Short:         "Generate and check the agent task registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newGenerateCmd(), newValidateCmd(), newListCmd())
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the registry built from the task catalog",
		Long: `Generate builds the registry from the task catalog and writes it to disk.
The format follows the file extension: .yaml/.yml for YAML, anything else for JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			reg, err := registry.Build()
			if err != nil {
				return err
			}
			if err := registry.Validate(reg); err != nil {
				return fmt.Errorf("generated registry is invalid: %w", err)
			}
			if err := registry.SaveRegistry(reg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tasks to %s\n", len(reg.Tasks), path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", defaultRegistryPath, "Output file path")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a registry file and compile its schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("path")
			if err != nil {
				return err
			}
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := registry.Validate(reg); err != nil {
				return fmt.Errorf("registry validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d tasks.\n", len(reg.Tasks))
			return nil
		},
	}
	cmd.Flags().StringP("path", "p", defaultRegistryPath, "Path to registry file")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tasks",
		Long:  "List prints the tasks in a registry file, or in the built-in catalog when --path is empty.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("path")
			if err != nil {
				return err
			}

			var reg *registry.TaskRegistry
			if path == "" {
				reg, err = registry.Build()
			} else {
				reg, err = registry.LoadRegistry(path)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, task := range reg.Tasks {
				fmt.Fprintf(out, "%-12s %-22s %s -> %s\n", task.Kind, task.AgentRole, task.InputSchemaName, task.OutputSchemaName)
			}
			return nil
		},
	}
	cmd.Flags().StringP("path", "p", "", "Path to registry file (default: built-in catalog)")
	return cmd
}
