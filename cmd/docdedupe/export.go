package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arrowgate/docdedupe/internal/export"
)

type exportOptions struct {
	out string
}

// newExportCmd creates the export command group: the two file formats
// spec.md §4.12 names, each its own subcommand so a single invocation
// never has to guess which one the caller wants.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the duplicate-members CSV or a config backup",
	}

	cmd.AddCommand(newExportCSVCmd())
	cmd.AddCommand(newExportBackupCmd())
	cmd.AddCommand(newImportBackupCmd())

	return cmd
}

func newExportCSVCmd() *cobra.Command {
	opts := &exportOptions{out: "duplicates.csv"}

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write one row per duplicate-group member",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runExportCSV(opts)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", opts.out, "Output file path")
	return cmd
}

func runExportCSV(opts *exportOptions) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	rt, err := newRuntime(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.out, err)
	}
	defer f.Close()

	if err := export.New(rt.store).WriteDuplicateCSV(context.Background(), f); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	fmt.Println("wrote", opts.out)
	return nil
}

func newExportBackupCmd() *cobra.Command {
	opts := &exportOptions{out: "config-backup.json"}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a JSON config backup (app config + dedup config)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runExportBackup(opts)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", opts.out, "Output file path")
	return cmd
}

func runExportBackup(opts *exportOptions) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	rt, err := newRuntime(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.out, err)
	}
	defer f.Close()

	if err := export.New(rt.store).WriteConfigBackup(context.Background(), f, time.Now().UTC()); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	fmt.Println("wrote", opts.out)
	return nil
}

func newImportBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-backup <path>",
		Short: "Restore app config and dedup config from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runImportBackup(args[0])
		},
	}
	return cmd
}

func runImportBackup(path string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	rt, err := newRuntime(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := export.New(rt.store).ImportConfigBackup(context.Background(), f); err != nil {
		return fmt.Errorf("import backup: %w", err)
	}
	fmt.Println("restored config from", path)
	return nil
}
