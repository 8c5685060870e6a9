package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the template to project cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheGetCommand(ctx))
	cacheCmd.AddCommand(newCacheSetCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeCache, err := ctx.openCache()
			if err != nil {
				return err
			}
			defer closeCache()

			entries, err := cache.List()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cached projects: none")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for i, entry := range entries {
				rows = append(rows, []string{fmt.Sprintf("%d", i+1), entry.SourceKey, entry.ProjectID})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Source Key", "Project"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newCacheGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <source-key>",
		Short: "Print the cached project id for a source key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeCache, err := ctx.openCache()
			if err != nil {
				return err
			}
			defer closeCache()

			id, ok := cache.GetProjectID(args[0])
			if !ok {
				return fmt.Errorf("no cached project for %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newCacheSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <source-key> <project-id>",
		Short: "Pin a source key to an existing project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, id := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if key == "" || id == "" {
				return fmt.Errorf("source key and project id are required")
			}
			cache, closeCache, err := ctx.openCache()
			if err != nil {
				return err
			}
			defer closeCache()

			if err := cache.SetProjectID(key, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %s -> %s\n", key, id)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [source-key]",
		Short: "Forget a cached project so the next fetch rebuilds it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("source key required (or pass --all)")
			}
			cache, closeCache, err := ctx.openCache()
			if err != nil {
				return err
			}
			defer closeCache()

			keys := args
			if all {
				entries, err := cache.List()
				if err != nil {
					return err
				}
				keys = keys[:0:0]
				for _, entry := range entries {
					keys = append(keys, entry.SourceKey)
				}
			}
			for _, key := range keys {
				if err := cache.ClearProjectID(key); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached project(s)\n", len(keys))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every cached project")
	return cmd
}
