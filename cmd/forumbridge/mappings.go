package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/forumbridge/internal/adapter/driven/jsonfile"
	"github.com/ericfisherdev/forumbridge/internal/application"
)

func newMappingsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect or import the thread to issue mapping",
	}
	cmd.AddCommand(newMappingsListCmd(flags))
	cmd.AddCommand(newMappingsImportCmd(flags))
	return cmd
}

func newMappingsListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every thread and the issue it is linked to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			backend, err := openSnapshotStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.close()

			issues, found, err := backend.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !found {
				fmt.Fprintf(out, "no snapshot saved in %s\n", backend.location)
				return nil
			}

			threads := make([]uint64, 0, len(issues))
			for id := range issues {
				threads = append(threads, id)
			}
			sort.Slice(threads, func(i, j int) bool { return threads[i] < threads[j] })

			for _, id := range threads {
				fmt.Fprintf(out, "%d\t#%d\n", id, issues[id])
			}

			if backend.sqlite != nil {
				savedAt, ok, err := backend.sqlite.SavedAt(cmd.Context())
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(out, "%d mappings, saved %s\n", len(threads), savedAt.UTC().Format(time.RFC3339))
					return nil
				}
			}
			fmt.Fprintf(out, "%d mappings\n", len(threads))
			return nil
		},
	}
}

func newMappingsImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <data.json>",
		Short: "Merge a data.json snapshot into the configured storage",
		Long: `Import reads a data.json snapshot written by the original bot or by the json
storage backend and adds its entries to the configured storage. Threads that
are already linked keep their existing issue.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			doc, err := jsonfile.ReadDocument(args[0])
			if err != nil {
				return err
			}

			backend, err := openSnapshotStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.close()

			store := application.NewMappingStore(backend.store, logger)
			if err := store.Load(cmd.Context()); err != nil {
				return err
			}

			var imported, skipped int
			for threadID, issueNumber := range doc.IssueMap {
				if issueNumber <= 0 {
					skipped++
					continue
				}
				if store.TryInsert(threadID, issueNumber) {
					imported++
				} else {
					skipped++
				}
			}

			if err := store.Persist(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, total %d\n", imported, skipped, store.Len())
			return nil
		},
	}
}
