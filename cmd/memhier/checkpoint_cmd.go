package main

import (
	"database/sql"
	"fmt"

	// Registers the sqlite3 driver under database/sql.
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

func init() {
	checkpointCmd.AddCommand(checkpointInspectCmd)
	rootCmd.AddCommand(checkpointCmd)
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "inspect a checkpoint file written by `memhier run --checkpoint-out`",
}

var checkpointInspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "print a summary of a checkpoint file's contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointInspect,
}

func runCheckpointInspect(_ *cobra.Command, args []string) error {
	db, err := sql.Open("sqlite3", args[0])
	if err != nil {
		return fmt.Errorf("opening checkpoint file: %w", err)
	}
	defer db.Close()

	tables := []struct {
		label string
		query string
	}{
		{"valid cache blocks", "SELECT cache, COUNT(*) FROM checkpoint_blocks GROUP BY cache"},
		{"MSHR targets", "SELECT cache, COUNT(*) FROM checkpoint_mshr_targets GROUP BY cache"},
		{"writeback entries", "SELECT cache, COUNT(*) FROM checkpoint_writebacks GROUP BY cache"},
	}

	for _, t := range tables {
		fmt.Printf("%s:\n", t.label)
		if err := printGroupCounts(db, t.query); err != nil {
			return err
		}
	}

	rows, err := db.Query("SELECT cpu, pc, has_locked_addr FROM checkpoint_cpu")
	if err != nil {
		return fmt.Errorf("querying checkpoint_cpu: %w", err)
	}
	defer rows.Close()

	fmt.Println("cpus:")
	for rows.Next() {
		var name string
		var pc uint64
		var hasLock int
		if err := rows.Scan(&name, &pc, &hasLock); err != nil {
			return err
		}
		fmt.Printf("  %s: pc=%#x locked=%v\n", name, pc, hasLock != 0)
	}

	return nil
}

func printGroupCounts(db *sql.DB, query string) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("querying %q: %w", query, err)
	}
	defer rows.Close()

	any := false
	for rows.Next() {
		var cache string
		var count int
		if err := rows.Scan(&cache, &count); err != nil {
			return err
		}
		fmt.Printf("  %s: %d\n", cache, count)
		any = true
	}
	if !any {
		fmt.Println("  (none)")
	}

	return nil
}
