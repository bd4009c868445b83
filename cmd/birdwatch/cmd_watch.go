package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/birdwatch/internal/state"
	"github.com/user/birdwatch/internal/types"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.AddCommand(watchAddCmd, watchListCmd, watchRemoveCmd, watchImportCmd)
}

func openWatchList() *state.WatchList {
	cfg := loadConfig()
	return state.NewWatchList(filepath.Join(cfg.DataDir, "watchlist.json"))
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched accounts",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <account>",
	Short: "Add an account to the watch-list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wl := openWatchList()
		account, err := wl.Add(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Now watching @%s.\n", account)
		return nil
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		wl := state.NewWatchList(filepath.Join(cfg.DataDir, "watchlist.json"))
		accounts, err := wl.Load()
		if err != nil {
			return fmt.Errorf("load watch-list: %w", err)
		}

		if len(accounts) == 0 {
			fmt.Println("No accounts watched.")
			return nil
		}

		ws, err := state.LoadWatchState(filepath.Join(cfg.DataDir, "state.json"))
		if err != nil {
			return fmt.Errorf("load watch state: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tLAST ALERT")
		for _, account := range accounts {
			last := "never"
			if t, ok := ws.LastAlertAt(account); ok {
				last = t.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\n", account, last)
		}
		return w.Flush()
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <account>",
	Short: "Remove an account from the watch-list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wl := openWatchList()
		account := types.NormalizeAccount(args[0])
		removed, err := wl.Remove(account)
		if err != nil {
			return fmt.Errorf("remove account: %w", err)
		}
		if !removed {
			fmt.Fprintf(os.Stdout, "@%s was not being watched.\n", account)
			return nil
		}
		fmt.Fprintf(os.Stdout, "Stopped watching @%s.\n", account)
		return nil
	},
}

var watchImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import accounts from a file, one per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()

		wl := openWatchList()
		added, err := wl.Import(f)
		if err != nil {
			return fmt.Errorf("import accounts: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Imported %d account(s).\n", added)
		return nil
	},
}
