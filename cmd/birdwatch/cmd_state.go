package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/birdwatch/internal/state"
)

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateStatsCmd, stateCooldownsCmd, stateCompactCmd)
}

func openWatchState() (*state.WatchState, error) {
	cfg := loadConfig()
	return state.LoadWatchState(filepath.Join(cfg.DataDir, "state.json"))
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and maintain the alert state",
}

var stateStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alert state statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ws, err := openWatchState()
		if err != nil {
			return err
		}

		st := ws.Snapshot(cfg.Cooldown(), time.Now())
		fmt.Fprintf(os.Stdout, "Tracked events:       %d\n", st.TrackedEvents)
		fmt.Fprintf(os.Stdout, "Accounts with alerts: %d\n", st.AccountsWithAlerts)
		fmt.Fprintf(os.Stdout, "Accounts in cooldown: %d\n", st.AccountsInCooldown)
		return nil
	},
}

var stateCooldownsCmd = &cobra.Command{
	Use:   "cooldowns",
	Short: "Show accounts currently in cooldown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ws, err := openWatchState()
		if err != nil {
			return err
		}
		wl := state.NewWatchList(filepath.Join(cfg.DataDir, "watchlist.json"))
		accounts, err := wl.Load()
		if err != nil {
			return fmt.Errorf("load watch-list: %w", err)
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tREMAINING")
		cooling := 0
		for _, account := range accounts {
			remaining, ok := ws.CooldownRemaining(account, cfg.Cooldown(), now)
			if !ok {
				continue
			}
			cooling++
			fmt.Fprintf(w, "%s\t%s\n", account, remaining.Round(time.Second))
		}
		if cooling == 0 {
			fmt.Println("No accounts in cooldown.")
			return nil
		}
		return w.Flush()
	},
}

var stateCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Evict oldest tracked events down to the configured limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ws, err := openWatchState()
		if err != nil {
			return err
		}

		before := ws.Snapshot(cfg.Cooldown(), time.Now()).TrackedEvents
		if err := ws.Compact(cfg.Monitoring.MaxTrackedEvents); err != nil {
			return fmt.Errorf("compact state: %w", err)
		}
		after := ws.Snapshot(cfg.Cooldown(), time.Now()).TrackedEvents
		fmt.Fprintf(os.Stdout, "Compacted: %d -> %d tracked events.\n", before, after)
		return nil
	},
}
