package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
	"github.com/eliteGoblin/focusd/study_mon/internal/infra"
	"github.com/eliteGoblin/focusd/study_mon/internal/policy"
	"github.com/eliteGoblin/focusd/study_mon/internal/usecase"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running session's state",
	Long:  `Reads the snapshot published by 'studymon run' and reports whether the monitor is alive.`,
	RunE:  runStatus,
}

var judgeCmd = &cobra.Command{
	Use:   "judge <window-title> [process-name]",
	Short: "Classify a window once, using the cache and configured oracle",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runJudge,
}

var killCmd = &cobra.Command{
	Use:   "kill [pid]",
	Short: "Terminate a process the way a confirmed distraction is terminated",
	Long: `Terminates by PID, by process name pattern (--name), or every process
matching a catalogue entry (--policy steam|dota2|league).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKill,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or maintain the judge cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached verdicts",
	RunE:  runCacheList,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop verdicts older than the cache TTL",
	RunE:  runCachePrune,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached verdict",
	RunE:  runCacheClear,
}

var shameCmd = &cobra.Command{
	Use:   "shame",
	Short: "Inspect recorded punishments",
}

var shameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List punishments, newest first",
	RunE:  runShameList,
}

var (
	killName   string
	killPolicy string
	shameLimit int
)

func init() {
	killCmd.Flags().StringVar(&killName, "name", "", "Terminate every process whose name contains this pattern")
	killCmd.Flags().StringVar(&killPolicy, "policy", "", "Terminate every process matching a catalogue entry")
	shameListCmd.Flags().IntVar(&shameLimit, "limit", 20, "Maximum records to show (0 for all)")

	cacheCmd.AddCommand(cacheListCmd, cachePruneCmd, cacheClearCmd)
	shameCmd.AddCommand(shameListCmd)
}

func stateColor(state domain.SurveillanceState) func(a ...interface{}) string {
	switch state.Level() {
	case 0:
		return color.New(color.FgGreen).SprintFunc()
	case 1, 2, 3:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	registry := infra.NewFileSessionRegistry(cfg.Paths().SessionPath)

	fmt.Println("\n=== studymon Status ===")

	snapshot, err := registry.Read()
	if err != nil {
		return err
	}
	if snapshot == nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'studymon run' to start a session.")
		return nil
	}

	if infra.NewProcessManager().IsRunning(snapshot.PID) {
		fmt.Printf("Status: RUNNING (pid %d)\n", snapshot.PID)
	} else {
		fmt.Printf("Status: STALE (pid %d is gone, last snapshot below)\n", snapshot.PID)
	}

	fmt.Printf("Session: %s\n", snapshot.SessionID)
	fmt.Printf("State: %s\n", stateColor(snapshot.State)(snapshot.State))
	if snapshot.FinalWarningRemainingMs != nil {
		remaining := time.Duration(*snapshot.FinalWarningRemainingMs) * time.Millisecond
		fmt.Printf("Final warning: %s remaining\n", color.RedString(remaining.Round(time.Second).String()))
	}
	if snapshot.LastSampleAt > 0 {
		fmt.Printf("Last sample: %s ago\n", time.Since(time.UnixMilli(snapshot.LastSampleAt)).Round(time.Second))
	}
	if snapshot.LastHeartbeat > 0 {
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(time.Unix(snapshot.LastHeartbeat, 0)).Round(time.Second))
	}
	if snapshot.AppVersion != "" {
		fmt.Printf("Version: %s\n", snapshot.AppVersion)
	}
	fmt.Println("=======================")
	return nil
}

func runJudge(cmd *cobra.Command, args []string) error {
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	judge, err := buildJudge(logger, infra.NewRealClock(), nil)
	if err != nil {
		return err
	}

	title := args[0]
	process := ""
	if len(args) > 1 {
		process = args[1]
	}

	verdict := judge.Judge(cmd.Context(), title, process)
	if verdict == domain.VerdictDistraction {
		color.Red("%s", verdict)
	} else {
		color.Green("%s", verdict)
	}
	return nil
}

func runKill(cmd *cobra.Command, args []string) error {
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	pids, err := killTargets(args)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		fmt.Println("No matching processes.")
		return nil
	}

	terminator, err := buildTerminator(logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var failed int
	for _, pid := range pids {
		result := terminator.Terminate(ctx, pid)
		switch {
		case result.Err != nil:
			failed++
			logger.Warn("terminate failed", zap.Int("pid", pid), zap.Error(result.Err))
			fmt.Printf("%s pid %d: %v\n", color.RedString("FAILED"), pid, result.Err)
		case result.Forced:
			fmt.Printf("%s pid %d (forced)\n", color.YellowString("KILLED"), pid)
		default:
			fmt.Printf("%s pid %d\n", color.GreenString("TERMINATED"), pid)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d processes could not be terminated", failed, len(pids))
	}
	return nil
}

func killTargets(args []string) ([]int, error) {
	pm := infra.NewProcessManager()

	switch {
	case len(args) == 1:
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid pid %q", args[0])
		}
		return []int{pid}, nil

	case killName != "":
		return pm.FindByName(killName)

	case killPolicy != "":
		p, ok := policy.NewRegistry().Get(killPolicy)
		if !ok {
			return nil, fmt.Errorf("unknown policy %q (known: %v)", killPolicy, policy.NewRegistry().List())
		}
		seen := make(map[int]bool)
		var pids []int
		for _, pattern := range p.ProcessPatterns() {
			found, err := pm.FindByName(pattern)
			if err != nil {
				return nil, err
			}
			for _, pid := range found {
				if !seen[pid] {
					seen[pid] = true
					pids = append(pids, pid)
				}
			}
		}
		return pids, nil

	default:
		return nil, fmt.Errorf("give a pid, --name or --policy")
	}
}

func openCache() *infra.FileJudgeCache {
	return infra.NewFileJudgeCache(cfg.Cache.Path, cfg.Cache.TTL, zap.NewNop())
}

func runCacheList(cmd *cobra.Command, args []string) error {
	entries := openCache().Load()
	if len(entries) == 0 {
		fmt.Println("Judge cache is empty.")
		return nil
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERDICT\tAGE\tFRESH\tWINDOW\tPROCESS")
	for _, k := range keys {
		e := entries[k]
		title, process := domain.SplitJudgeCacheKey(k)
		age := now.Sub(time.UnixMilli(e.Timestamp))
		fresh := age < cfg.Cache.TTL
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", e.Verdict, age.Round(time.Second), fresh, title, process)
	}
	return w.Flush()
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	removed := openCache().Prune(time.Now())
	fmt.Printf("Removed %d stale entries.\n", removed)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if err := openCache().Clear(); err != nil {
		return err
	}
	fmt.Println("Judge cache cleared.")
	return nil
}

func runShameList(cmd *cobra.Command, args []string) error {
	if !cfg.EncryptShame() {
		fmt.Println("Shame records are only kept in the log (shame.encrypted is false).")
		return nil
	}
	if !infra.NewFileKeyProvider(cfg.Paths().ShameDBDir).KeyExists() {
		fmt.Println("No punishments recorded.")
		return nil
	}

	store, err := openShameStore(false)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), shameLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No punishments recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tREASON\tSESSION\tWINDOW")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.CreatedAt.Local().Format(time.DateTime), r.Reason, r.SessionID, r.WindowTitle)
	}
	return w.Flush()
}

var _ domain.Judge = (*usecase.JudgeClient)(nil)
