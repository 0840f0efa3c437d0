package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/sym"
	"github.com/teranos/tempo/temporal/engine"
	"github.com/teranos/tempo/version"
)

// RunCmd starts the scheduling loop in the foreground
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: sym.Pulse + " Start the scheduling loop",
	Long: sym.Pulse + ` Start the scheduling loop in the foreground.

The loop evaluates every enabled automation each poll interval and fires
the ones inside their window. With engine.cron_trigger the cron trigger
fires them at their exact minute as well; with engine.watch_store rows
written by another process are picked up without a restart.

Runs until interrupted (Ctrl+C). A second Ctrl+C exits immediately.

Examples:
  tempo run          # Start the loop
  tempo run -v       # With execution logs
  tempo run --once   # Run a single evaluation pass and exit`,
	RunE: runRun,
}

func init() {
	RunCmd.Flags().Bool("once", false, "Run one evaluation pass and exit")
}

func runRun(cmd *cobra.Command, args []string) error {
	once, _ := cmd.Flags().GetBool("once")
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 && !once {
		verbosity = logger.VerbosityInfo
		if err := InitLogging(verbosity); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := openSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	unsubscribe := s.engine.Subscribe(func(res engine.Result) {
		if res.Ran() {
			printResult(&res, verbosity)
		}
	})
	defer unsubscribe()

	if once {
		return s.engine.Tick(ctx)
	}

	if logger.ShouldOutput(verbosity, logger.OutputStartup) {
		printBanner(s, verbosity)
	}
	if err := s.engine.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	pterm.Info.Println("Stopping scheduling loop (press Ctrl+C again to force)...")
	stopped := make(chan struct{})
	go func() {
		s.engine.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		pterm.Success.Printf("%s Scheduling loop stopped\n", sym.PulseClose)
		return nil
	case <-sigChan:
		pterm.Warning.Println("Force shutdown")
		os.Exit(1)
		return nil
	}
}

func printBanner(s *session, verbosity int) {
	info := version.Get()
	st, err := s.engine.Status(context.Background())

	pterm.DefaultHeader.WithFullWidth().Println(sym.PulseOpen + " tempo " + info.Version)
	pterm.Printf("%s %s (commit %s)\n", pterm.Gray("Version:  "), info.Version, info.Short())
	pterm.Printf("%s %s\n", pterm.Gray("Database: "), s.dbPath)
	pterm.Printf("%s %s\n", pterm.Gray("Timezone: "), s.engine.Location())
	pterm.Printf("%s every %s, window ±%s\n", pterm.Gray("Poll:     "), s.cfg.PollInterval(), s.cfg.Tolerance())
	pterm.Printf("%s %s\n", pterm.Gray("Logging:  "), logger.LevelName(verbosity))
	if err == nil {
		pterm.Printf("%s %d enabled of %d\n", pterm.Gray("Events:   "), st.EnabledEvents, st.TotalEvents)
		if st.Next != nil {
			pterm.Printf("%s %s at %s (in %s)\n", pterm.Gray("Next:     "),
				st.Next.Event.Name, st.Next.At.Format(timeLayout), formatDuration(st.Next.In))
		}
	}
	fmt.Println()
	pterm.Info.Println("Press Ctrl+C to stop")
}
