package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/benjaminesse/DroneSpec"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "watch":
		err = watchCommand(os.Args[2:])
	case "start":
		err = markerCommand(os.Args[2:], true)
	case "stop":
		err = markerCommand(os.Args[2:], false)
	case "pull":
		err = pullCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("dronespec %s: %v", cmd, err)
	}
}

// connect loads the operator config, applies connection flags on top, saves
// the merged result back, and opens a session against the unit.
func connect(ctx context.Context, fs *flag.FlagSet, args []string) (*dronespec.GroundSession, error) {
	cfgPath := fs.String("config", "./operator.yaml", "Path to operator configuration file")
	host := fs.String("host", "", "Unit address (overrides config)")
	user := fs.String("user", "", "SSH user (overrides config)")
	password := fs.String("password", "", "SSH password (or DRONESPEC_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	op, err := dronespec.LoadOperator(*cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load operator config: %w", err)
	}
	if *host != "" {
		op.Host = *host
	}
	if *user != "" {
		op.Username = *user
	}
	op.Password = *password
	if op.Password == "" {
		op.Password = os.Getenv("DRONESPEC_PASSWORD")
	}

	if op.Host == "" {
		return nil, fmt.Errorf("no unit address: set -host or edit %s", *cfgPath)
	}

	if err := op.Save(*cfgPath); err != nil {
		return nil, fmt.Errorf("save operator config: %w", err)
	}

	session, err := dronespec.Connect(ctx, op)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := connect(ctx, fs, args)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("watching run folder %s (Ctrl+C to stop)\n", session.Folder())

	if err := session.Start(ctx); err != nil {
		return err
	}

	mon := session.Monitor()
	go mon.Run(ctx)

	for ev := range mon.Events() {
		switch e := ev.(type) {
		case dronespec.PlotUpdate:
			last := len(e.SO2) - 1
			fmt.Printf("%d rows, latest SO2 %.1f ppm.m at (%.5f, %.5f)\n",
				len(e.SO2), e.SO2[last], e.Lat[last], e.Lon[last])
		case dronespec.LogUpdate:
			for _, line := range e.Lines {
				fmt.Println("unit:", line)
			}
		case dronespec.StatusUpdate:
			// Cycle progress; too chatty for the terminal.
		case dronespec.SyncFailure:
			fmt.Fprintf(os.Stderr, "sync failure: %v\n", e.Err)
		case dronespec.Completed:
			// Channel closes right after; fall out of the loop.
		}
	}

	// Leave the unit stopped, matching the state we connected into.
	stopCtx := context.Background()
	return session.Stop(stopCtx)
}

func markerCommand(args []string, start bool) error {
	name := "stop"
	if start {
		name = "start"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session, err := connect(ctx, fs, args)
	if err != nil {
		return err
	}
	defer session.Close()

	if start {
		return session.Start(ctx)
	}
	return session.Stop(ctx)
}

func pullCommand(args []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	what := fs.String("what", "all", "What to pull: ledger, log, audit, spectra, all")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session, err := connect(ctx, fs, args)
	if err != nil {
		return err
	}
	defer session.Close()

	sc := session.SyncClient(0, true)

	pullLedger := func() error {
		if _, err := sc.SyncLedger(ctx); err != nil {
			return fmt.Errorf("pull ledger: %w", err)
		}
		fmt.Println("pulled ledger")
		return nil
	}
	pullLog := func() error {
		if err := sc.SyncLog(ctx); err != nil {
			return fmt.Errorf("pull log: %w", err)
		}
		fmt.Println("pulled log")
		return nil
	}
	pullFiles := func(kind string, f func(context.Context) ([]string, error)) error {
		files, err := f(ctx)
		if err != nil {
			return fmt.Errorf("pull %s: %w", kind, err)
		}
		fmt.Printf("pulled %d new %s files\n", len(files), kind)
		return nil
	}

	for _, kind := range strings.Split(*what, ",") {
		switch strings.TrimSpace(kind) {
		case "ledger":
			if err := pullLedger(); err != nil {
				return err
			}
		case "log":
			if err := pullLog(); err != nil {
				return err
			}
		case "audit":
			if err := pullFiles("audit", sc.SyncAudit); err != nil {
				return err
			}
		case "spectra":
			if err := pullFiles("spectra", sc.SyncSpectra); err != nil {
				return err
			}
		case "all":
			if err := pullLedger(); err != nil {
				return err
			}
			if err := pullLog(); err != nil {
				return err
			}
			if err := pullFiles("audit", sc.SyncAudit); err != nil {
				return err
			}
			if err := pullFiles("spectra", sc.SyncSpectra); err != nil {
				return err
			}
			fmt.Printf("replica at %s\n", session.LocalDir())
		default:
			return fmt.Errorf("unknown pull target %q", kind)
		}
	}
	return nil
}

func printUsage() {
	fmt.Println(`Usage: dronespec <command> [flags]

Commands:
  watch   Connect, start acquisition, and stream live results
  start   Raise the acquisition marker and exit
  stop    Remove the acquisition marker and exit
  pull    Replicate run artifacts (ledger, log, audit, spectra)
  help    Show this message

Connection settings persist in the operator config file; the SSH password
comes from -password or the DRONESPEC_PASSWORD environment variable.

Run "dronespec <command> -h" for command flags.`)
}
