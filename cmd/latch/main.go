// Command latch is a thin command-line wrapper around the locking core:
// lock, unlock and check files from shell scripts, or hold a lock for the
// lifetime of a child command.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-latch/v1/latch"
)

var (
	flagStale    time.Duration
	flagUpdate   time.Duration
	flagRetries  int
	flagRealpath bool
)

func lockOptions() []latch.Option {
	opts := []latch.Option{
		latch.WithStale(flagStale),
		latch.WithRetries(flagRetries),
		latch.WithRealpath(flagRealpath),
	}
	if flagUpdate > 0 {
		opts = append(opts, latch.WithUpdate(flagUpdate))
	}
	return opts
}

func main() {
	manager := latch.New()

	root := &cobra.Command{
		Use:           "latch",
		Short:         "Advisory cross-process file locking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&flagStale, "stale", 10*time.Second,
		"threshold after which an unrefreshed lock counts as abandoned")
	root.PersistentFlags().DurationVar(&flagUpdate, "update", 0,
		"heartbeat interval (default: half the stale threshold)")
	root.PersistentFlags().IntVar(&flagRetries, "retries", 0,
		"extra acquisition attempts on contention")
	root.PersistentFlags().BoolVar(&flagRealpath, "realpath", true,
		"resolve symlinks and require the resource to exist")

	root.AddCommand(lockCmd(manager), unlockCmd(manager), checkCmd(manager), runCmd(manager))

	if err := root.Execute(); err != nil {
		if errors.Is(err, latch.ErrAlreadyLocked) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		log.Fatal(err)
	}
}

func lockCmd(manager *latch.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "lock FILE",
		Short: "Acquire the lock and leave its marker in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The marker outlives this process on purpose: without a
			// heartbeat it goes stale after --stale and gets reclaimed.
			h, err := manager.Acquire(cmd.Context(), args[0], lockOptions()...)
			if err != nil {
				return err
			}
			fmt.Println(h.MarkerPath())
			return nil
		},
	}
}

func unlockCmd(manager *latch.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock FILE",
		Short: "Force-remove the lock marker for FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := manager.Release(args[0], lockOptions()...)
			if errors.Is(err, latch.ErrNotOwned) {
				// Not ours in this process; remove the marker directly.
				return os.RemoveAll(args[0] + ".lock")
			}
			return err
		},
	}
}

func checkCmd(manager *latch.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Exit 0 if FILE is unlocked, 1 if locked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locked, err := manager.Check(cmd.Context(), args[0], lockOptions()...)
			if err != nil {
				return err
			}
			if locked {
				fmt.Println("locked")
				os.Exit(1)
			}
			fmt.Println("unlocked")
			return nil
		},
	}
}

func runCmd(manager *latch.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE -- CMD [ARGS...]",
		Short: "Hold the lock on FILE while CMD runs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, err := manager.Acquire(ctx, args[0], append(lockOptions(),
				latch.WithOnCompromised(func(err error) {
					log.Printf("lock compromised: %v", err)
					stop()
				}))...)
			if err != nil {
				return err
			}
			defer func() { _ = h.Release() }()

			child := exec.CommandContext(ctx, args[1], args[2:]...)
			child.Stdin = os.Stdin
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			return child.Run()
		},
	}
}
