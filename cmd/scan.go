package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/user"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Verify scanned QR codes read from stdin",
	Long: `Read decoded QR text from stdin, one frame per line, and verify each document payload.
Frames arriving faster than scan.frame_interval are dropped; lines that are not document
payloads are discarded. Scanning stops after each verified code unless --keep-scanning is set.`,
	RunE: runScan,
}

var (
	scanUserID       string
	scanKeepScanning bool
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := setupLogger(cfg)
	wf := newWorkflowDeps(cfg, lg)
	defer wf.Bus.Wait()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = internal.ContextWithSessionID(ctx, "cli-scan")

	identity := user.NewIdentity(scanUserID)
	if err := wf.Resolver.Ensure(ctx, &identity); err != nil {
		return fmt.Errorf("cannot scan for user %q: %w", scanUserID, err)
	}

	session := &scanSession{
		coordinator: scan.NewCoordinator(wf.Client, wf.Bus, cfg.Scan.FrameInterval, lg).ClientThrottled(),
		throttle:    scan.NewFrameThrottle(cfg.Scan.FrameInterval),
		identity:    identity,
		state:       scan.NewVerificationState(),
		keep:        scanKeepScanning,
		out:         cmd.OutOrStdout(),
	}
	return session.run(ctx, cmd.InOrStdin())
}

// scanSession feeds stdin lines to the verification coordinator as frames.
type scanSession struct {
	coordinator *scan.Coordinator
	throttle    *scan.FrameThrottle
	identity    user.Identity
	state       scan.VerificationState
	keep        bool
	out         io.Writer
}

func (s *scanSession) run(ctx context.Context, in io.Reader) error {
	if err := s.coordinator.Start(&s.state, s.identity); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "scanning; one decoded frame per line")

	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		text := strings.TrimSpace(lines.Text())
		if text == "" || !s.throttle.Allow() {
			continue
		}

		outcome, err := s.coordinator.Verify(ctx, &s.state, s.identity, text)
		switch {
		case errors.Is(err, internal.ErrMalformedPayload):
			continue
		case err != nil:
			return err
		}

		if outcome.Accepted {
			fmt.Fprintf(s.out, "accepted %s: %s\n", outcome.DocumentID, outcome.Message)
		} else {
			fmt.Fprintf(s.out, "rejected %s: %s\n", outcome.DocumentID, outcome.Message)
		}

		if !s.keep {
			return nil
		}
		if err := s.coordinator.Start(&s.state, s.identity); err != nil {
			return err
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("read frames: %w", err)
	}

	s.coordinator.Stop(&s.state)
	if s.state.Discarded > 0 {
		fmt.Fprintf(s.out, "discarded %d frames that were not document codes\n", s.state.Discarded)
	}
	return nil
}

func init() {
	scanCmd.Flags().StringVarP(&scanUserID, "user", "u", "", "id of the scanning user")
	scanCmd.Flags().BoolVar(&scanKeepScanning, "keep-scanning", false, "start scanning again after each verified code")
	_ = scanCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(scanCmd)
}
