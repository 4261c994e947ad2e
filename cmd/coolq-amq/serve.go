package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	coolqamq "github.com/fortunewang/coolq-amq"
	"github.com/fortunewang/coolq-amq/health"
	"github.com/fortunewang/coolq-amq/host"
)

const consoleHelp = `Type a host event to feed the bridge:
  private <from> <text>
  group <group> <from> <text>
  discuss <discuss> <from> <text>
  admin <group> <operand> set|unset
  join <group> <from> <operator> [invited]
Other commands: status, help, exit`

func newServeCommand(dir *string) *cobra.Command {
	var (
		account    int64
		verbose    bool
		healthAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge against a console bot engine",
		Long: `Run the bridge as if loaded by a bot host logged in as --account.
Lines typed on stdin become host events; sends requested over the broker
are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}

			engine := host.NewConsoleEngine(account, *dir, cmd.OutOrStdout())
			plugin, err := coolqamq.Enable(ctx, engine, 0, host.UTF8, coolqamq.WithLogLevel(level))
			if plugin == nil {
				return err
			}
			defer plugin.Bridge.Close()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "bridge is not running; events will be dropped")
			}

			registry := health.NewBridgeRegistry(plugin.Bridge)
			registry.SetMetadata("account", account)
			registry.SetMetadata("version", version)

			if healthAddr != "" {
				srv := startHealthServer(healthAddr, registry, plugin.Logger)
				defer func() {
					shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
					defer done()
					srv.Shutdown(shutdownCtx)
				}()
			}

			return runConsole(ctx, cmd.OutOrStdout(), plugin.Callbacks, registry)
		},
	}

	cmd.Flags().Int64VarP(&account, "account", "a", 12345, "Bot account the console engine is logged in as")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Write debug entries to the log")
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "Serve /health on this address, e.g. :8080")
	return cmd
}

func startHealthServer(addr string, registry *health.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/health", health.NewHandler(registry, 5*time.Second))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server stopped", "error", err)
		}
	}()
	logger.Info("health endpoint listening", "addr", addr)
	return srv
}

// lineReader yields console lines until io.EOF
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

type readlineReader struct {
	rl *readline.Instance
}

func (r *readlineReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}

type bufioReader struct {
	r      *bufio.Reader
	out    io.Writer
	prompt string
}

func (r *bufioReader) ReadLine() (string, error) {
	fmt.Fprint(r.out, r.prompt)
	line, err := r.r.ReadString('\n')
	if err != nil && line != "" {
		return line, nil
	}
	return line, err
}

func (r *bufioReader) Close() error {
	return nil
}

func newLineReader(out io.Writer) lineReader {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "coolq> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".coolq_amq_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(out, "Error initializing readline: %v\n", err)
		fmt.Fprintln(out, "Falling back to simple input mode...")
		return &bufioReader{r: bufio.NewReader(os.Stdin), out: out, prompt: "coolq> "}
	}
	return &readlineReader{rl: rl}
}

func runConsole(ctx context.Context, out io.Writer, cb *host.Callbacks, registry *health.Registry) error {
	reader := newLineReader(out)
	defer reader.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := reader.ReadLine()
			if err != nil {
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if stop := handleConsoleLine(ctx, out, cb, registry, line); stop {
				return nil
			}
		}
	}
}

// handleConsoleLine runs one console input; it returns true on exit
func handleConsoleLine(ctx context.Context, out io.Writer, cb *host.Callbacks, registry *health.Registry, line string) bool {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return false
	case "exit", "quit":
		fmt.Fprintln(out, "Goodbye!")
		return true
	case "help":
		fmt.Fprintln(out, consoleHelp)
		return false
	case "status":
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(registry.Check(checkCtx)); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		return false
	}

	if err := host.ParseConsoleLine(ctx, cb, input); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	return false
}
