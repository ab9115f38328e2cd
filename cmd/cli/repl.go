package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/client"
	"github.com/vpnda/statement-relay/pkg/config"
	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/utils"
)

type replState struct {
	ui  *client.Client
	out io.Writer
	// downloads are written here
	dir string

	accounts   []models.Account
	statements map[string][]models.Statement
}

func initReplState() (*replState, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}
	return newReplState(client.New(cfg.Coordinator.URL, nil), os.Stdout, "."), nil
}

func newReplState(ui *client.Client, out io.Writer, dir string) *replState {
	return &replState{
		ui:         ui,
		out:        out,
		dir:        dir,
		statements: map[string][]models.Statement{},
	}
}

func runREPL(ctx context.Context, r *replState, in io.Reader) {
	fmt.Fprintln(r.out, "Welcome to the statement relay REPL!")
	fmt.Fprintln(r.out, "Type 'exit' or 'quit' to exit, 'help' for commands.")
	fmt.Fprintln(r.out)

	r.showBank(ctx)

	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(r.out, "> ")

		if !scanner.Scan() {
			break
		}

		trimmedLine := strings.TrimSpace(scanner.Text())

		if trimmedLine == "" {
			continue
		}

		if trimmedLine == "exit" || trimmedLine == "quit" {
			break
		}

		parts := strings.Fields(trimmedLine)
		switch parts[0] {
		case "help":
			printHelp(r.out)
		case "config":
			showConfig()
		case "bank":
			r.showBank(ctx)
		case "accounts", "a":
			r.listAccounts(ctx, parts[1:])
		case "statements", "s":
			r.listStatements(ctx, parts[1:])
		case "download", "d":
			r.downloadStatement(ctx, parts[1:])
		case "clear":
			r.clearCache(ctx)
		case "fetch":
			r.fetchURL(ctx, parts[1:])
		case "tabs":
			r.listTabs(ctx)
		case "activate":
			r.activateTab(ctx, parts[1:])
		default:
			fmt.Fprintf(r.out, "Unknown command %q. Type 'help' for commands.\n", parts[0])
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Error reading input")
	}
}

// printError renders an operation failure. Unsupported operations are an
// explanation, not something to retry.
func (r *replState) printError(op string, err error) {
	switch {
	case bank.KindOf(err) == bank.KindNotSupported:
		fmt.Fprintf(r.out, "%s is not available: %v\n", op, err)
	case bank.Retryable(err):
		fmt.Fprintf(r.out, "%s failed: %v (try again)\n", op, err)
	default:
		fmt.Fprintf(r.out, "%s failed: %v\n", op, err)
	}
}

func (r *replState) showBank(ctx context.Context) {
	name, err := r.ui.GetBankName(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "No bank available: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "Connected to %s\n", name)
}

// parseIndex reads a 1-based index into a list of n items.
func parseIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("index %d out of range 1-%d", i, n)
	}
	return i - 1, nil
}

func forceRefresh(args []string) bool {
	for _, a := range args {
		if a == "-f" || a == "--force" {
			return true
		}
	}
	return false
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Available commands:")
	fmt.Fprintln(out, "  help                      - Show this help message")
	fmt.Fprintln(out, "  config                    - Show the current configuration")
	fmt.Fprintln(out, "  bank                      - Show the bank of the active tab")
	fmt.Fprintln(out, "  accounts [-f]             - List accounts, -f bypasses the cache")
	fmt.Fprintln(out, "  statements <n> [-f]       - List statements of account n")
	fmt.Fprintln(out, "  download <n> <m>          - Save statement m of account n as a PDF")
	fmt.Fprintln(out, "  clear                     - Clear the coordinator cache")
	fmt.Fprintln(out, "  fetch <url>               - Fetch a url through the coordinator proxy")
	fmt.Fprintln(out, "  tabs                      - List connected tabs")
	fmt.Fprintln(out, "  activate <id>             - Route requests to the given tab")
	fmt.Fprintln(out, "  exit, quit                - Exit the REPL")
}

// showConfig displays the current configuration
func showConfig() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Error().Err(err).Msg("Error loading configuration")
		return
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Listen:          %s\n", cfg.Coordinator.Listen)
	fmt.Printf("Coordinator URL: %s\n", cfg.Coordinator.URL)
	fmt.Printf("Cache TTL:       %s\n", cfg.Coordinator.CacheTTL)
	fmt.Printf("Request timeout: %s\n", cfg.Coordinator.RequestTimeout)
	fmt.Printf("Allowed origins: %s\n", strings.Join(cfg.Coordinator.AllowedOrigins, ", "))
	fmt.Printf("Proxy hosts:     %s\n", strings.Join(cfg.Coordinator.ProxyHosts, ", "))
	fmt.Printf("Tab page:        %s\n", cfg.Tab.PageURL)
	for name, value := range cfg.Tab.Cookies {
		fmt.Printf("  cookie %s: %s\n", name, utils.MaskSecret(value))
	}
	if cfg.Tab.CurlFile != "" {
		fmt.Printf("Tab curl file:   %s\n", cfg.Tab.CurlFile)
	}
	fmt.Printf("Log level:       %s\n", cfg.Log.Level)
}
