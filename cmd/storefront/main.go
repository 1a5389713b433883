// storefront is a command-line shop client: it keeps the login session,
// the cart and the order history in step with the commerce backend.
//
// Usage:
//
//	storefront login <username> [password]   Log in (password prompted when omitted)
//	storefront logout                        Forget the session and staged cart
//	storefront register <username> [password]
//	storefront whoami                        Show the session and token expiry
//	storefront products [-category c] [query]
//	storefront product <id>
//	storefront cart                          Show the cart
//	storefront add <product-id>              Add one unit
//	storefront set <item-id> <quantity>      Quantity below 1 removes the item
//	storefront remove <item-id>
//	storefront checkout stage                Check stock and stage the cart for payment
//	storefront checkout quote [-delivery]
//	storefront checkout place -mpesa <code> [-delivery] -first ... (see -h)
//	storefront orders [code-filter]
//	storefront track <order-id>
//	storefront cancel <order-id>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dwikikusuma/shoping-storefront/pkg/config"
	"github.com/dwikikusuma/shoping-storefront/pkg/logger"
	"github.com/dwikikusuma/shoping-storefront/pkg/shutdown"
	"github.com/dwikikusuma/shoping-storefront/pkg/tracing"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd, args, configPath := parseArgs(os.Args[1:])

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}
	if cmd == "version" || cmd == "--version" {
		fmt.Printf("storefront version %s\n", version)
		return
	}

	cfg := config.Load()
	if configPath != "" {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
			os.Exit(1)
		}
	}

	log := logger.New(logger.Options{Service: "storefront", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, "storefront", version, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing disabled", slog.Any("err", err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	c := &cli{
		cfg:    cfg,
		log:    log,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	err = c.run(ctx, cmd, args)

	if terr := shutdownTracing(context.Background()); terr != nil {
		log.Warn("flushing traces failed", slog.Any("err", terr))
	}

	if err != nil {
		code, msg := describeError(err)
		fmt.Fprintf(os.Stderr, "storefront: %s\n", msg)
		os.Exit(code)
	}
}

// parseArgs pulls the subcommand and --config out of argv.
func parseArgs(raw []string) (command string, args []string, configPath string) {
	configPath = os.Getenv("STOREFRONT_CONFIG")

	var filtered []string
	for i := 0; i < len(raw); i++ {
		if raw[i] == "--config" && i+1 < len(raw) {
			configPath = raw[i+1]
			i++
			continue
		}
		filtered = append(filtered, raw[i])
	}

	if len(filtered) == 0 {
		return "", nil, configPath
	}
	return filtered[0], filtered[1:], configPath
}

func printUsage() {
	fmt.Printf(`storefront %s

Usage:
  storefront [--config <path>] <command> [arguments]

Commands:
  login <username> [password]      Log in; the password is prompted when omitted
  logout                           Forget the session and the staged cart
  register <username> [password]   Create an account
  whoami                           Show who is logged in and when the token expires
  products [-category c] [query]   List products, optionally filtered
  product <id>                     Show one product
  cart                             Show the cart
  add <product-id>                 Add one unit of a product
  set <item-id> <quantity>         Change a quantity (below 1 removes the item)
  remove <item-id>                 Remove an item
  checkout stage                   Check stock and stage the cart for payment
  checkout quote [-delivery]       Price the staged cart
  checkout place [flags]           Place the order (see: storefront checkout place -h)
  orders [code-filter]             List orders
  track <order-id>                 Show an order's status
  cancel <order-id>                Cancel a pending order
  version                          Print the version

Environment:
  STOREFRONT_CONFIG             YAML config file (same as --config)
  BACKEND_URL                   Backend base URL (default http://127.0.0.1:8000)
  STORAGE_DRIVER                file, memory or redis (default file)
  STORAGE_PATH, REDIS_ADDR      Where the session is kept
  LOG_LEVEL, APP_ENV            Logging
  OTEL_EXPORTER_OTLP_ENDPOINT   Export traces over OTLP/gRPC
`, version)
}
