// hearthd — the local chat daemon behind the Hearth desktop UI.
// Owns the conversation store, backend credentials and provider streaming;
// the UI process talks to it over a loopback HTTP API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthchat/hearth/internal/api"
	"github.com/hearthchat/hearth/internal/domain/auth"
	"github.com/hearthchat/hearth/internal/domain/chat"
	"github.com/hearthchat/hearth/internal/domain/conversation"
	"github.com/hearthchat/hearth/internal/infra/attachments"
	"github.com/hearthchat/hearth/internal/infra/backends"
	"github.com/hearthchat/hearth/internal/infra/config"
	"github.com/hearthchat/hearth/internal/infra/eventbus"
	"github.com/hearthchat/hearth/internal/infra/sqlite"
	"github.com/hearthchat/hearth/internal/provider"
	"github.com/hearthchat/hearth/internal/server"
	"github.com/hearthchat/hearth/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("hearthd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	port := fs.Int("port", server.DefaultConfig().Port, "Listen port (loopback only)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp {
		printHelp(out)
		return 0
	}

	if err := serve(*port); err != nil {
		log.Printf("hearthd: %v", err)
		return 1
	}
	return 0
}

func serve(port int) error {
	cfg := config.Load()

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := sqlite.MigrateUp(db); err != nil {
		db.Close()
		return err
	}

	registry, err := backends.Load(cfg.BackendsPath, cfg.CredentialSecret)
	if err != nil {
		db.Close()
		return err
	}

	// Session tokens are signed with an ephemeral secret unless the user pins
	// one; existing sessions then simply re-pair after a daemon restart.
	if os.Getenv("HEARTH_SESSION_SECRET") == "" {
		secret, err := randomHex(32)
		if err != nil {
			db.Close()
			return err
		}
		os.Setenv("HEARTH_SESSION_SECRET", secret) //nolint:errcheck
	}

	pairingCode := cfg.PairingCode
	if pairingCode == "" {
		pairingCode, err = randomPairingCode()
		if err != nil {
			db.Close()
			return err
		}
	}
	pairing, err := auth.NewService(pairingCode)
	if err != nil {
		db.Close()
		return err
	}
	log.Printf("pairing code: %s", pairingCode)

	store := conversation.NewService(db)
	bus := eventbus.New()
	reader := attachments.NewReader(cfg.AttachmentsDir)
	orchestrator := chat.NewOrchestrator(
		store,
		registry,
		provider.NewRegistry(),
		bus,
		&http.Client{},
		reader.ReadImages,
		chat.NewInflightRegistry(),
	)

	router := api.NewRouter(api.Deps{
		Pairing:       pairing,
		Conversations: store,
		TitleStore:    store,
		Orchestrator:  orchestrator,
		Backends:      registry,
		Bus:           bus,
	})

	serverCfg := server.DefaultConfig()
	serverCfg.Port = port
	srv := server.NewServer(router, db, serverCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

// randomPairingCode returns a code like "483-921".
func randomPairingCode() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}
	n := binary.BigEndian.Uint32(buf[:]) % 1_000_000
	return fmt.Sprintf("%03d-%03d", n/1000, n%1000), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func printHelp(out io.Writer) {
	helpText := `hearthd - local chat daemon for the Hearth desktop UI

Usage:
  hearthd [options]

Options:
  --version    Show version information
  --help       Show this help message
  --port       Listen port on 127.0.0.1 (default 8787)

Environment:
  HEARTH_DB_PATH            SQLite database path
  HEARTH_BACKENDS_PATH      Backend registry YAML path
  HEARTH_ATTACHMENTS_DIR    Attachment files root
  HEARTH_CREDENTIAL_SECRET  Master secret for API key encryption
  HEARTH_PAIRING_CODE       Fixed pairing code (random when unset)
  HEARTH_SESSION_SECRET     Session signing secret (ephemeral when unset)`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
