// voteguard is the guardian and coordinator CLI of the election node. It
// drives the key ceremony, tallying and threshold decryption against the
// bulletin board, and can serve the board over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/voteguard/voteguard-node/api"
	"github.com/voteguard/voteguard-node/board"
	"github.com/voteguard/voteguard-node/db"
	"github.com/voteguard/voteguard-node/db/pebbledb"
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/keystore"
	"github.com/voteguard/voteguard-node/log"
)

func main() {
	cfg, args, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output)
	log.Infow("starting voteguard", "version", Version)

	if len(args) != 1 {
		flag.Usage()
		os.Exit(1)
	}

	n, err := newNode(cfg)
	if err != nil {
		log.Fatalf("failed to set up node: %v", err)
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Warnw("failed to close node", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.run(ctx, args[0]); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

// node bundles the collaborators every command works against.
type node struct {
	cfg      *Config
	database db.Database
	board    board.Board
	approver Approver

	ks *keystore.Store // opened lazily, only by commands that need secrets
}

func newNode(cfg *Config) (*node, error) {
	database, err := pebbledb.New(db.Options{Path: filepath.Join(cfg.Datadir, "db")})
	if err != nil {
		return nil, err
	}
	n := &node{
		cfg:      cfg,
		database: database,
		board:    board.NewStore(database),
	}
	if yes, _ := flag.CommandLine.GetBool("yes"); yes {
		n.approver = autoApprover{}
	} else {
		n.approver = newPromptApprover(os.Stdin, os.Stderr)
	}
	return n, nil
}

func (n *node) Close() error {
	return n.database.Close()
}

func (n *node) run(ctx context.Context, command string) error {
	switch command {
	case "serve":
		return n.serve(ctx)
	case "keygen":
		return n.keygen(ctx)
	case "shares":
		return n.shares(ctx)
	case "validate":
		return n.validate(ctx)
	case "combine":
		return n.combine(ctx)
	case "tally":
		return n.tally(ctx)
	case "decrypt-share":
		return n.decryptShare(ctx)
	case "decrypt-respond":
		return n.decryptRespond(ctx)
	case "finalize":
		return n.finalize(ctx)
	case "verify":
		return n.verify(ctx)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (n *node) serve(ctx context.Context) error {
	if _, err := api.New(&api.Config{
		Host:  n.cfg.API.Host,
		Port:  n.cfg.API.Port,
		Board: n.board,
	}); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// keystore unlocks the local secret store on first use.
func (n *node) keystore() (*keystore.Store, error) {
	if n.ks != nil {
		return n.ks, nil
	}
	if n.cfg.Keystore.Password == "" {
		return nil, fmt.Errorf("keystore password not set (VOTEGUARD_KEYSTORE_PASSWORD)")
	}
	ks, err := keystore.Open(n.database, []byte(n.cfg.Keystore.Password))
	if err != nil {
		return nil, err
	}
	n.ks = ks
	return ks, nil
}

// approve gates a board write on operator approval. Reject and Abort both
// stop the command; the distinction is logged for the operator.
func (n *node) approve(ctx context.Context, action string) error {
	decision, err := n.approver.Approve(ctx, action)
	if err != nil {
		return err
	}
	switch decision {
	case Approve:
		return nil
	case Reject:
		return fmt.Errorf("step rejected: %s", action)
	default:
		return fmt.Errorf("flow aborted at: %s", action)
	}
}

// loadParameters reads and validates the canonical parameters artifact.
func (n *node) loadParameters() (*election.Parameters, error) {
	if n.cfg.Election.ParametersPath == "" {
		return nil, fmt.Errorf("election.parameters path not set")
	}
	data, err := os.ReadFile(n.cfg.Election.ParametersPath)
	if err != nil {
		return nil, err
	}
	params := &election.Parameters{}
	if err := json.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("parse parameters: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// loadManifest reads and validates the canonical manifest artifact.
func (n *node) loadManifest() (*election.Manifest, error) {
	if n.cfg.Election.ManifestPath == "" {
		return nil, fmt.Errorf("election.manifest path not set")
	}
	data, err := os.ReadFile(n.cfg.Election.ManifestPath)
	if err != nil {
		return nil, err
	}
	manifest := &election.Manifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}
