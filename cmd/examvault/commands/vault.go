// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/examvault/cmd/examvault/cli"
	"github.com/bureau-foundation/examvault/lib/clock"
	"github.com/bureau-foundation/examvault/lib/config"
	"github.com/bureau-foundation/examvault/lib/entity"
	"github.com/bureau-foundation/examvault/lib/exchange"
	"github.com/bureau-foundation/examvault/lib/objcodec"
	"github.com/bureau-foundation/examvault/lib/objstore"
	"github.com/bureau-foundation/examvault/lib/secret"
	"github.com/bureau-foundation/examvault/lib/tenantkey"
)

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
}

func (g *globalFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&g.configPath, "config", "c", "", "config file (default: $"+config.EnvVar+")")
	flagSet.BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")
}

// loadConfig loads and validates the configuration selected by flags
// and builds the logger it describes.
func loadConfig(flags globalFlags) (*config.Config, *slog.Logger, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cli.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if flags.verbose {
		level = slog.LevelDebug
	}
	return cfg, cli.NewLogger(cfg.Log.Format, level), nil
}

// vault is the assembled runtime of one command invocation.
type vault struct {
	config   *config.Config
	logger   *slog.Logger
	ring     *tenantkey.Ring
	store    *objstore.Store
	catalog  *entity.Catalog
	exchange *exchange.Service
}

// openVault loads configuration and key material and builds the
// store, catalog and exchange service.
func openVault(flags globalFlags) (*vault, error) {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	compression, err := objcodec.ParseCompression(cfg.Store.Compression)
	if err != nil {
		return nil, err
	}
	master, err := secret.ReadKeyFile(cfg.Keys.MasterKeyFile, tenantkey.KeySize)
	if err != nil {
		return nil, err
	}
	ring, err := tenantkey.NewRing(master)
	if err != nil {
		master.Close()
		return nil, err
	}

	store, err := objstore.New(objstore.Config{
		Root:          cfg.Paths.Root,
		Codec:         objcodec.New(ring, compression),
		CacheCapacity: cfg.Store.CacheCapacity,
		IOConcurrency: cfg.Store.IOConcurrency,
		Logger:        logger.With("component", "store"),
	})
	if err != nil {
		ring.Close()
		return nil, err
	}
	catalog := entity.NewCatalog(store, clock.Real(), logger.With("component", "catalog"))
	service, err := exchange.New(exchange.Config{
		Catalog:          catalog,
		StagingDir:       cfg.StagingDir(),
		KeyID:            ring.KeyID(),
		IOConcurrency:    cfg.Exchange.IOConcurrency,
		ScryptWorkFactor: cfg.Exchange.ScryptWorkFactor,
		Logger:           logger.With("component", "exchange"),
	})
	if err != nil {
		ring.Close()
		return nil, err
	}

	logger.Debug("vault opened", "root", cfg.Paths.Root, "compression", compression.String(), "key_id", ring.KeyID())
	return &vault{
		config:   cfg,
		logger:   logger,
		ring:     ring,
		store:    store,
		catalog:  catalog,
		exchange: service,
	}, nil
}

// Close waits for detached exchange operations, flushes pending
// writes and releases the master key.
func (v *vault) Close() error {
	v.exchange.Wait()
	flushErr := v.store.Flush()
	if flushErr != nil {
		v.logger.Error("flushing store failed", "error", flushErr)
	}
	return errors.Join(flushErr, v.ring.Close())
}

// withVault runs fn against an opened vault under a context cancelled
// by SIGINT or SIGTERM, and closes the vault afterwards.
func withVault(flags globalFlags, fn func(ctx context.Context, v *vault) error) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := openVault(flags)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, v.Close())
	}()
	return fn(ctx, v)
}

// passphraseFlags select where a bundle passphrase comes from.
type passphraseFlags struct {
	file   string
	prompt bool
}

func (p *passphraseFlags) add(flagSet *pflag.FlagSet, purpose string) {
	flagSet.StringVar(&p.file, "passphrase-file", "", purpose+" with the passphrase in this file")
	flagSet.BoolVar(&p.prompt, "ask-passphrase", false, purpose+" with a passphrase typed at the terminal")
}

// read returns the selected passphrase, or "" when none was requested.
// confirm asks twice when prompting.
func (p passphraseFlags) read(confirm bool) (string, error) {
	switch {
	case p.file != "" && p.prompt:
		return "", fmt.Errorf("--passphrase-file and --ask-passphrase are mutually exclusive")
	case p.file != "":
		return readPassphrase(p.file)
	case p.prompt:
		return promptPassphrase(int(os.Stdin.Fd()), confirm)
	}
	return "", nil
}

// readPassphrase reads a passphrase from path, dropping one trailing
// line ending.
func readPassphrase(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading passphrase file: %w", err)
	}
	passphrase := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
	if passphrase == "" {
		return "", fmt.Errorf("passphrase file %s is empty", path)
	}
	return passphrase, nil
}

func promptPassphrase(fd int, confirm bool) (string, error) {
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--ask-passphrase needs a terminal on stdin; use --passphrase-file")
	}
	ask := func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(data), nil
	}
	passphrase, err := ask("Passphrase: ")
	if err != nil {
		return "", err
	}
	if passphrase == "" {
		return "", fmt.Errorf("empty passphrase")
	}
	if confirm {
		again, err := ask("Repeat passphrase: ")
		if err != nil {
			return "", err
		}
		if again != passphrase {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return passphrase, nil
}
