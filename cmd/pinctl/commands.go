package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"pinworld/internal/config"
	"pinworld/internal/database"
	"pinworld/internal/database/migration"
	"pinworld/internal/feed"
	"pinworld/internal/model"
	"pinworld/internal/pinstore"
	"pinworld/internal/repository"
	"pinworld/internal/repository/memory"
	"pinworld/internal/repository/postgres"
	"pinworld/internal/session"
	"pinworld/internal/upload"
)

const usage = `usage: pinctl <command> [flags]

commands:
  watch                         stream pin snapshots as JSON lines
  add -data JSON                add a pin, print its id
  update -id ID -data JSON      merge fields into a pin
  delete -id ID                 delete a pin
  upload FILE...                upload images through the relay, print URLs
  useradd -email E -password P  create an editor account
  login -email E -password P    check an editor's credentials, print the session
  whoami -token T               resume a session from a login token
  migrate                       create the database schema
`

var errUsage = errors.New("invalid usage")

// backend is what the pin commands run against.
type backend struct {
	pins    repository.PinRepository
	changes feed.ChangeFeed
	users   repository.UserRepository
	close   func()
}

// openBackend is replaced in tests.
var openBackend = func(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*backend, error) {
	if cfg.Pins.Backend == config.PinsMemory {
		coll := memory.NewCollection()
		return &backend{pins: coll, changes: coll, close: func() {}}, nil
	}

	db, err := database.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, log, cfg.Pins.NotifyChannel); err != nil {
		_ = db.Close()
		return nil, err
	}
	dsn, err := database.BuildPostgresDSN(cfg.Database)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{
		pins:    postgres.NewPinPostgres(db),
		changes: feed.NewPGListener(dsn, cfg.Pins.NotifyChannel, log),
		users:   postgres.NewUserPostgres(db),
		close:   func() { _ = db.Close() },
	}, nil
}

func run(ctx context.Context, args []string, out io.Writer, cfg *config.AppConfig, log *zap.Logger) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	id := fs.String("id", "", "pin id")
	data := fs.String("data", "{}", "pin fields as a JSON object")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	token := fs.String("token", "", "session token printed by login")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch cmd {
	case "upload":
		return runUpload(ctx, fs.Args(), out, cfg, log)
	case "whoami":
		opts, err := gateOptions(cfg)
		if err != nil {
			return err
		}
		gate := session.NewGate(nil, log, opts...)
		if err := gate.Restore(*token); err != nil {
			return err
		}
		identities, unsubscribe := gate.Subscribe()
		defer unsubscribe()
		return json.NewEncoder(out).Encode(<-identities)
	}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Pins.Backend, err)
	}
	defer b.close()
	store := pinstore.New(b.pins, b.changes, log)

	switch cmd {
	case "watch":
		return runWatch(ctx, store, out)
	case "add":
		fields, err := parseFields(*data)
		if err != nil {
			return err
		}
		newID, err := store.AddPin(ctx, fields)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, newID)
		return nil
	case "update":
		fields, err := parseFields(*data)
		if err != nil {
			return err
		}
		return store.UpdatePin(ctx, *id, fields)
	case "delete":
		return store.DeletePin(ctx, *id)
	case "migrate":
		return nil
	case "useradd", "login":
		if b.users == nil {
			return fmt.Errorf("%s needs PINS_BACKEND=%s", cmd, config.PinsPostgres)
		}
		auth := session.NewPasswordAuthenticator(b.users)
		if cmd == "useradd" {
			u, err := auth.Register(ctx, *email, *password)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, u.ID)
			return nil
		}
		opts, err := gateOptions(cfg)
		if err != nil {
			return err
		}
		return runLogin(ctx, session.NewGate(auth, log, opts...), *email, *password, out)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func gateOptions(cfg *config.AppConfig) ([]session.Option, error) {
	if cfg.Session.Secret == "" {
		return nil, nil
	}
	ts, err := session.NewTokenService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return nil, err
	}
	return []session.Option{session.WithTokens(ts)}, nil
}

func parseFields(raw string) (model.Fields, error) {
	var fields model.Fields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("-data must be a JSON object: %w", err)
	}
	if fields == nil {
		fields = model.Fields{}
	}
	return fields, nil
}

func runWatch(ctx context.Context, store *pinstore.Store, out io.Writer) error {
	sub := store.Subscribe(ctx)
	defer sub.Close()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case pins, ok := <-sub.Snapshots():
			if !ok {
				return nil
			}
			if err := enc.Encode(pins); err != nil {
				return err
			}
		}
	}
}

func runLogin(ctx context.Context, gate *session.Gate, email, password string, out io.Writer) error {
	identities, unsubscribe := gate.Subscribe()
	defer unsubscribe()
	<-identities

	if err := gate.Login(ctx, email, password); err != nil {
		return err
	}
	id := <-identities
	return json.NewEncoder(out).Encode(id)
}

func runUpload(ctx context.Context, paths []string, out io.Writer, cfg *config.AppConfig, log *zap.Logger) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: upload needs at least one file", errUsage)
	}

	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, upload.File{Name: filepath.Base(p), Content: f})
	}

	client := upload.New(cfg.Upload, nil, log)
	urls, err := client.UploadImages(ctx, files)
	for _, u := range urls {
		fmt.Fprintln(out, u)
	}
	if err != nil {
		return fmt.Errorf("upload stopped after %d of %d files: %s", len(urls), len(files), client.UploadError())
	}
	return nil
}
