package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/common/log"
	"github.com/haukened/phonebook/internal/phonebook/config"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/infra/boltdb"
	"github.com/haukened/phonebook/internal/phonebook/infra/redis"
	"github.com/haukened/phonebook/internal/phonebook/metrics"
	"github.com/haukened/phonebook/internal/phonebook/repos/directory"
	"github.com/haukened/phonebook/internal/phonebook/repos/reputation"
	"github.com/haukened/phonebook/internal/phonebook/repos/reputation/bloom"
	reputationbolt "github.com/haukened/phonebook/internal/phonebook/repos/reputation/bolt"
	"github.com/haukened/phonebook/internal/phonebook/repos/resultcache"
	rediscache "github.com/haukened/phonebook/internal/phonebook/repos/resultcache/redis"
	"github.com/haukened/phonebook/internal/phonebook/repos/seed"
	"github.com/haukened/phonebook/internal/phonebook/services/phonebook"
	"github.com/haukened/phonebook/internal/phonebook/services/search"
	"github.com/haukened/phonebook/internal/phonebook/services/visibility"
	"github.com/haukened/phonebook/internal/phonebook/validation"
)

const (
	version = "0.1.0-dev"
	appName = "phonebook"
)

const usage = `usage: phonebook <command> [flags]

commands:
  register      -username NAME -phone NUMBER [-email ADDR]
  add-contact   -as USER -name NAME -phone NUMBER [-email ADDR]
  report        -as USER -phone NUMBER
  search-name   -as USER -q TEXT [-page N] [-size N]
  search-phone  -as USER -phone NUMBER [-page N] [-size N]
  delete-user   -as USER
  import        -file PATH
  stats
`

// Application holds the wired phonebook components.
type Application struct {
	config     *config.AppConfig
	db         *bbolt.DB
	redis      *redis.Client
	directory  *directory.Directory
	reputation *reputation.Repository
	memCache   *resultcache.Cache
	search     *search.Engine
	service    *phonebook.Service
	auth       phonebook.Authenticator
	registry   *prometheus.Registry
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		writeError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run builds the application, applies the configured seed, executes one
// command and dumps metrics if asked to.
func run(ctx context.Context, cfg *config.AppConfig, args []string, out io.Writer) error {
	app, err := buildApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.Close()

	if cfg.SeedFile != "" {
		if _, err := app.importFile(ctx, cfg.SeedFile); err != nil {
			return err
		}
	}

	cmdErr := app.Dispatch(ctx, args, out)

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, app.registry); err != nil {
			log.Warn(map[string]any{"file": cfg.MetricsFile, "error": err}, "Failed to write metrics file")
		}
	}
	return cmdErr
}

// buildApplication opens the stores and wires the services together.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	db, err := boltdb.Open(cfg.DBPath, cfg.DBTimeout)
	if err != nil {
		return nil, err
	}
	app := &Application{config: cfg, db: db, registry: registry}

	cache, err := app.buildCache(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.directory = directory.New(db, clk)
	app.reputation = reputation.NewRepository(reputation.Options{
		Store:       reputationbolt.New(db),
		Factory:     bloom.NewFactory(),
		FPRate:      cfg.BloomFPRate,
		Invalidator: cache,
		Clock:       clk,
		Logger:      logger,
		Metrics:     m,
	})
	if err := app.reputation.Rebuild(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build reputation filter: %w", err)
	}

	app.search = search.NewEngine(search.EngineOptions{
		Directory:  app.directory,
		Reputation: app.reputation,
		Visibility: visibility.New(app.directory),
		Cache:      cache,
		Logger:     logger,
		Metrics:    m,
		Clock:      clk,
		TTLs: search.TTLs{
			NameSearch:   cfg.NameSearchTTL,
			PhoneUser:    cfg.PhoneUserTTL,
			PhoneContact: cfg.PhoneContactTTL,
		},
		PhoneCacheReads: cfg.PhoneCacheReads,
	})
	app.service = phonebook.NewService(phonebook.ServiceOptions{
		Directory:  app.directory,
		Reputation: app.reputation,
		Cache:      cache,
		Validator:  validation.New(),
		Logger:     logger,
		Metrics:    m,
	})
	app.auth = phonebook.NewUsernameAuthenticator(app.directory)

	log.Debug(map[string]any{
		"version":       version,
		"db_path":       cfg.DBPath,
		"cache_backend": cfg.CacheBackend,
	}, "Phonebook initialized")
	return app, nil
}

// buildCache returns the configured result cache.
func (app *Application) buildCache(ctx context.Context, cfg *config.AppConfig) (search.ResultCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		rc, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = rc
		log.Debug(map[string]any{"type": "redis", "prefix": cfg.RedisPrefix}, "Result cache configured")
		return rediscache.New(rc.Client, cfg.RedisPrefix), nil
	default:
		c, err := resultcache.New(cfg.CacheSize, clock.RealClock{})
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		app.memCache = c
		log.Debug(map[string]any{"type": "LRU", "size": cfg.CacheSize}, "Result cache configured")
		return c, nil
	}
}

// Close releases the database and the redis connection.
func (app *Application) Close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing redis client")
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing database")
		}
	}
}

// Dispatch runs the command named by args[0] and writes its JSON result to out.
func (app *Application) Dispatch(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(appName+" "+cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		as       = fs.String("as", "", "act as this username")
		username = fs.String("username", "", "username")
		name     = fs.String("name", "", "contact name")
		phone    = fs.String("phone", "", "phone number")
		email    = fs.String("email", "", "email address")
		query    = fs.String("q", "", "name query")
		page     = fs.String("page", "", "page number")
		size     = fs.String("size", "", "results per page")
		file     = fs.String("file", "", "seed file")
	)
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	var (
		result any
		err    error
	)
	switch cmd {
	case "register":
		result, err = app.service.RegisterUser(ctx, phonebook.RegisterUserRequest{
			Username:    *username,
			PhoneNumber: *phone,
			Email:       *email,
		})
	case "add-contact":
		var u domain.User
		if u, err = app.auth.CurrentUser(ctx, *as); err == nil {
			result, err = app.service.CreateContact(ctx, u.ID, phonebook.CreateContactRequest{
				ContactName: *name,
				PhoneNumber: *phone,
				Email:       *email,
			})
		}
	case "report":
		var u domain.User
		if u, err = app.auth.CurrentUser(ctx, *as); err == nil {
			result, err = app.service.RegisterSpamReport(ctx, u.ID, *phone)
		}
	case "search-name":
		result, err = app.searchName(ctx, *as, *query, *page, *size)
	case "search-phone":
		result, err = app.searchPhone(ctx, *as, *phone, *page, *size)
	case "delete-user":
		var u domain.User
		if u, err = app.auth.CurrentUser(ctx, *as); err == nil {
			err = app.service.DeleteUser(ctx, u.ID)
			result = map[string]string{"deleted": u.Username}
		}
	case "import":
		result, err = app.importFile(ctx, *file)
	case "stats":
		result = app.stats()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

func (app *Application) searchName(ctx context.Context, as, query, page, size string) (domain.Page[domain.UserView], error) {
	u, err := app.auth.CurrentUser(ctx, as)
	if err != nil {
		return domain.Page[domain.UserView]{}, err
	}
	req, err := domain.ParsePageRequest(page, size)
	if err != nil {
		return domain.Page[domain.UserView]{}, err
	}
	return app.search.SearchByName(ctx, u.ID, query, req)
}

func (app *Application) searchPhone(ctx context.Context, as, phone, page, size string) (domain.PhoneResult, error) {
	u, err := app.auth.CurrentUser(ctx, as)
	if err != nil {
		return domain.PhoneResult{}, err
	}
	req, err := domain.ParsePageRequest(page, size)
	if err != nil {
		return domain.PhoneResult{}, err
	}
	return app.search.SearchByPhone(ctx, u.ID, phone, req)
}

func (app *Application) importFile(ctx context.Context, path string) (seed.Summary, error) {
	if path == "" {
		return seed.Summary{}, domain.Validation("file", "This field is required.")
	}
	sd, err := seed.Load(path)
	if err != nil {
		return seed.Summary{}, err
	}
	return app.service.Import(ctx, sd)
}

type stats struct {
	Directory  directory.Stats      `json:"directory"`
	Reputation reputation.RepoStats `json:"reputation"`
	Cache      *resultcache.Stats   `json:"cache,omitempty"`
}

func (app *Application) stats() stats {
	st := stats{
		Directory:  app.directory.Stats(),
		Reputation: app.reputation.RepoStats(),
	}
	if app.memCache != nil {
		cs := app.memCache.Stats()
		st.Cache = &cs
	}
	return st
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeError prints domain errors as JSON and anything else as text.
func writeError(w io.Writer, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		_ = writeJSON(w, de)
		return
	}
	fmt.Fprintln(w, err)
}
