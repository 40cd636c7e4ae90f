package commands

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/authapi"
	"github.com/prepdeck/prepdeck/internal/config"
	"github.com/prepdeck/prepdeck/internal/identity"
	"github.com/prepdeck/prepdeck/internal/idle"
	"github.com/prepdeck/prepdeck/internal/lifecycle"
	"github.com/prepdeck/prepdeck/internal/logger"
	"github.com/prepdeck/prepdeck/internal/sessionstore"
)

type Globals struct {
	Debug   bool
	Version string
	Config  string
}

// app bundles the wired client for one command invocation.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	store    *sessionstore.Store
	identity *identity.Context
	manager  *lifecycle.Manager
}

// newApp builds the session stack: config, store, API client, identity
// context and lifecycle manager.
func newApp(globals *Globals) (*app, error) {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, err
	}
	if globals.Debug {
		cfg.Debug = true
	}

	log := logger.Setup(cfg.Debug)

	store, err := sessionstore.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	api := authapi.New(authapi.Config{
		ServerURL: cfg.ServerURL,
		Debug:     cfg.Debug,
		CacheGETs: true,
	}, log)

	ic := identity.NewContext()
	timer := idle.NewTimer(cfg.IdleTimeout, nil, nil)

	manager := lifecycle.New(lifecycle.Config{
		API:       api,
		Store:     store,
		Identity:  ic,
		Timer:     timer,
		Navigator: lifecycle.NavigatorFunc(navigate),
		Logger:    log,
	})

	return &app{
		cfg:      cfg,
		logger:   log,
		store:    store,
		identity: ic,
		manager:  manager,
	}, nil
}

// navigate is the CLI's stand-in for the router: forced navigations are
// printed so the user knows where the web client would send them.
func navigate(path string) {
	fmt.Printf("→ %s\n", path)
}

// printResult renders an operation outcome the way the web client shows an
// inline form message.
func printResult(res lifecycle.Result) error {
	if !res.Success {
		return fmt.Errorf("%s", res.Err)
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	if res.User != nil {
		fmt.Printf("signed in as %s (%s)\n", res.User.Email, res.User.Role)
	}
	return nil
}
