// Package main provides the entry point for the UserDesk console.
// It signs the user in to GitLab with the authorization code flow, keeps the token fresh and
// serves a small web console gated on the session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/buildinfo"
	"github.com/userdesk/userdesk/internal/cmd"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/logging"
	"github.com/userdesk/userdesk/internal/store"
	"github.com/userdesk/userdesk/internal/util"
	sdkAuth "github.com/userdesk/userdesk/sdk/auth"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

const storeOpenTimeout = 30 * time.Second

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

type options struct {
	login      bool
	noBrowser  bool
	logout     bool
	printToken bool
	copyToken  bool
	configPath string
}

func parseFlags() options {
	var opts options
	flag.BoolVar(&opts.login, "login", false, "Sign in to GitLab in the browser and store the token")
	flag.BoolVar(&opts.noBrowser, "no-browser", false, "With -login, print the authorization URL instead of opening a browser")
	flag.BoolVar(&opts.logout, "logout", false, "Sign out and forget the stored token")
	flag.BoolVar(&opts.printToken, "token", false, "Print the current access token, refreshing it when expired")
	flag.BoolVar(&opts.copyToken, "copy", false, "With -token, copy the token to the clipboard instead of printing it")
	flag.StringVar(&opts.configPath, "config", DefaultConfigPath, "Path to config.yaml (default: ./config.yaml when present)")
	flag.Parse()
	return opts
}

func main() {
	fmt.Println(buildinfo.String())
	opts := parseFlags()

	cfg, tokenStore, err := bootstrap(opts.configPath)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	defer func() {
		if errClose := tokenStore.Close(); errClose != nil {
			log.Warnf("close token store: %v", errClose)
		}
	}()
	sdkAuth.RegisterTokenStore(tokenStore)

	switch {
	case opts.login:
		cmd.DoLogin(cfg, &cmd.LoginOptions{NoBrowser: opts.noBrowser})
	case opts.logout:
		cmd.DoLogout(cfg)
	case opts.printToken:
		cmd.DoPrintToken(cfg, opts.copyToken)
	default:
		cmd.StartService(cfg)
	}
}

// bootstrap loads .env and the configuration, points logging at its destination and opens
// the configured token store. An explicit -config path must exist; ./config.yaml is optional.
func bootstrap(configPath string) (*config.Config, store.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("working directory: %w", err)
	}
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
		log.WithError(errLoad).Warn("ignoring unreadable .env file")
	}

	path := configPath
	if path == "" {
		path = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(path, configPath == "")
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.AuthDir, err = util.ResolveAuthDir(cfg.AuthDir); err != nil {
		return nil, nil, err
	}
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		return nil, nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()
	tokenStore, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s token store: %w", cfg.Store.Type, err)
	}
	return cfg, tokenStore, nil
}
