// Package app wires together MGit's components and manages the
// application lifecycle: configuration, the git layer, and the plugin
// system, assembled in dependency order.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/mgit-app/mgit/internal/config"
	"github.com/mgit-app/mgit/internal/git"
	"github.com/mgit-app/mgit/internal/plugin"
	"github.com/mgit-app/mgit/internal/plugin/pkgdep"
)

// Version is the application version, overridden at link time.
var Version = "dev"

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty means the default
	// under the user's home directory.
	ConfigPath string

	// SystemPluginDir holds plugins shipped with the application.
	SystemPluginDir string

	// UserPluginDir holds user-installed plugins. Empty means
	// ~/.mgit/plugins.
	UserPluginDir string

	// SkipPlugins starts the application without loading any plugins.
	SkipPlugins bool

	// WatchPlugins enables live discovery of newly installed plugins.
	WatchPlugins bool

	Logger *zap.Logger
}

// Application is the central coordinator for MGit components.
type Application struct {
	mu sync.RWMutex

	logger  *zap.Logger
	config  *config.Manager
	plugins *plugin.Manager
	watcher *plugin.Watcher

	repo *git.Repository
	doc  *Document

	opts Options
}

// InitError reports which component failed during bootstrap.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// New creates the application and bootstraps every component. Plugins are
// not loaded until Start.
func New(opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &Application{logger: logger, opts: opts}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	configPath := app.opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath, app.logger)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.config = cfg

	userDir := app.opts.UserPluginDir
	if userDir == "" {
		userDir = plugin.DefaultUserDir()
	}
	loader := plugin.NewLoader(app.opts.SystemPluginDir, userDir, app.logger)

	installer := pkgdep.New(pkgdep.Options{
		ManifestPath: filepath.Join(filepath.Dir(configPath), "packages.txt"),
		Logger:       app.logger,
	})

	app.plugins = plugin.NewManager(plugin.ManagerConfig{
		Loader:    loader,
		Installer: installer,
		Settings:  cfg,
		Logger:    app.logger,
		App: map[string]any{
			"version":    Version,
			"config_dir": filepath.Dir(configPath),
		},
	})

	if app.opts.WatchPlugins {
		watcher, err := plugin.NewWatcher(app.plugins, []string{app.opts.SystemPluginDir, userDir}, app.logger)
		if err != nil {
			return &InitError{Component: "plugin watcher", Err: err}
		}
		app.watcher = watcher
	}

	return nil
}

// Start loads plugins and announces application readiness. Blocking work
// happens under ctx; the watcher, if enabled, runs until ctx is cancelled.
func (app *Application) Start(ctx context.Context) error {
	if !app.opts.SkipPlugins {
		n := app.plugins.LoadAllPlugins(ctx)
		app.logger.Info("plugins loaded", zap.Int("count", n))
	}
	if app.watcher != nil {
		go app.watcher.Run(ctx)
	}

	app.plugins.TriggerEvent(plugin.EventAppInitialized, map[string]any{
		"version": Version,
	})
	return nil
}

// Shutdown unloads every plugin and releases resources.
func (app *Application) Shutdown() {
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.logger.Warn("close plugin watcher", zap.Error(err))
		}
	}
	app.plugins.UnloadAll()
	app.logger.Info("shutdown complete")
}

// OpenRepository opens the notes repository at path and records it in the
// recent list.
func (app *Application) OpenRepository(ctx context.Context, path string) error {
	repo, err := git.Open(ctx, path)
	if err != nil {
		return err
	}

	app.mu.Lock()
	app.repo = repo
	app.mu.Unlock()

	if err := app.config.AddRecentRepository(repo.Root()); err != nil {
		app.logger.Warn("record recent repository", zap.Error(err))
	}

	// Branch resolution fails on an unborn repository; the event still
	// fires with an empty branch.
	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		app.logger.Debug("resolve current branch", zap.Error(err))
	}

	app.plugins.TriggerEvent(plugin.EventRepositoryOpened, map[string]any{
		"path":   repo.Root(),
		"branch": branch,
	})
	return nil
}

// Repository returns the open repository, or nil.
func (app *Application) Repository() *git.Repository {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.repo
}

// Config returns the configuration manager.
func (app *Application) Config() *config.Manager { return app.config }

// Plugins returns the plugin manager.
func (app *Application) Plugins() *plugin.Manager { return app.plugins }

// CommitAll commits every pending change in the open repository. The
// message is threaded through plugin commit-message hooks first.
func (app *Application) CommitAll(ctx context.Context, message string) error {
	repo := app.Repository()
	if repo == nil {
		return git.ErrNotRepository
	}

	docPath := ""
	if doc := app.ActiveDocument(); doc != nil {
		docPath = doc.Path
	}
	transformed, _ := app.plugins.ApplyHook(plugin.HookCommitMessage, message,
		map[string]any{"path": docPath}).(string)
	if transformed == "" {
		transformed = message
	}
	return repo.CommitAll(ctx, transformed)
}
