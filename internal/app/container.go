package app

import (
	"context"
	"fmt"
	"time"

	"github.com/doeshing/compai/assets"
	"github.com/doeshing/compai/internal/application/dispatch"
	"github.com/doeshing/compai/internal/application/doctor"
	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/host/simhost"
	"github.com/doeshing/compai/internal/infrastructure/ai"
	"github.com/doeshing/compai/internal/infrastructure/bridge"
	"github.com/doeshing/compai/internal/infrastructure/config"
	"github.com/doeshing/compai/internal/infrastructure/extract"
	"github.com/doeshing/compai/internal/infrastructure/security"
	"github.com/doeshing/compai/internal/pkg/logger"
	"github.com/doeshing/compai/internal/ports"
)

// Options controls how the container is built.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         ports.Logger
	Whitelist      *security.Whitelist
	Client         *ai.Client
	Transport      *bridge.Transport
	Snapshots      *dispatch.SnapshotTracker
	Dispatch       *dispatch.Service
	DoctorService  *doctor.Service

	// Exactly one of these is set, depending on bridge.mode.
	Simulated *simhost.Host
	Panel     *bridge.WebsocketHost
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: opts.Verbose,
	})

	whitelist, err := security.NewWhitelist(assets.CatalogYAML)
	if err != nil {
		return nil, fmt.Errorf("load action catalog: %w", err)
	}
	systemPrompt, err := ai.RenderSystemPrompt(whitelist)
	if err != nil {
		return nil, err
	}
	client := ai.NewClient(cfg, systemPrompt, log)

	c := &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Whitelist:      whitelist,
		Client:         client,
	}

	var scriptHost ports.ScriptHost
	if cfg.IsWebsocketBridge() {
		c.Panel = bridge.NewWebsocketHost(time.Duration(cfg.GetBridgeTimeoutSeconds())*time.Second, log)
		scriptHost = c.Panel
	} else {
		c.Simulated, err = simhost.Open(ctx, cfg.Bridge.ProjectPath)
		if err != nil {
			return nil, fmt.Errorf("open project %s: %w", cfg.Bridge.ProjectPath, err)
		}
		scriptHost = c.Simulated.Engine
	}

	c.Transport = bridge.NewTransport(scriptHost, log)
	c.Snapshots = dispatch.NewSnapshotTracker(c.Transport, log)
	c.Dispatch = &dispatch.Service{
		Conversation: client,
		Extractor:    extract.New(),
		Authorizer:   whitelist,
		Bridge:       c.Transport,
		Snapshots:    c.Snapshots,
		Logger:       log,
	}
	c.DoctorService = &doctor.Service{
		ConfigProvider: cfgLoader,
		Catalog:        whitelist,
		Bridge:         c.Transport,
		Endpoint:       client,
	}

	if c.Simulated != nil {
		// The in-process registry is always reachable, so drift is caught at startup.
		if err := c.CheckCatalog(ctx); err != nil {
			log.Error("action catalog out of step with host", err, nil)
		}
	}
	return c, nil
}

// CheckCatalog compares the catalog with the host registry by count and set equality.
func (c *Container) CheckCatalog(ctx context.Context) error {
	names, err := c.Transport.RegisteredActions(ctx)
	if err != nil {
		return err
	}
	return c.Whitelist.VerifyAgainst(names)
}

// StartBridge serves the panel endpoint in websocket mode. It returns nil in local mode.
func (c *Container) StartBridge(ctx context.Context) (*bridge.Server, <-chan error) {
	if c.Panel == nil {
		return nil, nil
	}
	server := bridge.NewServer(c.Config.Bridge.ListenAddr, c.Panel)
	return server, server.Start(ctx)
}

// WatchConfig applies model mapping and endpoint changes from the config file as they happen.
func (c *Container) WatchConfig() error {
	return c.ConfigLoader.Watch(func(cfg domain.Config) {
		c.Client.Apply(cfg)
		c.Logger.Info("configuration reloaded", map[string]interface{}{
			"chat_model":   cfg.Models.Chat,
			"vision_model": cfg.Models.Vision,
		})
	}, func(err error) {
		c.Logger.Warn("configuration reload skipped", map[string]interface{}{"error": err.Error()})
	})
}

// Close releases the project file in local mode.
func (c *Container) Close() error {
	if c.Simulated != nil {
		return c.Simulated.Close()
	}
	return nil
}
