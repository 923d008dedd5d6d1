package internal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/playhub/lobby/internal/catalog"
	"github.com/playhub/lobby/internal/core"
	"github.com/playhub/lobby/internal/core/auth"
	"github.com/playhub/lobby/internal/core/data"
	"github.com/playhub/lobby/internal/core/debug"
	"github.com/playhub/lobby/internal/launcher"
	"github.com/playhub/lobby/internal/leaderboard"
	"github.com/playhub/lobby/internal/lobby"
	"github.com/playhub/lobby/internal/notify"
	"github.com/playhub/lobby/internal/registry"
	"github.com/playhub/lobby/internal/results"
	"github.com/playhub/lobby/internal/room"
	"github.com/playhub/lobby/internal/web"
)

// Controller is the main entrypoint for the lobby. It's responsible for initializing
// any shared resources (such as database and logging), defining the servers, and
// launching everything.
type Controller struct {
	Config *core.Config
	// StartFunc starts game servers; nil runs them as subprocesses.
	StartFunc launcher.StartFunc

	logger *logrus.Logger
	wg     sync.WaitGroup

	db       *gorm.DB
	catalog  *catalog.Catalog
	launcher *launcher.Launcher
	registry *registry.Registry
	rooms    *room.Manager
	board    *leaderboard.Service
	store    leaderboard.Store
	servers  []*frontend
	web      *web.Server
}

// Start runs every server until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	defer c.Shutdown()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.init(ctx); err != nil {
		return err
	}
	c.declareServers()
	return c.run(ctx)
}

func (c *Controller) init(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all sub-servers.
	if c.logger, err = core.NewLogger(c.Config); err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(c.logger, c.Config.Debugging.PprofPort)
	}

	if c.db, err = data.Open(c.Config); err != nil {
		return err
	}

	if c.catalog, err = catalog.Load(c.Config.QualifiedPath(c.Config.Games.CatalogFile), c.logger); err != nil {
		return err
	}
	if c.Config.Games.Watch {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.catalog.Watch(ctx); err != nil {
				c.logger.Errorf("stopped watching game catalog: %v", err)
			}
		}()
	}

	ports, err := launcher.NewPortPool(c.Config.Launcher.PortMin, c.Config.Launcher.PortMax, c.Config.Launcher.ProbePorts)
	if err != nil {
		return err
	}
	c.launcher = launcher.New(ctx, launcher.Config{
		Host:       c.Config.Launcher.Host,
		BrokerAddr: c.Config.BrokerAddress(),
		RootDir:    c.Config.QualifiedPath(c.Config.Games.RootDir),
	}, ports, c.StartFunc, c.logger)

	c.registry = registry.New()
	c.rooms = room.NewManager(c.catalog, c.launcher, notify.NewRouter(c.registry, c.logger), c.logger)

	if c.store, err = c.leaderboardStore(); err != nil {
		return err
	}
	c.board = leaderboard.NewService(c.db, c.store, c.logger)
	return nil
}

func (c *Controller) leaderboardStore() (leaderboard.Store, error) {
	switch strings.ToLower(c.Config.Leaderboard.Store) {
	case "redis":
		return leaderboard.NewRedisStore(c.Config.Leaderboard.RedisURL)
	default:
		return leaderboard.NewFileStore(c.Config.QualifiedPath(c.Config.Leaderboard.File)), nil
	}
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers() {
	c.servers = []*frontend{
		{
			Address: c.Config.LobbyAddress(),
			Backend: &lobby.Server{
				Name:        "LOBBY",
				Logger:      c.logger,
				Accounts:    auth.NewDirectory(c.db, c.Config.Sessions.TTL),
				Registry:    c.registry,
				Catalog:     c.catalog,
				Rooms:       c.rooms,
				Results:     results.NewRecorder(c.db, c.rooms, c.board, c.logger),
				Leaderboard: c.board,
			},
		},
	}

	if c.Config.Web.HTTPPort > 0 {
		router := web.NewRouter(web.RouterConfig{
			Logger:      c.logger,
			Catalog:     c.catalog,
			Rooms:       c.rooms,
			Registry:    c.registry,
			Leaderboard: c.board,
		})
		c.web = web.NewServer(fmt.Sprintf("%s:%d", c.Config.Hostname, c.Config.Web.HTTPPort), router, c.logger)
	}
}

func (c *Controller) run(ctx context.Context) error {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s server: %w", server.Backend.Identifier(), err)
		}
	}

	if c.web != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.web.Run(ctx); err != nil {
				c.logger.Errorf("status API stopped: %v", err)
			}
		}()
	}

	c.wg.Wait()
	return nil
}

// Shutdown waits for the servers to stop, then stops every game server and
// closes the shared resources.
func (c *Controller) Shutdown() {
	c.wg.Wait()

	if c.launcher != nil {
		c.launcher.Shutdown()
	}
	if closer, ok := c.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warnf("error closing leaderboard store: %v", err)
		}
	}
	if c.db != nil {
		if err := data.Close(c.db); err != nil {
			c.logger.Warnf("error closing database: %v", err)
		}
	}
}
