package app

import (
	"context"
	"fmt"
	"log/slog"

	scheduleCommands "github.com/felixgeelhaar/jobforge/internal/scheduling/application/commands"
	scheduleQueries "github.com/felixgeelhaar/jobforge/internal/scheduling/application/queries"
	scheduleServices "github.com/felixgeelhaar/jobforge/internal/scheduling/application/services"
	schedulingDomain "github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/solver"
	"github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/jobforge/pkg/config"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// localConn is the SQLite problem database when the primary connection
	// is PostgreSQL.
	localConn database.Connection

	// Repositories
	ProblemRepo   *persistence.SQLiteProblemRepository
	ScheduleStore schedulingDomain.ScheduleStore

	// Services
	PatternCache *scheduleServices.PatternCache
	Engine       *solver.Engine

	// Publishers
	EventPublisher eventbus.Publisher

	// Command handlers
	SolvePatternHandler    *scheduleCommands.SolvePatternHandler
	ValidateProblemHandler *scheduleCommands.ValidateProblemHandler

	// Query handlers
	GetScheduleHandler *scheduleQueries.GetScheduleHandler
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.Driver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	logger.Info("connected to database", "driver", c.DBDriver)

	if err := persistence.Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Problem definitions always live in SQLite. With a PostgreSQL primary
	// connection a local SQLite database still holds patterns, resources and
	// instances; only solved schedules go to PostgreSQL.
	switch c.DBDriver {
	case database.DriverSQLite:
		c.ProblemRepo = persistence.NewSQLiteProblemRepository(conn)
		c.ScheduleStore = persistence.NewSQLiteScheduleRepository(conn)
	case database.DriverPostgres:
		local, err := database.NewConnection(ctx, database.Config{
			Driver:     database.DriverSQLite,
			SQLitePath: cfg.SQLitePath,
		})
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to open local problem database: %w", err)
		}
		if err := persistence.Migrate(ctx, local); err != nil {
			_ = local.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("failed to migrate local problem database: %w", err)
		}
		c.localConn = local
		c.ProblemRepo = persistence.NewSQLiteProblemRepository(local)
		c.ScheduleStore = persistence.NewPostgresScheduleRepository(conn)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unsupported database driver: %s", c.DBDriver)
	}

	c.PatternCache = scheduleServices.NewPatternCache(c.ProblemRepo)

	c.Engine = solver.NewEngine(solver.EngineConfig{
		Workers:         cfg.SolverWorkers,
		ExhaustiveLimit: cfg.SolverExhaustiveLimit,
		Seed:            cfg.SolverSeed,
	}, logger)

	// Event publisher: RabbitMQ when configured, otherwise the in-process bus.
	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.closeConnections()
				return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			logger.Warn("RabbitMQ not available, using in-process event bus", "error", err)
			c.EventPublisher = eventbus.NewInProcessEventBus(logger)
		} else {
			c.EventPublisher = publisher
		}
	} else {
		c.EventPublisher = eventbus.NewInProcessEventBus(logger)
	}

	c.SolvePatternHandler = scheduleCommands.NewSolvePatternHandler(
		c.ProblemRepo,
		c.ScheduleStore,
		c.PatternCache,
		c.Engine,
		c.EventPublisher,
		scheduleCommands.SolveDefaults{
			Budget:            cfg.SolverBudget,
			ParetoLimit:       cfg.ParetoLimit,
			MaxHorizonMinutes: cfg.SolverMaxHorizonMinutes,
		},
		logger,
	)
	c.ValidateProblemHandler = scheduleCommands.NewValidateProblemHandler(c.ProblemRepo, c.PatternCache)
	c.GetScheduleHandler = scheduleQueries.NewGetScheduleHandler(c.ScheduleStore)

	return c, nil
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}
	c.closeConnections()
}

func (c *Container) closeConnections() {
	if c.localConn != nil {
		if err := c.localConn.Close(); err != nil {
			c.Logger.Warn("error closing local problem database", "error", err)
		}
		c.localConn = nil
	}
	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		}
		c.DBConn = nil
	}
}
