package cli

import (
	scheduleCommands "github.com/felixgeelhaar/jobforge/internal/scheduling/application/commands"
	scheduleQueries "github.com/felixgeelhaar/jobforge/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/infrastructure/persistence"
)

// App holds the CLI application dependencies.
type App struct {
	// Command Handlers
	SolvePatternHandler    *scheduleCommands.SolvePatternHandler
	ValidateProblemHandler *scheduleCommands.ValidateProblemHandler

	// Query Handlers
	GetScheduleHandler *scheduleQueries.GetScheduleHandler

	// Problem store, used by problem import
	ProblemRepo *persistence.SQLiteProblemRepository
}

// NewApp creates a new CLI application with the provided handlers.
func NewApp(
	solvePatternHandler *scheduleCommands.SolvePatternHandler,
	validateProblemHandler *scheduleCommands.ValidateProblemHandler,
	getScheduleHandler *scheduleQueries.GetScheduleHandler,
	problemRepo *persistence.SQLiteProblemRepository,
) *App {
	return &App{
		SolvePatternHandler:    solvePatternHandler,
		ValidateProblemHandler: validateProblemHandler,
		GetScheduleHandler:     getScheduleHandler,
		ProblemRepo:            problemRepo,
	}
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
