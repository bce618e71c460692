package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/database"
)

// sqliteSchema creates the scheduling tables for SQLite. Nested value
// objects (modes, windows, skills) are stored as JSON documents; the solver
// reads whole aggregates, never queries into them.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS patterns (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	objectives  TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS pattern_tasks (
	id          TEXT PRIMARY KEY,
	pattern_id  TEXT NOT NULL REFERENCES patterns(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	type_code   TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL,
	modes       TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS pattern_precedences (
	pattern_id       TEXT NOT NULL REFERENCES patterns(id) ON DELETE CASCADE,
	predecessor_id   TEXT NOT NULL,
	successor_id     TEXT NOT NULL,
	min_delay_minutes INTEGER NOT NULL DEFAULT 0,
	max_delay_minutes INTEGER NOT NULL DEFAULT -1,
	PRIMARY KEY (pattern_id, predecessor_id, successor_id)
);

CREATE TABLE IF NOT EXISTS pattern_setup_rules (
	pattern_id    TEXT NOT NULL REFERENCES patterns(id) ON DELETE CASCADE,
	machine_id    TEXT NOT NULL DEFAULT '',
	from_type     TEXT NOT NULL,
	to_type       TEXT NOT NULL,
	setup_minutes INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS machines (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	capacity      INTEGER NOT NULL DEFAULT 1,
	department_id TEXT NOT NULL DEFAULT '',
	hourly_cost   REAL NOT NULL DEFAULT 0,
	calendar      TEXT NOT NULL DEFAULT '[]',
	maintenance   TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS operators (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	skills      TEXT NOT NULL DEFAULT '[]',
	shifts      TEXT NOT NULL DEFAULT '[]',
	max_minutes INTEGER NOT NULL DEFAULT 0,
	hourly_cost REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sequence_resources (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	max_concurrent INTEGER NOT NULL DEFAULT 1,
	task_type_codes TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS job_instances (
	id             TEXT PRIMARY KEY,
	pattern_id     TEXT NOT NULL REFERENCES patterns(id),
	priority       INTEGER NOT NULL DEFAULT 3,
	earliest_start TEXT NOT NULL,
	due_date       TEXT
);

CREATE TABLE IF NOT EXISTS schedules (
	id               TEXT PRIMARY KEY,
	pattern_id       TEXT NOT NULL,
	horizon_start    TEXT NOT NULL,
	status           TEXT NOT NULL,
	objective_values TEXT NOT NULL DEFAULT '{}',
	solve_time_ms    INTEGER NOT NULL DEFAULT 0,
	variable_count   INTEGER NOT NULL DEFAULT 0,
	constraint_count INTEGER NOT NULL DEFAULT 0,
	workers_used     INTEGER NOT NULL DEFAULT 0,
	evaluations      INTEGER NOT NULL DEFAULT 0,
	version          INTEGER NOT NULL DEFAULT 1,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id            TEXT PRIMARY KEY,
	schedule_id   TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	instance_id   TEXT NOT NULL,
	task_id       TEXT NOT NULL,
	machine_id    TEXT NOT NULL,
	operator_id   TEXT,
	start_at      TEXT NOT NULL,
	end_at        TEXT NOT NULL,
	setup_minutes INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_schedule ON scheduled_tasks(schedule_id);
CREATE INDEX IF NOT EXISTS idx_job_instances_pattern ON job_instances(pattern_id);
`

// postgresSchema mirrors the SQLite schema with native types.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS schedules (
	id               UUID PRIMARY KEY,
	pattern_id       UUID NOT NULL,
	horizon_start    TIMESTAMPTZ NOT NULL,
	status           TEXT NOT NULL,
	objective_values JSONB NOT NULL DEFAULT '{}',
	solve_time_ms    BIGINT NOT NULL DEFAULT 0,
	variable_count   INTEGER NOT NULL DEFAULT 0,
	constraint_count INTEGER NOT NULL DEFAULT 0,
	workers_used     INTEGER NOT NULL DEFAULT 0,
	evaluations      BIGINT NOT NULL DEFAULT 0,
	version          INTEGER NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id            UUID PRIMARY KEY,
	schedule_id   UUID NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	instance_id   UUID NOT NULL,
	task_id       UUID NOT NULL,
	machine_id    UUID NOT NULL,
	operator_id   UUID,
	start_at      TIMESTAMPTZ NOT NULL,
	end_at        TIMESTAMPTZ NOT NULL,
	setup_minutes INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_schedule ON scheduled_tasks(schedule_id);
`

// Migrate applies the schema for the connection's driver. Statements are
// idempotent so the call is safe on every startup.
func Migrate(ctx context.Context, conn database.Connection) error {
	var schema string
	switch conn.Driver() {
	case database.DriverSQLite:
		schema = sqliteSchema
	case database.DriverPostgres:
		schema = postgresSchema
	default:
		return fmt.Errorf("no migrations for driver %s", conn.Driver())
	}
	// Statements run one by one; pgx rejects multi-statement Exec in the
	// extended protocol.
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
