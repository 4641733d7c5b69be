package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Deployment catalog
			CREATE TABLE deployments (
				id VARCHAR(255) PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE process_definitions (
				id VARCHAR(255) PRIMARY KEY,             -- "{key}:{version}:{uuid}"
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_process_definitions_key ON process_definitions((data->>'key'));

			-- Runtime
			CREATE TABLE process_instances (
				id VARCHAR(255) PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_tasks_instance ON tasks((data->>'instance_id'));

			CREATE TABLE variables (
				id VARCHAR(512) PRIMARY KEY,             -- "{scope_id}/{name}"
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			-- History is append-only; seq preserves insertion order
			CREATE TABLE variable_history (
				id VARCHAR(255) PRIMARY KEY,
				seq BIGSERIAL NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_variable_history_instance ON variable_history((data->>'instance_id'));
			CREATE INDEX idx_variable_history_seq ON variable_history(seq);

			-- Identity directory
			CREATE TABLE identity_users (
				id VARCHAR(255) PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE identity_groups (
				id VARCHAR(255) PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE identity_tenants (
				id VARCHAR(255) PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE identity_memberships (
				id VARCHAR(512) PRIMARY KEY,             -- "{kind}:{left_id}:{right_id}"
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}

// tableNames maps logical tables to their SQL tables.
var tableNames = map[string]string{
	"deployment":         "deployments",
	"process_definition": "process_definitions",
	"process_instance":   "process_instances",
	"task":               "tasks",
	"variable":           "variables",
	"variable_history":   "variable_history",
	"user":               "identity_users",
	"group":              "identity_groups",
	"tenant":             "identity_tenants",
	"membership":         "identity_memberships",
}
