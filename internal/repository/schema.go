package repository

// Schema definitions for the Talon database.
// Compatible with both SQLite and PostgreSQL.

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    applicant_id TEXT NOT NULL,
    final_score INTEGER NOT NULL,
    risk_band TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    applicant TEXT NOT NULL,
    rule_scoring TEXT NOT NULL,
    network TEXT NOT NULL,
    stability TEXT NOT NULL,
    ml TEXT NOT NULL,
    decision TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_applicant ON assessments(tenant_id, applicant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_band ON assessments(tenant_id, risk_band);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(tenant_id, timestamp);
`

const schemaFlagConfigs = `
CREATE TABLE IF NOT EXISTS flag_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    code TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flag_configs_tenant ON flag_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_flag_configs_enabled ON flag_configs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
		schemaFlagConfigs,
	}
}
