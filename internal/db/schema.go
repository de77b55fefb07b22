package db

// SchemaSQL defines the job history table. Statements are idempotent.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS analysis_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS stage ON analysis_job TYPE string;
    DEFINE FIELD IF NOT EXISTS context_id ON analysis_job TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON analysis_job TYPE string;
    DEFINE FIELD IF NOT EXISTS progress ON analysis_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS entries ON analysis_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS discarded ON analysis_job TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS error ON analysis_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS error_kind ON analysis_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON analysis_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON analysis_job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS duration_ms ON analysis_job TYPE option<int>;

    DEFINE INDEX IF NOT EXISTS analysis_job_started ON analysis_job FIELDS started_at;
    DEFINE INDEX IF NOT EXISTS analysis_job_context ON analysis_job FIELDS context_id;
    DEFINE INDEX IF NOT EXISTS analysis_job_stage ON analysis_job FIELDS stage;
`
