package db

// SchemaSQL contains the job-table schema initialization SQL.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job_id ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS slug ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS tool_name ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS session_id ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON job TYPE string
        ASSERT $value IN ["queued", "processing", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS stage ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS error ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS api_key ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS result ON job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON job TYPE datetime;
    DEFINE FIELD IF NOT EXISTS started_at ON job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS completed_at ON job TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS job_job_id ON job FIELDS job_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS job_status ON job FIELDS status;
    DEFINE INDEX IF NOT EXISTS job_session ON job FIELDS session_id;
`
