package sqlite

// Schema DDL. One row per remote path; revision is the content digest.
const (
	createBlobs = `CREATE TABLE IF NOT EXISTS blobs (
    path TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    revision TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createBlobHistory = `CREATE TABLE IF NOT EXISTS blob_history (
    path TEXT NOT NULL,
    revision TEXT NOT NULL,
    previous TEXT NOT NULL,
    written_at TEXT NOT NULL
);`

	createHistoryIndex = `CREATE INDEX IF NOT EXISTS idx_blob_history_path ON blob_history(path, written_at);`
)

var schemaStatements = []string{
	createBlobs,
	createBlobHistory,
	createHistoryIndex,
}
