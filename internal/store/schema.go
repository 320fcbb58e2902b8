package store

func (db *DB) migrate() error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS jobs (
	run_id TEXT PRIMARY KEY,
	folder TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	destination TEXT NOT NULL,

	status TEXT NOT NULL,
	files INTEGER NOT NULL DEFAULT 0,
	bytes INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',

	started_at TEXT NOT NULL,
	finished_at TEXT -- null while running
);
`,
		`
CREATE TABLE IF NOT EXISTS job_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES jobs(run_id),
	rel_path TEXT NOT NULL,

	size INTEGER NOT NULL DEFAULT 0,
	sha256 TEXT NOT NULL DEFAULT '',
	crc32c INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',

	UNIQUE(run_id, rel_path)
);
`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
