package store

import (
	"database/sql"
	"fmt"
	"time"

	"hoardd/internal/model"

	_ "modernc.org/sqlite"
)

// DB is the local job journal: one row per copy job, one per source file.
type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// fixed width so stored timestamps sort as text
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// JobRow is a journaled job as read back for reporting.
type JobRow struct {
	RunID       string
	Folder      string
	Path        string
	Source      string
	Destination string
	Status      model.JobStatus
	Files       int64
	Bytes       int64
	Errors      int64
	LastError   string
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (db *DB) JobStarted(job *model.CopyJob) error {
	_, err := db.Exec(`
INSERT INTO jobs (run_id, folder, path, source, destination, status, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.RunID, job.ID, job.Path, job.Source, job.Destination,
		string(job.Status), job.StartedAt.UTC().Format(timeFormat),
	)
	return err
}

func (db *DB) FileCopied(runID string, rec model.FileRecord) error {
	_, err := db.Exec(`
INSERT INTO job_files (run_id, rel_path, size, sha256, crc32c, error)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, rel_path) DO UPDATE SET
	size=excluded.size, sha256=excluded.sha256, crc32c=excluded.crc32c, error=excluded.error`,
		runID, rec.RelPath, rec.Size, rec.SHA256, int64(rec.CRC32C), truncate(rec.Error),
	)
	return err
}

func (db *DB) JobFinished(job *model.CopyJob) error {
	var msg string
	if job.Err != nil {
		msg = truncate(job.Err.Error())
	}
	res, err := db.Exec(`
UPDATE jobs
SET folder=?, path=?, status=?, files=?, bytes=?, errors=?, last_error=?, finished_at=?
WHERE run_id=?`,
		job.ID, job.Path, string(job.Status), job.FilesCopied, job.BytesCopied, job.Errors, msg,
		job.FinishedAt.UTC().Format(timeFormat), job.RunID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return fmt.Errorf("finish job %s: no such job", job.RunID)
	}
	return nil
}

func (db *DB) RecentJobs(limit int) ([]JobRow, error) {
	rows, err := db.Query(`
SELECT run_id, folder, path, source, destination, status, files, bytes, errors, last_error, started_at, COALESCE(finished_at, '')
FROM jobs
ORDER BY started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRow
	for rows.Next() {
		var j JobRow
		var status, started, finished string
		if err := rows.Scan(
			&j.RunID, &j.Folder, &j.Path, &j.Source, &j.Destination, &status,
			&j.Files, &j.Bytes, &j.Errors, &j.LastError, &started, &finished,
		); err != nil {
			return nil, err
		}
		j.Status = model.JobStatus(status)
		j.StartedAt, _ = time.Parse(timeFormat, started)
		if finished != "" {
			j.FinishedAt, _ = time.Parse(timeFormat, finished)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (db *DB) JobFiles(runID string) ([]model.FileRecord, error) {
	rows, err := db.Query(`
SELECT rel_path, size, sha256, crc32c, error
FROM job_files
WHERE run_id = ?
ORDER BY rel_path`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FileRecord
	for rows.Next() {
		var r model.FileRecord
		var crc int64
		if err := rows.Scan(&r.RelPath, &r.Size, &r.SHA256, &crc, &r.Error); err != nil {
			return nil, err
		}
		r.CRC32C = uint32(crc)
		out = append(out, r)
	}
	return out, rows.Err()
}

func truncate(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
