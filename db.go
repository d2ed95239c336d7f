package main

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		command       TEXT NOT NULL,
		course        TEXT NOT NULL DEFAULT '',
		period        TEXT NOT NULL DEFAULT '',
		assignment    TEXT NOT NULL DEFAULT '',
		grader        TEXT NOT NULL DEFAULT '',
		selected      INTEGER NOT NULL DEFAULT 0,
		applied       INTEGER NOT NULL DEFAULT 0,
		dry_run       INTEGER NOT NULL DEFAULT 0,
		snapshot_path TEXT NOT NULL DEFAULT '',
		started_at    DATETIME NOT NULL,
		finished_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command);

	CREATE TABLE IF NOT EXISTS run_submissions (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id        INTEGER NOT NULL,
		submission_id INTEGER NOT NULL,
		action        TEXT NOT NULL DEFAULT '',
		grader        TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_run_submissions_run ON run_submissions(run_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	// Migration: add seed column if missing.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name = 'seed'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE runs ADD COLUMN seed INTEGER NOT NULL DEFAULT 0`)
	}

	return db, nil
}

// Run is one ledger row: a single command invocation and what it touched.
type Run struct {
	ID           int64
	Command      string
	Course       string
	Period       string
	Assignment   string
	Grader       string
	Selected     int
	Applied      int
	DryRun       bool
	Seed         int64
	SnapshotPath string
	StartedAt    time.Time
	FinishedAt   time.Time
}

type RunSubmission struct {
	ID           int64
	RunID        int64
	SubmissionID int64
	Action       string
	Grader       string
}

func InsertRun(db *sql.DB, run Run) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO runs (command, course, period, assignment, grader, selected, applied, dry_run, seed, snapshot_path, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Command, run.Course, run.Period, run.Assignment, run.Grader,
		run.Selected, run.Applied, run.DryRun, run.Seed, run.SnapshotPath,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func InsertRunSubmissions(db *sql.DB, runID int64, items []RunSubmission) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO run_submissions (run_id, submission_id, action, grader)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		if _, err := stmt.Exec(runID, item.SubmissionID, item.Action, item.Grader); err != nil {
			return inserted, err
		}
		inserted++
	}

	return inserted, tx.Commit()
}

func GetRecentRuns(db *sql.DB, limit int) ([]Run, error) {
	rows, err := db.Query(
		`SELECT id, command, course, period, assignment, grader, selected, applied, dry_run, seed, snapshot_path, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		err := rows.Scan(
			&r.ID, &r.Command, &r.Course, &r.Period, &r.Assignment, &r.Grader,
			&r.Selected, &r.Applied, &r.DryRun, &r.Seed, &r.SnapshotPath,
			&r.StartedAt, &r.FinishedAt,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func GetRunSubmissions(db *sql.DB, runID int64) ([]RunSubmission, error) {
	rows, err := db.Query(
		`SELECT id, run_id, submission_id, action, grader
		 FROM run_submissions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunSubmission
	for rows.Next() {
		var item RunSubmission
		if err := rows.Scan(&item.ID, &item.RunID, &item.SubmissionID, &item.Action, &item.Grader); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// recordRun appends one command invocation to the ledger. Ledger failures
// are logged, not returned.
func recordRun(cfg Config, run Run, items []RunSubmission) {
	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Printf("ledger unavailable: %v", err)
		return
	}
	defer db.Close()

	run.Course = cfg.Course
	run.Period = cfg.Period
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	id, err := InsertRun(db, run)
	if err != nil {
		log.Printf("ledger insert failed: %v", err)
		return
	}
	if _, err := InsertRunSubmissions(db, id, items); err != nil {
		log.Printf("ledger insert failed: %v", err)
	}
}
