package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    address TEXT NOT NULL,
    chain TEXT NOT NULL,
    name TEXT,
    symbol TEXT,
    outcome TEXT NOT NULL,
    capture TEXT,
    score REAL,
    score_source TEXT,
    duration_ms INTEGER DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_analysis_token ON analyses(address, chain);
CREATE INDEX IF NOT EXISTS idx_analysis_time ON analyses(created_at);
`

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- Analyses ----

func (s *Store) RecordAnalysis(a Analysis) (int64, error) {
	var score sql.NullFloat64
	if a.Score != nil {
		score = sql.NullFloat64{Float64: *a.Score, Valid: true}
	}
	res, err := s.db.Exec(`INSERT INTO analyses (address, chain, name, symbol, outcome, capture, score, score_source, duration_ms) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.Address, string(a.Chain), a.Name, a.Symbol, string(a.Outcome), a.Capture, score, a.ScoreSource, a.DurationMS)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) RecentAnalyses(limit int) ([]Analysis, error) {
	rows, err := s.db.Query(`SELECT id, address, chain, COALESCE(name,''), COALESCE(symbol,''), outcome,
		COALESCE(capture,''), score, COALESCE(score_source,''), duration_ms, created_at
		FROM analyses ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		var score sql.NullFloat64
		err := rows.Scan(&a.ID, &a.Address, &a.Chain, &a.Name, &a.Symbol, &a.Outcome,
			&a.Capture, &score, &a.ScoreSource, &a.DurationMS, &a.CreatedAt)
		if err != nil {
			continue
		}
		if score.Valid {
			v := score.Float64
			a.Score = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LastForToken returns the most recent analysis of address on chain, or nil.
func (s *Store) LastForToken(address, chain string) (*Analysis, error) {
	var a Analysis
	var score sql.NullFloat64
	err := s.db.QueryRow(`SELECT id, address, chain, COALESCE(name,''), COALESCE(symbol,''), outcome,
		COALESCE(capture,''), score, COALESCE(score_source,''), duration_ms, created_at
		FROM analyses WHERE address = ? AND chain = ? ORDER BY id DESC LIMIT 1`, address, chain).
		Scan(&a.ID, &a.Address, &a.Chain, &a.Name, &a.Symbol, &a.Outcome,
			&a.Capture, &score, &a.ScoreSource, &a.DurationMS, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	return &a, nil
}

// ---- Stats ----

func (s *Store) GetStats() (map[string]int64, error) {
	stats := map[string]int64{}

	var total int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&total); err != nil {
		return nil, err
	}
	stats["analyses"] = total

	for _, o := range []Outcome{OutcomeComplete, OutcomeDegraded, OutcomeNotFound, OutcomeInvalid, OutcomeFailed} {
		stats[string(o)] = 0
	}
	rows, err := s.db.Query("SELECT outcome, COUNT(*) FROM analyses GROUP BY outcome")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err == nil {
			stats[outcome] = n
		}
	}

	var tokens int64
	s.db.QueryRow("SELECT COUNT(DISTINCT address || ':' || chain) FROM analyses").Scan(&tokens)
	stats["distinct_tokens"] = tokens

	return stats, rows.Err()
}
