package main

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var db *sql.DB

type MatchRecord struct {
	ID         string `json:"id"`
	FinishedAt string `json:"finished_at"`
	Winner     int    `json:"winner"`
	Draw       bool   `json:"draw"`
	Actions    int    `json:"actions"`
	Placed     int    `json:"placed"`
	Player1    string `json:"player1"`
	Player2    string `json:"player2"`
	DurationMs int64  `json:"duration_ms"`
}

type AnalysisRecord struct {
	ID        string `json:"id"`
	StateHash string `json:"state_hash"`
	Placed    int    `json:"placed"`
	P1Wins    uint64 `json:"p1_wins"`
	P2Wins    uint64 `json:"p2_wins"`
	Draws     uint64 `json:"draws"`
	Verdict   string `json:"verdict"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

func InitDB(dbPath string) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}
	var err error
	db, err = sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	createMatchesSQL := `
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		finished_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		winner INTEGER,
		draw INTEGER,
		actions INTEGER,
		placed INTEGER,
		player1 TEXT,
		player2 TEXT,
		duration_ms INTEGER
	);`
	if _, err = db.Exec(createMatchesSQL); err != nil {
		log.Fatalf("Failed to create matches table: %v", err)
	}
	createAnalysesSQL := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		state_hash TEXT,
		placed INTEGER,
		p1_wins INTEGER,
		p2_wins INTEGER,
		draws INTEGER,
		verdict TEXT,
		elapsed_ms INTEGER
	);`
	if _, err = db.Exec(createAnalysesSQL); err != nil {
		log.Fatalf("Failed to create analyses table: %v", err)
	}
	log.Printf("Database initialized at %s", dbPath)
}

func CloseDB() {
	if db != nil {
		db.Close()
		db = nil
	}
}

// SaveMatchRecord archives a finished match. The insert runs in the
// background so finishing a match never waits on disk.
func SaveMatchRecord(rec MatchRecord) {
	if db == nil {
		return
	}
	go func() {
		insertSQL := `
		INSERT INTO matches (id, winner, draw, actions, placed, player1, player2, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := db.Exec(insertSQL,
			rec.ID, rec.Winner, rec.Draw, rec.Actions, rec.Placed,
			rec.Player1, rec.Player2, rec.DurationMs)
		if err != nil {
			log.Printf("Failed to save match %s: %v", shortID(rec.ID), err)
			return
		}
		log.Printf("Match %s saved to database", shortID(rec.ID))
	}()
}

func SaveAnalysisRecord(rec AnalysisRecord) {
	if db == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	go func() {
		insertSQL := `
		INSERT INTO analyses (id, state_hash, placed, p1_wins, p2_wins, draws, verdict, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := db.Exec(insertSQL,
			rec.ID, rec.StateHash, rec.Placed,
			int64(rec.P1Wins), int64(rec.P2Wins), int64(rec.Draws),
			rec.Verdict, rec.ElapsedMs)
		if err != nil {
			log.Printf("Failed to save analysis %s: %v", rec.StateHash, err)
		}
	}()
}

func RecentMatches(limit int) ([]MatchRecord, error) {
	if db == nil {
		return []MatchRecord{}, nil
	}
	if limit <= 0 {
		limit = 1
	}
	querySQL := `
	SELECT id, finished_at, winner, draw, actions, placed, player1, player2, duration_ms
	FROM matches ORDER BY finished_at DESC, id DESC LIMIT ?`
	rows, err := db.Query(querySQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []MatchRecord{}
	for rows.Next() {
		var rec MatchRecord
		if err := rows.Scan(&rec.ID, &rec.FinishedAt, &rec.Winner, &rec.Draw,
			&rec.Actions, &rec.Placed, &rec.Player1, &rec.Player2, &rec.DurationMs); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
