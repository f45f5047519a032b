// Package storage holds the append-only execution-record archive used by
// the Executor to persist trade outcomes beyond process lifetime (§3's
// "archived in a bounded history ring" backed by durable storage), one row
// per consumed Opportunity, via sqlite3. The schema is an embedded
// constant rather than an on-disk schema.sql file, so the binary has no
// runtime file dependency.
package storage

import (
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/evmarb/searcher/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS execution_records (
	opportunity_id TEXT PRIMARY KEY,
	chain_id       INTEGER NOT NULL,
	success        INTEGER NOT NULL,
	tx_hash        TEXT NOT NULL,
	error_kind     INTEGER NOT NULL,
	actual_profit  TEXT NOT NULL,
	gas_used       INTEGER NOT NULL,
	block_number   INTEGER NOT NULL,
	submitted_at   INTEGER NOT NULL,
	confirmed_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_records_chain ON execution_records(chain_id);
`

// Archive is a durable, append-only record of every consumed opportunity.
type Archive struct {
	db *sql.DB
}

func Open(dbPath string) (*Archive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Append inserts one execution record. opportunity_id is the primary key
// so a retried insert for the same opportunity is a no-op rather than a
// duplicate row.
func (a *Archive) Append(rec *model.ExecutionRecord) error {
	_, err := a.db.Exec(
		`INSERT OR IGNORE INTO execution_records
		 (opportunity_id, chain_id, success, tx_hash, error_kind, actual_profit, gas_used, block_number, submitted_at, confirmed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OpportunityID, rec.ChainID, boolToInt(rec.Success), rec.TxHash.Hex(), int(rec.ErrorKind),
		rec.ActualProfit.String(), rec.GasUsed, rec.BlockNumber, rec.SubmittedAt.Unix(), rec.ConfirmedAt.Unix(),
	)
	return err
}

// RecentByChain returns the most recent n records for one chain, newest
// first. The control surface's trade endpoint does not call it; it reads
// the Executor's in-memory history instead.
func (a *Archive) RecentByChain(chainID uint64, n int) ([]*model.ExecutionRecord, error) {
	rows, err := a.db.Query(
		`SELECT opportunity_id, chain_id, success, tx_hash, error_kind, actual_profit, gas_used, block_number, submitted_at, confirmed_at
		 FROM execution_records WHERE chain_id = ? ORDER BY submitted_at DESC LIMIT ?`,
		chainID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	var out []*model.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (*model.ExecutionRecord, error) {
	var (
		rec         model.ExecutionRecord
		successInt  int
		txHashStr   string
		profitStr   string
		submittedAt int64
		confirmedAt int64
	)
	if err := rows.Scan(
		&rec.OpportunityID, &rec.ChainID, &successInt, &txHashStr, &rec.ErrorKind,
		&profitStr, &rec.GasUsed, &rec.BlockNumber, &submittedAt, &confirmedAt,
	); err != nil {
		return nil, fmt.Errorf("scan execution record: %w", err)
	}

	rec.Success = successInt != 0
	rec.TxHash = common.HexToHash(txHashStr)
	rec.ActualProfit = new(big.Int)
	rec.ActualProfit.SetString(profitStr, 10)
	rec.SubmittedAt = unixTime(submittedAt)
	rec.ConfirmedAt = unixTime(confirmedAt)
	return &rec, nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
