package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	profit REAL NOT NULL,
	reason TEXT NOT NULL,
	strategy TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO trades
		(trade_id, instrument, direction, quantity, entry_price, exit_price,
		 entry_time, exit_time, profit, reason, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, t.Direction, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.EntryTime, t.ExitTime, t.Profit, t.Reason, t.Strategy,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, equity)
		VALUES (?, ?, ?)`,
		e.Time, e.Balance, e.Equity,
	)
	return err
}

func (j *SQLite) TradeHistory(days int) ([]TradeRecord, error) {
	query := `
		SELECT trade_id, instrument, direction, quantity, entry_price,
		       exit_price, entry_time, exit_time, profit, reason, strategy
		FROM trades`
	args := []any{}
	if days > 0 {
		query += ` WHERE exit_time >= ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -days))
	}
	query += ` ORDER BY exit_time ASC`

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.TradeID, &t.Instrument, &t.Direction, &t.Quantity, &t.EntryPrice,
			&t.ExitPrice, &t.EntryTime, &t.ExitTime, &t.Profit, &t.Reason, &t.Strategy,
		); err != nil {
			return nil, err
		}
		recs = append(recs, t)
	}
	return recs, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
