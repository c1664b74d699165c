package database

// schemaStatements is applied in order by EnsureSchema
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS data`,
	`CREATE SCHEMA IF NOT EXISTS audit`,
	`CREATE SCHEMA IF NOT EXISTS selection`,

	// 원본 bhavcopy 일봉 (결측치는 NULL)
	`CREATE TABLE IF NOT EXISTS data.daily_bars (
		symbol        TEXT NOT NULL,
		trade_date    DATE NOT NULL,
		open_price    DOUBLE PRECISION,
		high_price    DOUBLE PRECISION,
		low_price     DOUBLE PRECISION,
		last_price    DOUBLE PRECISION,
		close_price   DOUBLE PRECISION,
		avg_price     DOUBLE PRECISION,
		ttl_trd_qnty  DOUBLE PRECISION,
		turnover_lacs DOUBLE PRECISION,
		no_of_trades  DOUBLE PRECISION,
		deliv_qty     DOUBLE PRECISION,
		deliv_per     DOUBLE PRECISION,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS audit.cleaning_reports (
		run_id            TEXT PRIMARY KEY,
		decision_date     DATE NOT NULL,
		symbols_in        INTEGER NOT NULL,
		segments_out      INTEGER NOT NULL,
		bars_in           INTEGER NOT NULL,
		bars_out          INTEGER NOT NULL,
		bad_ticks_dropped INTEGER NOT NULL,
		corporate_events  INTEGER NOT NULL,
		symbols_split     TEXT[] NOT NULL,
		unsplit_events    JSONB NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS selection.trade_sheets (
		entry_date    DATE PRIMARY KEY,
		decision_date DATE NOT NULL,
		cluster_id    INTEGER NOT NULL,
		config_hash   TEXT NOT NULL,
		candidates    JSONB NOT NULL,
		skipped       JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS selection.trade_rows (
		entry_date DATE NOT NULL REFERENCES selection.trade_sheets(entry_date) ON DELETE CASCADE,
		rank       INTEGER NOT NULL,
		symbol     TEXT NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		weight     DOUBLE PRECISION NOT NULL,
		cluster_id INTEGER NOT NULL,
		PRIMARY KEY (entry_date, symbol)
	)`,
}
