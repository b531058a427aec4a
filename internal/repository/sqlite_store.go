package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
	pkgsqlite "MarketPulse/pkg/sqlite"
)

// Store implements domain repository.Store backed by SQLite.
// Items, signals and prices are append-only; item identity is the
// dedup hash and the PRIMARY KEY is the authoritative uniqueness guard.
type Store struct {
	client *pkgsqlite.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewStore(client *pkgsqlite.Client, l *applogger.Logger) *Store {
	return &Store{client: client, db: client.DB(), l: l}
}

// Migrate creates tables and adds any columns introduced after the
// first release. Strictly additive; safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			source TEXT,
			asset TEXT,
			ts INTEGER,
			text TEXT,
			score REAL,
			label TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset TEXT,
			ts INTEGER,
			ema15 REAL,
			mentions INTEGER,
			mentions_z REAL,
			alpha REAL,
			action TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT,
			timeframe TEXT,
			ts INTEGER,
			o REAL, h REAL, l REAL, c REAL, v REAL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_items_asset_ts ON items(asset, ts)`,
		`CREATE INDEX IF NOT EXISTS ix_items_source ON items(source)`,
		`CREATE INDEX IF NOT EXISTS ix_signals_asset_ts ON signals(asset, ts)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_signals_key ON signals(asset, ts)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_prices_key ON prices(symbol, timeframe, ts)`,
	}
	if err := s.client.InitSchema(ctx, stmts); err != nil {
		return err
	}

	itemCols := map[string]string{
		"url":         "TEXT",
		"relevant":    "INTEGER",
		"confidence":  "REAL",
		"labels":      "TEXT",
		"reason":      "TEXT",
		"impact":      "REAL",
		"impact60":    "REAL",
		"impact_meta": "TEXT",
	}
	added, err := s.client.EnsureColumns(ctx, "items", itemCols)
	if err != nil {
		return err
	}
	sigCols := map[string]string{
		"price_close": "REAL",
		"rsi14":       "REAL",
		"macd":        "REAL",
		"macd_signal": "REAL",
		"atr_pct":     "REAL",
		"price_bias":  "TEXT",
	}
	added2, err := s.client.EnsureColumns(ctx, "signals", sigCols)
	if err != nil {
		return err
	}
	if s.l != nil && (len(added) > 0 || len(added2) > 0) {
		s.l.Info("schema migrated",
			applogger.Strings("items", added),
			applogger.Strings("signals", added2),
		)
	}
	return nil
}

// --- items ---

func (s *Store) InsertItem(ctx context.Context, it *models.Item) error {
	var (
		relevant   any
		confidence any
		labels     any
		reason     any
	)
	if it.Relevance != nil {
		relevant = boolToInt(it.Relevance.Relevant)
		confidence = it.Relevance.Confidence
		labels = strings.Join(it.Relevance.Labels, ",")
		reason = it.Relevance.Reason
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, source, asset, ts, text, score, label, url, relevant, confidence, labels, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		it.ID, string(it.Source), it.Asset, it.Timestamp.Unix(), it.Text, it.Score, it.Label,
		nullStr(it.URL), relevant, confidence, labels, reason,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domrepo.ErrDuplicateItem
	}
	return nil
}

func (s *Store) HasItem(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has item: %w", err)
	}
	return true, nil
}

func (s *Store) ListItems(ctx context.Context, limit int, f domrepo.ItemFilter) ([]models.Item, error) {
	q := `SELECT id, source, asset, ts, text, score, label, url, relevant, confidence, labels, reason, impact, impact60, impact_meta FROM items`
	var conds []string
	var args []any
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.Label != "" {
		conds = append(conds, "label = ?")
		args = append(args, f.Label)
	}
	if f.Query != "" {
		conds = append(conds, "text LIKE ?")
		args = append(args, "%"+f.Query+"%")
	}
	if f.MinScore != nil {
		conds = append(conds, "score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.MaxScore != nil {
		conds = append(conds, "score <= ?")
		args = append(args, *f.MaxScore)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, f.Since.Unix())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, f.Until.Unix())
	}
	if f.Relevant != nil {
		if *f.Relevant {
			conds = append(conds, "relevant = 1")
		} else {
			conds = append(conds, "(relevant = 0 OR relevant IS NULL)")
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Ascending {
		q += " ORDER BY ts ASC"
	} else {
		q += " ORDER BY ts DESC"
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *Store) ScoresSince(ctx context.Context, asset string, since time.Time) ([]models.ScoreAt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, score FROM items
		WHERE asset = ? AND ts >= ?
		ORDER BY ts ASC`,
		asset, since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("scores since: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreAt
	for rows.Next() {
		var ts int64
		var sc float64
		if err := rows.Scan(&ts, &sc); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, models.ScoreAt{Timestamp: time.Unix(ts, 0).UTC(), Score: sc})
	}
	return out, rows.Err()
}

func (s *Store) CountItemsSince(ctx context.Context, asset string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items WHERE asset = ? AND ts >= ?`,
		asset, since.Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// MentionBuckets groups item counts into fixed buckets keyed by
// bucket start (unix seconds / bucket size).
func (s *Store) MentionBuckets(ctx context.Context, asset string, since time.Time, bucket time.Duration) (map[int64]int, error) {
	sec := int64(bucket / time.Second)
	if sec <= 0 {
		sec = 60
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts / ? AS bucket, COUNT(*) FROM items
		WHERE asset = ? AND ts >= ?
		GROUP BY bucket ORDER BY bucket ASC`,
		sec, asset, since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("mention buckets: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var b int64
		var n int
		if err := rows.Scan(&b, &n); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out[b] = n
	}
	return out, rows.Err()
}

func (s *Store) PendingImpact(ctx context.Context, limit int) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, asset, ts, text, score, label, url, relevant, confidence, labels, reason, impact, impact60, impact_meta
		FROM items
		WHERE impact IS NULL OR impact60 IS NULL
		ORDER BY ts ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending impact: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// SetImpact fills impact horizons. COALESCE keeps a horizon's first
// written value, so re-running a completed horizon is a no-op.
func (s *Store) SetImpact(ctx context.Context, id string, impact *float64, meta *models.ImpactMeta) error {
	var metaJSON any
	var norm60 any
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal impact meta: %w", err)
		}
		metaJSON = string(b)
		if meta.Norm60 != nil {
			norm60 = *meta.Norm60
		}
	}
	var imp any
	if impact != nil {
		imp = *impact
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE items SET
			impact = COALESCE(impact, ?),
			impact60 = COALESCE(impact60, ?),
			impact_meta = COALESCE(?, impact_meta)
		WHERE id = ?`,
		imp, norm60, metaJSON, id,
	)
	if err != nil {
		return fmt.Errorf("set impact: %w", err)
	}
	return nil
}

func (s *Store) TopImpact(ctx context.Context, limit int, since time.Time, source models.Source) ([]models.Item, error) {
	q := `SELECT id, source, asset, ts, text, score, label, url, relevant, confidence, labels, reason, impact, impact60, impact_meta
		FROM items WHERE impact IS NOT NULL AND ts >= ?`
	args := []any{since.Unix()}
	if source != "" {
		q += " AND source = ?"
		args = append(args, string(source))
	}
	q += " ORDER BY impact DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("top impact: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// --- signals ---

func (s *Store) InsertSignal(ctx context.Context, sig *models.Signal) error {
	var (
		priceClose, rsi14, macd, macdSig, atrPct any
		priceBias                                any
	)
	if t := sig.Technical; t != nil {
		priceClose = t.PriceClose
		rsi14 = fptr(t.RSI14)
		macd = fptr(t.MACD)
		macdSig = fptr(t.MACDSignal)
		atrPct = fptr(t.ATRPct)
		priceBias = nullStr(t.PriceBias)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (asset, ts, ema15, mentions, mentions_z, alpha, action, price_close, rsi14, macd, macd_signal, atr_pct, price_bias)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset, ts) DO NOTHING`,
		sig.Asset, sig.Timestamp.Unix(), sig.EMA15, sig.Mentions, sig.MentionsZ, sig.Alpha, string(sig.Action),
		priceClose, rsi14, macd, macdSig, atrPct, priceBias,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domrepo.ErrTickOverlap
	}
	return nil
}

func (s *Store) LatestSignal(ctx context.Context, asset string) (*models.Signal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT asset, ts, ema15, mentions, mentions_z, alpha, action, price_close, rsi14, macd, macd_signal, atr_pct, price_bias
		FROM signals WHERE asset = ? ORDER BY ts DESC LIMIT 1`,
		asset,
	)
	sig, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sig, err
}

func (s *Store) ListSignals(ctx context.Context, asset string, limit int, f domrepo.SignalFilter) ([]models.Signal, error) {
	q := `SELECT asset, ts, ema15, mentions, mentions_z, alpha, action, price_close, rsi14, macd, macd_signal, atr_pct, price_bias
		FROM signals WHERE asset = ?`
	args := []any{asset}
	if f.Action != "" {
		q += " AND action = ?"
		args = append(args, string(f.Action))
	}
	if !f.Since.IsZero() {
		q += " AND ts >= ?"
		args = append(args, f.Since.Unix())
	}
	if !f.Until.IsZero() {
		q += " AND ts <= ?"
		args = append(args, f.Until.Unix())
	}
	if f.Ascending {
		q += " ORDER BY ts ASC"
	} else {
		q += " ORDER BY ts DESC"
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, rows.Err()
}

// --- prices ---

func (s *Store) UpsertCandles(ctx context.Context, candles []models.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO prices (symbol, timeframe, ts, o, h, l, c, v)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, ts) DO UPDATE SET
			o = excluded.o, h = excluded.h, l = excluded.l, c = excluded.c, v = excluded.v`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, c.Timeframe, c.Timestamp.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return n, fmt.Errorf("upsert candle: %w", err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit upsert: %w", err)
	}
	return n, nil
}

func (s *Store) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, ts, o, h, l, c, v FROM prices
		WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC`,
		symbol, timeframe, from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		var ts int64
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- aggregates / lifecycle ---

func (s *Store) Stats(ctx context.Context, asset string) (models.Stats, error) {
	var st models.Stats
	now := time.Now().UTC()

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE asset = ?`, asset,
	).Scan(&st.ItemsTotal); err != nil {
		return st, fmt.Errorf("stats items: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signals WHERE asset = ?`, asset,
	).Scan(&st.SignalsTotal); err != nil {
		return st, fmt.Errorf("stats signals: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE asset = ? AND ts >= ?`, asset, now.Add(-15*time.Minute).Unix(),
	).Scan(&st.ItemsLast15m); err != nil {
		return st, fmt.Errorf("stats 15m: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(score), 0) FROM items WHERE asset = ? AND ts >= ?`, asset, now.Add(-time.Hour).Unix(),
	).Scan(&st.AvgScore1h); err != nil {
		return st, fmt.Errorf("stats avg: %w", err)
	}
	return st, nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return nil } // handle owned by pkg/sqlite client

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	var out []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func scanItem(r rowScanner) (*models.Item, error) {
	var (
		it         models.Item
		src        string
		ts         int64
		url        sql.NullString
		relevant   sql.NullInt64
		confidence sql.NullFloat64
		labels     sql.NullString
		reason     sql.NullString
		impact     sql.NullFloat64
		impact60   sql.NullFloat64
		metaJSON   sql.NullString
	)
	if err := r.Scan(&it.ID, &src, &it.Asset, &ts, &it.Text, &it.Score, &it.Label,
		&url, &relevant, &confidence, &labels, &reason, &impact, &impact60, &metaJSON); err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Source = models.Source(src)
	it.Timestamp = time.Unix(ts, 0).UTC()
	it.URL = url.String
	if relevant.Valid {
		rel := &models.Relevance{Relevant: relevant.Int64 == 1}
		if confidence.Valid {
			rel.Confidence = confidence.Float64
		}
		if labels.Valid && labels.String != "" {
			rel.Labels = strings.Split(labels.String, ",")
		}
		rel.Reason = reason.String
		it.Relevance = rel
	}
	if impact.Valid {
		v := impact.Float64
		it.Impact = &v
	}
	if metaJSON.Valid && metaJSON.String != "" {
		var meta models.ImpactMeta
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err == nil {
			if meta.Norm60 == nil && impact60.Valid {
				v := impact60.Float64
				meta.Norm60 = &v
			}
			it.Meta = &meta
		}
	} else if impact60.Valid {
		v := impact60.Float64
		it.Meta = &models.ImpactMeta{Norm60: &v}
	}
	return &it, nil
}

func scanSignal(r rowScanner) (*models.Signal, error) {
	var (
		sig        models.Signal
		ts         int64
		action     string
		priceClose sql.NullFloat64
		rsi14      sql.NullFloat64
		macd       sql.NullFloat64
		macdSig    sql.NullFloat64
		atrPct     sql.NullFloat64
		priceBias  sql.NullString
	)
	if err := r.Scan(&sig.Asset, &ts, &sig.EMA15, &sig.Mentions, &sig.MentionsZ, &sig.Alpha, &action,
		&priceClose, &rsi14, &macd, &macdSig, &atrPct, &priceBias); err != nil {
		return nil, err
	}
	sig.Timestamp = time.Unix(ts, 0).UTC()
	sig.Action = models.Action(action)
	if priceClose.Valid {
		t := &models.Technical{PriceClose: priceClose.Float64, PriceBias: priceBias.String}
		t.RSI14 = nullF(rsi14)
		t.MACD = nullF(macd)
		t.MACDSignal = nullF(macdSig)
		t.ATRPct = nullF(atrPct)
		sig.Technical = t
	}
	return &sig, nil
}

func nullF(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fptr(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
