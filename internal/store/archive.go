package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// 中文说明：
// SQLite 归档：留存每轮分析（trace_id 关联）、模拟盘交易流水与估值快照。
// 归档属于旁路能力，写入失败由调用方记日志后继续，不阻塞分析流程。
// 估值快照同时支撑净值曲线图表与 HTTP 查询接口。

// RunRecord 一轮完整分析的归档记录。
type RunRecord struct {
	TraceID       string
	Timestamp     int64 // 毫秒
	Model         string
	SummaryChars  int
	NewsCount     int
	Report        string
	DecisionsJSON string
}

// TradeOp 单条交易指令的执行结果。
type TradeOp struct {
	TraceID    string
	Timestamp  int64
	Action     string
	Symbol     string
	Price      float64
	AmountUSDT float64
	Executed   bool
	Reason     string
}

// ValuationPoint 估值快照。
type ValuationPoint struct {
	Timestamp  int64
	Balance    float64
	TotalValue float64
}

type Archive struct {
	db *sql.DB
}

// Open 打开（或创建）归档数据库并确保表结构。
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建归档目录失败: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开归档数据库失败: %w", err)
	}
	a := &Archive{db: db}
	if err := a.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			summary_chars INTEGER NOT NULL DEFAULT 0,
			news_count INTEGER NOT NULL DEFAULT 0,
			report TEXT NOT NULL DEFAULT '',
			decisions_json TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_ts ON analysis_runs(ts)`,
		`CREATE TABLE IF NOT EXISTS trade_ops (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			action TEXT NOT NULL,
			symbol TEXT NOT NULL,
			price REAL NOT NULL,
			amount_usdt REAL NOT NULL,
			executed INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_ops_ts ON trade_ops(ts)`,
		`CREATE TABLE IF NOT EXISTS valuations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			balance REAL NOT NULL,
			total_value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_valuations_ts ON valuations(ts)`,
	}
	for _, s := range stmts {
		if _, err := a.db.Exec(s); err != nil {
			return fmt.Errorf("初始化归档表失败: %w", err)
		}
	}
	return nil
}

func (a *Archive) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (trace_id, ts, model, summary_chars, news_count, report, decisions_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Timestamp, rec.Model, rec.SummaryChars, rec.NewsCount, rec.Report, rec.DecisionsJSON)
	return err
}

func (a *Archive) SaveTradeOp(ctx context.Context, op TradeOp) error {
	if op.Timestamp == 0 {
		op.Timestamp = time.Now().UnixMilli()
	}
	executed := 0
	if op.Executed {
		executed = 1
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO trade_ops (trace_id, ts, action, symbol, price, amount_usdt, executed, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.TraceID, op.Timestamp, op.Action, op.Symbol, op.Price, op.AmountUSDT, executed, op.Reason)
	return err
}

func (a *Archive) SaveValuation(ctx context.Context, p ValuationPoint) error {
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().UnixMilli()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO valuations (ts, balance, total_value) VALUES (?, ?, ?)`,
		p.Timestamp, p.Balance, p.TotalValue)
	return err
}

// ListValuations 按时间正序返回最近 limit 条估值快照。
func (a *Archive) ListValuations(ctx context.Context, limit int) ([]ValuationPoint, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT ts, balance, total_value FROM (
			SELECT ts, balance, total_value FROM valuations ORDER BY ts DESC LIMIT ?
		 ) ORDER BY ts ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ValuationPoint
	for rows.Next() {
		var p ValuationPoint
		if err := rows.Scan(&p.Timestamp, &p.Balance, &p.TotalValue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTradeOps 按时间倒序返回最近 limit 条交易流水。
func (a *Archive) ListTradeOps(ctx context.Context, limit int) ([]TradeOp, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT trace_id, ts, action, symbol, price, amount_usdt, executed, reason
		 FROM trade_ops ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TradeOp
	for rows.Next() {
		var op TradeOp
		var executed int
		if err := rows.Scan(&op.TraceID, &op.Timestamp, &op.Action, &op.Symbol, &op.Price, &op.AmountUSDT, &executed, &op.Reason); err != nil {
			return nil, err
		}
		op.Executed = executed != 0
		out = append(out, op)
	}
	return out, rows.Err()
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
