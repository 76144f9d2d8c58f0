// Package storage 提供Workflow执行记录的持久化归档。
// 引擎自身的执行历史仅驻留内存且有界；需要长期留存时，
// 由归档器把终态事件写入数据库。
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// 数据库驱动：sqlite/mysql/postgres
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// RunRecord 一次Workflow执行的归档记录（对外导出）
type RunRecord struct {
	ID         int64     `db:"id"`
	WorkflowID string    `db:"workflow_id"`
	Name       string    `db:"name"`
	Status     string    `db:"status"`
	Progress   int       `db:"progress"`
	FinishedAt time.Time `db:"finished_at"`
}

// RunRecordRepository 执行记录存储接口（对外导出）
type RunRecordRepository interface {
	// Save 保存一条执行记录
	Save(ctx context.Context, record *RunRecord) error
	// ListRecent 按完成时间倒序返回最近limit条记录
	ListRecent(ctx context.Context, limit int) ([]*RunRecord, error)
	// Close 关闭底层连接
	Close() error
}

// SQLRunRecordRepository 基于sqlx的执行记录存储（对外导出）
type SQLRunRecordRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLRunRecordRepository 连接数据库并初始化表结构（对外导出）
// driver: sqlite3/mysql/postgres
func NewSQLRunRecordRepository(ctx context.Context, driver, dsn string) (*SQLRunRecordRepository, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接归档数据库失败: driver=%s, Error=%w", driver, err)
	}

	if _, err := db.ExecContext(ctx, dialect.CreateTableSQL()); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化run_records表失败: %w", err)
	}

	return &SQLRunRecordRepository{db: db, dialect: dialect}, nil
}

// Save 保存一条执行记录（对外导出）
func (r *SQLRunRecordRepository) Save(ctx context.Context, record *RunRecord) error {
	query := fmt.Sprintf(
		"INSERT INTO run_records (workflow_id, name, status, progress, finished_at) VALUES (%s, %s, %s, %s, %s)",
		r.dialect.Placeholder(1), r.dialect.Placeholder(2), r.dialect.Placeholder(3),
		r.dialect.Placeholder(4), r.dialect.Placeholder(5),
	)
	if _, err := r.db.ExecContext(ctx, query,
		record.WorkflowID, record.Name, record.Status, record.Progress, record.FinishedAt); err != nil {
		return fmt.Errorf("保存执行记录失败: WorkflowID=%s, Error=%w", record.WorkflowID, err)
	}
	return nil
}

// ListRecent 按完成时间倒序返回最近limit条记录（对外导出）
func (r *SQLRunRecordRepository) ListRecent(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(
		"SELECT id, workflow_id, name, status, progress, finished_at FROM run_records ORDER BY finished_at DESC, id DESC LIMIT %s",
		r.dialect.Placeholder(1),
	)
	records := make([]*RunRecord, 0, limit)
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("查询执行记录失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层连接（对外导出）
func (r *SQLRunRecordRepository) Close() error {
	return r.db.Close()
}

var _ RunRecordRepository = (*SQLRunRecordRepository)(nil)
