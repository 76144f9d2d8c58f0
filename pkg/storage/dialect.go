package storage

import "fmt"

// Dialect 数据库方言（对外导出）
// 屏蔽不同驱动在占位符与建表DDL上的差异
type Dialect interface {
	// Name 返回方言名称
	Name() string
	// Placeholder 返回第index个参数的占位符（index从1开始）
	Placeholder(index int) string
	// CreateTableSQL 返回run_records表的建表DDL
	CreateTableSQL() string
}

// DialectFor 根据驱动名称返回方言（对外导出）
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return sqliteDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	}
	return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                { return "sqlite" }
func (sqliteDialect) Placeholder(index int) string { return "?" }
func (sqliteDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS run_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workflow_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL,
		finished_at DATETIME NOT NULL
	)`
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                { return "mysql" }
func (mysqlDialect) Placeholder(index int) string { return "?" }
func (mysqlDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS run_records (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		workflow_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		status VARCHAR(32) NOT NULL,
		progress INT NOT NULL,
		finished_at DATETIME NOT NULL
	)`
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }
func (postgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}
func (postgresDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS run_records (
		id BIGSERIAL PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL,
		finished_at TIMESTAMP NOT NULL
	)`
}
