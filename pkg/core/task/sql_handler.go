package task

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	// 数据库驱动：sqlite/mysql/postgres
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLExecHandler SQL执行Handler（对外导出）
// 依次执行exec中的SQL语句；query非空时随后执行查询，
// 结果以[]map[string]interface{}写入output_key。
// 参数：
//   - driver (string, 必填): sqlite3/mysql/postgres
//   - dsn (string, 必填): 数据库连接字符串
//   - exec ([]string, 可选): 要执行的SQL语句列表
//   - query (string, 可选): 查询语句
//   - output_key (string, query非空时必填)
func SQLExecHandler(ctx *ExecutionContext, params map[string]interface{}) error {
	driver := paramString(params, "driver")
	dsn := paramString(params, "dsn")
	if driver == "" || dsn == "" {
		return fmt.Errorf("参数 driver/dsn 均不能为空")
	}

	db, err := sqlx.ConnectContext(ctx.Context(), driver, dsn)
	if err != nil {
		return fmt.Errorf("连接数据库失败: driver=%s, Error=%w", driver, err)
	}
	defer db.Close()

	for _, stmt := range paramStrings(params, "exec") {
		if _, err := db.ExecContext(ctx.Context(), stmt); err != nil {
			return fmt.Errorf("执行SQL失败: %s, Error=%w", stmt, err)
		}
	}

	query := paramString(params, "query")
	if query == "" {
		return nil
	}
	outputKey := paramString(params, "output_key")
	if outputKey == "" {
		return fmt.Errorf("参数 output_key 不能为空（query非空时必填）")
	}

	rows, err := db.QueryxContext(ctx.Context(), query)
	if err != nil {
		return fmt.Errorf("查询失败: %s, Error=%w", query, err)
	}
	defer rows.Close()

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return fmt.Errorf("读取查询结果失败: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("遍历查询结果失败: %w", err)
	}

	ctx.Set(outputKey, results)
	return nil
}

// paramStrings 读取字符串列表参数（内部方法）
func paramStrings(params map[string]interface{}, key string) []string {
	v, ok := params[key]
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		result := make([]string, 0, len(list))
		for _, item := range list {
			result = append(result, fmt.Sprintf("%v", item))
		}
		return result
	}
	return nil
}
