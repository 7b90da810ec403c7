package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// 单条 IN 查询最多携带的 id 数
const chunkSize = 500

// in 展开 IN (?) 参数并按驱动重写占位符
func in(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(q), a, nil
}

// execIn 执行带 IN 列表的写语句，ids 按 chunkSize 分批，ids 为空时不执行
// query 中 IN (?) 必须是最后一个参数
func execIn(ctx context.Context, db *sqlx.DB, query string, ids []int, args ...interface{}) (int64, error) {
	var affected int64
	for _, part := range chunk(ids) {
		q, a, err := in(db, query, append(append([]interface{}{}, args...), part)...)
		if err != nil {
			return affected, err
		}
		res, err := db.ExecContext(ctx, q, a...)
		if err != nil {
			return affected, fmt.Errorf("exec %q: %w", firstWords(query), err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}
	return affected, nil
}

// selectIn 执行带 IN 列表的查询，结果追加到 dest
func selectIn[T any](ctx context.Context, db *sqlx.DB, query string, ids []int, args ...interface{}) ([]T, error) {
	var out []T
	for _, part := range chunk(ids) {
		q, a, err := in(db, query, append(append([]interface{}{}, args...), part)...)
		if err != nil {
			return nil, err
		}
		var rows []T
		if err := db.SelectContext(ctx, &rows, q, a...); err != nil {
			return nil, fmt.Errorf("select %q: %w", firstWords(query), err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

func chunk(ids []int) [][]int {
	var parts [][]int
	for len(ids) > chunkSize {
		parts = append(parts, ids[:chunkSize])
		ids = ids[chunkSize:]
	}
	if len(ids) > 0 {
		parts = append(parts, ids)
	}
	return parts
}

func firstWords(q string) string {
	if len(q) > 48 {
		return q[:48]
	}
	return q
}
