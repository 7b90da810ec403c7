package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/core/snowflake"

	"github.com/jmoiron/sqlx"
)

// 日志分类
const (
	KindAdmin    = "admin"
	KindModerate = "moderate"
	KindUser     = "user"
)

// Sink 管理/审核日志，每个逻辑操作调用一次
type Sink interface {
	Log(ctx context.Context, action string, actorID int, extra map[string]interface{}) error
}

// DBSink 写入 log_actions 表
type DBSink struct {
	db *sqlx.DB
}

// NewDBSink 创建 DBSink
func NewDBSink(db *sqlx.DB) *DBSink {
	return &DBSink{db: db}
}

// kindOf 动作所属分类
func kindOf(action string) string {
	switch action {
	case "remove", "delete", "restore_topic", "removed_from_group", "added_to_group",
		"char_removed_from_group", "char_added_to_group":
		return KindModerate
	default:
		return KindAdmin
	}
}

// Log 写入一条操作日志
func (s *DBSink) Log(ctx context.Context, action string, actorID int, extra map[string]interface{}) error {
	data, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("marshal audit extra: %w", err)
	}
	id := snowflake.Generate()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO log_actions (id_action, id_log, log_time, id_member, action, extra) VALUES (?, ?, ?, ?, ?, ?)",
		id, kindOf(action), time.Now().Unix(), actorID, action, string(data))
	if err != nil {
		logger.Error("write audit log failed", logger.String("action", action), logger.ErrorField(err))
		return fmt.Errorf("write audit log: %w", err)
	}
	logger.Info("audit", logger.String("action", action), logger.Int("actor", actorID), logger.Any("extra", extra))
	return nil
}
