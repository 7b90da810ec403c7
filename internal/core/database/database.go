package database

import (
	"fmt"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var db *sqlx.DB

// Open 按配置打开连接池并检查连通性
// sqlite 只允许单连接，写操作由库内串行化
func Open(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "mysql"
	}

	conn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == "sqlite" {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	return conn, nil
}

// Init 初始化全局连接
func Init(cfg *config.DatabaseConfig) error {
	conn, err := Open(cfg)
	if err != nil {
		logger.Error("failed to connect database", logger.ErrorField(err))
		return err
	}
	db = conn

	if cfg.Driver == "sqlite" {
		logger.Info("database initialized", logger.String("driver", "sqlite"), logger.String("path", cfg.Path))
	} else {
		logger.Info("database initialized",
			logger.String("host", cfg.Host),
			logger.Int("port", cfg.Port),
			logger.String("database", cfg.Name))
	}
	return nil
}

// Get 获取全局连接
func Get() *sqlx.DB {
	return db
}

// Close 关闭全局连接
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// Ping 检查连通性，未初始化时视为正常
func Ping() error {
	if db == nil {
		return nil
	}
	return db.Ping()
}
