package orm

import (
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Type        string `mapstructure:"type"`         // mysql | sqlite
	DSN         string `mapstructure:"source_name"`  // 连接字符串
	MaxIdle     int    `mapstructure:"max_idle"`     // 最大空闲连接
	MaxOpen     int    `mapstructure:"max_open"`     // 最大打开连接
	MaxLifetime int    `mapstructure:"max_lifetime"` // 连接存活秒数
	LogSQL      bool   `mapstructure:"log_sql"`      // 开发环境打印 SQL
}

func gormConfig(c *Config) *gorm.Config {
	level := logger.Warn
	if c.LogSQL {
		level = logger.Info
	}
	return &gorm.Config{
		Logger: logger.Default.LogMode(level),
		// 唯一键冲突翻译成 gorm.ErrDuplicatedKey，不用关心具体驱动的错误码
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Open 按 Type 选择驱动
func Open(c *Config) (*gorm.DB, error) {
	switch c.Type {
	case "", "mysql":
		return NewMySQL(c)
	case "sqlite":
		return NewSQLite(c.DSN)
	default:
		return nil, fmt.Errorf("unsupported db type %q", c.Type)
	}
}

// NewMySQL 初始化 GORM
func NewMySQL(c *Config) (*gorm.DB, error) {
	dsn, err := normalizeDSN(c.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(c))
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 连接池
	sqlDB.SetMaxIdleConns(c.MaxIdle)
	sqlDB.SetMaxOpenConns(c.MaxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(c.MaxLifetime) * time.Second)

	return db, nil
}

// NewSQLite 本地开发和测试用
// 只开一个连接：内存库每个连接都是独立的库，而且事务天然串行
func NewSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(&Config{}))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// normalizeDSN 时间列统一按 UTC 解析，配置里漏写 parseTime 也不会读出 []byte
// clientFoundRows: 条件更新按匹配行数返回 RowsAffected，值没变也算命中
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
