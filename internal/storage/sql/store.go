package sql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tempmail/worker/internal/domain"
)

// Store SQL 数据库存储实现（支持 SQLite、PostgreSQL 和 MySQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "sqlite", "postgres", "pgx" or "mysql"
}

// NewStore 创建SQL数据库存储
//
// driverName 为 sqlite 时 dsn 是数据库文件路径，父目录不存在时自动创建。
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		gormDB *gorm.DB
		db     *sql.DB
		err    error
	)

	switch driverName {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		gormDB, err = gorm.Open(sqlite.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db, err = gormDB.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		// SQLite 只允许单写者
		maxOpenConns, maxIdleConns = 1, 1

	case "postgres", "pgx", "mysql":
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		var dialector gorm.Dialector
		if driverName == "mysql" {
			dialector = mysql.New(mysql.Config{Conn: db})
		} else {
			dialector = postgres.New(postgres.Config{Conn: db})
		}

		gormDB, err = gorm.Open(dialector, gormConfig)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize GORM: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, pgx, mysql)", driverName)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}

// DriverName 返回当前使用的驱动名
func (s *Store) DriverName() string {
	return s.driverName
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.Alias{},
		&domain.Message{},
	)
}

// storageError 给底层错误加上 ErrStorage 分类
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
