package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
)

// SQLStore 将会话快照保存在 sessions 表，postgres 使用 JSONB，sqlite 使用 TEXT
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore 打开数据库并建表。driver 为 config.DriverPostgres 或 config.DriverSQLite。
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	var sqlDriver string
	switch driver {
	case config.DriverPostgres:
		sqlDriver = "postgres"
	case config.DriverSQLite:
		sqlDriver = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == config.DriverSQLite {
		// 内存库每个连接独立
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(2 * time.Minute)
	}

	s := &SQLStore{db: db, driver: driver}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	snapshotType := "TEXT"
	if s.driver == config.DriverPostgres {
		snapshotType = "JSONB"
	}

	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			snapshot   ` + snapshotType + ` NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// rebind 将 ? 占位符转换为 postgres 的 $n
func (s *SQLStore) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT snapshot FROM sessions WHERE id = ?`), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *SQLStore) Save(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, status, snapshot, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		session.ID, string(session.Status), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// NewStore 按配置选择存储后端
func NewStore(cfg *config.Config) (SessionStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis, "":
		return NewRedisStore(&cfg.Redis), nil
	case config.DriverPostgres, config.DriverSQLite:
		return NewSQLStore(cfg.Storage.Driver, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
