package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // 注册 "sqlite" 驱动

	"github.com/dep2p/go-natlink/internal/util/logger"
	"github.com/dep2p/go-natlink/pkg/interfaces"
	"github.com/dep2p/go-natlink/pkg/types"
)

var log = logger.Logger("store")

// driverName modernc.org/sqlite 注册的驱动名
const driverName = "sqlite"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// 确保实现接口
var _ interfaces.Store = (*SQLiteStore)(nil)

// SQLiteStore 基于 SQLite 的结构化存储
type SQLiteStore struct {
	cfg    Config
	db     *sql.DB
	path   string
	closed bool
}

// New 创建存储，尚未打开数据库
func New(cfg Config) *SQLiteStore {
	return &SQLiteStore{cfg: cfg}
}

// Open 按配置创建并打开存储
func Open(cfg Config) (*SQLiteStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := New(cfg)
	if err := s.Connect(cfg.Path); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect 打开数据库文件
//
// 连接池限制为单连接：内存库的数据只存在于该连接中。
func (s *SQLiteStore) Connect(path string) error {
	if s.closed {
		return ErrClosed
	}
	if s.db != nil {
		return ErrAlreadyConnected
	}
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("store: open %s: %w", path, err)
	}
	if s.cfg.BusyTimeoutMs > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d;", s.cfg.BusyTimeoutMs)); err != nil {
			log.Warn("设置 busy_timeout 失败", "error", err)
		}
	}

	s.db = db
	s.path = path
	log.Debug("存储已打开", "path", path)
	return nil
}

// Path 返回已打开的数据库路径
func (s *SQLiteStore) Path() string {
	return s.path
}

// GenerateTable 建表（已存在则跳过）
//
// Direct 字段使用 NUMERIC 亲和性，Quoted 字段使用 TEXT，第一个字段为主键。
func (s *SQLiteStore) GenerateTable(name string, fields []types.TableField) error {
	if err := s.usable(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrEmptySchema
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, name)
	}

	cols := make([]string, 0, len(fields))
	for i, f := range fields {
		if !identPattern.MatchString(f.Name) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, f.Name)
		}
		col := f.Name + " " + columnType(f.Kind)
		if i == 0 {
			col += " PRIMARY KEY"
		}
		cols = append(cols, col)
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", name, strings.Join(cols, ", "))
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("store: create table %s: %w", name, err)
	}
	log.Debug("数据表就绪", "table", name, "columns", len(fields))
	return nil
}

// RunSQL 执行查询
//
// 先读完全部结果行再逐行调用 fn，回调中可以再次使用存储。
func (s *SQLiteStore) RunSQL(query string, fn interfaces.RowFunc, args ...any) ([]types.Row, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return collectRows(rows, fn)
}

// Query 只读查询
//
// 只接受单条 SELECT 或 WITH 语句，并在 query_only 模式下执行，
// 写入与 DDL 均被拒绝。结束后连接恢复可写。
func (s *SQLiteStore) Query(query string, fn interfaces.RowFunc) ([]types.Row, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	stmt, err := readOnlyStatement(query)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON;"); err != nil {
		return nil, fmt.Errorf("store: query_only: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = OFF;"); err != nil {
			log.Warn("恢复可写模式失败", "error", err)
		}
	}()

	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return collectRows(rows, fn)
}

// readOnlyStatement 去掉结尾分号，要求单条语句且以 SELECT 或 WITH 开头
func readOnlyStatement(query string) (string, error) {
	stmt := strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
	if stmt == "" {
		return "", fmt.Errorf("%w: empty statement", ErrReadOnly)
	}
	if strings.Contains(stmt, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrReadOnly)
	}

	end := strings.IndexFunc(stmt, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	kw := stmt
	if end >= 0 {
		kw = stmt[:end]
	}
	switch strings.ToUpper(kw) {
	case "SELECT", "WITH":
		return stmt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrReadOnly, kw)
	}
}

// collectRows 读完并关闭结果集，再逐行调用 fn
func collectRows(rows *sql.Rows, fn interfaces.RowFunc) ([]types.Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: columns: %w", err)
	}

	var result []types.Row
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		row := make(types.Row, len(cols))
		for i, col := range cols {
			if v, ok := formatValue(values[i]); ok {
				row[col] = v
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}

	if fn != nil {
		for _, row := range result {
			fn(row)
		}
	}
	return result, nil
}

// Exec 执行写语句，返回受影响的行数
func (s *SQLiteStore) Exec(query string, args ...any) (int64, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Close 关闭数据库，重复调用无副作用
func (s *SQLiteStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	log.Debug("存储已关闭", "path", s.path)
	return err
}

func (s *SQLiteStore) usable() error {
	if s.closed {
		return ErrClosed
	}
	if s.db == nil {
		return ErrNotConnected
	}
	return nil
}

// ============================================================================
//                              值转换
// ============================================================================

func columnType(kind types.FieldKind) string {
	if kind == types.FieldDirect {
		return "NUMERIC"
	}
	return "TEXT"
}

// formatValue 把驱动返回的值转换为字符串，NULL 返回 false
func formatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05"), true
	default:
		return fmt.Sprint(x), true
	}
}
