package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	// database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const defaultTable = "client_metadata"

// SQLSource reads client metadata from a table holding one row per client,
// the metadata column contains the JSON encoded registration.
type SQLSource struct {
	log     *zap.Logger
	db      *sqlx.DB
	table   string
	builder sq.StatementBuilderType
}

type metadataRow struct {
	ClientID string `db:"client_id"`
	Metadata string `db:"metadata"`
}

// NewSQLSource opens a source for the given database type (sqlite, mysql, pg)
func NewSQLSource(logger *zap.Logger, dbType string, dsn string, table string) (*SQLSource, error) {
	var driver string
	builder := sq.StatementBuilder
	switch dbType {
	case "sqlite":
		driver = "sqlite3"
	case "mysql":
		driver = "mysql"
	case "pg":
		driver = "pgx"
		builder = builder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unknown database type %q", dbType)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		logger.Error("Could not open database", zap.Error(err))
		return nil, err
	}
	return newSQLSource(logger, db, table, builder), nil
}

func newSQLSource(logger *zap.Logger, db *sqlx.DB, table string, builder sq.StatementBuilderType) *SQLSource {
	if table == "" {
		table = defaultTable
	}
	return &SQLSource{
		log:     logger,
		db:      db,
		table:   table,
		builder: builder,
	}
}

func (s *SQLSource) Load(ctx context.Context) (map[string]any, error) {
	q := s.builder.
		Select("client_id", "metadata").
		From(s.table).
		OrderBy("client_id")
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []metadataRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("could not query metadata: %w", err)
	}
	result := make(map[string]any, len(rows))
	for _, row := range rows {
		var md map[string]any
		if err := json.Unmarshal([]byte(row.Metadata), &md); err != nil || md == nil {
			return nil, fmt.Errorf("%w: metadata of client %q is not a JSON object", ErrMalformedDocument, row.ClientID)
		}
		result[row.ClientID] = md
	}
	s.log.Debug("metadata rows read", zap.Int("rows", len(rows)), zap.String("table", s.table))
	return result, nil
}

// Close releases the underlying database handle
func (s *SQLSource) Close() error {
	return s.db.Close()
}

func (s *SQLSource) String() string {
	return fmt.Sprintf("%s:%s", strings.ToLower(s.db.DriverName()), s.table)
}
