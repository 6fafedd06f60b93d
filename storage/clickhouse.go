package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/thisisjab/eventsearch/entity"
	"github.com/thisisjab/eventsearch/fault"
)

type ClickHouseStorageConfig struct {
	Addr          []string `yaml:"addr"`
	Database      string   `yaml:"database"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	EventsTable   string   `yaml:"events_table"`
	ProjectsTable string   `yaml:"projects_table"`
}

// ClickHouseStorage reads projects and events from ClickHouse. It never
// writes.
type ClickHouseStorage struct {
	conn    clickhouse.Conn
	cfg     ClickHouseStorageConfig
	builder *SQLQueryBuilder
}

func NewClickHouseStorage(cfg ClickHouseStorageConfig) (*ClickHouseStorage, error) {
	if len(cfg.Addr) == 0 {
		return nil, errors.New("clickhouse address cannot be empty")
	}

	return &ClickHouseStorage{
		cfg: cfg,
		builder: NewSQLQueryBuilder(SQLOptions{
			EventsTable:   cfg.EventsTable,
			ProjectsTable: cfg.ProjectsTable,
		}),
	}, nil
}

func (s *ClickHouseStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: s.cfg.Addr,
		Auth: clickhouse.Auth{
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	s.conn = conn

	return nil
}

func (s *ClickHouseStorage) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *ClickHouseStorage) FindProjects(ctx context.Context, ids []int64) ([]entity.Project, error) {
	res, ok := s.builder.BuildProjects(ids)
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.conn.Query(ctx, res.Query, res.Args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't query projects: %w", err)
	}
	defer rows.Close()

	var projects []entity.Project
	for rows.Next() {
		var p entity.Project
		if err := rows.Scan(&p.ID, &p.Slug); err != nil {
			return nil, fmt.Errorf("couldn't scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

func (s *ClickHouseStorage) GetEventByID(ctx context.Context, projectID int64, eventID uuid.UUID, columns []string) (entity.Event, error) {
	res, err := s.builder.BuildEventByID(projectID, eventID, columns)
	if err != nil {
		return entity.Event{}, fault.New(fault.BadInputCode, "cannot fetch event").WithOriginal(err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.conn.Query(ctx, res.Query, res.Args...)
	if err != nil {
		return entity.Event{}, fmt.Errorf("couldn't query event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return entity.Event{}, fmt.Errorf("couldn't read event: %w", err)
		}
		return entity.Event{}, fault.New(fault.NotFoundCode, fmt.Sprintf("event %s not found", eventID))
	}

	data, err := scanRow(rows)
	if err != nil {
		return entity.Event{}, err
	}

	return entity.Event{ID: eventID, ProjectID: projectID, Data: data}, nil
}

// scanRow reads the current row into a map keyed by column name, using the
// driver's scan type for each column.
func scanRow(rows driver.Rows) (map[string]any, error) {
	types := rows.ColumnTypes()

	dest := make([]any, len(types))
	for i, ct := range types {
		dest[i] = reflect.New(ct.ScanType()).Interface()
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("couldn't scan event: %w", err)
	}

	data := make(map[string]any, len(types))
	for i, ct := range types {
		data[ct.Name()] = deref(reflect.ValueOf(dest[i]).Elem())
	}

	return data, nil
}

// deref unwraps Nullable columns, which scan into pointers.
func deref(v reflect.Value) any {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}
