package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dbMetricsStartKey = "telemetry:db_metrics_start"

// DBMetrics records query and connection pool metrics for one database
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	slowThreshold  time.Duration
	logger         *zap.Logger
}

// NewDBMetrics creates the query instruments and, when sqlDB is set,
// observable gauges over its pool stats
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, slowThreshold time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}

	queryTotal, err := NewCounter(meter, "db_query_total",
		"Total number of database queries by operation type", "{query}")
	if err != nil {
		return nil, err
	}
	queryDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	slowQueryTotal, err := NewCounter(meter, "db_slow_query_total",
		"Total number of slow database queries", "{query}")
	if err != nil {
		return nil, err
	}

	if sqlDB != nil {
		if err := registerPoolGauges(meter, sqlDB); err != nil {
			return nil, err
		}
	}

	return &DBMetrics{
		queryTotal:     queryTotal,
		queryDuration:  queryDuration,
		slowQueryTotal: slowQueryTotal,
		slowThreshold:  slowThreshold,
		logger:         logger,
	}, nil
}

func registerPoolGauges(meter metric.Meter, sqlDB *sql.DB) error {
	connections, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create gauge db_pool_connections: %w", err)
	}
	maxConnections, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum number of connections in the pool"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create gauge db_pool_connections_max: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(connections, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(connections, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(maxConnections, int64(stats.MaxOpenConnections))
		return nil
	}, connections, maxConnections)
	return err
}

// RecordQuery records one query
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	attrs := []attribute.KeyValue{AttrDBOperation.String(operation), AttrDBTable.String(table)}
	m.queryTotal.Inc(ctx, attrs...)
	m.queryDuration.RecordDuration(ctx, duration, attrs...)
	if duration >= m.slowThreshold {
		m.slowQueryTotal.Inc(ctx, attrs...)
	}
}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string {
	return "telemetry:db_metrics"
}

// Initialize implements gorm.Plugin by timing every statement
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(dbMetricsStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			start, ok := tx.InstanceGet(dbMetricsStartKey)
			if !ok {
				return
			}
			op := operation
			if op == "raw" {
				op = detectOperationType(tx.Statement.SQL.String())
			}
			m.RecordQuery(tx.Statement.Context, op, tx.Statement.Table, time.Since(start.(time.Time)))
		}
	}

	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"create", cb.Create().Before("gorm:create").Register("telemetry:before_create", before)},
		{"create", cb.Create().After("gorm:create").Register("telemetry:after_create", after("insert"))},
		{"query", cb.Query().Before("gorm:query").Register("telemetry:before_query", before)},
		{"query", cb.Query().After("gorm:query").Register("telemetry:after_query", after("select"))},
		{"update", cb.Update().Before("gorm:update").Register("telemetry:before_update", before)},
		{"update", cb.Update().After("gorm:update").Register("telemetry:after_update", after("update"))},
		{"delete", cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", before)},
		{"delete", cb.Delete().After("gorm:delete").Register("telemetry:after_delete", after("delete"))},
		{"raw", cb.Raw().Before("gorm:raw").Register("telemetry:before_raw", before)},
		{"raw", cb.Raw().After("gorm:raw").Register("telemetry:after_raw", after("raw"))},
	}
	for _, r := range registrations {
		if r.err != nil {
			return fmt.Errorf("register %s metrics callback: %w", r.name, r.err)
		}
	}
	m.logger.Debug("Database metrics callbacks registered")
	return nil
}

func detectOperationType(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "other"
	}
	switch op := strings.ToLower(fields[0]); op {
	case "select", "insert", "update", "delete":
		return op
	default:
		return "other"
	}
}

var _ gorm.Plugin = (*DBMetrics)(nil)
