// Package database provides TimescaleDB connectivity for persisting
// decoded sFlow memcache samples.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	PoolSize int
}

// Client represents a database client.
type Client struct {
	pool *pgxpool.Pool
	ctx  context.Context
}

// NewClient creates a new database client.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d",
		config.Host, config.Port, config.Database, config.User, config.Password, config.PoolSize,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	poolConfig.MaxConns = int32(config.PoolSize)
	poolConfig.MinConns = int32(config.PoolSize / 4)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool, ctx: ctx}, nil
}

// Close closes the database connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// MemcacheOperationRecord is one decoded sampled memcache operation, ready
// for insertion into the operations hypertable.
type MemcacheOperationRecord struct {
	Time         time.Time
	AgentIP      string
	SourceID     int64
	Protocol     int32
	Command      int32
	Key          string
	NKeys        int32
	ValueBytes   int64
	DurationUs   int64
	Status       int32
	SamplingRate int32
	LocalPort    int32
	RemotePort   int32
	RemoteIP     string
}

// InsertOperations bulk-inserts decoded memcache operation samples using
// COPY, the same high-throughput path the original telemetry pipeline
// used for flow records.
func (c *Client) InsertOperations(records []MemcacheOperationRecord) error {
	if len(records) == 0 {
		return nil
	}

	conn, err := c.pool.Acquire(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	columns := []string{
		"time", "agent_ip", "source_id", "protocol", "command", "key",
		"nkeys", "value_bytes", "duration_us", "status", "sampling_rate",
		"local_port", "remote_port", "remote_ip",
	}

	_, err = conn.Conn().CopyFrom(
		c.ctx,
		pgx.Identifier{"memcache_operations"},
		columns,
		pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			r := records[i]
			return []interface{}{
				r.Time, r.AgentIP, r.SourceID, r.Protocol, r.Command, r.Key,
				r.NKeys, r.ValueBytes, r.DurationUs, r.Status, r.SamplingRate,
				r.LocalPort, r.RemotePort, r.RemoteIP,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memcache operations: %w", err)
	}
	return nil
}

// MemcacheCountersRecord is one decoded periodic counters snapshot, ready
// for insertion into the counters hypertable.
type MemcacheCountersRecord struct {
	Time             time.Time
	AgentIP          string
	SourceID         int64
	Uptime           int64
	CurrConnections  int64
	TotalConnections int64
	CmdGet           int64
	CmdSet           int64
	GetHits          int64
	GetMisses        int64
	BytesRead        int64
	BytesWritten     int64
	CurrItems        int64
	TotalItems       int64
	Evictions        int64
}

// InsertCounters bulk-inserts decoded counters snapshots.
func (c *Client) InsertCounters(records []MemcacheCountersRecord) error {
	if len(records) == 0 {
		return nil
	}

	conn, err := c.pool.Acquire(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	columns := []string{
		"time", "agent_ip", "source_id", "uptime", "curr_connections",
		"total_connections", "cmd_get", "cmd_set", "get_hits", "get_misses",
		"bytes_read", "bytes_written", "curr_items", "total_items", "evictions",
	}

	_, err = conn.Conn().CopyFrom(
		c.ctx,
		pgx.Identifier{"memcache_counters"},
		columns,
		pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			r := records[i]
			return []interface{}{
				r.Time, r.AgentIP, r.SourceID, r.Uptime, r.CurrConnections,
				r.TotalConnections, r.CmdGet, r.CmdSet, r.GetHits, r.GetMisses,
				r.BytesRead, r.BytesWritten, r.CurrItems, r.TotalItems, r.Evictions,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memcache counters: %w", err)
	}
	return nil
}

// TopKey summarizes sampled operation volume for one key, scaled by
// sampling rate to estimate true traffic.
type TopKey struct {
	Key            string
	EstimatedHits  int64
	SampleCount    int64
	AvgDurationUs  float64
}

// GetTopKeys returns the busiest sampled keys in a time window, scaling
// each sample by its sampling_rate to estimate true operation volume —
// the same scale-by-rate technique sFlow collectors use for byte/packet
// counters, applied here to key hit counts.
func (c *Client) GetTopKeys(startTime, endTime time.Time, limit int) ([]TopKey, error) {
	query := `
		SELECT
			key,
			SUM(sampling_rate) AS estimated_hits,
			COUNT(*) AS sample_count,
			AVG(duration_us) AS avg_duration_us
		FROM memcache_operations
		WHERE time BETWEEN $1 AND $2
		GROUP BY key
		ORDER BY estimated_hits DESC
		LIMIT $3
	`

	rows, err := c.pool.Query(c.ctx, query, startTime, endTime, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top keys: %w", err)
	}
	defer rows.Close()

	var results []TopKey
	for rows.Next() {
		var tk TopKey
		if err := rows.Scan(&tk.Key, &tk.EstimatedHits, &tk.SampleCount, &tk.AvgDurationUs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, tk)
	}
	return results, rows.Err()
}

// CommandDistribution summarizes sampled operation volume by command.
type CommandDistribution struct {
	Command       int32
	EstimatedHits int64
	SampleCount   int64
}

// GetCommandDistribution returns sampled operation volume broken down by
// memcache command.
func (c *Client) GetCommandDistribution(startTime, endTime time.Time) ([]CommandDistribution, error) {
	query := `
		SELECT
			command,
			SUM(sampling_rate) AS estimated_hits,
			COUNT(*) AS sample_count
		FROM memcache_operations
		WHERE time BETWEEN $1 AND $2
		GROUP BY command
		ORDER BY estimated_hits DESC
	`

	rows, err := c.pool.Query(c.ctx, query, startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("failed to query command distribution: %w", err)
	}
	defer rows.Close()

	var results []CommandDistribution
	for rows.Next() {
		var cd CommandDistribution
		if err := rows.Scan(&cd.Command, &cd.EstimatedHits, &cd.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, cd)
	}
	return results, rows.Err()
}

// HealthCheck performs a database health check.
func (c *Client) HealthCheck() error {
	return c.pool.Ping(c.ctx)
}

// GetStats returns connection pool statistics.
func (c *Client) GetStats() *pgxpool.Stat {
	return c.pool.Stat()
}
