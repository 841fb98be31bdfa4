package isochrone

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// StatisticsProvider answers aggregate questions about an isochrone polygon
type StatisticsProvider interface {
	Population(ctx context.Context, poly orb.Polygon) (float64, error)
}

// StatsConfig locates the population table
type StatsConfig struct {
	DSN              string `yaml:"dsn"`
	Table            string `yaml:"table"`
	GeometryColumn   string `yaml:"geometry_column"`
	PopulationColumn string `yaml:"population_column"`
	MaxConns         int32  `yaml:"max_conns"`
}

// rowQuerier is the part of pgxpool.Pool the provider uses
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostGISStats sums a population column over the features a polygon intersects
type PostGISStats struct {
	db    rowQuerier
	pool  *pgxpool.Pool
	query string
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// NewPostGISStats connects to the database described by cfg
func NewPostGISStats(ctx context.Context, cfg StatsConfig) (*PostGISStats, error) {
	query, err := populationQuery(cfg)
	if err != nil {
		return nil, err
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostGISStats{db: pool, pool: pool, query: query}, nil
}

func newPostGISStatsWith(db rowQuerier, cfg StatsConfig) (*PostGISStats, error) {
	query, err := populationQuery(cfg)
	if err != nil {
		return nil, err
	}
	return &PostGISStats{db: db, query: query}, nil
}

func populationQuery(cfg StatsConfig) (string, error) {
	if cfg.Table == "" {
		cfg.Table = "population"
	}
	if cfg.GeometryColumn == "" {
		cfg.GeometryColumn = "geom"
	}
	if cfg.PopulationColumn == "" {
		cfg.PopulationColumn = "total_pop"
	}
	for _, id := range []string{cfg.Table, cfg.GeometryColumn, cfg.PopulationColumn} {
		if !identifier.MatchString(id) {
			return "", fmt.Errorf("invalid identifier %q", id)
		}
	}
	return fmt.Sprintf(
		"SELECT COALESCE(SUM(%s), 0) FROM %s WHERE ST_Intersects(%s, ST_GeomFromWKB($1, 4326))",
		cfg.PopulationColumn, cfg.Table, cfg.GeometryColumn), nil
}

// Population implements StatisticsProvider
func (s *PostGISStats) Population(ctx context.Context, poly orb.Polygon) (float64, error) {
	data, err := wkb.Marshal(poly)
	if err != nil {
		return 0, fmt.Errorf("encoding polygon: %w", err)
	}
	var total float64
	if err := s.db.QueryRow(ctx, s.query, data).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStatisticsUnavailable, err)
	}
	return total, nil
}

// Close releases the connection pool
func (s *PostGISStats) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
