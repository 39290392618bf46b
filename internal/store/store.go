// Package store reads aggregated campaign metrics per channel from the
// marketing database and turns them into feature rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/iwvelando/budget-optimizer/internal/features"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Store queries campaign metrics.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	logger  *zap.Logger
}

// Open connects to the metrics database.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("store dsn is empty")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}
	return New(db, driver, logger)
}

// New wraps an open database handle.
func New(db *sql.DB, driver string, logger *zap.Logger) (*Store, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverPostgres:
		placeholder = sq.Dollar
	case DriverSQLite:
		placeholder = sq.Question
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger:  logger,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Query filters the aggregated metrics. Zero values mean no filter.
type Query struct {
	UserID int64
	From   time.Time
	To     time.Time
}

// ChannelMetrics is one channel's aggregate over the query window.
type ChannelMetrics struct {
	Channel     string
	Days        int
	Cost        float64
	Revenue     float64
	Clicks      float64
	Impressions float64
}

// AvgDailyCost is Cost spread over the days with metrics.
func (m ChannelMetrics) AvgDailyCost() float64 {
	if m.Days == 0 {
		return 0
	}
	return m.Cost / float64(m.Days)
}

// ROAS is revenue over cost in percent, 0 without spend.
func (m ChannelMetrics) ROAS() float64 {
	if m.Cost == 0 {
		return 0
	}
	return m.Revenue / m.Cost * constants.PercentageMultiplier
}

// CPC is cost per click, 0 without clicks.
func (m ChannelMetrics) CPC() float64 {
	if m.Clicks == 0 {
		return 0
	}
	return m.Cost / m.Clicks
}

// CTR is clicks over impressions in percent, 0 without impressions.
func (m ChannelMetrics) CTR() float64 {
	if m.Impressions == 0 {
		return 0
	}
	return m.Clicks / m.Impressions * constants.PercentageMultiplier
}

func (s *Store) channelMetricsQuery(q Query) sq.SelectBuilder {
	b := s.builder.
		Select(
			"ma.channel_code",
			"COUNT(DISTINCT cm.metric_date)",
			"COALESCE(SUM(cm.cost), 0)",
			"COALESCE(SUM(cm.revenue), 0)",
			"COALESCE(SUM(cm.clicks), 0)",
			"COALESCE(SUM(cm.impressions), 0)",
		).
		From("campaign_metrics cm").
		Join("campaigns c ON cm.campaign_id = c.id").
		Join("marketing_accounts ma ON c.marketing_account_id = ma.id").
		Where(sq.Eq{"c.status": "active"})
	if q.UserID != 0 {
		b = b.Where(sq.Eq{"ma.user_id": q.UserID})
	}
	if !q.From.IsZero() {
		b = b.Where(sq.GtOrEq{"cm.metric_date": q.From.Format(constants.DateLayout)})
	}
	if !q.To.IsZero() {
		b = b.Where(sq.LtOrEq{"cm.metric_date": q.To.Format(constants.DateLayout)})
	}
	return b.GroupBy("ma.channel_code").OrderBy("ma.channel_code")
}

// ChannelFeatures aggregates metrics per channel over the query window.
func (s *Store) ChannelFeatures(ctx context.Context, q Query) ([]ChannelMetrics, error) {
	query, args, err := s.channelMetricsQuery(q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build channel metrics query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channel metrics: %w", err)
	}
	defer rows.Close()

	var out []ChannelMetrics
	for rows.Next() {
		var m ChannelMetrics
		if err := rows.Scan(&m.Channel, &m.Days, &m.Cost, &m.Revenue, &m.Clicks, &m.Impressions); err != nil {
			return nil, fmt.Errorf("scan channel metrics: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel metrics: %w", err)
	}

	s.logger.Debug("loaded channel metrics",
		zap.String("op", "store.ChannelFeatures"),
		zap.Int("channels", len(out)),
		zap.Time("from", q.From),
		zap.Time("to", q.To),
	)
	return out, nil
}

// ChannelInputs maps metrics onto catalog channels in catalog order. Channels
// unknown to the catalog are returned separately.
func ChannelInputs(catalog *features.Catalog, metrics []ChannelMetrics) ([]features.ChannelInput, []string) {
	byName := make(map[string]ChannelMetrics, len(metrics))
	var skipped []string
	for _, m := range metrics {
		ch, ok := catalog.Lookup(m.Channel)
		if !ok {
			skipped = append(skipped, m.Channel)
			continue
		}
		byName[ch.Name] = m
	}

	var inputs []features.ChannelInput
	for _, ch := range catalog.Channels() {
		m, ok := byName[ch.Name]
		if !ok {
			continue
		}
		in := features.ChannelInput{Channel: ch.Name}
		if m.Days > 0 {
			cost := m.AvgDailyCost()
			in.Cost = &cost
		}
		if m.Cost > 0 {
			roas := m.ROAS()
			in.ROAS = &roas
		}
		if m.Clicks > 0 {
			cpc := m.CPC()
			in.CPC = &cpc
		}
		if m.Impressions > 0 {
			ctr := m.CTR()
			in.CTR = &ctr
		}
		inputs = append(inputs, in)
	}
	return inputs, skipped
}
