package store

import (
	"context"
	"database/sql"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/budget-optimizer/internal/features"
	"go.uber.org/zap"
)

const testSchema = `
CREATE TABLE marketing_accounts (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, channel_code TEXT NOT NULL);
CREATE TABLE campaigns (id INTEGER PRIMARY KEY, marketing_account_id INTEGER NOT NULL, status TEXT NOT NULL);
CREATE TABLE campaign_metrics (
	id INTEGER PRIMARY KEY,
	campaign_id INTEGER NOT NULL,
	metric_date TEXT NOT NULL,
	impressions INTEGER NOT NULL,
	clicks INTEGER NOT NULL,
	cost REAL NOT NULL,
	conversions INTEGER NOT NULL DEFAULT 0,
	revenue REAL NOT NULL
);
INSERT INTO marketing_accounts (id, user_id, channel_code) VALUES (1, 7, 'naver'), (2, 7, 'google'), (3, 7, 'kakao'), (4, 8, 'naver');
INSERT INTO campaigns (id, marketing_account_id, status) VALUES (10, 1, 'active'), (11, 1, 'paused'), (20, 2, 'active'), (30, 3, 'active'), (40, 4, 'active');
INSERT INTO campaign_metrics (campaign_id, metric_date, impressions, clicks, cost, revenue) VALUES
	(10, '2025-03-01', 10000, 200, 100000, 300000),
	(10, '2025-03-02', 10000, 300, 50000, 150000),
	(11, '2025-03-01', 99999, 999, 999999, 1),
	(20, '2025-03-01', 5000, 100, 40000, 100000),
	(20, '2025-03-05', 5000, 100, 40000, 100000),
	(30, '2025-03-02', 1000, 10, 1000, 500),
	(40, '2025-03-01', 1000, 10, 7777, 7777);
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	s, err := New(db, DriverSQLite, zap.NewNop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s
}

func TestChannelFeatures(t *testing.T) {
	s := newTestStore(t)

	metrics, err := s.ChannelFeatures(context.Background(), Query{UserID: 7})
	if err != nil {
		t.Fatalf("ChannelFeatures returned error: %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("expected 3 channels, got %+v", metrics)
	}

	naver := metrics[2]
	if naver.Channel != "naver" || naver.Days != 2 || naver.Cost != 150000 || naver.Revenue != 450000 {
		t.Fatalf("unexpected naver aggregate %+v", naver)
	}
	if naver.ROAS() != 300 || naver.AvgDailyCost() != 75000 || naver.CPC() != 300 || math.Abs(naver.CTR()-2.5) > 1e-12 {
		t.Fatalf("unexpected naver derived metrics roas=%v cost=%v cpc=%v ctr=%v", naver.ROAS(), naver.AvgDailyCost(), naver.CPC(), naver.CTR())
	}
}

func TestChannelFeaturesDateWindow(t *testing.T) {
	s := newTestStore(t)

	from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	metrics, err := s.ChannelFeatures(context.Background(), Query{UserID: 7, From: from, To: to})
	if err != nil {
		t.Fatalf("ChannelFeatures returned error: %v", err)
	}
	var channels []string
	for _, m := range metrics {
		channels = append(channels, m.Channel)
	}
	if !reflect.DeepEqual(channels, []string{"kakao", "naver"}) {
		t.Fatalf("unexpected channels in window %v", channels)
	}
	if metrics[1].Cost != 50000 {
		t.Fatalf("expected only the 2025-03-02 naver row, got %+v", metrics[1])
	}
}

func TestChannelFeaturesAllUsers(t *testing.T) {
	s := newTestStore(t)
	metrics, err := s.ChannelFeatures(context.Background(), Query{})
	if err != nil {
		t.Fatalf("ChannelFeatures returned error: %v", err)
	}
	for _, m := range metrics {
		if m.Channel == "naver" && m.Cost != 157777 {
			t.Fatalf("expected naver cost across users 157777, got %v", m.Cost)
		}
	}
}

func TestChannelMetricsQueryPlaceholders(t *testing.T) {
	db, err := sql.Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	s, err := New(db, DriverPostgres, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	query, args, err := s.channelMetricsQuery(Query{UserID: 3, From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}).ToSql()
	if err != nil {
		t.Fatalf("ToSql returned error: %v", err)
	}
	if !strings.Contains(query, "$3") || strings.Contains(query, "?") {
		t.Fatalf("expected dollar placeholders, got %s", query)
	}
	if !reflect.DeepEqual(args, []interface{}{"active", int64(3), "2025-01-01"}) {
		t.Fatalf("unexpected args %v", args)
	}

	if _, err := New(db, "mysql", nil); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestChannelInputs(t *testing.T) {
	catalog := features.NewCatalog(features.DefaultChannels)
	metrics := []ChannelMetrics{
		{Channel: "kakao", Days: 1, Cost: 1000, Revenue: 500},
		{Channel: "google", Days: 2, Cost: 80000, Revenue: 200000, Clicks: 200, Impressions: 10000},
		{Channel: "naver", Days: 2, Cost: 150000, Revenue: 450000, Clicks: 500, Impressions: 20000},
		{Channel: "karrot"},
	}

	inputs, skipped := ChannelInputs(catalog, metrics)
	if !reflect.DeepEqual(skipped, []string{"kakao"}) {
		t.Fatalf("expected kakao to be skipped, got %v", skipped)
	}
	if len(inputs) != 3 {
		t.Fatalf("expected 3 inputs, got %d", len(inputs))
	}
	if inputs[0].Channel != "Naver" || inputs[1].Channel != "Google" || inputs[2].Channel != "Karrot" {
		t.Fatalf("expected catalog order, got %+v", inputs)
	}
	if *inputs[1].ROAS != 250 || *inputs[1].Cost != 40000 || *inputs[1].CPC != 400 || math.Abs(*inputs[1].CTR-2) > 1e-12 {
		t.Fatalf("unexpected google input %+v", inputs[1])
	}
	if inputs[2].Cost != nil || inputs[2].ROAS != nil {
		t.Fatalf("channel without metrics should fall back to defaults, got %+v", inputs[2])
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Fatalf("expected Ping to fail on a closed store")
	}
}
