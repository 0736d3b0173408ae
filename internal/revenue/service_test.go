package revenue

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestward/pestward/internal/pricing"
	"github.com/pestward/pestward/internal/visits"
	_ "github.com/pestward/pestward/testing"
)

type stubVisitSource struct {
	rows  []visits.UnifiedVisit
	calls int
}

func (s *stubVisitSource) ListUnified(_ context.Context, _ int64, _ int, _ time.Month) ([]visits.UnifiedVisit, error) {
	s.calls++
	return s.rows, nil
}

type stubPlanSource struct {
	plans pricing.Snapshot
}

func (s *stubPlanSource) Snapshot(_ context.Context, _ int64, _ []int64) (pricing.Snapshot, error) {
	return s.plans, nil
}

type stubMaterialSource struct {
	totals map[int64]float64
	err    error
}

func (s *stubMaterialSource) TotalsByVisit(_ context.Context, _ int64, _ []int64) (map[int64]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.totals, nil
}

// flakyMaterialSource fails a fixed number of calls before recovering.
type flakyMaterialSource struct {
	failures int
	totals   map[int64]float64
}

func (s *flakyMaterialSource) TotalsByVisit(_ context.Context, _ int64, _ []int64) (map[int64]float64, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("connection refused")
	}
	return s.totals, nil
}

func testCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestMonthlyReportAggregates(t *testing.T) {
	visitSrc := &stubVisitSource{rows: []visits.UnifiedVisit{
		completedVisit(1, 10, 100, 5),
		completedVisit(2, 10, 100, 12),
		plannedRequest(3, 11, 200, 20),
	}}
	planSrc := &stubPlanSource{plans: pricing.Snapshot{
		10: {CustomerID: 10, Type: pricing.TypePerVisit, PerVisitPrice: 200},
	}}
	materialSrc := &stubMaterialSource{totals: map[int64]float64{1: 50}}

	svc := NewService(visitSrc, planSrc, materialSrc, NewCache(nil, 0), nil, ServiceConfig{Currency: "TRY"})
	report, err := svc.MonthlyReport(context.Background(), 1, 2026, time.June)
	require.NoError(t, err)

	assert.Equal(t, "2026-06", report.Month)
	assert.False(t, report.Degraded)
	assert.InDelta(t, 400, report.ServiceRevenue, 1e-9)
	assert.InDelta(t, 50, report.MaterialRevenue, 1e-9)
	assert.InDelta(t, 450, report.Total, 1e-9)
	require.Len(t, report.Rows, 3)
	require.Len(t, report.Branches, 2)
	assert.Equal(t, int64(100), report.Branches[0].BranchID)
	assert.InDelta(t, 450, report.Branches[0].Total, 1e-9)
	assert.Zero(t, report.Branches[1].Total)
}

func TestMonthlyReportDegradesWhenMaterialsFail(t *testing.T) {
	visitSrc := &stubVisitSource{rows: []visits.UnifiedVisit{completedVisit(1, 10, 100, 5)}}
	planSrc := &stubPlanSource{plans: pricing.Snapshot{
		10: {CustomerID: 10, Type: pricing.TypePerVisit, PerVisitPrice: 200},
	}}
	materialSrc := &stubMaterialSource{err: errors.New("connection refused")}

	svc := NewService(visitSrc, planSrc, materialSrc, NewCache(nil, 0), nil, ServiceConfig{})
	report, err := svc.MonthlyReport(context.Background(), 1, 2026, time.June)
	require.NoError(t, err)

	assert.True(t, report.Degraded)
	assert.NotEmpty(t, report.DegradedCause)
	assert.InDelta(t, 200, report.Total, 1e-9, "service revenue still present")
	assert.Zero(t, report.MaterialRevenue)
}

func TestMonthlyReportServedFromCacheUntilBump(t *testing.T) {
	visitSrc := &stubVisitSource{rows: []visits.UnifiedVisit{completedVisit(1, 10, 100, 5)}}
	planSrc := &stubPlanSource{plans: pricing.Snapshot{
		10: {CustomerID: 10, Type: pricing.TypePerVisit, PerVisitPrice: 200},
	}}
	materialSrc := &stubMaterialSource{}
	cache := testCache(t)

	svc := NewService(visitSrc, planSrc, materialSrc, cache, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.MonthlyReport(ctx, 1, 2026, time.June)
	require.NoError(t, err)
	_, err = svc.MonthlyReport(ctx, 1, 2026, time.June)
	require.NoError(t, err)
	assert.Equal(t, 1, visitSrc.calls, "second read must hit the cache")

	require.NoError(t, cache.Bump(ctx))
	_, err = svc.MonthlyReport(ctx, 1, 2026, time.June)
	require.NoError(t, err)
	assert.Equal(t, 2, visitSrc.calls, "bump must invalidate cached reports")
}

func TestDegradedReportNotCached(t *testing.T) {
	visitSrc := &stubVisitSource{rows: []visits.UnifiedVisit{completedVisit(1, 10, 100, 5)}}
	planSrc := &stubPlanSource{plans: pricing.Snapshot{
		10: {CustomerID: 10, Type: pricing.TypePerVisit, PerVisitPrice: 200},
	}}
	materialSrc := &flakyMaterialSource{failures: 1, totals: map[int64]float64{1: 50}}
	cache := testCache(t)

	svc := NewService(visitSrc, planSrc, materialSrc, cache, nil, ServiceConfig{})
	ctx := context.Background()

	report, err := svc.MonthlyReport(ctx, 1, 2026, time.June)
	require.NoError(t, err)
	require.True(t, report.Degraded)
	assert.Zero(t, report.MaterialRevenue)

	report, err = svc.MonthlyReport(ctx, 1, 2026, time.June)
	require.NoError(t, err)
	assert.False(t, report.Degraded, "recovered backend should yield a full report")
	assert.InDelta(t, 50, report.MaterialRevenue, 1e-9)
	assert.Equal(t, 2, visitSrc.calls, "degraded report must be rebuilt, full report cached")

	_, err = svc.MonthlyReport(ctx, 1, 2026, time.June)
	require.NoError(t, err)
	assert.Equal(t, 2, visitSrc.calls, "full report is served from cache")
}

func TestWriteCSVIncludesTotalsAndDegradedNote(t *testing.T) {
	report := &Report{
		Month:    "2026-06",
		Currency: "TRY",
		Rows: []Row{{
			UnifiedVisit: completedVisit(1, 10, 100, 5),
			Revenue:      Line{ServiceRevenue: 200, MaterialRevenue: 50, Total: 250},
		}},
		ServiceRevenue:  200,
		MaterialRevenue: 50,
		Total:           250,
		Degraded:        true,
		DegradedCause:   "material sale lookup unavailable",
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "# revenue report 2026-06 (TRY)")
	assert.Contains(t, out, "# DEGRADED: material sale lookup unavailable")
	assert.Contains(t, out, "service_revenue")
	assert.Contains(t, out, "total")
}
