package reportgen

import (
	"context"
	"testing"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	notifications []domain.Notification
	err           error
}

func (f *fakeSource) RecentNotifications(ctx context.Context, since time.Time) ([]domain.Notification, error) {
	return f.notifications, f.err
}

func TestGenerate_AggregatesStatsByMonitorType(t *testing.T) {
	src := &fakeSource{notifications: []domain.Notification{
		{MAC: "aa", MonitorType: domain.MonitorGeoFence},
		{MAC: "aa", MonitorType: domain.MonitorGeoFence},
		{MAC: "bb", MonitorType: domain.MonitorPanic},
		{MAC: "cc", MonitorType: domain.MonitorMovement},
		{MAC: "dd", MonitorType: domain.MonitorLocation},
	}}
	gen := New(src, "Acme Corp")

	report, err := gen.Generate(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 5, report.Stats.Total)
	assert.Equal(t, 2, report.Stats.GeoFence)
	assert.Equal(t, 1, report.Stats.Panic)
	assert.Equal(t, 1, report.Stats.Movement)
	assert.Equal(t, 1, report.Stats.Location)
	assert.Equal(t, 4, report.TotalObjectsMonitored)
	assert.Equal(t, "Acme Corp", report.Metadata.OrganizationName)
	assert.NotEmpty(t, report.Metadata.ID)
}

func TestGenerate_RanksAreasByCountDescending(t *testing.T) {
	src := &fakeSource{notifications: []domain.Notification{
		{MAC: "low", MonitorType: domain.MonitorGeoFence},
		{MAC: "high", MonitorType: domain.MonitorGeoFence},
		{MAC: "high", MonitorType: domain.MonitorGeoFence},
		{MAC: "high", MonitorType: domain.MonitorGeoFence},
	}}
	gen := New(src, "")

	report, err := gen.Generate(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, report.TopAreas, 2)
	assert.Equal(t, "high", report.TopAreas[0].AreaID)
	assert.Equal(t, 1, report.TopAreas[0].Rank)
	assert.Equal(t, 3, report.TopAreas[0].Count)
}

func TestGenerate_PanicViolationProducesCriticalRecommendation(t *testing.T) {
	src := &fakeSource{notifications: []domain.Notification{
		{MAC: "aa", MonitorType: domain.MonitorPanic},
	}}
	gen := New(src, "")

	report, err := gen.Generate(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, "critical", report.Recommendations[0].Priority)
}

func TestGenerate_NoNotificationsProducesEmptyReport(t *testing.T) {
	src := &fakeSource{}
	gen := New(src, "")

	report, err := gen.Generate(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Stats.Total)
	assert.Empty(t, report.TopAreas)
	assert.Empty(t, report.Recommendations)
}

func TestGenerate_PropagatesStoreError(t *testing.T) {
	src := &fakeSource{err: assertErr("db down")}
	gen := New(src, "")

	_, err := gen.Generate(context.Background(), time.Now())
	assert.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
