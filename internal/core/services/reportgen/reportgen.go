// Package reportgen builds a domain.ViolationReport from recent
// notifications, grounded on the teacher's own executive-summary
// generator: aggregate raw records into a ranked, recommendation-bearing
// snapshot rather than exposing the raw rows. The ranking here plays the
// role of the teacher's per-device risk ranking: notifications carry no
// area, so each ranked entry is one object MAC and monitor type, with
// the MAC stored in domain.AreaRisk.AreaID.
package reportgen

import (
	"context"
	"sort"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/google/uuid"
)

// notificationSource is the narrow view over ports.Storage this
// package needs: the recent-notifications read used to aggregate a
// report, nothing else.
type notificationSource interface {
	RecentNotifications(ctx context.Context, since time.Time) ([]domain.Notification, error)
}

// Generator builds violation reports on demand.
type Generator struct {
	store notificationSource
	org   string
}

// New constructs a Generator. org is the organization name stamped on
// every report's metadata.
func New(store notificationSource, org string) *Generator {
	return &Generator{store: store, org: org}
}

// Generate aggregates every notification since `since` into a
// domain.ViolationReport ready for PDF export.
func (g *Generator) Generate(ctx context.Context, since time.Time) (*domain.ViolationReport, error) {
	notifications, err := g.store.RecentNotifications(ctx, since)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report := &domain.ViolationReport{
		Metadata: domain.ReportMetadata{
			ID:               uuid.NewString(),
			Title:            "Beacon Violation Summary",
			OrganizationName: g.org,
			GeneratedAt:      now,
			GeneratedBy:      "beacon-sentinel",
			Period:           domain.ReportPeriod{Start: since, End: now},
		},
	}

	objects := make(map[string]struct{})
	areaCounts := make(map[areaKey]int)

	for _, n := range notifications {
		objects[n.MAC] = struct{}{}
		report.Stats.Total++
		switch n.MonitorType {
		case domain.MonitorGeoFence:
			report.Stats.GeoFence++
		case domain.MonitorPanic:
			report.Stats.Panic++
		case domain.MonitorMovement:
			report.Stats.Movement++
		case domain.MonitorLocation:
			report.Stats.Location++
		}
		areaCounts[areaKey{mac: n.MAC, monitor: n.MonitorType.String()}]++
	}
	report.TotalObjectsMonitored = len(objects)
	report.TopAreas = rankAreas(areaCounts)
	report.Recommendations = buildRecommendations(report.Stats)

	return report, nil
}

type areaKey struct {
	mac     string
	monitor string
}

func rankAreas(counts map[areaKey]int) []domain.AreaRisk {
	areas := make([]domain.AreaRisk, 0, len(counts))
	for k, count := range counts {
		areas = append(areas, domain.AreaRisk{
			AreaID:      k.mac,
			MonitorType: k.monitor,
			Count:       count,
			Impact:      impactFor(k.monitor, count),
		})
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Count > areas[j].Count })
	if len(areas) > 10 {
		areas = areas[:10]
	}
	for i := range areas {
		areas[i].Rank = i + 1
	}
	return areas
}

func impactFor(monitor string, count int) string {
	switch {
	case count >= 10:
		return "Repeated " + monitor + " violations"
	case count >= 3:
		return "Recurring " + monitor + " violation"
	default:
		return "Isolated " + monitor + " violation"
	}
}

func buildRecommendations(stats domain.ViolationStats) []domain.Recommendation {
	var recs []domain.Recommendation
	if stats.Panic > 0 {
		recs = append(recs, domain.Recommendation{
			Priority:        "critical",
			Title:           "Investigate panic-button activations",
			Description:     "One or more panic-button events were recorded in this period and require immediate follow-up.",
			Actions:         []string{"Contact the object's assigned responder", "Review panic event timestamps against gateway coverage"},
			EstimatedEffort: "15 minutes",
		})
	}
	if stats.GeoFence > 0 {
		recs = append(recs, domain.Recommendation{
			Priority:        "high",
			Title:           "Review geo-fence boundary adherence",
			Description:     "Objects were observed outside their configured geo-fence during this period.",
			Actions:         []string{"Audit geo_fence_config window and RSSI thresholds", "Confirm gateway placement covers the fenced area"},
			EstimatedEffort: "30 minutes",
		})
	}
	if stats.Movement > 0 {
		recs = append(recs, domain.Recommendation{
			Priority:        "medium",
			Title:           "Check movement-rule sensitivity",
			Description:     "Objects were flagged for insufficient movement over their configured interval.",
			Actions:         []string{"Confirm RSSI delta threshold matches expected object mobility"},
			EstimatedEffort: "20 minutes",
		})
	}
	if stats.Location > 0 {
		recs = append(recs, domain.Recommendation{
			Priority:        "medium",
			Title:           "Review room assignment rules",
			Description:     "Objects were observed outside their assigned room for longer than the configured window.",
			Actions:         []string{"Audit location_not_stay_room_config per affected area"},
			EstimatedEffort: "20 minutes",
		})
	}
	return recs
}
