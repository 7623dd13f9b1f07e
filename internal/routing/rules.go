// Package routing delivers captured inbound items into tenant document
// spaces exactly once, with an audit trail.
package routing

import (
	"sort"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
)

// MatchRoutingRule selects the routing rule for a tenant: active rules whose
// target matches, highest priority first. The sort is stable, so among rules
// of equal priority the first-seen rule wins. Returns nil when no rule
// applies.
func MatchRoutingRule(tenantID uuid.UUID, rules []*models.RoutingRule) *models.RoutingRule {
	var matching []*models.RoutingRule
	for _, rule := range rules {
		if rule.IsActive && rule.TargetTenantID == tenantID {
			matching = append(matching, rule)
		}
	}

	if len(matching) == 0 {
		return nil
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Priority > matching[j].Priority
	})

	return matching[0]
}
