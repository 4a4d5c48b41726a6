package subscription

import (
	"strings"
	"time"
)

// Entitlement is the feature snapshot and license scope a purchase grants.
type Entitlement struct {
	FeatureSetVersion string
	LicenseScope      LicenseScope
}

// Grant is an entitlement together with its access window.
// EndDate is always concrete; lifetime grants end at LifetimeEndDate.
type Grant struct {
	Entitlement
	StartDate time.Time
	EndDate   time.Time
}

// IsLifetime reports whether the grant is irrevocable.
func (g Grant) IsLifetime() bool {
	return g.LicenseScope == LicenseScopeLifetime
}

// ResolveEntitlement derives the entitlement a purchase of plan grants.
//
// Values from the purchased price's metadata win field by field. Without them
// the plan decides: lifetime_access pins the plan's own feature snapshot,
// anything else follows the current feature set on a subscription license.
// Lifetime scope is only ever taken from explicit metadata or the plan flag;
// unknown license_scope values are ignored. The version is never empty.
//
// Neither plan nor priceMetadata is modified.
func ResolveEntitlement(plan Plan, priceMetadata map[string]string) Entitlement {
	scope := LicenseScopeSubscription
	if plan.IsLifetime() {
		scope = LicenseScopeLifetime
	}
	if v := LicenseScope(strings.ToLower(metadataValue(priceMetadata, MetadataLicenseScope))); v.Valid() {
		scope = v
	}

	version := metadataValue(priceMetadata, MetadataFeatureSetVersion)
	if version == "" && scope == LicenseScopeLifetime {
		version = strings.TrimSpace(plan.FeatureSetVersion)
	}
	if version == "" {
		version = FeatureSetCurrent
	}

	return Entitlement{
		FeatureSetVersion: version,
		LicenseScope:      scope,
	}
}

// NewGrant resolves the entitlement and access window for a purchase made at start.
func NewGrant(plan Plan, priceMetadata map[string]string, start time.Time) Grant {
	ent := ResolveEntitlement(plan, priceMetadata)
	return Grant{
		Entitlement: ent,
		StartDate:   start,
		EndDate:     ResolveEndDate(plan, ent.LicenseScope, start),
	}
}

func metadataValue(md map[string]string, key string) string {
	if md == nil {
		return ""
	}
	return strings.TrimSpace(md[key])
}
