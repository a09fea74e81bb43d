// Package quota tracks windowed usage against configured allowances
// and decides how over-quota requests are handled.
//
// # Overview
//
// A quota bounds a named usage metric (api_calls, invoices_processed)
// for a scope (organization, user, API key) over a window from one
// minute up to the lifetime of the account. Four enforcement postures
// govern what happens at the limit:
//
//   - Soft: log and alert, never deny
//   - Hard: deny once the projected usage would exceed the limit
//   - Throttle: progressive delay approaching the limit, deny above it
//   - Overage: allow above the limit and compute a monetary charge
//
// # Usage
//
//	manager := quota.NewManager(quota.ManagerOptions{
//	    Store: store,
//	    Cache: sharedCache,
//	})
//
//	err := manager.Register(quota.Config{
//	    ID:      "api-calls-daily",
//	    Metric:  "api_calls",
//	    Scope:   quota.ScopeOrganization,
//	    Window:  window.Day,
//	    Limit:   10000,
//	    Level:   quota.LevelHard,
//	    Enabled: true,
//	})
//
//	res, err := manager.CheckEnforcement(ctx, "api-calls-daily", "org-123", 1)
//	if res.Allowed {
//	    // handle the request, then:
//	    _ = manager.RecordUsage(ctx, "api-calls-daily", "org-123", 1, nil)
//	}
//
// Checks never consume usage; RecordUsage runs after successful
// handling so rejected requests are not charged.
//
// # Alerting
//
// Threshold breaches and overages dispatch alerts through the
// Notifier collaborator, rate-limited by a per-(quota, scope, type)
// cooldown stored in the shared cache.
package quota
