package quota

import "testing"

func TestStaticCatalog_EffectiveLimit(t *testing.T) {
	catalog := NewStaticCatalog(map[string]map[string]int64{
		"pro":        {"api_calls": 5000, "tokens": 1000000},
		"enterprise": {"api_calls": 50000},
	})
	catalog.Assign("org-1", "pro")
	catalog.Assign("org-2", "enterprise")

	t.Run("assigned scope", func(t *testing.T) {
		limit, found := catalog.EffectiveLimit("org-1", "api_calls")
		if !found {
			t.Fatal("expected override for assigned scope")
		}
		if limit != 5000 {
			t.Errorf("expected limit 5000, got %d", limit)
		}
	})

	t.Run("unassigned scope uses base limit", func(t *testing.T) {
		if _, found := catalog.EffectiveLimit("org-9", "api_calls"); found {
			t.Error("expected no override for unassigned scope")
		}
	})

	t.Run("metric missing from tier", func(t *testing.T) {
		if _, found := catalog.EffectiveLimit("org-2", "tokens"); found {
			t.Error("expected no override for metric the tier does not declare")
		}
	})
}

func TestStaticCatalog_AssignEmptyTierRemoves(t *testing.T) {
	catalog := NewStaticCatalog(map[string]map[string]int64{
		"pro": {"api_calls": 5000},
	})
	catalog.Assign("org-1", "pro")
	catalog.Assign("org-1", "")

	if _, found := catalog.EffectiveLimit("org-1", "api_calls"); found {
		t.Error("expected override to be removed after empty assignment")
	}
}

func TestStaticCatalog_Replace(t *testing.T) {
	catalog := NewStaticCatalog(map[string]map[string]int64{
		"pro": {"api_calls": 5000},
	})
	catalog.Assign("org-1", "pro")

	catalog.Replace(
		map[string]map[string]int64{"team": {"api_calls": 2000}},
		map[string]string{"org-2": "team"},
	)

	if _, found := catalog.EffectiveLimit("org-1", "api_calls"); found {
		t.Error("expected old assignment to be gone after replace")
	}
	limit, found := catalog.EffectiveLimit("org-2", "api_calls")
	if !found || limit != 2000 {
		t.Errorf("expected limit 2000 for replaced catalog, got %d (found=%t)", limit, found)
	}
}

func TestStaticCatalog_ReplaceNilClears(t *testing.T) {
	catalog := NewStaticCatalog(map[string]map[string]int64{
		"pro": {"api_calls": 5000},
	})
	catalog.Assign("org-1", "pro")

	catalog.Replace(nil, nil)

	if _, found := catalog.EffectiveLimit("org-1", "api_calls"); found {
		t.Error("expected empty catalog after nil replace")
	}
}
