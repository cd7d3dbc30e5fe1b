package inventory

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
)

func TestPlanRestock(t *testing.T) {
	items := []Item{{ID: "1", Name: "Atta (5kg)", Stock: 2}, {ID: "2", Name: "Sugar (1kg)", Stock: 0}}
	plan, err := PlanRestock([]RestockRequest{{Name: "cheeni", Quantity: 10}, {Name: "ghee", Quantity: 1}, {Name: "sugar", Quantity: 5}}, items, nil)
	if err != nil {
		t.Fatalf("plan restock: %v", err)
	}
	if diff := cmp.Diff([]int{10, 5}, plan.Changes); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Items) != 2 || plan.Items[0].ID != "2" || plan.Items[1].ID != "2" {
		t.Fatalf("expected one entry per applied request, got %+v", plan.Items)
	}
	if plan.Items[0].Stock != 10 || plan.Items[1].Stock != 15 {
		t.Fatalf("expected stock 10 then 15, got %d then %d", plan.Items[0].Stock, plan.Items[1].Stock)
	}
	if diff := cmp.Diff([]string{"ghee"}, plan.Unmatched); diff != "" {
		t.Fatalf("unmatched mismatch (-want +got):\n%s", diff)
	}
	if items[1].Stock != 0 {
		t.Fatal("PlanRestock must not modify its input")
	}
}

func TestPlanRestockErrors(t *testing.T) {
	items := []Item{{ID: "1", Name: "Atta (5kg)"}}
	if _, err := PlanRestock(nil, items, nil); apperrors.CodeOf(err) != apperrors.CodeRestockInvalidRequest {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := PlanRestock([]RestockRequest{{Name: "atta", Quantity: -1}}, items, nil); apperrors.CodeOf(err) != apperrors.CodeRestockInvalidRequest {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := PlanRestock([]RestockRequest{{Name: "ghee", Quantity: 1}}, items, nil); apperrors.CodeOf(err) != apperrors.CodeRestockNoMatch {
		t.Fatalf("expected no match, got %v", err)
	}
}
