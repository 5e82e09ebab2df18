package depgraph

import (
	"reflect"
	"testing"

	"github.com/leapstack-labs/semabridge/internal/semantic"
)

func model(name string, entities ...semantic.Entity) *semantic.Model {
	return &semantic.Model{Name: name, File: name + ".yml", Entities: entities}
}

func primary(name string) semantic.Entity {
	return semantic.Entity{Name: name, Type: semantic.EntityPrimary}
}

func foreign(name string) semantic.Entity {
	return semantic.Entity{Name: name, Type: semantic.EntityForeign}
}

func TestBuildIndex(t *testing.T) {
	models := []*semantic.Model{
		model("customers", primary("customer")),
		model("orders", primary("order"), foreign("customer")),
		model("events", semantic.Entity{Name: "event", Type: semantic.EntityUnique}),
	}

	idx := BuildIndex(models)

	if len(idx) != 3 {
		t.Fatalf("index size = %d, want 3", len(idx))
	}
	if idx["customer"].Model != "customers" {
		t.Errorf("customer owner = %q, want customers", idx["customer"].Model)
	}
	if idx["event"].Model != "events" {
		t.Errorf("event owner = %q, want events", idx["event"].Model)
	}
	if _, ok := idx["order"]; !ok {
		t.Error("primary entity order missing from index")
	}
}

func TestBuild(t *testing.T) {
	models := []*semantic.Model{
		model("customers", primary("customer")),
		model("orders", primary("order"), foreign("customer")),
		model("payments", primary("payment"), foreign("order"), foreign("customer")),
	}

	dm := Build(models, BuildIndex(models), nil)

	if want := []string{"customers", "orders", "payments"}; !reflect.DeepEqual(dm.Names, want) {
		t.Fatalf("Names = %v, want %v", dm.Names, want)
	}
	if deps := dm.Records["orders"].DependsOn; !reflect.DeepEqual(deps, []string{"customers"}) {
		t.Errorf("orders deps = %v, want [customers]", deps)
	}
	if deps := dm.Records["payments"].DependsOn; !reflect.DeepEqual(deps, []string{"orders", "customers"}) {
		t.Errorf("payments deps = %v, want [orders customers]", deps)
	}
	if deps := dm.Records["customers"].Dependents; !reflect.DeepEqual(deps, []string{"orders", "payments"}) {
		t.Errorf("customers dependents = %v, want [orders payments]", deps)
	}
}

func TestBuild_UnresolvedEntityMakesNoEdge(t *testing.T) {
	models := []*semantic.Model{
		model("orders", primary("order"), foreign("warehouse")),
	}

	dm := Build(models, BuildIndex(models), nil)

	rec := dm.Records["orders"]
	if len(rec.DependsOn) != 0 {
		t.Errorf("DependsOn = %v, want empty", rec.DependsOn)
	}
	if !reflect.DeepEqual(rec.Unresolved, []string{"warehouse"}) {
		t.Errorf("Unresolved = %v, want [warehouse]", rec.Unresolved)
	}
}

func TestBuild_SelfReferenceMakesNoEdge(t *testing.T) {
	models := []*semantic.Model{
		model("employees", primary("employee"), foreign("employee")),
	}

	dm := Build(models, BuildIndex(models), nil)

	if deps := dm.Records["employees"].DependsOn; len(deps) != 0 {
		t.Errorf("DependsOn = %v, want empty", deps)
	}
}

func TestDependents(t *testing.T) {
	models := []*semantic.Model{
		model("customers", primary("customer")),
		model("orders", primary("order"), foreign("customer")),
		model("payments", primary("payment"), foreign("order")),
		model("products", primary("product")),
	}

	dm := Build(models, BuildIndex(models), nil)

	got := dm.Dependents([]string{"customers"})
	want := []string{"customers", "orders", "payments"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependents(customers) = %v, want %v", got, want)
	}

	got = dm.Dependents([]string{"products"})
	if !reflect.DeepEqual(got, []string{"products"}) {
		t.Errorf("Dependents(products) = %v, want [products]", got)
	}

	if got := dm.Dependents([]string{"missing"}); len(got) != 0 {
		t.Errorf("Dependents(missing) = %v, want empty", got)
	}
}

func TestSubset(t *testing.T) {
	models := []*semantic.Model{
		model("customers", primary("customer")),
		model("orders", primary("order"), foreign("customer")),
		model("payments", primary("payment"), foreign("order")),
	}

	dm := Build(models, BuildIndex(models), nil)
	sub := dm.Subset([]string{"orders", "payments"})

	if want := []string{"orders", "payments"}; !reflect.DeepEqual(sub.Names, want) {
		t.Fatalf("Names = %v, want %v", sub.Names, want)
	}
	// The edge to customers falls outside the subset and is dropped.
	if deps := sub.Records["orders"].DependsOn; len(deps) != 0 {
		t.Errorf("orders deps = %v, want empty", deps)
	}
	if deps := sub.Records["payments"].DependsOn; !reflect.DeepEqual(deps, []string{"orders"}) {
		t.Errorf("payments deps = %v, want [orders]", deps)
	}
}
