package depgraph

import (
	"reflect"
	"testing"

	"github.com/leapstack-labs/semabridge/internal/semantic"
)

func TestLayerize(t *testing.T) {
	models := []*semantic.Model{
		model("customers", primary("customer")),
		model("products", primary("product")),
		model("orders", primary("order"), foreign("customer"), foreign("product")),
		model("payments", primary("payment"), foreign("order")),
	}

	layers := Layerize(Build(models, BuildIndex(models), nil), nil)

	want := []Layer{
		{Index: 1, Models: []string{"customers", "products"}},
		{Index: 2, Models: []string{"orders"}},
		{Index: 3, Models: []string{"payments"}},
	}
	if !reflect.DeepEqual(layers, want) {
		t.Errorf("Layerize = %+v, want %+v", layers, want)
	}
}

func TestLayerize_EveryDependencyInEarlierLayer(t *testing.T) {
	models := []*semantic.Model{
		model("a", primary("ka")),
		model("b", primary("kb"), foreign("ka")),
		model("c", primary("kc"), foreign("ka"), foreign("kb")),
		model("d", primary("kd"), foreign("kc")),
	}

	dm := Build(models, BuildIndex(models), nil)
	layers := Layerize(dm, nil)

	placedAt := make(map[string]int)
	for _, l := range layers {
		for _, m := range l.Models {
			placedAt[m] = l.Index
		}
	}
	for name, rec := range dm.Records {
		for _, dep := range rec.DependsOn {
			if placedAt[dep] >= placedAt[name] {
				t.Errorf("%s (layer %d) depends on %s (layer %d)",
					name, placedAt[name], dep, placedAt[dep])
			}
		}
	}
}

func TestLayerize_CycleForcedIntoFinalLayer(t *testing.T) {
	models := []*semantic.Model{
		model("standalone", primary("item")),
		model("left", primary("l"), foreign("r")),
		model("right", primary("r"), foreign("l")),
	}

	layers := Layerize(Build(models, BuildIndex(models), nil), nil)

	want := []Layer{
		{Index: 1, Models: []string{"standalone"}},
		{Index: 2, Models: []string{"left", "right"}},
	}
	if !reflect.DeepEqual(layers, want) {
		t.Errorf("Layerize = %+v, want %+v", layers, want)
	}
}

func TestLayerize_Empty(t *testing.T) {
	dm := Build(nil, EntityIndex{}, nil)
	if layers := Layerize(dm, nil); len(layers) != 0 {
		t.Errorf("Layerize(empty) = %+v, want none", layers)
	}
}
