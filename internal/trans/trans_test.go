package trans

import (
	"testing"

	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/math"
)

func TestPartsOrder(t *testing.T) {
	p := NewParts()
	for _, n := range []string{"body", "door", "body", "wheel"} {
		p.Add(n)
	}
	names := p.Names()
	want := []string{"body", "door", "wheel"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] || p.Index(want[i]) != i {
			t.Errorf("part %d = %s", i, names[i])
		}
	}
	if p.Index("missing") != -1 {
		t.Error("missing part has an index")
	}
}

func TestMaterials(t *testing.T) {
	m := NewMaterials()
	red := &scene.Material{Name: "red"}
	if i := m.Add("red", red); i != 0 {
		t.Errorf("first index = %d", i)
	}
	m.Add("_not_existing_material_", nil)
	if i := m.Add("red", nil); i != 0 {
		t.Errorf("re-add index = %d", i)
	}
	if got, ok := m.Get("red"); !ok || got != red {
		t.Errorf("Get(red) = %v, %v", got, ok)
	}
	if got, ok := m.Get("_not_existing_material_"); !ok || got != nil {
		t.Errorf("missing material = %v, %v", got, ok)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestTerrainPoints(t *testing.T) {
	tp := NewTerrainPoints()
	tp.Add(1, 0, TerrainPoint{Position: math.Vec3{X: 1}})
	tp.Add(GlobalVariant, 2, TerrainPoint{})
	tp.Add(1, 0, TerrainPoint{Position: math.Vec3{X: 2}})

	v := tp.Variants()
	if len(v) != 2 || v[0] != GlobalVariant || v[1] != 1 {
		t.Errorf("Variants = %v", v)
	}
	pts := tp.Get(1, 0)
	if len(pts) != 2 || pts[1].Position.X != 2 {
		t.Errorf("Get(1, 0) = %v", pts)
	}
	if tp.Len() != 3 {
		t.Errorf("Len = %d", tp.Len())
	}
	if tp.Get(5, 5) != nil {
		t.Error("unknown bucket not empty")
	}
}
