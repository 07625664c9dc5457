package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/scs-forge/internal/config"
	"github.com/Faultbox/scs-forge/internal/pia"
	"github.com/Faultbox/scs-forge/internal/pim"
	"github.com/Faultbox/scs-forge/internal/pis"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

const truckScene = `
materials:
  - name: red
    props:
      mat_effect: eut2.dif
      shader_texture_base: /model/red.tobj
      shader_texture_base_uv:
        - value: uv
actions:
  - name: wave
    fcurves:
      - path: 'pose.bones["arm"].location'
        index: 0
        keys: [[0, 0], [4, 1]]
roots:
  - name: truck
    parts: [body, cargo]
    meshes:
      - name: body
        part: body
        materials: [red]
        vertices: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
        faces:
          - verts: [0, 1, 2]
            uv: [[0, 0], [1, 0], [0, 1]]
        groups:
          base: {0: 1.0, 1: 1.0, 2: 0.5}
          arm: {2: 0.5}
    locators:
      - name: col
        kind: collision
        type: box
        part: cargo
        collider: {size: [1, 1, 1]}
    armature:
      name: rig
      bones:
        - name: base
        - name: arm
          parent: base
          transform: {location: [0, 0, 1]}
    anim_folder: anim
    animations:
      - name: wave
        action: wave
  - name: ghost
    armature:
      name: rig
      bones:
        - name: base
  - name: empty
`

func loadScene(t *testing.T) *scene.Scene {
	t.Helper()
	s, err := scene.Load([]byte(truckScene))
	if err != nil {
		t.Fatalf("scene.Load: %v", err)
	}
	return s
}

func run(t *testing.T, s *scene.Scene, cfg *config.Config, name string) (Result, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	return Export(Options{Config: cfg, Dir: dir}, s, name), dir
}

func TestExportAll(t *testing.T) {
	res, dir := run(t, loadScene(t), config.Default(), "truck")
	if !res.OK {
		t.Fatalf("export failed: %v", res.Err())
	}

	tests := []struct {
		kind    Kind
		path    string
		written bool
	}{
		{KindPIM, "truck.pim", true},
		{KindPIC, "truck.pic", true},
		{KindPIP, "truck.pip", false},
		{KindPIT, "truck.pit", true},
		{KindPIS, "truck.pis", true},
		{KindPIA, "anim/wave.pia", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f, ok := res.File(tt.kind)
			if !ok {
				t.Fatalf("no outcome for %s", tt.kind)
			}
			if f.Written() != tt.written {
				t.Errorf("written = %v, want %v (err %v)", f.Written(), tt.written, f.Err)
			}
			_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(tt.path)))
			if (err == nil) != tt.written {
				t.Errorf("stat %s: %v", tt.path, err)
			}
		})
	}
}

func TestPartsMatchAcrossFiles(t *testing.T) {
	res, dir := run(t, loadScene(t), config.Default(), "truck")
	if !res.OK {
		t.Fatalf("export failed: %v", res.Err())
	}
	want := []string{"body", "cargo"}
	for _, name := range []string{"truck.pim", "truck.pic"} {
		secs, err := pix.ReadFile(filepath.Join(dir, name), pix.Options{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got := partNames(secs)
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("%s parts = %v, want %v", name, got, want)
		}
	}
}

func TestSkeletonReferences(t *testing.T) {
	tests := []struct {
		name    string
		subdirs bool
		want    string
	}{
		{"file name", false, "truck.pis"},
		{"relative", true, "../truck.pis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Export.IncludeSubdirsForPIA = tt.subdirs
			res, dir := run(t, loadScene(t), cfg, "truck")
			if !res.OK {
				t.Fatalf("export failed: %v", res.Err())
			}
			anim, err := pia.ReadFile(filepath.Join(dir, "anim", "wave.pia"), nil)
			if err != nil {
				t.Fatalf("pia.ReadFile: %v", err)
			}
			if anim.Skeleton != tt.want {
				t.Errorf("Skeleton = %q, want %q", anim.Skeleton, tt.want)
			}
			model, err := pim.ReadFile(filepath.Join(dir, "truck.pim"), nil)
			if err != nil {
				t.Fatalf("pim.ReadFile: %v", err)
			}
			if model.Skeleton != "truck.pis" {
				t.Errorf("model Skeleton = %q", model.Skeleton)
			}
			skel, err := pis.ReadFile(filepath.Join(dir, "truck.pis"), nil)
			if err != nil {
				t.Fatalf("pis.ReadFile: %v", err)
			}
			if len(skel.Bones) != 2 {
				t.Errorf("bones = %d, want 2", len(skel.Bones))
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name string
		root string
		cfg  func(*config.Config)
	}{
		{"missing root", "nope", nil},
		{"skinned without mesh", "ghost", nil},
		{"no mesh no model locator", "empty", nil},
		{"invalid config", "truck", func(c *config.Config) { c.Export.OutputType = "7" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			res, dir := run(t, loadScene(t), cfg, tt.root)
			if res.OK {
				t.Fatal("OK = true, want pre-flight failure")
			}
			if !errors.Is(res.Err(), ErrPreflight) {
				t.Errorf("err = %v, want ErrPreflight", res.Err())
			}
			if res.Log.Errors() != 1 {
				t.Errorf("errors = %d, want 1", res.Log.Errors())
			}
			if entries, _ := os.ReadDir(dir); len(entries) != 0 {
				t.Errorf("pre-flight failure wrote %d entries", len(entries))
			}
		})
	}
}

func TestModelFailureCancelsDependents(t *testing.T) {
	s := loadScene(t)
	root, _ := s.Root("truck")
	// Rename the groups so no vertex is weighted to a bone.
	root.Meshes[0].Groups = []string{"x", "y"}

	res, dir := run(t, s, config.Default(), "truck")
	if res.OK {
		t.Fatal("OK = true, want failure")
	}
	if f, _ := res.File(KindPIM); !errors.Is(f.Err, pim.ErrUnskinnedVertex) {
		t.Errorf("pim err = %v", f.Err)
	}
	for _, kind := range []Kind{KindPIS, KindPIA} {
		if f, _ := res.File(kind); !errors.Is(f.Err, ErrDependency) {
			t.Errorf("%s err = %v, want ErrDependency", kind, f.Err)
		}
	}
	// Independent files are still written.
	for _, name := range []string{"truck.pic", "truck.pit"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "truck.pim")); err == nil {
		t.Error("failed model was written")
	}
	// The buffer is left for the caller to report.
	errs, _ := res.Log.Messages()
	if len(errs) < 3 {
		t.Errorf("buffered errors = %v, want model, skeleton and animation", errs)
	}
	if out := res.Log.Report("Export truck", true, false); out == "" {
		t.Error("Report returned nothing")
	}
	if res.Log.Errors() != 0 {
		t.Errorf("errors after Report = %d, want 0", res.Log.Errors())
	}
}

func TestSelectFiles(t *testing.T) {
	cfg := config.Default()
	cfg.Export.SelectFiles([]string{"pim", "pit"})
	res, dir := run(t, loadScene(t), cfg, "truck")
	if !res.OK {
		t.Fatalf("export failed: %v", res.Err())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("written = %v, want pim and pit only", names)
	}
}
