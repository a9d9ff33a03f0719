package target_test

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/target/arm64"
	"github.com/joelreymont/hoist-sub004/internal/target/riscv64"
)

func TestConcreteTargetsSatisfyInterface(t *testing.T) {
	targets := []target.Target{arm64.New(), riscv64.New()}
	names := map[string]bool{}
	for _, tg := range targets {
		name := tg.Name()
		if name == "" {
			t.Fatalf("Target.Name() returned empty string")
		}
		names[name] = true

		profile := tg.Profile()
		if profile.Libcalls == nil {
			t.Fatalf("%s: Profile().Libcalls is nil, want a populated table", name)
		}

		rc := tg.RegisterCounts()
		if rc.Int <= 0 || rc.Float <= 0 {
			t.Fatalf("%s: RegisterCounts() = %+v, want positive Int/Float pools", name, rc)
		}
	}
	if !names["aarch64"] || !names["riscv64"] {
		t.Fatalf("expected both aarch64 and riscv64 targets, got %v", names)
	}
}
