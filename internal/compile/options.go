// Package compile orchestrates the per-function pipeline: Built ->
// Verified -> Optimized -> Legalized -> Lowered -> Allocated ->
// Encoded. Each stage is one already-implemented package
// (verify, egraph, legalize, isle, regalloc, mach); this package's job
// is only to wire them in order, translate each stage's typed error
// into a compile.Error naming the failing stage, and produce the
// resulting Code.
package compile

import (
	"io"

	"github.com/joelreymont/hoist-sub004/internal/abi"
	"github.com/joelreymont/hoist-sub004/internal/coverage"
	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/isle/arm64"
	"github.com/joelreymont/hoist-sub004/internal/isle/riscv64"
	"github.com/joelreymont/hoist-sub004/internal/target"
	targetarm64 "github.com/joelreymont/hoist-sub004/internal/target/arm64"
	targetriscv64 "github.com/joelreymont/hoist-sub004/internal/target/riscv64"
)

// Arch names the two supported target architectures.
type Arch string

const (
	ArchAArch64 Arch = "aarch64"
	ArchRISCV64 Arch = "riscv64"
)

// Options configures one Compile (or CompileAll) invocation. The zero
// value is not ready to use: a target is mandatory, so construct
// Options through NewOptions plus With* functions.
type Options struct {
	arch     Arch
	tg       target.Target
	backend  func(target.Target) *isle.Backend
	cc       abi.Convention
	optimize bool
	verify   bool
	disasm   bool
	trace    io.Writer
	coverage *coverage.Tracker
}

// Option mutates an Options under construction.
type Option func(*Options)

// NewOptions builds the options for arch, applying opts in order.
// Verification defaults on and optimization defaults off: every stage
// runs explicitly rather than skipping Verified by default.
func NewOptions(arch Arch, opts ...Option) (Options, error) {
	o := Options{arch: arch, verify: true}
	switch arch {
	case ArchAArch64:
		o.tg = targetarm64.New()
		o.backend = arm64.Backend
		o.cc = abi.AAPCS64()
	case ArchRISCV64:
		o.tg = targetriscv64.New()
		o.backend = riscv64.Backend
		o.cc = abi.RISCV64()
	default:
		return Options{}, &Error{Stage: StageBuilt, Message: "unknown target architecture " + string(arch)}
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o, nil
}

// WithOptimize turns the e-graph equality-saturation stage on or off.
func WithOptimize(on bool) Option {
	return func(o *Options) { o.optimize = on }
}

// WithVerification turns the verifier stage on or off. Disabling it is
// only sound for functions already known-verified (e.g. re-compiling
// after a prior successful Verify with no intervening mutation).
func WithVerification(on bool) Option {
	return func(o *Options) { o.verify = on }
}

// WithTrace installs a writer that receives one line per completed
// pipeline stage. Nil (the default) disables tracing.
func WithTrace(w io.Writer) Option {
	return func(o *Options) { o.trace = w }
}

// WithDisassembly turns on Code.Disasm: one mnemonic line per lowered
// instruction, rendered from the pre-encoding VCode rather than
// decoded back out of Code.Bytes.
func WithDisassembly(on bool) Option {
	return func(o *Options) { o.disasm = on }
}

// WithCoverage installs a shared ISLE rule-coverage tracker, the one
// piece of state permitted to cross compiles of independent
// functions. Nil (the default) disables coverage recording.
func WithCoverage(t *coverage.Tracker) Option {
	return func(o *Options) { o.coverage = t }
}

func (o Options) traceln(stage Stage) {
	if o.trace == nil {
		return
	}
	io.WriteString(o.trace, "compile: "+string(stage)+"\n")
}
