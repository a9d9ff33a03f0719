package compile

import (
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joelreymont/hoist-sub004/internal/egraph"
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/legalize"
	"github.com/joelreymont/hoist-sub004/internal/mach"
	"github.com/joelreymont/hoist-sub004/internal/mach/arm64"
	"github.com/joelreymont/hoist-sub004/internal/mach/riscv64"
	"github.com/joelreymont/hoist-sub004/internal/regalloc"
	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/types"
	"github.com/joelreymont/hoist-sub004/internal/verify"
)

const stackAlign = 16

// Compile runs the full state machine over f — Built ->
// Verified -> Optimized -> Legalized -> Lowered -> Allocated ->
// Encoded — and returns the resulting Code. The Optimized stage builds
// a fresh Function, but with optimization off the Legalized stage
// rewrites f itself in place; callers that need the pre-compile
// Function afterward should pass a copy.
func Compile(pool *types.Pool, f *ir.Function, opts Options) (*Code, error) {
	sessionID := uuid.New()

	if opts.verify {
		if err := verify.Verify(pool, f); err != nil {
			return nil, stageErr(StageVerified, "verification failed", err)
		}
	}
	opts.traceln(StageVerified)

	if opts.optimize {
		optimized, err := egraph.Optimize(pool, f)
		if err != nil {
			return nil, stageErr(StageOptimized, "equality saturation failed", err)
		}
		f = optimized
	}
	opts.traceln(StageOptimized)

	if err := legalize.Legalize(pool, f, opts.tg.Profile()); err != nil {
		return nil, stageErr(StageLegalized, "legalization failed", err)
	}
	opts.traceln(StageLegalized)

	backend := opts.backend(opts.tg)
	vcode, err := isle.LowerFunction(pool, f, backend, opts.coverage)
	if err != nil {
		return nil, stageErr(StageLowered, "instruction lowering failed", err)
	}
	opts.traceln(StageLowered)

	assign, err := allocateRegisters(vcode, opts.tg.RegisterCounts())
	if err != nil {
		return nil, stageErr(StageAllocated, "register allocation failed", err)
	}
	opts.traceln(StageAllocated)

	var disasm []string
	if opts.disasm {
		disasm = disassemble(vcode, assign)
	}

	var bytes []byte
	var relocs []mach.Reloc
	switch opts.arch {
	case ArchAArch64:
		bytes, relocs, err = arm64.Encode(vcode, assign)
	case ArchRISCV64:
		bytes, relocs, err = riscv64.Encode(vcode, assign)
	}
	if err != nil {
		return nil, stageErr(StageEncoded, "machine-code encoding failed", err)
	}
	opts.traceln(StageEncoded)

	paramLocs, err := opts.cc.ClassifyParams(pool, f.Signature.Params)
	if err != nil {
		return nil, stageErr(StageEncoded, "parameter marshaling failed", err)
	}
	returnLocs, err := opts.cc.ClassifyReturns(pool, f.Signature.Returns)
	if err != nil {
		return nil, stageErr(StageEncoded, "return marshaling failed", err)
	}

	frameSize := frameSizeOf(pool, f)
	code := &Code{
		SessionID:  sessionID,
		Bytes:      bytes,
		StackSize:  frameSize,
		Relocs:     relocs,
		ParamLocs:  paramLocs,
		ReturnLocs: returnLocs,
		Disasm:     disasm,
	}
	if frameSize > 0 {
		code.Unwind = &UnwindInfo{FrameSize: frameSize}
	}
	return code, nil
}

// CompileAll runs Compile over every fs concurrently: multiple
// compiles may run in parallel since each has its own
// Function, allocator arena, MachBuffer, and register allocator
// state"). opts is shared read-only across goroutines except for its
// optional coverage tracker, which is already safe for concurrent use
// (internal/coverage.Tracker). The first failing compile's error
// cancels the remaining goroutines' results from being reported, but
// in-flight compiles still run to completion.
func CompileAll(pool *types.Pool, fs []*ir.Function, opts Options) ([]*Code, error) {
	codes := make([]*Code, len(fs))
	var g errgroup.Group
	for i, f := range fs {
		i, f := i, f
		g.Go(func() error {
			c, err := Compile(pool, f, opts)
			if err != nil {
				return err
			}
			codes[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return codes, nil
}

// allocateRegisters drives internal/regalloc's linear-scan allocator
// over vcode in block-then-instruction order, freeing each VReg at
// its last use. It builds the VReg -> PReg map internal/mach's
// encoders need. A failed Allocate propagates as the out_of_registers
// error unchanged; this driver does not itself invoke
// Spill, since no encoder here yet emits the load/store fixups a
// spilled VReg requires around its uses ( Open Question (a)
// leaves that spill policy as a downstream choice).
func allocateRegisters(vcode *isle.VCode, counts target.RegisterCounts) (map[isle.VReg]regalloc.PReg, error) {
	lastUse := computeLastUse(vcode)
	alloc := regalloc.NewAllocator(counts)
	assign := make(map[isle.VReg]regalloc.PReg)

	step := 0
	allocateOne := func(v isle.VReg) error {
		if _, ok := assign[v]; ok {
			return nil
		}
		p, err := alloc.Allocate(v)
		if err != nil {
			return err
		}
		assign[v] = p
		return nil
	}
	freeIfDone := func(v isle.VReg, step int) {
		if lastUse[v] == step {
			alloc.Free(v)
		}
	}

	for bi := range vcode.Blocks {
		blk := &vcode.Blocks[bi]
		for _, p := range blk.Params {
			if err := allocateOne(p); err != nil {
				return nil, err
			}
		}
		for _, p := range blk.Params {
			freeIfDone(p, step)
		}
		step++

		for _, inst := range blk.Insts {
			for _, d := range inst.Defs {
				if err := allocateOne(d); err != nil {
					return nil, err
				}
			}
			for _, v := range inst.Defs {
				freeIfDone(v, step)
			}
			for _, v := range inst.Uses {
				freeIfDone(v, step)
			}
			step++
		}
	}
	return assign, nil
}

// computeLastUse returns, for every VReg appearing in vcode, the last
// step index (block-param steps and per-instruction steps counted in
// layout order, one step per entry) at which it is defined or used.
func computeLastUse(vcode *isle.VCode) map[isle.VReg]int {
	last := make(map[isle.VReg]int)
	step := 0
	mark := func(vs []isle.VReg, step int) {
		for _, v := range vs {
			last[v] = step
		}
	}
	for bi := range vcode.Blocks {
		blk := &vcode.Blocks[bi]
		mark(blk.Params, step)
		step++
		for _, inst := range blk.Insts {
			mark(inst.Defs, step)
			mark(inst.Uses, step)
			step++
		}
	}
	return last
}

// frameSizeOf sums every stack_alloc in f, aligning each allocation to
// its requested alignment and the whole frame to the target-neutral
// 16-byte stack alignment both AAPCS64 and the RISC-V64 LP64D psABI
// require.
func frameSizeOf(pool *types.Pool, f *ir.Function) uint32 {
	var total uint32
	for _, b := range f.Layout.Blocks() {
		for _, inst := range f.Layout.Insts(b) {
			data := f.DFG.Inst(inst)
			if data.Opcode != ir.OpStackAlloc {
				continue
			}
			align := uint32(data.Align)
			if align == 0 {
				align = 1
			}
			total = (total + align - 1) &^ (align - 1)
			total += data.Size
		}
	}
	if total == 0 {
		return 0
	}
	return (total + stackAlign - 1) &^ (stackAlign - 1)
}
