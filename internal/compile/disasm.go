package compile

import (
	"fmt"
	"strings"

	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/regalloc"
)

// disassemble renders vcode's lowered instructions as one mnemonic
// line per MInst, using assign to print each VReg as its bound
// physical register (or "vNN" if allocation hasn't reached it yet,
// which should not happen for a vcode that made it through Allocate).
// This is not a decoder over Code.Bytes — the encoders throw away
// mnemonic text once they emit raw words, so this reads the richer
// pre-encoding form instead, the same tradeoff a JIT's own verbose
// logging makes over re-disassembling its own output.
func disassemble(vcode *isle.VCode, assign map[isle.VReg]regalloc.PReg) []string {
	var lines []string
	for bi, blk := range vcode.Blocks {
		lines = append(lines, fmt.Sprintf("block%d:", bi))
		for _, inst := range blk.Insts {
			lines = append(lines, "  "+disasmInst(inst, assign))
		}
	}
	return lines
}

func disasmInst(inst isle.MInst, assign map[isle.VReg]regalloc.PReg) string {
	var b strings.Builder
	if len(inst.Defs) > 0 {
		b.WriteString(regList(inst.Defs, assign))
		b.WriteString(" = ")
	}
	b.WriteString(inst.Op)
	if len(inst.Uses) > 0 {
		b.WriteString(" ")
		b.WriteString(regList(inst.Uses, assign))
	}
	if inst.Imm != 0 {
		fmt.Fprintf(&b, ", %d", inst.Imm)
	}
	if inst.CallSymbol != "" {
		fmt.Fprintf(&b, " @%s", inst.CallSymbol)
	}
	for _, tb := range inst.TargetBlocks {
		fmt.Fprintf(&b, " ->block%d", tb)
	}
	return b.String()
}

func regList(vs []isle.VReg, assign map[isle.VReg]regalloc.PReg) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		if p, ok := assign[v]; ok {
			parts[i] = p.String()
		} else {
			parts[i] = v.String()
		}
	}
	return strings.Join(parts, ", ")
}
