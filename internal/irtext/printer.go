package irtext

import (
	"fmt"
	"strings"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// Print renders f in the round-trippable textual form. The result round-trips
// through Parse: the parsed function's name and parameter/return
// counts match f's. Struct-typed
// signatures and memory-access flags are outside this grammar's scope
// (see DESIGN.md) — Print returns an error if f's signature mentions a
// struct type.
func Print(f *ir.Function, pool *types.Pool) (string, error) {
	var b strings.Builder

	params, err := printTypeList(pool, f.Signature.Params)
	if err != nil {
		return "", err
	}
	returns, err := printTypeList(pool, f.Signature.Returns)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "function %q(%s) -> %s {\n", f.Name, params, returns)

	blockName := make(map[ir.Block]string)
	for i, blk := range f.Layout.Blocks() {
		blockName[blk] = fmt.Sprintf("block%d", i)
	}

	valueName := func(v ir.Value) string { return fmt.Sprintf("v%d", v) }

	for _, blk := range f.Layout.Blocks() {
		params := f.DFG.BlockParams(blk)
		if len(params) == 0 {
			fmt.Fprintf(&b, "%s:\n", blockName[blk])
		} else {
			var parts []string
			for _, p := range params {
				typ, err := printType(pool, f.DFG.ValueType(p))
				if err != nil {
					return "", err
				}
				parts = append(parts, fmt.Sprintf("%s: %s", valueName(p), typ))
			}
			fmt.Fprintf(&b, "%s(%s):\n", blockName[blk], strings.Join(parts, ", "))
		}

		for _, inst := range f.Layout.Insts(blk) {
			line, err := printInst(pool, f, inst, blockName, valueName)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func printTypeList(pool *types.Pool, ids []types.ID) (string, error) {
	var parts []string
	for _, id := range ids {
		s, err := printType(pool, id)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

func printValueList(vs []ir.Value, valueName func(ir.Value) string) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = valueName(v)
	}
	return strings.Join(parts, ", ")
}

func printInst(pool *types.Pool, f *ir.Function, inst ir.Inst, blockName map[ir.Block]string, valueName func(ir.Value) string) (string, error) {
	data := f.DFG.Inst(inst)
	results := f.DFG.InstResults(inst)

	resultTypes := func() (string, error) {
		return printTypeList(pool, data.ResultTypes)
	}

	switch data.Opcode {
	case ir.OpIconst, ir.OpFconst, ir.OpTlsValue:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = %s %d", valueName(results[0]), t, data.Opcode, data.Imm), nil

	case ir.OpIaddImm, ir.OpIandImm, ir.OpIorImm, ir.OpIxorImm, ir.OpIshlImm, ir.OpUshrImm, ir.OpSshrImm:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = %s %s, %d", valueName(results[0]), t, data.Opcode, valueName(data.Args[0]), data.Imm), nil

	case ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpSdiv, ir.OpUdiv, ir.OpSrem, ir.OpUrem,
		ir.OpIand, ir.OpIor, ir.OpIxor, ir.OpIshl, ir.OpUshr, ir.OpSshr,
		ir.OpFadd, ir.OpFsub, ir.OpFmul, ir.OpFdiv:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = %s %s", valueName(results[0]), t, data.Opcode, printValueList(data.Args, valueName)), nil

	case ir.OpSextend, ir.OpUextend, ir.OpIreduce, ir.OpFpromote, ir.OpFdemote,
		ir.OpFcvtToSint, ir.OpFcvtToUint, ir.OpFcvtFromSint, ir.OpFcvtFromUint,
		ir.OpBitcast, ir.OpBmask, ir.OpFneg, ir.OpFabs:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = %s %s", valueName(results[0]), t, data.Opcode, valueName(data.Args[0])), nil

	case ir.OpIcmp:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = icmp %s %s", valueName(results[0]), t, data.IntCond, printValueList(data.Args, valueName)), nil

	case ir.OpFcmp:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = fcmp %s %s", valueName(results[0]), t, data.FloatCond, printValueList(data.Args, valueName)), nil

	case ir.OpSelect:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = select %s", valueName(results[0]), t, printValueList(data.Args, valueName)), nil

	case ir.OpBrif:
		then := formatTarget(blockName[data.Then], data.ThenArgs, valueName)
		els := formatTarget(blockName[data.Else], data.ElseArgs, valueName)
		return fmt.Sprintf("brif %s, %s, %s", valueName(data.Args[0]), then, els), nil

	case ir.OpJump:
		return fmt.Sprintf("jump %s", formatTarget(blockName[data.Then], data.ThenArgs, valueName)), nil

	case ir.OpReturn:
		return fmt.Sprintf("return %s", printValueList(data.Args, valueName)), nil

	case ir.OpCall:
		sig := f.DFG.Signature(data.Sig)
		retTypes, err := printTypeList(pool, sig.Sig.Returns)
		if err != nil {
			return "", err
		}
		lhs := printValueList(results, valueName)
		if lhs != "" {
			lhs += " = "
		}
		return fmt.Sprintf("%scall @%s(%s) -> (%s)", lhs, sig.Name, printValueList(data.Args, valueName), retTypes), nil

	case ir.OpLoad:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = load %s, %d", valueName(results[0]), t, valueName(data.Args[0]), data.Offset), nil

	case ir.OpStore:
		return fmt.Sprintf("store %s, %s, %d", valueName(data.Args[0]), valueName(data.Args[1]), data.Offset), nil

	case ir.OpStackAlloc:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = stack_alloc %d, %d", valueName(results[0]), t, data.Size, data.Align), nil

	case ir.OpIconcat:
		t, err := resultTypes()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s = iconcat %s", valueName(results[0]), t, printValueList(data.Args, valueName)), nil

	case ir.OpIsplit:
		return fmt.Sprintf("%s = isplit %s", printValueList(results, valueName), valueName(data.Args[0])), nil

	default:
		return "", fmt.Errorf("irtext: %w: cannot print opcode %s", ErrInvalidOpcode, data.Opcode)
	}
}

func formatTarget(name string, args []ir.Value, valueName func(ir.Value) string) string {
	if len(args) == 0 {
		return name
	}
	return fmt.Sprintf("%s(%s)", name, printValueList(args, valueName))
}
