package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

var opcodeByName = map[string]ir.Opcode{
	"iconst": ir.OpIconst, "fconst": ir.OpFconst,
	"iadd": ir.OpIadd, "isub": ir.OpIsub, "imul": ir.OpImul,
	"sdiv": ir.OpSdiv, "udiv": ir.OpUdiv, "srem": ir.OpSrem, "urem": ir.OpUrem,
	"iand": ir.OpIand, "ior": ir.OpIor, "ixor": ir.OpIxor,
	"ishl": ir.OpIshl, "ushr": ir.OpUshr, "sshr": ir.OpSshr,
	"iadd_imm": ir.OpIaddImm, "iand_imm": ir.OpIandImm, "ior_imm": ir.OpIorImm,
	"ixor_imm": ir.OpIxorImm, "ishl_imm": ir.OpIshlImm, "ushr_imm": ir.OpUshrImm, "sshr_imm": ir.OpSshrImm,
	"fadd": ir.OpFadd, "fsub": ir.OpFsub, "fmul": ir.OpFmul, "fdiv": ir.OpFdiv,
	"fneg": ir.OpFneg, "fabs": ir.OpFabs,
	"icmp": ir.OpIcmp, "fcmp": ir.OpFcmp,
	"sextend": ir.OpSextend, "uextend": ir.OpUextend, "ireduce": ir.OpIreduce,
	"fpromote": ir.OpFpromote, "fdemote": ir.OpFdemote,
	"fcvt_to_sint": ir.OpFcvtToSint, "fcvt_to_uint": ir.OpFcvtToUint,
	"fcvt_from_sint": ir.OpFcvtFromSint, "fcvt_from_uint": ir.OpFcvtFromUint,
	"bitcast": ir.OpBitcast, "bmask": ir.OpBmask,
	"select": ir.OpSelect, "brif": ir.OpBrif, "jump": ir.OpJump, "return": ir.OpReturn,
	"call": ir.OpCall, "load": ir.OpLoad, "store": ir.OpStore, "stack_alloc": ir.OpStackAlloc,
	"iconcat": ir.OpIconcat, "isplit": ir.OpIsplit, "tls_value": ir.OpTlsValue,
}

var intCondByName = map[string]ir.IntCC{
	"eq": ir.IntEQ, "ne": ir.IntNE, "slt": ir.IntSLT, "sge": ir.IntSGE,
	"sgt": ir.IntSGT, "sle": ir.IntSLE, "ult": ir.IntULT, "uge": ir.IntUGE,
	"ugt": ir.IntUGT, "ule": ir.IntULE,
}

var floatCondByName = map[string]ir.FloatCC{
	"eq": ir.FloatEQ, "ne": ir.FloatNE, "lt": ir.FloatLT, "gt": ir.FloatGT,
	"le": ir.FloatLE, "ge": ir.FloatGE, "ord": ir.FloatOrdered, "uno": ir.FloatUnordered,
	"ueq": ir.FloatUEQ, "one": ir.FloatONE, "ult": ir.FloatULT, "ule": ir.FloatULE,
	"ugt": ir.FloatUGT, "uge": ir.FloatUGE,
}

type parser struct {
	toks      []token
	pos       int
	pool      *types.Pool
	b         *ir.Builder
	blockByID map[string]ir.Block
	valRef    map[string]ir.Value
}

// Parse is Print's inverse: it builds a fresh *ir.Function from
// source in that same textual form.
func Parse(pool *types.Pool, src string) (*ir.Function, error) {
	toks, err := newLexer(src).lex()
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:      toks,
		pool:      pool,
		blockByID: make(map[string]ir.Block),
		valRef:    make(map[string]ir.Value),
	}
	return p.parseFunction()
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.peek().kind == tokEOF {
		return token{}, fmt.Errorf("irtext: %w: expected %s", ErrUnexpectedEof, what)
	}
	if p.peek().kind != kind {
		return token{}, fmt.Errorf("irtext: expected %s, got %q at line %d", what, p.peek().text, p.peek().line)
	}
	return p.advance(), nil
}

func isValueName(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isBlockName(s string) bool {
	if !strings.HasPrefix(s, "block") || len(s) == len("block") {
		return false
	}
	for _, c := range s[len("block"):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (p *parser) parseFunction() (*ir.Function, error) {
	if _, err := p.expectIdent("function"); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(tokString, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	params, err := p.parseTypeList(tokRParen)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokArrow, "->"); err != nil {
		return nil, err
	}
	returns, err := p.parseTypeList(tokLBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}

	sig := ir.Signature{Params: params, Returns: returns}
	f := ir.NewFunction(nameTok.text, sig)
	p.b = ir.NewBuilder(f)

	if err := p.predeclareBlocks(); err != nil {
		return nil, err
	}
	for p.peek().kind != tokRBrace {
		if err := p.parseBlock(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *parser) expectIdent(text string) (token, error) {
	if p.peek().kind == tokEOF {
		return token{}, fmt.Errorf("irtext: %w: expected %q", ErrUnexpectedEof, text)
	}
	if p.peek().kind != tokIdent || p.peek().text != text {
		return token{}, fmt.Errorf("irtext: expected %q, got %q at line %d", text, p.peek().text, p.peek().line)
	}
	return p.advance(), nil
}

func (p *parser) parseTypeList(stop tokenKind) ([]types.ID, error) {
	var out []types.ID
	if p.peek().kind == stop {
		return out, nil
	}
	for {
		tok, err := p.expect(tokIdent, "a type")
		if err != nil {
			return nil, err
		}
		typ, err := parseType(p.pool, tok.text)
		if err != nil {
			return nil, err
		}
		out = append(out, typ)
		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

// predeclareBlocks scans ahead for every "blockN" header so forward
// jump/brif targets (a block appearing later in the text than a
// reference to it) resolve without a second parse pass.
func (p *parser) predeclareBlocks() error {
	// The grammar never nests braces inside a function body (calls and
	// instructions are brace-free), so the function's own closing '}'
	// is the first one this scan sees.
	for i := p.pos; i < len(p.toks) && p.toks[i].kind != tokRBrace; i++ {
		t := p.toks[i]
		if t.kind != tokIdent || !isBlockName(t.text) {
			continue
		}
		next := p.toks[i+1]
		if next.kind != tokLParen && next.kind != tokColon {
			continue
		}
		if _, ok := p.blockByID[t.text]; !ok {
			p.blockByID[t.text] = p.b.CreateBlock()
		}
	}
	return nil
}

func (p *parser) parseBlock() error {
	nameTok, err := p.expect(tokIdent, "a block label")
	if err != nil {
		return err
	}
	if !isBlockName(nameTok.text) {
		return fmt.Errorf("irtext: expected a block label (blockN), got %q at line %d", nameTok.text, nameTok.line)
	}
	block := p.blockByID[nameTok.text]

	if p.peek().kind == tokLParen {
		p.advance()
		for p.peek().kind != tokRParen {
			pname, err := p.expect(tokIdent, "a block parameter name")
			if err != nil {
				return err
			}
			if _, err := p.expect(tokColon, ":"); err != nil {
				return err
			}
			ttok, err := p.expect(tokIdent, "a parameter type")
			if err != nil {
				return err
			}
			typ, err := parseType(p.pool, ttok.text)
			if err != nil {
				return err
			}
			v := p.b.AppendBlockParam(block, typ)
			p.valRef[pname.text] = v
			if p.peek().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return err
		}
	}
	if _, err := p.expect(tokColon, ":"); err != nil {
		return err
	}
	p.b.SwitchToBlock(block)

	for p.peek().kind == tokIdent && !isBlockName(p.peek().text) {
		if err := p.parseInst(); err != nil {
			return err
		}
	}
	return nil
}

// parseInst parses one instruction line. It first looks ahead for a
// "names = " result prefix, backtracking to a no-result
// terminator/store form if '=' never shows up.
func (p *parser) parseInst() error {
	start := p.pos
	var resultNames []string
	namesOK := true
	for p.peek().kind == tokIdent && isValueName(p.peek().text) {
		resultNames = append(resultNames, p.peek().text)
		p.advance()
		if p.peek().kind == tokColon {
			p.advance()
			if _, err := p.expect(tokIdent, "a result type"); err != nil {
				return err
			}
		}
		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if len(resultNames) == 0 || p.peek().kind != tokEquals {
		namesOK = false
	}
	if !namesOK {
		p.pos = start
		resultNames = nil
	} else {
		p.advance() // '='
	}

	opTok, err := p.expect(tokIdent, "an opcode")
	if err != nil {
		return err
	}
	op, ok := opcodeByName[opTok.text]
	if !ok {
		return fmt.Errorf("irtext: %w: %q at line %d", ErrInvalidOpcode, opTok.text, opTok.line)
	}

	// The lookahead above only determined shape (result names + which
	// opcode); replay from start so parseInstBody builds the Builder
	// calls in the same single pass it always uses.
	p.pos = start
	return p.parseInstBody(resultNames, op)
}

func (p *parser) parseInstBody(resultNames []string, op ir.Opcode) error {
	var resultTypes []types.ID
	if len(resultNames) > 0 {
		for range resultNames {
			if _, err := p.expect(tokIdent, "a result name"); err != nil {
				return err
			}
			var typ types.ID
			if p.peek().kind == tokColon {
				p.advance()
				ttok, err := p.expect(tokIdent, "a result type")
				if err != nil {
					return err
				}
				t, err := parseType(p.pool, ttok.text)
				if err != nil {
					return err
				}
				typ = t
			}
			resultTypes = append(resultTypes, typ)
			if p.peek().kind == tokComma {
				p.advance()
			}
		}
		if _, err := p.expect(tokEquals, "="); err != nil {
			return err
		}
	}
	if _, err := p.expect(tokIdent, "an opcode"); err != nil {
		return err
	}

	bind := func(i int, v ir.Value) {
		p.valRef[resultNames[i]] = v
	}

	switch op {
	case ir.OpIconst, ir.OpFconst, ir.OpTlsValue:
		imm, err := p.parseSignedInt()
		if err != nil {
			return err
		}
		var v ir.Value
		switch op {
		case ir.OpIconst:
			v = p.b.Iconst(resultTypes[0], imm)
		case ir.OpFconst:
			v = p.b.Fconst(resultTypes[0], imm)
		default:
			v = p.b.TlsValue(resultTypes[0], imm)
		}
		bind(0, v)

	case ir.OpIaddImm, ir.OpIandImm, ir.OpIorImm, ir.OpIxorImm, ir.OpIshlImm, ir.OpUshrImm, ir.OpSshrImm:
		x, err := p.parseValueRef()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		imm, err := p.parseSignedInt()
		if err != nil {
			return err
		}
		bind(0, p.b.BinaryImm(op, resultTypes[0], x, imm))

	case ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpSdiv, ir.OpUdiv, ir.OpSrem, ir.OpUrem,
		ir.OpIand, ir.OpIor, ir.OpIxor, ir.OpIshl, ir.OpUshr, ir.OpSshr,
		ir.OpFadd, ir.OpFsub, ir.OpFmul, ir.OpFdiv:
		x, y, err := p.parseTwoValueRefs()
		if err != nil {
			return err
		}
		bind(0, p.b.Binary(op, resultTypes[0], x, y))

	case ir.OpSextend, ir.OpUextend, ir.OpIreduce, ir.OpFpromote, ir.OpFdemote,
		ir.OpFcvtToSint, ir.OpFcvtToUint, ir.OpFcvtFromSint, ir.OpFcvtFromUint,
		ir.OpBitcast, ir.OpBmask, ir.OpFneg, ir.OpFabs:
		x, err := p.parseValueRef()
		if err != nil {
			return err
		}
		bind(0, p.b.Unary(op, resultTypes[0], x))

	case ir.OpIcmp:
		condTok, err := p.expect(tokIdent, "a condition code")
		if err != nil {
			return err
		}
		cond, ok := intCondByName[condTok.text]
		if !ok {
			return fmt.Errorf("irtext: unknown integer condition code %q at line %d", condTok.text, condTok.line)
		}
		x, y, err := p.parseTwoValueRefs()
		if err != nil {
			return err
		}
		bind(0, p.b.Icmp(cond, resultTypes[0], x, y))

	case ir.OpFcmp:
		condTok, err := p.expect(tokIdent, "a condition code")
		if err != nil {
			return err
		}
		cond, ok := floatCondByName[condTok.text]
		if !ok {
			return fmt.Errorf("irtext: unknown float condition code %q at line %d", condTok.text, condTok.line)
		}
		x, y, err := p.parseTwoValueRefs()
		if err != nil {
			return err
		}
		bind(0, p.b.Fcmp(cond, resultTypes[0], x, y))

	case ir.OpSelect:
		cond, err := p.parseValueRef()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		ifTrue, ifFalse, err := p.parseTwoValueRefs()
		if err != nil {
			return err
		}
		bind(0, p.b.Select(resultTypes[0], cond, ifTrue, ifFalse))

	case ir.OpBrif:
		cond, err := p.parseValueRef()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		thenBlock, thenArgs, err := p.parseBlockTarget()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		elseBlock, elseArgs, err := p.parseBlockTarget()
		if err != nil {
			return err
		}
		p.b.Brif(cond, thenBlock, thenArgs, elseBlock, elseArgs)

	case ir.OpJump:
		dest, args, err := p.parseBlockTarget()
		if err != nil {
			return err
		}
		p.b.Jump(dest, args)

	case ir.OpReturn:
		args, err := p.parseValueRefList()
		if err != nil {
			return err
		}
		p.b.Return(args)

	case ir.OpCall:
		if _, err := p.expect(tokAt, "@"); err != nil {
			return err
		}
		nameTok, err := p.expect(tokIdent, "a callee name")
		if err != nil {
			return err
		}
		if _, err := p.expect(tokLParen, "("); err != nil {
			return err
		}
		args, err := p.parseValueRefListUntil(tokRParen)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return err
		}
		if _, err := p.expect(tokArrow, "->"); err != nil {
			return err
		}
		if _, err := p.expect(tokLParen, "("); err != nil {
			return err
		}
		rets, err := p.parseTypeList(tokRParen)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return err
		}
		var argTypes []types.ID
		for _, a := range args {
			argTypes = append(argTypes, p.b.F.DFG.ValueType(a))
		}
		sig := ir.Signature{CallConv: p.b.F.Signature.CallConv, Params: argTypes, Returns: rets}
		sigRef := p.b.F.DFG.DeclareSignature(nameTok.text, sig)
		results := p.b.Call(sigRef, args, rets)
		for i, v := range results {
			bind(i, v)
		}

	case ir.OpLoad:
		addr, err := p.parseValueRef()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		offset, err := p.parseSignedInt()
		if err != nil {
			return err
		}
		bind(0, p.b.Load(resultTypes[0], addr, int32(offset), ir.MemFlags{}))

	case ir.OpStore:
		addr, value, err := p.parseTwoValueRefs()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		offset, err := p.parseSignedInt()
		if err != nil {
			return err
		}
		p.b.Store(addr, value, int32(offset), ir.MemFlags{})

	case ir.OpStackAlloc:
		size, err := p.parseSignedInt()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		align, err := p.parseSignedInt()
		if err != nil {
			return err
		}
		bind(0, p.b.StackAlloc(resultTypes[0], uint32(size), uint8(align)))

	case ir.OpIconcat:
		lo, hi, err := p.parseTwoValueRefs()
		if err != nil {
			return err
		}
		bind(0, p.b.Iconcat(resultTypes[0], lo, hi))

	case ir.OpIsplit:
		src, err := p.parseValueRef()
		if err != nil {
			return err
		}
		half, err := p.pool.Half(p.b.F.DFG.ValueType(src))
		if err != nil {
			return fmt.Errorf("irtext: isplit operand has no half-width type: %w", err)
		}
		lo, hi := p.b.Isplit(half, src)
		bind(0, lo)
		bind(1, hi)

	default:
		return fmt.Errorf("irtext: %w: cannot parse opcode %q", ErrInvalidOpcode, op)
	}
	return nil
}

func (p *parser) parseValueRef() (ir.Value, error) {
	tok, err := p.expect(tokIdent, "a value reference")
	if err != nil {
		return 0, err
	}
	if !isValueName(tok.text) {
		return 0, fmt.Errorf("irtext: expected a value reference (vN), got %q at line %d", tok.text, tok.line)
	}
	v, ok := p.valRef[tok.text]
	if !ok {
		return 0, fmt.Errorf("irtext: %w: undefined value %q at line %d", ErrArityMismatch, tok.text, tok.line)
	}
	return v, nil
}

func (p *parser) parseTwoValueRefs() (ir.Value, ir.Value, error) {
	x, err := p.parseValueRef()
	if err != nil {
		return 0, 0, err
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return 0, 0, err
	}
	y, err := p.parseValueRef()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func (p *parser) parseValueRefList() ([]ir.Value, error) {
	var out []ir.Value
	if p.peek().kind != tokIdent || !isValueName(p.peek().text) {
		return out, nil
	}
	for {
		v, err := p.parseValueRef()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *parser) parseValueRefListUntil(stop tokenKind) ([]ir.Value, error) {
	if p.peek().kind == stop {
		return nil, nil
	}
	return p.parseValueRefList()
}

func (p *parser) parseBlockTarget() (ir.Block, []ir.Value, error) {
	tok, err := p.expect(tokIdent, "a block target")
	if err != nil {
		return 0, nil, err
	}
	if !isBlockName(tok.text) {
		return 0, nil, fmt.Errorf("irtext: expected a block target (blockN), got %q at line %d", tok.text, tok.line)
	}
	block, ok := p.blockByID[tok.text]
	if !ok {
		return 0, nil, fmt.Errorf("irtext: undeclared block %q at line %d", tok.text, tok.line)
	}
	var args []ir.Value
	if p.peek().kind == tokLParen {
		p.advance()
		as, err := p.parseValueRefListUntil(tokRParen)
		if err != nil {
			return 0, nil, err
		}
		args = as
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return 0, nil, err
		}
	}
	return block, args, nil
}

func (p *parser) parseSignedInt() (int64, error) {
	neg := false
	if p.peek().kind == tokMinus {
		p.advance()
		neg = true
	}
	tok, err := p.expect(tokNumber, "an integer literal")
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(tok.text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("irtext: malformed integer %q at line %d", tok.text, tok.line)
	}
	if neg {
		n = -n
	}
	return n, nil
}
