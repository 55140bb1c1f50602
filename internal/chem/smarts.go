// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

import (
	"strings"
)

// Pattern is a compiled SMARTS substructure query.
type Pattern struct {
	source string
	atoms  []*atomExpr
	bonds  []patternBond
	adj    [][]int
}

// String returns the SMARTS the pattern was compiled from.
func (p *Pattern) String() string { return p.source }

type patternBond struct {
	a, b int
	expr *bondExpr
}

type exprOp uint8

const (
	opPrim exprOp = iota
	opNot
	opAnd
	opOr
)

type atomPrimKind uint8

const (
	atomAny atomPrimKind = iota
	atomAromatic
	atomAliphatic
	atomElement
	atomDegree
	atomConnectivity
	atomTotalH
	atomImplicitH
	atomRingCount
	atomRingSize
	atomRingConn
	atomValence
	atomCharge
	atomIsotope
	atomRecursive
)

// atomExpr is a node of a bracket atom expression tree.
type atomExpr struct {
	op          exprOp
	left, right *atomExpr
	kind        atomPrimKind
	value       int
	aromatic    int8 // for atomElement: 1 aromatic, -1 aliphatic, 0 either
	sub         *Pattern
}

type bondPrimKind uint8

const (
	bondDefault bondPrimKind = iota
	bondAnyKind
	bondSingleKind
	bondDoubleKind
	bondTripleKind
	bondAromaticKind
	bondRingKind
)

type bondExpr struct {
	op          exprOp
	left, right *bondExpr
	kind        bondPrimKind
}

// CompilePattern parses a SMARTS string. Atom maps and chirality are
// accepted and ignored.
func CompilePattern(smarts string) (*Pattern, error) {
	s := strings.TrimSpace(smarts)
	if s == "" {
		return nil, &SyntaxError{Input: smarts, Msg: "empty pattern"}
	}
	p := &smartsParser{input: smarts, s: s, prev: -1, rings: map[int]smartsRing{}, pat: &Pattern{source: s}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.pat, nil
}

type smartsRing struct {
	atom int
	bond *bondExpr
}

type smartsParser struct {
	input    string
	s        string
	pos      int
	pat      *Pattern
	prev     int
	branches []int
	rings    map[int]smartsRing
	pend     *bondExpr
}

func (p *smartsParser) fail(msg string) error {
	return &SyntaxError{Input: p.input, Pos: p.pos, Msg: msg}
}

func isBondExprChar(c byte) bool {
	switch c {
	case '-', '=', '#', ':', '~', '@', '/', '\\', '!', '&', ',', ';':
		return true
	}
	return false
}

func (p *smartsParser) parse() error {
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail("branch without preceding atom")
			}
			p.branches = append(p.branches, p.prev)
			p.pos++
		case c == ')':
			if len(p.branches) == 0 {
				return p.fail("unmatched ')'")
			}
			if p.pend != nil {
				return p.fail("bond before ')'")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++
		case c == '.':
			if p.pend != nil {
				return p.fail("bond before '.'")
			}
			p.prev = -1
			p.pos++
		case isBondExprChar(c):
			if p.prev < 0 {
				return p.fail("bond without preceding atom")
			}
			if p.pend != nil {
				return p.fail("consecutive bond expressions")
			}
			end := p.pos
			for end < len(p.s) && isBondExprChar(p.s[end]) {
				end++
			}
			expr, err := parseBondExpr(p.s[p.pos:end])
			if err != nil {
				return &SyntaxError{Input: p.input, Pos: p.pos, Msg: err.Error()}
			}
			p.pend = expr
			p.pos = end
		case isDigit(c) || c == '%':
			if p.prev < 0 {
				return p.fail("ring closure without preceding atom")
			}
			n, err := p.ringNumber()
			if err != nil {
				return err
			}
			if err := p.ringClosure(n); err != nil {
				return err
			}
		case c == '[':
			end := matchingBracket(p.s, p.pos)
			if end < 0 {
				return p.fail("unterminated bracket atom")
			}
			expr, err := parseAtomExpr(p.s[p.pos+1 : end])
			if err != nil {
				return &SyntaxError{Input: p.input, Pos: p.pos, Msg: err.Error()}
			}
			p.pos = end + 1
			p.attach(expr)
		default:
			expr, err := p.bareAtom()
			if err != nil {
				return err
			}
			p.attach(expr)
		}
	}
	switch {
	case p.pend != nil:
		return p.fail("dangling bond")
	case len(p.branches) > 0:
		return p.fail("unclosed branch")
	case len(p.rings) > 0:
		return p.fail("unclosed ring")
	case len(p.pat.atoms) == 0:
		return p.fail("pattern has no atoms")
	}
	return nil
}

// matchingBracket returns the index of the ']' closing the '[' at start,
// skipping brackets nested inside recursive expressions.
func matchingBracket(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (p *smartsParser) ringNumber() (int, error) {
	if p.s[p.pos] != '%' {
		n := int(p.s[p.pos] - '0')
		p.pos++
		return n, nil
	}
	p.pos++
	if p.pos+2 > len(p.s) {
		return 0, p.fail("truncated ring number")
	}
	n, ok := atoi(p.s[p.pos : p.pos+2])
	if !ok {
		return 0, p.fail("invalid ring number")
	}
	p.pos += 2
	return n, nil
}

func (p *smartsParser) ringClosure(n int) error {
	open, ok := p.rings[n]
	if !ok {
		p.rings[n] = smartsRing{atom: p.prev, bond: p.pend}
		p.pend = nil
		return nil
	}
	delete(p.rings, n)
	if open.atom == p.prev {
		return p.fail("ring closure to the same atom")
	}
	expr := open.bond
	if expr == nil {
		expr = p.pend
	}
	p.addBond(open.atom, p.prev, expr)
	p.pend = nil
	return nil
}

func (p *smartsParser) addBond(a, b int, expr *bondExpr) {
	if expr == nil {
		expr = &bondExpr{kind: bondDefault}
	}
	p.pat.bonds = append(p.pat.bonds, patternBond{a: a, b: b, expr: expr})
	idx := len(p.pat.bonds) - 1
	p.pat.adj[a] = append(p.pat.adj[a], idx)
	p.pat.adj[b] = append(p.pat.adj[b], idx)
}

func (p *smartsParser) attach(expr *atomExpr) {
	p.pat.atoms = append(p.pat.atoms, expr)
	p.pat.adj = append(p.pat.adj, nil)
	idx := len(p.pat.atoms) - 1
	if p.prev >= 0 {
		p.addBond(p.prev, idx, p.pend)
	}
	p.pend = nil
	p.prev = idx
}

func (p *smartsParser) bareAtom() (*atomExpr, error) {
	c := p.s[p.pos]
	if (c == 'C' && p.peek(1) == 'l') || (c == 'B' && p.peek(1) == 'r') {
		z := atomicNumbers[p.s[p.pos:p.pos+2]]
		p.pos += 2
		return element(z, -1), nil
	}
	p.pos++
	switch c {
	case '*':
		return prim(atomAny, 0), nil
	case 'a':
		return prim(atomAromatic, 0), nil
	case 'A':
		return prim(atomAliphatic, 0), nil
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		return element(atomicNumbers[string(c)], -1), nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		return element(aromaticSymbols[string(c)], 1), nil
	}
	p.pos--
	return nil, p.fail("unexpected character " + string(c))
}

func (p *smartsParser) peek(off int) byte {
	if p.pos+off < len(p.s) {
		return p.s[p.pos+off]
	}
	return 0
}

func prim(kind atomPrimKind, value int) *atomExpr {
	return &atomExpr{op: opPrim, kind: kind, value: value}
}

func element(z int, aromatic int8) *atomExpr {
	return &atomExpr{op: opPrim, kind: atomElement, value: z, aromatic: aromatic}
}

type exprError string

func (e exprError) Error() string { return string(e) }

// atomExprParser reads a bracket atom body. Precedence from loosest to
// tightest is ';', ',', '&' (or adjacency), '!'.
type atomExprParser struct {
	s     string
	pos   int
	start bool
}

func parseAtomExpr(body string) (*atomExpr, error) {
	if body == "" {
		return nil, exprError("empty bracket atom")
	}
	e := &atomExprParser{s: body, start: true}
	expr, err := e.lowAnd()
	if err != nil {
		return nil, err
	}
	if e.pos != len(e.s) {
		return nil, exprError("unexpected " + string(e.s[e.pos]) + " in bracket atom")
	}
	return expr, nil
}

func (e *atomExprParser) peek() byte {
	if e.pos < len(e.s) {
		return e.s[e.pos]
	}
	return 0
}

func (e *atomExprParser) lowAnd() (*atomExpr, error) {
	l, err := e.or()
	if err != nil {
		return nil, err
	}
	for e.peek() == ';' {
		e.pos++
		r, err := e.or()
		if err != nil {
			return nil, err
		}
		l = &atomExpr{op: opAnd, left: l, right: r}
	}
	return l, nil
}

func (e *atomExprParser) or() (*atomExpr, error) {
	l, err := e.highAnd()
	if err != nil {
		return nil, err
	}
	for e.peek() == ',' {
		e.pos++
		r, err := e.highAnd()
		if err != nil {
			return nil, err
		}
		l = &atomExpr{op: opOr, left: l, right: r}
	}
	return l, nil
}

func (e *atomExprParser) highAnd() (*atomExpr, error) {
	l, err := e.not()
	if err != nil {
		return nil, err
	}
	for {
		c := e.peek()
		if c == '&' {
			e.pos++
		} else if c == 0 || c == ';' || c == ',' {
			return l, nil
		}
		r, err := e.not()
		if err != nil {
			return nil, err
		}
		l = &atomExpr{op: opAnd, left: l, right: r}
	}
}

func (e *atomExprParser) not() (*atomExpr, error) {
	if e.peek() == '!' {
		e.pos++
		x, err := e.not()
		if err != nil {
			return nil, err
		}
		return &atomExpr{op: opNot, left: x}, nil
	}
	return e.primitive()
}

// number reads optional digits, returning def when there are none.
func (e *atomExprParser) number(def int) int {
	j := e.pos
	for j < len(e.s) && isDigit(e.s[j]) {
		j++
	}
	if j == e.pos {
		return def
	}
	n, _ := atoi(e.s[e.pos:j])
	e.pos = j
	return n
}

func (e *atomExprParser) primitive() (*atomExpr, error) {
	if e.pos >= len(e.s) {
		return nil, exprError("missing atom primitive")
	}
	atStart := e.start
	e.start = false
	c := e.s[e.pos]

	if isDigit(c) {
		n := e.number(0)
		e.start = atStart
		return prim(atomIsotope, n), nil
	}
	if c >= 'A' && c <= 'Z' && c != 'H' && c != 'D' && c != 'X' && c != 'R' && c != 'A' {
		if e.pos+1 < len(e.s) && e.s[e.pos+1] >= 'a' && e.s[e.pos+1] <= 'z' {
			if z, ok := atomicNumbers[e.s[e.pos:e.pos+2]]; ok {
				e.pos += 2
				return element(z, -1), nil
			}
		}
		if z, ok := atomicNumbers[string(c)]; ok {
			e.pos++
			return element(z, -1), nil
		}
		return nil, exprError("unknown element " + string(c))
	}

	e.pos++
	switch c {
	case '*':
		return prim(atomAny, 0), nil
	case 'a':
		if e.peek() == 's' {
			e.pos++
			return element(elemAs, 1), nil
		}
		return prim(atomAromatic, 0), nil
	case 'A':
		for _, sym := range []string{"Ac", "Ag", "Al", "Am", "Ar", "As", "At", "Au"} {
			if strings.HasPrefix(e.s[e.pos-1:], sym) {
				e.pos++
				return element(atomicNumbers[sym], -1), nil
			}
		}
		return prim(atomAliphatic, 0), nil
	case 'c', 'n', 'o', 'p', 'b':
		return element(aromaticSymbols[string(c)], 1), nil
	case 's':
		if e.peek() == 'e' {
			e.pos++
			return element(elemSe, 1), nil
		}
		return element(elemS, 1), nil
	case 't':
		if e.peek() == 'e' {
			e.pos++
			return element(elemTe, 1), nil
		}
		return nil, exprError("unknown primitive t")
	case '#':
		if !isDigit(e.peek()) {
			return nil, exprError("missing atomic number after #")
		}
		return element(e.number(0), 0), nil
	case 'D':
		if e.peek() == 'b' || e.peek() == 's' || e.peek() == 'y' {
			sym := "D" + string(e.peek())
			e.pos++
			return element(atomicNumbers[sym], -1), nil
		}
		return prim(atomDegree, e.number(1)), nil
	case 'X':
		if e.peek() == 'e' {
			e.pos++
			return element(atomicNumbers["Xe"], -1), nil
		}
		return prim(atomConnectivity, e.number(1)), nil
	case 'R':
		for _, l := range []byte{'a', 'b', 'e', 'f', 'g', 'h', 'n', 'u'} {
			if e.peek() == l {
				e.pos++
				return element(atomicNumbers["R"+string(l)], -1), nil
			}
		}
		return prim(atomRingCount, e.number(-1)), nil
	case 'H':
		if l := e.peek(); l != 0 && strings.IndexByte("efgos", l) >= 0 {
			e.pos++
			return element(atomicNumbers["H"+string(l)], -1), nil
		}
		if atStart && !isDigit(e.peek()) {
			switch e.peek() {
			case 0, '+', '-', ':':
				return element(elemH, 0), nil
			}
		}
		return prim(atomTotalH, e.number(1)), nil
	case 'h':
		return prim(atomImplicitH, e.number(-1)), nil
	case 'r':
		return prim(atomRingSize, e.number(-1)), nil
	case 'x':
		return prim(atomRingConn, e.number(-1)), nil
	case 'v':
		return prim(atomValence, e.number(1)), nil
	case '+', '-':
		sign := 1
		if c == '-' {
			sign = -1
		}
		if isDigit(e.peek()) {
			return prim(atomCharge, sign*e.number(0)), nil
		}
		n := 1
		for e.peek() == c {
			n++
			e.pos++
		}
		return prim(atomCharge, sign*n), nil
	case '@':
		for e.peek() == '@' || e.peek() == '?' {
			e.pos++
		}
		for _, class := range []string{"TH", "AL", "SP", "TB", "OH"} {
			if strings.HasPrefix(e.s[e.pos:], class) {
				e.pos += len(class)
				e.number(0)
				break
			}
		}
		return prim(atomAny, 0), nil
	case ':':
		e.number(0)
		return prim(atomAny, 0), nil
	case '$':
		if e.peek() != '(' {
			return nil, exprError("recursive pattern must start with $(")
		}
		depth := 0
		begin := e.pos + 1
		for ; e.pos < len(e.s); e.pos++ {
			switch e.s[e.pos] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if e.pos >= len(e.s) {
			return nil, exprError("unterminated recursive pattern")
		}
		inner := e.s[begin:e.pos]
		e.pos++
		sub, err := CompilePattern(inner)
		if err != nil {
			return nil, err
		}
		return &atomExpr{op: opPrim, kind: atomRecursive, sub: sub}, nil
	}
	return nil, exprError("unknown primitive " + string(c))
}

// parseBondExpr reads a bond expression with the same precedence as atom
// expressions.
func parseBondExpr(s string) (*bondExpr, error) {
	e := &bondExprParser{s: s}
	expr, err := e.lowAnd()
	if err != nil {
		return nil, err
	}
	if e.pos != len(s) {
		return nil, exprError("unexpected " + string(s[e.pos]) + " in bond expression")
	}
	return expr, nil
}

type bondExprParser struct {
	s   string
	pos int
}

func (e *bondExprParser) peek() byte {
	if e.pos < len(e.s) {
		return e.s[e.pos]
	}
	return 0
}

func (e *bondExprParser) lowAnd() (*bondExpr, error) {
	l, err := e.or()
	if err != nil {
		return nil, err
	}
	for e.peek() == ';' {
		e.pos++
		r, err := e.or()
		if err != nil {
			return nil, err
		}
		l = &bondExpr{op: opAnd, left: l, right: r}
	}
	return l, nil
}

func (e *bondExprParser) or() (*bondExpr, error) {
	l, err := e.highAnd()
	if err != nil {
		return nil, err
	}
	for e.peek() == ',' {
		e.pos++
		r, err := e.highAnd()
		if err != nil {
			return nil, err
		}
		l = &bondExpr{op: opOr, left: l, right: r}
	}
	return l, nil
}

func (e *bondExprParser) highAnd() (*bondExpr, error) {
	l, err := e.not()
	if err != nil {
		return nil, err
	}
	for {
		c := e.peek()
		if c == '&' {
			e.pos++
		} else if c == 0 || c == ';' || c == ',' {
			return l, nil
		}
		r, err := e.not()
		if err != nil {
			return nil, err
		}
		l = &bondExpr{op: opAnd, left: l, right: r}
	}
}

func (e *bondExprParser) not() (*bondExpr, error) {
	if e.peek() == '!' {
		e.pos++
		x, err := e.not()
		if err != nil {
			return nil, err
		}
		return &bondExpr{op: opNot, left: x}, nil
	}
	if e.pos >= len(e.s) {
		return nil, exprError("missing bond primitive")
	}
	c := e.s[e.pos]
	e.pos++
	switch c {
	case '-', '/', '\\':
		return &bondExpr{kind: bondSingleKind}, nil
	case '=':
		return &bondExpr{kind: bondDoubleKind}, nil
	case '#':
		return &bondExpr{kind: bondTripleKind}, nil
	case ':':
		return &bondExpr{kind: bondAromaticKind}, nil
	case '~':
		return &bondExpr{kind: bondAnyKind}, nil
	case '@':
		return &bondExpr{kind: bondRingKind}, nil
	}
	return nil, exprError("unknown bond primitive " + string(c))
}
