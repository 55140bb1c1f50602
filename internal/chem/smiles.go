// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

import (
	"strings"
)

type pendingBond struct {
	order BondOrder
	dir   byte
	set   bool
}

type ringOpening struct {
	atom int
	bond pendingBond
	slot int
}

type smilesParser struct {
	input    string
	s        string
	pos      int
	mol      *Molecule
	prev     int
	branches []int
	rings    map[int]ringOpening
	pend     pendingBond
}

// Parse reads a SMILES string into a Molecule with perceived rings and
// aromaticity. Explicit neutral hydrogens are folded into their heavy atom,
// and atom map numbers are kept on the atoms but never written back out.
// Text after the first whitespace, such as a CXSMILES block, is ignored.
func Parse(smiles string) (*Molecule, error) {
	s := strings.TrimSpace(smiles)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, &SyntaxError{Input: smiles, Msg: "empty SMILES"}
	}
	p := &smilesParser{
		input: smiles,
		s:     s,
		mol:   &Molecule{},
		prev:  -1,
		rings: map[int]ringOpening{},
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	m := p.mol
	if err := m.assignHydrogens(smiles); err != nil {
		return nil, err
	}
	m.resolveDoubleBondStereo()
	m.collapseHydrogens()
	m.perceiveRings()
	if err := m.perceiveAromaticity(smiles); err != nil {
		return nil, err
	}
	m.cleanStereo()
	return m, nil
}

func (p *smilesParser) fail(msg string) error {
	return &SyntaxError{Input: p.input, Pos: p.pos, Msg: msg}
}

func (p *smilesParser) parse() error {
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
			if p.pend.set {
				return p.fail("bond before ')'")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++
		case c == '.':
			if p.pend.set {
				return p.fail("bond before '.'")
			}
			if len(p.branches) > 0 {
				return p.fail("'.' inside branch")
			}
			p.prev = -1
			p.pos++
		case isBondChar(c):
			if p.pend.set {
				return p.fail("consecutive bond symbols")
			}
			if p.prev < 0 {
				return p.fail("bond without preceding atom")
			}
			if c == '$' {
				return p.fail("quadruple bonds are not supported")
			}
			p.pend = bondFromChar(c)
			p.pos++
		case c >= '0' && c <= '9' || c == '%':
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
			a, err := p.bracketAtom()
			if err != nil {
				return err
			}
			p.attach(a)
		default:
			a, err := p.organicAtom()
			if err != nil {
				return err
			}
			p.attach(a)
		}
	}
	switch {
	case p.pend.set:
		return p.fail("dangling bond")
	case len(p.branches) > 0:
		return p.fail("unclosed branch")
	case len(p.rings) > 0:
		return p.fail("unclosed ring")
	}
	return nil
}

func isBondChar(c byte) bool {
	switch c {
	case '-', '=', '#', '$', ':', '/', '\\':
		return true
	}
	return false
}

func bondFromChar(c byte) pendingBond {
	switch c {
	case '=':
		return pendingBond{order: BondDouble, set: true}
	case '#':
		return pendingBond{order: BondTriple, set: true}
	case ':':
		return pendingBond{order: BondAromatic, set: true}
	case '/', '\\':
		return pendingBond{order: BondSingle, dir: c, set: true}
	}
	return pendingBond{order: BondSingle, set: true}
}

func flipDir(d byte) byte {
	switch d {
	case '/':
		return '\\'
	case '\\':
		return '/'
	}
	return d
}

func (p *smilesParser) defaultOrder(a, b int) BondOrder {
	if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) attach(a Atom) {
	m := p.mol
	idx := m.addAtom(a)
	if p.prev >= 0 {
		order := p.pend.order
		if !p.pend.set {
			order = p.defaultOrder(p.prev, idx)
		}
		m.addBond(Bond{A: p.prev, B: idx, Order: order, Dir: p.pend.dir})
		m.Atoms[p.prev].stereoOrder = append(m.Atoms[p.prev].stereoOrder, idx)
		m.Atoms[idx].stereoOrder = append(m.Atoms[idx].stereoOrder, p.prev)
	}
	if a.bracket && a.HCount > 0 {
		m.Atoms[idx].stereoOrder = append(m.Atoms[idx].stereoOrder, implicitH)
	}
	p.pend = pendingBond{}
	p.prev = idx
}

func (p *smilesParser) ringNumber() (int, error) {
	if p.s[p.pos] != '%' {
		n := int(p.s[p.pos] - '0')
		p.pos++
		return n, nil
	}
	p.pos++
	if p.pos >= len(p.s) {
		return 0, p.fail("truncated ring number")
	}
	if p.s[p.pos] == '(' {
		end := strings.IndexByte(p.s[p.pos:], ')')
		if end < 0 {
			return 0, p.fail("unterminated ring number")
		}
		n, ok := atoi(p.s[p.pos+1 : p.pos+end])
		if !ok {
			return 0, p.fail("invalid ring number")
		}
		p.pos += end + 1
		return n, nil
	}
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

func (p *smilesParser) ringClosure(n int) error {
	m := p.mol
	open, ok := p.rings[n]
	if !ok {
		p.rings[n] = ringOpening{atom: p.prev, bond: p.pend, slot: len(m.Atoms[p.prev].stereoOrder)}
		m.Atoms[p.prev].stereoOrder = append(m.Atoms[p.prev].stereoOrder, -2)
		p.pend = pendingBond{}
		return nil
	}
	delete(p.rings, n)
	if open.atom == p.prev {
		return p.fail("ring closure to the same atom")
	}
	if m.bondBetween(open.atom, p.prev) >= 0 {
		return p.fail("ring closure duplicates an existing bond")
	}

	var order BondOrder
	var dir byte
	switch {
	case open.bond.set && p.pend.set:
		if open.bond.order != p.pend.order {
			return p.fail("conflicting ring closure bonds")
		}
		order, dir = open.bond.order, open.bond.dir
		if dir == 0 {
			dir = flipDir(p.pend.dir)
		}
	case open.bond.set:
		order, dir = open.bond.order, open.bond.dir
	case p.pend.set:
		order, dir = p.pend.order, flipDir(p.pend.dir)
	default:
		order = p.defaultOrder(open.atom, p.prev)
	}
	m.addBond(Bond{A: open.atom, B: p.prev, Order: order, Dir: dir})
	m.Atoms[open.atom].stereoOrder[open.slot] = p.prev
	m.Atoms[p.prev].stereoOrder = append(m.Atoms[p.prev].stereoOrder, open.atom)
	p.pend = pendingBond{}
	return nil
}

func (p *smilesParser) organicAtom() (Atom, error) {
	c := p.s[p.pos]
	if c == '*' {
		p.pos++
		return Atom{}, nil
	}
	if c == 'C' && p.peek(1) == 'l' || c == 'B' && p.peek(1) == 'r' {
		z := atomicNumbers[p.s[p.pos:p.pos+2]]
		p.pos += 2
		return Atom{Element: z}, nil
	}
	switch c {
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		p.pos++
		return Atom{Element: atomicNumbers[string(c)]}, nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		p.pos++
		return Atom{Element: aromaticSymbols[string(c)], Aromatic: true}, nil
	}
	return Atom{}, p.fail("unexpected character " + string(c))
}

func (p *smilesParser) peek(off int) byte {
	if p.pos+off < len(p.s) {
		return p.s[p.pos+off]
	}
	return 0
}

func (p *smilesParser) bracketAtom() (Atom, error) {
	start := p.pos
	end := strings.IndexByte(p.s[p.pos:], ']')
	if end < 0 {
		return Atom{}, p.fail("unterminated bracket atom")
	}
	body := p.s[p.pos+1 : p.pos+end]
	p.pos += end + 1

	a := Atom{bracket: true}
	i := 0
	failAt := func(msg string) error {
		return &SyntaxError{Input: p.input, Pos: start + 1 + i, Msg: msg}
	}

	j := i
	for j < len(body) && isDigit(body[j]) {
		j++
	}
	if j > i {
		a.Isotope, _ = atoi(body[i:j])
		i = j
	}

	if i >= len(body) {
		return Atom{}, failAt("missing element symbol")
	}
	switch c := body[i]; {
	case c == '*':
		i++
	case c >= 'a' && c <= 'z':
		if i+1 < len(body) {
			if z, ok := aromaticSymbols[body[i:i+2]]; ok {
				a.Element, a.Aromatic = z, true
				i += 2
				break
			}
		}
		z, ok := aromaticSymbols[body[i:i+1]]
		if !ok {
			return Atom{}, failAt("unknown aromatic symbol")
		}
		a.Element, a.Aromatic = z, true
		i++
	case c >= 'A' && c <= 'Z':
		if i+1 < len(body) && body[i+1] >= 'a' && body[i+1] <= 'z' {
			if z, ok := atomicNumbers[body[i:i+2]]; ok {
				a.Element = z
				i += 2
				break
			}
		}
		z, ok := atomicNumbers[body[i:i+1]]
		if !ok {
			return Atom{}, failAt("unknown element")
		}
		a.Element = z
		i++
	default:
		return Atom{}, failAt("missing element symbol")
	}

	if i < len(body) && body[i] == '@' {
		i++
		a.Chiral = ChiralCCW
		switch {
		case i < len(body) && body[i] == '@':
			a.Chiral = ChiralCW
			i++
		case strings.HasPrefix(body[i:], "TH1"):
			i += 3
		case strings.HasPrefix(body[i:], "TH2"):
			a.Chiral = ChiralCW
			i += 3
		case i+1 < len(body) && body[i] >= 'A' && body[i] <= 'Z' && body[i+1] >= 'A' && body[i+1] <= 'Z':
			return Atom{}, failAt("unsupported chirality class")
		}
	}

	if i < len(body) && body[i] == 'H' {
		i++
		a.HCount = 1
		j := i
		for j < len(body) && isDigit(body[j]) {
			j++
		}
		if j > i {
			a.HCount, _ = atoi(body[i:j])
			i = j
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		sym := body[i]
		i++
		j := i
		for j < len(body) && isDigit(body[j]) {
			j++
		}
		switch {
		case j > i:
			n, _ := atoi(body[i:j])
			a.Charge = sign * n
			i = j
		default:
			n := 1
			for i < len(body) && body[i] == sym {
				n++
				i++
			}
			a.Charge = sign * n
		}
	}

	if i < len(body) && body[i] == ':' {
		i++
		j := i
		for j < len(body) && isDigit(body[j]) {
			j++
		}
		if j == i {
			return Atom{}, failAt("missing atom class")
		}
		a.Map, _ = atoi(body[i:j])
		i = j
	}

	if i != len(body) {
		return Atom{}, failAt("unexpected content in bracket atom")
	}
	return a, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

// assignHydrogens gives unbracketed atoms their default hydrogen count and
// rejects atoms whose bonds exceed every allowed valence.
func (m *Molecule) assignHydrogens(input string) error {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.bracket {
			continue
		}
		if !a.Aromatic {
			if valences, ok := organicValences[a.Element]; ok {
				plain, arom := m.bondSums(i)
				if plain+arom > valences[len(valences)-1] {
					return &ChemistryError{Input: input, Msg: "valence exceeded on " + symbolOf(a.Element)}
				}
			}
		}
		a.HCount = m.defaultHydrogens(i)
	}
	return nil
}

// resolveDoubleBondStereo turns directional single bonds into cis/trans
// relations on the double bonds they flank, then clears the directions.
func (m *Molecule) resolveDoubleBondStereo() {
	for bi, b := range m.Bonds {
		if b.Order != BondDouble {
			continue
		}
		refA, markA, okA := m.directionalNeighbour(b.A, bi)
		refB, markB, okB := m.directionalNeighbour(b.B, bi)
		if okA && okB {
			m.dbStereo = append(m.dbStereo, doubleBondStereo{Bond: bi, RefA: refA, RefB: refB, Cis: markA == markB})
		}
	}
	for i := range m.Bonds {
		m.Bonds[i].Dir = 0
	}
}

// directionalNeighbour returns the first neighbour of a joined by a
// directional bond other than skip, with the direction read outward from a.
func (m *Molecule) directionalNeighbour(a, skip int) (int, byte, bool) {
	for _, bi := range m.adj[a] {
		if bi == skip {
			continue
		}
		b := m.Bonds[bi]
		if b.Dir == 0 {
			continue
		}
		mark := b.Dir
		if b.B == a {
			mark = flipDir(mark)
		}
		return b.other(a), mark, true
	}
	return 0, 0, false
}

// collapseHydrogens folds neutral, non-isotopic hydrogens with a single
// heavy neighbour into that neighbour's hydrogen count.
func (m *Molecule) collapseHydrogens() {
	drop := make([]bool, len(m.Atoms))
	found := false
	for i, a := range m.Atoms {
		if a.Element != elemH || a.Isotope != 0 || a.Charge != 0 || a.HCount != 0 || m.degree(i) != 1 {
			continue
		}
		b := m.Bonds[m.adj[i][0]]
		if b.Order != BondSingle || m.Atoms[b.other(i)].Element == elemH {
			continue
		}
		drop[i] = true
		found = true
	}
	if !found {
		return
	}

	for i := range drop {
		if !drop[i] {
			continue
		}
		heavy := m.Bonds[m.adj[i][0]].other(i)
		m.Atoms[heavy].HCount++
		for k, n := range m.Atoms[heavy].stereoOrder {
			if n == i {
				m.Atoms[heavy].stereoOrder[k] = implicitH
			}
		}
	}

	stereo := m.dbStereo[:0]
	for _, s := range m.dbStereo {
		b := m.Bonds[s.Bond]
		ok := true
		if drop[s.RefA] {
			s.RefA, ok = m.otherSubstituent(b.A, b.B, s.RefA, drop)
			s.Cis = !s.Cis
		}
		if ok && drop[s.RefB] {
			s.RefB, ok = m.otherSubstituent(b.B, b.A, s.RefB, drop)
			s.Cis = !s.Cis
		}
		if ok {
			stereo = append(stereo, s)
		}
	}
	m.dbStereo = stereo
	m.removeAtoms(drop)
}

// otherSubstituent finds a kept neighbour of a that is neither partner nor
// exclude.
func (m *Molecule) otherSubstituent(a, partner, exclude int, drop []bool) (int, bool) {
	for _, bi := range m.adj[a] {
		n := m.Bonds[bi].other(a)
		if n != partner && n != exclude && !drop[n] {
			return n, true
		}
	}
	return 0, false
}

// cleanStereo drops stereo tags that cannot describe a stereocentre in this
// graph: tetrahedral tags on atoms with too few distinct neighbours, and
// double-bond tags on aromatic bonds or bonds in small rings.
func (m *Molecule) cleanStereo() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Chiral == ChiralNone {
			continue
		}
		hs := 0
		for _, n := range a.stereoOrder {
			if n == implicitH {
				hs++
			}
		}
		if a.Aromatic || a.HCount > 1 || hs > 1 || len(a.stereoOrder) < 3 || len(a.stereoOrder) != m.degree(i)+a.HCount {
			a.Chiral = ChiralNone
		}
	}
	stereo := m.dbStereo[:0]
	for _, s := range m.dbStereo {
		if m.Bonds[s.Bond].Order != BondDouble {
			continue
		}
		if size := m.smallestRingWithBond(s.Bond); size > 0 && size < 8 {
			continue
		}
		stereo = append(stereo, s)
	}
	m.dbStereo = stereo
}
