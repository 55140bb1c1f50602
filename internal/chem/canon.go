// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

import (
	"slices"
	"strconv"
	"strings"
)

// Canonicalize parses a SMILES string and returns its canonical form.
func Canonicalize(smiles string) (string, error) {
	m, err := Parse(smiles)
	if err != nil {
		return "", err
	}
	return m.CanonicalSMILES(), nil
}

// CanonicalSMILES writes the molecule as canonical SMILES: aromatic form,
// implicit hydrogens, no atom maps, with the stereo tags that survive
// symmetry perception. Equal molecules give equal strings regardless of the
// atom order or Kekulé form they were parsed from.
func (m *Molecule) CanonicalSMILES() string {
	classes := m.refine(m.invariants())
	chiral, stereo := m.effectiveStereo(classes)

	if !hasStereo(chiral, stereo) {
		ranks := breakTies(m, slices.Clone(classes))
		return m.write(ranks, chiral, stereo)
	}

	search := stereoSearch{m: m, chiral: chiral, stereo: stereo}
	search.run(classes)
	return search.best
}

// maxStereoLeaves bounds the tie-breaking search. Past it, remaining ties
// are split by atom index.
const maxStereoLeaves = 4096

// stereoSearch writes every labelling reachable by splitting ties and keeps
// the smallest string. Bond direction marks and chirality tags depend on
// which of two symmetric atoms is ranked first, so every tie level is
// searched, not only the first.
type stereoSearch struct {
	m      *Molecule
	chiral []Chirality
	stereo []doubleBondStereo
	best   string
	leaves int
}

func (s *stereoSearch) run(ranks []int) {
	ranks = s.m.refine(ranks)
	tied := lowestTie(ranks)
	if tied == nil {
		s.leaves++
		if out := s.m.write(ranks, s.chiral, s.stereo); s.best == "" || out < s.best {
			s.best = out
		}
		return
	}
	candidates := s.candidates(tied)
	if s.leaves >= maxStereoLeaves {
		candidates = candidates[:1]
	}
	for _, pick := range candidates {
		next := slices.Clone(ranks)
		splitTie(next, tied, pick)
		s.run(next)
	}
}

// candidates drops tied untagged terminal atoms that hang off the same
// neighbour as an earlier candidate. Swapping two such atoms maps the
// molecule onto itself, so either pick writes the same string.
func (s *stereoSearch) candidates(tied []int) []int {
	m := s.m
	out := make([]int, 0, len(tied))
	parents := map[int]bool{}
	for _, a := range tied {
		if m.degree(a) == 1 && s.chiral[a] == ChiralNone {
			parent := m.Bonds[m.adj[a][0]].other(a)
			if parents[parent] {
				continue
			}
			parents[parent] = true
		}
		out = append(out, a)
	}
	return out
}

func (m *Molecule) invariants() []int {
	keys := make([][]int, len(m.Atoms))
	for i, a := range m.Atoms {
		keys[i] = []int{
			m.degree(i),
			a.Element,
			a.Isotope,
			a.Charge,
			a.HCount,
			boolInt(a.Aromatic),
			boolInt(m.atomRings != nil && m.atomRings[i] > 0),
		}
	}
	return rankByKeys(keys)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rankByKeys ranks atoms by their keys; equal keys share the rank of the
// first atom holding them, so a class of k atoms leaves k-1 unused ranks
// above it.
func rankByKeys(keys [][]int) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return slices.Compare(keys[a], keys[b]) })
	ranks := make([]int, len(keys))
	for p, a := range idx {
		if p > 0 && slices.Equal(keys[a], keys[idx[p-1]]) {
			ranks[a] = ranks[idx[p-1]]
			continue
		}
		ranks[a] = p
	}
	return ranks
}

func distinct(ranks []int) int {
	seen := make(map[int]struct{}, len(ranks))
	for _, r := range ranks {
		seen[r] = struct{}{}
	}
	return len(seen)
}

// refine splits classes by their neighbours' classes until the partition
// stops changing.
func (m *Molecule) refine(ranks []int) []int {
	for {
		keys := make([][]int, len(ranks))
		for a := range ranks {
			key := []int{ranks[a]}
			nb := make([]int, 0, len(m.adj[a]))
			for _, bi := range m.adj[a] {
				b := m.Bonds[bi]
				nb = append(nb, ranks[b.other(a)]*8+int(b.Order))
			}
			slices.Sort(nb)
			keys[a] = append(key, nb...)
		}
		next := rankByKeys(keys)
		if distinct(next) == distinct(ranks) {
			return next
		}
		ranks = next
	}
}

// lowestTie returns the members of the lowest-ranked class holding more
// than one atom, in atom order, or nil when every rank is unique.
func lowestTie(ranks []int) []int {
	counts := map[int]int{}
	for _, r := range ranks {
		counts[r]++
	}
	best := -1
	for r, c := range counts {
		if c > 1 && (best < 0 || r < best) {
			best = r
		}
	}
	if best < 0 {
		return nil
	}
	var tied []int
	for a, r := range ranks {
		if r == best {
			tied = append(tied, a)
		}
	}
	return tied
}

func splitTie(ranks, tied []int, pick int) {
	for _, a := range tied {
		if a != pick {
			ranks[a]++
		}
	}
}

// breakTies refines and splits ties, lowest class first and lowest atom
// index within a class, until every atom has its own rank.
func breakTies(m *Molecule, ranks []int) []int {
	for {
		ranks = m.refine(ranks)
		tied := lowestTie(ranks)
		if tied == nil {
			return ranks
		}
		splitTie(ranks, tied, tied[0])
	}
}

// effectiveStereo drops stereo tags whose neighbours are symmetry
// equivalent, since such tags describe no stereocentre.
func (m *Molecule) effectiveStereo(classes []int) ([]Chirality, []doubleBondStereo) {
	chiral := make([]Chirality, len(m.Atoms))
	for i, a := range m.Atoms {
		if a.Chiral == ChiralNone {
			continue
		}
		seen := map[int]bool{}
		ok := true
		for _, bi := range m.adj[i] {
			c := classes[m.Bonds[bi].other(i)]
			if seen[c] {
				ok = false
				break
			}
			seen[c] = true
		}
		if ok {
			chiral[i] = a.Chiral
		}
	}

	var stereo []doubleBondStereo
	for _, s := range m.dbStereo {
		b := m.Bonds[s.Bond]
		if m.symmetricEnd(b.A, b.B, classes) || m.symmetricEnd(b.B, b.A, classes) {
			continue
		}
		stereo = append(stereo, s)
	}
	return chiral, stereo
}

func (m *Molecule) symmetricEnd(a, partner int, classes []int) bool {
	var subs []int
	for _, bi := range m.adj[a] {
		if n := m.Bonds[bi].other(a); n != partner {
			subs = append(subs, n)
		}
	}
	switch len(subs) {
	case 0:
		return true
	case 1:
		return false
	}
	return classes[subs[0]] == classes[subs[1]]
}

func hasStereo(chiral []Chirality, stereo []doubleBondStereo) bool {
	if len(stereo) > 0 {
		return true
	}
	for _, c := range chiral {
		if c != ChiralNone {
			return true
		}
	}
	return false
}

var aromaticOrganic = map[string]bool{"b": true, "c": true, "n": true, "o": true, "p": true, "s": true}

type bondMark struct {
	atom int
	dir  byte
}

type smilesWriter struct {
	m      *Molecule
	ranks  []int
	chiral []Chirality
	stereo []doubleBondStereo

	visited    []bool
	pos        []int
	order      []int
	parentBond []int
	children   [][]int
	closures   [][]int
	isClosure  []bool

	marks  map[int]bondMark
	digits map[int]int
	inUse  []bool
	sb     strings.Builder
}

func (m *Molecule) write(ranks []int, chiral []Chirality, stereo []doubleBondStereo) string {
	n := len(m.Atoms)
	w := &smilesWriter{
		m:          m,
		ranks:      ranks,
		chiral:     chiral,
		stereo:     stereo,
		visited:    make([]bool, n),
		pos:        make([]int, n),
		parentBond: make([]int, n),
		children:   make([][]int, n),
		closures:   make([][]int, n),
		isClosure:  make([]bool, len(m.Bonds)),
		marks:      map[int]bondMark{},
		digits:     map[int]int{},
	}

	byRank := make([]int, n)
	for i := range byRank {
		byRank[i] = i
	}
	slices.SortFunc(byRank, func(a, b int) int { return ranks[a] - ranks[b] })

	var roots []int
	for _, a := range byRank {
		if w.visited[a] {
			continue
		}
		roots = append(roots, a)
		w.walk(a, -1)
	}
	w.assignMarks()
	for i, root := range roots {
		if i > 0 {
			w.sb.WriteByte('.')
		}
		w.emit(root)
	}
	return w.sb.String()
}

// walk fixes the spanning tree, child order and ring closures.
func (w *smilesWriter) walk(u, from int) {
	m := w.m
	w.visited[u] = true
	w.pos[u] = len(w.order)
	w.order = append(w.order, u)
	w.parentBond[u] = from

	bonds := slices.Clone(m.adj[u])
	slices.SortFunc(bonds, func(a, b int) int {
		return w.ranks[m.Bonds[a].other(u)] - w.ranks[m.Bonds[b].other(u)]
	})
	for _, bi := range bonds {
		if bi == from {
			continue
		}
		v := m.Bonds[bi].other(u)
		if w.visited[v] {
			if !w.isClosure[bi] {
				w.isClosure[bi] = true
				w.closures[u] = append(w.closures[u], bi)
				w.closures[v] = append(w.closures[v], bi)
			}
			continue
		}
		w.children[u] = append(w.children[u], v)
		w.walk(v, bi)
	}
}

// closureOrder lists u's ring closures in writing order: bonds closing a
// ring opened earlier first, then new openings, each by partner position.
func (w *smilesWriter) closureOrder(u int) []int {
	out := slices.Clone(w.closures[u])
	slices.SortFunc(out, func(a, b int) int {
		pa, pb := w.pos[w.m.Bonds[a].other(u)], w.pos[w.m.Bonds[b].other(u)]
		ca, cb := pa < w.pos[u], pb < w.pos[u]
		if ca != cb {
			if ca {
				return -1
			}
			return 1
		}
		return pa - pb
	})
	return out
}

func (w *smilesWriter) emit(u int) {
	m := w.m
	closures := w.closureOrder(u)
	w.sb.WriteString(w.atomSymbol(u, closures))
	for _, bi := range closures {
		v := m.Bonds[bi].other(u)
		if w.pos[v] < w.pos[u] {
			d := w.digits[bi]
			w.writeDigit(d)
			w.inUse[d] = false
			continue
		}
		d := w.allocDigit()
		w.digits[bi] = d
		w.sb.WriteString(w.bondSymbol(bi, u))
		w.writeDigit(d)
	}
	kids := w.children[u]
	for i, v := range kids {
		last := i == len(kids)-1
		if !last {
			w.sb.WriteByte('(')
		}
		w.sb.WriteString(w.bondSymbol(w.parentBond[v], u))
		w.emit(v)
		if !last {
			w.sb.WriteByte(')')
		}
	}
}

func (w *smilesWriter) allocDigit() int {
	for d := 1; ; d++ {
		for len(w.inUse) <= d {
			w.inUse = append(w.inUse, false)
		}
		if !w.inUse[d] {
			w.inUse[d] = true
			return d
		}
	}
}

func (w *smilesWriter) writeDigit(d int) {
	if d > 9 {
		w.sb.WriteByte('%')
	}
	w.sb.WriteString(strconv.Itoa(d))
}

// bondSymbol is the symbol for bond bi written after atom from.
func (w *smilesWriter) bondSymbol(bi, from int) string {
	m := w.m
	b := m.Bonds[bi]
	switch b.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondAromatic:
		return ""
	}
	if mk, ok := w.marks[bi]; ok {
		if mk.atom == from {
			return string(mk.dir)
		}
		return string(flipDir(mk.dir))
	}
	if m.Atoms[b.A].Aromatic && m.Atoms[b.B].Aromatic {
		return "-"
	}
	return ""
}

// outward returns the direction of bond bi read away from atom a.
func (w *smilesWriter) outward(bi, a int) (byte, bool) {
	mk, ok := w.marks[bi]
	if !ok {
		return 0, false
	}
	if mk.atom == a {
		return mk.dir, true
	}
	return flipDir(mk.dir), true
}

// assignMarks places '/' and '\\' on the single bonds around each stereo
// double bond, in output order, reusing marks shared with conjugated
// neighbours.
func (w *smilesWriter) assignMarks() {
	m := w.m
	stereo := slices.Clone(w.stereo)
	first := func(s doubleBondStereo) int {
		b := m.Bonds[s.Bond]
		return min(w.pos[b.A], w.pos[b.B])
	}
	slices.SortFunc(stereo, func(a, b doubleBondStereo) int { return first(a) - first(b) })

	for _, s := range stereo {
		b := m.Bonds[s.Bond]
		nA, flipA := w.chooseRef(b.A, b.B, s.RefA)
		nB, flipB := w.chooseRef(b.B, b.A, s.RefB)
		cis := s.Cis != (flipA != flipB)
		bA, bB := m.bondBetween(b.A, nA), m.bondBetween(b.B, nB)

		mA, hasA := w.outward(bA, b.A)
		mB, hasB := w.outward(bB, b.B)
		switch {
		case hasA && hasB:
			continue
		case !hasA && !hasB:
			mA = '/'
			if w.pos[nA] < w.pos[b.A] {
				mA = '\\'
			}
			w.marks[bA] = bondMark{atom: b.A, dir: mA}
			fallthrough
		case hasA:
			mB = mA
			if !cis {
				mB = flipDir(mA)
			}
			w.marks[bB] = bondMark{atom: b.B, dir: mB}
		default:
			mA = mB
			if !cis {
				mA = flipDir(mB)
			}
			w.marks[bA] = bondMark{atom: b.A, dir: mA}
		}
	}
}

// chooseRef picks the substituent of a (other than partner) that carries
// the mark, preferring one already marked, then the earliest written. It
// reports whether the pick is on the opposite side from ref.
func (w *smilesWriter) chooseRef(a, partner, ref int) (int, bool) {
	m := w.m
	best := -1
	for _, bi := range m.adj[a] {
		n := m.Bonds[bi].other(a)
		if n == partner || m.Bonds[bi].Order != BondSingle {
			continue
		}
		if _, ok := w.marks[bi]; ok {
			best = n
			break
		}
		if best < 0 || w.pos[n] < w.pos[best] {
			best = n
		}
	}
	if best < 0 {
		return ref, false
	}
	return best, best != ref
}

// neighbourOrder lists a's neighbours in the order the output string
// presents them, with implicitH for a bracket hydrogen.
func (w *smilesWriter) neighbourOrder(a int, closures []int) []int {
	m := w.m
	var out []int
	if pb := w.parentBond[a]; pb >= 0 {
		out = append(out, m.Bonds[pb].other(a))
	}
	if m.Atoms[a].HCount == 1 {
		out = append(out, implicitH)
	}
	for _, bi := range closures {
		out = append(out, m.Bonds[bi].other(a))
	}
	out = append(out, w.children[a]...)
	return out
}

func (w *smilesWriter) atomChirality(a int, closures []int) Chirality {
	c := w.chiral[a]
	if c == ChiralNone {
		return c
	}
	parity, ok := permutationParity(w.m.Atoms[a].stereoOrder, w.neighbourOrder(a, closures))
	if !ok {
		return ChiralNone
	}
	if parity {
		return c.invert()
	}
	return c
}

// permutationParity reports whether to is an odd permutation of from.
func permutationParity(from, to []int) (odd, ok bool) {
	if len(from) != len(to) {
		return false, false
	}
	perm := make([]int, len(to))
	for i, x := range to {
		j := slices.Index(from, x)
		if j < 0 {
			return false, false
		}
		perm[i] = j
	}
	inversions := 0
	for i := range perm {
		for j := i + 1; j < len(perm); j++ {
			if perm[i] > perm[j] {
				inversions++
			}
		}
	}
	return inversions%2 == 1, true
}

func (w *smilesWriter) atomSymbol(a int, closures []int) string {
	m := w.m
	atom := m.Atoms[a]
	sym := symbolOf(atom.Element)
	if atom.Aromatic {
		sym = strings.ToLower(sym)
	}
	chiral := w.atomChirality(a, closures)

	_, organic := organicValences[atom.Element]
	if atom.Aromatic {
		organic = aromaticOrganic[sym]
	}
	if atom.Element == 0 {
		organic = true
	}
	if organic && atom.Isotope == 0 && atom.Charge == 0 && chiral == ChiralNone && atom.HCount == m.defaultHydrogens(a) {
		return sym
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if atom.Isotope > 0 {
		sb.WriteString(strconv.Itoa(atom.Isotope))
	}
	sb.WriteString(sym)
	switch chiral {
	case ChiralCCW:
		sb.WriteString("@")
	case ChiralCW:
		sb.WriteString("@@")
	}
	if atom.HCount > 0 {
		sb.WriteByte('H')
		if atom.HCount > 1 {
			sb.WriteString(strconv.Itoa(atom.HCount))
		}
	}
	switch {
	case atom.Charge == 1:
		sb.WriteByte('+')
	case atom.Charge == -1:
		sb.WriteByte('-')
	case atom.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(atom.Charge))
	case atom.Charge < -1:
		sb.WriteString("-" + strconv.Itoa(-atom.Charge))
	}
	sb.WriteByte(']')
	return sb.String()
}
