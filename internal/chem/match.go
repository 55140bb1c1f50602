// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

// target is the hydrogen-expanded view of a molecule that patterns are
// matched against. Heavy atoms keep their indices; hydrogens follow.
type target struct {
	m        *Molecule
	elem     []int
	aromatic []bool
	charge   []int
	isotope  []int
	totalH   []int
	valence  []int
	heavy    int
	orders   []BondOrder
	ends     [][2]int
	ringBond []bool
	adj      [][]int
}

func newTarget(m *Molecule) *target {
	t := &target{m: m, heavy: len(m.Atoms)}
	addAtom := func(elem int, aromatic bool, charge, isotope, valence int) int {
		t.elem = append(t.elem, elem)
		t.aromatic = append(t.aromatic, aromatic)
		t.charge = append(t.charge, charge)
		t.isotope = append(t.isotope, isotope)
		t.valence = append(t.valence, valence)
		t.totalH = append(t.totalH, 0)
		t.adj = append(t.adj, nil)
		return len(t.elem) - 1
	}
	addBond := func(a, b int, order BondOrder, ring bool) {
		t.orders = append(t.orders, order)
		t.ends = append(t.ends, [2]int{a, b})
		t.ringBond = append(t.ringBond, ring)
		idx := len(t.orders) - 1
		t.adj[a] = append(t.adj[a], idx)
		t.adj[b] = append(t.adj[b], idx)
	}

	for i, a := range m.Atoms {
		addAtom(a.Element, a.Aromatic, a.Charge, a.Isotope, m.valence(i))
	}
	for bi, b := range m.Bonds {
		addBond(b.A, b.B, b.Order, m.ringBond[bi])
		if m.Atoms[b.A].Element == elemH {
			t.totalH[b.B]++
		}
		if m.Atoms[b.B].Element == elemH {
			t.totalH[b.A]++
		}
	}
	for i, a := range m.Atoms {
		for range a.HCount {
			h := addAtom(elemH, false, 0, 0, 1)
			addBond(i, h, BondSingle, false)
			t.totalH[i]++
		}
	}
	return t
}

func (t *target) other(bi, a int) int {
	if e := t.ends[bi]; e[0] != a {
		return e[0]
	}
	return t.ends[bi][1]
}

func (t *target) bondBetween(a, b int) int {
	for _, bi := range t.adj[a] {
		if t.other(bi, a) == b {
			return bi
		}
	}
	return -1
}

func (t *target) ringCount(a int) int {
	if a >= t.heavy {
		return 0
	}
	return t.m.atomRings[a]
}

// Matches reports whether the pattern occurs as a substructure of m.
func (p *Pattern) Matches(m *Molecule) bool {
	return newMatcher(p, newTarget(m), map[recursiveKey]bool{}).search(-1)
}

type recursiveKey struct {
	p    *Pattern
	atom int
}

type matcher struct {
	p       *Pattern
	t       *target
	order   []int
	via     []int // pattern bond linking order[i] to an earlier atom, or -1
	mapping []int
	used    []bool
	memo    map[recursiveKey]bool
}

func newMatcher(p *Pattern, t *target, memo map[recursiveKey]bool) *matcher {
	mt := &matcher{
		p:       p,
		t:       t,
		mapping: make([]int, len(p.atoms)),
		used:    make([]bool, len(t.elem)),
		memo:    memo,
	}
	for i := range mt.mapping {
		mt.mapping[i] = -1
	}
	seen := make([]bool, len(p.atoms))
	var visit func(a, via int)
	visit = func(a, via int) {
		seen[a] = true
		mt.order = append(mt.order, a)
		mt.via = append(mt.via, via)
		for _, bi := range p.adj[a] {
			b := p.bonds[bi]
			n := b.a
			if n == a {
				n = b.b
			}
			if !seen[n] {
				visit(n, bi)
			}
		}
	}
	for a := range p.atoms {
		if !seen[a] {
			visit(a, -1)
		}
	}
	return mt
}

// search finds one embedding; anchor, when not -1, fixes pattern atom 0.
func (mt *matcher) search(anchor int) bool {
	if anchor >= 0 {
		return mt.try(0, anchor)
	}
	return mt.extend(0)
}

func (mt *matcher) extend(i int) bool {
	if i == len(mt.order) {
		return true
	}
	if via := mt.via[i]; via >= 0 {
		pb := mt.p.bonds[via]
		known := pb.a
		if known == mt.order[i] {
			known = pb.b
		}
		from := mt.mapping[known]
		for _, tb := range mt.t.adj[from] {
			v := mt.t.other(tb, from)
			if mt.used[v] || !mt.bondMatches(pb.expr, tb) {
				continue
			}
			if mt.try(i, v) {
				return true
			}
		}
		return false
	}
	for v := range mt.t.elem {
		if mt.used[v] {
			continue
		}
		if mt.try(i, v) {
			return true
		}
	}
	return false
}

func (mt *matcher) try(i, v int) bool {
	pa := mt.order[i]
	if !mt.atomMatches(mt.p.atoms[pa], v) {
		return false
	}
	for _, bi := range mt.p.adj[pa] {
		if bi == mt.via[i] {
			continue
		}
		pb := mt.p.bonds[bi]
		n := pb.a
		if n == pa {
			n = pb.b
		}
		w := mt.mapping[n]
		if w < 0 {
			continue
		}
		tb := mt.t.bondBetween(v, w)
		if tb < 0 || !mt.bondMatches(pb.expr, tb) {
			return false
		}
	}
	mt.mapping[pa] = v
	mt.used[v] = true
	if mt.extend(i + 1) {
		return true
	}
	mt.mapping[pa] = -1
	mt.used[v] = false
	return false
}

func (mt *matcher) atomMatches(e *atomExpr, v int) bool {
	switch e.op {
	case opNot:
		return !mt.atomMatches(e.left, v)
	case opAnd:
		return mt.atomMatches(e.left, v) && mt.atomMatches(e.right, v)
	case opOr:
		return mt.atomMatches(e.left, v) || mt.atomMatches(e.right, v)
	}
	t := mt.t
	switch e.kind {
	case atomAny:
		return true
	case atomAromatic:
		return t.aromatic[v]
	case atomAliphatic:
		return !t.aromatic[v]
	case atomElement:
		if t.elem[v] != e.value {
			return false
		}
		switch e.aromatic {
		case 1:
			return t.aromatic[v]
		case -1:
			return !t.aromatic[v]
		}
		return true
	case atomDegree, atomConnectivity:
		return len(t.adj[v]) == e.value
	case atomTotalH:
		return t.totalH[v] == e.value
	case atomImplicitH:
		// every hydrogen is explicit in the target
		return e.value == 0
	case atomRingCount:
		if e.value < 0 {
			return t.ringCount(v) > 0
		}
		return t.ringCount(v) == e.value
	case atomRingSize:
		if v >= t.heavy {
			return false
		}
		if e.value < 0 {
			return t.m.atomRings[v] > 0
		}
		return t.m.inRingOfSize(v, e.value)
	case atomRingConn:
		n := 0
		if v < t.heavy {
			n = t.m.ringBondCount(v)
		}
		if e.value < 0 {
			return n > 0
		}
		return n == e.value
	case atomValence:
		return t.valence[v] == e.value
	case atomCharge:
		return t.charge[v] == e.value
	case atomIsotope:
		return t.isotope[v] == e.value
	case atomRecursive:
		key := recursiveKey{p: e.sub, atom: v}
		if hit, ok := mt.memo[key]; ok {
			return hit
		}
		hit := newMatcher(e.sub, t, mt.memo).search(v)
		mt.memo[key] = hit
		return hit
	}
	return false
}

func (mt *matcher) bondMatches(e *bondExpr, tb int) bool {
	switch e.op {
	case opNot:
		return !mt.bondMatches(e.left, tb)
	case opAnd:
		return mt.bondMatches(e.left, tb) && mt.bondMatches(e.right, tb)
	case opOr:
		return mt.bondMatches(e.left, tb) || mt.bondMatches(e.right, tb)
	}
	order := mt.t.orders[tb]
	switch e.kind {
	case bondDefault:
		return order == BondSingle || order == BondAromatic
	case bondAnyKind:
		return true
	case bondSingleKind:
		return order == BondSingle
	case bondDoubleKind:
		return order == BondDouble
	case bondTripleKind:
		return order == BondTriple
	case bondAromaticKind:
		return order == BondAromatic
	case bondRingKind:
		return mt.t.ringBond[tb]
	}
	return false
}
