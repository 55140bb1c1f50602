// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

import (
	"slices"
	"strconv"
	"strings"
)

// perceiveRings finds, for every bond, the smallest ring through it. The
// de-duplicated set of those rings is the ring set used by aromaticity and
// by the SMARTS ring primitives.
func (m *Molecule) perceiveRings() {
	m.rings = nil
	m.ringBond = make([]bool, len(m.Bonds))
	m.atomRings = make([]int, len(m.Atoms))
	seen := map[string]bool{}
	for bi, b := range m.Bonds {
		path := m.shortestPath(b.A, b.B, bi)
		if path == nil {
			continue
		}
		m.ringBond[bi] = true
		key := ringKey(path)
		if seen[key] {
			continue
		}
		seen[key] = true
		m.rings = append(m.rings, path)
	}
	for _, ring := range m.rings {
		for _, a := range ring {
			m.atomRings[a]++
		}
	}
}

// shortestPath returns the atoms of the shortest path from -> to that does
// not use bond skip, or nil when none exists.
func (m *Molecule) shortestPath(from, to, skip int) []int {
	parent := make([]int, len(m.Atoms))
	for i := range parent {
		parent[i] = -1
	}
	parent[from] = from
	queue := []int{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			break
		}
		for _, bi := range m.adj[cur] {
			if bi == skip {
				continue
			}
			n := m.Bonds[bi].other(cur)
			if parent[n] >= 0 {
				continue
			}
			parent[n] = cur
			queue = append(queue, n)
		}
	}
	if parent[to] < 0 {
		return nil
	}
	var path []int
	for cur := to; cur != from; cur = parent[cur] {
		path = append(path, cur)
	}
	path = append(path, from)
	slices.Reverse(path)
	return path
}

func ringKey(ring []int) string {
	sorted := slices.Clone(ring)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, a := range sorted {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ",")
}

// ringBonds returns the bond indices closing the ordered cycle.
func (m *Molecule) ringBonds(ring []int) []int {
	out := make([]int, len(ring))
	for i, a := range ring {
		out[i] = m.bondBetween(a, ring[(i+1)%len(ring)])
	}
	return out
}

func (m *Molecule) smallestRingWithBond(bond int) int {
	best := 0
	for _, ring := range m.rings {
		if best != 0 && len(ring) >= best {
			continue
		}
		if slices.Contains(m.ringBonds(ring), bond) {
			best = len(ring)
		}
	}
	return best
}

func (m *Molecule) inRingOfSize(a, size int) bool {
	for _, ring := range m.rings {
		if len(ring) == size && slices.Contains(ring, a) {
			return true
		}
	}
	return false
}

func (m *Molecule) ringBondCount(a int) int {
	n := 0
	for _, bi := range m.adj[a] {
		if m.ringBond[bi] {
			n++
		}
	}
	return n
}

// piElectrons is the number of electrons a ring atom donates to an aromatic
// sextet; ok is false when the atom cannot take part in one.
func (m *Molecule) piElectrons(a int) (n int, ok bool) {
	atom := m.Atoms[a]
	conn := m.degree(a) + atom.HCount
	var ringDouble, exoDouble bool
	for _, bi := range m.adj[a] {
		switch m.Bonds[bi].Order {
		case BondDouble:
			if m.ringBond[bi] {
				ringDouble = true
			} else {
				exoDouble = true
			}
		case BondTriple:
			return 0, false
		}
	}

	if atom.Aromatic {
		switch atom.Element {
		case elemC:
			switch {
			case exoDouble || atom.Charge > 0:
				return 0, true
			case atom.Charge < 0:
				return 2, true
			}
			return 1, true
		case elemN, elemP, elemAs:
			if conn == 3 && atom.Charge == 0 {
				return 2, true
			}
			return 1, true
		case elemO, elemS, elemSe, elemTe:
			if atom.Charge > 0 {
				return 1, true
			}
			return 2, true
		case elemB:
			return 0, true
		}
		return 1, true
	}

	switch {
	case ringDouble:
		return 1, true
	case exoDouble:
		if atom.Element == elemC {
			return 0, true
		}
		return 0, false
	}
	switch atom.Element {
	case elemN, elemP:
		if atom.Charge == 0 && conn == 3 {
			return 2, true
		}
	case elemO, elemS, elemSe:
		if atom.Charge == 0 && conn == 2 {
			return 2, true
		}
	case elemC:
		if conn == 3 && atom.Charge == -1 {
			return 2, true
		}
		if conn == 3 && atom.Charge == 1 {
			return 0, true
		}
	case elemB:
		if atom.Charge == 0 && conn == 3 {
			return 0, true
		}
	}
	return 0, false
}

// electronCount sums the pi electrons over a set of atoms.
func (m *Molecule) electronCount(atoms []int) (int, bool) {
	total := 0
	for _, a := range atoms {
		n, ok := m.piElectrons(a)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func huckel(n int) bool { return n%4 == 2 }

func (m *Molecule) alreadyAromatic(ring []int) bool {
	for _, a := range ring {
		if !m.Atoms[a].Aromatic {
			return false
		}
	}
	for _, bi := range m.ringBonds(ring) {
		if m.Bonds[bi].Order != BondAromatic {
			return false
		}
	}
	return true
}

// perceiveAromaticity marks rings that satisfy the 4n+2 rule, alone or
// fused with one neighbouring ring, as aromatic. Rings written aromatic are
// kept as written. Aromatic bonds left outside every aromatic ring become
// single bonds.
func (m *Molecule) perceiveAromaticity(input string) error {
	aromatic := make([]bool, len(m.rings))
	for i, ring := range m.rings {
		if m.alreadyAromatic(ring) {
			aromatic[i] = true
			continue
		}
		if n, ok := m.electronCount(ring); ok && huckel(n) {
			aromatic[i] = true
		}
	}
	for i, ri := range m.rings {
		for j := i + 1; j < len(m.rings); j++ {
			if aromatic[i] && aromatic[j] {
				continue
			}
			rj := m.rings[j]
			if !m.sharesBond(ri, rj) {
				continue
			}
			union := unionAtoms(ri, rj)
			if n, ok := m.electronCount(union); ok && huckel(n) {
				aromatic[i], aromatic[j] = true, true
			}
		}
	}

	aromaticBond := make([]bool, len(m.Bonds))
	for i, ring := range m.rings {
		if !aromatic[i] {
			continue
		}
		for _, a := range ring {
			m.Atoms[a].Aromatic = true
		}
		for _, bi := range m.ringBonds(ring) {
			m.Bonds[bi].Order = BondAromatic
			aromaticBond[bi] = true
		}
	}
	for bi := range m.Bonds {
		if m.Bonds[bi].Order == BondAromatic && !aromaticBond[bi] {
			m.Bonds[bi].Order = BondSingle
		}
	}
	for i, a := range m.Atoms {
		if !a.Aromatic {
			continue
		}
		inRing := false
		for _, bi := range m.adj[i] {
			if aromaticBond[bi] {
				inRing = true
				break
			}
		}
		if !inRing {
			return &ChemistryError{Input: input, Msg: "aromatic atom outside an aromatic ring"}
		}
	}
	return nil
}

func (m *Molecule) sharesBond(a, b []int) bool {
	bb := m.ringBonds(b)
	for _, bi := range m.ringBonds(a) {
		if slices.Contains(bb, bi) {
			return true
		}
	}
	return false
}

func unionAtoms(a, b []int) []int {
	out := slices.Clone(a)
	for _, x := range b {
		if !slices.Contains(out, x) {
			out = append(out, x)
		}
	}
	return out
}
