// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chem is the chemistry capability of the catalog: it parses SMILES,
// perceives rings and aromaticity, writes canonical SMILES, and matches
// SMARTS substructure patterns. Molecules are held as heavy-atom graphs with
// hydrogen counts; matching expands hydrogens into explicit atoms.
package chem

// BondOrder is the order of a bond. Aromatic bonds have their own order.
type BondOrder uint8

const (
	BondSingle   BondOrder = 1
	BondDouble   BondOrder = 2
	BondTriple   BondOrder = 3
	BondAromatic BondOrder = 4
)

// Chirality is a tetrahedral stereo tag as written in SMILES.
type Chirality uint8

const (
	ChiralNone Chirality = iota
	ChiralCCW            // @
	ChiralCW             // @@
)

func (c Chirality) invert() Chirality {
	switch c {
	case ChiralCCW:
		return ChiralCW
	case ChiralCW:
		return ChiralCCW
	}
	return c
}

// implicitH marks the implicit hydrogen in a stereo neighbour order.
const implicitH = -1

// Atom is one heavy atom, or an explicit hydrogen kept for its isotope or
// charge.
type Atom struct {
	Element  int // atomic number, 0 for the wildcard
	Aromatic bool
	Isotope  int
	Charge   int
	HCount   int
	Map      int
	Chiral   Chirality

	bracket bool
	// stereoOrder lists neighbour atoms in the order the chirality tag refers
	// to; implicitH stands for the hydrogen.
	stereoOrder []int
}

// Bond joins atoms A and B. Dir is '/', '\\' or 0, read from A towards B.
type Bond struct {
	A, B  int
	Order BondOrder
	Dir   byte
}

func (b Bond) other(a int) int {
	if b.A == a {
		return b.B
	}
	return b.A
}

// doubleBondStereo fixes the relative placement of RefA (a neighbour of the
// bond's A atom) and RefB (a neighbour of its B atom).
type doubleBondStereo struct {
	Bond       int
	RefA, RefB int
	Cis        bool
}

// Molecule is a parsed molecular graph.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond

	adj      [][]int // atom -> incident bond indices
	dbStereo []doubleBondStereo

	rings     [][]int // ordered atom cycles, smallest ring per bond
	ringBond  []bool
	atomRings []int // number of rings each atom belongs to
}

// NumAtoms returns the number of atoms held in the graph.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

func (m *Molecule) addAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adj = append(m.adj, nil)
	return len(m.Atoms) - 1
}

func (m *Molecule) addBond(b Bond) int {
	m.Bonds = append(m.Bonds, b)
	idx := len(m.Bonds) - 1
	m.adj[b.A] = append(m.adj[b.A], idx)
	m.adj[b.B] = append(m.adj[b.B], idx)
	return idx
}

// bondBetween returns the index of the bond joining a and b, or -1.
func (m *Molecule) bondBetween(a, b int) int {
	for _, bi := range m.adj[a] {
		if m.Bonds[bi].other(a) == b {
			return bi
		}
	}
	return -1
}

func (m *Molecule) degree(a int) int { return len(m.adj[a]) }

// bondSums returns the summed order of non-aromatic bonds and the number of
// aromatic bonds at a.
func (m *Molecule) bondSums(a int) (plain, aromatic int) {
	for _, bi := range m.adj[a] {
		if o := m.Bonds[bi].Order; o == BondAromatic {
			aromatic++
		} else {
			plain += int(o)
		}
	}
	return plain, aromatic
}

// defaultHydrogens is the hydrogen count an unbracketed atom receives.
func (m *Molecule) defaultHydrogens(a int) int {
	atom := m.Atoms[a]
	valences, ok := organicValences[atom.Element]
	if !ok {
		return 0
	}
	plain, arom := m.bondSums(a)
	if atom.Aromatic {
		h := valences[0] - (plain + arom + 1)
		if h < 0 {
			return 0
		}
		return h
	}
	sum := plain + arom
	for _, v := range valences {
		if v >= sum {
			return v - sum
		}
	}
	return 0
}

// valence is the explicit valence used by the SMARTS v primitive; aromatic
// atoms count their pi bond once.
func (m *Molecule) valence(a int) int {
	atom := m.Atoms[a]
	plain, arom := m.bondSums(a)
	v := plain + arom + atom.HCount
	if atom.Aromatic && arom > 0 && v < chargedValence(atom.Element, atom.Charge) {
		v++
	}
	return v
}

// removeAtoms deletes the marked atoms and every bond touching them, and
// renumbers the remaining atoms, bonds and stereo references.
func (m *Molecule) removeAtoms(drop []bool) {
	remap := make([]int, len(m.Atoms))
	var atoms []Atom
	for i, a := range m.Atoms {
		if drop[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(atoms)
		atoms = append(atoms, a)
	}
	bondRemap := make([]int, len(m.Bonds))
	var bonds []Bond
	for i, b := range m.Bonds {
		if drop[b.A] || drop[b.B] {
			bondRemap[i] = -1
			continue
		}
		bondRemap[i] = len(bonds)
		bonds = append(bonds, Bond{A: remap[b.A], B: remap[b.B], Order: b.Order, Dir: b.Dir})
	}
	for i := range atoms {
		order := atoms[i].stereoOrder
		for j, n := range order {
			if n >= 0 {
				order[j] = remap[n]
			}
		}
	}
	var stereo []doubleBondStereo
	for _, s := range m.dbStereo {
		nb := bondRemap[s.Bond]
		if nb < 0 || remap[s.RefA] < 0 || remap[s.RefB] < 0 {
			continue
		}
		stereo = append(stereo, doubleBondStereo{Bond: nb, RefA: remap[s.RefA], RefB: remap[s.RefB], Cis: s.Cis})
	}

	m.Atoms = atoms
	m.Bonds = nil
	m.adj = make([][]int, len(atoms))
	for _, b := range bonds {
		m.addBond(b)
	}
	m.dbStereo = stereo
}
