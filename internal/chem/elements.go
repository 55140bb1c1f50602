// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

// elementSymbols is indexed by atomic number; index 0 is the wildcard atom.
var elementSymbols = []string{
	"*",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
	"In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba", "La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy",
	"Ho", "Er", "Tm", "Yb", "Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt",
	"Au", "Hg", "Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra", "Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf",
	"Es", "Fm", "Md", "No", "Lr", "Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds",
	"Rg", "Cn", "Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}

var atomicNumbers = func() map[string]int {
	m := make(map[string]int, len(elementSymbols))
	for z, s := range elementSymbols {
		m[s] = z
	}
	return m
}()

// Atomic numbers referenced by name.
const (
	elemH  = 1
	elemB  = 5
	elemC  = 6
	elemN  = 7
	elemO  = 8
	elemF  = 9
	elemSi = 14
	elemP  = 15
	elemS  = 16
	elemCl = 17
	elemAs = 33
	elemSe = 34
	elemBr = 35
	elemTe = 52
	elemI  = 53
)

// organicValences lists the allowed valences of the SMILES organic subset,
// lowest first.
var organicValences = map[int][]int{
	elemB:  {3},
	elemC:  {4},
	elemN:  {3, 5},
	elemO:  {2},
	elemP:  {3, 5},
	elemS:  {2, 4, 6},
	elemF:  {1},
	elemCl: {1},
	elemBr: {1},
	elemI:  {1},
}

// aromaticSymbols are the lowercase symbols accepted for aromatic atoms.
var aromaticSymbols = map[string]int{
	"b": elemB, "c": elemC, "n": elemN, "o": elemO, "p": elemP, "s": elemS,
	"se": elemSe, "as": elemAs, "te": elemTe,
}

// baseValence is the lowest common valence used for aromatic hydrogen
// counting and for the SMARTS v primitive.
var baseValence = map[int]int{
	elemB: 3, elemC: 4, elemN: 3, elemO: 2, elemF: 1,
	elemSi: 4, elemP: 3, elemS: 2, elemCl: 1,
	elemAs: 3, elemSe: 2, elemBr: 1, elemTe: 2, elemI: 1,
}

// chargedValence shifts the base valence of z by its charge using the
// isoelectronic neighbour in the same period (N+ behaves like C, O- like F).
// It returns 0 when no valence is known.
func chargedValence(z, charge int) int {
	if charge == 0 {
		return baseValence[z]
	}
	shifted := z - charge
	if periodOf(shifted) == periodOf(z) {
		if v, ok := baseValence[shifted]; ok {
			return v
		}
	}
	return 0
}

func periodOf(z int) int {
	switch {
	case z <= 2:
		return 1
	case z <= 10:
		return 2
	case z <= 18:
		return 3
	case z <= 36:
		return 4
	case z <= 54:
		return 5
	default:
		return 6
	}
}

func symbolOf(z int) string {
	if z >= 0 && z < len(elementSymbols) {
		return elementSymbols[z]
	}
	return "*"
}
