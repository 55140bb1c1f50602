// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCanon(t *testing.T, smiles string) string {
	t.Helper()
	out, err := Canonicalize(smiles)
	require.NoError(t, err, smiles)
	return out
}

func TestCanonicalize_Simple(t *testing.T) {
	assert.Equal(t, "CCO", mustCanon(t, "CCO"))
	assert.Equal(t, "CCO", mustCanon(t, "OCC"))
	assert.Equal(t, "CCO", mustCanon(t, "[CH3][CH2][OH]"))
	assert.Equal(t, "C", mustCanon(t, "[CH4]"))
}

func TestCanonicalize_Aromatic(t *testing.T) {
	assert.Equal(t, "c1ccccc1", mustCanon(t, "c1ccccc1"))
	assert.Equal(t, "c1ccccc1", mustCanon(t, "C1=CC=CC=C1"))
	assert.Equal(t, "c1ccccc1", mustCanon(t, "C=1C=CC=CC=1"))
}

func TestCanonicalize_EquivalentForms(t *testing.T) {
	groups := [][]string{
		{"Cc1ccccc1", "CC1=CC=CC=C1", "c1ccc(C)cc1"},
		{"c1ccncc1", "C1=CC=NC=C1", "n1ccccc1"},
		{"c1cc[nH]c1", "C1=CNC=C1", "[nH]1cccc1"},
		{"O=c1cccc[nH]1", "O=C1C=CC=CN1"},
		{"c1ccc2ccccc2c1", "C1=CC=C2C=CC=CC2=C1"},
		{"CC(=O)O", "OC(C)=O", "CC(O)=O"},
		{"c1ccoc1", "C1=COC=C1"},
		{"[Na+].[Cl-]", "[Cl-].[Na+]"},
		{"C1CCCCC1", "C1CCCCC1", "C%10CCCCC%10"},
		{"c1ccccc1-c1ccccc1", "c1ccc(cc1)c1ccccc1"},
	}
	for _, g := range groups {
		first := mustCanon(t, g[0])
		for _, s := range g[1:] {
			assert.Equal(t, first, mustCanon(t, s), "%s vs %s", g[0], s)
		}
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	for _, s := range []string{
		"CCO", "c1ccccc1", "CC(=O)Nc1ccc(O)cc1", "O=c1cccc[nH]1",
		"F/C=C/F", "C[C@H](N)O", "[2H]C", "C1CC1C(=O)[O-]",
	} {
		once := mustCanon(t, s)
		assert.Equal(t, once, mustCanon(t, once), s)
	}
}

func TestCanonicalize_MappedExplicitHydrogens(t *testing.T) {
	mapped := "[H:4][C:1]([H:5])([H:6])[C:2]([H:7])([H:8])[O:3][H:9]"
	assert.Equal(t, "CCO", mustCanon(t, mapped))

	benzene := "[c:1]1([H:7])[c:2]([H:8])[c:3]([H:9])[c:4]([H:10])[c:5]([H:11])[c:6]1[H:12]"
	assert.Equal(t, "c1ccccc1", mustCanon(t, benzene))
}

func TestCanonicalize_Tetrahedral(t *testing.T) {
	r := mustCanon(t, "C[C@H](N)O")
	assert.Equal(t, r, mustCanon(t, "C[C@@H](O)N"))
	assert.Equal(t, r, mustCanon(t, "N[C@@H](C)O"))
	assert.NotEqual(t, r, mustCanon(t, "C[C@@H](N)O"))

	// Two methyl groups make the centre achiral.
	assert.Equal(t, mustCanon(t, "CC(C)O"), mustCanon(t, "C[C@H](C)O"))
}

func TestCanonicalize_DoubleBond(t *testing.T) {
	trans := mustCanon(t, "F/C=C/F")
	cis := mustCanon(t, "F/C=C\\F")
	assert.Equal(t, "F/C=C/F", trans)
	assert.Equal(t, "F/C=C\\F", cis)
	assert.Equal(t, trans, mustCanon(t, "F\\C=C\\F"))
	assert.Equal(t, cis, mustCanon(t, "F\\C=C/F"))

	// A terminal CH2 cannot carry cis/trans.
	assert.Equal(t, mustCanon(t, "C=CF"), mustCanon(t, "C=C/F"))
}

// TestCanonicalize_StereoAtomOrder writes each molecule under random atom
// orders and checks every spelling canonicalizes to the same string.
func TestCanonicalize_StereoAtomOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, smiles := range []string{
		// Constitutionally equal branches with opposite double-bond stereo.
		`C/C=C\C(/C=C/C)=C/C`,
		`C\C=C\C(/C=C/C)=C\C`,
		"N[C@@H](Cc1ccccc1)C(=O)O",
		"C/C=C/c1ccccc1",
		"F/C=C/F",
	} {
		m, err := Parse(smiles)
		require.NoError(t, err, smiles)
		want := m.CanonicalSMILES()

		chiral := make([]Chirality, len(m.Atoms))
		for i, a := range m.Atoms {
			chiral[i] = a.Chiral
		}
		for range 300 {
			spelled := m.write(rng.Perm(len(m.Atoms)), chiral, m.dbStereo)
			require.Equal(t, want, mustCanon(t, spelled), "%s written as %s", smiles, spelled)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	for _, s := range []string{
		"", "C1CC", "C(C", "CC)", "Xx", "C=", "[C", "C(C)(C)(C)(C)C", "c1cccc", "CC.=C", "c",
	} {
		_, err := Parse(s)
		assert.Error(t, err, "%q", s)
	}
}

func TestParse_ErrorTypes(t *testing.T) {
	_, err := Parse("C1CC")
	var syn *SyntaxError
	assert.True(t, errors.As(err, &syn))

	_, err = Parse("C(C)(C)(C)(C)C")
	var chemErr *ChemistryError
	assert.True(t, errors.As(err, &chemErr))
}

func TestParse_HydrogenCounts(t *testing.T) {
	m, err := Parse("CC(=O)N")
	require.NoError(t, err)
	want := []int{3, 0, 0, 2}
	for i, a := range m.Atoms {
		assert.Equal(t, want[i], a.HCount, "atom %d", i)
	}

	m, err = Parse("[2H]C")
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumAtoms(), "isotopic hydrogen stays explicit")
}

func TestParse_IgnoresTrailingText(t *testing.T) {
	assert.Equal(t, "CCO", mustCanon(t, "CCO |$;;$|"))
}

func mustMatch(t *testing.T, pattern, smiles string) bool {
	t.Helper()
	p, err := CompilePattern(pattern)
	require.NoError(t, err, pattern)
	m, err := Parse(smiles)
	require.NoError(t, err, smiles)
	return p.Matches(m)
}

func TestPattern_Matches(t *testing.T) {
	tests := []struct {
		pattern string
		smiles  string
		want    bool
	}{
		{"c1ccccc1", "c1ccccc1", true},
		{"c1ccccc1", "CCO", false},
		{"c1ccccc1", "Cc1ccccc1", true},
		{"C1=CC=CC=C1", "c1ccccc1", false},
		{"CCO", "CCO", true},
		{"[OX2H]", "CCO", true},
		{"[OX2H]", "COC", false},
		{"[#6]", "O", false},
		{"[#8]", "O", true},
		{"C=O", "CC(C)=O", true},
		{"[CH3]", "CCO", true},
		{"[CH3]", "c1ccccc1", false},
		{"[C;H2]", "CCO", true},
		{"[!#6;!#1]", "CCO", true},
		{"[!#6;!#1]", "CC", false},
		{"[$([CX4][OH])]", "CCO", true},
		{"[$([CX4][OH])]", "CC(=O)O", false},
		{"[*:1]~[*:2]~[*:3]~[*:4]", "CCO", true},
		{"[*:1]~[*:2]~[*:3]~[*:4]", "[H][H]", false},
		{"[C:1]-[O:2]", "CO", true},
		{"[#1]", "C", true},
		{"[R]", "C1CC1", true},
		{"[C;R0]", "C1CC1", false},
		{"[C;R0]", "CC1CC1", true},
		{"[r5]", "C1CCCC1", true},
		{"[r5]", "C1CCCCC1", false},
		{"C@C", "C1CC1", true},
		{"C!@C", "C1CC1", false},
		{"[N+](=O)[O-]", "C[N+](=O)[O-]", true},
		{"[nH]", "c1cc[nH]c1", true},
		{"a", "c1ccoc1", true},
		{"[c,n]", "c1ccncc1", true},
		{"C#N", "CC#N", true},
		{"[Cl]", "CCl", true},
		{"Br", "CCl", false},
		{"[v4]", "C", true},
		{"[D1]", "C", true},
		{"[D4]", "C", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.smiles, func(t *testing.T) {
			assert.Equal(t, tt.want, mustMatch(t, tt.pattern, tt.smiles))
		})
	}
}

func TestCompilePattern_Errors(t *testing.T) {
	for _, s := range []string{"", "c1ccc", "[C", "Q", "C(", "[$(C]", "C=", "[#]"} {
		_, err := CompilePattern(s)
		assert.Error(t, err, "%q", s)
	}
}

func TestPattern_String(t *testing.T) {
	p, err := CompilePattern(" CCO ")
	require.NoError(t, err)
	assert.Equal(t, "CCO", p.String())
}

func TestPermutationParity(t *testing.T) {
	odd, ok := permutationParity([]int{1, 2, 3, 4}, []int{2, 1, 3, 4})
	require.True(t, ok)
	assert.True(t, odd)

	odd, ok = permutationParity([]int{1, 2, 3, 4}, []int{2, 3, 1, 4})
	require.True(t, ok)
	assert.False(t, odd)

	_, ok = permutationParity([]int{1, 2, 3}, []int{1, 2, 5})
	assert.False(t, ok)
}
