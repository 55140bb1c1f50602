// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chem

import "fmt"

// SyntaxError reports a malformed SMILES or SMARTS string.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d in %q", e.Msg, e.Pos, e.Input)
}

// ChemistryError reports a string that parses but does not describe a valid
// molecule, such as a pentavalent carbon or an aromatic atom outside a ring.
type ChemistryError struct {
	Input string
	Msg   string
}

func (e *ChemistryError) Error() string {
	return fmt.Sprintf("%s in %q", e.Msg, e.Input)
}
