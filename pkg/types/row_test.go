// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordType_CollectionSpellings(t *testing.T) {
	tests := []struct {
		in   string
		want RecordType
	}{
		{"singlepoint", RecordSinglepoint},
		{"basic", RecordSinglepoint},
		{"BasicResultCollection", RecordSinglepoint},
		{"optimization", RecordOptimization},
		{"torsion", RecordTorsiondrive},
		{" torsiondrive ", RecordTorsiondrive},
	}
	for _, tt := range tests {
		got, err := ParseRecordType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseRecordType("widget")
	assert.Error(t, err)
}

func TestRecordTypeFromName(t *testing.T) {
	for _, kind := range RecordTypes {
		got, err := RecordTypeFromName(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	for _, in := range []string{"basic", "torsion", "Optimization", "OptimizationResultCollection", ""} {
		_, err := RecordTypeFromName(in)
		assert.Error(t, err, in)
	}
}
