package conflict

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name     string
		tokens   []string
		expected []Conflict
		wantErr  bool
	}{
		{name: "nil", tokens: nil, expected: []Conflict{}},
		{name: "legacy true", tokens: []string{"true"}, expected: []Conflict{ManifestOld}},
		{name: "legacy false", tokens: []string{"false"}, expected: []Conflict{}},
		{
			name:     "tokens",
			tokens:   []string{"SIGNATURE_CONFLICT", "manifest_same", " DISTRIBUTOR_CONFLICT "},
			expected: []Conflict{DistributorConflict, ManifestSame, SignatureConflict},
		},
		{name: "unknown", tokens: []string{"MANIFEST_OLD", "NOPE"}, wantErr: true},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				o, err := ParseOverrides(test.tokens)
				if test.wantErr {
					require.Error(t, err)
					return
				}
				require.NoError(t, err)
				if diff := cmp.Diff(test.expected, o.List()); diff != "" {
					t.Errorf("overrides mismatch (-want +got):\n%s", diff)
				}
			},
		)
	}
}

func TestOverridesIsForced(t *testing.T) {
	o := NewOverrides(ManifestSame)
	assert.True(t, o.IsForced(ManifestSame))
	assert.False(t, o.IsForced(ManifestOld))
	assert.False(t, o.IsEmpty())
	assert.True(t, NewOverrides().IsEmpty())

	var zero Overrides
	assert.False(t, zero.IsForced(SignatureConflict))
	assert.True(t, zero.IsEmpty())
}

func TestAggregate(t *testing.T) {
	assert.Nil(t, Aggregate())
	assert.Nil(t, Aggregate(nil, nil))

	agg := Aggregate(
		NewImportConflictError("old", ManifestOld),
		nil,
		NewImportConflictError("other distributor", DistributorConflict),
	)
	require.NotNil(t, agg)
	assert.Equal(t, []string{"MANIFEST_OLD", "DISTRIBUTOR_CONFLICT"}, agg.Tokens())
	assert.True(t, agg.Has(DistributorConflict))
	assert.False(t, agg.Has(SignatureConflict))
	assert.Equal(t, "old\nother distributor", agg.Error())
}
