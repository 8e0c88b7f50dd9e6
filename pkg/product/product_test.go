package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecBuild(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		want    Product
		wantErr error
	}{
		{
			name: "coffee",
			spec: Spec{Type: "coffee", Name: "Indonezia", Price: 1, Acidity: "5.05", RoastLevel: "MEDIUM"},
			want: Coffee{Name: "Indonezia", Price: 1, Acidity: "5.05", RoastLevel: "MEDIUM"},
		},
		{
			name: "tea with capitalised type",
			spec: Spec{Type: "Tea", Name: "Linden", Price: 9, TeaType: "Herbal"},
			want: Tea{Name: "Linden", Price: 9, Type: "Herbal"},
		},
		{
			name:    "unknown type",
			spec:    Spec{Type: "juice", Name: "Orange"},
			wantErr: ErrUnknownKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Build()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustBuild(t, SpecOf(got)))
		})
	}
}

func TestProductsCompareByValue(t *testing.T) {
	var a, b Product = Tea{Name: "Linden", Price: 9, Type: "Herbal"}, Tea{Name: "Linden", Price: 9, Type: "Herbal"}
	assert.True(t, a == b)

	var c Product = Coffee{Name: "Linden", Price: 9}
	assert.False(t, a == c)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Tea(name='Linden', price=9, type='Herbal')",
		Tea{Name: "Linden", Price: 9, Type: "Herbal"}.String())
	assert.Equal(t, "Coffee(name='Indonezia', price=1, acidity='5.05', roast_level='MEDIUM')",
		Coffee{Name: "Indonezia", Price: 1, Acidity: "5.05", RoastLevel: "MEDIUM"}.String())
}

func mustBuild(t *testing.T, s Spec) Product {
	t.Helper()
	p, err := s.Build()
	require.NoError(t, err)
	return p
}
