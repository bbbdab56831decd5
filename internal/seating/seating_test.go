package seating

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/models"
)

func TestStatic_Capacity(t *testing.T) {
	plan := Static{"T1": 4, "T2": 2, "T3": 6}

	tests := []struct {
		name    string
		tables  []string
		want    int
		wantErr error
	}{
		{"single", []string{"T1"}, 4, nil},
		{"merged", []string{"T1", "T2"}, 6, nil},
		{"duplicates counted once", []string{"T3", "T3"}, 6, nil},
		{"unknown table", []string{"T1", "T9"}, 0, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := plan.Capacity(context.Background(), tt.tables)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
