package tenant

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"canonical", "6f1c2b9e-4d0a-4c55-9a53-1d2b1e0f7a10", false},
		{"padded", "  6f1c2b9e-4d0a-4c55-9a53-1d2b1e0f7a10 ", false},
		{"empty", "", true},
		{"nil uuid", "00000000-0000-0000-0000-000000000000", true},
		{"not a uuid", "acme-corp", true},
		{"sql injection", "x'; DROP TABLE documents; --", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.False(t, id.IsZero())
		})
	}
}

func TestCollectionKey(t *testing.T) {
	a := MustParse("6f1c2b9e-4d0a-4c55-9a53-1d2b1e0f7a10")
	b := MustParse("6f1c2b9e-4d0a-4c55-9a53-1d2b1e0f7a11")

	assert.Equal(t, "kb_6f1c2b9e4d0a4c559a531d2b1e0f7a10", a.CollectionKey())
	assert.NotEqual(t, a.CollectionKey(), b.CollectionKey())
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9_]+$`), New().CollectionKey())
}

func TestTextRoundTrip(t *testing.T) {
	id := New()
	data, err := json.Marshal(map[string]ID{"tenant": id})
	require.NoError(t, err)

	var out map[string]ID
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, id, out["tenant"])

	assert.Error(t, json.Unmarshal([]byte(`{"tenant":"nope"}`), &out))
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := New()
	got, ok := FromContext(WithID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
