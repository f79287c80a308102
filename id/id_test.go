package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/settlement/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
		prefix  string
	}{
		{"SessionID", id.NewSessionID, id.ParseSessionID, "sess_"},
		{"ClaimEntryID", id.NewClaimEntryID, id.ParseClaimEntryID, "clm_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			require.False(t, original.IsNil())
			assert.True(t, strings.HasPrefix(original.String(), tt.prefix))

			parsed, err := tt.parseFn(original.String())
			require.NoError(t, err)
			assert.Equal(t, original.String(), parsed.String())
		})
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	sess := id.NewSessionID()
	_, err := id.ParseClaimEntryID(sess.String())
	assert.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "not-an-id", "sess_!!!"} {
		_, err := id.Parse(s)
		assert.Error(t, err, s)
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	assert.True(t, i.IsNil())
	assert.Empty(t, i.String())
	assert.Equal(t, id.Prefix(""), i.Prefix())
}

func TestJSONRoundTrip(t *testing.T) {
	type record struct {
		ID id.ID `json:"id"`
	}
	original := record{ID: id.NewSessionID()}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var got record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, original.ID.String(), got.ID.String())
	assert.Equal(t, id.PrefixSession, got.ID.Prefix())

	var empty record
	require.NoError(t, json.Unmarshal([]byte(`{"id":""}`), &empty))
	assert.True(t, empty.ID.IsNil())
}
