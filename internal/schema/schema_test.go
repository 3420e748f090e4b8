package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerJSON = `{
  "attributes": [
    {"name": "date", "dataType": "datetime"},
    {"name": "amount", "dataType": "decimal"},
    {"name": "account", "dataType": "string"}
  ]
}`

const ledgerYAML = `
attributes:
  - name: date
    dataType: datetime
  - name: amount
    dataType: decimal
  - name: account
    dataType: string
`

func TestParse_JSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := Parse([]byte(ledgerJSON), FormatJSON)
	require.NoError(t, err)
	fromYAML, err := Parse([]byte(ledgerYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "amount", "account"}, fromJSON.Names())
	assert.Equal(t, fromJSON.Attributes(), fromYAML.Attributes())
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		attrs []Attribute
		want  error
	}{
		{"no attributes", nil, ErrNoAttributes},
		{"empty name", []Attribute{{Name: " ", DataType: TypeString}}, ErrEmptyName},
		{
			"duplicate name",
			[]Attribute{{Name: "amount", DataType: TypeDecimal}, {Name: "amount", DataType: TypeString}},
			ErrDuplicateAttribute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.attrs)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTargetSchema_Lookup(t *testing.T) {
	s, err := Parse([]byte(ledgerJSON), FormatJSON)
	require.NoError(t, err)

	attr, ok := s.Lookup("amount")
	require.True(t, ok)
	assert.Equal(t, TypeDecimal, attr.DataType)

	assert.True(t, s.Has("date"))
	assert.False(t, s.Has("Date"))
	assert.Equal(t, 3, s.Len())
}

func TestTargetSchema_AttributesIsCopy(t *testing.T) {
	s, err := Parse([]byte(ledgerJSON), FormatJSON)
	require.NoError(t, err)

	attrs := s.Attributes()
	attrs[0].Name = "mutated"

	assert.Equal(t, "date", s.Names()[0])
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "target_schema.json")
	yamlPath := filepath.Join(dir, "target_schema.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(ledgerJSON), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(ledgerYAML), 0o644))

	for _, p := range []string{jsonPath, yamlPath} {
		s, err := Load(p)
		require.NoError(t, err, p)
		assert.Equal(t, []string{"date", "amount", "account"}, s.Names())
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestTargetSchema_MarshalJSON(t *testing.T) {
	s, err := Parse([]byte(ledgerJSON), FormatJSON)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, ledgerJSON, string(data))
}
