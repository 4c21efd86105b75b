package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []Transaction {
	return []Transaction{
		{ID: "1", Date: "2019-12-01", Description: "Coffee", Category: "Food"},
		{ID: "2", Date: "2019-12-02", Description: "Rent", Category: "Housing"},
		{ID: "3", Date: "2019-12-03", Description: "Iced COFFEE to go", Category: "Food"},
		{ID: "4", Date: "2019-12-04", Description: "Chipotle", Category: "Food"},
	}
}

func ids(ts []Transaction) []ID {
	out := make([]ID, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestFilterScenario(t *testing.T) {
	data := []Transaction{
		{ID: "1", Description: "Coffee"},
		{ID: "2", Description: "Rent"},
	}
	assert.Equal(t, []ID{"1"}, ids(Filter(data, "co")))
}

func TestFilterEmptyTermIsIdentity(t *testing.T) {
	data := sample()
	assert.Equal(t, data, Filter(data, ""))
}

func TestFilterCaseInsensitiveAndOrdered(t *testing.T) {
	tests := []struct {
		term string
		want []ID
	}{
		{"coffee", []ID{"1", "3"}},
		{"COF", []ID{"1", "3"}},
		{"ch", []ID{"4"}},
		{"e", []ID{"1", "2", "3", "4"}},
		{"zzz", []ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(sample(), tt.term)))
		})
	}
}

func TestFilterMatchesExactlyTheSubstringSet(t *testing.T) {
	data := sample()
	for _, term := range []string{"o", "Co", "rent", " ", "to go"} {
		got := Filter(data, term)
		var want []ID
		for _, tx := range data {
			if strings.Contains(strings.ToLower(tx.Description), strings.ToLower(term)) {
				want = append(want, tx.ID)
			}
		}
		if want == nil {
			want = []ID{}
		}
		assert.Equal(t, want, ids(got), "term %q", term)
	}
}

func TestFilterDoesNotAliasInput(t *testing.T) {
	data := sample()
	got := Filter(data, "")
	require.Len(t, got, len(data))
	got[0].Description = "changed"
	assert.Equal(t, "Coffee", data[0].Description)
}

func TestWithout(t *testing.T) {
	data := sample()
	got := Without(data, "2")
	assert.Equal(t, []ID{"1", "3", "4"}, ids(got))
	assert.False(t, Contains(got, "2"))
	assert.True(t, Contains(data, "2"))
	assert.Equal(t, []ID{"1", "2", "3", "4"}, ids(Without(data, "99")))
}
