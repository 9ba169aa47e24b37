package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeKey_Equality(t *testing.T) {
	a := NewScopeKey("svc", map[string]string{"a": "1", "b": "2"})
	b := NewScopeKey("svc", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
	assert.True(t, a == b)

	m := map[ScopeKey]int{a: 1}
	assert.Equal(t, 1, m[b])

	assert.NotEqual(t, a, NewScopeKey("svc", map[string]string{"a": "1"}))
	assert.NotEqual(t, a, NewScopeKey("other", map[string]string{"a": "1", "b": "2"}))
	assert.Equal(t, NewScopeKey("svc", nil), NewScopeKey("svc", map[string]string{}))
}

func TestScopeKey_NoSeparatorCollisions(t *testing.T) {
	tests := []struct {
		a, b map[string]string
	}{
		{map[string]string{"a": "1,b=2"}, map[string]string{"a": "1", "b": "2"}},
		{map[string]string{"a=1": ""}, map[string]string{"a": "=1"}},
		{map[string]string{"1:a": "b"}, map[string]string{"1": "a:b"}},
	}

	for _, tt := range tests {
		assert.NotEqual(t, NewScopeKey("p", tt.a), NewScopeKey("p", tt.b), "%v vs %v", tt.a, tt.b)
	}
}

func TestScopeKey_String(t *testing.T) {
	assert.Equal(t, "svc", NewScopeKey("svc", nil).String())
	assert.Equal(t, "svc+a=1,b=2", NewScopeKey("svc", map[string]string{"b": "2", "a": "1"}).String())
	assert.Equal(t, "svc+k=v:1", NewScopeKey("svc", map[string]string{"k": "v:1"}).String())
	assert.Equal(t, "svc", NewScopeKey("svc", nil).Prefix())
}

func TestMergeTags(t *testing.T) {
	base := map[string]string{"env": "prod", "region": "eu"}
	merged := mergeTags(base, map[string]string{"region": "us", "host": "a"})

	assert.Equal(t, map[string]string{"env": "prod", "region": "us", "host": "a"}, merged)
	assert.Equal(t, "eu", base["region"], "base must not be modified")

	assert.Empty(t, mergeTags(nil, nil))
}

func TestCopyTags(t *testing.T) {
	out := copyTags(nil)
	out["k"] = "v"
	assert.Empty(t, emptyTags)
}
