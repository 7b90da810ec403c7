package intset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIgnoresJunk(t *testing.T) {
	s := Parse(" 5, 7,,abc,9,7 ")
	assert.Equal(t, []int{5, 7, 9}, s.Slice())
	assert.Equal(t, "5,7,9", s.String())
	assert.Equal(t, 0, Parse("").Len())
}

func TestMembershipIsExact(t *testing.T) {
	// "17" 不能被当作包含 1 或 7
	s := Parse("17,23")
	assert.False(t, s.Has(1))
	assert.False(t, s.Has(7))
	assert.True(t, s.Has(17))
}

func TestSetAlgebra(t *testing.T) {
	a := New(1, 2, 3)
	b := New(3, 4)

	assert.Equal(t, "1,2,3,4", a.Union(b).String())
	assert.Equal(t, "1,2", a.Difference(b).String())
	assert.Equal(t, "3", a.Intersect(b).String())
	assert.True(t, a.HasAny(b))
	assert.False(t, New(9).HasAny(a))
	assert.True(t, New(2, 1).Equal(New(1, 2)))

	a.Remove(1, 42)
	a.Add(8)
	assert.Equal(t, "2,3,8", a.String())
}

func TestScanValue(t *testing.T) {
	var s Set
	require.NoError(t, s.Scan([]byte("9,5")))
	assert.Equal(t, "5,9", s.String())

	require.NoError(t, s.Scan(nil))
	assert.Equal(t, 0, s.Len())

	v, err := New(3, 1).Value()
	require.NoError(t, err)
	assert.Equal(t, "1,3", v)

	assert.Error(t, s.Scan(42))
}
