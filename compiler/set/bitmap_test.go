package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmap(t *testing.T) {
	s := NewBitmap(0)

	s.Set(3)
	s.Set(64)
	s.Set(130)

	assert.True(t, s.IsSet(64))
	assert.False(t, s.IsSet(65))
	assert.False(t, s.IsSet(1000))
	assert.Equal(t, []int{3, 64, 130}, s.Ones())
	assert.Equal(t, 3, s.First())

	c := s.Copy()
	c.Set(5)
	assert.False(t, s.IsSet(5), "copy is independent")

	x := NewBitmap(256)
	x.Set(200)
	x.Or(s)
	assert.Equal(t, []int{3, 64, 130, 200}, x.Ones())

	x.AndNot(c)
	assert.Equal(t, []int{200}, x.Ones())

	assert.False(t, x.Equal(s))

	y := NewBitmap(512)
	y.Set(200)
	assert.True(t, x.Equal(y), "trailing zero words")
	assert.Equal(t, 1, y.Size())

	assert.Equal(t, -1, NewBitmap(64).First())
}
