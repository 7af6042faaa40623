package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginate_Defaults(t *testing.T) {
	p := NewPaginate(0, -5)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = NewPaginate(5000, 10)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 10, p.Offset)

	p = NewPaginate(20, 40)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset)
}

func TestNewPaginatedResult(t *testing.T) {
	result := NewPaginatedResult([]string{"a", "b"}, 45, NewPaginate(20, 20))

	assert.Equal(t, int64(45), result.Total)
	assert.Equal(t, 3, result.TotalPages)
	assert.True(t, result.HasNext)
	assert.True(t, result.HasPrev)

	last := NewPaginatedResult(nil, 45, NewPaginate(20, 40))
	assert.False(t, last.HasNext)
}

func TestMaskDSN(t *testing.T) {
	masked := MaskDSN("postgres://app:s3cret@db:5432/fraudcase?sslmode=disable")
	assert.NotContains(t, masked, "s3cret")
	assert.Contains(t, masked, "app:")
	assert.Contains(t, masked, "db:5432/fraudcase")

	assert.Equal(t, "host=db user=app", MaskDSN("host=db user=app"))
}
