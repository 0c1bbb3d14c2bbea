package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCapsLimit(t *testing.T) {
	p := Pagination{Page: 0, Limit: 500}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 20, Pagination{Page: 3, Limit: 10}.Offset())
}

func TestNormalizeCapsPage(t *testing.T) {
	p := Pagination{Page: math.MaxInt, Limit: MaxLimit}.Normalize()
	assert.Equal(t, MaxPage, p.Page)

	offset := Pagination{Page: math.MaxInt, Limit: math.MaxInt}.Offset()
	assert.Equal(t, (MaxPage-1)*MaxLimit, offset)
	assert.Greater(t, offset, 0)
	assert.LessOrEqual(t, offset, math.MaxInt32)
}

func TestBuildPage(t *testing.T) {
	page := BuildPage([]int{1, 2, 3}, Pagination{Page: 1, Limit: 2})
	assert.True(t, page.HasNextPage)
	assert.Equal(t, []int{1, 2}, page.Data)

	empty := BuildPage[int](nil, Pagination{})
	assert.False(t, empty.HasNextPage)
	assert.NotNil(t, empty.Data)
}
