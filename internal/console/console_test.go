package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

func TestParsePage(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 1, Limit: defaultLimit}, ParsePage("", ""))
	assert.Equal(t, PageRequest{Page: 1, Limit: defaultLimit}, ParsePage("-3", "zero"))
	assert.Equal(t, PageRequest{Page: 4, Limit: maxLimit}, ParsePage("4", "100000"))

	huge := ParsePage("9223372036854775807", "2")
	assert.GreaterOrEqual(t, huge.Offset(), 0)
	assert.False(t, huge.HasNext(10))

	p := PageRequest{Page: 2, Limit: 10}
	assert.Equal(t, 10, p.Offset())
	assert.Equal(t, 3, p.TotalPages(21))
	assert.True(t, p.HasNext(21))
	assert.False(t, p.HasNext(20))
	assert.True(t, p.HasPrevious())
	assert.Equal(t, 0, p.TotalPages(0))
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, window(items, PageRequest{Page: 2, Limit: 2}))
	assert.Equal(t, []int{5}, window(items, PageRequest{Page: 3, Limit: 2}))
	assert.Equal(t, []int{}, window(items, PageRequest{Page: 9, Limit: 2}))
	assert.Equal(t, []int{}, window(items, ParsePage("9223372036854775807", "2")))
	assert.Equal(t, []int{}, window(items, PageRequest{Page: 0, Limit: 2}))
}

func TestSplitPath(t *testing.T) {
	segs, err := SplitPath("/users/u1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "u1"}, segs)
	assert.True(t, IsDocumentPath(segs))

	segs, err = SplitPath("users/u1/orders")
	require.NoError(t, err)
	assert.False(t, IsDocumentPath(segs))

	segs, err = SplitPath("  ")
	require.NoError(t, err)
	assert.Empty(t, segs)

	_, err = SplitPath("users//u1")
	assert.True(t, apperrors.IsPrecondition(err))
}

func TestCleanObjectPath(t *testing.T) {
	cases := map[string]string{
		"/images/a.png":  "images/a.png",
		"images/./a.png": "images/a.png",
		"":               "",
		"/":              "",
	}
	for in, want := range cases {
		got, err := CleanObjectPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := CleanObjectPath("images/../../etc/passwd")
	assert.True(t, apperrors.IsPrecondition(err))

	prefix, err := FolderPrefix("images/")
	require.NoError(t, err)
	assert.Equal(t, "images/", prefix)
	prefix, err = FolderPrefix("")
	require.NoError(t, err)
	assert.Equal(t, "", prefix)
}

func TestParseRulesService(t *testing.T) {
	s, err := ParseRulesService("storage")
	require.NoError(t, err)
	assert.Equal(t, "storage.rules", s.FileName())

	_, err = ParseRulesService("")
	assert.True(t, apperrors.IsPrecondition(err))
	_, err = ParseRulesService("database")
	assert.True(t, apperrors.IsPrecondition(err))
}
