package http

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindSelection(t *testing.T) {
	q, err := url.ParseQuery("key=+2330+&in.name=TSMC,,Foxconn&in.id=2330&min=1.5&interval=1 week")
	require.NoError(t, err)

	sel, err := bindSelection(q)
	require.NoError(t, err)

	assert.Equal(t, "2330", sel.Key)
	assert.Equal(t, map[string][]string{"name": {"TSMC", "Foxconn"}, "id": {"2330"}}, sel.Members)
	require.NotNil(t, sel.Min)
	assert.Equal(t, 1.5, *sel.Min)
	assert.Nil(t, sel.Max)
	assert.Equal(t, "1 week", sel.Interval)

	req := sel.Request()
	assert.Equal(t, "1 week", req.Params.Interval)
	assert.Equal(t, sel.Min, req.Override.Min)
}

func TestBindSelection_Empty(t *testing.T) {
	sel, err := bindSelection(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, sel.Members)
	assert.True(t, sel.Request().Override.IsZero())
	assert.True(t, sel.Request().Params.IsZero())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", " ,c,"}))
	assert.Nil(t, splitList([]string{"", " , "}))
}
