package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plain struct {
	Name  string
	inner string
}

func (p plain) Greeting() string { return "hi " + p.Name }

type stringMap map[string]int

type attrs map[string]any

func (a attrs) Attr(name string) (any, bool) {
	v, ok := a["x_"+name]
	return v, ok
}

func TestLookup(t *testing.T) {
	s := &Status{ID: 3, Name: "n"}

	v, err := Lookup(s, "id")
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)

	v, err = Lookup(s, "Name")
	require.NoError(t, err)
	assert.Equal(t, "n", v)

	v, err = Lookup(s, "label")
	require.NoError(t, err)
	fn, ok := v.(func() string)
	require.True(t, ok)
	assert.Equal(t, "#n", fn())

	v, err = Lookup(plain{Name: "bob"}, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", DefaultNormalizer.Normalize(v))

	_, err = Lookup(plain{inner: "x"}, "inner")
	assert.True(t, ErrAttribute.Has(err))

	v, err = Lookup(stringMap{"a": 1}, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = Lookup(attrs{"x_a": 2}, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = Lookup(nil, "a")
	assert.True(t, ErrAttribute.Has(err))
}

func TestLookupAnnotated(t *testing.T) {
	a := &Annotated{Record: &simpleRecord{ID: 1, Field1: "f"}, Extra: map[string]any{"total": 5}}

	v, err := Lookup(a, "total")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = Lookup(a, "field1")
	require.NoError(t, err)
	assert.Equal(t, "f", v)

	_, err = Lookup(a, "nope")
	assert.True(t, ErrAttribute.Has(err))
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "UserName", camelCase("user_name"))
	assert.Equal(t, "Id", camelCase("id"))
	assert.Equal(t, "", camelCase("_"))
}
