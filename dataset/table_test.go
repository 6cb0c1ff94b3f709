package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/opdss/tablib/iterator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIterator struct{}

func (failingIterator) Next() bool {
	return false
}

func (failingIterator) Value() any {
	return nil
}

func (failingIterator) Err() error {
	return errors.New("broken")
}

func TestNewSpec(t *testing.T) {
	_, err := NewSpec(Column{Header: "", Source: Stored("a")})
	assert.ErrorIs(t, err, ErrEmptyHeader)

	_, err = NewSpec(Column{Header: "a"})
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewSpec(Column{Header: "a", Source: Stored("a")}, Column{Header: "a", Source: Stored("b")})
	assert.ErrorIs(t, err, ErrDuplicateHeader)

	//属性可以重复
	spec, err := NewSpec(Column{Header: "a", Source: Stored("x")}, Column{Header: "b", Source: Stored("x")})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x"}, spec.Attributes())
	c, ok := spec.Column("b")
	assert.True(t, ok)
	assert.Equal(t, "x", c.Attribute())
}

func TestBuildZeroRecords(t *testing.T) {
	spec, err := StoredSpec("id", "field1")
	require.NoError(t, err)
	tab, err := Build(context.Background(), iterator.NewSliceIterator[any](nil), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "field1"}, tab.Headers())
	assert.Empty(t, tab.Rows())
}

func TestBuildIteratorError(t *testing.T) {
	spec, err := StoredSpec("id")
	require.NoError(t, err)
	_, err = Build(context.Background(), failingIterator{}, spec)
	assert.True(t, ErrDataset.Has(err))
}

func TestBuildMaxRows(t *testing.T) {
	spec, err := StoredSpec("id")
	require.NoError(t, err)
	records := iterator.NewSliceIterator([]any{&simpleRecord{ID: 1}, &simpleRecord{ID: 2}})
	_, err = Build(context.Background(), records, spec, WithMaxRows(1))
	assert.ErrorIs(t, err, ErrMaximumLimit)
}

func TestTableAppend(t *testing.T) {
	spec, err := NewSpec(
		Column{Header: "id", Source: Stored("id"), Width: 10},
		Column{Header: "double", Source: Computed(func(record any) any {
			return record.(*simpleRecord).ID * 2
		})},
	)
	require.NoError(t, err)
	tab := NewTable(spec, WithTitle("t"))
	require.NoError(t, tab.Append(&simpleRecord{ID: 4}))
	require.NoError(t, tab.AppendRow("x", "y"))
	err = tab.AppendRow("only")
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	assert.Equal(t, [][]string{{"4", "8"}, {"x", "y"}}, tab.Rows())
	assert.Equal(t, "t", tab.Title())
	assert.Equal(t, 10.0, tab.Layouts()[0].Width)

	err = tab.Append(map[string]any{})
	assert.True(t, ErrAttribute.Has(err))
	assert.Equal(t, 2, tab.Len())
}
