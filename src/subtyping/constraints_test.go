package subtyping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/steep/src/types"
)

func TestConstraintsAdd(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T")
	require.NoError(t, st.Add("T", types.IntType, nil))
	require.NoError(t, st.Add("T", nil, types.NumericType))
	assert.True(t, types.Equal(types.IntType, st.Lower("T")))
	assert.True(t, types.Equal(types.NumericType, st.Upper("T")))
	assert.False(t, st.Empty())

	require.NoError(t, st.Add("T", types.FloatType, nil))
	assert.True(t, types.Equal(types.NewUnion(types.IntType, types.FloatType), st.Lower("T")))
}

func TestConstraintsTrivialBoundsDropped(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T")
	require.NoError(t, st.Add("T", types.Bot, types.Top))
	assert.True(t, st.Empty())
	assert.True(t, types.Equal(types.Bot, st.Lower("T")))
	assert.True(t, types.Equal(types.Top, st.Upper("T")))
}

func TestConstraintsElimination(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T", "U")

	// a bare unknown collapses to the trivial bound and is dropped
	require.NoError(t, st.Add("T", &types.Var{Name: "U"}, nil))
	require.NoError(t, st.Add("T", nil, &types.Var{Name: "U"}))
	assert.True(t, st.Empty())

	// unknowns nested under a proc are replaced by polarity, the bound survives
	require.NoError(t, st.Add("T", nil, &types.Proc{
		Params: []types.Type{&types.Var{Name: "U"}},
		Return: types.IntType,
	}))
	assert.True(t, types.Equal(&types.Proc{
		Params: []types.Type{types.Bot},
		Return: types.IntType,
	}, st.Upper("T")))
}

func TestConstraintsRigidElimination(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T")
	require.NoError(t, st.AddVar("A"))
	require.NoError(t, st.Add("T", nil, &types.Nominal{
		Kind: types.Instance,
		Name: "Array",
		Args: []types.Type{&types.Var{Name: "A"}},
	}))
	assert.True(t, types.Equal(&types.Nominal{
		Kind: types.Instance,
		Name: "Array",
		Args: []types.Type{types.Any},
	}, st.Upper("T")))
}

func TestConstraintsLogicCoercion(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T")
	require.NoError(t, st.Add("T", &types.Logic{Kind: types.Truthy}, nil))
	assert.True(t, types.Equal(types.BoolType, st.Lower("T")))
}

func TestConstraintsInvariants(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T")
	assert.Error(t, st.AddVar("T"))
	assert.Error(t, st.Add("U", types.IntType, nil))

	var violation *InvariantViolation
	assert.ErrorAs(t, st.Add("U", types.IntType, nil), &violation)
}

func TestConstraintsBoundMonotonicity(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T", "U")
	require.NoError(t, st.AddVar("A"))
	require.NoError(t, st.Add("T", &types.Proc{
		Params: []types.Type{&types.Var{Name: "U"}},
		Return: &types.Var{Name: "A"},
	}, &types.Nominal{
		Kind: types.Instance,
		Name: "Array",
		Args: []types.Type{&types.Var{Name: "U"}},
	}))

	st.Each(func(v string, lower, upper types.Type) {
		for _, bound := range []types.Type{lower, upper} {
			for _, name := range types.FreeVars(bound) {
				assert.False(t, st.IsUnknown(name), "unknown %v left free in bound of %v", name, v)
			}
		}
	})
}

func TestConstraintsString(t *testing.T) {
	t.Parallel()
	st := NewConstraints("T")
	require.NoError(t, st.Add("T", types.IntType, types.NumericType))
	assert.Equal(t, "{Int <: T <: Numeric}", st.String())
}
