package subtyping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/steep/src/types"
)

func TestSolveDetermined(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())

	// only a lower bound: bind to it
	st := NewConstraints("T")
	require.NoError(t, st.Add("T", types.IntType, nil))
	subst, err := Solve(st, checker, Context{Variance: types.Covariant})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.IntType, subst["T"]))

	// only an upper bound: bind to it
	st = NewConstraints("T")
	require.NoError(t, st.Add("T", nil, types.NumericType))
	subst, err = Solve(st, checker, Context{})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.NumericType, subst["T"]))
}

func TestSolveFreeDefaultsToAny(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())
	st := NewConstraints("T", "U")
	require.NoError(t, st.Add("T", types.IntType, nil))
	subst, err := Solve(st, checker, Context{})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.IntType, subst["T"]))
	assert.True(t, types.Equal(types.Any, subst["U"]))
}

func TestSolveInvariantTiebreak(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())
	st := NewConstraints("T")
	require.NoError(t, st.Add("T", types.IntType, types.NumericType))

	// both bounds have level 1, the tie prefers the lower bound
	subst, err := Solve(st, checker, Context{Variance: types.Invariant})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.IntType, subst["T"]))
}

func TestSolveDoubleEndedByVariance(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())
	cases := []struct {
		variance types.Variance
		expected types.Type
	}{
		{types.Covariant, types.IntType},
		{types.Contravariant, types.NumericType},
		{types.Invariant, types.IntType},
	}
	for i, tc := range cases {
		st := NewConstraints("T")
		require.NoError(t, st.Add("T", types.IntType, types.NumericType))
		subst, err := Solve(st, checker, Context{Variance: tc.variance})
		require.NoError(t, err)
		assert.True(t, types.Equal(tc.expected, subst["T"]), "[%v] expected %v got %v", i, tc.expected, subst["T"])
	}
}

func TestSolveInvariantLevelTiebreak(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())
	st := NewConstraints("T")
	lower := &types.Nominal{Kind: types.Instance, Name: "Array", Args: []types.Type{types.IntType}}
	require.NoError(t, st.Add("T", lower, types.ObjectType))

	// level(Object) = 1 < level(Array[Int]) = 2, the upper bound wins
	subst, err := Solve(st, checker, Context{Variance: types.Invariant})
	require.NoError(t, err)
	assert.True(t, types.Equal(types.ObjectType, subst["T"]))
}

func TestSolveUnsatisfiable(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())
	st := NewConstraints("T")
	require.NoError(t, st.Add("T", types.StringType, types.IntType))

	_, err := Solve(st, checker, Context{})
	var unsat *Unsatisfiable
	require.ErrorAs(t, err, &unsat)
	assert.Equal(t, "T", unsat.Var)
	assert.True(t, types.Equal(types.StringType, unsat.Lower))
	assert.True(t, types.Equal(types.IntType, unsat.Upper))
}

func TestSolveIdempotence(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())
	st := NewConstraints("T", "U", "V")
	require.NoError(t, st.Add("T", types.IntType, types.NumericType))
	require.NoError(t, st.Add("U", &types.Nominal{Kind: types.Instance, Name: "Array", Args: []types.Type{types.StringType}}, nil))

	subst, err := Solve(st, checker, Context{Variance: types.Covariant})
	require.NoError(t, err)

	target := &types.Proc{
		Params: []types.Type{&types.Var{Name: "T"}, &types.Var{Name: "V"}},
		Return: &types.Var{Name: "U"},
	}
	once := subst.Apply(target)
	twice := subst.Apply(once)
	assert.True(t, types.Equal(once, twice), "expected %v but got %v", once, twice)
}

func TestSolveSoundness(t *testing.T) {
	t.Parallel()
	checker := New(types.NewRegistry())
	st := NewConstraints("T", "U")
	require.NoError(t, st.Add("T", types.IntType, types.NumericType))
	require.NoError(t, st.Add("U", nil, types.StringType))

	subst, err := Solve(st, checker, Context{Variance: types.Covariant})
	require.NoError(t, err)

	st.Each(func(v string, lower, upper types.Type) {
		bound := subst.Apply(&types.Var{Name: v})
		result, err := checker.Check(Relation{Sub: subst.Apply(lower), Sup: bound}, Context{}, nil)
		require.NoError(t, err)
		assert.True(t, result.Success(), "lower bound of %v does not hold", v)
		result, err = checker.Check(Relation{Sub: bound, Sup: subst.Apply(upper)}, Context{}, nil)
		require.NoError(t, err)
		assert.True(t, result.Success(), "upper bound of %v does not hold", v)
	})
}
