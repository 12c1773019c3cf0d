package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUnion(t *testing.T) {
	t.Parallel()
	cases := []struct {
		elems    []Type
		expected Type
	}{
		{[]Type{}, Bot},
		{[]Type{IntType}, IntType},
		{[]Type{IntType, IntType}, IntType},
		{[]Type{IntType, FloatType}, &Union{Elems: []Type{IntType, FloatType}}},
		{[]Type{NewUnion(IntType, FloatType), StringType}, &Union{Elems: []Type{IntType, FloatType, StringType}}},
		{[]Type{NewUnion(IntType, FloatType), FloatType}, &Union{Elems: []Type{IntType, FloatType}}},
	}
	for i, tc := range cases {
		assert.True(t, Equal(tc.expected, NewUnion(tc.elems...)), "[%v] expected %v", i, tc.expected)
	}
}

func TestNewIntersection(t *testing.T) {
	t.Parallel()
	cases := []struct {
		elems    []Type
		expected Type
	}{
		{[]Type{}, Top},
		{[]Type{IntType}, IntType},
		{[]Type{IntType, StringType}, &Intersection{Elems: []Type{IntType, StringType}}},
		{[]Type{NewIntersection(IntType, StringType), IntType}, &Intersection{Elems: []Type{IntType, StringType}}},
	}
	for i, tc := range cases {
		assert.True(t, Equal(tc.expected, NewIntersection(tc.elems...)), "[%v] expected %v", i, tc.expected)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()
	cases := []struct {
		a, b  Type
		equal bool
	}{
		{Top, Top, true},
		{Bot, Bot, true},
		{Any, Any, true},
		{Top, Bot, false},
		{IntType, IntType, true},
		{IntType, FloatType, false},
		{IntType, &Nominal{Kind: Class, Name: "Int"}, false},
		{&Var{Name: "T"}, &Var{Name: "T"}, true},
		{&Var{Name: "T"}, &Var{Name: "U"}, false},
		{NewUnion(IntType, StringType), NewUnion(StringType, IntType), true},
		{NewUnion(IntType, StringType), NewUnion(StringType, FloatType), false},
		{NewIntersection(IntType, StringType), NewIntersection(StringType, IntType), true},
		{&Tuple{Elems: []Type{IntType, StringType}}, &Tuple{Elems: []Type{IntType, StringType}}, true},
		{&Tuple{Elems: []Type{IntType, StringType}}, &Tuple{Elems: []Type{StringType, IntType}}, false},
		{&Record{Fields: map[string]Type{"id": IntType}}, &Record{Fields: map[string]Type{"id": IntType}}, true},
		{&Record{Fields: map[string]Type{"id": IntType}}, &Record{Fields: map[string]Type{"name": IntType}}, false},
		{
			&Proc{Params: []Type{IntType}, Return: StringType},
			&Proc{Params: []Type{IntType}, Return: StringType},
			true,
		},
		{
			&Proc{Params: []Type{IntType}, Return: StringType},
			&Proc{Params: []Type{IntType}, Return: BoolType},
			false,
		},
		{
			&Proc{Keywords: map[string]Type{"limit": IntType}, Return: StringType},
			&Proc{Keywords: map[string]Type{"limit": IntType}, Return: StringType},
			true,
		},
		{&Logic{Kind: Truthy}, &Logic{Kind: Truthy}, true},
		{&Logic{Kind: Truthy}, &Logic{Kind: Falsy}, false},
	}
	for i, tc := range cases {
		assert.Equal(t, tc.equal, Equal(tc.a, tc.b), "[%v] %v == %v", i, tc.a, tc.b)
	}
}

func TestString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		t        Type
		expected string
	}{
		{Top, "top"},
		{Bot, "bot"},
		{Any, "any"},
		{&Var{Name: "Elem"}, "Elem"},
		{IntType, "Int"},
		{&Nominal{Kind: Class, Name: "Int"}, "singleton(Int)"},
		{&Nominal{Kind: Interface, Name: "Each", Args: []Type{IntType}}, "_Each[Int]"},
		{NewUnion(IntType, FloatType), "(Int | Float)"},
		{NewIntersection(IntType, StringType), "(Int & String)"},
		{&Tuple{Elems: []Type{IntType, StringType}}, "[Int, String]"},
		{&Record{Fields: map[string]Type{"name": StringType, "id": IntType}}, "{id: Int, name: String}"},
		{&Proc{Params: []Type{IntType}, Keywords: map[string]Type{"limit": IntType}, Return: StringType}, "(Int, limit: Int) -> String"},
		{&Logic{Kind: Falsy}, "logic(falsy)"},
	}
	for i, tc := range cases {
		assert.Equal(t, tc.expected, tc.t.String(), "[%v]", i)
	}
}

func TestFreeVars(t *testing.T) {
	t.Parallel()
	cases := []struct {
		t        Type
		expected []string
	}{
		{IntType, []string{}},
		{&Var{Name: "T"}, []string{"T"}},
		{&Nominal{Kind: Instance, Name: "Array", Args: []Type{&Var{Name: "T"}}}, []string{"T"}},
		{NewUnion(&Var{Name: "B"}, &Var{Name: "A"}), []string{"A", "B"}},
		{
			&Proc{
				Params:   []Type{&Var{Name: "In"}},
				Keywords: map[string]Type{"limit": &Var{Name: "K"}},
				Return:   &Var{Name: "Out"},
			},
			[]string{"In", "K", "Out"},
		},
		{&Record{Fields: map[string]Type{"id": &Var{Name: "T"}}}, []string{"T"}},
	}
	for i, tc := range cases {
		assert.Equal(t, tc.expected, FreeVars(tc.t), "[%v] %v", i, tc.t)
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		t        Type
		expected int
	}{
		{IntType, 1},
		{Top, 1},
		{&Nominal{Kind: Instance, Name: "Array", Args: []Type{IntType}}, 2},
		{NewUnion(IntType, FloatType), 3},
		{&Proc{Params: []Type{IntType}, Return: StringType}, 3},
		{&Tuple{Elems: []Type{IntType, &Nominal{Kind: Instance, Name: "Array", Args: []Type{IntType}}}}, 4},
	}
	for i, tc := range cases {
		assert.Equal(t, tc.expected, Level(tc.t), "[%v] %v", i, tc.t)
	}
}
