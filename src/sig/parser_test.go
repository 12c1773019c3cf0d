package sig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/steep/src/serrors"
	"github.com/tanema/steep/src/types"
)

func TestParseType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		src      string
		expected types.Type
	}{
		{"top", types.Top},
		{"bot", types.Bot},
		{"any", types.Any},
		{"self", &types.Var{Name: "self"}},
		{"Int", types.IntType},
		{"elem", &types.Var{Name: "elem"}},
		{"singleton(Int)", &types.Nominal{Kind: types.Class, Name: "Int"}},
		{"_Each[Int]", &types.Nominal{Kind: types.Interface, Name: "Each", Args: []types.Type{types.IntType}}},
		{"Array[Int]", &types.Nominal{Kind: types.Instance, Name: "Array", Args: []types.Type{types.IntType}}},
		{"Hash[String, Int]", &types.Nominal{Kind: types.Instance, Name: "Hash", Args: []types.Type{types.StringType, types.IntType}}},
		{"Int | String", types.NewUnion(types.IntType, types.StringType)},
		{"Int & String", types.NewIntersection(types.IntType, types.StringType)},
		{"Int | String & Bool", types.NewUnion(types.IntType, types.NewIntersection(types.StringType, types.BoolType))},
		{"Int?", types.NewUnion(types.IntType, types.NilType)},
		{"[Int, String]", &types.Tuple{Elems: []types.Type{types.IntType, types.StringType}}},
		{"{id: Int, name: String}", &types.Record{Fields: map[string]types.Type{"id": types.IntType, "name": types.StringType}}},
		{"() -> Int", &types.Proc{Return: types.IntType}},
		{"(Int, String) -> Bool", &types.Proc{Params: []types.Type{types.IntType, types.StringType}, Return: types.BoolType}},
		{"(Int, limit: Int) -> Bool", &types.Proc{Params: []types.Type{types.IntType}, Keywords: map[string]types.Type{"limit": types.IntType}, Return: types.BoolType}},
		{"((Int) -> String) -> Bool", &types.Proc{Params: []types.Type{&types.Proc{Params: []types.Type{types.IntType}, Return: types.StringType}}, Return: types.BoolType}},
	}
	for i, tc := range cases {
		parsed, err := ParseType(tc.src)
		require.NoError(t, err, "[%v] %v", i, tc.src)
		assert.True(t, types.Equal(tc.expected, parsed), "[%v] %v parsed to %v", i, tc.src, parsed)
	}
}

func TestParseTypeErrors(t *testing.T) {
	t.Parallel()
	cases := []string{
		"",
		"Int |",
		"[Int",
		"{id}",
		"(Int -> Bool",
		"Int extra",
		"-",
	}
	for i, src := range cases {
		_, err := ParseType(src)
		assert.Error(t, err, "[%v] %v", i, src)
	}
}

func TestParseClass(t *testing.T) {
	t.Parallel()
	src := `
# user account signatures
class User < Object
  def name: () -> String
  def eq: (User) -> Bool
end

class List[out Element]
  include Each
  def first: () -> Element?
  def map: [Out] ((Element) -> Out) -> List[Out]
end

interface Each
  def each: (() -> any) -> self
end

alias UserId = Int | String
`
	file, err := Parse("test.sig", strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, file.Decls, 4)

	user, isClass := file.Decls[0].(*ClassDecl)
	require.True(t, isClass)
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, types.Instance, user.Kind)
	require.NotNil(t, user.Super)
	assert.Equal(t, "Object", user.Super.Name)
	require.Len(t, user.Methods, 2)
	assert.Equal(t, "name", user.Methods[0].Name)
	assert.Equal(t, "() -> String", user.Methods[0].Type.String())

	list, isClass := file.Decls[1].(*ClassDecl)
	require.True(t, isClass)
	require.Len(t, list.TypeParams, 1)
	assert.Equal(t, TypeParam{Name: "Element", Variance: types.Covariant}, list.TypeParams[0])
	require.Len(t, list.Includes, 1)
	assert.Equal(t, "Each", list.Includes[0].Name)
	require.Len(t, list.Methods, 2)
	assert.Equal(t, []string{"Out"}, list.Methods[1].TypeParams)
	assert.Greater(t, list.EndLine, list.Line)

	each, isClass := file.Decls[2].(*ClassDecl)
	require.True(t, isClass)
	assert.Equal(t, types.Interface, each.Kind)

	alias, isAlias := file.Decls[3].(*AliasDecl)
	require.True(t, isAlias)
	assert.Equal(t, "UserId", alias.Name)
	assert.True(t, types.Equal(types.NewUnion(types.IntType, types.StringType), alias.Target))
}

func TestParseRecordsRefs(t *testing.T) {
	t.Parallel()
	file, err := Parse("test.sig", strings.NewReader("alias Pair = Hash[String, Int]\n"))
	require.NoError(t, err)
	names := []string{}
	for _, ref := range file.Refs {
		names = append(names, ref.Name)
	}
	assert.Equal(t, []string{"Hash", "String", "Int"}, names)
}

func TestParseErrPositions(t *testing.T) {
	t.Parallel()
	_, err := Parse("broken.sig", strings.NewReader("class User\n  def name ()\nend\n"))
	var serr *serrors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, serrors.SignatureErr, serr.Kind)
	assert.Equal(t, "broken.sig", serr.Path)
	assert.Equal(t, 2, serr.Line)
}
