package steep

import (
	"github.com/tanema/steep/src/lsp"
	"github.com/tanema/steep/src/sig"
	"github.com/tanema/steep/src/subtyping"
)

// Check loads the given signature files into a fresh environment and returns
// the validation diagnostics grouped by path.
func Check(paths ...string) map[string][]lsp.Diagnostic {
	return sig.NewEnv().Load(paths...)
}

// Subtype parses two type expressions and reports whether the first is a
// subtype of the second under the builtin registry.
func Subtype(sub, sup string) (bool, error) {
	subT, err := sig.ParseType(sub)
	if err != nil {
		return false, err
	}
	supT, err := sig.ParseType(sup)
	if err != nil {
		return false, err
	}
	env := sig.NewEnv()
	result, err := subtyping.New(env.Registry()).Check(
		subtyping.Relation{Sub: subT, Sup: supT},
		subtyping.Context{},
		nil,
	)
	if err != nil {
		return false, err
	}
	return result.Success(), nil
}
