// Package console is an interactive loop for exploring the subtyping relation:
// it reads queries of the form `A <: B` against the loaded signature
// environment and prints the verdict; a failed query also prints the trace of
// relations that were being checked.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/tanema/steep/src/sig"
	"github.com/tanema/steep/src/subtyping"
)

// Run starts the console over the given environment until EOF or interrupt.
func Run(env *sig.Env) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	checker := subtyping.New(env.Registry())
	fmt.Fprint(os.Stderr, "Enter `Sub <: Sup` queries. Press ctrl-c to quit.\n")
	for {
		src, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		if err := query(checker, src); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func query(checker *subtyping.Checker, src string) error {
	parts := strings.SplitN(src, "<:", 2)
	if len(parts) != 2 {
		return errors.New("expected a query of the form `Sub <: Sup`")
	}
	sub, err := sig.ParseType(strings.TrimSpace(parts[0]))
	if err != nil {
		return err
	}
	sup, err := sig.ParseType(strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}

	result, err := checker.Check(subtyping.Relation{Sub: sub, Sup: sup}, subtyping.Context{}, nil)
	if err != nil {
		return err
	}
	if result.Success() {
		fmt.Fprintf(os.Stderr, "✓ %v <: %v\n", sub, sup)
		return nil
	}
	fmt.Fprintf(os.Stderr, "✗ %v\n", result.Message())
	for _, rel := range result.Trace {
		fmt.Fprintf(os.Stderr, "  while checking %v\n", rel)
	}
	return nil
}
