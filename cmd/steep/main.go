// Package main is the main entrypoint to the steep application.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tanema/steep/src/conf"
	"github.com/tanema/steep/src/console"
	"github.com/tanema/steep/src/expectations"
	"github.com/tanema/steep/src/lsp"
	"github.com/tanema/steep/src/server"
	"github.com/tanema/steep/src/sig"
)

var steepfile string

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(conf.EXITOK)
	}
	switch args[0] {
	case "langserver":
		runLangserver(args[1:])
	case "worker":
		runWorker(args[1:])
	case "check":
		runCheck(args[1:])
	case "console":
		runConsole(args[1:])
	case "version", "-v", "--version":
		fmt.Fprintf(os.Stderr, "%v\n", conf.FullVersion())
	default:
		printUsage()
		os.Exit(conf.EXITDIAGNOSTICS)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "%v\n", conf.FullVersion())
	fmt.Fprint(os.Stderr, `
Usage: steep <command> [options]

Commands:
  langserver   start the LSP master on stdin/stdout
  check        check signature files and report diagnostics
  console      interactive subtyping queries
  worker       internal: run a worker process
  version      print the version
`)
}

func checkErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(conf.EXITWORKERERR)
	}
}

func runLangserver(args []string) {
	flags := flag.NewFlagSet("langserver", flag.ExitOnError)
	flags.StringVar(&steepfile, "steepfile", "Steepfile", "path to the signature list file")
	count := flags.Int("jobs", conf.DEFAULTCODEWORKERS, "number of code worker processes")
	checkErr(flags.Parse(args))

	exe, err := os.Executable()
	checkErr(err)

	workers := []*server.WorkerProcess{}
	spawn := func(name string, extra ...string) *server.WorkerProcess {
		worker, err := server.SpawnWorker(name, exe, append([]string{"worker", "--steepfile=" + steepfile}, extra...)...)
		checkErr(err)
		workers = append(workers, worker)
		return worker
	}

	interaction := spawn("interaction", "--interaction")
	signature := spawn("signature", "--signature")
	code := []server.Worker{}
	for i := 0; i < *count; i++ {
		code = append(code, spawn(fmt.Sprintf("code[%v]", i), "--typecheck", fmt.Sprintf("--index=%v", i), fmt.Sprintf("--count=%v", *count)))
	}

	master := server.NewMaster(interaction, signature, code)
	for _, worker := range workers {
		go worker.ReadLoop(master.Inbox())
	}
	checkErr(master.Run(os.Stdin, os.Stdout))
	for _, worker := range workers {
		_ = worker.Shutdown()
	}
	os.Exit(master.ExitCode())
}

func runWorker(args []string) {
	flags := flag.NewFlagSet("worker", flag.ExitOnError)
	flags.StringVar(&steepfile, "steepfile", "Steepfile", "path to the signature list file")
	interaction := flags.Bool("interaction", false, "run the interaction worker")
	signature := flags.Bool("signature", false, "run the signature worker")
	typecheck := flags.Bool("typecheck", false, "run a code checking worker")
	index := flags.Int("index", 0, "index of this code worker")
	count := flags.Int("count", 1, "total number of code workers")
	checkErr(flags.Parse(args))

	env := sig.NewEnv()
	env.Load(loadSteepfile(steepfile)...)

	switch {
	case *interaction:
		checkErr(server.NewInteractionWorker(os.Stdin, os.Stdout, env).Run())
	case *signature:
		checkErr(server.NewSignatureWorker(os.Stdin, os.Stdout, env).Run())
	case *typecheck:
		checkErr(server.NewCodeWorker(os.Stdin, os.Stdout, env, *index, *count).Run())
	default:
		checkErr(fmt.Errorf("worker needs one of --interaction, --signature, or --typecheck"))
	}
}

func runCheck(args []string) {
	flags := flag.NewFlagSet("check", flag.ExitOnError)
	flags.StringVar(&steepfile, "steepfile", "Steepfile", "path to the signature list file")
	expectationsPath := flags.String("expectations", "", "compare diagnostics against this YAML file")
	saveExpectations := flags.Bool("save-expectations", false, "write the produced diagnostics as the new expectations")
	checkErr(flags.Parse(args))

	paths := flags.Args()
	if len(paths) == 0 {
		paths = loadSteepfile(steepfile)
	}

	env := sig.NewEnv()
	diags := env.Load(paths...)

	if *saveExpectations && *expectationsPath != "" {
		checkErr(expectations.Save(*expectationsPath, diags))
		return
	}

	var expected expectations.File
	if *expectationsPath != "" {
		var err error
		expected, err = expectations.Load(*expectationsPath)
		checkErr(err)
	}

	failed := false
	for _, path := range paths {
		if expected != nil {
			comparison := expected.Compare(path, diags[path])
			failed = failed || !comparison.Satisfied()
			reportComparison(path, comparison)
			continue
		}
		failed = failed || len(diags[path]) > 0
		for _, diag := range diags[path] {
			reportDiagnostic(path, diag)
		}
	}
	if failed {
		os.Exit(conf.EXITDIAGNOSTICS)
	}
}

func runConsole(args []string) {
	flags := flag.NewFlagSet("console", flag.ExitOnError)
	flags.StringVar(&steepfile, "steepfile", "Steepfile", "path to the signature list file")
	checkErr(flags.Parse(args))

	env := sig.NewEnv()
	env.Load(loadSteepfile(steepfile)...)
	checkErr(console.Run(env))
}

func reportDiagnostic(path string, diag lsp.Diagnostic) {
	fmt.Fprintf(os.Stderr, "%v:%v:%v [%v] %v\n", path, diag.Range.Start.Line+1, diag.Range.Start.Character, diag.Code, diag.Message)
}

func reportComparison(path string, comparison expectations.Comparison) {
	for _, diag := range comparison.Unexpected {
		fmt.Fprintf(os.Stderr, "%v:%v: unexpected: [%v] %v\n", path, diag.Range.Start.Line+1, diag.Code, diag.Message)
	}
	for _, diag := range comparison.Missing {
		fmt.Fprintf(os.Stderr, "%v:%v: missing: [%v] %v\n", path, diag.Range.Start.Line+1, diag.Code, diag.Message)
	}
}

// loadSteepfile reads the signature path list, one path per line, with blank
// lines and # comments skipped. A missing steepfile is an empty project.
func loadSteepfile(path string) []string {
	src, err := os.Open(path)
	if err != nil {
		return []string{}
	}
	defer func() { _ = src.Close() }()

	paths := []string{}
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths
}
