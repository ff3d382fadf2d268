package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// BranchesCommand represents a command for listing branch points in a package.
type BranchesCommand struct {
	fn string
}

// NewBranchesCommand returns a new instance of BranchesCommand.
func NewBranchesCommand() *BranchesCommand {
	return &BranchesCommand{}
}

// Run executes the "branches" subcommand.
func (cmd *BranchesCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sympath-branches", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "verbose")
	fs.StringVar(&cmd.fn, "fn", "", "function name")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("package required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many packages specified")
	}

	log.SetFlags(0)
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}

	// Load the initial set of packages.
	initial, err := packages.Load(&packages.Config{
		Mode: packages.LoadAllSyntax,
	}, fs.Args()...)
	if err != nil {
		return err
	} else if packages.PrintErrors(initial) > 0 {
		return fmt.Errorf("packages contain errors")
	}

	// Build program in SSA form.
	prog, pkgs := ssautil.AllPackages(initial, ssa.BuilderMode(0))
	for i, pkg := range pkgs {
		if pkg == nil {
			return fmt.Errorf("cannot build SSA for package %s", initial[i])
		}
	}
	prog.Build()

	// Collect functions to inspect.
	var fns []*ssa.Function
	for _, pkg := range pkgs {
		for _, m := range pkg.Members {
			if m, ok := m.(*ssa.Function); ok {
				if cmd.fn == "" || m.Name() == cmd.fn {
					fns = append(fns, m)
				}
			}
		}
	}
	if cmd.fn != "" && len(fns) == 0 {
		return fmt.Errorf("function not found: %s", cmd.fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name() < fns[j].Name() })

	for _, fn := range fns {
		cmd.printBranches(prog, fn)
	}
	return nil
}

// printBranches reports every branch point of fn with its source position
// and the successor blocks of each outgoing edge.
func (cmd *BranchesCommand) printBranches(prog *ssa.Program, fn *ssa.Function) {
	log.Printf("[fn] %s", fn.String())

	for _, block := range fn.Blocks {
		if len(block.Instrs) == 0 {
			continue
		}

		instr, ok := block.Instrs[len(block.Instrs)-1].(*ssa.If)
		if !ok {
			continue
		}

		pos := prog.Fset.Position(instr.Cond.Pos())
		succs := block.Succs
		fmt.Printf("%s: %s: block %d -> {", fn.Name(), pos, block.Index)
		for i, succ := range succs {
			if i > 0 {
				fmt.Printf(", ")
			}
			fmt.Printf("%d", succ.Index)
		}
		fmt.Printf("} (fan-out %d)\n", len(succs))
	}
}

func (cmd *BranchesCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: sympath branches [arguments] [package]

Arguments:

	-fn NAME
	    Limit output to a single function.

	-v
	    Enable verbose logging.
`[1:])
}
