package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/xplshn/gasm/pkg/asm"
	"github.com/xplshn/gasm/pkg/cli"
	"github.com/xplshn/gasm/pkg/config"
	"github.com/xplshn/gasm/pkg/diag"
)

func main() {
	app := cli.NewApp("gasm")
	app.Synopsis = "[options] <input.asm> ..."
	app.Description = "A two-pass assembler for data directives, labels and constant expressions. Useful for checking symbol layouts before an instruction set gets involved."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/gasm>"

	var (
		outFile      string
		exprs        []string
		printSymbols bool
		printExports bool
		listFeatures bool
		wall         bool
		verbose      bool
		trace        bool
	)

	cfg := config.NewConfig()

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Write the raw image to <file>.", "file")
	fs.Bool(&printSymbols, "symbols", "s", false, "Print the symbol table after assembly.")
	fs.List(&exprs, "eval", "e", []string{}, "Evaluate an expression against the final symbols.", "expr")
	fs.Bool(&printExports, "exports", "x", false, "List exported symbols.")
	fs.Bool(&listFeatures, "list-features", "", false, "List every feature and warning, then exit.")
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings.")
	fs.Int(&cfg.BlockSize, "block-size", "", config.DefaultBlockSize, "Symbol arena block size in bytes.", "bytes")
	fs.Int(&cfg.MaxBlocks, "max-blocks", "", 0, "Limit the number of symbol arena blocks (0 = no limit).", "n")
	fs.Int(&cfg.MaxDepth, "max-depth", "", config.DefaultMaxDepth, "Maximum expression nesting depth.", "n")
	fs.Bool(&verbose, "verbose", "v", false, "Log pass progress.")
	fs.Bool(&trace, "trace", "", false, "Log every expression reduction.")

	groups := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		switch {
		case trace:
			log.SetLevel(log.TraceLevel)
		case verbose:
			log.SetLevel(log.DebugLevel)
		}

		if wall {
			for w := config.Warning(0); w < config.WarnCount; w++ {
				cfg.SetWarning(w, true)
			}
		}
		groups.Apply(cfg)

		if listFeatures {
			cfg.PrintFeatures(os.Stdout)
			return nil
		}
		if len(inputFiles) == 0 {
			return fmt.Errorf("no input files specified")
		}

		files := make([]diag.SourceFile, 0, len(inputFiles))
		for _, name := range inputFiles {
			content, err := os.ReadFile(name)
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}
			files = append(files, diag.SourceFile{Name: name, Content: []rune(string(content))})
		}

		rep := diag.NewReporter(os.Stderr, cfg)
		res, err := asm.New(cfg, rep).Assemble(files)
		if err != nil {
			return err
		}

		log.Debugf("%d symbols, %d exported, %d segment(s)", res.Symbols.Count(), len(res.Exports), len(res.Segments))

		if printSymbols {
			if err := res.Symbols.Print(os.Stdout); err != nil {
				return err
			}
		}
		if printExports {
			for _, s := range res.Exports {
				fmt.Printf("%s = 0x%08x\n", s.Name, s.Address)
			}
		}
		for _, e := range exprs {
			v, err := res.Evaluate(e)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", e, err)
				continue
			}
			fmt.Printf("%s = %d (0x%x)\n", e, v, v)
		}

		if res.Failed {
			return fmt.Errorf("assembly failed with %d error(s)", rep.Errors())
		}
		if outFile != "" {
			base, image := res.Image()
			log.Debugf("writing %s based at 0x%x to %s", humanize.Bytes(uint64(len(image))), base, outFile)
			if err := os.WriteFile(outFile, image, 0o644); err != nil {
				return err
			}
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gasm: %v\n", err)
		os.Exit(1)
	}
}
