package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gopostfix/pkg/asm"
	"gopostfix/pkg/compiler"
	"gopostfix/pkg/config"
	"gopostfix/pkg/store"
	"gopostfix/pkg/utils"
	"gopostfix/pkg/vm"
)

func main() {
	inPath := flag.String("in", "", "input source (.pf) or listing file path")
	outPath := flag.String("out", "", "output program file path (default: input with .bin extension)")
	runProgram := flag.Bool("run", false, "run the generated program on the stack machine")
	runBinPath := flag.String("run-bin", "", "run an existing program file on the stack machine")
	configPath := flag.String("config", "", "configuration file (default: nearest postfix.toml)")
	dbPath := flag.String("db", "", "record the translation in this SQLite database")
	listing := flag.Bool("listing", false, "print the instruction listing")
	verbosity := flag.Int("v", -1, "log verbosity; 0 or more overrides the configuration")
	hibernatePath := flag.String("hibernate", "", "save the machine state here if the run stops at its step limit")
	resumePath := flag.String("resume", "", "resume a machine saved with -hibernate")
	flag.Parse()

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	configureLogging(cfg, *verbosity)
	if *listing {
		cfg.Translate.Listing = true
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
		cfg.Dir = ""
	}

	builtOutput := ""
	if *inPath != "" {
		source, err := os.ReadFile(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", *inPath, err)
			os.Exit(1)
		}

		prog, text, err := build(*inPath, string(source), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			os.Exit(1)
		}

		data, err := vm.MarshalProgram(prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode program: %v\n", err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}
		if err := writeBinary(output, data); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write program file %q: %v\n", output, err)
			os.Exit(1)
		}
		fmt.Printf("assembled %d instructions -> %s\n", len(prog.Code), output)
		builtOutput = output

		if path := cfg.StorePath(); path != "" {
			if err := record(path, *inPath, text, data); err != nil {
				fmt.Fprintf(os.Stderr, "failed to record translation: %v\n", err)
				os.Exit(1)
			}
		}
	}

	if *resumePath != "" {
		m := &vm.Machine{}
		if err := m.RestoreFromFile(*resumePath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to restore %q: %v\n", *resumePath, err)
			os.Exit(1)
		}
		if err := runMachine(m, *resumePath, cfg.Run.MaxSteps, *hibernatePath); err != nil {
			fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", *resumePath, err)
			os.Exit(1)
		}
		return
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to translate, -run to run the translated program, -run-bin <file> to run an existing program, or -resume <file>")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if builtOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = builtOutput
	default:
		return
	}

	if err := runBinary(runTarget, cfg.Run.MaxSteps, *hibernatePath); err != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", runTarget, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.FindAndLoad(".")
}

// logVerbosity picks the -v value when one was given, else the configured one.
func logVerbosity(cfg *config.Config, flagValue int) int {
	if flagValue < 0 {
		return cfg.Log.Verbosity
	}
	return flagValue
}

func configureLogging(cfg *config.Config, flagValue int) {
	verbosity := logVerbosity(cfg, flagValue)
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(verbosity, path)
}

// build translates a .pf source, or reads any other file as a listing, and
// returns the assembled program with its listing text.
func build(path, source string, cfg *config.Config) (*vm.Program, *listingText, error) {
	var code []compiler.Instr
	var syms *compiler.SymbolTable
	labels := 0

	if strings.HasSuffix(path, ".pf") {
		tr, err := compiler.Compile(source)
		if err != nil {
			return nil, nil, err
		}
		code, syms, labels = tr.Code, tr.Symbols, len(tr.Labels)
	} else {
		var err error
		code, syms, err = asm.Parse(source)
		if err != nil {
			return nil, nil, err
		}
	}

	text := &listingText{body: asm.Format(code, syms), labels: labels, vars: syms.Len()}
	if cfg.Translate.Listing {
		fmt.Print(text.body)
	}
	if cfg.Translate.Symbols {
		fmt.Print(syms)
	}

	prog, err := asm.Assemble(code, syms)
	if err != nil {
		return nil, nil, fmt.Errorf("assembly error: %w", err)
	}
	return prog, text, nil
}

type listingText struct {
	body   string
	labels int
	vars   int
}

func record(dbPath, source string, text *listingText, program []byte) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Save(context.Background(), store.Record{
		Source:    filepath.Base(source),
		Listing:   text.body,
		Labels:    text.labels,
		Variables: text.vars,
		Program:   program,
	})
	if err != nil {
		return err
	}
	fmt.Printf("recorded translation %s\n", rec.ID)
	return nil
}

func defaultOutputPath(inPath string) string {
	return utils.ReplaceExt(inPath, ".bin")
}

func writeBinary(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func readBinary(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func runBinary(path string, maxSteps int, hibernatePath string) error {
	data, err := readBinary(path)
	if err != nil {
		return err
	}
	prog, err := vm.UnmarshalProgram(data)
	if err != nil {
		return err
	}
	return runMachine(vm.NewMachine(prog), path, maxSteps, hibernatePath)
}

// runMachine runs m to completion. When the step limit stops it and
// hibernatePath is set, the machine is saved there instead of failing.
func runMachine(m *vm.Machine, path string, maxSteps int, hibernatePath string) error {
	m.MaxSteps = maxSteps
	err := m.Run()
	if errors.Is(err, vm.ErrStepLimit) && hibernatePath != "" {
		if err := m.HibernateToFile(hibernatePath); err != nil {
			return fmt.Errorf("hibernate: %w", err)
		}
		fmt.Printf("step limit reached (%s): machine saved to %s\n", path, hibernatePath)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("run complete (%s): steps=%d stack=%d\n", path, m.Steps, len(m.Stack))
	return nil
}
