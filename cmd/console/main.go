package main

import (
	"fmt"
	"log"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gopostfix/pkg/asm"
	"gopostfix/pkg/config"
	"gopostfix/pkg/utils"
	"gopostfix/pkg/vm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: console <source.pf> [--show-rpn]")
		os.Exit(2)
	}
	filename := os.Args[1]
	showRPN := false
	for _, arg := range os.Args[2:] {
		if arg == "--show-rpn" {
			showRPN = true
		}
	}

	fullPath, baseDir, err := utils.GetPathInfo(filename)
	if err != nil {
		log.Fatalf("Failed to resolve source path: %v", err)
	}
	sourceBytes, err := os.ReadFile(fullPath)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	cfg, err := config.FindAndLoad(baseDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	prog, tr, err := asm.Build(string(sourceBytes))
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	if showRPN {
		print("Postfix listing:\n", asm.Format(tr.Code, tr.Symbols), "\n")
	}

	m := vm.NewMachine(prog)
	m.MaxSteps = cfg.Run.MaxSteps
	if err := m.Run(); err != nil {
		log.Fatalf("%v", err)
	}
}
