package main

import (
	"fmt"
	"os"

	"github.com/stlalpha/wwivcore/internal/config"
	"github.com/stlalpha/wwivcore/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage("")
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "--version" || cmd == "-version" {
		printHeader()
		return
	}
	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		printUsage("")
		return
	}

	switch cmd {
	case "email":
		cmdEmail(os.Args[2:])
	case "instance":
		cmdInstance(os.Args[2:])
	case "board":
		cmdBoard(os.Args[2:])
	case "page":
		cmdPage(os.Args[2:])
	default:
		printUsage(fmt.Sprintf("Unknown command: %s", cmd))
		os.Exit(1)
	}
}

func printHeader() {
	fmt.Fprintf(os.Stderr, "wwivutil %s - shared data store utility\n", version.Number)
}

func printUsage(errMsg string) {
	w := os.Stderr
	printHeader()
	if errMsg != "" {
		fmt.Fprintf(w, "\n%s\n", errMsg)
	}
	fmt.Fprint(w, `
Usage: wwivutil <command> <subcommand> [options]

Commands:
  email dump              List every live slot, or one user's inbox with --user
  email delete --index N  Tombstone the slot at index N
  email add                Append a send (see 'wwivutil email add -h')
  instance dump            List every node's slot in the instance file
  board list               List every registered sub-board
  board dump --tag T       List live posts in a non-networked sub-board
  board post --tag T ...   Post to a non-networked sub-board (see 'board post -h')
  page send --to N ...     Drop an inter-instance page/chat message
  page poll --node N       Deliver and clear pages addressed to a node

Global Options:
  --config DIR    Config directory (default: configs)
  --data DIR      Data directory (default: data)
`)
}

// openDataConfig loads the DataConfig shared by every subcommand,
// resolved against the given config/data directories.
func openDataConfig(configDir, dataDir string) config.DataConfig {
	dataCfg, err := config.LoadDataConfig(configDir, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return dataCfg
}
