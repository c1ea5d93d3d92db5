package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/msgbase"
)

// cmdBoard dispatches the native (.sub/.dt) message base subcommands.
// 'board post' and 'board dump' refuse sub-boards attached to a
// network: a post there also has to be handed to internal/dispatch for
// fan-out to each attached network, which these subcommands do not do.
func cmdBoard(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wwivutil board <list|dump|post> [options]")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		cmdBoardList(args[1:])
	case "dump":
		cmdBoardDump(args[1:])
	case "post":
		cmdBoardPost(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown board subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func openBoardRegistry(configDir string) *board.Registry {
	reg, err := board.Open(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return reg
}

// localBase opens the native message base for a non-networked
// sub-board. Networked boards are rejected here: a post to one also
// has to go through the dispatcher (internal/dispatch) so it reaches
// every attached network, not just the local file.
func localBase(reg *board.Registry, tag string) *msgbase.Base {
	desc, ok := reg.GetByTag(tag)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no sub-board tagged %q\n", tag)
		os.Exit(1)
	}
	if len(desc.Attachments) > 0 {
		fmt.Fprintf(os.Stderr, "Error: %q rides a network; use wwivnetd or cmd_ftn tooling instead of 'board post'\n", tag)
		os.Exit(1)
	}
	return msgbase.Open(desc.BasePath)
}

func cmdBoardList(args []string) {
	fs := flag.NewFlagSet("board list", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	fs.Parse(args)

	reg := openBoardRegistry(*configDir)
	for _, d := range reg.List() {
		kind := "local"
		if len(d.Attachments) > 0 {
			kind = d.Attachments[0].NetworkType + "/" + d.Attachments[0].Network
		}
		fmt.Printf("[%3d] %-12s %-30s %s\n", d.ID, d.Tag, d.Name, kind)
	}
}

func cmdBoardDump(args []string) {
	fs := flag.NewFlagSet("board dump", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	tag := fs.String("tag", "", "Sub-board tag to dump (required)")
	fs.Parse(args)

	if *tag == "" {
		fmt.Fprintln(os.Stderr, "Error: --tag is required")
		os.Exit(1)
	}

	reg := openBoardRegistry(*configDir)
	base := localBase(reg, *tag)

	n, err := base.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for slot := 1; slot <= n; slot++ {
		rec, err := base.ReadPost(slot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading slot %d: %v\n", slot, err)
			continue
		}
		if rec.Deleted() {
			continue
		}
		when := time.Unix(int64(rec.DateWritten), 0).Format("2006-01-02 15:04:05")
		fmt.Printf("[%4d] #%-6d %5d/%-5d %-40s  %s\n", slot, rec.MsgNum, rec.OwnerSys, rec.OwnerUser, rec.TitleString(), when)
	}
	fmt.Printf("%d slot(s)\n", n)
}

func cmdBoardPost(args []string) {
	fs := flag.NewFlagSet("board post", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	tag := fs.String("tag", "", "Sub-board tag to post to (required)")
	title := fs.String("title", "", "Post title (required)")
	fromUser := fs.Uint("from-user", 0, "Author user number")
	textFile := fs.String("text-file", "", "Path to message body, or - for stdin (required)")
	fs.Parse(args)

	if *tag == "" || *title == "" || *textFile == "" {
		fmt.Fprintln(os.Stderr, "Error: --tag, --title and --text-file are required")
		os.Exit(1)
	}

	reg := openBoardRegistry(*configDir)
	base := localBase(reg, *tag)

	var text []byte
	var err error
	if *textFile == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(*textFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading text: %v\n", err)
		os.Exit(1)
	}

	var rec msgbase.PostRecord
	rec.SetTitle(*title)
	rec.DateWritten = uint32(time.Now().Unix())
	rec.OwnerUser = uint16(*fromUser)

	slot, err := base.AddPost(rec, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("posted to %s at slot %d\n", *tag, slot)
}
