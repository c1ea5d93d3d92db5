package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/email"
)

func cmdEmail(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wwivutil email <dump|delete|add> [options]")
		os.Exit(1)
	}

	switch args[0] {
	case "dump":
		cmdEmailDump(args[1:])
	case "delete":
		cmdEmailDelete(args[1:])
	case "add":
		cmdEmailAdd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown email subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdEmailDump(args []string) {
	fs := flag.NewFlagSet("email dump", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	dataDir := fs.String("data", "data", "Data directory")
	user := fs.Uint("user", 0, "Limit to one recipient's inbox (0 = every live slot)")
	fs.Parse(args)

	dataCfg := openDataConfig(*configDir, *dataDir)
	store := email.New(dataCfg.EmailPath, clock.SystemClock{})

	if *user != 0 {
		recs, err := store.ListForUser(uint16(*user))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, ir := range recs {
			printEmailSlot(ir.Index, ir.Record)
		}
		fmt.Printf("%d message(s) for user %d\n", len(recs), *user)
		return
	}

	n, err := store.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	live := 0
	for i := 0; i < n; i++ {
		rec, err := store.ReadAt(i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading slot %d: %v\n", i, err)
			continue
		}
		if rec.Deleted() {
			continue
		}
		printEmailSlot(i, rec)
		live++
	}
	fmt.Printf("%d live slot(s) of %d total\n", live, n)
}

func printEmailSlot(index int, rec email.Record) {
	when := time.Unix(int64(rec.DateWritten), 0).Format("2006-01-02 15:04:05")
	fmt.Printf("[%4d] %5d -> %5d  %-40s  %s\n", index, rec.FromUser, rec.ToUser, rec.TitleString(), when)
}

func cmdEmailDelete(args []string) {
	fs := flag.NewFlagSet("email delete", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	dataDir := fs.String("data", "data", "Data directory")
	index := fs.Int("index", -1, "Slot index to tombstone (required)")
	fs.Parse(args)

	if *index < 0 {
		fmt.Fprintln(os.Stderr, "Error: --index is required")
		os.Exit(1)
	}

	dataCfg := openDataConfig(*configDir, *dataDir)
	store := email.New(dataCfg.EmailPath, clock.SystemClock{})
	if err := store.Delete(*index); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Slot %d tombstoned.\n", *index)
}

func cmdEmailAdd(args []string) {
	fs := flag.NewFlagSet("email add", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	dataDir := fs.String("data", "data", "Data directory")
	fromSys := fs.Uint("from-sys", 0, "Originating system number")
	fromUser := fs.Uint("from-user", 0, "Originating user number")
	toSys := fs.Uint("to-sys", 0, "Destination system number (0 = local)")
	toUsers := fs.String("to-users", "", "Comma-separated recipient user numbers (required)")
	fromName := fs.String("from-name", "Sysop", "Sender display name")
	title := fs.String("title", "", "Message title")
	text := fs.String("text", "", "Message body")
	fs.Parse(args)

	if *toUsers == "" {
		fmt.Fprintln(os.Stderr, "Error: --to-users is required")
		os.Exit(1)
	}

	var recipients []uint16
	for _, field := range strings.Split(*toUsers, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid user number %q: %v\n", field, err)
			os.Exit(1)
		}
		recipients = append(recipients, uint16(n))
	}

	dataCfg := openDataConfig(*configDir, *dataDir)
	store := email.New(dataCfg.EmailPath, clock.SystemClock{})

	indexes, err := store.Send(uint16(*fromSys), uint16(*fromUser), uint16(*toSys), recipients, *fromName, *title, []byte(*text))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent to %d recipient(s), slot(s): %v\n", len(recipients), indexes)
}
