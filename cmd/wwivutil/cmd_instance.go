package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stlalpha/wwivcore/internal/instance"
)

func cmdInstance(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wwivutil instance <dump> [options]")
		os.Exit(1)
	}

	switch args[0] {
	case "dump":
		cmdInstanceDump(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown instance subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdInstanceDump(args []string) {
	fs := flag.NewFlagSet("instance dump", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	dataDir := fs.String("data", "data", "Data directory")
	fs.Parse(args)

	dataCfg := openDataConfig(*configDir, *dataDir)
	reg := instance.New(dataCfg.InstanceFilePath)

	recs, err := reg.All()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	onlineCount := 0
	for i, rec := range recs {
		status := "offline"
		if rec.Online() {
			status = "online"
			onlineCount++
		}
		started := "-"
		if rec.StartedAt != 0 {
			started = time.Unix(int64(rec.StartedAt), 0).Format("2006-01-02 15:04:05")
		}
		fmt.Printf("[%3d] node=%-5d user=%-5d %-8s loc=%-2d started=%s\n",
			i, rec.NodeNum, rec.UserNum, status, rec.Location, started)
		if err := rec.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "  WARN: %v\n", err)
		}
	}
	fmt.Printf("%d node(s), %d online\n", len(recs), onlineCount)
}
