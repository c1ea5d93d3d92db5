package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/instmsg"
)

// cmdPage dispatches the inter-instance messaging subcommands: one
// instance sends a page/chat/broadcast, another instance's poll loop
// (or an operator, for inspection) drains it.
func cmdPage(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wwivutil page <send|poll> [options]")
		os.Exit(1)
	}

	switch args[0] {
	case "send":
		cmdPageSend(args[1:])
	case "poll":
		cmdPagePoll(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown page subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func openMailbox(dataDir string) *instmsg.Mailbox {
	dir := filepath.Join(dataDir, "scratch", "instmsg")
	box, err := instmsg.New(dir, clock.SystemClock{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return box
}

func cmdPageSend(args []string) {
	fs := flag.NewFlagSet("page send", flag.ExitOnError)
	dataDir := fs.String("data", "data", "Data directory")
	kind := fs.String("kind", "page", "Message kind: chat, page, broadcast, alert")
	from := fs.Uint("from", 0, "Sending node")
	to := fs.Uint("to", 0, "Destination node (0 = broadcast)")
	subject := fs.String("subject", "", "Subject line")
	body := fs.String("body", "", "Message body")
	fs.Parse(args)

	box := openMailbox(*dataDir)
	msg := instmsg.Message{
		Kind:     instmsg.Kind(*kind),
		FromNode: uint16(*from),
		ToNode:   uint16(*to),
		Subject:  *subject,
		Body:     *body,
	}
	if err := box.Send(msg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("sent %s message %d -> %d\n", msg.Kind, msg.FromNode, msg.ToNode)
}

func cmdPagePoll(args []string) {
	fs := flag.NewFlagSet("page poll", flag.ExitOnError)
	dataDir := fs.String("data", "data", "Data directory")
	node := fs.Uint("node", 0, "Node to deliver pages for")
	fs.Parse(args)

	box := openMailbox(*dataDir)
	msgs, err := box.Poll(uint16(*node))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %d -> %d  %-20s  %s\n", m.Kind, m.FromNode, m.ToNode, m.Subject, m.Body)
	}
	fmt.Printf("%d message(s) delivered\n", len(msgs))
}
