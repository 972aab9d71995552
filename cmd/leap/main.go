// leap CLI - rewrites label/goto markers in assembled wordcode
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("v", 1, "Log verbosity (0 quiet, 4 debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: leap [options] <command> [command options] [paths...]\n\n")
		fmt.Fprintf(os.Stderr, "Rewrites label/goto markers in assembled functions into jumps.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  rewrite   Assemble, rewrite and write an image\n")
		fmt.Fprintf(os.Stderr, "  dis       Disassemble sources or images\n")
		fmt.Fprintf(os.Stderr, "  run       Rewrite and call a function\n")
		fmt.Fprintf(os.Stderr, "  verify    Rewrite and verify every function\n")
		fmt.Fprintf(os.Stderr, "  serve     Start the rewrite server (Connect over HTTP)\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  leap rewrite -o loops.leapc loops.leap  # Rewrite into an image\n")
		fmt.Fprintf(os.Stderr, "  leap dis -rewrite loops.leap            # Show the rewritten code\n")
		fmt.Fprintf(os.Stderr, "  leap run -e build_list loops.leap 1 5   # Call build_list(1, 5)\n")
		fmt.Fprintf(os.Stderr, "  leap serve -addr :7420                  # Serve rewrites\n")
		fmt.Fprintf(os.Stderr, "\nWith no paths, commands read the sources listed in leap.toml.\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := &cli{stdout: os.Stdout, stderr: os.Stderr, dir: "."}
	if err := c.dispatch(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the streams and working directory shared by every command.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	dir    string
}

func (c *cli) dispatch(cmd string, args []string) error {
	switch cmd {
	case "rewrite":
		return c.handleRewriteCommand(args)
	case "dis":
		return c.handleDisCommand(args)
	case "run":
		return c.handleRunCommand(args)
	case "verify":
		return c.handleVerifyCommand(args)
	case "serve":
		return c.handleServeCommand(args)
	default:
		return fmt.Errorf("unknown command %q (try leap -h)", cmd)
	}
}
