// Package terminal implements functions for responding to user
// input and dispatching to the coordinator.
package terminal

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"

	"github.com/sumprime/sumprime/pkg/prime"
)

type cmdfunc func(t *Term, args []string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the sumprime console.
type Commands struct {
	cmds  []command
	names *trie.Trie
}

// ExitRequestError is returned by the exit command.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

var errNoCmd = errors.New("command not available")

// ConsoleCommands returns a Commands struct with default commands defined.
func ConsoleCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"status", "st"}, cmdFn: status, helpMsg: `Prints the progress of the coordinator.

	status

Shows how many chunks have a result, how many are leased to a worker and how many workers are connected.`},
		{aliases: []string{"result", "r"}, cmdFn: result, helpMsg: `Prints the sum of the results recorded so far.

	result

Once every chunk has a result the output is the final two line report.`},
		{aliases: []string{"chunks"}, cmdFn: chunks, helpMsg: `Lists the recorded results.

	chunks [<worker>]

Prints one line per chunk with its range, the worker that computed it and its sum. If a worker is given only its chunks are listed.`},
		{aliases: []string{"isprime"}, cmdFn: isPrime, helpMsg: `Tests numbers for primality, locally.

	isprime <n>...`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: "Exit the console."},
	}

	c.names = trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			c.names.Add(alias, nil)
		}
	}
	return c
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}
	return noCmdAvailable
}

// Call executes the command line cmdstr.
func (c *Commands) Call(cmdstr string, t *Term) error {
	args, err := splitCommand(cmdstr)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return c.Find(args[0])(t, args[1:])
}

// Complete returns the command names starting with prefix, sorted.
func (c *Commands) Complete(prefix string) []string {
	if strings.ContainsAny(prefix, " \t") {
		return nil
	}
	r := c.names.PrefixSearch(prefix)
	sort.Strings(r)
	return r
}

// splitCommand splits a command line into words using shell quoting rules.
// Backticks and pipes are not supported.
func splitCommand(cmdstr string) ([]string, error) {
	if strings.TrimSpace(cmdstr) == "" {
		return nil, nil
	}
	cmds, err := argv.Argv(cmdstr, func(s string) (string, error) {
		return "", fmt.Errorf("backtick not supported in '%s'", s)
	}, nil)
	if err != nil {
		return nil, err
	}
	switch len(cmds) {
	case 0:
		return nil, nil
	case 1:
		return cmds[0], nil
	}
	return nil, errors.New("pipes are not supported")
}

func noCmdAvailable(t *Term, args []string) error {
	return errNoCmd
}

func exitCommand(t *Term, args []string) error {
	return ExitRequestError{}
}

func (c *Commands) help(t *Term, args []string) error {
	if len(args) > 0 {
		for _, cmd := range c.cmds {
			if cmd.match(args[0]) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, ' ', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func status(t *Term, args []string) error {
	p, err := t.client.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Chunks: %d/%d done, %d leased\n", p.Done, p.Total, p.Leased)
	fmt.Fprintf(t.stdout, "Workers: %d\n", p.Workers)
	return nil
}

func result(t *Term, args []string) error {
	a, err := t.client.Result()
	if err != nil {
		return err
	}
	if !a.Complete() {
		fmt.Fprintf(t.stdout, "Partial sum: %d (%d primes in %d/%d chunks)\n", a.Sum, a.Count, a.Chunks, a.Total)
		return nil
	}
	fmt.Fprintf(t.stdout, "Sum: %d\nTime: %.2f seconds\n", a.Sum, a.Elapsed().Seconds())
	fmt.Fprintf(t.stdout, "Primes: %d, largest %d\n", a.Count, a.Largest)
	return nil
}

func chunks(t *Term, args []string) error {
	if len(args) > 1 {
		return errors.New("too many arguments")
	}
	results, err := t.client.ListChunks()
	if err != nil {
		return err
	}
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	for _, r := range results {
		if len(args) == 1 && r.WorkerID != args[0] {
			continue
		}
		fmt.Fprintf(w, "%d\t[%d, %d)\t%s\t%d\t%v\n", r.ChunkID, r.Lo, r.Hi, r.WorkerID, r.Sum, time.Duration(r.ElapsedNanos))
	}
	return w.Flush()
}

func isPrime(t *Term, args []string) error {
	if len(args) == 0 {
		return errors.New("not enough arguments")
	}
	for _, arg := range args {
		n, err := strconv.ParseInt(arg, 0, 64)
		if err != nil {
			return fmt.Errorf("%q is not an integer", arg)
		}
		if prime.IsPrime(n) {
			fmt.Fprintf(t.stdout, "%d is prime\n", n)
		} else {
			fmt.Fprintf(t.stdout, "%d is not prime\n", n)
		}
	}
	return nil
}
