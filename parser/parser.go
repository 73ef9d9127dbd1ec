// Package parser tokenizes the command stream's line format:
// [ts] cmd -k1 v1 -k2 v2 ...
package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is one parsed input line.
type Command struct {
	Timestamp int64
	Name      string
	args      map[byte]string
}

// Parse splits a line into its timestamp, command name and one-letter
// flags. Blank lines return ok=false without an error.
func Parse(line string) (Command, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false, nil
	}
	if len(fields) < 2 {
		return Command{}, false, fmt.Errorf("parse command %q: missing command name", line)
	}
	tsField := fields[0]
	if len(tsField) < 3 || tsField[0] != '[' || tsField[len(tsField)-1] != ']' {
		return Command{}, false, fmt.Errorf("parse command %q: malformed timestamp", line)
	}
	ts, err := strconv.ParseInt(tsField[1:len(tsField)-1], 10, 64)
	if err != nil {
		return Command{}, false, fmt.Errorf("parse command %q: %w", line, err)
	}

	cmd := Command{Timestamp: ts, Name: fields[1], args: make(map[byte]string)}
	rest := fields[2:]
	for i := 0; i+1 < len(rest); i += 2 {
		flag := rest[i]
		if len(flag) != 2 || flag[0] != '-' {
			return Command{}, false, fmt.Errorf("parse command %q: bad flag %q", line, flag)
		}
		cmd.args[flag[1]] = rest[i+1]
	}
	if len(rest)%2 != 0 {
		return Command{}, false, fmt.Errorf("parse command %q: flag %q has no value", line, rest[len(rest)-1])
	}
	return cmd, true, nil
}

func (c *Command) Has(flag byte) bool { _, ok := c.args[flag]; return ok }

func (c *Command) Arg(flag byte) string { return c.args[flag] }

// ArgOr returns the flag's value, or def when absent.
func (c *Command) ArgOr(flag byte, def string) string {
	if v, ok := c.args[flag]; ok {
		return v
	}
	return def
}

// IntArg parses the flag's value as an integer; absent flags return
// def.
func (c *Command) IntArg(flag byte, def int64) (int64, error) {
	v, ok := c.args[flag]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("flag -%c: %w", flag, err)
	}
	return n, nil
}
