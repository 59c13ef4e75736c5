package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/natefinch/atomic"
	"github.com/peterh/liner"

	"github.com/calvinalkan/fuzzycache/pkg/fs"
	"github.com/calvinalkan/fuzzycache/pkg/fuzzycache"
)

var commands = []string{
	"add", "replace", "del", "delete", "get", "fuzzy",
	"keys", "len", "info", "open", "close", "export",
	"help", "exit", "quit", "q",
}

// REPL is the interactive command loop.
type REPL struct {
	cache *fuzzycache.Cache[json.RawMessage]
	out   io.Writer
	liner *liner.State
}

func newREPL(cache *fuzzycache.Cache[json.RawMessage], out io.Writer) *REPL {
	return &REPL{cache: cache, out: out}
}

func historyFile() string {
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".fzc_history")
}

// Run reads commands until exit or EOF.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	defer r.saveHistory()

	fmt.Fprintf(r.out, "fzc - %s (%s, threshold %.2f)\n", r.cache.Path(), r.cache.Backend(), r.cache.Threshold())
	fmt.Fprintln(r.out, "Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("fzc> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nBye!")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		if r.exec(line) {
			fmt.Fprintln(r.out, "Bye!")

			return nil
		}
	}
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	_ = writeHistory(path, r.liner.WriteHistory)
}

// writeHistory replaces the history file at path with what write produces.
// Sessions exiting at the same time take turns on path+".lock", and readers
// only ever see a whole file.
func writeHistory(path string, write func(io.Writer) (int, error)) error {
	lock, err := fs.NewLocker(fs.NewReal()).Lock(path + ".lock")
	if err != nil {
		return fmt.Errorf("lock history: %w", err)
	}

	defer func() { _ = lock.Close() }()

	var buf bytes.Buffer

	_, err = write(&buf)
	if err != nil {
		return fmt.Errorf("format history: %w", err)
	}

	err = atomic.WriteFile(path, &buf)
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	return nil
}

func completer(line string) []string {
	var out []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			out = append(out, cmd)
		}
	}

	return out
}

// exec runs one command line and reports whether the REPL should stop.
// Command errors are printed, never returned.
func (r *REPL) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error

	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		r.printHelp()
	case "add":
		err = r.cmdAdd(args)
	case "replace":
		err = r.cmdReplace(args)
	case "del", "delete":
		err = r.cmdDelete(args)
	case "get":
		err = r.cmdGet(args)
	case "fuzzy":
		err = r.cmdFuzzy(args)
	case "keys":
		err = r.cmdKeys()
	case "len":
		err = r.cmdLen()
	case "info":
		r.cmdInfo()
	case "open":
		err = r.cache.Open()
	case "close":
		err = r.cache.Close()
	case "export":
		err = r.cmdExport(args)
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
	}

	return false
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  add <key> <value>...      Append values to key")
	fmt.Fprintln(r.out, "  replace <key> <value>...  Replace the values of key (none deletes it)")
	fmt.Fprintln(r.out, "  del <key>                 Delete key")
	fmt.Fprintln(r.out, "  get <key>                 Exact lookup")
	fmt.Fprintln(r.out, "  fuzzy <query>             Fuzzy lookup")
	fmt.Fprintln(r.out, "  keys                      List keys")
	fmt.Fprintln(r.out, "  len                       Count keys")
	fmt.Fprintln(r.out, "  info                      Show cache info")
	fmt.Fprintln(r.out, "  open / close              Open or close the cache")
	fmt.Fprintln(r.out, "  export <file>             Write all entries as JSON")
	fmt.Fprintln(r.out, "  help                      Show this help")
	fmt.Fprintln(r.out, "  exit / quit / q           Exit")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Values that parse as JSON are stored as JSON, anything else as a string.")
}

func usageError(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}

// parseValue keeps valid JSON as is and quotes everything else.
func parseValue(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}

	quoted, _ := json.Marshal(s)

	return quoted
}

func parseValues(args []string) []json.RawMessage {
	values := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		values = append(values, parseValue(a))
	}

	return values
}

func (r *REPL) cmdAdd(args []string) error {
	if len(args) < 2 {
		return usageError("add <key> <value>...")
	}

	err := r.cache.AddMany(args[0], parseValues(args[1:]))
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "OK (%d added)\n", len(args)-1)

	return nil
}

func (r *REPL) cmdReplace(args []string) error {
	if len(args) < 1 {
		return usageError("replace <key> <value>...")
	}

	err := r.cache.ReplaceMany(args[0], parseValues(args[1:]))
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, "OK")

	return nil
}

func (r *REPL) cmdDelete(args []string) error {
	if len(args) != 1 {
		return usageError("del <key>")
	}

	err := r.cache.Delete(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, "OK")

	return nil
}

func (r *REPL) cmdGet(args []string) error {
	if len(args) != 1 {
		return usageError("get <key>")
	}

	result, err := r.cache.Get(args[0])
	if err != nil {
		return err
	}

	return r.printResult(result, "")
}

func (r *REPL) cmdFuzzy(args []string) error {
	if len(args) != 1 {
		return usageError("fuzzy <query>")
	}

	result, err := r.cache.GetFuzzy(args[0])
	if err != nil {
		return err
	}

	return r.printResult(result, fuzzycache.NormalizeKey(args[0]))
}

// printResult prints one line per key in key order. A non-empty query adds
// the similarity score.
func (r *REPL) printResult(result map[string][]json.RawMessage, query string) error {
	if len(result) == 0 {
		fmt.Fprintln(r.out, "(no match)")

		return nil
	}

	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		items, err := json.Marshal(result[k])
		if err != nil {
			return fmt.Errorf("format %q: %w", k, err)
		}

		if query != "" {
			fmt.Fprintf(r.out, "%s (%.2f): %s\n", k, fuzzycache.Similarity(k, query), items)
		} else {
			fmt.Fprintf(r.out, "%s: %s\n", k, items)
		}
	}

	return nil
}

func (r *REPL) cmdKeys() error {
	keys, err := r.cache.Keys()
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		fmt.Fprintln(r.out, "(empty)")

		return nil
	}

	for _, k := range keys {
		fmt.Fprintln(r.out, k)
	}

	return nil
}

func (r *REPL) cmdLen() error {
	n, err := r.cache.Len()
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, n)

	return nil
}

func (r *REPL) cmdInfo() {
	fmt.Fprintf(r.out, "path:      %s\n", r.cache.Path())
	fmt.Fprintf(r.out, "backend:   %s\n", r.cache.Backend())
	fmt.Fprintf(r.out, "threshold: %.2f\n", r.cache.Threshold())
	fmt.Fprintf(r.out, "open:      %v\n", r.cache.IsOpen())
}

func (r *REPL) cmdExport(args []string) error {
	if len(args) != 1 {
		return usageError("export <file>")
	}

	keys, err := r.cache.Keys()
	if err != nil {
		return err
	}

	dump := make(map[string][]json.RawMessage, len(keys))

	for _, k := range keys {
		result, err := r.cache.Get(k)
		if err != nil {
			return err
		}

		if items, ok := result[k]; ok {
			dump[k] = items
		}
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	path, err := homedir.Expand(args[0])
	if err != nil {
		return fmt.Errorf("export path: %w", err)
	}

	err = atomic.WriteFile(path, bytes.NewReader(append(data, '\n')))
	if err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	fmt.Fprintf(r.out, "exported %d keys to %s\n", len(dump), path)

	return nil
}
