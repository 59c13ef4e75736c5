// fzc is an interactive shell over a fuzzycache file.
//
// Usage:
//
//	fzc [flags] [cache-file]
//
// The cache file defaults to cache_file from the config. Flags:
//
//	-c, --config <file>      Use this config file instead of .fzc.json
//	-t, --threshold <0..1>   Fuzzy match threshold (default 0.75)
//	-b, --backend <name>     sqlite or snapshot (default sqlite)
//	    --log-level <level>  zerolog level for stderr (default warn)
//	    --process-lock       Refuse to open a file another process has open
//	    --print-config       Print the merged config and exit
//
// Commands (in REPL):
//
//	add <key> <value>...      Append values to key
//	replace <key> <value>...  Replace the values of key
//	del <key>                 Delete key
//	get <key>                 Exact lookup
//	fuzzy <query>             Fuzzy lookup
//	keys                      List keys
//	len                       Count keys
//	info                      Show cache info
//	open / close              Open or close the cache
//	export <file>             Write all entries as JSON
//	help                      Show this help
//	exit / quit / q           Exit
package main

import "os"

func main() {
	os.Exit(run(os.Stdout, os.Stderr, os.Args, os.Environ()))
}
