package cli

import (
	"fmt"
)

// commandInfo describes a top-level subcommand.
type commandInfo struct {
	Name     string
	Args     string
	Short    string
	Long     string
	Examples []string
}

var commands = []commandInfo{
	{
		Name:  "run",
		Short: "Run the sync daemon (default action)",
		Long: `Keep the offline queue draining in the background.

Syncs on startup when online, whenever a connectivity source (MQTT broker,
websocket) reconnects, whenever the session file changes, and on the
configured schedule. SIGHUP reloads the config, SIGUSR1 forces a sync.`,
		Examples: []string{
			"reviewsync",
			"reviewsync run --config /etc/reviewsync/reviewsync.toml",
		},
	},
	{
		Name:  "login",
		Args:  "--token <jwt> [--username <name>] [--no-sync]",
		Short: "Store the session and sync pending reviews",
		Long: `Save the bearer token to the session file. The username is read from
the token's username, preferred_username or sub claim unless given.`,
		Examples: []string{
			"reviewsync login --token eyJhbGciOi...",
		},
	},
	{
		Name:  "logout",
		Short: "Forget the session (pending reviews are kept)",
	},
	{
		Name:  "submit",
		Args:  "--lesson <id> --score <0..1> [--offline]",
		Short: "Record a lesson review, queueing it if the API is unreachable",
		Examples: []string{
			"reviewsync submit --lesson L1 --score 0.9",
			"reviewsync submit --lesson L2 --score 0.4 --offline",
		},
	},
	{
		Name:  "sync",
		Short: "Run one sync pass for the logged-in user",
		Long: `Deliver the logged-in user's pending reviews in queue order.
Exits 2 if the server rejected the session.`,
	},
	{
		Name:  "status",
		Short: "Show session, queue and dead-letter state",
	},
	{
		Name:  "clear",
		Short: "Discard every pending review",
	},
	{
		Name:  "dead",
		Args:  "[--requeue | --clear]",
		Short: "List reviews the server kept rejecting",
		Examples: []string{
			"reviewsync dead",
			"reviewsync dead --requeue",
		},
	},
	{
		Name:  "version",
		Short: "Print version and build information",
	},
}

// PrintHelp prints top-level help (reviewsync help).
func PrintHelp(binaryName string) {
	fmt.Fprintf(stdout, `reviewsync: offline lesson review queue

USAGE:
  %s [command] [flags]

COMMANDS:
`, binaryName)

	for _, c := range commands {
		fmt.Fprintf(stdout, "  %-10s %-46s %s\n", c.Name, c.Args, c.Short)
	}

	fmt.Fprintf(stdout, `
GLOBAL FLAGS:
  --config <file>   Path to config file, .json/.toml/.yaml (default: reviewsync.json)
  --version         Print version information
  -h, --help        Show this help message

Run '%s help <command>' for detailed help on a specific command.
`, binaryName)
}

// PrintCommandHelp prints help for a specific subcommand. It returns false
// for unknown commands.
func PrintCommandHelp(binaryName, cmdName string) bool {
	for _, c := range commands {
		if c.Name != cmdName {
			continue
		}
		fmt.Fprintf(stdout, "COMMAND: %s %s\n\n", binaryName, c.Name)
		if c.Args != "" {
			fmt.Fprintf(stdout, "USAGE:\n  %s %s %s\n\n", binaryName, c.Name, c.Args)
		}
		if c.Long != "" {
			fmt.Fprintf(stdout, "DESCRIPTION:\n  %s\n\n", c.Long)
		}
		if len(c.Examples) > 0 {
			fmt.Fprintln(stdout, "EXAMPLES:")
			for _, ex := range c.Examples {
				fmt.Fprintf(stdout, "  %s\n", ex)
			}
			fmt.Fprintln(stdout)
		}
		return true
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n\nRun '%s help' for a list of commands.\n", cmdName, binaryName)
	return false
}

// CommandNames returns all valid command names (used for error messages).
func CommandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name
	}
	return names
}
