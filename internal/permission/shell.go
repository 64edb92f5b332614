package permission

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellCommand is one simple command extracted from a shell line.
type ShellCommand struct {
	Name       string   // command name ("rm", "git"); empty for a bare redirect
	Args       []string // arguments after the name
	Subcommand string   // first non-flag argument ("commit" in "git commit")
	WritesTo   []string // output redirection targets (">", ">>", "&>")
}

// ParseShell parses a shell line into its simple commands. Pipelines,
// `&&` chains and subshells all contribute commands. Output redirections
// attach to their command; a redirect on a compound statement yields a
// command with an empty Name.
func ParseShell(command string) ([]ShellCommand, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var commands []ShellCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		stmt, ok := node.(*syntax.Stmt)
		if !ok {
			return true
		}
		writes := outputRedirects(stmt.Redirs)
		if call, ok := stmt.Cmd.(*syntax.CallExpr); ok {
			if cmd := extractCall(call); cmd != nil {
				cmd.WritesTo = writes
				commands = append(commands, *cmd)
				return true
			}
		}
		if len(writes) > 0 {
			// Redirect on a compound command: { ls; } > f, for ... > f.
			commands = append(commands, ShellCommand{WritesTo: writes})
		}
		return true
	})

	return commands, nil
}

// outputRedirects collects file targets a statement writes to. Redirects
// to /dev/null and fd duplications (2>&1) carry no write of interest.
func outputRedirects(redirs []*syntax.Redirect) []string {
	var targets []string
	for _, r := range redirs {
		switch r.Op {
		case syntax.RdrOut, syntax.AppOut, syntax.RdrAll, syntax.AppAll,
			syntax.ClbOut, syntax.RdrInOut:
		default:
			continue
		}
		target := wordText(r.Word)
		if target == "" || target == "/dev/null" {
			continue
		}
		targets = append(targets, target)
	}
	return targets
}

func extractCall(call *syntax.CallExpr) *ShellCommand {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &ShellCommand{Name: wordText(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}

	for _, arg := range call.Args[1:] {
		text := wordText(arg)
		cmd.Args = append(cmd.Args, text)
		if cmd.Subcommand == "" && !strings.HasPrefix(text, "-") {
			cmd.Subcommand = text
		}
	}

	return cmd
}

func wordText(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			// Command substitution is opaque; mark it dynamic.
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// destructiveNames are commands whose effects are not recoverable.
var destructiveNames = map[string]bool{
	"rm":       true,
	"rmdir":    true,
	"dd":       true,
	"shred":    true,
	"mkfs":     true,
	"truncate": true,
	"sudo":     true,
	"reboot":   true,
	"shutdown": true,
	"halt":     true,
}

// destructiveFragments are raw substrings that force Destructive no matter
// how the line parses.
var destructiveFragments = []string{
	"rm -rf",
	"rm -fr",
	"mkfs",
	":(){",
	"git reset --hard",
	"git clean -f",
	"git push --force",
	"git push -f",
}

// safeNames are read-only commands.
var safeNames = map[string]bool{
	"ls":       true,
	"cat":      true,
	"head":     true,
	"tail":     true,
	"grep":     true,
	"rg":       true,
	"find":     true,
	"pwd":      true,
	"echo":     true,
	"which":    true,
	"wc":       true,
	"du":       true,
	"df":       true,
	"file":     true,
	"stat":     true,
	"env":      true,
	"date":     true,
	"uname":    true,
	"whoami":   true,
	"basename": true,
	"dirname":  true,
	"sort":     true,
	"uniq":     true,
	"diff":     true,
	"tree":     true,
}

// readOnlySubcommands lists subcommands of otherwise mutating commands that
// never change state.
var readOnlySubcommands = map[string]map[string]bool{
	"git": {
		"status": true, "log": true, "diff": true, "show": true,
		"branch": true, "remote": true, "rev-parse": true, "blame": true,
	},
	"go": {
		"version": true, "env": true, "list": true,
	},
	"npm": {
		"ls": true, "view": true, "outdated": true,
	},
	"cargo": {
		"tree": true, "metadata": true,
	},
}

// ClassifyShell grades a shell line. Unparseable lines and unknown commands
// come back Sensitive so the default path is to ask. Classification is a
// pure function of the command string.
func ClassifyShell(command string) DangerClass {
	lowered := strings.ToLower(command)
	for _, frag := range destructiveFragments {
		if strings.Contains(lowered, frag) {
			return Destructive
		}
	}

	commands, err := ParseShell(command)
	if err != nil || len(commands) == 0 {
		return Sensitive
	}

	class := Safe
	for _, cmd := range commands {
		switch {
		case cmd.Name == "":
			// bare redirect on a compound statement
		case destructiveNames[cmd.Name]:
			return Destructive
		case safeNames[cmd.Name]:
			// stays at current class
		case readOnlySubcommands[cmd.Name] != nil && readOnlySubcommands[cmd.Name][cmd.Subcommand]:
			// read-only subcommand of a mutating command
		default:
			if class < Sensitive {
				class = Sensitive
			}
		}
		// A redirected write mutates the target file even when the
		// command itself is read-only: ls > ~/.bashrc is never Safe,
		// and writing a device node is never recoverable.
		for _, target := range cmd.WritesTo {
			if strings.HasPrefix(target, "/dev/") {
				return Destructive
			}
		}
		if len(cmd.WritesTo) > 0 && class < Sensitive {
			class = Sensitive
		}
	}

	return class
}

// ShellScope derives the permission scope pattern for a shell line:
// "git commit *" for "git commit -m msg", "ls *" for "ls -la". Multi-command
// lines scope to the full set of patterns joined in order, so a compound
// line never inherits a grant made for one of its parts alone.
func ShellScope(command string) string {
	commands, err := ParseShell(command)
	if err != nil || len(commands) == 0 {
		return strings.TrimSpace(command)
	}

	seen := make(map[string]bool)
	var patterns []string
	for _, cmd := range commands {
		p := commandPattern(cmd)
		if !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}

	return strings.Join(patterns, " && ")
}

func commandPattern(cmd ShellCommand) string {
	var base string
	switch {
	case cmd.Name == "":
		// bare redirect on a compound statement
	case cmd.Subcommand != "" && !strings.HasPrefix(cmd.Subcommand, "$"):
		base = cmd.Name + " " + cmd.Subcommand + " *"
	case len(cmd.Args) == 0:
		base = cmd.Name
	default:
		base = cmd.Name + " *"
	}

	// Redirect targets are part of the scope: a grant for "ls" never
	// covers "ls > ~/.bashrc", and each target earns its own grant.
	for _, target := range cmd.WritesTo {
		if base != "" {
			base += " "
		}
		base += "> " + target
	}
	return base
}

