// pkg/process/quote.go - command line quoting for launched processes

package process

import "strings"

// QuoteParam wraps p in double quotes for a Windows command line. Embedded
// quotes are doubled. Backslashes directly before a quote, including the
// closing one, are doubled so they are not read as escapes.
func QuoteParam(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 2)
	b.WriteByte('"')
	backslashes := 0
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '\\':
			backslashes++
			b.WriteByte(c)
			continue
		case '"':
			b.WriteString(strings.Repeat(`\`, backslashes))
			b.WriteString(`""`)
		default:
			b.WriteByte(c)
		}
		backslashes = 0
	}
	b.WriteString(strings.Repeat(`\`, backslashes))
	b.WriteByte('"')
	return b.String()
}

// AddQuotedParameter appends the quoted p to cmdline, separated by a single space.
func AddQuotedParameter(cmdline, p string) string {
	if cmdline == "" {
		return QuoteParam(p)
	}
	return cmdline + " " + QuoteParam(p)
}

// QuoteParams joins params into one Windows parameter string.
func QuoteParams(params []string) string {
	var cmdline string
	for _, p := range params {
		cmdline = AddQuotedParameter(cmdline, p)
	}
	return cmdline
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellCommand joins name and args into one POSIX shell command.
func ShellCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellQuote(name))
	for _, a := range args {
		parts = append(parts, ShellQuote(a))
	}
	return strings.Join(parts, " ")
}

// appleScriptQuote quotes s as an AppleScript string literal.
func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
