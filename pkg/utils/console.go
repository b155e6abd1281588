// pkg/utils/console.go - console helpers shared by the helper executables

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// stdinIsTerminal is swapped in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PauseOnFailure keeps an interactive console open until Enter is pressed so
// the failure message stays readable. It returns at once when stdin is not a
// terminal.
func PauseOnFailure(in io.Reader, out io.Writer, code int) {
	if !stdinIsTerminal() {
		return
	}
	fmt.Fprintf(out, "Failed with exit code %d. Press Enter to close this window...", code)
	_, _ = bufio.NewReader(in).ReadString('\n')
}
