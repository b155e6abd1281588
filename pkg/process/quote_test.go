package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteParam(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`He said "hi"`, `"He said ""hi"""`},
		{`C:\Program Files\App`, `"C:\Program Files\App"`},
		{`C:\dir\`, `"C:\dir\\"`},
		{`a\"b`, `"a\\""b"`},
		{``, `""`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteParam(tt.in))
		})
	}
}

func TestAddQuotedParameter(t *testing.T) {
	cmdline := AddQuotedParameter("", `C:\app`)
	cmdline = AddQuotedParameter(cmdline, "")
	cmdline = AddQuotedParameter(cmdline, `He said "hi"`)
	assert.Equal(t, `"C:\app" "" "He said ""hi"""`, cmdline)

	assert.Equal(t, cmdline, QuoteParams([]string{`C:\app`, "", `He said "hi"`}))
}

func TestShellQuoting(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, ShellQuote("it's"))
	assert.Equal(t, `'/opt/do_install' '/opt/my app' ''`, ShellCommand("/opt/do_install", []string{"/opt/my app", ""}))
	assert.Equal(t, `"say \"hi\" \\ bye"`, appleScriptQuote(`say "hi" \ bye`))
}
