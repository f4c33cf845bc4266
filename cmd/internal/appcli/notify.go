// ABOUTME: Terminal notification sink for sync outcomes.
// ABOUTME: Maps severities to colored output on stderr.
package appcli

import (
	"os"

	"github.com/fatih/color"

	"github.com/stanyfernando/wyrdledger/offline"
)

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

// ColorNotifier prints sync notifications to stderr, colored by severity.
func ColorNotifier(sev offline.Severity, msg string) {
	c := infoColor
	switch sev {
	case offline.SeveritySuccess:
		c = successColor
	case offline.SeverityWarning:
		c = warningColor
	case offline.SeverityError:
		c = errorColor
	}
	_, _ = c.Fprintln(os.Stderr, msg)
}
