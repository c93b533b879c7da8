// Package diag reports warning-level diagnostics: indirect branch ignored,
// external call ignored, loop with no discoverable exit, and the like.
// Warnings go to stderr and never stop the computation.
package diag

import (
	"fmt"
	"io"
	"os"
)

// Out is the writer warnings are sent to; overridable by tests.
var Out io.Writer = os.Stderr

// Warnf logs a warning; computation continues.
func Warnf(format string, args ...any) {
	fmt.Fprintf(Out, "warning: "+format+"\n", args...)
}
