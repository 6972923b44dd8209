// Package utils contains useful one-off tools for implementing runners.
package utils

import (
	"fmt"
	"io"
	"os"
)

var exit = os.Exit

// ErrOut is just a simple way to barf out info before exiting.
func ErrOut(err interface{}) {
	errOut(os.Stderr, err)
	exit(1)
}

func errOut(w io.Writer, err interface{}) {
	fmt.Fprintf(w, "Fatal error during runner bootstrap: %v\n", err)
}
