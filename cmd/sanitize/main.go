// Command sanitize reads HTML from standard input and writes the sanitized
// HTML to standard output. URLs are passed through unmodified.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"quickmail/internal/sanitize"
)

var flagpolicy string

func init() {
	flag.StringVar(&flagpolicy, "policy", "ugc", "allow-list to apply: ugc or strict")
}

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(os.Stdin, os.Stdout, flagpolicy); err != nil {
		logger.Error("sanitize failed", "error", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, policy string) error {
	var s *sanitize.Sanitizer
	switch policy {
	case "ugc":
		s = sanitize.Default()
	case "strict":
		s = sanitize.Strict()
	default:
		return fmt.Errorf("unknown policy %q", policy)
	}
	return s.SanitizeReader(in, out, sanitize.Identity)
}
