// Package render turns assistant markdown into HTML for the page and into
// styled text for the terminal.
package render

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
)

var (
	loneBullet   = regexp.MustCompile(`(?m)^•[ \t]*$`)
	bulletItem   = regexp.MustCompile(`(?m)^•[ \t]+(.+)$`)
	extraNewline = regexp.MustCompile(`\n{3,}`)
)

// Normalize fixes what models commonly get wrong in markdown: "•" bullets
// instead of list items, and runs of blank lines.
func Normalize(md string) string {
	md = loneBullet.ReplaceAllString(md, "")
	md = bulletItem.ReplaceAllString(md, "- $1")
	return extraNewline.ReplaceAllString(md, "\n\n")
}

func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", errors.Wrap(err, "convert markdown")
	}
	return buf.String(), nil
}

// Terminal renders md for a terminal of the given options. Rendering errors
// fall back to the raw text so a reply is never lost.
func Terminal(md string, opts Options) string {
	out, err := Markdown(Normalize(md), opts)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
