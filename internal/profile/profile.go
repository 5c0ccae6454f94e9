// Package profile describes the portfolio owner: what the page shows and the
// system prompt the assistant speaks from.
package profile

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultProfile []byte

var ErrNoSystemPrompt = errors.New("profile has no system prompt")

type Social struct {
	GitHub   string `yaml:"github" json:"github,omitempty"`
	LinkedIn string `yaml:"linkedin" json:"linkedin,omitempty"`
	Website  string `yaml:"website" json:"website,omitempty"`
}

type Profile struct {
	Name               string   `yaml:"name" json:"name"`
	Title              string   `yaml:"title" json:"title"`
	Location           string   `yaml:"location" json:"location,omitempty"`
	Email              string   `yaml:"email" json:"email,omitempty"`
	Bio                string   `yaml:"bio" json:"bio"`
	Skills             []string `yaml:"skills" json:"skills"`
	Social             Social   `yaml:"social" json:"social"`
	SuggestedQuestions []string `yaml:"suggested_questions" json:"suggested_questions"`
	SystemPrompt       string   `yaml:"system_prompt" json:"-"`
}

// Default returns the profile compiled into the binary.
func Default() (Profile, error) {
	return Parse(defaultProfile)
}

// Load reads a profile from path, or the built-in one when path is empty.
func Load(path string) (Profile, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "read profile %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "profile %s", path)
	}
	return p, nil
}

func Parse(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrap(err, "decode profile yaml")
	}
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	if p.SystemPrompt == "" {
		return Profile{}, ErrNoSystemPrompt
	}
	return p, nil
}

// Initials is used as the avatar fallback on the page.
func (p Profile) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(p.Name) {
		r := []rune(part)
		b.WriteRune(r[0])
	}
	return strings.ToUpper(b.String())
}
