// Package seed reads the YAML list of bookmarks added at startup.
package seed

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one seed bookmark in the YAML file
type Entry struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	PhotoURL    string   `yaml:"photoUrl"`
	Lat         *float64 `yaml:"lat"`
	Lon         *float64 `yaml:"lon"`
	CreatedAt   string   `yaml:"createdAt"`
}

// File is the root structure of the seed file
type File struct {
	Bookmarks []Entry `yaml:"bookmarks"`
}

// Loader handles loading and parsing of the seed file
type Loader struct {
	filePath string
}

// NewLoader creates a new seed loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the seed file
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(markTemplateVariables(data), &f); err != nil {
		return File{}, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	for i := range f.Bookmarks {
		f.Bookmarks[i].expand()
	}
	return f, nil
}

var (
	templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	markerVar   = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// markTemplateVariables rewrites {{VAR}} as ${VAR} before parsing. A bare
// "{{" opens a YAML flow mapping, "${" is plain scalar text.
func markTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`$${$1}`))
}

// expandVariables replaces ${VAR} with the environment value.
// Unset variables become "".
// Example: ${STORYSHELF_CDN}/a.jpg -> https://cdn.example/a.jpg
func expandVariables(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return markerVar.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(markerVar.FindStringSubmatch(m)[1])
	})
}

func (e *Entry) expand() {
	for _, field := range []*string{&e.ID, &e.Name, &e.Description, &e.PhotoURL, &e.CreatedAt} {
		*field = expandVariables(*field)
	}
}
