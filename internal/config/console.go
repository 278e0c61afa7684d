package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dwizi/rescue-console/internal/permissions"
)

var ErrInvalidConsoleFile = errors.New("invalid console file")

// ConsoleFile is the live-reloadable part of the configuration.
type ConsoleFile struct {
	Prefix      string                   `yaml:"prefix"`
	Permissions []permissions.Definition `yaml:"permissions"`
}

// DefaultConsoleFile is used when no console file is configured.
func DefaultConsoleFile(prefix string) ConsoleFile {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "!"
	}
	return ConsoleFile{Prefix: prefix, Permissions: permissions.DefaultDefinitions()}
}

// LoadConsoleFile reads and validates path. An empty path yields the
// defaults with fallbackPrefix.
func LoadConsoleFile(path, fallbackPrefix string) (ConsoleFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultConsoleFile(fallbackPrefix), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ConsoleFile{}, fmt.Errorf("read console file: %w", err)
	}
	return ParseConsoleFile(data, fallbackPrefix)
}

func ParseConsoleFile(data []byte, fallbackPrefix string) (ConsoleFile, error) {
	var file ConsoleFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return ConsoleFile{}, fmt.Errorf("%w: %v", ErrInvalidConsoleFile, err)
	}
	file.Prefix = strings.TrimSpace(file.Prefix)
	if file.Prefix == "" {
		file.Prefix = strings.TrimSpace(fallbackPrefix)
	}
	if file.Prefix == "" {
		file.Prefix = "!"
	}
	if strings.ContainsAny(file.Prefix, " \t") {
		return ConsoleFile{}, fmt.Errorf("%w: prefix %q contains whitespace", ErrInvalidConsoleFile, file.Prefix)
	}
	if len(file.Permissions) == 0 {
		file.Permissions = permissions.DefaultDefinitions()
	}
	if _, err := permissions.NewModel(file.Permissions); err != nil {
		return ConsoleFile{}, fmt.Errorf("%w: %w", ErrInvalidConsoleFile, err)
	}
	return file, nil
}
