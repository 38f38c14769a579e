package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// Expand replaces variables in a string with their values.
// Supported variables:
//   - ${USER}     - current username
//   - ${HOME}     - user's home directory
//   - ${HOSTNAME} - this machine's hostname
func Expand(s string) string {
	if s == "" {
		return s
	}

	result := s

	if strings.Contains(result, "${USER}") {
		result = strings.ReplaceAll(result, "${USER}", getUser())
	}

	if strings.Contains(result, "${HOME}") {
		result = strings.ReplaceAll(result, "${HOME}", getHome())
	}

	if strings.Contains(result, "${HOSTNAME}") {
		result = strings.ReplaceAll(result, "${HOSTNAME}", getHostname())
	}

	return result
}

// ExpandPath applies Expand and then ExpandTilde.
func ExpandPath(path string) string {
	return ExpandTilde(Expand(path))
}

func getUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func getHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "~"
	}
	return home
}

func getHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}
