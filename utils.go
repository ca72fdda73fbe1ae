package main

import (
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// envKeyReplacer maps nested config keys such as speech.provider to
// ASMRGEN_SPEECH_PROVIDER.
var envKeyReplacer = strings.NewReplacer(".", "_")

// expandPath expands tilde and all environment variables from the given path.
func expandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}
