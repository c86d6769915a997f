// file: internal/server/language.go
// version: 1.0.0
// guid: 8a3f6c1d-9e4b-4d7a-b2c8-5f0e3a9d6b27

package server

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// languageName turns a language code ("eng", "fr") into an English display
// name. Unparseable codes are shown as-is.
func languageName(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
