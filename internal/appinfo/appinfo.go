// Package appinfo generates appinfo.js, which exposes the application
// name and version to the browser as window.appInfo.
package appinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	gerrors "github.com/olivejs/ginger/internal/errors"
)

// FileName is the generated script name.
const FileName = "appinfo.js"

// Info is the build information published to the page.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title"`
}

// Read loads name and version from package.json in root, falling back
// to bower.json. Missing fields default to the directory name and
// "0.0.0".
func Read(root string) (Info, error) {
	var info Info
	for _, name := range []string{"package.json", "bower.json"} {
		data, err := os.ReadFile(filepath.Join(root, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return Info{}, gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "reading "+name, err)
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return Info{}, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "parsing "+name, err)
		}
		break
	}

	if info.Name == "" {
		info.Name = filepath.Base(root)
	}
	if info.Version == "" {
		info.Version = "0.0.0"
	}
	info.Title = Title(info.Name)
	return info, nil
}

// Title turns a package name such as "seed-angular" into "Seed Angular".
func Title(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Script renders the browser script.
func Script(info Info) ([]byte, error) {
	payload, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "(function(window) {\n  'use strict';\n  window.appInfo = %s;\n})(this);\n", payload), nil
}

// Write generates the script into dir and returns its path.
func Write(info Info, dir string) (string, error) {
	script, err := Script(info)
	if err != nil {
		return "", gerrors.NewInternalError(gerrors.ErrCodeInternalError, "encoding app info", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "creating "+dir, err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, script, 0o644); err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "writing "+path, err)
	}
	return path, nil
}
