package build

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Bundler concatenates the files a build block references and minifies
// the result.
type Bundler struct {
	root   string
	roots  []string
	minify bool
}

// NewBundler resolves references against the given directories, tried
// in order, each relative to root.
func NewBundler(root string, minify bool, searchRoots ...string) *Bundler {
	return &Bundler{root: root, roots: searchRoots, minify: minify}
}

// Resolve finds the file a document reference points at. The block's
// alternate search paths are tried before the bundler's own roots.
func (b *Bundler) Resolve(ref string, alt []string) (string, error) {
	clean := path.Clean("/" + strings.SplitN(strings.SplitN(ref, "?", 2)[0], "#", 2)[0])
	clean = strings.TrimPrefix(clean, "/")

	for _, dir := range append(append([]string(nil), alt...), b.roots...) {
		candidate := filepath.Join(b.root, filepath.FromSlash(dir), filepath.FromSlash(clean))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("cannot resolve %q", ref)
}

// Bundle builds the content of one block.
func (b *Bundler) Bundle(block Block) ([]byte, error) {
	var buf bytes.Buffer
	for _, ref := range block.Refs {
		file, err := b.Resolve(ref, block.Alt)
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", ref, err)
		}
		buf.Write(content)
		if block.Type == "js" {
			buf.WriteString(";\n")
		} else {
			buf.WriteString("\n")
		}
	}

	if !b.minify {
		return buf.Bytes(), nil
	}
	if block.Type == "css" {
		return MinifyCSS(buf.Bytes(), block.Output)
	}
	return MinifyJS(buf.Bytes(), block.Output)
}

// MinifyJS minifies a script. Identifiers keep their names, since
// Angular resolves injected services by parameter name.
func MinifyJS(src []byte, name string) ([]byte, error) {
	return transform(src, name, api.LoaderJS)
}

// MinifyCSS minifies a stylesheet.
func MinifyCSS(src []byte, name string) ([]byte, error) {
	return transform(src, name, api.LoaderCSS)
}

func transform(src []byte, name string, loader api.Loader) ([]byte, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Loader:            loader,
		Sourcefile:        name,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: false,
		LegalComments:     api.LegalCommentsEndOfFile,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		m := result.Errors[0]
		if m.Location != nil {
			return nil, fmt.Errorf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column+1, m.Text)
		}
		return nil, fmt.Errorf("%s: %s", name, m.Text)
	}
	return result.Code, nil
}
