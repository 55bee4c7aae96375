package build

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
)

// Manifest maps original asset paths to their hashed names, as written
// to rev-manifest.json.
type Manifest map[string]string

// RevName inserts a content hash before the extension:
// scripts/app.js becomes scripts/app-1a2b3c4d.js.
func RevName(name string, content []byte) string {
	ext := path.Ext(name)
	sum := fmt.Sprintf("%016x", xxhash.Sum64(content))[:10]
	return strings.TrimSuffix(name, ext) + "-" + sum + ext
}

var refAttrs = map[string]bool{"src": true, "href": true}

// RewriteReferences replaces src and href attribute values found in the
// manifest. Everything else in the document is copied byte for byte.
func RewriteReferences(doc []byte, manifest Manifest) ([]byte, error) {
	var out bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return out.Bytes(), nil
		}
		raw := append([]byte(nil), z.Raw()...)
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		tok := z.Token()
		changed := false
		for i, a := range tok.Attr {
			if !refAttrs[a.Key] {
				continue
			}
			key := strings.TrimPrefix(a.Val, "/")
			if hashed, ok := manifest[key]; ok {
				prefix := strings.TrimSuffix(a.Val, key)
				tok.Attr[i].Val = prefix + hashed
				changed = true
			}
		}
		if !changed {
			out.Write(raw)
			continue
		}
		out.WriteString(tok.String())
	}
}
