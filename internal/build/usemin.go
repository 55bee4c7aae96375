package build

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Block is a <!-- build:<type>(<alt>) <output> --> ... <!-- endbuild -->
// region of the root document. Every file it references is concatenated
// into Output.
type Block struct {
	Type   string
	Alt    []string
	Output string
	Refs   []string

	start, end int
}

var blockRe = regexp.MustCompile(`(?s)<!--\s*build:(css|js)(?:\(([^)]*)\))?\s+(\S+)\s*-->(.*?)<!--\s*endbuild\s*-->`)

// ParseBlocks finds the build blocks of doc in document order.
func ParseBlocks(doc []byte) []Block {
	var blocks []Block
	for _, m := range blockRe.FindAllSubmatchIndex(doc, -1) {
		b := Block{
			Type:   string(doc[m[2]:m[3]]),
			Output: string(doc[m[6]:m[7]]),
			start:  m[0],
			end:    m[1],
		}
		if m[4] >= 0 {
			for _, alt := range strings.Split(string(doc[m[4]:m[5]]), ",") {
				if alt = strings.TrimSpace(alt); alt != "" {
					b.Alt = append(b.Alt, alt)
				}
			}
		}
		b.Refs = references(doc[m[8]:m[9]], b.Type)
		blocks = append(blocks, b)
	}
	return blocks
}

// Tag renders the single element that replaces the block.
func (b Block) Tag(ref string) string {
	if b.Type == "css" {
		return `<link rel="stylesheet" href="` + html.EscapeString(ref) + `">`
	}
	return `<script src="` + html.EscapeString(ref) + `"></script>`
}

// ReplaceBlocks substitutes every block with the text render returns.
func ReplaceBlocks(doc []byte, blocks []Block, render func(Block) string) []byte {
	var out bytes.Buffer
	last := 0
	for _, b := range blocks {
		out.Write(doc[last:b.start])
		out.WriteString(render(b))
		last = b.end
	}
	out.Write(doc[last:])
	return out.Bytes()
}

// references lists the script sources or stylesheet hrefs in fragment.
// Commented-out tags are skipped.
func references(fragment []byte, kind string) []string {
	var refs []string
	z := html.NewTokenizer(bytes.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return refs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		switch {
		case kind == "js" && tok.DataAtom == atom.Script:
			if src := attr(tok, "src"); src != "" {
				refs = append(refs, src)
			}
		case kind == "css" && tok.DataAtom == atom.Link && strings.EqualFold(attr(tok, "rel"), "stylesheet"):
			if href := attr(tok, "href"); href != "" {
				refs = append(refs, href)
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
