// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doctree converts HTML into a small normalized document tree that
// the markdown serializer renders. Embeds are kept as raw nodes whose text
// is copied to the output verbatim.
package doctree

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Kind separates nodes the serializer formats from nodes it copies as-is.
type Kind int

const (
	KindBlock Kind = iota
	KindInline
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindInline:
		return "inline"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Type names the element a node represents.
type Type string

// Block types.
const (
	TypeRoot          Type = "root"
	TypeHeading       Type = "heading"
	TypeParagraph     Type = "paragraph"
	TypeList          Type = "list"
	TypeListItem      Type = "listItem"
	TypeBlockquote    Type = "blockquote"
	TypeCode          Type = "code"
	TypeThematicBreak Type = "thematicBreak"
)

// Inline types.
const (
	TypeText       Type = "text"
	TypeEmphasis   Type = "emphasis"
	TypeStrong     Type = "strong"
	TypeInlineCode Type = "inlineCode"
	TypeLink       Type = "link"
	TypeImage      Type = "image"
	TypeBreak      Type = "break"
)

// TypeEmbed is the only raw type: an embed target emitted on its own line.
const TypeEmbed Type = "embed"

// EmbedClass marks an <img> whose src is an embed target rather than an
// image asset.
const EmbedClass = "hlx-embed"

// Node is one element of a document tree.
type Node struct {
	Kind Kind
	Type Type

	// Value holds text for text, code, inlineCode and raw nodes.
	Value string
	// Depth is the heading level, 1 to 6.
	Depth int
	// Ordered and Start describe lists.
	Ordered bool
	Start   int
	// Lang is the info string of a code block.
	Lang string
	// URL, Title and Alt describe links and images.
	URL   string
	Title string
	Alt   string

	Children []*Node
}

// Reference is a resource locator found in a tree.
type Reference struct {
	Literal string
	// Embed is set for raw embed targets, which are not binary assets.
	Embed bool
}

// Block returns a block node of type t.
func Block(t Type, children ...*Node) *Node {
	return &Node{Kind: KindBlock, Type: t, Children: children}
}

// Inline returns an inline node of type t.
func Inline(t Type, children ...*Node) *Node {
	return &Node{Kind: KindInline, Type: t, Children: children}
}

// Text returns an inline text node.
func Text(s string) *Node {
	return &Node{Kind: KindInline, Type: TypeText, Value: s}
}

// Image returns an inline image node.
func Image(src, alt string) *Node {
	return &Node{Kind: KindInline, Type: TypeImage, URL: src, Alt: alt}
}

// Embed returns a raw embed node for target.
func Embed(target string) *Node {
	return &Node{Kind: KindRaw, Type: TypeEmbed, Value: target}
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// References returns the image sources and embed targets under root in
// document order. Duplicates are kept.
func References(root *Node) []Reference {
	var refs []Reference
	Walk(root, func(n *Node) bool {
		switch {
		case n.Kind == KindRaw && n.Type == TypeEmbed:
			if n.Value != "" {
				refs = append(refs, Reference{Literal: n.Value, Embed: true})
			}
		case n.Type == TypeImage:
			if n.URL != "" {
				refs = append(refs, Reference{Literal: n.URL})
			}
		}
		return true
	})
	return refs
}

// FromHTML parses an HTML document or fragment and converts its body.
func FromHTML(src string) (*Node, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	body := findFirst(doc, "body")
	if body == nil {
		body = doc
	}
	return FromNode(body), nil
}

// FromNode converts the children of n into a root node.
func FromNode(n *html.Node) *Node {
	root := Block(TypeRoot)
	root.Children = blocks(n)
	return root
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"body": true, "center": true, "dd": true, "details": true, "div": true,
	"dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"html": true, "li": true, "main": true, "ol": true, "p": true,
	"pre": true, "section": true, "summary": true, "table": true,
	"tbody": true, "td": true, "tfoot": true, "th": true, "thead": true,
	"tr": true, "ul": true,
}

var droppedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"footer": true, "iframe": true, "template": true, "head": true,
	"button": true, "svg": true, "form": true, "input": true,
}

func dropped(n *html.Node) bool {
	if n.Type == html.ElementNode {
		return droppedTags[n.Data]
	}
	return n.Type != html.TextNode
}

// blocks converts the children of n. Runs of inline content between block
// children become implicit paragraphs.
func blocks(n *html.Node) []*Node {
	var out []*Node
	var para *Node
	flush := func() {
		if para != nil {
			para.Children = trimInline(para.Children)
			if len(para.Children) > 0 {
				out = append(out, para)
			}
		}
		para = nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if dropped(c) {
			continue
		}
		if c.Type == html.ElementNode && blockTags[c.Data] {
			flush()
			out = append(out, block(c)...)
			continue
		}
		if isEmbed(c) {
			flush()
			if src := attr(c, "src"); src != "" {
				out = append(out, Embed(src))
			}
			continue
		}
		if para == nil {
			para = Block(TypeParagraph)
		}
		para.Children = append(para.Children, inline(c)...)
	}
	flush()
	return out
}

func block(n *html.Node) []*Node {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		h := Block(TypeHeading, trimInline(inlines(n))...)
		h.Depth = int(n.Data[1] - '0')
		if len(h.Children) == 0 {
			return nil
		}
		return []*Node{h}
	case "p":
		return paragraphs(n)
	case "ul", "ol":
		list := Block(TypeList)
		list.Ordered = n.Data == "ol"
		list.Start = 1
		if s, err := strconv.Atoi(attr(n, "start")); err == nil {
			list.Start = s
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.Data != "li" {
				continue
			}
			list.Children = append(list.Children, Block(TypeListItem, blocks(c)...))
		}
		if len(list.Children) == 0 {
			return nil
		}
		return []*Node{list}
	case "blockquote":
		return []*Node{Block(TypeBlockquote, blocks(n)...)}
	case "pre":
		code := Block(TypeCode)
		code.Value = strings.TrimSuffix(textContent(n), "\n")
		if c := findFirst(n, "code"); c != nil {
			code.Lang = language(c)
		}
		return []*Node{code}
	case "hr":
		return []*Node{Block(TypeThematicBreak)}
	case "table":
		return tableRows(n)
	default:
		return blocks(n)
	}
}

// paragraphs converts a <p>. Embeds inside it are lifted out as raw nodes
// between the surrounding text.
func paragraphs(n *html.Node) []*Node {
	var out []*Node
	para := Block(TypeParagraph)
	flush := func() {
		para.Children = trimInline(para.Children)
		if len(para.Children) > 0 {
			out = append(out, para)
		}
		para = Block(TypeParagraph)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isEmbed(c) {
			flush()
			if src := attr(c, "src"); src != "" {
				out = append(out, Embed(src))
			}
			continue
		}
		if dropped(c) {
			continue
		}
		para.Children = append(para.Children, inline(c)...)
	}
	flush()
	return out
}

// tableRows renders each row as a paragraph with cells separated by " | ".
func tableRows(n *html.Node) []*Node {
	var out []*Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				walk(c)
			case "tr":
				row := Block(TypeParagraph)
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode || (cell.Data != "td" && cell.Data != "th") {
						continue
					}
					content := trimInline(inlines(cell))
					if len(content) == 0 {
						continue
					}
					if len(row.Children) > 0 {
						row.Children = append(row.Children, Text(" | "))
					}
					row.Children = append(row.Children, content...)
				}
				if len(row.Children) > 0 {
					out = append(out, row)
				}
			}
		}
	}
	walk(n)
	return out
}

func inlines(n *html.Node) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if dropped(c) {
			continue
		}
		out = append(out, inline(c)...)
	}
	return out
}

func inline(n *html.Node) []*Node {
	if n.Type == html.TextNode {
		s := collapseSpace(n.Data)
		if s == "" {
			return nil
		}
		return []*Node{Text(s)}
	}
	switch n.Data {
	case "em", "i", "cite":
		return wrap(TypeEmphasis, inlines(n))
	case "strong", "b":
		return wrap(TypeStrong, inlines(n))
	case "code", "kbd", "samp", "tt":
		v := strings.TrimSpace(textContent(n))
		if v == "" {
			return nil
		}
		return []*Node{{Kind: KindInline, Type: TypeInlineCode, Value: v}}
	case "a":
		children := inlines(n)
		href := attr(n, "href")
		if href == "" {
			return children
		}
		link := Inline(TypeLink, children...)
		link.URL = href
		link.Title = attr(n, "title")
		return []*Node{link}
	case "img":
		src := attr(n, "src")
		if src == "" {
			return nil
		}
		if isEmbed(n) {
			return []*Node{Embed(src)}
		}
		img := Image(src, attr(n, "alt"))
		img.Title = attr(n, "title")
		return []*Node{img}
	case "br":
		return []*Node{Inline(TypeBreak)}
	case "hr":
		return nil
	default:
		return inlines(n)
	}
}

func wrap(t Type, children []*Node) []*Node {
	if len(children) == 0 {
		return nil
	}
	return []*Node{Inline(t, children...)}
}

// trimInline removes leading and trailing whitespace from a run of inline
// nodes and drops text nodes left empty.
func trimInline(nodes []*Node) []*Node {
	for len(nodes) > 0 {
		first := nodes[0]
		if first.Type == TypeBreak {
			nodes = nodes[1:]
			continue
		}
		if first.Type != TypeText {
			break
		}
		first.Value = strings.TrimLeft(first.Value, " ")
		if first.Value != "" {
			break
		}
		nodes = nodes[1:]
	}
	for len(nodes) > 0 {
		last := nodes[len(nodes)-1]
		if last.Type == TypeBreak {
			nodes = nodes[:len(nodes)-1]
			continue
		}
		if last.Type != TypeText {
			break
		}
		last.Value = strings.TrimRight(last.Value, " ")
		if last.Value != "" {
			break
		}
		nodes = nodes[:len(nodes)-1]
	}
	return nodes
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			return
		}
		if cur.Type == html.ElementNode && cur.Data == "br" {
			b.WriteByte('\n')
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func language(n *html.Node) string {
	for _, cls := range strings.Fields(attr(n, "class")) {
		if l, ok := strings.CutPrefix(cls, "language-"); ok {
			return l
		}
		if l, ok := strings.CutPrefix(cls, "lang-"); ok {
			return l
		}
	}
	return ""
}

func isEmbed(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "img" && hasClass(n, EmbedClass)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirst(c, tag); f != nil {
			return f
		}
	}
	return nil
}
