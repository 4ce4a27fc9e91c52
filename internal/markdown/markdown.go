// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markdown renders a doctree as CommonMark. Lists use "-" bullets
// and incrementing ordered markers, code blocks use backtick fences, and
// thematic breaks are "---". Raw nodes are copied without escaping and image
// destinations are written exactly as they appear in the tree so later
// passes can find and rewrite them.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/blog-importer/internal/doctree"
)

// Serialize renders root. The result ends with a single newline, or is
// empty for an empty tree.
func Serialize(root *doctree.Node) string {
	if root == nil {
		return ""
	}
	var out string
	if root.Type == doctree.TypeRoot {
		out = blocks(root.Children)
	} else {
		out = blocks([]*doctree.Node{root})
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

// blocks renders sibling blocks separated by blank lines. Consecutive
// inline nodes at block level are rendered as one paragraph.
func blocks(nodes []*doctree.Node) string {
	var parts []string
	var run []*doctree.Node
	flush := func() {
		if len(run) > 0 {
			if s := paragraph(run); s != "" {
				parts = append(parts, s)
			}
			run = nil
		}
	}
	for _, n := range nodes {
		if n.Kind == doctree.KindInline {
			run = append(run, n)
			continue
		}
		flush()
		if s := block(n); s != "" {
			parts = append(parts, s)
		}
	}
	flush()
	return strings.Join(parts, "\n\n")
}

func block(n *doctree.Node) string {
	if n.Kind == doctree.KindRaw {
		return n.Value
	}
	switch n.Type {
	case doctree.TypeRoot:
		return blocks(n.Children)
	case doctree.TypeHeading:
		depth := min(max(n.Depth, 1), 6)
		return strings.Repeat("#", depth) + " " + strings.ReplaceAll(inlines(n.Children), "\n", " ")
	case doctree.TypeParagraph:
		return paragraph(n.Children)
	case doctree.TypeList:
		return list(n)
	case doctree.TypeListItem:
		return blocks(n.Children)
	case doctree.TypeBlockquote:
		return prefixLines(blocks(n.Children), "> ", ">")
	case doctree.TypeCode:
		fence := fenceFor(n.Value)
		return fence + n.Lang + "\n" + n.Value + "\n" + fence
	case doctree.TypeThematicBreak:
		return "---"
	default:
		return blocks(n.Children)
	}
}

func paragraph(children []*doctree.Node) string {
	s := inlines(children)
	if strings.TrimSpace(s) == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = escapeLineStart(l)
	}
	return strings.Join(lines, "\n")
}

func list(n *doctree.Node) string {
	start := n.Start
	if n.Ordered && start == 0 {
		start = 1
	}
	items := make([]string, 0, len(n.Children))
	for i, item := range n.Children {
		marker := "-"
		if n.Ordered {
			marker = fmt.Sprintf("%d.", start+i)
		}
		body := block(item)
		if item.Type != doctree.TypeListItem {
			body = blocks([]*doctree.Node{item})
		}
		indent := strings.Repeat(" ", len(marker)+1)
		if body == "" {
			items = append(items, marker)
			continue
		}
		items = append(items, marker+" "+prefixRest(body, indent))
	}
	return strings.Join(items, "\n")
}

func inlines(nodes []*doctree.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(inline(n))
	}
	return b.String()
}

func inline(n *doctree.Node) string {
	if n.Kind == doctree.KindRaw {
		return n.Value
	}
	switch n.Type {
	case doctree.TypeText:
		return escape(n.Value)
	case doctree.TypeEmphasis:
		return "_" + inlines(n.Children) + "_"
	case doctree.TypeStrong:
		return "**" + inlines(n.Children) + "**"
	case doctree.TypeInlineCode:
		return codeSpan(n.Value)
	case doctree.TypeBreak:
		return "\\\n"
	case doctree.TypeLink:
		text := inlines(n.Children)
		if text == "" {
			text = escape(n.URL)
		}
		return "[" + text + "](" + destination(n.URL) + title(n.Title) + ")"
	case doctree.TypeImage:
		return "![" + escape(n.Alt) + "](" + destination(n.URL) + title(n.Title) + ")"
	default:
		return inlines(n.Children)
	}
}

// destination writes a link or image target verbatim, wrapped in angle
// brackets when it would otherwise end the destination early.
func destination(url string) string {
	if url == "" {
		return "<>"
	}
	if strings.ContainsAny(url, " ()\t") {
		return "<" + url + ">"
	}
	return url
}

func title(t string) string {
	if t == "" {
		return ""
	}
	return ` "` + strings.ReplaceAll(t, `"`, `\"`) + `"`
}

func codeSpan(v string) string {
	ticks := "`"
	for strings.Contains(v, ticks) {
		ticks += "`"
	}
	if strings.HasPrefix(v, "`") || strings.HasSuffix(v, "`") {
		v = " " + v + " "
	}
	return ticks + v + ticks
}

func fenceFor(code string) string {
	fence := "```"
	for strings.Contains(code, fence) {
		fence += "`"
	}
	return fence
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
)

func escape(s string) string {
	return textEscaper.Replace(s)
}

var (
	orderedStart = regexp.MustCompile(`^(\d{1,9})([.)])(\s|$)`)
	setextLine   = regexp.MustCompile(`^(=+|-+)\s*$`)
)

// escapeLineStart escapes characters that would turn a paragraph line into
// a heading, quote, list item or setext underline.
func escapeLineStart(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	lead := line[:len(line)-len(trimmed)]
	switch {
	case trimmed == "":
		return line
	case setextLine.MatchString(trimmed):
		return lead + `\` + trimmed
	case strings.HasPrefix(trimmed, "#"), strings.HasPrefix(trimmed, ">"):
		return lead + `\` + trimmed
	case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "+ "):
		return lead + `\` + trimmed
	}
	if m := orderedStart.FindStringSubmatchIndex(trimmed); m != nil {
		return lead + trimmed[:m[3]] + `\` + trimmed[m[4]:]
	}
	return line
}

func prefixLines(s, prefix, blank string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = blank
		} else {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// prefixRest indents every line after the first.
func prefixRest(s, indent string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}
