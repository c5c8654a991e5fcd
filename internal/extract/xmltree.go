package extract

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// node is a namespace-stripped element of an OOXML part. Word documents mix
// paragraphs, tables and runs in one ordered sequence, so parts are read into
// a generic tree and walked rather than unmarshalled into fixed structs.
type node struct {
	name     string
	attrs    map[string]string
	children []*node
	text     string

	textBuf *strings.Builder
}

func (n *node) attr(name string) string {
	if n == nil {
		return ""
	}
	return n.attrs[name]
}

// child returns the first direct child with the given local name.
func (n *node) child(name string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// find returns the first descendant with the given local name, depth first.
func (n *node) find(name string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

func parseTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	root := &node{name: "#document"}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.attrs[a.Name.Local] = a.Value
				}
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				top := stack[len(stack)-1]
				if top.textBuf != nil {
					top.text = top.textBuf.String()
					top.textBuf = nil
				}
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			top := stack[len(stack)-1]
			if top.name == "t" {
				if top.textBuf == nil {
					top.textBuf = &strings.Builder{}
				}
				top.textBuf.Write(t)
			}
		}
	}

	if len(stack) != 1 {
		return nil, errors.New("unexpected end of XML")
	}
	return root, nil
}
