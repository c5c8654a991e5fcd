package extract

import "strings"

// inlineWriter collects the markup of one paragraph.
type inlineWriter struct {
	strings.Builder
	pageBreak bool
}

// htmlWriter collects block markup and keeps track of open lists. Every open
// list level has exactly one open <li>, so closing a level always emits
// "</li></tag>".
type htmlWriter struct {
	buf   strings.Builder
	lists []string
}

func (w *htmlWriter) raw(s string) {
	w.buf.WriteString(s)
}

func (w *htmlWriter) String() string {
	return w.buf.String()
}

func (w *htmlWriter) listItem(level int, tag, content string) {
	for len(w.lists) > level+1 {
		w.closeList()
	}
	if len(w.lists) == level+1 {
		if w.lists[level] == tag {
			w.buf.WriteString("</li><li>")
			w.buf.WriteString(content)
			return
		}
		w.closeList()
	}
	for len(w.lists) < level+1 {
		w.buf.WriteString("<" + tag + "><li>")
		w.lists = append(w.lists, tag)
	}
	w.buf.WriteString(content)
}

func (w *htmlWriter) closeList() {
	last := len(w.lists) - 1
	w.buf.WriteString("</li></" + w.lists[last] + ">")
	w.lists = w.lists[:last]
}

func (w *htmlWriter) closeLists() {
	for len(w.lists) > 0 {
		w.closeList()
	}
}
