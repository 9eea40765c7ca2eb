package redirect

import (
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Field is one hidden input of a Form.
type Field struct {
	Name  string
	Value string
}

// Form is a POST form that carries Fields to Action.
type Form struct {
	Action string
	Fields []Field
}

// NewForm creates a form posting fields, in order, to action. An empty
// action posts to the current page.
func NewForm(action string, fields ...Field) *Form {
	return &Form{Action: action, Fields: fields}
}

// Value returns the value of the first field called name.
func (f *Form) Value(name string) (string, bool) {
	for _, fl := range f.Fields {
		if fl.Name == name {
			return fl.Value, true
		}
	}
	return "", false
}

// Node builds the form as an element tree.
func (f *Form) Node() *html.Node {
	form := element(atom.Form,
		html.Attribute{Key: "method", Val: "post"},
		html.Attribute{Key: "action", Val: f.Action},
	)
	for _, fl := range f.Fields {
		form.AppendChild(element(atom.Input,
			html.Attribute{Key: "type", Val: "hidden"},
			html.Attribute{Key: "name", Val: fl.Name},
			html.Attribute{Key: "value", Val: fl.Value},
		))
	}
	return form
}

// Render writes the form's HTML to w. Names and values are escaped.
func (f *Form) Render(w io.Writer) error {
	return html.Render(w, f.Node())
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}
