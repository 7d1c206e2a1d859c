// Package template expands named YAML templates against a benchmark-typed
// context into an ordered sequence of cluster objects. The core never sees
// the template bodies themselves (they are a rendered-resource-stream
// collaborator per the operator's scope); this package only owns the
// expansion mechanics: Go templating, multi-document YAML splitting, and
// decoding into unstructured.Unstructured so kind descriptors can inject
// labels and owner references generically before apply.
package template

import (
	"bytes"
	"fmt"
	"io"
	"text/template"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
)

// Loader holds a fixed set of named templates, parsed once at startup.
type Loader struct {
	templates map[string]*template.Template
}

// NewLoader parses every entry in sources (name -> Go template text
// producing one or more YAML documents separated by "---") and returns a
// Loader, or the first parse error encountered.
func NewLoader(sources map[string]string) (*Loader, error) {
	l := &Loader{templates: make(map[string]*template.Template, len(sources))}
	for name, body := range sources {
		t, err := template.New(name).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parsing template %q: %w", name, err)
		}
		l.templates[name] = t
	}
	return l, nil
}

// Render expands the named template against ctx and decodes the resulting
// YAML documents into unstructured objects, in document order. Empty
// documents (e.g. a trailing "---") are skipped.
func (l *Loader) Render(name string, ctx any) ([]unstructured.Unstructured, error) {
	t, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q is not registered", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("expanding template %q: %w", name, err)
	}

	return decodeDocuments(buf.Bytes())
}

// decodeDocuments decodes raw as a stream of "---"-separated YAML
// documents, the same decoder job-manager's dispatcher tests use to parse
// rendered manifests. Empty documents (e.g. a leading or trailing "---")
// decode to a nil map and are skipped.
func decodeDocuments(raw []byte) ([]unstructured.Unstructured, error) {
	decoder := yamlutil.NewYAMLOrJSONDecoder(bytes.NewReader(raw), 4096)
	var objs []unstructured.Unstructured
	for i := 0; ; i++ {
		var m map[string]any
		if err := decoder.Decode(&m); err != nil {
			if err == io.EOF {
				return objs, nil
			}
			return nil, fmt.Errorf("decoding document %d: %w", i, err)
		}
		if len(m) == 0 {
			continue
		}
		objs = append(objs, unstructured.Unstructured{Object: m})
	}
}
