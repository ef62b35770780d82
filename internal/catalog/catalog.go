// Package catalog defines how the documentation reader identifies the
// catalog entity that a documentation site belongs to.
package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

const (
	// The name of the (implicit) default namespace.
	DefaultNamespace = "default"
)

var (
	ErrEmptyRef = errors.New("entity reference has empty fields")
)

// Ref identifies a catalog entity. Refs are comparable values: two refs are
// equal iff kind, namespace, and name are equal. Case is preserved as given.
type Ref struct {
	Kind      string
	Namespace string
	Name      string
}

func NewRef(kind, namespace, name string) Ref {
	return Ref{Kind: kind, Namespace: namespace, Name: name}
}

func (r Ref) IsZero() bool {
	return r == Ref{}
}

// Validate returns ErrEmptyRef if any of the three fields is empty.
func (r Ref) Validate() error {
	if r.Kind == "" || r.Namespace == "" || r.Name == "" {
		return fmt.Errorf("%w: %q", ErrEmptyRef, r.String())
	}
	return nil
}

func (r Ref) Equal(other Ref) bool {
	return r == other
}

// String returns the fully qualified reference <kind>:<namespace>/<name>.
// Unlike QName, the default namespace is never omitted.
func (r Ref) String() string {
	var sb strings.Builder
	if r.Kind != "" {
		sb.WriteString(r.Kind + ":")
	}
	sb.WriteString(r.Namespace + "/")
	sb.WriteString(r.Name)
	return sb.String()
}

// QName returns the namespace qualified name, e.g. "ns1/foo".
// The default namespace is omitted.
func (r Ref) QName() string {
	if r.Namespace != "" && r.Namespace != DefaultNamespace {
		return r.Namespace + "/" + r.Name
	}
	return r.Name
}

// Compare compares two Refs lexicographically by (kind, namespace, name).
func (r Ref) Compare(s Ref) int {
	if c := cmp.Compare(r.Kind, s.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(r.Namespace, s.Namespace); c != 0 {
		return c
	}
	return cmp.Compare(r.Name, s.Name)
}

// ParseRef parses references in the format [<kind>:][<namespace>/]<name>.
// A missing namespace is replaced by the default namespace. A missing kind
// is an error, since documentation is always looked up for a specific kind.
func ParseRef(s string) (Ref, error) {
	var ref Ref
	kind, qname, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found || kind == "" {
		return Ref{}, fmt.Errorf("entity reference %q has no kind", s)
	}
	ref.Kind = kind

	ns, name, found := strings.Cut(qname, "/")
	if found {
		ref.Namespace = ns
		ref.Name = name
	} else {
		ref.Namespace = DefaultNamespace
		ref.Name = qname
	}
	if strings.Contains(ref.Name, "/") {
		return Ref{}, fmt.Errorf("invalid name %q in entity reference", ref.Name)
	}
	if err := ref.Validate(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}
