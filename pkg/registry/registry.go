// Package registry maps a benchmark's (group, kind) to the descriptor that
// knows how to render its resources, project job/pod events onto its
// status, and summarise its result. The registry is built once at startup
// and is immutable afterwards; the reconciler, correlator and benchmark-set
// controller all dispatch through it instead of switching on kind by hand.
package registry

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stackhpc/perftest-operator/pkg/template"
)

// FetchLog is the capability a descriptor's PodModified is given to read a
// terminated pod's log content, so descriptors never see a concrete
// cluster client.
type FetchLog func(ctx context.Context, namespace, podName, container string) (string, error)

// Descriptor is the full contract a benchmark kind must implement.
// Benchmark and Status are passed as client.Object/pointers so descriptors
// can type-assert to their concrete kind; the registry's job is purely
// dispatch by (group, kind), not to constrain the Go type further.
type Descriptor struct {
	// Kind is the unqualified kind name, e.g. "Fio", "RDMABandwidth".
	Kind string
	// NewObject returns a zero-valued instance of the benchmark's root type,
	// suitable for passing to client.Get/client.List.
	NewObject func() client.Object
	// NewList returns a zero-valued instance of the benchmark's list type.
	NewList func() client.ObjectList
	// ResourcesFor renders every child resource a Preparing transition must
	// create, in order, for the given benchmark object.
	ResourcesFor func(ctx context.Context, obj client.Object, templates *template.Loader) ([]client.Object, error)
	// JobModified projects a Volcano job's observed phase onto obj's status.
	JobModified func(obj client.Object, jobPhase string) error
	// PodModified updates obj's status from a pod event: component label,
	// pod info, and (when the pod reaches Succeeded) captured log content.
	PodModified func(ctx context.Context, obj client.Object, component string, pod PodEvent, fetchLog FetchLog) error
	// Summarise derives the parsed result and headline string from
	// captured status fields. Returning an *errors.TemporaryError means
	// "not ready yet, retry"; any other error is permanent.
	Summarise func(obj client.Object) error
}

// PodEvent is the subset of pod state PodModified needs, decoupled from a
// concrete corev1.Pod so descriptor code is trivially unit-testable.
type PodEvent struct {
	Name      string
	Phase     string
	PodIP     string
	NodeName  string
	NodeIP    string
	Container string
}

// Registry is the immutable, concurrency-safe (group, kind) -> Descriptor map.
type Registry struct {
	group       string
	descriptors map[string]Descriptor
}

// New builds an empty registry for the given API group.
func New(group string) *Registry {
	return &Registry{group: group, descriptors: make(map[string]Descriptor)}
}

// Register adds a descriptor. Panics on a duplicate kind, since that is
// always a startup wiring bug, never a runtime condition.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.descriptors[d.Kind]; exists {
		panic(fmt.Sprintf("registry: duplicate kind descriptor for %q", d.Kind))
	}
	r.descriptors[d.Kind] = d
}

// Lookup returns the descriptor for kind, if the group matches this registry.
func (r *Registry) Lookup(group, kind string) (Descriptor, bool) {
	if group != r.group {
		return Descriptor{}, false
	}
	d, ok := r.descriptors[kind]
	return d, ok
}

// Kinds returns every registered kind name, for startup logging and for
// wiring watches across every registered descriptor.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		kinds = append(kinds, k)
	}
	return kinds
}

// MustLookup is Lookup but panics instead of returning ok=false, for call
// sites where the kind is known to be registered (e.g. dispatched from a
// scheme-qualified owner reference the operator itself created).
func (r *Registry) MustLookup(group, kind string) Descriptor {
	d, ok := r.Lookup(group, kind)
	if !ok {
		panic(fmt.Sprintf("registry: no descriptor for %s/%s", group, kind))
	}
	return d
}
