// Package priority binds every benchmark to a unique, monotonically
// decreasing Kubernetes PriorityClass so that the default (non-gang-aware)
// scheduler preempts older benchmarks' pods in a deterministic order,
// letting MPI-style gangs land together without self-preemption.
package priority

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	schedulingv1 "k8s.io/api/scheduling/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stackhpc/perftest-operator/pkg/cluster"
	"github.com/stackhpc/perftest-operator/pkg/config"
)

const (
	kindLabelKey      = "perftest.stackhpc.com/benchmark-kind"
	namespaceLabelKey = "perftest.stackhpc.com/benchmark-namespace"
	nameLabelKey      = "perftest.stackhpc.com/benchmark-name"
)

// Allocator binds benchmarks to PriorityClass objects. The zero value is
// not usable; build one with New. All methods are safe for concurrent use.
type Allocator struct {
	client cluster.Client
	mu     sync.Mutex

	initialPriority int32
	classPrefix     string
}

// New builds an Allocator from the operator's configured settings.
func New(c cluster.Client, priority config.PrioritySettings, operator config.OperatorSettings) *Allocator {
	prefix := priority.ClassPrefix
	if prefix == "" {
		prefix = operator.ResourcePrefix
	}
	return &Allocator{
		client:          c,
		initialPriority: operator.InitialPriority,
		classPrefix:     prefix,
	}
}

// Allocate returns the name of the PriorityClass bound to (kind, namespace,
// name), creating one if none exists yet. Safe to call repeatedly for the
// same benchmark across reconciler restarts: an existing class carrying the
// matching labels is reused rather than duplicated.
func (a *Allocator) Allocate(ctx context.Context, kind, namespace, name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		existing, min, err := a.listForKind(ctx, kind)
		if err != nil {
			return "", err
		}
		if pc, ok := findMatching(existing, kind, namespace, name); ok {
			return pc.Name, nil
		}

		next := a.initialPriority
		if min < next {
			next = min
		}
		next--

		pc := a.newPriorityClass(next, kind, namespace, name)
		if err := a.client.Create(ctx, pc); err != nil {
			if cluster.IsAlreadyExists(err) {
				continue
			}
			return "", err
		}
		return pc.Name, nil
	}
}

// listForKind lists every PriorityClass labelled with kind, returning them
// alongside the minimum value observed (initialPriority+1 if none exist;
// Allocate then issues initialPriority-1 as the first value).
func (a *Allocator) listForKind(ctx context.Context, kind string) ([]schedulingv1.PriorityClass, int32, error) {
	var list schedulingv1.PriorityClassList
	if err := a.client.List(ctx, &list, client.MatchingLabels{kindLabelKey: kind}); err != nil {
		return nil, 0, err
	}

	min := a.initialPriority + 1
	for _, pc := range list.Items {
		if pc.Value < min {
			min = pc.Value
		}
	}
	return list.Items, min, nil
}

func findMatching(classes []schedulingv1.PriorityClass, kind, namespace, name string) (*schedulingv1.PriorityClass, bool) {
	for i := range classes {
		l := classes[i].Labels
		if l[kindLabelKey] == kind && l[namespaceLabelKey] == namespace && l[nameLabelKey] == name {
			return &classes[i], true
		}
	}
	return nil, false
}

func (a *Allocator) newPriorityClass(value int32, kind, namespace, name string) *schedulingv1.PriorityClass {
	preempt := corev1.PreemptLowerPriority
	return &schedulingv1.PriorityClass{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: fmt.Sprintf("%s%s-", a.classPrefix, uuid.NewString()[:8]),
			Labels: map[string]string{
				kindLabelKey:      kind,
				namespaceLabelKey: namespace,
				nameLabelKey:      name,
			},
		},
		Value:            value,
		GlobalDefault:    false,
		PreemptionPolicy: &preempt,
		Description:      fmt.Sprintf("priority class for %s benchmark %s/%s", kind, namespace, name),
	}
}

// Release deletes the PriorityClass bound to (kind, namespace, name), if
// any. Deleting is idempotent: a missing class is not an error.
func (a *Allocator) Release(ctx context.Context, kind, namespace, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, _, err := a.listForKind(ctx, kind)
	if err != nil {
		return err
	}
	pc, ok := findMatching(existing, kind, namespace, name)
	if !ok {
		return nil
	}
	return a.client.Delete(ctx, pc)
}
