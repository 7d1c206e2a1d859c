package benchmarkset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	ctrlruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	"github.com/stackhpc/perftest-operator/pkg/cluster"
	"github.com/stackhpc/perftest-operator/pkg/config"
	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
	"github.com/stackhpc/perftest-operator/pkg/metrics"
	"github.com/stackhpc/perftest-operator/pkg/registry"
)

// Event names which half of the benchmark-set lifecycle (spec §4.6) an
// Identity refers to.
type Event string

const (
	// EventSetCreated fans a newly observed BenchmarkSet out into children.
	EventSetCreated Event = "SetCreated"
	// EventChildChanged upserts a child's terminal phase onto its owning set.
	EventChildChanged Event = "ChildChanged"
)

// Identity is the workqueue item type. Kind is the child benchmark's
// registered kind, needed to fetch it by the correct type; it is ignored
// for EventSetCreated, where Name/Namespace already address the set itself.
type Identity struct {
	Event     Event
	Kind      string
	Namespace string
	Name      string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s %s %s/%s", id.Event, id.Kind, id.Namespace, id.Name)
}

// Controller implements controller.Handler[Identity] for BenchmarkSet's
// fan-out and aggregation (spec §4.6).
type Controller struct {
	Client   cluster.Client
	Registry *registry.Registry
	Scheme   *runtime.Scheme
	Metrics  *metrics.Recorder

	APIGroup           string
	FieldManager       string
	ConflictRetryLimit time.Duration
}

// New builds a Controller from the operator's wired collaborators and settings.
func New(c cluster.Client, reg *registry.Registry, scheme *runtime.Scheme, cfg config.Settings) *Controller {
	return &Controller{
		Client:             c,
		Registry:           reg,
		Scheme:             scheme,
		APIGroup:           cfg.Operator.APIGroup,
		FieldManager:       cfg.Cluster.FieldManager,
		ConflictRetryLimit: cfg.Cluster.ConflictRetryLimit,
	}
}

// Do implements controller.Handler[Identity].
func (c *Controller) Do(ctx context.Context, id Identity) (result ctrlruntime.Result, err error) {
	start := time.Now()
	defer func() { c.Metrics.Observe("benchmarkset", start, result.Requeue || result.RequeueAfter > 0, err) }()

	switch id.Event {
	case EventSetCreated:
		return c.handleSetCreated(ctx, id)
	case EventChildChanged:
		return c.handleChildChanged(ctx, id)
	default:
		return ctrlruntime.Result{}, fmt.Errorf("benchmarkset: unknown event %q", id.Event)
	}
}

// handleSetCreated implements spec §4.6 steps 1-5: compute the permutation
// count, render and apply every child with an ownerReference back to the
// set, then record permutationCount/count/startedAt. Idempotent: a set
// that already has a non-zero count has already been expanded, since
// count is only ever written here.
func (c *Controller) handleSetCreated(ctx context.Context, id Identity) (ctrlruntime.Result, error) {
	var set v1alpha1.BenchmarkSet
	err := c.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: id.Name}, &set)
	if cluster.IsNotFound(err) {
		return ctrlruntime.Result{}, nil
	}
	if err != nil {
		return ctrlruntime.Result{}, err
	}
	if set.Status.Count > 0 {
		return ctrlruntime.Result{}, nil
	}

	if _, ok := c.Registry.Lookup(c.APIGroup, set.Spec.Template.Kind); !ok {
		return ctrlruntime.Result{}, fmt.Errorf("benchmarkset: unknown template kind %q", set.Spec.Template.Kind)
	}
	gv, err := schema.ParseGroupVersion(set.Spec.Template.APIVersion)
	if err != nil {
		return ctrlruntime.Result{}, fmt.Errorf("benchmarkset: parsing template apiVersion %q: %w", set.Spec.Template.APIVersion, err)
	}

	permutationCount, count, children, err := Expand(set.Name, set.Spec)
	if err != nil {
		return ctrlruntime.Result{}, err
	}

	for _, child := range children {
		obj, err := c.renderChild(&set, gv.WithKind(set.Spec.Template.Kind), child)
		if err != nil {
			return ctrlruntime.Result{}, err
		}
		if err := c.Client.Apply(ctx, obj, c.FieldManager); err != nil {
			return toResult(err)
		}
	}

	now := metav1.Now()
	set.Status.PermutationCount = permutationCount
	set.Status.Count = count
	set.Status.StartedAt = &now

	err = cluster.ApplyWithConflictRetry(ctx, c.ConflictRetryLimit, func() error {
		return c.Client.ApplyStatus(ctx, &set, c.FieldManager)
	})
	return toResult(err)
}

// renderChild merges child's permutation values onto the template spec
// and builds the unstructured object to apply, owned by set. Represented
// as unstructured rather than a typed object from the registry: the
// benchmark kinds differ in Spec shape and the set controller has no
// reason to know any of them beyond the JSON the template already carries.
func (c *Controller) renderChild(set *v1alpha1.BenchmarkSet, gvk schema.GroupVersionKind, child Child) (*unstructured.Unstructured, error) {
	merged, err := MergeSpec(set.Spec.Template.Spec, child.Values)
	if err != nil {
		return nil, fmt.Errorf("benchmarkset: merging permutation for %s: %w", child.Name, err)
	}

	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(gvk)
	obj.SetNamespace(set.Namespace)
	obj.SetName(child.Name)

	if len(merged.Raw) > 0 {
		var specMap map[string]interface{}
		if err := json.Unmarshal(merged.Raw, &specMap); err != nil {
			return nil, fmt.Errorf("benchmarkset: decoding merged spec for %s: %w", child.Name, err)
		}
		if err := unstructured.SetNestedMap(obj.Object, specMap, "spec"); err != nil {
			return nil, fmt.Errorf("benchmarkset: setting spec for %s: %w", child.Name, err)
		}
	}

	if err := controllerutil.SetControllerReference(set, obj, c.Scheme); err != nil {
		return nil, fmt.Errorf("benchmarkset: setting owner reference on %s: %w", child.Name, err)
	}
	return obj, nil
}

// handleChildChanged implements spec §4.6's second half: when a child
// benchmark's own controller has already moved it to a terminal phase,
// upsert completed[name] on the owning set and recompute the tally. A
// child the set has already recorded is left untouched (completed is
// append-only per the type's own doc comment), and a child with no
// BenchmarkSet owner reference at all (a benchmark created directly, not
// through a set) is silently ignored.
func (c *Controller) handleChildChanged(ctx context.Context, id Identity) (ctrlruntime.Result, error) {
	desc, ok := c.Registry.Lookup(c.APIGroup, id.Kind)
	if !ok {
		return ctrlruntime.Result{}, fmt.Errorf("benchmarkset: no descriptor registered for %s", id.Kind)
	}

	obj := desc.NewObject()
	err := c.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: id.Name}, obj)
	if cluster.IsNotFound(err) {
		return ctrlruntime.Result{}, nil
	}
	if err != nil {
		return ctrlruntime.Result{}, err
	}

	bench, ok := obj.(v1alpha1.BenchmarkObject)
	if !ok {
		return ctrlruntime.Result{}, fmt.Errorf("benchmarkset: %T does not implement BenchmarkObject", obj)
	}
	status := bench.GetBenchmarkStatus()
	if !status.Phase.IsTerminal() {
		return ctrlruntime.Result{}, nil
	}

	setName, ok := ownerSetName(obj)
	if !ok {
		return ctrlruntime.Result{}, nil
	}

	var set v1alpha1.BenchmarkSet
	err = c.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: setName}, &set)
	if cluster.IsNotFound(err) {
		return ctrlruntime.Result{}, nil
	}
	if err != nil {
		return ctrlruntime.Result{}, err
	}
	if _, already := set.Status.Completed[id.Name]; already {
		return ctrlruntime.Result{}, nil
	}

	if set.Status.Completed == nil {
		set.Status.Completed = map[string]bool{}
	}
	set.Status.Completed[id.Name] = status.Phase == v1alpha1.PhaseCompleted
	tallyCompletion(&set.Status)

	err = cluster.ApplyWithConflictRetry(ctx, c.ConflictRetryLimit, func() error {
		return c.Client.ApplyStatus(ctx, &set, c.FieldManager)
	})
	return toResult(err)
}

// ownerSetName returns the name of obj's owning BenchmarkSet, if any.
func ownerSetName(obj client.Object) (string, bool) {
	for _, ref := range obj.GetOwnerReferences() {
		if ref.Kind == "BenchmarkSet" {
			return ref.Name, true
		}
	}
	return "", false
}

// tallyCompletion recomputes succeeded/failed from completed and, once
// every expected child has reported in, stamps finishedAt.
func tallyCompletion(status *v1alpha1.BenchmarkSetStatus) {
	succeeded, failed := 0, 0
	for _, ok := range status.Completed {
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	status.Succeeded = succeeded
	status.Failed = failed
	if status.FinishedAt == nil && len(status.Completed) == status.Count {
		now := metav1.Now()
		status.FinishedAt = &now
	}
}

func toResult(err error) (ctrlruntime.Result, error) {
	if err == nil {
		return ctrlruntime.Result{}, nil
	}
	if delay, ok := operrors.AsTemporary(err); ok {
		return ctrlruntime.Result{RequeueAfter: delay}, nil
	}
	return ctrlruntime.Result{}, err
}
