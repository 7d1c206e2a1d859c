// Package reconciler implements the Benchmark lifecycle state machine
// (spec §4.1): the create flow that binds a priority class and renders a
// kind's child resources, the summarise step that turns a finished workload
// into a parsed result, and the teardown that runs once a benchmark reaches
// a terminal phase.
package reconciler

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/utils/ptr"
	ctrlruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	"github.com/stackhpc/perftest-operator/pkg/cluster"
	"github.com/stackhpc/perftest-operator/pkg/config"
	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
	"github.com/stackhpc/perftest-operator/pkg/metrics"
	"github.com/stackhpc/perftest-operator/pkg/priority"
	"github.com/stackhpc/perftest-operator/pkg/registry"
	"github.com/stackhpc/perftest-operator/pkg/template"
)

// Identity is the workqueue item type: which descriptor to dispatch
// through, and which object to fetch.
type Identity struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s %s/%s", id.Group, id.Kind, id.Namespace, id.Name)
}

// Reconciler implements controller.Handler[Identity].
type Reconciler struct {
	Client    cluster.Client
	Registry  *registry.Registry
	Priority  *priority.Allocator
	Templates *template.Loader
	Scheme    *runtime.Scheme
	Metrics   *metrics.Recorder

	FieldManager       string
	ConflictRetryLimit time.Duration
	Labels             config.LabelNames
}

// New builds a Reconciler from the operator's wired collaborators and settings.
func New(c cluster.Client, reg *registry.Registry, alloc *priority.Allocator, templates *template.Loader, scheme *runtime.Scheme, cfg config.Settings) *Reconciler {
	return &Reconciler{
		Client:             c,
		Registry:           reg,
		Priority:           alloc,
		Templates:          templates,
		Scheme:             scheme,
		FieldManager:       cfg.Cluster.FieldManager,
		ConflictRetryLimit: cfg.Cluster.ConflictRetryLimit,
		Labels:             cfg.Operator.Labels,
	}
}

// Do implements controller.Handler[Identity].
func (r *Reconciler) Do(ctx context.Context, id Identity) (result ctrlruntime.Result, err error) {
	start := time.Now()
	defer func() { r.Metrics.Observe("reconciler", start, result.Requeue || result.RequeueAfter > 0, err) }()

	desc, ok := r.Registry.Lookup(id.Group, id.Kind)
	if !ok {
		return ctrlruntime.Result{}, fmt.Errorf("reconciler: no descriptor registered for %s/%s", id.Group, id.Kind)
	}

	obj := desc.NewObject()
	err = r.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: id.Name}, obj)
	if cluster.IsNotFound(err) {
		return ctrlruntime.Result{}, nil
	}
	if err != nil {
		return ctrlruntime.Result{}, err
	}

	bench, ok := obj.(v1alpha1.BenchmarkObject)
	if !ok {
		return ctrlruntime.Result{}, fmt.Errorf("reconciler: %T does not implement BenchmarkObject", obj)
	}

	if !bench.GetDeletionTimestamp().IsZero() {
		return r.handleDeletion(ctx, id, bench)
	}

	status := bench.GetBenchmarkStatus()
	switch {
	case status.Phase == "" || status.Phase == v1alpha1.PhaseUnknown:
		return r.prepare(ctx, bench, status)
	case status.Phase == v1alpha1.PhasePreparing:
		return r.render(ctx, id, desc, bench, status)
	case status.Phase == v1alpha1.PhaseSummarising:
		return r.summarise(ctx, id, desc, bench, status)
	case status.Phase.IsTerminal() && (status.PriorityClassName != "" || len(status.ManagedResources) > 0):
		return r.finalizeTerminal(ctx, id, bench, status)
	default:
		return ctrlruntime.Result{}, nil
	}
}

// prepare is create-flow step 1: ensure the finalizer is present and write
// phase=Preparing. A conflict here is retried with a short backoff rather
// than failing the benchmark outright.
func (r *Reconciler) prepare(ctx context.Context, bench v1alpha1.BenchmarkObject, status *v1alpha1.BenchmarkStatus) (ctrlruntime.Result, error) {
	if !hasFinalizer(bench, v1alpha1.Finalizer) {
		bench.SetFinalizers(append(bench.GetFinalizers(), v1alpha1.Finalizer))
		if err := r.Client.Apply(ctx, bench, r.FieldManager); err != nil {
			return toResult(err)
		}
	}

	status.TransitionTo(v1alpha1.PhasePreparing, metav1.Now())
	err := cluster.ApplyWithConflictRetry(ctx, r.ConflictRetryLimit, func() error {
		return r.Client.ApplyStatus(ctx, bench, r.FieldManager)
	})
	if err != nil {
		return toResult(err)
	}
	return ctrlruntime.Result{Requeue: true}, nil
}

// render is create-flow steps 2-4: allocate a priority class, render and
// apply every child resource labelled and owned by this benchmark, and
// record them in managedResources. Idempotent: a Preparing benchmark that
// already has a priority class and managed resources is left untouched,
// since ResourcesFor is only meant to run once per Preparing transition
// (§4.3 point 2) and a later phase transition is the correlator's job, not
// this reconciler's.
func (r *Reconciler) render(ctx context.Context, id Identity, desc registry.Descriptor, bench v1alpha1.BenchmarkObject, status *v1alpha1.BenchmarkStatus) (ctrlruntime.Result, error) {
	if status.PriorityClassName != "" && len(status.ManagedResources) > 0 {
		return ctrlruntime.Result{}, nil
	}

	pcName, err := r.Priority.Allocate(ctx, id.Kind, id.Namespace, id.Name)
	if err != nil {
		return toResult(err)
	}
	status.PriorityClassName = pcName

	children, err := desc.ResourcesFor(ctx, bench, r.Templates)
	if err != nil {
		return toResult(err)
	}

	refs := make([]v1alpha1.ResourceRef, 0, len(children))
	for _, child := range children {
		r.labelChild(child, id)
		if err := controllerutil.SetControllerReference(bench, child, r.Scheme); err != nil {
			return ctrlruntime.Result{}, fmt.Errorf("reconciler: setting owner reference on %s: %w", child.GetName(), err)
		}
		if err := r.Client.Apply(ctx, child, r.FieldManager); err != nil {
			return toResult(err)
		}
		gvk := child.GetObjectKind().GroupVersionKind()
		refs = append(refs, v1alpha1.ResourceRef{
			APIVersion: gvk.GroupVersion().String(),
			Kind:       gvk.Kind,
			Name:       child.GetName(),
		})
	}
	status.ManagedResources = refs

	err = cluster.ApplyWithConflictRetry(ctx, r.ConflictRetryLimit, func() error {
		return r.Client.ApplyStatus(ctx, bench, r.FieldManager)
	})
	return toResult(err)
}

// labelChild injects the {kind, namespace, name} triple every managed
// resource must carry so the event correlator can route events back to
// this benchmark (§4.5 step 1).
func (r *Reconciler) labelChild(child client.Object, id Identity) {
	labels := child.GetLabels()
	if labels == nil {
		labels = map[string]string{}
	}
	labels[r.Labels.KindLabel] = id.Kind
	labels[r.Labels.NamespaceLabel] = id.Namespace
	labels[r.Labels.NameLabel] = id.Name
	child.SetLabels(labels)
}

// summarise is the Summarising phase handler (§4.3 point 5): the kind
// descriptor derives the parsed result; an incomplete-results error
// reschedules after its delay with the phase unchanged, any other error is
// permanent and fails the benchmark, success completes it. Either terminal
// outcome tears down through finalizeTerminal in the same pass, so
// summarise (the only place pod logs are read) always runs before children
// are deleted.
func (r *Reconciler) summarise(ctx context.Context, id Identity, desc registry.Descriptor, bench v1alpha1.BenchmarkObject, status *v1alpha1.BenchmarkStatus) (ctrlruntime.Result, error) {
	err := desc.Summarise(bench)
	if err != nil {
		if delay, ok := operrors.AsTemporary(err); ok {
			return ctrlruntime.Result{RequeueAfter: delay}, nil
		}
		status.TransitionTo(v1alpha1.PhaseFailed, metav1.Now())
		return r.finalizeTerminal(ctx, id, bench, status)
	}

	status.TransitionTo(v1alpha1.PhaseCompleted, metav1.Now())
	return r.finalizeTerminal(ctx, id, bench, status)
}

// handleDeletion runs the deletion flow (§3.3, §4.1): tear down managed
// resources and the priority class, then remove the finalizer so the API
// server can finish deleting the benchmark. There is no status update —
// per spec, the object is gone.
func (r *Reconciler) handleDeletion(ctx context.Context, id Identity, bench v1alpha1.BenchmarkObject) (ctrlruntime.Result, error) {
	if !hasFinalizer(bench, v1alpha1.Finalizer) {
		return ctrlruntime.Result{}, nil
	}

	status := bench.GetBenchmarkStatus()
	if err := r.deleteManagedResources(ctx, id.Namespace, status); err != nil {
		return toResult(err)
	}
	if err := r.Priority.Release(ctx, id.Kind, id.Namespace, id.Name); err != nil {
		return toResult(err)
	}
	status.ManagedResources = nil

	bench.SetFinalizers(removeString(bench.GetFinalizers(), v1alpha1.Finalizer))
	if err := r.Client.Apply(ctx, bench, r.FieldManager); err != nil {
		return toResult(err)
	}
	return ctrlruntime.Result{}, nil
}

// finalizeTerminal is reached from summarise once it has set Completed or
// Failed, and when the correlator has already mirrored a job's phase
// straight to a terminal value (Aborted, Terminated, Failed) without going
// through Summarising. Either way this reconciler still owes the benchmark
// a teardown and a finishedAt timestamp.
func (r *Reconciler) finalizeTerminal(ctx context.Context, id Identity, bench v1alpha1.BenchmarkObject, status *v1alpha1.BenchmarkStatus) (ctrlruntime.Result, error) {
	if status.FinishedAt == nil {
		status.FinishedAt = ptr.To(metav1.Now())
	}
	if err := r.deleteManagedResources(ctx, id.Namespace, status); err != nil {
		return toResult(err)
	}
	if err := r.Priority.Release(ctx, id.Kind, id.Namespace, id.Name); err != nil {
		return toResult(err)
	}
	status.ManagedResources = nil

	err := cluster.ApplyWithConflictRetry(ctx, r.ConflictRetryLimit, func() error {
		return r.Client.ApplyStatus(ctx, bench, r.FieldManager)
	})
	return toResult(err)
}

// deleteManagedResources deletes every ref in status.managedResources,
// tolerating 404s (invariant 3: all labelled children are gone before the
// phase becomes terminal).
func (r *Reconciler) deleteManagedResources(ctx context.Context, namespace string, status *v1alpha1.BenchmarkStatus) error {
	for _, ref := range status.ManagedResources {
		gv, err := schema.ParseGroupVersion(ref.APIVersion)
		if err != nil {
			return fmt.Errorf("reconciler: parsing managed resource apiVersion %q: %w", ref.APIVersion, err)
		}
		child := &unstructured.Unstructured{}
		child.SetGroupVersionKind(gv.WithKind(ref.Kind))
		child.SetNamespace(namespace)
		child.SetName(ref.Name)
		if err := r.Client.Delete(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func hasFinalizer(obj client.Object, finalizer string) bool {
	for _, f := range obj.GetFinalizers() {
		if f == finalizer {
			return true
		}
	}
	return false
}

func removeString(items []string, target string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}

// toResult converts an error into the controller.Handler[Identity]
// contract: a TemporaryError becomes a delayed, error-free requeue so the
// workqueue's rate limiter doesn't apply its (unrelated) backoff curve on
// top of the delay the error itself already specifies; anything else
// propagates for the workqueue's default retry handling.
func toResult(err error) (ctrlruntime.Result, error) {
	if err == nil {
		return ctrlruntime.Result{}, nil
	}
	if delay, ok := operrors.AsTemporary(err); ok {
		return ctrlruntime.Result{RequeueAfter: delay}, nil
	}
	return ctrlruntime.Result{}, err
}
