// Package correlator implements the Event Correlator (spec §4.5): it
// watches Volcano jobs, pods, endpoints and hostsFrom configmaps, routes
// each change back to the benchmark that owns it via the {kind, namespace,
// name} labels every managed resource carries, and projects the change
// onto the benchmark's status or the discovery configmap it concerns.
package correlator

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	ctrlruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	corev1 "k8s.io/api/core/v1"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	"github.com/stackhpc/perftest-operator/pkg/cluster"
	"github.com/stackhpc/perftest-operator/pkg/config"
	"github.com/stackhpc/perftest-operator/pkg/discovery"
	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
	"github.com/stackhpc/perftest-operator/pkg/metrics"
	"github.com/stackhpc/perftest-operator/pkg/registry"
)

// Resource names the kind of object an Identity refers to.
type Resource string

const (
	ResourceJob       Resource = "Job"
	ResourcePod       Resource = "Pod"
	ResourceEndpoints Resource = "Endpoints"
	ResourceConfigMap Resource = "ConfigMap"
)

// VolcanoJobGVK is the GroupVersionKind of the Volcano batch job this
// operator renders and watches. Represented as unstructured rather than a
// typed client, since the operator depends on no Volcano Go client.
var VolcanoJobGVK = schema.GroupVersionKind{Group: "batch.volcano.sh", Version: "v1alpha1", Kind: "Job"}

// Identity is the workqueue item type: which resource kind changed, and
// where to fetch it.
type Identity struct {
	Resource  Resource
	Namespace string
	Name      string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s %s/%s", id.Resource, id.Namespace, id.Name)
}

// Correlator implements controller.Handler[Identity].
type Correlator struct {
	Client    cluster.Client
	Registry  *registry.Registry
	Discovery *discovery.Writer
	Metrics   *metrics.Recorder

	APIGroup           string
	FieldManager       string
	ConflictRetryLimit time.Duration
	Labels             config.LabelNames
}

// New builds a Correlator from the operator's wired collaborators and settings.
func New(c cluster.Client, reg *registry.Registry, disc *discovery.Writer, cfg config.Settings) *Correlator {
	return &Correlator{
		Client:             c,
		Registry:           reg,
		Discovery:          disc,
		APIGroup:           cfg.Operator.APIGroup,
		FieldManager:       cfg.Cluster.FieldManager,
		ConflictRetryLimit: cfg.Cluster.ConflictRetryLimit,
		Labels:             cfg.Operator.Labels,
	}
}

// Do implements controller.Handler[Identity].
func (c *Correlator) Do(ctx context.Context, id Identity) (result ctrlruntime.Result, err error) {
	start := time.Now()
	defer func() { c.Metrics.Observe("correlator", start, result.Requeue || result.RequeueAfter > 0, err) }()

	switch id.Resource {
	case ResourceJob:
		return c.handleJob(ctx, id)
	case ResourcePod:
		return c.handlePod(ctx, id)
	case ResourceEndpoints:
		return c.handleEndpoints(ctx, id)
	case ResourceConfigMap:
		return c.handleConfigMap(ctx, id)
	default:
		return ctrlruntime.Result{}, fmt.Errorf("correlator: unknown resource kind %q", id.Resource)
	}
}

// routingLabels extracts the {kind, namespace, name} triple every
// operator-managed resource carries. The second return is false if any of
// the three is missing, which step 1 of §4.5 says means "ignore" — labels
// are read off objects the correlator doesn't control the origin of
// (in particular auto-created Endpoints), so a missing label is a routine
// occurrence, not a wiring bug.
func (c *Correlator) routingLabels(obj client.Object) (kind, namespace, name string, ok bool) {
	l := obj.GetLabels()
	kind, namespace, name = l[c.Labels.KindLabel], l[c.Labels.NamespaceLabel], l[c.Labels.NameLabel]
	return kind, namespace, name, kind != "" && namespace != "" && name != ""
}

// fetchBenchmark resolves routing labels on obj to the owning benchmark,
// returning ok=false whenever step 2/3 of §4.5 says to drop the event:
// unroutable labels, an unregistered kind, a deleted benchmark, or a
// benchmark already in its terminal Completed phase.
func (c *Correlator) fetchBenchmark(ctx context.Context, obj client.Object) (v1alpha1.BenchmarkObject, bool, error) {
	kind, namespace, name, ok := c.routingLabels(obj)
	if !ok {
		return nil, false, nil
	}
	desc, ok := c.Registry.Lookup(c.APIGroup, kind)
	if !ok {
		return nil, false, nil
	}

	target := desc.NewObject()
	err := c.Client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, target)
	if cluster.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	bench, ok := target.(v1alpha1.BenchmarkObject)
	if !ok {
		return nil, false, fmt.Errorf("correlator: %T does not implement BenchmarkObject", target)
	}
	if bench.GetBenchmarkStatus().Phase == v1alpha1.PhaseCompleted {
		return nil, false, nil
	}
	return bench, true, nil
}

func (c *Correlator) handleJob(ctx context.Context, id Identity) (ctrlruntime.Result, error) {
	job := &unstructured.Unstructured{}
	job.SetGroupVersionKind(VolcanoJobGVK)
	if err := c.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: id.Name}, job); err != nil {
		if cluster.IsNotFound(err) {
			return ctrlruntime.Result{}, nil
		}
		return ctrlruntime.Result{}, err
	}

	bench, ok, err := c.fetchBenchmark(ctx, job)
	if err != nil || !ok {
		return ctrlruntime.Result{}, err
	}

	phase, _, _ := unstructured.NestedString(job.Object, "status", "state", "phase")
	desc, _ := c.Registry.Lookup(c.APIGroup, job.GetLabels()[c.Labels.KindLabel])
	if err := desc.JobModified(bench, phase); err != nil {
		return toResult(err)
	}
	return c.persistStatus(ctx, bench)
}

func (c *Correlator) handlePod(ctx context.Context, id Identity) (ctrlruntime.Result, error) {
	var pod corev1.Pod
	if err := c.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: id.Name}, &pod); err != nil {
		if cluster.IsNotFound(err) {
			return ctrlruntime.Result{}, nil
		}
		return ctrlruntime.Result{}, err
	}

	bench, ok, err := c.fetchBenchmark(ctx, &pod)
	if err != nil || !ok {
		return ctrlruntime.Result{}, err
	}

	component := pod.Labels[c.Labels.ComponentLabel]
	event := registry.PodEvent{
		Name:      pod.Name,
		Phase:     string(pod.Status.Phase),
		PodIP:     pod.Status.PodIP,
		NodeName:  pod.Spec.NodeName,
		NodeIP:    pod.Status.HostIP,
		Container: component,
	}

	desc, _ := c.Registry.Lookup(c.APIGroup, pod.Labels[c.Labels.KindLabel])
	err = desc.PodModified(ctx, bench, component, event, c.fetchPodLog)
	if err != nil {
		return toResult(err)
	}
	return c.persistStatus(ctx, bench)
}

func (c *Correlator) fetchPodLog(ctx context.Context, namespace, podName, container string) (string, error) {
	return c.Client.FetchPodLog(ctx, namespace, podName, container)
}

// handleEndpoints implements discovery synthesis (§4.7): an Endpoints
// object inherits its owning Service's labels, so it carries the same
// routing triple as any other managed resource; once that gates the event
// to a live, non-Completed benchmark, the endpoints' own name is the
// service name the discovery writer recomputes for.
func (c *Correlator) handleEndpoints(ctx context.Context, id Identity) (ctrlruntime.Result, error) {
	var endpoints corev1.Endpoints
	if err := c.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: id.Name}, &endpoints); err != nil {
		if cluster.IsNotFound(err) {
			return ctrlruntime.Result{}, nil
		}
		return ctrlruntime.Result{}, err
	}

	if _, ok, err := c.fetchBenchmark(ctx, &endpoints); err != nil || !ok {
		return ctrlruntime.Result{}, err
	}

	err := c.Discovery.Reconcile(ctx, id.Namespace, id.Name)
	return ctrlruntime.Result{}, err
}

// handleConfigMap implements discovery propagation (§4.7): a configmap's
// own all-hosts key changing (typically because the reconciler just
// rendered it for a new benchmark) triggers the same recomputation as an
// endpoints change, from whatever endpoints already exist for its
// hostsFrom service.
func (c *Correlator) handleConfigMap(ctx context.Context, id Identity) (ctrlruntime.Result, error) {
	var cm corev1.ConfigMap
	if err := c.Client.Get(ctx, client.ObjectKey{Namespace: id.Namespace, Name: id.Name}, &cm); err != nil {
		if cluster.IsNotFound(err) {
			return ctrlruntime.Result{}, nil
		}
		return ctrlruntime.Result{}, err
	}

	serviceName := cm.Labels[c.Labels.HostsFromLabel]
	if serviceName == "" {
		return ctrlruntime.Result{}, nil
	}

	if _, ok, err := c.fetchBenchmark(ctx, &cm); err != nil || !ok {
		return ctrlruntime.Result{}, err
	}

	err := c.Discovery.Reconcile(ctx, id.Namespace, serviceName)
	return ctrlruntime.Result{}, err
}

// persistStatus applies the benchmark's status, treating a conflict as a
// bounded in-process retry followed by a TemporaryError: spec §4.5 step 5
// asks for an unbounded retry loop, which the workqueue itself provides
// once the bounded in-process window (the same one the reconciler uses)
// is exhausted.
func (c *Correlator) persistStatus(ctx context.Context, bench client.Object) (ctrlruntime.Result, error) {
	err := cluster.ApplyWithConflictRetry(ctx, c.ConflictRetryLimit, func() error {
		return c.Client.ApplyStatus(ctx, bench, c.FieldManager)
	})
	return toResult(err)
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
