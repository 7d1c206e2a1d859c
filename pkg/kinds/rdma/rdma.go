// Package rdma implements the registry.Descriptor for the two RDMA
// perftest benchmark kinds (spec §4.4 "rdma bandwidth"/"rdma latency"):
// a server/client pair running an ib_*_bw or ib_*_lat binary, whose result
// is extracted from the client's perftest text log.
package rdma

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
	"github.com/stackhpc/perftest-operator/pkg/parse"
	"github.com/stackhpc/perftest-operator/pkg/registry"
	"github.com/stackhpc/perftest-operator/pkg/template"
)

const (
	bandwidthTemplateName = "rdma-bandwidth"
	latencyTemplateName   = "rdma-latency"
)

// BandwidthDescriptor returns the registry.Descriptor for RDMABandwidth.
func BandwidthDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:         "RDMABandwidth",
		NewObject:    func() client.Object { return &v1alpha1.RDMABandwidth{} },
		NewList:      func() client.ObjectList { return &v1alpha1.RDMABandwidthList{} },
		ResourcesFor: bandwidthResourcesFor,
		JobModified:  bandwidthJobModified,
		PodModified:  bandwidthPodModified,
		Summarise:    bandwidthSummarise,
	}
}

// LatencyDescriptor returns the registry.Descriptor for RDMALatency.
func LatencyDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:         "RDMALatency",
		NewObject:    func() client.Object { return &v1alpha1.RDMALatency{} },
		NewList:      func() client.ObjectList { return &v1alpha1.RDMALatencyList{} },
		ResourcesFor: latencyResourcesFor,
		JobModified:  latencyJobModified,
		PodModified:  latencyPodModified,
		Summarise:    latencySummarise,
	}
}

type renderContext struct {
	Name      string
	Namespace string
	Spec      v1alpha1.RDMASpec
}

func bandwidthResourcesFor(ctx context.Context, obj client.Object, templates *template.Loader) ([]client.Object, error) {
	benchmark, ok := obj.(*v1alpha1.RDMABandwidth)
	if !ok {
		return nil, fmt.Errorf("rdma bandwidth: unexpected object type %T", obj)
	}
	return renderChildren(templates, bandwidthTemplateName, benchmark.Name, benchmark.Namespace, benchmark.Spec)
}

func latencyResourcesFor(ctx context.Context, obj client.Object, templates *template.Loader) ([]client.Object, error) {
	benchmark, ok := obj.(*v1alpha1.RDMALatency)
	if !ok {
		return nil, fmt.Errorf("rdma latency: unexpected object type %T", obj)
	}
	return renderChildren(templates, latencyTemplateName, benchmark.Name, benchmark.Namespace, benchmark.Spec)
}

func renderChildren(templates *template.Loader, name, benchName, namespace string, spec v1alpha1.RDMASpec) ([]client.Object, error) {
	rendered, err := templates.Render(name, renderContext{Name: benchName, Namespace: namespace, Spec: spec})
	if err != nil {
		return nil, err
	}
	children := make([]client.Object, len(rendered))
	for i := range rendered {
		children[i] = &rendered[i]
	}
	return children, nil
}

func bandwidthJobModified(obj client.Object, jobPhase string) error {
	benchmark, ok := obj.(*v1alpha1.RDMABandwidth)
	if !ok {
		return fmt.Errorf("rdma bandwidth: unexpected object type %T", obj)
	}
	benchmark.Status.ApplyJobPhase(jobPhase, metav1.Now())
	return nil
}

func latencyJobModified(obj client.Object, jobPhase string) error {
	benchmark, ok := obj.(*v1alpha1.RDMALatency)
	if !ok {
		return fmt.Errorf("rdma latency: unexpected object type %T", obj)
	}
	benchmark.Status.ApplyJobPhase(jobPhase, metav1.Now())
	return nil
}

// podInfoForComponent maps a component label onto the (serverPod, clientPod)
// pointer pair both RDMA kinds carry.
func podInfoForComponent(component string, pod registry.PodEvent) (isServer, isClient bool, info v1alpha1.PodInfo) {
	info = v1alpha1.PodInfo{PodIP: pod.PodIP, NodeName: pod.NodeName, NodeIP: pod.NodeIP}
	return component == v1alpha1.ComponentServer, component == v1alpha1.ComponentClient, info
}

func bandwidthPodModified(ctx context.Context, obj client.Object, component string, pod registry.PodEvent, fetchLog registry.FetchLog) error {
	benchmark, ok := obj.(*v1alpha1.RDMABandwidth)
	if !ok {
		return fmt.Errorf("rdma bandwidth: unexpected object type %T", obj)
	}
	status := &benchmark.Status
	isServer, isClient, info := podInfoForComponent(component, pod)
	if isServer {
		status.ServerPod = &info
	}
	if isClient {
		status.ClientPod = &info
	}
	if !isClient || pod.Phase != "Succeeded" {
		return nil
	}
	log, err := fetchLog(ctx, benchmark.Namespace, pod.Name, pod.Container)
	if err != nil {
		return operrors.Wrap(err, "POD_LOG_FETCH_FAILED", "fetching rdma bandwidth client log")
	}
	status.ClientLog = log
	return nil
}

func latencyPodModified(ctx context.Context, obj client.Object, component string, pod registry.PodEvent, fetchLog registry.FetchLog) error {
	benchmark, ok := obj.(*v1alpha1.RDMALatency)
	if !ok {
		return fmt.Errorf("rdma latency: unexpected object type %T", obj)
	}
	status := &benchmark.Status
	isServer, isClient, info := podInfoForComponent(component, pod)
	if isServer {
		status.ServerPod = &info
	}
	if isClient {
		status.ClientPod = &info
	}
	if !isClient || pod.Phase != "Succeeded" {
		return nil
	}
	log, err := fetchLog(ctx, benchmark.Namespace, pod.Name, pod.Container)
	if err != nil {
		return operrors.Wrap(err, "POD_LOG_FETCH_FAILED", "fetching rdma latency client log")
	}
	status.ClientLog = log
	return nil
}

func bandwidthSummarise(obj client.Object) error {
	benchmark, ok := obj.(*v1alpha1.RDMABandwidth)
	if !ok {
		return fmt.Errorf("rdma bandwidth: unexpected object type %T", obj)
	}
	status := &benchmark.Status
	if status.ClientLog == "" {
		return operrors.NewIncompleteResults(parse.RetryDelay)
	}
	result, headline, err := parse.RDMABandwidth([]byte(status.ClientLog))
	if err != nil {
		return err
	}
	status.Result = result
	status.SummaryResult = headline
	return nil
}

func latencySummarise(obj client.Object) error {
	benchmark, ok := obj.(*v1alpha1.RDMALatency)
	if !ok {
		return fmt.Errorf("rdma latency: unexpected object type %T", obj)
	}
	status := &benchmark.Status
	if status.ClientLog == "" {
		return operrors.NewIncompleteResults(parse.RetryDelay)
	}
	result, headline, err := parse.RDMALatency([]byte(status.ClientLog))
	if err != nil {
		return err
	}
	status.Result = result
	status.SummaryResult = headline
	return nil
}
