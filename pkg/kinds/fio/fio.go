// Package fio implements the registry.Descriptor for the Fio benchmark
// kind (spec §4.4 "fio"): a single-client or multi-client sequential/random
// I/O test whose result is extracted from a JSON fio log.
package fio

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

// templateName is the rendered-resource-stream name this kind's job and
// client-facing service/configmap are expanded from (the template body
// itself is a collaborator specified only at the Loader interface, per
// spec §1's out-of-scope list).
const templateName = "fio"

// Descriptor returns the registry.Descriptor for Fio.
func Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:         "Fio",
		NewObject:    func() client.Object { return &v1alpha1.Fio{} },
		NewList:      func() client.ObjectList { return &v1alpha1.FioList{} },
		ResourcesFor: resourcesFor,
		JobModified:  jobModified,
		PodModified:  podModified,
		Summarise:    summarise,
	}
}

// renderContext is the template context for fio's job/service manifests.
type renderContext struct {
	Name      string
	Namespace string
	Spec      v1alpha1.FioSpec
}

func resourcesFor(ctx context.Context, obj client.Object, templates *template.Loader) ([]client.Object, error) {
	benchmark, ok := obj.(*v1alpha1.Fio)
	if !ok {
		return nil, fmt.Errorf("fio: unexpected object type %T", obj)
	}

	rendered, err := templates.Render(templateName, renderContext{
		Name:      benchmark.Name,
		Namespace: benchmark.Namespace,
		Spec:      benchmark.Spec,
	})
	if err != nil {
		return nil, err
	}

	children := make([]client.Object, len(rendered))
	for i := range rendered {
		children[i] = &rendered[i]
	}
	return children, nil
}

func jobModified(obj client.Object, jobPhase string) error {
	benchmark, ok := obj.(*v1alpha1.Fio)
	if !ok {
		return fmt.Errorf("fio: unexpected object type %T", obj)
	}
	benchmark.Status.ApplyJobPhase(jobPhase, metav1.Now())
	return nil
}

// podModified records the component's pod info and, once a client pod
// reaches Succeeded, captures its log. Fio is the one kind that can run
// with multiple client pods (spec.NumClients > 1), so ClientLogs is keyed
// by pod name rather than holding a single string.
func podModified(ctx context.Context, obj client.Object, component string, pod registry.PodEvent, fetchLog registry.FetchLog) error {
	benchmark, ok := obj.(*v1alpha1.Fio)
	if !ok {
		return fmt.Errorf("fio: unexpected object type %T", obj)
	}
	status := &benchmark.Status

	info := v1alpha1.PodInfo{PodIP: pod.PodIP, NodeName: pod.NodeName, NodeIP: pod.NodeIP}
	switch component {
	case v1alpha1.ComponentMaster:
		status.MasterPod = &info
	case v1alpha1.ComponentWorker, v1alpha1.ComponentClient:
		if status.WorkerPods == nil {
			status.WorkerPods = map[string]v1alpha1.PodInfo{}
		}
		status.WorkerPods[pod.Name] = info
	}

	if pod.Phase != "Succeeded" || (component != v1alpha1.ComponentWorker && component != v1alpha1.ComponentClient) {
		return nil
	}

	log, err := fetchLog(ctx, benchmark.Namespace, pod.Name, pod.Container)
	if err != nil {
		return operrors.Wrap(err, "POD_LOG_FETCH_FAILED", "fetching fio client log")
	}
	if status.ClientLogs == nil {
		status.ClientLogs = map[string]string{}
	}
	status.ClientLogs[pod.Name] = log
	return nil
}

func summarise(obj client.Object) error {
	benchmark, ok := obj.(*v1alpha1.Fio)
	if !ok {
		return fmt.Errorf("fio: unexpected object type %T", obj)
	}
	status := &benchmark.Status

	expected := benchmark.Spec.NumClients
	if expected < 1 {
		expected = 1
	}

	var result *v1alpha1.FioResult
	var err error
	if expected > 1 {
		result, err = parse.FioAggregate(status.ClientLogs, expected)
	} else {
		var log string
		for _, l := range status.ClientLogs {
			log = l
			break
		}
		if log == "" {
			return operrors.NewIncompleteResults(parse.RetryDelay)
		}
		result, err = parse.Fio([]byte(log))
	}
	if err != nil {
		return err
	}

	status.Result = result
	status.SummaryResult = fmt.Sprintf(
		"read %.2f KB/s (%.0f IOPS), write %.2f KB/s (%.0f IOPS)",
		result.ReadBW, result.ReadIOPS, result.WriteBW, result.WriteIOPS,
	)
	return nil
}
