// Package iperf implements the registry.Descriptor for the IPerf benchmark
// kind (spec §4.4 "iperf"): a server/client network throughput test whose
// result is extracted from the client's iperf2 text log.
package iperf

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

const templateName = "iperf"

// Descriptor returns the registry.Descriptor for IPerf.
func Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:         "IPerf",
		NewObject:    func() client.Object { return &v1alpha1.IPerf{} },
		NewList:      func() client.ObjectList { return &v1alpha1.IPerfList{} },
		ResourcesFor: resourcesFor,
		JobModified:  jobModified,
		PodModified:  podModified,
		Summarise:    summarise,
	}
}

type renderContext struct {
	Name      string
	Namespace string
	Spec      v1alpha1.IPerfSpec
}

func resourcesFor(ctx context.Context, obj client.Object, templates *template.Loader) ([]client.Object, error) {
	benchmark, ok := obj.(*v1alpha1.IPerf)
	if !ok {
		return nil, fmt.Errorf("iperf: unexpected object type %T", obj)
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
	benchmark, ok := obj.(*v1alpha1.IPerf)
	if !ok {
		return fmt.Errorf("iperf: unexpected object type %T", obj)
	}
	benchmark.Status.ApplyJobPhase(jobPhase, metav1.Now())
	return nil
}

// podModified tracks the server and client pod info and, once the client
// pod (the one that runs the iperf client and prints the stream table)
// reaches Succeeded, captures its log.
func podModified(ctx context.Context, obj client.Object, component string, pod registry.PodEvent, fetchLog registry.FetchLog) error {
	benchmark, ok := obj.(*v1alpha1.IPerf)
	if !ok {
		return fmt.Errorf("iperf: unexpected object type %T", obj)
	}
	status := &benchmark.Status

	info := v1alpha1.PodInfo{PodIP: pod.PodIP, NodeName: pod.NodeName, NodeIP: pod.NodeIP}
	switch component {
	case v1alpha1.ComponentServer:
		status.ServerPod = &info
	case v1alpha1.ComponentClient:
		status.ClientPod = &info
	}

	if component != v1alpha1.ComponentClient || pod.Phase != "Succeeded" {
		return nil
	}

	log, err := fetchLog(ctx, benchmark.Namespace, pod.Name, pod.Container)
	if err != nil {
		return operrors.Wrap(err, "POD_LOG_FETCH_FAILED", "fetching iperf client log")
	}
	status.ClientLog = log
	return nil
}

func summarise(obj client.Object) error {
	benchmark, ok := obj.(*v1alpha1.IPerf)
	if !ok {
		return fmt.Errorf("iperf: unexpected object type %T", obj)
	}
	status := &benchmark.Status

	if status.ClientLog == "" {
		return operrors.NewIncompleteResults(parse.RetryDelay)
	}

	result, headline, err := parse.IPerf([]byte(status.ClientLog), benchmark.Spec.Streams)
	if err != nil {
		return err
	}

	status.Result = result
	status.SummaryResult = headline
	return nil
}
