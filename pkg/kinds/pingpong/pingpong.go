// Package pingpong implements the registry.Descriptor for the PingPong
// benchmark kind (spec §4.4 "mpi ping-pong"): an OSU-style MPI ping-pong
// test run across a master and its workers, whose result is extracted
// from the master's text log.
package pingpong

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

const templateName = "pingpong"

// Descriptor returns the registry.Descriptor for PingPong.
func Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:         "PingPong",
		NewObject:    func() client.Object { return &v1alpha1.PingPong{} },
		NewList:      func() client.ObjectList { return &v1alpha1.PingPongList{} },
		ResourcesFor: resourcesFor,
		JobModified:  jobModified,
		PodModified:  podModified,
		Summarise:    summarise,
	}
}

type renderContext struct {
	Name      string
	Namespace string
	Spec      v1alpha1.PingPongSpec
}

func resourcesFor(ctx context.Context, obj client.Object, templates *template.Loader) ([]client.Object, error) {
	benchmark, ok := obj.(*v1alpha1.PingPong)
	if !ok {
		return nil, fmt.Errorf("pingpong: unexpected object type %T", obj)
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
	benchmark, ok := obj.(*v1alpha1.PingPong)
	if !ok {
		return fmt.Errorf("pingpong: unexpected object type %T", obj)
	}
	benchmark.Status.ApplyJobPhase(jobPhase, metav1.Now())
	return nil
}

// podModified tracks master/worker pod info and, once the master (the
// rank that runs the OSU benchmark's rank 0 and prints the row table)
// reaches Succeeded, captures its log.
func podModified(ctx context.Context, obj client.Object, component string, pod registry.PodEvent, fetchLog registry.FetchLog) error {
	benchmark, ok := obj.(*v1alpha1.PingPong)
	if !ok {
		return fmt.Errorf("pingpong: unexpected object type %T", obj)
	}
	status := &benchmark.Status

	info := v1alpha1.PodInfo{PodIP: pod.PodIP, NodeName: pod.NodeName, NodeIP: pod.NodeIP}
	switch component {
	case v1alpha1.ComponentMaster:
		status.MasterPod = &info
	case v1alpha1.ComponentWorker:
		if status.WorkerPods == nil {
			status.WorkerPods = map[string]v1alpha1.PodInfo{}
		}
		status.WorkerPods[pod.Name] = info
	}

	if component != v1alpha1.ComponentMaster || pod.Phase != "Succeeded" {
		return nil
	}

	log, err := fetchLog(ctx, benchmark.Namespace, pod.Name, pod.Container)
	if err != nil {
		return operrors.Wrap(err, "POD_LOG_FETCH_FAILED", "fetching ping-pong master log")
	}
	status.MasterLog = log
	return nil
}

func summarise(obj client.Object) error {
	benchmark, ok := obj.(*v1alpha1.PingPong)
	if !ok {
		return fmt.Errorf("pingpong: unexpected object type %T", obj)
	}
	status := &benchmark.Status

	if status.MasterLog == "" {
		return operrors.NewIncompleteResults(parse.RetryDelay)
	}

	result, headline, err := parse.PingPong([]byte(status.MasterLog))
	if err != nil {
		return err
	}

	status.Result = result
	status.SummaryResult = headline
	return nil
}
