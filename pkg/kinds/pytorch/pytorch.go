// Package pytorch implements the registry.Descriptor for the PyTorch
// benchmark kind (spec §4.4 "pyTorch"): a distributed training run across
// a master and its workers, whose result is extracted from the master's
// training-script log plus a GNU-time wall-clock block.
package pytorch

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

const templateName = "pytorch"

// Descriptor returns the registry.Descriptor for PyTorch.
func Descriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:         "PyTorch",
		NewObject:    func() client.Object { return &v1alpha1.PyTorch{} },
		NewList:      func() client.ObjectList { return &v1alpha1.PyTorchList{} },
		ResourcesFor: resourcesFor,
		JobModified:  jobModified,
		PodModified:  podModified,
		Summarise:    summarise,
	}
}

type renderContext struct {
	Name      string
	Namespace string
	Spec      v1alpha1.PyTorchSpec
}

func resourcesFor(ctx context.Context, obj client.Object, templates *template.Loader) ([]client.Object, error) {
	benchmark, ok := obj.(*v1alpha1.PyTorch)
	if !ok {
		return nil, fmt.Errorf("pytorch: unexpected object type %T", obj)
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
	benchmark, ok := obj.(*v1alpha1.PyTorch)
	if !ok {
		return fmt.Errorf("pytorch: unexpected object type %T", obj)
	}
	benchmark.Status.ApplyJobPhase(jobPhase, metav1.Now())
	return nil
}

// podModified tracks master/worker pod info and, once the master (rank 0,
// which logs the CPU/GPU timing lines and is wrapped in GNU time) reaches
// Succeeded, captures its log.
func podModified(ctx context.Context, obj client.Object, component string, pod registry.PodEvent, fetchLog registry.FetchLog) error {
	benchmark, ok := obj.(*v1alpha1.PyTorch)
	if !ok {
		return fmt.Errorf("pytorch: unexpected object type %T", obj)
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
		return operrors.Wrap(err, "POD_LOG_FETCH_FAILED", "fetching pyTorch master log")
	}
	status.MasterLog = log
	return nil
}

func summarise(obj client.Object) error {
	benchmark, ok := obj.(*v1alpha1.PyTorch)
	if !ok {
		return fmt.Errorf("pytorch: unexpected object type %T", obj)
	}
	status := &benchmark.Status

	if status.MasterLog == "" {
		return operrors.NewIncompleteResults(parse.RetryDelay)
	}

	device := benchmark.Spec.Device
	if device == "" {
		device = "cpu"
	}

	result, err := parse.PyTorch([]byte(status.MasterLog), device)
	if err != nil {
		return err
	}

	status.Result = result
	status.SummaryResult = fmt.Sprintf("cpu %.2fms/batch, wall clock %.2fs", result.CPUWallTimePerBatchMS, result.WallClockSeconds)
	return nil
}
