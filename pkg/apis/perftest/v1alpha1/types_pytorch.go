package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// PyTorchSpec defines the parameters for a PyTorch distributed-training benchmark.
type PyTorchSpec struct {
	Image           string `json:"image,omitempty"`
	ImagePullPolicy string `json:"imagePullPolicy,omitempty"`
	HostNetwork     bool   `json:"hostNetwork,omitempty"`
	NumWorkers      int    `json:"numWorkers,omitempty"`
	GPUsPerWorker   int    `json:"gpusPerWorker,omitempty"`
	// Device selects which result fields the training script logs, and so
	// which fields summarise requires: "cpu" (default) or "cuda".
	Device string `json:"device,omitempty"`
	Script string `json:"script,omitempty"`
	Args   []string `json:"args,omitempty"`
}

// PyTorchResult is the aggregate result of a PyTorch benchmark. CPU fields
// are always present; GPU fields are populated only when the benchmark ran
// with device=cuda. WallClockSeconds comes from a GNU time wrapper around
// the training script; the rest comes from the script's own log output.
type PyTorchResult struct {
	CPUWallTimePerBatchMS float64            `json:"cpuWallTimePerBatchMs"`
	CPUPeakMemoryGB       float64            `json:"cpuPeakMemoryGb"`
	GPUWallTimePerBatchMS float64            `json:"gpuWallTimePerBatchMs,omitempty"`
	GPUPeakMemoryGB       map[string]float64 `json:"gpuPeakMemoryGb,omitempty"`
	WallClockSeconds      float64            `json:"wallClockSeconds"`
}

// PyTorchStatus is the status of a PyTorch benchmark.
type PyTorchStatus struct {
	BenchmarkStatus `json:",inline"`
	SummaryResult   string             `json:"summaryResult,omitempty"`
	Result          *PyTorchResult     `json:"result,omitempty"`
	MasterPod       *PodInfo           `json:"masterPod,omitempty"`
	WorkerPods      map[string]PodInfo `json:"workerPods,omitempty"`
	// MasterLog holds the raw master pod log once it reaches Succeeded;
	// summarise regex-scans the CPU/GPU timing lines and GNU-time block
	// out of it.
	MasterLog string `json:"masterLog,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// PyTorch is the custom resource for running a PyTorch distributed benchmark.
type PyTorch struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   PyTorchSpec   `json:"spec,omitempty"`
	Status PyTorchStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// PyTorchList is a list of PyTorch benchmarks.
type PyTorchList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []PyTorch `json:"items"`
}

func init() {
	SchemeBuilder.Register(&PyTorch{}, &PyTorchList{})
}

func (in *PyTorch) DeepCopyInto(out *PyTorch) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.BenchmarkStatus.DeepCopyInto(&out.Status.BenchmarkStatus)
	if in.Status.Result != nil {
		r := *in.Status.Result
		if in.Status.Result.GPUPeakMemoryGB != nil {
			r.GPUPeakMemoryGB = make(map[string]float64, len(in.Status.Result.GPUPeakMemoryGB))
			for k, v := range in.Status.Result.GPUPeakMemoryGB {
				r.GPUPeakMemoryGB[k] = v
			}
		}
		out.Status.Result = &r
	}
	if in.Status.MasterPod != nil {
		p := *in.Status.MasterPod
		out.Status.MasterPod = &p
	}
	if in.Status.WorkerPods != nil {
		out.Status.WorkerPods = make(map[string]PodInfo, len(in.Status.WorkerPods))
		for k, v := range in.Status.WorkerPods {
			out.Status.WorkerPods[k] = v
		}
	}
}

func (in *PyTorchSpec) DeepCopyInto(out *PyTorchSpec) {
	*out = *in
	if in.Args != nil {
		out.Args = make([]string, len(in.Args))
		copy(out.Args, in.Args)
	}
}

func (in *PyTorch) DeepCopy() *PyTorch {
	if in == nil {
		return nil
	}
	out := new(PyTorch)
	in.DeepCopyInto(out)
	return out
}

func (in *PyTorch) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// GetBenchmarkStatus implements BenchmarkObject.
func (in *PyTorch) GetBenchmarkStatus() *BenchmarkStatus {
	return &in.Status.BenchmarkStatus
}

func (in *PyTorchList) DeepCopyInto(out *PyTorchList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]PyTorch, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *PyTorchList) DeepCopy() *PyTorchList {
	if in == nil {
		return nil
	}
	out := new(PyTorchList)
	in.DeepCopyInto(out)
	return out
}

func (in *PyTorchList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
