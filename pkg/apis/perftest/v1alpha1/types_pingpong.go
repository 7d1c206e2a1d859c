package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// PingPongSpec defines the parameters for an MPI ping-pong benchmark.
type PingPongSpec struct {
	Image           string `json:"image,omitempty"`
	ImagePullPolicy string `json:"imagePullPolicy,omitempty"`
	HostNetwork     bool   `json:"hostNetwork,omitempty"`
	NumWorkers      int    `json:"numWorkers,omitempty"`
	MinSize         int    `json:"minSize,omitempty"`
	MaxSize         int    `json:"maxSize,omitempty"`
	Iterations      int    `json:"iterations,omitempty"`
}

// PingPongRow is one parsed row of the OSU-style ping-pong output.
type PingPongRow struct {
	Bytes     int64   `json:"bytes"`
	Reps      int64   `json:"reps"`
	TimeUS    float64 `json:"timeUs"`
	Bandwidth float64 `json:"bandwidth"`
}

// PingPongResult is the aggregate result of a ping-pong benchmark.
// Headline is the largest bandwidth reported, in BandwidthUnit (as captured
// from the output header, e.g. "Mbytes/sec").
type PingPongResult struct {
	Rows          []PingPongRow `json:"rows"`
	MaxBandwidth  float64       `json:"maxBandwidth"`
	BandwidthUnit string        `json:"bandwidthUnit"`
}

// PingPongStatus is the status of a ping-pong benchmark.
type PingPongStatus struct {
	BenchmarkStatus `json:",inline"`
	SummaryResult   string           `json:"summaryResult,omitempty"`
	Result          *PingPongResult  `json:"result,omitempty"`
	MasterPod       *PodInfo         `json:"masterPod,omitempty"`
	WorkerPods      map[string]PodInfo `json:"workerPods,omitempty"`
	// MasterLog holds the raw master pod log once it reaches Succeeded;
	// summarise parses the OSU-style row table out of it.
	MasterLog string `json:"masterLog,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// PingPong is the custom resource for running an MPI ping-pong benchmark.
type PingPong struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   PingPongSpec   `json:"spec,omitempty"`
	Status PingPongStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// PingPongList is a list of PingPong benchmarks.
type PingPongList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []PingPong `json:"items"`
}

func init() {
	SchemeBuilder.Register(&PingPong{}, &PingPongList{})
}

func (in *PingPong) DeepCopyInto(out *PingPong) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	in.Status.BenchmarkStatus.DeepCopyInto(&out.Status.BenchmarkStatus)
	if in.Status.Result != nil {
		r := PingPongResult{MaxBandwidth: in.Status.Result.MaxBandwidth, BandwidthUnit: in.Status.Result.BandwidthUnit}
		if in.Status.Result.Rows != nil {
			r.Rows = make([]PingPongRow, len(in.Status.Result.Rows))
			copy(r.Rows, in.Status.Result.Rows)
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

func (in *PingPong) DeepCopy() *PingPong {
	if in == nil {
		return nil
	}
	out := new(PingPong)
	in.DeepCopyInto(out)
	return out
}

func (in *PingPong) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// GetBenchmarkStatus implements BenchmarkObject.
func (in *PingPong) GetBenchmarkStatus() *BenchmarkStatus {
	return &in.Status.BenchmarkStatus
}

func (in *PingPongList) DeepCopyInto(out *PingPongList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]PingPong, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *PingPongList) DeepCopy() *PingPongList {
	if in == nil {
		return nil
	}
	out := new(PingPongList)
	in.DeepCopyInto(out)
	return out
}

func (in *PingPongList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
