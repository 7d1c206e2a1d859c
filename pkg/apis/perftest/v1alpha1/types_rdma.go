package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// RDMASpec defines the parameters shared by the bandwidth and latency RDMA benchmarks.
type RDMASpec struct {
	Image           string `json:"image,omitempty"`
	ImagePullPolicy string `json:"imagePullPolicy,omitempty"`
	HostNetwork     bool   `json:"hostNetwork,omitempty"`
	Device          string `json:"device,omitempty"`
	// Test selects the perftest binary, e.g. ib_write_bw, ib_write_lat.
	Test        string `json:"test,omitempty"`
	Size        int    `json:"size,omitempty"`
	Iterations  int    `json:"iterations,omitempty"`
	GPUDirect   bool   `json:"gpuDirect,omitempty"`
}

// RDMARow is one parsed row from the perftest output table.
type RDMARow struct {
	Bytes       int64   `json:"bytes"`
	Iterations  int64   `json:"iterations"`
	PeakBW      float64 `json:"peakBw,omitempty"`
	AverageBW   float64 `json:"averageBw,omitempty"`
	MsgRate     float64 `json:"msgRate,omitempty"`
	T_Min       float64 `json:"tMin,omitempty"`
	T_Max       float64 `json:"tMax,omitempty"`
	T_Typical   float64 `json:"tTypical,omitempty"`
	T_Average   float64 `json:"tAverage,omitempty"`
}

// RDMABandwidthResult is the aggregate result of an RDMA bandwidth benchmark.
// Headline is the peak bandwidth row (max of peak_bw across rows).
type RDMABandwidthResult struct {
	Rows     []RDMARow `json:"rows"`
	PeakBW   float64   `json:"peakBw"`
	AvgBW    float64   `json:"avgBw"`
}

// RDMABandwidthStatus is the status of an RDMA bandwidth benchmark.
type RDMABandwidthStatus struct {
	BenchmarkStatus `json:",inline"`
	SummaryResult   string               `json:"summaryResult,omitempty"`
	Result          *RDMABandwidthResult `json:"result,omitempty"`
	ServerPod       *PodInfo             `json:"serverPod,omitempty"`
	ClientPod       *PodInfo             `json:"clientPod,omitempty"`
	// ClientLog holds the raw client pod log once the client reaches
	// Succeeded; summarise parses the perftest row table out of it.
	ClientLog string `json:"clientLog,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// RDMABandwidth is the custom resource for running an RDMA bandwidth benchmark.
type RDMABandwidth struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   RDMASpec            `json:"spec,omitempty"`
	Status RDMABandwidthStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// RDMABandwidthList is a list of RDMABandwidth benchmarks.
type RDMABandwidthList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []RDMABandwidth `json:"items"`
}

// RDMALatencyResult is the aggregate result of an RDMA latency benchmark.
// Headline is the minimum of the average-latency column across rows, in microseconds.
type RDMALatencyResult struct {
	Rows       []RDMARow `json:"rows"`
	MinAverage float64   `json:"minAverage"`
}

// RDMALatencyStatus is the status of an RDMA latency benchmark.
type RDMALatencyStatus struct {
	BenchmarkStatus `json:",inline"`
	SummaryResult   string             `json:"summaryResult,omitempty"`
	Result          *RDMALatencyResult `json:"result,omitempty"`
	ServerPod       *PodInfo           `json:"serverPod,omitempty"`
	ClientPod       *PodInfo           `json:"clientPod,omitempty"`
	// ClientLog holds the raw client pod log once the client reaches
	// Succeeded; summarise parses the perftest row table out of it.
	ClientLog string `json:"clientLog,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// RDMALatency is the custom resource for running an RDMA latency benchmark.
type RDMALatency struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   RDMASpec          `json:"spec,omitempty"`
	Status RDMALatencyStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// RDMALatencyList is a list of RDMALatency benchmarks.
type RDMALatencyList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []RDMALatency `json:"items"`
}

func init() {
	SchemeBuilder.Register(&RDMABandwidth{}, &RDMABandwidthList{})
	SchemeBuilder.Register(&RDMALatency{}, &RDMALatencyList{})
}

func (in *RDMABandwidth) DeepCopyInto(out *RDMABandwidth) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	in.Status.BenchmarkStatus.DeepCopyInto(&out.Status.BenchmarkStatus)
	if in.Status.Result != nil {
		r := RDMABandwidthResult{PeakBW: in.Status.Result.PeakBW, AvgBW: in.Status.Result.AvgBW}
		if in.Status.Result.Rows != nil {
			r.Rows = make([]RDMARow, len(in.Status.Result.Rows))
			copy(r.Rows, in.Status.Result.Rows)
		}
		out.Status.Result = &r
	}
	if in.Status.ServerPod != nil {
		p := *in.Status.ServerPod
		out.Status.ServerPod = &p
	}
	if in.Status.ClientPod != nil {
		p := *in.Status.ClientPod
		out.Status.ClientPod = &p
	}
}

func (in *RDMABandwidth) DeepCopy() *RDMABandwidth {
	if in == nil {
		return nil
	}
	out := new(RDMABandwidth)
	in.DeepCopyInto(out)
	return out
}

func (in *RDMABandwidth) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// GetBenchmarkStatus implements BenchmarkObject.
func (in *RDMABandwidth) GetBenchmarkStatus() *BenchmarkStatus {
	return &in.Status.BenchmarkStatus
}

func (in *RDMABandwidthList) DeepCopyInto(out *RDMABandwidthList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]RDMABandwidth, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *RDMABandwidthList) DeepCopy() *RDMABandwidthList {
	if in == nil {
		return nil
	}
	out := new(RDMABandwidthList)
	in.DeepCopyInto(out)
	return out
}

func (in *RDMABandwidthList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

func (in *RDMALatency) DeepCopyInto(out *RDMALatency) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	in.Status.BenchmarkStatus.DeepCopyInto(&out.Status.BenchmarkStatus)
	if in.Status.Result != nil {
		r := RDMALatencyResult{MinAverage: in.Status.Result.MinAverage}
		if in.Status.Result.Rows != nil {
			r.Rows = make([]RDMARow, len(in.Status.Result.Rows))
			copy(r.Rows, in.Status.Result.Rows)
		}
		out.Status.Result = &r
	}
	if in.Status.ServerPod != nil {
		p := *in.Status.ServerPod
		out.Status.ServerPod = &p
	}
	if in.Status.ClientPod != nil {
		p := *in.Status.ClientPod
		out.Status.ClientPod = &p
	}
}

func (in *RDMALatency) DeepCopy() *RDMALatency {
	if in == nil {
		return nil
	}
	out := new(RDMALatency)
	in.DeepCopyInto(out)
	return out
}

func (in *RDMALatency) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// GetBenchmarkStatus implements BenchmarkObject.
func (in *RDMALatency) GetBenchmarkStatus() *BenchmarkStatus {
	return &in.Status.BenchmarkStatus
}

func (in *RDMALatencyList) DeepCopyInto(out *RDMALatencyList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]RDMALatency, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *RDMALatencyList) DeepCopy() *RDMALatencyList {
	if in == nil {
		return nil
	}
	out := new(RDMALatencyList)
	in.DeepCopyInto(out)
	return out
}

func (in *RDMALatencyList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
