package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// IPerfSpec defines the parameters for an iperf benchmark.
type IPerfSpec struct {
	Image           string `json:"image,omitempty"`
	ImagePullPolicy string `json:"imagePullPolicy,omitempty"`
	HostNetwork     bool   `json:"hostNetwork,omitempty"`
	ServerService   bool   `json:"serverService,omitempty"`
	Duration        int    `json:"duration"`
	Streams         int    `json:"streams"`
	BufferSize      int    `json:"bufferSize,omitempty"`
}

// IPerfSingleResult is the result of one iperf stream, or the combined result.
type IPerfSingleResult struct {
	Transfer  int64 `json:"transfer"`
	Bandwidth int64 `json:"bandwidth"`
}

// IPerfResult is the full result of an iperf benchmark.
type IPerfResult struct {
	Streams map[string]IPerfSingleResult `json:"streams"`
	Sum     IPerfSingleResult            `json:"sum"`
}

// IPerfStatus is the status of an iperf benchmark.
type IPerfStatus struct {
	BenchmarkStatus `json:",inline"`
	SummaryResult   string       `json:"summaryResult,omitempty"`
	Result          *IPerfResult `json:"result,omitempty"`
	ServerPod       *PodInfo     `json:"serverPod,omitempty"`
	ClientPod       *PodInfo     `json:"clientPod,omitempty"`
	// ClientLog holds the raw client pod log once the client reaches
	// Succeeded; summarise parses the stream table out of it.
	ClientLog string `json:"clientLog,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// IPerf is the custom resource for running an iperf benchmark.
type IPerf struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   IPerfSpec   `json:"spec,omitempty"`
	Status IPerfStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// IPerfList is a list of IPerf benchmarks.
type IPerfList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []IPerf `json:"items"`
}

func init() {
	SchemeBuilder.Register(&IPerf{}, &IPerfList{})
}

func (in *IPerf) DeepCopyInto(out *IPerf) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	in.Status.BenchmarkStatus.DeepCopyInto(&out.Status.BenchmarkStatus)
	if in.Status.Result != nil {
		r := IPerfResult{Sum: in.Status.Result.Sum}
		if in.Status.Result.Streams != nil {
			r.Streams = make(map[string]IPerfSingleResult, len(in.Status.Result.Streams))
			for k, v := range in.Status.Result.Streams {
				r.Streams[k] = v
			}
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

func (in *IPerf) DeepCopy() *IPerf {
	if in == nil {
		return nil
	}
	out := new(IPerf)
	in.DeepCopyInto(out)
	return out
}

func (in *IPerf) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// GetBenchmarkStatus implements BenchmarkObject.
func (in *IPerf) GetBenchmarkStatus() *BenchmarkStatus {
	return &in.Status.BenchmarkStatus
}

func (in *IPerfList) DeepCopyInto(out *IPerfList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]IPerf, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *IPerfList) DeepCopy() *IPerfList {
	if in == nil {
		return nil
	}
	out := new(IPerfList)
	in.DeepCopyInto(out)
	return out
}

func (in *IPerfList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
