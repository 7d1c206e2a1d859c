package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// OpenFOAMSpec defines the parameters for an OpenFOAM CFD benchmark.
type OpenFOAMSpec struct {
	Image           string `json:"image,omitempty"`
	ImagePullPolicy string `json:"imagePullPolicy,omitempty"`
	HostNetwork     bool   `json:"hostNetwork,omitempty"`
	NumWorkers      int    `json:"numWorkers,omitempty"`
	Case            string `json:"case,omitempty"`
	Solver          string `json:"solver,omitempty"`
}

// OpenFOAMResult is the aggregate result of an OpenFOAM benchmark, taken
// from the solver log's GNU-time-style "real"/"user"/"sys" lines, in
// seconds. Headline is RealSeconds.
type OpenFOAMResult struct {
	RealSeconds float64 `json:"realSeconds"`
	UserSeconds float64 `json:"userSeconds"`
	SysSeconds  float64 `json:"sysSeconds"`
}

// OpenFOAMStatus is the status of an OpenFOAM benchmark.
type OpenFOAMStatus struct {
	BenchmarkStatus `json:",inline"`
	SummaryResult   string            `json:"summaryResult,omitempty"`
	Result          *OpenFOAMResult   `json:"result,omitempty"`
	MasterPod       *PodInfo          `json:"masterPod,omitempty"`
	WorkerPods      map[string]PodInfo `json:"workerPods,omitempty"`
	// MasterLog holds the raw master pod log once it reaches Succeeded;
	// summarise scans the GNU-time real/user/sys lines out of it.
	MasterLog string `json:"masterLog,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// OpenFOAM is the custom resource for running an OpenFOAM benchmark.
type OpenFOAM struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   OpenFOAMSpec   `json:"spec,omitempty"`
	Status OpenFOAMStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// OpenFOAMList is a list of OpenFOAM benchmarks.
type OpenFOAMList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []OpenFOAM `json:"items"`
}

func init() {
	SchemeBuilder.Register(&OpenFOAM{}, &OpenFOAMList{})
}

func (in *OpenFOAM) DeepCopyInto(out *OpenFOAM) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	in.Status.BenchmarkStatus.DeepCopyInto(&out.Status.BenchmarkStatus)
	if in.Status.Result != nil {
		r := *in.Status.Result
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

func (in *OpenFOAM) DeepCopy() *OpenFOAM {
	if in == nil {
		return nil
	}
	out := new(OpenFOAM)
	in.DeepCopyInto(out)
	return out
}

func (in *OpenFOAM) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// GetBenchmarkStatus implements BenchmarkObject.
func (in *OpenFOAM) GetBenchmarkStatus() *BenchmarkStatus {
	return &in.Status.BenchmarkStatus
}

func (in *OpenFOAMList) DeepCopyInto(out *OpenFOAMList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]OpenFOAM, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *OpenFOAMList) DeepCopy() *OpenFOAMList {
	if in == nil {
		return nil
	}
	out := new(OpenFOAMList)
	in.DeepCopyInto(out)
	return out
}

func (in *OpenFOAMList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
