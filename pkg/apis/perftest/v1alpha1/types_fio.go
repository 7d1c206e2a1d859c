package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// FioSpec defines the parameters for a fio benchmark.
type FioSpec struct {
	Image             string `json:"image,omitempty"`
	ImagePullPolicy   string `json:"imagePullPolicy,omitempty"`
	FioPort           int    `json:"fioPort,omitempty"`
	VolumeClaimName   string `json:"volumeClaimName,omitempty"`
	NumWorkers        int    `json:"numWorkers,omitempty"`
	RW                string `json:"rw,omitempty"`
	BS                string `json:"bs,omitempty"`
	IODepth           int    `json:"iodepth,omitempty"`
	NrFiles           int    `json:"nrfiles,omitempty"`
	RWMixRead         int    `json:"rwmixread,omitempty"`
	PercentageRandom  int    `json:"percentageRandom,omitempty"`
	Direct            int    `json:"direct,omitempty"`
	IOEngine          string `json:"ioengine,omitempty"`
	Runtime           string `json:"runtime,omitempty"`
	NumJobs           int    `json:"numJobs,omitempty"`
	Size              string `json:"size,omitempty"`
	Thread            bool   `json:"thread,omitempty"`
	NumClients        int    `json:"numClients,omitempty"`
	Mode              string `json:"mode,omitempty"`
}

// FioResult is the aggregate result of a fio benchmark run.
type FioResult struct {
	ReadBW           float64 `json:"readBw"`
	ReadIOPS         float64 `json:"readIops"`
	ReadLatNSMean    float64 `json:"readLatNsMean"`
	ReadLatNSStddev  float64 `json:"readLatNsStddev"`
	WriteBW          float64 `json:"writeBw"`
	WriteIOPS        float64 `json:"writeIops"`
	WriteLatNSMean   float64 `json:"writeLatNsMean"`
	WriteLatNSStddev float64 `json:"writeLatNsStddev"`
}

// FioStatus is the status of a fio benchmark.
type FioStatus struct {
	BenchmarkStatus `json:",inline"`
	Result          *FioResult         `json:"result,omitempty"`
	SummaryResult   string             `json:"summaryResult,omitempty"`
	MasterPod       *PodInfo           `json:"masterPod,omitempty"`
	WorkerPods      map[string]PodInfo `json:"workerPods,omitempty"`
	// ClientLogs holds the raw client pod log keyed by pod name. With a
	// single client this has one entry; with spec.NumClients > 1 it can have
	// several, which summarise aggregates across (see §4.4 "fio 2-client aggregate").
	ClientLogs map[string]string `json:"clientLogs,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Fio is the custom resource for running an fio benchmark.
type Fio struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   FioSpec   `json:"spec,omitempty"`
	Status FioStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// FioList is a list of Fio benchmarks.
type FioList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Fio `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Fio{}, &FioList{})
}

func (in *Fio) DeepCopyInto(out *Fio) {
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
	if in.Status.ClientLogs != nil {
		out.Status.ClientLogs = make(map[string]string, len(in.Status.ClientLogs))
		for k, v := range in.Status.ClientLogs {
			out.Status.ClientLogs[k] = v
		}
	}
}

func (in *Fio) DeepCopy() *Fio {
	if in == nil {
		return nil
	}
	out := new(Fio)
	in.DeepCopyInto(out)
	return out
}

func (in *Fio) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// GetBenchmarkStatus implements BenchmarkObject.
func (in *Fio) GetBenchmarkStatus() *BenchmarkStatus {
	return &in.Status.BenchmarkStatus
}

func (in *FioList) DeepCopyInto(out *FioList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]Fio, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *FioList) DeepCopy() *FioList {
	if in == nil {
		return nil
	}
	out := new(FioList)
	in.DeepCopyInto(out)
	return out
}

func (in *FioList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
