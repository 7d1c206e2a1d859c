package v1alpha1

import (
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// BenchmarkTemplate names the benchmark kind a set fans out into, plus the
// base spec that every generated child starts from before a permutation's
// overrides are deep-concat-merged in.
type BenchmarkTemplate struct {
	APIVersion string               `json:"apiVersion"`
	Kind       string               `json:"kind"`
	Spec       apiextensionsv1.JSON `json:"spec,omitempty"`
}

// Permutations describes how a set's children are generated: the cartesian
// product of zero or more named axes, followed by a list of fully-specified
// override sets that each produce exactly one permutation.
type Permutations struct {
	// Product maps an axis name to its values; permutations are the
	// cartesian product across all axes, keys taken in alphabetical order
	// (the last key varies fastest); the order in which the keys were
	// written is not preserved.
	Product map[string][]apiextensionsv1.JSON `json:"product,omitempty"`
	// Explicit is a list of override sets, each contributing one
	// permutation outside the product expansion.
	Explicit []map[string]apiextensionsv1.JSON `json:"explicit,omitempty"`
}

// BenchmarkSetSpec defines how a set of benchmarks is generated from a template.
type BenchmarkSetSpec struct {
	Template     BenchmarkTemplate `json:"template"`
	Permutations Permutations      `json:"permutations,omitempty"`
	// Repetitions is the number of child benchmarks created for each
	// permutation. Defaults to 1.
	Repetitions int `json:"repetitions,omitempty"`
}

// BenchmarkSetStatus is the status of a benchmark set.
type BenchmarkSetStatus struct {
	// PermutationCount is the number of distinct permutations: the product
	// of the product axes' cardinalities, plus the explicit count.
	PermutationCount int `json:"permutationCount,omitempty"`
	// Count is PermutationCount * Repetitions, the total number of children.
	Count int `json:"count,omitempty"`
	// Completed maps a child benchmark's name to whether it finished with
	// phase Completed (true) or some other terminal phase (false). A
	// child appears here at most once, the first time it reaches a
	// terminal phase.
	Completed map[string]bool `json:"completed,omitempty"`
	Succeeded int             `json:"succeeded,omitempty"`
	Failed    int             `json:"failed,omitempty"`
	StartedAt *metav1.Time    `json:"startedAt,omitempty"`
	// FinishedAt is set once len(Completed) == Count.
	FinishedAt *metav1.Time `json:"finishedAt,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// BenchmarkSet is the custom resource that fans a template out into many
// benchmarks of the same kind and aggregates their terminal statuses.
type BenchmarkSet struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   BenchmarkSetSpec   `json:"spec,omitempty"`
	Status BenchmarkSetStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// BenchmarkSetList is a list of BenchmarkSets.
type BenchmarkSetList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []BenchmarkSet `json:"items"`
}

func init() {
	SchemeBuilder.Register(&BenchmarkSet{}, &BenchmarkSetList{})
}

func (in *BenchmarkTemplate) DeepCopyInto(out *BenchmarkTemplate) {
	*out = *in
	in.Spec.DeepCopyInto(&out.Spec)
}

func (in *Permutations) DeepCopyInto(out *Permutations) {
	*out = *in
	if in.Product != nil {
		out.Product = make(map[string][]apiextensionsv1.JSON, len(in.Product))
		for k, vs := range in.Product {
			cp := make([]apiextensionsv1.JSON, len(vs))
			for i := range vs {
				vs[i].DeepCopyInto(&cp[i])
			}
			out.Product[k] = cp
		}
	}
	if in.Explicit != nil {
		out.Explicit = make([]map[string]apiextensionsv1.JSON, len(in.Explicit))
		for i, m := range in.Explicit {
			cp := make(map[string]apiextensionsv1.JSON, len(m))
			for k, v := range m {
				var vcp apiextensionsv1.JSON
				v.DeepCopyInto(&vcp)
				cp[k] = vcp
			}
			out.Explicit[i] = cp
		}
	}
}

func (in *BenchmarkSetSpec) DeepCopyInto(out *BenchmarkSetSpec) {
	*out = *in
	in.Template.DeepCopyInto(&out.Template)
	in.Permutations.DeepCopyInto(&out.Permutations)
}

func (in *BenchmarkSetStatus) DeepCopyInto(out *BenchmarkSetStatus) {
	*out = *in
	if in.Completed != nil {
		out.Completed = make(map[string]bool, len(in.Completed))
		for k, v := range in.Completed {
			out.Completed[k] = v
		}
	}
	if in.StartedAt != nil {
		t := in.StartedAt.DeepCopy()
		out.StartedAt = &t
	}
	if in.FinishedAt != nil {
		t := in.FinishedAt.DeepCopy()
		out.FinishedAt = &t
	}
}

func (in *BenchmarkSet) DeepCopyInto(out *BenchmarkSet) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

func (in *BenchmarkSet) DeepCopy() *BenchmarkSet {
	if in == nil {
		return nil
	}
	out := new(BenchmarkSet)
	in.DeepCopyInto(out)
	return out
}

func (in *BenchmarkSet) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

func (in *BenchmarkSetList) DeepCopyInto(out *BenchmarkSetList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]BenchmarkSet, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *BenchmarkSetList) DeepCopy() *BenchmarkSetList {
	if in == nil {
		return nil
	}
	out := new(BenchmarkSetList)
	in.DeepCopyInto(out)
	return out
}

func (in *BenchmarkSetList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}
