package benchmarkset

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	"github.com/stackhpc/perftest-operator/pkg/cluster"
	"github.com/stackhpc/perftest-operator/pkg/registry"
)

const testGroup = "perftest.stackhpc.com"

// memClient is a minimal in-memory cluster.Client keyed by (concrete Go
// type, namespace, name); Get round-trips through JSON the way the real
// client would decode an unstructured response into a typed target, which
// lets it serve both typed kinds and unstructured.Unstructured alike.
type memClient struct {
	objects []client.Object
}

func newMemClient() *memClient { return &memClient{} }

func (m *memClient) indexOf(obj client.Object) int {
	for i, o := range m.objects {
		if reflect.TypeOf(o) == reflect.TypeOf(obj) && o.GetNamespace() == obj.GetNamespace() && o.GetName() == obj.GetName() {
			return i
		}
	}
	return -1
}

func (m *memClient) upsert(obj client.Object) {
	cp := obj.DeepCopyObject().(client.Object)
	if i := m.indexOf(obj); i >= 0 {
		m.objects[i] = cp
		return
	}
	m.objects = append(m.objects, cp)
}

func (m *memClient) Apply(ctx context.Context, obj client.Object, fieldManager string) error {
	m.upsert(obj)
	return nil
}

func (m *memClient) ApplyStatus(ctx context.Context, obj client.Object, fieldManager string) error {
	m.upsert(obj)
	return nil
}

func (m *memClient) Get(ctx context.Context, key client.ObjectKey, obj client.Object) error {
	for _, o := range m.objects {
		if reflect.TypeOf(o) != reflect.TypeOf(obj) {
			continue
		}
		if o.GetNamespace() == key.Namespace && o.GetName() == key.Name {
			data, err := json.Marshal(o)
			if err != nil {
				return err
			}
			return json.Unmarshal(data, obj)
		}
	}
	return apierrors.NewNotFound(schema.GroupResource{Resource: fmt.Sprintf("%T", obj)}, key.Name)
}

func (m *memClient) List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error {
	return fmt.Errorf("memClient: List not supported for %T", list)
}

func (m *memClient) Delete(ctx context.Context, obj client.Object) error {
	if i := m.indexOf(obj); i >= 0 {
		m.objects = append(m.objects[:i], m.objects[i+1:]...)
	}
	return nil
}

func (m *memClient) Create(ctx context.Context, obj client.Object) error {
	if i := m.indexOf(obj); i >= 0 {
		return apierrors.NewAlreadyExists(schema.GroupResource{Resource: fmt.Sprintf("%T", obj)}, obj.GetName())
	}
	m.objects = append(m.objects, obj.DeepCopyObject().(client.Object))
	return nil
}

func (m *memClient) FetchPodLog(ctx context.Context, namespace, name, container string) (string, error) {
	return "", nil
}

// childNamed scans the store for an unstructured child with the given name.
func (m *memClient) childNamed(name string) (*unstructured.Unstructured, bool) {
	for _, o := range m.objects {
		u, ok := o.(*unstructured.Unstructured)
		if ok && u.GetName() == name {
			return u, true
		}
	}
	return nil, false
}

var _ cluster.Client = (*memClient)(nil)

func newFixture(t *testing.T) (*Controller, *memClient) {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, v1alpha1.AddToScheme(scheme))

	mc := newMemClient()
	reg := registry.New(testGroup)
	reg.Register(registry.Descriptor{
		Kind:      "Fio",
		NewObject: func() client.Object { return &v1alpha1.Fio{} },
		NewList:   func() client.ObjectList { return &v1alpha1.FioList{} },
	})

	c := &Controller{
		Client:             mc,
		Registry:           reg,
		Scheme:             scheme,
		APIGroup:           testGroup,
		FieldManager:       "perftest-operator",
		ConflictRetryLimit: time.Second,
	}
	return c, mc
}

func newSet(name string, spec v1alpha1.BenchmarkSetSpec) *v1alpha1.BenchmarkSet {
	return &v1alpha1.BenchmarkSet{
		ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: name, UID: "set-uid"},
		Spec:       spec,
	}
}

func TestHandleSetCreated_RendersChildrenWithOwnerReferencesAndStatus(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	set := newSet("sweep", v1alpha1.BenchmarkSetSpec{
		Template: v1alpha1.BenchmarkTemplate{
			APIVersion: testGroup + "/v1alpha1",
			Kind:       "Fio",
			Spec:       rawJSON(t, map[string]any{"rw": "randread"}),
		},
		Permutations: v1alpha1.Permutations{
			Product: map[string][]apiextensionsv1.JSON{
				"bs": {rawJSON(t, "4k"), rawJSON(t, "8k")},
			},
		},
	})
	require.NoError(t, mc.Create(ctx, set))

	_, err := c.Do(ctx, Identity{Event: EventSetCreated, Namespace: "ns", Name: "sweep"})
	require.NoError(t, err)

	var got v1alpha1.BenchmarkSet
	require.NoError(t, mc.Get(ctx, client.ObjectKey{Namespace: "ns", Name: "sweep"}, &got))
	assert.Equal(t, 2, got.Status.PermutationCount)
	assert.Equal(t, 2, got.Status.Count)
	require.NotNil(t, got.Status.StartedAt)

	child1, ok := mc.childNamed("sweep-01")
	require.True(t, ok)
	rw, _, _ := unstructured.NestedString(child1.Object, "spec", "rw")
	assert.Equal(t, "randread", rw)
	bs, _, _ := unstructured.NestedString(child1.Object, "spec", "bs")
	assert.Equal(t, "4k", bs)

	refs := child1.GetOwnerReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, "BenchmarkSet", refs[0].Kind)
	assert.Equal(t, "sweep", refs[0].Name)
	require.NotNil(t, refs[0].Controller)
	assert.True(t, *refs[0].Controller)

	child2, ok := mc.childNamed("sweep-02")
	require.True(t, ok)
	bs2, _, _ := unstructured.NestedString(child2.Object, "spec", "bs")
	assert.Equal(t, "8k", bs2)
}

func TestHandleSetCreated_IsIdempotent(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	set := newSet("sweep", v1alpha1.BenchmarkSetSpec{
		Template: v1alpha1.BenchmarkTemplate{
			APIVersion: testGroup + "/v1alpha1",
			Kind:       "Fio",
		},
	})
	require.NoError(t, mc.Create(ctx, set))

	_, err := c.Do(ctx, Identity{Event: EventSetCreated, Namespace: "ns", Name: "sweep"})
	require.NoError(t, err)
	_, err = c.Do(ctx, Identity{Event: EventSetCreated, Namespace: "ns", Name: "sweep"})
	require.NoError(t, err)

	count := 0
	for _, o := range mc.objects {
		if _, ok := o.(*unstructured.Unstructured); ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestHandleSetCreated_MissingSetIsANoOp(t *testing.T) {
	c, _ := newFixture(t)
	_, err := c.Do(context.Background(), Identity{Event: EventSetCreated, Namespace: "ns", Name: "missing"})
	assert.NoError(t, err)
}

func TestHandleSetCreated_UnknownTemplateKindIsAnError(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	set := newSet("sweep", v1alpha1.BenchmarkSetSpec{
		Template: v1alpha1.BenchmarkTemplate{APIVersion: testGroup + "/v1alpha1", Kind: "NoSuchKind"},
	})
	require.NoError(t, mc.Create(ctx, set))

	_, err := c.Do(ctx, Identity{Event: EventSetCreated, Namespace: "ns", Name: "sweep"})
	assert.Error(t, err)
}

func newFioChild(namespace, name, setName string) *v1alpha1.Fio {
	return &v1alpha1.Fio{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			OwnerReferences: []metav1.OwnerReference{{
				APIVersion: testGroup + "/v1alpha1",
				Kind:       "BenchmarkSet",
				Name:       setName,
				Controller: boolPtr(true),
			}},
		},
	}
}

func boolPtr(b bool) *bool { return &b }

func TestHandleChildChanged_UpsertsCompletedAndTalliesSucceeded(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	set := newSet("sweep", v1alpha1.BenchmarkSetSpec{})
	set.Status.Count = 2
	require.NoError(t, mc.Create(ctx, set))

	child := newFioChild("ns", "sweep-1", "sweep")
	child.Status.Phase = v1alpha1.PhaseCompleted
	require.NoError(t, mc.Create(ctx, child))

	_, err := c.Do(ctx, Identity{Event: EventChildChanged, Kind: "Fio", Namespace: "ns", Name: "sweep-1"})
	require.NoError(t, err)

	var got v1alpha1.BenchmarkSet
	require.NoError(t, mc.Get(ctx, client.ObjectKey{Namespace: "ns", Name: "sweep"}, &got))
	assert.True(t, got.Status.Completed["sweep-1"])
	assert.Equal(t, 1, got.Status.Succeeded)
	assert.Equal(t, 0, got.Status.Failed)
	assert.Nil(t, got.Status.FinishedAt)
}

func TestHandleChildChanged_SetsFinishedAtWhenTallyReachesCount(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	set := newSet("sweep", v1alpha1.BenchmarkSetSpec{})
	set.Status.Count = 1
	require.NoError(t, mc.Create(ctx, set))

	child := newFioChild("ns", "sweep-1", "sweep")
	child.Status.Phase = v1alpha1.PhaseFailed
	require.NoError(t, mc.Create(ctx, child))

	_, err := c.Do(ctx, Identity{Event: EventChildChanged, Kind: "Fio", Namespace: "ns", Name: "sweep-1"})
	require.NoError(t, err)

	var got v1alpha1.BenchmarkSet
	require.NoError(t, mc.Get(ctx, client.ObjectKey{Namespace: "ns", Name: "sweep"}, &got))
	assert.False(t, got.Status.Completed["sweep-1"])
	assert.Equal(t, 0, got.Status.Succeeded)
	assert.Equal(t, 1, got.Status.Failed)
	require.NotNil(t, got.Status.FinishedAt)
}

func TestHandleChildChanged_NonTerminalPhaseIsANoOp(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	set := newSet("sweep", v1alpha1.BenchmarkSetSpec{})
	set.Status.Count = 1
	require.NoError(t, mc.Create(ctx, set))

	child := newFioChild("ns", "sweep-1", "sweep")
	child.Status.Phase = v1alpha1.PhaseRunning
	require.NoError(t, mc.Create(ctx, child))

	_, err := c.Do(ctx, Identity{Event: EventChildChanged, Kind: "Fio", Namespace: "ns", Name: "sweep-1"})
	require.NoError(t, err)

	var got v1alpha1.BenchmarkSet
	require.NoError(t, mc.Get(ctx, client.ObjectKey{Namespace: "ns", Name: "sweep"}, &got))
	assert.Nil(t, got.Status.Completed)
}

func TestHandleChildChanged_ChildWithNoSetOwnerIsIgnored(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	child := &v1alpha1.Fio{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "standalone"}}
	child.Status.Phase = v1alpha1.PhaseCompleted
	require.NoError(t, mc.Create(ctx, child))

	_, err := c.Do(ctx, Identity{Event: EventChildChanged, Kind: "Fio", Namespace: "ns", Name: "standalone"})
	assert.NoError(t, err)
}

func TestHandleChildChanged_AlreadyRecordedChildIsSkipped(t *testing.T) {
	c, mc := newFixture(t)
	ctx := context.Background()

	set := newSet("sweep", v1alpha1.BenchmarkSetSpec{})
	set.Status.Count = 2
	set.Status.Completed = map[string]bool{"sweep-1": true}
	set.Status.Succeeded = 1
	require.NoError(t, mc.Create(ctx, set))

	child := newFioChild("ns", "sweep-1", "sweep")
	child.Status.Phase = v1alpha1.PhaseFailed
	require.NoError(t, mc.Create(ctx, child))

	_, err := c.Do(ctx, Identity{Event: EventChildChanged, Kind: "Fio", Namespace: "ns", Name: "sweep-1"})
	require.NoError(t, err)

	var got v1alpha1.BenchmarkSet
	require.NoError(t, mc.Get(ctx, client.ObjectKey{Namespace: "ns", Name: "sweep"}, &got))
	assert.True(t, got.Status.Completed["sweep-1"])
	assert.Equal(t, 1, got.Status.Succeeded)
}

func TestDo_UnknownEventIsAnError(t *testing.T) {
	c, _ := newFixture(t)
	_, err := c.Do(context.Background(), Identity{Event: "Bogus", Namespace: "ns", Name: "x"})
	assert.Error(t, err)
}
