// Package cluster abstracts the Kubernetes API surface the reconciler,
// correlator and benchmark-set controller need: server-side apply (for
// spec/child objects and for status subresources), label-filtered list,
// idempotent delete, and pod log retrieval; watches are not part of it. Everything upstream of
// this package talks to the cluster only through the Client interface, so
// it can be faked in tests without a real API server.
package cluster

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/client"

	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
)

// Client is the capability the core components require from the
// Kubernetes API. A 409 conflict on an Apply/ApplyStatus call is the
// caller's responsibility to retry; ApplyWithConflictRetry below does that.
type Client interface {
	// Apply server-side-applies obj's spec (and metadata), owned by fieldManager.
	Apply(ctx context.Context, obj client.Object, fieldManager string) error
	// ApplyStatus server-side-applies obj's status subresource.
	ApplyStatus(ctx context.Context, obj client.Object, fieldManager string) error
	// Get fetches a single object by key.
	Get(ctx context.Context, key client.ObjectKey, obj client.Object) error
	// List fetches a collection, typically filtered with client.MatchingLabels.
	List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error
	// Delete removes obj. A NotFound error is swallowed: deletes are idempotent.
	Delete(ctx context.Context, obj client.Object) error
	// Create creates obj. An AlreadyExists error is returned unmodified so
	// callers (the priority allocator) can treat it as a signal to retry.
	Create(ctx context.Context, obj client.Object) error
	// FetchPodLog returns the full log of the named container in a pod.
	// namespace/name/container must identify a pod that has already
	// terminated for the log to be complete.
	FetchPodLog(ctx context.Context, namespace, name, container string) (string, error)
}

// client struct wires controller-runtime's typed client (for CRUD and SSA)
// together with a plain clientset (the only way to stream a pod's log).
type clusterClient struct {
	c         client.Client
	clientset kubernetes.Interface
}

// New builds a Client from an existing controller-runtime client and a
// clientset sharing the same kubeconfig/rest.Config.
func New(c client.Client, clientset kubernetes.Interface) Client {
	return &clusterClient{c: c, clientset: clientset}
}

func (cc *clusterClient) Apply(ctx context.Context, obj client.Object, fieldManager string) error {
	return cc.c.Patch(ctx, obj, client.Apply, client.FieldOwner(fieldManager), client.ForceOwnership)
}

func (cc *clusterClient) ApplyStatus(ctx context.Context, obj client.Object, fieldManager string) error {
	return cc.c.Status().Patch(ctx, obj, client.Apply, client.FieldOwner(fieldManager), client.ForceOwnership)
}

func (cc *clusterClient) Get(ctx context.Context, key client.ObjectKey, obj client.Object) error {
	return cc.c.Get(ctx, key, obj)
}

func (cc *clusterClient) List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error {
	return cc.c.List(ctx, list, opts...)
}

func (cc *clusterClient) Delete(ctx context.Context, obj client.Object) error {
	err := cc.c.Delete(ctx, obj)
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

func (cc *clusterClient) Create(ctx context.Context, obj client.Object) error {
	return cc.c.Create(ctx, obj)
}

func (cc *clusterClient) FetchPodLog(ctx context.Context, namespace, name, container string) (string, error) {
	req := cc.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{Container: container})
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsNotFound reports whether err is a Kubernetes NotFound API error.
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

// IsConflict reports whether err is a Kubernetes 409 Conflict API error.
func IsConflict(err error) bool {
	return apierrors.IsConflict(err)
}

// IsAlreadyExists reports whether err is a Kubernetes 409 AlreadyExists API error.
func IsAlreadyExists(err error) bool {
	return apierrors.IsAlreadyExists(err)
}

// ConflictRetryDelay is returned as the TemporaryError's retry delay when
// ApplyWithConflictRetry gives up waiting synchronously and defers to the
// caller's workqueue instead.
const ConflictRetryDelay = time.Second

// ApplyWithConflictRetry calls fn (an Apply/ApplyStatus call) and, on a 409
// conflict, retries with a short exponential backoff bounded by limit. Any
// other error is returned as-is; a conflict that survives past limit is
// returned as a TemporaryError so the caller's workqueue reschedules it
// rather than spinning synchronously.
func ApplyWithConflictRetry(ctx context.Context, limit time.Duration, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = ConflictRetryDelay
	b.MaxElapsedTime = limit
	bctx := backoff.WithContext(b, ctx)

	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if IsConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}, bctx)

	if err == nil {
		return nil
	}
	if IsConflict(err) {
		return operrors.NewTemporaryError("status update conflict, will retry", ConflictRetryDelay)
	}
	return err
}
