// Package discovery maintains the hosts file MPI-style benchmarks read
// before they start: a configmap tagged hostsFrom=<service> lists the pod
// names a gang expects, and this package fills in data.hosts once every
// expected peer has an IP, clearing it again if a peer disappears (spec
// §4.7).
package discovery

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	"github.com/stackhpc/perftest-operator/pkg/cluster"
	"github.com/stackhpc/perftest-operator/pkg/config"
)

const (
	allHostsKey = "all-hosts"
	hostsKey    = "hosts"
)

// Writer reconciles discovery configmaps for a single service's endpoints.
type Writer struct {
	Client       cluster.Client
	HostsFromKey string
	DefaultHosts string
	FieldManager string
	// KindLabel, NamespaceLabel and NameLabel are the same routing labels
	// every managed resource carries; a hostsFrom configmap carries them
	// too, and the writer uses them to find the benchmark's own pods to
	// annotate once the hosts block is complete.
	KindLabel      string
	NamespaceLabel string
	NameLabel      string
}

// New builds a Writer from the operator's configured settings.
func New(c cluster.Client, cfg config.Settings) *Writer {
	return &Writer{
		Client:         c,
		HostsFromKey:   cfg.Operator.Labels.HostsFromLabel,
		DefaultHosts:   cfg.Operator.DefaultHosts,
		FieldManager:   cfg.Cluster.FieldManager,
		KindLabel:      cfg.Operator.Labels.KindLabel,
		NamespaceLabel: cfg.Operator.Labels.NamespaceLabel,
		NameLabel:      cfg.Operator.Labels.NameLabel,
	}
}

// Reconcile recomputes data.hosts on every configmap tagged
// hostsFrom=serviceName in namespace, from serviceName's current
// endpoints. Safe to call whether the triggering event was a change to the
// configmap (a newly rendered benchmark's expected peer list) or to the
// endpoints (a peer pod got or lost an IP) — both resolve to the same
// service and the same recomputation.
func (w *Writer) Reconcile(ctx context.Context, namespace, serviceName string) error {
	var configMaps corev1.ConfigMapList
	err := w.Client.List(ctx, &configMaps, client.InNamespace(namespace), client.MatchingLabels{w.HostsFromKey: serviceName})
	if err != nil {
		return fmt.Errorf("discovery: listing configmaps for service %s: %w", serviceName, err)
	}
	if len(configMaps.Items) == 0 {
		return nil
	}

	var endpoints corev1.Endpoints
	err = w.Client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: serviceName}, &endpoints)
	if err != nil && !cluster.IsNotFound(err) {
		return fmt.Errorf("discovery: fetching endpoints for service %s: %w", serviceName, err)
	}
	discovered := discoverHosts(&endpoints, serviceName)

	for i := range configMaps.Items {
		cm := &configMaps.Items[i]
		expected := parseExpectedHosts(cm.Data[allHostsKey])

		hosts := ""
		if isSuperset(discovered, expected) {
			hosts = buildHostsBlock(w.DefaultHosts, discovered, expected)
		}

		if cm.Data == nil {
			cm.Data = map[string]string{}
		}
		changed := cm.Data[hostsKey] != hosts
		cm.Data[hostsKey] = hosts
		if changed {
			if err := w.Client.Apply(ctx, cm, w.FieldManager); err != nil {
				return fmt.Errorf("discovery: writing hosts to configmap %s: %w", cm.Name, err)
			}
		}

		if hosts != "" {
			if err := w.annotatePods(ctx, namespace, cm); err != nil {
				return err
			}
		}
	}
	return nil
}

// annotatePods marks every pod belonging to the same benchmark as cm with
// hostsAvailable=yes (spec §4.7's last step), so each pod's readiness probe
// can release its init container. Idempotent: a pod already carrying the
// annotation is left alone.
func (w *Writer) annotatePods(ctx context.Context, namespace string, cm *corev1.ConfigMap) error {
	var pods corev1.PodList
	err := w.Client.List(ctx, &pods, client.InNamespace(namespace), client.MatchingLabels{
		w.KindLabel:      cm.Labels[w.KindLabel],
		w.NamespaceLabel: cm.Labels[w.NamespaceLabel],
		w.NameLabel:      cm.Labels[w.NameLabel],
	})
	if err != nil {
		return fmt.Errorf("discovery: listing pods for hosts-available annotation: %w", err)
	}

	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Annotations[v1alpha1.HostsAvailableAnnotation] == v1alpha1.HostsAvailableYes {
			continue
		}
		patch := &corev1.Pod{
			TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
			ObjectMeta: metav1.ObjectMeta{
				Namespace:   pod.Namespace,
				Name:        pod.Name,
				Annotations: map[string]string{v1alpha1.HostsAvailableAnnotation: v1alpha1.HostsAvailableYes},
			},
		}
		if err := w.Client.Apply(ctx, patch, w.FieldManager); err != nil {
			return fmt.Errorf("discovery: annotating pod %s: %w", pod.Name, err)
		}
	}
	return nil
}

// discoverHosts maps every address in endpoints' subsets (ready and not
// ready alike — a not-yet-ready pod still has an IP worth recording) to its
// formatted /etc/hosts line, keyed by the peer name used in all-hosts.
func discoverHosts(endpoints *corev1.Endpoints, serviceName string) map[string]string {
	lines := make(map[string]string)
	for _, subset := range endpoints.Subsets {
		addresses := append(append([]corev1.EndpointAddress{}, subset.Addresses...), subset.NotReadyAddresses...)
		for _, addr := range addresses {
			key := peerKey(addr)
			if key == "" {
				continue
			}
			lines[key] = fmt.Sprintf("%s  %s.%s  %s", addr.IP, key, serviceName, key)
		}
	}
	return lines
}

// peerKey picks the per-peer key spec §4.7 names: the address's own
// hostname if set, otherwise the name of the pod it targets. Targets that
// aren't pods (rare, but the EndpointAddress.TargetRef contract allows it)
// have no stable per-peer name and are skipped.
func peerKey(addr corev1.EndpointAddress) string {
	if addr.Hostname != "" {
		return addr.Hostname
	}
	if addr.TargetRef != nil && addr.TargetRef.Kind == "Pod" {
		return addr.TargetRef.Name
	}
	return ""
}

// parseExpectedHosts splits the newline-delimited all-hosts key into the
// ordered list of peer names a gang expects, skipping blank lines.
func parseExpectedHosts(raw string) []string {
	var expected []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			expected = append(expected, line)
		}
	}
	return expected
}

// isSuperset reports whether discovered has an entry for every name in
// expected.
func isSuperset(discovered map[string]string, expected []string) bool {
	for _, name := range expected {
		if _, ok := discovered[name]; !ok {
			return false
		}
	}
	return true
}

// buildHostsBlock renders the complete hosts file: the platform default
// prefix, then one line per expected peer in expected's own order, so the
// file doesn't reorder itself on every reconcile as map iteration would.
func buildHostsBlock(prefix string, discovered map[string]string, expected []string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, name := range expected {
		b.WriteString(discovered[name])
		b.WriteString("\n")
	}
	return b.String()
}
