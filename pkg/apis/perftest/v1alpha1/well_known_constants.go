package v1alpha1

const (
	perftestPrefix = "perftest.stackhpc.com/"

	// Finalizer is placed on each benchmark object, not on its child
	// resources; it holds the benchmark's deletion until the reconciler has
	// deleted the managed resources and released the priority class.
	Finalizer = perftestPrefix + "finalizer"

	// KindLabel records which benchmark kind a child resource belongs to.
	KindLabel = perftestPrefix + "benchmark-kind"
	// NamespaceLabel records the owning benchmark's namespace.
	NamespaceLabel = perftestPrefix + "benchmark-namespace"
	// NameLabel records the owning benchmark's name.
	NameLabel = perftestPrefix + "benchmark-name"
	// ComponentLabel records the role a child resource plays (master, worker, server, client).
	ComponentLabel = perftestPrefix + "benchmark-component"
	// HostsFromLabel marks a configmap as a discovery target for the named service.
	HostsFromLabel = perftestPrefix + "hosts-from"

	// ProgressAnnotation names the reconciliation-progress annotation. No
	// code in this module reads or writes it; restart idempotency comes from
	// the status fields (phase, priorityClassName, managedResources).
	ProgressAnnotation = perftestPrefix + "progress"
	// LastHandledConfigurationAnnotation names the last-handled spec hash
	// annotation. No code in this module reads or writes it, so no
	// reconcile is skipped on an unchanged spec hash.
	LastHandledConfigurationAnnotation = perftestPrefix + "last-handled-configuration"

	// HostsAvailableAnnotation is written onto benchmark pods once the
	// discovery configmap they depend on has a complete hosts file; their
	// readiness probe uses it to release an init container.
	HostsAvailableAnnotation = perftestPrefix + "hosts-available"
	HostsAvailableYes        = "yes"

	// Component values used in ComponentLabel.
	ComponentMaster = "master"
	ComponentWorker = "worker"
	ComponentServer = "server"
	ComponentClient = "client"
)

// knownComponents is the set of component values IsKnownComponent accepts.
var knownComponents = map[string]bool{
	ComponentMaster: true,
	ComponentWorker: true,
	ComponentServer: true,
	ComponentClient: true,
}

// IsKnownComponent reports whether label is one of the well known component values.
func IsKnownComponent(label string) bool {
	return knownComponents[label]
}
