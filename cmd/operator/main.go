// Command operator runs the perftest operator: it watches Benchmark custom
// resources of every registered kind, the BenchmarkSet aggregate, and the
// Volcano jobs/pods/configmaps/endpoints those benchmarks own, driving the
// lifecycle described in spec §4.
package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrlruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
	"github.com/stackhpc/perftest-operator/pkg/benchmarkset"
	"github.com/stackhpc/perftest-operator/pkg/cluster"
	"github.com/stackhpc/perftest-operator/pkg/config"
	opctl "github.com/stackhpc/perftest-operator/pkg/controller"
	"github.com/stackhpc/perftest-operator/pkg/correlator"
	"github.com/stackhpc/perftest-operator/pkg/discovery"
	"github.com/stackhpc/perftest-operator/pkg/kinds/fio"
	"github.com/stackhpc/perftest-operator/pkg/kinds/iperf"
	"github.com/stackhpc/perftest-operator/pkg/kinds/openfoam"
	"github.com/stackhpc/perftest-operator/pkg/kinds/pingpong"
	"github.com/stackhpc/perftest-operator/pkg/kinds/pytorch"
	"github.com/stackhpc/perftest-operator/pkg/kinds/rdma"
	"github.com/stackhpc/perftest-operator/pkg/logging"
	"github.com/stackhpc/perftest-operator/pkg/metrics"
	"github.com/stackhpc/perftest-operator/pkg/priority"
	"github.com/stackhpc/perftest-operator/pkg/reconciler"
	"github.com/stackhpc/perftest-operator/pkg/registry"
	"github.com/stackhpc/perftest-operator/pkg/template"
)

//go:embed templates/*.yaml.tmpl
var templateFS embed.FS

var (
	configPath         string
	metricsBindAddress string
	healthProbeAddress string
	leaderElection     bool
	leaderElectionID   string
	printConfig        bool
)

func main() {
	root := &cobra.Command{
		Use:           "operator",
		Short:         "Runs the perftest benchmark operator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML settings file; defaults are used if empty")
	root.Flags().StringVar(&metricsBindAddress, "metrics-bind-address", ":8443", "address the metrics endpoint binds to")
	root.Flags().StringVar(&healthProbeAddress, "health-probe-bind-address", ":8081", "address the health/ready endpoints bind to")
	root.Flags().BoolVar(&leaderElection, "leader-elect", false, "enable leader election for controller manager HA")
	root.Flags().StringVar(&leaderElectionID, "leader-election-id", "perftest-operator-lock", "leader election lock name")
	root.Flags().BoolVar(&printConfig, "print-config", false, "print the effective settings as YAML and exit, without starting the manager")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := config.Load(configPath, nil); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Current()

	if printConfig {
		out, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("rendering config: %w", err)
		}
		fmt.Println(out)
		return nil
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	ctrlruntime.SetLogger(log)

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return fmt.Errorf("registering client-go scheme: %w", err)
	}
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		return fmt.Errorf("registering perftest scheme: %w", err)
	}

	restConfig, err := ctrlruntime.GetConfig()
	if err != nil {
		return fmt.Errorf("loading kubeconfig: %w", err)
	}
	restConfig.QPS = cfg.Cluster.QPS
	restConfig.Burst = cfg.Cluster.Burst

	mgr, err := ctrlruntime.NewManager(restConfig, ctrlruntime.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: metricsBindAddress},
		HealthProbeBindAddress: healthProbeAddress,
		LeaderElection:         leaderElection,
		LeaderElectionID:       leaderElectionID,
	})
	if err != nil {
		return fmt.Errorf("building controller manager: %w", err)
	}
	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("registering healthz check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("registering readyz check: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("building clientset: %w", err)
	}

	clusterClient := cluster.New(mgr.GetClient(), clientset)

	reg := registry.New(cfg.Operator.APIGroup)
	reg.Register(fio.Descriptor())
	reg.Register(iperf.Descriptor())
	reg.Register(rdma.BandwidthDescriptor())
	reg.Register(rdma.LatencyDescriptor())
	reg.Register(pingpong.Descriptor())
	reg.Register(openfoam.Descriptor())
	reg.Register(pytorch.Descriptor())

	templates, err := loadTemplates()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	alloc := priority.New(clusterClient, cfg.Priority, cfg.Operator)
	disc := discovery.New(clusterClient, cfg)
	recorder := metrics.NewRecorder(ctrlmetrics.Registry)

	rec := reconciler.New(clusterClient, reg, alloc, templates, scheme, cfg)
	rec.Metrics = recorder
	corr := correlator.New(clusterClient, reg, disc, cfg)
	corr.Metrics = recorder
	bset := benchmarkset.New(clusterClient, reg, scheme, cfg)
	bset.Metrics = recorder

	reconcilerQueue := opctl.NewController[reconciler.Identity](rec, cfg.Workers.BenchmarkWorkers)
	correlatorQueue := opctl.NewController[correlator.Identity](corr, cfg.Workers.BenchmarkWorkers)
	benchmarkSetQueue := opctl.NewController[benchmarkset.Identity](bset, cfg.Workers.BenchmarkSetWorkers)

	if err := wireWatches(mgr, reg, cfg, reconcilerQueue, correlatorQueue, benchmarkSetQueue); err != nil {
		return fmt.Errorf("wiring watches: %w", err)
	}

	reconcilerQueue.Run(ctx)
	correlatorQueue.Run(ctx)
	benchmarkSetQueue.Run(ctx)

	log.Info("starting perftest operator", "apiGroup", cfg.Operator.APIGroup, "kinds", reg.Kinds())
	return mgr.Start(ctx)
}

// loadTemplates reads the embedded Volcano job templates into a
// template.Loader, keyed by the kind's template name (e.g. "fio",
// "rdma-bandwidth") rather than the embedded file name.
func loadTemplates() (*template.Loader, error) {
	names := map[string]string{
		"fio.yaml.tmpl":            "fio",
		"iperf.yaml.tmpl":          "iperf",
		"rdma-bandwidth.yaml.tmpl": "rdma-bandwidth",
		"rdma-latency.yaml.tmpl":   "rdma-latency",
		"pingpong.yaml.tmpl":       "pingpong",
		"openfoam.yaml.tmpl":       "openfoam",
		"pytorch.yaml.tmpl":        "pytorch",
	}

	sources := make(map[string]string, len(names))
	for file, name := range names {
		body, err := templateFS.ReadFile("templates/" + file)
		if err != nil {
			return nil, fmt.Errorf("reading embedded template %s: %w", file, err)
		}
		sources[name] = string(body)
	}
	return template.NewLoader(sources)
}

// forwardingReconciler adapts a controller-runtime watch into the
// operator's own workqueue-backed Controller[T]: every event is translated
// to an Identity and pushed onto queue, with the actual work done by that
// Controller's Handler on its own goroutines rather than here.
type forwardingReconciler[T comparable] struct {
	queue   *opctl.Controller[T]
	toIdent func(req ctrlruntime.Request) T
}

func (f *forwardingReconciler[T]) Reconcile(_ context.Context, req ctrlruntime.Request) (ctrlruntime.Result, error) {
	f.queue.Add(f.toIdent(req))
	return ctrlruntime.Result{}, nil
}

func watch[T comparable](mgr ctrlruntime.Manager, name string, obj client.Object, queue *opctl.Controller[T], toIdent func(req ctrlruntime.Request) T) error {
	return ctrlruntime.NewControllerManagedBy(mgr).
		Named(name).
		For(obj).
		Complete(&forwardingReconciler[T]{queue: queue, toIdent: toIdent})
}

// wireWatches registers a controller-runtime watch per resource kind each
// of the three bespoke workqueues needs to hear about: one per benchmark
// kind for the reconciler, one per benchmark kind plus BenchmarkSet itself
// for the benchmark-set controller, and Job/Pod/Endpoints/ConfigMap for the
// correlator.
func wireWatches(
	mgr ctrlruntime.Manager,
	reg *registry.Registry,
	cfg config.Settings,
	reconcilerQueue *opctl.Controller[reconciler.Identity],
	correlatorQueue *opctl.Controller[correlator.Identity],
	benchmarkSetQueue *opctl.Controller[benchmarkset.Identity],
) error {
	kinds := reg.Kinds()

	for _, kind := range kinds {
		kind := kind
		desc := reg.MustLookup(cfg.Operator.APIGroup, kind)
		if err := watch(mgr, "reconciler-"+kind, desc.NewObject(), reconcilerQueue, func(req ctrlruntime.Request) reconciler.Identity {
			return reconciler.Identity{Group: cfg.Operator.APIGroup, Kind: kind, Namespace: req.Namespace, Name: req.Name}
		}); err != nil {
			return err
		}
		if err := watch(mgr, "benchmarkset-child-"+kind, desc.NewObject(), benchmarkSetQueue, func(req ctrlruntime.Request) benchmarkset.Identity {
			return benchmarkset.Identity{Event: benchmarkset.EventChildChanged, Kind: kind, Namespace: req.Namespace, Name: req.Name}
		}); err != nil {
			return err
		}
	}

	if err := watch(mgr, "benchmarkset", &v1alpha1.BenchmarkSet{}, benchmarkSetQueue, func(req ctrlruntime.Request) benchmarkset.Identity {
		return benchmarkset.Identity{Event: benchmarkset.EventSetCreated, Namespace: req.Namespace, Name: req.Name}
	}); err != nil {
		return err
	}

	if err := watch(mgr, "correlator-pod", &corev1.Pod{}, correlatorQueue, func(req ctrlruntime.Request) correlator.Identity {
		return correlator.Identity{Resource: correlator.ResourcePod, Namespace: req.Namespace, Name: req.Name}
	}); err != nil {
		return err
	}

	volcanoJob := &unstructured.Unstructured{}
	volcanoJob.SetGroupVersionKind(correlator.VolcanoJobGVK)
	if err := watch(mgr, "correlator-job", volcanoJob, correlatorQueue, func(req ctrlruntime.Request) correlator.Identity {
		return correlator.Identity{Resource: correlator.ResourceJob, Namespace: req.Namespace, Name: req.Name}
	}); err != nil {
		return err
	}

	if err := watch(mgr, "correlator-endpoints", &corev1.Endpoints{}, correlatorQueue, func(req ctrlruntime.Request) correlator.Identity {
		return correlator.Identity{Resource: correlator.ResourceEndpoints, Namespace: req.Namespace, Name: req.Name}
	}); err != nil {
		return err
	}

	if err := watch(mgr, "correlator-configmap", &corev1.ConfigMap{}, correlatorQueue, func(req ctrlruntime.Request) correlator.Identity {
		return correlator.Identity{Resource: correlator.ResourceConfigMap, Namespace: req.Namespace, Name: req.Name}
	}); err != nil {
		return err
	}

	return nil
}
