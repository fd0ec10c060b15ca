package kube

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
)

// Conn bundles the clients needed to read cluster state: the resolved REST
// config, a typed clientset for listing core objects, and the core REST
// client used for raw GETs against proxy paths.
type Conn struct {
	Config *rest.Config
	Core   kubernetes.Interface
	REST   rest.Interface
	Host   string
}

// NewConn resolves a cluster connection from a kubeconfig file and a named
// context within it. An empty path falls back to the default kubeconfig
// loading rules; an empty context uses the file's current context. When both
// are empty the config is resolved the standard way (KUBECONFIG, home
// kubeconfig, then in-cluster service account).
func NewConn(kubeconfigPath, contextName string) (*Conn, error) {
	if kubeconfigPath == "" && contextName == "" {
		cfg, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("resolve cluster config: %w", err)
		}
		return NewConnFromConfig(cfg)
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig context %q: %w", contextName, err)
	}
	return NewConnFromConfig(cfg)
}

// NewConnFromConfig creates connection clients backed by an already resolved
// REST config.
func NewConnFromConfig(cfg *rest.Config) (*Conn, error) {
	coreClient, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes clientset: %w", err)
	}

	return &Conn{
		Config: cfg,
		Core:   coreClient,
		REST:   coreClient.CoreV1().RESTClient(),
		Host:   cfg.Host,
	}, nil
}
