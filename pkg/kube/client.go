package kube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/raycarroll/pod-ip-watcher/pkg/logger"
)

// NewClientset builds a Kubernetes clientset. In-cluster configuration is
// tried first (when running inside a pod); otherwise the kubeconfig at
// kubeconfigPath is used, defaulting to $HOME/.kube/config.
func NewClientset(kubeconfigPath string) (kubernetes.Interface, error) {
	config, err := rest.InClusterConfig()
	if err == nil {
		logger.Info("Loaded in-cluster Kubernetes configuration")
	} else {
		if kubeconfigPath == "" {
			kubeconfigPath = DefaultKubeconfigPath()
		}
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading Kubernetes configuration: %w", err)
		}
		logger.Info("Loaded local Kubernetes configuration from %s", kubeconfigPath)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating Kubernetes client: %w", err)
	}

	return clientset, nil
}

// DefaultKubeconfigPath returns the conventional kubeconfig location,
// honoring the KUBECONFIG environment variable.
func DefaultKubeconfigPath() string {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path
	}
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".kube", "config")
	}
	return ""
}

// Ping checks that the API server is reachable.
func Ping(ctx context.Context, clientset kubernetes.Interface) error {
	body, err := clientset.Discovery().RESTClient().Get().AbsPath("/healthz").Do(ctx).Raw()
	if err != nil {
		return fmt.Errorf("pinging API server: %w", err)
	}
	logger.Debug("API server healthz: %s", string(body))
	return nil
}
