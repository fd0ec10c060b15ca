// Package usage retrieves resource-usage data for pods and nodes by combining
// two reads per resource kind: a typed list from the core API and a usage
// document from the legacy Heapster aggregator, reached through the API
// server's service-proxy path. The two are merged into a {usage, info} result.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/stretchcloud/kubetop/pkg/kube"
	"github.com/stretchcloud/kubetop/pkg/observability"
)

// Backend selects where usage documents are sourced from.
type Backend string

const (
	// BackendHeapster reads usage through the API server proxy path to the
	// in-cluster Heapster service. This is the default.
	BackendHeapster Backend = "heapster"
	// BackendMetricsServer reads usage from the metrics.k8s.io API.
	BackendMetricsServer Backend = "metrics-server"
)

// The proxy paths below were observed from kubectl's own traffic
// (kubectl --v=11 top pods); there is no authoritative documentation for the
// service-proxy route into Heapster, so they are preserved exactly as-is.
const (
	nodeUsagePath     = "/api/v1/namespaces/kube-system/services/http:heapster:/proxy/apis/metrics/v1alpha1/nodes"
	podUsagePathTmpl  = "/api/v1/namespaces/kube-system/services/http:heapster:/proxy/apis/metrics/v1alpha1/namespaces/%s/pods"
	nodeInfoPath      = "/api/v1/nodes"
	labelSelectorName = "labelSelector"
)

// podUsagePath builds the per-namespace pod usage proxy path. The namespace
// is inserted verbatim; callers must not pass names that would corrupt the URL.
func podUsagePath(namespace string) string {
	return fmt.Sprintf(podUsagePathTmpl, namespace)
}

// Source exposes pod and node usage reads against one cluster connection.
// Every call re-fetches; nothing is cached and calls are safe to issue
// concurrently.
type Source struct {
	core     kubernetes.Interface
	rest     rest.Interface
	metrics  metricsclient.Interface
	backend  Backend
	recorder *observability.Recorder
}

// Option configures a Source.
type Option func(*Source)

// WithRecorder instruments fetches with the given metrics recorder.
func WithRecorder(r *observability.Recorder) Option {
	return func(s *Source) {
		s.recorder = r
	}
}

// WithMetricsServerBackend sources usage documents from the metrics.k8s.io
// API instead of the Heapster proxy. A nil client is constructed from the
// connection's REST config.
func WithMetricsServerBackend(client metricsclient.Interface) Option {
	return func(s *Source) {
		s.backend = BackendMetricsServer
		s.metrics = client
	}
}

// NewSource builds a usage source bound to the given cluster connection. The
// connection must carry both a typed clientset and a core REST client; a
// connection missing either is rejected here rather than at call time.
func NewSource(conn *kube.Conn, opts ...Option) (*Source, error) {
	if conn == nil {
		return nil, errors.New("cluster connection is required")
	}
	if conn.Core == nil || conn.REST == nil {
		return nil, errors.New("cluster connection lacks required clients")
	}

	s := &Source{
		core:    conn.Core,
		rest:    conn.REST,
		backend: BackendHeapster,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.backend == BackendMetricsServer && s.metrics == nil {
		if conn.Config == nil {
			return nil, errors.New("cluster connection lacks a REST config for the metrics-server backend")
		}
		client, err := metricsclient.NewForConfig(conn.Config)
		if err != nil {
			return nil, fmt.Errorf("create metrics client: %w", err)
		}
		s.metrics = client
	}

	return s, nil
}

// Pods fetches the cluster-wide pod usage document and the pod list
// concurrently and merges them. The first failing read aborts the whole call;
// no partial result is returned.
func (s *Source) Pods(ctx context.Context) (*PodResult, error) {
	start := time.Now()
	result, err := s.pods(ctx)
	s.observe("pods", start, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Source) pods(ctx context.Context) (*PodResult, error) {
	result := &PodResult{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.podUsage(ctx)
		if err != nil {
			return err
		}
		result.Usage = doc
		return nil
	})
	g.Go(func() error {
		list, err := s.core.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
		if err != nil {
			return fmt.Errorf("list pods: %w", err)
		}
		result.Info = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Nodes fetches the node usage document and the node list concurrently and
// merges them.
func (s *Source) Nodes(ctx context.Context) (*NodeResult, error) {
	start := time.Now()
	result, err := s.nodes(ctx)
	s.observe("nodes", start, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Source) nodes(ctx context.Context) (*NodeResult, error) {
	result := &NodeResult{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.nodeUsage(ctx)
		if err != nil {
			return err
		}
		result.Usage = doc
		return nil
	})
	g.Go(func() error {
		body, err := s.rest.Get().AbsPath(nodeInfoPath).Do(ctx).Raw()
		if err != nil {
			return fmt.Errorf("get node list: %w", err)
		}
		list := &corev1.NodeList{}
		if err := json.Unmarshal(body, list); err != nil {
			return fmt.Errorf("decode node list: %w", err)
		}
		result.Info = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// podUsage fetches one usage document per namespace and concatenates the
// non-null item batches. Batch order follows fetch completion order.
func (s *Source) podUsage(ctx context.Context) (Document, error) {
	if s.backend == BackendMetricsServer {
		return s.podUsageFromMetricsAPI(ctx)
	}

	namespaces, err := s.core.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return Document{}, fmt.Errorf("list namespaces: %w", err)
	}

	items := make([]json.RawMessage, 0)
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for i := range namespaces.Items {
		name := namespaces.Items[i].Name
		g.Go(func() error {
			doc, err := s.getUsageDocument(ctx, podUsagePath(name), true)
			if err != nil {
				return fmt.Errorf("fetch pod usage for namespace %s: %w", name, err)
			}
			if doc.Items == nil {
				return nil
			}
			mu.Lock()
			items = append(items, doc.Items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Document{}, err
	}
	return Document{Items: items}, nil
}

func (s *Source) nodeUsage(ctx context.Context) (Document, error) {
	if s.backend == BackendMetricsServer {
		return s.nodeUsageFromMetricsAPI(ctx)
	}
	return s.getUsageDocument(ctx, nodeUsagePath, false)
}

func (s *Source) getUsageDocument(ctx context.Context, path string, withSelector bool) (Document, error) {
	req := s.rest.Get().AbsPath(path)
	if withSelector {
		req = req.Param(labelSelectorName, "")
	}
	body, err := req.Do(ctx).Raw()
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("decode usage document: %w", err)
	}
	return doc, nil
}

func (s *Source) observe(resource string, start time.Time, result interface{ itemCount() int }, err error) {
	if s.recorder == nil {
		return
	}
	items := 0
	if err == nil && result != nil {
		items = result.itemCount()
	}
	s.recorder.ObserveFetch(resource, time.Since(start), items, err)
}

func (r *PodResult) itemCount() int {
	if r == nil {
		return 0
	}
	return len(r.Usage.Items)
}

func (r *NodeResult) itemCount() int {
	if r == nil {
		return 0
	}
	return len(r.Usage.Items)
}
