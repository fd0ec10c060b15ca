package usage

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// The metrics-server backend serves the same document shape from the
// metrics.k8s.io API. Pod usage comes back in a single cluster-wide list, so
// no per-namespace fan-out is needed here.

func (s *Source) nodeUsageFromMetricsAPI(ctx context.Context) (Document, error) {
	list, err := s.metrics.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return Document{}, fmt.Errorf("list node metrics: %w", err)
	}

	items := make([]json.RawMessage, 0, len(list.Items))
	for i := range list.Items {
		raw, err := json.Marshal(&list.Items[i])
		if err != nil {
			return Document{}, fmt.Errorf("encode node metrics: %w", err)
		}
		items = append(items, raw)
	}
	return Document{Items: items}, nil
}

func (s *Source) podUsageFromMetricsAPI(ctx context.Context) (Document, error) {
	list, err := s.metrics.MetricsV1beta1().PodMetricses(corev1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return Document{}, fmt.Errorf("list pod metrics: %w", err)
	}

	items := make([]json.RawMessage, 0, len(list.Items))
	for i := range list.Items {
		raw, err := json.Marshal(&list.Items[i])
		if err != nil {
			return Document{}, fmt.Errorf("encode pod metrics: %w", err)
		}
		items = append(items, raw)
	}
	return Document{Items: items}, nil
}
