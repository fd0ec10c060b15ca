package dashboard

import (
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/stretchcloud/kubetop/pkg/usage"
)

// PodsResponse is the merged pod usage result with a generation timestamp.
type PodsResponse struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Usage       usage.Document  `json:"usage"`
	Info        *corev1.PodList `json:"info"`
}

// NodesResponse is the merged node usage result with a generation timestamp.
type NodesResponse struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Usage       usage.Document   `json:"usage"`
	Info        *corev1.NodeList `json:"info"`
}
