package usage

import (
	"encoding/json"

	corev1 "k8s.io/api/core/v1"
)

// Document is a usage payload as served by the in-cluster metrics aggregator:
// an object carrying a list of opaque metric records. Records are kept raw so
// they pass through undisturbed.
type Document struct {
	Items []json.RawMessage `json:"items"`
}

// PodResult pairs the pod usage document with the pod list from the core API.
type PodResult struct {
	Usage Document        `json:"usage"`
	Info  *corev1.PodList `json:"info"`
}

// NodeResult pairs the node usage document with the node list from the core API.
type NodeResult struct {
	Usage Document         `json:"usage"`
	Info  *corev1.NodeList `json:"info"`
}
