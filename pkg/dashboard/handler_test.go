package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/kubernetes/scheme"
	restfake "k8s.io/client-go/rest/fake"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/stretchcloud/kubetop/pkg/kube"
	"github.com/stretchcloud/kubetop/pkg/usage"
)

const (
	nodeUsageProxyPath = "/api/v1/namespaces/kube-system/services/http:heapster:/proxy/apis/metrics/v1alpha1/nodes"
	nodeListPath       = "/api/v1/nodes"
)

func TestStaticRoutesServeIndex(t *testing.T) {
	handler, err := NewHandler()
	if err != nil {
		t.Fatalf("NewHandler(): %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler.Static))
	defer ts.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	tests := []string{"/", "/dashboard", "/dashboard/"}
	for _, path := range tests {
		req, err := http.NewRequest("GET", ts.URL+path, nil)
		if err != nil {
			t.Fatalf("NewRequest %s: %v", path, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			t.Fatalf("GET %s: unexpected status %d body %q", path, resp.StatusCode, string(body))
		}
		resp.Body.Close()
	}
}

func TestUsageEndpointsRequireSource(t *testing.T) {
	handler, err := NewHandler()
	if err != nil {
		t.Fatalf("NewHandler(): %v", err)
	}

	for name, route := range map[string]http.HandlerFunc{
		"pods":  handler.Pods,
		"nodes": handler.Nodes,
	} {
		rec := httptest.NewRecorder()
		route(rec, httptest.NewRequest("GET", "/usage/"+name, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503 before Attach, got %d", name, rec.Code)
		}
	}
}

func TestNodesEndpointReturnsMergedResult(t *testing.T) {
	bodies := map[string]string{
		nodeUsageProxyPath: `{"items": [{"name": "n1"}]}`,
		nodeListPath:       `{"kind": "NodeList", "apiVersion": "v1", "items": [{"metadata": {"name": "n1"}}]}`,
	}
	restClient := &restfake.RESTClient{
		NegotiatedSerializer: scheme.Codecs.WithoutConversion(),
		GroupVersion:         corev1.SchemeGroupVersion,
		VersionedAPIPath:     "/api/v1",
		Client: restfake.CreateHTTPClient(func(req *http.Request) (*http.Response, error) {
			body, ok := bodies[req.URL.Path]
			if !ok {
				return nil, fmt.Errorf("unexpected request path %q", req.URL.Path)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		}),
	}

	source, err := usage.NewSource(&kube.Conn{
		Core: k8sfake.NewSimpleClientset(),
		REST: restClient,
	})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	handler, err := NewHandler()
	if err != nil {
		t.Fatalf("NewHandler(): %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	handler.clock = clocktesting.NewFakePassiveClock(now)
	handler.Attach(source)

	rec := httptest.NewRecorder()
	handler.Nodes(rec, httptest.NewRequest("GET", "/usage/nodes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %q", rec.Code, rec.Body.String())
	}

	var resp NodesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.GeneratedAt.Equal(now) {
		t.Fatalf("expected generatedAt %v, got %v", now, resp.GeneratedAt)
	}
	if len(resp.Usage.Items) != 1 {
		t.Fatalf("expected 1 usage item, got %d", len(resp.Usage.Items))
	}
	if resp.Info == nil || len(resp.Info.Items) != 1 || resp.Info.Items[0].Name != "n1" {
		t.Fatalf("unexpected info document: %+v", resp.Info)
	}
}
