package main

import (
	"encoding/json"
	"flag"
	"os"

	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/stretchcloud/kubetop/pkg/dashboard"
	"github.com/stretchcloud/kubetop/pkg/kube"
	"github.com/stretchcloud/kubetop/pkg/observability"
	"github.com/stretchcloud/kubetop/pkg/usage"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	var kubeconfig string
	var contextName string
	var resource string
	var serveAddr string
	var useMetricsServer bool

	opts := zap.Options{
		Development: false,
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}
	opts.BindFlags(flag.CommandLine)
	flag.StringVar(&kubeconfig, "kubeconfig", "", "Path to a kubeconfig file. Empty uses the default loading rules, then in-cluster config.")
	flag.StringVar(&contextName, "context", "", "Kubeconfig context to use. Empty uses the file's current context.")
	flag.StringVar(&resource, "resource", "pods", "Resource kind to fetch: pods or nodes.")
	flag.StringVar(&serveAddr, "serve", "", "Serve usage data and metrics over HTTP on this address instead of printing once.")
	flag.BoolVar(&useMetricsServer, "metrics-server", false, "Read usage from the metrics.k8s.io API instead of the Heapster proxy.")
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	conn, err := kube.NewConn(kubeconfig, contextName)
	if err != nil {
		setupLog.Error(err, "unable to resolve cluster connection")
		os.Exit(1)
	}
	setupLog.Info("connected", "host", conn.Host)

	sourceOpts := []usage.Option{usage.WithRecorder(observability.NewRecorder())}
	if useMetricsServer {
		sourceOpts = append(sourceOpts, usage.WithMetricsServerBackend(nil))
	}
	source, err := usage.NewSource(conn, sourceOpts...)
	if err != nil {
		setupLog.Error(err, "unable to create usage source")
		os.Exit(1)
	}

	ctx := ctrl.SetupSignalHandler()

	if serveAddr != "" {
		handler, err := dashboard.NewHandler()
		if err != nil {
			setupLog.Error(err, "unable to create dashboard handler")
			os.Exit(1)
		}
		handler.Attach(source)

		setupLog.Info("serving usage data", "addr", serveAddr)
		if err := dashboard.NewServer(serveAddr, handler).Run(ctx); err != nil {
			setupLog.Error(err, "problem running server")
			os.Exit(1)
		}
		return
	}

	var result any
	switch resource {
	case "pods":
		result, err = source.Pods(ctx)
	case "nodes":
		result, err = source.Nodes(ctx)
	default:
		setupLog.Info("unknown resource kind, expected pods or nodes", "resource", resource)
		os.Exit(2)
	}
	if err != nil {
		setupLog.Error(err, "fetch failed", "resource", resource)
		os.Exit(1)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		setupLog.Error(err, "unable to encode result")
		os.Exit(1)
	}
	output = append(output, '\n')
	if _, err := os.Stdout.Write(output); err != nil {
		setupLog.Error(err, "unable to write result")
		os.Exit(1)
	}
}
