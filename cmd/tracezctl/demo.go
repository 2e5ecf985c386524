package main

import (
	"encoding/json"
	"fmt"

	"github.com/loomwork/tracez"
	"github.com/openzipkin/zipkin-go/model"
	zipkinreporter "github.com/openzipkin/zipkin-go/reporter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zoobzio/clockz"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a loopback client/server trace and print the emitted spans",
	RunE:  runDemo,
}

// collectingReporter buffers every sent span instead of shipping it
// anywhere, so the demo can print the emitted zipkin JSON at exit.
type collectingReporter struct {
	spans []model.SpanModel
}

func (r *collectingReporter) Send(s model.SpanModel) { r.spans = append(r.spans, s) }
func (r *collectingReporter) Close() error            { return nil }

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	logger.WithField("instance_id", instanceID).Info("starting tracez demo")

	var reporter zipkinreporter.Reporter
	var collector *collectingReporter
	if cfg.Reporter.Kind == "collect" {
		collector = &collectingReporter{}
		reporter = collector
	}

	builder := tracez.NewTracer().
		LocalServiceName(cfg.Service.Name).
		Sampler(tracez.NewBoundarySampler(cfg.Sampling.Rate)).
		Clock(clockz.RealClock)
	if reporter != nil {
		builder = builder.Reporter(reporter)
	}
	tracer := builder.Build()
	defer tracer.Close()

	// Loopback: client starts a span, joins it as the server, both finish -
	// the two records share a span id, distinguished by kind and shared.
	client := tracer.NewTrace()
	client.SetName("get-widget").Kind(model.Client).Tag("instance.id", instanceID).Start()
	scope := tracer.WithSpanInScope(client)

	server := tracer.JoinSpan(client.Context())
	server.SetName("get-widget").Kind(model.Server).Tag("instance.id", instanceID).Start()
	server.Finish()

	scope.Close()
	client.Finish()

	if collector == nil {
		return nil
	}
	out, err := json.MarshalIndent(collector.spans, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
