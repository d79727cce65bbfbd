package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureReportLevelAndFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	out := filepath.Join(t.TempDir(), "loader.log")
	if err := log.Configure(ReportLevel, "text", out, 7); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level for report, got %s", log.GetLevel())
	}
}

func TestCallerIsOutsideLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.WithComponent("processor").Info("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	file, _ := line["file"].(string)
	if file == "" || strings.HasPrefix(file, "logger.go:") || strings.HasPrefix(file, "entry.go:") {
		t.Errorf("expected caller outside the logging wrappers, got %q", file)
	}
	if line["message"] != "hello" || line["component"] != "processor" {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestCountersAndWarnings(t *testing.T) {
	before := Snapshot()

	AddRowsRead("quotes", 3)
	AddPartWritten("quotes", 128)
	IncrementS3Upload(128)
	AddKafkaMessages(5)

	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.WithComponent("report_test").Warn("w")
	log.WithComponent("report_test").Error("e")

	after := Snapshot()
	if after.RowsRead["quotes"]-before.RowsRead["quotes"] != 3 {
		t.Errorf("rows read not counted: %v", after.RowsRead)
	}
	if after.PartBytes["quotes"]-before.PartBytes["quotes"] != 128 {
		t.Errorf("part bytes not counted: %v", after.PartBytes)
	}
	if after.S3Uploads-before.S3Uploads != 1 || after.KafkaMessages-before.KafkaMessages != 5 {
		t.Errorf("unexpected upload/kafka counters %+v", after)
	}
	if after.Warnings["report_test"]-before.Warnings["report_test"] != 1 || after.Errors["report_test"]-before.Errors["report_test"] != 1 {
		t.Errorf("warn/error counters not recorded: %v %v", after.Warnings, after.Errors)
	}
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) PutDashboard(context.Context, *cloudwatch.PutDashboardInput, ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	return &cloudwatch.PutDashboardOutput{}, nil
}

func TestLogMetricPublishes(t *testing.T) {
	fake := &fakeCloudWatch{}
	setCloudWatchClient(fake, "TestNS")
	defer setCloudWatchClient(nil, "")

	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.LogMetric("writer", "parts", 2, "", Fields{"kind": "trades"})
	log.LogMetric("writer", "label", "not-a-number", "", nil)

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one publish, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.Namespace != "TestNS" || len(in.MetricData) != 1 || *in.MetricData[0].Value != 2 {
		t.Errorf("unexpected metric input %+v", in)
	}
	if len(in.MetricData[0].Dimensions) != 2 {
		t.Errorf("expected component and kind dimensions, got %d", len(in.MetricData[0].Dimensions))
	}
}
