package main

import (
	"testing"

	"example.com/activitydirectory/internal/config"
)

func TestReaderConfigPerTopic(t *testing.T) {
	cfg := config.Config{KafkaBrokers: []string{"k1:9092", "k2:9092"}, ConsumerGroupID: "audit"}

	rc := readerConfig(cfg, "activity_enrollments")
	if err := rc.Validate(); err != nil {
		t.Fatalf("reader config invalid: %v", err)
	}
	if rc.Topic != "activity_enrollments" || rc.GroupID != "audit" || len(rc.Brokers) != 2 {
		t.Fatalf("unexpected reader config: %+v", rc)
	}
}
