package envconfig

import (
	"testing"
	"time"
)

func TestGetFallsBackWhenEmpty(t *testing.T) {
	t.Setenv("QUEST_TEST_VALUE", "")
	if got := Get("QUEST_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("QUEST_TEST_VALUE", "set")
	if got := Get("QUEST_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("QUEST_TEST_DELAY", "1500ms")
	got, err := GetDuration("QUEST_TEST_DELAY", time.Second)
	if err != nil {
		t.Fatalf("GetDuration returned error: %v", err)
	}
	if got != 1500*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}

	t.Setenv("QUEST_TEST_DELAY", "soon")
	if _, err := GetDuration("QUEST_TEST_DELAY", time.Second); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestGetFloat(t *testing.T) {
	got, err := GetFloat("QUEST_TEST_UNSET_FLOAT", 0.6)
	if err != nil || got != 0.6 {
		t.Fatalf("expected fallback 0.6, got %v (%v)", got, err)
	}
}

func TestGetBool(t *testing.T) {
	t.Setenv("QUEST_TEST_FLAG", "true")
	got, err := GetBool("QUEST_TEST_FLAG", false)
	if err != nil || !got {
		t.Fatalf("expected true, got %v (%v)", got, err)
	}
	t.Setenv("QUEST_TEST_FLAG", "maybe")
	if _, err := GetBool("QUEST_TEST_FLAG", false); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	type sample struct {
		Port string `validate:"required"`
	}
	if err := Validate(sample{}); err == nil {
		t.Fatalf("expected required violation")
	}
	if err := Validate(sample{Port: "8080"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
