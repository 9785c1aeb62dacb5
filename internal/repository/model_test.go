package repository

import (
	"testing"
	"time"
)

func TestConnectionStatus_Transitions(t *testing.T) {
	allowed := []struct{ from, to ConnectionStatus }{
		{ConnectionStatusScheduling, ConnectionStatusProposed},
		{ConnectionStatusScheduling, ConnectionStatusCancelled},
		{ConnectionStatusProposed, ConnectionStatusScheduled},
		{ConnectionStatusProposed, ConnectionStatusCancelled},
		{ConnectionStatusScheduled, ConnectionStatusCompleted},
		{ConnectionStatusScheduled, ConnectionStatusCancelled},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to ConnectionStatus }{
		{ConnectionStatusScheduling, ConnectionStatusCompleted},
		{ConnectionStatusCompleted, ConnectionStatusScheduled},
		{ConnectionStatusCompleted, ConnectionStatusCancelled},
		{ConnectionStatusCancelled, ConnectionStatusScheduling},
		{ConnectionStatusScheduled, ConnectionStatusProposed},
	}
	for _, tr := range forbidden {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be forbidden", tr.from, tr.to)
		}
	}
}

func TestConnectionStatus_Terminal(t *testing.T) {
	if !ConnectionStatusCompleted.IsTerminal() || !ConnectionStatusCancelled.IsTerminal() {
		t.Fatal("expected completed and cancelled to be terminal")
	}
	if ConnectionStatusScheduled.IsTerminal() {
		t.Fatal("expected scheduled to be non-terminal")
	}
}

func TestTranscriptStatus_Transitions(t *testing.T) {
	if !TranscriptStatusNone.CanTransitionTo(TranscriptStatusComposing) {
		t.Fatal("expected none -> composing")
	}
	if !TranscriptStatusProcessing.CanTransitionTo(TranscriptStatusAbandoned) {
		t.Fatal("expected processing -> abandoned")
	}
	if TranscriptStatusCompleted.CanTransitionTo(TranscriptStatusProcessing) {
		t.Fatal("expected completed to be terminal")
	}
	if TranscriptStatusNone.CanTransitionTo(TranscriptStatusCompleted) {
		t.Fatal("expected none -> completed to be forbidden")
	}
	if TranscriptStatusAbandoned.CanTransitionTo(TranscriptStatusCompleted) {
		t.Fatal("expected abandoned to be terminal")
	}
}

func TestPairKey_OrderIndependent(t *testing.T) {
	k1 := PairKey("user-b", "user-a")
	k2 := PairKey("user-a", "user-b")
	if k1 != k2 {
		t.Fatalf("expected identical keys, got %s and %s", k1, k2)
	}
	if k1 != "user-a:user-b" {
		t.Fatalf("unexpected key: %s", k1)
	}
}

func TestPeriodKey_UTCMonth(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	// 2026-02-01 03:00 JST is still January in UTC.
	at := time.Date(2026, 2, 1, 3, 0, 0, 0, jst)
	if got := PeriodKey(at); got != "2026-01" {
		t.Fatalf("expected 2026-01, got %s", got)
	}
	if got := PeriodKey(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)); got != "2026-08" {
		t.Fatalf("expected 2026-08, got %s", got)
	}
}

func TestScheduleFrequency_NextRun(t *testing.T) {
	from := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	if got := ScheduleFrequencyWeekly.NextRun(from); got != from.AddDate(0, 0, 7) {
		t.Fatalf("unexpected weekly next run: %v", got)
	}
	if got := ScheduleFrequencyBiweekly.NextRun(from); got != from.AddDate(0, 0, 14) {
		t.Fatalf("unexpected biweekly next run: %v", got)
	}
	if got := ScheduleFrequencyMonthly.NextRun(from); got != from.AddDate(0, 1, 0) {
		t.Fatalf("unexpected monthly next run: %v", got)
	}
}

func TestTeamMember_AverageSentiment(t *testing.T) {
	m := &TeamMember{SentimentSum: 210, SentimentCount: 3}
	if got := m.AverageSentiment(); got != 70 {
		t.Fatalf("expected 70, got %v", got)
	}
	empty := &TeamMember{}
	if got := empty.AverageSentiment(); got != 0 {
		t.Fatalf("expected 0 for no samples, got %v", got)
	}
}
