package engine_test

import (
	"testing"
)

func TestConsecutiveDaysEmpty(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	days, err := env.Engine.ConsecutiveDays(env.Ctx, w.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if days != 0 {
		t.Fatalf("expected 0 for no history, got %d", days)
	}
}

func TestConsecutiveDaysStreakFromMostRecent(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	// three adjacent days ending two days ago, with a gap before them
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(2), "completed", 150)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(3), "present", 150)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(4), "completed", 150)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(7), "completed", 150)
	days, err := env.Engine.ConsecutiveDays(env.Ctx, w.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if days != 3 {
		t.Fatalf("expected streak 3, got %d", days)
	}
}

func TestConsecutiveDaysIgnoresOtherStatuses(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(1), "completed", 150)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(2), "invited", 150)
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(3), "absent", 150)
	days, err := env.Engine.ConsecutiveDays(env.Ctx, w.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if days != 1 {
		t.Fatalf("invited/absent days must not extend the streak, got %d", days)
	}
}

func TestConsecutiveDaysWalkCap(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	for i := 1; i <= 14; i++ {
		seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(i), "completed", 150)
	}
	days, err := env.Engine.ConsecutiveDays(env.Ctx, w.ID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if days != env.Engine.Config.Compliance.MaxStreakWalk {
		t.Fatalf("walk must cap at %d, got %d", env.Engine.Config.Compliance.MaxStreakWalk, days)
	}
}

func TestAssessAllocationRiskLevels(t *testing.T) {
	env := newTestEnv(t)
	w := seedWorker(t, env, "ana")
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)

	risk, err := env.Engine.AssessAllocationRisk(env.Ctx, w.ID, c.ID, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if risk.Score != 0 || risk.Level != "low" {
		t.Fatalf("fresh worker should be low/0, got %s/%d", risk.Level, risk.Score)
	}

	// two adjacent allocation days in the current month: streak 2, month 2,
	// one distinct month. Score = 2*10 + 2*5 + 1*20 = 50, still low.
	for i := 1; i <= 2; i++ {
		seedAllocation(t, env, w.ID, c.ID, l.ID, daysAgo(i))
	}
	risk, err = env.Engine.AssessAllocationRisk(env.Ctx, w.ID, c.ID, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if risk.Score != 50 || risk.Level != "low" {
		t.Fatalf("expected 50/low, got %d/%s", risk.Score, risk.Level)
	}
	if risk.ConsecutiveDays != 2 || risk.DaysInMonth != 2 || risk.MonthsWithClient != 1 {
		t.Fatalf("unexpected components: %+v", risk)
	}

	// five adjacent days: 5*10 + 5*5 + 1*20 = 95, medium
	for i := 3; i <= 5; i++ {
		seedAllocation(t, env, w.ID, c.ID, l.ID, daysAgo(i))
	}
	risk, err = env.Engine.AssessAllocationRisk(env.Ctx, w.ID, c.ID, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if risk.Score != 95 || risk.Level != "medium" {
		t.Fatalf("expected 95/medium, got %d/%s", risk.Score, risk.Level)
	}
}

func TestFleetRiskScoring(t *testing.T) {
	env := newTestEnv(t)
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)

	// heavy: 3-day streak, low autonomy (no metrics row counts as 0)
	heavy := seedWorker(t, env, "heavy")
	for i := 1; i <= 3; i++ {
		seedWorkDay(t, env, heavy.ID, c.ID, l.ID, daysAgo(i), "completed", 200)
	}
	// light: a single day
	light := seedWorker(t, env, "light")
	seedWorkDay(t, env, light.ID, c.ID, l.ID, daysAgo(10), "completed", 100)

	rows, err := env.Engine.FleetRisk(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].WorkerID != heavy.ID {
		t.Fatalf("rows must be sorted worst first")
	}
	// streak >=3 (40) + low autonomy (30) = 70 -> critical
	if rows[0].RiskScore != 70 || rows[0].RiskLevel != "critical" {
		t.Fatalf("heavy: expected 70/critical, got %d/%s", rows[0].RiskScore, rows[0].RiskLevel)
	}
	if rows[0].MaxConsecutiveDays != 3 {
		t.Fatalf("heavy: expected streak 3, got %d", rows[0].MaxConsecutiveDays)
	}
	if rows[0].FinancialExposure != 600 {
		t.Fatalf("heavy: expected exposure 3*200=600, got %v", rows[0].FinancialExposure)
	}
	// single day (10) + low autonomy (30) = 40 -> medium
	if rows[1].RiskScore != 40 || rows[1].RiskLevel != "medium" {
		t.Fatalf("light: expected 40/medium, got %d/%s", rows[1].RiskScore, rows[1].RiskLevel)
	}
}

func TestFleetRiskIgnoresPresentDays(t *testing.T) {
	env := newTestEnv(t)
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	w := seedWorker(t, env, "ana")
	// present but not completed days do not count on the fleet scale
	seedWorkDay(t, env, w.ID, c.ID, l.ID, daysAgo(1), "present", 150)
	rows, err := env.Engine.FleetRisk(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].TotalDaysWorked != 0 || rows[0].MaxConsecutiveDays != 0 {
		t.Fatalf("present days must not count: %+v", rows[0])
	}
}

func TestRiskStatistics(t *testing.T) {
	env := newTestEnv(t)
	c := seedClient(t, env, "acme")
	l := seedLocation(t, env, c.ID)
	heavy := seedWorker(t, env, "heavy")
	for i := 1; i <= 3; i++ {
		seedWorkDay(t, env, heavy.ID, c.ID, l.ID, daysAgo(i), "completed", 200)
	}
	seedWorker(t, env, "idle")

	stats, err := env.Engine.RiskStatistics(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalWorkers != 2 {
		t.Fatalf("expected 2 workers, got %d", stats.TotalWorkers)
	}
	if stats.CriticalRisk != 1 {
		t.Fatalf("expected 1 critical, got %d", stats.CriticalRisk)
	}
	if stats.TotalFinancialExposure != 600 {
		t.Fatalf("expected exposure 600, got %v", stats.TotalFinancialExposure)
	}
	// idle worker scores 30 (low autonomy only) -> medium
	if stats.MediumRisk != 1 {
		t.Fatalf("expected 1 medium, got %d", stats.MediumRisk)
	}
	if stats.AvgRiskScore != 50 {
		t.Fatalf("expected avg (70+30)/2=50, got %v", stats.AvgRiskScore)
	}
}
