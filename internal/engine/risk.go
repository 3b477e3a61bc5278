package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"laborguard/internal/domain"
	"laborguard/internal/repo"
)

const workDateLayout = "2006-01-02"

// ConsecutiveDays returns the worker's current run of consecutive work days
// for one client, counted over operation memberships in the lookback window.
// The walk starts at the most recent work day, not at today, so a streak that
// ended yesterday still reports its full length.
func (e Engine) ConsecutiveDays(ctx context.Context, workerID, clientID string) (int, error) {
	since := e.now().UTC().AddDate(0, 0, -e.Config.Compliance.LookbackDays).Format(workDateLayout)
	dates, err := e.Repo.ListMembershipWorkDates(ctx, workerID, clientID, since)
	if err != nil {
		return 0, err
	}
	if len(dates) == 0 {
		return 0, nil
	}
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		seen[d] = true
	}
	cursor, err := time.Parse(workDateLayout, dates[0])
	if err != nil {
		return 0, err
	}
	streak := 0
	for i := 0; i < e.Config.Compliance.MaxStreakWalk; i++ {
		if !seen[cursor.Format(workDateLayout)] {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak, nil
}

// AssessAllocationRisk scores a proposed worker/client/location pairing on
// the allocation ledger. The scale is the admission-gate one: consecutive
// location days weigh 10, same-client days this month weigh 5, distinct
// months with the client over the trailing quarter weigh 20.
func (e Engine) AssessAllocationRisk(ctx context.Context, workerID, clientID, locationID string) (domain.AllocationRisk, error) {
	now := e.now().UTC()
	lookback := now.AddDate(0, 0, -e.Config.Compliance.LookbackDays).Format(workDateLayout)
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format(workDateLayout)
	threeMonthsAgo := time.Date(now.Year(), now.Month()-3, 1, 0, 0, 0, 0, time.UTC).Format(workDateLayout)

	dates, err := e.Repo.ListAllocationDates(ctx, workerID, locationID, lookback)
	if err != nil {
		return domain.AllocationRisk{}, err
	}
	consecutive := headStreak(dates)

	daysInMonth, err := e.Repo.CountAllocationsSince(ctx, workerID, clientID, firstOfMonth)
	if err != nil {
		return domain.AllocationRisk{}, err
	}
	months, err := e.Repo.CountAllocationMonths(ctx, workerID, clientID, threeMonthsAgo)
	if err != nil {
		return domain.AllocationRisk{}, err
	}

	score := consecutive*10 + daysInMonth*5 + months*20
	return domain.AllocationRisk{
		Score:            score,
		Level:            e.gateLevel(score),
		ConsecutiveDays:  consecutive,
		DaysInMonth:      daysInMonth,
		MonthsWithClient: months,
	}, nil
}

func (e Engine) gateLevel(score int) string {
	switch {
	case score <= e.Config.Risk.GateLevels.Low:
		return "low"
	case score <= e.Config.Risk.GateLevels.Medium:
		return "medium"
	case score <= e.Config.Risk.GateLevels.High:
		return "high"
	default:
		return "critical"
	}
}

// headStreak counts adjacent calendar days from the newest date down.
// Input must be sorted newest first.
func headStreak(dates []string) int {
	if len(dates) == 0 {
		return 0
	}
	streak := 1
	last, err := time.Parse(workDateLayout, dates[0])
	if err != nil {
		return 0
	}
	for _, d := range dates[1:] {
		cur, err := time.Parse(workDateLayout, d)
		if err != nil {
			return streak
		}
		if last.Sub(cur) == 24*time.Hour {
			streak++
			last = cur
		} else {
			break
		}
	}
	return streak
}

// maxRunLength finds the longest run of adjacent days anywhere in the slice.
// Input must be sorted oldest first.
func maxRunLength(dates []string) int {
	if len(dates) == 0 {
		return 0
	}
	best, run := 1, 1
	prev, err := time.Parse(workDateLayout, dates[0])
	if err != nil {
		return 0
	}
	for _, d := range dates[1:] {
		cur, err := time.Parse(workDateLayout, d)
		if err != nil {
			break
		}
		if cur.Sub(prev) == 24*time.Hour {
			run++
			if run > best {
				best = run
			}
		} else if !cur.Equal(prev) {
			run = 1
		}
		prev = cur
	}
	return best
}

// FleetRisk scores every active worker on the composite scale and returns
// the rows sorted worst first.
func (e Engine) FleetRisk(ctx context.Context) ([]domain.WorkerRisk, error) {
	workers, err := e.Repo.ListWorkers(ctx, repo.WorkerFilters{Status: "active"})
	if err != nil {
		return nil, err
	}
	blockedFilter := true
	blocked, err := e.Repo.ListWorkers(ctx, repo.WorkerFilters{Status: "blocked", Blocked: &blockedFilter})
	if err != nil {
		return nil, err
	}
	workers = append(workers, blocked...)

	since := e.now().UTC().AddDate(0, 0, -e.Config.Compliance.LookbackDays).Format(workDateLayout)
	rows := make([]domain.WorkerRisk, 0, len(workers))
	for _, w := range workers {
		row, err := e.scoreWorker(ctx, w, since)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].RiskScore > rows[j].RiskScore })
	return rows, nil
}

func (e Engine) scoreWorker(ctx context.Context, w domain.Worker, since string) (domain.WorkerRisk, error) {
	records, err := e.Repo.ListCompletedWork(ctx, w.ID, since)
	if err != nil {
		return domain.WorkerRisk{}, err
	}

	byClient := make(map[string][]string)
	var rateSum float64
	for _, rec := range records {
		byClient[rec.ClientID] = append(byClient[rec.ClientID], rec.WorkDate)
		rateSum += rec.DailyRate
	}
	totalDays := len(records)
	var avgRate float64
	if totalDays > 0 {
		avgRate = rateSum / float64(totalDays)
	}
	maxStreak := 0
	for _, dates := range byClient {
		if n := maxRunLength(dates); n > maxStreak {
			maxStreak = n
		}
	}

	autonomy := 0
	if m, err := e.Repo.GetAutonomyMetrics(ctx, w.ID); err == nil {
		autonomy = m.AutonomyScore
	} else if err != repo.ErrNotFound {
		return domain.WorkerRisk{}, err
	}

	score := 0
	switch {
	case maxStreak >= e.Config.Compliance.BlockTriggerDays:
		score += 40
	case maxStreak == 2:
		score += 25
	case maxStreak == 1:
		score += 10
	}
	switch {
	case totalDays >= 20:
		score += 20
	case totalDays >= 15:
		score += 15
	case totalDays >= 10:
		score += 10
	}
	switch {
	case autonomy < e.Config.Autonomy.LowThreshold:
		score += 30
	case autonomy < 50:
		score += 15
	}
	if w.IsBlocked {
		score += 10
	}

	return domain.WorkerRisk{
		WorkerID:           w.ID,
		WorkerName:         w.FullName,
		WorkerCPF:          w.CPF,
		MaxConsecutiveDays: maxStreak,
		TotalDaysWorked:    totalDays,
		AvgDailyRate:       round2(avgRate),
		FinancialExposure:  round2(float64(maxStreak) * avgRate),
		AutonomyScore:      autonomy,
		RiskScore:          score,
		RiskLevel:          e.fleetLevel(score),
		IsBlocked:          w.IsBlocked,
		BlockReason:        w.BlockReason,
		ClientsWithStreaks: len(byClient),
	}, nil
}

func (e Engine) fleetLevel(score int) string {
	switch {
	case score >= e.Config.Risk.FleetLevels.Critical:
		return "critical"
	case score >= e.Config.Risk.FleetLevels.High:
		return "high"
	case score >= e.Config.Risk.FleetLevels.Medium:
		return "medium"
	default:
		return "low"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RiskStatistics aggregates the fleet scan into headline numbers.
func (e Engine) RiskStatistics(ctx context.Context) (domain.RiskStatistics, error) {
	rows, err := e.FleetRisk(ctx)
	if err != nil {
		return domain.RiskStatistics{}, err
	}
	var stats domain.RiskStatistics
	stats.TotalWorkers = len(rows)
	var scoreSum int
	for _, r := range rows {
		switch r.RiskLevel {
		case "critical":
			stats.CriticalRisk++
		case "high":
			stats.HighRisk++
		case "medium":
			stats.MediumRisk++
		default:
			stats.LowRisk++
		}
		stats.TotalFinancialExposure += r.FinancialExposure
		scoreSum += r.RiskScore
		if r.IsBlocked {
			stats.WorkersBlocked++
		}
	}
	stats.TotalFinancialExposure = round2(stats.TotalFinancialExposure)
	if len(rows) > 0 {
		stats.AvgRiskScore = round2(float64(scoreSum) / float64(len(rows)))
	}
	return stats, nil
}
