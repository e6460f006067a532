package service

import (
	"context"
	"testing"
	"time"

	"github.com/Dan9191/finance-tracker/internal/config"
	"github.com/Dan9191/finance-tracker/internal/models"
	"github.com/Dan9191/finance-tracker/internal/repository"
	"github.com/Dan9191/finance-tracker/internal/store"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// newTestService pins the clock to 2024-01-15 (a Monday), advancing one
// millisecond per call so assigned ids stay unique and increasing.
func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	repo := repository.NewRepository(mem, testLogger())
	cfg := &config.Config{
		FeedLimit:        8,
		AccountFeedLimit: 7,
		SavingsAccount:   models.AccountNU,
	}
	svc := NewService(repo, testLogger(), cfg)
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	calls := 0
	svc.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}
	if err := repo.EnsureTables(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc, mem
}

func TestIncomeDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	income, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 1), models.AccountNU, 1000, "salary", "")
	if err != nil {
		t.Fatal(err)
	}
	balances, err := svc.Balances(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if balances[models.AccountNU] != 1000 {
		t.Fatalf("expected NU balance 1000, got %v", balances[models.AccountNU])
	}

	expense, err := svc.RecordExpense(ctx, models.NewDate(2024, 1, 2), models.AccountNU, 200, "food", "groceries")
	if err != nil {
		t.Fatal(err)
	}
	balances, _ = svc.Balances(ctx)
	if balances[models.AccountNU] != 800 {
		t.Fatalf("expected NU balance 800, got %v", balances[models.AccountNU])
	}

	if err := svc.Delete(ctx, models.KindExpense, expense.ID); err != nil {
		t.Fatal(err)
	}
	balances, _ = svc.Balances(ctx)
	if balances[models.AccountNU] != 1000 {
		t.Fatalf("expected NU balance restored to 1000, got %v", balances[models.AccountNU])
	}

	if err := svc.Delete(ctx, models.KindIncome, income.ID); err != nil {
		t.Fatal(err)
	}
	balances, _ = svc.Balances(ctx)
	if balances[models.AccountNU] != 0 {
		t.Fatalf("expected NU balance restored to 0, got %v", balances[models.AccountNU])
	}
}

func TestTransferConservationAndReversal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 1), models.AccountNU, 1000, "salary", ""); err != nil {
		t.Fatal(err)
	}
	before, _ := svc.Balances(ctx)

	transfer, err := svc.RecordTransfer(ctx, models.NewDate(2024, 1, 2), models.AccountNU, models.AccountGBM, 300, "savings")
	if err != nil {
		t.Fatal(err)
	}
	after, _ := svc.Balances(ctx)
	if after[models.AccountNU] != 700 || after[models.AccountGBM] != 300 {
		t.Fatalf("expected {NU:700, GBM:300}, got %v", after)
	}
	sumBefore := before[models.AccountNU] + before[models.AccountGBM]
	sumAfter := after[models.AccountNU] + after[models.AccountGBM]
	if sumBefore != sumAfter {
		t.Fatalf("transfer did not conserve total: %v -> %v", sumBefore, sumAfter)
	}

	if err := svc.Delete(ctx, models.KindTransfer, transfer.ID); err != nil {
		t.Fatal(err)
	}
	restored, _ := svc.Balances(ctx)
	if restored[models.AccountNU] != 1000 || restored[models.AccountGBM] != 0 {
		t.Fatalf("expected {NU:1000, GBM:0} after reversal, got %v", restored)
	}
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		source string
		dest   string
		amount float64
		wantOK bool
	}{
		{"exact balance succeeds", models.AccountNU, models.AccountGBM, 500, true},
		{"one unit over fails", models.AccountNU, models.AccountGBM, 500.01, false},
		{"zero amount", models.AccountNU, models.AccountGBM, 0, false},
		{"negative amount", models.AccountNU, models.AccountGBM, -10, false},
		{"same account", models.AccountNU, models.AccountNU, 100, false},
		{"unknown source", "Nowhere", models.AccountGBM, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			if _, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 1), models.AccountNU, 500, "salary", ""); err != nil {
				t.Fatal(err)
			}
			_, err := svc.RecordTransfer(ctx, models.NewDate(2024, 1, 2), tt.source, tt.dest, tt.amount, "")
			if tt.wantOK && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("expected a validation error")
				}
				if !IsValidation(err) {
					t.Fatalf("expected ValidationError, got %T: %v", err, err)
				}
			}
		})
	}
}

func TestValidationRejectsBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)
	_, writesBefore := mem.Counts()

	if _, err := svc.RecordExpense(ctx, models.NewDate(2024, 1, 2), models.AccountNU, -5, "food", ""); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 2), "Nowhere", 10, "salary", ""); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, writesAfter := mem.Counts()
	if writesAfter != writesBefore {
		t.Fatalf("rejected commands must not write, writes went %d -> %d", writesBefore, writesAfter)
	}
}

func TestDeleteMissingIsNotFoundAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)
	_, writesBefore := mem.Counts()

	err := svc.Delete(ctx, models.KindExpense, 424242)
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	_, writesAfter := mem.Counts()
	if writesAfter != writesBefore {
		t.Fatalf("not-found delete must not write, writes went %d -> %d", writesBefore, writesAfter)
	}
}

func TestActivityFeedOrderingAndTruncation(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)
	repo := repository.NewRepository(mem, testLogger())

	// Two income rows on the same date: the higher id must lead.
	day := models.NewDate(2024, 1, 5)
	seed := []models.Income{
		{ID: 100, Date: day, Account: models.AccountNU, Amount: 10, Category: "a"},
		{ID: 200, Date: day, Account: models.AccountNU, Amount: 20, Category: "b"},
	}
	if err := repo.SaveIncome(ctx, seed); err != nil {
		t.Fatal(err)
	}

	feed, err := svc.ActivityFeed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(feed))
	}
	if feed[0].ID != 200 || feed[1].ID != 100 {
		t.Fatalf("same-date tie break wrong: got ids %d, %d", feed[0].ID, feed[1].ID)
	}

	// Fill well past the limit and check ordering plus the cap.
	for i := 0; i < 10; i++ {
		day := models.NewDate(2024, 1, 6).AddDays(i)
		if _, err := svc.RecordExpense(ctx, day, models.AccountGBM, 1, "misc", ""); err != nil {
			t.Fatal(err)
		}
	}
	feed, err = svc.ActivityFeed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 8 {
		t.Fatalf("feed must truncate to 8, got %d", len(feed))
	}
	for i := 1; i < len(feed); i++ {
		a, b := feed[i-1], feed[i]
		if a.Date.Before(b.Date) || (a.Date.Equal(b.Date) && a.ID < b.ID) {
			t.Fatalf("feed out of order at %d: %v/%d before %v/%d", i, a.Date, a.ID, b.Date, b.ID)
		}
	}
}

func TestActivityFeedDropsCorruptIDs(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)

	// A corrupt id is repaired on read and must never surface in the feed.
	rows := [][]string{
		{"id", "date", "account", "amount", "category", "note"},
		{"-3", "2024-01-05", "NU", "10", "a", ""},
	}
	if err := mem.WriteTable(ctx, repository.TableIncome, rows); err != nil {
		t.Fatal(err)
	}
	feed, err := svc.ActivityFeed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range feed {
		if entry.ID <= 0 {
			t.Fatalf("feed contains non-positive id: %+v", entry)
		}
	}
}

func TestAccountActivityWindowAndLimit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// One movement outside the 7-day window (today is pinned to Jan 15).
	if _, err := svc.RecordExpense(ctx, models.NewDate(2024, 1, 1), models.AccountNU, 5, "old", ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 9; i++ {
		if _, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 10), models.AccountNU, 10, "salary", ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.RecordTransfer(ctx, models.NewDate(2024, 1, 12), models.AccountNU, models.AccountGBM, 15, "move"); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.AccountActivity(ctx, models.AccountNU, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 7 {
		t.Fatalf("account feed must truncate to 7, got %d", len(entries))
	}
	if entries[0].Label != "transfer out" {
		t.Fatalf("newest entry should be the transfer, got %+v", entries[0])
	}
	for _, e := range entries {
		if e.Date.Before(models.NewDate(2024, 1, 8)) {
			t.Fatalf("entry outside the window leaked in: %+v", e)
		}
	}

	// The receiving side sees the same transfer as incoming.
	gbm, err := svc.AccountActivity(ctx, models.AccountGBM, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(gbm) != 1 || gbm[0].Label != "transfer in" {
		t.Fatalf("expected a single transfer-in entry, got %+v", gbm)
	}
}

func TestBalanceCurveReconstruction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 10), models.AccountNU, 1000, "salary", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordExpense(ctx, models.NewDate(2024, 1, 12), models.AccountNU, 200, "food", ""); err != nil {
		t.Fatal(err)
	}

	curve, err := svc.BalanceCurve(ctx, models.AccountNU, 7)
	if err != nil {
		t.Fatal(err)
	}
	// One point per day from Jan 8 through Jan 15.
	if len(curve) != 8 {
		t.Fatalf("expected 8 points, got %d", len(curve))
	}
	want := map[string]float64{
		"2024-01-08": 0, "2024-01-09": 0,
		"2024-01-10": 1000, "2024-01-11": 1000,
		"2024-01-12": 800, "2024-01-13": 800,
		"2024-01-14": 800, "2024-01-15": 800,
	}
	for _, p := range curve {
		if want[p.Date.String()] != p.Balance {
			t.Fatalf("point %s: got %v, want %v", p.Date, p.Balance, want[p.Date.String()])
		}
	}
	// The curve must land on the current projected balance.
	balances, _ := svc.Balances(ctx)
	if curve[len(curve)-1].Balance != balances[models.AccountNU] {
		t.Fatalf("curve end %v != projection %v", curve[len(curve)-1].Balance, balances[models.AccountNU])
	}
}

func TestBalanceCurveEmptyWindow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	curve, err := svc.BalanceCurve(ctx, models.AccountNU, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(curve) != 0 {
		t.Fatalf("expected no points without movements, got %d", len(curve))
	}
}

func TestGoalDefaultsAndProgress(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	goals, err := svc.Goals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if goals.WeeklySpend != 1500 || goals.MonthlySavings != 8500 {
		t.Fatalf("unexpected default goals: %+v", goals)
	}

	// Today is Monday Jan 15, so the week is Jan 15..21 and only the
	// second expense counts toward it.
	if _, err := svc.RecordExpense(ctx, models.NewDate(2024, 1, 12), models.AccountGBM, 100, "food", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordExpense(ctx, models.NewDate(2024, 1, 15), models.AccountGBM, 300, "food", ""); err != nil {
		t.Fatal(err)
	}
	// Savings account: +1000 income, -250 transferred away this month.
	if _, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 3), models.AccountNU, 1000, "salary", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordTransfer(ctx, models.NewDate(2024, 1, 10), models.AccountNU, models.AccountMain, 250, ""); err != nil {
		t.Fatal(err)
	}

	progress, err := svc.GoalProgress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if progress.WeekSpent != 300 {
		t.Fatalf("expected week spend 300, got %v", progress.WeekSpent)
	}
	if progress.WeekRemaining != 1200 {
		t.Fatalf("expected week remaining 1200, got %v", progress.WeekRemaining)
	}
	if progress.MonthSaved != 750 {
		t.Fatalf("expected month saved 750, got %v", progress.MonthSaved)
	}
	if progress.MonthRemaining != 7750 {
		t.Fatalf("expected month remaining 7750, got %v", progress.MonthRemaining)
	}

	if err := svc.SetGoals(ctx, models.Goals{WeeklySpend: 2000, MonthlySavings: 9000}); err != nil {
		t.Fatal(err)
	}
	goals, _ = svc.Goals(ctx)
	if goals.WeeklySpend != 2000 || goals.MonthlySavings != 9000 {
		t.Fatalf("goals not persisted: %+v", goals)
	}
	if err := svc.SetGoals(ctx, models.Goals{WeeklySpend: 0, MonthlySavings: 9000}); !IsValidation(err) {
		t.Fatalf("expected ValidationError for zero goal, got %v", err)
	}
}

func TestRecomputeBalancesRepairsDrift(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService(t)

	if _, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 5), models.AccountNU, 1000, "salary", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordExpense(ctx, models.NewDate(2024, 1, 6), models.AccountNU, 100, "food", ""); err != nil {
		t.Fatal(err)
	}

	// Corrupt the projection the way a lost update would.
	repo := repository.NewRepository(mem, testLogger())
	settings, err := repo.Config(ctx)
	if err != nil {
		t.Fatal(err)
	}
	settings.Set("balance_NU", "123")
	if err := repo.SaveConfig(ctx, settings); err != nil {
		t.Fatal(err)
	}

	fresh, err := svc.RecomputeBalances(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fresh[models.AccountNU] != 900 {
		t.Fatalf("expected recomputed NU balance 900, got %v", fresh[models.AccountNU])
	}
	balances, _ := svc.Balances(ctx)
	if balances[models.AccountNU] != 900 {
		t.Fatalf("recomputed balance not persisted, got %v", balances[models.AccountNU])
	}
}

func TestIDsAreUniqueAndIncreasing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// Pin the clock so every call lands on the same millisecond.
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	var last int64
	for i := 0; i < 5; i++ {
		income, err := svc.RecordIncome(ctx, models.NewDate(2024, 1, 15), models.AccountNU, 10, "salary", "")
		if err != nil {
			t.Fatal(err)
		}
		if income.ID <= last {
			t.Fatalf("ids must increase: %d after %d", income.ID, last)
		}
		last = income.ID
	}
}
