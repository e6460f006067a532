package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Dan9191/finance-tracker/internal/config"
	"github.com/Dan9191/finance-tracker/internal/models"
	"github.com/Dan9191/finance-tracker/internal/repository"
	"github.com/sirupsen/logrus"
)

// Config keys for goals and per-account balance projections.
const (
	keyWeeklyGoal  = "weekly_spend_goal"
	keyMonthlyGoal = "monthly_savings_goal"
	balancePrefix  = "balance_"

	defaultWeeklyGoal  = 1500
	defaultMonthlyGoal = 8500
)

// Service is the ledger engine. It validates commands, appends to the
// movement tables and keeps the per-account balance projection in Config in
// step with them. The projection is maintained incrementally: every record
// applies a delta and every delete reverses it exactly. The two persistence
// calls of one operation (log table, then Config) are not transactional; a
// failure between them leaves them inconsistent until reconciliation.
type Service struct {
	repo *repository.Repository
	log  *logrus.Logger
	cfg  *config.Config

	now func() time.Time
}

// NewService initializes a new service
func NewService(repo *repository.Repository, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, log: log, cfg: cfg, now: time.Now}
}

func (s *Service) today() models.Date {
	y, m, d := s.now().Date()
	return models.NewDate(y, m, d)
}

func balanceKey(account string) string {
	return balancePrefix + account
}

// Balances returns the projected balance of every tracked account.
func (s *Service) Balances(ctx context.Context) (map[string]float64, error) {
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return nil, err
	}
	return balancesFrom(settings), nil
}

func balancesFrom(settings models.Settings) map[string]float64 {
	balances := make(map[string]float64, len(models.Accounts()))
	for _, account := range models.Accounts() {
		raw := settings.GetDefault(balanceKey(account), "0")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			v = 0
		}
		balances[account] = v
	}
	return balances
}

// applyDelta adjusts one account's projected balance by a signed amount.
func applyDelta(balances map[string]float64, account string, delta float64) {
	balances[account] += delta
}

// writeBalances copies every projected balance into settings, in stable order.
func writeBalances(settings *models.Settings, balances map[string]float64) {
	accounts := make([]string, 0, len(balances))
	for account := range balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		settings.Set(balanceKey(account), strconv.FormatFloat(balances[account], 'f', -1, 64))
	}
}

// newID assigns a fresh identifier from the current epoch millis, bumped past
// maxID so same-millisecond rows stay unique and ordered by insertion.
func (s *Service) newID(maxID int64) int64 {
	id := s.now().UnixMilli()
	if id <= maxID {
		id = maxID + 1
	}
	return id
}

// RecordExpense validates and appends an expense, debiting the account.
func (s *Service) RecordExpense(ctx context.Context, date models.Date, account string, amount float64, category, note string) (models.Expense, error) {
	if amount <= 0 {
		return models.Expense{}, validationf("amount must be greater than 0")
	}
	if !models.ValidAccount(account) {
		return models.Expense{}, validationf("unknown account %q", account)
	}
	if date.IsZero() {
		date = s.today()
	}

	expenses, err := s.repo.Expenses(ctx)
	if err != nil {
		return models.Expense{}, err
	}
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return models.Expense{}, err
	}

	var maxID int64
	for _, e := range expenses {
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	expense := models.Expense{
		ID:       s.newID(maxID),
		Date:     date,
		Account:  account,
		Amount:   amount,
		Category: category,
		Note:     note,
	}
	expenses = append(expenses, expense)
	if err := s.repo.SaveExpenses(ctx, expenses); err != nil {
		return models.Expense{}, err
	}

	balances := balancesFrom(settings)
	applyDelta(balances, account, -amount)
	writeBalances(&settings, balances)
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return models.Expense{}, fmt.Errorf("expense %d recorded but balance update failed: %w", expense.ID, err)
	}

	s.log.Infof("Expense recorded: %s %.2f on %s (%s)", account, amount, date, category)
	return expense, nil
}

// RecordTransfer validates and appends a transfer, debiting the source and
// crediting the destination. The insufficient-funds check compares against
// the current projected balance and is advisory: concurrent transfers can
// both pass it.
func (s *Service) RecordTransfer(ctx context.Context, date models.Date, source, dest string, amount float64, comment string) (models.Transfer, error) {
	if amount <= 0 {
		return models.Transfer{}, validationf("amount must be greater than 0")
	}
	if !models.ValidAccount(source) {
		return models.Transfer{}, validationf("unknown source account %q", source)
	}
	if !models.ValidAccount(dest) {
		return models.Transfer{}, validationf("unknown destination account %q", dest)
	}
	if source == dest {
		return models.Transfer{}, validationf("source and destination accounts must differ")
	}
	if date.IsZero() {
		date = s.today()
	}

	transfers, err := s.repo.Transfers(ctx)
	if err != nil {
		return models.Transfer{}, err
	}
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return models.Transfer{}, err
	}

	balances := balancesFrom(settings)
	if amount > balances[source] {
		return models.Transfer{}, validationf("insufficient funds in %s: balance is %.2f, requested %.2f", source, balances[source], amount)
	}

	var maxID int64
	for _, t := range transfers {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	transfer := models.Transfer{
		ID:      s.newID(maxID),
		Date:    date,
		Source:  source,
		Dest:    dest,
		Amount:  amount,
		Comment: comment,
	}
	transfers = append(transfers, transfer)
	if err := s.repo.SaveTransfers(ctx, transfers); err != nil {
		return models.Transfer{}, err
	}

	applyDelta(balances, source, -amount)
	applyDelta(balances, dest, amount)
	writeBalances(&settings, balances)
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return models.Transfer{}, fmt.Errorf("transfer %d recorded but balance update failed: %w", transfer.ID, err)
	}

	s.log.Infof("Transfer recorded: %s -> %s %.2f on %s", source, dest, amount, date)
	return transfer, nil
}

// RecordIncome validates and appends an income row, crediting the account.
func (s *Service) RecordIncome(ctx context.Context, date models.Date, account string, amount float64, category, note string) (models.Income, error) {
	if amount <= 0 {
		return models.Income{}, validationf("amount must be greater than 0")
	}
	if !models.ValidAccount(account) {
		return models.Income{}, validationf("unknown account %q", account)
	}
	if date.IsZero() {
		date = s.today()
	}

	income, err := s.repo.Income(ctx)
	if err != nil {
		return models.Income{}, err
	}
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return models.Income{}, err
	}

	var maxID int64
	for _, in := range income {
		if in.ID > maxID {
			maxID = in.ID
		}
	}
	entry := models.Income{
		ID:       s.newID(maxID),
		Date:     date,
		Account:  account,
		Amount:   amount,
		Category: category,
		Note:     note,
	}
	income = append(income, entry)
	if err := s.repo.SaveIncome(ctx, income); err != nil {
		return models.Income{}, err
	}

	balances := balancesFrom(settings)
	applyDelta(balances, account, amount)
	writeBalances(&settings, balances)
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return models.Income{}, fmt.Errorf("income %d recorded but balance update failed: %w", entry.ID, err)
	}

	s.log.Infof("Income recorded: %s %.2f on %s (%s)", account, amount, date, category)
	return entry, nil
}

// Delete removes a ledger row by kind and id, reversing the exact balance
// delta the row caused. A missing id is a NotFoundError and writes nothing.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id int64) error {
	switch kind {
	case models.KindExpense:
		return s.deleteExpense(ctx, id)
	case models.KindTransfer:
		return s.deleteTransfer(ctx, id)
	case models.KindIncome:
		return s.deleteIncome(ctx, id)
	default:
		return validationf("unknown movement kind %q", kind)
	}
}

func (s *Service) deleteExpense(ctx context.Context, id int64) error {
	expenses, err := s.repo.Expenses(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range expenses {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Kind: models.KindExpense, ID: id}
	}
	removed := expenses[idx]
	expenses = append(expenses[:idx], expenses[idx+1:]...)

	settings, err := s.repo.Config(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.SaveExpenses(ctx, expenses); err != nil {
		return err
	}
	balances := balancesFrom(settings)
	applyDelta(balances, removed.Account, removed.Amount)
	writeBalances(&settings, balances)
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return fmt.Errorf("expense %d deleted but balance update failed: %w", id, err)
	}
	s.log.Infof("Expense deleted: id=%d %s %.2f", id, removed.Account, removed.Amount)
	return nil
}

func (s *Service) deleteTransfer(ctx context.Context, id int64) error {
	transfers, err := s.repo.Transfers(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, t := range transfers {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Kind: models.KindTransfer, ID: id}
	}
	removed := transfers[idx]
	transfers = append(transfers[:idx], transfers[idx+1:]...)

	settings, err := s.repo.Config(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.SaveTransfers(ctx, transfers); err != nil {
		return err
	}
	balances := balancesFrom(settings)
	applyDelta(balances, removed.Source, removed.Amount)
	applyDelta(balances, removed.Dest, -removed.Amount)
	writeBalances(&settings, balances)
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return fmt.Errorf("transfer %d deleted but balance update failed: %w", id, err)
	}
	s.log.Infof("Transfer deleted: id=%d %s -> %s %.2f", id, removed.Source, removed.Dest, removed.Amount)
	return nil
}

func (s *Service) deleteIncome(ctx context.Context, id int64) error {
	income, err := s.repo.Income(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, in := range income {
		if in.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Kind: models.KindIncome, ID: id}
	}
	removed := income[idx]
	income = append(income[:idx], income[idx+1:]...)

	settings, err := s.repo.Config(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.SaveIncome(ctx, income); err != nil {
		return err
	}
	balances := balancesFrom(settings)
	applyDelta(balances, removed.Account, -removed.Amount)
	writeBalances(&settings, balances)
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return fmt.Errorf("income %d deleted but balance update failed: %w", id, err)
	}
	s.log.Infof("Income deleted: id=%d %s %.2f", id, removed.Account, removed.Amount)
	return nil
}

// ActivityFeed merges the three movement tables into one feed ordered by
// (date, id) descending and truncated to the configured limit. Rows with a
// non-positive id are dropped as a defense against corrupt tables.
func (s *Service) ActivityFeed(ctx context.Context) ([]models.ActivityEntry, error) {
	expenses, transfers, income, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ActivityEntry, 0, len(expenses)+len(transfers)+len(income))
	for _, e := range expenses {
		entries = append(entries, models.ActivityEntry{
			ID:      e.ID,
			Date:    e.Date,
			Kind:    models.KindExpense,
			Primary: e.Account + " · " + e.Category,
			Detail:  e.Note,
			Amount:  e.Amount,
		})
	}
	for _, t := range transfers {
		entries = append(entries, models.ActivityEntry{
			ID:      t.ID,
			Date:    t.Date,
			Kind:    models.KindTransfer,
			Primary: t.Source + " → " + t.Dest,
			Detail:  t.Comment,
			Amount:  t.Amount,
		})
	}
	for _, in := range income {
		entries = append(entries, models.ActivityEntry{
			ID:      in.ID,
			Date:    in.Date,
			Kind:    models.KindIncome,
			Primary: in.Account + " · " + in.Category,
			Detail:  in.Note,
			Amount:  in.Amount,
		})
	}

	filtered := entries[:0]
	for _, entry := range entries {
		if entry.ID > 0 {
			filtered = append(filtered, entry)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].Date.Equal(filtered[j].Date) {
			return filtered[i].Date.After(filtered[j].Date)
		}
		return filtered[i].ID > filtered[j].ID
	})
	if len(filtered) > s.cfg.FeedLimit {
		filtered = filtered[:s.cfg.FeedLimit]
	}
	return filtered, nil
}

// AccountActivity lists the most recent movements touching one account within
// the lookback window, newest first. Its truncation limit is independent of
// the global feed's.
func (s *Service) AccountActivity(ctx context.Context, account string, days int) ([]models.HistoryEntry, error) {
	if !models.ValidAccount(account) {
		return nil, validationf("unknown account %q", account)
	}
	if days <= 0 {
		return nil, validationf("lookback days must be positive")
	}
	entries, err := s.accountEntries(ctx, account, s.today().AddDays(-days))
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID > entries[j].ID
	})
	if len(entries) > s.cfg.AccountFeedLimit {
		entries = entries[:s.cfg.AccountFeedLimit]
	}
	return entries, nil
}

// accountEntries collects signed-view rows touching the account on or after
// since. The Amount is the absolute movement size; the Label carries the
// direction.
func (s *Service) accountEntries(ctx context.Context, account string, since models.Date) ([]models.HistoryEntry, error) {
	expenses, transfers, income, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var entries []models.HistoryEntry
	for _, e := range expenses {
		if e.Account != account || e.Date.Before(since) {
			continue
		}
		entries = append(entries, models.HistoryEntry{
			ID: e.ID, Date: e.Date, Label: "expense", Amount: e.Amount,
			Detail: joinDetail(e.Category, e.Note),
		})
	}
	for _, t := range transfers {
		if t.Date.Before(since) {
			continue
		}
		if t.Source == account {
			entries = append(entries, models.HistoryEntry{
				ID: t.ID, Date: t.Date, Label: "transfer out", Amount: t.Amount,
				Detail: "→ " + t.Dest + parenthesize(t.Comment),
			})
		}
		if t.Dest == account {
			entries = append(entries, models.HistoryEntry{
				ID: t.ID, Date: t.Date, Label: "transfer in", Amount: t.Amount,
				Detail: "← " + t.Source + parenthesize(t.Comment),
			})
		}
	}
	for _, in := range income {
		if in.Account != account || in.Date.Before(since) {
			continue
		}
		entries = append(entries, models.HistoryEntry{
			ID: in.ID, Date: in.Date, Label: "income", Amount: in.Amount,
			Detail: joinDetail(in.Category, in.Note),
		})
	}
	return entries, nil
}

// BalanceCurve rebuilds the daily balance series for one account over the
// lookback window. It starts from the current projected balance, subtracts
// every in-window delta to find the balance at the window start, then replays
// each day's net delta forward, one point per calendar day through today.
// An empty series means no movements fell inside the window.
func (s *Service) BalanceCurve(ctx context.Context, account string, days int) ([]models.DailyBalance, error) {
	if !models.ValidAccount(account) {
		return nil, validationf("unknown account %q", account)
	}
	if days <= 0 {
		return nil, validationf("lookback days must be positive")
	}

	balances, err := s.Balances(ctx)
	if err != nil {
		return nil, err
	}
	since := s.today().AddDays(-days)
	deltas, err := s.dailyDeltas(ctx, account, since, models.Date{})
	if err != nil {
		return nil, err
	}
	if len(deltas) == 0 {
		return nil, nil
	}

	var total float64
	for _, d := range deltas {
		total += d
	}
	running := balances[account] - total

	var curve []models.DailyBalance
	for day := since; !day.After(s.today()); day = day.AddDays(1) {
		running += deltas[day]
		curve = append(curve, models.DailyBalance{Date: day, Balance: running})
	}
	return curve, nil
}

// dailyDeltas sums the signed balance effect per day for one account. The
// until bound is inclusive; a zero until means no upper bound.
func (s *Service) dailyDeltas(ctx context.Context, account string, since, until models.Date) (map[models.Date]float64, error) {
	expenses, transfers, income, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	inWindow := func(d models.Date) bool {
		if d.Before(since) {
			return false
		}
		return until.IsZero() || !d.After(until)
	}

	deltas := make(map[models.Date]float64)
	for _, e := range expenses {
		if e.Account == account && inWindow(e.Date) {
			deltas[e.Date] -= e.Amount
		}
	}
	for _, t := range transfers {
		if !inWindow(t.Date) {
			continue
		}
		if t.Source == account {
			deltas[t.Date] -= t.Amount
		}
		if t.Dest == account {
			deltas[t.Date] += t.Amount
		}
	}
	for _, in := range income {
		if in.Account == account && inWindow(in.Date) {
			deltas[in.Date] += in.Amount
		}
	}
	return deltas, nil
}

// Goals returns the configured goal thresholds, falling back to defaults.
func (s *Service) Goals(ctx context.Context) (models.Goals, error) {
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return models.Goals{}, err
	}
	return goalsFrom(settings), nil
}

func goalsFrom(settings models.Settings) models.Goals {
	return models.Goals{
		WeeklySpend:    parseFloatDefault(settings.GetDefault(keyWeeklyGoal, ""), defaultWeeklyGoal),
		MonthlySavings: parseFloatDefault(settings.GetDefault(keyMonthlyGoal, ""), defaultMonthlyGoal),
	}
}

// SetGoals overwrites the goal thresholds.
func (s *Service) SetGoals(ctx context.Context, goals models.Goals) error {
	if goals.WeeklySpend <= 0 || goals.MonthlySavings <= 0 {
		return validationf("goals must be greater than 0")
	}
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return err
	}
	settings.Set(keyWeeklyGoal, strconv.FormatFloat(goals.WeeklySpend, 'f', -1, 64))
	settings.Set(keyMonthlyGoal, strconv.FormatFloat(goals.MonthlySavings, 'f', -1, 64))
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return err
	}
	s.log.Infof("Goals updated: weekly=%.2f monthly=%.2f", goals.WeeklySpend, goals.MonthlySavings)
	return nil
}

// GoalProgress reports spending against the weekly goal (Monday-based week,
// all accounts) and the savings account's net change against the monthly
// goal.
func (s *Service) GoalProgress(ctx context.Context) (models.GoalProgress, error) {
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return models.GoalProgress{}, err
	}
	goals := goalsFrom(settings)
	today := s.today()

	weekStart := today.AddDays(-((int(today.Weekday()) + 6) % 7))
	weekEnd := weekStart.AddDays(6)

	expenses, err := s.repo.Expenses(ctx)
	if err != nil {
		return models.GoalProgress{}, err
	}
	var weekSpent float64
	for _, e := range expenses {
		if !e.Date.Before(weekStart) && !e.Date.After(weekEnd) {
			weekSpent += e.Amount
		}
	}

	monthStart := models.NewDate(today.Year(), today.Month(), 1)
	deltas, err := s.dailyDeltas(ctx, s.cfg.SavingsAccount, monthStart, today)
	if err != nil {
		return models.GoalProgress{}, err
	}
	var monthSaved float64
	for _, d := range deltas {
		monthSaved += d
	}

	return models.GoalProgress{
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		WeekSpent:     weekSpent,
		WeekGoal:      goals.WeeklySpend,
		WeekRemaining: max(0, goals.WeeklySpend-weekSpent),
		WeekPercent:   clampedRatio(weekSpent, goals.WeeklySpend),

		MonthStart:     monthStart,
		MonthEnd:       today,
		MonthSaved:     monthSaved,
		MonthGoal:      goals.MonthlySavings,
		MonthRemaining: goals.MonthlySavings - monthSaved,
		MonthPercent:   clampedRatio(monthSaved, goals.MonthlySavings),
	}, nil
}

// RecomputeBalances rebuilds the projection as the signed sum of every ledger
// row per account, assuming a zero opening balance, and persists it. This
// bounds the drift the incremental projection can accumulate; drift found is
// logged per account.
func (s *Service) RecomputeBalances(ctx context.Context) (map[string]float64, error) {
	expenses, transfers, income, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.repo.Config(ctx)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]float64, len(models.Accounts()))
	for _, account := range models.Accounts() {
		fresh[account] = 0
	}
	for _, e := range expenses {
		applyDelta(fresh, e.Account, -e.Amount)
	}
	for _, t := range transfers {
		applyDelta(fresh, t.Source, -t.Amount)
		applyDelta(fresh, t.Dest, t.Amount)
	}
	for _, in := range income {
		applyDelta(fresh, in.Account, in.Amount)
	}

	current := balancesFrom(settings)
	for account, v := range fresh {
		if prev, ok := current[account]; ok && prev != v {
			s.log.Warnf("Balance drift on %s: projection %.2f, ledger %.2f", account, prev, v)
		}
	}

	writeBalances(&settings, fresh)
	if err := s.repo.SaveConfig(ctx, settings); err != nil {
		return nil, err
	}
	s.log.Infof("Balances recomputed from ledger for %d accounts", len(fresh))
	return fresh, nil
}

func (s *Service) loadAll(ctx context.Context) ([]models.Expense, []models.Transfer, []models.Income, error) {
	expenses, err := s.repo.Expenses(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	transfers, err := s.repo.Transfers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	income, err := s.repo.Income(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return expenses, transfers, income, nil
}

func joinDetail(category, note string) string {
	if note == "" {
		return category
	}
	if category == "" {
		return note
	}
	return category + " - " + note
}

func parenthesize(comment string) string {
	if comment == "" {
		return ""
	}
	return " (" + comment + ")"
}

func parseFloatDefault(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func clampedRatio(value, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	ratio := value / goal
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
