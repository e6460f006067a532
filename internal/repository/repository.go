package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Dan9191/finance-tracker/internal/models"
	"github.com/Dan9191/finance-tracker/internal/store"
	"github.com/sirupsen/logrus"
)

// Logical table names.
const (
	TableConfig    = "Config"
	TableExpenses  = "Expenses"
	TableTransfers = "Transfers"
	TableIncome    = "Income"
)

var headers = map[string][]string{
	TableConfig:    {"key", "value"},
	TableExpenses:  {"id", "date", "account", "amount", "category", "note"},
	TableTransfers: {"id", "date", "source_account", "dest_account", "amount", "comment"},
	TableIncome:    {"id", "date", "account", "amount", "category", "note"},
}

// Repository provides typed access to the ledger tables. All cells are
// strings in storage; parsing and formatting happen here, and rows that do
// not parse are skipped with a logged warning.
type Repository struct {
	store store.TableStore
	log   *logrus.Logger

	// now is swappable so tests get deterministic backfilled ids.
	now func() time.Time
}

// NewRepository initializes a new repository over the given table store.
func NewRepository(st store.TableStore, log *logrus.Logger) *Repository {
	return &Repository{store: st, log: log, now: time.Now}
}

// EnsureTables writes the header row into any table that is still empty.
func (r *Repository) EnsureTables(ctx context.Context) error {
	for _, name := range []string{TableConfig, TableExpenses, TableTransfers, TableIncome} {
		rows, err := r.store.ReadTable(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", name, err)
		}
		if len(rows) == 0 {
			if err := r.store.WriteTable(ctx, name, [][]string{headers[name]}); err != nil {
				return fmt.Errorf("failed to create table %s: %w", name, err)
			}
		}
	}
	return nil
}

// dataRows strips the header row.
func dataRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

// Expenses loads all expense rows. Rows with missing or non-positive ids are
// repaired with base+index ids and the table is persisted again.
func (r *Repository) Expenses(ctx context.Context) ([]models.Expense, error) {
	rows, err := r.store.ReadTable(ctx, TableExpenses)
	if err != nil {
		return nil, err
	}
	var out []models.Expense
	changed := false
	for i, row := range dataRows(rows) {
		if len(row) < 6 {
			r.log.Warnf("skipping short row %d of %s: %v", i, TableExpenses, row)
			continue
		}
		date, amount, ok := r.parseDateAmount(TableExpenses, i, row[1], row[3])
		if !ok {
			continue
		}
		out = append(out, models.Expense{
			ID:       parseID(row[0]),
			Date:     date,
			Account:  row[2],
			Amount:   amount,
			Category: row[4],
			Note:     row[5],
		})
	}
	if backfillExpenseIDs(out, r.now().UnixMilli()) {
		changed = true
	}
	if changed {
		if err := r.SaveExpenses(ctx, out); err != nil {
			return nil, fmt.Errorf("failed to persist repaired ids: %w", err)
		}
	}
	return out, nil
}

// SaveExpenses overwrites the expense table.
func (r *Repository) SaveExpenses(ctx context.Context, expenses []models.Expense) error {
	rows := [][]string{headers[TableExpenses]}
	for _, e := range expenses {
		rows = append(rows, []string{
			formatID(e.ID), e.Date.String(), e.Account, formatAmount(e.Amount), e.Category, e.Note,
		})
	}
	return r.store.WriteTable(ctx, TableExpenses, rows)
}

// Transfers loads all transfer rows, repairing ids like Expenses does.
func (r *Repository) Transfers(ctx context.Context) ([]models.Transfer, error) {
	rows, err := r.store.ReadTable(ctx, TableTransfers)
	if err != nil {
		return nil, err
	}
	var out []models.Transfer
	for i, row := range dataRows(rows) {
		if len(row) < 6 {
			r.log.Warnf("skipping short row %d of %s: %v", i, TableTransfers, row)
			continue
		}
		date, amount, ok := r.parseDateAmount(TableTransfers, i, row[1], row[4])
		if !ok {
			continue
		}
		out = append(out, models.Transfer{
			ID:      parseID(row[0]),
			Date:    date,
			Source:  row[2],
			Dest:    row[3],
			Amount:  amount,
			Comment: row[5],
		})
	}
	if backfillTransferIDs(out, r.now().UnixMilli()) {
		if err := r.SaveTransfers(ctx, out); err != nil {
			return nil, fmt.Errorf("failed to persist repaired ids: %w", err)
		}
	}
	return out, nil
}

// SaveTransfers overwrites the transfer table.
func (r *Repository) SaveTransfers(ctx context.Context, transfers []models.Transfer) error {
	rows := [][]string{headers[TableTransfers]}
	for _, t := range transfers {
		rows = append(rows, []string{
			formatID(t.ID), t.Date.String(), t.Source, t.Dest, formatAmount(t.Amount), t.Comment,
		})
	}
	return r.store.WriteTable(ctx, TableTransfers, rows)
}

// Income loads all income rows, repairing ids like Expenses does.
func (r *Repository) Income(ctx context.Context) ([]models.Income, error) {
	rows, err := r.store.ReadTable(ctx, TableIncome)
	if err != nil {
		return nil, err
	}
	var out []models.Income
	for i, row := range dataRows(rows) {
		if len(row) < 6 {
			r.log.Warnf("skipping short row %d of %s: %v", i, TableIncome, row)
			continue
		}
		date, amount, ok := r.parseDateAmount(TableIncome, i, row[1], row[3])
		if !ok {
			continue
		}
		out = append(out, models.Income{
			ID:       parseID(row[0]),
			Date:     date,
			Account:  row[2],
			Amount:   amount,
			Category: row[4],
			Note:     row[5],
		})
	}
	if backfillIncomeIDs(out, r.now().UnixMilli()) {
		if err := r.SaveIncome(ctx, out); err != nil {
			return nil, fmt.Errorf("failed to persist repaired ids: %w", err)
		}
	}
	return out, nil
}

// SaveIncome overwrites the income table.
func (r *Repository) SaveIncome(ctx context.Context, income []models.Income) error {
	rows := [][]string{headers[TableIncome]}
	for _, in := range income {
		rows = append(rows, []string{
			formatID(in.ID), in.Date.String(), in.Account, formatAmount(in.Amount), in.Category, in.Note,
		})
	}
	return r.store.WriteTable(ctx, TableIncome, rows)
}

// Config loads the key/value table in row order.
func (r *Repository) Config(ctx context.Context) (models.Settings, error) {
	rows, err := r.store.ReadTable(ctx, TableConfig)
	if err != nil {
		return nil, err
	}
	var out models.Settings
	for i, row := range dataRows(rows) {
		if len(row) < 2 {
			r.log.Warnf("skipping short row %d of %s: %v", i, TableConfig, row)
			continue
		}
		out = append(out, models.Setting{Key: row[0], Value: row[1]})
	}
	return out, nil
}

// SaveConfig overwrites the key/value table.
func (r *Repository) SaveConfig(ctx context.Context, settings models.Settings) error {
	rows := [][]string{headers[TableConfig]}
	for _, s := range settings {
		rows = append(rows, []string{s.Key, s.Value})
	}
	return r.store.WriteTable(ctx, TableConfig, rows)
}

func (r *Repository) parseDateAmount(table string, i int, dateCell, amountCell string) (models.Date, float64, bool) {
	date, err := models.ParseDate(dateCell)
	if err != nil {
		r.log.Warnf("skipping row %d of %s: %v", i, table, err)
		return models.Date{}, 0, false
	}
	amount, err := strconv.ParseFloat(amountCell, 64)
	if err != nil {
		r.log.Warnf("skipping row %d of %s: invalid amount %q", i, table, amountCell)
		return models.Date{}, 0, false
	}
	return date, amount, true
}

// parseID returns 0 for missing or malformed ids; backfill assigns real ones.
func parseID(cell string) int64 {
	id, err := strconv.ParseInt(cell, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// Backfilled ids are base+index so a whole batch stays unique while keeping
// approximate chronological order.
func backfillExpenseIDs(list []models.Expense, base int64) bool {
	changed := false
	for i := range list {
		if list[i].ID <= 0 {
			list[i].ID = base + int64(i)
			changed = true
		}
	}
	return changed
}

func backfillTransferIDs(list []models.Transfer, base int64) bool {
	changed := false
	for i := range list {
		if list[i].ID <= 0 {
			list[i].ID = base + int64(i)
			changed = true
		}
	}
	return changed
}

func backfillIncomeIDs(list []models.Income, base int64) bool {
	changed := false
	for i := range list {
		if list[i].ID <= 0 {
			list[i].ID = base + int64(i)
			changed = true
		}
	}
	return changed
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
