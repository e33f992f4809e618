package reports

import (
	"fmt"
	"time"

	"resourcehive/internal/repository"
	"resourcehive/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// ReportRepository runs the read-only aggregations behind the report surface.
// Every query is idempotent; rendering to files is left to callers.
type ReportRepository struct {
	r *repository.Repository
}

func NewReportRepository(r *repository.Repository) *ReportRepository {
	return &ReportRepository{r: r}
}

type TopSupply struct {
	SupplyID      int    `json:"supply_id" db:"supply_id"`
	SupplyName    string `json:"supply_name" db:"supply_name"`
	RequestCount  int    `json:"request_count" db:"request_count"`
	TotalQuantity int    `json:"total_quantity" db:"total_quantity"`
}

// TopRequestedSupplies ranks supplies by requested quantity over a window.
func (rr *ReportRepository) TopRequestedSupplies(from, to time.Time, limit int) ([]TopSupply, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []TopSupply
	query := rr.r.GoquDBWrapper.
		Select(
			goqu.I("i.supply_id").As("supply_id"),
			goqu.I("s.supply_name").As("supply_name"),
			goqu.COUNT(goqu.I("i.id")).As("request_count"),
			goqu.SUM(goqu.I("i.quantity")).As("total_quantity"),
		).
		From(goqu.T("supply_request_items").As("i")).
		Join(goqu.T("supply_request_batches").As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("i.batch_id")})).
		Join(goqu.T("supplies").As("s"), goqu.On(goqu.Ex{"s.id": goqu.I("i.supply_id")})).
		Where(goqu.I("b.request_date").Between(goqu.Range(from, to))).
		GroupBy(goqu.I("i.supply_id"), goqu.I("s.supply_name")).
		Order(goqu.I("total_quantity").Desc()).
		Limit(uint(limit))

	if err := query.Executor().ScanStructs(&rows); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for top supplies: %w", err)
	}

	return rows, nil
}

type DepartmentCount struct {
	Department     string `json:"department" db:"department"`
	SupplyRequests int    `json:"supply_requests"`
	BorrowRequests int    `json:"borrow_requests"`
	Reservations   int    `json:"reservations"`
}

type departmentTally struct {
	Department string `db:"department"`
	Count      int    `db:"count"`
}

// RequestsByDepartment counts each kind of request per requester department.
func (rr *ReportRepository) RequestsByDepartment(from, to time.Time) ([]DepartmentCount, error) {
	merged := make(map[string]*DepartmentCount)
	order := make([]string, 0)

	tables := []struct {
		table  string
		assign func(dc *DepartmentCount, count int)
	}{
		{"supply_request_batches", func(dc *DepartmentCount, count int) { dc.SupplyRequests = count }},
		{"borrow_request_batches", func(dc *DepartmentCount, count int) { dc.BorrowRequests = count }},
		{"reservation_batches", func(dc *DepartmentCount, count int) { dc.Reservations = count }},
	}

	for _, spec := range tables {
		var tallies []departmentTally
		query := rr.r.GoquDBWrapper.
			Select(
				goqu.I("u.department").As("department"),
				goqu.COUNT(goqu.I("b.id")).As("count"),
			).
			From(goqu.T(spec.table).As("b")).
			Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("b.user_id")})).
			Where(goqu.I("b.request_date").Between(goqu.Range(from, to))).
			GroupBy(goqu.I("u.department")).
			Order(goqu.I("u.department").Asc())

		if err := query.Executor().ScanStructs(&tallies); err != nil {
			return nil, fmt.Errorf("error executing SQL statement for department counts: %w", err)
		}

		for _, tally := range tallies {
			dc, seen := merged[tally.Department]
			if !seen {
				dc = &DepartmentCount{Department: tally.Department}
				merged[tally.Department] = dc
				order = append(order, tally.Department)
			}
			spec.assign(dc, tally.Count)
		}
	}

	result := make([]DepartmentCount, 0, len(order))
	for _, department := range order {
		result = append(result, *merged[department])
	}

	return result, nil
}

type CompletionTally struct {
	SupplyCompleted       int `json:"supply_completed"`
	BorrowReturned        int `json:"borrow_returned"`
	ReservationsCompleted int `json:"reservations_completed"`
}

// CompletedTallies counts requests that reached their happy terminal state
// over a window.
func (rr *ReportRepository) CompletedTallies(from, to time.Time) (*CompletionTally, error) {
	var tally CompletionTally

	counts := []struct {
		table  string
		status string
		target *int
	}{
		{"supply_request_batches", models.BatchStatusCompleted, &tally.SupplyCompleted},
		{"borrow_request_batches", models.BatchStatusReturned, &tally.BorrowReturned},
		{"reservation_batches", models.BatchStatusCompleted, &tally.ReservationsCompleted},
	}

	for _, spec := range counts {
		var count int64
		query := rr.r.GoquDBWrapper.
			From(spec.table).
			Where(goqu.Ex{"status": spec.status}).
			Where(goqu.C("request_date").Between(goqu.Range(from, to))).
			Select(goqu.COUNT("*"))

		if _, err := query.Executor().ScanVal(&count); err != nil {
			return nil, fmt.Errorf("error executing SQL statement for completion tally: %w", err)
		}
		*spec.target = int(count)
	}

	return &tally, nil
}

type TimelineEntry struct {
	OldValue  string    `json:"old_value" db:"old_value"`
	NewValue  string    `json:"new_value" db:"new_value"`
	ActorID   int       `json:"actor_id" db:"actor_id"`
	Remarks   string    `json:"remarks" db:"remarks"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SupplyQuantityTimeline returns every on-hand quantity change for a supply
// over a window, oldest first.
func (rr *ReportRepository) SupplyQuantityTimeline(supplyID int, from, to time.Time) ([]TimelineEntry, error) {
	var entries []TimelineEntry
	query := rr.r.GoquDBWrapper.
		Select("old_value", "new_value", "actor_id", "remarks", "created_at").
		From("supply_history").
		Where(goqu.Ex{"supply_id": supplyID, "field_name": "current_quantity"}).
		Where(goqu.C("created_at").Between(goqu.Range(from, to))).
		Order(goqu.C("created_at").Asc())

	if err := query.Executor().ScanStructs(&entries); err != nil {
		return nil, fmt.Errorf("error executing SQL statement for supply timeline: %w", err)
	}

	return entries, nil
}

type UserRequestSummary struct {
	UserID         int            `json:"user_id"`
	SupplyByStatus map[string]int `json:"supply_by_status"`
	BorrowByStatus map[string]int `json:"borrow_by_status"`
	ReservationsBy map[string]int `json:"reservations_by_status"`
}

type statusTally struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// UserSummary tallies one user's requests per kind and status.
func (rr *ReportRepository) UserSummary(userID int) (*UserRequestSummary, error) {
	summary := &UserRequestSummary{
		UserID:         userID,
		SupplyByStatus: make(map[string]int),
		BorrowByStatus: make(map[string]int),
		ReservationsBy: make(map[string]int),
	}

	tables := []struct {
		table  string
		target map[string]int
	}{
		{"supply_request_batches", summary.SupplyByStatus},
		{"borrow_request_batches", summary.BorrowByStatus},
		{"reservation_batches", summary.ReservationsBy},
	}

	for _, spec := range tables {
		var tallies []statusTally
		query := rr.r.GoquDBWrapper.
			Select(goqu.C("status"), goqu.COUNT("*").As("count")).
			From(spec.table).
			Where(goqu.Ex{"user_id": userID}).
			GroupBy(goqu.C("status"))

		if err := query.Executor().ScanStructs(&tallies); err != nil {
			return nil, fmt.Errorf("error executing SQL statement for user summary: %w", err)
		}
		for _, tally := range tallies {
			spec.target[tally.Status] = tally.Count
		}
	}

	return summary, nil
}
