package db

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jibon-roy/nano-db/ps"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	CommitResultType
	ListResultType
	SessionResultType
	HistoryResultType
	TransferResultType
)

type Result interface {
	Type() ResultType
	Display(w io.Writer)
}

// QueryResult holds the records returned by select. Lines are the stored
// lines; Columns and Data are the same records decoded into a grid.
type QueryResult struct {
	Table            string
	Columns          []string
	Data             [][]string
	Lines            []string
	RecordsRead      int
	ExecutionTimeSec float64
}

type CommitResult struct {
	Transaction      ps.Transaction
	DatabasesCreated int
	DatabasesDeleted int
	TablesCreated    int
	TablesDeleted    int
	RecordsWritten   int
	RecordsMatched   int
	RecordsUpdated   int
	RecordsDeleted   int
	// AssignedID is the id given by insert, 0 otherwise.
	AssignedID int
	// Filtered is set by update and delete, which select with a where clause.
	Filtered bool
	// Restored is the transaction a restore went back to.
	Restored         string
	ExecutionTimeSec float64
}

// ListResult is returned by "list db" and "list table".
type ListResult struct {
	Kind  string // "database" or "table"
	Names []string
}

// SessionResult is returned by "use".
type SessionResult struct {
	Database string
}

type HistoryResult struct {
	Transactions []ps.Transaction
}

// TransferResult is returned by export and import.
type TransferResult struct {
	Direction   string // "export" or "import"
	Table       string
	URL         string
	Records     int
	Transaction ps.Transaction
}

func (result QueryResult) Type() ResultType {
	return QueryResultType
}

func (result CommitResult) Type() ResultType {
	return CommitResultType
}

func (result ListResult) Type() ResultType {
	return ListResultType
}

func (result SessionResult) Type() ResultType {
	return SessionResultType
}

func (result HistoryResult) Type() ResultType {
	return HistoryResultType
}

func (result TransferResult) Type() ResultType {
	return TransferResultType
}

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 1 {
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	} else {
		mins := int(secs / 60)
		remainSecs := int(secs) % 60
		if remainSecs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm%ds", mins, remainSecs)
	}
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result CommitResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

// NoMatch reports whether the query returned no records.
func (result QueryResult) NoMatch() bool {
	return result.RecordsRead == 0
}

func (result QueryResult) Display(w io.Writer) {
	if result.NoMatch() {
		fmt.Fprintf(w, "No records found. (%s)\n", result.ExecutionTime())
		return
	}

	writeGrid(w, result.Columns, result.Data)

	fmt.Fprintf(w, "%d rows (%s)\n", result.RecordsRead, result.ExecutionTime())
}

func (result CommitResult) Display(w io.Writer) {
	var parts []string

	if result.DatabasesCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d database(s) created", result.DatabasesCreated))
	}
	if result.DatabasesDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d database(s) deleted", result.DatabasesDeleted))
	}
	if result.TablesCreated > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) created", result.TablesCreated))
	}
	if result.TablesDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d table(s) deleted", result.TablesDeleted))
	}
	if result.RecordsWritten > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) written (id:%d)", result.RecordsWritten, result.AssignedID))
	}
	if result.RecordsUpdated > 0 || (result.RecordsMatched > 0 && result.RecordsDeleted == 0) {
		updated := fmt.Sprintf("%d record(s) updated", result.RecordsUpdated)
		if result.RecordsMatched != result.RecordsUpdated {
			updated += fmt.Sprintf(" of %d matched", result.RecordsMatched)
		}
		parts = append(parts, updated)
	}
	if result.RecordsDeleted > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) deleted", result.RecordsDeleted))
	}
	if result.Restored != "" {
		parts = append(parts, "restored to "+result.Restored)
	}

	if len(parts) == 0 && result.Filtered {
		parts = append(parts, "No matching records")
	}
	if len(parts) == 0 {
		parts = append(parts, "OK")
	}

	suffix := ""
	if result.Transaction.Id != "" {
		suffix = ", txn " + result.Transaction.Short()
	}
	fmt.Fprintf(w, "%s (%s%s)\n", strings.Join(parts, ", "), result.ExecutionTime(), suffix)
}

func (result ListResult) Display(w io.Writer) {
	if len(result.Names) == 0 {
		fmt.Fprintf(w, "No %ss found.\n", result.Kind)
		return
	}

	fmt.Fprintf(w, "%ss:\n", strings.ToUpper(result.Kind[:1])+result.Kind[1:])
	for _, name := range result.Names {
		fmt.Fprintf(w, " - %s\n", name)
	}
}

func (result SessionResult) Display(w io.Writer) {
	fmt.Fprintf(w, "Switched to database '%s'\n", result.Database)
}

func (result HistoryResult) Display(w io.Writer) {
	if len(result.Transactions) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}

	rows := make([][]string, 0, len(result.Transactions))
	for _, txn := range result.Transactions {
		rows = append(rows, []string{txn.Short(), txn.When.Format(time.DateTime), txn.Author, txn.Message})
	}
	writeGrid(w, []string{"transaction", "when", "author", "message"}, rows)
}

func (result TransferResult) Display(w io.Writer) {
	if result.Direction == "export" {
		fmt.Fprintf(w, "%d record(s) exported from %s to %s\n", result.Records, result.Table, result.URL)
		return
	}
	fmt.Fprintf(w, "%d record(s) imported into %s from %s\n", result.Records, result.Table, result.URL)
}
