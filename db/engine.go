package db

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/op"
	"github.com/jibon-roy/nano-db/ps"
	"github.com/jibon-roy/nano-db/sql"
)

// unnamedColumn heads the values of pairs written without a separator.
const unnamedColumn = "?"

type Engine struct {
	*ps.Persistence
	// Identity is used for sessions that do not carry their own.
	Identity core.Identity
	s3       *S3Config
	// remoteOnly refuses local paths as export and import targets.
	remoteOnly bool
}

func NewEngine(persistence *ps.Persistence, identity core.Identity) *Engine {
	return &Engine{
		Persistence: persistence,
		Identity:    identity,
	}
}

// WithS3 sets the credentials used by export and import for s3:// URLs.
func (engine *Engine) WithS3(cfg S3Config) *Engine {
	engine.s3 = &cfg
	return engine
}

// WithoutLocalFiles makes export and import refuse local paths and file://
// URLs, leaving http(s) and s3 targets. Network-facing engines use it so
// clients cannot read or write files on the host.
func (engine *Engine) WithoutLocalFiles() *Engine {
	engine.remoteOnly = true
	return engine
}

// NewSession returns a session with no database selected.
func (engine *Engine) NewSession() *Session {
	return &Session{Identity: engine.Identity}
}

// Execute parses and runs one command in the context of session. "use" and
// dropping the current database update the session.
func (engine *Engine) Execute(ctx context.Context, session *Session, command string) (Result, error) {
	statement, err := sql.Parse(command)
	if err != nil {
		return nil, err
	}

	if session.Identity == (core.Identity{}) {
		session.Identity = engine.Identity
	}

	switch statement.Type() {
	case sql.SelectStatementType:
		return engine.executeSelectStatement(session, statement.(sql.SelectStatement))
	case sql.InsertStatementType:
		return engine.executeInsertStatement(session, statement.(sql.InsertStatement))
	case sql.UpdateStatementType:
		return engine.executeUpdateStatement(session, statement.(sql.UpdateStatement))
	case sql.DeleteStatementType:
		return engine.executeDeleteStatement(session, statement.(sql.DeleteStatement))
	case sql.CreateTableStatementType:
		return engine.executeCreateTableStatement(session, statement.(sql.CreateTableStatement))
	case sql.DropTableStatementType:
		return engine.executeDropTableStatement(session, statement.(sql.DropTableStatement))
	case sql.ListTablesStatementType:
		return engine.executeListTablesStatement(session, statement.(sql.ListTablesStatement))
	case sql.CreateDatabaseStatementType:
		return engine.executeCreateDatabaseStatement(session, statement.(sql.CreateDatabaseStatement))
	case sql.DropDatabaseStatementType:
		return engine.executeDropDatabaseStatement(session, statement.(sql.DropDatabaseStatement))
	case sql.ListDatabasesStatementType:
		return engine.executeListDatabasesStatement()
	case sql.UseStatementType:
		return engine.executeUseStatement(session, statement.(sql.UseStatement))
	case sql.HistoryStatementType:
		return engine.executeHistoryStatement(session, statement.(sql.HistoryStatement))
	case sql.RestoreStatementType:
		return engine.executeRestoreStatement(session, statement.(sql.RestoreStatement))
	case sql.ExportStatementType:
		return engine.executeExportStatement(ctx, session, statement.(sql.ExportStatement))
	case sql.ImportStatementType:
		return engine.executeImportStatement(ctx, session, statement.(sql.ImportStatement))
	default:
		return nil, fmt.Errorf("unsupported statement type: %v", statement.Type())
	}
}

func (engine *Engine) tableOp(session *Session, ref sql.TableRef) (*op.TableOp, error) {
	table, err := session.resolve(ref)
	if err != nil {
		return nil, err
	}
	return op.GetTable(table.Database, table.Name, engine.Persistence)
}

func (engine *Engine) executeSelectStatement(session *Session, statement sql.SelectStatement) (QueryResult, error) {
	startTime := time.Now()

	tableOp, err := engine.tableOp(session, statement.TableRef)
	if err != nil {
		return QueryResult{}, err
	}

	res, err := tableOp.Select(statement.Where)
	if err != nil {
		return QueryResult{}, err
	}

	columns, data := decodeGrid(res.Lines)
	return QueryResult{
		Table:            tableOp.Table.String(),
		Columns:          columns,
		Data:             data,
		Lines:            res.Lines,
		RecordsRead:      res.Count,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

// decodeGrid lays records out under the union of their field names, in order
// of first appearance. A repeated field keeps its first value.
func decodeGrid(lines []string) ([]string, [][]string) {
	columns := []string{}
	index := map[string]int{}
	records := make([][]core.Field, len(lines))

	for i, line := range lines {
		records[i] = core.DecodeRecord(line)
		for _, f := range records[i] {
			name := f.Name
			if name == "" {
				name = unnamedColumn
			}
			if _, seen := index[name]; !seen {
				index[name] = len(columns)
				columns = append(columns, name)
			}
		}
	}

	data := make([][]string, len(records))
	for i, fields := range records {
		row := make([]string, len(columns))
		filled := make([]bool, len(columns))
		for _, f := range fields {
			name := f.Name
			if name == "" {
				name = unnamedColumn
			}
			col := index[name]
			if !filled[col] {
				row[col] = f.Value
				filled[col] = true
			}
		}
		data[i] = row
	}

	return columns, data
}

func (engine *Engine) executeInsertStatement(session *Session, statement sql.InsertStatement) (CommitResult, error) {
	startTime := time.Now()

	tableOp, err := engine.tableOp(session, statement.TableRef)
	if err != nil {
		return CommitResult{}, err
	}

	res, err := tableOp.Insert(statement.Values, session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      res.Transaction,
		RecordsWritten:   1,
		AssignedID:       res.ID,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeUpdateStatement(session *Session, statement sql.UpdateStatement) (CommitResult, error) {
	startTime := time.Now()

	tableOp, err := engine.tableOp(session, statement.TableRef)
	if err != nil {
		return CommitResult{}, err
	}

	res, err := tableOp.Update(statement.Where, statement.Set, session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      res.Transaction,
		RecordsMatched:   res.Matched,
		RecordsUpdated:   res.Changed,
		Filtered:         true,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeDeleteStatement(session *Session, statement sql.DeleteStatement) (CommitResult, error) {
	startTime := time.Now()

	tableOp, err := engine.tableOp(session, statement.TableRef)
	if err != nil {
		return CommitResult{}, err
	}

	res, err := tableOp.Delete(statement.Where, session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      res.Transaction,
		RecordsMatched:   res.Matched,
		RecordsDeleted:   res.Changed,
		Filtered:         true,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeCreateTableStatement(session *Session, statement sql.CreateTableStatement) (CommitResult, error) {
	startTime := time.Now()

	table, err := session.resolve(statement.TableRef)
	if err != nil {
		return CommitResult{}, err
	}

	txn, _, err := op.CreateTable(table, engine.Persistence, session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      *txn,
		TablesCreated:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeDropTableStatement(session *Session, statement sql.DropTableStatement) (CommitResult, error) {
	startTime := time.Now()

	tableOp, err := engine.tableOp(session, statement.TableRef)
	if err != nil {
		return CommitResult{}, err
	}

	txn, err := tableOp.DropTable(session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      txn,
		TablesDeleted:    1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeListTablesStatement(session *Session, statement sql.ListTablesStatement) (ListResult, error) {
	database := statement.Database
	if database == "" {
		database = session.Database
	}
	if database == "" {
		return ListResult{}, fmt.Errorf("%w: use <database> or list table <database>", core.ErrNoDatabaseSelected)
	}

	dbOp, err := op.GetDatabase(database, engine.Persistence)
	if err != nil {
		return ListResult{}, err
	}

	names, err := dbOp.TableNames()
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Kind: "table", Names: names}, nil
}

func (engine *Engine) executeCreateDatabaseStatement(session *Session, statement sql.CreateDatabaseStatement) (CommitResult, error) {
	startTime := time.Now()

	txn, _, err := op.CreateDatabase(core.Database{Name: statement.Database}, engine.Persistence, session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		Transaction:      *txn,
		DatabasesCreated: 1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeDropDatabaseStatement(session *Session, statement sql.DropDatabaseStatement) (CommitResult, error) {
	startTime := time.Now()

	dbOp, err := op.GetDatabase(statement.Database, engine.Persistence)
	if err != nil {
		return CommitResult{}, err
	}

	txn, err := dbOp.DropDatabase(session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	if session.Database == statement.Database {
		session.Leave()
	}

	return CommitResult{
		Transaction:      txn,
		DatabasesDeleted: 1,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeListDatabasesStatement() (ListResult, error) {
	names, err := engine.ListDatabases()
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Kind: "database", Names: names}, nil
}

func (engine *Engine) executeUseStatement(session *Session, statement sql.UseStatement) (SessionResult, error) {
	if _, err := op.GetDatabase(statement.Database, engine.Persistence); err != nil {
		return SessionResult{}, err
	}

	session.Database = statement.Database
	return SessionResult{Database: statement.Database}, nil
}

func (engine *Engine) executeHistoryStatement(session *Session, statement sql.HistoryStatement) (HistoryResult, error) {
	if statement.Table == nil {
		txns, err := engine.History(nil, 0)
		if err != nil {
			return HistoryResult{}, err
		}
		return HistoryResult{Transactions: txns}, nil
	}

	tableOp, err := engine.tableOp(session, *statement.Table)
	if err != nil {
		return HistoryResult{}, err
	}

	txns, err := tableOp.History(0)
	if err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{Transactions: txns}, nil
}

func (engine *Engine) executeRestoreStatement(session *Session, statement sql.RestoreStatement) (CommitResult, error) {
	startTime := time.Now()

	txn, err := engine.Restore(statement.Transaction, session.Identity)
	if err != nil {
		return CommitResult{}, err
	}

	// The selected database may not exist at the restored point.
	if session.InDatabase() {
		if exists, err := engine.DatabaseExists(session.Database); err == nil && !exists {
			session.Leave()
		}
	}

	return CommitResult{
		Transaction:      txn,
		Restored:         statement.Transaction,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeExportStatement(ctx context.Context, session *Session, statement sql.ExportStatement) (TransferResult, error) {
	table, err := session.resolve(statement.TableRef)
	if err != nil {
		return TransferResult{}, err
	}

	data, err := engine.ReadRaw(table)
	if err != nil {
		return TransferResult{}, err
	}

	loc, err := engine.resolveLocation(statement.URL)
	if err != nil {
		return TransferResult{}, err
	}
	if err := loc.write(ctx, data, engine.s3); err != nil {
		return TransferResult{}, fmt.Errorf("failed to write %s: %w", loc, err)
	}

	records := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			records++
		}
	}

	slog.Info("Exported table", "table", table.String(), "url", statement.URL, "records", records)

	return TransferResult{
		Direction: "export",
		Table:     table.String(),
		URL:       statement.URL,
		Records:   records,
	}, nil
}

// executeImportStatement appends every record of the source to the table.
// Source ids are dropped and new ones allocated, so importing into a
// non-empty table does not produce duplicate ids.
func (engine *Engine) executeImportStatement(ctx context.Context, session *Session, statement sql.ImportStatement) (TransferResult, error) {
	tableOp, err := engine.tableOp(session, statement.TableRef)
	if err != nil {
		return TransferResult{}, err
	}

	loc, err := engine.resolveLocation(statement.URL)
	if err != nil {
		return TransferResult{}, err
	}
	r, err := loc.open(ctx, engine.s3)
	if err != nil {
		return TransferResult{}, err
	}
	defer r.Close()

	result := TransferResult{
		Direction: "import",
		Table:     tableOp.Table.String(),
		URL:       statement.URL,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		res, err := tableOp.Insert(stripID(line), session.Identity)
		if err != nil {
			return result, fmt.Errorf("import stopped after %d record(s): %w", result.Records, err)
		}
		result.Records++
		result.Transaction = res.Transaction
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return result, fmt.Errorf("failed to read %s: %w", statement.URL, err)
	}

	slog.Info("Imported table", "table", result.Table, "url", statement.URL, "records", result.Records)

	return result, nil
}

// stripID removes the id fields of an exported line, keeping the rest.
func stripID(line string) string {
	fields := core.DecodeRecord(line)
	kept := fields[:0]
	for _, f := range fields {
		if f.Name != core.IDField {
			kept = append(kept, f)
		}
	}
	return core.EncodeFields(kept)
}
