package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jibon-roy/nano-db/core"
)

// ErrUnknownStatement is returned when the first word is not a command.
var ErrUnknownStatement = errors.New("command not recognized")

type StatementType int

const (
	SelectStatementType StatementType = iota
	InsertStatementType
	UpdateStatementType
	DeleteStatementType
	CreateTableStatementType
	DropTableStatementType
	ListTablesStatementType
	CreateDatabaseStatementType
	DropDatabaseStatementType
	ListDatabasesStatementType
	UseStatementType
	HistoryStatementType
	RestoreStatementType
	ExportStatementType
	ImportStatementType
)

type Statement interface {
	Type() StatementType
}

// TableRef names a table, optionally qualified as database.table. An empty
// Database means the session's current database.
type TableRef struct {
	Database string
	Table    string
}

func (ref TableRef) String() string {
	if ref.Database == "" {
		return ref.Table
	}
	return ref.Database + "." + ref.Table
}

type SelectStatement struct {
	TableRef
	Where *core.Clause
}

type InsertStatement struct {
	TableRef
	// Values is the free text between the parentheses, stored verbatim.
	Values string
}

type UpdateStatement struct {
	TableRef
	Set   core.Clause
	Where core.Clause
}

type DeleteStatement struct {
	TableRef
	Where core.Clause
}

type CreateTableStatement struct {
	TableRef
}

type DropTableStatement struct {
	TableRef
}

type ListTablesStatement struct {
	Database string
}

type CreateDatabaseStatement struct {
	Database string
}

type DropDatabaseStatement struct {
	Database string
}

type ListDatabasesStatement struct{}

type UseStatement struct {
	Database string
}

// HistoryStatement lists transactions, for one table when Table is set.
type HistoryStatement struct {
	Table *TableRef
}

type RestoreStatement struct {
	Transaction string
}

type ExportStatement struct {
	TableRef
	URL string
}

type ImportStatement struct {
	TableRef
	URL string
}

func (s SelectStatement) Type() StatementType { return SelectStatementType }
func (s InsertStatement) Type() StatementType { return InsertStatementType }
func (s UpdateStatement) Type() StatementType { return UpdateStatementType }
func (s DeleteStatement) Type() StatementType { return DeleteStatementType }
func (s CreateTableStatement) Type() StatementType { return CreateTableStatementType }
func (s DropTableStatement) Type() StatementType { return DropTableStatementType }
func (s ListTablesStatement) Type() StatementType { return ListTablesStatementType }
func (s CreateDatabaseStatement) Type() StatementType { return CreateDatabaseStatementType }
func (s DropDatabaseStatement) Type() StatementType { return DropDatabaseStatementType }
func (s ListDatabasesStatement) Type() StatementType { return ListDatabasesStatementType }
func (s UseStatement) Type() StatementType { return UseStatementType }
func (s HistoryStatement) Type() StatementType { return HistoryStatementType }
func (s RestoreStatement) Type() StatementType { return RestoreStatementType }
func (s ExportStatement) Type() StatementType { return ExportStatementType }
func (s ImportStatement) Type() StatementType { return ImportStatementType }

type Parser struct {
	lexer *Lexer
}

func NewParser(input string) *Parser {
	lexer := NewLexer(input)
	return &Parser{lexer: lexer}
}

func (parser *Parser) Parse() (Statement, error) {
	token := parser.lexer.NextToken()

	var statement Statement
	var err error

	switch token.Type {
	case Select:
		statement, err = ParseSelect(parser)
	case Insert:
		statement, err = ParseInsert(parser)
	case Update:
		statement, err = ParseUpdate(parser)
	case Delete:
		statement, err = ParseDelete(parser)
	case Create:
		statement, err = ParseCreate(parser)
	case Drop:
		statement, err = ParseDrop(parser)
	case List:
		statement, err = ParseList(parser)
	case Use:
		statement, err = ParseUse(parser)
	case History:
		statement, err = ParseHistory(parser)
	case Restore:
		statement, err = ParseRestore(parser)
	case Export:
		statement, err = ParseExport(parser)
	case Import:
		statement, err = ParseImport(parser)
	case EOF:
		return nil, errors.New("empty command")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatement, token.Value)
	}
	if err != nil {
		return nil, err
	}

	if next := parser.lexer.NextToken(); next.Type != EOF {
		return nil, fmt.Errorf("unexpected %q at end of command", next.Value)
	}
	return statement, nil
}

// Parse parses a single command line.
func Parse(input string) (Statement, error) {
	return NewParser(input).Parse()
}

func ParseSelect(parser *Parser) (Statement, error) {
	var selectStatement SelectStatement

	if token := parser.lexer.NextToken(); token.Type != Wildcard {
		return nil, errors.New("expected * after SELECT")
	}
	if token := parser.lexer.NextToken(); token.Type != From {
		return nil, errors.New("expected FROM after SELECT *")
	}

	ref, err := parseTableRef(parser, "FROM")
	if err != nil {
		return nil, err
	}
	selectStatement.TableRef = ref

	if parser.lexer.PeekToken().Type == Where {
		parser.lexer.NextToken()
		where, err := ParseWhere(parser)
		if err != nil {
			return nil, err
		}
		selectStatement.Where = &where
	}

	return selectStatement, nil
}

// ParseWhere reads the rest of the command as one field:value clause.
func ParseWhere(parser *Parser) (core.Clause, error) {
	return core.ParseClause(parser.lexer.Rest())
}

func ParseInsert(parser *Parser) (Statement, error) {
	var insertStatement InsertStatement

	if token := parser.lexer.NextToken(); token.Type != Into {
		return nil, errors.New("expected INTO after INSERT")
	}

	ref, err := parseTableRef(parser, "INTO")
	if err != nil {
		return nil, err
	}
	insertStatement.TableRef = ref

	if token := parser.lexer.NextToken(); token.Type != Values {
		return nil, errors.New("expected VALUES after table name")
	}
	if token := parser.lexer.NextToken(); token.Type != ParenOpen {
		return nil, errors.New("expected ( after VALUES")
	}

	values, closed := parser.lexer.ReadRaw(ParenClose)
	if !closed {
		return nil, fmt.Errorf("%w: missing ) after values", core.ErrMalformedClause)
	}
	insertStatement.Values = values

	return insertStatement, nil
}

func ParseUpdate(parser *Parser) (Statement, error) {
	var updateStatement UpdateStatement

	ref, err := parseTableRef(parser, "UPDATE")
	if err != nil {
		return nil, err
	}
	updateStatement.TableRef = ref

	if token := parser.lexer.NextToken(); token.Type != Set {
		return nil, errors.New("expected SET after table name")
	}

	setText, hasWhere := parser.lexer.ReadRaw(Where)
	set, err := core.ParseClause(setText)
	if err != nil {
		return nil, err
	}
	updateStatement.Set = set

	if !hasWhere {
		return nil, fmt.Errorf("%w: UPDATE requires a WHERE clause", core.ErrMalformedClause)
	}
	where, err := ParseWhere(parser)
	if err != nil {
		return nil, err
	}
	updateStatement.Where = where

	return updateStatement, nil
}

func ParseDelete(parser *Parser) (Statement, error) {
	var deleteStatement DeleteStatement

	if token := parser.lexer.NextToken(); token.Type != From {
		return nil, errors.New("expected FROM after DELETE")
	}

	ref, err := parseTableRef(parser, "FROM")
	if err != nil {
		return nil, err
	}
	deleteStatement.TableRef = ref

	if token := parser.lexer.NextToken(); token.Type != Where {
		return nil, fmt.Errorf("%w: DELETE requires a WHERE clause", core.ErrMalformedClause)
	}
	where, err := ParseWhere(parser)
	if err != nil {
		return nil, err
	}
	deleteStatement.Where = where

	return deleteStatement, nil
}

func ParseCreate(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case DatabaseIdentifier:
		name, err := parseName(parser, "DB")
		if err != nil {
			return nil, err
		}
		return CreateDatabaseStatement{Database: name}, nil
	case TableIdentifier:
		ref, err := parseTableRef(parser, "TABLE")
		if err != nil {
			return nil, err
		}
		return CreateTableStatement{TableRef: ref}, nil
	default:
		return nil, errors.New("expected DB or TABLE after CREATE")
	}
}

func ParseDrop(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case DatabaseIdentifier:
		name, err := parseName(parser, "DB")
		if err != nil {
			return nil, err
		}
		return DropDatabaseStatement{Database: name}, nil
	case TableIdentifier:
		ref, err := parseTableRef(parser, "TABLE")
		if err != nil {
			return nil, err
		}
		return DropTableStatement{TableRef: ref}, nil
	default:
		return nil, errors.New("expected DB or TABLE after DROP")
	}
}

// ParseList handles "list db" and "list table [<database>]".
func ParseList(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case DatabaseIdentifier:
		return ListDatabasesStatement{}, nil
	case TableIdentifier:
		var listTables ListTablesStatement
		if isName(parser.lexer.PeekToken()) {
			listTables.Database = parser.lexer.NextToken().Value
		}
		return listTables, nil
	default:
		return nil, errors.New("expected DB or TABLE after LIST")
	}
}

func ParseUse(parser *Parser) (Statement, error) {
	name, err := parseName(parser, "USE")
	if err != nil {
		return nil, err
	}
	return UseStatement{Database: name}, nil
}

func ParseHistory(parser *Parser) (Statement, error) {
	var historyStatement HistoryStatement
	if isName(parser.lexer.PeekToken()) {
		ref, err := parseTableRef(parser, "HISTORY")
		if err != nil {
			return nil, err
		}
		historyStatement.Table = &ref
	}
	return historyStatement, nil
}

func ParseRestore(parser *Parser) (Statement, error) {
	id, err := parseName(parser, "RESTORE")
	if err != nil {
		return nil, errors.New("expected transaction id after RESTORE")
	}
	return RestoreStatement{Transaction: id}, nil
}

func ParseExport(parser *Parser) (Statement, error) {
	var exportStatement ExportStatement

	ref, err := parseTableRef(parser, "EXPORT")
	if err != nil {
		return nil, err
	}
	exportStatement.TableRef = ref

	if token := parser.lexer.NextToken(); token.Type != To {
		return nil, errors.New("expected TO after table name")
	}
	url, err := parseName(parser, "TO")
	if err != nil {
		return nil, errors.New("expected URL after TO")
	}
	exportStatement.URL = url

	return exportStatement, nil
}

func ParseImport(parser *Parser) (Statement, error) {
	var importStatement ImportStatement

	ref, err := parseTableRef(parser, "IMPORT")
	if err != nil {
		return nil, err
	}
	importStatement.TableRef = ref

	if token := parser.lexer.NextToken(); token.Type != From {
		return nil, errors.New("expected FROM after table name")
	}
	url, err := parseName(parser, "FROM")
	if err != nil {
		return nil, errors.New("expected URL after FROM")
	}
	importStatement.URL = url

	return importStatement, nil
}

// isName reports whether token can be used as a name. Keywords are allowed,
// so a table may be called "history".
func isName(token Token) bool {
	switch token.Type {
	case EOF, Comma, ParenOpen, ParenClose, Wildcard:
		return false
	default:
		return true
	}
}

func parseName(parser *Parser, after string) (string, error) {
	token := parser.lexer.NextToken()
	if !isName(token) {
		return "", fmt.Errorf("expected name after %s", after)
	}
	return token.Value, nil
}

func parseTableRef(parser *Parser, after string) (TableRef, error) {
	token := parser.lexer.NextToken()
	if !isName(token) {
		return TableRef{}, fmt.Errorf("expected table name after %s", after)
	}

	database, table, qualified := strings.Cut(token.Value, ".")
	if !qualified {
		return TableRef{Table: token.Value}, nil
	}
	return TableRef{Database: database, Table: table}, nil
}
