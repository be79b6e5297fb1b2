// Package main provides a TCP command server for nanodb.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jibon-roy/nano-db/db"
)

// Request is the JSON form of a command line. Plain text lines are accepted
// as well.
type Request struct {
	Query string `json:"query"`
}

// Response represents the server's response to a command.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"` // query, commit, list, session, history, transfer or auth
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains the records selected by a query.
type QueryResponse struct {
	Table       string     `json:"table"`
	Columns     []string   `json:"columns"`
	Data        [][]string `json:"data"`
	Lines       []string   `json:"lines"`
	RecordsRead int        `json:"records_read"`
	TimeMs      float64    `json:"time_ms"`
}

// CommitResponse contains mutation operation results.
type CommitResponse struct {
	Transaction      string  `json:"transaction,omitempty"`
	DatabasesCreated int     `json:"databases_created,omitempty"`
	DatabasesDeleted int     `json:"databases_deleted,omitempty"`
	TablesCreated    int     `json:"tables_created,omitempty"`
	TablesDeleted    int     `json:"tables_deleted,omitempty"`
	RecordsWritten   int     `json:"records_written,omitempty"`
	AssignedID       int     `json:"assigned_id,omitempty"`
	RecordsMatched   int     `json:"records_matched,omitempty"`
	RecordsUpdated   int     `json:"records_updated,omitempty"`
	RecordsDeleted   int     `json:"records_deleted,omitempty"`
	Restored         string  `json:"restored,omitempty"`
	TimeMs           float64 `json:"time_ms"`
}

type ListResponse struct {
	Kind  string   `json:"kind"`
	Names []string `json:"names"`
}

type SessionResponse struct {
	Database string `json:"database"`
}

type TransactionResponse struct {
	Id      string    `json:"id"`
	When    time.Time `json:"when"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
}

type HistoryResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type TransferResponse struct {
	Direction   string `json:"direction"`
	Table       string `json:"table"`
	URL         string `json:"url"`
	Records     int    `json:"records"`
	Transaction string `json:"transaction,omitempty"`
}

// AuthResponse is returned by a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"` // seconds
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

func errorResponse(err error) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
	}
}

func successResponse(typ string, payload any) Response {
	data, err := json.Marshal(payload)
	if err != nil {
		return errorResponse(fmt.Errorf("failed to encode %s result: %w", typ, err))
	}
	return Response{
		Success: true,
		Type:    typ,
		Result:  data,
	}
}

// newResponse converts an engine result into its wire form.
func newResponse(result db.Result) Response {
	switch r := result.(type) {
	case db.QueryResult:
		return successResponse("query", QueryResponse{
			Table:       r.Table,
			Columns:     r.Columns,
			Data:        r.Data,
			Lines:       r.Lines,
			RecordsRead: r.RecordsRead,
			TimeMs:      r.ExecutionTimeSec * 1000,
		})

	case db.CommitResult:
		return successResponse("commit", CommitResponse{
			Transaction:      r.Transaction.Id,
			DatabasesCreated: r.DatabasesCreated,
			DatabasesDeleted: r.DatabasesDeleted,
			TablesCreated:    r.TablesCreated,
			TablesDeleted:    r.TablesDeleted,
			RecordsWritten:   r.RecordsWritten,
			AssignedID:       r.AssignedID,
			RecordsMatched:   r.RecordsMatched,
			RecordsUpdated:   r.RecordsUpdated,
			RecordsDeleted:   r.RecordsDeleted,
			Restored:         r.Restored,
			TimeMs:           r.ExecutionTimeSec * 1000,
		})

	case db.ListResult:
		return successResponse("list", ListResponse{Kind: r.Kind, Names: r.Names})

	case db.SessionResult:
		return successResponse("session", SessionResponse{Database: r.Database})

	case db.HistoryResult:
		hr := HistoryResponse{Transactions: make([]TransactionResponse, 0, len(r.Transactions))}
		for _, txn := range r.Transactions {
			hr.Transactions = append(hr.Transactions, TransactionResponse{
				Id:      txn.Id,
				When:    txn.When,
				Author:  txn.Author,
				Message: txn.Message,
			})
		}
		return successResponse("history", hr)

	case db.TransferResult:
		return successResponse("transfer", TransferResponse{
			Direction:   r.Direction,
			Table:       r.Table,
			URL:         r.URL,
			Records:     r.Records,
			Transaction: r.Transaction.Id,
		})

	default:
		return Response{
			Success: true,
			Type:    "unknown",
		}
	}
}
