package ps

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v6/memfs"

	"github.com/jibon-roy/nano-db/core"
)

func mustClause(t *testing.T, token string) core.Clause {
	t.Helper()
	c, err := core.ParseClause(token)
	if err != nil {
		t.Fatalf("Failed to parse clause %q: %v", token, err)
	}
	return c
}

func TestUsersScenario(t *testing.T) {
	persistence, users := setupTestTable(t)

	all, err := persistence.ReadAll(users)
	if err != nil {
		t.Fatalf("Failed to read empty table: %v", err)
	}
	if !all.NoMatch() {
		t.Fatalf("Expected empty table, got %v", all.Lines)
	}

	ins, err := persistence.Insert(users, "name:Ann, age:30", testIdentity)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if ins.ID != 1 {
		t.Errorf("Expected id 1, got %d", ins.ID)
	}

	all, _ = persistence.ReadAll(users)
	if all.Count != 1 || all.Lines[0] != "id:1, name:Ann, age:30" {
		t.Fatalf("Expected [id:1, name:Ann, age:30], got %v", all.Lines)
	}

	upd, err := persistence.Update(users, mustClause(t, "id:1"), mustClause(t, "age:31"), testIdentity)
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if upd.Matched != 1 || upd.Changed != 1 {
		t.Errorf("Expected 1 matched and 1 changed, got %+v", upd)
	}

	got, _ := persistence.ReadFiltered(users, mustClause(t, "age:31"))
	if got.Count != 1 || got.Lines[0] != "id:1, name:Ann, age:31" {
		t.Errorf("Expected updated line, got %v", got.Lines)
	}

	del, err := persistence.Delete(users, mustClause(t, "id:1"), testIdentity)
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if del.Matched != 1 {
		t.Errorf("Expected 1 deleted, got %d", del.Matched)
	}

	all, _ = persistence.ReadAll(users)
	if all.Count != 0 {
		t.Errorf("Expected zero records, got %v", all.Lines)
	}
}

func TestInsertEmptyAttrs(t *testing.T) {
	persistence, users := setupTestTable(t)

	if _, err := persistence.Insert(users, "   ", testIdentity); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if content := readFile(t, persistence, "db/shop/users.txt"); content != "id:1\n" {
		t.Errorf("Expected %q, got %q", "id:1\n", content)
	}
}

func TestInsertRejectsNewline(t *testing.T) {
	persistence, users := setupTestTable(t)

	_, err := persistence.Insert(users, "name:Ann\nid:99", testIdentity)
	if !errors.Is(err, core.ErrMalformedClause) {
		t.Errorf("Expected ErrMalformedClause, got %v", err)
	}
}

func TestInsertAfterUnterminatedLine(t *testing.T) {
	persistence, users := setupTestTable(t)
	writeFile(t, persistence, "db/shop/users.txt", "id:1, name:Ann")

	ins, err := persistence.Insert(users, "name:Bob", testIdentity)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if ins.ID != 2 {
		t.Errorf("Expected id 2, got %d", ins.ID)
	}

	want := "id:1, name:Ann\nid:2, name:Bob\n"
	if content := readFile(t, persistence, "db/shop/users.txt"); content != want {
		t.Errorf("Expected %q, got %q", want, content)
	}
}

func TestMissingTable(t *testing.T) {
	persistence, _ := setupTestTable(t)
	missing := core.Table{Database: "shop", Name: "orders"}
	where := mustClause(t, "id:1")

	if _, err := persistence.Insert(missing, "a:b", testIdentity); !errors.Is(err, core.ErrTableNotFound) {
		t.Errorf("Insert: expected ErrTableNotFound, got %v", err)
	}
	if _, err := persistence.ReadAll(missing); !errors.Is(err, core.ErrTableNotFound) {
		t.Errorf("ReadAll: expected ErrTableNotFound, got %v", err)
	}
	if _, err := persistence.Update(missing, where, where, testIdentity); !errors.Is(err, core.ErrTableNotFound) {
		t.Errorf("Update: expected ErrTableNotFound, got %v", err)
	}
	if _, err := persistence.Delete(missing, where, testIdentity); !errors.Is(err, core.ErrTableNotFound) {
		t.Errorf("Delete: expected ErrTableNotFound, got %v", err)
	}

	noDB := core.Table{Database: "nope", Name: "users"}
	if _, err := persistence.ReadAll(noDB); !errors.Is(err, core.ErrDatabaseNotFound) {
		t.Errorf("Expected ErrDatabaseNotFound, got %v", err)
	}
}

func TestReadsDoNotMutate(t *testing.T) {
	persistence, users := setupTestTable(t)
	content := "id:1, name:Ann\r\n\nid:2, name=\"Bob\"\nid:3, name:Cy"
	writeFile(t, persistence, "db/shop/users.txt", content)

	all, err := persistence.ReadAll(users)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if all.Count != 3 {
		t.Errorf("Expected 3 non-empty lines, got %d: %v", all.Count, all.Lines)
	}
	if all.Lines[0] != "id:1, name:Ann" {
		t.Errorf("Expected terminator stripped, got %q", all.Lines[0])
	}

	got, _ := persistence.ReadFiltered(users, mustClause(t, "name:Bob"))
	if got.Count != 1 || got.Lines[0] != `id:2, name="Bob"` {
		t.Errorf("Expected legacy quoted line, got %v", got.Lines)
	}

	none, _ := persistence.ReadFiltered(users, mustClause(t, "name:Zed"))
	if !none.NoMatch() {
		t.Errorf("Expected no match, got %v", none.Lines)
	}

	if after := readFile(t, persistence, "db/shop/users.txt"); after != content {
		t.Errorf("Expected file unchanged, got %q", after)
	}
}

func TestMonotonicIDs(t *testing.T) {
	persistence, users := setupTestTable(t)

	for want := 1; want <= 5; want++ {
		ins, err := persistence.Insert(users, "n:x", testIdentity)
		if err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
		if ins.ID != want {
			t.Errorf("Expected id %d, got %d", want, ins.ID)
		}
	}

	if _, err := persistence.Delete(users, mustClause(t, "id:3"), testIdentity); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	ins, _ := persistence.Insert(users, "n:y", testIdentity)
	if ins.ID != 6 {
		t.Errorf("Expected id 6 after deleting a middle record, got %d", ins.ID)
	}

	if _, err := persistence.Delete(users, mustClause(t, "id:6"), testIdentity); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	next, err := persistence.NextID(users)
	if err != nil {
		t.Fatalf("Failed to compute next id: %v", err)
	}
	if next != 7 {
		t.Errorf("Expected next id 7 after deleting the maximum, got %d", next)
	}

	ins, _ = persistence.Insert(users, "n:z", testIdentity)
	if ins.ID != 7 {
		t.Errorf("Expected id 7 after deleting the maximum, got %d", ins.ID)
	}
}

func TestIssuedIDsResetOnReopen(t *testing.T) {
	fs := memfs.New()
	persistence, err := NewPersistence(fs)
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}
	if _, err := persistence.CreateDatabase(core.Database{Name: "shop"}, testIdentity); err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	users := core.Table{Database: "shop", Name: "users"}
	if _, err := persistence.CreateTable(users, testIdentity); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	for range 3 {
		if _, err := persistence.Insert(users, "n:x", testIdentity); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
	}
	if _, err := persistence.Delete(users, mustClause(t, "id:3"), testIdentity); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	// Issued ids live in memory only; a new Persistence sees the file.
	reopened, err := NewPersistence(fs)
	if err != nil {
		t.Fatalf("Failed to reopen persistence: %v", err)
	}
	next, err := reopened.NextID(users)
	if err != nil {
		t.Fatalf("Failed to compute next id: %v", err)
	}
	if next != 3 {
		t.Errorf("Expected next id 3 after reopening, got %d", next)
	}
}

func TestConcurrentWritesWithHistory(t *testing.T) {
	persistence, users := setupTestTable(t, WithHistory(true))
	if _, err := persistence.Insert(users, "name:seed, n:0", testIdentity); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	const writers = 10
	seed := mustClause(t, "name:seed")
	var wg sync.WaitGroup
	errs := make(chan error, 2*writers)
	for i := range writers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := persistence.Insert(users, fmt.Sprintf("name:w%d", i), testIdentity); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			set := core.Clause{Field: "n", Value: fmt.Sprint(i + 1)}
			if _, err := persistence.Update(users, seed, set, testIdentity); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent write failed: %v", err)
	}

	all, err := persistence.ReadAll(users)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if all.Count != writers+1 {
		t.Errorf("Expected %d records, got %d", writers+1, all.Count)
	}

	if txn := persistence.LatestTransaction(); txn.Id == "" {
		t.Error("Expected writes to be recorded in history")
	}
}

func TestNextIDMissingFile(t *testing.T) {
	persistence, _ := setupTestTable(t)

	next, err := persistence.NextID(core.Table{Database: "shop", Name: "orders"})
	if err != nil {
		t.Fatalf("Failed to compute next id: %v", err)
	}
	if next != 1 {
		t.Errorf("Expected 1 for missing table file, got %d", next)
	}
}

func TestNextIDLegacyAndCorrupt(t *testing.T) {
	persistence, users := setupTestTable(t)
	writeFile(t, persistence, "db/shop/users.txt", "id=4, a:b\nid:x, a:c\nno id here\nid:2\n")

	next, _ := persistence.NextID(users)
	if next != 5 {
		t.Errorf("Expected 5, got %d", next)
	}
}

func TestUpdatePreservesOtherFields(t *testing.T) {
	persistence, users := setupTestTable(t)
	writeFile(t, persistence, "db/shop/users.txt",
		"id:1, name:\"Ann Lee\", age:30, city:Oslo\nid:2, name:Bob, age:40\n")

	res, err := persistence.Update(users, mustClause(t, "id:1"), mustClause(t, "name:Anna"), testIdentity)
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if res.Changed != 1 {
		t.Errorf("Expected 1 changed, got %d", res.Changed)
	}

	want := "id:1, name:\"Anna\", age:30, city:Oslo\nid:2, name:Bob, age:40\n"
	if content := readFile(t, persistence, "db/shop/users.txt"); content != want {
		t.Errorf("Expected %q, got %q", want, content)
	}
}

// A matched line without the set field is left alone rather than extended.
func TestUpdateAbsentFieldIsNoop(t *testing.T) {
	persistence, users := setupTestTable(t)
	content := "id:1, name:Ann\n"
	writeFile(t, persistence, "db/shop/users.txt", content)

	res, err := persistence.Update(users, mustClause(t, "id:1"), mustClause(t, "age:31"), testIdentity)
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if res.Matched != 1 || res.Changed != 0 {
		t.Errorf("Expected 1 matched and 0 changed, got %+v", res)
	}
	if after := readFile(t, persistence, "db/shop/users.txt"); after != content {
		t.Errorf("Expected file unchanged, got %q", after)
	}
}

func TestUpdateNoMatch(t *testing.T) {
	persistence, users := setupTestTable(t)
	writeFile(t, persistence, "db/shop/users.txt", "id:1, name:Ann\n")

	res, err := persistence.Update(users, mustClause(t, "id:9"), mustClause(t, "name:X"), testIdentity)
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if !res.NoMatch() {
		t.Errorf("Expected no match, got %+v", res)
	}
}

func TestDeletePreservesSurvivors(t *testing.T) {
	persistence, users := setupTestTable(t)
	writeFile(t, persistence, "db/shop/users.txt",
		"id:1, b:2, a:1\r\nid:2, role:admin\nid:3, a:1, b:2\nid:4, role=admin")

	res, err := persistence.Delete(users, mustClause(t, "role:admin"), testIdentity)
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if res.Matched != 2 {
		t.Errorf("Expected 2 deleted, got %d", res.Matched)
	}

	want := "id:1, b:2, a:1\r\nid:3, a:1, b:2\n"
	if content := readFile(t, persistence, "db/shop/users.txt"); content != want {
		t.Errorf("Expected %q, got %q", want, content)
	}
}

func TestDeleteLeavesNoTempFiles(t *testing.T) {
	persistence, users := setupTestTable(t)
	if _, err := persistence.Insert(users, "a:1", testIdentity); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if _, err := persistence.Delete(users, mustClause(t, "a:1"), testIdentity); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	entries, err := persistence.Filesystem().ReadDir("db/shop")
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "users.txt" {
			t.Errorf("Unexpected file left behind: %s", e.Name())
		}
	}
}

func TestRoundTrip(t *testing.T) {
	persistence, users := setupTestTable(t)
	for i := 0; i < 3; i++ {
		persistence.Insert(users, "filler:x", testIdentity)
	}

	ins, err := persistence.Insert(users, `title:"a, b", tag:go`, testIdentity)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	got, _ := persistence.ReadFiltered(users, mustClause(t, "id:4"))
	if got.Count != 1 {
		t.Fatalf("Expected one line, got %v", got.Lines)
	}
	if !strings.Contains(got.Lines[0], "id:4") || !strings.Contains(got.Lines[0], `title:"a, b", tag:go`) {
		t.Errorf("Expected id %d and attrs in %q", ins.ID, got.Lines[0])
	}
}

// id:1 is a substring of id:10 and of parent_id:10, so the default matcher
// selects those lines too. The field matcher does not.
func TestIDPrefixAmbiguity(t *testing.T) {
	content := "id:1, name:Ann\nid:2, ref:\"x\", parent_id:10\nid:10, name:Ten\n"

	substring, users := setupTestTable(t)
	writeFile(t, substring, "db/shop/users.txt", content)
	got, _ := substring.ReadFiltered(users, mustClause(t, "id:1"))
	if got.Count != 3 {
		t.Errorf("Expected substring matcher to select 3 lines, got %v", got.Lines)
	}

	strict, users := setupTestTable(t, WithMatcher(core.FieldMatcher{}))
	writeFile(t, strict, "db/shop/users.txt", content)
	got, _ = strict.ReadFiltered(users, mustClause(t, "id:1"))
	if got.Count != 1 || got.Lines[0] != "id:1, name:Ann" {
		t.Errorf("Expected field matcher to select only id:1, got %v", got.Lines)
	}
}
