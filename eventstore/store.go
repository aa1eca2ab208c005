// Copyright (c) 2019 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package eventstore stores event documents in a sqlite database. Documents
// are kept as json in a full text indexed table. On close a view is created
// for every value of the discriminator field, e.g. one view per channel, with
// a column for every field seen in the documents of that view.
package eventstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stoewer/go-strcase"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/evtx2bodyfile/goflatten"
)

const storeVersion = 1
const eventstoreApplicationID = 1702261880 // "evtx"

// DefaultDiscriminator groups the documents by event log channel.
const DefaultDiscriminator = "channel_name"

// JSONElement is a single document in the database.
type JSONElement []byte

// Store is a sqlite database of event documents.
type Store struct {
	cursor        *sqlite.Conn
	discriminator string
	fields        *fieldMap
}

var ErrStoreExists = fmt.Errorf("store already exists")
var ErrStoreNotExists = fmt.Errorf("store does not exist")

// New creates a new store.
func New(url, discriminator string) (*Store, error) {
	return open(url, discriminator, true)
}

// Open opens an existing store.
func Open(url, discriminator string) (*Store, error) {
	return open(url, discriminator, false)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	_, err = stmt.Step()
	if err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	_, err = stmt.Step()
	if err != nil {
		return err
	}
	return stmt.Finalize()
}

func open(url, discriminator string, create bool) (*Store, error) { // nolint:gocyclo
	if discriminator == "" {
		discriminator = DefaultDiscriminator
	}

	if url != ":memory:" {
		exists := true
		_, err := os.Stat(url)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, ErrStoreExists
		}
		if !create && !exists {
			return nil, ErrStoreNotExists
		}

		if create {
			err = os.MkdirAll(path.Dir(url), 0750)
			if err != nil {
				return nil, err
			}

			f, err := os.Create(url)
			if err != nil {
				return nil, err
			}
			if err := f.Close(); err != nil {
				return nil, err
			}
		}
	}

	store := &Store{discriminator: discriminator, fields: newFieldMap()}

	var err error
	store.cursor, err = sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}

	if create {
		err = setPragma(store.cursor, "application_id", eventstoreApplicationID)
		if err != nil {
			return nil, err
		}

		err = setPragma(store.cursor, "user_version", storeVersion)
		if err != nil {
			return nil, err
		}

		err = store.exec("CREATE VIRTUAL TABLE `elements` " +
			"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.'\")")
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	applicationID, err := pragma(store.cursor, "application_id")
	if err != nil {
		return nil, err
	}
	if applicationID != eventstoreApplicationID {
		msg := "wrong file format (application_id is %d, requires %d)"
		return nil, fmt.Errorf(msg, applicationID, eventstoreApplicationID)
	}

	version, err := pragma(store.cursor, "user_version")
	if err != nil {
		return nil, err
	}
	if version != storeVersion {
		msg := "wrong file format (user_version is %d, requires %d)"
		return nil, fmt.Errorf(msg, version, storeVersion)
	}

	return store, store.setupFields()
}

/* ################################
#   API
################################ */

// Insert adds a single document and returns its id.
func (store *Store) Insert(element JSONElement) (string, error) {
	flaws, err := validateSchema(element)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return "", fmt.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	group := gjson.GetBytes(element, store.discriminator)
	if !group.Exists() {
		return "", errors.Errorf("element requires %s", store.discriminator)
	}

	nestedElement := map[string]interface{}{}
	err = json.Unmarshal(element, &nestedElement)
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(element, "id").String()
	if id == "" {
		id = "event--" + uuid.New().String()
		nestedElement["id"] = id

		element, err = json.Marshal(nestedElement)
		if err != nil {
			return "", err
		}
	}

	flatElement, err := goflatten.Flatten(nestedElement)
	if err != nil {
		return "", errors.Wrap(err, "could not flatten element")
	}
	store.fields.addAll(group.String(), flatElement)

	query := "INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)"
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("could not prepare statement %s", query))
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	_, err = stmt.Step()
	if err != nil {
		return "", errors.Wrap(err, fmt.Sprint("could not exec statement ", query))
	}

	return id, stmt.Finalize()
}

// Get retrieves a single document.
func (store *Store) Get(id string) (element JSONElement, err error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id=?")
	if err != nil {
		return nil, err
	}

	stmt.BindText(1, id)

	elements, err := store.rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		return elements[0], nil
	}
	return nil, errors.New("element does not exist")
}

// Select retrieves all documents matching one of the conditions. A condition
// matches if all of its fields equal the given values.
func (store *Store) Select(conditions []map[string]string) (elements []JSONElement, err error) {
	var ors []string
	var values []string
	for _, condition := range conditions {
		keys := make([]string, 0, len(condition))
		for key := range condition {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var ands []string
		for _, key := range keys {
			ands = append(ands, fmt.Sprintf("json_extract(json, %s) = ?", quote(jsonPath(key))))
			values = append(values, condition[key])
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}

	query := "SELECT json FROM `elements`"
	if len(ors) > 0 {
		query += fmt.Sprintf(" WHERE %s", strings.Join(ors, " OR ")) // #nosec
	}

	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		stmt.BindText(i+1, value)
	}

	return store.rowsToElements(stmt)
}

// Search runs a full text query.
func (store *Store) Search(q string) (elements []JSONElement, err error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE elements = $query")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return store.rowsToElements(stmt)
}

// Query executes a sql query that returns a json column.
func (store *Store) Query(query string) (elements []JSONElement, err error) {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	return store.rowsToElements(stmt)
}

// All returns every document.
func (store *Store) All() (elements []JSONElement, err error) {
	return store.Select(nil)
}

// Columns returns the column values of a view, one map per row.
func (store *Store) Columns(view string) (rows []map[string]string, err error) {
	stmt, err := store.cursor.Prepare(fmt.Sprintf("SELECT * FROM %s", identifier(view)))
	if err != nil {
		return nil, err
	}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, err
		} else if !hasRow {
			break
		}
		row := map[string]string{}
		for i := 0; i < stmt.ColumnCount(); i++ {
			row[stmt.ColumnName(i)] = stmt.ColumnText(i)
		}
		rows = append(rows, row)
	}
	return rows, stmt.Finalize()
}

// Close creates the views and closes the database.
func (store *Store) Close() error {
	if store.fields.changed {
		if err := store.createViews(); err != nil {
			store.cursor.Close() // nolint:errcheck
			return err
		}
	}

	return store.cursor.Close()
}

func (store *Store) createViews() error {
	for group, fields := range store.fields.all() {
		if !isViewName(group) {
			continue
		}
		err := store.exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", identifier(group)))
		if err != nil {
			return err
		}
		var columns []string
		for field := range fields {
			columns = append(columns, fmt.Sprintf("json_extract(json, %s) AS %s",
				quote(jsonPath(field)), identifier(strcase.SnakeCase(field))))
		}
		sort.Strings(columns)
		err = store.exec(fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM `elements` WHERE json_extract(json, %s) = %s",
			identifier(group), strings.Join(columns, ", "), quote(jsonPath(store.discriminator)), quote(group)))
		if err != nil {
			return err
		}
	}
	return nil
}

/* ################################
#   Validate
################################ */

// Validate checks all documents against the event schema.
func (store *Store) Validate() (flaws []string, err error) {
	flaws = []string{}

	elements, err := store.All()
	if err != nil {
		return nil, err
	}
	for _, element := range elements {
		id := gjson.GetBytes(element, "id").String()
		if !gjson.GetBytes(element, store.discriminator).Exists() {
			flaws = append(flaws, fmt.Sprintf("%s: element needs to have a %s", id, store.discriminator))
		}
		elementFlaws, err := validateSchema(element)
		if err != nil {
			return nil, err
		}
		for _, flaw := range elementFlaws {
			flaws = append(flaws, fmt.Sprintf("%s: %s", id, flaw))
		}
	}
	return flaws, nil
}

/* ################################
#   Intern
################################ */

func (store *Store) rowsToElements(stmt *sqlite.Stmt) (elements []JSONElement, err error) {
	elements = []JSONElement{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, err
		} else if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, stmt.Finalize()
}

// setupFields collects the fields of the stored documents so that views
// of a reopened store keep all columns.
func (store *Store) setupFields() error {
	elements, err := store.All()
	if err != nil {
		return err
	}
	for _, element := range elements {
		nested := map[string]interface{}{}
		if err := json.Unmarshal(element, &nested); err != nil {
			return err
		}
		flat, err := goflatten.Flatten(nested)
		if err != nil {
			return err
		}
		store.fields.addAll(gjson.GetBytes(element, store.discriminator).String(), flat)
	}
	store.fields.changed = false
	return nil
}

func (store *Store) exec(query string) error {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Step()
	if err != nil {
		return err
	}

	return stmt.Finalize()
}

func isViewName(name string) bool {
	if name == "" || strings.HasPrefix(name, "sqlite") || strings.HasPrefix(name, "elements") {
		return false
	}
	return true
}

// jsonPath converts a flattened key like custom_data.ProcessID into the
// sqlite path $."custom_data"."ProcessID".
func jsonPath(key string) string {
	var segments []string
	for _, segment := range strings.Split(key, ".") {
		segments = append(segments, `"`+strings.ReplaceAll(segment, `"`, `\"`)+`"`)
	}
	return "$." + strings.Join(segments, ".")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func identifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
