package records

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

// ReadUsers reads and concatenates user JSON exports in path order
func ReadUsers(paths []string) ([]User, error) {
	return readJSONFiles[User](schema.Users, paths)
}

// ReadCompanies reads and concatenates company JSON exports in path order
func ReadCompanies(paths []string) ([]Company, error) {
	return readJSONFiles[Company](schema.Companies, paths)
}

// ReadTransactions reads and concatenates transaction JSON exports in path order
func ReadTransactions(paths []string) ([]Transaction, error) {
	return readJSONFiles[Transaction](schema.Transactions, paths)
}

// ReadCards reads and concatenates card CSV exports in path order
func ReadCards(paths []string) ([]Card, error) {
	return readCSVFiles(schema.Cards, paths, parseCard)
}

// ReadProducts reads and concatenates product CSV exports in path order
func ReadProducts(paths []string) ([]Product, error) {
	return readCSVFiles(schema.Products, paths, parseProduct)
}

// DecodeJSON decodes a JSON array of objects
func DecodeJSON[T any](r io.Reader) ([]T, error) {
	var items []T
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

func readJSONFiles[T any](entity string, paths []string) ([]T, error) {
	var all []T
	for _, path := range paths {
		items, err := withFile(path, DecodeJSON[T])
		if err != nil {
			return nil, sourceError(entity, path, err)
		}
		all = append(all, items...)
	}
	return all, nil
}

// csvRow gives access to a record by header name
type csvRow struct {
	header map[string]int
	fields []string
	line   int
}

func (r csvRow) get(column string) (string, error) {
	i, ok := r.header[column]
	if !ok {
		return "", fmt.Errorf("missing column %q", column)
	}
	if i >= len(r.fields) {
		return "", nil
	}
	return strings.TrimSpace(r.fields[i]), nil
}

func (r csvRow) int(column string) (int, error) {
	s, err := r.get(column)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %q is not an integer", r.line, column, s)
	}
	return v, nil
}

func (r csvRow) float(column string) (float64, error) {
	s, err := r.get(column)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %q is not a number", r.line, column, s)
	}
	return v, nil
}

// decodeCSV decodes a CSV stream with a header row, calling parse per record
func decodeCSV[T any](r io.Reader, parse func(csvRow) (T, error)) ([]T, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(head))
	for i, name := range head {
		header[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	var items []T
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		item, err := parse(csvRow{header: header, fields: fields, line: line})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func readCSVFiles[T any](entity string, paths []string, parse func(csvRow) (T, error)) ([]T, error) {
	var all []T
	for _, path := range paths {
		items, err := withFile(path, func(r io.Reader) ([]T, error) {
			return decodeCSV(r, parse)
		})
		if err != nil {
			return nil, sourceError(entity, path, err)
		}
		all = append(all, items...)
	}
	return all, nil
}

func parseCard(r csvRow) (Card, error) {
	var c Card
	var err error
	if c.UserID, err = r.int("user_id"); err != nil {
		return c, err
	}
	fields := []struct {
		column string
		dst    *string
	}{
		{"id", &c.ID},
		{"iban", &c.IBAN},
		{"pan", &c.PAN},
		{"pin", &c.PIN},
		{"cvv", &c.CVV},
		{"track1", &c.Track1},
		{"track2", &c.Track2},
		{"expiring_date", &c.ExpiringDate},
	}
	for _, f := range fields {
		if *f.dst, err = r.get(f.column); err != nil {
			return c, err
		}
	}
	return c, nil
}

func parseProduct(r csvRow) (Product, error) {
	var p Product
	var err error
	if p.ID, err = r.int("id"); err != nil {
		return p, err
	}
	if p.ProductName, err = r.get("product_name"); err != nil {
		return p, err
	}
	price, err := r.get("price")
	if err != nil {
		return p, err
	}
	if p.Price, err = ParseCurrency(price); err != nil {
		return p, fmt.Errorf("line %d: %w", r.line, err)
	}
	if p.Colour, err = r.get("colour"); err != nil {
		return p, err
	}
	if p.Weight, err = r.float("weight"); err != nil {
		return p, err
	}
	if p.WarehouseID, err = r.get("warehouse_id"); err != nil {
		return p, err
	}
	return p, nil
}

func withFile[T any](path string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return decode(f)
}

// sourceError classifies a read failure: missing or unreadable files are load
// errors, anything the decoder rejects is a parse error.
func sourceError(entity, path string, err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return etlerr.Load(entity, "read "+path, err)
	}
	return etlerr.Parse(entity, "decode "+path, err)
}
