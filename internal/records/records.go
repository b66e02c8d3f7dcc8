// Package records holds the source-side shape of each entity and the readers
// that turn raw JSON and CSV exports into rows ready for insertion.
package records

import (
	"fmt"
	"iter"
	"strconv"

	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

// Row is a record that can be bound to an INSERT statement
type Row interface {
	Values() []any
}

// User is a card holder
type User struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Phone      Text   `json:"phone"`
	Email      string `json:"email"`
	BirthDate  string `json:"birth_date"`
	Country    string `json:"country"`
	City       string `json:"city"`
	PostalCode Text   `json:"postal_code"`
	Address    string `json:"address"`
}

func (u User) Values() []any {
	return []any{u.ID, u.Name, u.Surname, string(u.Phone), u.Email, nullable(u.BirthDate), u.Country, u.City, string(u.PostalCode), u.Address}
}

// Card is a payment card owned by a user
type Card struct {
	ID           string
	UserID       int
	IBAN         string
	PAN          string
	PIN          string
	CVV          string
	Track1       string
	Track2       string
	ExpiringDate string
}

func (c Card) Values() []any {
	return []any{c.ID, c.UserID, c.IBAN, c.PAN, c.PIN, c.CVV, c.Track1, c.Track2, c.ExpiringDate}
}

// Company is a merchant receiving payments
type Company struct {
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	Phone       Text   `json:"phone"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Website     string `json:"website"`
}

func (c Company) Values() []any {
	return []any{c.CompanyID, c.CompanyName, string(c.Phone), c.Email, c.Country, c.Website}
}

// Product is an item sold in a transaction
type Product struct {
	ID          int
	ProductName string
	Price       float64
	Colour      string
	Weight      float64
	WarehouseID string
}

func (p Product) Values() []any {
	return []any{p.ID, p.ProductName, p.Price, p.Colour, p.Weight, p.WarehouseID}
}

// Transaction is a card payment. ProductIDs is never inserted into the
// transactions table; it feeds ProductLines.
type Transaction struct {
	ID         string   `json:"id"`
	CardID     string   `json:"card_id"`
	BusinessID string   `json:"business_id"`
	LatLong    Text     `json:"lat_long"`
	PIN        Text     `json:"pin"`
	Timestamp  string   `json:"timestamp"`
	Amount     Currency `json:"amount"`
	Declined   Flag     `json:"declined"`
	ProductIDs IDList   `json:"product_ids"`
}

// Values covers the columns up to and including declined
func (t Transaction) Values() []any {
	return []any{t.ID, t.CardID, t.BusinessID, string(t.LatLong), string(t.PIN), nullable(t.Timestamp), float64(t.Amount), bool(t.Declined)}
}

// ProductLine associates a transaction with one referenced product
type ProductLine struct {
	TxnID     string
	ProductID int
}

func (l ProductLine) Values() []any {
	return []any{l.TxnID, l.ProductID}
}

// ProductLines yields one line per product reference of each transaction, in
// transaction order then reference order. Duplicated references produce
// duplicated lines. Iteration stops after the first reference that is not an
// integer, which is yielded with a parse error. Each range over the sequence
// walks txns again from the start.
func ProductLines(txns []Transaction) iter.Seq2[ProductLine, error] {
	return func(yield func(ProductLine, error) bool) {
		for _, t := range txns {
			for _, tok := range t.ProductIDs.Tokens() {
				id, err := strconv.Atoi(tok)
				if err != nil {
					yield(ProductLine{TxnID: t.ID}, etlerr.Parse(schema.ProductList, "product_ids",
						fmt.Errorf("transaction %s references non-numeric product %q", t.ID, tok)))
					return
				}
				if !yield(ProductLine{TxnID: t.ID, ProductID: id}, nil) {
					return
				}
			}
		}
	}
}

// CollectLines drains seq, stopping at the first error
func CollectLines(seq iter.Seq2[ProductLine, error]) ([]ProductLine, error) {
	var lines []ProductLine
	for line, err := range seq {
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Values converts records to positional rows
func Values[T Row](items []T) [][]any {
	rows := make([][]any, len(items))
	for i, item := range items {
		rows[i] = item.Values()
	}
	return rows
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
