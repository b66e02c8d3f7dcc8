package records

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dwload/internal/etlerr"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "$123.45", want: 123.45},
		{in: "€0.00", want: 0},
		{in: "£7", want: 7},
		{in: " $19.99 ", want: 19.99},
		{in: "42.5", want: 42.5},
		{in: "abc", wantErr: true},
		{in: "$", wantErr: true},
		{in: "$12,50", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCurrency(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, etlerr.ErrParse)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIDListTokens(t *testing.T) {
	tests := []struct {
		in   IDList
		want []string
	}{
		{in: "7, 12, 12, 3", want: []string{"7", "12", "12", "3"}},
		{in: "9", want: []string{"9"}},
		{in: "", want: nil},
		{in: "  ", want: nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Tokens(), "Tokens(%q)", tt.in)
	}
}

func TestProductLines(t *testing.T) {
	txns := []Transaction{
		{ID: "T1", ProductIDs: "7, 12, 12, 3"},
		{ID: "T2", ProductIDs: "9"},
		{ID: "T3"},
	}

	lines, err := CollectLines(ProductLines(txns))
	require.NoError(t, err)
	assert.Equal(t, []ProductLine{
		{TxnID: "T1", ProductID: 7},
		{TxnID: "T1", ProductID: 12},
		{TxnID: "T1", ProductID: 12},
		{TxnID: "T1", ProductID: 3},
		{TxnID: "T2", ProductID: 9},
	}, lines)
}

func TestProductLinesRestartable(t *testing.T) {
	seq := ProductLines([]Transaction{{ID: "T1", ProductIDs: "1, 2"}})

	first, err := CollectLines(seq)
	require.NoError(t, err)
	second, err := CollectLines(seq)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// stopping early must not panic
	for range seq {
		break
	}
}

func TestProductLinesRejectsNonNumeric(t *testing.T) {
	seq := ProductLines([]Transaction{{ID: "T1", ProductIDs: "1, x"}})
	lines, err := CollectLines(seq)
	assert.Nil(t, lines)
	assert.ErrorIs(t, err, etlerr.ErrParse)
	assert.Contains(t, err.Error(), "T1")
}

func TestTransactionJSON(t *testing.T) {
	raw := `[
		{"id": "A", "card_id": "C1", "business_id": "B1", "lat_long": "1.0, 2.0", "pin": 1234,
		 "timestamp": "2021-03-01 10:00:00", "amount": "$10.50", "declined": 0, "product_ids": 5},
		{"id": "B", "card_id": "C2", "business_id": "B2", "timestamp": "2021-03-02 11:00:00",
		 "amount": "€3.00", "declined": "true", "product_ids": "1, 2"}
	]`
	txns, err := DecodeJSON[Transaction](strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, Currency(10.5), txns[0].Amount)
	assert.False(t, bool(txns[0].Declined))
	assert.Equal(t, IDList("5"), txns[0].ProductIDs)
	assert.Equal(t, Text("1234"), txns[0].PIN)
	assert.True(t, bool(txns[1].Declined))

	vals := txns[0].Values()
	assert.Len(t, vals, 8)
	assert.Equal(t, false, vals[7])
	assert.Equal(t, 10.5, vals[6])
}

func TestTransactionJSONBadAmount(t *testing.T) {
	var txns []Transaction
	err := json.Unmarshal([]byte(`[{"id": "A", "amount": "$ten"}]`), &txns)
	assert.ErrorIs(t, err, etlerr.ErrParse)
}

func TestReadUsersConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "users_a.json", `[{"id": 1, "name": "a1"}, {"id": 2, "name": "a2"}]`)
	b := writeFile(t, dir, "users_b.json", `[{"id": 3, "name": "b1"}, {"id": 4, "name": "b2"}, {"id": 5, "name": "b3", "postal_code": 10115}]`)

	users, err := ReadUsers([]string{a, b})
	require.NoError(t, err)
	require.Len(t, users, 5)

	var names []string
	for _, u := range users {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"a1", "a2", "b1", "b2", "b3"}, names)
	assert.Equal(t, Text("10115"), users[4].PostalCode)
	assert.Nil(t, users[0].Values()[5], "empty birth_date is stored as NULL")
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadCompanies([]string{filepath.Join(t.TempDir(), "nope.json")})
	assert.ErrorIs(t, err, etlerr.ErrLoad)
	assert.Contains(t, err.Error(), "companies")
}

func TestReadProducts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "products.csv", "id,product_name,price,colour,weight,warehouse_id\n"+
		"1,Direwolf Stannis,$161.11,#7c7c7c,1,WH-4\n"+
		"2,Tarly Stark,€9.24,#919191,2.5,WH-3\n")

	products, err := ReadProducts([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []Product{
		{ID: 1, ProductName: "Direwolf Stannis", Price: 161.11, Colour: "#7c7c7c", Weight: 1, WarehouseID: "WH-4"},
		{ID: 2, ProductName: "Tarly Stark", Price: 9.24, Colour: "#919191", Weight: 2.5, WarehouseID: "WH-3"},
	}, products)
}

func TestReadProductsBadPrice(t *testing.T) {
	path := writeFile(t, t.TempDir(), "products.csv", "id,product_name,price,colour,weight,warehouse_id\n1,x,$abc,red,1,WH\n")
	_, err := ReadProducts([]string{path})
	assert.ErrorIs(t, err, etlerr.ErrParse)
	assert.Contains(t, err.Error(), "products")
}

func TestReadCards(t *testing.T) {
	path := writeFile(t, t.TempDir(), "credit_cards.csv",
		"id,user_id,iban,pan,pin,cvv,track1,track2,expiring_date\n"+
			"CcU-2938,275,TR301950312213576817638661,5424465566813633,3257,984,%B8383712448554646^Frank^2310201?,%B1190492324174040=2503401?,10/30/22\n")

	cards, err := ReadCards([]string{path})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "CcU-2938", cards[0].ID)
	assert.Equal(t, 275, cards[0].UserID)
	assert.Equal(t, "3257", cards[0].PIN)
	assert.Len(t, cards[0].Values(), 9)
}

func TestReadCardsMissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "credit_cards.csv", "id,iban\nC1,TR00\n")
	_, err := ReadCards([]string{path})
	assert.ErrorIs(t, err, etlerr.ErrParse)
	assert.Contains(t, err.Error(), "user_id")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
