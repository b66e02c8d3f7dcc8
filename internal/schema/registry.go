// Package schema holds the table definitions of the operational and warehouse
// databases, the queries that copy one into the other, and the INSERT builder
// used by the loaders.
package schema

// Table names shared by both databases.
const (
	Users        = "users"
	Cards        = "cards"
	Companies    = "companies"
	Products     = "products"
	Transactions = "transactions"
	ProductList  = "product_list"
)

const createUsers = `CREATE TABLE users (
	id int,
	name varchar(34),
	surname varchar(34),
	phone varchar(50),
	email varchar(50),
	birth_date date,
	country varchar(50),
	city varchar(50),
	postal_code varchar(50),
	address varchar(50),
	PRIMARY KEY (id)
)`

const createCompanies = `CREATE TABLE companies (
	company_id varchar(50),
	company_name varchar(50),
	phone varchar(50),
	email varchar(50),
	country varchar(50),
	website varchar(50),
	PRIMARY KEY (company_id)
)`

const createProducts = `CREATE TABLE products (
	id int,
	product_name varchar(50),
	price double precision,
	colour varchar(50),
	weight double precision,
	warehouse_id varchar(50),
	PRIMARY KEY (id)
)`

// No primary key: a transaction may reference the same product more than once.
const createProductList = `CREATE TABLE product_list (
	txn_id varchar(50),
	product_id int,
	CONSTRAINT fk_txn FOREIGN KEY (txn_id) REFERENCES transactions (id),
	CONSTRAINT fk_product FOREIGN KEY (product_id) REFERENCES products (id)
)`

const createOperationalCards = `CREATE TABLE cards (
	id varchar(34),
	user_id int,
	iban varchar(34),
	pan varchar(255),
	pin varchar(4),
	cvv varchar(255),
	track1 varchar(255),
	track2 varchar(255),
	expiring_date varchar(255),
	PRIMARY KEY (id),
	CONSTRAINT fk_user FOREIGN KEY (user_id) REFERENCES users (id)
)`

const createOperationalTransactions = `CREATE TABLE transactions (
	id varchar(50),
	card_id varchar(50),
	business_id varchar(50),
	lat_long varchar(255),
	pin varchar(50),
	timestamp timestamp,
	amount double precision,
	declined boolean,
	product_ids varchar(255),
	PRIMARY KEY (id),
	CONSTRAINT fk_card FOREIGN KEY (card_id) REFERENCES cards (id),
	CONSTRAINT fk_business FOREIGN KEY (business_id) REFERENCES companies (company_id)
)`

const createWarehouseCards = `CREATE TABLE cards (
	id varchar(34),
	iban varchar(34),
	pan varchar(255),
	pin varchar(4),
	cvv varchar(255),
	track1 varchar(255),
	track2 varchar(255),
	expiring_date varchar(255),
	PRIMARY KEY (id)
)`

const createWarehouseTransactions = `CREATE TABLE transactions (
	id varchar(50),
	user_id int,
	card_id varchar(50),
	business_id varchar(50),
	lat_long varchar(255),
	pin varchar(50),
	timestamp timestamp,
	amount double precision,
	declined boolean,
	PRIMARY KEY (id),
	CONSTRAINT fk_card FOREIGN KEY (card_id) REFERENCES cards (id),
	CONSTRAINT fk_user FOREIGN KEY (user_id) REFERENCES users (id),
	CONSTRAINT fk_business FOREIGN KEY (business_id) REFERENCES companies (company_id)
)`

var (
	userColumns        = []string{"id", "name", "surname", "phone", "email", "birth_date", "country", "city", "postal_code", "address"}
	companyColumns     = []string{"company_id", "company_name", "phone", "email", "country", "website"}
	productColumns     = []string{"id", "product_name", "price", "colour", "weight", "warehouse_id"}
	productListColumns = []string{"txn_id", "product_id"}
	cardColumns        = []string{"id", "iban", "pan", "pin", "cvv", "track1", "track2", "expiring_date"}
	txnColumns         = []string{"id", "card_id", "business_id", "lat_long", "pin", "timestamp", "amount", "declined"}
)

// Operational returns the source-of-record database definition.
//
// Cards carry their owning user. Transactions keep a product_ids column that
// the loader leaves empty; the list is flattened into product_list instead.
func Operational() Definition {
	return Definition{
		Name: "operational",
		Tables: []Table{
			{Name: Users, Columns: clone(userColumns), Create: createUsers},
			{Name: Cards, Columns: concat([]string{"id", "user_id"}, cardColumns[1:]), DependsOn: []string{Users}, Create: createOperationalCards},
			{Name: Companies, Columns: clone(companyColumns), Create: createCompanies},
			{Name: Products, Columns: clone(productColumns), Create: createProducts},
			{Name: Transactions, Columns: clone(txnColumns), DependsOn: []string{Cards, Companies}, Create: createOperationalTransactions},
			{Name: ProductList, Columns: clone(productListColumns), DependsOn: []string{Transactions, Products}, Create: createProductList},
		},
	}
}

// Warehouse returns the denormalized analytical database definition.
// Transactions carry the owning user resolved through the card.
func Warehouse() Definition {
	return Definition{
		Name: "warehouse",
		Tables: []Table{
			{Name: Users, Columns: clone(userColumns), Create: createUsers},
			{Name: Cards, Columns: clone(cardColumns), Create: createWarehouseCards},
			{Name: Companies, Columns: clone(companyColumns), Create: createCompanies},
			{Name: Products, Columns: clone(productColumns), Create: createProducts},
			{Name: Transactions, Columns: concat([]string{"id", "user_id"}, txnColumns[1:]), DependsOn: []string{Users, Cards, Companies}, Create: createWarehouseTransactions},
			{Name: ProductList, Columns: clone(productListColumns), DependsOn: []string{Transactions, Products}, Create: createProductList},
		},
	}
}

// Extractions returns the operational queries feeding each warehouse table,
// in warehouse load order.
func Extractions() []Extraction {
	return []Extraction{
		{Table: Users, Query: "SELECT id, name, surname, phone, email, birth_date, country, city, postal_code, address FROM users"},
		{Table: Cards, Query: "SELECT id, iban, pan, pin, cvv, track1, track2, expiring_date FROM cards"},
		{Table: Companies, Query: "SELECT company_id, company_name, phone, email, country, website FROM companies"},
		{Table: Products, Query: "SELECT id, product_name, price, colour, weight, warehouse_id FROM products"},
		{Table: Transactions, Query: `SELECT t.id, c.user_id, t.card_id, t.business_id, t.lat_long, t.pin, t.timestamp, t.amount, t.declined
FROM transactions t JOIN cards c ON t.card_id = c.id`},
		{Table: ProductList, Query: "SELECT txn_id, product_id FROM product_list"},
	}
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
