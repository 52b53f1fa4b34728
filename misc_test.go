package queryengine

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db, mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db, mock, nil
}

// dryRun renders the SELECT built by fn without executing it.
func dryRun(db *gorm.DB, fn func(tx *gorm.DB) *gorm.DB) (string, []any) {
	stmt := fn(db.Session(&gorm.Session{DryRun: true})).Find(&[]map[string]any{}).Statement
	return stmt.SQL.String(), stmt.Vars
}

// renderUsers renders fn applied to the "users" table with the postgres
// dialect.
func renderUsers(t *testing.T, fn func(tx *gorm.DB) *gorm.DB) (string, []any) {
	t.Helper()

	_, db, _, err := newGORMPostgresMock()
	require.NoError(t, err)

	return dryRun(db, func(tx *gorm.DB) *gorm.DB {
		return fn(tx.Table("users"))
	})
}

type (
	tCategory struct {
		ID       uint `gorm:"primaryKey"`
		Name     string
		ParentID *uint
		Parent   *tCategory
	}

	tProduct struct {
		ID              uint `gorm:"primaryKey"`
		Name            string
		Description     string
		Status          string
		Price           float64
		CategoryID      uint
		Category        *tCategory
		CreatedDatetime time.Time
	}
)

func (tCategory) TableName() string { return "categories" }
func (tProduct) TableName() string  { return "products" }

var _productGetters = Getters[tProduct]{
	"id":               func(p tProduct) any { return p.ID },
	"name":             func(p tProduct) any { return p.Name },
	"status":           func(p tProduct) any { return p.Status },
	"price":            func(p tProduct) any { return p.Price },
	"created_datetime": func(p tProduct) any { return p.CreatedDatetime },
}

var _baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newSQLiteDB opens an in-memory database seeded with productCount products.
//
// Product i (1-based) has:
//   - name "Widget NN" for odd i, "Gadget NN" for even i;
//   - status active, draft, archived for i%3 = 0, 1, 2;
//   - category 1 (Phones, child of 3) for odd i, category 2 (Home) for even i;
//   - created_datetime _baseTime + (i/2) hours, so pairs share a timestamp.
func newSQLiteDB(t *testing.T, productCount int) *gorm.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(&sqlite.Dialector{Conn: conn}, &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&tCategory{}, &tProduct{}))

	electronics := uint(3)
	require.NoError(t, db.Create([]*tCategory{
		{ID: 1, Name: "Phones", ParentID: &electronics},
		{ID: 2, Name: "Home"},
		{ID: 3, Name: "Electronics"},
	}).Error)

	statuses := []string{"active", "draft", "archived"}
	products := make([]*tProduct, 0, productCount)
	for i := 1; i <= productCount; i++ {
		name, category := fmt.Sprintf("Widget %02d", i), uint(1)
		if i%2 == 0 {
			name, category = fmt.Sprintf("Gadget %02d", i), 2
		}

		products = append(products, &tProduct{
			ID:              uint(i),
			Name:            name,
			Description:     fmt.Sprintf("Product number %d", i),
			Status:          statuses[i%3],
			Price:           float64(i) * 1.5,
			CategoryID:      category,
			CreatedDatetime: _baseTime.Add(time.Duration(i/2) * time.Hour),
		})
	}

	if len(products) > 0 {
		require.NoError(t, db.Omit("Category").Create(products).Error)
	}

	return db
}

func newProductSchema(t *testing.T, db *gorm.DB) *Schema {
	t.Helper()

	schema, err := SchemaFromModel(db, &tProduct{})
	require.NoError(t, err)

	return schema
}
