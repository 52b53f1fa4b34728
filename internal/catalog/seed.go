package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _seedNamespace = uuid.MustParse("6f1c7c8e-4b8e-4f0a-9a43-3f6f0a1d2b7e")

func seedID(kind string, n int) uuid.UUID {
	return uuid.NewSHA1(_seedNamespace, []byte(fmt.Sprintf("%s-%d", kind, n)))
}

// Seed inserts the demo catalog. Existing rows are kept.
func Seed(ctx context.Context, db *gorm.DB) error {
	accounts := []Account{
		{ID: seedID("account", 1), Email: "acme@example.com", Name: "Acme Supplies", PasswordHash: "x"},
		{ID: seedID("account", 2), Email: "globex@example.com", Name: "Globex", PasswordHash: "x"},
		{ID: seedID("account", 3), Email: "initech@example.com", Name: "Initech", PasswordHash: "x"},
	}

	electronics := uint(1)
	categories := []Category{
		{ID: 1, Name: "Electronics"},
		{ID: 2, Name: "Phones", ParentID: &electronics},
		{ID: 3, Name: "Home"},
	}

	statuses := []string{StatusActive, StatusDraft, StatusActive, StatusArchived}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	products := make([]Product, 0, 30)
	for i := 1; i <= 30; i++ {
		products = append(products, Product{
			ID:              seedID("product", i),
			Name:            fmt.Sprintf("Widget %02d", i),
			Description:     fmt.Sprintf("Demo product number %d", i),
			Status:          statuses[i%len(statuses)],
			Price:           float64(i*5) + 0.99,
			Stock:           (i * 7) % 13,
			CategoryID:      uint(i%3 + 1),
			SupplierID:      accounts[i%len(accounts)].ID,
			CreatedDatetime: base.Add(time.Duration(i) * time.Hour),
		})
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		onConflict := clause.OnConflict{DoNothing: true}

		if err := tx.Clauses(onConflict).Create(&accounts).Error; err != nil {
			return fmt.Errorf("failed to seed accounts: %w", err)
		}
		if err := tx.Clauses(onConflict).Create(&categories).Error; err != nil {
			return fmt.Errorf("failed to seed categories: %w", err)
		}
		if err := tx.Clauses(onConflict).Omit("Category", "Supplier").Create(&products).Error; err != nil {
			return fmt.Errorf("failed to seed products: %w", err)
		}

		return nil
	})
}
