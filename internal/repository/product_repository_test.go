package repository

import (
	"testing"

	"github.com/emarket-next/internal/models"

	"github.com/shopspring/decimal"
)

func seedCatalog(t *testing.T, repo *GormProductRepository) (uint, uint) {
	t.Helper()
	db := repo.db
	women := &models.Category{Name: "Women", Slug: "women"}
	men := &models.Category{Name: "Men", Slug: "men"}
	mustCreate(t, db, women)
	mustCreate(t, db, men)

	rose := &models.Product{Name: "Rose Oud", Slug: "rose-oud", Description: "Floral", Brand: "Lattafa", Priority: 1, CategoryID: &women.ID}
	amber := &models.Product{Name: "Amber Night", Slug: "amber-night", Description: "Warm rose accord", Brand: "Armaf", Priority: 2, CategoryID: &men.ID}
	musk := &models.Product{Name: "White Musk", Slug: "white-musk", Description: "Clean", Brand: "Lattafa", Priority: 3, CategoryID: &women.ID}
	for _, p := range []*models.Product{rose, amber, musk} {
		mustCreate(t, db, p)
	}
	mustCreate(t, db, &models.ProductVariant{ProductID: rose.ID, SizeML: 100, Price: models.MustMoney("300.00"), Discount: moneyPtr("100.00"), Stock: 3})
	mustCreate(t, db, &models.ProductVariant{ProductID: rose.ID, SizeML: 50, Price: models.MustMoney("250.00"), Stock: 3})
	mustCreate(t, db, &models.ProductVariant{ProductID: amber.ID, SizeML: 100, Price: models.MustMoney("500.00"), Stock: 1})
	mustCreate(t, db, &models.ProductVariant{ProductID: musk.ID, SizeML: 30, Price: models.MustMoney("90.00"), Stock: 9})
	return rose.ID, amber.ID
}

func TestProductListFilters(t *testing.T) {
	repo := NewProductRepository(openRepositoryTestDB(t))
	roseID, _ := seedCatalog(t, repo)

	products, total, err := repo.List(ProductListFilter{Page: 1, PageSize: 24, Brands: []string{"Lattafa"}})
	if err != nil {
		t.Fatalf("list by brand failed: %v", err)
	}
	if total != 2 || len(products) != 2 {
		t.Fatalf("brand filter want 2 got total=%d len=%d", total, len(products))
	}
	if products[0].ID != roseID {
		t.Fatalf("priority ordering broken, first=%s", products[0].Slug)
	}
	if len(products[0].Variants) != 2 || products[0].Variants[0].SizeML != 50 {
		t.Fatalf("variants should be preloaded ordered by size, got %+v", products[0].Variants)
	}

	minPrice := decimal.NewFromInt(150)
	maxPrice := decimal.NewFromInt(300)
	products, total, err = repo.List(ProductListFilter{Page: 1, PageSize: 24, MinPrice: &minPrice, MaxPrice: &maxPrice})
	if err != nil {
		t.Fatalf("list by price failed: %v", err)
	}
	if total != 1 || products[0].ID != roseID {
		t.Fatalf("price filter should match only rose (lowest 200.00), total=%d", total)
	}

	_, total, err = repo.List(ProductListFilter{Page: 1, PageSize: 24, CategorySlugs: []string{"men"}})
	if err != nil || total != 1 {
		t.Fatalf("category filter want 1 got %d err=%v", total, err)
	}
}

func TestProductSearchRanksNameMatchesFirst(t *testing.T) {
	repo := NewProductRepository(openRepositoryTestDB(t))
	roseID, amberID := seedCatalog(t, repo)

	products, total, err := repo.Search(ProductListFilter{Page: 1, PageSize: 10, Keyword: "rose"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 2 || len(products) != 2 {
		t.Fatalf("search want 2 hits got %d", total)
	}
	if products[0].ID != roseID || products[1].ID != amberID {
		t.Fatalf("name match must rank first, got %s then %s", products[0].Slug, products[1].Slug)
	}
}

func TestListBrandsCountsProducts(t *testing.T) {
	repo := NewProductRepository(openRepositoryTestDB(t))
	seedCatalog(t, repo)

	brands, err := repo.ListBrands("", "", 10)
	if err != nil {
		t.Fatalf("list brands failed: %v", err)
	}
	if len(brands) != 2 || brands[0].Brand != "Lattafa" || brands[0].Count != 2 {
		t.Fatalf("unexpected brand counts: %+v", brands)
	}

	brands, err = repo.ListBrands("men", "", 10)
	if err != nil || len(brands) != 1 || brands[0].Brand != "Armaf" {
		t.Fatalf("category scoped brands unexpected: %+v err=%v", brands, err)
	}
}

func TestVariantSaleAndStockDecrement(t *testing.T) {
	db := openRepositoryTestDB(t)
	seedCatalog(t, NewProductRepository(db))
	variants := NewVariantRepository(db)

	sale, total, err := variants.ListSale(SaleVariantFilter{Page: 1, PageSize: 10, MinDiscountRatio: decimal.RequireFromString("0.05")})
	if err != nil {
		t.Fatalf("list sale failed: %v", err)
	}
	if total != 1 || sale[0].Product == nil || sale[0].Product.Slug != "rose-oud" {
		t.Fatalf("unexpected sale variants: total=%d %+v", total, sale)
	}

	affected, err := variants.DecrementStock(sale[0].ID, 2)
	if err != nil || affected != 1 {
		t.Fatalf("decrement within stock want 1 row, got %d err=%v", affected, err)
	}
	affected, err = variants.DecrementStock(sale[0].ID, 2)
	if err != nil || affected != 0 {
		t.Fatalf("decrement beyond stock must affect 0 rows, got %d err=%v", affected, err)
	}
	reloaded, _ := variants.GetByID(sale[0].ID)
	if reloaded.Stock != 1 {
		t.Fatalf("stock want 1 got %d", reloaded.Stock)
	}
}
