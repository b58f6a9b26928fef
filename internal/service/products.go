package service

import (
	"context"
	"math"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

func productFromRecord(row store.Record) domain.Product {
	return domain.Product{
		ID:        store.RecordID(row),
		Name:      store.Text(row, "name", "Name"),
		Category:  store.Text(row, "category", "Category"),
		Quantity:  store.Int(row, "quantity", "Quantity", "stock", "Stock"),
		BuyPrice:  store.Number(row, "buyPrice", "Buy Price", "buy_price"),
		SellPrice: store.Number(row, "sellPrice", "Sell Price", "sell_price"),
		Notes:     store.Text(row, "notes", "Notes"),
		CreatedAt: store.Text(row, "createdAt", "Created At"),
		UpdatedAt: store.Text(row, "updatedAt", "Updated At"),
	}
}

func productRecord(p domain.Product) store.Record {
	record := store.Record{
		"id":        p.ID,
		"name":      p.Name,
		"category":  p.Category,
		"quantity":  p.Quantity,
		"buyPrice":  p.BuyPrice,
		"sellPrice": p.SellPrice,
		"notes":     p.Notes,
	}
	if p.CreatedAt != "" {
		record["createdAt"] = p.CreatedAt
	}
	if p.UpdatedAt != "" {
		record["updatedAt"] = p.UpdatedAt
	}
	return record
}

func productsFromRecords(rows []store.Record) []domain.Product {
	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, productFromRecord(row))
	}
	return products
}

func productRecords(products []domain.Product) []store.Record {
	rows := make([]store.Record, 0, len(products))
	for _, p := range products {
		rows = append(rows, productRecord(p))
	}
	return rows
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetProducts)
	if err != nil {
		return nil, err
	}
	return productsFromRecords(rows), nil
}

func (s *Service) GetProduct(ctx context.Context, id int) (domain.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, notFound("Product not found")
}

func (s *Service) normalizeProduct(req *domain.ProductRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Notes = strings.TrimSpace(req.Notes)
	return s.check(req, "Missing required fields")
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	if err := s.normalizeProduct(&req); err != nil {
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.repo.Mutate(ctx, store.SheetProducts, func(rows []store.Record) ([]store.Record, error) {
		products := productsFromRecords(rows)
		created = domain.Product{
			ID:        store.NextID(rows),
			Name:      req.Name,
			Category:  req.Category,
			Quantity:  int(math.Trunc(req.Quantity.Value())),
			BuyPrice:  req.BuyPrice.Value(),
			SellPrice: req.SellPrice.Value(),
			Notes:     req.Notes,
			CreatedAt: s.timestamp(),
		}
		return productRecords(append(products, created)), nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.audit(ctx, "create", "product", created.ID)
	return created, nil
}

// UpdateProduct overwrites every editable field; id and createdAt are kept.
func (s *Service) UpdateProduct(ctx context.Context, id int, req domain.ProductRequest) (domain.Product, error) {
	if err := s.normalizeProduct(&req); err != nil {
		return domain.Product{}, err
	}

	var updated domain.Product
	err := s.repo.Mutate(ctx, store.SheetProducts, func(rows []store.Record) ([]store.Record, error) {
		products := productsFromRecords(rows)
		for i := range products {
			if products[i].ID != id {
				continue
			}
			products[i].Name = req.Name
			products[i].Category = req.Category
			products[i].Quantity = int(math.Trunc(req.Quantity.Value()))
			products[i].BuyPrice = req.BuyPrice.Value()
			products[i].SellPrice = req.SellPrice.Value()
			products[i].Notes = req.Notes
			products[i].UpdatedAt = s.timestamp()
			updated = products[i]
			return productRecords(products), nil
		}
		return nil, notFound("Product not found")
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.audit(ctx, "update", "product", id)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int) error {
	err := s.repo.Mutate(ctx, store.SheetProducts, func(rows []store.Record) ([]store.Record, error) {
		products := productsFromRecords(rows)
		kept := products[:0]
		for _, p := range products {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(products) {
			return nil, notFound("Product not found")
		}
		return productRecords(kept), nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "delete", "product", id)
	return nil
}
