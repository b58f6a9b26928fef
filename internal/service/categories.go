package service

import (
	"context"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

func categoriesFromRecords(rows []store.Record) []domain.Category {
	categories := make([]domain.Category, 0, len(rows))
	for i, row := range rows {
		c := domain.Category{
			ID:          store.RecordID(row),
			Name:        store.Text(row, "name", "Name", "category", "Category"),
			Description: store.Text(row, "description", "Description"),
		}
		if c.ID < 1 {
			c.ID = i + 1
		}
		if c.Name == "" {
			continue
		}
		categories = append(categories, c)
	}
	return categories
}

// unnamedRows returns rows without a category name. They are not listed but
// rewrites keep them so nothing in the sheet is lost.
func unnamedRows(rows []store.Record) []store.Record {
	var unnamed []store.Record
	for _, row := range rows {
		if store.Text(row, "name", "Name", "category", "Category") == "" {
			unnamed = append(unnamed, row)
		}
	}
	return unnamed
}

func categoryRecords(categories []domain.Category) []store.Record {
	rows := make([]store.Record, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, store.Record{"id": c.ID, "name": c.Name, "description": c.Description})
	}
	return rows
}

// ListCategories seeds the sheet from distinct product categories the first
// time it is read empty.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetCategories)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return categoriesFromRecords(rows), nil
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Category)
	}
	names = uniqueNames(names)
	if len(names) == 0 {
		return []domain.Category{}, nil
	}

	var seeded []domain.Category
	err = s.repo.Mutate(ctx, store.SheetCategories, func(current []store.Record) ([]store.Record, error) {
		if len(current) > 0 {
			seeded = categoriesFromRecords(current)
			return current, nil
		}
		seeded = make([]domain.Category, 0, len(names))
		for i, name := range names {
			seeded = append(seeded, domain.Category{ID: i + 1, Name: name})
		}
		return categoryRecords(seeded), nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("count", len(seeded)).Info("seeded categories from products")
	return seeded, nil
}

func (s *Service) GetCategory(ctx context.Context, id int) (domain.Category, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	for _, c := range categories {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Category{}, notFound("Category not found")
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.check(req, "Category name is required"); err != nil {
		return domain.Category{}, err
	}
	if _, err := s.ListCategories(ctx); err != nil {
		return domain.Category{}, err
	}

	var created domain.Category
	err := s.repo.Mutate(ctx, store.SheetCategories, func(rows []store.Record) ([]store.Record, error) {
		categories := categoriesFromRecords(rows)
		for _, c := range categories {
			if strings.EqualFold(c.Name, req.Name) {
				return nil, conflict("Category already exists")
			}
		}
		created = domain.Category{
			ID:          max(maxID(categories, func(c domain.Category) int { return c.ID })+1, store.NextID(rows)),
			Name:        req.Name,
			Description: req.Description,
		}
		return append(categoryRecords(append(categories, created)), unnamedRows(rows)...), nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	s.audit(ctx, "create", "category", created.ID)
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int, req domain.CategoryRequest) (domain.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.check(req, "Category name is required"); err != nil {
		return domain.Category{}, err
	}

	var updated domain.Category
	err := s.repo.Mutate(ctx, store.SheetCategories, func(rows []store.Record) ([]store.Record, error) {
		categories := categoriesFromRecords(rows)
		index := -1
		for i, c := range categories {
			if c.ID == id {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, notFound("Category not found")
		}
		for i, c := range categories {
			if i != index && strings.EqualFold(c.Name, req.Name) {
				return nil, conflict("Category name already exists")
			}
		}
		categories[index].Name = req.Name
		categories[index].Description = req.Description
		updated = categories[index]
		return append(categoryRecords(categories), unnamedRows(rows)...), nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	s.audit(ctx, "update", "category", id)
	return updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int) error {
	err := s.repo.Mutate(ctx, store.SheetCategories, func(rows []store.Record) ([]store.Record, error) {
		categories := categoriesFromRecords(rows)
		kept := make([]domain.Category, 0, len(categories))
		for _, c := range categories {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(categories) {
			return nil, notFound("Category not found")
		}
		return append(categoryRecords(kept), unnamedRows(rows)...), nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "delete", "category", id)
	return nil
}
