package service

import (
	"context"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

var defaultOtherCategories = []domain.OtherCategory{
	{Name: "Recharge", Description: "Mobile/DTH Recharge"},
	{Name: "Bill Payment", Description: "Utility Bill Payments"},
	{Name: "Money Transfer", Description: "Money Transfer Services"},
	{Name: "Xerox", Description: "Photocopy Services"},
}

// otherCategoriesFromRecords numbers rows by position; blank names are skipped
// before numbering and moved to the end on rewrite.
func otherCategoriesFromRecords(rows []store.Record) []domain.OtherCategory {
	categories := make([]domain.OtherCategory, 0, len(rows))
	for _, row := range rows {
		name := store.Text(row, "name", "Name", "category", "Category")
		if name == "" {
			continue
		}
		categories = append(categories, domain.OtherCategory{
			ID:          len(categories) + 1,
			Name:        name,
			Description: store.Text(row, "description", "Description"),
		})
	}
	return categories
}

func otherCategoryRecords(categories []domain.OtherCategory) []store.Record {
	rows := make([]store.Record, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, store.Record{"name": c.Name, "description": c.Description})
	}
	return rows
}

func renumber(categories []domain.OtherCategory) []domain.OtherCategory {
	for i := range categories {
		categories[i].ID = i + 1
	}
	return categories
}

// ListOtherCategories seeds an empty sheet from the categories already used by
// other transactions, or from the built-in defaults when there are none.
func (s *Service) ListOtherCategories(ctx context.Context) ([]domain.OtherCategory, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetOtherCategories)
	if err != nil {
		return nil, err
	}
	if categories := otherCategoriesFromRecords(rows); len(categories) > 0 {
		return categories, nil
	}

	others, err := s.ListOthers(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(others))
	for _, o := range others {
		names = append(names, o.Category)
	}
	var seed []domain.OtherCategory
	for _, name := range uniqueNames(names) {
		seed = append(seed, domain.OtherCategory{Name: name})
	}
	if len(seed) == 0 {
		seed = append(seed, defaultOtherCategories...)
	}
	seed = renumber(seed)

	var seeded []domain.OtherCategory
	err = s.repo.Mutate(ctx, store.SheetOtherCategories, func(current []store.Record) ([]store.Record, error) {
		if existing := otherCategoriesFromRecords(current); len(existing) > 0 {
			seeded = existing
			return current, nil
		}
		seeded = seed
		return otherCategoryRecords(seed), nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("count", len(seeded)).Info("seeded other categories")
	return seeded, nil
}

func (s *Service) GetOtherCategory(ctx context.Context, id int) (domain.OtherCategory, error) {
	categories, err := s.ListOtherCategories(ctx)
	if err != nil {
		return domain.OtherCategory{}, err
	}
	if id < 1 || id > len(categories) {
		return domain.OtherCategory{}, notFound("Category not found")
	}
	return categories[id-1], nil
}

func (s *Service) CreateOtherCategory(ctx context.Context, req domain.CategoryRequest) (domain.OtherCategory, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.check(req, "Category name is required"); err != nil {
		return domain.OtherCategory{}, err
	}
	if _, err := s.ListOtherCategories(ctx); err != nil {
		return domain.OtherCategory{}, err
	}

	var created domain.OtherCategory
	err := s.repo.Mutate(ctx, store.SheetOtherCategories, func(rows []store.Record) ([]store.Record, error) {
		categories := otherCategoriesFromRecords(rows)
		for _, c := range categories {
			if strings.EqualFold(c.Name, req.Name) {
				return nil, conflict("Category already exists")
			}
		}
		created = domain.OtherCategory{ID: len(categories) + 1, Name: req.Name, Description: req.Description}
		return append(otherCategoryRecords(append(categories, created)), unnamedRows(rows)...), nil
	})
	if err != nil {
		return domain.OtherCategory{}, err
	}
	s.audit(ctx, "create", "other category", created.ID)
	return created, nil
}

func (s *Service) UpdateOtherCategory(ctx context.Context, id int, req domain.CategoryRequest) (domain.OtherCategory, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.check(req, "Category name is required"); err != nil {
		return domain.OtherCategory{}, err
	}

	var updated domain.OtherCategory
	err := s.repo.Mutate(ctx, store.SheetOtherCategories, func(rows []store.Record) ([]store.Record, error) {
		categories := otherCategoriesFromRecords(rows)
		if id < 1 || id > len(categories) {
			return nil, notFound("Category not found")
		}
		for i, c := range categories {
			if i != id-1 && strings.EqualFold(c.Name, req.Name) {
				return nil, conflict("Category name already exists")
			}
		}
		categories[id-1].Name = req.Name
		categories[id-1].Description = req.Description
		updated = categories[id-1]
		return append(otherCategoryRecords(categories), unnamedRows(rows)...), nil
	})
	if err != nil {
		return domain.OtherCategory{}, err
	}
	s.audit(ctx, "update", "other category", id)
	return updated, nil
}

// DeleteOtherCategory removes the row at position id; later rows shift down.
func (s *Service) DeleteOtherCategory(ctx context.Context, id int) error {
	err := s.repo.Mutate(ctx, store.SheetOtherCategories, func(rows []store.Record) ([]store.Record, error) {
		categories := otherCategoriesFromRecords(rows)
		if id < 1 || id > len(categories) {
			return nil, notFound("Category not found")
		}
		categories = append(categories[:id-1], categories[id:]...)
		return append(otherCategoryRecords(renumber(categories)), unnamedRows(rows)...), nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "delete", "other category", id)
	return nil
}
