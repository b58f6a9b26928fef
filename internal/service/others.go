package service

import (
	"context"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

func otherFromRecord(row store.Record) domain.Other {
	return domain.Other{
		ID:           store.RecordID(row),
		Category:     store.Text(row, "category", "Category"),
		Description:  store.Text(row, "description", "Description"),
		CustomerName: store.Text(row, "customerName", "Customer Name", "customer", "Customer"),
		Amount:       store.Number(row, "amount", "Amount"),
		Notes:        store.Text(row, "notes", "Notes"),
		Date:         store.Text(row, "date", "Date", "createdAt", "Created At"),
		CreatedAt:    store.Text(row, "createdAt", "Created At", "date", "Date"),
		UpdatedAt:    store.Text(row, "updatedAt", "Updated At"),
	}
}

func otherRecord(o domain.Other) store.Record {
	record := store.Record{
		"id":           o.ID,
		"category":     o.Category,
		"description":  o.Description,
		"customerName": o.CustomerName,
		"amount":       o.Amount,
		"notes":        o.Notes,
		"date":         o.Date,
		"createdAt":    o.CreatedAt,
	}
	if o.UpdatedAt != "" {
		record["updatedAt"] = o.UpdatedAt
	}
	return record
}

func othersFromRecords(rows []store.Record) []domain.Other {
	others := make([]domain.Other, 0, len(rows))
	for _, row := range rows {
		others = append(others, otherFromRecord(row))
	}
	return others
}

func otherRecords(others []domain.Other) []store.Record {
	rows := make([]store.Record, 0, len(others))
	for _, o := range others {
		rows = append(rows, otherRecord(o))
	}
	return rows
}

func (s *Service) ListOthers(ctx context.Context) ([]domain.Other, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetOthers)
	if err != nil {
		return nil, err
	}
	return othersFromRecords(rows), nil
}

func (s *Service) GetOther(ctx context.Context, id int) (domain.Other, error) {
	others, err := s.ListOthers(ctx)
	if err != nil {
		return domain.Other{}, err
	}
	for _, o := range others {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Other{}, notFound("Transaction not found")
}

func (s *Service) normalizeOther(req *domain.OtherRequest) error {
	req.Category = strings.TrimSpace(req.Category)
	req.Description = strings.TrimSpace(req.Description)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Notes = strings.TrimSpace(req.Notes)
	return s.check(req, "Category, description, and amount are required")
}

func (s *Service) CreateOther(ctx context.Context, req domain.OtherRequest) (domain.Other, error) {
	if err := s.normalizeOther(&req); err != nil {
		return domain.Other{}, err
	}

	var created domain.Other
	err := s.repo.Mutate(ctx, store.SheetOthers, func(rows []store.Record) ([]store.Record, error) {
		created = domain.Other{
			ID:           store.NextID(rows),
			Category:     req.Category,
			Description:  req.Description,
			CustomerName: req.CustomerName,
			Amount:       req.Amount.Value(),
			Notes:        req.Notes,
			Date:         s.today(),
			CreatedAt:    s.timestamp(),
		}
		return otherRecords(append(othersFromRecords(rows), created)), nil
	})
	if err != nil {
		return domain.Other{}, err
	}
	s.audit(ctx, "create", "other", created.ID)
	return created, nil
}

func (s *Service) UpdateOther(ctx context.Context, id int, req domain.OtherRequest) (domain.Other, error) {
	if err := s.normalizeOther(&req); err != nil {
		return domain.Other{}, err
	}

	var updated domain.Other
	err := s.repo.Mutate(ctx, store.SheetOthers, func(rows []store.Record) ([]store.Record, error) {
		others := othersFromRecords(rows)
		for i := range others {
			if others[i].ID != id {
				continue
			}
			others[i].Category = req.Category
			others[i].Description = req.Description
			others[i].CustomerName = req.CustomerName
			others[i].Amount = req.Amount.Value()
			others[i].Notes = req.Notes
			others[i].UpdatedAt = s.timestamp()
			updated = others[i]
			return otherRecords(others), nil
		}
		return nil, notFound("Transaction not found")
	})
	if err != nil {
		return domain.Other{}, err
	}
	s.audit(ctx, "update", "other", id)
	return updated, nil
}

func (s *Service) DeleteOther(ctx context.Context, id int) error {
	err := s.repo.Mutate(ctx, store.SheetOthers, func(rows []store.Record) ([]store.Record, error) {
		others := othersFromRecords(rows)
		kept := make([]domain.Other, 0, len(others))
		for _, o := range others {
			if o.ID != id {
				kept = append(kept, o)
			}
		}
		if len(kept) == len(others) {
			return nil, notFound("Transaction not found")
		}
		return otherRecords(kept), nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "delete", "other", id)
	return nil
}
