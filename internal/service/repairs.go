package service

import (
	"context"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

func repairFromRecord(row store.Record) domain.Repair {
	return domain.Repair{
		ID:            store.RecordID(row),
		CustomerName:  store.Text(row, "customerName", "Customer Name", "customer", "Customer"),
		CustomerPhone: store.Text(row, "customerPhone", "Customer Phone", "phone", "Phone"),
		DeviceName:    store.Text(row, "deviceName", "Device Name", "device", "Device"),
		Issue:         store.Text(row, "issue", "Issue"),
		EstimatedCost: store.Number(row, "estimatedCost", "Estimated Cost", "amount", "Amount"),
		Status:        store.TextOr(row, "Pending", "status", "Status"),
		Notes:         store.Text(row, "notes", "Notes"),
		Date:          store.Text(row, "date", "Date", "createdAt", "Created At"),
		CreatedAt:     store.Text(row, "createdAt", "Created At", "date", "Date"),
		UpdatedAt:     store.Text(row, "updatedAt", "Updated At"),
	}
}

func repairRecord(r domain.Repair) store.Record {
	record := store.Record{
		"id":            r.ID,
		"customerName":  r.CustomerName,
		"customerPhone": r.CustomerPhone,
		"deviceName":    r.DeviceName,
		"issue":         r.Issue,
		"estimatedCost": r.EstimatedCost,
		"status":        r.Status,
		"notes":         r.Notes,
		"date":          r.Date,
		"createdAt":     r.CreatedAt,
	}
	if r.UpdatedAt != "" {
		record["updatedAt"] = r.UpdatedAt
	}
	return record
}

func repairsFromRecords(rows []store.Record) []domain.Repair {
	repairs := make([]domain.Repair, 0, len(rows))
	for _, row := range rows {
		repairs = append(repairs, repairFromRecord(row))
	}
	return repairs
}

func repairRecords(repairs []domain.Repair) []store.Record {
	rows := make([]store.Record, 0, len(repairs))
	for _, r := range repairs {
		rows = append(rows, repairRecord(r))
	}
	return rows
}

func (s *Service) ListRepairs(ctx context.Context) ([]domain.Repair, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetRepairs)
	if err != nil {
		return nil, err
	}
	return repairsFromRecords(rows), nil
}

func (s *Service) GetRepair(ctx context.Context, id int) (domain.Repair, error) {
	repairs, err := s.ListRepairs(ctx)
	if err != nil {
		return domain.Repair{}, err
	}
	for _, r := range repairs {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Repair{}, notFound("Repair not found")
}

func (s *Service) normalizeRepair(req *domain.RepairRequest) error {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.DeviceName = strings.TrimSpace(req.DeviceName)
	req.Issue = strings.TrimSpace(req.Issue)
	req.Status = strings.TrimSpace(req.Status)
	req.Notes = strings.TrimSpace(req.Notes)
	return s.check(req, "Missing required fields")
}

func (s *Service) CreateRepair(ctx context.Context, req domain.RepairRequest) (domain.Repair, error) {
	if err := s.normalizeRepair(&req); err != nil {
		return domain.Repair{}, err
	}

	var created domain.Repair
	err := s.repo.Mutate(ctx, store.SheetRepairs, func(rows []store.Record) ([]store.Record, error) {
		created = domain.Repair{
			ID:            store.NextID(rows),
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			DeviceName:    req.DeviceName,
			Issue:         req.Issue,
			EstimatedCost: req.EstimatedCost.Value(),
			Status:        req.Status,
			Notes:         req.Notes,
			Date:          s.today(),
			CreatedAt:     s.timestamp(),
		}
		return repairRecords(append(repairsFromRecords(rows), created)), nil
	})
	if err != nil {
		return domain.Repair{}, err
	}
	s.audit(ctx, "create", "repair", created.ID)
	return created, nil
}

func (s *Service) UpdateRepair(ctx context.Context, id int, req domain.RepairRequest) (domain.Repair, error) {
	if err := s.normalizeRepair(&req); err != nil {
		return domain.Repair{}, err
	}

	var updated domain.Repair
	err := s.repo.Mutate(ctx, store.SheetRepairs, func(rows []store.Record) ([]store.Record, error) {
		repairs := repairsFromRecords(rows)
		for i := range repairs {
			if repairs[i].ID != id {
				continue
			}
			repairs[i].CustomerName = req.CustomerName
			repairs[i].CustomerPhone = req.CustomerPhone
			repairs[i].DeviceName = req.DeviceName
			repairs[i].Issue = req.Issue
			repairs[i].EstimatedCost = req.EstimatedCost.Value()
			repairs[i].Status = req.Status
			repairs[i].Notes = req.Notes
			repairs[i].UpdatedAt = s.timestamp()
			updated = repairs[i]
			return repairRecords(repairs), nil
		}
		return nil, notFound("Repair not found")
	})
	if err != nil {
		return domain.Repair{}, err
	}
	s.audit(ctx, "update", "repair", id)
	return updated, nil
}

func (s *Service) DeleteRepair(ctx context.Context, id int) error {
	err := s.repo.Mutate(ctx, store.SheetRepairs, func(rows []store.Record) ([]store.Record, error) {
		repairs := repairsFromRecords(rows)
		kept := make([]domain.Repair, 0, len(repairs))
		for _, r := range repairs {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(repairs) {
			return nil, notFound("Repair not found")
		}
		return repairRecords(kept), nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "delete", "repair", id)
	return nil
}
