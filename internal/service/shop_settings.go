package service

import (
	"context"
	"strings"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

func shopSettingsFromRecord(row store.Record) domain.ShopSettings {
	settings := domain.ShopSettings{
		ShopName:    store.Text(row, "shopName", "Shop Name"),
		ShopPhone:   store.Text(row, "shopPhone", "Shop Phone"),
		ShopEmail:   store.Text(row, "shopEmail", "Shop Email"),
		ShopGSTIN:   store.Text(row, "shopGstin", "Shop GSTIN", "GSTIN", "gstin"),
		ShopAddress: store.Text(row, "shopAddress", "Shop Address"),
		ShopLogoURL: store.Text(row, "shopLogoUrl", "Shop Logo URL"),
		UpdatedAt:   store.Text(row, "updatedAt", "Updated At"),
	}
	var ok bool
	if settings.DefaultCGSTRate, ok = store.NumberOK(row, "defaultCgstRate", "Default CGST Rate"); !ok {
		settings.DefaultCGSTRate = domain.DefaultCGSTRate
	}
	if settings.DefaultSGSTRate, ok = store.NumberOK(row, "defaultSgstRate", "Default SGST Rate"); !ok {
		settings.DefaultSGSTRate = domain.DefaultSGSTRate
	}
	if settings.DefaultIGSTRate, ok = store.NumberOK(row, "defaultIgstRate", "Default IGST Rate"); !ok {
		settings.DefaultIGSTRate = domain.DefaultIGSTRate
	}
	return settings
}

func shopSettingsRecord(settings domain.ShopSettings) store.Record {
	record := store.Record{
		"shopName":        settings.ShopName,
		"shopPhone":       settings.ShopPhone,
		"shopEmail":       settings.ShopEmail,
		"shopGstin":       settings.ShopGSTIN,
		"shopAddress":     settings.ShopAddress,
		"defaultCgstRate": settings.DefaultCGSTRate,
		"defaultSgstRate": settings.DefaultSGSTRate,
		"defaultIgstRate": settings.DefaultIGSTRate,
		"shopLogoUrl":     settings.ShopLogoURL,
	}
	if settings.UpdatedAt != "" {
		record["updatedAt"] = settings.UpdatedAt
	}
	return record
}

func (s *Service) defaultShopSettings() domain.ShopSettings {
	return domain.ShopSettings{
		ShopName:        s.defaultShopName,
		DefaultCGSTRate: domain.DefaultCGSTRate,
		DefaultSGSTRate: domain.DefaultSGSTRate,
		DefaultIGSTRate: domain.DefaultIGSTRate,
	}
}

// GetShopSettings returns the single settings row, writing the defaults the
// first time the sheet is found empty.
func (s *Service) GetShopSettings(ctx context.Context) (domain.ShopSettings, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetShopSettings)
	if err != nil {
		return domain.ShopSettings{}, err
	}
	if len(rows) > 0 {
		return shopSettingsFromRecord(rows[0]), nil
	}

	settings := s.defaultShopSettings()
	err = s.repo.Mutate(ctx, store.SheetShopSettings, func(current []store.Record) ([]store.Record, error) {
		if len(current) > 0 {
			settings = shopSettingsFromRecord(current[0])
			return current, nil
		}
		return []store.Record{shopSettingsRecord(settings)}, nil
	})
	if err != nil {
		return domain.ShopSettings{}, err
	}
	return settings, nil
}

// SaveShopSettings replaces the settings row. Absent rates take the GST
// defaults; an explicit zero is kept.
func (s *Service) SaveShopSettings(ctx context.Context, req domain.ShopSettingsRequest) (domain.ShopSettings, error) {
	req.ShopName = strings.TrimSpace(req.ShopName)
	if err := s.check(req, "Shop name is required"); err != nil {
		return domain.ShopSettings{}, err
	}
	rateOr := func(v *domain.Amount, fallback float64) float64 {
		if v == nil {
			return fallback
		}
		return v.Value()
	}

	settings := domain.ShopSettings{
		ShopName:        req.ShopName,
		ShopPhone:       strings.TrimSpace(req.ShopPhone),
		ShopEmail:       strings.TrimSpace(req.ShopEmail),
		ShopGSTIN:       strings.ToUpper(strings.TrimSpace(req.ShopGSTIN)),
		ShopAddress:     strings.TrimSpace(req.ShopAddress),
		DefaultCGSTRate: rateOr(req.DefaultCGSTRate, domain.DefaultCGSTRate),
		DefaultSGSTRate: rateOr(req.DefaultSGSTRate, domain.DefaultSGSTRate),
		DefaultIGSTRate: rateOr(req.DefaultIGSTRate, domain.DefaultIGSTRate),
		ShopLogoURL:     strings.TrimSpace(req.ShopLogoURL),
		UpdatedAt:       s.timestamp(),
	}
	if err := s.repo.WriteSheet(ctx, store.SheetShopSettings, []store.Record{shopSettingsRecord(settings)}); err != nil {
		return domain.ShopSettings{}, err
	}
	s.audit(ctx, "update", "shop settings", 1)
	return settings, nil
}
