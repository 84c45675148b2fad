package bot

import (
	"strconv"
	"strings"
	"time"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
)

// splitArgs splits "a | b | c" into trimmed fields
func splitArgs(args string) []string {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePrice(s string) (int64, error) {
	s = strings.NewReplacer(".", "", ",", "", "_", "").Replace(strings.TrimSpace(s))
	price, err := strconv.ParseInt(s, 10, 64)
	if err != nil || price <= 0 {
		return 0, apperr.Validation.New("price must be a positive whole number")
	}
	return price, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation.New("%q is not a valid id", s)
	}
	return id, nil
}

// flag reads "key=1" style switches; ok is false when s is not that key
func flag(s, key string) (value, ok bool) {
	k, v, found := strings.Cut(s, "=")
	if !found || !strings.EqualFold(strings.TrimSpace(k), key) {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y":
		return true, true
	}
	return false, true
}

// ParseAddProduct parses "/addprod Name | price | note | account=1"
func ParseAddProduct(args string) (*models.Product, error) {
	parts := splitArgs(args)
	if len(parts) < 2 {
		return nil, apperr.Validation.New("usage: /addprod Name | price | note | account=1")
	}
	price, err := parsePrice(parts[1])
	if err != nil {
		return nil, err
	}
	p := &models.Product{Name: parts[0], Price: price}
	for _, extra := range parts[2:] {
		if v, ok := flag(extra, "account"); ok {
			p.RequiresAccountInfo = v
			continue
		}
		if p.Note == "" {
			p.Note = extra
		}
	}
	return p, nil
}

// ParseSetProduct parses "/setprod ID | Name | price | active=1/0 | note"
func ParseSetProduct(args string) (*models.Product, error) {
	parts := splitArgs(args)
	if len(parts) < 3 {
		return nil, apperr.Validation.New("usage: /setprod ID | Name | price | active=1/0 | note")
	}
	id, err := parseID(parts[0])
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(parts[2])
	if err != nil {
		return nil, err
	}
	p := &models.Product{ID: id, Name: parts[1], Price: price, Active: true}
	for _, extra := range parts[3:] {
		if v, ok := flag(extra, "active"); ok {
			p.Active = v
			continue
		}
		if v, ok := flag(extra, "account"); ok {
			p.RequiresAccountInfo = v
			continue
		}
		if p.Note == "" {
			p.Note = extra
		}
	}
	return p, nil
}

// ParseAddVoucher parses "/addvoucher CODE | percent|fixed | value | max_uses | YYYY-MM-DD".
// max_uses and the expiry date are optional.
func ParseAddVoucher(args string, loc *time.Location) (*models.Voucher, error) {
	parts := splitArgs(args)
	if len(parts) < 3 {
		return nil, apperr.Validation.New("usage: /addvoucher CODE | percent|fixed | value | max_uses | YYYY-MM-DD")
	}
	kind, ok := models.ParseDiscountType(parts[1])
	if !ok {
		return nil, apperr.Validation.New("discount type must be percent or fixed")
	}
	value, err := parsePrice(parts[2])
	if err != nil {
		return nil, apperr.Validation.New("voucher value must be a positive whole number")
	}
	v := &models.Voucher{Code: parts[0], DiscountType: kind, Value: value}

	if len(parts) > 3 && parts[3] != "" {
		maxUses, err := strconv.Atoi(parts[3])
		if err != nil || maxUses < 0 {
			return nil, apperr.Validation.New("max uses must be 0 (unlimited) or more")
		}
		v.MaxUses = maxUses
	}
	if len(parts) > 4 && parts[4] != "" && parts[4] != "-" {
		if loc == nil {
			loc = time.UTC
		}
		day, err := time.ParseInLocation("2006-01-02", parts[4], loc)
		if err != nil {
			return nil, apperr.Validation.New("expiry must look like 2024-12-31")
		}
		v.ExpiresOn = &day
	}
	return v, nil
}
