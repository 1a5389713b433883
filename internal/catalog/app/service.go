package app

import (
	"context"
	"strings"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/catalog/domain"
)

type Service struct {
	source ProductSource
}

func NewService(source ProductSource) *Service {
	return &Service{
		source: source,
	}
}

// ListProducts fetches the whole catalog and narrows it locally: query is
// a case-insensitive substring of the name or description, category an
// exact case-insensitive match. Empty filters match everything.
func (s *Service) ListProducts(ctx context.Context, query, category string) ([]domain.Product, error) {
	products, err := s.source.List(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)
	if query == "" && category == "" {
		return products, nil
	}

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, apperr.Validation("catalog.get", "product id is required")
	}
	return s.source.Get(ctx, strings.TrimSpace(id))
}
