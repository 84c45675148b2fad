package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
	"auto-order/internal/util"
)

// ProductRepository is the product part of the store
type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListActiveProducts(ctx context.Context, limit int) ([]models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// CatalogService serves the product list and the admin product commands
type CatalogService struct {
	repo     ProductRepository
	auth     *Authorizer
	pageSize int
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo ProductRepository, auth *Authorizer, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &CatalogService{
		repo:     repo,
		auth:     auth,
		pageSize: pageSize,
		logger:   util.GetLogger(),
	}
}

// Catalog lists active products, newest first
func (s *CatalogService) Catalog(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Catalog")
	defer span.End()

	return s.repo.ListActiveProducts(ctx, s.pageSize)
}

// GetProduct returns one product
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// AdminProducts lists every product including hidden ones
func (s *CatalogService) AdminProducts(ctx context.Context, actorID int64) ([]models.Product, error) {
	if err := s.auth.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx)
}

// AddProduct creates an active product
func (s *CatalogService) AddProduct(ctx context.Context, actorID int64, p *models.Product) error {
	if err := s.auth.RequireAdmin(actorID); err != nil {
		return err
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	p.Active = true
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}

	s.logger.Info("Product added", zap.Int64("product_id", p.ID), zap.Int64("admin_id", actorID))
	return nil
}

// EditProduct overwrites a product
func (s *CatalogService) EditProduct(ctx context.Context, actorID int64, p *models.Product) error {
	if err := s.auth.RequireAdmin(actorID); err != nil {
		return err
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}

	s.logger.Info("Product updated", zap.Int64("product_id", p.ID), zap.Int64("admin_id", actorID))
	return nil
}

// RemoveProduct deletes a product
func (s *CatalogService) RemoveProduct(ctx context.Context, actorID, productID int64) error {
	if err := s.auth.RequireAdmin(actorID); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", productID), zap.Int64("admin_id", actorID))
	return nil
}

func validateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Note = strings.TrimSpace(p.Note)
	if p.Name == "" {
		return apperr.Validation.New("product name is required")
	}
	if p.Price <= 0 {
		return apperr.Validation.New("price must be a positive whole number")
	}
	return nil
}
