package admin

import (
	"context"
	"errors"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/store"
)

func organizationNotFound() *apperr.Error {
	return apperr.NotFound(apperr.CodeOrganizationNotFound, "organization with the given id does not exist")
}

func (s *Service) CreateOrganization(ctx context.Context, req OrganizationRequest) (resp OrganizationResponse, err error) {
	defer s.track("organization_create", time.Now(), &err)

	org, err := s.insertOrganization(ctx, req)
	if err != nil {
		return OrganizationResponse{}, err
	}
	return organizationResponse(org), nil
}

func (s *Service) GetOrganization(ctx context.Context, organizationID string) (resp OrganizationResponse, err error) {
	defer s.track("organization_retrieve", time.Now(), &err)

	org, err := s.getOrganization(ctx, organizationID)
	if err != nil {
		return OrganizationResponse{}, err
	}
	return organizationResponse(org), nil
}

func (s *Service) UpdateOrganization(ctx context.Context, organizationID string, req OrganizationRequest) (resp OrganizationResponse, err error) {
	defer s.track("organization_update", time.Now(), &err)

	org, err := s.getOrganization(ctx, organizationID)
	if err != nil {
		return OrganizationResponse{}, err
	}
	if req.OrganizationName != nil {
		org.OrganizationName = req.OrganizationName
	}
	if store.Present(req.OrganizationDetails) {
		org.Details = req.OrganizationDetails
	}
	if store.Present(req.Metadata) {
		org.Metadata = req.Metadata
	}
	org.ModifiedAt = s.timestamp()

	updated, err := s.store.UpdateOrganization(ctx, org)
	if errors.Is(err, store.ErrNotFound) {
		return OrganizationResponse{}, organizationNotFound()
	}
	if err != nil {
		return OrganizationResponse{}, apperr.Internal("failed to update organization", err)
	}
	return organizationResponse(updated), nil
}

func (s *Service) insertOrganization(ctx context.Context, req OrganizationRequest) (store.Organization, error) {
	now := s.timestamp()
	org, err := s.store.InsertOrganization(ctx, store.Organization{
		OrganizationID:   generateID("org"),
		OrganizationName: req.OrganizationName,
		Details:          req.OrganizationDetails,
		Metadata:         req.Metadata,
		CreatedAt:        now,
		ModifiedAt:       now,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.Organization{}, apperr.Duplicate(apperr.CodeInvalidRequest, "Organization with the given id already exists")
	}
	if err != nil {
		return store.Organization{}, apperr.Internal("failed to insert organization", err)
	}
	return org, nil
}

func (s *Service) getOrganization(ctx context.Context, organizationID string) (store.Organization, error) {
	org, err := s.store.GetOrganization(ctx, organizationID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Organization{}, organizationNotFound()
	}
	if err != nil {
		return store.Organization{}, apperr.Internal("failed to fetch organization", err)
	}
	return org, nil
}

func organizationResponse(org store.Organization) OrganizationResponse {
	return OrganizationResponse{
		OrganizationID:      org.OrganizationID,
		OrganizationName:    org.OrganizationName,
		OrganizationDetails: org.Details,
		Metadata:            org.Metadata,
		CreatedAt:           org.CreatedAt,
		ModifiedAt:          org.ModifiedAt,
	}
}
