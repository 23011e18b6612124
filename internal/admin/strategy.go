package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/store"
)

const (
	APIVersionV1 = "v1"
	APIVersionV2 = "v2"

	maxMerchantIDLength = 64
)

var merchantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// strategy holds the behavior that differs between the v1 and v2 account
// shapes. It is chosen once from configuration.
type strategy interface {
	version() string
	merchantID(req MerchantAccountCreate, now time.Time) (string, error)
	organization(ctx context.Context, s *Service, organizationID *string) (store.Organization, error)
	// createsDefaultProfiles reports whether merchant creation also creates
	// business profiles from the primary business details.
	createsDefaultProfiles() bool
	connectorProfile(ctx context.Context, s *Service, merchant store.MerchantAccount, req ConnectorCreate) (store.BusinessProfile, error)
}

func strategyFor(version string) (strategy, error) {
	switch strings.ToLower(strings.TrimSpace(version)) {
	case "", APIVersionV1:
		return v1{}, nil
	case APIVersionV2:
		return v2{}, nil
	default:
		return nil, fmt.Errorf("admin: unsupported api version %q", version)
	}
}

type v1 struct{}

func (v1) version() string { return APIVersionV1 }

func (v1) merchantID(req MerchantAccountCreate, _ time.Time) (string, error) {
	id := strings.TrimSpace(req.MerchantID)
	if id == "" {
		return "", apperr.MissingField("merchant_id")
	}
	if len(id) > maxMerchantIDLength || !merchantIDPattern.MatchString(id) {
		return "", apperr.InvalidDataValue("merchant_id")
	}
	return id, nil
}

// organization creates a new organization when none is named.
func (v1) organization(ctx context.Context, s *Service, organizationID *string) (store.Organization, error) {
	if organizationID == nil || strings.TrimSpace(*organizationID) == "" {
		return s.insertOrganization(ctx, OrganizationRequest{})
	}
	return s.getOrganization(ctx, strings.TrimSpace(*organizationID))
}

func (v1) createsDefaultProfiles() bool { return true }

// connectorProfile resolves the profile from the explicit id, the merchant's
// default profile, or the legacy business country and label, in that order.
func (v1) connectorProfile(ctx context.Context, s *Service, merchant store.MerchantAccount, req ConnectorCreate) (store.BusinessProfile, error) {
	if err := validateBusinessDetails(merchant, req); err != nil {
		return store.BusinessProfile{}, err
	}
	if req.ProfileID != nil && strings.TrimSpace(*req.ProfileID) != "" {
		return s.ownedProfile(ctx, merchant.MerchantID, strings.TrimSpace(*req.ProfileID))
	}
	if merchant.DefaultProfile != nil {
		return s.ownedProfile(ctx, merchant.MerchantID, *merchant.DefaultProfile)
	}
	if req.BusinessCountry != nil && req.BusinessLabel != nil {
		name := profileNameFromBusinessDetails(*req.BusinessCountry, *req.BusinessLabel)
		p, err := s.store.GetProfileByName(ctx, merchant.MerchantID, name)
		if errors.Is(err, store.ErrNotFound) {
			return store.BusinessProfile{}, profileNotFound(name)
		}
		if err != nil {
			return store.BusinessProfile{}, apperr.Internal("failed to fetch business profile", err)
		}
		return p, nil
	}
	return store.BusinessProfile{}, apperr.MissingField("profile_id or business_country, business_label")
}

type v2 struct{}

func (v2) version() string { return APIVersionV2 }

// merchantID derives the id from the merchant name.
func (v2) merchantID(req MerchantAccountCreate, now time.Time) (string, error) {
	if req.MerchantName == nil || strings.TrimSpace(*req.MerchantName) == "" {
		return "", apperr.MissingField("merchant_name")
	}
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(*req.MerchantName)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	id := b.String() + "_" + strconv.FormatInt(now.Unix(), 10)
	if len(id) > maxMerchantIDLength {
		id = id[len(id)-maxMerchantIDLength:]
	}
	return id, nil
}

func (v2) organization(ctx context.Context, s *Service, organizationID *string) (store.Organization, error) {
	if organizationID == nil || strings.TrimSpace(*organizationID) == "" {
		return store.Organization{}, apperr.MissingField("organization_id")
	}
	return s.getOrganization(ctx, strings.TrimSpace(*organizationID))
}

func (v2) createsDefaultProfiles() bool { return false }

func (v2) connectorProfile(ctx context.Context, s *Service, merchant store.MerchantAccount, req ConnectorCreate) (store.BusinessProfile, error) {
	if req.ProfileID == nil || strings.TrimSpace(*req.ProfileID) == "" {
		return store.BusinessProfile{}, apperr.MissingField("profile_id")
	}
	return s.ownedProfile(ctx, merchant.MerchantID, strings.TrimSpace(*req.ProfileID))
}

// validateBusinessDetails checks that a connector's business country and
// label are one of the merchant's primary business details.
func validateBusinessDetails(merchant store.MerchantAccount, req ConnectorCreate) error {
	if req.BusinessCountry == nil || req.BusinessLabel == nil {
		return nil
	}
	var details []PrimaryBusinessDetails
	if store.Present(merchant.PrimaryBusinessDetails) {
		if err := json.Unmarshal(merchant.PrimaryBusinessDetails, &details); err != nil {
			return apperr.Internal("failed to decode primary business details", err)
		}
	}
	if !slices.Contains(details, PrimaryBusinessDetails{Country: *req.BusinessCountry, Business: *req.BusinessLabel}) {
		return apperr.InvalidDataValue("business_details")
	}
	return nil
}

func profileNameFromBusinessDetails(country, business string) string {
	return country + "_" + business
}
