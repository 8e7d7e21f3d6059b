package service

import (
	"context"

	"github.com/alexanderramin/tempo/internal/db"
	"github.com/alexanderramin/tempo/internal/domain"
)

type alertService struct {
	read repos
}

func NewAlertService(conn db.DBTX) AlertService {
	return &alertService{read: reposFor(conn)}
}

func (s *alertService) List(ctx context.Context, orgID string, unreadOnly bool) ([]*domain.Alert, error) {
	if orgID == "" {
		return nil, &domain.ValidationError{Field: "organization_id", Reason: "is required"}
	}
	return s.read.alerts.ListByOrg(ctx, orgID, unreadOnly)
}

func (s *alertService) MarkRead(ctx context.Context, orgID, alertID string) error {
	if orgID == "" {
		return &domain.ValidationError{Field: "organization_id", Reason: "is required"}
	}
	return s.read.alerts.MarkRead(ctx, orgID, alertID)
}
