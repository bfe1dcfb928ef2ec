package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	"github.com/smallbiznis/progresspay/internal/billingerr"
	"github.com/smallbiznis/progresspay/internal/clock"
	"github.com/smallbiznis/progresspay/internal/config"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	"github.com/smallbiznis/progresspay/internal/sov/domain"
	"github.com/smallbiznis/progresspay/pkg/db"
	"github.com/smallbiznis/progresspay/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxItemNumberLength = 64

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	AuditSvc auditdomain.Service
	Policy   *config.BillingPolicyHolder `optional:"true"`
	Clock    clock.Clock                 `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	auditSvc auditdomain.Service
	policy   *config.BillingPolicyHolder
	clock    clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("sov.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		policy:   p.Policy,
		clock:    c,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (domain.UpsertResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.UpsertResponse{}, err
	}
	if strings.TrimSpace(req.ID) == "" {
		return s.create(ctx, orgID, req)
	}
	return s.update(ctx, orgID, req)
}

func (s *Service) create(ctx context.Context, orgID snowflake.ID, req domain.UpsertRequest) (domain.UpsertResponse, error) {
	projectID, err := parseID(req.ProjectID, domain.ErrInvalidProject)
	if err != nil {
		return domain.UpsertResponse{}, err
	}
	if req.ItemNumber == nil {
		return domain.UpsertResponse{}, domain.ErrInvalidItemNumber
	}
	if req.ScheduledValue == nil {
		return domain.UpsertResponse{}, domain.ErrInvalidScheduledValue
	}

	retainage := s.policy.Get().DefaultRetainage()
	if req.RetainagePct != nil {
		retainage = *req.RetainagePct
	}

	now := s.clock.Now()
	item := domain.LineItem{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		ProjectID:      projectID,
		ItemNumber:     strings.TrimSpace(*req.ItemNumber),
		ScheduledValue: *req.ScheduledValue,
		RetainagePct:   retainage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.SortOrder != nil {
		item.SortOrder = *req.SortOrder
	}
	if err := validateItem(item); err != nil {
		return domain.UpsertResponse{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByItemNumber(ctx, tx, orgID, projectID, item.ItemNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateItemNumber
		}
		if req.SortOrder == nil {
			last, err := s.repo.MaxSortOrder(ctx, tx, orgID, projectID)
			if err != nil {
				return err
			}
			item.SortOrder = last + 1
		}
		return s.repo.Insert(ctx, tx, &item)
	})
	if err != nil {
		return domain.UpsertResponse{}, s.mapWriteErr("create sov item", err)
	}

	s.audit(ctx, orgID, auditdomain.ActionSOVItemCreated, item, nil)
	return domain.UpsertResponse{Item: item, Created: true}, nil
}

func (s *Service) update(ctx context.Context, orgID snowflake.ID, req domain.UpsertRequest) (domain.UpsertResponse, error) {
	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.UpsertResponse{}, err
	}

	var (
		item    domain.LineItem
		changes = map[string]any{}
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if strings.TrimSpace(req.ProjectID) != "" {
			projectID, err := parseID(req.ProjectID, domain.ErrInvalidProject)
			if err != nil {
				return err
			}
			if projectID != current.ProjectID {
				return domain.ErrProjectMismatch
			}
		}

		item = *current
		if req.ItemNumber != nil && strings.TrimSpace(*req.ItemNumber) != item.ItemNumber {
			item.ItemNumber = strings.TrimSpace(*req.ItemNumber)
			changes["item_number"] = item.ItemNumber
		}
		if req.Description != nil {
			item.Description = strings.TrimSpace(*req.Description)
		}
		if req.ScheduledValue != nil && !req.ScheduledValue.Equal(item.ScheduledValue) {
			changes["scheduled_value"] = map[string]string{"from": item.ScheduledValue.String(), "to": req.ScheduledValue.String()}
			item.ScheduledValue = *req.ScheduledValue
		}
		if req.RetainagePct != nil && !req.RetainagePct.Equal(item.RetainagePct) {
			changes["retainage_pct"] = map[string]string{"from": item.RetainagePct.String(), "to": req.RetainagePct.String()}
			item.RetainagePct = *req.RetainagePct
		}
		if req.SortOrder != nil {
			item.SortOrder = *req.SortOrder
		}
		if err := validateItem(item); err != nil {
			return err
		}

		if _, renamed := changes["item_number"]; renamed {
			clash, err := s.repo.FindByItemNumber(ctx, tx, orgID, item.ProjectID, item.ItemNumber)
			if err != nil {
				return err
			}
			if clash != nil && clash.ID != item.ID {
				return domain.ErrDuplicateItemNumber
			}
		}

		item.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, &item)
	})
	if err != nil {
		return domain.UpsertResponse{}, s.mapWriteErr("update sov item", err)
	}

	s.audit(ctx, orgID, auditdomain.ActionSOVItemUpdated, item, changes)
	return domain.UpsertResponse{Item: item}, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	var deleted domain.LineItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		refs, err := s.repo.CountReferences(ctx, tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrItemReferenced
		}
		if _, err := s.repo.Delete(ctx, tx, orgID, id); err != nil {
			return err
		}
		deleted = *item
		return nil
	})
	if err != nil {
		if db.IsForeignKeyErr(err) {
			return domain.ErrItemReferenced
		}
		return s.mapWriteErr("delete sov item", err)
	}

	s.audit(ctx, orgID, auditdomain.ActionSOVItemDeleted, deleted, nil)
	return nil
}

func (s *Service) List(ctx context.Context, rawProjectID string) ([]domain.LineItem, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	projectID, err := parseID(rawProjectID, domain.ErrInvalidProject)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByProject(ctx, s.db, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sov items: %w", err)
	}
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.LineItem, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.LineItem{}, err
	}
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return domain.LineItem{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("get sov item: %w", err)
	}
	if item == nil {
		return domain.LineItem{}, domain.ErrNotFound
	}
	return *item, nil
}

func validateItem(item domain.LineItem) error {
	if item.ItemNumber == "" || len(item.ItemNumber) > maxItemNumberLength {
		return domain.ErrInvalidItemNumber
	}
	if item.ScheduledValue.IsNegative() {
		return domain.ErrInvalidScheduledValue
	}
	if !money.HasCurrencyPrecision(item.ScheduledValue) {
		return domain.ErrInvalidMoneyPrecision
	}
	if !money.ValidPercent(item.RetainagePct) {
		return domain.ErrInvalidRetainagePct
	}
	if item.SortOrder < 0 {
		return domain.ErrInvalidSortOrder
	}
	return nil
}

// mapWriteErr turns a unique index violation into the domain error and wraps
// anything that is not already a billing error.
func (s *Service) mapWriteErr(op string, err error) error {
	switch {
	case billingerr.Kind(err) != nil:
		return err
	case db.IsDuplicateKeyErr(err):
		return domain.ErrDuplicateItemNumber
	default:
		s.log.Error(op, zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, item domain.LineItem, changes map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := item.ID.String()
	metadata := map[string]any{
		"project_id":      item.ProjectID.String(),
		"item_number":     item.ItemNumber,
		"scheduled_value": item.ScheduledValue.String(),
		"retainage_pct":   item.RetainagePct.String(),
	}
	if len(changes) > 0 {
		metadata["changes"] = changes
	}
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, auditdomain.TargetSOVItem, &targetID, metadata)
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	return orgID, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
