package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	"github.com/smallbiznis/progresspay/internal/billingerr"
	"github.com/smallbiznis/progresspay/internal/clock"
	"github.com/smallbiznis/progresspay/internal/config"
	"github.com/smallbiznis/progresspay/internal/observability/metrics"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	"github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/internal/projectlock"
	sovdomain "github.com/smallbiznis/progresspay/internal/sov/domain"
	"github.com/smallbiznis/progresspay/internal/totals"
	"github.com/smallbiznis/progresspay/pkg/db"
	"github.com/smallbiznis/progresspay/pkg/db/option"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	SOVRepo  sovdomain.Repository
	Locker   projectlock.Locker
	AuditSvc auditdomain.Service

	Policy         *config.BillingPolicyHolder `optional:"true"`
	Clock          clock.Clock                 `optional:"true"`
	BillingMetrics *metrics.BillingMetrics     `optional:"true"`
	Metrics        *metrics.Metrics            `optional:"true"`
	Renderer       domain.DocumentRenderer     `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	sovRepo   sovdomain.Repository
	locker    projectlock.Locker
	auditSvc  auditdomain.Service
	policy    *config.BillingPolicyHolder
	clock     clock.Clock
	lifecycle *metrics.BillingMetrics
	amounts   *metrics.Metrics
	renderer  domain.DocumentRenderer
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payapp.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		sovRepo:   p.SOVRepo,
		locker:    p.Locker,
		auditSvc:  p.AuditSvc,
		policy:    p.Policy,
		clock:     c,
		lifecycle: p.BillingMetrics,
		amounts:   p.Metrics,
		renderer:  p.Renderer,
	}
}

// Create opens a new draft period and seeds one line item per schedule of
// values item, carrying forward everything certified in earlier periods. The
// whole sequence runs under the project lock and commits or rolls back as one.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.PayApplicationResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	projectID, err := parseID(req.ProjectID, domain.ErrInvalidProject)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	if req.PayAppNumber < 0 {
		return domain.PayApplicationResponse{}, domain.ErrInvalidPayAppNumber
	}
	periodFrom, err := parseDate(req.PeriodFrom, domain.ErrInvalidPeriodFrom)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	periodTo, err := parseDate(req.PeriodTo, domain.ErrInvalidPeriodTo)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	if periodFrom.After(periodTo) {
		return domain.PayApplicationResponse{}, domain.ErrInvalidPeriodRange
	}

	now := s.clock.Now()
	payApp := domain.PayApplication{
		OrgID:          orgID,
		ProjectID:      projectID,
		PayAppNumber:   req.PayAppNumber,
		PeriodFrom:     periodFrom,
		PeriodTo:       periodTo,
		Status:         domain.StatusDraft,
		ContractorName: trimmed(req.ContractorName),
		ContractNumber: trimmed(req.ContractNumber),
		Notes:          trimmed(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var seeded int
	err = s.locker.RunLocked(ctx, projectID, func(tx *gorm.DB) error {
		payApp.ID = s.genID.Generate()
		if req.PayAppNumber == 0 {
			next, err := s.repo.NextNumber(ctx, tx, orgID, projectID)
			if err != nil {
				return err
			}
			payApp.PayAppNumber = next
		} else {
			existing, err := s.repo.FindByNumber(ctx, tx, orgID, projectID, req.PayAppNumber)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrDuplicatePayAppNumber
			}
		}

		if err := s.repo.Insert(ctx, tx, &payApp); err != nil {
			return err
		}

		sovItems, err := s.sovRepo.ListByProject(ctx, tx, orgID, projectID)
		if err != nil {
			return err
		}
		previous, err := s.repo.CertifiedToDate(ctx, tx, orgID, projectID)
		if err != nil {
			return err
		}

		lineItems := make([]*domain.LineItem, 0, len(sovItems))
		for _, sovItem := range sovItems {
			prior, ok := previous[sovItem.ID]
			if !ok {
				prior = decimal.Zero
			}
			lineItems = append(lineItems, &domain.LineItem{
				ID:                      s.genID.Generate(),
				OrgID:                   orgID,
				PayAppID:                payApp.ID,
				SOVLineItemID:           sovItem.ID,
				WorkCompletedPrevious:   prior,
				WorkCompletedThisPeriod: decimal.Zero,
				MaterialsStored:         decimal.Zero,
				CreatedAt:               now,
				UpdatedAt:               now,
			})
		}
		seeded = len(lineItems)
		return s.repo.InsertLineItems(ctx, tx, lineItems)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.PayApplicationResponse{}, domain.ErrDuplicatePayAppNumber
		}
		return domain.PayApplicationResponse{}, s.wrap("create pay application", err)
	}

	s.lifecycle.IncPayApplicationCreated()
	s.audit(ctx, orgID, auditdomain.ActionPayApplicationCreated, payApp, map[string]any{
		"pay_app_number": payApp.PayAppNumber,
		"line_items":     seeded,
	})
	s.log.Info("pay application created",
		zap.String("pay_app_id", payApp.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.Int("pay_app_number", payApp.PayAppNumber),
		zap.Int("line_items", seeded),
	)

	return s.load(ctx, s.db, orgID, payApp.ID)
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.PayApplicationResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	return s.load(ctx, s.db, orgID, id)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.PayApplication, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	projectID, err := parseID(req.ProjectID, domain.ErrInvalidProject)
	if err != nil {
		return nil, err
	}

	filter := domain.ListFilter{OrgID: orgID, ProjectID: projectID}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	desc := strings.EqualFold(strings.TrimSpace(req.Order), "desc")

	items, err := s.repo.List(ctx, s.db, filter, option.WithSortBy(option.QuerySortBy{Column: "pay_app_number", Desc: desc}))
	if err != nil {
		return nil, s.wrap("list pay applications", err)
	}
	out := make([]domain.PayApplication, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

// Delete removes a draft and its line items.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	var deleted domain.PayApplication
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payApp, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if payApp == nil {
			return domain.ErrNotFound
		}
		if payApp.Status != domain.StatusDraft {
			return domain.ErrPayAppNotDraft
		}
		if err := s.repo.DeleteLineItems(ctx, tx, orgID, id); err != nil {
			return err
		}
		rows, err := s.repo.Delete(ctx, tx, orgID, id, domain.StatusDraft)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrPayAppNotDraft
		}
		deleted = *payApp
		return nil
	})
	if err != nil {
		return s.wrap("delete pay application", err)
	}

	s.audit(ctx, orgID, auditdomain.ActionPayApplicationDeleted, deleted, map[string]any{
		"pay_app_number": deleted.PayAppNumber,
	})
	return nil
}

func (s *Service) Totals(ctx context.Context, rawID string) (totals.Totals, error) {
	resp, err := s.Get(ctx, rawID)
	if err != nil {
		return totals.Totals{}, err
	}
	return resp.Totals, nil
}

// load assembles a pay application with its line items, totals and warnings.
func (s *Service) load(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (domain.PayApplicationResponse, error) {
	payApp, err := s.repo.FindByID(ctx, conn, orgID, id)
	if err != nil {
		return domain.PayApplicationResponse{}, s.wrap("get pay application", err)
	}
	if payApp == nil {
		return domain.PayApplicationResponse{}, domain.ErrNotFound
	}

	rows, err := s.repo.ListLineItemRows(ctx, conn, orgID, id)
	if err != nil {
		return domain.PayApplicationResponse{}, s.wrap("list pay application line items", err)
	}

	details, views := buildDetails(rows)
	return domain.PayApplicationResponse{
		PayApplication: *payApp,
		LineItems:      details,
		Totals:         totals.Compute(views),
		Warnings:       overBillingWarnings(details),
	}, nil
}

// wrap passes billing errors through and wraps infrastructure failures.
func (s *Service) wrap(op string, err error) error {
	if billingerr.Kind(err) != nil {
		return err
	}
	s.log.Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, payApp domain.PayApplication, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["project_id"] = payApp.ProjectID.String()
	metadata["status"] = string(payApp.Status)
	targetID := payApp.ID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, auditdomain.TargetPayApplication, &targetID, metadata)
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

// parseDate accepts a calendar date or an RFC 3339 timestamp and keeps the UTC date.
func parseDate(value string, invalid error) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, invalid
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, invalid
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
