package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	"github.com/smallbiznis/progresspay/internal/billingerr"
	"github.com/smallbiznis/progresspay/internal/clock"
	"github.com/smallbiznis/progresspay/internal/lienwaiver/domain"
	"github.com/smallbiznis/progresspay/internal/observability/metrics"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	paydomain "github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/pkg/db/option"
	"github.com/smallbiznis/progresspay/pkg/money"
	"github.com/smallbiznis/progresspay/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	PayAppRepo paydomain.Repository
	AuditSvc   auditdomain.Service

	Clock          clock.Clock             `optional:"true"`
	BillingMetrics *metrics.BillingMetrics `optional:"true"`
	Metrics        *metrics.Metrics        `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	payAppRepo paydomain.Repository
	waivers    repository.Repository[domain.LienWaiver]
	auditSvc   auditdomain.Service
	clock      clock.Clock
	counters   *metrics.BillingMetrics
	amounts    *metrics.Metrics
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("lienwaiver.service"),
		genID:      p.GenID,
		payAppRepo: p.PayAppRepo,
		waivers:    repository.ProvideStore[domain.LienWaiver](p.DB),
		auditSvc:   p.AuditSvc,
		clock:      c,
		counters:   p.BillingMetrics,
		amounts:    p.Metrics,
	}
}

// Record attaches a waiver to a certified or paid pay application.
func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (domain.LienWaiver, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.LienWaiver{}, err
	}
	payAppID, err := snowflake.ParseString(strings.TrimSpace(req.PayAppID))
	if err != nil || payAppID == 0 {
		return domain.LienWaiver{}, domain.ErrInvalidPayApp
	}
	waiver, err := s.buildWaiver(orgID, payAppID, req)
	if err != nil {
		return domain.LienWaiver{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payApp, err := s.payAppRepo.FindByID(ctx, tx, orgID, payAppID)
		if err != nil {
			return err
		}
		if payApp == nil {
			return domain.ErrPayAppNotFound
		}
		if !payApp.Status.Billed() {
			return domain.ErrPayAppNotBilled
		}
		return s.waivers.WithTrx(tx).Create(ctx, &waiver)
	})
	if err != nil {
		if billingerr.Kind(err) != nil {
			return domain.LienWaiver{}, err
		}
		s.log.Error("record lien waiver", zap.Error(err))
		return domain.LienWaiver{}, fmt.Errorf("record lien waiver: %w", err)
	}

	s.counters.IncLienWaiver(string(waiver.WaiverType))
	amount, _ := waiver.Amount.Float64()
	s.amounts.RecordLienWaiver(ctx, orgID.String(), string(waiver.WaiverType), amount)

	if s.auditSvc != nil {
		targetID := waiver.ID.String()
		_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, auditdomain.ActionLienWaiverRecorded, auditdomain.TargetLienWaiver, &targetID, map[string]any{
			"pay_app_id":   payAppID.String(),
			"waiver_type":  string(waiver.WaiverType),
			"amount":       waiver.Amount.StringFixed(money.Scale),
			"through_date": waiver.ThroughDate.Format(time.DateOnly),
		})
	}
	return waiver, nil
}

func (s *Service) List(ctx context.Context, rawPayAppID string) ([]domain.LienWaiver, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	payAppID, err := snowflake.ParseString(strings.TrimSpace(rawPayAppID))
	if err != nil || payAppID == 0 {
		return nil, domain.ErrInvalidPayApp
	}

	payApp, err := s.payAppRepo.FindByID(ctx, s.db, orgID, payAppID)
	if err != nil {
		return nil, fmt.Errorf("get pay application: %w", err)
	}
	if payApp == nil {
		return nil, domain.ErrPayAppNotFound
	}

	items, err := s.waivers.Find(ctx,
		&domain.LienWaiver{OrgID: orgID, PayAppID: payAppID},
		option.WithSortBy(option.QuerySortBy{Column: "created_at"}, option.QuerySortBy{Column: "id"}),
	)
	if err != nil {
		return nil, fmt.Errorf("list lien waivers: %w", err)
	}
	out := make([]domain.LienWaiver, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Service) buildWaiver(orgID, payAppID snowflake.ID, req domain.RecordRequest) (domain.LienWaiver, error) {
	waiverType := domain.WaiverType(strings.ToLower(strings.TrimSpace(req.WaiverType)))
	if !waiverType.Valid() {
		return domain.LienWaiver{}, domain.ErrInvalidWaiverType
	}
	if req.Amount == nil || !money.ValidAmount(*req.Amount) {
		return domain.LienWaiver{}, domain.ErrInvalidAmount
	}
	throughDate, ok := parseDate(req.ThroughDate)
	if !ok {
		return domain.LienWaiver{}, domain.ErrInvalidThroughDate
	}

	waiver := domain.LienWaiver{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		PayAppID:    payAppID,
		WaiverType:  waiverType,
		Amount:      money.Round(*req.Amount),
		ThroughDate: throughDate,
		CreatedAt:   s.clock.Now(),
	}
	if req.ReceivedDate != nil && strings.TrimSpace(*req.ReceivedDate) != "" {
		received, ok := parseDate(*req.ReceivedDate)
		if !ok {
			return domain.LienWaiver{}, domain.ErrInvalidReceivedDate
		}
		waiver.ReceivedDate = &received
	}
	if req.FileURL != nil {
		fileURL := strings.TrimSpace(*req.FileURL)
		if fileURL != "" {
			parsed, err := url.Parse(fileURL)
			if err != nil || !parsed.IsAbs() || parsed.Host == "" {
				return domain.LienWaiver{}, domain.ErrInvalidFileURL
			}
		}
		waiver.FileURL = fileURL
	}
	if req.Notes != nil {
		waiver.Notes = strings.TrimSpace(*req.Notes)
	}
	return waiver, nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	return orgID, nil
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
