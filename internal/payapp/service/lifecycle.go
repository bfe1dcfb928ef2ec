package service

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	"github.com/smallbiznis/progresspay/internal/auditcontext"
	"github.com/smallbiznis/progresspay/internal/billingerr"
	"github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/internal/totals"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var transitionActions = map[domain.Status]string{
	domain.StatusSubmitted: auditdomain.ActionPayApplicationSubmitted,
	domain.StatusCertified: auditdomain.ActionPayApplicationCertified,
	domain.StatusPaid:      auditdomain.ActionPayApplicationPaid,
}

// Update edits header fields. Notes stay editable in every status; the rest
// only while the pay application is draft or submitted.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.PayApplicationResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}

	headerChange := req.ContractorName != nil || req.ContractNumber != nil || req.PeriodFrom != nil || req.PeriodTo != nil
	var (
		changed []string
		updated domain.PayApplication
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payApp, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if payApp == nil {
			return domain.ErrNotFound
		}
		if headerChange && !payApp.Status.Editable() {
			return domain.ErrPayAppNotEditable
		}

		if req.PeriodFrom != nil {
			from, err := parseDate(*req.PeriodFrom, domain.ErrInvalidPeriodFrom)
			if err != nil {
				return err
			}
			payApp.PeriodFrom = from
			changed = append(changed, "period_from")
		}
		if req.PeriodTo != nil {
			to, err := parseDate(*req.PeriodTo, domain.ErrInvalidPeriodTo)
			if err != nil {
				return err
			}
			payApp.PeriodTo = to
			changed = append(changed, "period_to")
		}
		if payApp.PeriodFrom.After(payApp.PeriodTo) {
			return domain.ErrInvalidPeriodRange
		}
		if req.ContractorName != nil {
			payApp.ContractorName = trimmed(req.ContractorName)
			changed = append(changed, "contractor_name")
		}
		if req.ContractNumber != nil {
			payApp.ContractNumber = trimmed(req.ContractNumber)
			changed = append(changed, "contract_number")
		}
		if req.Notes != nil {
			payApp.Notes = trimmed(req.Notes)
			changed = append(changed, "notes")
		}
		if len(changed) == 0 {
			return nil
		}

		payApp.UpdatedAt = s.clock.Now()
		updated = *payApp
		return s.repo.UpdateHeader(ctx, tx, payApp)
	})
	if err != nil {
		return domain.PayApplicationResponse{}, s.wrap("update pay application", err)
	}
	if len(changed) > 0 {
		s.audit(ctx, orgID, auditdomain.ActionPayApplicationUpdated, updated, map[string]any{
			"fields": changed,
		})
	}

	return s.load(ctx, s.db, orgID, id)
}

// Transition advances the pay application one step along
// draft -> submitted -> certified -> paid and stamps the matching date.
// Certification runs under the project lock because it changes what later
// periods carry forward as previously completed work.
func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (domain.PayApplicationResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.PayApplicationResponse{}, err
	}
	target := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !target.Valid() {
		return domain.PayApplicationResponse{}, domain.ErrInvalidStatus
	}

	current, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.PayApplicationResponse{}, s.wrap("get pay application", err)
	}
	if current == nil {
		return domain.PayApplicationResponse{}, domain.ErrNotFound
	}

	var (
		from   domain.Status
		result domain.PayApplication
		period totals.Totals
	)
	err = s.locker.RunLocked(ctx, current.ProjectID, func(tx *gorm.DB) error {
		payApp, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if payApp == nil {
			return domain.ErrNotFound
		}
		if !payApp.Status.CanTransitionTo(target) {
			return domain.ErrInvalidTransition
		}

		if target == domain.StatusCertified {
			rows, err := s.repo.ListLineItemRows(ctx, tx, orgID, id)
			if err != nil {
				return err
			}
			details, views := buildDetails(rows)
			if s.rejectOverBilling() && len(overBillingWarnings(details)) > 0 {
				s.lifecycle.IncOverBilling("rejected")
				return domain.ErrOverBilledLineItem
			}
			period = totals.Compute(views)
		}

		from = payApp.Status
		now := s.clock.Now()
		payApp.Status = target
		payApp.UpdatedAt = now
		switch target {
		case domain.StatusSubmitted:
			payApp.SubmittedDate = &now
		case domain.StatusCertified:
			payApp.CertifiedDate = &now
			payApp.CertifiedBy = s.certifiedBy(ctx, req.CertifiedBy)
		case domain.StatusPaid:
			payApp.PaidDate = &now
		}

		rows, err := s.repo.UpdateStatus(ctx, tx, payApp, from)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrConcurrentTransition
		}
		if target == domain.StatusCertified {
			if err := s.repo.SnapshotLineItems(ctx, tx, orgID, id, now); err != nil {
				return err
			}
		}
		result = *payApp
		return nil
	})
	if err != nil {
		if billingerr.Kind(err) != nil {
			s.lifecycle.IncTransitionRejected(billingerr.Code(err))
		}
		return domain.PayApplicationResponse{}, s.wrap("transition pay application", err)
	}

	s.lifecycle.IncTransition(string(from), string(target))
	if target == domain.StatusCertified {
		certified, _ := period.CertifiedThisPeriod.Float64()
		retainage, _ := period.RetainageHeld.Float64()
		s.amounts.RecordCertification(ctx, orgID.String(), certified, retainage)
	}
	metadata := map[string]any{"from": string(from), "to": string(target)}
	if result.CertifiedBy != nil && target == domain.StatusCertified {
		metadata["certified_by"] = *result.CertifiedBy
	}
	s.audit(ctx, orgID, transitionActions[target], result, metadata)
	s.log.Info("pay application transitioned",
		zap.String("pay_app_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)

	return s.load(ctx, s.db, orgID, id)
}

func (s *Service) certifiedBy(ctx context.Context, requested *string) *string {
	if requested != nil {
		if value := strings.TrimSpace(*requested); value != "" {
			return &value
		}
	}
	if _, actorID := auditcontext.ActorFromContext(ctx); actorID != "" {
		return &actorID
	}
	return nil
}

func (s *Service) rejectOverBilling() bool {
	return s.policy.Get().RejectOverBilling()
}
