package domain

import "github.com/smallbiznis/progresspay/internal/billingerr"

var (
	ErrInvalidOrganization    = billingerr.Validation("invalid_organization", "org_id")
	ErrInvalidID              = billingerr.Validation("invalid_id", "id")
	ErrInvalidProject         = billingerr.Validation("invalid_project_id", "project_id")
	ErrInvalidPayAppNumber    = billingerr.Validation("invalid_pay_app_number", "pay_app_number")
	ErrDuplicatePayAppNumber  = billingerr.Validation("duplicate_pay_app_number", "pay_app_number")
	ErrInvalidPeriodFrom      = billingerr.Validation("invalid_period_from", "period_from")
	ErrInvalidPeriodTo        = billingerr.Validation("invalid_period_to", "period_to")
	ErrInvalidPeriodRange     = billingerr.Validation("invalid_period_range", "period_to")
	ErrInvalidStatus          = billingerr.Validation("invalid_status", "status")
	ErrInvalidWorkCompleted   = billingerr.Validation("invalid_work_completed_this_period", "work_completed_this_period")
	ErrInvalidMaterialsStored = billingerr.Validation("invalid_materials_stored", "materials_stored")
	ErrInvalidCertifiedAmount = billingerr.Validation("invalid_certified_this_period", "certified_this_period")
	ErrInvalidRetainagePct    = billingerr.Validation("invalid_retainage_pct_override", "retainage_pct_override")
	ErrConflictingOverride    = billingerr.Validation("conflicting_override", "")
	ErrOverBilledLineItem     = billingerr.Validation("overbilled_line_item", "work_completed_this_period")
	ErrPayAppNotEditable      = billingerr.InvalidState("pay_application_not_editable")
	ErrPayAppNotDraft         = billingerr.InvalidState("pay_application_not_draft")
	ErrInvalidTransition      = billingerr.InvalidTransition("invalid_transition")
	ErrConcurrentTransition   = billingerr.InvalidTransition("concurrent_transition")
	ErrNotFound               = billingerr.NotFound("pay_application_not_found")
	ErrLineItemNotFound       = billingerr.NotFound("pay_app_line_item_not_found")
)
