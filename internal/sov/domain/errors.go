package domain

import "github.com/smallbiznis/progresspay/internal/billingerr"

var (
	ErrInvalidOrganization   = billingerr.Validation("invalid_organization", "org_id")
	ErrInvalidID             = billingerr.Validation("invalid_id", "id")
	ErrInvalidProject        = billingerr.Validation("invalid_project_id", "project_id")
	ErrProjectMismatch       = billingerr.Validation("project_mismatch", "project_id")
	ErrInvalidItemNumber     = billingerr.Validation("invalid_item_number", "item_number")
	ErrDuplicateItemNumber   = billingerr.Validation("duplicate_item_number", "item_number")
	ErrInvalidScheduledValue = billingerr.Validation("invalid_scheduled_value", "scheduled_value")
	ErrInvalidRetainagePct   = billingerr.Validation("invalid_retainage_pct", "retainage_pct")
	ErrInvalidSortOrder      = billingerr.Validation("invalid_sort_order", "sort_order")
	ErrItemReferenced        = billingerr.Referenced("sov_item_referenced")
	ErrNotFound              = billingerr.NotFound("sov_item_not_found")
)

var ErrInvalidMoneyPrecision = billingerr.Validation("invalid_money_precision", "scheduled_value")
