package domain

import "github.com/smallbiznis/progresspay/internal/billingerr"

var (
	ErrInvalidOrganization = billingerr.Validation("invalid_organization", "org_id")
	ErrInvalidPayApp       = billingerr.Validation("invalid_pay_app_id", "pay_app_id")
	ErrInvalidWaiverType   = billingerr.Validation("invalid_waiver_type", "waiver_type")
	ErrInvalidAmount       = billingerr.Validation("invalid_amount", "amount")
	ErrInvalidThroughDate  = billingerr.Validation("invalid_through_date", "through_date")
	ErrInvalidReceivedDate = billingerr.Validation("invalid_received_date", "received_date")
	ErrInvalidFileURL      = billingerr.Validation("invalid_file_url", "file_url")
	ErrPayAppNotBilled     = billingerr.InvalidState("pay_application_not_certified")
	ErrPayAppNotFound      = billingerr.NotFound("pay_application_not_found")
)
