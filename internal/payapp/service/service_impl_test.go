package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	auditrepository "github.com/smallbiznis/progresspay/internal/audit/repository"
	auditservice "github.com/smallbiznis/progresspay/internal/audit/service"
	"github.com/smallbiznis/progresspay/internal/auditcontext"
	"github.com/smallbiznis/progresspay/internal/billingerr"
	"github.com/smallbiznis/progresspay/internal/clock"
	"github.com/smallbiznis/progresspay/internal/config"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	"github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/internal/payapp/repository"
	"github.com/smallbiznis/progresspay/internal/projectlock"
	sovdomain "github.com/smallbiznis/progresspay/internal/sov/domain"
	sovrepository "github.com/smallbiznis/progresspay/internal/sov/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testOrgID     = snowflake.ID(10)
	testProjectID = snowflake.ID(500)
)

var testNow = time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&sovdomain.LineItem{},
		&domain.PayApplication{},
		&domain.LineItem{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &fixture{db: db, node: node, clock: clock.NewFakeClock(testNow)}
}

func (f *fixture) service(t *testing.T, policy config.BillingPolicy, overrides ...func(*Params)) domain.Service {
	t.Helper()
	p := Params{
		DB:      f.db,
		Log:     zap.NewNop(),
		GenID:   f.node,
		Repo:    repository.Provide(),
		SOVRepo: sovrepository.Provide(),
		Locker:  projectlock.NewLocal(f.db, zap.NewNop()),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB:    f.db,
			Log:   zap.NewNop(),
			GenID: f.node,
			Repo:  auditrepository.Provide(),
			Clock: f.clock,
		}),
		Policy: config.NewStaticBillingPolicy(policy),
		Clock:  f.clock,
	}
	for _, override := range overrides {
		override(&p)
	}
	return New(p)
}

func (f *fixture) seedSOV(t *testing.T, itemNumber, scheduled, retainagePct string, sortOrder int) snowflake.ID {
	t.Helper()
	item := sovdomain.LineItem{
		ID:             f.node.Generate(),
		OrgID:          testOrgID,
		ProjectID:      testProjectID,
		ItemNumber:     itemNumber,
		Description:    "Item " + itemNumber,
		ScheduledValue: decimal.RequireFromString(scheduled),
		RetainagePct:   decimal.RequireFromString(retainagePct),
		SortOrder:      sortOrder,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item.ID
}

func orgCtx() context.Context {
	return orgcontext.WithOrgID(context.Background(), testOrgID)
}

func createDraft(t *testing.T, svc domain.Service, number int) domain.PayApplicationResponse {
	t.Helper()
	resp, err := svc.Create(orgCtx(), domain.CreateRequest{
		ProjectID:    testProjectID.String(),
		PayAppNumber: number,
		PeriodFrom:   "2024-04-01",
		PeriodTo:     "2024-04-30",
	})
	require.NoError(t, err)
	return resp
}

func setWork(t *testing.T, svc domain.Service, lineItemID snowflake.ID, amount string) domain.UpdateLineItemResponse {
	t.Helper()
	value := decimal.RequireFromString(amount)
	resp, err := svc.UpdateLineItem(orgCtx(), domain.UpdateLineItemRequest{
		ID:                      lineItemID.String(),
		WorkCompletedThisPeriod: &value,
	})
	require.NoError(t, err)
	return resp
}

func advance(t *testing.T, svc domain.Service, id snowflake.ID, statuses ...domain.Status) {
	t.Helper()
	for _, status := range statuses {
		_, err := svc.Transition(orgCtx(), domain.TransitionRequest{ID: id.String(), Status: string(status)})
		require.NoError(t, err)
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestCreateSeedsOneLinePerSOVItem(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	second := f.seedSOV(t, "02", "5000", "10", 2)
	first := f.seedSOV(t, "01", "1000", "10", 1)

	resp := createDraft(t, svc, 1)

	assert.Equal(t, domain.StatusDraft, resp.Status)
	require.Len(t, resp.LineItems, 2)
	assert.Equal(t, first, resp.LineItems[0].SOVLineItemID)
	assert.Equal(t, second, resp.LineItems[1].SOVLineItemID)
	for _, line := range resp.LineItems {
		assertDecimal(t, "0", line.WorkCompletedPrevious)
		assertDecimal(t, "0", line.WorkCompletedThisPeriod)
		assertDecimal(t, "0", line.MaterialsStored)
		assert.False(t, line.CertifiedThisPeriod.Valid)
	}
	assert.Empty(t, resp.Warnings)
}

func TestScenarioAFirstPeriodTotals(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "100000", "10", 1)

	payApp := createDraft(t, svc, 1)
	resp := setWork(t, svc, payApp.LineItems[0].ID, "20000")

	assertDecimal(t, "2000", resp.Totals.RetainageHeld)
	assertDecimal(t, "18000", resp.Totals.NetPayment)
	assertDecimal(t, "20", resp.Totals.PctComplete)
	assertDecimal(t, "20000", resp.LineItem.CertifiedAmount)
	assertDecimal(t, "80000", resp.LineItem.BalanceToFinish)
}

func TestScenarioBCarriesCertifiedWorkForward(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "100000", "10", 1)

	first := createDraft(t, svc, 1)
	setWork(t, svc, first.LineItems[0].ID, "20000")
	advance(t, svc, first.ID, domain.StatusSubmitted, domain.StatusCertified)

	second := createDraft(t, svc, 2)
	require.Len(t, second.LineItems, 1)
	assertDecimal(t, "20000", second.LineItems[0].WorkCompletedPrevious)
}

func TestCertifiedPeriodIgnoresLaterScheduleEdits(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	sovID := f.seedSOV(t, "01", "100000", "10", 1)

	first := createDraft(t, svc, 1)
	setWork(t, svc, first.LineItems[0].ID, "20000")
	advance(t, svc, first.ID, domain.StatusSubmitted, domain.StatusCertified)

	require.NoError(t, f.db.Model(&sovdomain.LineItem{}).Where("id = ?", sovID).Updates(map[string]any{
		"scheduled_value": decimal.RequireFromString("40000"),
		"retainage_pct":   decimal.RequireFromString("50"),
	}).Error)

	certified, err := svc.Get(orgCtx(), first.ID.String())
	require.NoError(t, err)
	assertDecimal(t, "2000", certified.Totals.RetainageHeld)
	assertDecimal(t, "18000", certified.Totals.NetPayment)
	assertDecimal(t, "20", certified.Totals.PctComplete)
	require.Len(t, certified.LineItems, 1)
	assertDecimal(t, "100000", certified.LineItems[0].ScheduledValue)
	assertDecimal(t, "10", certified.LineItems[0].RetainagePct)

	period, err := svc.Totals(orgCtx(), first.ID.String())
	require.NoError(t, err)
	assertDecimal(t, "2000", period.RetainageHeld)

	// The next draft bills against the edited schedule.
	second := createDraft(t, svc, 2)
	require.Len(t, second.LineItems, 1)
	assertDecimal(t, "40000", second.LineItems[0].ScheduledValue)
	assertDecimal(t, "50", second.LineItems[0].RetainagePct)
}

func TestScenarioCRetainageOverride(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "100000", "10", 1)

	first := createDraft(t, svc, 1)
	setWork(t, svc, first.LineItems[0].ID, "20000")
	advance(t, svc, first.ID, domain.StatusSubmitted, domain.StatusCertified)

	second := createDraft(t, svc, 2)
	work := decimal.RequireFromString("30000")
	pct := decimal.RequireFromString("5")
	resp, err := svc.UpdateLineItem(orgCtx(), domain.UpdateLineItemRequest{
		ID:                      second.LineItems[0].ID.String(),
		WorkCompletedThisPeriod: &work,
		RetainagePctOverride:    &pct,
	})
	require.NoError(t, err)

	assertDecimal(t, "1500", resp.Totals.RetainageHeld)
	assertDecimal(t, "50000", resp.Totals.TotalEarned)
	assertDecimal(t, "50", resp.Totals.PctComplete)
	assertDecimal(t, "5", resp.LineItem.RetainagePct)
}

func TestCumulativePreviousUsesCertifiedOverride(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "100000", "10", 1)

	first := createDraft(t, svc, 1)
	work := decimal.RequireFromString("20000")
	certified := decimal.RequireFromString("15000")
	_, err := svc.UpdateLineItem(orgCtx(), domain.UpdateLineItemRequest{
		ID:                      first.LineItems[0].ID.String(),
		WorkCompletedThisPeriod: &work,
		CertifiedThisPeriod:     &certified,
	})
	require.NoError(t, err)
	advance(t, svc, first.ID, domain.StatusSubmitted, domain.StatusCertified, domain.StatusPaid)

	second := createDraft(t, svc, 2)
	setWork(t, svc, second.LineItems[0].ID, "10000")

	// A submitted period is not billed yet and must not feed the next one.
	advance(t, svc, second.ID, domain.StatusSubmitted)
	third := createDraft(t, svc, 3)
	assertDecimal(t, "15000", third.LineItems[0].WorkCompletedPrevious)

	advance(t, svc, second.ID, domain.StatusCertified)
	fourth := createDraft(t, svc, 4)
	assertDecimal(t, "25000", fourth.LineItems[0].WorkCompletedPrevious)
}

func TestCreateAssignsNextNumber(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())

	assert.Equal(t, 1, createDraft(t, svc, 0).PayAppNumber)
	assert.Equal(t, 7, createDraft(t, svc, 7).PayAppNumber)
	assert.Equal(t, 8, createDraft(t, svc, 0).PayAppNumber)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	createDraft(t, svc, 1)

	tests := []struct {
		name string
		req  domain.CreateRequest
		want error
	}{
		{"duplicate number", domain.CreateRequest{ProjectID: testProjectID.String(), PayAppNumber: 1, PeriodFrom: "2024-05-01", PeriodTo: "2024-05-31"}, domain.ErrDuplicatePayAppNumber},
		{"inverted period", domain.CreateRequest{ProjectID: testProjectID.String(), PeriodFrom: "2024-05-31", PeriodTo: "2024-05-01"}, domain.ErrInvalidPeriodRange},
		{"bad date", domain.CreateRequest{ProjectID: testProjectID.String(), PeriodFrom: "May 1", PeriodTo: "2024-05-31"}, domain.ErrInvalidPeriodFrom},
		{"missing project", domain.CreateRequest{PeriodFrom: "2024-05-01", PeriodTo: "2024-05-31"}, domain.ErrInvalidProject},
		{"negative number", domain.CreateRequest{ProjectID: testProjectID.String(), PayAppNumber: -1, PeriodFrom: "2024-05-01", PeriodTo: "2024-05-31"}, domain.ErrInvalidPayAppNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(orgCtx(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, billingerr.ErrValidation)
		})
	}

	_, err := svc.Create(context.Background(), domain.CreateRequest{ProjectID: testProjectID.String(), PeriodFrom: "2024-05-01", PeriodTo: "2024-05-31"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

type failingSOVRepo struct {
	sovdomain.Repository
}

func (failingSOVRepo) ListByProject(context.Context, *gorm.DB, snowflake.ID, snowflake.ID) ([]*sovdomain.LineItem, error) {
	return nil, errors.New("connection reset")
}

func TestCreateRollsBackWhenSeedingFails(t *testing.T) {
	f := setup(t)
	f.seedSOV(t, "01", "1000", "10", 1)
	svc := f.service(t, config.DefaultBillingPolicy(), func(p *Params) {
		p.SOVRepo = failingSOVRepo{Repository: sovrepository.Provide()}
	})

	_, err := svc.Create(orgCtx(), domain.CreateRequest{ProjectID: testProjectID.String(), PeriodFrom: "2024-04-01", PeriodTo: "2024-04-30"})
	require.Error(t, err)
	assert.Nil(t, billingerr.Kind(err))

	var count int64
	require.NoError(t, f.db.Model(&domain.PayApplication{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&domain.LineItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "1000", "10", 1)

	const workers = 6
	numbers := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Create(orgCtx(), domain.CreateRequest{ProjectID: testProjectID.String(), PeriodFrom: "2024-04-01", PeriodTo: "2024-04-30"})
			if assert.NoError(t, err) {
				numbers <- resp.PayAppNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[int]bool{}
	for n := range numbers {
		assert.False(t, seen[n], "number %d assigned twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
}

func TestTransitionIsForwardOnly(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	payApp := createDraft(t, svc, 1)
	id := payApp.ID.String()

	tests := []struct {
		from   string
		target domain.Status
	}{
		{"draft", domain.StatusCertified},
		{"draft", domain.StatusPaid},
		{"draft", domain.StatusDraft},
	}
	for _, tt := range tests {
		_, err := svc.Transition(orgCtx(), domain.TransitionRequest{ID: id, Status: string(tt.target)})
		assert.ErrorIs(t, err, billingerr.ErrInvalidTransition, "%s -> %s", tt.from, tt.target)
	}

	advance(t, svc, payApp.ID, domain.StatusSubmitted)
	for _, target := range []domain.Status{domain.StatusDraft, domain.StatusSubmitted, domain.StatusPaid} {
		_, err := svc.Transition(orgCtx(), domain.TransitionRequest{ID: id, Status: string(target)})
		assert.ErrorIs(t, err, billingerr.ErrInvalidTransition, "submitted -> %s", target)
	}

	advance(t, svc, payApp.ID, domain.StatusCertified, domain.StatusPaid)
	for _, target := range []domain.Status{domain.StatusDraft, domain.StatusSubmitted, domain.StatusCertified, domain.StatusPaid} {
		_, err := svc.Transition(orgCtx(), domain.TransitionRequest{ID: id, Status: string(target)})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "paid -> %s", target)
	}

	_, err := svc.Transition(orgCtx(), domain.TransitionRequest{ID: id, Status: "approved"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = svc.Transition(orgCtx(), domain.TransitionRequest{ID: "424242", Status: "submitted"})
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
}

func TestTransitionStampsDatesAndCertifier(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	payApp := createDraft(t, svc, 1)
	ctx := auditcontext.WithActor(orgCtx(), auditcontext.ActorTypeUser, "architect-7")

	submitted, err := svc.Transition(ctx, domain.TransitionRequest{ID: payApp.ID.String(), Status: "submitted"})
	require.NoError(t, err)
	require.NotNil(t, submitted.SubmittedDate)
	assert.Nil(t, submitted.CertifiedDate)

	f.clock.Advance(24 * time.Hour)
	certified, err := svc.Transition(ctx, domain.TransitionRequest{ID: payApp.ID.String(), Status: "certified"})
	require.NoError(t, err)
	require.NotNil(t, certified.CertifiedDate)
	assert.True(t, certified.CertifiedDate.After(*submitted.SubmittedDate))
	require.NotNil(t, certified.CertifiedBy)
	assert.Equal(t, "architect-7", *certified.CertifiedBy)

	paid, err := svc.Transition(ctx, domain.TransitionRequest{ID: payApp.ID.String(), Status: "paid"})
	require.NoError(t, err)
	require.NotNil(t, paid.PaidDate)

	var entries []auditdomain.AuditLog
	require.NoError(t, f.db.Order("id").Find(&entries).Error)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{
		auditdomain.ActionPayApplicationCreated,
		auditdomain.ActionPayApplicationSubmitted,
		auditdomain.ActionPayApplicationCertified,
		auditdomain.ActionPayApplicationPaid,
	}, actions)
}

func TestUpdateLineItemRequiresEditableParent(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "1000", "10", 1)
	payApp := createDraft(t, svc, 1)
	lineID := payApp.LineItems[0].ID

	advance(t, svc, payApp.ID, domain.StatusSubmitted)
	setWork(t, svc, lineID, "100")

	advance(t, svc, payApp.ID, domain.StatusCertified)
	value := decimal.RequireFromString("200")
	_, err := svc.UpdateLineItem(orgCtx(), domain.UpdateLineItemRequest{ID: lineID.String(), WorkCompletedThisPeriod: &value})
	assert.ErrorIs(t, err, domain.ErrPayAppNotEditable)
	assert.ErrorIs(t, err, billingerr.ErrInvalidState)

	got, err := svc.Get(orgCtx(), payApp.ID.String())
	require.NoError(t, err)
	assertDecimal(t, "100", got.LineItems[0].WorkCompletedThisPeriod)
}

func TestUpdateLineItemValidation(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "1000", "10", 1)
	lineID := createDraft(t, svc, 1).LineItems[0].ID.String()

	negative := decimal.RequireFromString("-1")
	fraction := decimal.RequireFromString("1.005")
	over := decimal.RequireFromString("100.5")
	five := decimal.RequireFromString("5")

	tests := []struct {
		name string
		req  domain.UpdateLineItemRequest
		want error
	}{
		{"negative work", domain.UpdateLineItemRequest{ID: lineID, WorkCompletedThisPeriod: &negative}, domain.ErrInvalidWorkCompleted},
		{"sub-cent materials", domain.UpdateLineItemRequest{ID: lineID, MaterialsStored: &fraction}, domain.ErrInvalidMaterialsStored},
		{"negative certified", domain.UpdateLineItemRequest{ID: lineID, CertifiedThisPeriod: &negative}, domain.ErrInvalidCertifiedAmount},
		{"percent above 100", domain.UpdateLineItemRequest{ID: lineID, RetainagePctOverride: &over}, domain.ErrInvalidRetainagePct},
		{"set and clear", domain.UpdateLineItemRequest{ID: lineID, RetainagePctOverride: &five, ClearRetainagePctOverride: true}, domain.ErrConflictingOverride},
		{"unknown line", domain.UpdateLineItemRequest{ID: "777", WorkCompletedThisPeriod: &five}, domain.ErrLineItemNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateLineItem(orgCtx(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOverridePrecedenceAndClearing(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "10000", "10", 1)
	lineID := createDraft(t, svc, 1).LineItems[0].ID.String()

	work := decimal.RequireFromString("4000")
	certified := decimal.RequireFromString("3000")
	pct := decimal.RequireFromString("0")
	resp, err := svc.UpdateLineItem(orgCtx(), domain.UpdateLineItemRequest{
		ID:                      lineID,
		WorkCompletedThisPeriod: &work,
		CertifiedThisPeriod:     &certified,
		RetainagePctOverride:    &pct,
	})
	require.NoError(t, err)
	assertDecimal(t, "3000", resp.Totals.CertifiedThisPeriod)
	assertDecimal(t, "0", resp.Totals.RetainageHeld)

	resp, err = svc.UpdateLineItem(orgCtx(), domain.UpdateLineItemRequest{
		ID:                        lineID,
		ClearCertifiedThisPeriod:  true,
		ClearRetainagePctOverride: true,
	})
	require.NoError(t, err)
	assert.False(t, resp.LineItem.CertifiedThisPeriod.Valid)
	assert.False(t, resp.LineItem.RetainagePctOverride.Valid)
	assertDecimal(t, "4000", resp.Totals.CertifiedThisPeriod)
	assertDecimal(t, "400", resp.Totals.RetainageHeld)
}

func TestOverBillingWarnsByDefault(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "1000", "10", 1)
	payApp := createDraft(t, svc, 1)

	resp := setWork(t, svc, payApp.LineItems[0].ID, "1250")
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, domain.WarningOverBilled, resp.Warnings[0].Code)
	assertDecimal(t, "250", resp.Warnings[0].Amount)
	assert.True(t, resp.LineItem.OverBilled)

	got, err := svc.Get(orgCtx(), payApp.ID.String())
	require.NoError(t, err)
	assert.Len(t, got.Warnings, 1)
}

func TestOverBillingRejectPolicy(t *testing.T) {
	f := setup(t)
	reject := config.BillingPolicy{OverBilling: config.OverBillingReject}
	warnSvc := f.service(t, config.DefaultBillingPolicy())
	rejectSvc := f.service(t, reject)
	f.seedSOV(t, "01", "1000", "10", 1)
	payApp := createDraft(t, warnSvc, 1)
	lineID := payApp.LineItems[0].ID

	value := decimal.RequireFromString("1000.01")
	_, err := rejectSvc.UpdateLineItem(orgCtx(), domain.UpdateLineItemRequest{ID: lineID.String(), WorkCompletedThisPeriod: &value})
	assert.ErrorIs(t, err, domain.ErrOverBilledLineItem)

	setWork(t, rejectSvc, lineID, "1000")

	// Written while the policy allowed it, blocked at certification.
	setWork(t, warnSvc, lineID, "1100")
	advance(t, rejectSvc, payApp.ID, domain.StatusSubmitted)
	_, err = rejectSvc.Transition(orgCtx(), domain.TransitionRequest{ID: payApp.ID.String(), Status: "certified"})
	assert.ErrorIs(t, err, domain.ErrOverBilledLineItem)

	got, err := rejectSvc.Get(orgCtx(), payApp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.Status)
}

func TestUpdateHeaderAndNotes(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	payApp := createDraft(t, svc, 1)
	id := payApp.ID.String()

	name := "  Acme Builders "
	to := "2024-05-15"
	resp, err := svc.Update(orgCtx(), domain.UpdateRequest{ID: id, ContractorName: &name, PeriodTo: &to})
	require.NoError(t, err)
	assert.Equal(t, "Acme Builders", resp.ContractorName)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), resp.PeriodTo.UTC())

	bad := "2024-03-01"
	_, err = svc.Update(orgCtx(), domain.UpdateRequest{ID: id, PeriodTo: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriodRange)

	advance(t, svc, payApp.ID, domain.StatusSubmitted, domain.StatusCertified, domain.StatusPaid)
	_, err = svc.Update(orgCtx(), domain.UpdateRequest{ID: id, ContractorName: &name})
	assert.ErrorIs(t, err, domain.ErrPayAppNotEditable)

	notes := "Check 1044 cleared"
	resp, err = svc.Update(orgCtx(), domain.UpdateRequest{ID: id, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, resp.Notes)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	f.seedSOV(t, "01", "1000", "10", 1)
	draft := createDraft(t, svc, 1)
	submitted := createDraft(t, svc, 2)
	advance(t, svc, submitted.ID, domain.StatusSubmitted)

	err := svc.Delete(orgCtx(), submitted.ID.String())
	assert.ErrorIs(t, err, domain.ErrPayAppNotDraft)

	require.NoError(t, svc.Delete(orgCtx(), draft.ID.String()))
	_, err = svc.Get(orgCtx(), draft.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&domain.LineItem{}).Where("pay_app_id = ?", draft.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListFiltersAndOrders(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	first := createDraft(t, svc, 1)
	createDraft(t, svc, 2)
	createDraft(t, svc, 3)
	advance(t, svc, first.ID, domain.StatusSubmitted)

	all, err := svc.List(orgCtx(), domain.ListRequest{ProjectID: testProjectID.String(), Order: "desc"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{all[0].PayAppNumber, all[1].PayAppNumber, all[2].PayAppNumber})

	drafts, err := svc.List(orgCtx(), domain.ListRequest{ProjectID: testProjectID.String(), Status: "draft"})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, 2, drafts[0].PayAppNumber)

	_, err = svc.List(orgCtx(), domain.ListRequest{ProjectID: testProjectID.String(), Status: "void"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestTotalsForEmptyScheduleIsZero(t *testing.T) {
	f := setup(t)
	svc := f.service(t, config.DefaultBillingPolicy())
	payApp := createDraft(t, svc, 1)

	got, err := svc.Totals(orgCtx(), payApp.ID.String())
	require.NoError(t, err)
	assertDecimal(t, "0", got.PctComplete)
	assertDecimal(t, "0", got.NetPayment)
}

type stubRenderer struct {
	got domain.PayApplicationResponse
}

func (r *stubRenderer) RenderPayApplication(_ context.Context, payApp domain.PayApplicationResponse) ([]byte, error) {
	r.got = payApp
	return []byte("%PDF-1.4"), nil
}

func TestDocument(t *testing.T) {
	f := setup(t)
	renderer := &stubRenderer{}
	svc := f.service(t, config.DefaultBillingPolicy(), func(p *Params) { p.Renderer = renderer })
	number := "C-17"
	resp, err := svc.Create(orgCtx(), domain.CreateRequest{
		ProjectID:      testProjectID.String(),
		PeriodFrom:     "2024-04-01",
		PeriodTo:       "2024-04-30",
		ContractNumber: &number,
	})
	require.NoError(t, err)

	doc, err := svc.Document(orgCtx(), resp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "pay-application-1-c-17.pdf", doc.FileName)
	assert.Equal(t, resp.ID, renderer.got.ID)

	bare := f.service(t, config.DefaultBillingPolicy())
	_, err = bare.Document(orgCtx(), resp.ID.String())
	assert.ErrorIs(t, err, ErrRendererUnavailable)
}
