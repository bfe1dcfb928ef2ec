package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/progresspay/internal/billingerr"
	"github.com/smallbiznis/progresspay/internal/clock"
	"github.com/smallbiznis/progresspay/internal/config"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	paydomain "github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/internal/sov/domain"
	"github.com/smallbiznis/progresspay/internal/sov/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testOrgID     = snowflake.ID(10)
	testProjectID = snowflake.ID(500)
)

func setup(t *testing.T, policy config.BillingPolicy) (domain.Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.LineItem{}, &paydomain.LineItem{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		Policy: config.NewStaticBillingPolicy(policy),
		Clock:  clock.NewFakeClock(time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)),
	})
	return svc, db
}

func ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), testOrgID)
}

func str(v string) *string { return &v }

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func create(t *testing.T, svc domain.Service, number, scheduled string) domain.LineItem {
	t.Helper()
	resp, err := svc.Upsert(ctx(), domain.UpsertRequest{
		ProjectID:      testProjectID.String(),
		ItemNumber:     str(number),
		Description:    str("Work " + number),
		ScheduledValue: dec(scheduled),
		RetainagePct:   dec("10"),
	})
	require.NoError(t, err)
	require.True(t, resp.Created)
	return resp.Item
}

func TestUpsertCreatesAndAppendsSortOrder(t *testing.T) {
	svc, _ := setup(t, config.DefaultBillingPolicy())

	first := create(t, svc, "01", "1000")
	second := create(t, svc, "02", "2500.50")
	assert.Equal(t, 1, first.SortOrder)
	assert.Equal(t, 2, second.SortOrder)

	items, err := svc.List(ctx(), testProjectID.String())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "01", items[0].ItemNumber)
	assert.True(t, decimal.RequireFromString("2500.50").Equal(items[1].ScheduledValue))
}

func TestUpsertDefaultsRetainageFromPolicy(t *testing.T) {
	svc, _ := setup(t, config.BillingPolicy{OverBilling: config.OverBillingWarn, DefaultRetainagePct: 5})

	resp, err := svc.Upsert(ctx(), domain.UpsertRequest{
		ProjectID:      testProjectID.String(),
		ItemNumber:     str("01"),
		ScheduledValue: dec("1000"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(resp.Item.RetainagePct))
}

func TestUpsertUpdatesInPlace(t *testing.T) {
	svc, _ := setup(t, config.DefaultBillingPolicy())
	item := create(t, svc, "01", "1000")

	resp, err := svc.Upsert(ctx(), domain.UpsertRequest{
		ID:             item.ID.String(),
		ScheduledValue: dec("1200"),
		Description:    str("Sitework, revised"),
	})
	require.NoError(t, err)
	assert.False(t, resp.Created)
	assert.Equal(t, "01", resp.Item.ItemNumber)
	assert.Equal(t, "Sitework, revised", resp.Item.Description)

	got, err := svc.Get(ctx(), item.ID.String())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1200).Equal(got.ScheduledValue))
	assert.True(t, decimal.NewFromInt(10).Equal(got.RetainagePct))
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := setup(t, config.DefaultBillingPolicy())
	existing := create(t, svc, "01", "1000")
	create(t, svc, "02", "1000")

	tests := []struct {
		name string
		req  domain.UpsertRequest
		want error
	}{
		{"negative value", domain.UpsertRequest{ProjectID: testProjectID.String(), ItemNumber: str("03"), ScheduledValue: dec("-1")}, domain.ErrInvalidScheduledValue},
		{"sub-cent value", domain.UpsertRequest{ProjectID: testProjectID.String(), ItemNumber: str("03"), ScheduledValue: dec("10.001")}, domain.ErrInvalidMoneyPrecision},
		{"percent above 100", domain.UpsertRequest{ProjectID: testProjectID.String(), ItemNumber: str("03"), ScheduledValue: dec("10"), RetainagePct: dec("101")}, domain.ErrInvalidRetainagePct},
		{"blank number", domain.UpsertRequest{ProjectID: testProjectID.String(), ItemNumber: str("  "), ScheduledValue: dec("10")}, domain.ErrInvalidItemNumber},
		{"duplicate number", domain.UpsertRequest{ProjectID: testProjectID.String(), ItemNumber: str("01"), ScheduledValue: dec("10")}, domain.ErrDuplicateItemNumber},
		{"rename onto sibling", domain.UpsertRequest{ID: existing.ID.String(), ItemNumber: str("02")}, domain.ErrDuplicateItemNumber},
		{"move project", domain.UpsertRequest{ID: existing.ID.String(), ProjectID: "501"}, domain.ErrProjectMismatch},
		{"unknown id", domain.UpsertRequest{ID: "9999", ScheduledValue: dec("10")}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpsertRequiresOrganization(t *testing.T) {
	svc, _ := setup(t, config.DefaultBillingPolicy())
	_, err := svc.Upsert(context.Background(), domain.UpsertRequest{ProjectID: testProjectID.String(), ItemNumber: str("01"), ScheduledValue: dec("1")})
	assert.ErrorIs(t, err, billingerr.ErrValidation)
}

func TestDeleteReferencedItemFails(t *testing.T) {
	svc, db := setup(t, config.DefaultBillingPolicy())
	referenced := create(t, svc, "01", "1000")
	free := create(t, svc, "02", "1000")

	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&paydomain.LineItem{
		ID:                      1,
		OrgID:                   testOrgID,
		PayAppID:                77,
		SOVLineItemID:           referenced.ID,
		WorkCompletedPrevious:   decimal.Zero,
		WorkCompletedThisPeriod: decimal.Zero,
		MaterialsStored:         decimal.Zero,
		CreatedAt:               now,
		UpdatedAt:               now,
	}).Error)

	err := svc.Delete(ctx(), referenced.ID.String())
	assert.ErrorIs(t, err, domain.ErrItemReferenced)
	assert.ErrorIs(t, err, billingerr.ErrReferencedEntity)

	_, err = svc.Get(ctx(), referenced.ID.String())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx(), free.ID.String()))
	_, err = svc.Get(ctx(), free.ID.String())
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
}

func TestItemsAreScopedToOrganization(t *testing.T) {
	svc, _ := setup(t, config.DefaultBillingPolicy())
	item := create(t, svc, "01", "1000")

	other := orgcontext.WithOrgID(context.Background(), snowflake.ID(11))
	_, err := svc.Get(other, item.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := svc.List(other, testProjectID.String())
	require.NoError(t, err)
	assert.Empty(t, items)
}
