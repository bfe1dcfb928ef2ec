package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	auditrepository "github.com/smallbiznis/progresspay/internal/audit/repository"
	auditservice "github.com/smallbiznis/progresspay/internal/audit/service"
	"github.com/smallbiznis/progresspay/internal/billingerr"
	"github.com/smallbiznis/progresspay/internal/clock"
	"github.com/smallbiznis/progresspay/internal/lienwaiver/domain"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	paydomain "github.com/smallbiznis/progresspay/internal/payapp/domain"
	payrepository "github.com/smallbiznis/progresspay/internal/payapp/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = snowflake.ID(10)

var testNow = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

func setup(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paydomain.PayApplication{}, &domain.LienWaiver{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(testNow)

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		PayAppRepo: payrepository.Provide(),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Repo:  auditrepository.Provide(),
			Clock: fake,
		}),
		Clock: fake,
	})
	return svc, db, fake
}

func seedPayApp(t *testing.T, db *gorm.DB, id snowflake.ID, status paydomain.Status) {
	t.Helper()
	require.NoError(t, db.Create(&paydomain.PayApplication{
		ID:           id,
		OrgID:        testOrgID,
		ProjectID:    500,
		PayAppNumber: int(id),
		PeriodFrom:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		PeriodTo:     time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		Status:       status,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}).Error)
}

func ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), testOrgID)
}

func request(payAppID snowflake.ID) domain.RecordRequest {
	amount := decimal.RequireFromString("18000")
	fileURL := "https://files.example.com/waivers/1.pdf"
	return domain.RecordRequest{
		PayAppID:    payAppID.String(),
		WaiverType:  string(domain.WaiverConditionalPartial),
		Amount:      &amount,
		ThroughDate: "2024-05-31",
		FileURL:     &fileURL,
	}
}

func TestRecordRejectsUnbilledPayApplication(t *testing.T) {
	svc, db, _ := setup(t)
	seedPayApp(t, db, 1, paydomain.StatusDraft)
	seedPayApp(t, db, 2, paydomain.StatusSubmitted)

	for _, id := range []snowflake.ID{1, 2} {
		_, err := svc.Record(ctx(), request(id))
		assert.ErrorIs(t, err, billingerr.ErrInvalidState)
		assert.ErrorIs(t, err, domain.ErrPayAppNotBilled)
	}

	var count int64
	require.NoError(t, db.Model(&domain.LienWaiver{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordOnCertifiedAndPaid(t *testing.T) {
	svc, db, fake := setup(t)
	seedPayApp(t, db, 1, paydomain.StatusCertified)
	seedPayApp(t, db, 2, paydomain.StatusPaid)

	first, err := svc.Record(ctx(), request(1))
	require.NoError(t, err)
	assert.Equal(t, domain.WaiverConditionalPartial, first.WaiverType)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), first.ThroughDate)

	fake.Advance(time.Hour)
	final := request(1)
	final.WaiverType = "UNCONDITIONAL_FINAL"
	received := "2024-06-10"
	final.ReceivedDate = &received
	_, err = svc.Record(ctx(), final)
	require.NoError(t, err)

	_, err = svc.Record(ctx(), request(2))
	require.NoError(t, err)

	waivers, err := svc.List(ctx(), "1")
	require.NoError(t, err)
	require.Len(t, waivers, 2)
	assert.Equal(t, first.ID, waivers[0].ID)
	assert.Equal(t, domain.WaiverUnconditionalFinal, waivers[1].WaiverType)
	require.NotNil(t, waivers[1].ReceivedDate)
	assert.True(t, decimal.NewFromInt(18000).Equal(waivers[1].Amount))

	var entry auditdomain.AuditLog
	require.NoError(t, db.Where("action = ?", auditdomain.ActionLienWaiverRecorded).First(&entry).Error)
	assert.Equal(t, "lien_waiver", entry.TargetType)
}

func TestRecordValidation(t *testing.T) {
	svc, db, _ := setup(t)
	seedPayApp(t, db, 1, paydomain.StatusCertified)

	negative := decimal.RequireFromString("-5")
	fraction := decimal.RequireFromString("10.001")
	relative := "waivers/1.pdf"
	badDate := "31/05/2024"

	tests := []struct {
		name   string
		mutate func(*domain.RecordRequest)
		want   error
	}{
		{"unknown type", func(r *domain.RecordRequest) { r.WaiverType = "partial" }, domain.ErrInvalidWaiverType},
		{"missing amount", func(r *domain.RecordRequest) { r.Amount = nil }, domain.ErrInvalidAmount},
		{"negative amount", func(r *domain.RecordRequest) { r.Amount = &negative }, domain.ErrInvalidAmount},
		{"sub-cent amount", func(r *domain.RecordRequest) { r.Amount = &fraction }, domain.ErrInvalidAmount},
		{"missing through date", func(r *domain.RecordRequest) { r.ThroughDate = "" }, domain.ErrInvalidThroughDate},
		{"bad received date", func(r *domain.RecordRequest) { r.ReceivedDate = &badDate }, domain.ErrInvalidReceivedDate},
		{"relative file url", func(r *domain.RecordRequest) { r.FileURL = &relative }, domain.ErrInvalidFileURL},
		{"bad pay app id", func(r *domain.RecordRequest) { r.PayAppID = "abc" }, domain.ErrInvalidPayApp},
		{"unknown pay app", func(r *domain.RecordRequest) { r.PayAppID = "99" }, domain.ErrPayAppNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(1)
			tt.mutate(&req)
			_, err := svc.Record(ctx(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListIsScopedToOrganization(t *testing.T) {
	svc, db, _ := setup(t)
	seedPayApp(t, db, 1, paydomain.StatusCertified)
	_, err := svc.Record(ctx(), request(1))
	require.NoError(t, err)

	other := orgcontext.WithOrgID(context.Background(), snowflake.ID(11))
	_, err = svc.List(other, "1")
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
}
