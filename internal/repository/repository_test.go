package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inteliroute/internal/database"
	"inteliroute/internal/model"
)

// newTestDB opens a private in-memory sqlite database with the full schema.
// The shared-cache DSN keeps every pooled connection on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedTenant(t *testing.T, db *gorm.DB) model.Tenant {
	t.Helper()
	tenant := model.Tenant{Name: "Acme", IsActive: true}
	require.NoError(t, db.Create(&tenant).Error)
	return tenant
}

func seedMailbox(t *testing.T, db *gorm.DB, tenantID uint, address string, active bool) model.Mailbox {
	t.Helper()
	mb := model.Mailbox{
		TenantID:        tenantID,
		Provider:        "gmail",
		Address:         address,
		IsActive:        active,
		PollIntervalSec: 60,
	}
	require.NoError(t, db.Create(&mb).Error)
	return mb
}

func seedMessage(t *testing.T, db *gorm.DB, tenantID, mailboxID uint, externalID string, status model.RouteStatus) model.Message {
	t.Helper()
	msg := model.Message{
		TenantID:          tenantID,
		MailboxID:         mailboxID,
		ExternalMessageID: externalID,
		Subject:           "subject " + externalID,
		ReceivedAt:        time.Now().UTC(),
		RouteStatus:       status,
	}
	require.NoError(t, db.Create(&msg).Error)
	return msg
}

func TestMessageUniqueConstraint(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	seedMessage(t, db, tenant.ID, mb.ID, "g1", model.StatusNew)

	err := repo.CreateBatch(ctx, []model.Message{{
		TenantID:          tenant.ID,
		MailboxID:         mb.ID,
		ExternalMessageID: "g1",
		ReceivedAt:        time.Now().UTC(),
		RouteStatus:       model.StatusNew,
	}})
	assert.Error(t, err, "same (mailbox, external id) must be rejected by the unique index")

	exists, err := repo.Exists(ctx, mb.ID, "g1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, mb.ID, "g2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSameExternalIDAcrossMailboxes(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb1 := seedMailbox(t, db, tenant.ID, "one@x.com", true)
	mb2 := seedMailbox(t, db, tenant.ID, "two@x.com", true)
	ctx := context.Background()

	seedMessage(t, db, tenant.ID, mb1.ID, "g1", model.StatusNew)

	err := NewMessageRepository(db).CreateBatch(ctx, []model.Message{{
		TenantID:          tenant.ID,
		MailboxID:         mb2.ID,
		ExternalMessageID: "g1",
		ReceivedAt:        time.Now().UTC(),
		RouteStatus:       model.StatusNew,
	}})
	assert.NoError(t, err, "uniqueness is scoped per mailbox")
}

func TestListPendingExcludesTerminal(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	first := seedMessage(t, db, tenant.ID, mb.ID, "g1", model.StatusNew)
	seedMessage(t, db, tenant.ID, mb.ID, "g2", model.StatusRouted)
	seedMessage(t, db, tenant.ID, mb.ID, "g3", model.StatusTriage)
	seedMessage(t, db, tenant.ID, mb.ID, "g4", model.StatusFailed)
	second := seedMessage(t, db, tenant.ID, mb.ID, "g5", model.StatusNew)

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Equal(t, second.ID, pending[1].ID)

	limited, err := repo.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)
}

func TestUpdateClearsRoutingFields(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	msg := seedMessage(t, db, tenant.ID, mb.ID, "g1", model.StatusNew)

	label := "Sales"
	conf := 0.9
	deptID := uint(3)
	email := "sales@x.com"
	msg.RouteStatus = model.StatusRouted
	msg.PredictedLabel = &label
	msg.Confidence = &conf
	msg.RoutedDeptID = &deptID
	msg.RoutedEmail = &email
	require.NoError(t, repo.Update(ctx, &msg))

	// Overwrite with a triage decision: routed fields go back to nil.
	reason := "Below confidence threshold (0.30 < 0.50)."
	msg.RouteStatus = model.StatusTriage
	msg.RoutedDeptID = nil
	msg.RoutedEmail = nil
	msg.ErrorMessage = &reason
	require.NoError(t, repo.Update(ctx, &msg))

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusTriage, got.RouteStatus)
	assert.Nil(t, got.RoutedDeptID)
	assert.Nil(t, got.RoutedEmail)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, reason, *got.ErrorMessage)
	require.NotNil(t, got.PredictedLabel, "label from the earlier update survives")
	assert.Equal(t, "Sales", *got.PredictedLabel)
}

func TestRequeue(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	msg := seedMessage(t, db, tenant.ID, mb.ID, "g1", model.StatusFailed)
	errText := "smtp connect refused"
	msg.ErrorMessage = &errText
	require.NoError(t, repo.Update(ctx, &msg))

	require.NoError(t, repo.Requeue(ctx, msg.ID))

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusNew, got.RouteStatus)
	assert.Nil(t, got.PredictedLabel)
	assert.Nil(t, got.Confidence)
	assert.Nil(t, got.RoutedDeptID)
	assert.Nil(t, got.RoutedEmail)
	assert.Nil(t, got.ErrorMessage)

	// Already pending: nothing to requeue.
	assert.ErrorIs(t, repo.Requeue(ctx, msg.ID), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Requeue(ctx, 9999), gorm.ErrRecordNotFound)
}

func TestCountByStatus(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	seedMessage(t, db, tenant.ID, mb.ID, "g1", model.StatusNew)
	seedMessage(t, db, tenant.ID, mb.ID, "g2", model.StatusNew)
	seedMessage(t, db, tenant.ID, mb.ID, "g3", model.StatusRouted)

	pending, err := repo.CountByStatus(ctx, model.StatusNew)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	routed, err := repo.CountByStatus(ctx, model.StatusRouted)
	require.NoError(t, err)
	assert.Equal(t, int64(1), routed)
}

func TestListDueForPolling(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewMailboxRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	never := seedMailbox(t, db, tenant.ID, "never@x.com", true)

	stale := seedMailbox(t, db, tenant.ID, "stale@x.com", true)
	staleSync := now.Add(-2 * time.Minute)
	require.NoError(t, db.Model(&stale).Update("last_sync_at", staleSync).Error)

	fresh := seedMailbox(t, db, tenant.ID, "fresh@x.com", true)
	freshSync := now.Add(-10 * time.Second)
	require.NoError(t, db.Model(&fresh).Update("last_sync_at", freshSync).Error)

	seedMailbox(t, db, tenant.ID, "off@x.com", false)

	due, err := repo.ListDueForPolling(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, never.ID, due[0].ID, "never-synced mailbox is always due")
	assert.Equal(t, stale.ID, due[1].ID)
}

func TestAdvanceCursor(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	repo := NewMailboxRepository(db)
	ctx := context.Background()

	syncedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.AdvanceCursor(ctx, mb.ID, "105", syncedAt))

	got, err := repo.GetByID(ctx, mb.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "105", got.Cursor)
	require.NotNil(t, got.LastSyncAt)
	assert.WithinDuration(t, syncedAt, *got.LastSyncAt, time.Second)

	assert.Error(t, repo.AdvanceCursor(ctx, 9999, "1", syncedAt))
}

func TestUpsertByAddress(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewMailboxRepository(db)
	ctx := context.Background()

	created, err := repo.UpsertByAddress(ctx, tenant.ID, "  in@x.com ")
	require.NoError(t, err)
	assert.Equal(t, "in@x.com", created.Address)
	assert.Empty(t, created.Cursor, "new mailboxes start unprimed")
	assert.True(t, created.IsActive)

	require.NoError(t, repo.SetActive(ctx, tenant.ID, created.ID, false))

	again, err := repo.UpsertByAddress(ctx, tenant.ID, "in@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID, "same address reuses the row")
	assert.True(t, again.IsActive, "upsert reactivates")
}

func TestSetActiveExclusive(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewMailboxRepository(db)
	ctx := context.Background()

	a := seedMailbox(t, db, tenant.ID, "a@x.com", true)
	b := seedMailbox(t, db, tenant.ID, "b@x.com", true)
	c := seedMailbox(t, db, tenant.ID, "c@x.com", false)

	require.NoError(t, repo.SetActiveExclusive(ctx, tenant.ID, c.ID))

	boxes, err := repo.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	active := map[uint]bool{}
	for _, mb := range boxes {
		active[mb.ID] = mb.IsActive
	}
	assert.False(t, active[a.ID])
	assert.False(t, active[b.ID])
	assert.True(t, active[c.ID])

	assert.ErrorIs(t, repo.SetActiveExclusive(ctx, tenant.ID, 9999), gorm.ErrRecordNotFound)
}

func TestSetPollIntervalClamped(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	repo := NewMailboxRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SetPollInterval(ctx, tenant.ID, mb.ID, 5))
	got, err := repo.GetByID(ctx, mb.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MinPollIntervalSec, got.PollIntervalSec)

	require.NoError(t, repo.SetPollInterval(ctx, tenant.ID, mb.ID, 7200))
	got, err = repo.GetByID(ctx, mb.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MaxPollIntervalSec, got.PollIntervalSec)

	require.NoError(t, repo.SetPollInterval(ctx, tenant.ID, mb.ID, 120))
	got, err = repo.GetByID(ctx, mb.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, got.PollIntervalSec)
}

func TestDepartmentLifecycle(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewDepartmentRepository(db)
	ctx := context.Background()

	sales := model.Department{TenantID: tenant.ID, Name: "Sales", RoutingEmail: "sales@x.com", Enabled: true}
	require.NoError(t, repo.Create(ctx, &sales))
	other := model.Department{TenantID: tenant.ID, Name: "Other", RoutingEmail: "triage@x.com", Enabled: true}
	require.NoError(t, repo.Create(ctx, &other))

	deps, err := repo.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "Other", deps[0].Name, "ordered by name")

	require.NoError(t, repo.SetEnabled(ctx, sales.ID, false))
	enabled, err := repo.CountEnabled(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), enabled)

	deps, err = repo.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, deps, 2, "disabled departments stay listed for administration")

	sales.RoutingEmail = "sales-eu@x.com"
	sales.Enabled = true
	require.NoError(t, repo.Update(ctx, &sales))

	got, err := repo.GetByID(ctx, sales.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sales-eu@x.com", got.RoutingEmail)
	assert.True(t, got.Enabled)

	assert.ErrorIs(t, repo.SetEnabled(ctx, 9999, true), gorm.ErrRecordNotFound)
}

func TestRouteEventAuditTrail(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	mb := seedMailbox(t, db, tenant.ID, "in@x.com", true)
	msg := seedMessage(t, db, tenant.ID, mb.ID, "g1", model.StatusNew)
	repo := NewRouteEventRepository(db)
	ctx := context.Background()

	deptID := uint(3)
	require.NoError(t, repo.Append(ctx, &model.RouteEvent{
		MessageID: msg.ID, DepartmentID: &deptID,
		Action: model.ActionRouteToDepartment, Outcome: model.OutcomeFailed, Notes: "smtp down",
	}))
	require.NoError(t, repo.Append(ctx, &model.RouteEvent{
		MessageID: msg.ID,
		Action:    model.ActionSendToTriage, Outcome: model.OutcomeApplied,
	}))

	events, err := repo.ListByMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.OutcomeFailed, events[0].Outcome, "oldest first")
	assert.Equal(t, model.ActionSendToTriage, events[1].Action)

	events, err = repo.ListByMessage(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, events)
}
