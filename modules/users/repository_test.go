package users

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/cache/cachetest"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/database/dbtest"
	"github.com/taskhub/taskhub/logger"
)

const selectUserByID = "SELECT id, email, password_hash, display_name, created_at, updated_at FROM users WHERE id = $1"

type repoFixture struct {
	repo  *Repository
	mock  sqlmock.Sqlmock
	store *cachetest.Store
	svc   cache.Service
	keys  *cache.KeyBuilder
}

func newRepoFixture(t *testing.T) *repoFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := cachetest.NewStore()
	log := logger.New("disabled", false)
	svc, err := cache.NewService(store, nil, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	keys := cache.NewKeyBuilder("taskhub")
	repo := NewRepository(dbtest.New(db, database.PostgreSQL), svc, keys, log)

	return &repoFixture{repo: repo, mock: mock, store: store, svc: svc, keys: keys}
}

func userRows(u *User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "created_at", "updated_at"}).
		AddRow(u.ID.String(), u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt, u.UpdatedAt)
}

func sampleUser() *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$hash",
		DisplayName:  "Ada",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateInsertsAccount(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	f.mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "hash", "Ada", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := f.repo.Create(ctx, "ada@example.com", "hash", "Ada")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	f := newRepoFixture(t)

	f.mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := f.repo.Create(context.Background(), "ada@example.com", "hash", "Ada")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetByIDCachesSecondCall(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	want := sampleUser()

	// Single SQL expectation: the second read must come from cache.
	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).
		WithArgs(want.ID).
		WillReturnRows(userRows(want))

	first, fromCache, err := f.repo.GetByID(ctx, want.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.False(t, fromCache)
	assert.Equal(t, want.Email, first.Email)

	second, fromCache, err := f.repo.GetByID(ctx, want.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, fromCache)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.DisplayName, second.DisplayName)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetByIDUsesLongTier(t *testing.T) {
	f := newRepoFixture(t)
	want := sampleUser()

	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).WillReturnRows(userRows(want))

	_, _, err := f.repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)

	key := f.keys.UserKey(want.ID.String())
	assert.Equal(t, time.Hour, f.store.TTL(key))
}

func TestGetByIDAbsentIsNotCached(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	// Both calls hit SQL: absence must never be cached.
	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "created_at", "updated_at"}))
	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "created_at", "updated_at"}))

	for range 2 {
		user, fromCache, err := f.repo.GetByID(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.False(t, fromCache)
	}

	assert.Equal(t, 0, f.store.Len())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetByIDCachedPayloadOmitsPasswordHash(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	want := sampleUser()

	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).WillReturnRows(userRows(want))

	_, _, err := f.repo.GetByID(ctx, want.ID)
	require.NoError(t, err)

	cached, fromCache, err := f.repo.GetByID(ctx, want.ID)
	require.NoError(t, err)
	require.True(t, fromCache)
	assert.Empty(t, cached.PasswordHash, "credentials must not round-trip through the cache")
}

func TestGetByEmailBypassesCache(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	want := sampleUser()

	query := regexp.QuoteMeta("SELECT id, email, password_hash, display_name, created_at, updated_at FROM users WHERE email = $1")
	f.mock.ExpectQuery(query).WithArgs(want.Email).WillReturnRows(userRows(want))
	f.mock.ExpectQuery(query).WithArgs(want.Email).WillReturnRows(userRows(want))

	for range 2 {
		user, err := f.repo.GetByEmail(ctx, want.Email)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, want.PasswordHash, user.PasswordHash)
	}

	assert.Equal(t, 0, f.store.Len())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetByEmailAbsent(t *testing.T) {
	f := newRepoFixture(t)

	f.mock.ExpectQuery("SELECT .+ FROM users WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "created_at", "updated_at"}))

	user, err := f.repo.GetByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUpdateInvalidatesProfile(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	want := sampleUser()

	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).WillReturnRows(userRows(want))

	_, _, err := f.repo.GetByID(ctx, want.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.store.Len())

	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email = $1, display_name = $2, updated_at = $3 WHERE id = $4")).
		WithArgs("ada@new.example.com", "Ada L", sqlmock.AnyArg(), want.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	want.Email = "ada@new.example.com"
	want.DisplayName = "Ada L"
	found, err := f.repo.Update(ctx, want)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, 0, f.store.Len(), "profile key must be invalidated")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateAbsentAccount(t *testing.T) {
	f := newRepoFixture(t)

	f.mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := f.repo.Update(context.Background(), sampleUser())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateDuplicateEmail(t *testing.T) {
	f := newRepoFixture(t)

	f.mock.ExpectExec("UPDATE users SET").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := f.repo.Update(context.Background(), sampleUser())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDeleteRemovesAccountAndCache(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	otherID := uuid.New()
	uid := userID.String()

	// Seed cached state for this user and for a bystander.
	f.svc.Write(ctx, f.keys.TaskListKey(uid, nil), []byte("tasks"), cache.TierShort)
	f.svc.Write(ctx, f.keys.CategoryListKey(uid), []byte("cats"), cache.TierMedium)
	f.svc.Write(ctx, f.keys.UserKey(uid), []byte("profile"), cache.TierLong)
	otherKey := f.keys.UserKey(otherID.String())
	f.svc.Write(ctx, otherKey, []byte("other"), cache.TierLong)

	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE user_id = $1")).
		WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 3))
	f.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE user_id = $1")).
		WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	found, err := f.repo.Delete(ctx, userID)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, []string{otherKey}, f.store.Keys(), "only the bystander's key survives")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteAbsentAccount(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.svc.Write(ctx, f.keys.UserKey(userID.String()), []byte("profile"), cache.TierLong)

	f.mock.ExpectBegin()
	f.mock.ExpectExec("DELETE FROM tasks").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("DELETE FROM categories").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectCommit()

	found, err := f.repo.Delete(ctx, userID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, f.store.Len(), "no invalidation for an absent account")
}

func TestGetByIDDegradedCacheFallsThrough(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	want := sampleUser()
	f.store.WithGetFailure(cache.NewConnectionError("get", "localhost:6379", assert.AnError))

	// Every read goes to SQL while the cache is down.
	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).WillReturnRows(userRows(want))
	f.mock.ExpectQuery(regexp.QuoteMeta(selectUserByID)).WillReturnRows(userRows(want))

	for range 2 {
		user, fromCache, err := f.repo.GetByID(ctx, want.ID)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.False(t, fromCache)
	}

	assert.NoError(t, f.mock.ExpectationsWereMet())
}
