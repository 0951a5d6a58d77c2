package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
)

// ErrEmailTaken reports a register or profile update that collides with an
// existing account's email.
var ErrEmailTaken = errors.New("email already registered")

// errAbsent short-circuits cache.Fetch so absent rows are never cached.
var errAbsent = errors.New("user not found")

const usersTable = "users"

var userColumns = []string{"id", "email", "password_hash", "display_name", "created_at", "updated_at"}

// Repository persists accounts and serves profile reads through the cache.
type Repository struct {
	db    database.Interface
	cache cache.Service
	keys  *cache.KeyBuilder
	qb    *database.QueryBuilder
	log   logger.Logger
}

// NewRepository creates an account repository over the given connection.
func NewRepository(db database.Interface, cacheSvc cache.Service, keys *cache.KeyBuilder, log logger.Logger) *Repository {
	return &Repository{
		db:    db,
		cache: cacheSvc,
		keys:  keys,
		qb:    database.NewQueryBuilder(db.DatabaseType()),
		log:   log,
	}
}

// Create inserts a new account. The caller provides the bcrypt hash; the
// repository fills ID and timestamps.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query, args, err := r.qb.InsertWithColumns(usersTable, userColumns...).
		Values(user.ID, user.Email, user.PasswordHash, user.DisplayName, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// GetByID returns the account with the given ID, served cache-aside on the
// long TTL tier. Absent accounts return (nil, false, nil).
func (r *Repository) GetByID(ctx context.Context, userID uuid.UUID) (*User, bool, error) {
	key := r.keys.UserKey(userID.String())

	user, fromCache, err := cache.Fetch(ctx, r.cache, key, cache.TierLong, func(ctx context.Context) (*User, error) {
		return r.fetchByID(ctx, userID)
	})
	if errors.Is(err, errAbsent) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, fromCache, nil
}

// GetByEmail returns the account with the given email, password hash
// included. It never touches the cache: this is the login path and must see
// the live row. Absent accounts return (nil, nil).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query, args, err := r.qb.Select(userColumns...).
		From(usersTable).
		Where(r.qb.Eq("email", email)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by email: %w", err)
	}

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, errAbsent) {
		return nil, nil
	}
	return user, err
}

// Update persists changed profile fields and invalidates the cached profile.
// It returns false when the account no longer exists.
func (r *Repository) Update(ctx context.Context, user *User) (bool, error) {
	user.UpdatedAt = time.Now().UTC()

	query, args, err := r.qb.Update(usersTable).
		Set("email", user.Email).
		Set("display_name", user.DisplayName).
		Set("updated_at", user.UpdatedAt).
		Where(r.qb.Eq("id", user.ID)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update user: %w", err)
	}

	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, ErrEmailTaken
		}
		return false, fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.cache.Remove(ctx, r.keys.UserKey(user.ID.String()))
	return true, nil
}

// Delete removes the account and everything it owns in one transaction, then
// invalidates all three cache families for the user. It returns false when
// the account no longer exists.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID) (bool, error) {
	var found bool

	err := database.WithinTx(ctx, r.db, func(tx database.Tx) error {
		delTasks, args, err := r.qb.Delete("tasks").Where(r.qb.Eq("user_id", userID)).ToSql()
		if err != nil {
			return fmt.Errorf("build delete tasks: %w", err)
		}
		if _, err := tx.Exec(ctx, delTasks, args...); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}

		delCategories, args, err := r.qb.Delete("categories").Where(r.qb.Eq("user_id", userID)).ToSql()
		if err != nil {
			return fmt.Errorf("build delete categories: %w", err)
		}
		if _, err := tx.Exec(ctx, delCategories, args...); err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}

		delUser, args, err := r.qb.Delete(usersTable).Where(r.qb.Eq("id", userID)).ToSql()
		if err != nil {
			return fmt.Errorf("build delete user: %w", err)
		}
		res, err := tx.Exec(ctx, delUser, args...)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete user rows affected: %w", err)
		}
		found = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if found {
		uid := userID.String()
		r.invalidate(ctx, r.keys.TasksPattern(uid), r.keys.CategoriesPattern(uid), r.keys.UserKey(uid))
	}
	return found, nil
}

func (r *Repository) fetchByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	query, args, err := r.qb.Select(userColumns...).
		From(usersTable).
		Where(r.qb.Eq("id", userID)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user: %w", err)
	}

	return scanUser(r.db.QueryRow(ctx, query, args...))
}

func (r *Repository) invalidate(ctx context.Context, patterns ...string) {
	for _, res := range r.cache.InvalidateMultiple(ctx, patterns) {
		if !res.Success {
			r.log.Warn().Str("pattern", res.Pattern).Msg("Cache invalidation skipped")
		}
	}
}

func scanUser(row database.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
