package categories

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

// ErrNameTaken reports a create or update that collides with another category
// of the same user. Names are unique per user, not globally.
var ErrNameTaken = errors.New("category name already in use")

// errAbsent short-circuits cache.Fetch so absent rows are never cached.
var errAbsent = errors.New("category not found")

const categoriesTable = "categories"

var categoryColumns = []string{"id", "user_id", "name", "color", "created_at", "updated_at"}

// Repository persists categories and serves reads through the cache. Every
// write invalidates the user's task family as well: cached task payloads embed
// the category name and color.
type Repository struct {
	db    database.Interface
	cache cache.Service
	keys  *cache.KeyBuilder
	qb    *database.QueryBuilder
	log   logger.Logger
}

// NewRepository creates a category repository over the given connection.
func NewRepository(db database.Interface, cacheSvc cache.Service, keys *cache.KeyBuilder, log logger.Logger) *Repository {
	return &Repository{
		db:    db,
		cache: cacheSvc,
		keys:  keys,
		qb:    database.NewQueryBuilder(db.DatabaseType()),
		log:   log,
	}
}

// List returns all categories of one user ordered by name, served cache-aside
// on the medium TTL tier.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]Category, bool, error) {
	key := r.keys.CategoryListKey(userID.String())

	return cache.Fetch(ctx, r.cache, key, cache.TierMedium, func(ctx context.Context) ([]Category, error) {
		return r.fetchAll(ctx, userID)
	})
}

// GetByID returns one category, served cache-aside on the medium TTL tier.
// Absent categories return (nil, false, nil).
func (r *Repository) GetByID(ctx context.Context, userID, categoryID uuid.UUID) (*Category, bool, error) {
	key := r.keys.CategoryKey(userID.String(), categoryID.String())

	category, fromCache, err := cache.Fetch(ctx, r.cache, key, cache.TierMedium, func(ctx context.Context) (*Category, error) {
		return r.fetchByID(ctx, userID, categoryID)
	})
	if errors.Is(err, errAbsent) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return category, fromCache, nil
}

// Create inserts a new category for the user. The repository fills ID and
// timestamps.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, name, color string) (*Category, error) {
	now := time.Now().UTC()
	category := &Category{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query, args, err := r.qb.InsertWithColumns(categoriesTable, categoryColumns...).
		Values(category.ID, category.UserID, category.Name, category.Color, category.CreatedAt, category.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert category: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}

	r.invalidateUserScope(ctx, userID)
	return category, nil
}

// Update persists changed category fields. It returns false when the category
// does not exist or belongs to another user.
func (r *Repository) Update(ctx context.Context, category *Category) (bool, error) {
	category.UpdatedAt = time.Now().UTC()

	query, args, err := r.qb.Update(categoriesTable).
		Set("name", category.Name).
		Set("color", category.Color).
		Set("updated_at", category.UpdatedAt).
		Where(r.qb.Eq("id", category.ID)).
		Where(r.qb.Eq("user_id", category.UserID)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update category: %w", err)
	}

	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, ErrNameTaken
		}
		return false, fmt.Errorf("update category: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update category rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.invalidateUserScope(ctx, category.UserID)
	return true, nil
}

// Delete detaches the category's tasks and removes the category in one
// transaction. Tasks survive with category_id set to NULL. It returns false
// when the category does not exist or belongs to another user.
func (r *Repository) Delete(ctx context.Context, userID, categoryID uuid.UUID) (bool, error) {
	var found bool

	err := database.WithinTx(ctx, r.db, func(tx database.Tx) error {
		detach, args, err := r.qb.Update("tasks").
			Set("category_id", nil).
			Where(r.qb.Eq("category_id", categoryID)).
			Where(r.qb.Eq("user_id", userID)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build detach tasks: %w", err)
		}
		if _, err := tx.Exec(ctx, detach, args...); err != nil {
			return fmt.Errorf("detach tasks: %w", err)
		}

		del, args, err := r.qb.Delete(categoriesTable).
			Where(r.qb.Eq("id", categoryID)).
			Where(r.qb.Eq("user_id", userID)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete category: %w", err)
		}
		res, err := tx.Exec(ctx, del, args...)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete category rows affected: %w", err)
		}
		found = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if found {
		r.invalidateUserScope(ctx, userID)
	}
	return found, nil
}

func (r *Repository) fetchAll(ctx context.Context, userID uuid.UUID) ([]Category, error) {
	query, args, err := r.qb.Select(categoryColumns...).
		From(categoriesTable).
		Where(r.qb.Eq("user_id", userID)).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select categories: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	items := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return items, nil
}

func (r *Repository) fetchByID(ctx context.Context, userID, categoryID uuid.UUID) (*Category, error) {
	query, args, err := r.qb.Select(categoryColumns...).
		From(categoriesTable).
		Where(r.qb.Eq("id", categoryID)).
		Where(r.qb.Eq("user_id", userID)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select category: %w", err)
	}

	var c Category
	err = r.db.QueryRow(ctx, query, args...).Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

// invalidateUserScope drops the user's category and task cache families. Task
// keys are included because cached task payloads embed category fields.
func (r *Repository) invalidateUserScope(ctx context.Context, userID uuid.UUID) {
	uid := userID.String()
	for _, res := range r.cache.InvalidateMultiple(ctx, []string{r.keys.CategoriesPattern(uid), r.keys.TasksPattern(uid)}) {
		if !res.Success {
			r.log.Warn().Str("pattern", res.Pattern).Msg("Cache invalidation skipped")
		}
	}
}
