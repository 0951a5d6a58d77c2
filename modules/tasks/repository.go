package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/taskhub/taskhub/cache"
	"github.com/taskhub/taskhub/database"
	"github.com/taskhub/taskhub/logger"
)

// ErrCategoryNotOwned reports a write that references a category that does not
// exist or belongs to another user. The check runs inside the write
// transaction, so a category deleted concurrently cannot slip through.
var ErrCategoryNotOwned = errors.New("category not owned by user")

// ErrInvalidSort reports a sort field or order outside the allow-list. The
// listing rejects it before any SQL is built.
var ErrInvalidSort = errors.New("invalid sort field or order")

// errAbsent short-circuits cache.Fetch so absent rows are never cached.
var errAbsent = errors.New("task not found")

const (
	tasksTable     = "tasks"
	tasksFrom      = "tasks t"
	categoriesJoin = "categories c ON c.id = t.category_id"

	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100

	defaultSortBy    = "created_at"
	defaultSortOrder = "desc"
)

// sortColumns is the only source of ORDER BY column names. Sort input never
// reaches SQL directly.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"priority":   "priority",
	"title":      "title",
}

var sortOrders = map[string]string{
	"asc":  "ASC",
	"desc": "DESC",
}

// taskColumns is the joined projection: task row plus the category name and
// color, NULL when the task has no category.
var taskColumns = []string{
	"t.id", "t.user_id", "t.category_id", "t.title", "t.description",
	"t.completed", "t.priority", "t.due_date", "t.created_at", "t.updated_at",
	"c.name", "c.color",
}

var taskInsertColumns = []string{
	"id", "user_id", "category_id", "title", "description",
	"completed", "priority", "due_date", "created_at", "updated_at",
}

// normalize applies pagination and sorting defaults and checks the sort
// allow-list.
func (f Filter) normalize() (Filter, error) {
	if f.Page < 1 {
		f.Page = defaultPage
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}

	f.SortBy = strings.ToLower(f.SortBy)
	f.SortOrder = strings.ToLower(f.SortOrder)
	if f.SortBy == "" {
		f.SortBy = defaultSortBy
	}
	if f.SortOrder == "" {
		f.SortOrder = defaultSortOrder
	}

	if _, ok := sortColumns[f.SortBy]; !ok {
		return f, ErrInvalidSort
	}
	if _, ok := sortOrders[f.SortOrder]; !ok {
		return f, ErrInvalidSort
	}
	return f, nil
}

// cacheFilters reduces the normalized filter to the digest input for the list
// key. Defaults are included, so an empty request and an explicit
// page=1&per_page=20 share one cache entry.
func (f Filter) cacheFilters() cache.Filters {
	filters := cache.Filters{
		"page":       f.Page,
		"per_page":   f.PerPage,
		"sort_by":    f.SortBy,
		"sort_order": f.SortOrder,
	}
	if f.Completed != nil {
		filters["completed"] = *f.Completed
	}
	if f.Priority != "" {
		filters["priority"] = f.Priority
	}
	if f.CategoryID != nil {
		filters["category_id"] = *f.CategoryID
	}
	if f.DueAfter != nil {
		filters["due_after"] = *f.DueAfter
	}
	if f.DueBefore != nil {
		filters["due_before"] = *f.DueBefore
	}
	if f.Search != "" {
		filters["search"] = f.Search
	}
	return filters
}

// Repository persists tasks and serves reads through the cache. All task
// cache keys live under one per-user prefix, so every write is followed by a
// single pattern invalidation covering items, listings, and stats.
type Repository struct {
	db    database.Interface
	cache cache.Service
	keys  *cache.KeyBuilder
	qb    *database.QueryBuilder
	log   logger.Logger
}

// NewRepository creates a task repository over the given connection.
func NewRepository(db database.Interface, cacheSvc cache.Service, keys *cache.KeyBuilder, log logger.Logger) *Repository {
	return &Repository{
		db:    db,
		cache: cacheSvc,
		keys:  keys,
		qb:    database.NewQueryBuilder(db.DatabaseType()),
		log:   log,
	}
}

// List returns one page of the user's tasks, served cache-aside on the short
// TTL tier. The filter is normalized first; an invalid sort fails before the
// cache or the database is touched.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, filter Filter) (*ListResult, bool, error) {
	normalized, err := filter.normalize()
	if err != nil {
		return nil, false, err
	}

	key := r.keys.TaskListKey(userID.String(), normalized.cacheFilters())

	return cache.Fetch(ctx, r.cache, key, cache.TierShort, func(ctx context.Context) (*ListResult, error) {
		return r.fetchPage(ctx, userID, normalized)
	})
}

// GetByID returns one task with its category slice, served cache-aside on the
// medium TTL tier. Absent tasks return (nil, false, nil).
func (r *Repository) GetByID(ctx context.Context, userID, taskID uuid.UUID) (*Task, bool, error) {
	key := r.keys.TaskKey(userID.String(), taskID.String())

	task, fromCache, err := cache.Fetch(ctx, r.cache, key, cache.TierMedium, func(ctx context.Context) (*Task, error) {
		return r.fetchByID(ctx, userID, taskID)
	})
	if errors.Is(err, errAbsent) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return task, fromCache, nil
}

// Stats returns the user's task aggregates, served cache-aside on the short
// TTL tier.
func (r *Repository) Stats(ctx context.Context, userID uuid.UUID) (*Stats, bool, error) {
	key := r.keys.TaskStatsKey(userID.String())

	return cache.Fetch(ctx, r.cache, key, cache.TierShort, func(ctx context.Context) (*Stats, error) {
		return r.fetchStats(ctx, userID)
	})
}

// Create inserts a new task. When a category is referenced, ownership is
// verified inside the same transaction as the insert and the category slice is
// attached to the returned task.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}

	err := database.WithinTx(ctx, r.db, func(tx database.Tx) error {
		ref, err := r.categoryRef(ctx, tx, userID, task.CategoryID)
		if err != nil {
			return err
		}
		task.Category = ref

		query, args, err := r.qb.InsertWithColumns(tasksTable, taskInsertColumns...).
			Values(task.ID, task.UserID, task.CategoryID, task.Title, task.Description,
				r.qb.BuildBooleanValue(task.Completed), task.Priority, task.DueDate,
				task.CreatedAt, task.UpdatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert task: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, userID)
	return task, nil
}

// Update persists the full task row. Category ownership is re-verified inside
// the transaction and the category slice on the task is refreshed. It returns
// false when the task does not exist or belongs to another user.
func (r *Repository) Update(ctx context.Context, task *Task) (bool, error) {
	task.UpdatedAt = time.Now().UTC()

	var found bool
	err := database.WithinTx(ctx, r.db, func(tx database.Tx) error {
		ref, err := r.categoryRef(ctx, tx, task.UserID, task.CategoryID)
		if err != nil {
			return err
		}
		task.Category = ref

		query, args, err := r.qb.Update(tasksTable).
			Set("category_id", task.CategoryID).
			Set("title", task.Title).
			Set("description", task.Description).
			Set("completed", r.qb.BuildBooleanValue(task.Completed)).
			Set("priority", task.Priority).
			Set("due_date", task.DueDate).
			Set("updated_at", task.UpdatedAt).
			Where(r.qb.Eq("id", task.ID)).
			Where(r.qb.Eq("user_id", task.UserID)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update task: %w", err)
		}

		res, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task rows affected: %w", err)
		}
		found = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if found {
		r.invalidate(ctx, task.UserID)
	}
	return found, nil
}

// Delete removes one task. It returns false when the task does not exist or
// belongs to another user.
func (r *Repository) Delete(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	query, args, err := r.qb.Delete(tasksTable).
		Where(r.qb.Eq("id", taskID)).
		Where(r.qb.Eq("user_id", userID)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete task: %w", err)
	}

	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	r.invalidate(ctx, userID)
	return true, nil
}

func (r *Repository) fetchPage(ctx context.Context, userID uuid.UUID, f Filter) (*ListResult, error) {
	count, args, err := r.applyFilters(r.qb.Select("COUNT(*)").From(tasksFrom), userID, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count tasks: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, count, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	result := &ListResult{
		Items:      make([]Task, 0),
		Pagination: Pagination{Page: f.Page, PerPage: f.PerPage, Total: total},
	}
	if total == 0 {
		return result, nil
	}
	result.Pagination.TotalPages = int((total + int64(f.PerPage) - 1) / int64(f.PerPage))

	page := r.applyFilters(r.qb.Select(taskColumns...).From(tasksFrom).LeftJoin(categoriesJoin), userID, f).
		OrderBy("t."+sortColumns[f.SortBy]+" "+sortOrders[f.SortOrder], "t.id ASC")
	page = r.qb.BuildLimitOffset(page, f.PerPage, (f.Page-1)*f.PerPage)

	query, args, err := page.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select tasks: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return result, nil
}

// applyFilters appends the WHERE clauses shared by the count and page queries.
func (r *Repository) applyFilters(builder squirrel.SelectBuilder, userID uuid.UUID, f Filter) squirrel.SelectBuilder {
	builder = builder.Where(r.qb.Eq("t.user_id", userID))

	if f.Completed != nil {
		builder = builder.Where(r.qb.Eq("t.completed", r.qb.BuildBooleanValue(*f.Completed)))
	}
	if f.Priority != "" {
		builder = builder.Where(r.qb.Eq("t.priority", f.Priority))
	}
	if f.CategoryID != nil {
		builder = builder.Where(r.qb.Eq("t.category_id", *f.CategoryID))
	}
	if f.DueAfter != nil {
		builder = builder.Where(r.qb.GtOrEq("t.due_date", *f.DueAfter))
	}
	if f.DueBefore != nil {
		builder = builder.Where(r.qb.LtOrEq("t.due_date", *f.DueBefore))
	}
	if f.Search != "" {
		builder = builder.Where(squirrel.Or{
			r.qb.BuildCaseInsensitiveLike("t.title", f.Search),
			r.qb.BuildCaseInsensitiveLike("t.description", f.Search),
		})
	}
	return builder
}

func (r *Repository) fetchByID(ctx context.Context, userID, taskID uuid.UUID) (*Task, error) {
	query, args, err := r.qb.Select(taskColumns...).
		From(tasksFrom).
		LeftJoin(categoriesJoin).
		Where(r.qb.Eq("t.id", taskID)).
		Where(r.qb.Eq("t.user_id", userID)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select task: %w", err)
	}

	return scanTask(r.db.QueryRow(ctx, query, args...))
}

func (r *Repository) fetchStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	stats := &Stats{
		ByPriority: map[string]int64{PriorityLow: 0, PriorityMedium: 0, PriorityHigh: 0},
	}

	breakdown, args, err := r.qb.Select("completed", "COUNT(*)").
		From(tasksTable).
		Where(r.qb.Eq("user_id", userID)).
		GroupBy("completed").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count by completion: %w", err)
	}
	rows, err := r.db.Query(ctx, breakdown, args...)
	if err != nil {
		return nil, fmt.Errorf("count by completion: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			done  bool
			count int64
		)
		if err := rows.Scan(&done, &count); err != nil {
			return nil, fmt.Errorf("scan completion count: %w", err)
		}
		stats.Total += count
		if done {
			stats.Completed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completion counts: %w", err)
	}
	stats.Pending = stats.Total - stats.Completed

	// NULL due dates drop out of the comparison, so only dated tasks count.
	overdue, args, err := r.qb.Select("COUNT(*)").
		From(tasksTable).
		Where(r.qb.Eq("user_id", userID)).
		Where(r.qb.Eq("completed", r.qb.BuildBooleanValue(false))).
		Where(r.qb.Lt("due_date", time.Now().UTC())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count overdue: %w", err)
	}
	if err := r.db.QueryRow(ctx, overdue, args...).Scan(&stats.Overdue); err != nil {
		return nil, fmt.Errorf("count overdue: %w", err)
	}

	byPriority, args, err := r.qb.Select("priority", "COUNT(*)").
		From(tasksTable).
		Where(r.qb.Eq("user_id", userID)).
		GroupBy("priority").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count by priority: %w", err)
	}
	prows, err := r.db.Query(ctx, byPriority, args...)
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var (
			priority string
			count    int64
		)
		if err := prows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("scan priority count: %w", err)
		}
		stats.ByPriority[priority] = count
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("iterate priority counts: %w", err)
	}

	return stats, nil
}

// categoryRef verifies that the referenced category belongs to the user and
// returns its embedded slice. A nil categoryID skips the check: clearing the
// category is always allowed.
func (r *Repository) categoryRef(ctx context.Context, tx database.Tx, userID uuid.UUID, categoryID *uuid.UUID) (*CategoryRef, error) {
	if categoryID == nil {
		return nil, nil
	}

	query, args, err := r.qb.Select("name", "color").
		From("categories").
		Where(r.qb.Eq("id", *categoryID)).
		Where(r.qb.Eq("user_id", userID)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select category: %w", err)
	}

	ref := &CategoryRef{ID: *categoryID}
	err = tx.QueryRow(ctx, query, args...).Scan(&ref.Name, &ref.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotOwned
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return ref, nil
}

// invalidate drops every cached entry derived from the user's tasks. Item,
// list, and stats keys share one prefix, so a single pattern covers them.
func (r *Repository) invalidate(ctx context.Context, userID uuid.UUID) {
	res := r.cache.InvalidatePattern(ctx, r.keys.TasksPattern(userID.String()))
	if !res.Success {
		r.log.Warn().Str("pattern", res.Pattern).Msg("Cache invalidation skipped")
	}
}

// scanTask reads one joined row. The category columns are NULL when the task
// has no category.
func scanTask(row interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		t        Task
		catName  *string
		catColor *string
	)

	err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Title, &t.Description,
		&t.Completed, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt,
		&catName, &catColor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if t.CategoryID != nil && catName != nil {
		ref := &CategoryRef{ID: *t.CategoryID, Name: *catName}
		if catColor != nil {
			ref.Color = *catColor
		}
		t.Category = ref
	}
	return &t, nil
}
