package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

// SaveTask inserts a new task and its items.
func (s *Store) SaveTask(task *models.CollectionTask) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewStorageError("failed to begin task insert: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO tasks (task_id, source, kind, status, total_count,
			success_count, error_count, error_message, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskID, string(task.Source), string(task.Kind), string(task.Status),
		task.TotalCount, task.SuccessCount, task.ErrorCount, task.ErrorMessage,
		nullableTime(task.StartedAt), nullableTime(task.EndedAt),
		task.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return errors.NewStorageError("failed to insert task %s: %v", task.TaskID, err)
	}

	if err := writeItems(tx, task); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit task %s: %v", task.TaskID, err)
	}
	return nil
}

// UpdateTask persists the current state of a task and all its items.
func (s *Store) UpdateTask(task *models.CollectionTask) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewStorageError("failed to begin task update: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE tasks SET status = ?, total_count = ?, success_count = ?,
			error_count = ?, error_message = ?, started_at = ?, ended_at = ?
		WHERE task_id = ?`,
		string(task.Status), task.TotalCount, task.SuccessCount,
		task.ErrorCount, task.ErrorMessage,
		nullableTime(task.StartedAt), nullableTime(task.EndedAt),
		task.TaskID,
	)
	if err != nil {
		return errors.NewStorageError("failed to update task %s: %v", task.TaskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewStorageError("task %s does not exist", task.TaskID)
	}

	if err := writeItems(tx, task); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit task %s: %v", task.TaskID, err)
	}
	return nil
}

func writeItems(tx *sql.Tx, task *models.CollectionTask) error {
	stmt, err := tx.Prepare(`
		INSERT INTO task_items (task_id, entity_key, status, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id, entity_key) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`)
	if err != nil {
		return errors.NewStorageError("failed to prepare item upsert: %v", err)
	}
	defer stmt.Close()

	for _, item := range task.Items {
		_, err := stmt.Exec(task.TaskID, item.EntityKey, string(item.Status),
			item.ErrorMessage, item.UpdatedAt.Format(timeFormat))
		if err != nil {
			return errors.NewStorageError("failed to upsert item %s: %v", item.EntityKey, err)
		}
	}
	return nil
}

// GetTask loads a task with its items. A missing task is a storage
// error; task IDs come from CreateTask and should always resolve.
func (s *Store) GetTask(taskID string) (*models.CollectionTask, error) {
	row := s.db.QueryRow(`
		SELECT task_id, source, kind, status, total_count, success_count,
			error_count, error_message, started_at, ended_at, created_at
		FROM tasks WHERE task_id = ?`, taskID)

	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewStorageError("task %s not found", taskID)
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to load task %s: %v", taskID, err)
	}

	rows, err := s.db.Query(`
		SELECT entity_key, status, error_message, updated_at
		FROM task_items WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, errors.NewStorageError("failed to load items for task %s: %v", taskID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.TaskItem
		var status, updatedAt string
		if err := rows.Scan(&item.EntityKey, &status, &item.ErrorMessage, &updatedAt); err != nil {
			return nil, errors.NewStorageError("failed to scan item: %v", err)
		}
		item.Status = models.ItemStatus(status)
		item.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
		task.Items = append(task.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate items: %v", err)
	}

	return task, nil
}

// ListTasks returns one page of task history, newest first. Items are
// not loaded; use GetTask for the full detail of one task.
func (s *Store) ListTasks(filter models.TaskFilter, page, pageSize int) (*models.TaskPage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var conds []string
	var args []interface{}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.StartDate.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.StartDate.Format(timeFormat))
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.EndDate.Format(timeFormat))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	result := &models.TaskPage{Page: page, PageSize: pageSize}
	err := s.db.QueryRow("SELECT COUNT(*) FROM tasks"+where, args...).Scan(&result.Total)
	if err != nil {
		return nil, errors.NewStorageError("failed to count tasks: %v", err)
	}

	query := fmt.Sprintf(`
		SELECT task_id, source, kind, status, total_count, success_count,
			error_count, error_message, started_at, ended_at, created_at
		FROM tasks%s ORDER BY created_at DESC LIMIT ? OFFSET ?`, where)
	rows, err := s.db.Query(query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, errors.NewStorageError("failed to query tasks: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, errors.NewStorageError("failed to scan task: %v", err)
		}
		result.Tasks = append(result.Tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate tasks: %v", err)
	}

	return result, nil
}

func scanTask(scan func(...interface{}) error) (*models.CollectionTask, error) {
	var task models.CollectionTask
	var source, kind, status, createdAt string
	var startedAt, endedAt sql.NullString

	err := scan(&task.TaskID, &source, &kind, &status, &task.TotalCount,
		&task.SuccessCount, &task.ErrorCount, &task.ErrorMessage,
		&startedAt, &endedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	task.Source = models.Source(source)
	task.Kind = models.DataKind(kind)
	task.Status = models.TaskStatus(status)
	task.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	task.StartedAt = parseNullableTime(startedAt)
	task.EndedAt = parseNullableTime(endedAt)
	return &task, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}
