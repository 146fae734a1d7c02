package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

// Store implements gateway.Gateway on a SQLite database.
type Store struct {
	db  *sql.DB
	hub *hub

	// now is swappable in tests.
	now func() time.Time
}

// New wraps an opened database. Callers run EnsureSchema first.
func New(db *sql.DB) *Store {
	s := &Store{db: db, now: time.Now}
	s.hub = newHub(s.itemsByKind)
	return s
}

// persistErr classifies a driver failure as a persistence error while keeping
// the site of the failure in the message.
func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(gateway.ErrPersistenceFailed, err))
}

// CreateItem stores a new unclaimed item and notifies subscribers.
func (s *Store) CreateItem(ctx context.Context, p gateway.ItemPayload) (string, error) {
	id := ulid.Make().String()
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, kind, category, title, description, location,
		                    occurred_at, created_at, status, reported_by, image_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Kind, p.Category, p.Title, p.Description, p.Location,
		p.OccurredAt.UnixNano(), now.UnixNano(), model.StatusUnclaimed, p.ReportedBy,
		nullable(p.ImageRef),
	)
	if err != nil {
		return "", persistErr("creating item", err)
	}

	s.hub.broadcast(ctx, p.Kind)
	return id, nil
}

// GetItem returns an item by id.
func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, category, title, description, location,
		        occurred_at, created_at, status, reported_by, claimed_by, image_ref
		 FROM items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s: %w", id, gateway.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("getting item", err)
	}
	return item, nil
}

// ListPage fetches one page ordered by occurrence time (creation time and id
// as tiebreaks), anchored after the cursor so concurrent inserts cannot
// duplicate or skip rows across pages.
func (s *Store) ListPage(ctx context.Context, q gateway.ItemQuery) (gateway.Page, error) {
	anchor, err := gateway.DecodeCursor(q.After)
	if err != nil {
		return gateway.Page{}, err
	}

	var (
		where []string
		args  []any
	)
	for col, v := range map[string]string{"kind": q.Kind, "category": q.Category, "status": q.Status} {
		if v != "" && v != "all" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}

	cmp, dir := "<", "DESC"
	if q.Sort == gateway.SortOldest {
		cmp, dir = ">", "ASC"
	}
	if anchor != nil {
		where = append(where, fmt.Sprintf(
			`(occurred_at %[1]s ? OR (occurred_at = ? AND (created_at %[1]s ? OR (created_at = ? AND id %[1]s ?))))`, cmp))
		args = append(args, anchor.OccurredAt, anchor.OccurredAt, anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	query := `SELECT id, kind, category, title, description, location,
	                 occurred_at, created_at, status, reported_by, claimed_by, image_ref
	          FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	size := q.PageSize
	if size <= 0 {
		size = 12
	}
	query += fmt.Sprintf(" ORDER BY occurred_at %[1]s, created_at %[1]s, id %[1]s LIMIT %d", dir, size)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return gateway.Page{}, persistErr("listing items", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return gateway.Page{}, persistErr("scanning item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return gateway.Page{}, persistErr("listing items", err)
	}

	page := gateway.Page{Items: items, HasMore: len(items) == size}
	if len(items) > 0 {
		page.Next = gateway.EncodeCursor(items[len(items)-1])
	}
	return page, nil
}

// UpdateItem applies a patch. With a precondition the update only matches
// rows that still carry the expected status, which makes the claim
// check-and-set a single atomic statement.
func (s *Store) UpdateItem(ctx context.Context, id string, patch gateway.ItemPatch, pre *gateway.Precondition) error {
	var (
		sets []string
		args []any
	)
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.ClaimedBy != nil {
		sets = append(sets, "claimed_by = ?")
		args = append(args, nullable(*patch.ClaimedBy))
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE items SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if pre != nil {
		query += " AND status = ?"
		args = append(args, pre.Status)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistErr("updating item", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistErr("updating item", err)
	}
	if affected == 0 {
		// Distinguish a lost precondition from a vanished item.
		item, err := s.GetItem(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("item %s has status %q: %w", id, item.Status, gateway.ErrPreconditionFailed)
	}

	s.hub.broadcastAll(ctx)
	return nil
}

// DeleteItem removes an item permanently.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return persistErr("deleting item", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("item %s: %w", id, gateway.ErrNotFound)
	}

	s.hub.broadcastAll(ctx)
	return nil
}

// UploadAsset stores the asset bytes in the database and returns its id.
func (s *Store) UploadAsset(ctx context.Context, data []byte, suggestedName, mime string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty asset: %w", gateway.ErrUploadFailed)
	}
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (id, data, mime, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, data, mime, suggestedName, s.now().UTC().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("storing asset: %w", errors.Join(gateway.ErrUploadFailed, err))
	}
	return id, nil
}

// AssetURL resolves an asset reference to the path the API serves it under.
func (s *Store) AssetURL(_ context.Context, ref string) (string, error) {
	return "/api/assets/" + ref, nil
}

// AssetData returns the stored asset bytes and MIME type.
func (s *Store) AssetData(ctx context.Context, ref string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, mime FROM assets WHERE id = ?`, ref,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("asset %s: %w", ref, gateway.ErrNotFound)
	}
	if err != nil {
		return nil, "", persistErr("getting asset", err)
	}
	return data, mime, nil
}

// Stats returns the site-wide counters.
func (s *Store) Stats(ctx context.Context) (gateway.Stats, error) {
	var st gateway.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(kind = 'lost'), 0),
			COALESCE(SUM(kind = 'found'), 0),
			COALESCE(SUM(status = 'archived'), 0)
		FROM items`,
	).Scan(&st.Items, &st.Lost, &st.Found, &st.Archived)
	if err != nil {
		return gateway.Stats{}, persistErr("counting items", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&st.Accounts); err != nil {
		return gateway.Stats{}, persistErr("counting accounts", err)
	}
	return st, nil
}

// itemsByKind is the snapshot source for the change-stream hub.
func (s *Store) itemsByKind(ctx context.Context, kind string) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, category, title, description, location,
		        occurred_at, created_at, status, reported_by, claimed_by, image_ref
		 FROM items WHERE kind = ?
		 ORDER BY occurred_at DESC, created_at DESC, id DESC`, kind,
	)
	if err != nil {
		return nil, persistErr("listing items by kind", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, persistErr("scanning item", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.Item, error) {
	var (
		item                 model.Item
		occurredAt, createdAt int64
		claimedBy, imageRef  sql.NullString
	)
	err := row.Scan(&item.ID, &item.Kind, &item.Category, &item.Title, &item.Description,
		&item.Location, &occurredAt, &createdAt, &item.Status, &item.ReportedBy,
		&claimedBy, &imageRef)
	if err != nil {
		return nil, err
	}
	item.OccurredAt = time.Unix(0, occurredAt).UTC()
	item.CreatedAt = time.Unix(0, createdAt).UTC()
	item.ClaimedBy = claimedBy.String
	item.ImageRef = imageRef.String
	if err := item.Check(); err != nil {
		return nil, fmt.Errorf("reading item: %w", err)
	}
	return &item, nil
}

// nullable maps "" to NULL so cleared fields do not store empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
