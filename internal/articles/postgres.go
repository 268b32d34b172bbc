package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var _ ArticleStore = (*PGStore)(nil)

// PGStore implements ArticleStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, a *Article) error {
	return s.db.QueryRowContext(ctx,
		`insert into articles(id, title, description, author_id)
		 values($1,$2,$3,$4)
		 returning published_at`,
		a.ID, a.Title, a.Description, a.AuthorID,
	).Scan(&a.PublishedAt)
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*Article, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, title, description, published_at, author_id from articles where id=$1`, id)
	var a Article
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &a.PublishedAt, &a.AuthorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *PGStore) FindPage(ctx context.Context, q ListQuery) ([]Article, int, error) {
	where, args := buildFilter(q)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from articles`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (q.Page - 1) * q.Limit
	args = append(args, q.Limit, offset)
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`select id, title, description, published_at, author_id
		 from articles%s
		 order by published_at desc
		 limit $%d offset $%d`, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Article, 0, q.Limit)
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.PublishedAt, &a.AuthorID); err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, a *Article) error {
	res, err := s.db.ExecContext(ctx,
		`update articles set title=$2, description=$3 where id=$1`,
		a.ID, a.Title, a.Description,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from articles where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func buildFilter(q ListQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if q.AuthorID != "" {
		args = append(args, q.AuthorID)
		clauses = append(clauses, fmt.Sprintf("author_id=$%d", len(args)))
	}
	if !q.From.IsZero() && !q.To.IsZero() {
		args = append(args, q.From, q.To)
		clauses = append(clauses, fmt.Sprintf("published_at between $%d and $%d", len(args)-1, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " where " + strings.Join(clauses, " and "), args
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
