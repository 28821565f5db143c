package category

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/database"
)

type Repository interface {
	Store(ctx context.Context, userId int, category Category) (Category, error)
	Get(ctx context.Context, userId int, id int) (Category, error)
	List(ctx context.Context, userId int) ([]Category, error)
	// EnsureTransfer returns the transfer category of the given type, creating it when missing.
	EnsureTransfer(ctx context.Context, userId int, categoryType Type) (Category, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Store(ctx context.Context, userId int, category Category) (Category, error) {
	query := `INSERT INTO categories (user_id, name, type, is_transfer) VALUES ($1, $2, $3, $4) RETURNING id`
	err := database.QueryerFrom(ctx, r.db).
		QueryRow(ctx, query, userId, category.Name, string(category.Type), category.IsTransfer).
		Scan(&category.Id)
	if err != nil {
		err := fmt.Errorf("could not store category: %w", err)
		log.Error(err)
		return Category{}, err
	}
	category.UserId = userId
	return category, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id int) (Category, error) {
	query := `SELECT id, user_id, name, type, is_transfer FROM categories WHERE id = $1 AND user_id = $2`
	return scanCategory(database.QueryerFrom(ctx, r.db).QueryRow(ctx, query, id, userId))
}

func (r *RepositoryImpl) List(ctx context.Context, userId int) ([]Category, error) {
	query := `SELECT id, user_id, name, type, is_transfer FROM categories WHERE user_id = $1 ORDER BY type, name`
	rows, err := database.QueryerFrom(ctx, r.db).Query(ctx, query, userId)
	if err != nil {
		err := fmt.Errorf("could not query categories: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *RepositoryImpl) EnsureTransfer(ctx context.Context, userId int, categoryType Type) (Category, error) {
	q := database.QueryerFrom(ctx, r.db)
	// the partial unique index on (user_id, type) WHERE is_transfer makes concurrent first uses converge
	insert := `INSERT INTO categories (user_id, name, type, is_transfer) VALUES ($1, $2, $3, TRUE)
				ON CONFLICT (user_id, type) WHERE is_transfer DO NOTHING`
	if _, err := q.Exec(ctx, insert, userId, transferCategoryName(categoryType), string(categoryType)); err != nil {
		err := fmt.Errorf("could not provision transfer category: %w", err)
		log.Error(err)
		return Category{}, err
	}

	query := `SELECT id, user_id, name, type, is_transfer FROM categories
				WHERE user_id = $1 AND type = $2 AND is_transfer`
	return scanCategory(q.QueryRow(ctx, query, userId, string(categoryType)))
}

func scanCategory(row pgx.Row) (Category, error) {
	var category Category
	var categoryType string
	err := row.Scan(&category.Id, &category.UserId, &category.Name, &categoryType, &category.IsTransfer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		err := fmt.Errorf("error scanning category: %w", err)
		log.Error(err)
		return Category{}, err
	}
	category.Type = Type(categoryType)
	return category, nil
}
