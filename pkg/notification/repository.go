package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/database"
)

type Repository interface {
	Store(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userId int, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userId int, id uuid.UUID) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Store(ctx context.Context, n Notification) error {
	query := `INSERT INTO notifications (id, user_id, title, message, related_entity_id, related_entity_type, read, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var entityType *string
	if n.RelatedEntityType != "" {
		value := string(n.RelatedEntityType)
		entityType = &value
	}
	_, err := database.QueryerFrom(ctx, r.db).Exec(ctx, query,
		n.Id, n.UserId, n.Title, n.Message, n.RelatedEntityId, entityType, n.Read, n.CreatedAt)
	if err != nil {
		err := fmt.Errorf("could not store notification: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) ListByUser(ctx context.Context, userId int, limit int) ([]Notification, error) {
	query := `SELECT id, user_id, title, message, related_entity_id, related_entity_type, read, created_at
				FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := database.QueryerFrom(ctx, r.db).Query(ctx, query, userId, limit)
	if err != nil {
		err := fmt.Errorf("could not query notifications: %w", err)
		log.Error(err)
		return nil, err
	}
	notifications, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		var n Notification
		var entityType *string
		err := row.Scan(&n.Id, &n.UserId, &n.Title, &n.Message, &n.RelatedEntityId, &entityType, &n.Read, &n.CreatedAt)
		if entityType != nil {
			n.RelatedEntityType = EntityType(*entityType)
		}
		return n, err
	})
	if err != nil {
		err := fmt.Errorf("error scanning notifications: %w", err)
		log.Error(err)
		return nil, err
	}
	return notifications, nil
}

func (r *RepositoryImpl) MarkRead(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	result, err := database.QueryerFrom(ctx, r.db).
		Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userId)
	if err != nil {
		err := fmt.Errorf("could not mark notification read: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}
