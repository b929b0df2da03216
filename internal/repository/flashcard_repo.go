package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashnotes-backend/internal/models"
)

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

// StoreAll writes one generation batch for userID in a single transaction.
// Cards the user already has (same question and answer) are skipped.
func (r *FlashcardRepo) StoreAll(ctx context.Context, userID uuid.UUID, cards []models.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin flashcard transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO flashcards (id, user_id, question, answer, card_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, card_hash) DO NOTHING`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, c := range cards {
		batch.Queue(query, uuid.New(), userID, c.Question, c.Answer, CardHash(c), now)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert flashcards: %w", err)
	}

	return tx.Commit(ctx)
}

// FetchAll returns the user's cards, newest batch first and in source order
// within a batch.
func (r *FlashcardRepo) FetchAll(ctx context.Context, userID uuid.UUID) ([]models.StoredFlashcard, error) {
	query := `SELECT id, user_id, question, answer, created_at
		FROM flashcards WHERE user_id = $1
		ORDER BY created_at DESC, seq ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.StoredFlashcard{}
	for rows.Next() {
		var c models.StoredFlashcard
		if err := rows.Scan(&c.ID, &c.UserID, &c.Question, &c.Answer, &c.CreatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *FlashcardRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM flashcards WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

// CardHash identifies a card's content for de-duplication.
func CardHash(c models.Flashcard) string {
	sum := sha256.Sum256([]byte(c.Question + "\x00" + c.Answer))
	return hex.EncodeToString(sum[:])
}
