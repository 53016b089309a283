package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scicat/internal/models"

	"gorm.io/gorm"
)

// Repos groups the table repositories bound to one database handle.
type Repos struct {
	Resources     ResourceRepository
	Categories    CategoryRepository
	Vocabulary    VocabularyRepository
	Submissions   SubmissionRepository
	Subscriptions SubscriptionRepository
	Team          TeamRepository
}

func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Resources:     NewResourceRepository(db),
		Categories:    NewCategoryRepository(db),
		Vocabulary:    NewVocabularyRepository(db),
		Submissions:   NewSubmissionRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Team:          NewTeamRepository(db),
	}
}

// TxRunner runs fn with repositories bound to a single transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx Repos) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) WithinTx(ctx context.Context, fn func(tx Repos) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}

// translateConflict maps a unique-key violation onto conflict. It needs the
// database opened with TranslateError.
func translateConflict(err error, conflict error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", conflict, err)
	}
	return translate(err)
}

// Page normalises page/limit into an offset and limit.
func Page(page, limit, maxLimit, defaultLimit int) (offset, size int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return (page - 1) * limit, limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lower-cased LIKE pattern matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
