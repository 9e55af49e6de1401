package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"encrypted_match/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SessionStore persists session records. Store is a compare-and-swap on the
// record's nonce: it fails with ErrStaleSession when the stored record is no
// longer the one the caller loaded, or when it is already finalized.
type SessionStore interface {
	Load(ctx context.Context, sessionKey string) (*models.MatchSessionRecord, error)
	Create(ctx context.Context, rec *models.MatchSessionRecord) error
	Store(ctx context.Context, rec *models.MatchSessionRecord, expectedNonce []byte) error
}

// DynamoSessionStore keeps records in a DynamoDB table keyed by sessionKey.
type DynamoSessionStore struct {
	Dynamo *DynamoService
	Table  string
}

func (s *DynamoSessionStore) table() string {
	if s.Table == "" {
		return models.MatchSessionsTable
	}
	return s.Table
}

func (s *DynamoSessionStore) Load(ctx context.Context, sessionKey string) (*models.MatchSessionRecord, error) {
	item, err := s.Dynamo.GetItem(ctx, s.table(), map[string]types.AttributeValue{
		"sessionKey": &types.AttributeValueMemberS{Value: sessionKey},
	})
	if errors.Is(err, ErrItemNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec models.MatchSessionRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionKey, err)
	}
	return &rec, nil
}

func (s *DynamoSessionStore) Create(ctx context.Context, rec *models.MatchSessionRecord) error {
	err := s.Dynamo.PutItemWithCondition(ctx, s.table(), rec, "attribute_not_exists(sessionKey)", nil, nil)
	if errors.Is(err, ErrConditionFailed) {
		return ErrSessionExists
	}
	return err
}

func (s *DynamoSessionStore) Store(ctx context.Context, rec *models.MatchSessionRecord, expectedNonce []byte) error {
	err := s.Dynamo.PutItemWithCondition(ctx, s.table(), rec,
		"attribute_exists(sessionKey) AND #nonce = :expected AND #isFinalized = :false",
		map[string]string{
			"#nonce":       "nonce",
			"#isFinalized": "isFinalized",
		},
		map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberB{Value: expectedNonce},
			":false":    &types.AttributeValueMemberBOOL{Value: false},
		},
	)
	if errors.Is(err, ErrConditionFailed) {
		return ErrStaleSession
	}
	return err
}

// MemorySessionStore is an in-process SessionStore. Items are kept in their
// DynamoDB attribute form so both stores persist exactly the same fields.
type MemorySessionStore struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{items: make(map[string]map[string]types.AttributeValue)}
}

func (s *MemorySessionStore) Load(_ context.Context, sessionKey string) (*models.MatchSessionRecord, error) {
	s.mu.RLock()
	item, ok := s.items[sessionKey]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return decodeRecord(item)
}

func (s *MemorySessionStore) Create(_ context.Context, rec *models.MatchSessionRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rec.SessionKey]; ok {
		return ErrSessionExists
	}
	s.items[rec.SessionKey] = item
	return nil
}

func (s *MemorySessionStore) Store(_ context.Context, rec *models.MatchSessionRecord, expectedNonce []byte) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[rec.SessionKey]
	if !ok {
		return ErrStaleSession
	}
	stored, err := decodeRecord(current)
	if err != nil {
		return err
	}
	if stored.IsFinalized || !bytes.Equal(stored.Nonce, expectedNonce) {
		return ErrStaleSession
	}
	s.items[rec.SessionKey] = item
	return nil
}

// Item returns the raw stored attributes of a session. Writes replace the
// whole map, so a returned item is never modified afterwards.
func (s *MemorySessionStore) Item(sessionKey string) (map[string]types.AttributeValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[sessionKey]
	return item, ok
}

func decodeRecord(item map[string]types.AttributeValue) (*models.MatchSessionRecord, error) {
	var rec models.MatchSessionRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}
