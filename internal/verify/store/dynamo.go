package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aelexs/phone-verify-service/internal/domain"
	"github.com/aelexs/phone-verify-service/internal/dynamo"
)

// sessionDynamoDB is a narrow, consumer-defined interface for the DynamoDB
// operations the session store needs. *dynamodb.Client satisfies it.
type sessionDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
}

// sessionItem is the DynamoDB item shape for the sessions table. SenderData
// is stored as Binary; the store never inspects its contents.
type sessionItem struct {
	SessionID     string         `dynamodbav:"session_id"`
	PhoneNumber   string         `dynamodbav:"phone_number"`
	CreatedAt     string         `dynamodbav:"created_at"`
	ExpiresAt     string         `dynamodbav:"expires_at"`
	SenderName    string         `dynamodbav:"sender_name"`
	SenderData    []byte         `dynamodbav:"sender_data,omitempty"`
	VerifiedCode  string         `dynamodbav:"verified_code"`
	SendAttempts  []SendAttempt  `dynamodbav:"send_attempts"`
	CheckAttempts []CheckAttempt `dynamodbav:"check_attempts"`
	Version       int64          `dynamodbav:"version"`
	TTL           int64          `dynamodbav:"ttl"`
}

// DynamoStore is the production Store backed by DynamoDB. Create uses a
// attribute_not_exists condition; Update uses a version-equality condition,
// which is what makes this store's compare-and-swap actually compare before
// swapping (the teacher's session adapter this was grounded on performed a
// blind UpdateItem with no condition at all).
type DynamoStore struct {
	db        sessionDynamoDB
	tableName string
	clock     domain.Clock
}

// NewDynamoStore creates a DynamoStore backed by the given DynamoDB client.
func NewDynamoStore(db sessionDynamoDB, tableName string, clock domain.Clock) *DynamoStore {
	return &DynamoStore{db: db, tableName: tableName, clock: clock}
}

// Create implements Store.
func (s *DynamoStore) Create(ctx context.Context, rec Record) error {
	rec.Version = 1
	item := toItem(rec)

	av, err := dynamo.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("session store: marshal: %w", err)
	}

	condExpr := "attribute_not_exists(session_id)"
	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("session store: create: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("session store: create: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *DynamoStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	consistentRead := true

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"session_id": &dynamo.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: &consistentRead,
	})
	if err != nil {
		return nil, fmt.Errorf("session store: get: %w", err)
	}
	if out.Item == nil {
		return nil, notFoundf("get", sessionID)
	}

	rec, err := fromItemMap(out.Item)
	if err != nil {
		return nil, err
	}
	if rec.Expired(s.clock.Now()) {
		return nil, notFoundf("get", sessionID)
	}
	return rec, nil
}

// Update implements Store: read with a consistent GetItem, apply mutate,
// then PutItem conditioned on the version unchanged since the read.
func (s *DynamoStore) Update(ctx context.Context, sessionID string, mutate Mutator) (*Record, error) {
	cur, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next, err := applyMutator(cur, mutate)
	if err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1

	item := toItem(*next)
	av, err := dynamo.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("session store: marshal: %w", err)
	}

	condExpr := "version = :expected_version"
	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":expected_version": &dynamo.AttributeValueMemberN{Value: strconv.FormatInt(cur.Version, 10)},
		},
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return nil, fmt.Errorf("session store: update: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("session store: update: %w", err)
	}

	return next, nil
}

func toItem(rec Record) sessionItem {
	return sessionItem{
		SessionID:     rec.SessionID,
		PhoneNumber:   rec.PhoneNumber,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:     rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
		SenderName:    rec.SenderName,
		SenderData:    rec.SenderData,
		VerifiedCode:  rec.VerifiedCode,
		SendAttempts:  rec.SendAttempts,
		CheckAttempts: rec.CheckAttempts,
		Version:       rec.Version,
		TTL:           rec.ExpiresAt.Unix(),
	}
}

func fromItemMap(item map[string]dynamo.AttributeValue) (*Record, error) {
	var si sessionItem
	if err := dynamo.UnmarshalMap(item, &si); err != nil {
		return nil, fmt.Errorf("session store: unmarshal: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, si.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("session store: parse created_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, si.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("session store: parse expires_at: %w", err)
	}

	return &Record{
		SessionID:     si.SessionID,
		PhoneNumber:   si.PhoneNumber,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		SenderName:    si.SenderName,
		SenderData:    si.SenderData,
		VerifiedCode:  si.VerifiedCode,
		SendAttempts:  si.SendAttempts,
		CheckAttempts: si.CheckAttempts,
		Version:       si.Version,
	}, nil
}

var _ Store = (*DynamoStore)(nil)
