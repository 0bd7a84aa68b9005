package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-stream/internal/domain"
)

// codeItem is one row of the verification_codes table.
// PK: code_key. expires_at is the table's TTL attribute (epoch seconds);
// expires_at_ms carries the exact deadline because TTL deletion is lazy.
type codeItem struct {
	Key         string `dynamodbav:"code_key"`
	Digest      string `dynamodbav:"digest"`
	ExpiresAt   int64  `dynamodbav:"expires_at"`
	ExpiresAtMs int64  `dynamodbav:"expires_at_ms"`
}

// CodeStore is a TTL key-value store backed by the verification_codes table.
type CodeStore struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewCodeStore(client API, tableName string) *CodeStore {
	return &CodeStore{client: client, tableName: tableName, now: time.Now}
}

func (s *CodeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", domain.ErrBadRequest)
	}
	deadline := s.now().Add(ttl)
	item, err := attributevalue.MarshalMap(codeItem{
		Key:         key,
		Digest:      value,
		ExpiresAt:   ceilUnix(deadline),
		ExpiresAtMs: deadline.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *CodeStore) Get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey("code_key", key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Item == nil {
		return "", fmt.Errorf("code %s: %w", key, domain.ErrNotFound)
	}
	var it codeItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return "", fmt.Errorf("unmarshal code: %w", err)
	}
	if it.ExpiresAtMs <= s.now().UnixMilli() {
		return "", fmt.Errorf("code %s expired: %w", key, domain.ErrNotFound)
	}
	return it.Digest, nil
}

func (s *CodeStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey("code_key", key),
	})
	return err
}

// CompareAndDelete deletes key only while it still holds expected and has not
// expired. A failed condition reports false with no error.
func (s *CodeStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 strKey("code_key", key),
		ConditionExpression: aws.String("#d = :d AND #e > :now"),
		ExpressionAttributeNames: map[string]string{
			"#d": fieldDigest,
			"#e": fieldExpiresAtMs,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":   &types.AttributeValueMemberS{Value: expected},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().UnixMilli(), 10)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func ceilUnix(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}
