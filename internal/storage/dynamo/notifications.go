package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/notify"
)

// NotificationStore keeps notifications under (user_id, notification_id).
// Notification ids are ULIDs so the sort key is also creation order.
type NotificationStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

var _ notify.Repository = (*NotificationStore)(nil)

func NewNotificationStore(client aws.DynamoDBAPI, tableName string) *NotificationStore {
	return &NotificationStore{client: client, tableName: tableName}
}

// Insert ignores redelivered notifications.
func (s *NotificationStore) Insert(ctx context.Context, n notify.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(notification_id)"),
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string) ([]notify.Notification, error) {
	items, err := queryAll(ctx, s.client, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	out := make([]notify.Notification, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, userID, id string) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id":         &types.AttributeValueMemberS{Value: userID},
			"notification_id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         aws.String("SET #r = :true"),
		ConditionExpression:      aws.String("attribute_exists(notification_id)"),
		ExpressionAttributeNames: map[string]string{"#r": "read"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%w: %s", notify.ErrNotFound, id)
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
