package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

// UserIndex is the GSI on (user_id, created_at) used for per-user listings.
const UserIndex = "user_id-created_at-index"

// OrderStore persists orders and applies their stock adjustments to the
// products table in the same transaction.
type OrderStore struct {
	client        aws.DynamoDBAPI
	tableName     string
	productsTable string
	nowFunc       func() time.Time
}

var _ orders.Repository = (*OrderStore)(nil)

func NewOrderStore(client aws.DynamoDBAPI, tableName, productsTable string) *OrderStore {
	return &OrderStore{
		client:        client,
		tableName:     tableName,
		productsTable: productsTable,
		nowFunc:       time.Now,
	}
}

// Insert creates the order, failing with orders.ErrConflict if the id exists.
func (s *OrderStore) Insert(ctx context.Context, o orders.Order, adjustments []inventory.Adjustment) error {
	cond := orderCondition{expr: "attribute_not_exists(order_id)"}
	if err := s.write(ctx, o, adjustments, cond); err != nil {
		if errors.Is(err, errOrderCondition) {
			return fmt.Errorf("%w: %s", orders.ErrConflict, o.ID)
		}
		return err
	}
	return nil
}

// Save replaces the order only if the stored version is o.Version-1.
// Records written before versioning carry no version attribute.
func (s *OrderStore) Save(ctx context.Context, o orders.Order, adjustments []inventory.Adjustment) error {
	cond := orderCondition{
		expr:  "attribute_exists(order_id) AND attribute_not_exists(#v)",
		names: map[string]string{"#v": "version"},
	}
	if prev := o.Version - 1; prev > 0 {
		cond.expr = "#v = :prev"
		cond.values = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(prev)},
		}
	}
	err := s.write(ctx, o, adjustments, cond)
	if !errors.Is(err, errOrderCondition) {
		return err
	}
	if _, getErr := s.Get(ctx, o.ID); errors.Is(getErr, orders.ErrNotFound) {
		return fmt.Errorf("%w: %s", orders.ErrNotFound, o.ID)
	}
	return fmt.Errorf("%w: %s", orders.ErrStale, o.ID)
}

// errOrderCondition marks a failed condition on the order item itself.
var errOrderCondition = errors.New("order condition failed")

type orderCondition struct {
	expr   string
	names  map[string]string
	values map[string]types.AttributeValue
}

func (s *OrderStore) write(ctx context.Context, o orders.Order, adjustments []inventory.Adjustment, cond orderCondition) error {
	item, err := attributevalue.MarshalMap(toOrderRecord(o))
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	if len(adjustments) == 0 {
		_, err := s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:                 &s.tableName,
			Item:                      item,
			ConditionExpression:       aws.String(cond.expr),
			ExpressionAttributeNames:  cond.names,
			ExpressionAttributeValues: cond.values,
		})
		if err != nil {
			if isConditionFailed(err) {
				return errOrderCondition
			}
			return fmt.Errorf("put order: %w", err)
		}
		return nil
	}

	// order put first so cancellation reason 0 always refers to it
	transactItems := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:                 &s.tableName,
			Item:                      item,
			ConditionExpression:       aws.String(cond.expr),
			ExpressionAttributeNames:  cond.names,
			ExpressionAttributeValues: cond.values,
		},
	}}
	updatedAt := s.nowFunc().UTC().Format(time.RFC3339)
	for _, adj := range adjustments {
		transactItems = append(transactItems, types.TransactWriteItem{
			Update: &types.Update{
				TableName: &s.productsTable,
				Key: map[string]types.AttributeValue{
					"product_id": &types.AttributeValueMemberS{Value: adj.ProductID},
				},
				UpdateExpression:    aws.String("SET stock = :new, updated_at = :ua"),
				ConditionExpression: aws.String("stock = :expected"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":new":      &types.AttributeValueMemberN{Value: strconv.Itoa(adj.New)},
					":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(adj.Expected)},
					":ua":       &types.AttributeValueMemberS{Value: updatedAt},
				},
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: transactItems})
	if err == nil {
		return nil
	}
	reasons, cancelled := cancellationReasons(err)
	if !cancelled {
		return fmt.Errorf("transact write: %w", err)
	}
	if len(reasons) > 0 && reasonIsCondition(reasons[0]) {
		return errOrderCondition
	}
	for _, r := range reasons {
		if reasonIsCondition(r) {
			return fmt.Errorf("%w: %v", inventory.ErrStockConflict, err)
		}
	}
	return fmt.Errorf("transaction canceled: %w", err)
}

// Get fetches an order by order_id.
func (s *OrderStore) Get(ctx context.Context, id string) (orders.Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return orders.Order{}, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return orders.Order{}, orders.ErrNotFound
	}
	var rec orderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return orders.Order{}, fmt.Errorf("unmarshal order: %w", err)
	}
	return rec.toOrder(), nil
}

// List queries the user index newest first, or scans the table when userID is empty.
func (s *OrderStore) List(ctx context.Context, userID string) ([]orders.Order, error) {
	var items []map[string]types.AttributeValue
	var err error
	if userID == "" {
		items, err = scanAll(ctx, s.client, &dyn.ScanInput{TableName: &s.tableName})
	} else {
		items, err = queryAll(ctx, s.client, &dyn.QueryInput{
			TableName:              &s.tableName,
			IndexName:              aws.String(UserIndex),
			KeyConditionExpression: aws.String("user_id = :u"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: userID},
			},
			ScanIndexForward: aws.Bool(false),
		})
	}
	if err != nil {
		return nil, err
	}

	var recs []orderRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	out := make([]orders.Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toOrder())
	}
	return out, nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(order_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%w: %s", orders.ErrNotFound, id)
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// scanAll reads every page of a scan.
func scanAll(ctx context.Context, client aws.DynamoDBAPI, in *dyn.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dyn.NewScanPaginator(client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", *in.TableName, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// queryAll reads every page of a query.
func queryAll(ctx context.Context, client aws.DynamoDBAPI, in *dyn.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dyn.NewQueryPaginator(client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", *in.TableName, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}
