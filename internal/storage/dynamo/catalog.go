package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
)

// ProductStore reads and upserts the products table.
type ProductStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

var _ catalog.Repository = (*ProductStore)(nil)

func NewProductStore(client aws.DynamoDBAPI, tableName string) *ProductStore {
	return &ProductStore{client: client, tableName: tableName}
}

// Get reads with strong consistency since the ledger plans conditional stock writes from it.
func (s *ProductStore) Get(ctx context.Context, id string) (catalog.Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return catalog.Product{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, id)
	}
	var rec productRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return catalog.Product{}, fmt.Errorf("unmarshal product: %w", err)
	}
	return rec.toProduct(), nil
}

func (s *ProductStore) List(ctx context.Context) ([]catalog.Product, error) {
	items, err := scanAll(ctx, s.client, &dyn.ScanInput{TableName: &s.tableName})
	if err != nil {
		return nil, err
	}
	var recs []productRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal products: %w", err)
	}
	out := make([]catalog.Product, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toProduct())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProductStore) Put(ctx context.Context, p catalog.Product) error {
	item, err := attributevalue.MarshalMap(toProductRecord(p))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// CouponStore persists coupons keyed by upper-cased code.
type CouponStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

var _ coupons.Repository = (*CouponStore)(nil)

func NewCouponStore(client aws.DynamoDBAPI, tableName string) *CouponStore {
	return &CouponStore{client: client, tableName: tableName}
}

func (s *CouponStore) key(code string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"code": &types.AttributeValueMemberS{Value: coupons.NormalizeCode(code)},
	}
}

func (s *CouponStore) FindByCode(ctx context.Context, code string) (coupons.Coupon, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{TableName: &s.tableName, Key: s.key(code)})
	if err != nil {
		return coupons.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	if len(out.Item) == 0 {
		return coupons.Coupon{}, coupons.ErrNotFound
	}
	var rec couponRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return coupons.Coupon{}, fmt.Errorf("unmarshal coupon: %w", err)
	}
	return rec.toCoupon(), nil
}

func (s *CouponStore) List(ctx context.Context) ([]coupons.Coupon, error) {
	items, err := scanAll(ctx, s.client, &dyn.ScanInput{TableName: &s.tableName})
	if err != nil {
		return nil, err
	}
	var recs []couponRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal coupons: %w", err)
	}
	out := make([]coupons.Coupon, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toCoupon())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *CouponStore) Create(ctx context.Context, c coupons.Coupon) error {
	return s.put(ctx, c, "attribute_not_exists(code)", coupons.ErrCodeConflict)
}

func (s *CouponStore) Update(ctx context.Context, c coupons.Coupon) error {
	return s.put(ctx, c, "attribute_exists(code)", coupons.ErrNotFound)
}

func (s *CouponStore) put(ctx context.Context, c coupons.Coupon, condition string, conditionErr error) error {
	item, err := attributevalue.MarshalMap(toCouponRecord(c))
	if err != nil {
		return fmt.Errorf("marshal coupon: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		if isConditionFailed(err) {
			return conditionErr
		}
		return fmt.Errorf("put coupon: %w", err)
	}
	return nil
}

func (s *CouponStore) Delete(ctx context.Context, code string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 s.key(code),
		ConditionExpression: aws.String("attribute_exists(code)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return coupons.ErrNotFound
		}
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}
