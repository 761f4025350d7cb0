package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// amount stores a decimal as a DynamoDB number without going through float64.
// Missing attributes decode to zero.
type amount decimal.Decimal

func newAmount(d decimal.Decimal) amount { return amount(d) }

func optionalAmount(d *decimal.Decimal) *amount {
	if d == nil {
		return nil
	}
	a := amount(*d)
	return &a
}

func (a amount) Decimal() decimal.Decimal { return decimal.Decimal(a) }

func (a *amount) decimalPtr() *decimal.Decimal {
	if a == nil {
		return nil
	}
	d := decimal.Decimal(*a)
	return &d
}

func (a amount) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: decimal.Decimal(a).String()}, nil
}

func (a *amount) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		*a = amount(decimal.Zero)
		return nil
	default:
		return fmt.Errorf("amount: unsupported attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = amount(d)
	return nil
}
