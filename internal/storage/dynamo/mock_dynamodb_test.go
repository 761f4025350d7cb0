package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small multi-table fake. It evaluates only the expression
// shapes the stores in this package issue.
type mockDynamo struct {
	mu       sync.Mutex
	tables   map[string]*mockTable
	pageSize int
	err      error
}

type mockTable struct {
	keys  []string
	items map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]*mockTable{}}
}

func (m *mockDynamo) createTable(name string, keys ...string) {
	m.tables[name] = &mockTable{keys: keys, items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) table(name *string) (*mockTable, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := m.tables[*name]
	if !ok {
		return nil, fmt.Errorf("ResourceNotFoundException: %s", *name)
	}
	return t, nil
}

func (t *mockTable) keyOf(item map[string]types.AttributeValue) string {
	parts := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		parts = append(parts, scalar(item[k]))
	}
	return strings.Join(parts, "|")
}

func scalar(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprint(v.Value)
	}
	return ""
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// conditionHolds supports AND-joined attribute_exists, attribute_not_exists
// and "attr = :value" clauses. A nil existing item has no attributes.
func conditionHolds(expr *string, existing map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	if expr == nil {
		return true
	}
	resolve := func(name string) string {
		name = strings.TrimSpace(name)
		if n, ok := names[name]; ok {
			return n
		}
		return name
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		e := strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(e, "attribute_not_exists("):
			if _, ok := existing[resolve(strings.TrimSuffix(strings.TrimPrefix(e, "attribute_not_exists("), ")"))]; ok {
				return false
			}
		case strings.HasPrefix(e, "attribute_exists("):
			if _, ok := existing[resolve(strings.TrimSuffix(strings.TrimPrefix(e, "attribute_exists("), ")"))]; !ok {
				return false
			}
		case strings.Contains(e, " = "):
			parts := strings.SplitN(e, " = ", 2)
			got, ok := existing[resolve(parts[0])]
			if !ok || scalar(got) != scalar(values[strings.TrimSpace(parts[1])]) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// applySet handles "SET a = :x, #b = :y".
func applySet(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) {
	body := strings.TrimPrefix(strings.TrimSpace(expr), "SET ")
	for _, assign := range strings.Split(body, ",") {
		parts := strings.SplitN(assign, "=", 2)
		lhs, rhs := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if n, ok := names[lhs]; ok {
			lhs = n
		}
		item[lhs] = values[rhs]
	}
}

func ccf() error {
	return &types.ConditionalCheckFailedException{Message: stringPtr("The conditional request failed")}
}

func stringPtr(s string) *string { return &s }

func (m *mockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.keyOf(in.Item)
	if !conditionHolds(in.ConditionExpression, t.items[k], in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, ccf()
	}
	t.items[k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[t.keyOf(in.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.keyOf(in.Key)
	existing := t.items[k]
	if !conditionHolds(in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, ccf()
	}
	if existing == nil {
		existing = copyItem(in.Key)
	}
	applySet(existing, *in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	t.items[k] = existing
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.keyOf(in.Key)
	if !conditionHolds(in.ConditionExpression, t.items[k], in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, ccf()
	}
	delete(t.items, k)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, it := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: stringPtr("None")}
		var ok bool
		switch {
		case it.Put != nil:
			t, err := m.table(it.Put.TableName)
			if err != nil {
				return nil, err
			}
			ok = conditionHolds(it.Put.ConditionExpression, t.items[t.keyOf(it.Put.Item)], it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues)
		case it.Update != nil:
			t, err := m.table(it.Update.TableName)
			if err != nil {
				return nil, err
			}
			ok = conditionHolds(it.Update.ConditionExpression, t.items[t.keyOf(it.Update.Key)], it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues)
		default:
			return nil, errors.New("unsupported transact item")
		}
		if !ok {
			failed = true
			reasons[i] = types.CancellationReason{Code: stringPtr(conditionalCheckFailed)}
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             stringPtr("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, it := range in.TransactItems {
		if it.Put != nil {
			t, _ := m.table(it.Put.TableName)
			t.items[t.keyOf(it.Put.Item)] = copyItem(it.Put.Item)
			continue
		}
		t, _ := m.table(it.Update.TableName)
		k := t.keyOf(it.Update.Key)
		applySet(t.items[k], *it.Update.UpdateExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	// only "user_id = :u" key conditions are issued
	want := scalar(in.ExpressionAttributeValues[":u"])
	sortKey := "notification_id"
	if in.IndexName != nil {
		sortKey = "created_at"
	}
	var matched []map[string]types.AttributeValue
	for _, item := range t.items {
		if scalar(item["user_id"]) == want {
			matched = append(matched, copyItem(item))
		}
	}
	desc := in.ScanIndexForward != nil && !*in.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		a, b := scalar(matched[i][sortKey]), scalar(matched[j][sortKey])
		if desc {
			return a > b
		}
		return a < b
	})
	page, next := m.page(matched, in.ExclusiveStartKey)
	return &dyn.QueryOutput{Items: page, LastEvaluatedKey: next}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(in.TableName)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	all := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		all = append(all, copyItem(t.items[k]))
	}
	page, next := m.page(all, in.ExclusiveStartKey)
	return &dyn.ScanOutput{Items: page, LastEvaluatedKey: next}, nil
}

// page slices results using a synthetic offset cursor.
func (m *mockDynamo) page(all []map[string]types.AttributeValue, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	offset := 0
	if start != nil {
		fmt.Sscan(scalar(start["_offset"]), &offset)
	}
	if m.pageSize <= 0 || offset+m.pageSize >= len(all) {
		return all[offset:], nil
	}
	end := offset + m.pageSize
	return all[offset:end], map[string]types.AttributeValue{
		"_offset": &types.AttributeValueMemberN{Value: fmt.Sprint(end)},
	}
}
