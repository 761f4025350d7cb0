package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

// isConditionFailed reports whether a single-item write lost its condition.
func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

// cancellationReasons extracts per-item reasons from a cancelled transaction.
// The slice is index-aligned with the TransactItems of the request.
func cancellationReasons(err error) ([]types.CancellationReason, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	return tce.CancellationReasons, true
}

func reasonIsCondition(r types.CancellationReason) bool {
	return r.Code != nil && *r.Code == conditionalCheckFailed
}
