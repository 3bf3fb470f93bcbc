package persistence

import (
	"time"

	"github.com/asaidimu/go-aggregate/core/query"
)

func createEvent(
	eventType PersistenceEventType,
	operation string,
	collectionName string,
	input any,
	output any,
	queryParam any,
	err *string,
	startTime time.Time,
) PersistenceEvent {
	var duration *int64
	if !startTime.IsZero() {
		duration = query.Int64Ptr(time.Since(startTime).Milliseconds())
	}

	return PersistenceEvent{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  operation,
		Collection: collectionName,
		Input:      input,
		Output:     output,
		Error:      err,
		Query:      queryParam,
		Duration:   duration,
	}
}

// lifecycle groups the start, success and failure events of an operation.
type lifecycle struct {
	operation string
	start     PersistenceEventType
	success   PersistenceEventType
	failed    PersistenceEventType
}

var (
	createLifecycle     = lifecycle{"create", DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed}
	readLifecycle       = lifecycle{"read", DocumentReadStart, DocumentReadSuccess, DocumentReadFailed}
	updateLifecycle     = lifecycle{"update", DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed}
	deleteLifecycle     = lifecycle{"delete", DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed}
	aggregateLifecycle  = lifecycle{"aggregate", AggregateStart, AggregateSuccess, AggregateFailed}
	mapReduceLifecycle  = lifecycle{"mapreduce", MapReduceStart, MapReduceSuccess, MapReduceFailed}
	collectionLifecycle = lifecycle{"create_collection", CollectionCreateStart, CollectionCreateSuccess, CollectionCreateFailed}
	dropLifecycle       = lifecycle{"drop_collection", CollectionDeleteStart, CollectionDeleteSuccess, CollectionDeleteFailed}
)

// emitter publishes events on the shared bus.
type emitter interface {
	emit(event PersistenceEvent)
}

// withEvents wraps fn with start, success and failure events.
func withEvents[T any](em emitter, lc lifecycle, collection string, input, queryParam any, fn func() (T, error)) (T, error) {
	startTime := time.Now()
	em.emit(createEvent(lc.start, lc.operation, collection, input, nil, queryParam, nil, startTime))

	result, err := fn()
	if err != nil {
		em.emit(createEvent(lc.failed, lc.operation, collection, input, nil, queryParam, query.StringPtr(err.Error()), startTime))
		var zero T
		return zero, err
	}

	em.emit(createEvent(lc.success, lc.operation, collection, input, result, queryParam, nil, startTime))
	return result, nil
}
