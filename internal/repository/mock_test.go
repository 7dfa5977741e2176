package repository

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type executedQuery struct {
	Query  string
	Params map[string]interface{}
}

// MockDriver records every query and replays ResultQueue in order, falling back to MockResult.
type MockDriver struct {
	Executed    []executedQuery
	MockResult  neo4j.EagerResult
	ResultQueue []neo4j.EagerResult
	Err         error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executedQuery{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if len(m.ResultQueue) > 0 {
		res := m.ResultQueue[0]
		m.ResultQueue = m.ResultQueue[1:]
		return res, nil
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func result(keys []string, rows ...[]interface{}) neo4j.EagerResult {
	records := make([]*neo4j.Record, len(rows))
	for i, row := range rows {
		records[i] = &neo4j.Record{Keys: keys, Values: row}
	}
	return neo4j.EagerResult{Keys: keys, Records: records}
}
