package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	model "github.com/peopleflow/approval-engine/models"
)

// indexSubmission pushes a submission summary into the search index. Indexing
// is best-effort: any failure is logged and never breaks the state transition
// that triggered it.
func (s *WorkflowService) indexSubmission(sub *model.Submission) {
	if s.esClient == nil {
		return
	}

	doc := map[string]interface{}{
		"submission_id":      sub.ID,
		"request_type_id":    sub.RequestTypeID,
		"requester_id":       sub.RequesterID,
		"status":             sub.Status,
		"current_step_index": sub.CurrentStepIndex,
		"updated_at":         sub.UpdatedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		log.Printf("[indexSubmission] Error marshaling submission %s: %v", sub.ID, err)
		return
	}

	res, err := s.esClient.Index(
		"submissions",
		bytes.NewReader(body),
		s.esClient.Index.WithDocumentID(sub.ID),
		s.esClient.Index.WithContext(context.Background()),
	)
	if err != nil {
		log.Printf("[indexSubmission] Elasticsearch indexing error: %v", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("[indexSubmission] Elasticsearch indexing failed: %s", res.String())
	}
}

// SearchSubmissions queries the submission index for dashboard search.
func (s *WorkflowService) SearchSubmissions(query string) ([]map[string]interface{}, error) {
	if s.esClient == nil {
		return nil, fmt.Errorf("elasticsearch client is not initialized")
	}

	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"submission_id", "requester_id", "request_type_id", "status"},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex("submissions"),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits structure in search response")
	}
	hitsArray, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits array in search response")
	}

	var submissions []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		submissions = append(submissions, source)
	}
	return submissions, nil
}
