package service

import (
	json "encoding/json/v2"
	"strings"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/services/detect/domain"
)

// ParseVerify reads the verifier's JSON object, tolerating code fences and
// prose around the document. Confidence is clamped to [0,1]; a missing or
// off-vocabulary relationship folds to related so only the enumerated labels
// reach the cache and the groups table
func ParseVerify(raw string) (domain.VerifyResult, error) {
	doc, err := extractJSON(raw, '{', '}')
	if err != nil {
		return domain.VerifyResult{}, err
	}
	var res domain.VerifyResult
	if err := json.Unmarshal([]byte(doc), &res); err != nil {
		return domain.VerifyResult{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode verify reply")
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	switch res.Relationship {
	case domain.RelationshipExactDuplicate, domain.RelationshipNearDuplicate, domain.RelationshipRelated:
	default:
		res.Relationship = domain.RelationshipRelated
	}
	return res, nil
}

// ParseRank reads the ranker's JSON array of scored entries
func ParseRank(raw string) ([]domain.RankEntry, error) {
	doc, err := extractJSON(raw, '[', ']')
	if err != nil {
		return nil, err
	}
	var entries []domain.RankEntry
	if err := json.Unmarshal([]byte(doc), &entries); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode rank reply")
	}
	return entries, nil
}

// extractJSON returns the outermost document bounded by the delimiters,
// ignoring whatever the model wrapped around it
func extractJSON(raw string, opener, closer byte) (string, error) {
	start := strings.IndexByte(raw, opener)
	end := strings.LastIndexByte(raw, closer)
	if start < 0 || end <= start {
		return "", perr.Newf(perr.ErrorCodeJSON, "no %c...%c document in reply", opener, closer)
	}
	return raw[start : end+1], nil
}
