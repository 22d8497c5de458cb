package api

import (
	"context"

	"github.com/dmitrymomot/vaultkit/pkg/callable"
	"github.com/dmitrymomot/vaultkit/pkg/identity"
	"github.com/dmitrymomot/vaultkit/pkg/metrics"
	"github.com/dmitrymomot/vaultkit/pkg/quota"
	"github.com/dmitrymomot/vaultkit/pkg/tags"
)

// QuotaConsumer records feature usage against the daily quota.
type QuotaConsumer interface {
	Consume(ctx context.Context, ownerID, featureKey string, limitPerDay int64) (quota.Result, error)
}

// TagService maintains per-user tag usage counters.
type TagService interface {
	ApplyChange(ctx context.Context, userID string, before, after []string) (tags.Change, error)
	Merge(ctx context.Context, userID, sourceTagID, targetTagID string) (tags.MergeResult, error)
}

type ConsumeRequest struct {
	Key         string `json:"key"`
	LimitPerDay int64  `json:"limitPerDay"`
}

type ConsumeResult struct {
	OK    bool  `json:"ok"`
	Count int64 `json:"count"`
}

type MergeRequest struct {
	SourceTagID string `json:"sourceTagId"`
	TargetTagID string `json:"targetTagId"`
}

type MergeResponse struct {
	OK bool `json:"ok"`
}

func callerID(auth *identity.Identity) string {
	if auth == nil {
		return ""
	}
	return auth.UserID
}

// ConsumeQuota is the quota.consume callable.
func ConsumeQuota(counter QuotaConsumer, m *metrics.Metrics) callable.Func[ConsumeRequest, ConsumeResult] {
	return func(ctx context.Context, req callable.Request[ConsumeRequest]) (ConsumeResult, error) {
		res, err := counter.Consume(ctx, callerID(req.Auth), req.Data.Key, req.Data.LimitPerDay)
		switch {
		case err != nil:
			m.ObserveQuota("error")
			return ConsumeResult{}, err
		case res.OK:
			m.ObserveQuota("allowed")
		default:
			m.ObserveQuota("rejected")
		}
		return ConsumeResult{OK: res.OK, Count: res.Count}, nil
	}
}

// MergeTags is the tags.merge callable.
func MergeTags(svc TagService, m *metrics.Metrics) callable.Func[MergeRequest, MergeResponse] {
	return func(ctx context.Context, req callable.Request[MergeRequest]) (MergeResponse, error) {
		res, err := svc.Merge(ctx, callerID(req.Auth), req.Data.SourceTagID, req.Data.TargetTagID)
		if err != nil {
			m.ObserveMerge("error", res.RecordsRewritten)
			return MergeResponse{}, err
		}
		m.ObserveMerge("merged", res.RecordsRewritten)
		return MergeResponse{OK: true}, nil
	}
}
